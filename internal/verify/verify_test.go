package verify

import (
	"context"
	"errors"
	"testing"
)

type verifierFunc func(ctx context.Context, candidates []string, userHash string) (string, error)

func (f verifierFunc) ValidateUser(ctx context.Context, candidates []string, userHash string) (string, error) {
	return f(ctx, candidates, userHash)
}

func (verifierFunc) Hash(id int) string { return "h" }

func reset(t *testing.T) {
	t.Helper()
	mu.Lock()
	prev := verifier
	verifier = nil
	mu.Unlock()
	t.Cleanup(func() {
		mu.Lock()
		verifier = prev
		mu.Unlock()
	})
}

func TestRegistered_DefaultsToNotVerified(t *testing.T) {
	reset(t)

	v := Registered()
	if _, ok := v.(NotVerified); !ok {
		t.Fatalf("Registered = %T, want NotVerified", v)
	}
	if name := Validate(context.Background(), v, []string{"mapper"}, "hash"); name != "" {
		t.Errorf("Validate = %q, want empty", name)
	}
}

func TestRegister_Duplicate(t *testing.T) {
	reset(t)

	Register(NotVerified{})
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	Register(NotVerified{})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		v        Verifier
		userHash string
		want     string
	}{
		{
			name: "match",
			v: verifierFunc(func(_ context.Context, c []string, _ string) (string, error) {
				return c[0], nil
			}),
			userHash: "abc",
			want:     "mapper",
		},
		{
			name: "error",
			v: verifierFunc(func(context.Context, []string, string) (string, error) {
				return "mapper", errors.New("lookup failed")
			}),
			userHash: "abc",
		},
		{
			name: "panic",
			v: verifierFunc(func(context.Context, []string, string) (string, error) {
				panic("boom")
			}),
			userHash: "abc",
		},
		{
			name: "empty hash skips provider",
			v: verifierFunc(func(context.Context, []string, string) (string, error) {
				return "mapper", nil
			}),
		},
		{name: "nil verifier", userHash: "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Validate(context.Background(), tt.v, []string{"mapper"}, tt.userHash)
			if got != tt.want {
				t.Errorf("Validate = %q, want %q", got, tt.want)
			}
		})
	}
}
