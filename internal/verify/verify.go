// Package verify holds the optional uploader identity verification provider.
//
// A deployment may register one Verifier at startup. Without one, every
// check reports "not verified". Provider errors and panics are logged and
// treated the same way; verification never fails an upload.
package verify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Verifier checks whether a set of names found in a map belongs to a user.
type Verifier interface {
	// ValidateUser returns the verified name from candidates, or "" if none
	// matches userHash.
	ValidateUser(ctx context.Context, candidates []string, userHash string) (string, error)
	// Hash returns the opaque identity hash of a user.
	Hash(userID int) string
}

// NotVerified is the neutral verifier used when none is registered.
type NotVerified struct{}

// ValidateUser always returns "".
func (NotVerified) ValidateUser(context.Context, []string, string) (string, error) {
	return "", nil
}

// Hash always returns "".
func (NotVerified) Hash(int) string {
	return ""
}

var (
	mu       sync.RWMutex
	verifier Verifier
)

// Register installs the process-wide verifier.
// Panics if one is already registered.
func Register(v Verifier) {
	if v == nil {
		panic("verify: Register called with nil verifier")
	}

	mu.Lock()
	defer mu.Unlock()

	if verifier != nil {
		panic(fmt.Sprintf("verify: verifier already registered: %T", verifier))
	}
	verifier = v
}

// Registered returns the registered verifier or NotVerified.
func Registered() Verifier {
	mu.RLock()
	defer mu.RUnlock()

	if verifier == nil {
		return NotVerified{}
	}
	return verifier
}

// Validate runs v and downgrades any failure to "".
func Validate(ctx context.Context, v Verifier, candidates []string, userHash string) (name string) {
	if v == nil || userHash == "" {
		return ""
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Warn("user verification panicked", "panic", r)
			name = ""
		}
	}()

	name, err := v.ValidateUser(ctx, candidates, userHash)
	if err != nil {
		slog.Warn("user verification failed", "error", err)
		return ""
	}
	return name
}
