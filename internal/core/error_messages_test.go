package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/JonMunkholm/beatmaps/internal/store"
	"github.com/JonMunkholm/beatmaps/internal/zipmap"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil error returns empty", nil, ""},
		{"malformed archive", fmt.Errorf("open: %w", zipmap.ErrMalformedArchive), "ZIP001"},
		{"missing info", zipmap.ErrMissingInfoDocument, "ZIP002"},
		{"ambiguous info", zipmap.ErrAmbiguousInfoDocument, "ZIP003"},
		{"entry too large", fmt.Errorf("song.egg: %w", zipmap.ErrSizeLimitExceeded), "ZIP004"},
		{"entry not found", fmt.Errorf("Expert.dat: %w", zipmap.ErrEntryNotFound), "ZIP005"},
		{
			"invalid document",
			fmt.Errorf("difficulty Standard/Expert: %w", &zipmap.InvalidDocumentError{Path: "Expert.dat", Err: errors.New("bad json")}),
			"ZIP006",
		},
		{"no valid difficulties", fmt.Errorf("extract: %w", zipmap.ErrNoValidDifficulties), "ZIP007"},
		{"duplicate archive", fmt.Errorf("resolve version: %w", ErrDuplicateArchive), "UPL001"},
		{"limiter busy", ErrTooManyUploads, "UPL002"},
		{"version not found", fmt.Errorf("%w: abc", store.ErrVersionNotFound), "UPL003"},
		{"canceled", context.Canceled, "UPL004"},
		{"deadline", fmt.Errorf("extract: %w", context.DeadlineExceeded), "UPL005"},
		{"no file", ErrNoFile, "UPL006"},
		{"upload too large", ErrUploadTooLarge, "UPL007"},
		{"duplicate key text", errors.New("ERROR: duplicate key value violates unique constraint"), "DB001"},
		{"connection refused text", errors.New("dial tcp: connection refused"), "DB004"},
		{"connection reset text", errors.New("read: connection reset by peer"), "DB005"},
		{"deadlock text", errors.New("ERROR: deadlock detected"), "DB007"},
		{"case insensitive", errors.New("DEADLOCK DETECTED"), "DB007"},
		{"unknown", errors.New("something strange"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError(%v).Code = %q, want %q", tt.err, got.Code, tt.wantCode)
			}
			if tt.err != nil && got.Message == "" {
				t.Error("Message is empty")
			}
		})
	}
}

func TestMapError_SentinelBeatsPattern(t *testing.T) {
	// Wrapped sentinel text mentions a pattern, the sentinel still wins.
	err := fmt.Errorf("deadlock while saving: %w", ErrDuplicateArchive)
	if got := MapError(err).Code; got != "UPL001" {
		t.Errorf("Code = %q, want UPL001", got)
	}
}

func TestFormatUserError(t *testing.T) {
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}

	got := FormatUserError(zipmap.ErrMissingInfoDocument)
	if !strings.Contains(got, "(Code: ZIP002)") {
		t.Errorf("FormatUserError = %q, missing code", got)
	}
	if !strings.HasPrefix(got, msgMissingInfo.Message) {
		t.Errorf("FormatUserError = %q, want prefix %q", got, msgMissingInfo.Message)
	}
}

func TestIsUserFacing(t *testing.T) {
	if IsUserFacing(nil) {
		t.Error("nil should not be user facing")
	}
	if !IsUserFacing(ErrTooManyUploads) {
		t.Error("ErrTooManyUploads should be user facing")
	}
	if IsUserFacing(errors.New("boom")) {
		t.Error("unknown error should not be user facing")
	}
}

func TestNewUserError(t *testing.T) {
	if NewUserError(nil) != nil {
		t.Error("NewUserError(nil) should be nil")
	}

	base := fmt.Errorf("wrap: %w", zipmap.ErrEntryNotFound)
	ue := NewUserError(base)
	if ue.User.Code != "ZIP005" {
		t.Errorf("Code = %q, want ZIP005", ue.User.Code)
	}
	if ue.Error() != msgEntryNotFound.Message {
		t.Errorf("Error() = %q, want %q", ue.Error(), msgEntryNotFound.Message)
	}
	if !errors.Is(ue, zipmap.ErrEntryNotFound) {
		t.Error("UserError should unwrap to the technical error")
	}
}
