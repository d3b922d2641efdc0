package core

// error_messages.go maps technical errors to user-facing messages with codes
// support staff can look up.
//
// # Archive Errors (ZIP001-ZIP099)
//
//	ZIP001 - Malformed archive: not a zip, bad entry names, case collisions
//	ZIP002 - Missing Info.dat
//	ZIP003 - More than one Info.dat at the shallowest depth
//	ZIP004 - An entry is larger than the configured limit
//	ZIP005 - A referenced file is not in the archive
//	ZIP006 - Info.dat or a difficulty file could not be decoded
//	ZIP007 - Every declared difficulty was excluded
//
// # Upload Errors (UPL001-UPL099)
//
//	UPL001 - Archive already uploaded for a different map
//	UPL002 - Too many uploads in progress
//	UPL003 - Version not found
//	UPL004 - Request cancelled
//	UPL005 - Request timed out
//	UPL006 - No file in the request
//	UPL007 - Archive over the upload size limit
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key
//	DB004 - Connection refused
//	DB005 - Connection reset
//	DB007 - Deadlock
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Check application logs for the original error.
//
// Sentinel errors are matched first with errors.Is / errors.As, so wrapping
// never hides them. Driver errors that only expose text are then matched
// case-insensitively with strings.Contains; the first pattern wins.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/beatmaps/internal/store"
	"github.com/JonMunkholm/beatmaps/internal/zipmap"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	msgMalformed = UserMessage{
		Message: "The file is not a valid map archive",
		Action:  "Re-export the map as a .zip and upload it again",
		Code:    "ZIP001",
	}
	msgMissingInfo = UserMessage{
		Message: "The archive has no Info.dat",
		Action:  "Make sure Info.dat is included in the zip",
		Code:    "ZIP002",
	}
	msgAmbiguousInfo = UserMessage{
		Message: "The archive contains more than one Info.dat",
		Action:  "Keep a single map per archive",
		Code:    "ZIP003",
	}
	msgTooLarge = UserMessage{
		Message: "A file in the archive is too large",
		Action:  "Reduce the size of the audio or map files",
		Code:    "ZIP004",
	}
	msgEntryNotFound = UserMessage{
		Message: "A file referenced by Info.dat is missing",
		Action:  "Check that every difficulty and the song file are in the zip",
		Code:    "ZIP005",
	}
	msgInvalidDocument = UserMessage{
		Message: "A map file could not be read",
		Action:  "Open the map in an editor and save it again",
		Code:    "ZIP006",
	}
	msgNoDifficulties = UserMessage{
		Message: "None of the difficulties in the archive could be used",
		Action:  "Check that each difficulty file listed in Info.dat is present and valid",
		Code:    "ZIP007",
	}
	msgDuplicateArchive = UserMessage{
		Message: "This archive was already uploaded for another map",
		Action:  "Upload a new version or use the existing map",
		Code:    "UPL001",
	}
	msgBusy = UserMessage{
		Message: "System is busy processing other uploads",
		Action:  "Please wait a moment and try again",
		Code:    "UPL002",
	}
	msgVersionNotFound = UserMessage{
		Message: "Map version not found",
		Action:  "Check the hash and try again",
		Code:    "UPL003",
	}
	msgCanceled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "UPL004",
	}
	msgTimeout = UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller archive or check your connection",
		Code:    "UPL005",
	}
	msgNoFile = UserMessage{
		Message: "No file was selected",
		Action:  "Please select a map archive to upload",
		Code:    "UPL006",
	}
	msgUploadTooLarge = UserMessage{
		Message: "The archive exceeds the upload size limit",
		Action:  "Reduce the archive size and try again",
		Code:    "UPL007",
	}
)

// errorKinds maps sentinel errors to messages. Checked in order.
var errorKinds = []struct {
	target error
	msg    UserMessage
}{
	{ErrDuplicateArchive, msgDuplicateArchive},
	{ErrNoFile, msgNoFile},
	{ErrUploadTooLarge, msgUploadTooLarge},
	{ErrTooManyUploads, msgBusy},
	{store.ErrVersionNotFound, msgVersionNotFound},
	{zipmap.ErrMissingInfoDocument, msgMissingInfo},
	{zipmap.ErrAmbiguousInfoDocument, msgAmbiguousInfo},
	{zipmap.ErrSizeLimitExceeded, msgTooLarge},
	{zipmap.ErrEntryNotFound, msgEntryNotFound},
	{zipmap.ErrNoValidDifficulties, msgNoDifficulties},
	{zipmap.ErrMalformedArchive, msgMalformed},
	{context.Canceled, msgCanceled},
	{context.DeadlineExceeded, msgTimeout},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns catches driver errors that carry no sentinel.
var errorPatterns = []errorPattern{
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this ID already exists",
			Action:  "Please try again",
			Code:    "DB001",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			return k.msg
		}
	}

	var invalid *zipmap.InvalidDocumentError
	if errors.As(err, &invalid) {
		return msgInvalidDocument
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
