// error_messages.go defines operator-facing error messages with codes for support
// reference. Codes are grouped by category.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File not found: The park file does not exist
//	          Patterns: "no such file", "cannot find the file"
//	FILE002 - Permission denied: The park file cannot be read
//	          Patterns: "permission denied"
//	FILE003 - Unsupported encoding: The configured encoding is unknown
//	          Patterns: "unsupported encoding"
//	FILE004 - File too large: Upload exceeds the size limit
//	          Patterns: "file too large", "request body too large"
//	FILE005 - No file: Neither a path nor an upload was given
//	          Patterns: "no file provided"
//	FILE006 - Read error: The file could not be read to the end
//	          Patterns: "read park file", "open park file"
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - Import in progress: Only one import runs at a time
//	         Patterns: "import is already in progress"
//	IMP002 - Import not found: The import id is unknown or expired
//	         Patterns: "import not found"
//	IMP003 - Invalid reference: The park reference is malformed
//	         Patterns: "invalid park reference"
//	IMP004 - Cancelled: The import was cancelled
//	         Patterns: "context canceled"
//	IMP005 - Timed out: The import ran past its deadline
//	         Patterns: "context deadline exceeded"
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Park not found
//	        Patterns: "park not found"
//	DB002 - Connection refused
//	        Patterns: "connection refused"
//	DB003 - Database busy: SQLite file is locked by another process
//	        Patterns: "database is locked", "sqlite_busy"
//	DB004 - Timeout
//	        Patterns: "timeout"
//	DB005 - Constraint: A row violated a database constraint
//	        Patterns: "constraint"
//
// # Rate Limiting (RATE001-RATE099)
//
//	RATE001 - Rate limited: Too many requests
//	          Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when no specific pattern matches. Check the server log for the
// original error.
//
// Patterns are matched case-insensitively with strings.Contains and the
// first match wins, so specific patterns come before general ones.

package core

import (
	"fmt"
	"strings"
)

// UserMessage provides operator-facing error information with guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (lowercase) to user messages.
// Order matters: context errors are matched before the generic read
// error that wraps them.
var errorPatterns = []errorPattern{
	// File errors
	{"no such file", UserMessage{"The park file was not found", "Check the path and try again", "FILE001"}},
	{"cannot find the file", UserMessage{"The park file was not found", "Check the path and try again", "FILE001"}},
	{"permission denied", UserMessage{"The park file cannot be read", "Check the file permissions", "FILE002"}},
	{"unsupported encoding", UserMessage{"The file encoding is not supported", "Use utf-8, windows-1252 or iso-8859-1", "FILE003"}},
	{"file too large", UserMessage{"File exceeds the maximum upload size", "Import the file from a local path instead", "FILE004"}},
	{"request body too large", UserMessage{"File exceeds the maximum upload size", "Import the file from a local path instead", "FILE004"}},
	{"no file provided", UserMessage{"No park file was given", "Provide a file path or upload a CSV file", "FILE005"}},

	// Import errors
	{"import is already in progress", UserMessage{"Another import is already running", "Wait for it to finish and try again", "IMP001"}},
	{"import not found", UserMessage{"Import not found", "The import may have expired. Check the import history", "IMP002"}},
	{"invalid park reference", UserMessage{"Invalid park reference", "Use the form K-0039", "IMP003"}},
	{"context canceled", UserMessage{"The import was cancelled", "Start a new import when ready", "IMP004"}},
	{"context deadline exceeded", UserMessage{"The import timed out", "Try again, or split the file into smaller parts", "IMP005"}},

	// Generic read failure, after the more specific causes above
	{"read park file", UserMessage{"The park file could not be read", "Check that the file is complete and try again", "FILE006"}},
	{"open park file", UserMessage{"The park file could not be opened", "Check the path and try again", "FILE006"}},

	// Database errors
	{"park not found", UserMessage{"Park not found", "Check the reference or import the park list first", "DB001"}},
	{"connection refused", UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB002"}},
	{"database is locked", UserMessage{"The park database is busy", "Close other programs using it and try again", "DB003"}},
	{"sqlite_busy", UserMessage{"The park database is busy", "Close other programs using it and try again", "DB003"}},
	{"timeout", UserMessage{"Operation timed out", "Please try again", "DB004"}},
	{"constraint", UserMessage{"A park row was rejected by the database", "Check the import errors and try again", "DB005"}},

	{"rate limit", UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}},
}

// defaultMessage is returned when no pattern matches (ERR000).
// This is the fallback for unexpected errors. Support staff should check
// application logs for the original technical error when users report ERR000.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It searches through known error patterns (case-insensitive) and returns
// the first match. If no pattern matches, a generic fallback message with
// code ERR000 is returned.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
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
//
// Example output: "Another import is already running (Code: IMP001). Wait for it to finish and try again"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing checks if an error matches a known pattern and should be shown to users.
// Returns true if the error matches a specific pattern (not the generic ERR000 fallback).
// Use this to decide whether to show the raw error or the mapped user message.
//
// Example:
//
//	if IsUserFacing(err) {
//	    fmt.Fprintln(os.Stderr, FormatUserError(err))
//	}
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	msg := MapError(err)
	return msg.Code != defaultMessage.Code
}

// UserError wraps a technical error with a user-friendly message.
// The original error is preserved for logging.
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

// NewUserError creates a UserError by mapping a technical error to a user-friendly message.
// The returned UserError preserves the original technical error for logging via Unwrap(),
// while providing a clean user message via Error().
//
// Returns nil if err is nil.
//
// Example:
//
//	ue := NewUserError(err)
//	slog.Error("import failed", "error", ue.Technical)
//	fmt.Println(ue.Error())   // "Another import is already running"
//	fmt.Println(ue.User.Code) // "IMP001"
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
