// Package gperrors defines the typed error kinds that cross command
// boundaries, and their mapping to process exit codes.
package gperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for exit-code mapping and JSON error envelopes.
// ParseFailure and BlobMissing are absorbed inside pkg/analyzer and never
// reach a Kind-tagged error at the command boundary.
type Kind string

const (
	KindNotInGitRepo   Kind = "not_in_git_repo"
	KindNotInitialized Kind = "not_initialized"
	KindSchemaOutdated Kind = "schema_outdated"
	KindRefNotFound    Kind = "ref_not_found"
	KindBlobMissing    Kind = "blob_missing"
	KindParseFailure   Kind = "parse_failure"
	KindStoreBusy      Kind = "store_busy"
	KindCancelled      Kind = "cancelled"
)

// Error is a Kind-tagged error that crosses the command boundary.
type Error struct {
	kind    Kind
	message string
	cause   error
}

// New creates a Kind-tagged error with the given message.
func New(kind Kind, message string) *Error {
	return &Error{kind: kind, message: message}
}

// Wrap tags an existing error with a Kind, preserving it for errors.Is/As.
func Wrap(kind Kind, cause error) *Error {
	return &Error{kind: kind, message: cause.Error(), cause: cause}
}

// Wrapf tags cause with a Kind and a formatted message.
func Wrapf(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{kind: kind, message: fmt.Sprintf(format, args...), cause: cause}
}

func (e *Error) Error() string {
	return e.message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Kind returns the error's classification.
func (e *Error) Kind() Kind {
	return e.kind
}

// KindOf extracts the Kind from err if it (or something it wraps) is a
// *Error; ok is false for plain errors.
func KindOf(err error) (kind Kind, ok bool) {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.kind, true
	}

	return "", false
}

// ExitCode maps an error to the process exit code described in the CLI
// contract: 0 success, 1 recoverable error, 2 usage error. Usage errors are
// signaled by cobra itself (flag parsing), so every Kind here maps to 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	return 1
}
