// Package errors defines coded errors shared by the dataset layer, the CLI
// and the listing API.
//
// A code classifies a failure so callers can react without string matching:
// the API maps codes to HTTP statuses, and the tiered store decides which
// failures are soft misses.
//
//	err := errors.Wrap(errors.ErrCodeInvalidResponse, cause, "decode page %d of %s", page, category)
//	if errors.Is(err, errors.ErrCodeInvalidResponse) {
//	    // the origin changed its schema
//	}
package errors

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error class.
type Code string

const (
	// Caller input.
	ErrCodeInvalidInput    Code = "INVALID_INPUT"
	ErrCodeInvalidKind     Code = "INVALID_KIND"
	ErrCodeInvalidSlug     Code = "INVALID_SLUG"
	ErrCodeInvalidFilename Code = "INVALID_FILENAME"
	ErrCodeInvalidConfig   Code = "INVALID_CONFIG"

	// The origin answered with a body that does not match the expected schema.
	ErrCodeInvalidResponse Code = "INVALID_RESPONSE"

	ErrCodeNotFound Code = "NOT_FOUND"
	ErrCodeConflict Code = "CONFLICT"

	// Transport.
	ErrCodeNetwork      Code = "NETWORK_ERROR"
	ErrCodeTimeout      Code = "TIMEOUT"
	ErrCodeRateLimited  Code = "RATE_LIMITED"
	ErrCodeUnauthorized Code = "UNAUTHORIZED"

	// Cache tiers.
	ErrCodeSnapshotCorrupt Code = "SNAPSHOT_CORRUPT"
	ErrCodePublishFailed   Code = "PUBLISH_FAILED"

	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error carries a code, a human-readable message and an optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return string(e.Code) + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// New returns an Error with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an Error with a formatted message around cause.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether the first *Error in err's chain has code.
func Is(err error, code Code) bool {
	return code != "" && GetCode(err) == code
}

// GetCode returns the code of the first *Error in err's chain, or "".
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns the message of the first *Error in err's chain, or
// err.Error() for uncoded errors.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
