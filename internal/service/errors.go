package service

import (
	"errors"
	"fmt"

	"github.com/noahdhickman/Quodsi-API-sub001/internal/repository"
)

// Code classifies a failure so the boundary layer can map it to a response
// without inspecting message text. Anything without a code is an internal
// error and is propagated unmodified.
type Code string

const (
	// CodeNotFound - entity or required ancestor absent or soft-deleted.
	CodeNotFound Code = "not_found"
	// CodeConflict - duplicate name, or a concurrent-state race was lost.
	CodeConflict Code = "conflict"
	// CodeForbidden - ownership or tenant violation.
	CodeForbidden Code = "forbidden"
	// CodeInvalidState - illegal lifecycle transition or incomplete parameters.
	CodeInvalidState Code = "invalid_state"
	// CodeInvalid - malformed input.
	CodeInvalid Code = "invalid"
)

// Error is a typed, caller-recoverable failure.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrorCode extracts the code from an error, or "" for internal errors.
func ErrorCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// ErrorMessage extracts the message from a typed error, or a generic text.
func ErrorMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

func notFoundf(format string, args ...interface{}) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

func conflictf(format string, args ...interface{}) *Error {
	return &Error{Code: CodeConflict, Message: fmt.Sprintf(format, args...)}
}

func forbiddenf(format string, args ...interface{}) *Error {
	return &Error{Code: CodeForbidden, Message: fmt.Sprintf(format, args...)}
}

func invalidStatef(format string, args ...interface{}) *Error {
	return &Error{Code: CodeInvalidState, Message: fmt.Sprintf(format, args...)}
}

func invalidf(format string, args ...interface{}) *Error {
	return &Error{Code: CodeInvalid, Message: fmt.Sprintf(format, args...)}
}

// lookupErr translates a repository read failure for the named entity.
func lookupErr(err error, entity string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return notFoundf("%s not found", entity)
	}
	return err
}

// writeErr translates a repository write failure for the named entity. A
// duplicate from the store's uniqueness constraint is the final authority on
// the check-then-insert race.
func writeErr(err error, entity string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return notFoundf("%s not found", entity)
	case errors.Is(err, repository.ErrDuplicate):
		return conflictf("%s name already in use", entity)
	default:
		return err
	}
}
