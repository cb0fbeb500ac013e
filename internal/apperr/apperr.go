// Package apperr classifies failures of the ingestion and payment paths so
// callers can decide between recovering, logging and surfacing them.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorKind string

const (
	KindValidation            ErrorKind = "validation"
	KindNotConfigured         ErrorKind = "not_configured"
	KindConflict              ErrorKind = "conflict"
	KindAuth                  ErrorKind = "auth"
	KindProvider              ErrorKind = "provider"
	KindExtractionSkip        ErrorKind = "extraction_skip"
	KindStore                 ErrorKind = "store"
	KindInconsistency         ErrorKind = "inconsistency"
	KindReconciliationWarning ErrorKind = "reconciliation_warning"
	KindInternal              ErrorKind = "internal"
)

// Error is the concrete error carried through service boundaries.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind ErrorKind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

func Wrap(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Wrapf(kind ErrorKind, op string, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the outermost *Error in the chain, or
// KindInternal for anything unclassified.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the user-facing message of the outermost *Error, falling
// back to err.Error().
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func HTTPStatus(kind ErrorKind) int {
	switch kind {
	case KindValidation, KindNotConfigured:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case "":
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}
