package domain

import (
	"errors"
	"fmt"
)

// ErrKind groups errors by how they are handled.
type ErrKind string

const (
	KindNormalization ErrKind = "normalization" // malformed record, dropped
)

// Error is a structured domain error.
// - Kind: high-level category
// - Code: stable machine code
// - Message: human readable, safe to show in a notice
// - Meta: optional details (field, id, index)
// - Cause: wrapped low-level error
type Error struct {
	Kind    ErrKind
	Code    string
	Message string
	Meta    map[string]string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Kind, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind ErrKind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

func Wrap(kind ErrKind, code, msg string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: msg, Cause: cause}
}

func WithMeta(err *Error, meta map[string]string) *Error {
	err.Meta = meta
	return err
}

func Is(err error, code string) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

func KindOf(err error) ErrKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// ----------------------
// Normalization errors
// ----------------------

func ErrMissingID(entity string) *Error {
	return WithMeta(New(KindNormalization, "missing_id", "record has no id"), map[string]string{
		"entity": entity,
	})
}

func ErrInvalidRecord(entity string, cause error) *Error {
	return WithMeta(Wrap(KindNormalization, "invalid_record", "record failed validation", cause), map[string]string{
		"entity": entity,
	})
}
