// Package finerr defines the error kinds surfaced by the finance services.
// Handlers switch on Kind; Message stays human readable.
package finerr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindAlreadyProcessed
	KindPersistence
	KindConfiguration
	KindConflict
	KindGateway
	KindRejected
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindAlreadyProcessed:
		return "already_processed"
	case KindPersistence:
		return "persistence"
	case KindConfiguration:
		return "configuration"
	case KindConflict:
		return "conflict"
	case KindGateway:
		return "gateway"
	case KindRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

func AlreadyProcessed(format string, args ...any) *Error {
	return New(KindAlreadyProcessed, format, args...)
}

func Configuration(format string, args ...any) *Error {
	return New(KindConfiguration, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return New(KindConflict, format, args...)
}

// Persistence wraps a datastore failure. Already classified errors pass
// through untouched so a rollback keeps the original kind.
func Persistence(err error, format string, args ...any) error {
	var fe *Error
	if errors.As(err, &fe) {
		return err
	}
	return Wrap(KindPersistence, err, format, args...)
}

func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func IsAlreadyProcessed(err error) bool { return Is(err, KindAlreadyProcessed) }

// MessageOf returns the human readable message without the wrapped cause.
func MessageOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
