// Package apperr defines the error taxonomy shared by services and the HTTP
// error handler. Services return *Error values; callers test for a kind with
// errors.Is against the package sentinels or with KindOf.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindValidation         Kind = "validation"
	KindAlreadyCompleted   Kind = "already_completed"
	KindExpired            Kind = "expired"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindAccountDisabled    Kind = "account_disabled"
	KindUnauthenticated    Kind = "unauthenticated"
	KindUnauthorized       Kind = "unauthorized"
	KindConflict           Kind = "conflict"
	KindBackendUnavailable Kind = "backend_unavailable"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation failed")
	ErrAlreadyCompleted   = errors.New("already completed")
	ErrExpired            = errors.New("expired")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account disabled")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrConflict           = errors.New("conflict")
	ErrBackendUnavailable = errors.New("backend unavailable")
)

var sentinels = map[Kind]error{
	KindNotFound:           ErrNotFound,
	KindValidation:         ErrValidation,
	KindAlreadyCompleted:   ErrAlreadyCompleted,
	KindExpired:            ErrExpired,
	KindInvalidCredentials: ErrInvalidCredentials,
	KindAccountDisabled:    ErrAccountDisabled,
	KindUnauthenticated:    ErrUnauthenticated,
	KindUnauthorized:       ErrUnauthorized,
	KindConflict:           ErrConflict,
	KindBackendUnavailable: ErrBackendUnavailable,
}

// Error is a classified failure. Message is for logs and developers; the
// user-facing text comes from the i18n catalog keyed by Kind.
type Error struct {
	Kind    Kind
	Message string
	// Fields names the offending inputs, e.g. unanswered question ids.
	Fields []string
	// Reason narrows a kind for the error handler, e.g. ReasonMissingAnswers.
	Reason string
	Err    error
}

// ReasonMissingAnswers marks a Validation error raised because required
// questions were left unanswered.
const ReasonMissingAnswers = "missing_answers"

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel belonging to the error's kind.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func NotFound(what string) error {
	return New(KindNotFound, "%s not found", what)
}

func Validation(message string, fields ...string) error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

// MissingAnswers is a Validation error naming the unanswered question ids.
func MissingAnswers(message string, questionIDs ...string) error {
	return &Error{Kind: KindValidation, Message: message, Fields: questionIDs, Reason: ReasonMissingAnswers}
}

func AlreadyCompleted(message string) error {
	return New(KindAlreadyCompleted, "%s", message)
}

func Expired(message string) error {
	return New(KindExpired, "%s", message)
}

func InvalidCredentials() error {
	return New(KindInvalidCredentials, "invalid credentials")
}

func AccountDisabled() error {
	return New(KindAccountDisabled, "account is disabled")
}

func Unauthenticated(message string) error {
	return New(KindUnauthenticated, "%s", message)
}

func Unauthorized(message string) error {
	return New(KindUnauthorized, "%s", message)
}

func Conflict(message string) error {
	return New(KindConflict, "%s", message)
}

func BackendUnavailable(err error) error {
	return Wrap(KindBackendUnavailable, err, "store unavailable")
}

// KindOf returns the kind of the first classified error in err's chain, or ""
// for unclassified errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for kind, s := range sentinels {
		if errors.Is(err, s) {
			return kind
		}
	}
	return ""
}

// ReasonOf returns the reason carried by err, or "".
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

// FieldsOf returns the offending field ids carried by err, if any.
func FieldsOf(err error) []string {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}
