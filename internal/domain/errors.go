package domain

import (
	"errors"
	"fmt"
)

// Kind is the machine-checkable category of an error.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindInternal   Kind = "internal"
)

var (
	// ErrValidation matches every validation error via errors.Is.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound matches every not-found error via errors.Is.
	ErrNotFound = errors.New("not found")
	// ErrConflict matches every conflict error via errors.Is.
	ErrConflict = errors.New("conflict")
	// ErrInternal matches every internal error via errors.Is.
	ErrInternal = errors.New("internal error")
)

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = NotFound("quiz not found")
	// ErrUserNotFound is returned when the user has no XP account.
	ErrUserNotFound = NotFound("user not found")
	// ErrCourseNotFound is returned when the catalog does not know the course.
	ErrCourseNotFound = NotFound("course not found")
	// ErrAttemptNotFound is returned for unknown attempt ids.
	ErrAttemptNotFound = NotFound("quiz attempt not found")
	// ErrCertificateNotFound is returned for unknown certificate ids or numbers.
	ErrCertificateNotFound = NotFound("certificate not found")
	// ErrDuplicateAttempt is returned when the (user, quiz, lesson, course) tuple was already submitted.
	ErrDuplicateAttempt = Conflict("quiz already attempted")
	// ErrCertificateExists is returned when (user, course) already holds a certificate.
	ErrCertificateExists = Conflict("certificate already issued")
	// ErrCertificateNumberTaken is returned when a generated certificate number collides.
	ErrCertificateNumberTaken = Conflict("certificate number already in use")
	// ErrSubmissionInFlight is returned when an identical submission is being processed.
	ErrSubmissionInFlight = Conflict("quiz already attempted")
)

// Error carries a kind, a caller-safe message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match kind sentinels such as ErrNotFound.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func (k Kind) sentinel() error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindNotFound:
		return ErrNotFound
	case KindConflict:
		return ErrConflict
	default:
		return ErrInternal
	}
}

// Validationf builds a validation error.
func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds a not-found error.
func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// Conflict builds a conflict error.
func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

// Internal wraps a storage or infrastructure failure.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf reports the kind of err; anything unclassified is internal.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// PublicMessage is the text that may be shown to a caller. Internal causes never leak.
func PublicMessage(err error) string {
	var de *Error
	if errors.As(err, &de) && de.Kind != KindInternal {
		return de.Message
	}
	return "internal error"
}
