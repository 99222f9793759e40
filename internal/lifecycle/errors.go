package lifecycle

import (
	"errors"
	"fmt"
)

// Kind classifies engine errors so callers can branch on them.
type Kind string

// Error kinds.
const (
	KindNotFound          Kind = "not_found"
	KindInvalidTransition Kind = "invalid_transition"
	KindConflict          Kind = "conflicting_transition"
	KindDuplicateSerial   Kind = "duplicate_serial"
	KindValidation        Kind = "validation"
	KindInternal          Kind = "internal"
)

// Error is returned by every engine operation.
type Error struct {
	Kind      Kind
	Message   string
	AssetID   string
	Status    string    // status the asset had when the operation was rejected
	Operation Operation // operation that was requested
	Cause     error
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrDuplicateSerial   = &Error{Kind: KindDuplicateSerial}
	ErrValidation        = &Error{Kind: KindValidation}
	ErrInternal          = &Error{Kind: KindInternal}
)

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the kind of err, or KindInternal for errors the engine did
// not produce.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Retryable reports whether the operation lost a race and may be retried
// right after re-reading the asset.
func Retryable(err error) bool {
	return errors.Is(err, ErrConflict)
}

func notFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func invalid(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func invalidTransition(assetID, status string, op Operation) *Error {
	return &Error{
		Kind:      KindInvalidTransition,
		Message:   fmt.Sprintf("cannot %s asset in status %s", op, status),
		AssetID:   assetID,
		Status:    status,
		Operation: op,
	}
}

func conflict(assetID string, op Operation) *Error {
	return &Error{
		Kind:      KindConflict,
		Message:   fmt.Sprintf("asset changed concurrently, %s not applied", op),
		AssetID:   assetID,
		Operation: op,
	}
}

func duplicateSerial(modelID int64, serial string) *Error {
	return &Error{
		Kind:    KindDuplicateSerial,
		Message: fmt.Sprintf("serial %s is already registered for model %d", serial, modelID),
	}
}

// internal hides storage details from callers; the cause stays available
// through Unwrap for logging.
func internal(cause error) *Error {
	return &Error{Kind: KindInternal, Message: "internal storage error", Cause: cause}
}
