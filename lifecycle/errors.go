package lifecycle

import (
	"errors"
	"fmt"
)

// Kind classifies a lifecycle failure so the HTTP layer can pick a status
// code without string matching.
type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindForbidden          Kind = "forbidden"
	KindInvalidTransition  Kind = "invalid_transition"
	KindAlreadyAssigned    Kind = "already_assigned"
	KindDuplicateAction    Kind = "duplicate_action"
	KindPaymentNotVerified Kind = "payment_not_verified"
	KindInternal           Kind = "internal"
)

// Error is a typed lifecycle error that can be surfaced to API clients
// without leaking storage details.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrKind extracts the Kind from err, or KindInternal for foreign errors.
func ErrKind(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindInternal
}

func notFound(id string) *Error {
	return &Error{Kind: KindNotFound, Message: "issue " + id + " not found"}
}

func forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func invalidTransition(msg string) *Error {
	return &Error{Kind: KindInvalidTransition, Message: msg}
}

func alreadyAssigned(msg string) *Error {
	return &Error{Kind: KindAlreadyAssigned, Message: msg}
}

func duplicateAction(msg string) *Error {
	return &Error{Kind: KindDuplicateAction, Message: msg}
}

func paymentNotVerified(msg string) *Error {
	return &Error{Kind: KindPaymentNotVerified, Message: msg}
}

func internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}
