package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	Internal Kind = iota
	NotFound
	InvalidInput
	InsufficientStock
	InvalidStateTransition
	AmountMismatch
	GatewayError
	ConcurrencyConflict
	Unauthorized
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "NOT_FOUND"
	case InvalidInput:
		return "INVALID_INPUT"
	case InsufficientStock:
		return "INSUFFICIENT_STOCK"
	case InvalidStateTransition:
		return "INVALID_STATE_TRANSITION"
	case AmountMismatch:
		return "AMOUNT_MISMATCH"
	case GatewayError:
		return "GATEWAY_ERROR"
	case ConcurrencyConflict:
		return "CONCURRENCY_CONFLICT"
	case Unauthorized:
		return "UNAUTHORIZED"
	default:
		return "INTERNAL"
	}
}

// Shortfall describes one line that could not be satisfied from stock.
type Shortfall struct {
	ProductID string `json:"productId"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// Error is the stable, user-facing error shape. Message is safe to show to
// callers; Err keeps the underlying cause for logs.
type Error struct {
	Kind       Kind
	Message    string
	Shortfalls []Shortfall
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Insufficient(shortfalls ...Shortfall) *Error {
	msg := "insufficient stock"
	if len(shortfalls) == 1 {
		s := shortfalls[0]
		msg = fmt.Sprintf("insufficient stock for product %s: requested %d, available %d", s.ProductID, s.Requested, s.Available)
	}
	return &Error{Kind: InsufficientStock, Message: msg, Shortfalls: shortfalls}
}

// KindOf returns Internal for errors that did not originate here.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
