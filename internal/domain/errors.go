package domain

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind is a stable, machine-readable error category.
type ErrorKind string

const (
	KindInvalidQuantity      ErrorKind = "invalid_quantity"
	KindUnknownAsset         ErrorKind = "unknown_asset"
	KindInsufficientFunds    ErrorKind = "insufficient_funds"
	KindInsufficientHoldings ErrorKind = "insufficient_holdings"
	KindTransportUnavailable ErrorKind = "transport_unavailable"
)

// Error carries a kind plus a human-readable message.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is reports kind equality so that errors.Is(err, ErrInsufficientFunds) matches any message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrInvalidQuantity      = &Error{Kind: KindInvalidQuantity, Message: "invalid quantity"}
	ErrUnknownAsset         = &Error{Kind: KindUnknownAsset, Message: "unknown asset"}
	ErrInsufficientFunds    = &Error{Kind: KindInsufficientFunds, Message: "insufficient funds"}
	ErrInsufficientHoldings = &Error{Kind: KindInsufficientHoldings, Message: "insufficient holdings"}
	ErrTransportUnavailable = &Error{Kind: KindTransportUnavailable, Message: "transport unavailable"}
)

// NewError creates an Error of the given kind.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or "" when there is none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
