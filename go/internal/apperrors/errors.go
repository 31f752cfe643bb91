package apperrors

import (
	"errors"
	"fmt"
)

// Error is a rejected command. It never indicates engine failure.
type Error struct {
	Kind    Kind
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches any *Error with the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// New creates an error of kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Sentinels for errors.Is comparisons.
var (
	ErrAlreadyQueued            = &Error{Kind: KindAlreadyQueued}
	ErrQueueFull                = &Error{Kind: KindQueueFull}
	ErrNotInProposal            = &Error{Kind: KindNotInProposal}
	ErrAlreadyResolved          = &Error{Kind: KindAlreadyResolved}
	ErrNotYourTurn              = &Error{Kind: KindNotYourTurn}
	ErrAlreadyBanned            = &Error{Kind: KindAlreadyBanned}
	ErrAlreadyVoted             = &Error{Kind: KindAlreadyVoted}
	ErrUnauthorized             = &Error{Kind: KindUnauthorized}
	ErrInvalidStateForOperation = &Error{Kind: KindInvalidStateForOperation}
	ErrNotFound                 = &Error{Kind: KindNotFound}
	ErrInvalidArgument          = &Error{Kind: KindInvalidArgument}
)

// KindOf extracts the kind from err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
