package domain

import "errors"

var (
	// ErrInvalidStatus is returned for status values outside the enum.
	ErrInvalidStatus = errors.New("invalid ticket status")
	// ErrInvalidPriority is returned for priority values outside the enum.
	ErrInvalidPriority = errors.New("invalid ticket priority")
	// ErrReferenceExhausted means every generated reference collided.
	ErrReferenceExhausted = errors.New("ticket reference generation exhausted")
	// ErrInconsistentTicket flags a broken ticket invariant after a mutation.
	ErrInconsistentTicket = errors.New("ticket invariant violated")
)
