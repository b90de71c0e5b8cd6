package settlement

import "errors"

var (
	// ErrNotFound means no transaction exists with the given ID.
	ErrNotFound = errors.New("transaction not found")

	// ErrValidation means the input shape or values are invalid
	// (negative amount, buyer = seller, unresolvable reference).
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition means the requested status change is not in the
	// legal transition table. The record is left untouched.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrConcurrencyConflict means the record's version changed between read
	// and write; the caller lost the optimistic-update race.
	ErrConcurrencyConflict = errors.New("concurrent update conflict")
)
