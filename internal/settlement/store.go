package settlement

import (
	"context"
	"time"
)

// Store persists transaction aggregates. Every mutation goes through
// Update's version check: there is no other write primitive, so two
// concurrent actors on the same transaction can never both succeed.
type Store interface {
	Create(ctx context.Context, txn *Transaction) error

	// Get returns a fresh copy of the transaction. Implementations must not
	// hand out shared mutable state; the scheduler and request paths both
	// depend on reading current isReleased/dispute flags.
	Get(ctx context.Context, id string) (*Transaction, error)

	// Update writes the transaction if its stored version still equals
	// expectedVersion, bumping the version by one. A mismatch fails with
	// ErrConcurrencyConflict and writes nothing.
	Update(ctx context.Context, txn *Transaction, expectedVersion int64) error

	// ListReleasable returns up to limit transactions that look eligible for
	// auto-release at now. It is a prefilter: the sweeper re-reads and
	// re-checks each candidate before claiming it.
	ListReleasable(ctx context.Context, now time.Time, limit int) ([]*Transaction, error)

	// ListByParty returns transactions where userID is the buyer or seller,
	// newest first.
	ListByParty(ctx context.Context, userID string, limit int) ([]*Transaction, error)
}
