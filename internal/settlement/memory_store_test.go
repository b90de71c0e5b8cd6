package settlement

import (
	"context"
	"errors"
	"testing"
	"time"
)

func storedTxn(id string) *Transaction {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &Transaction{
		ID:        id,
		Version:   1,
		BuyerID:   "usr_buyer",
		SellerID:  "usr_seller",
		ListingID: "lst_1",
		Amount:    Amount{Original: 1000, Final: 1000, Currency: "INR"},
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestMemoryStore_GetReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if err := store.Create(ctx, storedTxn("txn_1")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	a, err := store.Get(ctx, "txn_1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	a.Status = StatusCancelled
	a.Amount.Final = 0

	b, err := store.Get(ctx, "txn_1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if b.Status != StatusPending || b.Amount.Final != 1000 {
		t.Errorf("mutating a read copy leaked into the store: %+v", b)
	}
}

func TestMemoryStore_GetMissing(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Get(context.Background(), "txn_missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_UpdateVersionGuard(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if err := store.Create(ctx, storedTxn("txn_1")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	first, _ := store.Get(ctx, "txn_1")
	second, _ := store.Get(ctx, "txn_1")

	first.Status = StatusProcessing
	if err := store.Update(ctx, first, first.Version); err != nil {
		t.Fatalf("first update: %v", err)
	}
	if first.Version != 2 {
		t.Errorf("version after update = %d, want 2", first.Version)
	}

	// The second reader's snapshot is now stale.
	second.Status = StatusCancelled
	if err := store.Update(ctx, second, second.Version); !errors.Is(err, ErrConcurrencyConflict) {
		t.Errorf("stale update: got %v, want ErrConcurrencyConflict", err)
	}

	current, _ := store.Get(ctx, "txn_1")
	if current.Status != StatusProcessing {
		t.Errorf("lost update won: status = %s", current.Status)
	}
}

func TestMemoryStore_UpdateMissing(t *testing.T) {
	store := NewMemoryStore()
	txn := storedTxn("txn_ghost")
	if err := store.Update(context.Background(), txn, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_ListReleasable(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	due := storedTxn("txn_due")
	due.Status = StatusHeldInEscrow
	past := now.Add(-time.Hour)
	due.Escrow = EscrowDetail{Enabled: true, AutoRelease: true, ReleaseDate: &past}

	future := storedTxn("txn_future")
	future.Status = StatusHeldInEscrow
	later := now.Add(time.Hour)
	future.Escrow = EscrowDetail{Enabled: true, AutoRelease: true, ReleaseDate: &later}

	for _, txn := range []*Transaction{due, future, storedTxn("txn_pending")} {
		if err := store.Create(ctx, txn); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	got, err := store.ListReleasable(ctx, now, 10)
	if err != nil {
		t.Fatalf("ListReleasable: %v", err)
	}
	if len(got) != 1 || got[0].ID != "txn_due" {
		t.Errorf("releasable = %v", got)
	}
}
