package settlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bazaarhq/settld/internal/fees"
	"github.com/bazaarhq/settld/internal/testutil"
)

func pgTxn(id string, now time.Time) *Transaction {
	txn := &Transaction{
		ID:        id,
		Version:   1,
		BuyerID:   "usr_buyer",
		SellerID:  "usr_seller",
		ListingID: "lst_1",
		Amount: Amount{
			Original: 120000,
			Final:    100000,
			Currency: "INR",
		},
		PaymentMethod: fees.MethodCard,
		Status:        StatusPending,
		Escrow: EscrowDetail{
			Enabled:        true,
			HoldPeriodDays: 7,
			AutoRelease:    true,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	txn.recomputeFees()
	txn.appendTimeline(StatusPending, now, "Transaction created", "usr_buyer")
	return txn
}

func TestPostgresStore_RoundTrip(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	txn := pgTxn("txn_pg_1", now)
	release := now.Add(7 * 24 * time.Hour)
	txn.Status = StatusHeldInEscrow
	txn.Escrow.ReleaseDate = &release
	txn.Dispute = &DisputeDetail{
		RaisedBy:   "usr_buyer",
		Reason:     "not_as_described",
		Evidence:   []string{"photo.jpg"},
		RaisedAt:   now,
		Resolution: Resolution{Status: ResolutionPending},
	}

	if err := store.Create(ctx, txn); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := store.Get(ctx, "txn_pg_1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Version != 1 || got.Status != StatusHeldInEscrow {
		t.Errorf("got version=%d status=%s", got.Version, got.Status)
	}
	if got.Fees.Total != txn.Fees.Total || got.Amount.Final != 100000 {
		t.Errorf("amounts: %+v / %+v", got.Amount, got.Fees)
	}
	if got.Escrow.ReleaseDate == nil || !got.Escrow.ReleaseDate.Equal(release) {
		t.Errorf("release date = %v, want %v", got.Escrow.ReleaseDate, release)
	}
	if got.Dispute == nil || got.Dispute.Reason != "not_as_described" || len(got.Dispute.Evidence) != 1 {
		t.Errorf("dispute = %+v", got.Dispute)
	}
	if len(got.Timeline) != 1 || got.Timeline[0].Note != "Transaction created" {
		t.Errorf("timeline = %+v", got.Timeline)
	}

	if _, err := store.Get(ctx, "txn_pg_missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing Get: got %v, want ErrNotFound", err)
	}
}

func TestPostgresStore_UpdateVersionGuard(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	if err := store.Create(ctx, pgTxn("txn_pg_2", now)); err != nil {
		t.Fatalf("Create: %v", err)
	}

	first, _ := store.Get(ctx, "txn_pg_2")
	second, _ := store.Get(ctx, "txn_pg_2")

	first.Status = StatusProcessing
	if err := store.Update(ctx, first, first.Version); err != nil {
		t.Fatalf("first update: %v", err)
	}
	if first.Version != 2 {
		t.Errorf("version after update = %d, want 2", first.Version)
	}

	second.Status = StatusCancelled
	if err := store.Update(ctx, second, second.Version); !errors.Is(err, ErrConcurrencyConflict) {
		t.Errorf("stale update: got %v, want ErrConcurrencyConflict", err)
	}

	ghost := pgTxn("txn_pg_ghost", now)
	if err := store.Update(ctx, ghost, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing update: got %v, want ErrNotFound", err)
	}

	current, _ := store.Get(ctx, "txn_pg_2")
	if current.Status != StatusProcessing || current.Version != 2 {
		t.Errorf("current = status %s version %d", current.Status, current.Version)
	}
}

func TestPostgresStore_ListReleasable(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	due := pgTxn("txn_due", now)
	due.Status = StatusHeldInEscrow
	due.Escrow.ReleaseDate = &past

	notYet := pgTxn("txn_not_yet", now)
	notYet.Status = StatusHeldInEscrow
	notYet.Escrow.ReleaseDate = &future

	disputed := pgTxn("txn_disputed", now)
	disputed.Status = StatusDisputed
	disputed.Escrow.ReleaseDate = &past
	disputed.Dispute = &DisputeDetail{
		RaisedBy:   "usr_buyer",
		Reason:     "not_delivered",
		RaisedAt:   now,
		Resolution: Resolution{Status: ResolutionPending},
	}

	manual := pgTxn("txn_manual", now)
	manual.Status = StatusHeldInEscrow
	manual.Escrow.ReleaseDate = &past
	manual.Escrow.AutoRelease = false

	// Resolved dispute back in escrow: due again.
	reinstated := pgTxn("txn_reinstated", now)
	reinstated.Status = StatusHeldInEscrow
	reinstated.Escrow.ReleaseDate = &past
	resolvedAt := now
	reinstated.Dispute = &DisputeDetail{
		RaisedBy: "usr_buyer",
		Reason:   "resolved_one",
		RaisedAt: now,
		Resolution: Resolution{
			Status:     ResolutionResolved,
			ResolvedBy: "adm_1",
			ResolvedAt: &resolvedAt,
		},
	}

	for _, txn := range []*Transaction{due, notYet, disputed, manual, reinstated} {
		if err := store.Create(ctx, txn); err != nil {
			t.Fatalf("Create %s: %v", txn.ID, err)
		}
	}

	got, err := store.ListReleasable(ctx, now, 10)
	if err != nil {
		t.Fatalf("ListReleasable: %v", err)
	}
	ids := make(map[string]bool, len(got))
	for _, txn := range got {
		ids[txn.ID] = true
	}
	if len(got) != 2 || !ids["txn_due"] || !ids["txn_reinstated"] {
		t.Errorf("releasable = %v", ids)
	}
}

func TestPostgresStore_ListByParty(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	older := pgTxn("txn_older", now.Add(-time.Hour))
	newer := pgTxn("txn_newer", now)
	other := pgTxn("txn_other", now)
	other.BuyerID = "usr_someone"
	other.SellerID = "usr_else"

	for _, txn := range []*Transaction{older, newer, other} {
		if err := store.Create(ctx, txn); err != nil {
			t.Fatalf("Create %s: %v", txn.ID, err)
		}
	}

	got, err := store.ListByParty(ctx, "usr_buyer", 10)
	if err != nil {
		t.Fatalf("ListByParty: %v", err)
	}
	if len(got) != 2 || got[0].ID != "txn_newer" {
		t.Errorf("ListByParty = %v", got)
	}

	limited, err := store.ListByParty(ctx, "usr_buyer", 1)
	if err != nil {
		t.Fatalf("ListByParty limit: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limited = %d rows", len(limited))
	}
}
