package settlement

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"
)

func newTestSweeper(env *testEnv) *Sweeper {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewSweeper(env.svc, time.Minute, 100, logger)
}

func TestRunSweep_ReleasesDue(t *testing.T) {
	env := newTestEnv(t)
	txn := env.createEscrowed(t)
	sweeper := newTestSweeper(env)

	// Before the hold elapses nothing is due.
	result, err := sweeper.RunSweep(context.Background())
	if err != nil {
		t.Fatalf("RunSweep: %v", err)
	}
	if result.Candidates != 0 {
		t.Errorf("premature candidates: %+v", result)
	}

	env.clock.Advance((DefaultHoldPeriodDays*24 + 1) * time.Hour)

	result, err = sweeper.RunSweep(context.Background())
	if err != nil {
		t.Fatalf("RunSweep: %v", err)
	}
	if result.Released != 1 || result.Skipped != 0 || result.Failed != 0 {
		t.Fatalf("result = %+v", result)
	}

	after, err := env.svc.Get(context.Background(), txn.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if after.Status != StatusCompleted {
		t.Errorf("status = %s, want completed", after.Status)
	}
	if !after.Escrow.Released || after.Escrow.ReleasedBy != SystemActor {
		t.Errorf("escrow = %+v", after.Escrow)
	}
	last := after.Timeline[len(after.Timeline)-1]
	if last.Note != "Escrow released" || last.Actor != SystemActor {
		t.Errorf("last timeline entry = %+v", last)
	}
	if env.gateway.disburseCount() != 1 {
		t.Errorf("disbursals = %d, want 1", env.gateway.disburseCount())
	}
}

func TestRunSweep_SkipsIneligible(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Disputed before the hold elapsed.
	disputed := env.createEscrowed(t)
	if _, err := env.svc.InitiateDispute(ctx, disputed.ID, "usr_buyer", "not_as_described", ""); err != nil {
		t.Fatalf("InitiateDispute: %v", err)
	}

	// Auto-release turned off by the buyer.
	manual, err := env.svc.Create(ctx, CreateRequest{
		BuyerID: "usr_b2", SellerID: "usr_s2", ListingID: "lst_2",
		Amount: 5000, DisableAutoRelease: true,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := env.svc.Transition(ctx, manual.ID, StatusProcessing, "usr_b2", "", -1); err != nil {
		t.Fatalf("to processing: %v", err)
	}
	if _, err := env.svc.Transition(ctx, manual.ID, StatusHeldInEscrow, "gateway", "", -1); err != nil {
		t.Fatalf("to held_in_escrow: %v", err)
	}

	// Still pending: never a candidate.
	env.create(t)

	env.clock.Advance((DefaultHoldPeriodDays*24 + 1) * time.Hour)

	sweeper := newTestSweeper(env)
	result, err := sweeper.RunSweep(ctx)
	if err != nil {
		t.Fatalf("RunSweep: %v", err)
	}
	if result.Candidates != 0 || result.Released != 0 {
		t.Errorf("result = %+v, want no candidates", result)
	}
	if env.gateway.disburseCount() != 0 {
		t.Errorf("disbursals = %d, want 0", env.gateway.disburseCount())
	}
}

func TestRunSweep_CandidateChangedSinceListing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	txn := env.createEscrowed(t)
	env.clock.Advance((DefaultHoldPeriodDays*24 + 1) * time.Hour)

	// List first, then dispute before the claim: the re-read must skip it.
	candidates, err := env.store.ListReleasable(ctx, env.clock.Now(), 100)
	if err != nil {
		t.Fatalf("ListReleasable: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("candidates = %d, want 1", len(candidates))
	}
	if _, err := env.svc.InitiateDispute(ctx, txn.ID, "usr_buyer", "last_minute", ""); err != nil {
		t.Fatalf("InitiateDispute: %v", err)
	}

	released, err := env.svc.autoReleaseOne(ctx, txn.ID, env.clock.Now())
	if err != nil {
		t.Fatalf("autoReleaseOne: %v", err)
	}
	if released {
		t.Error("disputed candidate was released")
	}
	if env.gateway.disburseCount() != 0 {
		t.Errorf("disbursals = %d, want 0", env.gateway.disburseCount())
	}
}

// failingStore wraps a Store and fails every write for one transaction.
type failingStore struct {
	Store
	failID string
}

func (f *failingStore) Update(ctx context.Context, txn *Transaction, expectedVersion int64) error {
	if txn.ID == f.failID {
		return errors.New("write timeout")
	}
	return f.Store.Update(ctx, txn, expectedVersion)
}

func TestRunSweep_ItemFailureRaisesAlert(t *testing.T) {
	env := newTestEnv(t)
	txn := env.createEscrowed(t)
	env.svc.store = &failingStore{Store: env.store, failID: txn.ID}
	env.clock.Advance((DefaultHoldPeriodDays*24 + 1) * time.Hour)

	sweeper := newTestSweeper(env)
	result, err := sweeper.RunSweep(context.Background())
	if err != nil {
		t.Fatalf("RunSweep: %v", err)
	}
	if result.Failed != 1 || result.Released != 0 {
		t.Fatalf("result = %+v, want 1 failed", result)
	}
	if len(env.alerter.raised) != 1 || env.alerter.raised[0] != "sweep_item_failed" {
		t.Errorf("alerts = %v, want [sweep_item_failed]", env.alerter.raised)
	}
	// The claim never landed, so no money moved.
	if env.gateway.disburseCount() != 0 {
		t.Errorf("disbursals = %d, want 0", env.gateway.disburseCount())
	}
}

func TestRunSweep_ConcurrentSweepsReleaseOnce(t *testing.T) {
	env := newTestEnv(t)
	const n = 5
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		txn, err := env.svc.Create(context.Background(), CreateRequest{
			BuyerID: "usr_buyer", SellerID: "usr_seller", ListingID: "lst_bike",
			Amount: 10000,
		})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if _, err := env.svc.Transition(context.Background(), txn.ID, StatusProcessing, "usr_buyer", "", -1); err != nil {
			t.Fatalf("to processing: %v", err)
		}
		if _, err := env.svc.Transition(context.Background(), txn.ID, StatusHeldInEscrow, "gateway", "", -1); err != nil {
			t.Fatalf("to held_in_escrow: %v", err)
		}
		ids = append(ids, txn.ID)
	}
	env.clock.Advance((DefaultHoldPeriodDays*24 + 1) * time.Hour)

	// Two workers racing over the same batch: the version-guarded claim
	// makes each release happen exactly once.
	var wg sync.WaitGroup
	results := make([]SweepResult, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sweeper := newTestSweeper(env)
			result, err := sweeper.RunSweep(context.Background())
			if err != nil {
				t.Errorf("RunSweep: %v", err)
			}
			results[i] = result
		}(i)
	}
	wg.Wait()

	totalReleased := results[0].Released + results[1].Released
	if totalReleased != n {
		t.Errorf("total released = %d, want %d", totalReleased, n)
	}
	if env.gateway.disburseCount() != n {
		t.Errorf("disbursals = %d, want %d (exactly once per transaction)", env.gateway.disburseCount(), n)
	}
	for _, id := range ids {
		txn, err := env.svc.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if txn.Status != StatusCompleted {
			t.Errorf("%s: status = %s, want completed", id, txn.Status)
		}
	}
}

func TestSweeper_StartStop(t *testing.T) {
	env := newTestEnv(t)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	sweeper := NewSweeper(env.svc, 10*time.Millisecond, 10, logger)

	sweeper.Start()
	if !sweeper.Running() {
		t.Fatal("sweeper not running after Start")
	}
	sweeper.Start() // no-op

	time.Sleep(30 * time.Millisecond)

	sweeper.Stop()
	if sweeper.Running() {
		t.Fatal("sweeper still running after Stop")
	}
	sweeper.Stop() // no-op
}
