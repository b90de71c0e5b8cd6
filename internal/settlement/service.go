package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bazaarhq/settld/internal/alerts"
	"github.com/bazaarhq/settld/internal/fees"
	"github.com/bazaarhq/settld/internal/gateway"
	"github.com/bazaarhq/settld/internal/idgen"
	"github.com/bazaarhq/settld/internal/metrics"
	"github.com/bazaarhq/settld/internal/retry"
	"github.com/bazaarhq/settld/internal/traces"
)

// SystemActor is recorded on timeline entries written by the sweeper.
const SystemActor = "system:auto_release"

// conflictRetries bounds how many times an internal flow re-reads and
// retries after losing an optimistic-concurrency race before surfacing
// ErrConcurrencyConflict.
const conflictRetries = 3

// Gateway calls carry per-transaction idempotency keys, so transient
// failures are retried with backoff inside the per-call timeout.
const (
	gatewayAttempts   = 3
	gatewayRetryDelay = 500 * time.Millisecond
)

// Notifier receives fire-and-forget status change events. Implementations
// must never return errors into the settlement path.
type Notifier interface {
	StatusChanged(transactionID, from, to, actor string)
}

// Directory resolves buyer/seller/listing references at creation time.
type Directory interface {
	UserExists(ctx context.Context, userID string) (bool, error)
	ListingExists(ctx context.Context, listingID string) (bool, error)
}

// CreateRequest contains the parameters for creating a transaction.
type CreateRequest struct {
	BuyerID        string          `json:"buyerId" binding:"required"`
	SellerID       string          `json:"sellerId" binding:"required"`
	ListingID      string          `json:"listingId" binding:"required"`
	Amount         int64           `json:"amount"`                // listing price, minor units
	FinalAmount    int64           `json:"finalAmount,omitempty"` // agreed price; defaults to Amount
	Currency       string          `json:"currency"`
	PaymentMethod  fees.Method     `json:"paymentMethod"`
	HoldPeriodDays int             `json:"holdPeriodDays,omitempty"` // defaults to DefaultHoldPeriodDays
	GatewayName    string          `json:"gatewayName,omitempty"`
	GatewayOrderID string          `json:"gatewayOrderId,omitempty"`
	Fulfillment    json.RawMessage `json:"fulfillment,omitempty"`
	DisableAutoRelease bool        `json:"disableAutoRelease,omitempty"`
}

// ResolveOutcome is an admin's decision on a dispute.
type ResolveOutcome string

const (
	// OutcomeRefund refunds the buyer (full or partial per RefundAmount).
	OutcomeRefund ResolveOutcome = "refund"
	// OutcomeRelease releases the escrowed funds to the seller.
	OutcomeRelease ResolveOutcome = "release"
	// OutcomeReinstate puts the transaction back in escrow pending release.
	OutcomeReinstate ResolveOutcome = "reinstate"
)

// Service implements the settlement engine: it is the single entry point for
// every status change, whether driven by a request, an admin, or the sweeper.
type Service struct {
	store          Store
	gateway        gateway.Gateway
	directory      Directory
	notifier       Notifier
	alerter        alerts.Alerter
	logger         *slog.Logger
	gatewayTimeout time.Duration
	holdPeriodDays int
	now            func() time.Time
}

// NewService creates a settlement service.
func NewService(store Store, gw gateway.Gateway, dir Directory, logger *slog.Logger) *Service {
	return &Service{
		store:          store,
		gateway:        gw,
		directory:      dir,
		alerter:        &alerts.LogAlerter{Logger: logger},
		logger:         logger,
		gatewayTimeout: 30 * time.Second,
		holdPeriodDays: DefaultHoldPeriodDays,
		now:            time.Now,
	}
}

// WithNotifier adds a status-change notifier.
func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

// WithAlerter replaces the operator alert channel.
func (s *Service) WithAlerter(a alerts.Alerter) *Service {
	s.alerter = a
	return s
}

// WithGatewayTimeout bounds gateway refund/disburse calls.
func (s *Service) WithGatewayTimeout(d time.Duration) *Service {
	s.gatewayTimeout = d
	return s
}

// WithHoldPeriod sets the escrow hold period applied when a create request
// does not specify one.
func (s *Service) WithHoldPeriod(days int) *Service {
	if days > 0 {
		s.holdPeriodDays = days
	}
	return s
}

// WithClock overrides the time source (for tests).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create validates the settlement request and records a new transaction in
// pending. Fees are computed here and on every later amount/method change;
// they are never edited directly.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Transaction, error) {
	ctx, span := traces.StartSpan(ctx, "settlement.Create")
	defer span.End()

	if req.BuyerID == "" || req.SellerID == "" || req.ListingID == "" {
		return nil, fmt.Errorf("%w: buyer, seller and listing are required", ErrValidation)
	}
	if req.BuyerID == req.SellerID {
		return nil, fmt.Errorf("%w: buyer and seller cannot be the same user", ErrValidation)
	}
	if req.Amount < 0 || req.FinalAmount < 0 {
		return nil, fmt.Errorf("%w: amount cannot be negative", ErrValidation)
	}

	if err := s.resolveParties(ctx, req); err != nil {
		return nil, err
	}

	final := req.FinalAmount
	if final == 0 {
		final = req.Amount
	}
	holdDays := req.HoldPeriodDays
	if holdDays <= 0 {
		holdDays = s.holdPeriodDays
	}
	currency := req.Currency
	if currency == "" {
		currency = "INR"
	}

	now := s.now()
	txn := &Transaction{
		ID:        idgen.WithPrefix("txn_"),
		Version:   1,
		BuyerID:   req.BuyerID,
		SellerID:  req.SellerID,
		ListingID: req.ListingID,
		Amount: Amount{
			Original: req.Amount,
			Final:    final,
			Currency: currency,
		},
		PaymentMethod: req.PaymentMethod,
		Gateway: GatewayRef{
			Name:    req.GatewayName,
			OrderID: req.GatewayOrderID,
		},
		Status: StatusPending,
		Escrow: EscrowDetail{
			Enabled:        true,
			HoldPeriodDays: holdDays,
			AutoRelease:    !req.DisableAutoRelease,
		},
		Fulfillment: req.Fulfillment,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	txn.recomputeFees()
	txn.appendTimeline(StatusPending, now, "Transaction created", req.BuyerID)

	if err := s.store.Create(ctx, txn); err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}

	s.logger.Info("transaction created",
		"transaction_id", txn.ID,
		"buyer", txn.BuyerID,
		"seller", txn.SellerID,
		"final_amount", txn.Amount.Final,
		"fees_total", txn.Fees.Total,
	)
	return txn, nil
}

func (s *Service) resolveParties(ctx context.Context, req CreateRequest) error {
	for _, check := range []struct {
		kind, id string
		fn       func(context.Context, string) (bool, error)
	}{
		{"buyer", req.BuyerID, s.directory.UserExists},
		{"seller", req.SellerID, s.directory.UserExists},
		{"listing", req.ListingID, s.directory.ListingExists},
	} {
		ok, err := check.fn(ctx, check.id)
		if err != nil {
			return fmt.Errorf("resolve %s %s: %w", check.kind, check.id, err)
		}
		if !ok {
			return fmt.Errorf("%w: unknown %s %s", ErrValidation, check.kind, check.id)
		}
	}
	return nil
}

// Get returns a transaction by ID.
func (s *Service) Get(ctx context.Context, id string) (*Transaction, error) {
	return s.store.Get(ctx, id)
}

// ListByParty returns transactions where userID is buyer or seller.
func (s *Service) ListByParty(ctx context.Context, userID string, limit int) ([]*Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListByParty(ctx, userID, limit)
}

// Transition moves a transaction to target. With expectedVersion >= 0 the
// caller's snapshot is enforced and a lost race surfaces as
// ErrConcurrencyConflict; with a negative expectedVersion the service
// re-reads and retries a bounded number of times.
func (s *Service) Transition(ctx context.Context, id string, target Status, actor, note string, expectedVersion int64) (*Transaction, error) {
	ctx, span := traces.StartSpan(ctx, "settlement.Transition",
		traces.TransactionID(id), traces.TargetStatus(string(target)), traces.Actor(actor))
	defer span.End()

	if !ValidStatus(target) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, target)
	}

	attempts := conflictRetries
	if expectedVersion >= 0 {
		attempts = 1
	}
	return s.mutate(ctx, id, attempts, func(t *Transaction) error {
		if expectedVersion >= 0 && t.Version != expectedVersion {
			return ErrConcurrencyConflict
		}
		return s.applyTransition(t, target, actor, note)
	})
}

// UpdateAmount renegotiates the price before payment processing starts.
// Fees are recomputed and written atomically with the change.
func (s *Service) UpdateAmount(ctx context.Context, id string, final int64, method fees.Method, expectedVersion int64) (*Transaction, error) {
	if final < 0 {
		return nil, fmt.Errorf("%w: amount cannot be negative", ErrValidation)
	}

	attempts := conflictRetries
	if expectedVersion >= 0 {
		attempts = 1
	}
	return s.mutate(ctx, id, attempts, func(t *Transaction) error {
		if expectedVersion >= 0 && t.Version != expectedVersion {
			return ErrConcurrencyConflict
		}
		if t.Status != StatusPending {
			return fmt.Errorf("%w: amount can only change while pending, current status %s", ErrInvalidTransition, t.Status)
		}
		t.Amount.Final = final
		if method != "" {
			t.PaymentMethod = method
		}
		t.recomputeFees()
		t.UpdatedAt = s.now()
		return nil
	})
}

// InitiateDispute opens a dispute on an escrowed transaction. The open
// dispute makes the transaction ineligible for auto-release via the sweep's
// selection predicate; AutoRelease itself is left untouched so resolution
// can reinstate the original behavior.
func (s *Service) InitiateDispute(ctx context.Context, id, initiator, reason, description string) (*Transaction, error) {
	ctx, span := traces.StartSpan(ctx, "settlement.InitiateDispute", traces.TransactionID(id))
	defer span.End()

	if reason == "" {
		return nil, fmt.Errorf("%w: dispute reason is required", ErrValidation)
	}

	txn, err := s.mutate(ctx, id, conflictRetries, func(t *Transaction) error {
		if t.Status != StatusHeldInEscrow {
			return fmt.Errorf("%w: disputes require held_in_escrow, current status %s", ErrInvalidTransition, t.Status)
		}
		t.Dispute = &DisputeDetail{
			RaisedBy:    initiator,
			Reason:      reason,
			Description: description,
			RaisedAt:    s.now(),
			Resolution:  Resolution{Status: ResolutionPending},
		}
		return s.applyTransition(t, StatusDisputed, initiator, "Dispute initiated: "+reason)
	})
	if err != nil {
		return nil, err
	}
	metrics.DisputesOpenGauge.Inc()
	return txn, nil
}

// SubmitEvidence attaches evidence to an open dispute.
func (s *Service) SubmitEvidence(ctx context.Context, id, actor, content string) (*Transaction, error) {
	if content == "" {
		return nil, fmt.Errorf("%w: evidence content is required", ErrValidation)
	}
	return s.mutate(ctx, id, conflictRetries, func(t *Transaction) error {
		if !t.Disputed() {
			return fmt.Errorf("%w: no open dispute", ErrInvalidTransition)
		}
		t.Dispute.Evidence = append(t.Dispute.Evidence, content)
		t.UpdatedAt = s.now()
		return nil
	})
}

// ResolveDispute records the resolver's decision. OutcomeRefund delegates to
// ProcessRefund; OutcomeRelease settles to the seller; OutcomeReinstate puts
// the transaction back in escrow with its original release date intact.
func (s *Service) ResolveDispute(ctx context.Context, id, resolver string, outcome ResolveOutcome, note string, refundAmount int64) (*Transaction, error) {
	ctx, span := traces.StartSpan(ctx, "settlement.ResolveDispute", traces.TransactionID(id))
	defer span.End()

	switch outcome {
	case OutcomeRefund:
		// Resolve the amount default up front so the resolution record
		// carries the amount actually refunded.
		amount := refundAmount
		txn, err := s.mutate(ctx, id, conflictRetries, func(t *Transaction) error {
			if amount <= 0 {
				amount = t.Amount.Final
			}
			if amount > t.Amount.Final {
				return fmt.Errorf("%w: refund amount %d exceeds final amount %d", ErrValidation, amount, t.Amount.Final)
			}
			return resolveDisputeRecord(t, resolver, note, amount, s.now())
		})
		if err != nil {
			return nil, err
		}
		metrics.DisputesOpenGauge.Dec()
		reason := note
		if reason == "" {
			reason = "Dispute resolved: refund to buyer"
		}
		return s.ProcessRefund(ctx, txn.ID, amount, reason, resolver)

	case OutcomeRelease:
		txn, err := s.mutate(ctx, id, conflictRetries, func(t *Transaction) error {
			if err := resolveDisputeRecord(t, resolver, note, 0, s.now()); err != nil {
				return err
			}
			markReleased(t, resolver, s.now())
			return s.applyTransition(t, StatusCompleted, resolver, "Dispute resolved: released to seller")
		})
		if err != nil {
			return nil, err
		}
		metrics.DisputesOpenGauge.Dec()
		if err := s.disburse(ctx, txn); err != nil {
			s.alerter.Raise(ctx, alerts.KindDisburseFailed, txn.ID,
				"dispute resolution released escrow but disbursement failed", map[string]string{
					"seller": txn.SellerID,
					"error":  err.Error(),
				})
			return txn, fmt.Errorf("escrow released but disbursement failed: %w", err)
		}
		return txn, nil

	case OutcomeReinstate:
		txn, err := s.mutate(ctx, id, conflictRetries, func(t *Transaction) error {
			if err := resolveDisputeRecord(t, resolver, note, 0, s.now()); err != nil {
				return err
			}
			// Release date computed on first escrow entry is preserved.
			return s.applyTransition(t, StatusHeldInEscrow, resolver, "Dispute resolved: escrow reinstated")
		})
		if err != nil {
			return nil, err
		}
		metrics.DisputesOpenGauge.Dec()
		return txn, nil

	default:
		return nil, fmt.Errorf("%w: unknown resolution outcome %q", ErrValidation, outcome)
	}
}

// ProcessRefund returns funds to the buyer. The gateway call happens first;
// only on gateway success does the status move to refunded. A gateway
// failure leaves the transaction exactly as it was and is retryable by the
// caller when the gateway says so.
func (s *Service) ProcessRefund(ctx context.Context, id string, amount int64, reason, actor string) (*Transaction, error) {
	ctx, span := traces.StartSpan(ctx, "settlement.ProcessRefund", traces.TransactionID(id), traces.Amount(amount))
	defer span.End()

	txn, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if txn.Status != StatusHeldInEscrow && txn.Status != StatusDisputed {
		return nil, fmt.Errorf("%w: refunds require held_in_escrow or disputed, current status %s", ErrInvalidTransition, txn.Status)
	}
	if amount <= 0 {
		amount = txn.Amount.Final
	}
	if amount > txn.Amount.Final {
		return nil, fmt.Errorf("%w: refund amount %d exceeds final amount %d", ErrValidation, amount, txn.Amount.Final)
	}

	gctx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	timer := time.Now()
	// The idempotency key is stable per transaction, so retries (ours or a
	// caller's after a timeout) cannot refund twice.
	var result gateway.RefundResult
	var lastErr error
	err = retry.Do(gctx, gatewayAttempts, gatewayRetryDelay, func() error {
		var callErr error
		result, callErr = s.gateway.Refund(gctx, gateway.RefundRequest{
			PaymentRef:     txn.Gateway.PaymentID,
			Amount:         amount,
			Currency:       txn.Amount.Currency,
			Reason:         reason,
			IdempotencyKey: "refund-" + txn.ID,
		})
		lastErr = callErr
		if callErr != nil && !gatewayRetryable(callErr) {
			return retry.Permanent(callErr)
		}
		return callErr
	})
	metrics.GatewayCallDuration.WithLabelValues("refund").Observe(time.Since(timer).Seconds())
	if err != nil {
		// Prefer the gateway's own error over a deadline hit while backing off.
		if lastErr != nil {
			err = lastErr
		}
		metrics.GatewayErrorsTotal.WithLabelValues("refund").Inc()
		s.logger.Warn("gateway refund failed", "transaction_id", txn.ID, "error", err)
		return nil, err
	}

	refundedAt := s.now()
	updated, err := s.mutate(ctx, id, conflictRetries, func(t *Transaction) error {
		if t.Status != StatusHeldInEscrow && t.Status != StatusDisputed {
			return fmt.Errorf("%w: status moved to %s during refund", ErrInvalidTransition, t.Status)
		}
		t.Refund = &RefundDetail{
			Amount:          amount,
			Reason:          reason,
			RefundedAt:      refundedAt,
			RefundedBy:      actor,
			GatewayRefundID: result.RefundID,
		}
		if t.Dispute != nil && t.Dispute.Resolution.Status == ResolutionPending {
			if err := resolveDisputeRecord(t, actor, reason, amount, refundedAt); err != nil {
				return err
			}
		}
		return s.applyTransition(t, StatusRefunded, actor, "Refund processed")
	})
	if err != nil {
		// Money moved at the gateway but the record didn't. Never roll the
		// refund back; hand it to an operator.
		s.alerter.Raise(ctx, alerts.KindWriteFailed, txn.ID,
			"gateway refund succeeded but recording it failed", map[string]string{
				"gateway_refund_id": result.RefundID,
				"error":             err.Error(),
			})
		return nil, fmt.Errorf("refund succeeded at gateway but recording failed (requires manual resolution): %w", err)
	}
	return updated, nil
}

// Release settles an escrowed transaction to the seller on an explicit
// request (buyer confirmation or operator action). Same claim-then-disburse
// path as the sweep.
func (s *Service) Release(ctx context.Context, id, actor string) (*Transaction, error) {
	ctx, span := traces.StartSpan(ctx, "settlement.Release", traces.TransactionID(id), traces.Actor(actor))
	defer span.End()

	txn, err := s.mutate(ctx, id, conflictRetries, func(t *Transaction) error {
		if t.Status != StatusHeldInEscrow {
			return fmt.Errorf("%w: release requires held_in_escrow, current status %s", ErrInvalidTransition, t.Status)
		}
		if t.Disputed() {
			return fmt.Errorf("%w: cannot release while disputed", ErrInvalidTransition)
		}
		markReleased(t, actor, s.now())
		return s.applyTransition(t, StatusCompleted, actor, "Escrow released")
	})
	if err != nil {
		return nil, err
	}

	if err := s.disburse(ctx, txn); err != nil {
		s.alerter.Raise(ctx, alerts.KindDisburseFailed, txn.ID,
			"escrow released but disbursement failed", map[string]string{
				"seller": txn.SellerID,
				"error":  err.Error(),
			})
		return txn, fmt.Errorf("escrow released but disbursement failed: %w", err)
	}
	return txn, nil
}

// autoReleaseOne is the sweeper's per-item claim. It re-reads the candidate
// and claims it with the exact version read: a conflict means another worker
// (or a freshly opened dispute) got there first, and the item is skipped
// without side effects. Returns whether the item was released.
func (s *Service) autoReleaseOne(ctx context.Context, id string, now time.Time) (bool, error) {
	fresh, err := s.store.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if !fresh.ReleasableAt(now) {
		return false, nil
	}

	readVersion := fresh.Version
	markReleased(fresh, SystemActor, now)
	if err := s.applyTransition(fresh, StatusCompleted, SystemActor, "Escrow released"); err != nil {
		return false, err
	}
	if err := s.store.Update(ctx, fresh, readVersion); err != nil {
		if errors.Is(err, ErrConcurrencyConflict) {
			metrics.TransitionConflictsTotal.Inc()
			return false, nil
		}
		return false, err
	}
	metrics.TransitionsTotal.WithLabelValues(string(StatusCompleted)).Inc()
	if s.notifier != nil {
		s.notifier.StatusChanged(fresh.ID, string(StatusHeldInEscrow), string(StatusCompleted), SystemActor)
	}

	if err := s.disburse(ctx, fresh); err != nil {
		// The claim already moved the status to completed; retrying the
		// disbursement blindly could double-pay. Operator resolves.
		s.alerter.Raise(ctx, alerts.KindDisburseFailed, fresh.ID,
			"auto-release claimed escrow but disbursement failed", map[string]string{
				"seller": fresh.SellerID,
				"error":  err.Error(),
			})
	}
	return true, nil
}

// disburse pays the seller the full agreed amount; platform and gateway fees
// were charged to the buyer on top and stay with the platform.
func (s *Service) disburse(ctx context.Context, t *Transaction) error {
	gctx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	timer := time.Now()
	var lastErr error
	err := retry.Do(gctx, gatewayAttempts, gatewayRetryDelay, func() error {
		_, callErr := s.gateway.Disburse(gctx, gateway.DisburseRequest{
			SellerRef:      t.SellerID,
			Amount:         t.Amount.Final,
			Currency:       t.Amount.Currency,
			TransactionRef: t.ID,
			IdempotencyKey: "payout-" + t.ID,
		})
		lastErr = callErr
		if callErr != nil && !gatewayRetryable(callErr) {
			return retry.Permanent(callErr)
		}
		return callErr
	})
	metrics.GatewayCallDuration.WithLabelValues("disburse").Observe(time.Since(timer).Seconds())
	if err != nil {
		if lastErr != nil {
			err = lastErr
		}
		metrics.GatewayErrorsTotal.WithLabelValues("disburse").Inc()
		return err
	}
	return nil
}

// gatewayRetryable reports whether the gateway marked the failure transient.
func gatewayRetryable(err error) bool {
	var gwErr *gateway.Error
	return errors.As(err, &gwErr) && gwErr.Retryable
}

// mutate runs the read-apply-write cycle with the store's version guard,
// retrying a lost race up to attempts times. fn sees a fresh copy each
// attempt and returning an error aborts without writing.
func (s *Service) mutate(ctx context.Context, id string, attempts int, fn func(*Transaction) error) (*Transaction, error) {
	var lastErr error
	for i := 0; i < attempts; i++ {
		txn, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		prev := txn.Status

		if err := fn(txn); err != nil {
			return nil, err
		}

		if err := s.store.Update(ctx, txn, txn.Version); err != nil {
			if errors.Is(err, ErrConcurrencyConflict) {
				metrics.TransitionConflictsTotal.Inc()
				lastErr = err
				continue
			}
			return nil, err
		}

		if txn.Status != prev {
			metrics.TransitionsTotal.WithLabelValues(string(txn.Status)).Inc()
			if s.notifier != nil {
				s.notifier.StatusChanged(txn.ID, string(prev), string(txn.Status), lastActor(txn))
			}
		}
		return txn, nil
	}
	return nil, lastErr
}

// applyTransition performs the status change on the in-memory aggregate:
// legality check, status update, exactly one timeline entry, and the
// release-date computation on first entry into escrow. The caller persists
// the result in a single guarded write.
func (s *Service) applyTransition(t *Transaction, target Status, actor, note string) error {
	if err := checkTransition(t.Status, target); err != nil {
		return err
	}

	now := s.now()
	t.Status = target
	t.UpdatedAt = now
	t.appendTimeline(target, now, note, actor)

	if target == StatusHeldInEscrow && t.Escrow.ReleaseDate == nil {
		release := now.AddDate(0, 0, t.Escrow.HoldPeriodDays)
		t.Escrow.ReleaseDate = &release
	}
	return nil
}

func resolveDisputeRecord(t *Transaction, resolver, note string, refundAmount int64, at time.Time) error {
	if t.Dispute == nil || t.Dispute.Resolution.Status != ResolutionPending {
		return fmt.Errorf("%w: no open dispute to resolve", ErrInvalidTransition)
	}
	t.Dispute.Resolution = Resolution{
		Status:       ResolutionResolved,
		ResolvedBy:   resolver,
		Note:         note,
		RefundAmount: refundAmount,
		ResolvedAt:   &at,
	}
	return nil
}

// markReleased stamps the escrow sub-record; written atomically with the
// completed transition so isReleased and the status can never disagree.
func markReleased(t *Transaction, actor string, at time.Time) {
	t.Escrow.Released = true
	t.Escrow.ReleasedAt = &at
	t.Escrow.ReleasedBy = actor
}

func lastActor(t *Transaction) string {
	if len(t.Timeline) == 0 {
		return ""
	}
	return t.Timeline[len(t.Timeline)-1].Actor
}
