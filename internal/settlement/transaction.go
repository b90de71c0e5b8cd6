// Package settlement implements escrow-based transaction settlement for the
// marketplace: it holds the buyer's payment, schedules timed release to the
// seller, and handles disputes and refunds.
//
// Flow:
//  1. Buyer pays for a listing → transaction created in pending
//  2. Gateway confirms capture → processing → held_in_escrow
//  3. Hold period elapses → sweeper auto-releases → completed
//  4. Buyer disputes before release → disputed → resolution
//  5. Refund (direct or via dispute) → refunded
package settlement

import (
	"encoding/json"
	"time"

	"github.com/bazaarhq/settld/internal/fees"
)

// Status is the settlement state of a transaction.
type Status string

const (
	StatusPending      Status = "pending"
	StatusProcessing   Status = "processing"
	StatusHeldInEscrow Status = "held_in_escrow"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
	StatusCancelled    Status = "cancelled"
	StatusRefunded     Status = "refunded"
	StatusDisputed     Status = "disputed"
)

// ResolutionStatus is the state of a dispute's resolution sub-record.
type ResolutionStatus string

const (
	ResolutionPending   ResolutionStatus = "pending"
	ResolutionResolved  ResolutionStatus = "resolved"
	ResolutionEscalated ResolutionStatus = "escalated"
)

// DefaultHoldPeriodDays is the escrow hold applied when a request doesn't
// specify one.
const DefaultHoldPeriodDays = 7

// Amount carries the negotiated price for a listing.
type Amount struct {
	Original int64  `json:"original"` // pre-negotiation listing price
	Final    int64  `json:"final"`    // agreed price, charged to the buyer
	Currency string `json:"currency"`
}

// GatewayRef links a transaction to the external payment gateway. The
// identifiers are opaque strings owned by the gateway.
type GatewayRef struct {
	Name      string `json:"name,omitempty"`
	OrderID   string `json:"orderId,omitempty"`
	PaymentID string `json:"paymentId,omitempty"`
}

// EscrowDetail tracks the hold on the buyer's funds.
type EscrowDetail struct {
	Enabled        bool       `json:"isEscrow"`
	HoldPeriodDays int        `json:"holdPeriodDays"`
	ReleaseDate    *time.Time `json:"releaseDate,omitempty"` // set on first entry into held_in_escrow
	Released       bool       `json:"isReleased"`
	ReleasedAt     *time.Time `json:"releasedAt,omitempty"`
	ReleasedBy     string     `json:"releasedBy,omitempty"`
	AutoRelease    bool       `json:"autoReleaseEnabled"`
}

// Resolution records how a dispute was settled.
type Resolution struct {
	Status       ResolutionStatus `json:"status"`
	ResolvedBy   string           `json:"resolvedBy,omitempty"`
	Note         string           `json:"note,omitempty"`
	RefundAmount int64            `json:"refundAmount,omitempty"`
	ResolvedAt   *time.Time       `json:"resolvedAt,omitempty"`
}

// DisputeDetail exists only once a dispute has been initiated.
type DisputeDetail struct {
	RaisedBy    string     `json:"raisedBy"`
	Reason      string     `json:"reason"`
	Description string     `json:"description,omitempty"`
	Evidence    []string   `json:"evidence,omitempty"`
	RaisedAt    time.Time  `json:"raisedAt"`
	Resolution  Resolution `json:"resolution"`
}

// RefundDetail exists only once a refund has been issued.
type RefundDetail struct {
	Amount          int64     `json:"refundAmount"`
	Reason          string    `json:"refundReason,omitempty"`
	RefundedAt      time.Time `json:"refundedAt"`
	RefundedBy      string    `json:"refundedBy,omitempty"`
	GatewayRefundID string    `json:"gatewayRefundId,omitempty"`
}

// TimelineEntry is one audit record of a status change.
type TimelineEntry struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note,omitempty"`
	Actor     string    `json:"actor,omitempty"`
}

// Transaction is the unit of settlement between a buyer and a seller for one
// listing. It is a single aggregate: sub-records are embedded so every update
// persists as one atomic row write.
type Transaction struct {
	ID      string `json:"id"`
	Version int64  `json:"version"` // optimistic concurrency guard, bumped by the store

	BuyerID   string `json:"buyerId"`
	SellerID  string `json:"sellerId"`
	ListingID string `json:"listingId"`

	Amount        Amount      `json:"amount"`
	Fees          fees.Breakdown `json:"fees"`
	PaymentMethod fees.Method `json:"paymentMethod"`
	Gateway       GatewayRef  `json:"gateway"`

	Status  Status         `json:"status"`
	Escrow  EscrowDetail   `json:"escrow"`
	Dispute *DisputeDetail `json:"dispute,omitempty"`
	Refund  *RefundDetail  `json:"refund,omitempty"`

	// Fulfillment is delivery/pickup metadata owned by the fulfillment flow;
	// settlement passes it through untouched.
	Fulfillment json.RawMessage `json:"fulfillment,omitempty"`

	Timeline []TimelineEntry `json:"timeline"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsTerminal returns true if the transaction is in a final state.
func (t *Transaction) IsTerminal() bool {
	switch t.Status {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// Disputed reports whether the transaction has an unresolved dispute.
// A resolved dispute no longer blocks auto-release.
func (t *Transaction) Disputed() bool {
	return t.Dispute != nil && t.Dispute.Resolution.Status == ResolutionPending
}

// TotalAmount is what the buyer is charged: the agreed price plus fees.
// The seller is disbursed Amount.Final in full; fees stay with the platform.
func (t *Transaction) TotalAmount() int64 {
	return t.Amount.Final + t.Fees.Total
}

// ReleasableAt reports whether the transaction is eligible for auto-release
// at the given instant.
func (t *Transaction) ReleasableAt(now time.Time) bool {
	return t.Status == StatusHeldInEscrow &&
		t.Escrow.AutoRelease &&
		!t.Escrow.Released &&
		t.Escrow.ReleaseDate != nil &&
		!t.Escrow.ReleaseDate.After(now) &&
		!t.Disputed()
}

// recomputeFees overwrites the stored fee fields from the current final
// amount and payment method. Fees are never edited independently.
func (t *Transaction) recomputeFees() {
	t.Fees = fees.Compute(t.Amount.Final, t.PaymentMethod)
}

// appendTimeline records a status change. Exactly one entry per change;
// entries are never mutated or reordered.
func (t *Transaction) appendTimeline(status Status, at time.Time, note, actor string) {
	t.Timeline = append(t.Timeline, TimelineEntry{
		Status:    status,
		Timestamp: at,
		Note:      note,
		Actor:     actor,
	})
}

// clone returns a deep copy so store callers never share mutable state.
func (t *Transaction) clone() *Transaction {
	cp := *t
	if t.Dispute != nil {
		d := *t.Dispute
		if t.Dispute.Evidence != nil {
			d.Evidence = make([]string, len(t.Dispute.Evidence))
			copy(d.Evidence, t.Dispute.Evidence)
		}
		cp.Dispute = &d
	}
	if t.Refund != nil {
		r := *t.Refund
		cp.Refund = &r
	}
	if t.Fulfillment != nil {
		cp.Fulfillment = make(json.RawMessage, len(t.Fulfillment))
		copy(cp.Fulfillment, t.Fulfillment)
	}
	if t.Timeline != nil {
		cp.Timeline = make([]TimelineEntry, len(t.Timeline))
		copy(cp.Timeline, t.Timeline)
	}
	return &cp
}
