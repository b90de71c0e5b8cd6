// Package gateway abstracts the external payment gateway the settlement
// engine instructs for refunds and seller disbursements. Card/UPI/net-banking
// capture happens upstream; settlement only ever moves already-captured money.
package gateway

import (
	"context"
	"fmt"
)

// Error is a failure reported by the payment gateway. Retryable errors may be
// retried by the caller with backoff; non-retryable ones must be surfaced.
type Error struct {
	Code      string
	Message   string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("gateway %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("gateway %s", e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// RefundRequest returns captured funds to the buyer.
type RefundRequest struct {
	// PaymentRef is the gateway's identifier for the original charge.
	PaymentRef string
	Amount     int64
	Currency   string
	Reason     string
	// IdempotencyKey makes retries safe: the gateway must not refund twice
	// for the same key.
	IdempotencyKey string
}

// RefundResult is the gateway's acknowledgement of a refund.
type RefundResult struct {
	RefundID string
}

// DisburseRequest pays escrowed funds out to the seller.
type DisburseRequest struct {
	SellerRef      string
	Amount         int64
	Currency       string
	TransactionRef string
	IdempotencyKey string
}

// DisburseResult is the gateway's acknowledgement of a payout.
type DisburseResult struct {
	PayoutID string
}

// Gateway is the settlement engine's view of the payment processor.
// Implementations must honor idempotency keys and respect ctx deadlines.
type Gateway interface {
	Refund(ctx context.Context, req RefundRequest) (RefundResult, error)
	Disburse(ctx context.Context, req DisburseRequest) (DisburseResult, error)
}
