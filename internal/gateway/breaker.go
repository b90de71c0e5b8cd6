package gateway

import (
	"context"

	"github.com/bazaarhq/settld/internal/circuitbreaker"
)

// Breaker operation keys.
const (
	opRefund   = "refund"
	opDisburse = "disburse"
)

// BreakerGateway wraps a gateway with a circuit breaker per operation. When
// the processor fails repeatedly the circuit opens and calls are rejected
// immediately with a retryable error instead of timing out one by one.
type BreakerGateway struct {
	inner   Gateway
	breaker *circuitbreaker.Breaker
}

// WithBreaker wraps gw with the given circuit breaker.
func WithBreaker(gw Gateway, breaker *circuitbreaker.Breaker) *BreakerGateway {
	return &BreakerGateway{inner: gw, breaker: breaker}
}

func (b *BreakerGateway) Refund(ctx context.Context, req RefundRequest) (RefundResult, error) {
	if !b.breaker.Allow(opRefund) {
		return RefundResult{}, &Error{
			Code:      "circuit_open",
			Message:   "refunds suspended after repeated gateway failures",
			Retryable: true,
		}
	}
	result, err := b.inner.Refund(ctx, req)
	b.record(opRefund, err)
	return result, err
}

func (b *BreakerGateway) Disburse(ctx context.Context, req DisburseRequest) (DisburseResult, error) {
	if !b.breaker.Allow(opDisburse) {
		return DisburseResult{}, &Error{
			Code:      "circuit_open",
			Message:   "disbursements suspended after repeated gateway failures",
			Retryable: true,
		}
	}
	result, err := b.inner.Disburse(ctx, req)
	b.record(opDisburse, err)
	return result, err
}

func (b *BreakerGateway) record(operation string, err error) {
	if err != nil {
		b.breaker.RecordFailure(operation)
		return
	}
	b.breaker.RecordSuccess(operation)
}

var _ Gateway = (*BreakerGateway)(nil)
