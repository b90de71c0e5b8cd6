package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bazaarhq/settld/internal/circuitbreaker"
)

type scriptedGateway struct {
	refundErr   error
	disburseErr error
	calls       int
}

func (s *scriptedGateway) Refund(ctx context.Context, req RefundRequest) (RefundResult, error) {
	s.calls++
	if s.refundErr != nil {
		return RefundResult{}, s.refundErr
	}
	return RefundResult{RefundID: "re_1"}, nil
}

func (s *scriptedGateway) Disburse(ctx context.Context, req DisburseRequest) (DisburseResult, error) {
	s.calls++
	if s.disburseErr != nil {
		return DisburseResult{}, s.disburseErr
	}
	return DisburseResult{PayoutID: "po_1"}, nil
}

func TestBreakerGateway_OpensAfterFailures(t *testing.T) {
	inner := &scriptedGateway{refundErr: &Error{Code: "processor_down", Retryable: true}}
	gw := WithBreaker(inner, circuitbreaker.New(2, time.Minute))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := gw.Refund(ctx, RefundRequest{}); err == nil {
			t.Fatal("expected failure")
		}
	}
	callsBeforeOpen := inner.calls

	_, err := gw.Refund(ctx, RefundRequest{})
	var gwErr *Error
	if !errors.As(err, &gwErr) || gwErr.Code != "circuit_open" || !gwErr.Retryable {
		t.Fatalf("got %v, want retryable circuit_open", err)
	}
	if inner.calls != callsBeforeOpen {
		t.Error("open circuit still reached the processor")
	}
}

func TestBreakerGateway_OperationsIndependent(t *testing.T) {
	inner := &scriptedGateway{refundErr: &Error{Code: "processor_down"}}
	gw := WithBreaker(inner, circuitbreaker.New(1, time.Minute))
	ctx := context.Background()

	if _, err := gw.Refund(ctx, RefundRequest{}); err == nil {
		t.Fatal("expected refund failure")
	}
	if _, err := gw.Disburse(ctx, DisburseRequest{}); err != nil {
		t.Errorf("disburse blocked by refund circuit: %v", err)
	}
}

func TestBreakerGateway_SuccessKeepsClosed(t *testing.T) {
	inner := &scriptedGateway{}
	gw := WithBreaker(inner, circuitbreaker.New(1, time.Minute))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := gw.Disburse(ctx, DisburseRequest{}); err != nil {
			t.Fatalf("disburse %d: %v", i, err)
		}
	}
}
