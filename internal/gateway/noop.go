package gateway

import (
	"context"
	"log/slog"

	"github.com/bazaarhq/settld/internal/idgen"
)

// Noop is a gateway that acknowledges every instruction without moving money.
// Used in development mode when no gateway credentials are configured.
type Noop struct {
	Logger *slog.Logger
}

func (n *Noop) Refund(ctx context.Context, req RefundRequest) (RefundResult, error) {
	id := idgen.WithPrefix("re_dev_")
	n.Logger.Info("noop gateway refund", "payment_ref", req.PaymentRef, "amount", req.Amount, "refund_id", id)
	return RefundResult{RefundID: id}, nil
}

func (n *Noop) Disburse(ctx context.Context, req DisburseRequest) (DisburseResult, error) {
	id := idgen.WithPrefix("po_dev_")
	n.Logger.Info("noop gateway disbursement", "seller_ref", req.SellerRef, "amount", req.Amount, "payout_id", id)
	return DisburseResult{PayoutID: id}, nil
}

var _ Gateway = (*Noop)(nil)
