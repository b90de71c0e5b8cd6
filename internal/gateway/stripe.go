package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
)

// StripeGateway implements Gateway on top of Stripe: refunds against the
// original PaymentIntent, disbursements as transfers to the seller's
// connected account.
type StripeGateway struct {
	api *client.API
}

// NewStripeGateway creates a Stripe-backed gateway with the given secret key.
func NewStripeGateway(apiKey string) *StripeGateway {
	api := &client.API{}
	api.Init(apiKey, nil)
	return &StripeGateway{api: api}
}

func (g *StripeGateway) Refund(ctx context.Context, req RefundRequest) (RefundResult, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.PaymentRef),
		Amount:        stripe.Int64(req.Amount),
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	if req.Reason != "" {
		params.AddMetadata("reason", req.Reason)
	}

	ref, err := g.api.Refunds.New(params)
	if err != nil {
		return RefundResult{}, wrapStripeErr("refund_failed", err)
	}
	return RefundResult{RefundID: ref.ID}, nil
}

func (g *StripeGateway) Disburse(ctx context.Context, req DisburseRequest) (DisburseResult, error) {
	params := &stripe.TransferParams{
		Amount:        stripe.Int64(req.Amount),
		Currency:      stripe.String(strings.ToLower(req.Currency)),
		Destination:   stripe.String(req.SellerRef),
		TransferGroup: stripe.String(req.TransactionRef),
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	tr, err := g.api.Transfers.New(params)
	if err != nil {
		return DisburseResult{}, wrapStripeErr("disburse_failed", err)
	}
	return DisburseResult{PayoutID: tr.ID}, nil
}

// wrapStripeErr converts a Stripe error into a gateway Error with a
// retryable classification: server-side and rate-limit failures are worth
// retrying, declined or malformed requests are not.
func wrapStripeErr(code string, err error) *Error {
	var se *stripe.Error
	if errors.As(err, &se) {
		return &Error{
			Code:      code,
			Message:   se.Msg,
			Retryable: se.HTTPStatusCode == http.StatusTooManyRequests || se.HTTPStatusCode >= 500,
			Err:       err,
		}
	}
	// Transport-level failure (timeout, connection reset): retryable.
	return &Error{Code: code, Message: err.Error(), Retryable: true, Err: err}
}

// Compile-time assertion that StripeGateway implements Gateway.
var _ Gateway = (*StripeGateway)(nil)
