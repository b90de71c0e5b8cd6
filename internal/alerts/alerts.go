// Package alerts surfaces fatal settlement inconsistencies to operators.
//
// An alert means money and record state may disagree (e.g. an escrow was
// claimed as completed but the payout failed). Alerts are never the basis for
// automatic compensation; a human resolves them.
package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/bazaarhq/settld/internal/idgen"
	"github.com/bazaarhq/settld/internal/metrics"
)

// Alert kinds.
const (
	KindDisburseFailed  = "disburse_failed_after_claim"
	KindWriteFailed     = "write_failed_after_gateway"
	KindSweepItemFailed = "sweep_item_failed"
)

// Alert is one operator notification.
type Alert struct {
	ID            string            `json:"id"`
	Kind          string            `json:"kind"`
	TransactionID string            `json:"transactionId"`
	Message       string            `json:"message"`
	Detail        map[string]string `json:"detail,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
}

// Alerter raises operator alerts. Implementations must never block the
// settlement path for long or return errors into it.
type Alerter interface {
	Raise(ctx context.Context, kind, transactionID, message string, detail map[string]string)
}

// LogAlerter writes alerts to the structured log at error level. It is the
// default when no operator webhook is configured.
type LogAlerter struct {
	Logger *slog.Logger
}

func (a *LogAlerter) Raise(ctx context.Context, kind, transactionID, message string, detail map[string]string) {
	metrics.OperatorAlertsTotal.WithLabelValues(kind).Inc()
	attrs := []any{"kind", kind, "transaction_id", transactionID}
	for k, v := range detail {
		attrs = append(attrs, k, v)
	}
	a.Logger.Error("OPERATOR ALERT: "+message, attrs...)
}

// WebhookAlerter posts alerts as JSON to an operator channel (pager bridge,
// chat webhook) and also logs them, so a dead webhook never hides an alert.
type WebhookAlerter struct {
	URL    string
	Logger *slog.Logger
	Client *http.Client
}

// NewWebhookAlerter creates a webhook alerter with a bounded client timeout.
func NewWebhookAlerter(url string, logger *slog.Logger) *WebhookAlerter {
	return &WebhookAlerter{
		URL:    url,
		Logger: logger,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (a *WebhookAlerter) Raise(ctx context.Context, kind, transactionID, message string, detail map[string]string) {
	metrics.OperatorAlertsTotal.WithLabelValues(kind).Inc()
	a.Logger.Error("OPERATOR ALERT: "+message, "kind", kind, "transaction_id", transactionID)

	alert := Alert{
		ID:            idgen.WithPrefix("alrt_"),
		Kind:          kind,
		TransactionID: transactionID,
		Message:       message,
		Detail:        detail,
		CreatedAt:     time.Now(),
	}
	body, err := json.Marshal(alert)
	if err != nil {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.URL, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.Client.Do(req)
	if err != nil {
		a.Logger.Warn("alert webhook post failed", "error", err)
		return
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		a.Logger.Warn("alert webhook rejected", "status", resp.StatusCode)
	}
}
