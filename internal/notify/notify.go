// Package notify emits transaction lifecycle events to the notification
// service. Delivery is fire-and-forget: a notification failure must never
// fail or delay a settlement operation.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/bazaarhq/settld/internal/idgen"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	notifyEmitTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "settld",
		Subsystem: "notify",
		Name:      "emit_total",
		Help:      "Total notification emit attempts by event type.",
	}, []string{"event_type"})

	notifyEmitErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "settld",
		Subsystem: "notify",
		Name:      "emit_errors_total",
		Help:      "Total notification emit failures by event type.",
	}, []string{"event_type"})
)

func init() {
	prometheus.MustRegister(notifyEmitTotal, notifyEmitErrors)
}

// Event is a settlement lifecycle notification.
type Event struct {
	ID            string            `json:"id"`
	Type          string            `json:"type"`
	TransactionID string            `json:"transactionId"`
	Timestamp     time.Time         `json:"timestamp"`
	Data          map[string]string `json:"data,omitempty"`
}

// Emitter posts events to the notification service's ingest endpoint.
// All methods are fire-and-forget: errors are logged but never returned.
type Emitter struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewEmitter creates an emitter. An empty URL disables emission entirely
// (useful in dev and tests).
func NewEmitter(url string, logger *slog.Logger) *Emitter {
	return &Emitter{
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

// StatusChanged emits a transaction.status_changed event.
func (e *Emitter) StatusChanged(transactionID, from, to, actor string) {
	e.emit("transaction.status_changed", transactionID, map[string]string{
		"from":  from,
		"to":    to,
		"actor": actor,
	})
}

func (e *Emitter) emit(eventType, transactionID string, data map[string]string) {
	if e == nil || e.url == "" {
		return
	}
	notifyEmitTotal.WithLabelValues(eventType).Inc()

	event := Event{
		ID:            idgen.WithPrefix("evt_"),
		Type:          eventType,
		TransactionID: transactionID,
		Timestamp:     time.Now(),
		Data:          data,
	}
	body, err := json.Marshal(event)
	if err != nil {
		notifyEmitErrors.WithLabelValues(eventType).Inc()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		notifyEmitErrors.WithLabelValues(eventType).Inc()
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		notifyEmitErrors.WithLabelValues(eventType).Inc()
		e.logger.Warn("notification emit failed", "event", eventType, "transaction_id", transactionID, "error", err)
		return
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		notifyEmitErrors.WithLabelValues(eventType).Inc()
		e.logger.Warn("notification rejected", "event", eventType, "status", resp.StatusCode)
	}
}
