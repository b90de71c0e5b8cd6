package settlement

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bazaarhq/settld/internal/fees"
)

// PostgresStore persists transactions in PostgreSQL. Each transaction is one
// row: escrow fields are flat columns (the sweep filters on them), dispute,
// refund, fulfillment and the timeline are JSONB. Every update is a single
// version-guarded row write.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed transaction store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, t *Transaction) error {
	dispute, refund, timeline, err := marshalSubRecords(t)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO transactions (
			id, version, buyer_id, seller_id, listing_id,
			amount_original, amount_final, currency,
			fee_platform, fee_payment, fee_total, payment_method,
			gateway_name, gateway_order_id, gateway_payment_id,
			status, is_escrow, hold_period_days, release_date,
			is_released, released_at, released_by, auto_release,
			dispute, refund, fulfillment, timeline,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8,
			$9, $10, $11, $12,
			$13, $14, $15,
			$16, $17, $18, $19,
			$20, $21, $22, $23,
			$24, $25, $26, $27,
			$28, $29
		)`,
		t.ID, t.Version, t.BuyerID, t.SellerID, t.ListingID,
		t.Amount.Original, t.Amount.Final, t.Amount.Currency,
		t.Fees.Platform, t.Fees.Payment, t.Fees.Total, string(t.PaymentMethod),
		nullString(t.Gateway.Name), nullString(t.Gateway.OrderID), nullString(t.Gateway.PaymentID),
		string(t.Status), t.Escrow.Enabled, t.Escrow.HoldPeriodDays, nullTime(t.Escrow.ReleaseDate),
		t.Escrow.Released, nullTime(t.Escrow.ReleasedAt), nullString(t.Escrow.ReleasedBy), t.Escrow.AutoRelease,
		dispute, refund, nullBytes(t.Fulfillment), timeline,
		t.CreatedAt, t.UpdatedAt,
	)
	return err
}

const txnColumns = `id, version, buyer_id, seller_id, listing_id,
	       amount_original, amount_final, currency,
	       fee_platform, fee_payment, fee_total, payment_method,
	       gateway_name, gateway_order_id, gateway_payment_id,
	       status, is_escrow, hold_period_days, release_date,
	       is_released, released_at, released_by, auto_release,
	       dispute, refund, fulfillment, timeline,
	       created_at, updated_at`

func (p *PostgresStore) Get(ctx context.Context, id string) (*Transaction, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+txnColumns+` FROM transactions WHERE id = $1`, id)

	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return t, err
}

func (p *PostgresStore) Update(ctx context.Context, t *Transaction, expectedVersion int64) error {
	dispute, refund, timeline, err := marshalSubRecords(t)
	if err != nil {
		return err
	}
	result, err := p.db.ExecContext(ctx, `
		UPDATE transactions SET
			version = version + 1,
			amount_original = $1, amount_final = $2,
			fee_platform = $3, fee_payment = $4, fee_total = $5, payment_method = $6,
			gateway_name = $7, gateway_order_id = $8, gateway_payment_id = $9,
			status = $10, is_escrow = $11, hold_period_days = $12, release_date = $13,
			is_released = $14, released_at = $15, released_by = $16, auto_release = $17,
			dispute = $18, refund = $19, fulfillment = $20, timeline = $21,
			updated_at = $22
		WHERE id = $23 AND version = $24`,
		t.Amount.Original, t.Amount.Final,
		t.Fees.Platform, t.Fees.Payment, t.Fees.Total, string(t.PaymentMethod),
		nullString(t.Gateway.Name), nullString(t.Gateway.OrderID), nullString(t.Gateway.PaymentID),
		string(t.Status), t.Escrow.Enabled, t.Escrow.HoldPeriodDays, nullTime(t.Escrow.ReleaseDate),
		t.Escrow.Released, nullTime(t.Escrow.ReleasedAt), nullString(t.Escrow.ReleasedBy), t.Escrow.AutoRelease,
		dispute, refund, nullBytes(t.Fulfillment), timeline,
		t.UpdatedAt,
		t.ID, expectedVersion,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		// Either the row is gone or the version moved. Distinguish so callers
		// can tell a lost race from a bad ID.
		var exists bool
		if err := p.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM transactions WHERE id = $1)`, t.ID,
		).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrConcurrencyConflict
	}
	t.Version = expectedVersion + 1
	return nil
}

func (p *PostgresStore) ListReleasable(ctx context.Context, now time.Time, limit int) ([]*Transaction, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+txnColumns+`
		FROM transactions
		WHERE status = 'held_in_escrow'
		  AND auto_release
		  AND NOT is_released
		  AND release_date IS NOT NULL
		  AND release_date <= $1
		  AND (dispute IS NULL OR dispute->'resolution'->>'status' <> 'pending')
		ORDER BY release_date
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanTransactions(rows)
}

func (p *PostgresStore) ListByParty(ctx context.Context, userID string, limit int) ([]*Transaction, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+txnColumns+`
		FROM transactions
		WHERE buyer_id = $1 OR seller_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanTransactions(rows)
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(s scanner) (*Transaction, error) {
	t := &Transaction{}
	var (
		paymentMethod    string
		gatewayName      sql.NullString
		gatewayOrderID   sql.NullString
		gatewayPaymentID sql.NullString
		status           string
		releaseDate      sql.NullTime
		releasedAt       sql.NullTime
		releasedBy       sql.NullString
		disputeJSON      []byte
		refundJSON       []byte
		fulfillmentJSON  []byte
		timelineJSON     []byte
	)

	err := s.Scan(
		&t.ID, &t.Version, &t.BuyerID, &t.SellerID, &t.ListingID,
		&t.Amount.Original, &t.Amount.Final, &t.Amount.Currency,
		&t.Fees.Platform, &t.Fees.Payment, &t.Fees.Total, &paymentMethod,
		&gatewayName, &gatewayOrderID, &gatewayPaymentID,
		&status, &t.Escrow.Enabled, &t.Escrow.HoldPeriodDays, &releaseDate,
		&t.Escrow.Released, &releasedAt, &releasedBy, &t.Escrow.AutoRelease,
		&disputeJSON, &refundJSON, &fulfillmentJSON, &timelineJSON,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.PaymentMethod = fees.Method(paymentMethod)
	t.Status = Status(status)
	t.Gateway.Name = gatewayName.String
	t.Gateway.OrderID = gatewayOrderID.String
	t.Gateway.PaymentID = gatewayPaymentID.String
	t.Escrow.ReleasedBy = releasedBy.String
	if releaseDate.Valid {
		t.Escrow.ReleaseDate = &releaseDate.Time
	}
	if releasedAt.Valid {
		t.Escrow.ReleasedAt = &releasedAt.Time
	}
	if len(disputeJSON) > 0 {
		if err := json.Unmarshal(disputeJSON, &t.Dispute); err != nil {
			return nil, fmt.Errorf("decode dispute for %s: %w", t.ID, err)
		}
	}
	if len(refundJSON) > 0 {
		if err := json.Unmarshal(refundJSON, &t.Refund); err != nil {
			return nil, fmt.Errorf("decode refund for %s: %w", t.ID, err)
		}
	}
	if len(fulfillmentJSON) > 0 {
		t.Fulfillment = json.RawMessage(fulfillmentJSON)
	}
	if len(timelineJSON) > 0 {
		if err := json.Unmarshal(timelineJSON, &t.Timeline); err != nil {
			return nil, fmt.Errorf("decode timeline for %s: %w", t.ID, err)
		}
	}

	return t, nil
}

func scanTransactions(rows *sql.Rows) ([]*Transaction, error) {
	var result []*Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func marshalSubRecords(t *Transaction) (dispute, refund, timeline []byte, err error) {
	if t.Dispute != nil {
		if dispute, err = json.Marshal(t.Dispute); err != nil {
			return nil, nil, nil, fmt.Errorf("encode dispute: %w", err)
		}
	}
	if t.Refund != nil {
		if refund, err = json.Marshal(t.Refund); err != nil {
			return nil, nil, nil, fmt.Errorf("encode refund: %w", err)
		}
	}
	if timeline, err = json.Marshal(t.Timeline); err != nil {
		return nil, nil, nil, fmt.Errorf("encode timeline: %w", err)
	}
	if t.Timeline == nil {
		timeline = []byte("[]")
	}
	return dispute, refund, timeline, nil
}

// nullString converts an empty Go string to sql.NullString.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullTime converts a *time.Time to sql.NullTime.
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// nullBytes converts a nil byte slice to untyped nil so the driver writes
// SQL NULL instead of an empty JSONB document.
func nullBytes(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}

// Compile-time assertion that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
