package directory

import (
	"context"
	"database/sql"
)

// PostgresResolver checks identifiers against the marketplace's users and
// listings tables.
type PostgresResolver struct {
	db *sql.DB
}

// NewPostgresResolver creates a PostgreSQL-backed resolver.
func NewPostgresResolver(db *sql.DB) *PostgresResolver {
	return &PostgresResolver{db: db}
}

func (p *PostgresResolver) UserExists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID,
	).Scan(&exists)
	return exists, err
}

func (p *PostgresResolver) ListingExists(ctx context.Context, listingID string) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM listings WHERE id = $1)`, listingID,
	).Scan(&exists)
	return exists, err
}

// Compile-time assertion that PostgresResolver implements Resolver.
var _ Resolver = (*PostgresResolver)(nil)
