package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the durable idempotency store. The primary key on
// (scope, idempotency_key) makes the insert a true once-only gate across service
// instances and restarts, which the in-memory store cannot provide.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed idempotency store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, errors.New("idempotency: pgx pool is required")
	}
	return &PostgresStore{pool: pool}, nil
}

// Get implements the Store interface.
func (s *PostgresStore) Get(ctx context.Context, scope, key string, now time.Time) (Record, bool, error) {
	const query = `
		SELECT scope, idempotency_key, resource_id, response, created_at, expires_at
		FROM idempotency_records
		WHERE scope = $1 AND idempotency_key = $2 AND expires_at > $3`

	var record Record
	err := s.pool.QueryRow(ctx, query, scope, key, now.UTC()).Scan(
		&record.Scope, &record.Key, &record.ResourceID, &record.Response,
		&record.CreatedAt, &record.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("idempotency get: %w", err)
	}
	return record, true, nil
}

// Save implements the Store interface. ON CONFLICT DO NOTHING preserves the first
// writer's record so concurrent retries replay the original response.
func (s *PostgresStore) Save(ctx context.Context, record Record, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := record.CreatedAt.UTC()
	if now.IsZero() {
		now = time.Now().UTC()
	}

	const query = `
		INSERT INTO idempotency_records (scope, idempotency_key, resource_id, response, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (scope, idempotency_key) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		record.Scope, record.Key, record.ResourceID, record.Response, now, now.Add(ttl),
	)
	if err != nil {
		return fmt.Errorf("idempotency save: %w", err)
	}
	return nil
}

// CleanupExpired implements the Store interface.
func (s *PostgresStore) CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 200
	}
	const query = `
		DELETE FROM idempotency_records
		WHERE ctid IN (
			SELECT ctid FROM idempotency_records WHERE expires_at <= $1 LIMIT $2
		)`

	tag, err := s.pool.Exec(ctx, query, now.UTC(), limit)
	if err != nil {
		return 0, fmt.Errorf("idempotency cleanup: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
