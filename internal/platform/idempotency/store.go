package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// DefaultTTL is the default duration that idempotency records are retained.
const DefaultTTL = 24 * time.Hour

// Record captures the stored outcome of a previously completed request. Response is
// the serialized result replayed to retries; ResourceID identifies the entity the
// first attempt created.
type Record struct {
	Scope      string
	Key        string
	ResourceID string
	Response   []byte
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// Store persists idempotency records. Scope partitions keys by actor (the business
// placing the order) so distinct clients cannot collide or replay each other's
// results.
type Store interface {
	// Get returns the stored record for (scope, key) when present and unexpired.
	Get(ctx context.Context, scope, key string, now time.Time) (Record, bool, error)
	// Save stores the outcome of a completed request. Saving an already stored key is
	// a no-op that keeps the first writer's record.
	Save(ctx context.Context, record Record, ttl time.Duration) error
	// CleanupExpired removes up to limit expired records, returning how many were removed.
	CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

func compositeKey(scope, key string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(scope) + "::" + strings.TrimSpace(key)))
	return hex.EncodeToString(sum[:])
}
