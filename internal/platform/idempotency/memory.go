package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryStore provides an in-memory implementation useful for testing and local
// development. It cannot close the duplicate-creation race across multiple service
// instances; deployments with more than one replica must use the durable store.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewMemoryStore constructs an empty memory-backed idempotency store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// Get implements the Store interface.
func (s *MemoryStore) Get(_ context.Context, scope, key string, now time.Time) (Record, bool, error) {
	now = now.UTC()
	s.mu.Lock()
	defer s.mu.Unlock()

	id := compositeKey(scope, key)
	record, ok := s.records[id]
	if !ok {
		return Record{}, false, nil
	}
	if !record.ExpiresAt.IsZero() && !now.Before(record.ExpiresAt) {
		delete(s.records, id)
		return Record{}, false, nil
	}
	return record, true, nil
}

// Save implements the Store interface.
func (s *MemoryStore) Save(_ context.Context, record Record, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := record.CreatedAt.UTC()
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := compositeKey(record.Scope, record.Key)
	if existing, ok := s.records[id]; ok && now.Before(existing.ExpiresAt) {
		// First writer wins; retries replay the original record.
		return nil
	}

	record.CreatedAt = now
	record.ExpiresAt = now.Add(ttl)
	if len(record.Response) > 0 {
		record.Response = append([]byte(nil), record.Response...)
	}
	s.records[id] = record
	return nil
}

// CleanupExpired implements the Store interface.
func (s *MemoryStore) CleanupExpired(_ context.Context, now time.Time, limit int) (int, error) {
	now = now.UTC()
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > len(s.records) {
		limit = len(s.records)
	}

	removed := 0
	for id, record := range s.records {
		if record.ExpiresAt.IsZero() || now.Before(record.ExpiresAt) {
			continue
		}
		delete(s.records, id)
		removed++
		if removed >= limit {
			break
		}
	}
	return removed, nil
}
