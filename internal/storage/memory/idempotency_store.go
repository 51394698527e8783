package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

const defaultIdempotencyTTL = 24 * time.Hour

type idempotencyEntry struct {
	hash    string
	orderID string
	done    bool
	ttlAt   time.Time
}

// IdempotencyStore — in-memory реализация domain.IdempotencyStore. Просроченные
// ключи игнорируются при чтении и удаляются через DeleteExpired.
type IdempotencyStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[string]idempotencyEntry
	now   func() time.Time
}

// NewIdempotencyStore создаёт in-memory хранилище ключей идемпотентности.
func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return &IdempotencyStore{
		ttl:   ttl,
		items: make(map[string]idempotencyEntry),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *IdempotencyStore) Begin(_ context.Context, key, requestHash string) (string, bool, error) {
	key = strings.TrimSpace(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if entry, ok := s.items[key]; ok && entry.ttlAt.After(now) {
		if entry.hash != requestHash {
			return "", false, domain.ErrIdempotencyKeyReused
		}
		if !entry.done {
			return "", false, domain.ErrIdempotencyInProgress
		}
		return entry.orderID, true, nil
	}

	s.items[key] = idempotencyEntry{hash: requestHash, ttlAt: now.Add(s.ttl)}
	return "", false, nil
}

func (s *IdempotencyStore) Complete(_ context.Context, key, requestHash, orderID string) error {
	key = strings.TrimSpace(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[key] = idempotencyEntry{hash: requestHash, orderID: orderID, done: true, ttlAt: s.now().Add(s.ttl)}
	return nil
}

func (s *IdempotencyStore) Abort(_ context.Context, key string) error {
	key = strings.TrimSpace(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.items[key]; ok && !entry.done {
		delete(s.items, key)
	}
	return nil
}

// DeleteExpired удаляет до limit ключей, чей TTL истёк к before.
func (s *IdempotencyStore) DeleteExpired(before time.Time, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for key, entry := range s.items {
		if limit > 0 && deleted >= limit {
			break
		}
		if !entry.ttlAt.After(before) {
			delete(s.items, key)
			deleted++
		}
	}
	return deleted, nil
}

// Len возвращает число хранимых ключей, включая просроченные.
func (s *IdempotencyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

var _ domain.IdempotencyStore = (*IdempotencyStore)(nil)
