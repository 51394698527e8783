package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

const (
	keyPrefix        = "fulfillment:idem:create-order:%s"
	processingMarker = "processing"
	// DefaultTTL — сколько хранится связь ключа с заказом.
	DefaultTTL = 24 * time.Hour
	// DefaultLockTTL ограничивает жизнь незавершённого ключа, если процесс упал.
	DefaultLockTTL = time.Minute
)

// IdempotencyStore хранит idempotency-key запросов CreateOrder в Redis.
type IdempotencyStore struct {
	rdb     *goredis.Client
	ttl     time.Duration
	lockTTL time.Duration
}

// NewClient создаёт клиент Redis.
func NewClient(addr string) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// NewIdempotencyStore создаёт хранилище ключей. Нулевые TTL заменяются значениями по умолчанию.
func NewIdempotencyStore(rdb *goredis.Client, ttl, lockTTL time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if lockTTL <= 0 {
		lockTTL = DefaultLockTTL
	}
	return &IdempotencyStore{rdb: rdb, ttl: ttl, lockTTL: lockTTL}
}

// Значение ключа: "<хеш запроса>|<processing или ID заказа>".
func encodeValue(requestHash, state string) string {
	return requestHash + "|" + state
}

func decodeValue(value string) (requestHash, state string) {
	requestHash, state, _ = strings.Cut(value, "|")
	return requestHash, state
}

// Begin захватывает ключ через SET NX. Если ключ уже связан с заказом, возвращает его ID.
func (s *IdempotencyStore) Begin(ctx context.Context, key, requestHash string) (string, bool, error) {
	redisKey := fmt.Sprintf(keyPrefix, key)

	acquired, err := s.rdb.SetNX(ctx, redisKey, encodeValue(requestHash, processingMarker), s.lockTTL).Result()
	if err != nil {
		return "", false, fmt.Errorf("acquire idempotency key: %w", err)
	}
	if acquired {
		return "", false, nil
	}

	value, err := s.rdb.Get(ctx, redisKey).Result()
	if errors.Is(err, goredis.Nil) {
		// Ключ истёк между SETNX и GET: пробуем ещё раз.
		return s.Begin(ctx, key, requestHash)
	}
	if err != nil {
		return "", false, fmt.Errorf("read idempotency key: %w", err)
	}

	storedHash, state := decodeValue(value)
	switch {
	case storedHash != requestHash:
		return "", false, domain.ErrIdempotencyKeyReused
	case state == processingMarker:
		return "", false, domain.ErrIdempotencyInProgress
	default:
		return state, true, nil
	}
}

// Complete связывает ключ с созданным заказом.
func (s *IdempotencyStore) Complete(ctx context.Context, key, requestHash, orderID string) error {
	if err := s.rdb.Set(ctx, fmt.Sprintf(keyPrefix, key), encodeValue(requestHash, orderID), s.ttl).Err(); err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	return nil
}

// Abort освобождает ключ, чтобы клиент мог повторить запрос.
func (s *IdempotencyStore) Abort(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, fmt.Sprintf(keyPrefix, key)).Err(); err != nil {
		return fmt.Errorf("abort idempotency key: %w", err)
	}
	return nil
}

// Ping проверяет доступность Redis.
func (s *IdempotencyStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

var _ domain.IdempotencyStore = (*IdempotencyStore)(nil)
