package idempotency

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/metrics"
)

const (
	defaultCleanupInterval  = 10 * time.Minute
	defaultCleanupBatchSize = 500
)

// ExpiredKeyStore хранит ключи CreateOrder с TTL и удаляет истёкшие порциями.
// Redis сюда не подключается: его ключи истекают сами.
type ExpiredKeyStore interface {
	DeleteExpired(before time.Time, limit int) (int, error)
}

// CleanupOption настраивает CleanupWorker.
type CleanupOption func(*CleanupWorker)

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) CleanupOption {
	return func(w *CleanupWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithInterval задаёт паузу между проходами; неположительное значение игнорируется.
func WithInterval(interval time.Duration) CleanupOption {
	return func(w *CleanupWorker) {
		if interval > 0 {
			w.interval = interval
		}
	}
}

// WithBatchSize ограничивает число ключей, удаляемых за одно обращение к хранилищу.
func WithBatchSize(batchSize int) CleanupOption {
	return func(w *CleanupWorker) {
		if batchSize > 0 {
			w.batchSize = batchSize
		}
	}
}

// WithMetrics подключает счётчики проходов и удалённых ключей.
func WithMetrics(m *metrics.IdempotencyMetrics) CleanupOption {
	return func(w *CleanupWorker) { w.metrics = m }
}

// CleanupWorker вычищает ключи идемпотентности CreateOrder, у которых истёк TTL.
// Без него in-memory хранилище растёт на каждый запрос с idempotency-key.
type CleanupWorker struct {
	store     ExpiredKeyStore
	logger    *log.Entry
	metrics   *metrics.IdempotencyMetrics
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

// NewCleanupWorker создаёт воркер; store может быть nil, тогда Run сразу выходит.
func NewCleanupWorker(store ExpiredKeyStore, options ...CleanupOption) *CleanupWorker {
	w := &CleanupWorker{
		store:     store,
		logger:    log.WithField("component", "create-order-key-cleanup"),
		interval:  defaultCleanupInterval,
		batchSize: defaultCleanupBatchSize,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, option := range options {
		option(w)
	}
	return w
}

// Run делает проход сразу и затем раз в interval, пока ctx не отменён.
func (w *CleanupWorker) Run(ctx context.Context) {
	if w.store == nil {
		w.logger.Warn("create-order key cleanup disabled: no expiring key store")
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.sweep(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *CleanupWorker) sweep(ctx context.Context) {
	deleted, err := w.DeleteExpired(ctx, w.now())
	switch {
	case errors.Is(err, context.Canceled):
		return
	case err != nil:
		if w.metrics != nil {
			w.metrics.RecordRun("error", 0)
		}
		w.logger.WithError(err).WithField("deleted", deleted).Warn("create-order key sweep failed")
		return
	}

	if w.metrics != nil {
		w.metrics.RecordRun("ok", deleted)
	}
	if deleted > 0 {
		w.logger.WithField("deleted", deleted).Info("expired create-order keys removed")
	}
}

// DeleteExpired удаляет ключи с TTL не позже before, пока хранилище отдаёт полные порции.
// Нулевой before означает «сейчас».
func (w *CleanupWorker) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	if before.IsZero() {
		before = w.now()
	}

	total := 0
	for ctx.Err() == nil {
		n, err := w.store.DeleteExpired(before, w.batchSize)
		if err != nil {
			return total, err
		}
		total += n
		if n > 0 && w.metrics != nil {
			w.metrics.RecordDeleted(n)
		}
		if n < w.batchSize {
			return total, nil
		}
	}
	return total, ctx.Err()
}
