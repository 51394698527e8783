package saga

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// CompensationRetrier повторяет компенсации для заказа.
type CompensationRetrier interface {
	RetryCompensation(ctx context.Context, orderID string) error
}

// Redriver пакетами повторяет незавершённые компенсации отменённых заказов.
type Redriver struct {
	retrier CompensationRetrier
	logger  *log.Entry

	batchSize      int
	flushTimeout   time.Duration
	maxParallelOps int
	maxAttempts    int

	queueCh chan string
	stopCh  chan struct{}
	stopped sync.Once
	wg      sync.WaitGroup

	mu       sync.Mutex
	batch    []string
	attempts map[string]int
}

// RedriverOption настраивает Redriver.
type RedriverOption func(*Redriver)

// WithRedriverLogger задаёт логгер.
func WithRedriverLogger(logger *log.Entry) RedriverOption {
	return func(r *Redriver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRedriveInterval задаёт период сброса пакета.
func WithRedriveInterval(interval time.Duration) RedriverOption {
	return func(r *Redriver) {
		if interval > 0 {
			r.flushTimeout = interval
		}
	}
}

// WithRedriveAttempts ограничивает число повторов на заказ.
func WithRedriveAttempts(attempts int) RedriverOption {
	return func(r *Redriver) {
		if attempts > 0 {
			r.maxAttempts = attempts
		}
	}
}

// WithRedriveParallelism ограничивает число одновременных повторов.
func WithRedriveParallelism(n int) RedriverOption {
	return func(r *Redriver) {
		if n > 0 {
			r.maxParallelOps = n
		}
	}
}

// NewRedriver создаёт Redriver.
func NewRedriver(retrier CompensationRetrier, opts ...RedriverOption) *Redriver {
	r := &Redriver{
		retrier:        retrier,
		logger:         log.New().WithField("component", "compensation-redriver"),
		batchSize:      10,
		flushTimeout:   time.Second,
		maxParallelOps: 4,
		maxAttempts:    5,
		queueCh:        make(chan string, 100),
		stopCh:         make(chan struct{}),
		attempts:       make(map[string]int),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Enqueue ставит заказ в очередь на повтор компенсаций.
func (r *Redriver) Enqueue(orderID string) {
	select {
	case r.queueCh <- orderID:
	default:
		// Канал переполнен: добавляем прямо в буфер, он будет обработан на следующем тике.
		r.logger.WithField("order_id", orderID).Warn("redrive channel full, buffering")
		r.mu.Lock()
		r.batch = append(r.batch, orderID)
		r.mu.Unlock()
	}
}

// Pending возвращает число заказов, ожидающих повтора.
func (r *Redriver) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batch) + len(r.queueCh)
}

// Run обрабатывает очередь до отмены контекста или Stop.
func (r *Redriver) Run(ctx context.Context) {
	r.wg.Add(1)
	defer r.wg.Done()

	ticker := time.NewTicker(r.flushTimeout)
	defer ticker.Stop()

	r.logger.Info("compensation redriver started")
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("compensation redriver stopped")
			return
		case <-r.stopCh:
			r.logger.Info("compensation redriver stopped")
			return
		case orderID := <-r.queueCh:
			r.mu.Lock()
			r.batch = append(r.batch, orderID)
			shouldFlush := len(r.batch) >= r.batchSize
			r.mu.Unlock()

			if shouldFlush {
				r.Flush(ctx)
			}
		case <-ticker.C:
			r.Flush(ctx)
		}
	}
}

// Stop останавливает Run и дожидается его завершения.
func (r *Redriver) Stop() {
	r.stopped.Do(func() { close(r.stopCh) })
	r.wg.Wait()
}

// Flush повторяет компенсации для накопленного пакета. Неуспешные заказы
// возвращаются в буфер, пока не исчерпан лимит попыток.
func (r *Redriver) Flush(ctx context.Context) {
	r.mu.Lock()
	batch := dedupe(r.batch)
	r.batch = nil
	r.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	r.logger.WithField("batch_size", len(batch)).Debug("redriving compensations")

	failed := make([]bool, len(batch))
	r.processInParallel(len(batch), func(index int) {
		orderID := batch[index]
		if err := r.retrier.RetryCompensation(ctx, orderID); err != nil {
			r.logger.WithError(err).WithField("order_id", orderID).Warn("compensation retry failed")
			failed[index] = true
		}
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	for i, orderID := range batch {
		if !failed[i] {
			delete(r.attempts, orderID)
			continue
		}
		r.attempts[orderID]++
		if r.attempts[orderID] >= r.maxAttempts {
			r.logger.WithFields(log.Fields{
				"order_id": orderID,
				"attempts": r.attempts[orderID],
			}).Error("compensation retries exhausted, manual intervention required")
			delete(r.attempts, orderID)
			continue
		}
		r.batch = append(r.batch, orderID)
	}
}

func (r *Redriver) processInParallel(size int, processFn func(index int)) {
	limit := r.maxParallelOps
	if limit > size {
		limit = size
	}

	semaphore := make(chan struct{}, limit)
	var wg sync.WaitGroup
	for idx := 0; idx < size; idx++ {
		wg.Add(1)
		semaphore <- struct{}{}
		go func(index int) {
			defer wg.Done()
			defer func() { <-semaphore }()
			processFn(index)
		}(idx)
	}

	wg.Wait()
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
