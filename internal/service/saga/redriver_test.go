package saga

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
)

type stubRetrier struct {
	mu       sync.Mutex
	failures map[string]int
	calls    map[string]int
}

func newStubRetrier() *stubRetrier {
	return &stubRetrier{failures: make(map[string]int), calls: make(map[string]int)}
}

func (s *stubRetrier) RetryCompensation(_ context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[orderID]++
	if s.failures[orderID] > 0 {
		s.failures[orderID]--
		return errors.New("refund still failing")
	}
	return nil
}

func (s *stubRetrier) callCount(orderID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[orderID]
}

func quietLogger() *log.Entry {
	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	return logger.WithField("test", "redriver")
}

func TestRedriver_FlushRetriesUntilSuccess(t *testing.T) {
	retrier := newStubRetrier()
	retrier.failures["o-1"] = 1

	r := NewRedriver(retrier, WithRedriverLogger(quietLogger()))
	r.Enqueue("o-1")
	r.Enqueue("o-2")
	r.Enqueue("o-2")

	// Переносим заказы из канала в буфер так же, как это делает Run.
	for len(r.queueCh) > 0 {
		r.batch = append(r.batch, <-r.queueCh)
	}

	r.Flush(context.Background())
	if retrier.callCount("o-2") != 1 {
		t.Fatalf("duplicate ids must be collapsed, got %d calls", retrier.callCount("o-2"))
	}
	if r.Pending() != 1 {
		t.Fatalf("failed order must stay queued, pending=%d", r.Pending())
	}

	r.Flush(context.Background())
	if retrier.callCount("o-1") != 2 {
		t.Fatalf("expected second attempt, got %d", retrier.callCount("o-1"))
	}
	if r.Pending() != 0 {
		t.Fatalf("expected empty queue, pending=%d", r.Pending())
	}
}

func TestRedriver_GivesUpAfterMaxAttempts(t *testing.T) {
	retrier := newStubRetrier()
	retrier.failures["o-1"] = 100

	r := NewRedriver(retrier, WithRedriverLogger(quietLogger()), WithRedriveAttempts(3))
	r.batch = []string{"o-1"}

	for i := 0; i < 5; i++ {
		r.Flush(context.Background())
	}

	if retrier.callCount("o-1") != 3 {
		t.Fatalf("expected 3 attempts, got %d", retrier.callCount("o-1"))
	}
	if r.Pending() != 0 {
		t.Fatalf("expected order dropped after max attempts")
	}
}

func TestRedriver_RunProcessesQueue(t *testing.T) {
	retrier := newStubRetrier()
	r := NewRedriver(retrier, WithRedriverLogger(quietLogger()), WithRedriveInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	r.Enqueue("o-1")

	deadline := time.Now().Add(time.Second)
	for retrier.callCount("o-1") == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if retrier.callCount("o-1") != 1 {
		t.Fatalf("expected order to be redriven")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("redriver did not stop on context cancel")
	}
}

func TestRedriver_WithOrchestrator(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	order, err := f.orch.CreateOrder(context.Background(), validRequest(1))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	r := NewRedriver(f.orch, WithRedriverLogger(quietLogger()))
	f.orch.SetCompensationQueue(r)

	f.pay.setRefundErr(errors.New("gateway down"))
	if _, err := f.orch.CancelOrder(context.Background(), order.ID); err == nil {
		t.Fatal("expected compensation incomplete")
	}
	f.pay.setRefundErr(nil)

	for len(r.queueCh) > 0 {
		r.batch = append(r.batch, <-r.queueCh)
	}
	r.Flush(context.Background())

	if f.pay.refundCount() != 1 {
		t.Fatalf("expected refund after redrive, got %d", f.pay.refundCount())
	}
	if r.Pending() != 0 {
		t.Fatalf("expected empty queue")
	}
}
