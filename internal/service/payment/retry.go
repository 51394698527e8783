package payment

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// ErrCircuitOpen возвращается, пока circuit breaker не пропускает вызовы.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// RetryConfig конфигурация для retry логики.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig возвращает конфигурацию по умолчанию.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
	}
}

// CircuitState — состояние circuit breaker.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

// CircuitBreaker простая реализация circuit breaker паттерна.
type CircuitBreaker struct {
	mu           sync.Mutex
	maxFailures  int
	resetTimeout time.Duration

	failures    int
	lastFailure time.Time
	state       CircuitState
	logger      *log.Entry
	now         func() time.Time
}

// NewCircuitBreaker создаёт новый circuit breaker.
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration, logger *log.Entry) *CircuitBreaker {
	if logger == nil {
		logger = log.New().WithField("component", "circuit-breaker")
	}
	if maxFailures <= 0 {
		maxFailures = 5
	}

	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		state:        CircuitClosed,
		logger:       logger,
		now:          time.Now,
	}
}

// State возвращает текущее состояние.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Execute выполняет операцию через circuit breaker.
// Сбоем считаются только ошибки, для которых countable возвращает true.
func (cb *CircuitBreaker) Execute(operation string, fn func() error, countable func(error) bool) error {
	cb.mu.Lock()
	if cb.state == CircuitOpen {
		if cb.now().Sub(cb.lastFailure) > cb.resetTimeout {
			cb.state = CircuitHalfOpen
			cb.logger.WithField("operation", operation).Info("Circuit breaker half-open")
		} else {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil && (countable == nil || countable(err)) {
		cb.failures++
		cb.lastFailure = cb.now()

		if cb.state == CircuitHalfOpen || cb.failures >= cb.maxFailures {
			cb.state = CircuitOpen
			cb.logger.WithFields(log.Fields{
				"operation": operation,
				"failures":  cb.failures,
			}).Warn("Circuit breaker opened")
		}
		return err
	}

	if cb.state == CircuitHalfOpen {
		cb.state = CircuitClosed
		cb.logger.WithField("operation", operation).Info("Circuit breaker closed")
	}
	cb.failures = 0

	return err
}

// RetryingService оборачивает PaymentService.
// Списание не повторяется никогда: повтор грозит двойным списанием. Оно только
// проходит через circuit breaker. Возврат повторяется с экспоненциальной
// задержкой, но только при временных ошибках провайдера.
type RetryingService struct {
	next    domain.PaymentService
	config  RetryConfig
	breaker *CircuitBreaker
	logger  *log.Entry
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewRetryingService создаёт обёртку над провайдером.
func NewRetryingService(next domain.PaymentService, config RetryConfig, breaker *CircuitBreaker, logger *log.Entry) *RetryingService {
	if logger == nil {
		logger = log.New().WithField("component", "payment-retry")
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	if config.BackoffFactor < 1 {
		config.BackoffFactor = 1
	}
	return &RetryingService{
		next:    next,
		config:  config,
		breaker: breaker,
		logger:  logger,
		sleep:   sleepContext,
	}
}

// Charge выполняет одну попытку списания.
func (s *RetryingService) Charge(ctx context.Context, req domain.ChargeRequest) (domain.ChargeResult, error) {
	if s.breaker == nil {
		return s.next.Charge(ctx, req)
	}

	var result domain.ChargeResult
	err := s.breaker.Execute("charge", func() error {
		var err error
		result, err = s.next.Charge(ctx, req)
		return err
	}, isTemporary)
	if errors.Is(err, ErrCircuitOpen) {
		return domain.ChargeResult{}, domain.NewError(domain.ErrUpstreamUnavailable, "payment provider unavailable").WithCause(err)
	}
	return result, err
}

// Refund повторяет возврат при временных ошибках.
func (s *RetryingService) Refund(ctx context.Context, paymentReference string, amount decimal.Decimal) error {
	var lastErr error
	delay := s.config.InitialDelay

	for attempt := 1; attempt <= s.config.MaxAttempts; attempt++ {
		err := s.next.Refund(ctx, paymentReference, amount)
		if err == nil {
			if attempt > 1 {
				s.logger.WithFields(log.Fields{
					"payment_ref": paymentReference,
					"attempt":     attempt,
				}).Info("Refund succeeded after retry")
			}
			return nil
		}

		lastErr = err
		if !isTemporary(err) {
			return err
		}

		if attempt < s.config.MaxAttempts {
			s.logger.WithFields(log.Fields{
				"payment_ref": paymentReference,
				"attempt":     attempt,
				"delay":       delay,
				"error":       err,
			}).Warn("Refund failed, retrying")

			if err := s.sleep(ctx, delay); err != nil {
				return lastErr
			}

			delay = time.Duration(float64(delay) * s.config.BackoffFactor)
			if s.config.MaxDelay > 0 && delay > s.config.MaxDelay {
				delay = s.config.MaxDelay
			}
		}
	}

	s.logger.WithFields(log.Fields{
		"payment_ref":  paymentReference,
		"max_attempts": s.config.MaxAttempts,
		"error":        lastErr,
	}).Error("Refund failed after all retry attempts")
	return lastErr
}

// isTemporary определяет, является ли ошибка временной (сеть, таймаут, сбой провайдера).
func isTemporary(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, domain.ErrPaymentDeclined) ||
		errors.Is(err, ErrChargeNotFound) ||
		errors.Is(err, ErrRefundExceedsCharge) ||
		errors.Is(err, domain.ErrPaymentAmountInvalid) ||
		errors.Is(err, domain.ErrPaymentReferenceRequired) ||
		errors.Is(err, domain.ErrCustomerRequired) ||
		errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ domain.PaymentService = (*RetryingService)(nil)
