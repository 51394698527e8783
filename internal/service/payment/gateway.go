package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// ErrChargeNotFound — возврат по неизвестному платежу.
var ErrChargeNotFound = errors.New("charge not found")

// ErrRefundExceedsCharge — сумма возврата больше суммы списания.
var ErrRefundExceedsCharge = errors.New("refund amount exceeds charged amount")

type charge struct {
	result   domain.ChargeResult
	customer string
	refunded bool
}

// SandboxGateway — платёжный провайдер для локального окружения и тестов.
// Списания дедуплицируются по idempotency key, возвраты идемпотентны по reference.
type SandboxGateway struct {
	mu sync.Mutex

	charges map[string]*charge
	byKey   map[string]string

	// declineCustomers и declineAbove задают правила отказа.
	declineCustomers map[string]struct{}
	declineAbove     decimal.Decimal

	failCharges int
	failRefunds int

	chargeCalls int
	refundCalls int

	logger *log.Entry
	now    func() time.Time
}

// GatewayOption настраивает SandboxGateway.
type GatewayOption func(*SandboxGateway)

// WithDeclinedCustomers задаёт клиентов, списания с которых отклоняются.
func WithDeclinedCustomers(ids ...string) GatewayOption {
	return func(g *SandboxGateway) {
		for _, id := range ids {
			g.declineCustomers[id] = struct{}{}
		}
	}
}

// WithDeclineAbove отклоняет списания больше лимита.
func WithDeclineAbove(limit decimal.Decimal) GatewayOption {
	return func(g *SandboxGateway) { g.declineAbove = limit }
}

// WithGatewayLogger задаёт логгер.
func WithGatewayLogger(logger *log.Entry) GatewayOption {
	return func(g *SandboxGateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewSandboxGateway создаёт sandbox-провайдер.
func NewSandboxGateway(opts ...GatewayOption) *SandboxGateway {
	g := &SandboxGateway{
		charges:          make(map[string]*charge),
		byKey:            make(map[string]string),
		declineCustomers: make(map[string]struct{}),
		logger:           log.New().WithField("component", "payment-sandbox"),
		now:              func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// FailNextCharges заставляет следующие n списаний вернуть временную ошибку.
func (g *SandboxGateway) FailNextCharges(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failCharges = n
}

// FailNextRefunds заставляет следующие n возвратов вернуть временную ошибку.
func (g *SandboxGateway) FailNextRefunds(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failRefunds = n
}

// Charge списывает средства.
func (g *SandboxGateway) Charge(ctx context.Context, req domain.ChargeRequest) (domain.ChargeResult, error) {
	if errs := req.Validate(); len(errs) > 0 {
		return domain.ChargeResult{}, errs[0]
	}
	if err := ctx.Err(); err != nil {
		return domain.ChargeResult{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.chargeCalls++

	if req.IdempotencyKey != "" {
		if ref, ok := g.byKey[req.IdempotencyKey]; ok {
			return g.charges[ref].result, nil
		}
	}

	if g.failCharges > 0 {
		g.failCharges--
		return domain.ChargeResult{}, fmt.Errorf("sandbox charge: %w", domain.ErrPaymentTemporary)
	}

	if _, declined := g.declineCustomers[req.CustomerID]; declined {
		return domain.ChargeResult{}, fmt.Errorf("customer %s: %w", req.CustomerID, domain.ErrPaymentDeclined)
	}
	if g.declineAbove.IsPositive() && req.Amount.GreaterThan(g.declineAbove) {
		return domain.ChargeResult{}, fmt.Errorf("amount %s over limit: %w", req.Amount.StringFixed(2), domain.ErrPaymentDeclined)
	}

	result := domain.ChargeResult{
		Reference: "pay_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Amount:    req.Amount,
		Currency:  req.Currency,
		ChargedAt: g.now(),
	}
	g.charges[result.Reference] = &charge{result: result, customer: req.CustomerID}
	if req.IdempotencyKey != "" {
		g.byKey[req.IdempotencyKey] = result.Reference
	}

	g.logger.WithFields(log.Fields{
		"payment_ref": result.Reference,
		"customer_id": req.CustomerID,
		"amount":      req.Amount.StringFixed(2),
	}).Debug("charge captured")

	return result, nil
}

// Refund возвращает средства. Повторный возврат того же платежа — no-op.
func (g *SandboxGateway) Refund(ctx context.Context, paymentReference string, amount decimal.Decimal) error {
	if paymentReference == "" {
		return domain.ErrPaymentReferenceRequired
	}
	if !amount.IsPositive() {
		return domain.ErrPaymentAmountInvalid
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.refundCalls++

	if g.failRefunds > 0 {
		g.failRefunds--
		return fmt.Errorf("sandbox refund: %w", domain.ErrPaymentTemporary)
	}

	ch, ok := g.charges[paymentReference]
	if !ok {
		return fmt.Errorf("refund %s: %w", paymentReference, ErrChargeNotFound)
	}
	if ch.refunded {
		return nil
	}
	if amount.GreaterThan(ch.result.Amount) {
		return fmt.Errorf("refund %s: %w", paymentReference, ErrRefundExceedsCharge)
	}

	ch.refunded = true
	g.logger.WithFields(log.Fields{
		"payment_ref": paymentReference,
		"amount":      amount.StringFixed(2),
	}).Debug("charge refunded")
	return nil
}

// Refunded сообщает, был ли платёж возвращён.
func (g *SandboxGateway) Refunded(paymentReference string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	ch, ok := g.charges[paymentReference]
	return ok && ch.refunded
}

// Calls возвращает количество вызовов Charge и Refund.
func (g *SandboxGateway) Calls() (charges, refunds int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.chargeCalls, g.refundCalls
}

var _ domain.PaymentService = (*SandboxGateway)(nil)
