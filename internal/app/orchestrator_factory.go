package app

import (
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/fulfillment/internal/metrics"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/notification"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/payment"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/pricing"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/saga"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/validation"
)

// createOrchestrator собирает сагу и очередь повторных компенсаций.
// Платежи идут через sandbox-шлюз с retry и circuit breaker; события саги
// публикуются в Kafka, если producer создан.
func createOrchestrator(
	deps *runtimeDependencies,
	cfg Config,
	kafkaProducer *kafka.Producer,
	registerer prometheus.Registerer,
	outboxMetrics *metrics.OutboxMetrics,
	logger *log.Entry,
) (*saga.Orchestrator, *saga.Redriver) {
	gateway := payment.NewSandboxGateway(payment.WithGatewayLogger(logger.WithField("component", "payment-gateway")))
	breaker := payment.NewCircuitBreaker(cfg.PaymentMaxFailures, cfg.PaymentResetAfter, logger.WithField("component", "payment-breaker"))
	payments := payment.NewRetryingService(gateway, payment.DefaultRetryConfig(), breaker, logger.WithField("component", "payment"))

	notifier := notification.NewOutboxNotifier(deps.outbox, outboxMetrics, logger.WithField("component", "notifier"))

	sagaDeps := saga.Dependencies{
		Validator: validation.NewValidator(deps.catalog, deps.catalog, logger.WithField("component", "order-validator")),
		Pricing: pricing.NewEngine(deps.catalog, deps.catalog, deps.catalog,
			pricing.WithTaxRegion(cfg.TaxRegion),
			pricing.WithLogger(logger.WithField("component", "pricing")),
		),
		Inventory: deps.inventory,
		Payments:  payments,
		Orders:    deps.orders,
		Audit:     deps.audit,
		Notifier:  notifier,
		Metrics:   metrics.NewSagaMetricsWithRegisterer(registerer),
		Logger:    logger.WithField("component", "saga"),
	}
	if kafkaProducer != nil {
		sagaDeps.Events = kafkaProducer
	}

	orchestrator := saga.NewOrchestrator(sagaDeps, cfg.Saga)
	redriver := saga.NewRedriver(orchestrator,
		saga.WithRedriverLogger(logger.WithField("component", "compensation-redriver")),
		saga.WithRedriveInterval(cfg.RedriveInterval),
		saga.WithRedriveAttempts(cfg.RedriveAttempts),
	)
	orchestrator.SetCompensationQueue(redriver)
	return orchestrator, redriver
}
