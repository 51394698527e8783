package integration

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/IBM/sarama/mocks"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/messaging/kafka"
	grpcsvc "github.com/vladislavdragonenkov/fulfillment/internal/service/grpc"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/inventory"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/notification"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/outbox"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/payment"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/pricing"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/saga"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/validation"
	"github.com/vladislavdragonenkov/fulfillment/internal/storage/memory"
)

// publishedEnvelope — то, что downstream-потребитель читает из топика заказов.
type publishedEnvelope struct {
	AggregateID string               `json:"aggregate_id"`
	EventType   string               `json:"event_type"`
	Payload     notification.Payload `json:"payload"`
}

// OrderLifecycleTestSuite прогоняет заказ через gRPC-сервис, сагу, outbox и Kafka.
type OrderLifecycleTestSuite struct {
	suite.Suite

	service  *grpcsvc.OrderService
	ledger   *inventory.Ledger
	outbox   *memory.OutboxRepository
	producer *mocks.SyncProducer
	worker   *outbox.Worker

	published []publishedEnvelope
}

func (s *OrderLifecycleTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel)
	logger := baseLogger.WithField("component", "integration-test")

	catalog := memory.NewCatalog()
	catalog.PutCustomer(domain.Customer{ID: "C1", Name: "Alice", Email: "alice@example.com"})
	catalog.PutCustomer(domain.Customer{ID: "C2", Name: "Bob", Email: "bob@example.com"})
	catalog.PutProduct(domain.Product{ID: "P1", SKU: "SKU-P1", Name: "Widget", Price: decimal.RequireFromString("10.00")})
	catalog.SetTaxRate(pricing.DefaultTaxRegion, decimal.RequireFromString("0.10"))

	audit := memory.NewAuditRepository()
	s.ledger = inventory.NewLedger(inventory.WithAuditRecorder(audit), inventory.WithLogger(logger))
	s.ledger.SetStock("P1", 10)
	s.outbox = memory.NewOutboxRepository()

	orchestrator := saga.NewOrchestrator(saga.Dependencies{
		Validator: validation.NewValidator(catalog, catalog, logger),
		Pricing:   pricing.NewEngine(catalog, catalog, catalog, pricing.WithLogger(logger)),
		Inventory: s.ledger,
		Payments:  payment.NewSandboxGateway(payment.WithDeclinedCustomers("C2"), payment.WithGatewayLogger(logger)),
		Orders:    memory.NewOrderRepository(),
		Audit:     audit,
		Notifier:  notification.NewOutboxNotifier(s.outbox, nil, logger),
		Logger:    logger,
	}, saga.DefaultConfig())

	s.service = grpcsvc.NewOrderService(orchestrator, memory.NewIdempotencyStore(0), logger)

	config := mocks.NewTestConfig()
	config.Producer.Return.Successes = true
	s.producer = mocks.NewSyncProducer(s.T(), config)
	publisher := kafka.NewOutboxPublisher(kafka.NewProducerFromSync(s.producer, logger), kafka.TopicOrderEvents)
	s.worker = outbox.NewWorker(s.outbox, publisher, outbox.WithLogger(logger))
	s.published = nil
}

func (s *OrderLifecycleTestSuite) TearDownTest() {
	require.NoError(s.T(), s.producer.Close())
}

// expectDeliveries ожидает n сообщений в Kafka и сохраняет их конверты.
func (s *OrderLifecycleTestSuite) expectDeliveries(n int) {
	for i := 0; i < n; i++ {
		s.producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(raw []byte) error {
			var envelope publishedEnvelope
			if err := json.Unmarshal(raw, &envelope); err != nil {
				return err
			}
			s.published = append(s.published, envelope)
			return nil
		})
	}
}

func (s *OrderLifecycleTestSuite) createOrder(customerID string, qty int32) (*structpb.Struct, error) {
	req, err := grpcsvc.NewCreateOrderRequest(customerID, "1 Main St", []domain.ItemRequest{{ProductID: "P1", Quantity: qty}})
	require.NoError(s.T(), err)
	return s.service.CreateOrder(context.Background(), req)
}

func orderField(t *testing.T, resp *structpb.Struct, field string) string {
	t.Helper()
	order, ok := resp.AsMap()["order"].(map[string]any)
	require.True(t, ok, "response must carry order")
	value, _ := order[field].(string)
	return value
}

func (s *OrderLifecycleTestSuite) TestConfirmedOrderIsPublished() {
	resp, err := s.createOrder("C1", 3)
	require.NoError(s.T(), err)
	orderID := orderField(s.T(), resp, "order_id")
	require.Equal(s.T(), string(domain.OrderStatusConfirmed), orderField(s.T(), resp, "status"))
	require.Equal(s.T(), "33.00", orderField(s.T(), resp, "total"))

	available, ok := s.ledger.Available("P1")
	require.True(s.T(), ok)
	require.EqualValues(s.T(), 7, available)

	s.expectDeliveries(1)
	s.worker.ProcessOnce(context.Background())

	require.Len(s.T(), s.published, 1)
	require.Equal(s.T(), orderID, s.published[0].AggregateID)
	require.Equal(s.T(), notification.EventOrderConfirmed, s.published[0].EventType)
	require.Equal(s.T(), "C1", s.published[0].Payload.CustomerID)

	stats, err := s.outbox.Stats()
	require.NoError(s.T(), err)
	require.Zero(s.T(), stats.PendingCount)
}

func (s *OrderLifecycleTestSuite) TestCancelRestoresStockAndNotifies() {
	resp, err := s.createOrder("C1", 4)
	require.NoError(s.T(), err)
	orderID := orderField(s.T(), resp, "order_id")

	cancelled, err := s.service.CancelOrder(context.Background(), grpcsvc.NewOrderIDRequest(orderID))
	require.NoError(s.T(), err)
	require.Equal(s.T(), string(domain.OrderStatusCancelled), orderField(s.T(), cancelled, "status"))

	available, _ := s.ledger.Available("P1")
	require.EqualValues(s.T(), 10, available)

	s.expectDeliveries(2)
	s.worker.ProcessOnce(context.Background())

	require.Len(s.T(), s.published, 2)
	types := map[string]publishedEnvelope{}
	for _, envelope := range s.published {
		types[envelope.EventType] = envelope
	}
	require.Contains(s.T(), types, notification.EventOrderConfirmed)
	require.Equal(s.T(), string(domain.OrderStatusCancelled), types[notification.EventOrderStatusChanged].Payload.Status)
}

func (s *OrderLifecycleTestSuite) TestShipThenCancelIsRejected() {
	resp, err := s.createOrder("C1", 1)
	require.NoError(s.T(), err)
	orderID := orderField(s.T(), resp, "order_id")

	shipped, err := s.service.UpdateOrderStatus(context.Background(), grpcsvc.NewUpdateStatusRequest(orderID, domain.OrderStatusShipped))
	require.NoError(s.T(), err)
	require.Equal(s.T(), string(domain.OrderStatusShipped), orderField(s.T(), shipped, "status"))

	_, err = s.service.CancelOrder(context.Background(), grpcsvc.NewOrderIDRequest(orderID))
	require.Equal(s.T(), codes.Aborted, status.Code(err))

	got, err := s.service.GetOrder(context.Background(), grpcsvc.NewOrderIDRequest(orderID))
	require.NoError(s.T(), err)
	require.Equal(s.T(), string(domain.OrderStatusShipped), orderField(s.T(), got, "status"))
}

func (s *OrderLifecycleTestSuite) TestDeclinedPaymentLeavesNothingBehind() {
	_, err := s.createOrder("C2", 2)
	require.Error(s.T(), err)

	available, _ := s.ledger.Available("P1")
	require.EqualValues(s.T(), 10, available)

	list, err := s.service.ListOrders(context.Background(), grpcsvc.NewListOrdersRequest("C2", 10))
	require.NoError(s.T(), err)
	orders, _ := list.AsMap()["orders"].([]any)
	require.Empty(s.T(), orders)

	stats, err := s.outbox.Stats()
	require.NoError(s.T(), err)
	require.Zero(s.T(), stats.PendingCount)
}

func TestOrderLifecycleTestSuite(t *testing.T) {
	suite.Run(t, new(OrderLifecycleTestSuite))
}
