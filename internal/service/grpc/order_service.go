package grpcsvc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/saga"
)

// OrderSaga — операции оркестратора, которые сервис выставляет наружу.
type OrderSaga interface {
	CreateOrder(ctx context.Context, req saga.CreateOrderRequest) (domain.Order, error)
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
	ListOrders(ctx context.Context, customerID string, limit int) ([]domain.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) (domain.Order, error)
	CancelOrder(ctx context.Context, orderID string) (domain.Order, error)
}

// OrderService реализует fulfillment.v1.OrderService поверх саги.
type OrderService struct {
	saga   OrderSaga
	idem   domain.IdempotencyStore
	logger *log.Entry
}

const idempotencyKeyHeader = "idempotency-key"

// NewOrderService конструирует сервис. idem может быть nil: тогда
// idempotency-key игнорируется.
func NewOrderService(orchestrator OrderSaga, idem domain.IdempotencyStore, logger *log.Entry) *OrderService {
	if logger == nil {
		logger = log.New().WithField("component", "order-service")
	}
	return &OrderService{
		saga:   orchestrator,
		idem:   idem,
		logger: logger,
	}
}

// CreateOrder оформляет заказ. Повтор с тем же idempotency-key возвращает
// уже созданный заказ без повторного списания.
func (s *OrderService) CreateOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	createReq, err := decodeCreateOrder(req)
	if err != nil {
		return nil, toStatus(err)
	}

	key, ok := readIdempotencyKey(ctx)
	if !ok || s.idem == nil {
		order, err := s.createOrder(ctx, createReq)
		if err != nil {
			return nil, err
		}
		return s.respond(orderResponse(order))
	}

	logger := s.logger.WithField("idempotency_key", key)
	reqHash, err := createRequestHash(createReq)
	if err != nil {
		logger.WithError(err).Warn("failed to hash create request")
		return nil, status.Error(codes.Internal, "failed to initialize idempotency request")
	}

	orderID, done, err := s.idem.Begin(ctx, key, reqHash)
	switch {
	case errors.Is(err, domain.ErrIdempotencyInProgress), errors.Is(err, domain.ErrIdempotencyKeyReused):
		return nil, toStatus(err)
	case err != nil:
		logger.WithError(err).Warn("idempotency store unavailable")
		return nil, toStatus(domain.NewError(domain.ErrUpstreamUnavailable, "idempotency store unavailable").WithCause(err))
	case done:
		logger.WithField("order_id", orderID).Info("replaying idempotent create")
		order, getErr := s.saga.GetOrder(ctx, orderID)
		if getErr != nil {
			return nil, s.fail(methodGetOrder, orderID, getErr)
		}
		return s.respond(orderResponse(order))
	}

	order, err := s.createOrder(ctx, createReq)
	if err != nil {
		if abortErr := s.idem.Abort(context.WithoutCancel(ctx), key); abortErr != nil {
			logger.WithError(abortErr).Warn("failed to release idempotency key")
		}
		return nil, err
	}
	if completeErr := s.idem.Complete(context.WithoutCancel(ctx), key, reqHash, order.ID); completeErr != nil {
		logger.WithError(completeErr).WithField("order_id", order.ID).Warn("failed to store idempotent result")
	}
	return s.respond(orderResponse(order))
}

// createRequestHash — sha256 от канонического JSON заказа: клиента, адреса и позиций в порядке запроса.
func createRequestHash(req saga.CreateOrderRequest) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	payload := make([]byte, 0, len(methodCreateOrder)+1+len(data))
	payload = append(payload, methodCreateOrder...)
	payload = append(payload, ':')
	payload = append(payload, data...)
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

func (s *OrderService) createOrder(ctx context.Context, req saga.CreateOrderRequest) (domain.Order, error) {
	order, err := s.saga.CreateOrder(ctx, req)
	if err != nil {
		return domain.Order{}, s.fail(methodCreateOrder, "", err)
	}
	return order, nil
}

// GetOrder возвращает заказ по order_id.
func (s *OrderService) GetOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	orderID := stringField(req, fieldOrderID)
	order, err := s.saga.GetOrder(ctx, orderID)
	if err != nil {
		return nil, s.fail(methodGetOrder, orderID, err)
	}
	return s.respond(orderResponse(order))
}

// ListOrders возвращает заказы клиента, новые первыми.
func (s *OrderService) ListOrders(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	customerID, limit, err := decodeListOrders(req)
	if err != nil {
		return nil, toStatus(err)
	}
	orders, err := s.saga.ListOrders(ctx, customerID, limit)
	if err != nil {
		return nil, s.fail(methodListOrders, "", err)
	}
	return s.respond(ordersResponse(orders))
}

// UpdateOrderStatus переводит заказ в новый статус.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	orderID := stringField(req, fieldOrderID)
	next := domain.OrderStatus(strings.ToLower(stringField(req, fieldStatus)))
	order, err := s.saga.UpdateOrderStatus(ctx, orderID, next)
	if err != nil {
		return nil, s.fail(methodUpdateOrderStatus, orderID, err)
	}
	return s.respond(orderResponse(order))
}

// CancelOrder отменяет заказ с возвратом средств и снятием резерва.
func (s *OrderService) CancelOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	orderID := stringField(req, fieldOrderID)
	order, err := s.saga.CancelOrder(ctx, orderID)
	if err != nil {
		return nil, s.fail(methodCancelOrder, orderID, err)
	}
	return s.respond(orderResponse(order))
}

func (s *OrderService) fail(operation, orderID string, err error) error {
	entry := s.logger.WithError(err).WithField("operation", operation)
	if orderID != "" {
		entry = entry.WithField("order_id", orderID)
	}
	switch domain.KindOf(err) {
	case domain.ErrUpstreamUnavailable, domain.ErrCompensationIncomplete, nil:
		entry.Error("order operation failed")
	default:
		entry.Info("order operation rejected")
	}
	return toStatus(err)
}

func (s *OrderService) respond(resp *structpb.Struct, err error) (*structpb.Struct, error) {
	if err != nil {
		s.logger.WithError(err).Error("failed to encode response")
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return resp, nil
}

func readIdempotencyKey(ctx context.Context) (string, bool) {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		values := md.Get(idempotencyKeyHeader)
		if len(values) > 0 && strings.TrimSpace(values[0]) != "" {
			return strings.TrimSpace(values[0]), true
		}
	}

	if md, ok := metadata.FromOutgoingContext(ctx); ok {
		values := md.Get(idempotencyKeyHeader)
		if len(values) > 0 && strings.TrimSpace(values[0]) != "" {
			return strings.TrimSpace(values[0]), true
		}
	}

	return "", false
}

var _ OrderServiceServer = (*OrderService)(nil)
