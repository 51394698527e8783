package grpcsvc

import (
	"fmt"
	"math"
	"strings"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/saga"
)

// Поля сообщений.
const (
	fieldOrder           = "order"
	fieldOrders          = "orders"
	fieldOrderID         = "order_id"
	fieldCustomerID      = "customer_id"
	fieldItems           = "items"
	fieldProductID       = "product_id"
	fieldQuantity        = "quantity"
	fieldShippingAddress = "shipping_address"
	fieldStatus          = "status"
	fieldLimit           = "limit"
)

// NewCreateOrderRequest собирает запрос CreateOrder.
func NewCreateOrderRequest(customerID, shippingAddress string, items []domain.ItemRequest) (*structpb.Struct, error) {
	lines := make([]any, 0, len(items))
	for _, item := range items {
		lines = append(lines, map[string]any{
			fieldProductID: item.ProductID,
			fieldQuantity:  float64(item.Quantity),
		})
	}
	return structpb.NewStruct(map[string]any{
		fieldCustomerID:      customerID,
		fieldShippingAddress: shippingAddress,
		fieldItems:           lines,
	})
}

// NewOrderIDRequest собирает запрос GetOrder/CancelOrder.
func NewOrderIDRequest(orderID string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldOrderID: structpb.NewStringValue(orderID),
	}}
}

// NewUpdateStatusRequest собирает запрос UpdateOrderStatus.
func NewUpdateStatusRequest(orderID string, status domain.OrderStatus) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldOrderID: structpb.NewStringValue(orderID),
		fieldStatus:  structpb.NewStringValue(string(status)),
	}}
}

// NewListOrdersRequest собирает запрос ListOrders; пустой customerID — все заказы.
func NewListOrdersRequest(customerID string, limit int) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldCustomerID: structpb.NewStringValue(customerID),
		fieldLimit:      structpb.NewNumberValue(float64(limit)),
	}}
}

func stringField(req *structpb.Struct, name string) string {
	return strings.TrimSpace(req.GetFields()[name].GetStringValue())
}

func decodeCreateOrder(req *structpb.Struct) (saga.CreateOrderRequest, error) {
	out := saga.CreateOrderRequest{
		CustomerID:      stringField(req, fieldCustomerID),
		ShippingAddress: stringField(req, fieldShippingAddress),
	}

	var details []string
	values := req.GetFields()[fieldItems].GetListValue().GetValues()
	out.Items = make([]domain.ItemRequest, 0, len(values))
	for i, value := range values {
		item := value.GetStructValue()
		if item == nil {
			details = append(details, fmt.Sprintf("items[%d] must be an object", i))
			continue
		}
		qty, ok := int32Value(item.GetFields()[fieldQuantity])
		if !ok {
			details = append(details, fmt.Sprintf("items[%d].quantity must be an integer", i))
			continue
		}
		out.Items = append(out.Items, domain.ItemRequest{
			ProductID: stringField(item, fieldProductID),
			Quantity:  qty,
		})
	}
	if len(details) > 0 {
		return saga.CreateOrderRequest{}, domain.NewError(domain.ErrValidationFailed, "validation failed", details...)
	}
	return out, nil
}

func decodeListOrders(req *structpb.Struct) (customerID string, limit int, err error) {
	customerID = stringField(req, fieldCustomerID)
	value, present := req.GetFields()[fieldLimit]
	if !present {
		return customerID, 0, nil
	}
	n, ok := int32Value(value)
	if !ok || n < 0 {
		return "", 0, domain.NewError(domain.ErrValidationFailed, "validation failed", "limit must be a non-negative integer")
	}
	return customerID, int(n), nil
}

// int32Value принимает number без дробной части; отсутствующее значение даёт 0.
func int32Value(value *structpb.Value) (int32, bool) {
	if value == nil {
		return 0, true
	}
	if _, isNumber := value.GetKind().(*structpb.Value_NumberValue); !isNumber {
		return 0, false
	}
	n := value.GetNumberValue()
	if n != math.Trunc(n) || n > math.MaxInt32 || n < math.MinInt32 {
		return 0, false
	}
	return int32(n), true
}

func orderResponse(order domain.Order) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{fieldOrder: orderFields(order)})
}

func ordersResponse(orders []domain.Order) (*structpb.Struct, error) {
	list := make([]any, 0, len(orders))
	for _, order := range orders {
		list = append(list, orderFields(order))
	}
	return structpb.NewStruct(map[string]any{fieldOrders: list})
}

// orderFields переводит заказ в JSON-совместимую map. Денежные суммы —
// строки с двумя знаками, чтобы не терять точность на float64.
func orderFields(order domain.Order) map[string]any {
	items := make([]any, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, map[string]any{
			fieldProductID: item.ProductID,
			fieldQuantity:  float64(item.Quantity),
			"unit_price":   item.UnitPrice.StringFixed(2),
		})
	}
	return map[string]any{
		fieldOrderID:         order.ID,
		fieldCustomerID:      order.CustomerID,
		fieldItems:           items,
		"subtotal":           order.Subtotal.StringFixed(2),
		"discount":           order.Discount.StringFixed(2),
		"tax":                order.Tax.StringFixed(2),
		"total":              order.Total.StringFixed(2),
		"currency":           order.Currency,
		fieldShippingAddress: order.ShippingAddress,
		"payment_reference":  order.PaymentReference,
		"reservation_id":     order.ReservationID,
		fieldStatus:          string(order.Status),
		"version":            float64(order.Version),
		"created_at":         order.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at":         order.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}
