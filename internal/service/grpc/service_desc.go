package grpcsvc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName — полное имя gRPC-сервиса.
const ServiceName = "fulfillment.v1.OrderService"

const (
	methodCreateOrder       = "CreateOrder"
	methodGetOrder          = "GetOrder"
	methodListOrders        = "ListOrders"
	methodUpdateOrderStatus = "UpdateOrderStatus"
	methodCancelOrder       = "CancelOrder"
)

// OrderServiceServer — серверная сторона fulfillment.v1.OrderService.
// Сообщения передаются как google.protobuf.Struct.
type OrderServiceServer interface {
	CreateOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListOrders(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	UpdateOrderStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	CancelOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// OrderServiceDesc описывает сервис для grpc.Server.
var OrderServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OrderServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: methodCreateOrder, Handler: unaryHandler(methodCreateOrder, OrderServiceServer.CreateOrder)},
		{MethodName: methodGetOrder, Handler: unaryHandler(methodGetOrder, OrderServiceServer.GetOrder)},
		{MethodName: methodListOrders, Handler: unaryHandler(methodListOrders, OrderServiceServer.ListOrders)},
		{MethodName: methodUpdateOrderStatus, Handler: unaryHandler(methodUpdateOrderStatus, OrderServiceServer.UpdateOrderStatus)},
		{MethodName: methodCancelOrder, Handler: unaryHandler(methodCancelOrder, OrderServiceServer.CancelOrder)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "fulfillment/v1/order_service.proto",
}

// RegisterOrderServiceServer регистрирует реализацию на сервере.
func RegisterOrderServiceServer(s grpc.ServiceRegistrar, srv OrderServiceServer) {
	s.RegisterService(&OrderServiceDesc, srv)
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func unaryHandler(
	method string,
	call func(OrderServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(OrderServiceServer), ctx, req.(*structpb.Struct))
		}
		if interceptor == nil {
			return handler(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
		return interceptor(ctx, in, info, handler)
	}
}

// OrderServiceClient — клиент fulfillment.v1.OrderService.
type OrderServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewOrderServiceClient создаёт клиента поверх соединения.
func NewOrderServiceClient(cc grpc.ClientConnInterface) *OrderServiceClient {
	return &OrderServiceClient{cc: cc}
}

func (c *OrderServiceClient) CreateOrder(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodCreateOrder, req, opts)
}

func (c *OrderServiceClient) GetOrder(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodGetOrder, req, opts)
}

func (c *OrderServiceClient) ListOrders(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodListOrders, req, opts)
}

func (c *OrderServiceClient) UpdateOrderStatus(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodUpdateOrderStatus, req, opts)
}

func (c *OrderServiceClient) CancelOrder(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodCancelOrder, req, opts)
}

func (c *OrderServiceClient) invoke(ctx context.Context, method string, req *structpb.Struct, opts []grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod(method), req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
