package handler

import (
	"context"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rl1809/order-stock/internal/core/service"
)

const orderServiceName = "orderstock.v1.OrderService"

// OrderServiceServer is the server side of the order gRPC service. Messages
// travel with the json codec, so no generated stubs are involved.
type OrderServiceServer interface {
	CreateSingleOrder(ctx context.Context, req *CreateOrderRequest) (*SingleOrderResponse, error)
	CreateBulkOrder(ctx context.Context, req *BulkOrderRequest) (*BulkOrderResponse, error)
}

var OrderServiceDesc = grpc.ServiceDesc{
	ServiceName: orderServiceName,
	HandlerType: (*OrderServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateSingleOrder", Handler: createSingleOrderHandler},
		{MethodName: "CreateBulkOrder", Handler: createBulkOrderHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "orderstock/v1/order_service",
}

func RegisterOrderServiceServer(s grpc.ServiceRegistrar, srv OrderServiceServer) {
	s.RegisterService(&OrderServiceDesc, srv)
}

func createSingleOrderHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CreateOrderRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderServiceServer).CreateSingleOrder(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + orderServiceName + "/CreateSingleOrder"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrderServiceServer).CreateSingleOrder(ctx, req.(*CreateOrderRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func createBulkOrderHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(BulkOrderRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderServiceServer).CreateBulkOrder(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + orderServiceName + "/CreateBulkOrder"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrderServiceServer).CreateBulkOrder(ctx, req.(*BulkOrderRequest))
	}
	return interceptor(ctx, in, info, handler)
}

type GRPCHandler struct {
	orderService *service.OrderService
	log          zerolog.Logger
}

func NewGRPCHandler(orderService *service.OrderService, log zerolog.Logger) *GRPCHandler {
	return &GRPCHandler{orderService: orderService, log: log}
}

func (h *GRPCHandler) CreateSingleOrder(ctx context.Context, req *CreateOrderRequest) (*SingleOrderResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	result, err := h.orderService.CreateSingleOrder(ctx, req.toCommand())
	if err != nil {
		return nil, h.toStatus(err)
	}
	return newSingleOrderResponse(result), nil
}

func (h *GRPCHandler) CreateBulkOrder(ctx context.Context, req *BulkOrderRequest) (*BulkOrderResponse, error) {
	var (
		result *service.BulkOrderResult
		err    error
	)

	if len(req.File) > 0 {
		result, err = h.orderService.CreateBulkOrder(ctx, req.File)
	} else {
		result, err = h.orderService.ProcessBulkOrders(ctx, bulkCommands(req.Orders))
	}
	if err != nil {
		return nil, h.toStatus(err)
	}
	return newBulkOrderResponse(result), nil
}

func (h *GRPCHandler) toStatus(err error) error {
	_, code := errorClass(err)
	if code == codes.Internal {
		h.log.Error().Err(err).Msg("order rpc failed")
	}
	return status.Error(code, publicMessage(err))
}

// OrderServiceClient calls the order service over a connection that uses
// the json codec.
type OrderServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewOrderServiceClient(cc grpc.ClientConnInterface) *OrderServiceClient {
	return &OrderServiceClient{cc: cc}
}

func (c *OrderServiceClient) CreateSingleOrder(ctx context.Context, req *CreateOrderRequest, opts ...grpc.CallOption) (*SingleOrderResponse, error) {
	out := new(SingleOrderResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, "/"+orderServiceName+"/CreateSingleOrder", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderServiceClient) CreateBulkOrder(ctx context.Context, req *BulkOrderRequest, opts ...grpc.CallOption) (*BulkOrderResponse, error) {
	out := new(BulkOrderResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, "/"+orderServiceName+"/CreateBulkOrder", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
