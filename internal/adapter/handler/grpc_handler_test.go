package handler

import (
	"context"
	"net"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func newTestClient(t *testing.T, env *testEnv) *OrderServiceClient {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterOrderServiceServer(srv, NewGRPCHandler(env.service, zerolog.Nop()))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return NewOrderServiceClient(conn)
}

func TestGRPCHandler_CreateSingleOrder(t *testing.T) {
	env := newTestEnv()
	client := newTestClient(t, env)

	resp, err := client.CreateSingleOrder(context.Background(), &CreateOrderRequest{
		CustomerName:    "Alice",
		CustomerAddress: "1 Main St",
		Items:           []OrderItemRequest{{ProductID: 1, ProductName: "Keyboard", Quantity: 3}},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), resp.OrderID)
	assert.Equal(t, int64(1500), resp.TotalPrice)
	qty, _ := env.products.Quantity(1)
	assert.Equal(t, 7, qty)
}

func TestGRPCHandler_StatusCodes(t *testing.T) {
	tests := []struct {
		name string
		req  *CreateOrderRequest
		code codes.Code
	}{
		{"invalid request", &CreateOrderRequest{CustomerName: "Alice"}, codes.InvalidArgument},
		{"unknown product", &CreateOrderRequest{
			CustomerName: "Alice", CustomerAddress: "x",
			Items: []OrderItemRequest{{ProductID: 9, ProductName: "?", Quantity: 1}},
		}, codes.NotFound},
		{"out of stock", &CreateOrderRequest{
			CustomerName: "Alice", CustomerAddress: "x",
			Items: []OrderItemRequest{{ProductID: 2, ProductName: "Mouse", Quantity: 50}},
		}, codes.FailedPrecondition},
	}

	env := newTestEnv()
	client := newTestClient(t, env)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.CreateSingleOrder(context.Background(), tt.req)
			assert.Equal(t, tt.code, status.Code(err))
		})
	}
	assert.Zero(t, env.orders.Count())
}

func TestGRPCHandler_CreateBulkOrderFromList(t *testing.T) {
	env := newTestEnv()
	client := newTestClient(t, env)

	resp, err := client.CreateBulkOrder(context.Background(), &BulkOrderRequest{
		Orders: []CreateOrderRequest{
			{CustomerName: "Alice", CustomerAddress: "1 Main St",
				Items: []OrderItemRequest{{ProductID: 1, ProductName: "Keyboard", Quantity: 4}}},
			{CustomerName: "Bob", CustomerAddress: "2 Side St"},
			{CustomerName: "Carol", CustomerAddress: "3 High St",
				Items: []OrderItemRequest{{ProductID: 1, ProductName: "Keyboard", Quantity: 7}}},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, resp.TotalOrders)
	assert.Equal(t, 1, resp.SuccessCount)
	assert.Equal(t, 2, resp.FailureCount)
	qty, _ := env.products.Quantity(1)
	assert.Equal(t, 6, qty)
}
