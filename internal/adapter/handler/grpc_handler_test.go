package handler

import (
	"context"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/rl1809/order-ledger/internal/core/domain"
)

func newBufconnClient(t *testing.T, svc OrderItemService) *OrderItemClient {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterOrderItemServer(srv, NewGRPCHandler(svc, zap.NewNop()))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return NewOrderItemClient(conn, "clerk-1")
}

func TestGRPCHandler_CreateRoundTrip(t *testing.T) {
	stub := &stubService{}
	client := newBufconnClient(t, stub)

	reply, err := client.Create(context.Background(), &CreateOrderItemRequest{OrderID: 2, ProductID: 3, Quantity: 4, RequestID: "r-1"})
	require.NoError(t, err)
	require.NotNil(t, reply.Item)
	assert.Equal(t, int64(2), reply.Item.OrderID)
	assert.Equal(t, int32(4), reply.Item.Quantity)
	assert.Equal(t, "10.00", reply.Item.UnitPrice)
	assert.Equal(t, "clerk-1", stub.lastCaller.ID)
	assert.Equal(t, "r-1", stub.lastCreate.RequestID)
}

func TestGRPCHandler_StatusCodes(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{fmt.Errorf("%w: order item 1", domain.ErrNotFound), codes.NotFound},
		{fmt.Errorf("product 1: %w", domain.ErrInsufficientStock), codes.FailedPrecondition},
		{fmt.Errorf("%w: quantity", domain.ErrValidation), codes.InvalidArgument},
		{domain.ErrDuplicateRequest, codes.AlreadyExists},
		{fmt.Errorf("%w: db down", domain.ErrInternal), codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			client := newBufconnClient(t, &stubService{err: tt.err})
			_, err := client.UpdateQuantity(context.Background(), &UpdateOrderItemRequest{OrderItemID: 1, Quantity: 2})
			require.Error(t, err)
			assert.Equal(t, tt.code, status.Code(err))
		})
	}
}

func TestGRPCHandler_ListAndDelete(t *testing.T) {
	client := newBufconnClient(t, &stubService{})

	list, err := client.ListByOrder(context.Background(), &OrderIDRequest{OrderID: 1})
	require.NoError(t, err)
	assert.Empty(t, list.Items)

	_, err = client.Delete(context.Background(), &OrderItemIDRequest{OrderItemID: 1})
	require.NoError(t, err)

	got, err := client.Get(context.Background(), &OrderItemIDRequest{OrderItemID: 8})
	require.NoError(t, err)
	assert.Equal(t, int64(8), got.Item.ID)
}

func TestGRPCHandler_List(t *testing.T) {
	client := newBufconnClient(t, &stubService{})

	reply, err := client.List(context.Background(), &ListOrderItemsRequest{})
	require.NoError(t, err)
	require.Len(t, reply.Items, 2)
	assert.Equal(t, "10.00", reply.Items[0].UnitPrice)
	assert.Equal(t, "0.105", reply.Items[1].UnitPrice)

	client = newBufconnClient(t, &stubService{err: fmt.Errorf("%w: db down", domain.ErrInternal)})
	_, err = client.List(context.Background(), &ListOrderItemsRequest{})
	assert.Equal(t, codes.Internal, status.Code(err))
}
