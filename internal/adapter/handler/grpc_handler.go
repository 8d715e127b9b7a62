package handler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rl1809/order-ledger/internal/core/domain"
	"github.com/rl1809/order-ledger/internal/core/service"
)

const (
	grpcServiceName = "orderledger.v1.OrderItemService"
	callerMetadata  = "x-caller-id"
)

type CreateOrderItemRequest struct {
	RequestID string `json:"request_id,omitempty"`
	OrderID   int64  `json:"order_id"`
	ProductID int64  `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

type UpdateOrderItemRequest struct {
	OrderItemID int64 `json:"order_item_id"`
	Quantity    int32 `json:"quantity"`
}

type ListOrderItemsRequest struct{}

type OrderItemIDRequest struct {
	OrderItemID int64 `json:"order_item_id"`
}

type OrderIDRequest struct {
	OrderID int64 `json:"order_id"`
}

type OrderItemMessage struct {
	ID        int64  `json:"id"`
	OrderID   int64  `json:"order_id"`
	ProductID int64  `json:"product_id"`
	Quantity  int32  `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type OrderItemReply struct {
	Item *OrderItemMessage `json:"item,omitempty"`
}

type OrderItemListReply struct {
	Items []*OrderItemMessage `json:"items"`
}

type DeleteOrderItemReply struct{}

// OrderItemServer is the server API of orderledger.v1.OrderItemService.
type OrderItemServer interface {
	Create(context.Context, *CreateOrderItemRequest) (*OrderItemReply, error)
	UpdateQuantity(context.Context, *UpdateOrderItemRequest) (*OrderItemReply, error)
	Delete(context.Context, *OrderItemIDRequest) (*DeleteOrderItemReply, error)
	Get(context.Context, *OrderItemIDRequest) (*OrderItemReply, error)
	ListByOrder(context.Context, *OrderIDRequest) (*OrderItemListReply, error)
	List(context.Context, *ListOrderItemsRequest) (*OrderItemListReply, error)
}

type GRPCHandler struct {
	orderItems OrderItemService
	logger     *zap.Logger
}

func NewGRPCHandler(orderItems OrderItemService, logger *zap.Logger) *GRPCHandler {
	return &GRPCHandler{orderItems: orderItems, logger: logger}
}

func RegisterOrderItemServer(s grpc.ServiceRegistrar, srv OrderItemServer) {
	s.RegisterService(&orderItemServiceDesc, srv)
}

func (h *GRPCHandler) Create(ctx context.Context, req *CreateOrderItemRequest) (*OrderItemReply, error) {
	item, err := h.orderItems.Create(ctx, callerFromMetadata(ctx), service.CreateOrderItemInput{
		OrderID:   req.OrderID,
		ProductID: req.ProductID,
		Quantity:  int(req.Quantity),
		RequestID: req.RequestID,
	})
	if err != nil {
		return nil, h.toStatus(err)
	}
	return &OrderItemReply{Item: toMessage(item)}, nil
}

func (h *GRPCHandler) UpdateQuantity(ctx context.Context, req *UpdateOrderItemRequest) (*OrderItemReply, error) {
	item, err := h.orderItems.UpdateQuantity(ctx, callerFromMetadata(ctx), service.UpdateOrderItemInput{
		OrderItemID: req.OrderItemID,
		Quantity:    int(req.Quantity),
	})
	if err != nil {
		return nil, h.toStatus(err)
	}
	return &OrderItemReply{Item: toMessage(item)}, nil
}

func (h *GRPCHandler) Delete(ctx context.Context, req *OrderItemIDRequest) (*DeleteOrderItemReply, error) {
	if err := h.orderItems.Delete(ctx, callerFromMetadata(ctx), req.OrderItemID); err != nil {
		return nil, h.toStatus(err)
	}
	return &DeleteOrderItemReply{}, nil
}

func (h *GRPCHandler) Get(ctx context.Context, req *OrderItemIDRequest) (*OrderItemReply, error) {
	item, err := h.orderItems.Get(ctx, req.OrderItemID)
	if err != nil {
		return nil, h.toStatus(err)
	}
	return &OrderItemReply{Item: toMessage(item)}, nil
}

func (h *GRPCHandler) ListByOrder(ctx context.Context, req *OrderIDRequest) (*OrderItemListReply, error) {
	items, err := h.orderItems.ListByOrder(ctx, req.OrderID)
	if err != nil {
		return nil, h.toStatus(err)
	}
	return toListReply(items), nil
}

func (h *GRPCHandler) List(ctx context.Context, _ *ListOrderItemsRequest) (*OrderItemListReply, error) {
	items, err := h.orderItems.List(ctx)
	if err != nil {
		return nil, h.toStatus(err)
	}
	return toListReply(items), nil
}

func (h *GRPCHandler) toStatus(err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrInsufficientStock):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrDuplicateRequest):
		return status.Error(codes.AlreadyExists, err.Error())
	default:
		h.logger.Error("grpc request failed", zap.Error(err))
		return status.Error(codes.Internal, "internal error")
	}
}

func callerFromMetadata(ctx context.Context) domain.Caller {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return domain.Caller{}
	}
	if v := md.Get(callerMetadata); len(v) > 0 {
		return domain.Caller{ID: v[0]}
	}
	return domain.Caller{}
}

func toMessage(item domain.OrderItem) *OrderItemMessage {
	return &OrderItemMessage{
		ID:        item.ID,
		OrderID:   item.OrderID,
		ProductID: item.ProductID,
		Quantity:  int32(item.Quantity),
		UnitPrice: formatMoney(item.UnitPrice),
		CreatedAt: item.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt: item.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toListReply(items []domain.OrderItem) *OrderItemListReply {
	reply := &OrderItemListReply{Items: make([]*OrderItemMessage, 0, len(items))}
	for _, item := range items {
		reply.Items = append(reply.Items, toMessage(item))
	}
	return reply
}

func unaryHandler[Req any, Resp any](method string, call func(OrderItemServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(OrderItemServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + grpcServiceName + "/" + method}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(OrderItemServer), ctx, req.(*Req))
			})
		},
	}
}

var orderItemServiceDesc = grpc.ServiceDesc{
	ServiceName: grpcServiceName,
	HandlerType: (*OrderItemServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("Create", OrderItemServer.Create),
		unaryHandler("UpdateQuantity", OrderItemServer.UpdateQuantity),
		unaryHandler("Delete", OrderItemServer.Delete),
		unaryHandler("Get", OrderItemServer.Get),
		unaryHandler("ListByOrder", OrderItemServer.ListByOrder),
		unaryHandler("List", OrderItemServer.List),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "orderledger/v1/order_item.proto",
}

// OrderItemClient calls orderledger.v1.OrderItemService over the JSON codec.
type OrderItemClient struct {
	cc     grpc.ClientConnInterface
	caller string
}

func NewOrderItemClient(cc grpc.ClientConnInterface, callerID string) *OrderItemClient {
	return &OrderItemClient{cc: cc, caller: callerID}
}

func (c *OrderItemClient) Create(ctx context.Context, in *CreateOrderItemRequest) (*OrderItemReply, error) {
	out := new(OrderItemReply)
	return out, c.invoke(ctx, "Create", in, out)
}

func (c *OrderItemClient) UpdateQuantity(ctx context.Context, in *UpdateOrderItemRequest) (*OrderItemReply, error) {
	out := new(OrderItemReply)
	return out, c.invoke(ctx, "UpdateQuantity", in, out)
}

func (c *OrderItemClient) Delete(ctx context.Context, in *OrderItemIDRequest) (*DeleteOrderItemReply, error) {
	out := new(DeleteOrderItemReply)
	return out, c.invoke(ctx, "Delete", in, out)
}

func (c *OrderItemClient) Get(ctx context.Context, in *OrderItemIDRequest) (*OrderItemReply, error) {
	out := new(OrderItemReply)
	return out, c.invoke(ctx, "Get", in, out)
}

func (c *OrderItemClient) ListByOrder(ctx context.Context, in *OrderIDRequest) (*OrderItemListReply, error) {
	out := new(OrderItemListReply)
	return out, c.invoke(ctx, "ListByOrder", in, out)
}

func (c *OrderItemClient) List(ctx context.Context, in *ListOrderItemsRequest) (*OrderItemListReply, error) {
	out := new(OrderItemListReply)
	return out, c.invoke(ctx, "List", in, out)
}

func (c *OrderItemClient) invoke(ctx context.Context, method string, in, out any) error {
	if c.caller != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, callerMetadata, c.caller)
	}
	return c.cc.Invoke(ctx, "/"+grpcServiceName+"/"+method, in, out, grpc.CallContentSubtype(jsonCodecName))
}
