package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/order-ledger/internal/core/domain"
	"github.com/rl1809/order-ledger/internal/port"
)

const (
	tracerName       = "github.com/rl1809/order-ledger/internal/core/service"
	defaultTxTimeout = 5 * time.Second
)

type CreateOrderItemInput struct {
	OrderID   int64
	ProductID int64
	Quantity  int

	// RequestID makes the create idempotent per caller when a cache is configured.
	RequestID string
}

type UpdateOrderItemInput struct {
	OrderItemID int64
	Quantity    int
}

// OrderItemService keeps product stock, order totals and line item price
// snapshots consistent. Every write runs in a single ledger transaction that
// locks the item, its order and its product in that order before any check.
type OrderItemService struct {
	ledger    port.LedgerRepository
	cache     port.CacheRepository
	publisher port.EventPublisher
	logger    *zap.Logger
	tracer    trace.Tracer
	txTimeout time.Duration
	now       func() time.Time
}

type Option func(*OrderItemService)

func WithCache(cache port.CacheRepository) Option {
	return func(s *OrderItemService) { s.cache = cache }
}

func WithPublisher(publisher port.EventPublisher) Option {
	return func(s *OrderItemService) { s.publisher = publisher }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *OrderItemService) { s.logger = logger }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *OrderItemService) { s.tracer = tracer }
}

func WithTxTimeout(timeout time.Duration) Option {
	return func(s *OrderItemService) {
		if timeout > 0 {
			s.txTimeout = timeout
		}
	}
}

func NewOrderItemService(ledger port.LedgerRepository, opts ...Option) *OrderItemService {
	s := &OrderItemService{
		ledger:    ledger,
		logger:    zap.NewNop(),
		tracer:    otel.Tracer(tracerName),
		txTimeout: defaultTxTimeout,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *OrderItemService) Create(ctx context.Context, caller domain.Caller, in CreateOrderItemInput) (item domain.OrderItem, err error) {
	ctx, span := s.tracer.Start(ctx, "order_item.create", trace.WithAttributes(
		attribute.Int64("order.id", in.OrderID),
		attribute.Int64("product.id", in.ProductID),
		attribute.Int("order_item.quantity", in.Quantity),
		attribute.String("caller.id", caller.String()),
	))
	defer span.End()
	defer func() {
		s.observe(span, "create", err, zap.Int64("order_id", in.OrderID), zap.Int64("product_id", in.ProductID))
	}()

	if in.Quantity < 1 {
		return domain.OrderItem{}, fmt.Errorf("%w: quantity must be at least 1, got %d", domain.ErrValidation, in.Quantity)
	}

	if in.RequestID != "" && s.cache != nil {
		key := fmt.Sprintf("order-item:%s:%s", caller, in.RequestID)
		ok, cacheErr := s.cache.SetIdempotency(ctx, key)
		if cacheErr != nil {
			return domain.OrderItem{}, fmt.Errorf("%w: idempotency check: %w", domain.ErrInternal, cacheErr)
		}
		if !ok {
			return domain.OrderItem{}, fmt.Errorf("%w: request %s already processed", domain.ErrDuplicateRequest, in.RequestID)
		}
		defer func() {
			if err == nil {
				return
			}
			if relErr := s.cache.ReleaseIdempotency(context.WithoutCancel(ctx), key); relErr != nil {
				s.logger.Error("failed to release idempotency key", zap.String("key", key), zap.Error(relErr))
			}
		}()
	}

	var event domain.OrderItemEvent
	err = s.withinTx(ctx, func(ctx context.Context, tx port.LedgerTx) error {
		order, err := tx.LockOrder(ctx, in.OrderID)
		if err != nil {
			return err
		}
		if order == nil {
			return fmt.Errorf("%w: order %d", domain.ErrNotFound, in.OrderID)
		}

		product, err := tx.LockProduct(ctx, in.ProductID)
		if err != nil {
			return err
		}
		if product == nil {
			return fmt.Errorf("%w: product %d", domain.ErrNotFound, in.ProductID)
		}

		stock, err := domain.ConsumeStock(product.QuantityInStock, in.Quantity)
		if err != nil {
			return fmt.Errorf("product %d: %w", product.ID, err)
		}

		item = domain.OrderItem{
			OrderID:   order.ID,
			ProductID: product.ID,
			Quantity:  in.Quantity,
			UnitPrice: product.Price,
		}
		product.QuantityInStock = stock
		order.TotalPrice = domain.RecomputeTotal(order.TotalPrice, decimal.Zero, item.Subtotal())

		if err := tx.InsertOrderItem(ctx, &item); err != nil {
			return err
		}
		if err := tx.UpdateProductStock(ctx, product); err != nil {
			return err
		}
		if err := tx.UpdateOrderTotal(ctx, order); err != nil {
			return err
		}

		event = s.newEvent(domain.EventOrderItemCreated, caller, item, 0, order, product)
		return nil
	})
	if err != nil {
		return domain.OrderItem{}, err
	}

	span.SetAttributes(attribute.Int64("order_item.id", item.ID))
	s.publish(ctx, event)
	return item, nil
}

// UpdateQuantity changes an item's quantity. Both legs of the total are priced
// at the item's own UnitPrice; the product's current price is not consulted.
func (s *OrderItemService) UpdateQuantity(ctx context.Context, caller domain.Caller, in UpdateOrderItemInput) (item domain.OrderItem, err error) {
	ctx, span := s.tracer.Start(ctx, "order_item.update_quantity", trace.WithAttributes(
		attribute.Int64("order_item.id", in.OrderItemID),
		attribute.Int("order_item.quantity", in.Quantity),
		attribute.String("caller.id", caller.String()),
	))
	defer span.End()
	defer func() {
		s.observe(span, "update_quantity", err, zap.Int64("order_item_id", in.OrderItemID))
	}()

	if in.Quantity < 1 {
		return domain.OrderItem{}, fmt.Errorf("%w: quantity must be at least 1, got %d", domain.ErrValidation, in.Quantity)
	}

	var event domain.OrderItemEvent
	err = s.withinTx(ctx, func(ctx context.Context, tx port.LedgerTx) error {
		locked, order, product, err := s.lockLineItem(ctx, tx, in.OrderItemID)
		if err != nil {
			return err
		}

		previous := locked.Quantity
		stock, err := domain.ReserveStock(product.QuantityInStock, previous, in.Quantity)
		if err != nil {
			return fmt.Errorf("product %d: %w", product.ID, err)
		}

		product.QuantityInStock = stock
		order.TotalPrice = domain.RecomputeTotal(order.TotalPrice,
			domain.Subtotal(locked.UnitPrice, previous),
			domain.Subtotal(locked.UnitPrice, in.Quantity))
		locked.Quantity = in.Quantity

		if err := tx.UpdateProductStock(ctx, product); err != nil {
			return err
		}
		if err := tx.UpdateOrderTotal(ctx, order); err != nil {
			return err
		}
		if err := tx.UpdateOrderItemQuantity(ctx, locked); err != nil {
			return err
		}

		item = *locked
		event = s.newEvent(domain.EventOrderItemUpdated, caller, item, previous, order, product)
		return nil
	})
	if err != nil {
		return domain.OrderItem{}, err
	}

	s.publish(ctx, event)
	return item, nil
}

func (s *OrderItemService) Delete(ctx context.Context, caller domain.Caller, orderItemID int64) (err error) {
	ctx, span := s.tracer.Start(ctx, "order_item.delete", trace.WithAttributes(
		attribute.Int64("order_item.id", orderItemID),
		attribute.String("caller.id", caller.String()),
	))
	defer span.End()
	defer func() {
		s.observe(span, "delete", err, zap.Int64("order_item_id", orderItemID))
	}()

	var event domain.OrderItemEvent
	err = s.withinTx(ctx, func(ctx context.Context, tx port.LedgerTx) error {
		item, order, product, err := s.lockLineItem(ctx, tx, orderItemID)
		if err != nil {
			return err
		}

		stock, err := domain.ReturnStock(product.QuantityInStock, item.Quantity)
		if err != nil {
			return err
		}
		product.QuantityInStock = stock
		order.TotalPrice = domain.RecomputeTotal(order.TotalPrice, item.Subtotal(), decimal.Zero)

		if err := tx.DeleteOrderItem(ctx, item.ID); err != nil {
			return err
		}
		if err := tx.UpdateProductStock(ctx, product); err != nil {
			return err
		}
		if err := tx.UpdateOrderTotal(ctx, order); err != nil {
			return err
		}

		event = s.newEvent(domain.EventOrderItemDeleted, caller, *item, item.Quantity, order, product)
		event.Quantity = 0
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx, event)
	return nil
}

func (s *OrderItemService) Get(ctx context.Context, orderItemID int64) (domain.OrderItem, error) {
	item, err := s.ledger.GetOrderItem(ctx, orderItemID)
	if err != nil {
		return domain.OrderItem{}, internalError(err)
	}
	if item == nil {
		return domain.OrderItem{}, fmt.Errorf("%w: order item %d", domain.ErrNotFound, orderItemID)
	}
	return *item, nil
}

func (s *OrderItemService) ListByOrder(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	order, err := s.ledger.GetOrder(ctx, orderID)
	if err != nil {
		return nil, internalError(err)
	}
	if order == nil {
		return nil, fmt.Errorf("%w: order %d", domain.ErrNotFound, orderID)
	}

	items, err := s.ledger.ListOrderItems(ctx, orderID)
	if err != nil {
		return nil, internalError(err)
	}
	return items, nil
}

// List returns every order item ordered by id.
func (s *OrderItemService) List(ctx context.Context) ([]domain.OrderItem, error) {
	items, err := s.ledger.ListAllOrderItems(ctx)
	if err != nil {
		return nil, internalError(err)
	}
	return items, nil
}

// lockLineItem locks an existing item and then its order and product.
func (s *OrderItemService) lockLineItem(ctx context.Context, tx port.LedgerTx, id int64) (*domain.OrderItem, *domain.Order, *domain.Product, error) {
	item, err := tx.LockOrderItem(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	if item == nil {
		return nil, nil, nil, fmt.Errorf("%w: order item %d", domain.ErrNotFound, id)
	}

	order, err := tx.LockOrder(ctx, item.OrderID)
	if err != nil {
		return nil, nil, nil, err
	}
	if order == nil {
		return nil, nil, nil, fmt.Errorf("%w: order %d of order item %d", domain.ErrNotFound, item.OrderID, id)
	}

	product, err := tx.LockProduct(ctx, item.ProductID)
	if err != nil {
		return nil, nil, nil, err
	}
	if product == nil {
		return nil, nil, nil, fmt.Errorf("%w: product %d of order item %d", domain.ErrNotFound, item.ProductID, id)
	}
	return item, order, product, nil
}

// withinTx bounds the transaction by txTimeout and tags every failure that
// is not a domain rejection as internal.
func (s *OrderItemService) withinTx(ctx context.Context, fn func(ctx context.Context, tx port.LedgerTx) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	err := s.ledger.WithinTx(ctx, fn)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: transaction timed out after %s: %w", domain.ErrInternal, s.txTimeout, err)
	}
	return internalError(err)
}

func internalError(err error) error {
	if domain.KindOf(err) != domain.KindInternal || errors.Is(err, domain.ErrInternal) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrInternal, err)
}

func (s *OrderItemService) newEvent(typ domain.EventType, caller domain.Caller, item domain.OrderItem, previous int, order *domain.Order, product *domain.Product) domain.OrderItemEvent {
	return domain.OrderItemEvent{
		ID:               uuid.NewString(),
		Type:             typ,
		OrderItemID:      item.ID,
		OrderID:          item.OrderID,
		ProductID:        item.ProductID,
		Quantity:         item.Quantity,
		PreviousQuantity: previous,
		UnitPrice:        item.UnitPrice,
		OrderTotal:       order.TotalPrice,
		ProductStock:     product.QuantityInStock,
		Actor:            caller.String(),
		OccurredAt:       s.now().UTC(),
	}
}

func (s *OrderItemService) publish(ctx context.Context, event domain.OrderItemEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish order item event",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
			zap.Int64("order_item_id", event.OrderItemID),
			zap.Error(err),
		)
	}
}

func (s *OrderItemService) observe(span trace.Span, op string, err error, fields ...zap.Field) {
	if err == nil {
		span.SetStatus(codes.Ok, "")
		s.logger.Info("order item "+op+" committed", fields...)
		return
	}

	kind := domain.KindOf(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, string(kind))
	span.SetAttributes(attribute.String("error.kind", string(kind)))

	fields = append(fields, zap.String("kind", string(kind)), zap.Error(err))
	if kind == domain.KindInternal {
		s.logger.Error("order item "+op+" failed", fields...)
		return
	}
	s.logger.Info("order item "+op+" rejected", fields...)
}
