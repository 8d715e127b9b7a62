package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventOrderItemCreated EventType = "order_item.created"
	EventOrderItemUpdated EventType = "order_item.updated"
	EventOrderItemDeleted EventType = "order_item.deleted"
)

// OrderItemEvent describes a committed change and the derived values it left
// behind on the order and product.
type OrderItemEvent struct {
	ID               string          `json:"id"`
	Type             EventType       `json:"type"`
	OrderItemID      int64           `json:"order_item_id"`
	OrderID          int64           `json:"order_id"`
	ProductID        int64           `json:"product_id"`
	Quantity         int             `json:"quantity"`
	PreviousQuantity int             `json:"previous_quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	OrderTotal       decimal.Decimal `json:"order_total"`
	ProductStock     int             `json:"product_stock"`
	Actor            string          `json:"actor"`
	OccurredAt       time.Time       `json:"occurred_at"`
}
