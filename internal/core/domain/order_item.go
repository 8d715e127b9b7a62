package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderItem is a quantity of one product attached to one order. UnitPrice is
// the product price captured at creation and never changes afterwards.
type OrderItem struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Subtotal returns the item's contribution to its order total.
func (i OrderItem) Subtotal() decimal.Decimal {
	return Subtotal(i.UnitPrice, i.Quantity)
}
