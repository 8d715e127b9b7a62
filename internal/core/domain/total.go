package domain

import "github.com/shopspring/decimal"

// Subtotal is unitPrice * quantity.
func Subtotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// RecomputeTotal swaps one line item's contribution in an order total.
// oldSubtotal is zero on creation, newSubtotal is zero on deletion.
func RecomputeTotal(total, oldSubtotal, newSubtotal decimal.Decimal) decimal.Decimal {
	return total.Sub(oldSubtotal).Add(newSubtotal)
}
