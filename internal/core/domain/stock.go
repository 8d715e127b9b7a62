package domain

import "fmt"

// ConsumeStock takes quantity units out of stock.
func ConsumeStock(stock, quantity int) (int, error) {
	if quantity < 0 {
		return stock, fmt.Errorf("%w: negative quantity %d", ErrValidation, quantity)
	}
	if quantity > stock {
		return stock, fmt.Errorf("%w: requested %d, available %d", ErrInsufficientStock, quantity, stock)
	}
	return stock - quantity, nil
}

// ReturnStock puts quantity units back. Returning stock is always admissible.
func ReturnStock(stock, quantity int) (int, error) {
	if quantity < 0 {
		return stock, fmt.Errorf("%w: negative quantity %d", ErrValidation, quantity)
	}
	return stock + quantity, nil
}

// ReserveStock moves an existing reservation of previous units to next units.
// The units already held by the reservation count as available, so the check
// is stock+previous >= next.
func ReserveStock(stock, previous, next int) (int, error) {
	if previous < 0 || next < 0 {
		return stock, fmt.Errorf("%w: negative quantity", ErrValidation)
	}
	available := stock + previous
	if next > available {
		return stock, fmt.Errorf("%w: requested %d, available %d", ErrInsufficientStock, next, available)
	}
	return available - next, nil
}
