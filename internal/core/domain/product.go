package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID              int64
	Name            string
	Description     string
	Price           decimal.Decimal
	QuantityInStock int
	Version         int // optimistic locking
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
