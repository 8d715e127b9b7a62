package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID            int64
	UserID        string
	CustomerName  string
	CustomerEmail string
	Date          time.Time
	TotalPrice    decimal.Decimal
	Version       int // optimistic locking
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
