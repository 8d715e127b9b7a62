package port

import (
	"context"

	"github.com/rl1809/order-ledger/internal/core/domain"
)

type EventPublisher interface {
	// Publish emits a committed change. It is called after commit, so a
	// failure never undoes the change.
	Publish(ctx context.Context, event domain.OrderItemEvent) error
}
