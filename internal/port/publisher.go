package port

import (
	"context"

	"github.com/rl1809/order-stock/internal/core/domain"
)

type EventPublisher interface {
	// PublishOrdersPlaced announces committed orders
	PublishOrdersPlaced(ctx context.Context, orders []domain.Order) error
}
