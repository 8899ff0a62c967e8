package port

import (
	"context"

	"github.com/rl1809/order-stock/internal/core/domain"
)

type ProductRepository interface {
	// FindByIDs returns the products that exist among ids, in no particular order
	FindByIDs(ctx context.Context, ids []int64) ([]domain.Product, error)

	// SaveAll upserts the given products
	SaveAll(ctx context.Context, products []domain.Product) error
}

type OrderRepository interface {
	// Save persists an order with its items and returns it with the assigned ID
	Save(ctx context.Context, order domain.Order) (domain.Order, error)

	// SaveAll persists orders in one batch, returned in input order with IDs assigned
	SaveAll(ctx context.Context, orders []domain.Order) ([]domain.Order, error)
}
