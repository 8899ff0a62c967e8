package service

import (
	"context"
	"fmt"

	"github.com/rl1809/order-stock/internal/core/domain"
)

// loadSnapshot reads the current stock of the given products in one call.
// Missing ids are simply absent from the result; callers decide whether that
// is an error.
func (s *OrderService) loadSnapshot(ctx context.Context, productIDs []int64) (map[int64]*domain.Product, error) {
	products, err := s.products.FindByIDs(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}

	snapshot := make(map[int64]*domain.Product, len(products))
	for i := range products {
		p := products[i]
		snapshot[p.ID] = &p
	}
	return snapshot, nil
}
