package service

import (
	"fmt"
	"slices"
	"time"

	"github.com/rl1809/order-stock/internal/core/domain"
)

// assembleOrder prices a command against the snapshot. It does not touch
// stock and does not persist anything.
func assembleOrder(cmd domain.OrderCommand, products map[int64]*domain.Product, orderedAt time.Time) (domain.Order, error) {
	if len(cmd.Items) == 0 {
		return domain.Order{}, domain.ErrInvalidOrder
	}
	if err := checkDuplicateProducts(cmd); err != nil {
		return domain.Order{}, err
	}

	items := make([]domain.OrderItem, 0, len(cmd.Items))
	for _, itemCmd := range cmd.Items {
		product, ok := products[itemCmd.ProductID]
		if !ok {
			return domain.Order{}, fmt.Errorf("%w: %d", domain.ErrProductNotFound, itemCmd.ProductID)
		}

		item, err := domain.NewOrderItem(product.ID, product.Name, itemCmd.Quantity, product.Price)
		if err != nil {
			return domain.Order{}, err
		}
		items = append(items, item)
	}

	return domain.NewOrder(cmd.CustomerName, cmd.CustomerAddress, items, orderedAt)
}

// checkDuplicateProducts fails on the first product id seen twice, scanning
// in input order.
func checkDuplicateProducts(cmd domain.OrderCommand) error {
	seen := make(map[int64]struct{}, len(cmd.Items))
	for _, item := range cmd.Items {
		if _, ok := seen[item.ProductID]; ok {
			return fmt.Errorf("%w: %d", domain.ErrDuplicateProductOrder, item.ProductID)
		}
		seen[item.ProductID] = struct{}{}
	}
	return nil
}

// sortedProductIDs returns the distinct product ids of all commands in
// ascending order, which is the only order locks may be taken in.
func sortedProductIDs(cmds ...domain.OrderCommand) []int64 {
	ids := make([]int64, 0)
	for _, cmd := range cmds {
		ids = append(ids, cmd.ProductIDs()...)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}
