package service

import (
	"fmt"

	"github.com/rl1809/order-stock/internal/core/domain"
)

// executionContext is the call-scoped state of one order-processing call:
// which product locks it holds and what the stock looked like before it
// started mutating. It is never shared between calls.
type executionContext struct {
	productIDs   []int64 // sorted, distinct
	acquired     []heldLock // in acquisition order
	backupStocks map[int64]int
}

func newExecutionContext(sortedProductIDs []int64) *executionContext {
	return &executionContext{
		productIDs:   sortedProductIDs,
		acquired:     make([]heldLock, 0, len(sortedProductIDs)),
		backupStocks: make(map[int64]int, len(sortedProductIDs)),
	}
}

type heldLock struct {
	productID int64
	token     string
}

func (c *executionContext) lockAcquired(productID int64, token string) {
	c.acquired = append(c.acquired, heldLock{productID: productID, token: token})
}

// backup copies every product quantity so that restore can undo reductions
// that were applied in memory but must not survive.
func (c *executionContext) backup(products map[int64]*domain.Product) {
	for id, p := range products {
		c.backupStocks[id] = p.Quantity
	}
}

func (c *executionContext) restore(products map[int64]*domain.Product) {
	for id, quantity := range c.backupStocks {
		if p, ok := products[id]; ok && p.Quantity != quantity {
			p.UpdateQuantity(quantity)
		}
	}
}

// mutated returns the products whose quantity differs from the backup,
// ordered by product id.
func (c *executionContext) mutated(products map[int64]*domain.Product) []domain.Product {
	changed := make([]domain.Product, 0, len(products))
	for _, id := range c.productIDs {
		p, ok := products[id]
		if !ok {
			continue
		}
		if original, ok := c.backupStocks[id]; ok && original != p.Quantity {
			changed = append(changed, *p)
		}
	}
	return changed
}

// validateAndReduce applies every item of one order to the snapshot, or none
// of them. Demand is summed per product and checked before the first
// reduction.
func (c *executionContext) validateAndReduce(items []domain.OrderItem, products map[int64]*domain.Product) error {
	demand := make(map[int64]int, len(items))
	for _, item := range items {
		if _, ok := products[item.ProductID]; !ok {
			return fmt.Errorf("%w: %d", domain.ErrProductNotFound, item.ProductID)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: product %d, quantity %d", domain.ErrInvalidQuantity, item.ProductID, item.Quantity)
		}
		demand[item.ProductID] += item.Quantity
	}

	for _, item := range items {
		if p := products[item.ProductID]; p.Quantity < demand[item.ProductID] {
			return fmt.Errorf("%w: product %d has %d, requested %d", domain.ErrOutOfStock, p.ID, p.Quantity, demand[item.ProductID])
		}
	}

	for _, item := range items {
		if err := products[item.ProductID].ReduceStock(item.Quantity); err != nil {
			return err
		}
	}

	return nil
}
