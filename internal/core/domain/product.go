package domain

import (
	"fmt"
	"time"
)

const productLockKeyPrefix = "PRODUCT_LOCK:"

type Product struct {
	ID        int64
	Name      string
	Price     int64 // smallest currency unit
	Quantity  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ReduceStock decrements the quantity on hand. The product is left untouched
// when the reduction is rejected.
func (p *Product) ReduceStock(quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: product %d, quantity %d", ErrInvalidQuantity, p.ID, quantity)
	}
	if p.Quantity < quantity {
		return fmt.Errorf("%w: product %d has %d, requested %d", ErrOutOfStock, p.ID, p.Quantity, quantity)
	}

	p.Quantity -= quantity
	p.UpdatedAt = time.Now()
	return nil
}

func (p *Product) UpdateQuantity(quantity int) {
	p.Quantity = quantity
	p.UpdatedAt = time.Now()
}

// ProductLockKey returns the lock key guarding the stock of one product.
func ProductLockKey(productID int64) string {
	return fmt.Sprintf("%s%d", productLockKeyPrefix, productID)
}
