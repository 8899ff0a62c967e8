package domain

import "errors"

var (
	ErrInvalidOrder          = errors.New("order must contain at least one item")
	ErrDuplicateProductOrder = errors.New("order contains the same product more than once")
	ErrProductNotFound       = errors.New("product not found")
	ErrInvalidQuantity       = errors.New("quantity must be positive")
	ErrOutOfStock            = errors.New("out of stock")
	ErrLockAcquireFailed     = errors.New("failed to acquire lock")
)

// IsBusinessError reports whether err is a rejection of the order itself
// rather than an infrastructure failure.
func IsBusinessError(err error) bool {
	return errors.Is(err, ErrInvalidOrder) ||
		errors.Is(err, ErrDuplicateProductOrder) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrOutOfStock)
}
