package port

import (
	"context"

	"github.com/rl1809/order-stock/internal/core/domain"
)

type OrderParser interface {
	// Parse turns an uploaded file into order commands. Unreadable or empty
	// input yields an empty slice
	Parse(ctx context.Context, data []byte) []domain.OrderCommand
}
