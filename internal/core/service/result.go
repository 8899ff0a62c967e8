package service

import (
	"time"

	"github.com/rl1809/order-stock/internal/core/domain"
)

type OrderItemResult struct {
	ProductID   int64
	ProductName string
	Quantity    int
	Price       int64
	TotalPrice  int64
}

type SingleOrderResult struct {
	OrderID         int64
	CustomerName    string
	CustomerAddress string
	TotalPrice      int64
	OrderedAt       time.Time
	Products        []OrderItemResult
}

func newSingleOrderResult(order domain.Order) SingleOrderResult {
	items := make([]OrderItemResult, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemResult{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       item.Price,
			TotalPrice:  item.TotalPrice(),
		})
	}

	return SingleOrderResult{
		OrderID:         order.ID,
		CustomerName:    order.CustomerName,
		CustomerAddress: order.CustomerAddress,
		TotalPrice:      order.TotalPrice(),
		OrderedAt:       order.OrderedAt,
		Products:        items,
	}
}

// FailedOrderResult identifies a rejected sub-order of a bulk batch. Reason
// is meant to be shown to the user as is.
type FailedOrderResult struct {
	CustomerName    string
	CustomerAddress string
	Reason          string
}

type BulkOrderResult struct {
	TotalOrders   int
	SuccessOrders []SingleOrderResult
	FailedOrders  []FailedOrderResult
}

func EmptyBulkOrderResult() *BulkOrderResult {
	return &BulkOrderResult{
		SuccessOrders: []SingleOrderResult{},
		FailedOrders:  []FailedOrderResult{},
	}
}

func newBulkOrderResult(saved []domain.Order, failed []FailedOrderResult) *BulkOrderResult {
	success := make([]SingleOrderResult, 0, len(saved))
	for _, order := range saved {
		success = append(success, newSingleOrderResult(order))
	}
	if failed == nil {
		failed = []FailedOrderResult{}
	}

	return &BulkOrderResult{
		TotalOrders:   len(success) + len(failed),
		SuccessOrders: success,
		FailedOrders:  failed,
	}
}

func (r *BulkOrderResult) SuccessCount() int { return len(r.SuccessOrders) }

func (r *BulkOrderResult) FailureCount() int { return len(r.FailedOrders) }
