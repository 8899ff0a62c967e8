package handler

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rl1809/order-stock/internal/core/domain"
	"github.com/rl1809/order-stock/internal/core/service"
)

var ErrValidation = errors.New("validation failed")

var customerNamePattern = regexp.MustCompile(`^[\p{L}\p{N}\s]*$`)

type OrderItemRequest struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
}

type CreateOrderRequest struct {
	CustomerName    string             `json:"customer_name"`
	CustomerAddress string             `json:"customer_address"`
	Items           []OrderItemRequest `json:"items"`
}

func (r CreateOrderRequest) Validate() error {
	var problems []string

	name := strings.TrimSpace(r.CustomerName)
	switch {
	case name == "":
		problems = append(problems, "customer_name is required")
	case !customerNamePattern.MatchString(name):
		problems = append(problems, "customer_name must not contain special characters")
	}
	if strings.TrimSpace(r.CustomerAddress) == "" {
		problems = append(problems, "customer_address is required")
	}
	if len(r.Items) == 0 {
		problems = append(problems, "items must contain at least one item")
	}
	for i, item := range r.Items {
		if item.ProductID == 0 {
			problems = append(problems, fmt.Sprintf("items[%d].product_id is required", i))
		}
		if strings.TrimSpace(item.ProductName) == "" {
			problems = append(problems, fmt.Sprintf("items[%d].product_name is required", i))
		}
		if item.Quantity < 1 {
			problems = append(problems, fmt.Sprintf("items[%d].quantity must be at least 1", i))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}

func (r CreateOrderRequest) toCommand() domain.OrderCommand {
	items := make([]domain.OrderItemCommand, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, domain.OrderItemCommand{
			ProductID:   item.ProductID,
			ProductName: strings.TrimSpace(item.ProductName),
			Quantity:    item.Quantity,
		})
	}

	return domain.OrderCommand{
		CustomerName:    strings.TrimSpace(r.CustomerName),
		CustomerAddress: strings.TrimSpace(r.CustomerAddress),
		Items:           items,
	}
}

// BulkOrderRequest carries either an xlsx workbook or a list of orders.
// File wins when both are set.
type BulkOrderRequest struct {
	File   []byte               `json:"file,omitempty"`
	Orders []CreateOrderRequest `json:"orders,omitempty"`
}

type OrderItemResponse struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	Price       int64  `json:"price"`
	TotalPrice  int64  `json:"total_price"`
}

type SingleOrderResponse struct {
	OrderID         int64               `json:"order_id"`
	CustomerName    string              `json:"customer_name"`
	CustomerAddress string              `json:"customer_address"`
	TotalPrice      int64               `json:"total_price"`
	OrderedAt       time.Time           `json:"ordered_at"`
	Products        []OrderItemResponse `json:"products"`
}

type FailedOrderResponse struct {
	CustomerName    string `json:"customer_name"`
	CustomerAddress string `json:"customer_address"`
	Reason          string `json:"reason"`
}

type BulkOrderResponse struct {
	TotalOrders   int                   `json:"total_orders"`
	SuccessCount  int                   `json:"success_count"`
	FailureCount  int                   `json:"failure_count"`
	SuccessOrders []SingleOrderResponse `json:"success_orders"`
	FailedOrders  []FailedOrderResponse `json:"failed_orders"`
}

func newSingleOrderResponse(r *service.SingleOrderResult) *SingleOrderResponse {
	products := make([]OrderItemResponse, 0, len(r.Products))
	for _, p := range r.Products {
		products = append(products, OrderItemResponse(p))
	}

	return &SingleOrderResponse{
		OrderID:         r.OrderID,
		CustomerName:    r.CustomerName,
		CustomerAddress: r.CustomerAddress,
		TotalPrice:      r.TotalPrice,
		OrderedAt:       r.OrderedAt,
		Products:        products,
	}
}

func newBulkOrderResponse(r *service.BulkOrderResult) *BulkOrderResponse {
	success := make([]SingleOrderResponse, 0, len(r.SuccessOrders))
	for i := range r.SuccessOrders {
		success = append(success, *newSingleOrderResponse(&r.SuccessOrders[i]))
	}
	failed := make([]FailedOrderResponse, 0, len(r.FailedOrders))
	for _, f := range r.FailedOrders {
		failed = append(failed, FailedOrderResponse(f))
	}

	return &BulkOrderResponse{
		TotalOrders:   r.TotalOrders,
		SuccessCount:  r.SuccessCount(),
		FailureCount:  r.FailureCount(),
		SuccessOrders: success,
		FailedOrders:  failed,
	}
}

// bulkCommands converts without edge validation: a bad entry is reported as
// a failed order of the batch instead of rejecting the whole request.
func bulkCommands(reqs []CreateOrderRequest) []domain.OrderCommand {
	cmds := make([]domain.OrderCommand, 0, len(reqs))
	for _, r := range reqs {
		cmds = append(cmds, r.toCommand())
	}
	return cmds
}
