package domain

import (
	"fmt"
	"time"
)

type OrderItem struct {
	ProductID   int64
	ProductName string
	Quantity    int
	Price       int64
}

func NewOrderItem(productID int64, productName string, quantity int, price int64) (OrderItem, error) {
	if quantity <= 0 {
		return OrderItem{}, fmt.Errorf("%w: product %d, quantity %d", ErrInvalidQuantity, productID, quantity)
	}

	return OrderItem{
		ProductID:   productID,
		ProductName: productName,
		Quantity:    quantity,
		Price:       price,
	}, nil
}

func (i OrderItem) TotalPrice() int64 {
	return i.Price * int64(i.Quantity)
}

type Order struct {
	ID              int64 // zero until persisted
	CustomerName    string
	CustomerAddress string
	Items           []OrderItem
	OrderedAt       time.Time
}

func NewOrder(customerName, customerAddress string, items []OrderItem, orderedAt time.Time) (Order, error) {
	if len(items) == 0 {
		return Order{}, ErrInvalidOrder
	}

	copied := make([]OrderItem, len(items))
	copy(copied, items)

	return Order{
		CustomerName:    customerName,
		CustomerAddress: customerAddress,
		Items:           copied,
		OrderedAt:       orderedAt,
	}, nil
}

func (o Order) TotalPrice() int64 {
	var total int64
	for _, item := range o.Items {
		total += item.TotalPrice()
	}
	return total
}

// OrderCommand is an order request as received from a client or a parsed
// spreadsheet row, before prices are resolved.
type OrderCommand struct {
	CustomerName    string
	CustomerAddress string
	Items           []OrderItemCommand
}

type OrderItemCommand struct {
	ProductID   int64
	ProductName string
	Quantity    int
}

// ProductIDs returns the product ids of the command in input order,
// duplicates included.
func (c OrderCommand) ProductIDs() []int64 {
	ids := make([]int64, 0, len(c.Items))
	for _, item := range c.Items {
		ids = append(ids, item.ProductID)
	}
	return ids
}
