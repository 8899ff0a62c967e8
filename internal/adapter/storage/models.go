package storage

import (
	"time"

	"github.com/rl1809/order-stock/internal/core/domain"
)

type productModel struct {
	ID        int64  `gorm:"primaryKey;autoIncrement:false"`
	Name      string `gorm:"size:255;not null"`
	Price     int64  `gorm:"not null"`
	Quantity  int    `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (productModel) TableName() string {
	return "products"
}

type orderModel struct {
	ID              int64  `gorm:"primaryKey"`
	CustomerName    string `gorm:"size:255;not null"`
	CustomerAddress string `gorm:"size:512;not null"`
	TotalPrice      int64  `gorm:"not null"`
	OrderedAt       time.Time
	Items           []orderItemModel `gorm:"foreignKey:OrderID"`
}

func (orderModel) TableName() string {
	return "orders"
}

type orderItemModel struct {
	ID          int64  `gorm:"primaryKey"`
	OrderID     int64  `gorm:"index;not null"`
	ProductID   int64  `gorm:"index;not null"`
	ProductName string `gorm:"size:255"`
	Quantity    int    `gorm:"not null"`
	Price       int64  `gorm:"not null"`
}

func (orderItemModel) TableName() string {
	return "order_items"
}

func toProductModel(p domain.Product) productModel {
	return productModel{
		ID:        p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Quantity:  p.Quantity,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func toDomainProduct(m productModel) domain.Product {
	return domain.Product{
		ID:        m.ID,
		Name:      m.Name,
		Price:     m.Price,
		Quantity:  m.Quantity,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func toOrderModel(o domain.Order) orderModel {
	items := make([]orderItemModel, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemModel{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       item.Price,
		})
	}

	return orderModel{
		ID:              o.ID,
		CustomerName:    o.CustomerName,
		CustomerAddress: o.CustomerAddress,
		TotalPrice:      o.TotalPrice(),
		OrderedAt:       o.OrderedAt,
		Items:           items,
	}
}
