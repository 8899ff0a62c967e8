package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/rl1809/order-stock/internal/config"
	"github.com/rl1809/order-stock/internal/core/domain"
)

func getMySQLDB(t *testing.T) *gorm.DB {
	cfg := config.Default().MySQL
	if addr := os.Getenv("MYSQL_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if name := os.Getenv("MYSQL_DATABASE"); name != "" {
		cfg.Database = name
	}
	cfg.ConnMaxLifetime = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	db, err := OpenMySQL(ctx, cfg)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func TestMySQLProductStore_SaveAndFind(t *testing.T) {
	db := getMySQLDB(t)
	ctx := context.Background()
	store := NewMySQLProductStore(db)

	id := time.Now().UnixNano() % 1_000_000_000
	db.Where("id IN ?", []int64{id, id + 1}).Delete(&productModel{})

	err := store.SaveAll(ctx, []domain.Product{
		{ID: id, Name: "Keyboard", Price: 500, Quantity: 10},
		{ID: id + 1, Name: "Mouse", Price: 200, Quantity: 5},
	})
	require.NoError(t, err)

	// upsert overwrites the quantity
	require.NoError(t, store.SaveAll(ctx, []domain.Product{{ID: id, Name: "Keyboard", Price: 500, Quantity: 7}}))

	products, err := store.FindByIDs(ctx, []int64{id, id + 1, -1})
	require.NoError(t, err)
	require.Len(t, products, 2)
	for _, p := range products {
		if p.ID == id {
			assert.Equal(t, 7, p.Quantity, "quantity after upsert")
		}
	}
}

func TestMySQLOrderStore_SaveAllAssignsIDs(t *testing.T) {
	db := getMySQLDB(t)
	ctx := context.Background()
	store := NewMySQLOrderStore(db)

	now := time.Now().UTC().Truncate(time.Second)
	orders := []domain.Order{
		{CustomerName: "Alice", CustomerAddress: "1 Main St", OrderedAt: now,
			Items: []domain.OrderItem{{ProductID: 1, ProductName: "Keyboard", Quantity: 2, Price: 500}}},
		{CustomerName: "Bob", CustomerAddress: "2 Side St", OrderedAt: now,
			Items: []domain.OrderItem{{ProductID: 2, ProductName: "Mouse", Quantity: 1, Price: 200}}},
	}

	saved, err := store.SaveAll(ctx, orders)
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.NotZero(t, saved[0].ID)
	assert.Greater(t, saved[1].ID, saved[0].ID, "ids should increase")
	assert.Equal(t, "Bob", saved[1].CustomerName, "orders must keep input order")

	var items int64
	require.NoError(t, db.Model(&orderItemModel{}).Where("order_id IN ?", []int64{saved[0].ID, saved[1].ID}).Count(&items).Error)
	assert.EqualValues(t, 2, items)
}
