package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/rl1809/order-stock/internal/core/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	products  *mockProductRepo
	orders    *mockOrderRepo
	locker    *recordingLocker
	publisher *mockPublisher
	svc       *OrderService
}

func newFixture(cmds []domain.OrderCommand, products ...domain.Product) *fixture {
	f := &fixture{
		products:  newMockProductRepo(products...),
		orders:    &mockOrderRepo{},
		locker:    newRecordingLocker(),
		publisher: &mockPublisher{},
	}
	f.svc = NewOrderService(f.locker, f.products, f.orders, stubParser{cmds: cmds}, WithPublisher(f.publisher))
	return f
}

func product(id int64, quantity int, price int64) domain.Product {
	return domain.Product{ID: id, Name: fmt.Sprintf("product-%d", id), Quantity: quantity, Price: price}
}

func order(customer string, items ...domain.OrderItemCommand) domain.OrderCommand {
	return domain.OrderCommand{CustomerName: customer, CustomerAddress: customer + " street", Items: items}
}

func item(productID int64, quantity int) domain.OrderItemCommand {
	return domain.OrderItemCommand{ProductID: productID, Quantity: quantity}
}

func TestCreateSingleOrder_Success(t *testing.T) {
	f := newFixture(nil, product(1, 10, 1000), product(2, 5, 300))

	res, err := f.svc.CreateSingleOrder(context.Background(), order("kim", item(1, 2), item(2, 1)))
	require.NoError(t, err)

	assert.NotZero(t, res.OrderID)
	assert.Equal(t, "kim", res.CustomerName)
	assert.Equal(t, int64(2300), res.TotalPrice)
	require.Len(t, res.Products, 2)
	assert.Equal(t, "product-1", res.Products[0].ProductName)
	assert.Equal(t, int64(2000), res.Products[0].TotalPrice)

	assert.Equal(t, 8, f.products.quantity(1))
	assert.Equal(t, 4, f.products.quantity(2))
	assert.Equal(t, 1, f.orders.count())
	assert.Len(t, f.publisher.orders, 1)
	assert.True(t, f.locker.balanced())
}

func TestCreateSingleOrder_EmptyItems(t *testing.T) {
	f := newFixture(nil, product(1, 10, 1000))

	_, err := f.svc.CreateSingleOrder(context.Background(), order("kim"))
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)
	assert.Zero(t, f.locker.totalAcquires())
}

func TestCreateSingleOrder_DuplicateProductFailsBeforeLocking(t *testing.T) {
	f := newFixture(nil, product(1, 10, 1000))

	_, err := f.svc.CreateSingleOrder(context.Background(), order("kim", item(1, 1), item(1, 2)))
	assert.ErrorIs(t, err, domain.ErrDuplicateProductOrder)
	assert.Zero(t, f.locker.totalAcquires())
	assert.Equal(t, 10, f.products.quantity(1))
}

func TestCreateSingleOrder_OutOfStock(t *testing.T) {
	f := newFixture(nil, product(1, 10, 1000))

	_, err := f.svc.CreateSingleOrder(context.Background(), order("kim", item(1, 20)))
	assert.ErrorIs(t, err, domain.ErrOutOfStock)

	assert.Equal(t, 10, f.products.quantity(1))
	assert.Zero(t, f.orders.count())
	assert.Empty(t, f.publisher.orders)
	assert.True(t, f.locker.balanced())
}

func TestCreateSingleOrder_ProductNotFound(t *testing.T) {
	f := newFixture(nil, product(1, 10, 1000))

	_, err := f.svc.CreateSingleOrder(context.Background(), order("kim", item(1, 1), item(9, 1)))
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
	assert.Equal(t, 10, f.products.quantity(1))
	assert.Zero(t, f.products.calls())
	assert.True(t, f.locker.balanced())
}

func TestCreateSingleOrder_InvalidQuantity(t *testing.T) {
	f := newFixture(nil, product(1, 10, 1000))

	_, err := f.svc.CreateSingleOrder(context.Background(), order("kim", item(1, 0)))
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	assert.Equal(t, 10, f.products.quantity(1))
}

func TestCreateSingleOrder_AllOrNothing(t *testing.T) {
	f := newFixture(nil, product(1, 10, 1000), product(2, 3, 300))

	_, err := f.svc.CreateSingleOrder(context.Background(), order("kim", item(1, 5), item(2, 10)))
	assert.ErrorIs(t, err, domain.ErrOutOfStock)

	assert.Equal(t, 10, f.products.quantity(1))
	assert.Equal(t, 3, f.products.quantity(2))
}

func TestCreateSingleOrder_RestoresStockWhenOrderSaveFails(t *testing.T) {
	f := newFixture(nil, product(1, 10, 1000), product(2, 5, 300))
	f.orders.err = errStorage

	_, err := f.svc.CreateSingleOrder(context.Background(), order("kim", item(1, 2), item(2, 1)))
	assert.ErrorIs(t, err, errStorage)

	// reduced values were written, then the restored ones
	assert.Equal(t, 2, f.products.calls())
	assert.Equal(t, 10, f.products.quantity(1))
	assert.Equal(t, 5, f.products.quantity(2))
	assert.True(t, f.locker.balanced())
}

func TestCreateSingleOrder_LocksInAscendingOrder(t *testing.T) {
	f := newFixture(nil, product(1, 10, 1), product(2, 10, 1), product(3, 10, 1))

	_, err := f.svc.CreateSingleOrder(context.Background(), order("kim", item(3, 1), item(1, 1), item(2, 1)))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"acquire PRODUCT_LOCK:1",
		"acquire PRODUCT_LOCK:2",
		"acquire PRODUCT_LOCK:3",
		"release PRODUCT_LOCK:3",
		"release PRODUCT_LOCK:2",
		"release PRODUCT_LOCK:1",
	}, f.locker.events)
}

func TestCreateSingleOrder_LockFailureReleasesOnlyAcquired(t *testing.T) {
	f := newFixture(nil, product(1, 10, 1), product(2, 10, 1), product(3, 10, 1))
	f.locker.failOn = domain.ProductLockKey(2)

	_, err := f.svc.CreateSingleOrder(context.Background(), order("kim", item(1, 1), item(2, 1), item(3, 1)))
	assert.ErrorIs(t, err, domain.ErrLockAcquireFailed)

	assert.Equal(t, []string{"acquire PRODUCT_LOCK:1", "release PRODUCT_LOCK:1"}, f.locker.events)
	assert.Equal(t, 10, f.products.quantity(1))
	assert.Zero(t, f.orders.count())
}

func TestCreateSingleOrder_ReleaseFailureDoesNotStopOtherReleases(t *testing.T) {
	f := newFixture(nil, product(1, 10, 1), product(2, 10, 1), product(3, 10, 1))
	f.locker.releaseErr = domain.ProductLockKey(2)

	_, err := f.svc.CreateSingleOrder(context.Background(), order("kim", item(1, 1), item(2, 1), item(3, 1)))
	require.NoError(t, err)

	assert.Equal(t, 1, f.locker.releases[domain.ProductLockKey(1)])
	assert.Equal(t, 1, f.locker.releases[domain.ProductLockKey(3)])
}

func TestCreateSingleOrder_PublishFailureKeepsOrder(t *testing.T) {
	f := newFixture(nil, product(1, 10, 1))
	f.publisher.err = errStorage

	_, err := f.svc.CreateSingleOrder(context.Background(), order("kim", item(1, 1)))
	require.NoError(t, err)
	assert.Equal(t, 9, f.products.quantity(1))
	assert.Equal(t, 1, f.orders.count())
}

func TestCreateSingleOrder_Concurrent(t *testing.T) {
	initialStock := 20
	totalRequests := 50

	f := newFixture(nil, product(1, initialStock, 100))

	var successCount atomic.Int32
	var outOfStock atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			_, err := f.svc.CreateSingleOrder(context.Background(), order(fmt.Sprintf("user-%d", id), item(1, 1)))
			switch {
			case err == nil:
				successCount.Add(1)
			case assert.ErrorIs(t, err, domain.ErrOutOfStock):
				outOfStock.Add(1)
			}
		}(i)
	}

	wg.Wait()

	assert.Equal(t, int32(initialStock), successCount.Load())
	assert.Equal(t, int32(totalRequests-initialStock), outOfStock.Load())
	assert.Equal(t, 0, f.products.quantity(1))
	assert.Equal(t, initialStock, f.orders.count())
	assert.True(t, f.locker.balanced())
}

func TestCreateSingleOrder_ConcurrentWithEnoughStock(t *testing.T) {
	f := newFixture(nil, product(1, 100, 100), product(2, 100, 100))

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			// opposite item orders must not deadlock
			cmd := order("a", item(1, 1), item(2, 1))
			if id%2 == 0 {
				cmd = order("b", item(2, 1), item(1, 1))
			}
			_, err := f.svc.CreateSingleOrder(context.Background(), cmd)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 60, f.products.quantity(1))
	assert.Equal(t, 60, f.products.quantity(2))
	assert.Equal(t, 40, f.orders.count())
}
