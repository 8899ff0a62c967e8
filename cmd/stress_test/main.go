package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/rl1809/order-stock/internal/adapter/lock"
	"github.com/rl1809/order-stock/internal/adapter/parser"
	"github.com/rl1809/order-stock/internal/adapter/storage"
	"github.com/rl1809/order-stock/internal/core/domain"
	"github.com/rl1809/order-stock/internal/core/service"
	"github.com/rl1809/order-stock/internal/port"
)

const productID = 1

func main() {
	initialStock := flag.Int("stock", 20, "initial stock of the contended product")
	totalRequests := flag.Int("requests", 50, "number of concurrent single orders")
	backend := flag.String("lock", "memory", "lock backend: memory or redis")
	redisAddr := flag.String("redis", "localhost:6379", "redis address for the redis lock")
	flag.Parse()

	ctx := context.Background()

	var locker port.Locker
	switch *backend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: *redisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("failed to connect redis: %v", err)
		}
		defer rdb.Close()
		rdb.Del(ctx, domain.ProductLockKey(productID))
		locker = lock.NewRedisLocker(rdb, 30*time.Second, lock.DefaultLeaseTTL, zerolog.Nop())
	default:
		locker = lock.NewMemoryLocker(30*time.Second, zerolog.Nop())
	}

	products := storage.NewMemoryProductStore(domain.Product{
		ID:       productID,
		Name:     "Limited Edition",
		Price:    1000,
		Quantity: *initialStock,
	})
	orders := storage.NewMemoryOrderStore()
	orderService := service.NewOrderService(locker, products, orders, parser.NewExcelParser(zerolog.Nop()))

	var successCount, outOfStockCount, otherCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < *totalRequests; i++ {
		wg.Add(1)
		go func(customer int) {
			defer wg.Done()

			_, err := orderService.CreateSingleOrder(ctx, domain.OrderCommand{
				CustomerName:    fmt.Sprintf("customer %d", customer),
				CustomerAddress: "stress street",
				Items:           []domain.OrderItemCommand{{ProductID: productID, ProductName: "Limited Edition", Quantity: 1}},
			})
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrOutOfStock):
				outOfStockCount.Add(1)
			default:
				otherCount.Add(1)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := int(successCount.Load())
	expected := min(*initialStock, *totalRequests)
	finalStock, _ := products.Quantity(productID)

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Lock Backend:     %s\n", *backend)
	fmt.Printf("Initial Stock:    %d\n", *initialStock)
	fmt.Printf("Total Requests:   %d\n", *totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Out of Stock:     %d\n", outOfStockCount.Load())
	fmt.Printf("Other Failures:   %d\n", otherCount.Load())
	fmt.Printf("Orders Saved:     %d\n", orders.Count())
	fmt.Printf("Final Stock:      %d\n", finalStock)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	failed := false
	if success != expected || orders.Count() != expected {
		fmt.Printf("FAIL: expected %d orders, got %d (saved %d)\n", expected, success, orders.Count())
		failed = true
	}
	if finalStock != *initialStock-success || finalStock < 0 {
		fmt.Printf("FAIL: stock %d does not match %d sold from %d\n", finalStock, success, *initialStock)
		failed = true
	}
	if failed {
		os.Exit(1)
	}
	fmt.Println("PASS: no oversell, stock matches orders")
}
