package main

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/order-stock/internal/adapter/lock"
	"github.com/rl1809/order-stock/internal/adapter/storage"
	"github.com/rl1809/order-stock/internal/config"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestNewLocker_SelectsBackend(t *testing.T) {
	mr, rdb := newTestRedis(t)
	ctx := context.Background()

	cfg := config.Default()
	cfg.Lock.WaitTimeout = time.Second

	locker, closeLocker, err := newLocker(cfg, rdb, zerolog.Nop())
	require.NoError(t, err)
	defer closeLocker()
	assert.IsType(t, &lock.MemoryLocker{}, locker)

	cfg.Lock.Backend = config.LockRedis
	locker, closeLocker, err = newLocker(cfg, rdb, zerolog.Nop())
	require.NoError(t, err)
	defer closeLocker()
	require.IsType(t, &lock.RedisLocker{}, locker)

	token, err := locker.Acquire(ctx, "PRODUCT_LOCK:1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("PRODUCT_LOCK:1"))
	require.NoError(t, locker.Release(ctx, "PRODUCT_LOCK:1", token))
	assert.False(t, mr.Exists("PRODUCT_LOCK:1"))
}

func TestNewStores_MemoryWithRedisCache(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()

	cfg := config.Default()
	products, orders, closeStores, err := newStores(ctx, cfg, rdb, zerolog.Nop())
	require.NoError(t, err)
	defer closeStores()
	assert.IsType(t, &storage.MemoryProductStore{}, products)
	assert.IsType(t, &storage.MemoryOrderStore{}, orders)

	cfg.Storage.RedisCache = true
	products, _, closeStores, err = newStores(ctx, cfg, rdb, zerolog.Nop())
	require.NoError(t, err)
	defer closeStores()
	assert.IsType(t, &storage.RedisProductCache{}, products)
}

func TestSeedProducts(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewMemoryProductStore()

	require.NoError(t, seedProducts(ctx, repo, nil))

	seed := []config.SeedProduct{
		{ID: 1, Name: "Keyboard", Price: 50, Quantity: 10},
		{ID: 2, Name: "Mouse", Price: 20, Quantity: 5},
	}
	require.NoError(t, seedProducts(ctx, repo, seed))

	got, err := repo.FindByIDs(ctx, []int64{1, 2})
	require.NoError(t, err)
	require.Len(t, got, 2)

	byID := map[int64]int{}
	for _, p := range got {
		byID[p.ID] = p.Quantity
	}
	assert.Equal(t, map[int64]int{1: 10, 2: 5}, byID)
}
