package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rl1809/order-stock/internal/adapter/handler"
	"github.com/rl1809/order-stock/internal/adapter/lock"
	"github.com/rl1809/order-stock/internal/adapter/messaging"
	"github.com/rl1809/order-stock/internal/adapter/parser"
	"github.com/rl1809/order-stock/internal/adapter/storage"
	"github.com/rl1809/order-stock/internal/config"
	"github.com/rl1809/order-stock/internal/core/domain"
	"github.com/rl1809/order-stock/internal/core/service"
	"github.com/rl1809/order-stock/internal/observability"
	"github.com/rl1809/order-stock/internal/port"
)

const serviceName = "order-stock"

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}

	log := observability.NewLogger(cfg.Log, serviceName)
	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}
	log.Info().Msg("server stopped")
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracerProvider(cfg.Tracing.Enabled, cfg.Tracing.ServiceName, cfg.Tracing.JaegerEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to flush traces")
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)

	var rdb *redis.Client
	if cfg.Lock.Backend == config.LockRedis || cfg.Storage.RedisCache {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to redis")
	}

	locker, closeLocker, err := newLocker(cfg, rdb, log.With().Str("component", "lock").Logger())
	if err != nil {
		return err
	}
	defer closeLocker()

	products, orders, closeStore, err := newStores(ctx, cfg, rdb, log.With().Str("component", "storage").Logger())
	if err != nil {
		return err
	}
	defer closeStore()

	if err := seedProducts(ctx, products, cfg.Seed); err != nil {
		return err
	}
	log.Info().Int("products", len(cfg.Seed)).Msg("seeded products")

	opts := []service.Option{
		service.WithLogger(log.With().Str("component", "order_service").Logger()),
		service.WithMetrics(metrics),
	}
	if cfg.Kafka.Enabled {
		publisher := messaging.NewKafkaPublisher(messaging.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic))
		defer publisher.Close()
		opts = append(opts, service.WithPublisher(publisher))
	}

	orderService := service.NewOrderService(
		locker,
		products,
		orders,
		parser.NewExcelParser(log.With().Str("component", "parser").Logger()),
		opts...,
	)

	mux := http.NewServeMux()
	handler.NewHTTPHandler(orderService, log, cfg.Server.MaxUploadBytes).Register(mux)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	handler.RegisterOrderServiceServer(grpcServer, handler.NewGRPCHandler(orderService, log))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", cfg.Server.HTTPAddr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		log.Info().Str("addr", cfg.Server.GRPCAddr).Msg("gRPC server listening")
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		return grpcServer.Serve(lis)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down...")
		healthServer.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown")
		}
		grpcServer.GracefulStop()
		return nil
	})

	return g.Wait()
}

func newLocker(cfg *config.Config, rdb *redis.Client, log zerolog.Logger) (port.Locker, func(), error) {
	switch cfg.Lock.Backend {
	case config.LockRedis:
		return lock.NewRedisLocker(rdb, cfg.Lock.WaitTimeout, cfg.Lock.LeaseTTL, log), func() {}, nil
	case config.LockZookeeper:
		conn, _, err := zk.Connect(cfg.Zookeeper.Servers, cfg.Zookeeper.SessionTimeout, zk.WithLogInfo(false))
		if err != nil {
			return nil, nil, err
		}
		locker, err := lock.NewZookeeperLocker(conn, cfg.Zookeeper.Root, cfg.Lock.WaitTimeout, log)
		if err != nil {
			conn.Close()
			return nil, nil, err
		}
		return locker, conn.Close, nil
	default:
		return lock.NewMemoryLocker(cfg.Lock.WaitTimeout, log), func() {}, nil
	}
}

func newStores(ctx context.Context, cfg *config.Config, rdb *redis.Client, log zerolog.Logger) (port.ProductRepository, port.OrderRepository, func(), error) {
	var (
		products port.ProductRepository
		orders   port.OrderRepository
		closer   = func() {}
	)

	switch cfg.Storage.Backend {
	case config.StorageMySQL:
		db, err := storage.OpenMySQL(ctx, cfg.MySQL)
		if err != nil {
			return nil, nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, nil, err
		}
		log.Info().Str("addr", cfg.MySQL.Addr).Msg("connected to mysql")
		products = storage.NewMySQLProductStore(db)
		orders = storage.NewMySQLOrderStore(db)
		closer = func() { sqlDB.Close() }
	default:
		products = storage.NewMemoryProductStore()
		orders = storage.NewMemoryOrderStore()
	}

	if cfg.Storage.RedisCache {
		products = storage.NewRedisProductCache(products, rdb, cfg.Storage.CacheTTL, log)
	}
	return products, orders, closer, nil
}

func seedProducts(ctx context.Context, repo port.ProductRepository, seed []config.SeedProduct) error {
	if len(seed) == 0 {
		return nil
	}

	products := make([]domain.Product, 0, len(seed))
	for _, p := range seed {
		products = append(products, domain.Product{ID: p.ID, Name: p.Name, Price: p.Price, Quantity: p.Quantity})
	}
	return repo.SaveAll(ctx, products)
}
