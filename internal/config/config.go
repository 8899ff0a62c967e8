package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"
)

const (
	LockMemory    = "memory"
	LockRedis     = "redis"
	LockZookeeper = "zookeeper"

	StorageMemory = "memory"
	StorageMySQL  = "mysql"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Lock      LockConfig      `yaml:"lock"`
	Storage   StorageConfig   `yaml:"storage"`
	MySQL     MySQLConfig     `yaml:"mysql"`
	Redis     RedisConfig     `yaml:"redis"`
	Zookeeper ZookeeperConfig `yaml:"zookeeper"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Seed      []SeedProduct   `yaml:"seed"`
}

type ServerConfig struct {
	HTTPAddr        string        `yaml:"http_addr"`
	GRPCAddr        string        `yaml:"grpc_addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

type LockConfig struct {
	Backend     string        `yaml:"backend"`
	WaitTimeout time.Duration `yaml:"wait_timeout"`
	LeaseTTL    time.Duration `yaml:"lease_ttl"`
}

type StorageConfig struct {
	Backend string `yaml:"backend"`

	// RedisCache puts a write-through product cache in front of the store.
	RedisCache bool          `yaml:"redis_cache"`
	CacheTTL   time.Duration `yaml:"cache_ttl"`
}

type MySQLConfig struct {
	Addr            string        `yaml:"addr"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

// DSN renders the go-sql-driver connection string.
func (c MySQLConfig) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = c.Addr
	cfg.DBName = c.Database
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN()
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type ZookeeperConfig struct {
	Servers        []string      `yaml:"servers"`
	SessionTimeout time.Duration `yaml:"session_timeout"`
	Root           string        `yaml:"root"`
}

type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type TracingConfig struct {
	Enabled        bool   `yaml:"enabled"`
	ServiceName    string `yaml:"service_name"`
	JaegerEndpoint string `yaml:"jaeger_endpoint"`
}

type SeedProduct struct {
	ID       int64  `yaml:"id"`
	Name     string `yaml:"name"`
	Price    int64  `yaml:"price"`
	Quantity int    `yaml:"quantity"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:        ":8080",
			GRPCAddr:        ":50051",
			ShutdownTimeout: 10 * time.Second,
			MaxUploadBytes:  10 << 20,
		},
		Log: LogConfig{Level: "info", Format: "json"},
		Lock: LockConfig{
			Backend:     LockMemory,
			WaitTimeout: 10 * time.Second,
			LeaseTTL:    60 * time.Second,
		},
		Storage: StorageConfig{Backend: StorageMemory, CacheTTL: 10 * time.Minute},
		MySQL: MySQLConfig{
			Addr:            "localhost:3306",
			User:            "root",
			Password:        "root",
			Database:        "order_stock",
			MaxOpenConns:    50,
			MaxIdleConns:    25,
			ConnMaxLifetime: 5 * time.Minute,
			AutoMigrate:     true,
		},
		Redis: RedisConfig{Addr: "localhost:6379", PoolSize: 100},
		Zookeeper: ZookeeperConfig{
			Servers:        []string{"localhost:2181"},
			SessionTimeout: 5 * time.Second,
			Root:           "/order_stock_locks",
		},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topic:   "orders.placed",
		},
		Tracing: TracingConfig{
			ServiceName:    "order-stock",
			JaegerEndpoint: "http://localhost:14268/api/traces",
		},
	}
}

// Load reads the YAML file at path on top of the defaults, applies
// environment overrides and validates the result. An empty path skips the
// file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.HTTPAddr = getEnv("HTTP_ADDR", c.Server.HTTPAddr)
	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Lock.Backend = getEnv("LOCK_BACKEND", c.Lock.Backend)
	c.Storage.Backend = getEnv("STORAGE_BACKEND", c.Storage.Backend)
	c.MySQL.Addr = getEnv("MYSQL_ADDR", c.MySQL.Addr)
	c.MySQL.User = getEnv("MYSQL_USER", c.MySQL.User)
	c.MySQL.Password = getEnv("MYSQL_PASSWORD", c.MySQL.Password)
	c.MySQL.Database = getEnv("MYSQL_DATABASE", c.MySQL.Database)
	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Tracing.JaegerEndpoint = getEnv("JAEGER_ENDPOINT", c.Tracing.JaegerEndpoint)

	if v := getEnv("ZK_SERVERS", ""); v != "" {
		c.Zookeeper.Servers = strings.Split(v, ",")
	}
	if v := getEnv("KAFKA_BROKERS", ""); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Lock.Backend {
	case LockMemory, LockRedis, LockZookeeper:
	default:
		errs = append(errs, fmt.Errorf("lock.backend: unknown backend %q", c.Lock.Backend))
	}
	if c.Lock.WaitTimeout <= 0 {
		errs = append(errs, errors.New("lock.wait_timeout must be positive"))
	}
	if c.Lock.Backend == LockRedis && c.Lock.LeaseTTL <= 0 {
		errs = append(errs, errors.New("lock.lease_ttl must be positive"))
	}
	if c.Lock.Backend == LockZookeeper && len(c.Zookeeper.Servers) == 0 {
		errs = append(errs, errors.New("zookeeper.servers is required for the zookeeper lock"))
	}

	switch c.Storage.Backend {
	case StorageMemory, StorageMySQL:
	default:
		errs = append(errs, fmt.Errorf("storage.backend: unknown backend %q", c.Storage.Backend))
	}

	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		errs = append(errs, errors.New("kafka.brokers and kafka.topic are required when kafka is enabled"))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}

	seen := make(map[int64]bool, len(c.Seed))
	for _, p := range c.Seed {
		if seen[p.ID] {
			errs = append(errs, fmt.Errorf("seed: duplicate product id %d", p.ID))
		}
		seen[p.ID] = true
		if p.Quantity < 0 {
			errs = append(errs, fmt.Errorf("seed: product %d has negative quantity", p.ID))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
