package storage

import (
	"context"
	"fmt"
	"time"

	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/rl1809/order-stock/internal/config"
	"github.com/rl1809/order-stock/internal/core/domain"
)

// OpenMySQL connects through gorm, applies pool settings and optionally
// migrates the schema.
func OpenMySQL(ctx context.Context, cfg config.MySQLConfig) (*gorm.DB, error) {
	db, err := gorm.Open(gormmysql.Open(cfg.DSN()), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Warn),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("mysql pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	if cfg.AutoMigrate {
		if err := Migrate(db); err != nil {
			sqlDB.Close()
			return nil, err
		}
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&productModel{}, &orderModel{}, &orderItemModel{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

type MySQLProductStore struct {
	db *gorm.DB
}

func NewMySQLProductStore(db *gorm.DB) *MySQLProductStore {
	return &MySQLProductStore{db: db}
}

func (s *MySQLProductStore) FindByIDs(ctx context.Context, ids []int64) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var models []productModel
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}

	products := make([]domain.Product, 0, len(models))
	for _, m := range models {
		products = append(products, toDomainProduct(m))
	}
	return products, nil
}

// SaveAll upserts all products in one transaction, so either every stock
// level is written or none is.
func (s *MySQLProductStore) SaveAll(ctx context.Context, products []domain.Product) error {
	if len(products) == 0 {
		return nil
	}

	now := time.Now()
	models := make([]productModel, 0, len(products))
	for _, p := range products {
		m := toProductModel(p)
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		m.UpdatedAt = now
		models = append(models, m)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "price", "quantity", "updated_at"}),
		}).Create(&models).Error
	})
	if err != nil {
		return fmt.Errorf("save products: %w", err)
	}
	return nil
}

type MySQLOrderStore struct {
	db *gorm.DB
}

func NewMySQLOrderStore(db *gorm.DB) *MySQLOrderStore {
	return &MySQLOrderStore{db: db}
}

func (s *MySQLOrderStore) Save(ctx context.Context, order domain.Order) (domain.Order, error) {
	saved, err := s.SaveAll(ctx, []domain.Order{order})
	if err != nil {
		return domain.Order{}, err
	}
	return saved[0], nil
}

func (s *MySQLOrderStore) SaveAll(ctx context.Context, orders []domain.Order) ([]domain.Order, error) {
	if len(orders) == 0 {
		return nil, nil
	}

	models := make([]orderModel, 0, len(orders))
	for _, o := range orders {
		models = append(models, toOrderModel(o))
	}

	// items are inserted through the association
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&models).Error
	})
	if err != nil {
		return nil, fmt.Errorf("insert orders: %w", err)
	}

	saved := make([]domain.Order, len(orders))
	for i, o := range orders {
		o.ID = models[i].ID
		saved[i] = o
	}
	return saved, nil
}
