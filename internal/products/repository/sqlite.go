package repository

import (
	"context"
	"fmt"
	"time"

	"product-catalog/internal/products"
	"product-catalog/internal/products/search"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// productRecord is the GORM row for a product. Price is kept as the canonical
// decimal string so equality filters compare exactly.
type productRecord struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	Name        string `gorm:"size:100;not null;index"`
	Description string `gorm:"size:250;not null"`
	Price       string `gorm:"type:text;not null"`
	Available   bool   `gorm:"not null"`
	Category    string `gorm:"size:63;not null;index"`
	CreatedAt   time.Time
}

func (productRecord) TableName() string { return "products" }

func newRecord(p products.Product) productRecord {
	return productRecord{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.String(),
		Available:   p.Available,
		Category:    string(p.Category),
	}
}

func (r productRecord) product() (products.Product, error) {
	price, err := decimal.NewFromString(r.Price)
	if err != nil {
		return products.Product{}, fmt.Errorf("parse price of product %d: %w", r.ID, err)
	}
	return products.Product{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Price:       price,
		Available:   r.Available,
		Category:    products.Category(r.Category),
	}, nil
}

// SQLiteRepository stores products in an embedded SQLite database through GORM.
// Ids come from an AUTOINCREMENT key and are never handed out twice.
type SQLiteRepository struct {
	db *gorm.DB
}

// OpenSQLite opens (creating if needed) the database at path and migrates the
// products table.
func OpenSQLite(path string) (*SQLiteRepository, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}

	repo := NewSQLite(db)
	if err := repo.Migrate(); err != nil {
		return nil, err
	}
	return repo, nil
}

func NewSQLite(db *gorm.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Migrate() error {
	if err := r.db.AutoMigrate(&productRecord{}); err != nil {
		return fmt.Errorf("migrate products: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Save(ctx context.Context, p products.Product) (products.Product, error) {
	rec := newRecord(p)
	rec.ID = 0
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return products.Product{}, fmt.Errorf("insert product: %w", err)
	}
	return rec.product()
}

func (r *SQLiteRepository) Fetch(ctx context.Context, id int64) (products.Product, bool, error) {
	var recs []productRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&recs).Error; err != nil {
		return products.Product{}, false, fmt.Errorf("select product %d: %w", id, err)
	}
	if len(recs) == 0 {
		return products.Product{}, false, nil
	}

	p, err := recs[0].product()
	if err != nil {
		return products.Product{}, false, err
	}
	return p, true, nil
}

func (r *SQLiteRepository) FetchAll(ctx context.Context) ([]products.Product, error) {
	return r.FetchMatching(ctx, search.Filter{})
}

func (r *SQLiteRepository) FetchMatching(ctx context.Context, f search.Filter) ([]products.Product, error) {
	var recs []productRecord
	if err := r.db.WithContext(ctx).Scopes(f.Scope).Order("id ASC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}

	list := make([]products.Product, 0, len(recs))
	for _, rec := range recs {
		p, err := rec.product()
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, p products.Product) error {
	rec := newRecord(p)
	res := r.db.WithContext(ctx).Model(&productRecord{}).Where("id = ?", p.ID).Updates(map[string]any{
		"name":        rec.Name,
		"description": rec.Description,
		"price":       rec.Price,
		"available":   rec.Available,
		"category":    rec.Category,
	})
	if res.Error != nil {
		return fmt.Errorf("update product %d: %w", p.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return products.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&productRecord{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete product %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return products.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) Health() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
