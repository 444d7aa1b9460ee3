package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pos/internal/product/domain"
	"github.com/smallbiznis/pos/pkg/db/option"
	"gorm.io/gorm"
)

const productColumns = `id, org_id, code, name, description, unit_price, unit_cost, tax_rate, stock, min_stock, active, metadata, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO products (`+productColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		product.ID,
		product.OrgID,
		product.Code,
		product.Name,
		product.Description,
		product.UnitPrice,
		product.UnitCost,
		product.TaxRate,
		product.Stock,
		product.MinStock,
		product.Active,
		product.Metadata,
		product.CreatedAt,
		product.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Product, error) {
	var p domain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT `+productColumns+` FROM products WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return nil, nil
	}
	return &p, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.ListFilter) ([]domain.Product, error) {
	var items []domain.Product
	stmt := db.WithContext(ctx).
		Model(&domain.Product{}).
		Where("org_id = ?", orgID)

	if filter.Name != "" {
		stmt = stmt.Where("name = ?", filter.Name)
	}
	if filter.Active != nil {
		stmt = stmt.Where("active = ?", *filter.Active)
	}
	if filter.LowStock != nil {
		if *filter.LowStock {
			stmt = stmt.Where("min_stock > 0 AND stock <= min_stock")
		} else {
			stmt = stmt.Where("(min_stock = 0 OR stock > min_stock)")
		}
	}

	stmt = option.WithSortBy(option.WithQuerySortBy(filter.SortBy, filter.OrderBy, map[string]bool{
		"created_at": true,
		"updated_at": true,
		"name":       true,
		"code":       true,
		"stock":      true,
	})).Apply(stmt)

	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	if product == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Exec(
		`UPDATE products
		 SET name = ?, description = ?, unit_price = ?, unit_cost = ?, tax_rate = ?, min_stock = ?, active = ?, metadata = ?, updated_at = ?
		 WHERE org_id = ? AND id = ?`,
		product.Name,
		product.Description,
		product.UnitPrice,
		product.UnitCost,
		product.TaxRate,
		product.MinStock,
		product.Active,
		product.Metadata,
		product.UpdatedAt,
		product.OrgID,
		product.ID,
	).Error
}

func (r *repo) LockForSale(ctx context.Context, db *gorm.DB, orgID snowflake.ID, ids []snowflake.ID) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + productColumns + ` FROM products WHERE org_id = ? AND id IN ? ORDER BY id ASC`
	if supportsRowLocks(db) {
		query += ` FOR UPDATE`
	}

	var items []domain.Product
	if err := db.WithContext(ctx).Raw(query, orgID, ids).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) DecrementStock(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, qty int64, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE products SET stock = stock - ?, updated_at = ?
		 WHERE org_id = ? AND id = ? AND stock >= ?`,
		qty,
		at,
		orgID,
		id,
		qty,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) AdjustStock(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, delta int64, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE products SET stock = stock + ?, updated_at = ?
		 WHERE org_id = ? AND id = ? AND stock + ? >= 0`,
		delta,
		at,
		orgID,
		id,
		delta,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// sqlite serializes writers on its own and rejects FOR UPDATE.
func supportsRowLocks(db *gorm.DB) bool {
	if db == nil || db.Dialector == nil {
		return false
	}
	return db.Dialector.Name() != "sqlite"
}
