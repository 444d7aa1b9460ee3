package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	Name     string
	Active   *bool
	LowStock *bool
	SortBy   string
	OrderBy  string
}

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, product *Product) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Product, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ListFilter) ([]Product, error)
	Update(ctx context.Context, db *gorm.DB, product *Product) error

	// LockForSale loads the given products and, where the dialect supports
	// it, holds row locks on them until db's transaction ends.
	LockForSale(ctx context.Context, db *gorm.DB, orgID snowflake.ID, ids []snowflake.ID) ([]Product, error)
	// DecrementStock subtracts qty only if enough stock remains. It reports
	// false when the guard rejected the update.
	DecrementStock(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, qty int64, at time.Time) (bool, error)
	// AdjustStock adds delta (which may be negative) only if the result stays
	// at or above zero.
	AdjustStock(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, delta int64, at time.Time) (bool, error)
}
