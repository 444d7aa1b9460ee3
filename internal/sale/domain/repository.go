package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type SaleCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListFilter struct {
	OrgID         snowflake.ID
	ClientID      *snowflake.ID
	PaymentMethod string
	Status        Status
	Currency      string
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
	Cursor        *SaleCursor
	Limit         int
}

type Repository interface {
	InsertSale(ctx context.Context, db *gorm.DB, sale *Sale) error
	InsertLines(ctx context.Context, db *gorm.DB, lines []SaleLine) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Sale, error)
	FindByIdempotencyKey(ctx context.Context, db *gorm.DB, orgID snowflake.ID, key string) (*Sale, error)
	ListLines(ctx context.Context, db *gorm.DB, orgID snowflake.ID, saleIDs []snowflake.ID) ([]SaleLine, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Sale, error)
}
