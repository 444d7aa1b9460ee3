package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Product struct {
	ID          snowflake.ID      `json:"id" gorm:"primaryKey"`
	OrgID       snowflake.ID      `json:"organization_id" gorm:"column:org_id;not null;uniqueIndex:ux_products_org_code,priority:1"`
	Code        string            `json:"code" gorm:"type:text;not null;uniqueIndex:ux_products_org_code,priority:2"`
	Name        string            `json:"name" gorm:"type:text;not null"`
	Description *string           `json:"description,omitempty" gorm:"type:text"`
	UnitPrice   decimal.Decimal   `json:"unit_price" gorm:"type:numeric(18,2);not null;default:0"`
	UnitCost    decimal.Decimal   `json:"unit_cost" gorm:"type:numeric(18,2);not null;default:0"`
	TaxRate     decimal.Decimal   `json:"tax_rate" gorm:"type:numeric(5,2);not null;default:0"`
	Stock       int64             `json:"stock" gorm:"not null;default:0"`
	MinStock    int64             `json:"min_stock" gorm:"not null;default:0"`
	Active      bool              `json:"active" gorm:"not null;default:true"`
	Metadata    datatypes.JSONMap `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt   time.Time         `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time         `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Product) TableName() string { return "products" }

// IsLowStock reports whether stock has fallen to the reorder threshold.
func (p Product) IsLowStock() bool {
	return p.MinStock > 0 && p.Stock <= p.MinStock
}
