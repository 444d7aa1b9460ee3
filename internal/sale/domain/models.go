package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusCompleted Status = "completed"
	StatusReversed  Status = "reversed"
)

// Sale is the committed header. Money columns are in the base currency;
// ExchangeRate is stored when the customer paid in another currency.
type Sale struct {
	ID             snowflake.ID        `gorm:"primaryKey" json:"id"`
	OrgID          snowflake.ID        `gorm:"not null;index;uniqueIndex:ux_sales_org_idempotency,priority:1" json:"organization_id"`
	ClientID       *snowflake.ID       `gorm:"index" json:"client_id,omitempty"`
	Subtotal       decimal.Decimal     `gorm:"type:numeric(18,2);not null" json:"subtotal"`
	TaxTotal       decimal.Decimal     `gorm:"type:numeric(18,2);not null" json:"tax_total"`
	Discount       decimal.Decimal     `gorm:"type:numeric(18,2);not null" json:"discount"`
	Shipping       decimal.Decimal     `gorm:"type:numeric(18,2);not null" json:"shipping"`
	GrandTotal     decimal.Decimal     `gorm:"type:numeric(18,2);not null" json:"grand_total"`
	Currency       string              `gorm:"not null" json:"currency"`
	ExchangeRate   decimal.NullDecimal `gorm:"type:numeric(18,6)" json:"exchange_rate"`
	PaymentMethod  string              `gorm:"not null" json:"payment_method"`
	Status         Status              `gorm:"not null;default:'completed'" json:"status"`
	Notes          string              `json:"notes"`
	IdempotencyKey string              `gorm:"not null;uniqueIndex:ux_sales_org_idempotency,priority:2" json:"idempotency_key"`
	RequestHash    string              `gorm:"not null" json:"-"`
	CreatedBy      string              `json:"created_by"`
	CreatedAt      time.Time           `gorm:"not null;index" json:"created_at"`
}

func (Sale) TableName() string { return "sales" }

// SaleLine snapshots the price and tax rate charged at commit time.
type SaleLine struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	SaleID      snowflake.ID    `gorm:"not null;index" json:"sale_id"`
	OrgID       snowflake.ID    `gorm:"not null" json:"organization_id"`
	LineNo      int             `gorm:"not null" json:"line_no"`
	ProductID   snowflake.ID    `gorm:"not null;index" json:"product_id"`
	ProductName string          `gorm:"not null" json:"product_name"`
	Quantity    int64           `gorm:"not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"unit_price"`
	TaxRate     decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"tax_rate"`
	LineTotal   decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"line_total"`
	TaxAmount   decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"tax_amount"`
	CreatedAt   time.Time       `gorm:"not null" json:"created_at"`
}

func (SaleLine) TableName() string { return "sale_lines" }
