package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	List(ctx context.Context, req ListRequest) ([]Response, error)
	Get(ctx context.Context, id string) (*Response, error)
	Update(ctx context.Context, req UpdateRequest) (*Response, error)
	Archive(ctx context.Context, id string) (*Response, error)
	AdjustStock(ctx context.Context, req AdjustStockRequest) (*Response, error)
}

type ListRequest struct {
	Name     string
	Active   *bool
	LowStock *bool
	SortBy   string
	OrderBy  string
}

type CreateRequest struct {
	Code        string           `json:"code"`
	Name        string           `json:"name"`
	Description *string          `json:"description"`
	UnitPrice   decimal.Decimal  `json:"unit_price"`
	UnitCost    *decimal.Decimal `json:"unit_cost"`
	TaxRate     *decimal.Decimal `json:"tax_rate"`
	Stock       *int64           `json:"stock"`
	MinStock    *int64           `json:"min_stock"`
	Active      *bool            `json:"active"`
	Metadata    map[string]any   `json:"metadata"`
}

type UpdateRequest struct {
	ID          string           `json:"-"`
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	UnitPrice   *decimal.Decimal `json:"unit_price"`
	UnitCost    *decimal.Decimal `json:"unit_cost"`
	TaxRate     *decimal.Decimal `json:"tax_rate"`
	MinStock    *int64           `json:"min_stock"`
	Active      *bool            `json:"active"`
	Metadata    map[string]any   `json:"metadata"`
}

// AdjustStockRequest moves stock outside of a sale, e.g. a delivery (+) or
// shrinkage (-).
type AdjustStockRequest struct {
	ID     string `json:"-"`
	Delta  int64  `json:"delta"`
	Reason string `json:"reason"`
}

type Response struct {
	ID             string          `json:"id"`
	OrganizationID string          `json:"organization_id"`
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	Description    *string         `json:"description,omitempty"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	UnitCost       decimal.Decimal `json:"unit_cost"`
	TaxRate        decimal.Decimal `json:"tax_rate"`
	Stock          int64           `json:"stock"`
	MinStock       int64           `json:"min_stock"`
	LowStock       bool            `json:"low_stock"`
	Active         bool            `json:"active"`
	Metadata       map[string]any  `json:"metadata,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidCode         = errors.New("invalid_code")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidPrice        = errors.New("invalid_price")
	ErrInvalidCost         = errors.New("invalid_cost")
	ErrInvalidTaxRate      = errors.New("invalid_tax_rate")
	ErrInvalidStock        = errors.New("invalid_stock")
	ErrInvalidDelta        = errors.New("invalid_delta")
	ErrDuplicateCode       = errors.New("duplicate_code")
	ErrInsufficientStock   = errors.New("insufficient_stock")
	ErrNotFound            = errors.New("not_found")
	ErrInvalidID           = errors.New("invalid_id")
)
