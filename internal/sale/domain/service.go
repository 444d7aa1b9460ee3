package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/pos/pkg/db/pagination"
)

type CommitLine struct {
	ProductID string `json:"productId"`
	Quantity  int64  `json:"quantity"`
}

// CommitRequest is everything the register sends to finalize a sale. Prices
// are absent: the server prices lines from the catalog.
type CommitRequest struct {
	ClientID       *string          `json:"clientId,omitempty"`
	Lines          []CommitLine     `json:"lines"`
	PaymentMethod  string           `json:"paymentMethod"`
	Currency       string           `json:"currency"`
	ExchangeRate   *decimal.Decimal `json:"exchangeRate,omitempty"`
	Discount       decimal.Decimal  `json:"discount"`
	Shipping       decimal.Decimal  `json:"shipping"`
	Notes          string           `json:"notes,omitempty"`
	IdempotencyKey string           `json:"idempotencyKey"`
}

type LineResponse struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	Quantity    int64  `json:"quantity"`
	UnitPrice   string `json:"unitPrice"`
	TaxRate     string `json:"taxRate"`
	LineTotal   string `json:"lineTotal"`
	TaxAmount   string `json:"taxAmount"`
}

type Response struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organizationId"`
	ClientID       *string        `json:"clientId,omitempty"`
	Lines          []LineResponse `json:"lines"`
	Subtotal       string         `json:"subtotal"`
	TaxTotal       string         `json:"taxTotal"`
	Discount       string         `json:"discount"`
	Shipping       string         `json:"shipping"`
	GrandTotal     string         `json:"grandTotal"`
	Currency       string         `json:"currency"`
	ExchangeRate   *string        `json:"exchangeRate,omitempty"`
	ConvertedTotal *string        `json:"convertedTotal,omitempty"`
	PaymentMethod  string         `json:"paymentMethod"`
	Status         Status         `json:"status"`
	Notes          string         `json:"notes,omitempty"`
	IdempotencyKey string         `json:"idempotencyKey"`
	CreatedBy      string         `json:"createdBy,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

type LowStockProduct struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Stock     int64  `json:"stock"`
	MinStock  int64  `json:"minStock"`
}

// CommitResult carries the stored sale. Replayed is true when the
// idempotency key had already been committed and nothing new was written.
type CommitResult struct {
	Sale     Response          `json:"sale"`
	Replayed bool              `json:"replayed"`
	Warnings []string          `json:"warnings,omitempty"`
	LowStock []LowStockProduct `json:"lowStock,omitempty"`
}

type ListRequest struct {
	pagination.Pagination
	ClientID      string
	PaymentMethod string
	Status        string
	Currency      string
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
}

type ListResponse struct {
	pagination.PageInfo
	Sales []Response `json:"sales"`
}

type Service interface {
	Commit(ctx context.Context, req CommitRequest) (*CommitResult, error)
	Get(ctx context.Context, id string) (*Response, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*Response, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
}
