package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/pos/pkg/db/pagination"
)

type ListRequest struct {
	PageToken      string
	PageSize       int
	Name           string
	TaxID          string
	Classification string
}

type ListFilter struct {
	Name           string
	TaxID          string
	Classification Classification
}

type ListResponse struct {
	pagination.PageInfo
	Clients []Response `json:"clients"`
}

// CreateRequest is the quick-create form used from the register. Only the
// name is required.
type CreateRequest struct {
	Name           string         `json:"name"`
	TaxID          *string        `json:"tax_id"`
	Phone          *string        `json:"phone"`
	Classification string         `json:"classification"`
	Metadata       map[string]any `json:"metadata"`
}

type Response struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organization_id"`
	Name           string         `json:"name"`
	TaxID          *string        `json:"tax_id,omitempty"`
	Phone          *string        `json:"phone,omitempty"`
	Classification Classification `json:"classification"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

type Service interface {
	Create(context.Context, CreateRequest) (*Response, error)
	List(context.Context, ListRequest) (ListResponse, error)
	GetByID(context.Context, string) (*Response, error)
}

var (
	ErrInvalidOrganization   = errors.New("invalid_organization")
	ErrInvalidName           = errors.New("invalid_name")
	ErrInvalidClassification = errors.New("invalid_classification")
	ErrDuplicateTaxID        = errors.New("duplicate_tax_id")
	ErrInvalidID             = errors.New("invalid_id")
	ErrNotFound              = errors.New("not_found")
)
