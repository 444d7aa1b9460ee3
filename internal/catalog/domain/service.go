package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"

	clientdomain "github.com/smallbiznis/pos/internal/client/domain"
	productdomain "github.com/smallbiznis/pos/internal/product/domain"
)

// Snapshot is the read-only view of a tenant's catalog used by the sale
// wizard. Products only include active items.
type Snapshot struct {
	OrganizationID string                   `json:"organization_id"`
	Products       []productdomain.Response `json:"products"`
	Clients        []clientdomain.Response  `json:"clients"`
	FetchedAt      time.Time                `json:"fetched_at"`
}

type Provider interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
	ListProducts(ctx context.Context) ([]productdomain.Response, error)
	ListClients(ctx context.Context) ([]clientdomain.Response, error)
	CreateClient(ctx context.Context, req clientdomain.CreateRequest) (*clientdomain.Response, error)
}

// Invalidator drops any cached snapshot for a tenant. Writers that change
// products, stock or clients call it after their change is durable.
type Invalidator interface {
	Invalidate(ctx context.Context, orgID snowflake.ID)
}

var ErrInvalidOrganization = errors.New("invalid_organization")
