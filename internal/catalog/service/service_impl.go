package service

import (
	"context"

	"github.com/smallbiznis/pos/internal/catalog/domain"
	clientdomain "github.com/smallbiznis/pos/internal/client/domain"
	"github.com/smallbiznis/pos/internal/clock"
	"github.com/smallbiznis/pos/internal/orgcontext"
	productdomain "github.com/smallbiznis/pos/internal/product/domain"
	"github.com/smallbiznis/pos/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Products productdomain.Service
	Clients  clientdomain.Service
	Store    *SnapshotStore
	Clock    clock.Clock `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	products productdomain.Service
	clients  clientdomain.Service
	store    *SnapshotStore
	clock    clock.Clock
}

func New(p Params) domain.Provider {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		log:      p.Log.Named("catalog.service"),
		products: p.Products,
		clients:  p.Clients,
		store:    p.Store,
		clock:    clk,
	}
}

func (s *Service) Snapshot(ctx context.Context) (*domain.Snapshot, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}

	if cached, hit := s.store.Get(ctx, orgID); hit {
		return cached, nil
	}

	active := true
	products, err := s.products.List(ctx, productdomain.ListRequest{Active: &active, SortBy: "name"})
	if err != nil {
		return nil, err
	}

	clients, err := s.allClients(ctx)
	if err != nil {
		return nil, err
	}

	snapshot := &domain.Snapshot{
		OrganizationID: orgID.String(),
		Products:       products,
		Clients:        clients,
		FetchedAt:      s.clock.Now(),
	}
	s.store.Set(ctx, orgID, snapshot)
	return snapshot, nil
}

func (s *Service) ListProducts(ctx context.Context) ([]productdomain.Response, error) {
	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snapshot.Products, nil
}

func (s *Service) ListClients(ctx context.Context) ([]clientdomain.Response, error) {
	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snapshot.Clients, nil
}

// CreateClient quick-creates a client. The client service invalidates the
// cached snapshot once the row is stored.
func (s *Service) CreateClient(ctx context.Context, req clientdomain.CreateRequest) (*clientdomain.Response, error) {
	return s.clients.Create(ctx, req)
}

func (s *Service) allClients(ctx context.Context) ([]clientdomain.Response, error) {
	var (
		out   []clientdomain.Response
		token string
	)
	for {
		page, err := s.clients.List(ctx, clientdomain.ListRequest{
			PageToken: token,
			PageSize:  pagination.MaxPageSize,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, page.Clients...)
		if !page.HasMore || page.NextPageToken == "" {
			return out, nil
		}
		token = page.NextPageToken
	}
}
