package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	catalogdomain "github.com/smallbiznis/pos/internal/catalog/domain"
	"github.com/smallbiznis/pos/internal/orgcontext"
	"github.com/smallbiznis/pos/internal/product/domain"
	"github.com/smallbiznis/pos/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var maxTaxRate = decimal.NewFromInt(100)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Repo        domain.Repository
	Invalidator catalogdomain.Invalidator `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	repo        domain.Repository
	genID       *snowflake.Node
	invalidator catalogdomain.Invalidator
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("product.service"),
		repo:        p.Repo,
		genID:       p.GenID,
		invalidator: p.Invalidator,
	}
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Response, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}

	filter := domain.ListFilter{
		Name:     strings.TrimSpace(req.Name),
		Active:   req.Active,
		LowStock: req.LowStock,
		SortBy:   strings.TrimSpace(req.SortBy),
		OrderBy:  strings.TrimSpace(req.OrderBy),
	}

	items, err := s.repo.List(ctx, s.db, orgID, filter)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, toResponse(&items[i]))
	}
	return resp, nil
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	code := strings.TrimSpace(req.Code)
	if code == "" {
		code = slug.Make(name)
	}
	if code == "" {
		return nil, domain.ErrInvalidCode
	}

	if req.UnitPrice.IsNegative() {
		return nil, domain.ErrInvalidPrice
	}
	unitCost := decimal.Zero
	if req.UnitCost != nil {
		if req.UnitCost.IsNegative() {
			return nil, domain.ErrInvalidCost
		}
		unitCost = *req.UnitCost
	}
	taxRate := decimal.Zero
	if req.TaxRate != nil {
		if !validTaxRate(*req.TaxRate) {
			return nil, domain.ErrInvalidTaxRate
		}
		taxRate = *req.TaxRate
	}

	stock := int64(0)
	if req.Stock != nil {
		stock = *req.Stock
	}
	minStock := int64(0)
	if req.MinStock != nil {
		minStock = *req.MinStock
	}
	if stock < 0 || minStock < 0 {
		return nil, domain.ErrInvalidStock
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	now := time.Now().UTC()
	p := &domain.Product{
		ID:          s.genID.Generate(),
		OrgID:       orgID,
		Code:        code,
		Name:        name,
		Description: trimmedPtr(req.Description),
		UnitPrice:   req.UnitPrice.Round(2),
		UnitCost:    unitCost.Round(2),
		TaxRate:     taxRate,
		Stock:       stock,
		MinStock:    minStock,
		Active:      active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.Metadata != nil {
		p.Metadata = datatypes.JSONMap(req.Metadata)
	}
	if err := s.repo.Create(ctx, s.db, p); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrDuplicateCode
		}
		return nil, err
	}

	s.invalidate(ctx, orgID)
	resp := toResponse(p)
	return &resp, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}

	item, err := s.find(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	resp := toResponse(item)
	return &resp, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (*domain.Response, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}

	item, err := s.find(ctx, orgID, req.ID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.ErrInvalidName
		}
		item.Name = name
	}
	if req.Description != nil {
		item.Description = trimmedPtr(req.Description)
	}
	if req.UnitPrice != nil {
		if req.UnitPrice.IsNegative() {
			return nil, domain.ErrInvalidPrice
		}
		item.UnitPrice = req.UnitPrice.Round(2)
	}
	if req.UnitCost != nil {
		if req.UnitCost.IsNegative() {
			return nil, domain.ErrInvalidCost
		}
		item.UnitCost = req.UnitCost.Round(2)
	}
	if req.TaxRate != nil {
		if !validTaxRate(*req.TaxRate) {
			return nil, domain.ErrInvalidTaxRate
		}
		item.TaxRate = *req.TaxRate
	}
	if req.MinStock != nil {
		if *req.MinStock < 0 {
			return nil, domain.ErrInvalidStock
		}
		item.MinStock = *req.MinStock
	}
	if req.Active != nil {
		item.Active = *req.Active
	}
	if req.Metadata != nil {
		item.Metadata = datatypes.JSONMap(req.Metadata)
	}

	item.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, s.db, item); err != nil {
		return nil, err
	}

	s.invalidate(ctx, orgID)
	resp := toResponse(item)
	return &resp, nil
}

func (s *Service) Archive(ctx context.Context, id string) (*domain.Response, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}

	item, err := s.find(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	item.Active = false
	item.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, s.db, item); err != nil {
		return nil, err
	}

	s.invalidate(ctx, orgID)
	resp := toResponse(item)
	return &resp, nil
}

func (s *Service) AdjustStock(ctx context.Context, req domain.AdjustStockRequest) (*domain.Response, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}
	if req.Delta == 0 {
		return nil, domain.ErrInvalidDelta
	}

	productID, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}

	var updated *domain.Product
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		applied, err := s.repo.AdjustStock(ctx, tx, orgID, productID, req.Delta, time.Now().UTC())
		if err != nil {
			return err
		}

		item, err := s.repo.FindByID(ctx, tx, orgID, productID)
		if err != nil {
			return err
		}
		if item == nil {
			return domain.ErrNotFound
		}
		if !applied {
			return domain.ErrInsufficientStock
		}
		updated = item
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("stock adjusted",
		zap.String("product_id", productID.String()),
		zap.Int64("delta", req.Delta),
		zap.Int64("stock", updated.Stock),
		zap.String("reason", strings.TrimSpace(req.Reason)),
	)

	s.invalidate(ctx, orgID)
	resp := toResponse(updated)
	return &resp, nil
}

func (s *Service) find(ctx context.Context, orgID snowflake.ID, id string) (*domain.Product, error) {
	productID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	item, err := s.repo.FindByID(ctx, s.db, orgID, productID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}
	return item, nil
}

func (s *Service) invalidate(ctx context.Context, orgID snowflake.ID) {
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, orgID)
	}
}

func toResponse(p *domain.Product) domain.Response {
	resp := domain.Response{
		ID:             p.ID.String(),
		OrganizationID: p.OrgID.String(),
		Code:           p.Code,
		Name:           p.Name,
		Description:    p.Description,
		UnitPrice:      p.UnitPrice,
		UnitCost:       p.UnitCost,
		TaxRate:        p.TaxRate,
		Stock:          p.Stock,
		MinStock:       p.MinStock,
		LowStock:       p.IsLowStock(),
		Active:         p.Active,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}

	if len(p.Metadata) > 0 {
		resp.Metadata = map[string]any(p.Metadata)
	}

	return resp
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func validTaxRate(rate decimal.Decimal) bool {
	return !rate.IsNegative() && !rate.GreaterThan(maxTaxRate)
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
