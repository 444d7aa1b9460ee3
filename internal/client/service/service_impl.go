package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/pos/internal/catalog/domain"
	"github.com/smallbiznis/pos/internal/client/domain"
	"github.com/smallbiznis/pos/internal/client/repository"
	"github.com/smallbiznis/pos/internal/orgcontext"
	"github.com/smallbiznis/pos/pkg/db"
	"github.com/smallbiznis/pos/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

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
	genID       *snowflake.Node
	repo        domain.Repository
	invalidator catalogdomain.Invalidator
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("client.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		invalidator: p.Invalidator,
	}
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

	classification := domain.ClassificationRegular
	if value := strings.ToLower(strings.TrimSpace(req.Classification)); value != "" {
		classification = domain.Classification(value)
		if !classification.Valid() {
			return nil, domain.ErrInvalidClassification
		}
	}

	now := time.Now().UTC()
	client := domain.Client{
		ID:             s.genID.Generate(),
		OrgID:          orgID,
		Name:           name,
		TaxID:          normalizeTaxID(req.TaxID),
		Phone:          trimmedPtr(req.Phone),
		Classification: classification,
		Metadata:       datatypes.JSONMap{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.Metadata != nil {
		client.Metadata = datatypes.JSONMap(req.Metadata)
	}

	if err := s.repo.Insert(ctx, s.db, &client); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrDuplicateTaxID
		}
		return nil, err
	}

	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, orgID)
	}

	resp := toResponse(&client)
	return &resp, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.ListResponse{}, domain.ErrInvalidOrganization
	}

	filter := domain.ListFilter{
		Name:           strings.ToLower(strings.TrimSpace(req.Name)),
		TaxID:          strings.ToUpper(strings.TrimSpace(req.TaxID)),
		Classification: domain.Classification(strings.ToLower(strings.TrimSpace(req.Classification))),
	}
	if filter.Classification != "" && !filter.Classification.Valid() {
		return domain.ListResponse{}, domain.ErrInvalidClassification
	}

	pageSize := pagination.NormalizePageSize(req.PageSize)
	items, err := s.repo.List(ctx, s.db, orgID, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  pageSize,
	})
	if err != nil {
		return domain.ListResponse{}, err
	}

	items, pageInfo := pagination.Page(items, pageSize, repository.CursorOf)

	clients := make([]domain.Response, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		clients = append(clients, toResponse(item))
	}

	return domain.ListResponse{PageInfo: pageInfo, Clients: clients}, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*domain.Response, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}

	clientID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	item, err := s.repo.FindByID(ctx, s.db, orgID, clientID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}

	resp := toResponse(item)
	return &resp, nil
}

func toResponse(c *domain.Client) domain.Response {
	resp := domain.Response{
		ID:             c.ID.String(),
		OrganizationID: c.OrgID.String(),
		Name:           c.Name,
		TaxID:          c.TaxID,
		Phone:          c.Phone,
		Classification: c.Classification,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
	if len(c.Metadata) > 0 {
		resp.Metadata = map[string]any(c.Metadata)
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

// Tax identifiers are compared case-insensitively and without spaces.
func normalizeTaxID(value *string) *string {
	if value == nil {
		return nil
	}
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(*value), " ", ""))
	if normalized == "" {
		return nil
	}
	return &normalized
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
