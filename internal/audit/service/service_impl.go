package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/pos/internal/audit/domain"
	"github.com/smallbiznis/pos/internal/audit/masking"
	"github.com/smallbiznis/pos/internal/clock"
	obscontext "github.com/smallbiznis/pos/internal/observability/context"
	"github.com/smallbiznis/pos/internal/orgcontext"
	"github.com/smallbiznis/pos/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  auditdomain.Repository
	Clock clock.Clock `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  auditdomain.Repository
	clock clock.Clock
}

func NewService(p Params) auditdomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: clk,
	}
}

// Record stores entry under the org on ctx. Entries without an org are
// dropped: the register never writes tenant-less history.
func (s *Service) Record(ctx context.Context, entry auditdomain.Entry) error {
	action := strings.TrimSpace(entry.Action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return auditdomain.ErrInvalidOrganization
	}

	targetType := strings.TrimSpace(entry.TargetType)
	if targetType == "" {
		targetType = "unknown"
	}
	actorType, actorID := resolveActor(ctx, entry.ActorType, entry.ActorID)

	metadata := masking.MaskFields(entry.Metadata, auditdomain.SensitiveKeys...)
	if metadata == nil {
		metadata = map[string]any{}
	}
	if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
		metadata["request_id"] = requestID
	}

	row := auditdomain.AuditLog{
		ID:         s.genID.Generate(),
		OrgID:      &orgID,
		ActorType:  string(actorType),
		ActorID:    optional(actorID),
		Action:     action,
		TargetType: targetType,
		TargetID:   optional(entry.TargetID),
		Metadata:   datatypes.JSONMap(metadata),
		IPAddress:  optional(obscontext.ClientIPFromContext(ctx)),
		UserAgent:  optional(obscontext.UserAgentFromContext(ctx)),
		CreatedAt:  s.clock.Now().UTC(),
	}

	if err := s.repo.Insert(ctx, s.db, &row); err != nil {
		s.log.Warn("failed to write audit log",
			zap.String("action", action),
			zap.String("org_id", orgID.String()),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidOrganization
	}

	if req.StartAt != nil && req.EndAt != nil && req.StartAt.After(*req.EndAt) {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidTimeRange
	}

	cursor, err := decodeCursor(req.PageToken)
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}

	pageSize := pagination.NormalizePageSize(req.PageSize)
	items, err := s.repo.List(ctx, s.db, auditdomain.ListFilter{
		OrgID:      orgID,
		Action:     strings.TrimSpace(req.Action),
		TargetType: strings.TrimSpace(req.TargetType),
		TargetID:   strings.TrimSpace(req.TargetID),
		ActorType:  strings.TrimSpace(req.ActorType),
		StartAt:    req.StartAt,
		EndAt:      req.EndAt,
		Cursor:     cursor,
		Limit:      pageSize,
	})
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}

	items, pageInfo := pagination.Page(items, pageSize, func(item *auditdomain.AuditLog) pagination.Cursor {
		return pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
	})

	logs := make([]auditdomain.AuditLog, 0, len(items))
	for _, item := range items {
		if item != nil {
			logs = append(logs, *item)
		}
	}

	return auditdomain.ListAuditLogResponse{PageInfo: pageInfo, AuditLogs: logs}, nil
}

func decodeCursor(token string) (*auditdomain.AuditCursor, error) {
	if strings.TrimSpace(token) == "" {
		return nil, nil
	}
	decoded, err := pagination.DecodeCursor(token)
	if err != nil {
		return nil, auditdomain.ErrInvalidPageToken
	}
	createdAt, err := decoded.CursorTime()
	if err != nil {
		return nil, auditdomain.ErrInvalidPageToken
	}
	id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
	if err != nil || id == 0 {
		return nil, auditdomain.ErrInvalidPageToken
	}
	return &auditdomain.AuditCursor{ID: id, CreatedAt: createdAt}, nil
}

// An explicit actor wins; otherwise the cashier on the request, otherwise system.
func resolveActor(ctx context.Context, actorType auditdomain.ActorType, actorID string) (auditdomain.ActorType, string) {
	actorID = strings.TrimSpace(actorID)
	if actorType != "" {
		return actorType, actorID
	}
	if cashier := orgcontext.ActorIDFromContext(ctx); cashier != "" {
		if actorID == "" {
			actorID = cashier
		}
		return auditdomain.ActorTypeCashier, actorID
	}
	return auditdomain.ActorTypeSystem, actorID
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
