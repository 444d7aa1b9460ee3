package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/pos/internal/audit/domain"
	"github.com/smallbiznis/pos/internal/observability/logger"
	"github.com/smallbiznis/pos/pkg/db/pagination"
	"go.uber.org/zap"
)

type listAuditLogsQuery struct {
	PageToken  string `form:"page_token"`
	PageSize   int    `form:"page_size"`
	Action     string `form:"action"`
	TargetType string `form:"target_type"`
	TargetID   string `form:"target_id"`
	ActorType  string `form:"actor_type"`
	StartAt    string `form:"start_at"`
	EndAt      string `form:"end_at"`
	From       string `form:"from"`
	To         string `form:"to"`
}

func (s *Server) ListAuditLogs(c *gin.Context) {
	if s.auditSvc == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	var query listAuditLogsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	window, field, err := parseTimeWindow(
		"start_at", firstNonEmpty(query.StartAt, query.From),
		"end_at", firstNonEmpty(query.EndAt, query.To),
	)
	if err != nil {
		AbortWithError(c, newValidationError(field, "invalid_"+field, "invalid "+field))
		return
	}

	resp, err := s.auditSvc.List(c.Request.Context(), auditdomain.ListAuditLogRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
		Action:     strings.TrimSpace(query.Action),
		TargetType: strings.TrimSpace(query.TargetType),
		TargetID:   strings.TrimSpace(query.TargetID),
		ActorType:  strings.TrimSpace(query.ActorType),
		StartAt:    window.From,
		EndAt:      window.To,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.AuditLogs, "page_info": resp.PageInfo})
}

// audit records a mutation made through the API. Failures are logged and
// never fail the request.
func (s *Server) audit(c *gin.Context, action, targetType, targetID string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	ctx := c.Request.Context()
	err := s.auditSvc.Record(ctx, auditdomain.Entry{
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Metadata:   metadata,
	})
	if err != nil {
		logger.FromContext(ctx).Warn("audit log write failed", zap.String("action", action), zap.Error(err))
	}
}
