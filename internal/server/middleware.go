package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/pos/internal/observability/context"
	"github.com/smallbiznis/pos/internal/orgcontext"
)

const (
	HeaderOrg                = "X-Org-ID"
	HeaderActor              = "X-Actor-ID"
	HeaderIdempotencyKey     = "Idempotency-Key"
	HeaderIdempotentReplayed = "Idempotent-Replayed"

	contextOrgIDKey   = "org_id"
	contextActorIDKey = "actor_id"
)

// TenantContext resolves the tenant and actor handed over by the upstream
// identity layer. A request without a usable tenant id is rejected.
func (s *Server) TenantContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderOrg))
		if raw == "" {
			AbortWithError(c, ErrOrgRequired)
			return
		}
		orgID, err := snowflake.ParseString(raw)
		if err != nil || orgID <= 0 {
			AbortWithError(c, ErrOrgRequired)
			return
		}

		ctx := orgcontext.WithOrgID(c.Request.Context(), orgID.Int64())
		if actorID := strings.TrimSpace(c.GetHeader(HeaderActor)); actorID != "" {
			ctx = orgcontext.WithActorID(ctx, actorID)
			c.Set(contextActorIDKey, actorID)
		}
		ctx = obscontext.WithClientInfo(ctx, c.ClientIP(), c.Request.UserAgent())

		c.Set(contextOrgIDKey, orgID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
