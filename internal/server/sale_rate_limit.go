package server

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/pos/internal/observability/logger"
	"github.com/smallbiznis/pos/internal/orgcontext"
	"go.uber.org/zap"
)

const rateLimitReasonOrgRate = "org-rate"

// SaleCommitRateLimit spends one token of the tenant's commit bucket. It is
// a no-op when redis is not configured.
func (s *Server) SaleCommitRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.commitLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		orgID, ok := orgcontext.OrgIDFromContext(ctx)
		if !ok {
			AbortWithError(c, ErrOrgRequired)
			return
		}

		endpoint := normalizeRateLimitEndpoint(c)
		result, err := s.commitLimiter.AllowOrg(ctx, orgID.String())
		if err != nil {
			logger.FromContext(ctx).Warn("sale commit rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !result.Allowed {
			logger.FromContext(ctx).Warn("sale commit rate limit exceeded",
				zap.String("reason", rateLimitReasonOrgRate),
				zap.String("endpoint", endpoint),
			)
			s.obsMetrics.RecordRateLimitDenied(ctx, orgID.String(), endpoint, rateLimitReasonOrgRate)

			retryAfter := 1
			if seconds := int(result.RetryAfter.Seconds()); seconds > retryAfter {
				retryAfter = seconds
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.Header("X-Rate-Limited-Reason", rateLimitReasonOrgRate)
			AbortWithError(c, ErrRateLimited)
			return
		}

		c.Next()
	}
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
