package orgcontext

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// OrgContextKey is the request context key for the active organization ID.
type OrgContextKey struct{}

// ActorContextKey is the request context key for the acting user.
type ActorContextKey struct{}

// WithOrgID stores the org ID in the context.
func WithOrgID(ctx context.Context, orgID int64) context.Context {
	return context.WithValue(ctx, OrgContextKey{}, orgID)
}

// OrgIDFromContext returns the org ID from context, if set.
func OrgIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}

	switch typed := ctx.Value(OrgContextKey{}).(type) {
	case int64:
		return snowflake.ID(typed), typed != 0
	case snowflake.ID:
		return typed, typed != 0
	case string:
		parsed, err := snowflake.ParseString(strings.TrimSpace(typed))
		if err == nil && parsed != 0 {
			return parsed, true
		}
	}
	return 0, false
}

// WithActorID stores the opaque actor identifier in the context.
func WithActorID(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, ActorContextKey{}, strings.TrimSpace(actorID))
}

// ActorIDFromContext returns the actor ID from context, or "" when unset.
func ActorIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	actorID, _ := ctx.Value(ActorContextKey{}).(string)
	return actorID
}
