package tracing

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/pos/internal/observability/context"
	"github.com/smallbiznis/pos/internal/orgcontext"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Context keys handlers set so the request span can carry sale identity.
const (
	IdempotencyKeyField = "idempotency_key"
	SaleIDField         = "sale_id"
)

// GinMiddleware opens a server span per request. The span is renamed to the
// matched route once the handler has run.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("pos/http")
	return func(c *gin.Context) {
		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, spanName(c.Request.Method, ""), trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
			ctx = withBaggage(ctx, "request_id", requestID)
			span.SetAttributes(attribute.String("request_id", requestID))
		}

		c.Request = c.Request.WithContext(ctx)
		start := time.Now()
		c.Next()

		// Tenant is resolved by a later middleware, so read it after the chain.
		reqCtx := c.Request.Context()
		if orgID, ok := orgcontext.OrgIDFromContext(reqCtx); ok {
			span.SetAttributes(attribute.String("pos.org_id", orgID.String()))
		}
		if actorID := orgcontext.ActorIDFromContext(reqCtx); actorID != "" {
			span.SetAttributes(attribute.String("pos.actor_id", actorID))
		}
		if key := c.GetString(IdempotencyKeyField); key != "" {
			span.SetAttributes(attribute.String("pos.idempotency_key", key))
		}
		if saleID := c.GetString(SaleIDField); saleID != "" {
			span.SetAttributes(attribute.String("pos.sale_id", saleID))
		}

		status := c.Writer.Status()
		span.SetName(spanName(c.Request.Method, c.FullPath()))
		span.SetAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", routeOrUnknown(c.FullPath())),
			attribute.Int("http.status_code", status),
			attribute.Int64("http.server_duration_ms", time.Since(start).Milliseconds()),
		)

		// 4xx is the caller's problem (stock, validation); only 5xx marks the span.
		if status >= http.StatusInternalServerError {
			if lastErr := c.Errors.Last(); lastErr != nil {
				span.RecordError(lastErr.Err)
			}
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

func spanName(method, route string) string {
	if route == "" {
		return "HTTP " + method
	}
	return "HTTP " + method + " " + route
}

func routeOrUnknown(route string) string {
	if route == "" {
		return "unknown"
	}
	return route
}

func withBaggage(ctx context.Context, key, value string) context.Context {
	member, err := baggage.NewMember(key, value)
	if err != nil {
		return ctx
	}
	bag, err := baggage.FromContext(ctx).SetMember(member)
	if err != nil {
		return ctx
	}
	return baggage.ContextWithBaggage(ctx, bag)
}
