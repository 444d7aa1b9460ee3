package observability

import (
	"github.com/smallbiznis/pos/internal/observability/logger"
	"github.com/smallbiznis/pos/internal/observability/metrics"
	"github.com/smallbiznis/pos/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		Config.Logger,
		logger.New,
		Config.Tracing,
		tracing.NewProvider,
		Config.Metrics,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
	),
	// The tracer provider is only consumed through the otel globals, so
	// force its construction.
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)
