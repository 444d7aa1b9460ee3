package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	salesCommitted      metric.Int64Counter
	saleCommitFailures  metric.Int64Counter
	stockRejections     metric.Int64Counter
	duplicateSubmission metric.Int64Counter
	rateLimitDenied     metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "pos"
	}
	meter := provider.Meter(name)

	salesCommitted, err := meter.Int64Counter("pos_sales_committed_total")
	if err != nil {
		return nil, err
	}
	saleCommitFailures, err := meter.Int64Counter("pos_sale_commit_failures_total")
	if err != nil {
		return nil, err
	}
	stockRejections, err := meter.Int64Counter("pos_stock_rejections_total")
	if err != nil {
		return nil, err
	}
	duplicateSubmission, err := meter.Int64Counter("pos_duplicate_submissions_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("pos_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		salesCommitted:      salesCommitted,
		saleCommitFailures:  saleCommitFailures,
		stockRejections:     stockRejections,
		duplicateSubmission: duplicateSubmission,
		rateLimitDenied:     rateLimitDenied,
	}, nil
}

// RecordSaleCommitted counts a newly persisted sale.
func (m *Metrics) RecordSaleCommitted(ctx context.Context, orgID, paymentMethod, currency string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("org_id", strings.TrimSpace(orgID)),
		attribute.String("payment_method", strings.TrimSpace(paymentMethod)),
		attribute.String("currency", strings.TrimSpace(currency)),
	)
	m.salesCommitted.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordSaleCommitFailure counts a rejected or failed commit by error kind.
func (m *Metrics) RecordSaleCommitFailure(ctx context.Context, orgID, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("org_id", strings.TrimSpace(orgID)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.saleCommitFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordStockRejection counts commits refused by the stock check.
func (m *Metrics) RecordStockRejection(ctx context.Context, orgID string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("org_id", strings.TrimSpace(orgID)))
	m.stockRejections.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordDuplicateSubmission counts idempotent replays.
func (m *Metrics) RecordDuplicateSubmission(ctx context.Context, orgID string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("org_id", strings.TrimSpace(orgID)))
	m.duplicateSubmission.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied increments rate limit deny counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, orgID, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("org_id", strings.TrimSpace(orgID)),
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"org_id":         {},
	"endpoint":       {},
	"status_code":    {},
	"payment_method": {},
	"currency":       {},
	"reason":         {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
