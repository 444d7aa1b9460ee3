package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("org_id", "123"),
		attribute.String("client_id", "456"),
		attribute.String("payment_method", "cash"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != "org_id" && attrs[1].Key != "org_id" {
		t.Fatalf("expected org_id to be retained")
	}
	if attrs[0].Key != "payment_method" && attrs[1].Key != "payment_method" {
		t.Fatalf("expected payment_method to be retained")
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordSaleCommitted(ctx, "1", "cash", "USD")
		m.RecordSaleCommitFailure(ctx, "1", "insufficient_stock")
		m.RecordStockRejection(ctx, "1")
		m.RecordDuplicateSubmission(ctx, "1")
		m.RecordRateLimitDenied(ctx, "1", "/api/sales", "org-rate")
	})
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "pos-test"}, noop.NewMeterProvider())
	require.NoError(t, err)
	assert.NotPanics(t, func() {
		m.RecordSaleCommitted(context.Background(), "1", "card", "USD")
	})
}
