package server

import (
	"context"
	"net/http"
	"testing"

	obsmetrics "github.com/smallbiznis/pos/internal/observability/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func counterTotal(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "%s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestCommitOutcomesCountedOnce(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := obsmetrics.New(obsmetrics.Config{ServiceName: "pos-test"}, provider)
	require.NoError(t, err)

	ts := newTestServerWithMetrics(t, m)
	p := ts.createProduct(t, "Cafe 250g", "10.00", "16", 2)

	rec := ts.do(t, http.MethodPost, "/sales", ts.org, saleBody("counted-once", p.ID, 1))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, int64(1), counterTotal(t, reader, "pos_sales_committed_total"))

	rec = ts.do(t, http.MethodPost, "/sales", ts.org, saleBody("counted-once", p.ID, 1))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(1), counterTotal(t, reader, "pos_duplicate_submissions_total"))

	rec = ts.do(t, http.MethodPost, "/sales", ts.org, saleBody("too-many", p.ID, 5))
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	assert.Equal(t, int64(1), counterTotal(t, reader, "pos_stock_rejections_total"))
	assert.Equal(t, int64(1), counterTotal(t, reader, "pos_sale_commit_failures_total"))
	assert.Equal(t, int64(1), counterTotal(t, reader, "pos_sales_committed_total"))
}
