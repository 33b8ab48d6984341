package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/i2y/misperer/internal/usecase"
)

// useManualReader installs a meter provider backed by a manual reader for the
// duration of the test.
func useManualReader(t *testing.T) *sdkmetric.ManualReader {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	previous := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		otel.SetMeterProvider(previous)
		_ = provider.Shutdown(context.Background())
	})
	return reader
}

func callCounts(t *testing.T, reader *sdkmetric.ManualReader) map[[2]string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	counts := map[[2]string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != "misperer.tool.calls" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "counter data is %T", m.Data)
			for _, dp := range sum.DataPoints {
				tool, _ := dp.Attributes.Value(attribute.Key("tool"))
				outcome, _ := dp.Attributes.Value(attribute.Key("outcome"))
				counts[[2]string{tool.AsString(), outcome.AsString()}] += dp.Value
			}
		}
	}
	return counts
}

func TestInvokeToolUseCase_CallCounter(t *testing.T) {
	reader := useManualReader(t)
	ctx := context.Background()

	client := new(MockMISPClient)
	client.On("Search", mock.Anything, mock.Anything).Return(searchFixture, nil)
	uc := newInvoker(t, client, usecase.CatalogOptions{})

	calls := []struct {
		tool string
		args map[string]any
	}{
		{tool: "search_by_tags", args: map[string]any{"tags": []any{"apt29"}}},
		{tool: "search_by_tags", args: map[string]any{"tags": []any{"apt28"}}},
		{tool: "search_by_tags", args: map[string]any{"tags": []any{}}},
		{tool: "does_not_exist", args: map[string]any{}},
	}
	for _, c := range calls {
		_, _ = uc.Execute(ctx, c.tool, c.args)
	}

	counts := callCounts(t, reader)
	assert.Equal(t, map[[2]string]int64{
		{"search_by_tags", "ok"}:                2,
		{"search_by_tags", "invalid_arguments"}: 1,
		{"does_not_exist", "unknown_tool"}:      1,
	}, counts)
}
