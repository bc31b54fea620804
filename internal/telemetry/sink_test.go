package telemetry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/credscope/credscope/pkg/scoring"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func attr(set attribute.Set, key string) string {
	v, _ := set.Value(attribute.Key(key))
	return v.Emit()
}

func TestSinkRecordsSignals(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	sink, err := NewSink(mp)
	require.NoError(t, err)
	ctx := context.Background()

	sink.RecordSignal(ctx, scoring.SignalAddressAge, 12*time.Millisecond, nil)
	sink.RecordSignal(ctx, scoring.SignalStakeImpact, 5*time.Millisecond, errors.New("db down"))
	sink.RecordSignal(ctx, scoring.SignalSocialAge, time.Second,
		fmt.Errorf("%w after 1s", scoring.ErrSignalTimeout))
	sink.RecordScore(ctx, &scoring.ScoreResult{Errors: []scoring.SignalName{scoring.SignalStakeImpact}})

	metrics := collect(t, reader)

	hist, ok := metrics["credscope.signal.duration"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 3)
	statuses := map[string]string{}
	for _, dp := range hist.DataPoints {
		assert.Equal(t, uint64(1), dp.Count)
		statuses[attr(dp.Attributes, "signal")] = attr(dp.Attributes, "status")
		if attr(dp.Attributes, "signal") == string(scoring.SignalAddressAge) {
			assert.InDelta(t, 12.0, dp.Sum, 1e-9)
		}
	}
	assert.Equal(t, map[string]string{
		string(scoring.SignalAddressAge):  StatusOK,
		string(scoring.SignalStakeImpact): StatusError,
		string(scoring.SignalSocialAge):   StatusTimeout,
	}, statuses)

	failures, ok := metrics["credscope.signal.failures"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	var total int64
	for _, dp := range failures.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(2), total)

	scores, ok := metrics["credscope.score.computed"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, scores.DataPoints, 1)
	assert.Equal(t, "true", attr(scores.DataPoints[0].Attributes, "partial"))
}

func TestSinkWithEngine(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	sink, err := NewSink(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	require.NoError(t, err)

	registry := scoring.Registry{}
	for _, name := range scoring.AllSignals() {
		registry[name] = func(context.Context, scoring.Target) (float64, error) { return 1, nil }
	}
	engine, err := scoring.NewEngine(scoring.DefaultTree(), registry, scoring.WithMetrics(sink))
	require.NoError(t, err)

	_, err = engine.ComputeScore(context.Background(), scoring.ProfileTarget(1))
	require.NoError(t, err)

	hist, ok := collect(t, reader)["credscope.signal.duration"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	assert.Len(t, hist.DataPoints, len(scoring.AllSignals()))
}

func TestInitWithoutEndpointIsNoop(t *testing.T) {
	ctx := context.Background()
	assert.NoError(t, InitMetrics(ctx, "credscope-test", "")(ctx))
	assert.NoError(t, InitTracer(ctx, "credscope-test", "")(ctx))

	ctx, span := StartSpan(ctx, "noop")
	span.End()
	Flush(ctx, noop)
}
