package events

import (
	"context"
	"testing"
	"time"

	nats "github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/credscope/credscope/pkg/scoring"
)

func sampleEvent() ScoreEvent {
	return ScoreEvent{
		ID:         "3f1c2d9e-0000-4000-8000-000000000001",
		Target:     "profileId:7",
		Score:      1273,
		Partial:    true,
		Errors:     []scoring.SignalName{scoring.SignalStakeImpact},
		ComputedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestEncodeDecodeCarriesTraceContext(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	msg, err := encode(ctx, DefaultSubject, sampleEvent())
	require.NoError(t, err)
	assert.Equal(t, DefaultSubject, msg.Subject)
	assert.Contains(t, msg.Header.Get("Traceparent"), "4bf92f3577b34da6a3ce929d0e0e4736")

	gotCtx, ev, err := Decode(msg)
	require.NoError(t, err)
	assert.Equal(t, sampleEvent(), ev)
	assert.Equal(t, traceID, trace.SpanContextFromContext(gotCtx).TraceID())
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, _, err := Decode(&nats.Msg{Data: []byte("{")})
	assert.Error(t, err)
}

func TestConnectWithoutURLIsNop(t *testing.T) {
	p, err := Connect("", "")
	require.NoError(t, err)
	assert.IsType(t, NopPublisher{}, p)
	assert.NoError(t, p.PublishScore(context.Background(), sampleEvent()))
	assert.NoError(t, p.Close())
}
