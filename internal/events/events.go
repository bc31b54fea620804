// Package events publishes score notifications to subscribers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	nats "github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/propagation"

	"github.com/credscope/credscope/pkg/scoring"
)

// DefaultSubject is where score events are published.
const DefaultSubject = "credscope.scores"

// ScoreEvent announces a persisted score.
type ScoreEvent struct {
	ID         string               `json:"id"`
	Target     string               `json:"target"`
	Score      float64              `json:"score"`
	Partial    bool                 `json:"partial"`
	Errors     []scoring.SignalName `json:"errors"`
	ComputedAt time.Time            `json:"computed_at"`
}

// Publisher delivers score events.
type Publisher interface {
	PublishScore(ctx context.Context, ev ScoreEvent) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) PublishScore(context.Context, ScoreEvent) error { return nil }
func (NopPublisher) Close() error                                  { return nil }

var propagator = propagation.TraceContext{}

// NATSPublisher publishes events as JSON with traceparent headers.
type NATSPublisher struct {
	nc      *nats.Conn
	subject string
}

// Connect dials NATS. An empty url yields a NopPublisher.
func Connect(url, subject string) (Publisher, error) {
	if url == "" {
		return NopPublisher{}, nil
	}
	if subject == "" {
		subject = DefaultSubject
	}
	nc, err := nats.Connect(url,
		nats.Name("credscope"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return NewNATSPublisher(nc, subject), nil
}

// NewNATSPublisher wraps an open connection.
func NewNATSPublisher(nc *nats.Conn, subject string) *NATSPublisher {
	return &NATSPublisher{nc: nc, subject: subject}
}

// PublishScore implements Publisher.
func (p *NATSPublisher) PublishScore(ctx context.Context, ev ScoreEvent) error {
	msg, err := encode(ctx, p.subject, ev)
	if err != nil {
		return err
	}
	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish score event: %w", err)
	}
	return nil
}

func encode(ctx context.Context, subject string, ev ScoreEvent) (*nats.Msg, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal score event: %w", err)
	}
	hdr := nats.Header{}
	propagator.Inject(ctx, propagation.HeaderCarrier(hdr))
	return &nats.Msg{Subject: subject, Data: data, Header: hdr}, nil
}

// Close drains the connection.
func (p *NATSPublisher) Close() error {
	return p.nc.Drain()
}

// Decode parses a message published by NATSPublisher and restores its trace context.
func Decode(msg *nats.Msg) (context.Context, ScoreEvent, error) {
	ctx := propagator.Extract(context.Background(), propagation.HeaderCarrier(msg.Header))
	var ev ScoreEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		return ctx, ev, fmt.Errorf("decode score event: %w", err)
	}
	return ctx, ev, nil
}
