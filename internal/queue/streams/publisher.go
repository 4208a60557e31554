package streams

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/mohammad-safakhou/brandlens/internal/insight"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	otelmetric "go.opentelemetry.io/otel/metric"
)

// Adder is the subset of the Redis client the publisher needs.
type Adder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// Publisher appends envelopes to Redis streams.
type Publisher struct {
	client    Adder
	published otelmetric.Int64Counter
}

// PublishOption allows configuring Redis XADD behaviour.
type PublishOption func(*redis.XAddArgs)

// WithMaxLenApprox caps the stream at roughly maxLen entries.
func WithMaxLenApprox(maxLen int64) PublishOption {
	return func(args *redis.XAddArgs) {
		if maxLen > 0 {
			args.MaxLen = maxLen
			args.Approx = true
		}
	}
}

func NewPublisher(client Adder) *Publisher {
	p := &Publisher{client: client}
	c, err := otel.Meter("brandlens/queue/streams").Int64Counter(
		"stream_events_published_total",
		otelmetric.WithDescription("Envelopes appended to Redis streams"),
	)
	if err == nil {
		p.published = c
	}
	return p
}

// Publish validates the envelope and appends it to stream.
func (p *Publisher) Publish(ctx context.Context, stream string, envelope Envelope, opts ...PublishOption) (string, error) {
	if stream == "" {
		return "", fmt.Errorf("stream name is required")
	}
	if envelope.EventID == "" {
		envelope.EventID = uuid.NewString()
	}
	if envelope.OccurredAt.IsZero() {
		envelope.OccurredAt = time.Now().UTC()
	}
	raw, err := envelope.Marshal()
	if err != nil {
		return "", err
	}

	args := &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{"envelope": raw},
	}
	for _, opt := range opts {
		opt(args)
	}

	id, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}
	if p.published != nil {
		p.published.Add(ctx, 1)
	}
	return id, nil
}

// FactMirror is a fact sink that appends every write to a stream.
type FactMirror struct {
	pub    *Publisher
	stream string
	maxLen int64
}

func NewFactMirror(pub *Publisher, stream string, maxLen int64) *FactMirror {
	return &FactMirror{pub: pub, stream: stream, maxLen: maxLen}
}

// WriteFacts publishes one envelope per call carrying all facts.
func (m *FactMirror) WriteFacts(ctx context.Context, workspaceID string, facts []insight.Fact) error {
	if len(facts) == 0 {
		return nil
	}
	data, err := json.Marshal(facts)
	if err != nil {
		return fmt.Errorf("marshal facts: %w", err)
	}
	_, err = m.pub.Publish(ctx, m.stream, Envelope{
		EventType:      EventFactsWritten,
		WorkspaceID:    workspaceID,
		PayloadVersion: PayloadV1,
		Data:           data,
	}, WithMaxLenApprox(m.maxLen))
	return err
}
