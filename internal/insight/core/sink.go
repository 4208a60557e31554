package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mohammad-safakhou/brandlens/internal/insight"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// WorkspaceLookup resolves the workspace that owns a brand.
type WorkspaceLookup interface {
	WorkspaceByBrand(ctx context.Context, brand string) (id string, found bool, err error)
}

// FactSink stores facts for a workspace. Writes are append-only and may be
// repeated; sinks must tolerate duplicates.
type FactSink interface {
	WriteFacts(ctx context.Context, workspaceID string, facts []insight.Fact) error
}

// SinkFunc adapts a function to FactSink.
type SinkFunc func(ctx context.Context, workspaceID string, facts []insight.Fact) error

func (f SinkFunc) WriteFacts(ctx context.Context, workspaceID string, facts []insight.Fact) error {
	return f(ctx, workspaceID, facts)
}

// Stamp returns copies of facts bound to a workspace with fresh ids.
func Stamp(facts []insight.Fact, workspaceID string, at time.Time) []insight.Fact {
	out := make([]insight.Fact, len(facts))
	for i, f := range facts {
		f.ID = uuid.NewString()
		f.WorkspaceID = workspaceID
		f.CreatedAt = at.UTC()
		out[i] = f
	}
	return out
}

// NamedSink labels a sink for logs and metrics.
type NamedSink struct {
	Name string
	Sink FactSink
}

// MultiSink writes to every sink. A failing sink does not stop the others.
type MultiSink struct {
	sinks []NamedSink
	log   zerolog.Logger
}

// NewMultiSink skips nil sinks.
func NewMultiSink(log zerolog.Logger, sinks ...NamedSink) *MultiSink {
	m := &MultiSink{log: log.With().Str("component", "sink").Logger()}
	for _, s := range sinks {
		if s.Sink != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Len is the number of active sinks.
func (m *MultiSink) Len() int { return len(m.sinks) }

func (m *MultiSink) WriteFacts(ctx context.Context, workspaceID string, facts []insight.Fact) error {
	var errs []error
	for _, s := range m.sinks {
		if err := writeIsolated(ctx, s.Sink, workspaceID, facts); err != nil {
			m.log.Error().Err(err).Str("sink", s.Name).Str("workspace_id", workspaceID).Int("facts", len(facts)).Msg("sink write failed")
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}

func writeIsolated(ctx context.Context, s FactSink, workspaceID string, facts []insight.Fact) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panic: %v", r)
		}
	}()
	return s.WriteFacts(ctx, workspaceID, facts)
}

// breakerSink stops calling a sink that keeps failing and retries it after a
// cool-down.
type breakerSink struct {
	next FactSink
	cb   *gobreaker.CircuitBreaker[struct{}]
}

// Guard wraps s in a circuit breaker that opens after five consecutive
// failures.
func Guard(name string, s FactSink, log zerolog.Logger) FactSink {
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("sink", name).Str("from", from.String()).Str("to", to.String()).Msg("sink breaker state change")
		},
	})
	return &breakerSink{next: s, cb: cb}
}

func (b *breakerSink) WriteFacts(ctx context.Context, workspaceID string, facts []insight.Fact) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, b.next.WriteFacts(ctx, workspaceID, facts)
	})
	return err
}
