package core

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

type instruments struct {
	outcomes     otelmetric.Int64Counter
	latency      otelmetric.Float64Histogram
	duration     otelmetric.Float64Histogram
	factsWritten otelmetric.Int64Counter
	sinkFailures otelmetric.Int64Counter
}

func newInstruments(meter otelmetric.Meter, log zerolog.Logger) *instruments {
	in := &instruments{}
	var err error
	in.outcomes, err = meter.Int64Counter(
		"provider_outcomes_total",
		otelmetric.WithDescription("Provider calls by outcome"),
	)
	if err != nil {
		log.Warn().Err(err).Msg("metrics init: provider_outcomes_total")
	}
	in.latency, err = meter.Float64Histogram(
		"provider_latency_seconds",
		otelmetric.WithDescription("Provider call latency"),
		otelmetric.WithUnit("s"),
	)
	if err != nil {
		log.Warn().Err(err).Msg("metrics init: provider_latency_seconds")
	}
	in.duration, err = meter.Float64Histogram(
		"aggregate_duration_seconds",
		otelmetric.WithDescription("Wall-clock time of one aggregation"),
		otelmetric.WithUnit("s"),
	)
	if err != nil {
		log.Warn().Err(err).Msg("metrics init: aggregate_duration_seconds")
	}
	in.factsWritten, err = meter.Int64Counter(
		"insight_facts_written_total",
		otelmetric.WithDescription("Facts handed to sinks successfully"),
	)
	if err != nil {
		log.Warn().Err(err).Msg("metrics init: insight_facts_written_total")
	}
	in.sinkFailures, err = meter.Int64Counter(
		"sink_failures_total",
		otelmetric.WithDescription("Failed fact writes"),
	)
	if err != nil {
		log.Warn().Err(err).Msg("metrics init: sink_failures_total")
	}
	return in
}

func (in *instruments) provider(ctx context.Context, name, outcome string, elapsed time.Duration) {
	attrs := otelmetric.WithAttributes(attribute.String("provider", name), attribute.String("outcome", outcome))
	if in.outcomes != nil {
		in.outcomes.Add(ctx, 1, attrs)
	}
	if in.latency != nil {
		in.latency.Record(ctx, elapsed.Seconds(), otelmetric.WithAttributes(attribute.String("provider", name)))
	}
}

func (in *instruments) aggregate(ctx context.Context, elapsed time.Duration) {
	if in.duration != nil {
		in.duration.Record(ctx, elapsed.Seconds())
	}
}

func (in *instruments) written(ctx context.Context, n int) {
	if in.factsWritten != nil {
		in.factsWritten.Add(ctx, int64(n))
	}
}

func (in *instruments) sinkFailed(ctx context.Context) {
	if in.sinkFailures != nil {
		in.sinkFailures.Add(ctx, 1)
	}
}
