package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mohammad-safakhou/brandlens/internal/insight"
	"github.com/mohammad-safakhou/brandlens/internal/insight/category"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const defaultPersistTimeout = 15 * time.Second

// Options wires an Orchestrator. Registry is required; everything else is
// optional.
type Options struct {
	Registry   *Registry
	Resolver   *category.Resolver
	Workspaces WorkspaceLookup
	Sink       FactSink
	Logger     zerolog.Logger
	Tracer     trace.Tracer
	Meter      otelmetric.Meter
	// PersistTimeout bounds one background fact write.
	PersistTimeout time.Duration
	// Now is used to timestamp facts.
	Now func() time.Time
}

// Orchestrator aggregates one request at a time per call and keeps no state
// between calls apart from in-flight background writes.
type Orchestrator struct {
	registry       *Registry
	resolver       *category.Resolver
	workspaces     WorkspaceLookup
	sink           FactSink
	log            zerolog.Logger
	tracer         trace.Tracer
	metrics        *instruments
	persistTimeout time.Duration
	now            func() time.Time

	mu       sync.Mutex
	inflight int
	idle     chan struct{}
	closed   bool
}

// New validates opts and builds an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Registry == nil {
		return nil, errors.New("orchestrator: registry required")
	}
	log := opts.Logger.With().Str("component", "orchestrator").Logger()
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer("brandlens/insight")
	}
	meter := opts.Meter
	if meter == nil {
		meter = otel.Meter("brandlens/insight")
	}
	timeout := opts.PersistTimeout
	if timeout <= 0 {
		timeout = defaultPersistTimeout
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		registry:       opts.Registry,
		resolver:       opts.Resolver,
		workspaces:     opts.Workspaces,
		sink:           opts.Sink,
		log:            log,
		tracer:         tracer,
		metrics:        newInstruments(meter, log),
		persistTimeout: timeout,
		now:            now,
	}, nil
}

// Aggregate fans out to every registered provider, waits for all of them and
// returns the merged report. The only error is *insight.RequestError.
func (o *Orchestrator) Aggregate(ctx context.Context, req insight.Request) (insight.Report, error) {
	if err := req.Validate(); err != nil {
		return insight.Report{}, err
	}
	req = insight.Request{Brand: strings.TrimSpace(req.Brand), Domain: strings.TrimSpace(req.Domain)}

	ctx, span := o.tracer.Start(ctx, "insight.Aggregate", trace.WithAttributes(
		attribute.String("brand", req.Brand),
		attribute.String("domain", req.Domain),
	))
	defer span.End()
	start := time.Now()

	rec := o.Collect(ctx, req)
	report, facts := Merge(rec)
	o.persist(ctx, req, facts)

	o.metrics.aggregate(ctx, time.Since(start))
	span.SetAttributes(attribute.Int("facts", len(facts)))
	o.log.Debug().Str("brand", req.Brand).Dur("elapsed", time.Since(start)).Int("facts", len(facts)).Msg("aggregation settled")
	return report, nil
}

// Collect runs every provider and the category resolver concurrently and
// returns once all have settled. Entries keep registry order.
func (o *Orchestrator) Collect(ctx context.Context, req insight.Request) insight.Record {
	providers := o.registry.providers
	entries := make([]insight.Entry, len(providers))
	for i, p := range providers {
		entries[i] = insight.Entry{Name: p.Name, Group: p.Group, Field: p.Field, Shape: p.Shape}
	}

	var resolution insight.CategoryResolution
	resolved := make(chan struct{})

	// Plain Group: a failing branch must not cancel its siblings.
	var g errgroup.Group
	g.Go(func() error {
		defer close(resolved)
		resolution = o.resolve(ctx, req.Brand)
		return nil
	})
	for i, p := range providers {
		g.Go(func() error {
			if p.dependent != nil {
				<-resolved
				entries[i].Result = o.call(ctx, p.Name, func(ctx context.Context) insight.Result[any] {
					return p.dependent(ctx, resolution)
				})
				return nil
			}
			entries[i].Result = o.call(ctx, p.Name, func(ctx context.Context) insight.Result[any] {
				return p.direct(ctx, req)
			})
			return nil
		})
	}
	_ = g.Wait()

	return insight.Record{Request: req, Category: resolution, Entries: entries}
}

// Wait blocks until the background fact writes started before the call
// finish, or ctx ends. It is safe to call while Aggregate runs.
func (o *Orchestrator) Wait(ctx context.Context) error {
	o.mu.Lock()
	if o.inflight == 0 {
		o.mu.Unlock()
		return nil
	}
	idle := o.idle
	o.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting fact writes and waits for pending ones. Reports are
// still served after Close; their facts are dropped.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	return o.Wait(ctx)
}

// track registers one background write. It reports false once closed.
func (o *Orchestrator) track() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return false
	}
	if o.inflight == 0 {
		o.idle = make(chan struct{})
	}
	o.inflight++
	return true
}

func (o *Orchestrator) untrack() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inflight--
	if o.inflight == 0 {
		close(o.idle)
	}
}

func (o *Orchestrator) resolve(ctx context.Context, brand string) (res insight.CategoryResolution) {
	ctx, span := o.tracer.Start(ctx, "insight.ResolveCategory")
	defer span.End()
	res = insight.CategoryResolution{Brand: brand, Bucket: insight.BucketAll}
	defer func() {
		if r := recover(); r != nil {
			o.log.Error().Interface("panic", r).Str("brand", brand).Msg("category resolver panicked")
			res = insight.CategoryResolution{Brand: brand, Bucket: insight.BucketAll}
		}
		span.SetAttributes(attribute.String("bucket", string(res.Bucket)))
	}()
	if o.resolver == nil {
		return res
	}
	return o.resolver.Resolve(ctx, brand)
}

func (o *Orchestrator) call(ctx context.Context, name string, fn func(context.Context) insight.Result[any]) (res insight.Result[any]) {
	ctx, span := o.tracer.Start(ctx, "insight.provider", trace.WithAttributes(attribute.String("provider", name)))
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			o.log.Error().Interface("panic", r).Str("provider", name).Msg("provider panicked")
			res = insight.Unavailable[any](insight.ReasonTransport)
		}
		outcome := "ok"
		if !res.OK() {
			outcome = res.Reason().String()
			span.SetStatus(codes.Error, outcome)
			level := zerolog.WarnLevel
			if res.Reason() == insight.ReasonNotConfigured {
				level = zerolog.InfoLevel
			}
			o.log.WithLevel(level).Str("provider", name).Str("reason", outcome).Msg("provider unavailable")
		}
		span.SetAttributes(attribute.String("outcome", outcome))
		span.End()
		o.metrics.provider(ctx, name, outcome, time.Since(start))
	}()
	return fn(ctx)
}

func (o *Orchestrator) persist(ctx context.Context, req insight.Request, facts []insight.Fact) {
	if o.sink == nil || o.workspaces == nil || len(facts) == 0 {
		return
	}
	if !o.track() {
		o.log.Warn().Str("brand", req.Brand).Int("facts", len(facts)).Msg("orchestrator closed, facts dropped")
		return
	}
	bg := context.WithoutCancel(ctx)
	go func() {
		defer o.untrack()
		ctx, cancel := context.WithTimeout(bg, o.persistTimeout)
		defer cancel()
		if err := o.writeFacts(ctx, req, facts); err != nil {
			o.metrics.sinkFailed(ctx)
			o.log.Error().Err(err).Str("brand", req.Brand).Msg("persist facts")
		}
	}()
}

func (o *Orchestrator) writeFacts(ctx context.Context, req insight.Request, facts []insight.Fact) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("persistence panic: %v", r)
		}
	}()
	wsID, found, err := o.workspaces.WorkspaceByBrand(ctx, req.Brand)
	if err != nil {
		return fmt.Errorf("workspace lookup: %w", err)
	}
	if !found {
		o.log.Debug().Str("brand", req.Brand).Msg("no workspace for brand; facts not stored")
		return nil
	}
	stamped := Stamp(facts, wsID, o.now())
	if err := o.sink.WriteFacts(ctx, wsID, stamped); err != nil {
		return fmt.Errorf("write facts: %w", err)
	}
	o.metrics.written(ctx, len(stamped))
	return nil
}
