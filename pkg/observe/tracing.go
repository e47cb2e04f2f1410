package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/selector/pkg/selector"
)

const defaultTracerName = "github.com/vango-dev/selector"

// TracingConfig configures the OpenTelemetry observer.
type TracingConfig struct {
	// TracerName is the name of the tracer.
	TracerName string

	// Provider supplies the tracer. Default: the global provider.
	Provider trace.TracerProvider

	// TraceComputations also records a span for every synchronous
	// selector run. Disabled by default; only resolutions are traced.
	TraceComputations bool
}

// TracingOption configures the OpenTelemetry observer.
type TracingOption func(*TracingConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) TracingOption {
	return func(c *TracingConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) TracingOption {
	return func(c *TracingConfig) {
		c.Provider = tp
	}
}

// WithComputationSpans enables spans for synchronous selector runs.
func WithComputationSpans(enabled bool) TracingOption {
	return func(c *TracingConfig) {
		c.TraceComputations = enabled
	}
}

// Tracing records asynchronous resolutions as OpenTelemetry spans.
//
// A span starts when a resolution starts and ends when it settles. Stale
// and rejected settlements are marked on the span.
type Tracing struct {
	tracer       trace.Tracer
	computations bool
}

var _ selector.Observer = (*Tracing)(nil)

// NewTracing creates a tracing observer.
func NewTracing(opts ...TracingOption) *Tracing {
	config := TracingConfig{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}
	provider := config.Provider
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &Tracing{
		tracer:       provider.Tracer(config.TracerName),
		computations: config.TraceComputations,
	}
}

// OnCompute implements selector.Observer. The span is back-dated to cover
// the selector run.
func (t *Tracing) OnCompute(id string, origin selector.Origin, d time.Duration) {
	if !t.computations {
		return
	}
	end := time.Now()
	_, span := t.tracer.Start(context.Background(), "selector.compute",
		trace.WithTimestamp(end.Add(-d)),
		trace.WithAttributes(
			attribute.String("selector.instance", id),
			attribute.String("selector.origin", origin.String()),
		),
	)
	span.End(trace.WithTimestamp(end))
}

// OnReuse implements selector.Observer.
func (t *Tracing) OnReuse(string, selector.Origin) {}

// OnResolveStart implements selector.Observer.
func (t *Tracing) OnResolveStart(ctx context.Context, id string, origin selector.Origin) context.Context {
	spanCtx, _ := t.tracer.Start(ctx, "selector.resolve",
		trace.WithTimestamp(time.Now()),
		trace.WithAttributes(
			attribute.String("selector.instance", id),
			attribute.String("selector.origin", origin.String()),
		),
	)
	return spanCtx
}

// OnResolveSettle implements selector.Observer.
func (t *Tracing) OnResolveSettle(ctx context.Context, _ string, _ selector.Origin, _ time.Duration, committed bool, err error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	span.SetAttributes(attribute.Bool("selector.committed", committed))
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case !committed:
		span.SetAttributes(attribute.Bool("selector.stale", true))
		span.SetStatus(codes.Ok, "")
	default:
		span.SetStatus(codes.Ok, "")
	}
}

// OnStale implements selector.Observer.
func (t *Tracing) OnStale(string, selector.Origin) {}

// OnNotify implements selector.Observer.
func (t *Tracing) OnNotify(string, int) {}
