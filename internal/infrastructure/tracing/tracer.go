// Package tracing provides OpenTelemetry-based distributed tracing infrastructure.
// It supports stdout and OTLP exporters and provides domain-specific span helpers
// for subscription lifecycle, event dispatch, and cache reconciliation.
package tracing

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	// TracerName is the name used for the taskwatch tracer.
	TracerName = "github.com/preludium/taskwatch"

	// Version is the semantic version of the tracer.
	Version = "1.0.0"
)

// ExporterType defines the type of trace exporter.
type ExporterType string

const (
	ExporterNone   ExporterType = "none"
	ExporterStdout ExporterType = "stdout"
	ExporterOTLP   ExporterType = "otlp"
)

// Config holds tracing configuration.
type Config struct {
	Enabled      bool         // Whether tracing is enabled
	ExporterType ExporterType // Type of exporter to use
	OTLPEndpoint string       // OTLP collector endpoint (for OTLP exporter)
	ServiceName  string       // Service name for traces
	Environment  string       // Deployment environment (development, production)
	SampleRate   float64      // Sampling rate (0.0 to 1.0)
	Output       io.Writer    // Output for stdout exporter (defaults to os.Stdout)
}

// DefaultConfig returns sensible default tracing configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:      false,
		ExporterType: ExporterNone,
		ServiceName:  "taskwatch",
		Environment:  "development",
		SampleRate:   1.0,
	}
}

// Tracer wraps an OpenTelemetry tracer with domain-specific functionality.
type Tracer struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
	config   Config
}

// global is the package-level default tracer.
var (
	global     *Tracer
	globalOnce sync.Once
)

// Init initializes the global tracer with the provided configuration.
func Init(ctx context.Context, cfg Config) (*Tracer, error) {
	var err error
	globalOnce.Do(func() {
		global, err = New(ctx, cfg)
	})
	return global, err
}

// Default returns the global tracer, or a no-op tracer if not initialized.
func Default() *Tracer {
	if global == nil {
		return &Tracer{
			tracer: otel.Tracer(TracerName),
			config: DefaultConfig(),
		}
	}
	return global
}

// New creates a new Tracer with the provided configuration.
func New(ctx context.Context, cfg Config) (*Tracer, error) {
	if !cfg.Enabled || cfg.ExporterType == ExporterNone {
		return &Tracer{
			tracer: noop.NewTracerProvider().Tracer(TracerName),
			config: cfg,
		}, nil
	}

	exporter, err := createExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}

	// Create resource without merging with Default() to avoid schema URL conflicts.
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(Version),
			attribute.String("deployment.environment", cfg.Environment),
		),
		resource.WithHost(),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var sampler sdktrace.Sampler
	if cfg.SampleRate >= 1.0 {
		sampler = sdktrace.AlwaysSample()
	} else if cfg.SampleRate <= 0.0 {
		sampler = sdktrace.NeverSample()
	} else {
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	otel.SetTracerProvider(provider)

	return &Tracer{
		tracer:   provider.Tracer(TracerName, trace.WithInstrumentationVersion(Version)),
		provider: provider,
		config:   cfg,
	}, nil
}

// createExporter creates the appropriate exporter based on configuration.
func createExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.ExporterType {
	case ExporterStdout:
		opts := []stdouttrace.Option{
			stdouttrace.WithPrettyPrint(),
		}
		if cfg.Output != nil {
			opts = append(opts, stdouttrace.WithWriter(cfg.Output))
		}
		return stdouttrace.New(opts...)

	case ExporterOTLP:
		opts := []otlptracehttp.Option{
			otlptracehttp.WithInsecure(),
		}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(cfg.OTLPEndpoint))
		}
		return otlptracehttp.New(ctx, opts...)

	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", cfg.ExporterType)
	}
}

// Shutdown gracefully shuts down the tracer provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.provider != nil {
		return t.provider.Shutdown(ctx)
	}
	return nil
}

// Start starts a new span with the given name.
func (t *Tracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// SpanFromContext returns the current span from context.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// --- Domain-specific span helpers ---

// SubscriptionSpan represents a stream connect attempt span.
type SubscriptionSpan struct {
	span trace.Span
	ctx  context.Context
}

// StartSubscriptionSpan starts a span for one connect attempt against
// the event stream.
func (t *Tracer) StartSubscriptionSpan(ctx context.Context, endpoint string, retryCount int) (context.Context, *SubscriptionSpan) {
	ctx, span := t.tracer.Start(ctx, "stream.connect",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("stream.endpoint", endpoint),
			attribute.Int("stream.retry_count", retryCount),
		),
	)

	return ctx, &SubscriptionSpan{span: span, ctx: ctx}
}

// SetConnectionID records the server-assigned connection ID.
func (ss *SubscriptionSpan) SetConnectionID(id string) {
	ss.span.SetAttributes(attribute.String("stream.connection_id", id))
}

// SetFrameCount records how many frames the connection delivered.
func (ss *SubscriptionSpan) SetFrameCount(count int) {
	ss.span.SetAttributes(attribute.Int("stream.frame_count", count))
}

// End ends the subscription span with success status.
func (ss *SubscriptionSpan) End() {
	ss.span.SetStatus(codes.Ok, "stream closed cleanly")
	ss.span.End()
}

// EndWithError ends the subscription span with error status.
func (ss *SubscriptionSpan) EndWithError(err error) {
	ss.span.RecordError(err)
	ss.span.SetStatus(codes.Error, err.Error())
	ss.span.End()
}

// ReconcileSpan represents a cache reconciliation span.
type ReconcileSpan struct {
	span trace.Span
	ctx  context.Context
}

// StartReconcileSpan starts a span for applying one domain event to the
// cache.
func (t *Tracer) StartReconcileSpan(ctx context.Context, eventName, cacheKey string) (context.Context, *ReconcileSpan) {
	ctx, span := t.tracer.Start(ctx, "cache.reconcile",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("event.name", eventName),
			attribute.String("cache.key", cacheKey),
		),
	)

	return ctx, &ReconcileSpan{span: span, ctx: ctx}
}

// SetApplied records whether the event changed the cache or no-op'd.
func (rs *ReconcileSpan) SetApplied(applied bool) {
	rs.span.SetAttributes(attribute.Bool("cache.applied", applied))
}

// End ends the reconcile span with success status.
func (rs *ReconcileSpan) End() {
	rs.span.SetStatus(codes.Ok, "reconciliation completed")
	rs.span.End()
}

// EndWithError ends the reconcile span with error status.
func (rs *ReconcileSpan) EndWithError(err error) {
	rs.span.RecordError(err)
	rs.span.SetStatus(codes.Error, err.Error())
	rs.span.End()
}

// APISpan represents a REST pull/mutate request span.
type APISpan struct {
	span trace.Span
	ctx  context.Context
}

// StartAPISpan starts a span for a task API request.
func (t *Tracer) StartAPISpan(ctx context.Context, method, path string) (context.Context, *APISpan) {
	ctx, span := t.tracer.Start(ctx, "api.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.path", path),
		),
	)

	return ctx, &APISpan{span: span, ctx: ctx}
}

// SetStatusCode records the response status code.
func (as *APISpan) SetStatusCode(code int) {
	as.span.SetAttributes(attribute.Int("http.status_code", code))
}

// End ends the API span with success status.
func (as *APISpan) End() {
	as.span.SetStatus(codes.Ok, "request completed")
	as.span.End()
}

// EndWithError ends the API span with error status.
func (as *APISpan) EndWithError(err error) {
	as.span.RecordError(err)
	as.span.SetStatus(codes.Error, err.Error())
	as.span.End()
}

// AddEvent adds an event to the current span.
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// RecordError records an error on the current span.
func RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
}

// SetAttribute sets an attribute on the current span.
func SetAttribute(ctx context.Context, key string, value any) {
	span := trace.SpanFromContext(ctx)
	switch v := value.(type) {
	case string:
		span.SetAttributes(attribute.String(key, v))
	case int:
		span.SetAttributes(attribute.Int(key, v))
	case int64:
		span.SetAttributes(attribute.Int64(key, v))
	case float64:
		span.SetAttributes(attribute.Float64(key, v))
	case bool:
		span.SetAttributes(attribute.Bool(key, v))
	}
}
