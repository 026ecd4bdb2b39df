// Package observe provides application-wide observability primitives for
// voxline: OpenTelemetry metrics, tracing, trace-aware logging, and HTTP
// middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exported in
// Prometheus format by the exporter bridge installed with [InitProvider].
// [DefaultMetrics] returns a package-level instance bound to the global
// provider; tests should use [NewMetrics] with their own
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all voxline metrics.
const meterName = "github.com/MrWong99/voxline"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	meter metric.Meter

	// --- Chunk feed ---

	// FeedEvents counts events received from the chunk feed. Use with
	// attribute: attribute.String("type", ...)
	FeedEvents metric.Int64Counter

	// FeedDecodeErrors counts audio chunks rejected by the decoder.
	FeedDecodeErrors metric.Int64Counter

	// FeedBreakerTransitions counts feed endpoint circuit breaker changes.
	// Use with attributes: attribute.String("endpoint", ...),
	// attribute.String("state", ...)
	FeedBreakerTransitions metric.Int64Counter

	// --- Playback ---

	// PlaybackSegments counts segments appended to the playback queue.
	PlaybackSegments metric.Int64Counter

	// PlaybackTransitions counts playback state changes. Use with attribute:
	//   attribute.String("state", ...)
	PlaybackTransitions metric.Int64Counter

	// --- VAD ---

	// VADClips counts finalized recording segments. Use with attribute:
	//   attribute.String("outcome", "emitted"|"too_short"|"too_small")
	VADClips metric.Int64Counter

	// VADClipDuration tracks the length of emitted clips.
	VADClipDuration metric.Float64Histogram

	// VADActiveSessions tracks the number of live capture sessions.
	VADActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes: attribute.String("method", ...), attribute.String("route", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// clipBuckets defines histogram bucket boundaries (in seconds) for utterance
// lengths.
var clipBuckets = []float64{
	0.25, 0.5, 1, 2, 3, 5, 10, 20, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{meter: m}

	if met.FeedEvents, err = m.Int64Counter("voxline.feed.events",
		metric.WithDescription("Chunk feed events received by type."),
	); err != nil {
		return nil, err
	}
	if met.FeedDecodeErrors, err = m.Int64Counter("voxline.feed.decode_errors",
		metric.WithDescription("Audio chunks rejected because they could not be decoded."),
	); err != nil {
		return nil, err
	}

	if met.FeedBreakerTransitions, err = m.Int64Counter("voxline.feed.breaker.transitions",
		metric.WithDescription("Feed endpoint circuit breaker state changes."),
	); err != nil {
		return nil, err
	}

	if met.PlaybackSegments, err = m.Int64Counter("voxline.playback.segments",
		metric.WithDescription("Segments appended to the playback queue."),
	); err != nil {
		return nil, err
	}
	if met.PlaybackTransitions, err = m.Int64Counter("voxline.playback.transitions",
		metric.WithDescription("Playback state changes by target state."),
	); err != nil {
		return nil, err
	}

	if met.VADClips, err = m.Int64Counter("voxline.vad.clips",
		metric.WithDescription("Finalized recording segments by outcome."),
	); err != nil {
		return nil, err
	}
	if met.VADClipDuration, err = m.Float64Histogram("voxline.vad.clip.duration",
		metric.WithDescription("Length of emitted clips."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(clipBuckets...),
	); err != nil {
		return nil, err
	}
	if met.VADActiveSessions, err = m.Int64UpDownCounter("voxline.vad.active_sessions",
		metric.WithDescription("Number of live capture sessions."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("voxline.http.request.duration",
		metric.WithDescription("HTTP request latency by method and route."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails (should not happen with the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// ObserveBuffered registers the voxline.playback.buffered gauge, reading the
// number of queued-but-unplayed seconds from fn at collection time. The
// returned registration must be unregistered when the engine is closed.
func (m *Metrics) ObserveBuffered(fn func() float64) (metric.Registration, error) {
	g, err := m.meter.Float64ObservableGauge("voxline.playback.buffered",
		metric.WithDescription("Seconds of audio queued but not yet played."),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	return m.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveFloat64(g, fn())
		return nil
	}, g)
}

// RecordFeedEvent counts one feed event of the given type.
func (m *Metrics) RecordFeedEvent(ctx context.Context, eventType string) {
	m.FeedEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("type", eventType)))
}

// RecordDecodeError counts one rejected audio chunk.
func (m *Metrics) RecordDecodeError(ctx context.Context) {
	m.FeedDecodeErrors.Add(ctx, 1)
}

// RecordBreakerTransition counts a feed endpoint breaker moving into state.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, endpoint, state string) {
	m.FeedBreakerTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("state", state),
	))
}

// RecordSegment counts one appended playback segment.
func (m *Metrics) RecordSegment(ctx context.Context) {
	m.PlaybackSegments.Add(ctx, 1)
}

// RecordTransition counts a playback state change into state.
func (m *Metrics) RecordTransition(ctx context.Context, state string) {
	m.PlaybackTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("state", state)))
}

// RecordClip counts a finalized segment. The duration histogram only sees
// emitted clips.
func (m *Metrics) RecordClip(ctx context.Context, outcome string, seconds float64, emitted bool) {
	m.VADClips.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	if emitted {
		m.VADClipDuration.Record(ctx, seconds)
	}
}
