// Package observe provides application-wide observability primitives for
// Roomguard: OpenTelemetry metrics with a Prometheus exporter bridge so
// everything stays scrapable via the standard /metrics endpoint.
//
// A package-level default [Metrics] instance ([DefaultMetrics]) is
// provided for convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Roomguard metrics.
const meterName = "github.com/MrWong99/roomguard"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// STTDuration tracks speech-to-text transcription latency.
	STTDuration metric.Float64Histogram

	// LLMDuration tracks confrontation line generation latency.
	LLMDuration metric.Float64Histogram

	// TTSDuration tracks text-to-speech synthesis and playback latency.
	TTSDuration metric.Float64Histogram

	// VisionDuration tracks face detection and identification latency per
	// frame.
	VisionDuration metric.Float64Histogram

	// --- Counters ---

	// AudioChunks counts audio chunks entering the pipeline. Use with
	// attribute:
	//   attribute.String("outcome", "transcribed"|"silent"|"dropped"|"error")
	AudioChunks metric.Int64Counter

	// Detections counts face detections by result. Use with attribute:
	//   attribute.String("result", "trusted"|"known"|"unknown"|"none")
	Detections metric.Int64Counter

	// Escalations counts escalation level changes. Use with attribute:
	//   attribute.Int("level", ...)
	Escalations metric.Int64Counter

	// Conversations counts finished confrontations by outcome. Use with
	// attribute:
	//   attribute.String("reason", ...)
	Conversations metric.Int64Counter

	// StateTransitions counts guard state changes. Use with attributes:
	//   attribute.String("from", ...), attribute.String("to", ...)
	StateTransitions metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveConversations tracks in-flight confrontations (0 or 1).
	ActiveConversations metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice and vision pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.STTDuration, err = m.Float64Histogram("roomguard.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("roomguard.llm.duration",
		metric.WithDescription("Latency of confrontation line generation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("roomguard.tts.duration",
		metric.WithDescription("Latency of speech synthesis and playback."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.VisionDuration, err = m.Float64Histogram("roomguard.vision.duration",
		metric.WithDescription("Latency of per-frame face detection and identification."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.AudioChunks, err = m.Int64Counter("roomguard.audio.chunks",
		metric.WithDescription("Total audio chunks by pipeline outcome."),
	); err != nil {
		return nil, err
	}
	if met.Detections, err = m.Int64Counter("roomguard.vision.detections",
		metric.WithDescription("Total face detections by result."),
	); err != nil {
		return nil, err
	}
	if met.Escalations, err = m.Int64Counter("roomguard.escalations",
		metric.WithDescription("Total escalation level changes by level."),
	); err != nil {
		return nil, err
	}
	if met.Conversations, err = m.Int64Counter("roomguard.conversations",
		metric.WithDescription("Total finished confrontations by end reason."),
	); err != nil {
		return nil, err
	}
	if met.StateTransitions, err = m.Int64Counter("roomguard.state.transitions",
		metric.WithDescription("Total guard state transitions by from and to state."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("roomguard.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveConversations, err = m.Int64UpDownCounter("roomguard.active_conversations",
		metric.WithDescription("Number of in-flight confrontations."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
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

// RecordAudioChunk records one audio chunk with its pipeline outcome.
func (m *Metrics) RecordAudioChunk(ctx context.Context, outcome string) {
	m.AudioChunks.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}

// RecordDetection records one face detection result.
func (m *Metrics) RecordDetection(ctx context.Context, result string) {
	m.Detections.Add(ctx, 1,
		metric.WithAttributes(attribute.String("result", result)),
	)
}

// RecordEscalation records a successful escalation to level.
func (m *Metrics) RecordEscalation(ctx context.Context, level int) {
	m.Escalations.Add(ctx, 1,
		metric.WithAttributes(attribute.Int("level", level)),
	)
}

// RecordConversationEnd records a finished confrontation.
func (m *Metrics) RecordConversationEnd(ctx context.Context, reason string) {
	m.Conversations.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}

// RecordStateTransition records one guard state change.
func (m *Metrics) RecordStateTransition(ctx context.Context, from, to string) {
	m.StateTransitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("from", from),
			attribute.String("to", to),
		),
	)
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
