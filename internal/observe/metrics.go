// Package observe provides observability primitives for Earshot: OpenTelemetry
// metric instruments for the pipeline's per-frame stages and a Prometheus
// exporter bridge so metrics can be scraped via the standard /metrics endpoint.
//
// A package-level default [Metrics] instance ([DefaultMetrics]) is provided
// for convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Earshot metrics.
const meterName = "github.com/earshot-ai/earshot"

// Metrics holds all OpenTelemetry metric instruments for the pipeline.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Inference latency histograms per stage (milliseconds) ---

	// VADDuration tracks per-frame voice-activity inference latency.
	VADDuration metric.Float64Histogram

	// SpectralDuration tracks mel-spectrogram extraction latency.
	SpectralDuration metric.Float64Histogram

	// EmbeddingDuration tracks embedding encoder latency.
	EmbeddingDuration metric.Float64Histogram

	// ClassifierDuration tracks wake-word classifier latency. Use with
	// attribute.String("wake_word", ...).
	ClassifierDuration metric.Float64Histogram

	// --- Counters ---

	// FramesProcessed counts frames that completed a full pipeline tick.
	FramesProcessed metric.Int64Counter

	// FramesDropped counts frames discarded by the drop-oldest queue when
	// processing fell behind the capture rate.
	FramesDropped metric.Int64Counter

	// EventsDropped counts events discarded because the consumer was slow.
	EventsDropped metric.Int64Counter

	// InferenceErrors counts recoverable per-frame inference failures. Use
	// with attribute.String("stage", ...).
	InferenceErrors metric.Int64Counter

	// Detections counts confirmed wake-word detections. Use with
	// attribute.String("wake_word", ...).
	Detections metric.Int64Counter

	// --- Gauges ---

	// SpeechActive is 1 while the speech-active flag is set, 0 otherwise.
	SpeechActive metric.Int64UpDownCounter
}

// NewMetrics creates all instruments against the supplied provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)
	m := &Metrics{}
	var err error

	if m.VADDuration, err = meter.Float64Histogram(
		"earshot.vad.duration",
		metric.WithDescription("Per-frame VAD inference latency"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.SpectralDuration, err = meter.Float64Histogram(
		"earshot.spectral.duration",
		metric.WithDescription("Mel-spectrogram extraction latency"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.EmbeddingDuration, err = meter.Float64Histogram(
		"earshot.embedding.duration",
		metric.WithDescription("Embedding encoder latency"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.ClassifierDuration, err = meter.Float64Histogram(
		"earshot.classifier.duration",
		metric.WithDescription("Wake-word classifier latency"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.FramesProcessed, err = meter.Int64Counter(
		"earshot.frames.processed",
		metric.WithDescription("Frames that completed a full pipeline tick"),
	); err != nil {
		return nil, err
	}
	if m.FramesDropped, err = meter.Int64Counter(
		"earshot.frames.dropped",
		metric.WithDescription("Frames discarded under backpressure"),
	); err != nil {
		return nil, err
	}
	if m.EventsDropped, err = meter.Int64Counter(
		"earshot.events.dropped",
		metric.WithDescription("Events discarded due to a slow consumer"),
	); err != nil {
		return nil, err
	}
	if m.InferenceErrors, err = meter.Int64Counter(
		"earshot.inference.errors",
		metric.WithDescription("Recoverable per-frame inference failures"),
	); err != nil {
		return nil, err
	}
	if m.Detections, err = meter.Int64Counter(
		"earshot.detections",
		metric.WithDescription("Confirmed wake-word detections"),
	); err != nil {
		return nil, err
	}
	if m.SpeechActive, err = meter.Int64UpDownCounter(
		"earshot.speech.active",
		metric.WithDescription("1 while the speech-active flag is set"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the process-wide Metrics instance built against the
// global OTel meter provider. Instruments created before [InitProvider] runs
// are no-ops, which is fine for tests.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		m, err := NewMetrics(otel.GetMeterProvider())
		if err != nil {
			// Instrument creation only fails on invalid names, which is a
			// programming error caught by any test that touches metrics.
			panic(err)
		}
		defaultMetrics = m
	})
	return defaultMetrics
}
