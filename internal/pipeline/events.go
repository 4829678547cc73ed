package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/earshot-ai/earshot/internal/observe"
)

// EventKind identifies what a pipeline [Event] reports.
type EventKind int

const (
	// EventVADTick is emitted every processed frame with the raw speech
	// probability and the smoothed flag. Intended for live UI feedback; a
	// consumer may miss ticks under load without affecting detection.
	EventVADTick EventKind = iota

	// EventSpeechStart marks the speech-active flag transitioning true.
	EventSpeechStart

	// EventSpeechEnd marks the speech-active flag transitioning false.
	EventSpeechEnd

	// EventWakeWordDetected reports a confirmed detection. At most one is
	// emitted per cooldown window.
	EventWakeWordDetected

	// EventError reports a fatal asynchronous failure (capture loss,
	// degraded stage). The pipeline stops itself after emitting it.
	EventError
)

// String returns the event kind name used in logs.
func (k EventKind) String() string {
	switch k {
	case EventVADTick:
		return "vad-tick"
	case EventSpeechStart:
		return "speech-start"
	case EventSpeechEnd:
		return "speech-end"
	case EventWakeWordDetected:
		return "wake-word-detected"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a single pipeline notification. Timestamps are derived from frame
// indices, so an identical input stream yields an identical event sequence.
type Event struct {
	// Kind identifies the notification.
	Kind EventKind

	// Timestamp is the stream offset of the frame that produced the event.
	Timestamp time.Duration

	// Probability is the raw VAD output for VADTick events.
	Probability float32

	// SpeechActive is the smoothed flag value for VADTick events.
	SpeechActive bool

	// Identifier is the wake word name for WakeWordDetected events.
	Identifier string

	// Score is the winning classifier confidence for WakeWordDetected events.
	Score float32

	// Err carries the failure for Error events.
	Err error
}

// emitter delivers events on a bounded channel without ever blocking the
// frame loop: the consumer controls backpressure by reading at its own pace.
// VAD ticks are dropped first when the buffer fills; edge, detection, and
// error events evict the oldest buffered event instead, so they are only lost
// if the consumer is more than a full buffer behind.
type emitter struct {
	ch      chan Event
	metrics *observe.Metrics
}

func newEmitter(buffer int, metrics *observe.Metrics) *emitter {
	return &emitter{ch: make(chan Event, buffer), metrics: metrics}
}

func (e *emitter) emit(ev Event) {
	select {
	case e.ch <- ev:
		return
	default:
	}

	if ev.Kind == EventVADTick {
		e.dropped(ev)
		return
	}

	// Make room by evicting the oldest buffered event.
	select {
	case old := <-e.ch:
		e.dropped(old)
	default:
	}
	select {
	case e.ch <- ev:
	default:
		e.dropped(ev)
	}
}

func (e *emitter) dropped(ev Event) {
	if e.metrics != nil {
		e.metrics.EventsDropped.Add(context.Background(), 1)
	}
	if ev.Kind != EventVADTick {
		slog.Warn("event consumer behind, dropped event", "kind", ev.Kind.String())
	}
}
