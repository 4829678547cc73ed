// Package pipeline implements the Earshot voice-activation pipeline: a
// frame-driven loop that runs voice activity detection and wake-word scoring
// over a live audio stream and emits events on a bounded channel.
//
// # Processing model
//
// Processing is single-threaded and cooperative. One goroutine converts
// capture chunks into frames and enqueues them on a small drop-oldest queue;
// a second goroutine consumes the queue and runs the full per-frame tick:
// pre-speech ring, VAD, spectral extraction, embedding encoding, and
// wake-word classification. The spectral window, embedding history, and VAD
// recurrent state are order-sensitive accumulators, and reordering corrupts
// scores without crashing, so exactly one goroutine ever touches them, and a
// frame's tick is the atomic unit of work: Stop never leaves a buffer
// half-updated.
//
// # Error policy
//
// A single inference failure drops that frame's contribution to the affected
// stage and continues. Three consecutive failures on the same stage escalate
// to [ErrPipelineDegraded], surfaced as an [EventError] followed by an
// implicit stop. Capture loss mid-session behaves the same way.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/earshot-ai/earshot/internal/observe"
	"github.com/earshot-ai/earshot/pkg/audio"
	"github.com/earshot-ai/earshot/pkg/model"
)

// Stages bundles the model artifacts the pipeline runs. The artifacts are
// immutable and may be shared across start/stop cycles; the VAD carries the
// only mutable model state and is reset at every start.
type Stages struct {
	// Spectral is the mel-spectrogram extractor.
	Spectral model.SpectralExtractor

	// Encoder is the embedding encoder.
	Encoder model.EmbeddingEncoder

	// VAD is the recurrent voice-activity model.
	VAD model.VAD

	// WakeWords are the registered classifiers, evaluated in order.
	WakeWords []model.Registration
}

// Config holds the pipeline tuning knobs. Zero values select the defaults
// noted per field; out-of-range values are rejected by [New] before the
// pipeline can be started.
type Config struct {
	// VADThreshold is the speech probability cutoff. Default: 0.5.
	VADThreshold float32

	// HangoverFrames is the number of sub-threshold frames the speech-active
	// flag survives after the last over-threshold frame. Default: 12.
	HangoverFrames int

	// Cooldown suppresses further detections after one fires. Default: 2s.
	Cooldown time.Duration

	// PreSpeechBuffer is how much audio preceding a speech trigger the
	// pre-speech ring retains. Default: 750ms.
	PreSpeechBuffer time.Duration

	// EventBuffer is the event channel capacity. Default: 256.
	EventBuffer int

	// FrameQueue is the depth of the drop-oldest queue between capture and
	// processing. Default: 8.
	FrameQueue int
}

func (c *Config) applyDefaults() {
	if c.VADThreshold == 0 {
		c.VADThreshold = 0.5
	}
	if c.HangoverFrames == 0 {
		c.HangoverFrames = 12
	}
	if c.Cooldown == 0 {
		c.Cooldown = 2 * time.Second
	}
	if c.PreSpeechBuffer == 0 {
		c.PreSpeechBuffer = 750 * time.Millisecond
	}
	if c.EventBuffer == 0 {
		c.EventBuffer = 256
	}
	if c.FrameQueue == 0 {
		c.FrameQueue = 8
	}
}

// validate reports all configuration problems at once.
func (c Config) validate(stages Stages) error {
	var errs []error
	if c.VADThreshold < 0 || c.VADThreshold > 1 {
		errs = append(errs, fmt.Errorf("vad threshold %.2f is out of range [0, 1]", c.VADThreshold))
	}
	if c.HangoverFrames < 0 {
		errs = append(errs, fmt.Errorf("hangover frames %d must not be negative", c.HangoverFrames))
	}
	if c.Cooldown < 0 {
		errs = append(errs, fmt.Errorf("cooldown %v must not be negative", c.Cooldown))
	}
	if c.PreSpeechBuffer < frameDuration {
		errs = append(errs, fmt.Errorf("pre-speech buffer %v must cover at least one frame (%v)", c.PreSpeechBuffer, frameDuration))
	}
	if stages.Spectral == nil || stages.Encoder == nil || stages.VAD == nil {
		errs = append(errs, errors.New("spectral, encoder, and vad stages are all required"))
	}
	seen := make(map[string]struct{}, len(stages.WakeWords))
	for i, ww := range stages.WakeWords {
		prefix := fmt.Sprintf("wake word [%d]", i)
		if ww.Identifier == "" {
			errs = append(errs, fmt.Errorf("%s: identifier is required", prefix))
		} else if _, dup := seen[ww.Identifier]; dup {
			errs = append(errs, fmt.Errorf("%s: identifier %q is a duplicate", prefix, ww.Identifier))
		} else {
			seen[ww.Identifier] = struct{}{}
		}
		if ww.Scorer == nil {
			errs = append(errs, fmt.Errorf("%s: scorer is required", prefix))
		}
		if ww.Threshold < 0 || ww.Threshold > 1 {
			errs = append(errs, fmt.Errorf("%s: threshold %.2f is out of range [0, 1]", prefix, ww.Threshold))
		}
	}
	return errors.Join(errs...)
}

// frameDuration is fixed by the artifact contract (80 ms at 16 kHz).
var frameDuration = audio.FrameDuration(model.FrameSamples)

// Pipeline runs the voice-activation loop over one audio source at a time.
// Construct with [New], then [Start] with a capture source; [Stop] releases
// the capture and the pipeline can be started again with a fresh source. All
// per-session state is reset on every start.
//
// Start, Stop, Events, PreSpeechSnapshot, and Running are safe for concurrent
// use.
type Pipeline struct {
	cfg     Config
	stages  Stages
	metrics *observe.Metrics

	// Per-session state, owned by the frame loop while running.
	framer  *audio.Framer
	ring    *audio.PreSpeechRing
	window  *spectralWindow
	history *embeddingHistory
	gate    *vadGate
	det     *detector

	vadGuard        stageGuard
	spectralGuard   stageGuard
	embeddingGuard  stageGuard
	classifierGuard []stageGuard

	em *emitter

	mu      sync.Mutex
	running bool
	source  audio.Source
	cancel  context.CancelFunc
	wg      *sync.WaitGroup // per session; replaced on every Start
	frames  chan audio.Frame
	session uuid.UUID
}

// Option configures a Pipeline during construction.
type Option func(*Pipeline)

// WithMetrics wires an observability instrument set. Defaults to the
// process-wide instruments; pass a dedicated set in tests.
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// New validates cfg and builds a stopped pipeline. Configuration errors are
// reported here, before any capture or model resource is touched.
func New(stages Stages, cfg Config, opts ...Option) (*Pipeline, error) {
	cfg.applyDefaults()
	if err := cfg.validate(stages); err != nil {
		return nil, fmt.Errorf("pipeline config: %w", err)
	}

	// Ring capacity rounds up so the snapshot always covers at least the
	// configured pre-speech span once warmed up.
	capacity := int((cfg.PreSpeechBuffer + frameDuration - 1) / frameDuration)
	ring, err := audio.NewPreSpeechRing(capacity)
	if err != nil {
		return nil, fmt.Errorf("pipeline config: %w", err)
	}

	p := &Pipeline{
		cfg:     cfg,
		stages:  stages,
		metrics: observe.DefaultMetrics(),
		framer:  audio.NewFramer(model.FrameSamples),
		ring:    ring,
		window:  newSpectralWindow(),
		history: newEmbeddingHistory(),
		gate:    newVADGate(cfg.VADThreshold, cfg.HangoverFrames),
		det:     newDetector(cfg.Cooldown),
	}
	p.vadGuard = stageGuard{name: "vad"}
	p.spectralGuard = stageGuard{name: "spectral"}
	p.embeddingGuard = stageGuard{name: "embedding"}
	for _, ww := range stages.WakeWords {
		p.classifierGuard = append(p.classifierGuard, stageGuard{name: "classifier/" + ww.Identifier})
	}
	for _, o := range opts {
		o(p)
	}
	p.em = newEmitter(cfg.EventBuffer, p.metrics)
	return p, nil
}

// Events returns the pipeline's event channel. The channel persists across
// start/stop cycles and is never closed; see [EventKind] for the delivery
// guarantees per kind.
func (p *Pipeline) Events() <-chan Event { return p.em.ch }

// PreSpeechSnapshot returns the buffered audio preceding the current moment,
// oldest first. Callable at any time without blocking the frame loop; a
// downstream recorder prepends it to audio captured after a speech trigger.
func (p *Pipeline) PreSpeechSnapshot() []audio.Frame {
	return p.ring.Snapshot()
}

// Running reports whether a session is active.
func (p *Pipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Start acquires the capture source and begins processing. If the source
// cannot be acquired the error is returned synchronously (wrapping
// [audio.ErrCaptureUnavailable] for device problems) and no session state is
// allocated; the caller may retry with a fresh source. All buffers, the VAD
// recurrent state, and the detection state machine are reset before the first
// frame is processed.
func (p *Pipeline) Start(ctx context.Context, src audio.Source) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return errors.New("pipeline already started")
	}
	if p.wg != nil {
		// A previous session may still be draining: a self-initiated stop
		// after a fatal error releases the lock before its loops exit. The
		// stopping goroutine cancels that session's context without needing
		// the lock, so this wait is short and cannot deadlock.
		p.wg.Wait()
	}

	if err := src.Start(ctx); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}

	p.resetSessionState()

	runCtx, cancel := context.WithCancel(ctx)
	p.source = src
	p.cancel = cancel
	p.frames = make(chan audio.Frame, p.cfg.FrameQueue)
	p.session = uuid.New()
	p.running = true

	wg := &sync.WaitGroup{}
	p.wg = wg
	wg.Add(2)
	go func() {
		defer wg.Done()
		p.feedLoop(runCtx, src, p.frames)
	}()
	go func() {
		defer wg.Done()
		p.frameLoop(p.frames)
	}()

	slog.Info("pipeline started",
		"session", p.session,
		"wake_words", len(p.stages.WakeWords),
		"pre_speech_frames", p.ring.Cap(),
	)
	return nil
}

// resetSessionState zeroes every order-sensitive accumulator. Two
// consecutive start/stop cycles with no audio in between are
// indistinguishable. Must be called with p.mu held and no frame loop running.
func (p *Pipeline) resetSessionState() {
	p.framer.Reset()
	p.ring.Reset()
	p.window.reset()
	p.history.reset()
	p.gate.reset()
	p.det.reset()
	p.stages.VAD.Reset()
	p.vadGuard.reset()
	p.spectralGuard.reset()
	p.embeddingGuard.reset()
	for i := range p.classifierGuard {
		p.classifierGuard[i].reset()
	}
}

// Stop releases the capture source and waits for the in-flight frame to
// finish its tick. Idempotent; safe to call from any goroutine.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	cancel, src, wg, session := p.cancel, p.source, p.wg, p.session
	p.mu.Unlock()

	cancel()
	err := src.Close()
	wg.Wait()

	slog.Info("pipeline stopped", "session", session)
	return err
}

// feedLoop converts capture chunks into frames and enqueues them for the
// frame loop, dropping the oldest queued frame when processing falls behind.
func (p *Pipeline) feedLoop(ctx context.Context, src audio.Source, frames chan audio.Frame) {
	defer close(frames)

	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-src.Chunks():
			if !ok {
				if err := src.Err(); err != nil && ctx.Err() == nil {
					// Device loss mid-session: surface the failure, then
					// stop implicitly so the capture handle is released.
					p.em.emit(Event{Kind: EventError, Err: fmt.Errorf("capture lost: %w", err)})
					go func() { _ = p.Stop() }()
				}
				return
			}
			for _, f := range p.framer.Push(c) {
				p.enqueue(frames, f)
			}
		}
	}
}

// enqueue adds f to the queue without blocking, evicting the oldest queued
// frame first when full. Dropping old audio over new keeps the VAD hangover
// tracking close to real time.
func (p *Pipeline) enqueue(frames chan audio.Frame, f audio.Frame) {
	select {
	case frames <- f:
		return
	default:
	}
	select {
	case <-frames:
		p.metrics.FramesDropped.Add(context.Background(), 1)
		slog.Warn("frame budget exceeded, dropped oldest frame", "index", f.Index)
	default:
	}
	select {
	case frames <- f:
	default:
		p.metrics.FramesDropped.Add(context.Background(), 1)
	}
}

// frameLoop is the single consumer of the frame queue. It exits when the
// queue closes or a stage degrades.
func (p *Pipeline) frameLoop(frames chan audio.Frame) {
	for f := range frames {
		if err := p.tick(f); err != nil {
			p.em.emit(Event{Kind: EventError, Timestamp: f.Timestamp, Err: err})
			go func() { _ = p.Stop() }()
			return
		}
	}
}

// tick runs one frame through every stage. It returns a non-nil error only
// when a stage has degraded; per-frame inference failures are absorbed here.
func (p *Pipeline) tick(f audio.Frame) error {
	ctx := context.Background()

	p.ring.Push(f)

	// VAD path: operates on raw frames, independent of the spectral path.
	vadStart := time.Now()
	prob, err := p.stages.VAD.Evaluate(f.PCM)
	p.metrics.VADDuration.Record(ctx, msSince(vadStart))
	if err != nil {
		p.metrics.InferenceErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", "vad")))
		if p.vadGuard.fail(err) {
			return p.vadGuard.degradedError()
		}
	} else {
		p.vadGuard.ok()
		started, ended := p.gate.update(prob)
		if started {
			p.metrics.SpeechActive.Add(ctx, 1)
			p.em.emit(Event{Kind: EventSpeechStart, Timestamp: f.Timestamp})
			slog.Debug("speech started", "frame", f.Index)
		}
		if ended {
			p.metrics.SpeechActive.Add(ctx, -1)
			p.em.emit(Event{Kind: EventSpeechEnd, Timestamp: f.Timestamp})
			slog.Debug("speech ended", "frame", f.Index)
		}
		p.em.emit(Event{
			Kind:         EventVADTick,
			Timestamp:    f.Timestamp,
			Probability:  prob,
			SpeechActive: p.gate.speechActive(),
		})
	}

	// Settle the detection state machine from this frame's speech flag.
	p.det.observe(p.gate.speechActive(), f.Timestamp)

	// Spectral path.
	specStart := time.Now()
	specs, err := p.stages.Spectral.Extract(f.PCM)
	p.metrics.SpectralDuration.Record(ctx, msSince(specStart))
	if err != nil {
		p.metrics.InferenceErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", "spectral")))
		if p.spectralGuard.fail(err) {
			return p.spectralGuard.degradedError()
		}
	} else {
		p.spectralGuard.ok()
		for _, s := range specs {
			p.window.push(s)
		}
	}

	// Embedding + classification: fires zero or more times depending on how
	// the stride lines up with this frame's new spectral frames.
	for p.window.ready() {
		if err := p.encodeAndScore(ctx, f); err != nil {
			return err
		}
	}

	p.metrics.FramesProcessed.Add(ctx, 1)
	return nil
}

// encodeAndScore runs one embedding evaluation and the classifier pass over
// the refreshed history, promoting at most one candidate to a detection.
func (p *Pipeline) encodeAndScore(ctx context.Context, f audio.Frame) error {
	encStart := time.Now()
	vec, err := p.stages.Encoder.Encode(p.window.take())
	p.metrics.EmbeddingDuration.Record(ctx, msSince(encStart))
	if err != nil {
		p.metrics.InferenceErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", "embedding")))
		if p.embeddingGuard.fail(err) {
			return p.embeddingGuard.degradedError()
		}
		return nil
	}
	p.embeddingGuard.ok()
	p.history.push(vec)

	// Classifiers always run, even while cooling down: the embedding history
	// must stay current for the next armed window.
	var cands []candidate
	for i := range p.stages.WakeWords {
		reg := &p.stages.WakeWords[i]

		clfStart := time.Now()
		score, err := reg.Scorer.Score(p.history.view())
		p.metrics.ClassifierDuration.Record(ctx, msSince(clfStart),
			metric.WithAttributes(attribute.String("wake_word", reg.Identifier)))
		if err != nil {
			p.metrics.InferenceErrors.Add(ctx, 1,
				metric.WithAttributes(attribute.String("stage", "classifier/"+reg.Identifier)))
			if p.classifierGuard[i].fail(err) {
				return p.classifierGuard[i].degradedError()
			}
			continue
		}
		p.classifierGuard[i].ok()
		if score > reg.Threshold {
			cands = append(cands, candidate{identifier: reg.Identifier, score: score})
		}
	}

	if win := p.det.promote(cands, f.Timestamp); win != nil {
		p.metrics.Detections.Add(ctx, 1,
			metric.WithAttributes(attribute.String("wake_word", win.identifier)))
		p.em.emit(Event{
			Kind:       EventWakeWordDetected,
			Timestamp:  f.Timestamp,
			Identifier: win.identifier,
			Score:      win.score,
		})
		slog.Info("wake word detected",
			"wake_word", win.identifier,
			"score", win.score,
			"frame", f.Index,
		)
	}
	return nil
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t)) / float64(time.Millisecond)
}
