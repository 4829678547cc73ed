package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// defaultChunkSamples is the blocking-read buffer size handed to PortAudio.
// Deliberately smaller than a pipeline frame so the Framer, not the device,
// decides frame boundaries.
const defaultChunkSamples = 512

// PortAudioSource captures live microphone audio through PortAudio's default
// input device. The device is opened at [SampleRate] mono; if the platform
// refuses that format, Start fails rather than silently capturing something
// the models were not trained on.
type PortAudioSource struct {
	chunkSamples int

	mu      sync.Mutex
	stream  *portaudio.Stream
	ch      chan Chunk
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	err     error
	started bool
	closed  bool
}

// Compile-time assertion that PortAudioSource satisfies the Source interface.
var _ Source = (*PortAudioSource)(nil)

// NewPortAudioSource creates a microphone source. chunkSamples controls the
// blocking-read size; zero selects a default suitable for the 80 ms frame
// budget.
func NewPortAudioSource(chunkSamples int) *PortAudioSource {
	if chunkSamples <= 0 {
		chunkSamples = defaultChunkSamples
	}
	return &PortAudioSource{
		chunkSamples: chunkSamples,
		ch:           make(chan Chunk, 16),
	}
}

// Start initialises PortAudio, opens the default input stream, and begins the
// read loop. Acquisition failures (permission denial, device busy) are
// wrapped in [ErrCaptureUnavailable] and leave nothing allocated.
func (s *PortAudioSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("portaudio source already started")
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("%w: initialize portaudio: %v", ErrCaptureUnavailable, err)
	}

	buf := make([]int16, s.chunkSamples)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(SampleRate), len(buf), buf)
	if err != nil {
		_ = portaudio.Terminate()
		return fmt.Errorf("%w: open default input stream: %v", ErrCaptureUnavailable, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return fmt.Errorf("%w: start input stream: %v", ErrCaptureUnavailable, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.stream = stream
	s.cancel = cancel
	s.started = true

	s.wg.Add(1)
	go s.readLoop(runCtx, stream, buf)
	return nil
}

// readLoop performs blocking reads until the context is cancelled or the
// device fails. A device failure mid-session (e.g. the microphone being
// unplugged) terminates the stream and is reported via Err.
func (s *PortAudioSource) readLoop(ctx context.Context, stream *portaudio.Stream, buf []int16) {
	defer s.wg.Done()
	defer close(s.ch)

	for {
		if ctx.Err() != nil {
			return
		}
		if err := stream.Read(); err != nil {
			if errors.Is(err, portaudio.InputOverflowed) {
				// The device overwrote samples we had not read yet. Log and
				// keep going; the Framer tolerates the discontinuity.
				slog.Warn("portaudio input overflowed")
				continue
			}
			if ctx.Err() == nil {
				s.setErr(fmt.Errorf("portaudio read: %w", err))
			}
			return
		}

		pcm := make([]int16, len(buf))
		copy(pcm, buf)
		if offer(s.ch, Chunk{PCM: pcm, SampleRate: SampleRate, Channels: 1}) {
			slog.Warn("capture consumer behind, dropped oldest chunk")
		}
	}
}

// Chunks returns the capture channel.
func (s *PortAudioSource) Chunks() <-chan Chunk { return s.ch }

// Err returns the terminal stream error, if any.
func (s *PortAudioSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *PortAudioSource) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Close stops the stream and releases the device. Idempotent.
func (s *PortAudioSource) Close() error {
	s.mu.Lock()
	if !s.started || s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cancel := s.cancel
	stream := s.stream
	s.mu.Unlock()

	cancel()
	err := stream.Abort()
	s.wg.Wait()
	if cerr := stream.Close(); err == nil {
		err = cerr
	}
	if terr := portaudio.Terminate(); err == nil {
		err = terr
	}
	return err
}
