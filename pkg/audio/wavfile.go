package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVSource replays a WAV file as if it were a live capture device. It is
// used for offline regression runs, where feeding an identical file must
// produce an identical event sequence.
type WAVSource struct {
	path         string
	chunkSamples int
	realtime     bool

	mu      sync.Mutex
	file    *os.File
	ch      chan Chunk
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	err     error
	started bool
	closed  bool
}

var _ Source = (*WAVSource)(nil)

// NewWAVSource creates a source replaying the WAV file at path. When realtime
// is true, chunks are paced at the file's natural rate (useful for demoing
// against the live event stream); when false, the file is delivered as fast
// as the consumer accepts it.
func NewWAVSource(path string, realtime bool) *WAVSource {
	return &WAVSource{
		path:         path,
		chunkSamples: defaultChunkSamples,
		realtime:     realtime,
		ch:           make(chan Chunk, 16),
	}
}

// Start opens and validates the file. An unreadable or malformed file is
// wrapped in [ErrCaptureUnavailable], mirroring a missing microphone.
func (s *WAVSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("wav source already started")
	}

	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("%w: open %q: %v", ErrCaptureUnavailable, s.path, err)
	}
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		_ = f.Close()
		return fmt.Errorf("%w: %q is not a valid WAV file", ErrCaptureUnavailable, s.path)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.file = f
	s.cancel = cancel
	s.started = true

	s.wg.Add(1)
	go s.readLoop(runCtx, dec)
	return nil
}

func (s *WAVSource) readLoop(ctx context.Context, dec *wav.Decoder) {
	defer s.wg.Done()
	defer close(s.ch)

	channels := int(dec.NumChans)
	rate := int(dec.SampleRate)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{NumChannels: channels, SampleRate: rate},
		Data:   make([]int, s.chunkSamples*channels),
	}

	var ticker *time.Ticker
	if s.realtime {
		ticker = time.NewTicker(time.Duration(s.chunkSamples) * time.Second / time.Duration(rate))
		defer ticker.Stop()
	}

	for {
		n, err := dec.PCMBuffer(buf)
		if err != nil {
			s.setErr(fmt.Errorf("wav decode %q: %w", s.path, err))
			return
		}
		if n == 0 {
			return // end of file, clean stop
		}

		pcm := make([]int16, n)
		for i, v := range buf.Data[:n] {
			if v > 32767 {
				v = 32767
			} else if v < -32768 {
				v = -32768
			}
			pcm[i] = int16(v)
		}

		if s.realtime {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		} else if ctx.Err() != nil {
			return
		}

		// Replay delivers in order without loss; block rather than drop.
		select {
		case s.ch <- Chunk{PCM: pcm, SampleRate: rate, Channels: channels}:
		case <-ctx.Done():
			return
		}
	}
}

// Chunks returns the replay channel.
func (s *WAVSource) Chunks() <-chan Chunk { return s.ch }

// Err returns the terminal decode error, if any.
func (s *WAVSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *WAVSource) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Close stops replay and closes the file. Idempotent.
func (s *WAVSource) Close() error {
	s.mu.Lock()
	if !s.started || s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cancel := s.cancel
	file := s.file
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	return file.Close()
}
