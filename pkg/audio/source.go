package audio

import (
	"context"
	"errors"
)

// ErrCaptureUnavailable indicates the capture device could not be acquired:
// permission denied, device busy, or no input device present. It is returned
// from [Source.Start] (wrapped with backend detail) and is fatal to pipeline
// start: no downstream state is allocated when it occurs.
var ErrCaptureUnavailable = errors.New("audio capture unavailable")

// Source delivers raw audio chunks from a capture backend. Implementations
// exist for a live microphone ([NewPortAudioSource]), WAV file replay
// ([NewWAVSource]), and scripted test input (the mock subpackage).
//
// The chunk channel is closed when the stream ends, either because the
// context was cancelled, Close was called, or the backend failed mid-session.
// After the channel closes, Err reports the cause (nil for a clean end).
//
// A Source is exclusively owned by one pipeline instance; implementations are
// not required to support concurrent readers of Chunks.
type Source interface {
	// Start acquires the capture handle and begins delivering chunks. It
	// returns an error wrapping [ErrCaptureUnavailable] when the device
	// cannot be acquired; in that case no resources remain allocated and
	// Start may be retried. Start must not be called twice without an
	// intervening Close.
	Start(ctx context.Context) error

	// Chunks returns the channel on which captured audio is delivered.
	// Valid after Start returns nil.
	Chunks() <-chan Chunk

	// Err returns the terminal error after the chunk channel has closed.
	// A mid-session device failure (e.g. disconnect) surfaces here.
	Err() error

	// Close releases the capture handle and stops delivery. Idempotent.
	Close() error
}

// offer sends c on ch without ever blocking the capture callback. When the
// consumer has fallen behind, the oldest buffered chunk is discarded first;
// dropping old audio preserves temporal locality for the VAD hangover logic,
// which a drop-newest policy would break.
func offer(ch chan Chunk, c Chunk) (dropped bool) {
	select {
	case ch <- c:
		return false
	default:
	}
	select {
	case <-ch:
		dropped = true
	default:
	}
	select {
	case ch <- c:
	default:
		dropped = true
	}
	return dropped
}
