// Package audio provides the capture-side primitives of the Earshot pipeline:
// the Frame type, capture sources, chunk-to-frame accumulation, sample format
// conversion, and the pre-speech ring buffer.
//
// All pipeline processing operates on fixed-size mono frames at [SampleRate].
// Capture devices rarely deliver audio in that exact shape, so a [Framer] sits
// between a [Source] and the pipeline: it converts whatever the device
// produces (arbitrary chunk sizes, stereo, other sample rates) into
// exactly-sized frames, in arrival order, without dropping or duplicating
// samples.
package audio

import "time"

// SampleRate is the sample rate, in Hz, of every Frame flowing through the
// pipeline. Capture sources may run at other rates; the Framer resamples.
const SampleRate = 16000

// Frame is a fixed-duration slice of mono 16 kHz PCM, the atomic unit of
// pipeline processing. A Frame is immutable once produced: downstream stages
// read it and copy it if they retain it, but never modify PCM in place.
type Frame struct {
	// PCM holds exactly the configured number of samples (signed 16-bit).
	PCM []int16

	// Index is the zero-based position of this frame in the stream since the
	// pipeline started. Strictly increasing, no gaps.
	Index uint64

	// Timestamp is the frame's offset from stream start, derived from Index
	// and the frame duration. Using a derived timestamp (rather than wall
	// clock) keeps event sequences reproducible for identical input.
	Timestamp time.Duration
}

// Clone returns a deep copy of the frame. Use it when a consumer needs to
// retain frame data beyond the current pipeline tick.
func (f Frame) Clone() Frame {
	pcm := make([]int16, len(f.PCM))
	copy(pcm, f.PCM)
	return Frame{PCM: pcm, Index: f.Index, Timestamp: f.Timestamp}
}

// Duration returns the frame length as a time.Duration at [SampleRate].
func (f Frame) Duration() time.Duration {
	return FrameDuration(len(f.PCM))
}

// FrameDuration returns the duration of n samples at [SampleRate].
func FrameDuration(n int) time.Duration {
	return time.Duration(n) * time.Second / SampleRate
}

// Chunk is a raw block of samples as delivered by a capture device. Chunks
// carry their own format because devices differ; the Framer normalises them.
type Chunk struct {
	// PCM holds interleaved samples when Channels > 1.
	PCM []int16

	// SampleRate of the chunk in Hz.
	SampleRate int

	// Channels is the interleaved channel count (1 = mono).
	Channels int
}
