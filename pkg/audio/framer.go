package audio

import "time"

// Framer accumulates capture chunks into exactly-sized, non-overlapping
// frames. Samples that do not fill a complete frame are carried over and
// combined with the next chunk, so no sample is ever dropped or duplicated
// and frames are emitted strictly in arrival order.
//
// A Framer is owned by a single goroutine (the pipeline's frame loop) and is
// not safe for concurrent use.
type Framer struct {
	frameSize int
	norm      Normalizer
	leftover  []int16
	nextIndex uint64
}

// NewFramer creates a Framer producing frames of frameSize samples at
// [SampleRate]. frameSize must be positive; the caller validates it as part
// of pipeline configuration.
func NewFramer(frameSize int) *Framer {
	return &Framer{
		frameSize: frameSize,
		leftover:  make([]int16, 0, frameSize),
	}
}

// Push converts the chunk to the pipeline format and returns all complete
// frames it yields, in order. May return zero frames when the accumulated
// samples still fall short of a frame boundary.
func (fr *Framer) Push(c Chunk) []Frame {
	pcm := fr.norm.Normalize(c)
	if len(pcm) == 0 {
		return nil
	}

	fr.leftover = append(fr.leftover, pcm...)

	n := len(fr.leftover) / fr.frameSize
	if n == 0 {
		return nil
	}

	frames := make([]Frame, 0, n)
	frameDur := FrameDuration(fr.frameSize)
	for i := range n {
		// Copy out so the frame does not alias the accumulation buffer.
		samples := make([]int16, fr.frameSize)
		copy(samples, fr.leftover[i*fr.frameSize:(i+1)*fr.frameSize])
		frames = append(frames, Frame{
			PCM:       samples,
			Index:     fr.nextIndex,
			Timestamp: time.Duration(fr.nextIndex) * frameDur,
		})
		fr.nextIndex++
	}

	remaining := len(fr.leftover) - n*fr.frameSize
	copy(fr.leftover, fr.leftover[n*fr.frameSize:])
	fr.leftover = fr.leftover[:remaining]

	return frames
}

// Reset discards carried-over samples, clears resampling carry state and
// restarts frame numbering. Called on pipeline (re)start so a new session
// begins from index zero.
func (fr *Framer) Reset() {
	fr.norm.Reset()
	fr.leftover = fr.leftover[:0]
	fr.nextIndex = 0
}
