package audio

import (
	"fmt"
	"sync"
)

// PreSpeechRing retains the most recent frames so that audio preceding a
// speech-start trigger is not lost. When full, Push overwrites the oldest
// entry. Push is O(1) and never blocks; Snapshot returns an ordered copy
// without disturbing concurrent producers.
//
// All methods are safe for concurrent use.
type PreSpeechRing struct {
	mu     sync.RWMutex
	frames []Frame
	head   int // next write position
	count  int
}

// NewPreSpeechRing creates a ring holding at most capacity frames.
// A non-positive capacity is a configuration error, not a runtime condition.
func NewPreSpeechRing(capacity int) (*PreSpeechRing, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("pre-speech ring capacity must be positive, got %d", capacity)
	}
	return &PreSpeechRing{frames: make([]Frame, capacity)}, nil
}

// Push inserts a frame, overwriting the oldest entry when the ring is full.
func (r *PreSpeechRing) Push(f Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.frames[r.head] = f
	r.head = (r.head + 1) % len(r.frames)
	if r.count < len(r.frames) {
		r.count++
	}
}

// Snapshot returns the current contents oldest-to-newest. The returned slice
// is freshly allocated; the frames themselves are shared (they are immutable).
func (r *PreSpeechRing) Snapshot() []Frame {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Frame, 0, r.count)
	start := (r.head - r.count + len(r.frames)) % len(r.frames)
	for i := range r.count {
		out = append(out, r.frames[(start+i)%len(r.frames)])
	}
	return out
}

// Len returns the number of frames currently held.
func (r *PreSpeechRing) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// Cap returns the fixed capacity.
func (r *PreSpeechRing) Cap() int {
	return len(r.frames)
}

// Reset empties the ring. Called on pipeline (re)start.
func (r *PreSpeechRing) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.frames)
	r.head = 0
	r.count = 0
}
