package pipeline

import "github.com/earshot-ai/earshot/pkg/model"

// spectralWindow is the bounded FIFO of the most recent spectral frames.
// Once warmed up it always holds exactly [model.SpectralWindow] entries;
// pushing past the cap evicts the oldest.
//
// pending tracks the logical buffer length of the classic slide-by-stride
// evaluation: each push extends it by one, each evaluation consumes
// [model.EmbeddingStride]. The encoder fires whenever a full window of
// unconsumed frames is buffered, which can happen zero, one, or two times
// per audio frame since the 5-frame yield and the 8-frame stride do not
// align.
//
// Owned by the single frame-loop goroutine; no locking.
type spectralWindow struct {
	frames  [][]float32
	pending int
}

func newSpectralWindow() *spectralWindow {
	return &spectralWindow{frames: make([][]float32, 0, model.SpectralWindow)}
}

// push appends one spectral frame, evicting the oldest when full.
func (w *spectralWindow) push(f []float32) {
	if len(w.frames) == model.SpectralWindow {
		copy(w.frames, w.frames[1:])
		w.frames[len(w.frames)-1] = f
	} else {
		w.frames = append(w.frames, f)
	}
	w.pending++
}

// ready reports whether a full window of not-yet-consumed frames is buffered.
func (w *spectralWindow) ready() bool {
	return w.pending >= model.SpectralWindow
}

// take consumes one stride's worth of pending frames and returns the current
// window contents, oldest first. The stride is consumed whether or not the
// subsequent evaluation succeeds, so a failed evaluation skips its firing
// slot instead of replaying it. The returned slice aliases the window backing
// rows; the encoder reads it within the same tick and must not retain it.
func (w *spectralWindow) take() [][]float32 {
	w.pending -= model.EmbeddingStride
	return w.frames
}

// len reports the current fill level (only below cap right after a start).
func (w *spectralWindow) len() int { return len(w.frames) }

// reset empties the window. Called on pipeline (re)start.
func (w *spectralWindow) reset() {
	w.frames = w.frames[:0]
	w.pending = 0
}

// embeddingHistory is the bounded FIFO of the most recent embedding vectors.
// It always holds exactly [model.EmbeddingHistory] entries, zero vectors at
// start, and evicts the oldest on every push, so classifiers can run from
// the very first encoder firing.
type embeddingHistory struct {
	vecs [][]float32
}

func newEmbeddingHistory() *embeddingHistory {
	h := &embeddingHistory{vecs: make([][]float32, model.EmbeddingHistory)}
	h.reset()
	return h
}

// push appends vec, evicting the oldest entry. Size never changes.
func (h *embeddingHistory) push(vec []float32) {
	copy(h.vecs, h.vecs[1:])
	h.vecs[len(h.vecs)-1] = vec
}

// view returns the history oldest-first. Classifiers treat it as read-only.
func (h *embeddingHistory) view() [][]float32 { return h.vecs }

// len reports the fixed history depth.
func (h *embeddingHistory) len() int { return len(h.vecs) }

// reset zero-fills the history. Called on pipeline (re)start.
func (h *embeddingHistory) reset() {
	for i := range h.vecs {
		h.vecs[i] = make([]float32, model.EmbeddingDim)
	}
}
