// Package mock provides scripted test doubles for the model package
// interfaces.
//
// Each double returns values from a script (advancing per call, holding the
// last entry once exhausted) and records its inputs, so pipeline tests can
// drive exact probability and score sequences without a model runtime.
package mock

import (
	"sync"

	"github.com/earshot-ai/earshot/pkg/model"
)

// SpectralExtractor is a mock implementation of model.SpectralExtractor.
// Unless an error is scripted, every call returns model.SpectralPerFrame
// zeroed spectral frames.
type SpectralExtractor struct {
	mu sync.Mutex

	// Errs is consumed one per call; a nil entry means success. When the
	// script is exhausted, calls succeed.
	Errs []error

	// ExtractCallCount records the number of Extract calls.
	ExtractCallCount int
}

var _ model.SpectralExtractor = (*SpectralExtractor)(nil)

// Extract records the call and returns zeroed spectral frames or the next
// scripted error.
func (m *SpectralExtractor) Extract(pcm []int16) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	call := m.ExtractCallCount
	m.ExtractCallCount++
	if call < len(m.Errs) && m.Errs[call] != nil {
		return nil, m.Errs[call]
	}
	out := make([][]float32, model.SpectralPerFrame)
	for i := range out {
		out[i] = make([]float32, model.MelBands)
	}
	return out, nil
}

// Close is a no-op.
func (m *SpectralExtractor) Close() error { return nil }

// EmbeddingEncoder is a mock implementation of model.EmbeddingEncoder.
type EmbeddingEncoder struct {
	mu sync.Mutex

	// Errs is consumed one per call; a nil entry means success.
	Errs []error

	// EncodeCallCount records the number of Encode calls.
	EncodeCallCount int

	// WindowSizes records len(window) for every call, for invariant checks.
	WindowSizes []int
}

var _ model.EmbeddingEncoder = (*EmbeddingEncoder)(nil)

// Encode records the call and returns a zeroed embedding or the next
// scripted error.
func (m *EmbeddingEncoder) Encode(window [][]float32) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	call := m.EncodeCallCount
	m.EncodeCallCount++
	m.WindowSizes = append(m.WindowSizes, len(window))
	if call < len(m.Errs) && m.Errs[call] != nil {
		return nil, m.Errs[call]
	}
	return make([]float32, model.EmbeddingDim), nil
}

// Close is a no-op.
func (m *EmbeddingEncoder) Close() error { return nil }

// Scorer is a mock implementation of model.Scorer returning a scripted score
// sequence.
type Scorer struct {
	mu sync.Mutex

	// Scores is consumed one per call. Once exhausted, the last entry (or 0)
	// is returned for all further calls.
	Scores []float32

	// Errs is consumed one per call; a nil entry means success.
	Errs []error

	// ScoreCallCount records the number of Score calls.
	ScoreCallCount int
}

var _ model.Scorer = (*Scorer)(nil)

// Score records the call and returns the next scripted score.
func (m *Scorer) Score(history [][]float32) (float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	call := m.ScoreCallCount
	m.ScoreCallCount++
	if call < len(m.Errs) && m.Errs[call] != nil {
		return 0, m.Errs[call]
	}
	if len(m.Scores) == 0 {
		return 0, nil
	}
	if call >= len(m.Scores) {
		return m.Scores[len(m.Scores)-1], nil
	}
	return m.Scores[call], nil
}

// Close is a no-op.
func (m *Scorer) Close() error { return nil }

// VAD is a mock implementation of model.VAD returning a scripted probability
// sequence.
type VAD struct {
	mu sync.Mutex

	// Probs is consumed one per call. Once exhausted, the last entry (or 0)
	// is returned for all further calls.
	Probs []float32

	// Errs is consumed one per call; a nil entry means success.
	Errs []error

	// EvaluateCallCount and ResetCallCount record calls.
	EvaluateCallCount int
	ResetCallCount    int
}

var _ model.VAD = (*VAD)(nil)

// Evaluate records the call and returns the next scripted probability.
func (m *VAD) Evaluate(pcm []int16) (float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	call := m.EvaluateCallCount
	m.EvaluateCallCount++
	if call < len(m.Errs) && m.Errs[call] != nil {
		return 0, m.Errs[call]
	}
	if len(m.Probs) == 0 {
		return 0, nil
	}
	if call >= len(m.Probs) {
		return m.Probs[len(m.Probs)-1], nil
	}
	return m.Probs[call], nil
}

// Reset records the call.
func (m *VAD) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ResetCallCount++
}

// Close is a no-op.
func (m *VAD) Close() error { return nil }
