// Package model defines the interfaces for the four neural inference stages
// of the Earshot pipeline and the constants fixed by the pre-trained model
// artifacts.
//
// Each stage wraps a fixed, externally supplied artifact (training is out of
// scope). The interfaces are intentionally narrow: the pipeline owns all
// order-sensitive state (windows, histories, recurrent tensors live behind
// [VAD]), so implementations stay swappable: the onnx subpackage provides
// the production backend and the mock subpackage provides scripted doubles.
//
// Window and stride sizes below are properties of the artifacts, not tuning
// knobs. Changing any of them independently of retraining the models produces
// silently wrong scores.
package model

// Artifact contract constants. One audio frame of [FrameSamples] samples
// yields exactly [SpectralPerFrame] spectral frames; the embedding encoder
// consumes a [SpectralWindow]-deep window and advances by [EmbeddingStride];
// classifiers consume the [EmbeddingHistory] most recent embeddings.
const (
	// FrameSamples is the audio frame length in samples (80 ms at 16 kHz).
	FrameSamples = 1280

	// MelBands is the number of mel filterbank bands per spectral frame.
	MelBands = 32

	// SpectralPerFrame is the number of spectral frames produced per audio frame.
	SpectralPerFrame = 5

	// SpectralWindow is the spectral window depth consumed per embedding.
	SpectralWindow = 76

	// EmbeddingStride is the number of spectral frames the window advances
	// between embedding evaluations.
	EmbeddingStride = 8

	// EmbeddingDim is the embedding vector length.
	EmbeddingDim = 96

	// EmbeddingHistory is the number of recent embeddings consumed per
	// classifier score.
	EmbeddingHistory = 16
)

// SpectralExtractor converts one audio frame into [SpectralPerFrame]
// normalized log-mel frames of [MelBands] values each. It is a pure function
// of its input: the mel transform and affine normalization are baked into the
// artifact and must match what the downstream models were trained against.
type SpectralExtractor interface {
	// Extract returns exactly [SpectralPerFrame] spectral frames for a
	// [FrameSamples]-sample input.
	Extract(pcm []int16) ([][]float32, error)

	// Close releases backend resources.
	Close() error
}

// EmbeddingEncoder maps a full spectral window to a single embedding vector.
// Pure function of the window slice; no retained state.
type EmbeddingEncoder interface {
	// Encode consumes a [SpectralWindow] x [MelBands] window and returns an
	// [EmbeddingDim]-element vector.
	Encode(window [][]float32) ([]float32, error)

	// Close releases backend resources.
	Close() error
}

// Scorer is the single capability a wake-word classifier needs: score an
// embedding history. Multiple scorers run independently against the same
// history each tick; none may mutate it.
type Scorer interface {
	// Score consumes the [EmbeddingHistory] x [EmbeddingDim] history and
	// returns a confidence in [0, 1].
	Score(history [][]float32) (float32, error)

	// Close releases backend resources.
	Close() error
}

// VAD classifies one audio frame as speech/non-speech. Implementations carry
// recurrent state (hidden/cell tensors) across Evaluate calls; that state is
// exclusively owned, mutated in place every frame, and reset to zero only via
// Reset at pipeline (re)start, never mid-session.
//
// A VAD instance belongs to exactly one pipeline; it is not safe for
// concurrent use.
type VAD interface {
	// Evaluate returns the speech probability in [0, 1] for a
	// [FrameSamples]-sample frame, advancing the recurrent state.
	Evaluate(pcm []int16) (float32, error)

	// Reset zeroes the recurrent state.
	Reset()

	// Close releases backend resources.
	Close() error
}

// Registration binds a named wake word to its classifier and detection
// threshold. Registrations are evaluated independently; their order matters
// only as the tie-break when two candidates score identically.
type Registration struct {
	// Identifier names the wake word in detection events (e.g. "hey_earshot").
	Identifier string

	// Scorer is the trained classifier for this phrase.
	Scorer Scorer

	// Threshold is the candidate-detection cutoff in [0, 1].
	Threshold float32
}
