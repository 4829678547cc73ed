// Package onnx implements the model package interfaces on top of ONNX
// Runtime via github.com/yalue/onnxruntime_go.
//
// A [Bundle] loads the four artifact kinds once and can be shared across
// repeated pipeline start/stop cycles: the sessions hold immutable weights,
// and the only mutable inference state (the VAD recurrent tensors) is reset
// per session via [SileroVAD.Reset].
//
// The ONNX Runtime environment is process-global; this package reference
// counts it so multiple bundles (multi-tenant deployments) can coexist.
package onnx

import (
	"errors"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/earshot-ai/earshot/pkg/model"
)

var (
	envMu   sync.Mutex
	envRefs int
)

// acquireEnv initialises the shared ONNX Runtime environment on first use.
// libraryPath may be empty when the runtime shared library is on the default
// search path.
func acquireEnv(libraryPath string) error {
	envMu.Lock()
	defer envMu.Unlock()
	if envRefs == 0 {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}
	envRefs++
	return nil
}

func releaseEnv() error {
	envMu.Lock()
	defer envMu.Unlock()
	if envRefs == 0 {
		return nil
	}
	envRefs--
	if envRefs == 0 {
		return ort.DestroyEnvironment()
	}
	return nil
}

// WakeWordArtifact names one wake-word classifier artifact to load.
type WakeWordArtifact struct {
	// Identifier names the wake word in detection events.
	Identifier string

	// Path is the classifier .onnx file.
	Path string

	// Threshold is the candidate-detection cutoff in [0, 1].
	Threshold float32
}

// Config lists the artifact files for a [Bundle].
type Config struct {
	// LibraryPath optionally points at the onnxruntime shared library.
	LibraryPath string

	// SpectralPath is the mel-spectrogram extractor artifact.
	SpectralPath string

	// EmbeddingPath is the embedding encoder artifact.
	EmbeddingPath string

	// VADPath is the recurrent VAD artifact (silero).
	VADPath string

	// WakeWords lists the classifier artifacts, one per registered phrase.
	WakeWords []WakeWordArtifact
}

// Bundle holds the loaded sessions for every pipeline stage. Weights are
// immutable and shared; see the package comment for the sharing contract.
type Bundle struct {
	// Spectral is the mel-spectrogram extractor stage.
	Spectral *Spectral

	// Embedding is the embedding encoder stage.
	Embedding *Embedding

	// VAD is the recurrent voice activity model.
	VAD *SileroVAD

	// WakeWords are the loaded classifier registrations, in config order.
	WakeWords []model.Registration

	closeOnce sync.Once
	closeErr  error
}

// Load opens every artifact in cfg. Any failure is reported as a
// *model.LoadError naming the offending artifact, and everything already
// opened is released; a half-loaded bundle is never returned.
func Load(cfg Config) (*Bundle, error) {
	if err := acquireEnv(cfg.LibraryPath); err != nil {
		return nil, &model.LoadError{Artifact: "onnxruntime", Err: err}
	}

	b := &Bundle{}
	fail := func(artifact string, err error) (*Bundle, error) {
		_ = b.closeSessions()
		_ = releaseEnv()
		return nil, &model.LoadError{Artifact: artifact, Err: err}
	}

	var err error
	if b.Spectral, err = newSpectral(cfg.SpectralPath); err != nil {
		return fail("spectral", err)
	}
	if b.Embedding, err = newEmbedding(cfg.EmbeddingPath); err != nil {
		return fail("embedding", err)
	}
	if b.VAD, err = newSileroVAD(cfg.VADPath); err != nil {
		return fail("vad", err)
	}
	for _, ww := range cfg.WakeWords {
		clf, werr := newClassifier(ww.Path)
		if werr != nil {
			return fail(ww.Identifier, werr)
		}
		b.WakeWords = append(b.WakeWords, model.Registration{
			Identifier: ww.Identifier,
			Scorer:     clf,
			Threshold:  ww.Threshold,
		})
	}
	return b, nil
}

// Close releases all sessions and the environment reference. Idempotent.
func (b *Bundle) Close() error {
	b.closeOnce.Do(func() {
		b.closeErr = errors.Join(b.closeSessions(), releaseEnv())
	})
	return b.closeErr
}

func (b *Bundle) closeSessions() error {
	var errs []error
	if b.Spectral != nil {
		errs = append(errs, b.Spectral.Close())
	}
	if b.Embedding != nil {
		errs = append(errs, b.Embedding.Close())
	}
	if b.VAD != nil {
		errs = append(errs, b.VAD.Close())
	}
	for _, ww := range b.WakeWords {
		errs = append(errs, ww.Scorer.Close())
	}
	return errors.Join(errs...)
}

// sessionIO resolves the first input and output tensor names of an artifact.
// The melspec/embedding/classifier artifacts are single-input single-output;
// resolving names from the file avoids hardcoding exporter-specific labels.
func sessionIO(path string) (inputName, outputName string, err error) {
	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return "", "", fmt.Errorf("inspect %q: %w", path, err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return "", "", fmt.Errorf("inspect %q: no input or output tensors", path)
	}
	return inputs[0].Name, outputs[0].Name, nil
}
