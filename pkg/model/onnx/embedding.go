package onnx

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/earshot-ai/earshot/pkg/model"
)

// Embedding runs the encoder artifact: a full spectral window in, one
// embedding vector out. Pure function of the window.
type Embedding struct {
	session *ort.DynamicAdvancedSession
	input   []float32 // reused per call, SpectralWindow*MelBands long
}

var _ model.EmbeddingEncoder = (*Embedding)(nil)

func newEmbedding(path string) (*Embedding, error) {
	inName, outName, err := sessionIO(path)
	if err != nil {
		return nil, err
	}
	session, err := ort.NewDynamicAdvancedSession(path, []string{inName}, []string{outName}, nil)
	if err != nil {
		return nil, fmt.Errorf("open session %q: %w", path, err)
	}
	return &Embedding{
		session: session,
		input:   make([]float32, model.SpectralWindow*model.MelBands),
	}, nil
}

// Encode consumes a [model.SpectralWindow] x [model.MelBands] window and
// returns the [model.EmbeddingDim]-element embedding.
func (e *Embedding) Encode(window [][]float32) ([]float32, error) {
	if len(window) != model.SpectralWindow {
		return nil, fmt.Errorf("embedding window must be %d frames, got %d", model.SpectralWindow, len(window))
	}
	for i, row := range window {
		if len(row) != model.MelBands {
			return nil, fmt.Errorf("spectral frame %d must have %d bands, got %d", i, model.MelBands, len(row))
		}
		copy(e.input[i*model.MelBands:], row)
	}

	in, err := ort.NewTensor(ort.NewShape(1, model.SpectralWindow, model.MelBands, 1), e.input)
	if err != nil {
		return nil, fmt.Errorf("embedding input tensor: %w", err)
	}
	defer in.Destroy()

	out, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1, 1, model.EmbeddingDim))
	if err != nil {
		return nil, fmt.Errorf("embedding output tensor: %w", err)
	}
	defer out.Destroy()

	if err := e.session.Run([]ort.Value{in}, []ort.Value{out}); err != nil {
		return nil, fmt.Errorf("embedding inference: %w", err)
	}

	vec := make([]float32, model.EmbeddingDim)
	copy(vec, out.GetData())
	return vec, nil
}

// Close releases the session.
func (e *Embedding) Close() error {
	return e.session.Destroy()
}
