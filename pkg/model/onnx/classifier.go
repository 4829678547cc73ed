package onnx

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/earshot-ai/earshot/pkg/model"
)

// Classifier runs one wake-word scoring artifact against the embedding
// history. Classifiers are independent: several can be loaded against the
// same embedding stream without sharing any mutable state.
type Classifier struct {
	session *ort.DynamicAdvancedSession
	input   []float32 // reused per call, EmbeddingHistory*EmbeddingDim long
}

var _ model.Scorer = (*Classifier)(nil)

func newClassifier(path string) (*Classifier, error) {
	inName, outName, err := sessionIO(path)
	if err != nil {
		return nil, err
	}
	session, err := ort.NewDynamicAdvancedSession(path, []string{inName}, []string{outName}, nil)
	if err != nil {
		return nil, fmt.Errorf("open session %q: %w", path, err)
	}
	return &Classifier{
		session: session,
		input:   make([]float32, model.EmbeddingHistory*model.EmbeddingDim),
	}, nil
}

// Score consumes the [model.EmbeddingHistory] x [model.EmbeddingDim] history
// and returns the sigmoid confidence emitted by the artifact.
func (c *Classifier) Score(history [][]float32) (float32, error) {
	if len(history) != model.EmbeddingHistory {
		return 0, fmt.Errorf("classifier history must be %d embeddings, got %d", model.EmbeddingHistory, len(history))
	}
	for i, vec := range history {
		if len(vec) != model.EmbeddingDim {
			return 0, fmt.Errorf("embedding %d must have %d elements, got %d", i, model.EmbeddingDim, len(vec))
		}
		copy(c.input[i*model.EmbeddingDim:], vec)
	}

	in, err := ort.NewTensor(ort.NewShape(1, model.EmbeddingHistory, model.EmbeddingDim), c.input)
	if err != nil {
		return 0, fmt.Errorf("classifier input tensor: %w", err)
	}
	defer in.Destroy()

	out, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		return 0, fmt.Errorf("classifier output tensor: %w", err)
	}
	defer out.Destroy()

	if err := c.session.Run([]ort.Value{in}, []ort.Value{out}); err != nil {
		return 0, fmt.Errorf("classifier inference: %w", err)
	}
	return out.GetData()[0], nil
}

// Close releases the session.
func (c *Classifier) Close() error {
	return c.session.Destroy()
}
