package onnx

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/earshot-ai/earshot/pkg/model"
)

// Normalization applied to the raw log-mel output. These constants are part
// of the artifact contract: the embedding and classifier models were trained
// on spectrograms scaled exactly this way.
const (
	melScale  = 1.0 / 10.0
	melOffset = 2.0
)

// Spectral runs the mel-spectrogram extractor artifact. Stateless apart from
// the session weights; safe to share across sessions but called from a single
// pipeline goroutine in practice.
type Spectral struct {
	session *ort.DynamicAdvancedSession
	input   []float32 // reused per call, FrameSamples long
}

var _ model.SpectralExtractor = (*Spectral)(nil)

func newSpectral(path string) (*Spectral, error) {
	inName, outName, err := sessionIO(path)
	if err != nil {
		return nil, err
	}
	session, err := ort.NewDynamicAdvancedSession(path, []string{inName}, []string{outName}, nil)
	if err != nil {
		return nil, fmt.Errorf("open session %q: %w", path, err)
	}
	return &Spectral{
		session: session,
		input:   make([]float32, model.FrameSamples),
	}, nil
}

// Extract converts one audio frame into [model.SpectralPerFrame] normalized
// log-mel frames. The model consumes raw int16 amplitudes as float32.
func (s *Spectral) Extract(pcm []int16) ([][]float32, error) {
	if len(pcm) != model.FrameSamples {
		return nil, fmt.Errorf("spectral input must be %d samples, got %d", model.FrameSamples, len(pcm))
	}
	for i, v := range pcm {
		s.input[i] = float32(v)
	}

	in, err := ort.NewTensor(ort.NewShape(1, model.FrameSamples), s.input)
	if err != nil {
		return nil, fmt.Errorf("spectral input tensor: %w", err)
	}
	defer in.Destroy()

	out, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1, model.SpectralPerFrame, model.MelBands))
	if err != nil {
		return nil, fmt.Errorf("spectral output tensor: %w", err)
	}
	defer out.Destroy()

	if err := s.session.Run([]ort.Value{in}, []ort.Value{out}); err != nil {
		return nil, fmt.Errorf("spectral inference: %w", err)
	}

	data := out.GetData()
	frames := make([][]float32, model.SpectralPerFrame)
	for i := range frames {
		row := make([]float32, model.MelBands)
		for j := range row {
			row[j] = data[i*model.MelBands+j]*melScale + melOffset
		}
		frames[i] = row
	}
	return frames, nil
}

// Close releases the session.
func (s *Spectral) Close() error {
	return s.session.Destroy()
}
