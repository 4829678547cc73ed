package onnx

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/earshot-ai/earshot/pkg/audio"
	"github.com/earshot-ai/earshot/pkg/model"
)

// Silero artifact tensor names and recurrent state shape. Fixed by the
// artifact; the hidden and cell tensors are each [2, 1, 64].
const (
	sileroStateLen = 2 * 1 * 64
)

var (
	sileroInputs  = []string{"input", "sr", "h", "c"}
	sileroOutputs = []string{"output", "hn", "cn"}
)

// SileroVAD runs the recurrent silero voice-activity artifact. The hidden and
// cell state are exclusively owned by this instance, carried from one
// Evaluate call to the next, and reset to zero only via Reset. One instance
// serves exactly one pipeline; it is not safe for concurrent use.
type SileroVAD struct {
	session *ort.DynamicAdvancedSession
	input   []float32
	hidden  []float32
	cell    []float32
}

var _ model.VAD = (*SileroVAD)(nil)

func newSileroVAD(path string) (*SileroVAD, error) {
	session, err := ort.NewDynamicAdvancedSession(path, sileroInputs, sileroOutputs, nil)
	if err != nil {
		return nil, fmt.Errorf("open session %q: %w", path, err)
	}
	return &SileroVAD{
		session: session,
		input:   make([]float32, model.FrameSamples),
		hidden:  make([]float32, sileroStateLen),
		cell:    make([]float32, sileroStateLen),
	}, nil
}

// Evaluate returns the speech probability for one audio frame, advancing the
// recurrent state in place. Input samples are scaled to [-1, 1] as the
// artifact expects.
func (v *SileroVAD) Evaluate(pcm []int16) (float32, error) {
	if len(pcm) != model.FrameSamples {
		return 0, fmt.Errorf("vad input must be %d samples, got %d", model.FrameSamples, len(pcm))
	}
	for i, s := range pcm {
		v.input[i] = float32(s) / 32768.0
	}

	in, err := ort.NewTensor(ort.NewShape(1, model.FrameSamples), v.input)
	if err != nil {
		return 0, fmt.Errorf("vad input tensor: %w", err)
	}
	defer in.Destroy()

	sr, err := ort.NewTensor(ort.NewShape(1), []int64{audio.SampleRate})
	if err != nil {
		return 0, fmt.Errorf("vad sample-rate tensor: %w", err)
	}
	defer sr.Destroy()

	h, err := ort.NewTensor(ort.NewShape(2, 1, 64), v.hidden)
	if err != nil {
		return 0, fmt.Errorf("vad hidden-state tensor: %w", err)
	}
	defer h.Destroy()

	c, err := ort.NewTensor(ort.NewShape(2, 1, 64), v.cell)
	if err != nil {
		return 0, fmt.Errorf("vad cell-state tensor: %w", err)
	}
	defer c.Destroy()

	out, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		return 0, fmt.Errorf("vad output tensor: %w", err)
	}
	defer out.Destroy()

	hn, err := ort.NewEmptyTensor[float32](ort.NewShape(2, 1, 64))
	if err != nil {
		return 0, fmt.Errorf("vad hidden-out tensor: %w", err)
	}
	defer hn.Destroy()

	cn, err := ort.NewEmptyTensor[float32](ort.NewShape(2, 1, 64))
	if err != nil {
		return 0, fmt.Errorf("vad cell-out tensor: %w", err)
	}
	defer cn.Destroy()

	if err := v.session.Run(
		[]ort.Value{in, sr, h, c},
		[]ort.Value{out, hn, cn},
	); err != nil {
		// State is only advanced on success, so a failed call does not leave
		// the recurrent tensors half-updated.
		return 0, fmt.Errorf("vad inference: %w", err)
	}

	copy(v.hidden, hn.GetData())
	copy(v.cell, cn.GetData())
	return out.GetData()[0], nil
}

// Reset zeroes the recurrent state. Called at pipeline (re)start, never
// mid-session.
func (v *SileroVAD) Reset() {
	clear(v.hidden)
	clear(v.cell)
}

// Close releases the session.
func (v *SileroVAD) Close() error {
	return v.session.Destroy()
}
