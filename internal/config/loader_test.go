package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/earshot-ai/earshot/internal/config"
)

const validYAML = `
server:
  listen_addr: ":9090"
  log_level: info
capture:
  backend: portaudio
models:
  runtime_library: /usr/lib/libonnxruntime.so
  spectral: models/melspectrogram.onnx
  embedding: models/embedding_model.onnx
  vad: models/silero_vad.onnx
wake_words:
  - name: hey-earshot
    model: models/hey_earshot.onnx
    threshold: 0.5
detection:
  vad_threshold: 0.5
  hangover_frames: 12
  cooldown: 2s
  pre_speech_buffer: 750ms
recorder:
  dir: /var/lib/earshot/captures
`

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("listen_addr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Capture.Backend != config.CapturePortAudio {
		t.Errorf("backend = %q", cfg.Capture.Backend)
	}
	if got := cfg.Detection.Cooldown.Std(); got != 2*time.Second {
		t.Errorf("cooldown = %v, want 2s", got)
	}
	if got := cfg.Detection.PreSpeechBuffer.Std(); got != 750*time.Millisecond {
		t.Errorf("pre_speech_buffer = %v, want 750ms", got)
	}
	if len(cfg.WakeWords) != 1 || cfg.WakeWords[0].Name != "hey-earshot" {
		t.Errorf("wake_words = %+v", cfg.WakeWords)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()
	yaml := `
models:
  spectral: a.onnx
  embedding: b.onnx
  vad: c.onnx
  typo_field: oops
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestValidate_MissingModelPaths(t *testing.T) {
	t.Parallel()
	yaml := `
capture:
  backend: portaudio
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing model paths, got nil")
	}
	for _, want := range []string{"models.spectral", "models.embedding", "models.vad"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s, got: %v", want, err)
		}
	}
}

func TestValidate_DuplicateWakeWordNames(t *testing.T) {
	t.Parallel()
	yaml := `
models:
  spectral: a.onnx
  embedding: b.onnx
  vad: c.onnx
wake_words:
  - name: hey-earshot
    model: models/a.onnx
  - name: hey-earshot
    model: models/b.onnx
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for duplicate wake word names, got nil")
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("error should mention duplicate, got: %v", err)
	}
}

func TestValidate_WAVBackendRequiresPath(t *testing.T) {
	t.Parallel()
	yaml := `
capture:
  backend: wav
models:
  spectral: a.onnx
  embedding: b.onnx
  vad: c.onnx
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for wav backend without wav_path, got nil")
	}
	if !strings.Contains(err.Error(), "wav_path") {
		t.Errorf("error should mention wav_path, got: %v", err)
	}
}

func TestValidate_ThresholdRanges(t *testing.T) {
	t.Parallel()
	yaml := `
models:
  spectral: a.onnx
  embedding: b.onnx
  vad: c.onnx
wake_words:
  - name: hey-earshot
    model: models/a.onnx
    threshold: 1.5
detection:
  vad_threshold: -0.2
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for out-of-range thresholds, got nil")
	}
	if !strings.Contains(err.Error(), "wake_words[0].threshold") {
		t.Errorf("error should mention the wake word threshold, got: %v", err)
	}
	if !strings.Contains(err.Error(), "detection.vad_threshold") {
		t.Errorf("error should mention the vad threshold, got: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: verbose
models:
  spectral: a.onnx
  embedding: b.onnx
  vad: c.onnx
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestDuration_Invalid(t *testing.T) {
	t.Parallel()
	yaml := `
models:
  spectral: a.onnx
  embedding: b.onnx
  vad: c.onnx
detection:
  cooldown: soon
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("expected error for unparseable duration, got nil")
	}
}

func TestLogLevel_Level(t *testing.T) {
	t.Parallel()
	tests := []struct {
		level config.LogLevel
		want  string
	}{
		{config.LogDebug, "DEBUG"},
		{config.LogInfo, "INFO"},
		{config.LogWarn, "WARN"},
		{config.LogError, "ERROR"},
		{config.LogLevel(""), "INFO"},
	}
	for _, tt := range tests {
		if got := tt.level.Level().String(); got != tt.want {
			t.Errorf("%q.Level() = %s, want %s", tt.level, got, tt.want)
		}
	}
}
