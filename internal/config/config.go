// Package config provides the configuration schema and loader for the
// Earshot voice-activation service.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a [time.Duration] that decodes from YAML strings like "750ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// LogLevel controls log verbosity for the Earshot service.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level maps l onto the slog level, defaulting to info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// CaptureBackend selects where the audio stream comes from.
type CaptureBackend string

const (
	// CapturePortAudio reads the default input device via PortAudio.
	CapturePortAudio CaptureBackend = "portaudio"

	// CaptureWAV replays a WAV file, for offline and regression runs.
	CaptureWAV CaptureBackend = "wav"
)

// IsValid reports whether b is a recognised capture backend.
func (b CaptureBackend) IsValid() bool {
	return b == CapturePortAudio || b == CaptureWAV
}

// Config is the root configuration structure for Earshot.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Capture   CaptureConfig   `yaml:"capture"`
	Models    ModelsConfig    `yaml:"models"`
	WakeWords []WakeWordEntry `yaml:"wake_words"`
	Detection DetectionConfig `yaml:"detection"`
	Recorder  RecorderConfig  `yaml:"recorder"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the metrics/health endpoint listens on
	// (e.g., ":9090"). Empty disables the endpoint.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// CaptureConfig selects and tunes the audio source.
type CaptureConfig struct {
	// Backend selects the capture implementation. Default: portaudio.
	Backend CaptureBackend `yaml:"backend"`

	// WAVPath is the file replayed by the wav backend.
	WAVPath string `yaml:"wav_path"`

	// Realtime paces wav replay at capture speed instead of as fast as the
	// pipeline drains it.
	Realtime bool `yaml:"realtime"`
}

// ModelsConfig holds the model artifact paths.
type ModelsConfig struct {
	// RuntimeLibrary is the ONNX Runtime shared library path. Empty uses the
	// platform default lookup.
	RuntimeLibrary string `yaml:"runtime_library"`

	// Spectral is the mel-spectrogram model path.
	Spectral string `yaml:"spectral"`

	// Embedding is the embedding encoder model path.
	Embedding string `yaml:"embedding"`

	// VAD is the voice-activity model path.
	VAD string `yaml:"vad"`
}

// WakeWordEntry registers one wake-word classifier.
type WakeWordEntry struct {
	// Name identifies the wake word in events and logs.
	Name string `yaml:"name"`

	// Model is the classifier model path.
	Model string `yaml:"model"`

	// Threshold is the detection confidence cutoff in [0, 1]. Zero selects
	// the default of 0.5.
	Threshold float32 `yaml:"threshold"`
}

// DetectionConfig tunes the pipeline. Zero values select the pipeline
// defaults.
type DetectionConfig struct {
	// VADThreshold is the speech probability cutoff in [0, 1].
	VADThreshold float32 `yaml:"vad_threshold"`

	// HangoverFrames is how many sub-threshold frames speech stays active.
	HangoverFrames int `yaml:"hangover_frames"`

	// Cooldown suppresses repeat detections (e.g., "2s").
	Cooldown Duration `yaml:"cooldown"`

	// PreSpeechBuffer is the retained audio span preceding a speech trigger
	// (e.g., "750ms").
	PreSpeechBuffer Duration `yaml:"pre_speech_buffer"`
}

// RecorderConfig controls pre-speech snapshot dumps.
type RecorderConfig struct {
	// Dir receives one WAV file per detection, holding the buffered audio
	// that preceded it. Empty disables dumping.
	Dir string `yaml:"dir"`
}
