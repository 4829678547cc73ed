package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Capture
	if cfg.Capture.Backend != "" && !cfg.Capture.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("capture.backend %q is invalid; valid values: portaudio, wav", cfg.Capture.Backend))
	}
	if cfg.Capture.Backend == CaptureWAV && cfg.Capture.WAVPath == "" {
		errs = append(errs, errors.New("capture.wav_path is required when capture.backend is wav"))
	}
	if cfg.Capture.Backend != CaptureWAV && cfg.Capture.WAVPath != "" {
		slog.Warn("capture.wav_path is set but capture.backend is not wav; the path will be ignored")
	}

	// Models
	if cfg.Models.Spectral == "" {
		errs = append(errs, errors.New("models.spectral is required"))
	}
	if cfg.Models.Embedding == "" {
		errs = append(errs, errors.New("models.embedding is required"))
	}
	if cfg.Models.VAD == "" {
		errs = append(errs, errors.New("models.vad is required"))
	}

	// Wake words
	if len(cfg.WakeWords) == 0 {
		slog.Warn("no wake words configured; the pipeline will report speech activity only")
	}
	namesSeen := make(map[string]int, len(cfg.WakeWords))
	for i, ww := range cfg.WakeWords {
		prefix := fmt.Sprintf("wake_words[%d]", i)
		if ww.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else {
			if prev, ok := namesSeen[ww.Name]; ok {
				errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of wake_words[%d]", prefix, ww.Name, prev))
			}
			namesSeen[ww.Name] = i
		}
		if ww.Model == "" {
			errs = append(errs, fmt.Errorf("%s.model is required", prefix))
		}
		if ww.Threshold < 0 || ww.Threshold > 1 {
			errs = append(errs, fmt.Errorf("%s.threshold %.2f is out of range [0, 1]", prefix, ww.Threshold))
		}
	}

	// Detection
	if cfg.Detection.VADThreshold < 0 || cfg.Detection.VADThreshold > 1 {
		errs = append(errs, fmt.Errorf("detection.vad_threshold %.2f is out of range [0, 1]", cfg.Detection.VADThreshold))
	}
	if cfg.Detection.HangoverFrames < 0 {
		errs = append(errs, fmt.Errorf("detection.hangover_frames %d must not be negative", cfg.Detection.HangoverFrames))
	}
	if cfg.Detection.Cooldown < 0 {
		errs = append(errs, fmt.Errorf("detection.cooldown %v must not be negative", cfg.Detection.Cooldown.Std()))
	}
	if cfg.Detection.PreSpeechBuffer < 0 {
		errs = append(errs, fmt.Errorf("detection.pre_speech_buffer %v must not be negative", cfg.Detection.PreSpeechBuffer.Std()))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %w", errors.Join(errs...))
	}
	return nil
}
