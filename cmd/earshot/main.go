// Command earshot runs the Earshot voice-activation service: it captures
// live audio, runs voice activity detection and wake-word scoring, and
// reports detections on the log and the metrics endpoint.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/earshot-ai/earshot/internal/config"
	"github.com/earshot-ai/earshot/internal/health"
	"github.com/earshot-ai/earshot/internal/observe"
	"github.com/earshot-ai/earshot/internal/pipeline"
	"github.com/earshot-ai/earshot/pkg/audio"
	"github.com/earshot-ai/earshot/pkg/model"
	"github.com/earshot-ai/earshot/pkg/model/onnx"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "earshot: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "earshot: %v\n", err)
		}
		return 1
	}

	slog.SetDefault(newLogger(cfg.Server.LogLevel))
	slog.Info("earshot starting",
		"version", version,
		"config", *configPath,
		"capture", captureBackend(cfg),
		"wake_words", len(cfg.WakeWords),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		slog.Error("failed to initialise metrics", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(shutdownCtx); err != nil {
			slog.Warn("metrics shutdown error", "err", err)
		}
	}()

	bundle, err := onnx.Load(modelConfig(cfg))
	if err != nil {
		var loadErr *model.LoadError
		if errors.As(err, &loadErr) {
			slog.Error("failed to load model artifact", "artifact", loadErr.Artifact, "err", loadErr.Err)
		} else {
			slog.Error("failed to load models", "err", err)
		}
		return 1
	}
	defer func() {
		if err := bundle.Close(); err != nil {
			slog.Warn("model close error", "err", err)
		}
	}()

	pipe, err := pipeline.New(pipeline.Stages{
		Spectral:  bundle.Spectral,
		Encoder:   bundle.Embedding,
		VAD:       bundle.VAD,
		WakeWords: bundle.WakeWords,
	}, pipeline.Config{
		VADThreshold:    cfg.Detection.VADThreshold,
		HangoverFrames:  cfg.Detection.HangoverFrames,
		Cooldown:        cfg.Detection.Cooldown.Std(),
		PreSpeechBuffer: cfg.Detection.PreSpeechBuffer.Std(),
	})
	if err != nil {
		slog.Error("failed to build pipeline", "err", err)
		return 1
	}

	if err := pipe.Start(ctx, newSource(cfg.Capture)); err != nil {
		if errors.Is(err, audio.ErrCaptureUnavailable) {
			slog.Error("audio capture unavailable; check the input device and permissions", "err", err)
		} else {
			slog.Error("failed to start pipeline", "err", err)
		}
		return 1
	}
	defer func() {
		if err := pipe.Stop(); err != nil {
			slog.Warn("pipeline stop error", "err", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return consumeEvents(gctx, pipe, cfg.Recorder.Dir) })
	if cfg.Server.ListenAddr != "" {
		serveHTTP(g, gctx, cfg.Server.ListenAddr, pipe)
	}

	slog.Info("earshot ready — press Ctrl+C to shut down")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// consumeEvents drains the pipeline event channel, logging speech activity
// and detections. A fatal pipeline error ends the run.
func consumeEvents(ctx context.Context, pipe *pipeline.Pipeline, recorderDir string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-pipe.Events():
			switch ev.Kind {
			case pipeline.EventVADTick:
				// High-rate UI feed; not worth logging.
			case pipeline.EventSpeechStart:
				slog.Info("speech started", "offset", ev.Timestamp)
			case pipeline.EventSpeechEnd:
				slog.Info("speech ended", "offset", ev.Timestamp)
			case pipeline.EventWakeWordDetected:
				slog.Info("wake word detected",
					"wake_word", ev.Identifier,
					"score", ev.Score,
					"offset", ev.Timestamp,
				)
				if recorderDir != "" {
					dumpPreSpeech(pipe, recorderDir, ev.Identifier)
				}
			case pipeline.EventError:
				return fmt.Errorf("pipeline failed: %w", ev.Err)
			}
		}
	}
}

// dumpPreSpeech writes the buffered audio preceding a detection to a WAV
// file, so triggering utterances can be reviewed and used for tuning.
func dumpPreSpeech(pipe *pipeline.Pipeline, dir, identifier string) {
	frames := pipe.PreSpeechSnapshot()
	if len(frames) == 0 {
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Warn("recorder dir unavailable", "dir", dir, "err", err)
		return
	}
	name := fmt.Sprintf("%s-%s.wav", identifier, time.Now().Format("20060102-150405.000"))
	path := filepath.Join(dir, name)
	if err := audio.WriteWAV(path, frames); err != nil {
		slog.Warn("failed to write pre-speech capture", "path", path, "err", err)
		return
	}
	slog.Info("pre-speech capture written", "path", path, "frames", len(frames))
}

// serveHTTP runs the metrics and health endpoint until the group context
// ends.
func serveHTTP(g *errgroup.Group, ctx context.Context, addr string, pipe *pipeline.Pipeline) {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	health.New(
		health.Running("pipeline", pipe.Running),
	).Register(mux)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	g.Go(func() error {
		slog.Info("metrics endpoint listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics endpoint: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// newSource builds the configured capture source. Chunk size matches the
// frame size so live capture wakes the pipeline exactly once per frame.
func newSource(cfg config.CaptureConfig) audio.Source {
	if cfg.Backend == config.CaptureWAV {
		return audio.NewWAVSource(cfg.WAVPath, cfg.Realtime)
	}
	return audio.NewPortAudioSource(model.FrameSamples)
}

// modelConfig maps the file config onto the artifact loader config,
// defaulting wake word thresholds to 0.5.
func modelConfig(cfg *config.Config) onnx.Config {
	mc := onnx.Config{
		LibraryPath:   cfg.Models.RuntimeLibrary,
		SpectralPath:  cfg.Models.Spectral,
		EmbeddingPath: cfg.Models.Embedding,
		VADPath:       cfg.Models.VAD,
	}
	for _, ww := range cfg.WakeWords {
		threshold := ww.Threshold
		if threshold == 0 {
			threshold = 0.5
		}
		mc.WakeWords = append(mc.WakeWords, onnx.WakeWordArtifact{
			Identifier: ww.Name,
			Path:       ww.Model,
			Threshold:  threshold,
		})
	}
	return mc
}

// captureBackend resolves the effective backend name for startup logging.
func captureBackend(cfg *config.Config) config.CaptureBackend {
	if cfg.Capture.Backend == "" {
		return config.CapturePortAudio
	}
	return cfg.Capture.Backend
}

func newLogger(level config.LogLevel) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level.Level()}))
}
