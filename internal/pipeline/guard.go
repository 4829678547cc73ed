package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrPipelineDegraded indicates a stage failed on several consecutive frames.
// A single inference failure is recoverable (the frame's contribution is
// skipped and processing continues), but an unbroken streak means the stage
// is persistently broken, and skipping forever would silently mask it.
var ErrPipelineDegraded = errors.New("pipeline degraded")

// maxFailureStreak is the number of consecutive failures on one stage that
// escalates to [ErrPipelineDegraded].
const maxFailureStreak = 3

// stageGuard tracks consecutive failures for one inference stage.
// Owned by the single frame-loop goroutine; no locking.
type stageGuard struct {
	name    string
	streak  int
	lastErr error
}

// fail records a failure and reports whether the streak has escalated.
// The failure itself is logged here so call sites stay terse.
func (g *stageGuard) fail(err error) (degraded bool) {
	g.streak++
	g.lastErr = err
	slog.Warn("inference failed, skipping frame contribution",
		"stage", g.name,
		"streak", g.streak,
		"err", err,
	)
	return g.streak >= maxFailureStreak
}

// ok resets the streak after a successful call.
func (g *stageGuard) ok() {
	g.streak = 0
	g.lastErr = nil
}

// degradedError builds the fatal error surfaced when the streak escalates.
func (g *stageGuard) degradedError() error {
	return fmt.Errorf("%w: stage %q failed %d consecutive frames: %v",
		ErrPipelineDegraded, g.name, g.streak, g.lastErr)
}

// reset clears the streak. Called on pipeline (re)start.
func (g *stageGuard) reset() {
	g.streak = 0
	g.lastErr = nil
}
