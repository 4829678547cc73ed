package pipeline

import "time"

// fsmState is the detection state machine's current mode.
type fsmState int

const (
	// stateIdle: no speech activity; candidate scores are never promoted.
	stateIdle fsmState = iota

	// stateArmed: the speech-active flag is true and no cooldown is pending;
	// the next over-threshold candidate becomes a detection.
	stateArmed

	// stateCooling: a detection fired recently; classifiers keep running (the
	// embedding history must stay current) but candidates are suppressed
	// until the cooldown expires. Without this gate a single sustained
	// utterance would fire repeatedly as the sliding window re-crosses the
	// threshold.
	stateCooling
)

// String returns the state name used in logs.
func (s fsmState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateArmed:
		return "armed"
	case stateCooling:
		return "cooling-down"
	default:
		return "unknown"
	}
}

// candidate is an over-threshold classifier score forwarded to the state
// machine. Candidates are built in registration order, which doubles as the
// tie-break: the first registered wins an exact score tie.
type candidate struct {
	identifier string
	score      float32
}

// detector gates classifier candidates behind the speech-active flag and a
// single pipeline-wide cooldown timer. Time is the frame-derived stream
// offset, never the wall clock, so detection sequences are reproducible.
//
// Owned by the single frame-loop goroutine; no locking.
type detector struct {
	cooldown time.Duration

	state        fsmState
	coolingUntil time.Duration
}

func newDetector(cooldown time.Duration) *detector {
	return &detector{cooldown: cooldown}
}

// observe settles the state for the current tick from the speech flag and
// stream time. Cooldown expiry is evaluated before arming so that a single
// tick can move CoolingDown → Idle → ArmedByVoice when speech is sustained
// past the cooldown window.
func (d *detector) observe(speechActive bool, now time.Duration) {
	if d.state == stateCooling && now >= d.coolingUntil {
		d.state = stateIdle
	}
	switch d.state {
	case stateIdle:
		if speechActive {
			d.state = stateArmed
		}
	case stateArmed:
		if !speechActive {
			d.state = stateIdle
		}
	}
}

// promote picks the winning candidate for this tick, or nil when the state
// machine is not armed or no candidate was forwarded. On a win the machine
// enters CoolingDown and starts the cooldown timer.
func (d *detector) promote(cands []candidate, now time.Duration) *candidate {
	if d.state != stateArmed || len(cands) == 0 {
		return nil
	}

	best := 0
	for i := 1; i < len(cands); i++ {
		// Strict > keeps the first-registered candidate on ties.
		if cands[i].score > cands[best].score {
			best = i
		}
	}

	d.state = stateCooling
	d.coolingUntil = now + d.cooldown
	return &cands[best]
}

// reset returns the machine to Idle with the cooldown expired.
func (d *detector) reset() {
	d.state = stateIdle
	d.coolingUntil = 0
}
