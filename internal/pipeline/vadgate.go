package pipeline

// vadGate smooths per-frame VAD probabilities into a stable speech-active
// flag using a hangover counter: every frame above threshold re-arms the
// counter to the full hangover length, every frame below decrements it, and
// the flag holds true while the counter is positive. This keeps the flag from
// flapping across the brief dips that occur inside natural speech.
//
// Owned by the single frame-loop goroutine; no locking.
type vadGate struct {
	threshold float32
	hangover  int

	counter int
	active  bool
}

func newVADGate(threshold float32, hangover int) *vadGate {
	return &vadGate{threshold: threshold, hangover: hangover}
}

// update folds one probability into the flag and reports edge transitions.
// At most one of started/ended is true per call.
func (g *vadGate) update(prob float32) (started, ended bool) {
	was := g.active

	if prob > g.threshold {
		g.counter = g.hangover
		g.active = true
	} else if g.counter > 0 {
		g.counter--
		g.active = true
	} else {
		g.active = false
	}

	return g.active && !was, was && !g.active
}

// speechActive returns the current flag value.
func (g *vadGate) speechActive() bool { return g.active }

// reset returns the gate to its initial inactive state.
func (g *vadGate) reset() {
	g.counter = 0
	g.active = false
}
