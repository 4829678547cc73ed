package pipeline

import "testing"

func TestVADGateHangover(t *testing.T) {
	t.Parallel()

	const hangover = 12
	g := newVADGate(0.5, hangover)

	// Silence leaves the gate inactive.
	for i := 0; i < 5; i++ {
		started, ended := g.update(0.1)
		if started || ended || g.speechActive() {
			t.Fatalf("frame %d: gate active during silence", i)
		}
	}

	// A single over-threshold frame holds the flag for 1+hangover frames.
	started, ended := g.update(0.9)
	if !started || ended {
		t.Fatalf("spike frame: started=%v ended=%v, want started only", started, ended)
	}
	for i := 0; i < hangover; i++ {
		started, ended = g.update(0.1)
		if started || ended {
			t.Fatalf("hangover frame %d: started=%v ended=%v, want neither", i, started, ended)
		}
		if !g.speechActive() {
			t.Fatalf("hangover frame %d: flag dropped early", i)
		}
	}
	started, ended = g.update(0.1)
	if started || !ended {
		t.Fatalf("post-hangover frame: started=%v ended=%v, want ended only", started, ended)
	}
	if g.speechActive() {
		t.Fatal("flag still set after hangover expired")
	}
}

func TestVADGateReArmsMidHangover(t *testing.T) {
	t.Parallel()

	g := newVADGate(0.5, 3)
	g.update(0.9)
	g.update(0.1)
	g.update(0.1)

	// A new over-threshold frame restores the full hangover.
	if started, _ := g.update(0.9); started {
		t.Fatal("re-arm reported a fresh start while already active")
	}
	for i := 0; i < 3; i++ {
		if _, ended := g.update(0.1); ended {
			t.Fatalf("frame %d: ended during restored hangover", i)
		}
	}
	if _, ended := g.update(0.1); !ended {
		t.Fatal("gate did not end after restored hangover ran out")
	}
}

func TestVADGateThresholdIsExclusive(t *testing.T) {
	t.Parallel()

	g := newVADGate(0.5, 12)
	if started, _ := g.update(0.5); started || g.speechActive() {
		t.Fatal("probability equal to the threshold must not count as speech")
	}
}

func TestVADGateZeroHangover(t *testing.T) {
	t.Parallel()

	g := newVADGate(0.5, 0)
	if started, _ := g.update(0.9); !started {
		t.Fatal("spike did not start speech")
	}
	if _, ended := g.update(0.1); !ended {
		t.Fatal("zero hangover must end on the first sub-threshold frame")
	}
}

func TestVADGateReset(t *testing.T) {
	t.Parallel()

	g := newVADGate(0.5, 12)
	g.update(0.9)
	g.reset()
	if g.speechActive() {
		t.Fatal("reset left the gate active")
	}
	if started, _ := g.update(0.9); !started {
		t.Fatal("gate did not start cleanly after reset")
	}
}
