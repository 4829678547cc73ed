package pipeline

import (
	"testing"
	"time"
)

func TestDetectorPromoteRequiresSpeech(t *testing.T) {
	t.Parallel()

	d := newDetector(2 * time.Second)
	cands := []candidate{{identifier: "hey-earshot", score: 0.9}}

	d.observe(false, 0)
	if win := d.promote(cands, 0); win != nil {
		t.Fatalf("promoted %q while idle", win.identifier)
	}

	d.observe(true, frameDuration)
	win := d.promote(cands, frameDuration)
	if win == nil || win.identifier != "hey-earshot" {
		t.Fatalf("promote while armed = %+v, want hey-earshot", win)
	}
}

func TestDetectorCooldownSuppression(t *testing.T) {
	t.Parallel()

	const cooldown = 2 * time.Second
	d := newDetector(cooldown)
	cands := []candidate{{identifier: "hey-earshot", score: 0.9}}

	d.observe(true, 0)
	if win := d.promote(cands, 0); win == nil {
		t.Fatal("first candidate not promoted")
	}

	// Candidates inside the cooldown window never fire, speech or not.
	now := frameDuration
	for ; now < cooldown; now += frameDuration {
		d.observe(true, now)
		if win := d.promote(cands, now); win != nil {
			t.Fatalf("promoted at %v, inside the %v cooldown", now, cooldown)
		}
	}

	// Sustained speech re-arms in the same tick the cooldown expires.
	d.observe(true, now)
	if win := d.promote(cands, now); win == nil {
		t.Fatalf("no promotion at %v, after cooldown expiry", now)
	}
}

func TestDetectorHighestScoreWins(t *testing.T) {
	t.Parallel()

	d := newDetector(2 * time.Second)
	d.observe(true, 0)
	win := d.promote([]candidate{
		{identifier: "hey-earshot", score: 0.71},
		{identifier: "computer", score: 0.93},
		{identifier: "jarvis", score: 0.88},
	}, 0)
	if win == nil || win.identifier != "computer" {
		t.Fatalf("winner = %+v, want computer", win)
	}
}

func TestDetectorTieKeepsFirstRegistered(t *testing.T) {
	t.Parallel()

	d := newDetector(2 * time.Second)
	d.observe(true, 0)
	win := d.promote([]candidate{
		{identifier: "hey-earshot", score: 0.9},
		{identifier: "computer", score: 0.9},
	}, 0)
	if win == nil || win.identifier != "hey-earshot" {
		t.Fatalf("winner = %+v, want first-registered hey-earshot", win)
	}
}

func TestDetectorDisarmsOnSilence(t *testing.T) {
	t.Parallel()

	d := newDetector(2 * time.Second)
	d.observe(true, 0)
	d.observe(false, frameDuration)
	if win := d.promote([]candidate{{identifier: "hey-earshot", score: 0.9}}, frameDuration); win != nil {
		t.Fatal("promoted after speech ended")
	}
}

func TestDetectorReset(t *testing.T) {
	t.Parallel()

	d := newDetector(time.Hour)
	d.observe(true, 0)
	d.promote([]candidate{{identifier: "hey-earshot", score: 0.9}}, 0)

	d.reset()
	d.observe(true, frameDuration)
	if win := d.promote([]candidate{{identifier: "hey-earshot", score: 0.9}}, frameDuration); win == nil {
		t.Fatal("reset did not clear the pending cooldown")
	}
}
