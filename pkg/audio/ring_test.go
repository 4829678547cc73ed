package audio

import (
	"sync"
	"testing"
)

func frameAt(idx uint64) Frame {
	return Frame{PCM: []int16{int16(idx)}, Index: idx}
}

func TestPreSpeechRingRejectsBadCapacity(t *testing.T) {
	t.Parallel()

	for _, c := range []int{0, -1} {
		if _, err := NewPreSpeechRing(c); err == nil {
			t.Fatalf("capacity %d must be rejected at construction", c)
		}
	}
}

func TestPreSpeechRingOrderedSnapshot(t *testing.T) {
	t.Parallel()

	r, err := NewPreSpeechRing(3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("partially filled", func(t *testing.T) {
		r.Push(frameAt(0))
		r.Push(frameAt(1))
		snap := r.Snapshot()
		if len(snap) != 2 {
			t.Fatalf("want 2 frames, got %d", len(snap))
		}
		if snap[0].Index != 0 || snap[1].Index != 1 {
			t.Fatalf("snapshot out of order: %d, %d", snap[0].Index, snap[1].Index)
		}
	})

	t.Run("overwrites oldest when full", func(t *testing.T) {
		r.Push(frameAt(2))
		r.Push(frameAt(3))
		r.Push(frameAt(4))
		snap := r.Snapshot()
		if len(snap) != 3 {
			t.Fatalf("want 3 frames, got %d", len(snap))
		}
		for i, want := range []uint64{2, 3, 4} {
			if snap[i].Index != want {
				t.Fatalf("snapshot[%d]: want index %d, got %d", i, want, snap[i].Index)
			}
		}
	})

	t.Run("snapshot does not mutate", func(t *testing.T) {
		before := r.Len()
		_ = r.Snapshot()
		_ = r.Snapshot()
		if r.Len() != before {
			t.Fatalf("snapshot mutated ring: len %d -> %d", before, r.Len())
		}
	})
}

func TestPreSpeechRingReset(t *testing.T) {
	t.Parallel()

	r, _ := NewPreSpeechRing(4)
	r.Push(frameAt(0))
	r.Push(frameAt(1))
	r.Reset()
	if r.Len() != 0 {
		t.Fatalf("want empty ring after Reset, got len %d", r.Len())
	}
	if len(r.Snapshot()) != 0 {
		t.Fatal("snapshot of reset ring must be empty")
	}
}

func TestPreSpeechRingConcurrentSnapshot(t *testing.T) {
	t.Parallel()

	r, _ := NewPreSpeechRing(8)
	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := uint64(0); i < 10000; i++ {
			r.Push(frameAt(i))
		}
		close(stop)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			snap := r.Snapshot()
			for i := 1; i < len(snap); i++ {
				if snap[i].Index != snap[i-1].Index+1 {
					t.Errorf("snapshot not contiguous: %d then %d", snap[i-1].Index, snap[i].Index)
					return
				}
			}
			select {
			case <-stop:
				return
			default:
			}
		}
	}()

	wg.Wait()
}
