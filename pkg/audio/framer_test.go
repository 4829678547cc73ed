package audio

import (
	"testing"
	"time"
)

func chunk16k(pcm []int16) Chunk {
	return Chunk{PCM: pcm, SampleRate: SampleRate, Channels: 1}
}

func ramp(n int, start int16) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = start + int16(i)
	}
	return out
}

func TestFramerExactChunks(t *testing.T) {
	t.Parallel()

	fr := NewFramer(4)
	frames := fr.Push(chunk16k(ramp(8, 0)))
	if len(frames) != 2 {
		t.Fatalf("want 2 frames, got %d", len(frames))
	}
	if frames[0].Index != 0 || frames[1].Index != 1 {
		t.Fatalf("indices not sequential: %d, %d", frames[0].Index, frames[1].Index)
	}
	if frames[1].PCM[0] != 4 {
		t.Fatalf("second frame must start at sample 4, got %d", frames[1].PCM[0])
	}
}

func TestFramerMisalignedChunks(t *testing.T) {
	t.Parallel()

	fr := NewFramer(4)

	// 3 samples: no complete frame yet.
	if got := fr.Push(chunk16k(ramp(3, 0))); len(got) != 0 {
		t.Fatalf("want 0 frames from partial chunk, got %d", len(got))
	}

	// 3 more: one frame, two samples carried over.
	frames := fr.Push(chunk16k(ramp(3, 3)))
	if len(frames) != 1 {
		t.Fatalf("want 1 frame, got %d", len(frames))
	}
	want := []int16{0, 1, 2, 3}
	for i, s := range frames[0].PCM {
		if s != want[i] {
			t.Fatalf("frame sample %d: want %d, got %d", i, want[i], s)
		}
	}

	// 2 more to complete the second frame from the leftover.
	frames = fr.Push(chunk16k(ramp(2, 6)))
	if len(frames) != 1 {
		t.Fatalf("want 1 frame, got %d", len(frames))
	}
	want = []int16{4, 5, 6, 7}
	for i, s := range frames[0].PCM {
		if s != want[i] {
			t.Fatalf("leftover not stitched correctly at %d: want %d, got %d", i, want[i], s)
		}
	}
}

func TestFramerNoLossNoDuplication(t *testing.T) {
	t.Parallel()

	fr := NewFramer(5)
	var all []int16
	// Awkward chunk sizes exercising every carry path.
	for _, n := range []int{1, 7, 2, 13, 4, 3} {
		frames := fr.Push(chunk16k(ramp(n, int16(len(all)))))
		_ = frames
		all = append(all, ramp(n, int16(len(all)))...)
	}

	// Re-run and collect output samples.
	fr.Reset()
	var out []int16
	off := 0
	for _, n := range []int{1, 7, 2, 13, 4, 3} {
		for _, f := range fr.Push(chunk16k(all[off : off+n])) {
			out = append(out, f.PCM...)
		}
		off += n
	}

	complete := (len(all) / 5) * 5
	if len(out) != complete {
		t.Fatalf("want %d output samples, got %d", complete, len(out))
	}
	for i, s := range out {
		if s != all[i] {
			t.Fatalf("sample %d reordered or corrupted: want %d, got %d", i, all[i], s)
		}
	}
}

func TestFramerTimestampsDerivedFromIndex(t *testing.T) {
	t.Parallel()

	fr := NewFramer(1280) // 80 ms at 16 kHz
	frames := fr.Push(chunk16k(make([]int16, 1280*3)))
	if len(frames) != 3 {
		t.Fatalf("want 3 frames, got %d", len(frames))
	}
	for i, f := range frames {
		want := time.Duration(i) * 80 * time.Millisecond
		if f.Timestamp != want {
			t.Fatalf("frame %d timestamp: want %v, got %v", i, want, f.Timestamp)
		}
	}
}

func TestFramerResetRestartsNumbering(t *testing.T) {
	t.Parallel()

	fr := NewFramer(4)
	fr.Push(chunk16k(ramp(6, 0)))
	fr.Reset()

	frames := fr.Push(chunk16k(ramp(4, 100)))
	if len(frames) != 1 {
		t.Fatalf("want 1 frame, got %d", len(frames))
	}
	if frames[0].Index != 0 {
		t.Fatalf("index must restart at 0 after Reset, got %d", frames[0].Index)
	}
	if frames[0].PCM[0] != 100 {
		t.Fatalf("leftover must be discarded by Reset, first sample = %d", frames[0].PCM[0])
	}
}

func TestFramerResetClearsResampleCarry(t *testing.T) {
	t.Parallel()

	// 22 samples at 48 kHz leave the resampler mid-stride; after Reset the
	// same chunk must produce identical frames.
	in := make([]int16, 22)
	for i := range in {
		in[i] = int16(i * 100)
	}
	chunk := Chunk{PCM: in, SampleRate: 48000, Channels: 1}

	fr := NewFramer(4)
	first := fr.Push(chunk)
	fr.Reset()
	second := fr.Push(chunk)

	if len(first) != len(second) {
		t.Fatalf("want %d frames after reset, got %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Index != second[i].Index {
			t.Fatalf("frame %d index: want %d, got %d", i, first[i].Index, second[i].Index)
		}
		for j := range first[i].PCM {
			if first[i].PCM[j] != second[i].PCM[j] {
				t.Fatalf("frame %d sample %d: want %d, got %d",
					i, j, first[i].PCM[j], second[i].PCM[j])
			}
		}
	}
}

func TestFramerConvertsStereo48k(t *testing.T) {
	t.Parallel()

	fr := NewFramer(160) // 10 ms at 16 kHz
	// 30 ms of stereo 48 kHz: 1440 stereo sample pairs.
	pcm := make([]int16, 1440*2)
	frames := fr.Push(Chunk{PCM: pcm, SampleRate: 48000, Channels: 2})
	if len(frames) != 3 {
		t.Fatalf("30 ms of 48 kHz stereo should yield 3 frames of 10 ms, got %d", len(frames))
	}
}
