package audio

import "testing"

func TestDownmixMono(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		pcm      []int16
		channels int
		want     []int16
	}{
		{
			name:     "stereo average",
			pcm:      []int16{100, 200, -100, -200},
			channels: 2,
			want:     []int16{150, -150},
		},
		{
			name:     "mono passthrough",
			pcm:      []int16{1, 2, 3},
			channels: 1,
			want:     []int16{1, 2, 3},
		},
		{
			name:     "extremes do not overflow",
			pcm:      []int16{32767, 32767, -32768, -32768},
			channels: 2,
			want:     []int16{32767, -32768},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := DownmixMono(tc.pcm, tc.channels)
			if len(got) != len(tc.want) {
				t.Fatalf("want %d samples, got %d", len(tc.want), len(got))
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("sample %d: want %d, got %d", i, tc.want[i], got[i])
				}
			}
		})
	}
}

func TestResampleMono(t *testing.T) {
	t.Parallel()

	t.Run("same rate is identity", func(t *testing.T) {
		t.Parallel()
		in := []int16{1, 2, 3}
		out := ResampleMono(in, 16000, 16000)
		if &out[0] != &in[0] {
			t.Fatal("same-rate resample must return input unchanged")
		}
	})

	t.Run("halves sample count 48k to 24k", func(t *testing.T) {
		t.Parallel()
		in := make([]int16, 480)
		out := ResampleMono(in, 48000, 24000)
		if len(out) != 240 {
			t.Fatalf("want 240 samples, got %d", len(out))
		}
	})

	t.Run("constant signal stays constant", func(t *testing.T) {
		t.Parallel()
		in := make([]int16, 480)
		for i := range in {
			in[i] = 1000
		}
		for _, s := range ResampleMono(in, 48000, 16000) {
			if s != 1000 {
				t.Fatalf("interpolation distorted constant signal: got %d", s)
			}
		}
	})
}

func TestNormalizerChunkedMatchesOneShot(t *testing.T) {
	t.Parallel()

	ramp := func(size int) []int16 {
		out := make([]int16, size)
		for i := range out {
			out[i] = int16(i * 7)
		}
		return out
	}

	feed := func(n *Normalizer, pcm []int16, rate, split int) []int16 {
		var got []int16
		got = append(got, n.Normalize(Chunk{PCM: pcm[:split], SampleRate: rate, Channels: 1})...)
		got = append(got, n.Normalize(Chunk{PCM: pcm[split:], SampleRate: rate, Channels: 1})...)
		return got
	}

	t.Run("48k split off the output grid", func(t *testing.T) {
		t.Parallel()
		in := ramp(960)
		var n Normalizer
		// 451 is not a multiple of the 3:1 decimation, so the first output of
		// the second chunk sits between the chunks.
		got := feed(&n, in, 48000, 451)
		want := ResampleMono(in, 48000, 16000)
		if len(got) != len(want) {
			t.Fatalf("want %d samples, got %d", len(want), len(got))
		}
		for i := range got {
			if got[i] != want[i] {
				t.Fatalf("sample %d: want %d, got %d", i, want[i], got[i])
			}
		}
	})

	t.Run("24k interpolates across the boundary", func(t *testing.T) {
		t.Parallel()
		in := ramp(240)
		var n Normalizer
		// A split of 8 with a 1.5 sample stride leaves the next output between
		// the last sample of the first chunk and the first of the second.
		got := feed(&n, in, 24000, 8)
		want := ResampleMono(in, 24000, 16000)
		if len(got) != len(want) {
			t.Fatalf("want %d samples, got %d", len(want), len(got))
		}
		for i := range got {
			if got[i] != want[i] {
				t.Fatalf("sample %d: want %d, got %d", i, want[i], got[i])
			}
		}
	})
}

func TestNormalizerResetClearsCarry(t *testing.T) {
	t.Parallel()

	// 22 samples at 48 kHz leave the resampler mid-stride, so a second pass
	// only matches the first if Reset cleared the carried position.
	in := make([]int16, 22)
	for i := range in {
		in[i] = int16(i * 100)
	}
	chunk := Chunk{PCM: in, SampleRate: 48000, Channels: 1}

	var n Normalizer
	first := n.Normalize(chunk)
	n.Reset()
	second := n.Normalize(chunk)

	if len(first) != len(second) {
		t.Fatalf("want %d samples after reset, got %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("sample %d: want %d after reset, got %d", i, first[i], second[i])
		}
	}
}

func TestNormalizerFastPath(t *testing.T) {
	t.Parallel()

	var n Normalizer
	in := []int16{1, 2, 3, 4}
	out := n.Normalize(Chunk{PCM: in, SampleRate: SampleRate, Channels: 1})
	if &out[0] != &in[0] {
		t.Fatal("matching format must be passed through without allocation")
	}
}

func TestNormalizerStereo48k(t *testing.T) {
	t.Parallel()

	var n Normalizer
	// 10 ms of 48 kHz stereo.
	in := make([]int16, 480*2)
	out := n.Normalize(Chunk{PCM: in, SampleRate: 48000, Channels: 2})
	if len(out) != 160 {
		t.Fatalf("want 160 mono 16 kHz samples, got %d", len(out))
	}
}
