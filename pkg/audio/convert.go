package audio

import (
	"log/slog"
	"math"
	"sync"
)

// Normalizer converts capture chunks to the pipeline's native format
// (mono, [SampleRate]). It logs a warning on the first format mismatch so a
// misconfigured device is visible without flooding the log. Create one per
// stream; not designed for shared use across goroutines.
type Normalizer struct {
	warnedMismatch sync.Once
	res            resampler
}

// Normalize returns the chunk's samples as mono PCM at [SampleRate].
// If the chunk already matches, the input slice is returned unchanged
// (zero allocation). Conversion order: downmix first, then resample, so
// multi-channel audio is never resampled per channel.
func (n *Normalizer) Normalize(c Chunk) []int16 {
	if c.Channels <= 1 && (c.SampleRate == SampleRate || c.SampleRate == 0) {
		return c.PCM
	}

	n.warnedMismatch.Do(func() {
		slog.Warn("capture format mismatch: converting",
			"sampleRate", c.SampleRate,
			"channels", c.Channels,
			"target", SampleRate,
		)
	})

	pcm := c.PCM
	if c.Channels > 1 {
		pcm = DownmixMono(pcm, c.Channels)
	}
	if c.SampleRate != SampleRate && c.SampleRate > 0 {
		pcm = n.res.resample(pcm, float64(c.SampleRate)/float64(SampleRate))
	}
	return pcm
}

// Reset clears resampling carry state so a replayed stream produces
// identical output every session.
func (n *Normalizer) Reset() {
	n.res = resampler{}
}

// DownmixMono averages interleaved channels into a single mono stream.
// Uses int32 accumulation to prevent overflow and clamps to int16 range.
func DownmixMono(pcm []int16, channels int) []int16 {
	if channels <= 1 {
		return pcm
	}
	frames := len(pcm) / channels
	out := make([]int16, frames)
	for i := range frames {
		var sum int32
		for ch := range channels {
			sum += int32(pcm[i*channels+ch])
		}
		avg := sum / int32(channels)
		if avg > 32767 {
			avg = 32767
		} else if avg < -32768 {
			avg = -32768
		}
		out[i] = int16(avg)
	}
	return out
}

// ResampleMono resamples mono PCM from srcRate to dstRate in one shot using
// linear interpolation. If srcRate == dstRate, the input is returned
// unchanged. For chunked streams use [Normalizer], which carries
// interpolation state across chunk boundaries.
// Linear interpolation is adequate here: the downstream models were trained
// on consumer-microphone audio and are insensitive to interpolation noise.
func ResampleMono(pcm []int16, srcRate, dstRate int) []int16 {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(pcm) == 0 {
		return pcm
	}
	var r resampler
	return r.resample(pcm, float64(srcRate)/float64(dstRate))
}

// resampler performs linear-interpolation resampling with state carried
// across chunks: the final source sample of each chunk seeds interpolation
// into the next, so a continuous stream resampled chunk by chunk equals the
// same stream resampled in one shot, with no boundary discontinuity.
type resampler struct {
	// pos is the next output position in source samples, relative to the
	// start of the current chunk. A value in (-1, 0) addresses the span
	// between the carried sample and the chunk's first sample.
	pos float64

	// prev is the final sample of the previous chunk.
	prev int16
}

// resample converts one chunk, step being srcRate/dstRate. May return zero
// samples when the chunk is shorter than the distance to the next output
// position.
func (r *resampler) resample(src []int16, step float64) []int16 {
	if len(src) == 0 || step <= 0 {
		return nil
	}
	out := make([]int16, 0, int(float64(len(src))/step)+1)

	pos := r.pos
	for ; pos <= float64(len(src)-1); pos += step {
		i := int(math.Floor(pos))
		frac := pos - float64(i)
		var s int16
		switch {
		case frac == 0:
			s = src[i]
		case i < 0:
			s = lerp(r.prev, src[0], frac)
		default:
			s = lerp(src[i], src[i+1], frac)
		}
		out = append(out, s)
	}

	r.pos = pos - float64(len(src))
	r.prev = src[len(src)-1]
	return out
}

func lerp(a, b int16, t float64) int16 {
	return int16(float64(a)*(1-t) + float64(b)*t)
}
