package audio

import (
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWAV writes frames to path as a 16-bit mono WAV file at [SampleRate].
// Used to persist pre-speech snapshots so a downstream recorder can prepend
// the audio captured before the speech trigger.
func WriteWAV(path string, frames []Frame) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %q: %w", path, err)
	}

	enc := wav.NewEncoder(f, SampleRate, 16, 1, 1)

	var total int
	for _, fr := range frames {
		total += len(fr.PCM)
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: SampleRate},
		Data:           make([]int, 0, total),
		SourceBitDepth: 16,
	}
	for _, fr := range frames {
		for _, s := range fr.PCM {
			buf.Data = append(buf.Data, int(s))
		}
	}

	if err := enc.Write(buf); err != nil {
		_ = enc.Close()
		_ = f.Close()
		return fmt.Errorf("encode %q: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return fmt.Errorf("finalize %q: %w", path, err)
	}
	return f.Close()
}
