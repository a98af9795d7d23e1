// ABOUTME: Non-destructive merge of two finished recordings
// ABOUTME: Mixes both tracks at time zero into one deliverable file
package merge

import (
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"go.uber.org/zap"

	"github.com/tapdeck-io/tapdeck/pkg/audio"
)

// track is one decoded source file.
type track struct {
	samples  []int
	rate     int
	channels int
}

// Merge combines two finished WAV files into one: both tracks start at
// time zero, run for their full duration, and are mixed sample-wise with
// no resampling. The originals are never modified; on failure the partial
// output is removed and the inputs are left untouched.
func Merge(pathA, pathB, outPath string, logger *zap.SugaredLogger) error {
	log := logger.Named("merge")

	a, err := loadTrack(pathA)
	if err != nil {
		return err
	}
	b, err := loadTrack(pathB)
	if err != nil {
		return err
	}

	if a.rate != b.rate {
		return fmt.Errorf("merge: sample rates differ (%d vs %d), refusing to resample", a.rate, b.rate)
	}

	channels := a.channels
	if b.channels > channels {
		channels = b.channels
	}

	mixed := mix(a, b, channels)

	if err := writeTrack(outPath, mixed, a.rate, channels); err != nil {
		if rerr := os.Remove(outPath); rerr != nil && !os.IsNotExist(rerr) {
			log.Warnw("removing partial merge output", "error", rerr)
		}
		return err
	}

	log.Infow("merged", "a", pathA, "b", pathB, "out", outPath,
		"frames", len(mixed)/channels, "hz", a.rate, "channels", channels)
	return nil
}

func loadTrack(path string) (track, error) {
	f, err := os.Open(path)
	if err != nil {
		return track{}, fmt.Errorf("merge: open %s: %w", path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return track{}, fmt.Errorf("merge: %s is not a valid wav file", path)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return track{}, fmt.Errorf("merge: decode %s: %w", path, err)
	}

	return track{
		samples:  buf.Data,
		rate:     buf.Format.SampleRate,
		channels: buf.Format.NumChannels,
	}, nil
}

// mix sums both tracks frame-by-frame into an interleaved stream of the
// widest channel count, upmixing narrower tracks by duplication and
// clamping into the 16-bit range.
func mix(a, b track, channels int) []int {
	framesA := len(a.samples) / a.channels
	framesB := len(b.samples) / b.channels
	frames := framesA
	if framesB > frames {
		frames = framesB
	}

	out := make([]int, frames*channels)
	for frame := 0; frame < frames; frame++ {
		for ch := 0; ch < channels; ch++ {
			v := sampleAt(a, frame, ch) + sampleAt(b, frame, ch)
			out[frame*channels+ch] = audio.ClampS16(v)
		}
	}
	return out
}

// sampleAt reads one channel of one frame, duplicating the last channel
// for tracks narrower than the output and zero past the track's end.
func sampleAt(t track, frame, ch int) int {
	if frame >= len(t.samples)/t.channels {
		return 0
	}
	if ch >= t.channels {
		ch = t.channels - 1
	}
	return t.samples[frame*t.channels+ch]
}

func writeTrack(path string, samples []int, rate, channels int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("merge: create %s: %w", path, err)
	}

	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: rate},
		SourceBitDepth: 16,
		Data:           samples,
	}

	if err := enc.Write(buf); err != nil {
		enc.Close()
		f.Close()
		return fmt.Errorf("merge: write %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("merge: finalize %s: %w", path, err)
	}
	return f.Close()
}
