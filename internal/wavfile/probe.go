// ABOUTME: WAV file inspection helper
// ABOUTME: Reports format and duration of finished recordings
package wavfile

import (
	"fmt"
	"os"
	"time"

	"github.com/go-audio/wav"
)

// Info is what Probe learns about a finished file.
type Info struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Duration   time.Duration
}

// Probe reads a finished WAV file's format and duration.
func Probe(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("probe %s: %w", path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return Info{}, fmt.Errorf("probe %s: not a valid wav file", path)
	}

	dur, err := dec.Duration()
	if err != nil {
		return Info{}, fmt.Errorf("probe %s: duration: %w", path, err)
	}

	return Info{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
		Duration:   dur,
	}, nil
}
