// ABOUTME: Tests for the WAV writer and probe
// ABOUTME: Round-trips frames and checks reported rate and duration
package wavfile

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/tapdeck-io/tapdeck/pkg/audio"
)

func writeFrames(t *testing.T, w *Writer, format audio.Format, frames int) {
	t.Helper()

	const chunk = 480
	data := make([]byte, chunk*format.BytesPerFrame())
	for frames > 0 {
		n := chunk
		if frames < n {
			n = frames
		}
		buf := audio.Buffer{
			Data:       data[:n*format.BytesPerFrame()],
			FrameCount: n,
			Format:     format,
			Arrival:    time.Now(),
		}
		if err := w.Append(buf); err != nil {
			t.Fatalf("append: %v", err)
		}
		frames -= n
	}
}

func TestRoundTripDurationAndRate(t *testing.T) {
	// 144000 frames at 48 kHz stereo must read back as 3.0s within 5%
	// and 48000 Hz within 1 Hz.
	path := filepath.Join(t.TempDir(), "roundtrip.wav")
	spec := Spec{SampleRate: 48000, Channels: 2, BitDepth: 16}
	format := audio.Format{SampleRate: 48000, Channels: 2, BitDepth: 16, Interleaved: true}

	w, err := Create(path, spec)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	writeFrames(t, w, format, 144000)

	if got := w.Frames(); got != 144000 {
		t.Errorf("expected 144000 frames written, got %d", got)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	info, err := Probe(path)
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if info.SampleRate != 48000 {
		t.Errorf("expected sample rate 48000, got %d", info.SampleRate)
	}
	if info.Channels != 2 {
		t.Errorf("expected 2 channels, got %d", info.Channels)
	}

	expected := 3 * time.Second
	diff := info.Duration - expected
	if diff < 0 {
		diff = -diff
	}
	if diff > 150*time.Millisecond {
		t.Errorf("expected duration %v +/- 150ms, got %v", expected, info.Duration)
	}
}

func TestAppendAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "closed.wav")
	w, err := Create(path, Spec{SampleRate: 48000, Channels: 2, BitDepth: 16})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	buf := audio.Buffer{
		Data:       make([]byte, 4),
		FrameCount: 1,
		Format:     audio.Format{SampleRate: 48000, Channels: 2, BitDepth: 16},
	}
	if err := w.Append(buf); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	// Double close is a no-op.
	if err := w.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

func TestZeroFrameFileIsValid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.wav")
	w, err := Create(path, Spec{SampleRate: 44100, Channels: 1, BitDepth: 16})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	info, err := Probe(path)
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if info.Duration != 0 {
		t.Errorf("expected zero duration, got %v", info.Duration)
	}
	if info.SampleRate != 44100 {
		t.Errorf("expected 44100, got %d", info.SampleRate)
	}
}

func TestCreateRejectsBadSpec(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wav")
	if _, err := Create(path, Spec{SampleRate: 0, Channels: 2, BitDepth: 16}); err == nil {
		t.Error("expected error for zero sample rate")
	}
	if _, err := Create(path, Spec{SampleRate: 48000, Channels: 2, BitDepth: 24}); err == nil {
		t.Error("expected error for unsupported bit depth")
	}
}
