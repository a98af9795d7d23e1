// ABOUTME: Tests for the file merger
// ABOUTME: Covers mixing, channel upmix, rate refusal and non-destructive failure
package merge

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/tapdeck-io/tapdeck/internal/wavfile"
	"github.com/tapdeck-io/tapdeck/pkg/audio"
)

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// writeTestFile produces a WAV with the given constant sample value.
func writeTestFile(t *testing.T, path string, rate float64, channels, frames, value int) {
	t.Helper()

	w, err := wavfile.Create(path, wavfile.Spec{SampleRate: rate, Channels: channels, BitDepth: 16})
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}

	samples := make([]int, frames*channels)
	for i := range samples {
		samples[i] = value
	}
	data := make([]byte, len(samples)*2)
	audio.PutS16LE(samples, data)

	buf := audio.Buffer{
		Data:       data,
		FrameCount: frames,
		Format:     audio.Format{SampleRate: rate, Channels: channels, BitDepth: 16, Interleaved: true},
	}
	if err := w.Append(buf); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestMergeDurationIsLongestTrack(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.wav")
	b := filepath.Join(dir, "b.wav")
	out := filepath.Join(dir, "out.wav")

	writeTestFile(t, a, 8000, 2, 8000, 100)  // 1.0s
	writeTestFile(t, b, 8000, 2, 16000, 200) // 2.0s

	if err := Merge(a, b, out, testLogger()); err != nil {
		t.Fatalf("merge: %v", err)
	}

	info, err := wavfile.Probe(out)
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if info.SampleRate != 8000 {
		t.Errorf("expected 8000 Hz, got %d", info.SampleRate)
	}

	expected := 2 * time.Second
	diff := info.Duration - expected
	if diff < 0 {
		diff = -diff
	}
	if diff > 100*time.Millisecond {
		t.Errorf("expected ~%v, got %v", expected, info.Duration)
	}
}

func TestMergeUpmixesMonoToStereo(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "mono.wav")
	b := filepath.Join(dir, "stereo.wav")
	out := filepath.Join(dir, "out.wav")

	writeTestFile(t, a, 8000, 1, 4000, 50)
	writeTestFile(t, b, 8000, 2, 4000, 70)

	if err := Merge(a, b, out, testLogger()); err != nil {
		t.Fatalf("merge: %v", err)
	}

	info, err := wavfile.Probe(out)
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if info.Channels != 2 {
		t.Errorf("expected stereo output, got %d channels", info.Channels)
	}
}

func TestMergeRefusesDifferentRates(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.wav")
	b := filepath.Join(dir, "b.wav")
	out := filepath.Join(dir, "out.wav")

	writeTestFile(t, a, 8000, 2, 1000, 100)
	writeTestFile(t, b, 16000, 2, 1000, 100)

	if err := Merge(a, b, out, testLogger()); err == nil {
		t.Fatal("expected rate mismatch error")
	}

	// Non-destructive: both originals intact, no deliverable produced.
	for _, p := range []string{a, b} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("original %s must survive a failed merge: %v", p, err)
		}
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("expected no merge output, stat err = %v", err)
	}
}

func TestMergeFailsOnMissingInput(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.wav")
	writeTestFile(t, a, 8000, 2, 1000, 100)

	err := Merge(a, filepath.Join(dir, "missing.wav"), filepath.Join(dir, "out.wav"), testLogger())
	if err == nil {
		t.Fatal("expected error for missing input")
	}
}
