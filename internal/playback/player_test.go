// ABOUTME: Tests for playback volume scaling and file validation
// ABOUTME: Device-independent paths only; streaming needs real hardware
package playback

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func writeGarbage(path string) error {
	return os.WriteFile(path, []byte("not a riff container"), 0o644)
}

func TestApplyVolume(t *testing.T) {
	p := NewPlayer(zap.NewNop().Sugar())

	samples := []int{1000, -1000, 32767, -32768}
	p.SetVolume(50)
	p.applyVolume(samples)

	want := []int{500, -500, 16383, -16384}
	for i := range want {
		if samples[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, samples[i], want[i])
		}
	}
}

func TestApplyVolumeFullIsIdentity(t *testing.T) {
	p := NewPlayer(zap.NewNop().Sugar())

	samples := []int{123, -456, 32767}
	p.applyVolume(samples)

	if samples[0] != 123 || samples[1] != -456 || samples[2] != 32767 {
		t.Errorf("full volume altered samples: %v", samples)
	}
}

func TestSetVolumeClamps(t *testing.T) {
	p := NewPlayer(zap.NewNop().Sugar())

	p.SetVolume(150)
	if p.volume != 100 {
		t.Errorf("volume = %d, want clamped to 100", p.volume)
	}
	p.SetVolume(-5)
	if p.volume != 0 {
		t.Errorf("volume = %d, want clamped to 0", p.volume)
	}
}

func TestPlayRejectsMissingFile(t *testing.T) {
	p := NewPlayer(zap.NewNop().Sugar())

	err := p.Play(context.Background(), filepath.Join(t.TempDir(), "absent.wav"))
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestPlayRejectsNonWAV(t *testing.T) {
	p := NewPlayer(zap.NewNop().Sugar())

	path := filepath.Join(t.TempDir(), "noise.wav")
	if err := writeGarbage(path); err != nil {
		t.Fatal(err)
	}
	if err := p.Play(context.Background(), path); err == nil {
		t.Fatal("expected an error for a non-WAV file")
	}
}
