// ABOUTME: Oto-based playback of recorded WAV files
// ABOUTME: Streams 16-bit PCM with software volume control for previewing
package playback

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ebitengine/oto/v3"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"go.uber.org/zap"

	"github.com/tapdeck-io/tapdeck/pkg/audio"
)

// chunkFrames is the decode granularity, about 100ms at 48kHz.
const chunkFrames = 4800

// Player previews a recorded file through the default output device. One
// oto context per process, so reuse a Player across files.
type Player struct {
	log    *zap.SugaredLogger
	volume int

	otoCtx     *oto.Context
	sampleRate int
	channels   int
}

func NewPlayer(logger *zap.SugaredLogger) *Player {
	return &Player{
		log:    logger.Named("playback"),
		volume: 100,
	}
}

// SetVolume sets the volume (0-100).
func (p *Player) SetVolume(volume int) {
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}
	p.volume = volume
}

// Play decodes the WAV file and streams it to the output device,
// blocking until playback finishes or the context is canceled.
func (p *Player) Play(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return fmt.Errorf("%s is not a valid WAV file", path)
	}
	if dec.BitDepth != 16 {
		return fmt.Errorf("%s: only 16-bit files can be previewed, got %d-bit", path, dec.BitDepth)
	}

	rate := int(dec.SampleRate)
	channels := int(dec.NumChans)
	if err := p.ensureContext(rate, channels); err != nil {
		return err
	}

	pr, pw := io.Pipe()
	player := p.otoCtx.NewPlayer(pr)
	player.Play()
	defer func() {
		_ = player.Close()
		_ = pr.Close()
	}()

	p.log.Infow("playing", "path", path, "hz", rate, "channels", channels)

	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{SampleRate: rate, NumChannels: channels},
		Data:   make([]int, chunkFrames*channels),
	}
	out := make([]byte, len(buf.Data)*2)

	for {
		if err := ctx.Err(); err != nil {
			_ = pw.Close()
			return err
		}

		n, err := dec.PCMBuffer(buf)
		if err != nil {
			_ = pw.Close()
			return fmt.Errorf("decode %s: %w", path, err)
		}
		if n == 0 {
			break
		}

		samples := buf.Data[:n]
		p.applyVolume(samples)
		audio.PutS16LE(samples, out[:n*2])

		if _, err := pw.Write(out[:n*2]); err != nil {
			return fmt.Errorf("feed output: %w", err)
		}
	}
	_ = pw.Close()

	p.drain(ctx, player)
	return ctx.Err()
}

// ensureContext opens the oto context on first use. oto allows one
// context per process, so a format change across files is refused
// rather than silently resampled.
func (p *Player) ensureContext(rate, channels int) error {
	if p.otoCtx != nil {
		if p.sampleRate != rate || p.channels != channels {
			return fmt.Errorf("output already open at %dHz/%dch, cannot switch to %dHz/%dch",
				p.sampleRate, p.channels, rate, channels)
		}
		return nil
	}

	otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   rate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return fmt.Errorf("open output device: %w", err)
	}
	<-ready

	p.otoCtx = otoCtx
	p.sampleRate = rate
	p.channels = channels
	return nil
}

func (p *Player) applyVolume(samples []int) {
	if p.volume == 100 {
		return
	}
	mult := float64(p.volume) / 100.0
	for i, s := range samples {
		samples[i] = audio.ClampS16(int(float64(s) * mult))
	}
}

// drain waits for the device to finish the buffered tail.
func (p *Player) drain(ctx context.Context, player *oto.Player) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
