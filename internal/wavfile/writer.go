// ABOUTME: WAV file writer collaborator for capture streams
// ABOUTME: Appends raw PCM frames with periodic fsync for crash tolerance
package wavfile

import (
	"errors"
	"fmt"
	"os"
	"sync"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/tapdeck-io/tapdeck/pkg/audio"
)

// ErrClosed is returned by Append after Close.
var ErrClosed = errors.New("wav writer closed")

// Spec describes the output stream a writer is created for. The sample
// rate here is the resolved (authoritative) rate, never the declared one.
type Spec struct {
	SampleRate float64
	Channels   int
	BitDepth   int
}

func (s Spec) valid() bool {
	return s.SampleRate > 0 && s.Channels > 0 && s.BitDepth == 16
}

// Writer appends PCM frames to a WAV file. Writes are fsynced roughly
// once per second of audio so an abrupt process exit mid-recording loses
// at most that much data (the RIFF sizes are finalized on Close, but the
// sample payload survives).
type Writer struct {
	mu  sync.Mutex
	f   *os.File
	enc *wav.Encoder

	spec            Spec
	frames          uint64
	framesSinceSync int
	syncEvery       int

	ints   []int
	intBuf *goaudio.IntBuffer
	closed bool
}

// Create opens the destination file and writes the WAV header.
func Create(path string, spec Spec) (*Writer, error) {
	if !spec.valid() {
		return nil, fmt.Errorf("create %s: unusable stream spec %+v", path, spec)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}

	enc := wav.NewEncoder(f, int(spec.SampleRate), spec.BitDepth, spec.Channels, 1)
	return &Writer{
		f:         f,
		enc:       enc,
		spec:      spec,
		syncEvery: int(spec.SampleRate),
		intBuf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: spec.Channels, SampleRate: int(spec.SampleRate)},
			SourceBitDepth: spec.BitDepth,
		},
	}, nil
}

// Append writes one delivered buffer. The buffer's data is consumed
// before return, so zero-copy delivery from the callback is safe.
func (w *Writer) Append(buf audio.Buffer) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if buf.FrameCount == 0 || len(buf.Data) == 0 {
		return nil
	}
	if buf.Format.BitDepth != 16 {
		return fmt.Errorf("append: unsupported bit depth %d", buf.Format.BitDepth)
	}

	w.ints = audio.SamplesS16LE(buf.Data, w.ints)
	w.intBuf.Data = w.ints

	if err := w.enc.Write(w.intBuf); err != nil {
		return fmt.Errorf("append %d frames: %w", buf.FrameCount, err)
	}

	w.frames += uint64(buf.FrameCount)
	w.framesSinceSync += buf.FrameCount
	if w.framesSinceSync >= w.syncEvery {
		w.framesSinceSync = 0
		// A failed periodic sync is not worth dropping the frame over;
		// the next sync or Close will retry.
		_ = w.f.Sync()
	}
	return nil
}

// Frames returns the number of frames written so far.
func (w *Writer) Frames() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.frames
}

// Spec returns the stream spec the writer was created with.
func (w *Writer) Spec() Spec {
	return w.spec
}

// Close finalizes the WAV header and releases the file. Idempotent.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	encErr := w.enc.Close()
	closeErr := w.f.Close()
	if encErr != nil {
		return fmt.Errorf("finalize wav: %w", encErr)
	}
	return closeErr
}
