// ABOUTME: Stream recorder writing one capture session to one file
// ABOUTME: Atomic state machine with runtime sample-rate mismatch diagnosis
package record

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tapdeck-io/tapdeck/internal/capture"
	"github.com/tapdeck-io/tapdeck/internal/wavfile"
	"github.com/tapdeck-io/tapdeck/pkg/audio"
)

// State is the recorder lifecycle. One file per instance lifetime; a new
// instance is required to record again.
type State int32

const (
	StateIdle State = iota
	StateStarting
	StateRecording
	StateStopping
)

const (
	// diagnoseEvery is the callback cadence of the runtime rate check,
	// roughly once per second at typical period sizes.
	diagnoseEvery = 50

	// Measured/configured ratios outside this window are logged as a
	// critical mismatch. Diagnostic only: aborting mid-capture is worse
	// than a speed-incorrect file that can be corrected afterwards.
	mismatchLow  = 0.6
	mismatchHigh = 1.6
)

// ErrRecorderUsed means Start was called on an instance that has already
// recorded.
var ErrRecorderUsed = errors.New("recorder instance already used")

// Summary is the diagnostic outcome of one recording.
type Summary struct {
	Path           string
	Frames         uint64
	Elapsed        time.Duration
	ConfiguredRate float64
	MeasuredRate   float64
	Mismatch       bool
	Dropped        uint64
}

// Recorder subscribes to one capture session and writes its frames to a
// file. The write path runs on the hardware callback thread; Start and
// Stop run on the controller thread; the atomic state provides the
// happens-before edge between them.
type Recorder struct {
	log     *zap.SugaredLogger
	session capture.Session
	path    string

	// targetRate, when positive, overrides the session's resolved rate in
	// the output format. The coordinator uses it to pin both streams to
	// one project rate for merging.
	targetRate float64

	queue *TeardownQueue

	// ctl serializes Start and Stop. A Stop racing a still-running Start
	// would otherwise observe a half-built recorder: no sink yet, or a
	// session invalidated before Run registers with it.
	ctl sync.Mutex

	state          atomic.Int32
	used           atomic.Bool
	sink           *wavfile.Writer
	configuredRate float64

	frames     atomic.Uint64
	callbacks  atomic.Uint64
	dropped    atomic.Uint64
	firstNanos atomic.Int64
	lastNanos  atomic.Int64
	mismatch   atomic.Bool

	onEnded  func()
	done     chan struct{}
	doneOnce sync.Once
}

// New builds a recorder for one session and destination path. targetRate
// zero means "use the session's resolved rate".
func New(session capture.Session, path string, targetRate float64, queue *TeardownQueue, logger *zap.SugaredLogger) *Recorder {
	return &Recorder{
		log:        logger.Named("recorder"),
		session:    session,
		path:       path,
		targetRate: targetRate,
		queue:      queue,
		done:       make(chan struct{}),
	}
}

// OnEnded registers a callback fired when the underlying session
// invalidates, before hardware teardown. Set it before Start.
func (r *Recorder) OnEnded(fn func()) {
	r.onEnded = fn
}

// Start activates the session if needed, creates the output file at the
// resolved (or overridden) rate, and begins writing. Setup failures are
// returned synchronously; no hardware I/O is registered when Start errors.
func (r *Recorder) Start() error {
	if r.used.Swap(true) {
		return ErrRecorderUsed
	}
	r.ctl.Lock()
	defer r.ctl.Unlock()
	r.state.Store(int32(StateStarting))

	fail := func(err error) error {
		r.state.Store(int32(StateIdle))
		r.signalDone()
		return err
	}

	if err := r.session.Activate(); err != nil {
		return fail(fmt.Errorf("activate session: %w", err))
	}

	format := r.session.Format()
	rate := format.SampleRate
	if r.targetRate > 0 {
		if r.targetRate != rate {
			r.log.Infow("overriding session rate with target rate",
				"session_hz", rate, "target_hz", r.targetRate)
		}
		rate = r.targetRate
	}
	r.configuredRate = rate

	sink, err := wavfile.Create(r.path, wavfile.Spec{
		SampleRate: rate,
		Channels:   format.Channels,
		BitDepth:   16,
	})
	if err != nil {
		return fail(err)
	}
	r.sink = sink

	if err := r.session.Run(r.onFrames, r.sessionInvalidated); err != nil {
		if cerr := sink.Close(); cerr != nil {
			r.log.Warnw("sink close after failed run", "error", cerr)
		}
		if rerr := os.Remove(r.path); rerr != nil {
			r.log.Warnw("remove empty output after failed run", "error", rerr)
		}
		return fail(fmt.Errorf("run session: %w", err))
	}

	r.state.Store(int32(StateRecording))
	r.log.Infow("recording", "path", r.path, "hz", rate, "channels", format.Channels)
	return nil
}

// onFrames is the hardware callback. It must not block beyond what the
// sink guarantees is safe.
func (r *Recorder) onFrames(buf audio.Buffer) {
	if State(r.state.Load()) != StateRecording {
		// Teardown already begun: in-flight deliveries are discarded.
		return
	}

	if err := r.sink.Append(buf); err != nil {
		// One lost buffer must not end an otherwise healthy recording.
		n := r.dropped.Add(1)
		if n <= 3 {
			r.log.Warnw("frame write failed, dropping buffer", "error", err, "dropped", n)
		}
		return
	}

	r.frames.Add(uint64(buf.FrameCount))

	now := buf.Arrival
	if now.IsZero() {
		now = time.Now()
	}
	n := r.callbacks.Add(1)
	if n == 1 {
		r.firstNanos.Store(now.UnixNano())
	}
	r.lastNanos.Store(now.UnixNano())

	if n >= diagnoseEvery && n%diagnoseEvery == 0 {
		r.diagnose()
	}
}

// diagnose compares the measured delivery rate against the configured
// one. Safe when no callback has fired yet.
func (r *Recorder) diagnose() {
	first := r.firstNanos.Load()
	last := r.lastNanos.Load()
	if first == 0 || last <= first || r.configuredRate <= 0 {
		return
	}

	elapsed := time.Duration(last - first)
	measured := float64(r.frames.Load()) / elapsed.Seconds()
	ratio := measured / r.configuredRate

	if ratio < mismatchLow || ratio > mismatchHigh {
		r.mismatch.Store(true)
		r.log.Errorw("critical sample-rate mismatch, output will play at the wrong speed",
			"configured_hz", r.configuredRate,
			"measured_hz", measured,
			"ratio", ratio)
		return
	}
	r.log.Debugw("rate check", "configured_hz", r.configuredRate, "measured_hz", measured, "ratio", ratio)
}

// Stop ends the recording. The not-recording state is published before
// the file is released, so no callback can write after the transition.
// A Stop concurrent with Start waits for Start to finish and then stops
// the recording it produced. Session invalidation happens asynchronously
// on the teardown queue. Idempotent.
func (r *Recorder) Stop() {
	r.ctl.Lock()
	defer r.ctl.Unlock()

	if !r.state.CompareAndSwap(int32(StateRecording), int32(StateStopping)) {
		return
	}

	r.diagnose()

	if r.sink != nil {
		if err := r.sink.Close(); err != nil {
			r.log.Warnw("closing output file", "error", err)
		}
	}
	r.state.Store(int32(StateIdle))

	session := r.session
	r.queue.Do(func() {
		session.Invalidate()
		r.signalDone()
	})

	s := r.Summary()
	r.log.Infow("recording stopped",
		"path", s.Path,
		"frames", s.Frames,
		"elapsed", s.Elapsed,
		"measured_hz", s.MeasuredRate,
		"mismatch", s.Mismatch,
		"dropped", s.Dropped)
}

// sessionInvalidated runs when the session dies, before hardware
// teardown, whether the recorder stopped it or something external did.
func (r *Recorder) sessionInvalidated() {
	r.Stop()
	r.signalDone()
	if r.onEnded != nil {
		r.onEnded()
	}
}

func (r *Recorder) signalDone() {
	r.doneOnce.Do(func() {
		close(r.done)
	})
}

// Done is closed once the recorder's session has been invalidated (or
// Start failed). The output file is merge-eligible only after it.
func (r *Recorder) Done() <-chan struct{} {
	return r.done
}

// Active reports whether the recorder is currently capturing.
func (r *Recorder) Active() bool {
	s := State(r.state.Load())
	return s == StateStarting || s == StateRecording
}

// Path returns the destination file.
func (r *Recorder) Path() string {
	return r.path
}

// Summary returns the diagnostic counters.
func (r *Recorder) Summary() Summary {
	var elapsed time.Duration
	var measured float64
	first, last := r.firstNanos.Load(), r.lastNanos.Load()
	if first != 0 && last > first {
		elapsed = time.Duration(last - first)
		measured = float64(r.frames.Load()) / elapsed.Seconds()
	}
	return Summary{
		Path:           r.path,
		Frames:         r.frames.Load(),
		Elapsed:        elapsed,
		ConfiguredRate: r.configuredRate,
		MeasuredRate:   measured,
		Mismatch:       r.mismatch.Load(),
		Dropped:        r.dropped.Load(),
	}
}
