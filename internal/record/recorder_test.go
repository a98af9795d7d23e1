// ABOUTME: Tests for the stream recorder
// ABOUTME: Rate-mismatch diagnosis, stop races and zero-frame teardown
package record

import (
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/tapdeck-io/tapdeck/internal/capture"
	"github.com/tapdeck-io/tapdeck/internal/hostaudio"
	"github.com/tapdeck-io/tapdeck/internal/wavfile"
)

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// micRecorder wires a recorder to a stub-backed microphone session.
func micRecorder(t *testing.T, host *hostaudio.StubHost, targetRate float64) (*Recorder, *TeardownQueue) {
	t.Helper()

	queue := NewTeardownQueue()
	t.Cleanup(queue.Close)

	session := capture.NewMicSession(host, testLogger())
	path := filepath.Join(t.TempDir(), "mic.wav")
	return New(session, path, targetRate, queue, testLogger()), queue
}

func waitDone(t *testing.T, r *Recorder) {
	t.Helper()
	select {
	case <-r.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("recorder did not finish teardown")
	}
}

func TestMeasuredRateMatchesDelivery(t *testing.T) {
	host := hostaudio.NewStubHost()
	host.InputRate = 48000
	host.DeliveryRate = 48000

	r, _ := micRecorder(t, host, 0)
	if err := r.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Let comfortably more than diagnoseEvery callbacks arrive.
	time.Sleep(400 * time.Millisecond)
	r.Stop()
	waitDone(t, r)

	s := r.Summary()
	if s.Frames == 0 {
		t.Fatal("expected frames to be written")
	}
	ratio := s.MeasuredRate / s.ConfiguredRate
	if math.Abs(ratio-1.0) > 0.05 {
		t.Errorf("expected measured/configured ratio ~1.0, got %v", ratio)
	}
	if s.Mismatch {
		t.Error("matching rates must not be flagged as mismatch")
	}
}

func TestMismatchFlaggedOutsideWindow(t *testing.T) {
	// Frames arrive at 16000/s but the recorder is configured for
	// 48000 Hz: ratio ~0.33, well outside [0.6, 1.6].
	host := hostaudio.NewStubHost()
	host.InputRate = 48000
	host.DeliveryRate = 16000

	r, _ := micRecorder(t, host, 48000)
	if err := r.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	time.Sleep(500 * time.Millisecond)
	r.Stop()
	waitDone(t, r)

	s := r.Summary()
	ratio := s.MeasuredRate / s.ConfiguredRate
	if math.Abs(ratio-16000.0/48000.0) > 0.05 {
		t.Errorf("expected ratio ~0.33, got %v", ratio)
	}
	if !s.Mismatch {
		t.Error("expected critical mismatch to be flagged")
	}
}

func TestMismatchNotFlaggedInsideWindow(t *testing.T) {
	// Ratio ~0.7 is wrong but inside the tolerated window: diagnosed,
	// not flagged.
	host := hostaudio.NewStubHost()
	host.InputRate = 48000
	host.DeliveryRate = 33600

	r, _ := micRecorder(t, host, 48000)
	if err := r.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	time.Sleep(500 * time.Millisecond)
	r.Stop()
	waitDone(t, r)

	if r.Summary().Mismatch {
		t.Error("ratio inside [0.6, 1.6] must not be flagged")
	}
}

func TestTargetRateOverridesSessionRate(t *testing.T) {
	host := hostaudio.NewStubHost()
	host.InputRate = 44100

	r, _ := micRecorder(t, host, 48000)
	if err := r.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	r.Stop()
	waitDone(t, r)

	info, err := wavfile.Probe(r.Path())
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if info.SampleRate != 48000 {
		t.Errorf("expected overridden rate 48000 in file, got %d", info.SampleRate)
	}
}

func TestStopBeforeFirstCallback(t *testing.T) {
	host := hostaudio.NewStubHost()
	host.InputRate = 48000
	host.DeliveryRate = 0 // nothing ever arrives

	r, _ := micRecorder(t, host, 0)
	if err := r.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	r.Stop()
	waitDone(t, r)

	s := r.Summary()
	if s.Frames != 0 || s.MeasuredRate != 0 || s.Elapsed != 0 {
		t.Errorf("expected zeroed summary, got %+v", s)
	}
	if s.Mismatch {
		t.Error("no-frame teardown must not flag a mismatch")
	}

	// The empty file still closes into a valid container.
	info, err := wavfile.Probe(r.Path())
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if info.Duration != 0 {
		t.Errorf("expected zero duration, got %v", info.Duration)
	}
}

func TestStopIsIdempotentAndDiscardsLateFrames(t *testing.T) {
	host := hostaudio.NewStubHost()
	host.InputRate = 48000
	host.DeliveryRate = 48000

	r, _ := micRecorder(t, host, 0)
	if err := r.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	r.Stop()
	frames := r.Summary().Frames

	// Deliveries that race the async teardown must be discarded by the
	// recording guard, not written.
	time.Sleep(100 * time.Millisecond)
	if got := r.Summary().Frames; got != frames {
		t.Errorf("frames written after stop: %d -> %d", frames, got)
	}

	r.Stop()
	waitDone(t, r)
}

func TestRecorderSingleUse(t *testing.T) {
	host := hostaudio.NewStubHost()
	host.InputRate = 48000

	r, _ := micRecorder(t, host, 0)
	if err := r.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	r.Stop()
	waitDone(t, r)

	if err := r.Start(); !errors.Is(err, ErrRecorderUsed) {
		t.Errorf("expected ErrRecorderUsed, got %v", err)
	}
}

func TestStartFailureSurfacesSynchronously(t *testing.T) {
	host := hostaudio.NewStubHost()
	host.NoInputDevice = true

	r, _ := micRecorder(t, host, 0)
	err := r.Start()
	if !errors.Is(err, hostaudio.ErrNoDefaultDevice) {
		t.Fatalf("expected ErrNoDefaultDevice, got %v", err)
	}
	if r.Active() {
		t.Error("failed start must leave the recorder inactive")
	}
	waitDone(t, r)
}

func TestOnEndedFiresWhenSessionDies(t *testing.T) {
	host := hostaudio.NewStubHost()
	host.InputRate = 48000
	host.DeliveryRate = 48000

	queue := NewTeardownQueue()
	t.Cleanup(queue.Close)

	session := capture.NewMicSession(host, testLogger())
	r := New(session, filepath.Join(t.TempDir(), "mic.wav"), 0, queue, testLogger())

	ended := make(chan struct{})
	r.OnEnded(func() { close(ended) })

	if err := r.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	// Something external tears the session down.
	session.Invalidate()

	select {
	case <-ended:
	case <-time.After(time.Second):
		t.Fatal("OnEnded did not fire")
	}
	if r.Active() {
		t.Error("recorder must not stay active after its session dies")
	}
	waitDone(t, r)
}

// gatedSession delays Activate until released, letting a test hold a
// Start mid-flight while poking the recorder from another goroutine.
type gatedSession struct {
	capture.Session
	entered chan struct{}
	gate    chan struct{}
	once    sync.Once
}

func (g *gatedSession) Activate() error {
	g.once.Do(func() { close(g.entered) })
	<-g.gate
	return g.Session.Activate()
}

func TestStopDuringStartWaitsForStart(t *testing.T) {
	host := hostaudio.NewStubHost()
	host.InputRate = 48000
	host.DeliveryRate = 48000

	queue := NewTeardownQueue()
	t.Cleanup(queue.Close)

	session := &gatedSession{
		Session: capture.NewMicSession(host, testLogger()),
		entered: make(chan struct{}),
		gate:    make(chan struct{}),
	}
	path := filepath.Join(t.TempDir(), "mic.wav")
	r := New(session, path, 0, queue, testLogger())

	startErr := make(chan error, 1)
	go func() { startErr <- r.Start() }()

	select {
	case <-session.entered:
	case <-time.After(time.Second):
		t.Fatal("start never reached the session")
	}

	// Stop while Start is blocked inside Activate. It must wait for
	// Start to finish instead of tearing down a half-built recorder.
	stopped := make(chan struct{})
	go func() {
		r.Stop()
		close(stopped)
	}()
	time.Sleep(50 * time.Millisecond)
	close(session.gate)

	if err := <-startErr; err != nil {
		t.Fatalf("start: %v", err)
	}
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not complete after start finished")
	}
	waitDone(t, r)

	if r.Active() {
		t.Error("recorder still active after stop")
	}
	if _, err := wavfile.Probe(path); err != nil {
		t.Errorf("output not finalized: %v", err)
	}
}

func TestStopBeforeStartIsNoOp(t *testing.T) {
	host := hostaudio.NewStubHost()
	host.InputRate = 48000
	host.DeliveryRate = 48000

	r, _ := micRecorder(t, host, 0)

	r.Stop()

	if err := r.Start(); err != nil {
		t.Fatalf("start after premature stop: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	r.Stop()
	waitDone(t, r)

	if s := r.Summary(); s.Frames == 0 {
		t.Error("expected frames after the real start/stop cycle")
	}
}

func TestTeardownQueueRunsInOrder(t *testing.T) {
	q := NewTeardownQueue()

	var order []int
	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		i := i
		q.Do(func() { order = append(order, i) })
	}
	q.Do(func() { close(done) })

	<-done
	q.Close()

	for i, v := range order {
		if v != i {
			t.Fatalf("expected serial order, got %v", order)
		}
	}
}
