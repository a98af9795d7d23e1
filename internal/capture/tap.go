// ABOUTME: System-audio capture tap bound to a virtual aggregate device
// ABOUTME: Owns tap and aggregate handles through activate/run/invalidate
package capture

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/thoas/go-funk"
	"go.uber.org/zap"

	"github.com/tapdeck-io/tapdeck/internal/hostaudio"
	"github.com/tapdeck-io/tapdeck/pkg/audio"
)

// Tap captures the system audio mix (or a single process) through a
// hardware tap exposed as a virtual aggregate capture device. It
// exclusively owns the tap and aggregate handles it creates.
type Tap struct {
	host   hostaudio.Host
	dir    *hostaudio.Directory
	log    *zap.SugaredLogger
	source hostaudio.SourceDescriptor
	mute   bool

	mu            sync.Mutex
	state         State
	setupErr      error
	output        hostaudio.EndpointRef
	tap           hostaudio.EndpointRef
	aggregate     hostaudio.EndpointRef
	ioProc        hostaudio.EndpointRef
	declared      audio.Format
	resolved      audio.Format
	onInvalidated func()
	ranOnce       bool
}

// NewTap prepares an inactive tap for the given source. mute selects the
// mute-while-tapped hardware policy: true silences the tapped sources on
// the real output while capturing.
func NewTap(host hostaudio.Host, source hostaudio.SourceDescriptor, mute bool, logger *zap.SugaredLogger) *Tap {
	return &Tap{
		host:   host,
		dir:    hostaudio.NewDirectory(host),
		log:    logger.Named("tap"),
		source: source,
		mute:   mute,
		state:  StateCreated,
	}
}

// Activate performs tap and aggregate setup. It is idempotent: the first
// call does the work, later calls return the recorded outcome. A failed
// activation leaves the tap inert with no hardware objects alive.
func (t *Tap) Activate() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == StateInvalidated {
		return ErrSessionGone
	}
	if t.state != StateCreated {
		return nil
	}
	if t.setupErr != nil {
		return t.setupErr
	}

	if err := t.setupLocked(); err != nil {
		t.setupErr = err
		t.teardownLocked()
		t.log.Errorw("tap activation failed", "error", err)
		return err
	}

	t.state = StateActivated
	return nil
}

func (t *Tap) setupLocked() error {
	// The aggregate must be built on the real output device so it
	// inherits a real clock.
	output, err := t.dir.DefaultOutputEndpoint()
	if err != nil {
		return err
	}
	t.output = output

	outputUID, s := t.host.EndpointUID(output)
	if err := hostaudio.StatusErr("output device uid", s); err != nil {
		return err
	}

	sources, err := t.resolveSources()
	if err != nil {
		return err
	}

	tapRef, s := t.host.CreateTap(hostaudio.TapDescription{
		Sources:         sources,
		MuteWhileTapped: t.mute,
	})
	if err := hostaudio.StatusErr("create tap", s); err != nil {
		return err
	}
	t.tap = tapRef

	declared, s := t.host.StreamFormat(tapRef)
	if s != hostaudio.StatusOK {
		t.log.Warnw("tap reports no stream format", "status", s.String())
	}
	t.declared = declared

	aggRef, s := t.host.CreateAggregate(hostaudio.AggregateDescription{
		UID:               "tapdeck-aggregate-" + uuid.NewString(),
		MainSubDeviceUID:  outputUID,
		Tap:               tapRef,
		DriftCompensation: true,
		AutoStart:         true,
		Private:           true,
		Stacked:           false,
	})
	if err := hostaudio.StatusErr("create aggregate", s); err != nil {
		return err
	}
	t.aggregate = aggRef

	rate := ResolveSampleRate(t.dir, declared, aggRef, output, t.log)
	if rate <= 0 {
		return fmt.Errorf("%w: no positive sample rate for tap", ErrFormatConstruction)
	}

	t.resolved = declared
	t.resolved.SampleRate = rate
	if t.resolved.Channels == 0 {
		t.resolved.Channels = 2
	}
	if t.resolved.BitDepth == 0 {
		t.resolved.BitDepth = 16
	}
	t.resolved.Interleaved = true

	t.log.Infow("tap activated",
		"sources", len(sources),
		"declared_hz", declared.SampleRate,
		"resolved_hz", rate,
		"channels", t.resolved.Channels)
	return nil
}

// resolveSources gathers the tap member set. For the system mix it
// prefers the audio-active sources; when none are active it falls back to
// the unfiltered list, because the hardware layer rejects taps with zero
// members. The fallback is a deliberate heuristic carried over unchanged.
func (t *Tap) resolveSources() ([]hostaudio.SourceDescriptor, error) {
	if t.source.Kind != hostaudio.KindSystemMix {
		return []hostaudio.SourceDescriptor{t.source}, nil
	}

	all, err := t.dir.ActiveAudioSources()
	if err != nil {
		return nil, err
	}

	active := funk.Filter(all, func(sd hostaudio.SourceDescriptor) bool {
		return sd.AudioActive
	}).([]hostaudio.SourceDescriptor)

	sources := active
	if len(sources) == 0 {
		t.log.Debugw("no audio-active sources, tapping full list", "total", len(all))
		sources = all
	}
	if len(sources) == 0 {
		return nil, hostaudio.ErrNoCapturableSources
	}
	return sources, nil
}

// Run registers the frame callback and starts the aggregate device's I/O.
// Precondition: Activate succeeded and Run has not been called for this
// activation; violating either is a programmer error.
func (t *Tap) Run(proc hostaudio.IOProc, onInvalidated func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateActivated || t.setupErr != nil {
		panic(fmt.Sprintf("capture: Run on tap in state %s (setup error: %v)", t.state, t.setupErr))
	}
	if t.ranOnce {
		panic("capture: second Run without Invalidate")
	}
	t.ranOnce = true

	procRef, s := t.host.CreateIOProc(t.aggregate, proc)
	if err := hostaudio.StatusErr("create io proc", s); err != nil {
		return err
	}
	t.ioProc = procRef

	if s := t.host.StartDevice(t.aggregate, procRef); s != hostaudio.StatusOK {
		if ds := t.host.DestroyIOProc(t.aggregate, procRef); ds != hostaudio.StatusOK {
			t.log.Warnw("io proc cleanup after failed start", "status", ds.String())
		}
		t.ioProc = hostaudio.InvalidEndpoint
		t.ranOnce = false
		return hostaudio.StatusErr("start device", s)
	}

	t.onInvalidated = onInvalidated
	t.state = StateRunning
	return nil
}

// Invalidate tears everything down: stop I/O, destroy the I/O proc, the
// aggregate device, then the tap. Idempotent; individual teardown errors
// are logged, never surfaced, so partial teardown cannot prevent exit.
// The invalidation handler fires exactly once, before hardware teardown.
func (t *Tap) Invalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == StateInvalidated {
		return
	}

	if t.onInvalidated != nil {
		handler := t.onInvalidated
		t.onInvalidated = nil
		handler()
	}

	t.teardownLocked()
	t.state = StateInvalidated
}

func (t *Tap) teardownLocked() {
	if t.ioProc.IsValid() {
		if s := t.host.StopDevice(t.aggregate, t.ioProc); s != hostaudio.StatusOK {
			t.log.Warnw("stop device during teardown", "status", s.String())
		}
		if s := t.host.DestroyIOProc(t.aggregate, t.ioProc); s != hostaudio.StatusOK {
			t.log.Warnw("destroy io proc during teardown", "status", s.String())
		}
		t.ioProc = hostaudio.InvalidEndpoint
	}
	if t.aggregate.IsValid() {
		if s := t.host.DestroyAggregate(t.aggregate); s != hostaudio.StatusOK {
			t.log.Warnw("destroy aggregate during teardown", "status", s.String())
		}
		t.aggregate = hostaudio.InvalidEndpoint
	}
	if t.tap.IsValid() {
		if s := t.host.DestroyTap(t.tap); s != hostaudio.StatusOK {
			t.log.Warnw("destroy tap during teardown", "status", s.String())
		}
		t.tap = hostaudio.InvalidEndpoint
	}
}

// State returns the lifecycle position.
func (t *Tap) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Format returns the resolved stream format. The resolved rate is
// authoritative over the declared one for all downstream writing.
func (t *Tap) Format() audio.Format {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resolved
}

// DeclaredFormat returns what the hardware reported at tap-creation time.
func (t *Tap) DeclaredFormat() audio.Format {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.declared
}
