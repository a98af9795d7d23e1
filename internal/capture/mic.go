// ABOUTME: Microphone capture session on the default input device
// ABOUTME: Same lifecycle as Tap without the tap/aggregate construction
package capture

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/tapdeck-io/tapdeck/internal/hostaudio"
	"github.com/tapdeck-io/tapdeck/pkg/audio"
)

// MicSession is the dedicated input-device listener for microphone
// capture. It owns its I/O proc registration but not the input device
// itself.
type MicSession struct {
	host hostaudio.Host
	dir  *hostaudio.Directory
	log  *zap.SugaredLogger

	mu            sync.Mutex
	state         State
	setupErr      error
	input         hostaudio.EndpointRef
	ioProc        hostaudio.EndpointRef
	declared      audio.Format
	resolved      audio.Format
	onInvalidated func()
	ranOnce       bool
}

// NewMicSession prepares an inactive microphone session.
func NewMicSession(host hostaudio.Host, logger *zap.SugaredLogger) *MicSession {
	return &MicSession{
		host:  host,
		dir:   hostaudio.NewDirectory(host),
		log:   logger.Named("mic"),
		state: StateCreated,
	}
}

// Activate resolves the default input device and its stream format.
// Idempotent; a failure is recorded and returned from every later call.
func (m *MicSession) Activate() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateInvalidated {
		return ErrSessionGone
	}
	if m.state != StateCreated {
		return nil
	}
	if m.setupErr != nil {
		return m.setupErr
	}

	if err := m.setupLocked(); err != nil {
		m.setupErr = err
		m.log.Errorw("microphone activation failed", "error", err)
		return err
	}
	m.state = StateActivated
	return nil
}

func (m *MicSession) setupLocked() error {
	input, err := m.dir.DefaultInputEndpoint()
	if err != nil {
		return err
	}
	m.input = input

	declared, s := m.host.StreamFormat(input)
	if s != hostaudio.StatusOK {
		m.log.Warnw("input device reports no stream format", "status", s.String())
	}
	m.declared = declared

	rate := resolveInputRate(m.dir, declared, input, m.log)
	if rate <= 0 {
		return fmt.Errorf("%w: no positive sample rate for input device", ErrFormatConstruction)
	}

	m.resolved = declared
	m.resolved.SampleRate = rate
	if m.resolved.Channels == 0 {
		m.resolved.Channels = 1
	}
	if m.resolved.BitDepth == 0 {
		m.resolved.BitDepth = 16
	}
	m.resolved.Interleaved = true

	m.log.Infow("microphone activated", "resolved_hz", rate, "channels", m.resolved.Channels)
	return nil
}

// Run registers the frame callback and starts input I/O. Preconditions as
// for Tap.Run.
func (m *MicSession) Run(proc hostaudio.IOProc, onInvalidated func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateActivated || m.setupErr != nil {
		panic(fmt.Sprintf("capture: Run on mic session in state %s (setup error: %v)", m.state, m.setupErr))
	}
	if m.ranOnce {
		panic("capture: second Run without Invalidate")
	}
	m.ranOnce = true

	procRef, s := m.host.CreateIOProc(m.input, proc)
	if err := hostaudio.StatusErr("create io proc", s); err != nil {
		return err
	}
	m.ioProc = procRef

	if s := m.host.StartDevice(m.input, procRef); s != hostaudio.StatusOK {
		if ds := m.host.DestroyIOProc(m.input, procRef); ds != hostaudio.StatusOK {
			m.log.Warnw("io proc cleanup after failed start", "status", ds.String())
		}
		m.ioProc = hostaudio.InvalidEndpoint
		m.ranOnce = false
		return hostaudio.StatusErr("start device", s)
	}

	m.onInvalidated = onInvalidated
	m.state = StateRunning
	return nil
}

// Invalidate stops input I/O and releases the registration. Idempotent;
// the handler fires once before teardown; errors are logged only.
func (m *MicSession) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateInvalidated {
		return
	}

	if m.onInvalidated != nil {
		handler := m.onInvalidated
		m.onInvalidated = nil
		handler()
	}

	if m.ioProc.IsValid() {
		if s := m.host.StopDevice(m.input, m.ioProc); s != hostaudio.StatusOK {
			m.log.Warnw("stop input device during teardown", "status", s.String())
		}
		if s := m.host.DestroyIOProc(m.input, m.ioProc); s != hostaudio.StatusOK {
			m.log.Warnw("destroy io proc during teardown", "status", s.String())
		}
		m.ioProc = hostaudio.InvalidEndpoint
	}
	m.state = StateInvalidated
}

// State returns the lifecycle position.
func (m *MicSession) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Format returns the resolved input stream format.
func (m *MicSession) Format() audio.Format {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolved
}
