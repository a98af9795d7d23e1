// ABOUTME: CaptureSession lifecycle states and the Session interface
// ABOUTME: Shared contract for the system-audio tap and the microphone listener
package capture

import (
	"errors"

	"github.com/tapdeck-io/tapdeck/internal/hostaudio"
	"github.com/tapdeck-io/tapdeck/pkg/audio"
)

// State is a capture session's lifecycle position. Transitions only move
// forward; Invalidated is terminal.
type State int32

const (
	StateCreated State = iota
	StateActivated
	StateRunning
	StateInvalidated
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateActivated:
		return "activated"
	case StateRunning:
		return "running"
	case StateInvalidated:
		return "invalidated"
	}
	return "unknown"
}

// ErrFormatConstruction means no positive sample rate could be resolved
// for a session, so no output stream format can be built.
var ErrFormatConstruction = errors.New("could not construct stream format")

// ErrSessionGone means a session handle no longer resolves to a live
// session.
var ErrSessionGone = errors.New("capture session no longer exists")

// Session is one live audio stream with an owned hardware lifecycle.
//
// Activate is idempotent and never panics: on internal failure it records
// the error, leaves the session inert, and returns that same error from
// every subsequent call. Run registers the frame callback and starts I/O;
// calling it without a successful Activate, or twice per activation, is a
// programmer error and panics. Invalidate is idempotent, invokes the
// handler registered by Run exactly once before hardware teardown, and is
// safe to call at any point.
type Session interface {
	Activate() error
	Run(proc hostaudio.IOProc, onInvalidated func()) error
	Invalidate()
	State() State
	Format() audio.Format
}
