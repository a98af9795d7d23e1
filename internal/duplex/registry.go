// ABOUTME: Session registry handing out weak handles to capture sessions
// ABOUTME: Handles outlive their session and report ErrSessionGone after removal
package duplex

import (
	"sync"

	"github.com/tapdeck-io/tapdeck/internal/capture"
	"github.com/tapdeck-io/tapdeck/internal/hostaudio"
	"github.com/tapdeck-io/tapdeck/pkg/audio"
)

// SessionHandle identifies a registered session. Zero is never issued.
type SessionHandle uint64

// Registry owns the live capture sessions. Recorders hold handles into
// it rather than direct session pointers, so a recorder that outlives
// its session sees a gone error instead of touching freed host state.
type Registry struct {
	mu       sync.Mutex
	next     SessionHandle
	sessions map[SessionHandle]capture.Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[SessionHandle]capture.Session)}
}

func (g *Registry) Add(s capture.Session) SessionHandle {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	h := g.next
	g.sessions[h] = s
	return h
}

func (g *Registry) Remove(h SessionHandle) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.sessions, h)
}

// Ref returns a capture.Session view of the handle. The ref stays valid
// forever; once the handle is removed its operations degrade to
// ErrSessionGone / no-ops.
func (g *Registry) Ref(h SessionHandle) capture.Session {
	return &sessionRef{reg: g, handle: h}
}

func (g *Registry) resolve(h SessionHandle) (capture.Session, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.sessions[h]
	return s, ok
}

type sessionRef struct {
	reg    *Registry
	handle SessionHandle
}

func (r *sessionRef) Activate() error {
	s, ok := r.reg.resolve(r.handle)
	if !ok {
		return capture.ErrSessionGone
	}
	return s.Activate()
}

func (r *sessionRef) Run(proc hostaudio.IOProc, onInvalidated func()) error {
	s, ok := r.reg.resolve(r.handle)
	if !ok {
		return capture.ErrSessionGone
	}
	return s.Run(proc, onInvalidated)
}

func (r *sessionRef) Invalidate() {
	if s, ok := r.reg.resolve(r.handle); ok {
		s.Invalidate()
	}
}

func (r *sessionRef) State() capture.State {
	if s, ok := r.reg.resolve(r.handle); ok {
		return s.State()
	}
	return capture.StateInvalidated
}

func (r *sessionRef) Format() audio.Format {
	if s, ok := r.reg.resolve(r.handle); ok {
		return s.Format()
	}
	return audio.Format{}
}
