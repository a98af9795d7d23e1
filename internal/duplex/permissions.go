// ABOUTME: Capture permission authorizer abstraction and implementations
// ABOUTME: Probes host endpoints to resolve microphone and system audio access
package duplex

import (
	"context"

	"go.uber.org/zap"

	"github.com/tapdeck-io/tapdeck/internal/hostaudio"
)

// Authorizer answers whether the process may capture each stream kind.
// Implementations may block while the operating system shows a consent
// prompt, so both methods take a context.
type Authorizer interface {
	RequestMicrophoneAccess(ctx context.Context) bool
	RequestSystemAudioAccess(ctx context.Context) bool
}

// HostAuthorizer resolves access by probing the host for usable
// endpoints. Opening the capture device later is what actually triggers
// the OS consent dialog on platforms that have one; this probe catches
// the cases where no device exists at all, so a recording attempt can
// be refused before any file is created.
type HostAuthorizer struct {
	host hostaudio.Host
	log  *zap.SugaredLogger
}

func NewHostAuthorizer(h hostaudio.Host, log *zap.SugaredLogger) *HostAuthorizer {
	return &HostAuthorizer{host: h, log: log.Named("authorizer")}
}

func (a *HostAuthorizer) RequestMicrophoneAccess(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	ep, s := a.host.DefaultInputEndpoint()
	if s != hostaudio.StatusOK || !ep.IsValid() {
		a.log.Warnw("microphone access unavailable", "status", s)
		return false
	}
	return true
}

func (a *HostAuthorizer) RequestSystemAudioAccess(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	ep, s := a.host.DefaultOutputEndpoint()
	if s != hostaudio.StatusOK || !ep.IsValid() {
		a.log.Warnw("system audio access unavailable", "status", s)
		return false
	}
	return true
}

// StaticAuthorizer returns fixed answers. Used by tests and by the CLI
// --assume-permissions escape hatch.
type StaticAuthorizer struct {
	Microphone  bool
	SystemAudio bool
}

func (a StaticAuthorizer) RequestMicrophoneAccess(context.Context) bool  { return a.Microphone }
func (a StaticAuthorizer) RequestSystemAudioAccess(context.Context) bool { return a.SystemAudio }
