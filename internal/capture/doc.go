// ABOUTME: Capture session layer: system-audio tap and microphone sessions
// ABOUTME: Owns hardware lifecycles and authoritative sample-rate resolution
// Package capture creates and owns live capture sessions. A Tap binds a
// system-level audio tap to a virtual aggregate capture device built on
// the real output device, so the capture stream inherits a real clock. A
// MicSession listens on the default input device.
//
// Both follow the same lifecycle: Created -> Activated -> Running ->
// Invalidated. Invalidated is terminal; construct a new session to record
// again.
package capture
