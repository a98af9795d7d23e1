// ABOUTME: Audio type package for capture pipelines
// ABOUTME: Provides Format, Buffer and PCM sample conversions
// Package audio defines the core types shared by the capture pipeline:
// stream formats, callback-delivered buffers, and PCM conversions.
//
// Two Format values exist per capture session: the declared format (what
// the hardware reported at tap-creation time) and the resolved format (the
// authoritative one after rate reconciliation). They are allowed to
// diverge; writers must follow the resolved format.
package audio
