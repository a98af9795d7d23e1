// ABOUTME: Dual-capture coordination of system audio and microphone
// ABOUTME: Permission-gated paired start/stop and post-stop merging
// Package duplex supervises the two stream recorders that make up one
// user-visible recording. Both start together and stop together: a
// partial permission grant starts neither, and either stream ending
// stops both. After stop, the two output files are merged into a single
// deliverable when configuration asks for it.
package duplex
