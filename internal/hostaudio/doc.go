// ABOUTME: Host audio capability layer
// ABOUTME: Defines the device/OS audio interface, endpoint handles and status codes
// Package hostaudio isolates the OS audio layer behind a capability
// interface. Every operation returns a Status; any non-zero status is a
// recoverable error for the caller to map, never a process-fatal
// condition.
//
// Endpoints are opaque integer handles. The package never caches device
// state: callers re-query if the default device may have changed between
// calls.
package hostaudio
