// ABOUTME: Error taxonomy for the capture core
// ABOUTME: Sentinels for absent values, StatusError for hardware-layer failures
package hostaudio

import (
	"errors"
	"fmt"
)

var (
	// ErrNoDefaultDevice means the host has no default device of the
	// requested direction.
	ErrNoDefaultDevice = errors.New("no default audio device")

	// ErrPropertyUnavailable means a device property is legitimately
	// absent. Callers treat it as "value absent", not as a failure.
	ErrPropertyUnavailable = errors.New("device property unavailable")

	// ErrNoCapturableSources means tap setup found nothing to capture even
	// after falling back to the unfiltered source list.
	ErrNoCapturableSources = errors.New("no capturable audio sources")

	// ErrPermissionDenied means a required capture authorization was not
	// granted.
	ErrPermissionDenied = errors.New("capture permission denied")
)

// StatusError carries a non-zero hardware status for a named operation.
type StatusError struct {
	Op   string
	Code Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s (code %d)", e.Op, e.Code, int32(e.Code))
}

// StatusErr maps a status to an error: nil for StatusOK, the matching
// sentinel where one exists, a StatusError otherwise.
func StatusErr(op string, s Status) error {
	switch s {
	case StatusOK:
		return nil
	case StatusNoDevice:
		return fmt.Errorf("%s: %w", op, ErrNoDefaultDevice)
	case StatusPropertyUnavailable:
		return fmt.Errorf("%s: %w", op, ErrPropertyUnavailable)
	}
	return &StatusError{Op: op, Code: s}
}
