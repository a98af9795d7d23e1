// ABOUTME: Host capability interface for the OS audio layer
// ABOUTME: Endpoint handles, status codes, tap/aggregate descriptions and I/O procs
package hostaudio

import (
	"fmt"

	"github.com/tapdeck-io/tapdeck/pkg/audio"
)

// Status is a hardware-layer result code. Zero means success; any other
// value is a recoverable failure the caller maps to an error.
type Status int32

const (
	StatusOK                  Status = 0
	StatusNoDevice            Status = 1
	StatusPropertyUnavailable Status = 2
	StatusInvalidEndpoint     Status = 3
	StatusCreateFailed        Status = 4
	StatusStartFailed         Status = 5
	StatusStopFailed          Status = 6
	StatusUnsupported         Status = 7
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNoDevice:
		return "no device"
	case StatusPropertyUnavailable:
		return "property unavailable"
	case StatusInvalidEndpoint:
		return "invalid endpoint"
	case StatusCreateFailed:
		return "create failed"
	case StatusStartFailed:
		return "start failed"
	case StatusStopFailed:
		return "stop failed"
	case StatusUnsupported:
		return "unsupported"
	}
	return fmt.Sprintf("status(%d)", int32(s))
}

// EndpointRef is an opaque handle to a hardware or software audio object
// (device, tap, aggregate device, I/O proc registration). The zero value is
// never a valid endpoint.
type EndpointRef int32

// InvalidEndpoint is the canonical not-an-endpoint value.
const InvalidEndpoint EndpointRef = 0

// IsValid reports whether the handle refers to an object at all. It does
// not guarantee the object still exists on the host.
func (e EndpointRef) IsValid() bool {
	return e != InvalidEndpoint
}

// SourceKind discriminates what a capture is aimed at.
type SourceKind int

const (
	// KindSystemMix captures the machine-wide output mix.
	KindSystemMix SourceKind = iota
	// KindProcess captures a single audio-producing process.
	KindProcess
)

// SourceDescriptor identifies an audio-producing entity.
type SourceDescriptor struct {
	Kind        SourceKind
	PID         int32
	Name        string
	BundleID    string
	AudioActive bool
}

// SystemMix returns the descriptor for the machine-wide output mix.
func SystemMix() SourceDescriptor {
	return SourceDescriptor{Kind: KindSystemMix, Name: "system mix", AudioActive: true}
}

func (s SourceDescriptor) String() string {
	if s.Kind == KindSystemMix {
		return "system mix"
	}
	return fmt.Sprintf("%s (pid %d)", s.Name, s.PID)
}

// TapDescription requests the creation of a system-level tap over a set of
// sources. Sources must be non-empty; the hardware layer rejects taps with
// zero members.
type TapDescription struct {
	Sources         []SourceDescriptor
	MuteWhileTapped bool
}

// AggregateDescription requests a virtual aggregate capture device built on
// top of a real output device (so it inherits a real clock) with a tap as
// its sole input member.
type AggregateDescription struct {
	UID               string
	MainSubDeviceUID  string
	Tap               EndpointRef
	DriftCompensation bool
	AutoStart         bool
	Private           bool
	Stacked           bool
}

// IOProc is a frame-delivery callback. It runs on the hardware callback
// thread at real-time priority and must not block.
type IOProc func(buf audio.Buffer)

// Host is the OS audio layer. Implementations own the native objects the
// returned endpoints refer to; callers own the endpoints themselves and
// must destroy what they create.
type Host interface {
	// Device queries.
	DefaultOutputEndpoint() (EndpointRef, Status)
	DefaultInputEndpoint() (EndpointRef, Status)
	EndpointUID(device EndpointRef) (string, Status)
	NominalSampleRate(device EndpointRef) (float64, Status)
	ActualSampleRate(device EndpointRef) (float64, Status)
	BufferFrameSize(device EndpointRef) (uint32, Status)
	StreamFormat(endpoint EndpointRef) (audio.Format, Status)
	AudioSessions() ([]SourceDescriptor, Status)

	// Tap and aggregate lifecycle.
	CreateTap(desc TapDescription) (EndpointRef, Status)
	DestroyTap(tap EndpointRef) Status
	CreateAggregate(desc AggregateDescription) (EndpointRef, Status)
	DestroyAggregate(aggregate EndpointRef) Status

	// I/O proc registration and device start/stop.
	CreateIOProc(device EndpointRef, proc IOProc) (EndpointRef, Status)
	DestroyIOProc(device, proc EndpointRef) Status
	StartDevice(device, proc EndpointRef) Status
	StopDevice(device, proc EndpointRef) Status

	// Close releases the host context itself.
	Close() error
}
