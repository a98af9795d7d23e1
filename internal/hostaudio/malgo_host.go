// ABOUTME: Malgo-backed Host implementation using miniaudio
// ABOUTME: Loopback devices realize taps, capture devices realize microphone input
package hostaudio

import (
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tapdeck-io/tapdeck/pkg/audio"
)

// Options tune the malgo host. Zero values select the defaults.
type Options struct {
	PreferredRate float64 // capture rate requested from miniaudio (default 48000)
	Channels      int     // capture channel count (default 2)
	PeriodFrames  uint32  // I/O period size in frames (default 480, 10ms at 48k)
}

func (o Options) withDefaults() Options {
	if o.PreferredRate <= 0 {
		o.PreferredRate = 48000
	}
	if o.Channels <= 0 {
		o.Channels = 2
	}
	if o.PeriodFrames == 0 {
		o.PeriodFrames = 480
	}
	return o
}

type endpointKind int

const (
	epOutputDevice endpointKind = iota
	epInputDevice
	epTap
	epAggregate
	epIOProc
)

type malgoEndpoint struct {
	kind   endpointKind
	uid    string
	id     malgo.DeviceID
	hasID  bool
	format audio.Format
	tap    TapDescription
	agg    AggregateDescription
	device *malgo.Device
	proc   IOProc
}

// MalgoHost implements Host on top of miniaudio. A tap becomes a loopback
// capture of the output mix; the aggregate device is the malgo device that
// exposes that loopback as an input stream. Microphone capture opens the
// default capture device directly.
type MalgoHost struct {
	log  *zap.SugaredLogger
	ctx  *malgo.AllocatedContext
	opts Options

	mu        sync.Mutex
	next      EndpointRef
	endpoints map[EndpointRef]*malgoEndpoint
}

// NewMalgoHost initializes the miniaudio context.
func NewMalgoHost(logger *zap.SugaredLogger, opts Options) (*MalgoHost, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("initialize miniaudio context: %w", err)
	}

	return &MalgoHost{
		log:       logger.Named("malgo_host"),
		ctx:       ctx,
		opts:      opts.withDefaults(),
		endpoints: make(map[EndpointRef]*malgoEndpoint),
	}, nil
}

func (h *MalgoHost) register(ep *malgoEndpoint) EndpointRef {
	h.next++
	ref := h.next
	h.endpoints[ref] = ep
	return ref
}

func (h *MalgoHost) lookup(ref EndpointRef, kinds ...endpointKind) (*malgoEndpoint, bool) {
	ep, ok := h.endpoints[ref]
	if !ok {
		return nil, false
	}
	for _, k := range kinds {
		if ep.kind == k {
			return ep, true
		}
	}
	return nil, false
}

func (h *MalgoHost) defaultDevice(kind malgo.DeviceType, epKind endpointKind) (EndpointRef, Status) {
	infos, err := h.ctx.Devices(kind)
	if err != nil || len(infos) == 0 {
		return InvalidEndpoint, StatusNoDevice
	}

	chosen := infos[0]
	for _, info := range infos {
		if info.IsDefault != 0 {
			chosen = info
			break
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	ref := h.register(&malgoEndpoint{
		kind:  epKind,
		uid:   chosen.Name(),
		id:    chosen.ID,
		hasID: true,
	})
	return ref, StatusOK
}

// DefaultOutputEndpoint resolves the default playback device.
func (h *MalgoHost) DefaultOutputEndpoint() (EndpointRef, Status) {
	return h.defaultDevice(malgo.Playback, epOutputDevice)
}

// DefaultInputEndpoint resolves the default capture device.
func (h *MalgoHost) DefaultInputEndpoint() (EndpointRef, Status) {
	ref, s := h.defaultDevice(malgo.Capture, epInputDevice)
	if s != StatusOK {
		return ref, s
	}
	h.mu.Lock()
	h.endpoints[ref].format = h.captureFormat()
	h.mu.Unlock()
	return ref, s
}

func (h *MalgoHost) captureFormat() audio.Format {
	return audio.Format{
		SampleRate:  h.opts.PreferredRate,
		Channels:    h.opts.Channels,
		BitDepth:    16,
		Interleaved: true,
	}
}

// EndpointUID returns a stable identifier string for a device endpoint.
func (h *MalgoHost) EndpointUID(device EndpointRef) (string, Status) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ep, ok := h.endpoints[device]
	if !ok {
		return "", StatusInvalidEndpoint
	}
	return ep.uid, StatusOK
}

// NominalSampleRate reports the configured rate where one is known.
// Raw playback/capture devices do not expose one through miniaudio, so the
// property is unavailable for them; taps and aggregates report the rate
// the capture stream was configured with.
func (h *MalgoHost) NominalSampleRate(device EndpointRef) (float64, Status) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ep, ok := h.endpoints[device]
	if !ok {
		return 0, StatusInvalidEndpoint
	}
	if ep.format.SampleRate <= 0 {
		return 0, StatusPropertyUnavailable
	}
	return ep.format.SampleRate, StatusOK
}

// ActualSampleRate is never measurable through miniaudio.
func (h *MalgoHost) ActualSampleRate(device EndpointRef) (float64, Status) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.endpoints[device]; !ok {
		return 0, StatusInvalidEndpoint
	}
	return 0, StatusPropertyUnavailable
}

// BufferFrameSize reports the configured I/O period for endpoints that own
// a running device.
func (h *MalgoHost) BufferFrameSize(device EndpointRef) (uint32, Status) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ep, ok := h.endpoints[device]
	if !ok {
		return 0, StatusInvalidEndpoint
	}
	if ep.kind == epAggregate || ep.kind == epInputDevice {
		return h.opts.PeriodFrames, StatusOK
	}
	return 0, StatusPropertyUnavailable
}

// StreamFormat returns the format an endpoint delivers.
func (h *MalgoHost) StreamFormat(endpoint EndpointRef) (audio.Format, Status) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ep, ok := h.endpoints[endpoint]
	if !ok {
		return audio.Format{}, StatusInvalidEndpoint
	}
	if !ep.format.Valid() {
		return audio.Format{}, StatusPropertyUnavailable
	}
	return ep.format, StatusOK
}

// AudioSessions enumerates audio-producing processes.
func (h *MalgoHost) AudioSessions() ([]SourceDescriptor, Status) {
	return enumerateProcessSources(), StatusOK
}

// CreateTap registers a tap over the given sources. The loopback backend
// captures the whole output mix regardless of the member set; per-source
// muting is not available, so a mute request is honored by logging only.
func (h *MalgoHost) CreateTap(desc TapDescription) (EndpointRef, Status) {
	if len(desc.Sources) == 0 {
		return InvalidEndpoint, StatusCreateFailed
	}
	if desc.MuteWhileTapped {
		h.log.Warnw("mute-while-tapped not supported by loopback capture, leaving sources audible")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	ref := h.register(&malgoEndpoint{
		kind:   epTap,
		uid:    "tap-" + uuid.NewString(),
		tap:    desc,
		format: h.captureFormat(),
	})
	h.log.Debugw("tap created", "sources", len(desc.Sources))
	return ref, StatusOK
}

// DestroyTap releases a tap endpoint.
func (h *MalgoHost) DestroyTap(tap EndpointRef) Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.lookup(tap, epTap); !ok {
		return StatusInvalidEndpoint
	}
	delete(h.endpoints, tap)
	return StatusOK
}

// CreateAggregate registers the virtual capture device that exposes a tap
// as an input stream. The native loopback device is allocated lazily at
// CreateIOProc time, mirroring auto-start semantics.
func (h *MalgoHost) CreateAggregate(desc AggregateDescription) (EndpointRef, Status) {
	h.mu.Lock()
	defer h.mu.Unlock()

	tapEP, ok := h.lookup(desc.Tap, epTap)
	if !ok {
		return InvalidEndpoint, StatusCreateFailed
	}

	if desc.UID == "" {
		desc.UID = "aggregate-" + uuid.NewString()
	}
	ref := h.register(&malgoEndpoint{
		kind:   epAggregate,
		uid:    desc.UID,
		agg:    desc,
		format: tapEP.format,
	})
	h.log.Debugw("aggregate created", "uid", desc.UID, "main_sub_device", desc.MainSubDeviceUID)
	return ref, StatusOK
}

// DestroyAggregate tears down the aggregate and any device still attached.
func (h *MalgoHost) DestroyAggregate(aggregate EndpointRef) Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	ep, ok := h.lookup(aggregate, epAggregate)
	if !ok {
		return StatusInvalidEndpoint
	}
	if ep.device != nil {
		ep.device.Uninit()
		ep.device = nil
	}
	delete(h.endpoints, aggregate)
	return StatusOK
}

// CreateIOProc allocates the native miniaudio device for an aggregate or
// input endpoint and registers the frame-delivery callback on it.
func (h *MalgoHost) CreateIOProc(device EndpointRef, proc IOProc) (EndpointRef, Status) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ep, ok := h.lookup(device, epAggregate, epInputDevice)
	if !ok {
		return InvalidEndpoint, StatusInvalidEndpoint
	}
	if ep.device != nil {
		return InvalidEndpoint, StatusCreateFailed
	}

	deviceType := malgo.Capture
	if ep.kind == epAggregate {
		deviceType = malgo.Loopback
	}

	format := ep.format
	deviceConfig := malgo.DefaultDeviceConfig(deviceType)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(format.Channels)
	deviceConfig.SampleRate = uint32(format.SampleRate)
	deviceConfig.PeriodSizeInFrames = h.opts.PeriodFrames
	deviceConfig.Alsa.NoMMap = 1
	if ep.kind == epInputDevice && ep.hasID {
		deviceConfig.Capture.DeviceID = ep.id.Pointer()
	}

	bytesPerFrame := format.BytesPerFrame()
	onData := func(pOutputSamples, pInputSamples []byte, frameCount uint32) {
		if frameCount == 0 || len(pInputSamples) == 0 {
			return
		}
		proc(audio.Buffer{
			Data:       pInputSamples[:int(frameCount)*bytesPerFrame],
			FrameCount: int(frameCount),
			Format:     format,
			Arrival:    time.Now(),
		})
	}

	dev, err := malgo.InitDevice(h.ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onData})
	if err != nil {
		h.log.Warnw("device init failed", "error", err, "kind", int(ep.kind))
		return InvalidEndpoint, StatusCreateFailed
	}

	ep.device = dev
	ep.proc = proc
	procRef := h.register(&malgoEndpoint{kind: epIOProc, uid: "ioproc-" + ep.uid})
	return procRef, StatusOK
}

// DestroyIOProc releases the native device backing a registration.
func (h *MalgoHost) DestroyIOProc(device, proc EndpointRef) Status {
	h.mu.Lock()
	defer h.mu.Unlock()

	ep, ok := h.lookup(device, epAggregate, epInputDevice)
	if !ok {
		return StatusInvalidEndpoint
	}
	if _, ok := h.lookup(proc, epIOProc); !ok {
		return StatusInvalidEndpoint
	}
	if ep.device != nil {
		ep.device.Uninit()
		ep.device = nil
		ep.proc = nil
	}
	delete(h.endpoints, proc)
	return StatusOK
}

// StartDevice begins frame delivery.
func (h *MalgoHost) StartDevice(device, proc EndpointRef) Status {
	h.mu.Lock()
	ep, ok := h.lookup(device, epAggregate, epInputDevice)
	h.mu.Unlock()
	if !ok || ep.device == nil {
		return StatusInvalidEndpoint
	}
	if err := ep.device.Start(); err != nil {
		h.log.Warnw("device start failed", "error", err)
		return StatusStartFailed
	}
	return StatusOK
}

// StopDevice halts frame delivery; further callbacks do not arrive after
// it returns.
func (h *MalgoHost) StopDevice(device, proc EndpointRef) Status {
	h.mu.Lock()
	ep, ok := h.lookup(device, epAggregate, epInputDevice)
	h.mu.Unlock()
	if !ok || ep.device == nil {
		return StatusInvalidEndpoint
	}
	if err := ep.device.Stop(); err != nil {
		h.log.Warnw("device stop failed", "error", err)
		return StatusStopFailed
	}
	return StatusOK
}

// Close releases the miniaudio context. Endpoints still alive get their
// devices torn down first.
func (h *MalgoHost) Close() error {
	h.mu.Lock()
	for _, ep := range h.endpoints {
		if ep.device != nil {
			ep.device.Uninit()
			ep.device = nil
		}
	}
	h.endpoints = make(map[EndpointRef]*malgoEndpoint)
	h.mu.Unlock()

	if err := h.ctx.Uninit(); err != nil {
		h.log.Warnw("miniaudio context uninit error", "error", err)
	}
	h.ctx.Free()
	return nil
}
