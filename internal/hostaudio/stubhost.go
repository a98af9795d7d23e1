// ABOUTME: Scripted in-memory Host for tests and dry runs
// ABOUTME: Synthesizes frame delivery at a controllable wall-clock rate
package hostaudio

import (
	"sync"
	"time"

	"github.com/tapdeck-io/tapdeck/pkg/audio"
)

// StubHost is a deterministic Host used by the test suites and the
// --dry-run path. Each rate field is "available" only when positive, which
// lets tests script every level of the rate-resolution chain
// independently. Started devices deliver silent frames in real time at
// DeliveryRate frames per second.
type StubHost struct {
	// Rate script. Values <= 0 report StatusPropertyUnavailable.
	OutputActualRate     float64
	AggregateActualRate  float64
	AggregateNominalRate float64
	OutputNominalRate    float64
	DeclaredRate         float64 // tap stream format rate
	InputRate            float64 // microphone stream format rate

	Channels     int
	DeliveryRate float64       // frames/sec actually produced once started
	TickInterval time.Duration // callback cadence

	Sessions       []SourceDescriptor
	NoOutputDevice bool
	NoInputDevice  bool

	// Failure injection: a non-zero status fails the matching operation.
	TapStatus       Status
	AggregateStatus Status
	IOProcStatus    Status
	StartStatus     Status

	// Introspection for tests.
	LastTap       TapDescription
	LastAggregate AggregateDescription
	Ops           []string

	mu        sync.Mutex
	next      EndpointRef
	endpoints map[EndpointRef]*stubEndpoint
}

type stubEndpoint struct {
	kind endpointKind
	uid  string
	proc IOProc
	stop chan struct{}
	done chan struct{}
}

// NewStubHost returns a stub with a plausible default script: a 48 kHz
// declared tap rate, no measured rates, and one audio-active session.
func NewStubHost() *StubHost {
	return &StubHost{
		DeclaredRate: 48000,
		InputRate:    48000,
		Channels:     2,
		DeliveryRate: 48000,
		TickInterval: 5 * time.Millisecond,
		Sessions: []SourceDescriptor{
			{Kind: KindProcess, PID: 101, Name: "player", AudioActive: true},
			{Kind: KindProcess, PID: 102, Name: "editor", AudioActive: false},
		},
		endpoints: make(map[EndpointRef]*stubEndpoint),
	}
}

func (s *StubHost) record(op string) {
	s.Ops = append(s.Ops, op)
}

func (s *StubHost) register(ep *stubEndpoint) EndpointRef {
	s.next++
	s.endpoints[s.next] = ep
	return s.next
}

// OpLog returns a copy of the operations seen so far.
func (s *StubHost) OpLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.Ops))
	copy(out, s.Ops)
	return out
}

func (s *StubHost) DefaultOutputEndpoint() (EndpointRef, Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.NoOutputDevice {
		return InvalidEndpoint, StatusNoDevice
	}
	return s.register(&stubEndpoint{kind: epOutputDevice, uid: "stub-output"}), StatusOK
}

func (s *StubHost) DefaultInputEndpoint() (EndpointRef, Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.NoInputDevice {
		return InvalidEndpoint, StatusNoDevice
	}
	return s.register(&stubEndpoint{kind: epInputDevice, uid: "stub-input"}), StatusOK
}

func (s *StubHost) EndpointUID(device EndpointRef) (string, Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ep, ok := s.endpoints[device]
	if !ok {
		return "", StatusInvalidEndpoint
	}
	return ep.uid, StatusOK
}

func rateOrUnavailable(hz float64) (float64, Status) {
	if hz <= 0 {
		return 0, StatusPropertyUnavailable
	}
	return hz, StatusOK
}

func (s *StubHost) NominalSampleRate(device EndpointRef) (float64, Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ep, ok := s.endpoints[device]
	if !ok {
		return 0, StatusInvalidEndpoint
	}
	switch ep.kind {
	case epOutputDevice:
		return rateOrUnavailable(s.OutputNominalRate)
	case epAggregate:
		return rateOrUnavailable(s.AggregateNominalRate)
	case epInputDevice:
		return rateOrUnavailable(s.InputRate)
	}
	return 0, StatusPropertyUnavailable
}

func (s *StubHost) ActualSampleRate(device EndpointRef) (float64, Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ep, ok := s.endpoints[device]
	if !ok {
		return 0, StatusInvalidEndpoint
	}
	switch ep.kind {
	case epOutputDevice:
		return rateOrUnavailable(s.OutputActualRate)
	case epAggregate:
		return rateOrUnavailable(s.AggregateActualRate)
	}
	return 0, StatusPropertyUnavailable
}

func (s *StubHost) BufferFrameSize(device EndpointRef) (uint32, Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.endpoints[device]; !ok {
		return 0, StatusInvalidEndpoint
	}
	return 512, StatusOK
}

func (s *StubHost) StreamFormat(endpoint EndpointRef) (audio.Format, Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ep, ok := s.endpoints[endpoint]
	if !ok {
		return audio.Format{}, StatusInvalidEndpoint
	}

	rate := s.DeclaredRate
	if ep.kind == epInputDevice {
		rate = s.InputRate
	}
	if rate <= 0 {
		return audio.Format{}, StatusPropertyUnavailable
	}
	return audio.Format{SampleRate: rate, Channels: s.Channels, BitDepth: 16, Interleaved: true}, StatusOK
}

func (s *StubHost) AudioSessions() ([]SourceDescriptor, Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SourceDescriptor, len(s.Sessions))
	copy(out, s.Sessions)
	return out, StatusOK
}

func (s *StubHost) CreateTap(desc TapDescription) (EndpointRef, Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("create tap")
	if s.TapStatus != StatusOK {
		return InvalidEndpoint, s.TapStatus
	}
	if len(desc.Sources) == 0 {
		return InvalidEndpoint, StatusCreateFailed
	}
	s.LastTap = desc
	return s.register(&stubEndpoint{kind: epTap, uid: "stub-tap"}), StatusOK
}

func (s *StubHost) DestroyTap(tap EndpointRef) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("destroy tap")
	if _, ok := s.endpoints[tap]; !ok {
		return StatusInvalidEndpoint
	}
	delete(s.endpoints, tap)
	return StatusOK
}

func (s *StubHost) CreateAggregate(desc AggregateDescription) (EndpointRef, Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("create aggregate")
	if s.AggregateStatus != StatusOK {
		return InvalidEndpoint, s.AggregateStatus
	}
	s.LastAggregate = desc
	return s.register(&stubEndpoint{kind: epAggregate, uid: desc.UID}), StatusOK
}

func (s *StubHost) DestroyAggregate(aggregate EndpointRef) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("destroy aggregate")
	if _, ok := s.endpoints[aggregate]; !ok {
		return StatusInvalidEndpoint
	}
	delete(s.endpoints, aggregate)
	return StatusOK
}

func (s *StubHost) CreateIOProc(device EndpointRef, proc IOProc) (EndpointRef, Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("create ioproc")
	if s.IOProcStatus != StatusOK {
		return InvalidEndpoint, s.IOProcStatus
	}
	ep, ok := s.endpoints[device]
	if !ok {
		return InvalidEndpoint, StatusInvalidEndpoint
	}
	ep.proc = proc
	return s.register(&stubEndpoint{kind: epIOProc, uid: "stub-ioproc"}), StatusOK
}

func (s *StubHost) DestroyIOProc(device, proc EndpointRef) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("destroy ioproc")
	ep, ok := s.endpoints[device]
	if ok {
		ep.proc = nil
	}
	delete(s.endpoints, proc)
	return StatusOK
}

// StartDevice begins real-time synthetic frame delivery on the endpoint's
// registered proc.
func (s *StubHost) StartDevice(device, proc EndpointRef) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("start device")
	if s.StartStatus != StatusOK {
		return s.StartStatus
	}
	ep, ok := s.endpoints[device]
	if !ok || ep.proc == nil {
		return StatusInvalidEndpoint
	}
	if ep.stop != nil {
		return StatusStartFailed
	}

	format, st := s.streamFormatLocked(ep)
	if st != StatusOK {
		return st
	}

	ep.stop = make(chan struct{})
	ep.done = make(chan struct{})
	go s.deliver(ep.proc, format, ep.stop, ep.done)
	return StatusOK
}

func (s *StubHost) streamFormatLocked(ep *stubEndpoint) (audio.Format, Status) {
	rate := s.DeclaredRate
	if ep.kind == epInputDevice {
		rate = s.InputRate
	}
	if rate <= 0 {
		return audio.Format{}, StatusPropertyUnavailable
	}
	return audio.Format{SampleRate: rate, Channels: s.Channels, BitDepth: 16, Interleaved: true}, StatusOK
}

func (s *StubHost) deliver(proc IOProc, format audio.Format, stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.TickInterval)
	defer ticker.Stop()

	perTick := s.DeliveryRate * s.TickInterval.Seconds()
	carry := 0.0
	bytesPerFrame := format.BytesPerFrame()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			carry += perTick
			frames := int(carry)
			carry -= float64(frames)
			if frames == 0 {
				continue
			}
			proc(audio.Buffer{
				Data:       make([]byte, frames*bytesPerFrame),
				FrameCount: frames,
				Format:     format,
				Arrival:    time.Now(),
			})
		}
	}
}

// StopDevice halts delivery and waits for the deliverer to exit, so no
// callback arrives after it returns.
func (s *StubHost) StopDevice(device, proc EndpointRef) Status {
	s.mu.Lock()
	s.record("stop device")
	ep, ok := s.endpoints[device]
	if !ok {
		s.mu.Unlock()
		return StatusInvalidEndpoint
	}
	stop, done := ep.stop, ep.done
	ep.stop, ep.done = nil, nil
	s.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	return StatusOK
}

func (s *StubHost) Close() error {
	s.mu.Lock()
	endpoints := s.endpoints
	s.endpoints = make(map[EndpointRef]*stubEndpoint)
	s.mu.Unlock()

	for _, ep := range endpoints {
		if ep.stop != nil {
			close(ep.stop)
			<-ep.done
		}
	}
	return nil
}
