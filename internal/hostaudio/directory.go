// ABOUTME: Device Directory query layer
// ABOUTME: Stateless read-only queries against host audio hardware
package hostaudio

// Directory is the read-only query layer over a Host. It holds no state
// and performs no caching: every call reflects hardware state at call
// time, so callers re-query when the default device may have changed.
type Directory struct {
	host Host
}

// NewDirectory wraps a host in the query layer.
func NewDirectory(h Host) *Directory {
	return &Directory{host: h}
}

// DefaultOutputEndpoint resolves the current default output device.
func (d *Directory) DefaultOutputEndpoint() (EndpointRef, error) {
	ep, s := d.host.DefaultOutputEndpoint()
	if err := StatusErr("default output endpoint", s); err != nil {
		return InvalidEndpoint, err
	}
	return ep, nil
}

// DefaultInputEndpoint resolves the current default input device.
func (d *Directory) DefaultInputEndpoint() (EndpointRef, error) {
	ep, s := d.host.DefaultInputEndpoint()
	if err := StatusErr("default input endpoint", s); err != nil {
		return InvalidEndpoint, err
	}
	return ep, nil
}

// NominalRate returns the rate a device is configured to operate at.
func (d *Directory) NominalRate(device EndpointRef) (float64, error) {
	hz, s := d.host.NominalSampleRate(device)
	if err := StatusErr("nominal sample rate", s); err != nil {
		return 0, err
	}
	return hz, nil
}

// ActualRate returns the rate a device is measured to be operating at.
// Many devices do not report one; the resulting ErrPropertyUnavailable is
// recoverable, not fatal.
func (d *Directory) ActualRate(device EndpointRef) (float64, error) {
	hz, s := d.host.ActualSampleRate(device)
	if err := StatusErr("actual sample rate", s); err != nil {
		return 0, err
	}
	return hz, nil
}

// BufferFrameSize returns the device's I/O buffer size in frames.
func (d *Directory) BufferFrameSize(device EndpointRef) (uint32, error) {
	n, s := d.host.BufferFrameSize(device)
	if err := StatusErr("buffer frame size", s); err != nil {
		return 0, err
	}
	return n, nil
}

// ActiveAudioSources lists the currently audio-producing entities.
func (d *Directory) ActiveAudioSources() ([]SourceDescriptor, error) {
	srcs, s := d.host.AudioSessions()
	if err := StatusErr("audio sessions", s); err != nil {
		return nil, err
	}
	return srcs, nil
}
