// ABOUTME: Tests for the Device Directory query layer
// ABOUTME: Covers error mapping, property absence and source listing
package hostaudio

import (
	"errors"
	"testing"
)

func TestDefaultOutputEndpoint(t *testing.T) {
	dir := NewDirectory(NewStubHost())

	ep, err := dir.DefaultOutputEndpoint()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ep.IsValid() {
		t.Error("expected a valid endpoint")
	}
}

func TestDefaultOutputEndpointMissing(t *testing.T) {
	host := NewStubHost()
	host.NoOutputDevice = true
	dir := NewDirectory(host)

	_, err := dir.DefaultOutputEndpoint()
	if !errors.Is(err, ErrNoDefaultDevice) {
		t.Errorf("expected ErrNoDefaultDevice, got %v", err)
	}
}

func TestActualRateAbsenceIsRecoverable(t *testing.T) {
	host := NewStubHost()
	dir := NewDirectory(host)

	ep, err := dir.DefaultOutputEndpoint()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// No actual rate scripted: must surface as the recoverable sentinel.
	_, err = dir.ActualRate(ep)
	if !errors.Is(err, ErrPropertyUnavailable) {
		t.Errorf("expected ErrPropertyUnavailable, got %v", err)
	}

	host.OutputActualRate = 44100
	hz, err := dir.ActualRate(ep)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hz != 44100 {
		t.Errorf("expected 44100, got %v", hz)
	}
}

func TestNominalRate(t *testing.T) {
	host := NewStubHost()
	host.OutputNominalRate = 48000
	dir := NewDirectory(host)

	ep, _ := dir.DefaultOutputEndpoint()
	hz, err := dir.NominalRate(ep)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hz != 48000 {
		t.Errorf("expected 48000, got %v", hz)
	}
}

func TestActiveAudioSources(t *testing.T) {
	host := NewStubHost()
	dir := NewDirectory(host)

	srcs, err := dir.ActiveAudioSources()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(srcs) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(srcs))
	}

	active := 0
	for _, s := range srcs {
		if s.AudioActive {
			active++
		}
	}
	if active != 1 {
		t.Errorf("expected 1 audio-active source, got %d", active)
	}
}

func TestEndpointValidity(t *testing.T) {
	if InvalidEndpoint.IsValid() {
		t.Error("zero endpoint must be invalid")
	}
	if !EndpointRef(7).IsValid() {
		t.Error("non-zero endpoint must be valid")
	}
}

func TestStatusErrMapping(t *testing.T) {
	if StatusErr("op", StatusOK) != nil {
		t.Error("StatusOK must map to nil")
	}

	err := StatusErr("create tap", StatusCreateFailed)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.Code != StatusCreateFailed {
		t.Errorf("expected code %d, got %d", StatusCreateFailed, se.Code)
	}
}
