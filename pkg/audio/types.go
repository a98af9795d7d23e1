// ABOUTME: Audio type definitions for capture streams
// ABOUTME: Defines stream formats, callback buffers and sample conversions
package audio

import "time"

// Format describes a PCM stream format.
type Format struct {
	SampleRate  float64 // Hz
	Channels    int
	BitDepth    int
	Interleaved bool
}

// BytesPerFrame returns the size of one interleaved frame in bytes.
func (f Format) BytesPerFrame() int {
	return f.Channels * (f.BitDepth / 8)
}

// Valid reports whether the format is usable for writing.
func (f Format) Valid() bool {
	return f.SampleRate > 0 && f.Channels > 0 && (f.BitDepth == 16 || f.BitDepth == 24 || f.BitDepth == 32)
}

// Buffer wraps one hardware callback delivery. Data aliases the native
// buffer and is only valid for the duration of the callback; callers that
// retain it past the callback must Clone first.
type Buffer struct {
	Data       []byte // raw interleaved PCM as delivered
	FrameCount int
	Format     Format
	HostTime   uint64    // device clock at delivery, in device ticks
	Arrival    time.Time // wall clock at delivery
}

// Clone returns a Buffer with its own copy of the sample data.
func (b Buffer) Clone() Buffer {
	data := make([]byte, len(b.Data))
	copy(data, b.Data)
	c := b
	c.Data = data
	return c
}

// SamplesS16LE decodes 16-bit little-endian PCM bytes into dst, growing it
// as needed, and returns the decoded slice. One element per sample, not per
// frame.
func SamplesS16LE(data []byte, dst []int) []int {
	n := len(data) / 2
	if cap(dst) < n {
		dst = make([]int, n)
	}
	dst = dst[:n]
	for i := 0; i < n; i++ {
		v := int16(uint16(data[i*2]) | uint16(data[i*2+1])<<8)
		dst[i] = int(v)
	}
	return dst
}

// PutS16LE encodes int samples (16-bit range) as little-endian PCM bytes.
// The destination must hold len(samples)*2 bytes.
func PutS16LE(samples []int, dst []byte) {
	for i, s := range samples {
		dst[i*2] = byte(s)
		dst[i*2+1] = byte(s >> 8)
	}
}

// ClampS16 clamps a mixed sample into the 16-bit range.
func ClampS16(v int) int {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return v
}
