package audio

import (
	"fmt"
	"time"
)

// Default format values used when a deployment does not override them.
const (
	DefaultSampleRate    = 16000
	DefaultChannels      = 1
	DefaultBitsPerSample = 16
)

// Format describes how to interpret a buffer of interleaved PCM samples.
//
// A Format is a value type and is compared with ==. Every segment merged into
// one playback timeline, and every frame captured within one recording
// session, shares a single Format.
type Format struct {
	// SampleRate in Hz (e.g., 16000 for speech capture, 24000 for synthesized
	// speech).
	SampleRate int

	// Channels: 1 for mono, 2 for interleaved stereo.
	Channels int

	// BitsPerSample is 8 (unsigned) or 16 (signed little-endian).
	BitsPerSample int
}

// DefaultFormat returns 16 kHz mono 16-bit PCM.
func DefaultFormat() Format {
	return Format{
		SampleRate:    DefaultSampleRate,
		Channels:      DefaultChannels,
		BitsPerSample: DefaultBitsPerSample,
	}
}

// Validate reports whether f describes a supported PCM layout. Bit depths
// other than 8 and 16 yield an [*UnsupportedFormatError].
func (f Format) Validate() error {
	if f.BitsPerSample != 8 && f.BitsPerSample != 16 {
		return &UnsupportedFormatError{BitsPerSample: f.BitsPerSample}
	}
	if f.SampleRate <= 0 {
		return fmt.Errorf("audio: sample rate %d must be positive", f.SampleRate)
	}
	if f.Channels != 1 && f.Channels != 2 {
		return fmt.Errorf("audio: channel count %d must be 1 or 2", f.Channels)
	}
	return nil
}

// BytesPerSample is the width of a single sample of a single channel.
func (f Format) BytesPerSample() int {
	return f.BitsPerSample / 8
}

// BlockAlign is the size in bytes of one sample frame across all channels.
func (f Format) BlockAlign() int {
	return f.Channels * f.BitsPerSample / 8
}

// ByteRate is the number of bytes consumed per second of audio.
func (f Format) ByteRate() int {
	return f.SampleRate * f.BlockAlign()
}

// Duration returns the playing time of n bytes of PCM in this format.
// Returns zero for a format with a zero byte rate.
func (f Format) Duration(n int) time.Duration {
	rate := f.ByteRate()
	if rate <= 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(rate))
}

// BytesFor returns the number of bytes holding d of audio, rounded down to a
// whole sample frame.
func (f Format) BytesFor(d time.Duration) int {
	align := f.BlockAlign()
	if align <= 0 || d <= 0 {
		return 0
	}
	n := int(int64(d) * int64(f.ByteRate()) / int64(time.Second))
	return n - n%align
}

// String returns a compact description, e.g. "16000Hz mono s16".
func (f Format) String() string {
	ch := "mono"
	if f.Channels == 2 {
		ch = "stereo"
	} else if f.Channels > 2 {
		ch = fmt.Sprintf("%dch", f.Channels)
	}
	kind := "s"
	if f.BitsPerSample == 8 {
		kind = "u"
	}
	return fmt.Sprintf("%dHz %s %s%d", f.SampleRate, ch, kind, f.BitsPerSample)
}
