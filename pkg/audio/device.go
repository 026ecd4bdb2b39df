// Package audio defines the PCM primitives shared by voxline's playback and
// capture paths, and the device interfaces the engines consume.
//
// The primitives are:
//
//   - [Format], [Segment], [Frame] and [Clip] hold PCM buffers and their layout.
//   - [Decode], [EncodeWAV], [NormalizeSamples] and [Concatenate] form the
//     stateless PCM/WAV codec.
//   - [Analyzer] measures loudness for VAD and metering.
//
// The device abstractions are:
//
//   - [CaptureDevice] is acquired once per capture session, yielding a
//     [CaptureStream] of frames.
//   - [Output] is a continuous sample sink with volume control.
//
// Implementations live in adapter packages (audio/mock, audio/portaudio,
// audio/wavfile).
package audio

import "context"

// CaptureDevice is a platform microphone. Acquire is the only suspension
// point of a capture session besides frame delivery.
//
// Implementations must be safe for concurrent use.
type CaptureDevice interface {
	// Acquire opens the device for capture in format f. It returns an error
	// wrapping [ErrPermissionDenied] or [ErrDeviceNotFound] when the device
	// cannot be used. Acquire must not retry on its own.
	Acquire(ctx context.Context, f Format) (CaptureStream, error)
}

// CaptureStream is one acquisition of a [CaptureDevice]. Its frame sequence
// is lazy and unbounded; it ends only when the stream is released or the
// device goes away.
type CaptureStream interface {
	// Frames returns the channel delivering captured frames in order. The
	// channel is closed when the stream ends for any reason.
	Frames() <-chan Frame

	// Err returns the reason the frame channel was closed, or nil if it was
	// closed by Release or is still open.
	Err() error

	// Release stops capture and frees the device. Calling Release more than
	// once is safe and returns nil.
	Release() error
}

// Output is a continuous PCM sink such as a speaker. Write is called
// sequentially from a single playback loop.
type Output interface {
	// Write plays pcm. It may block for up to the duration of pcm.
	Write(pcm []byte) error

	// SetVolume applies gain v in [0, 1] to subsequent writes, effective
	// immediately.
	SetVolume(v float64)

	// Close releases the output. Calling Close more than once is safe.
	Close() error
}

// NullOutput discards every sample. It is the output used when no speaker
// is configured; playback is still paced by the engine clock.
type NullOutput struct{}

// Write implements [Output].
func (NullOutput) Write([]byte) error { return nil }

// SetVolume implements [Output].
func (NullOutput) SetVolume(float64) {}

// Close implements [Output].
func (NullOutput) Close() error { return nil }
