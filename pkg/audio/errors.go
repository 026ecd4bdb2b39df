package audio

import (
	"errors"
	"fmt"
)

// Sentinel errors for the audio error taxonomy. Each typed error below
// matches its sentinel via [errors.Is], so callers that only care about the
// category need not use [errors.As].
var (
	ErrDecode             = errors.New("audio: decode failed")
	ErrFormatMismatch     = errors.New("audio: format mismatch")
	ErrUnsupportedFormat  = errors.New("audio: unsupported format")
	ErrDeviceUnavailable  = errors.New("audio: capture device unavailable")
	ErrDeviceDisconnected = errors.New("audio: capture device disconnected")

	// ErrPermissionDenied and ErrDeviceNotFound are the two acquisition
	// failures a [CaptureDevice] reports. They are wrapped in a
	// [DeviceUnavailableError] by the capture session.
	ErrPermissionDenied = errors.New("audio: permission denied")
	ErrDeviceNotFound   = errors.New("audio: device not found")
)

// DecodeError reports a malformed textual or PCM payload. Only the offending
// chunk is rejected; decoding is never retried automatically.
type DecodeError struct {
	// Reason describes what was wrong with the payload.
	Reason string

	// Err is the underlying decoder error, if any.
	Err error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("audio: decode: %s: %v", e.Reason, e.Err)
	}
	return "audio: decode: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is reports whether target is [ErrDecode].
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// FormatMismatchError reports a segment whose [Format] differs from the one
// shared by the queue or merge it was offered to.
type FormatMismatchError struct {
	Want Format
	Got  Format

	// Index is the position of the offending segment in a merge, or -1 when
	// the mismatch concerns a single append.
	Index int
}

func (e *FormatMismatchError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("audio: segment %d has format %s, want %s", e.Index, e.Got, e.Want)
	}
	return fmt.Sprintf("audio: segment has format %s, want %s", e.Got, e.Want)
}

// Is reports whether target is [ErrFormatMismatch].
func (e *FormatMismatchError) Is(target error) bool { return target == ErrFormatMismatch }

// UnsupportedFormatError reports a bit depth other than 8 or 16.
type UnsupportedFormatError struct {
	BitsPerSample int
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("audio: unsupported bit depth %d (want 8 or 16)", e.BitsPerSample)
}

// Is reports whether target is [ErrUnsupportedFormat].
func (e *UnsupportedFormatError) Is(target error) bool { return target == ErrUnsupportedFormat }

// DeviceUnavailableError reports that a capture device could not be
// acquired. Err is typically [ErrPermissionDenied] or [ErrDeviceNotFound].
type DeviceUnavailableError struct {
	Device string
	Err    error
}

func (e *DeviceUnavailableError) Error() string {
	if e.Device == "" {
		return fmt.Sprintf("audio: capture device unavailable: %v", e.Err)
	}
	return fmt.Sprintf("audio: capture device %q unavailable: %v", e.Device, e.Err)
}

func (e *DeviceUnavailableError) Unwrap() error { return e.Err }

// Is reports whether target is [ErrDeviceUnavailable].
func (e *DeviceUnavailableError) Is(target error) bool { return target == ErrDeviceUnavailable }

// DeviceDisconnectedError reports that a capture stream stopped delivering
// frames in the middle of a session.
type DeviceDisconnectedError struct {
	Device string
	Err    error
}

func (e *DeviceDisconnectedError) Error() string {
	msg := "audio: capture device disconnected"
	if e.Device != "" {
		msg = fmt.Sprintf("audio: capture device %q disconnected", e.Device)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *DeviceDisconnectedError) Unwrap() error { return e.Err }

// Is reports whether target is [ErrDeviceDisconnected].
func (e *DeviceDisconnectedError) Is(target error) bool { return target == ErrDeviceDisconnected }
