//go:build !portaudio

package portaudio

import (
	"context"
	"fmt"
	"time"

	"github.com/MrWong99/voxline/pkg/audio"
)

// Available reports whether this build can open PortAudio devices.
const Available = false

var errNotBuilt = fmt.Errorf("portaudio: %w: binary built without the portaudio tag", audio.ErrDeviceNotFound)

// Capture is an [audio.CaptureDevice] backed by a PortAudio input stream.
type Capture struct {
	DeviceName    string
	FrameDuration time.Duration
}

// Acquire implements [audio.CaptureDevice]. Without PortAudio support it
// always fails with [audio.ErrDeviceNotFound].
func (c *Capture) Acquire(context.Context, audio.Format) (audio.CaptureStream, error) {
	return nil, errNotBuilt
}

// Speaker is an [audio.Output] backed by a PortAudio output stream.
type Speaker struct{}

// NewSpeaker always fails without PortAudio support.
func NewSpeaker(string, audio.Format, time.Duration) (*Speaker, error) {
	return nil, errNotBuilt
}

// Write implements [audio.Output].
func (*Speaker) Write([]byte) error { return errNotBuilt }

// SetVolume implements [audio.Output].
func (*Speaker) SetVolume(float64) {}

// Close implements [audio.Output].
func (*Speaker) Close() error { return nil }

var (
	_ audio.CaptureDevice = (*Capture)(nil)
	_ audio.Output        = (*Speaker)(nil)
)
