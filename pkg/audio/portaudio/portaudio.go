//go:build portaudio

// Package portaudio binds the host sound card through PortAudio. It is only
// compiled with the "portaudio" build tag because it needs cgo and the
// PortAudio C library; without the tag every constructor reports
// [audio.ErrDeviceNotFound].
package portaudio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	pa "github.com/gordonklaus/portaudio"

	"github.com/MrWong99/voxline/pkg/audio"
)

// Available reports whether this build can open PortAudio devices.
const Available = true

var (
	initMu    sync.Mutex
	initCount int
)

func acquireLib() error {
	initMu.Lock()
	defer initMu.Unlock()
	if initCount == 0 {
		if err := pa.Initialize(); err != nil {
			return fmt.Errorf("portaudio: initialize: %w", err)
		}
	}
	initCount++
	return nil
}

func releaseLib() {
	initMu.Lock()
	defer initMu.Unlock()
	initCount--
	if initCount == 0 {
		if err := pa.Terminate(); err != nil {
			slog.Warn("portaudio: terminate", "err", err)
		}
	}
}

func findDevice(name string, input bool) (*pa.DeviceInfo, error) {
	if name == "" {
		var dev *pa.DeviceInfo
		var err error
		if input {
			dev, err = pa.DefaultInputDevice()
		} else {
			dev, err = pa.DefaultOutputDevice()
		}
		if err != nil {
			return nil, fmt.Errorf("portaudio: default device: %w: %v", audio.ErrDeviceNotFound, err)
		}
		return dev, nil
	}
	devices, err := pa.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio: list devices: %w", err)
	}
	for _, d := range devices {
		if d.Name != name {
			continue
		}
		if (input && d.MaxInputChannels > 0) || (!input && d.MaxOutputChannels > 0) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("portaudio: device %q: %w", name, audio.ErrDeviceNotFound)
}

func framesPer(f audio.Format, d time.Duration) int {
	return max(f.BytesFor(d)/f.BlockAlign(), 1)
}

func check16(f audio.Format) error {
	if err := f.Validate(); err != nil {
		return err
	}
	if f.BitsPerSample != 16 {
		return &audio.UnsupportedFormatError{BitsPerSample: f.BitsPerSample}
	}
	return nil
}

// ─── Capture ──────────────────────────────────────────────────────────────────

// Capture is an [audio.CaptureDevice] backed by a PortAudio input stream.
// Only 16-bit formats are supported.
type Capture struct {
	// DeviceName selects an input device by name. Empty means the host
	// default.
	DeviceName string

	// FrameDuration is the size of each delivered frame. Default: 20ms.
	FrameDuration time.Duration
}

// Acquire implements [audio.CaptureDevice].
func (c *Capture) Acquire(ctx context.Context, f audio.Format) (audio.CaptureStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := check16(f); err != nil {
		return nil, err
	}
	if err := acquireLib(); err != nil {
		return nil, err
	}

	dev, err := findDevice(c.DeviceName, true)
	if err != nil {
		releaseLib()
		return nil, err
	}

	frameDur := c.FrameDuration
	if frameDur <= 0 {
		frameDur = 20 * time.Millisecond
	}
	params := pa.LowLatencyParameters(dev, nil)
	params.Input.Channels = f.Channels
	params.Output.Channels = 0
	params.SampleRate = float64(f.SampleRate)
	params.FramesPerBuffer = framesPer(f, frameDur)

	buf := make([]int16, params.FramesPerBuffer*f.Channels)
	stream, err := pa.OpenStream(params, buf)
	if err != nil {
		releaseLib()
		return nil, fmt.Errorf("portaudio: open input %q: %w", dev.Name, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		releaseLib()
		return nil, fmt.Errorf("portaudio: start input %q: %w", dev.Name, err)
	}

	s := &captureStream{
		stream: stream,
		buf:    buf,
		format: f,
		frames: make(chan audio.Frame, 8),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go s.run()
	slog.Info("portaudio: capture started", "device", dev.Name, "format", f.String())
	return s, nil
}

type captureStream struct {
	stream *pa.Stream
	buf    []int16
	format audio.Format
	frames chan audio.Frame
	done   chan struct{}
	exited chan struct{}

	mu       sync.Mutex
	err      error
	stopOnce sync.Once
}

func (s *captureStream) run() {
	defer close(s.exited)
	defer close(s.frames)

	var at time.Duration
	for {
		if err := s.stream.Read(); err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			if errors.Is(err, pa.InputOverflowed) {
				slog.Debug("portaudio: input overflow, dropping frame")
				continue
			}
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
			return
		}

		pcm := make([]byte, len(s.buf)*2)
		for i, v := range s.buf {
			pcm[2*i] = byte(v)
			pcm[2*i+1] = byte(v >> 8)
		}
		fr := audio.Frame{Data: pcm, Timestamp: at}
		at += s.format.Duration(len(pcm))

		select {
		case s.frames <- fr:
		case <-s.done:
			return
		}
	}
}

func (s *captureStream) Frames() <-chan audio.Frame { return s.frames }

func (s *captureStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *captureStream) Release() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.done)
		err = s.stream.Stop()
		<-s.exited
		if cerr := s.stream.Close(); cerr != nil && err == nil {
			err = cerr
		}
		releaseLib()
	})
	return err
}

// ─── Speaker ──────────────────────────────────────────────────────────────────

// Speaker is an [audio.Output] backed by a blocking PortAudio output stream.
type Speaker struct {
	stream *pa.Stream
	buf    []int16
	format audio.Format

	mu     sync.Mutex
	volume float64
	closed bool
}

// NewSpeaker opens the named output device (empty for the default) for
// format f. chunk sets the device buffer size.
func NewSpeaker(deviceName string, f audio.Format, chunk time.Duration) (*Speaker, error) {
	if err := check16(f); err != nil {
		return nil, err
	}
	if err := acquireLib(); err != nil {
		return nil, err
	}
	dev, err := findDevice(deviceName, false)
	if err != nil {
		releaseLib()
		return nil, err
	}
	if chunk <= 0 {
		chunk = 20 * time.Millisecond
	}

	params := pa.LowLatencyParameters(nil, dev)
	params.Input.Channels = 0
	params.Output.Channels = f.Channels
	params.SampleRate = float64(f.SampleRate)
	params.FramesPerBuffer = framesPer(f, chunk)

	buf := make([]int16, params.FramesPerBuffer*f.Channels)
	stream, err := pa.OpenStream(params, buf)
	if err != nil {
		releaseLib()
		return nil, fmt.Errorf("portaudio: open output %q: %w", dev.Name, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		releaseLib()
		return nil, fmt.Errorf("portaudio: start output %q: %w", dev.Name, err)
	}
	slog.Info("portaudio: speaker opened", "device", dev.Name, "format", f.String())
	return &Speaker{stream: stream, buf: buf, format: f, volume: 1}, nil
}

// Write implements [audio.Output]. pcm is played in device-sized blocks; a
// trailing partial block is padded with silence.
func (s *Speaker) Write(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("portaudio: write to closed speaker")
	}
	pcm = audio.ApplyGain(pcm, s.format, s.volume)

	block := len(s.buf) * 2
	for off := 0; off < len(pcm); off += block {
		end := min(off+block, len(pcm))
		clear(s.buf)
		for i := 0; off+2*i+1 < end; i++ {
			s.buf[i] = int16(pcm[off+2*i]) | int16(pcm[off+2*i+1])<<8
		}
		if err := s.stream.Write(); err != nil && !errors.Is(err, pa.OutputUnderflowed) {
			return fmt.Errorf("portaudio: write: %w", err)
		}
	}
	return nil
}

// SetVolume implements [audio.Output].
func (s *Speaker) SetVolume(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = v
}

// Close implements [audio.Output].
func (s *Speaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := errors.Join(s.stream.Stop(), s.stream.Close())
	releaseLib()
	return err
}

var (
	_ audio.CaptureDevice = (*Capture)(nil)
	_ audio.Output        = (*Speaker)(nil)
)
