package main

import (
	"fmt"
	"time"

	"github.com/MrWong99/voxline/internal/app"
	"github.com/MrWong99/voxline/internal/config"
	"github.com/MrWong99/voxline/pkg/audio"
	"github.com/MrWong99/voxline/pkg/audio/mock"
	"github.com/MrWong99/voxline/pkg/audio/portaudio"
	"github.com/MrWong99/voxline/pkg/audio/wavfile"
)

// ── Device wiring ─────────────────────────────────────────────────────────────

// registerBuiltinDevices wires all built-in output and capture backends into
// reg. Backend options are read from the entry's options map.
func registerBuiltinDevices(reg *config.Registry) {
	// Outputs.
	reg.RegisterOutput("null", func(config.DeviceEntry, audio.Format) (audio.Output, error) {
		return audio.NullOutput{}, nil
	})
	reg.RegisterOutput("mock", func(config.DeviceEntry, audio.Format) (audio.Output, error) {
		return &mock.Output{}, nil
	})
	reg.RegisterOutput("wav", func(e config.DeviceEntry, f audio.Format) (audio.Output, error) {
		o, err := wavfile.New(e.String("path", "playback.wav"), f)
		if err != nil {
			return nil, err
		}
		return o, nil
	})
	reg.RegisterOutput("portaudio", func(e config.DeviceEntry, f audio.Format) (audio.Output, error) {
		s, err := portaudio.NewSpeaker(e.String("device", ""), f, e.Duration("chunk_ms", 20*time.Millisecond))
		if err != nil {
			return nil, err
		}
		return s, nil
	})

	// Capture.
	reg.RegisterCapture("mock", func(e config.DeviceEntry) (audio.CaptureDevice, error) {
		return &mock.Generator{
			Speech:        e.Duration("speech_ms", 0),
			Pause:         e.Duration("pause_ms", 0),
			Amplitude:     e.Float("amplitude", 0),
			FrameDuration: e.Duration("frame_ms", 0),
		}, nil
	})
	reg.RegisterCapture("portaudio", func(e config.DeviceEntry) (audio.CaptureDevice, error) {
		return &portaudio.Capture{
			DeviceName:    e.String("device", ""),
			FrameDuration: e.Duration("frame_ms", 0),
		}, nil
	})
}

// buildDevices instantiates the configured output and, when capture is
// enabled, the capture device.
func buildDevices(cfg *config.Config, reg *config.Registry) (app.Devices, error) {
	var d app.Devices

	out, err := reg.CreateOutput(cfg.Playback.Output, cfg.Audio.Format())
	if err != nil {
		return d, fmt.Errorf("build output %q: %w", cfg.Playback.Output.Name, err)
	}
	d.Output = out

	if cfg.VAD.Enabled {
		capture, err := reg.CreateCapture(cfg.VAD.Capture)
		if err != nil {
			_ = out.Close()
			return app.Devices{}, fmt.Errorf("build capture %q: %w", cfg.VAD.Capture.Name, err)
		}
		d.Capture = capture
	}
	return d, nil
}
