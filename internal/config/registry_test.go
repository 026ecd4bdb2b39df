package config_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/MrWong99/voxline/internal/config"
	"github.com/MrWong99/voxline/pkg/audio"
	"github.com/MrWong99/voxline/pkg/audio/mock"
)

func TestRegistry_CreateRegistered(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()

	var gotFormat audio.Format
	reg.RegisterOutput("mock", func(_ config.DeviceEntry, f audio.Format) (audio.Output, error) {
		gotFormat = f
		return &mock.Output{}, nil
	})
	reg.RegisterCapture("mock", func(e config.DeviceEntry) (audio.CaptureDevice, error) {
		return &mock.Generator{Amplitude: e.Float("amplitude", 0.5)}, nil
	})

	f := audio.DefaultFormat()
	if _, err := reg.CreateOutput(config.DeviceEntry{Name: "mock"}, f); err != nil {
		t.Fatalf("CreateOutput: %v", err)
	}
	if gotFormat != f {
		t.Errorf("factory got format %v, want %v", gotFormat, f)
	}

	dev, err := reg.CreateCapture(config.DeviceEntry{Name: "mock", Options: map[string]any{"amplitude": 0.2}})
	if err != nil {
		t.Fatalf("CreateCapture: %v", err)
	}
	if got := dev.(*mock.Generator).Amplitude; got != 0.2 {
		t.Errorf("amplitude = %v, want 0.2", got)
	}

	if names := reg.Names("output"); !slices.Equal(names, []string{"mock"}) {
		t.Errorf("Names(output) = %v", names)
	}
}

func TestRegistry_NotRegistered(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()

	if _, err := reg.CreateOutput(config.DeviceEntry{Name: "nope"}, audio.DefaultFormat()); !errors.Is(err, config.ErrDeviceNotRegistered) {
		t.Errorf("CreateOutput err = %v, want ErrDeviceNotRegistered", err)
	}
	if _, err := reg.CreateCapture(config.DeviceEntry{Name: "nope"}); !errors.Is(err, config.ErrDeviceNotRegistered) {
		t.Errorf("CreateCapture err = %v, want ErrDeviceNotRegistered", err)
	}
}

func TestDeviceEntry_Options(t *testing.T) {
	t.Parallel()
	e := config.DeviceEntry{Options: map[string]any{
		"path":   "a.wav",
		"amp":    0.3,
		"frames": 40,
	}}
	if got := e.String("path", "x"); got != "a.wav" {
		t.Errorf("String = %q", got)
	}
	if got := e.String("missing", "x"); got != "x" {
		t.Errorf("String default = %q", got)
	}
	if got := e.Float("amp", 0); got != 0.3 {
		t.Errorf("Float = %v", got)
	}
	if got := e.Duration("frames", 0); got.Milliseconds() != 40 {
		t.Errorf("Duration = %v, want 40ms", got)
	}
	if got := e.Duration("missing", 7); got != 7 {
		t.Errorf("Duration default = %v", got)
	}
}
