package config

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/MrWong99/voxline/pkg/audio"
)

// ErrDeviceNotRegistered is returned by Create* methods when no factory has
// been registered under the requested backend name.
var ErrDeviceNotRegistered = errors.New("config: device backend not registered")

// CaptureFactory builds a capture device from its config entry.
type CaptureFactory func(entry DeviceEntry) (audio.CaptureDevice, error)

// OutputFactory builds a playback output for format f from its config entry.
type OutputFactory func(entry DeviceEntry, f audio.Format) (audio.Output, error)

// Registry maps backend names to their constructor functions for each device
// kind. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	capture map[string]CaptureFactory
	output  map[string]OutputFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		capture: make(map[string]CaptureFactory),
		output:  make(map[string]OutputFactory),
	}
}

// RegisterCapture registers a capture backend factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterCapture(name string, factory CaptureFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capture[name] = factory
}

// RegisterOutput registers an output backend factory under name.
func (r *Registry) RegisterOutput(name string, factory OutputFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.output[name] = factory
}

// CreateCapture instantiates the capture device registered under entry.Name.
// Returns [ErrDeviceNotRegistered] if no factory has been registered for that
// name.
func (r *Registry) CreateCapture(entry DeviceEntry) (audio.CaptureDevice, error) {
	r.mu.RLock()
	factory, ok := r.capture[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: capture/%q", ErrDeviceNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateOutput instantiates the output registered under entry.Name.
func (r *Registry) CreateOutput(entry DeviceEntry, f audio.Format) (audio.Output, error) {
	r.mu.RLock()
	factory, ok := r.output[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: output/%q", ErrDeviceNotRegistered, entry.Name)
	}
	return factory(entry, f)
}

// Names returns the sorted registered backend names for kind ("capture" or
// "output").
func (r *Registry) Names(kind string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	switch kind {
	case "capture":
		for n := range r.capture {
			names = append(names, n)
		}
	case "output":
		for n := range r.output {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}
