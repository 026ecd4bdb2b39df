// Package wavfile provides an [audio.Output] that records everything played
// into a WAV file. It is the output of choice on headless hosts and for
// checking what a playback session actually sent to the speaker.
package wavfile

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/MrWong99/voxline/pkg/audio"
)

// Output accumulates written PCM with the current volume applied and writes
// it as a WAV file on Close.
type Output struct {
	path   string
	format audio.Format

	mu     sync.Mutex
	pcm    []byte
	volume float64
	closed bool
}

// New returns an [Output] that will write a WAV in format f to path.
func New(path string, f audio.Format) (*Output, error) {
	if path == "" {
		return nil, fmt.Errorf("wavfile: path must not be empty")
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &Output{path: path, format: f, volume: 1}, nil
}

// Write implements [audio.Output].
func (o *Output) Write(pcm []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return fmt.Errorf("wavfile: write to closed output %s", o.path)
	}
	o.pcm = append(o.pcm, audio.ApplyGain(pcm, o.format, o.volume)...)
	return nil
}

// SetVolume implements [audio.Output].
func (o *Output) SetVolume(v float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.volume = v
}

// Len returns the number of PCM bytes recorded so far.
func (o *Output) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pcm)
}

// Close writes the WAV file. Subsequent calls are no-ops.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true

	if dir := filepath.Dir(o.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("wavfile: create directory: %w", err)
		}
	}
	f, err := os.Create(o.path)
	if err != nil {
		return fmt.Errorf("wavfile: create %s: %w", o.path, err)
	}
	if err := audio.WriteWAV(f, o.pcm, o.format); err != nil {
		_ = f.Close()
		return fmt.Errorf("wavfile: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("wavfile: close %s: %w", o.path, err)
	}
	return nil
}

var _ audio.Output = (*Output)(nil)
