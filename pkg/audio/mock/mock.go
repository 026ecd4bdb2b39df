// Package mock provides in-memory implementations of the [audio.CaptureDevice],
// [audio.CaptureStream] and [audio.Output] interfaces for use in unit tests,
// plus PCM generators for synthetic speech and silence.
//
// All mocks are safe for concurrent use. They record every method call so that
// tests can assert on call counts and arguments, and they expose exported fields
// that the test can set to control return values.
//
// Typical usage:
//
//	stream := mock.NewStream()
//	dev := &mock.CaptureDevice{Stream: stream}
//	sess, _ := engine.StartSession(ctx, f, cfg)
//	for _, fr := range mock.Split(mock.Tone(f, 3*time.Second, 0.5), f, 20*time.Millisecond, 0) {
//	    stream.Push(fr)
//	}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/voxline/pkg/audio"
)

// ─── CaptureDevice ────────────────────────────────────────────────────────────

// CaptureDevice is a mock implementation of [audio.CaptureDevice].
type CaptureDevice struct {
	mu sync.Mutex

	// Stream is returned by the next Acquire call and then cleared. When nil,
	// Acquire returns a fresh [Stream].
	Stream *Stream

	// AcquireErr, if non-nil, is returned by Acquire.
	AcquireErr error

	// AcquireCalls records the format of every Acquire call in order.
	AcquireCalls []audio.Format

	// Streams records every stream handed out, in order.
	Streams []*Stream
}

// Acquire implements [audio.CaptureDevice].
func (d *CaptureDevice) Acquire(_ context.Context, f audio.Format) (audio.CaptureStream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.AcquireCalls = append(d.AcquireCalls, f)
	if d.AcquireErr != nil {
		return nil, d.AcquireErr
	}
	s := d.Stream
	d.Stream = nil
	if s == nil {
		s = NewStream()
	}
	d.Streams = append(d.Streams, s)
	return s, nil
}

// LastStream returns the most recently acquired stream, or nil.
func (d *CaptureDevice) LastStream() *Stream {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.Streams) == 0 {
		return nil
	}
	return d.Streams[len(d.Streams)-1]
}

// ─── Stream ───────────────────────────────────────────────────────────────────

// Stream is a mock [audio.CaptureStream] fed by the test through Push.
//
// The frame channel is unbuffered: Push returns only once the consumer has
// received the frame, which lets tests sequence frames against other calls
// on the consumer.
type Stream struct {
	frames chan audio.Frame
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
	err    error
	once   sync.Once

	countMu sync.Mutex

	// ReleaseCallCount is the number of times Release was called.
	ReleaseCallCount int
}

// NewStream returns an open [Stream].
func NewStream() *Stream {
	return &Stream{
		frames: make(chan audio.Frame),
		done:   make(chan struct{}),
	}
}

// Push delivers f to the consumer. It reports false if the stream ended
// before the frame was received.
func (s *Stream) Push(f audio.Frame) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	select {
	case s.frames <- f:
		return true
	case <-s.done:
		return false
	}
}

// End closes the stream with err, simulating a device that disappears
// mid-session. A nil err still ends the stream.
func (s *Stream) End(err error) {
	s.finish(err)
}

// Frames implements [audio.CaptureStream].
func (s *Stream) Frames() <-chan audio.Frame { return s.frames }

// Err implements [audio.CaptureStream].
func (s *Stream) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Release implements [audio.CaptureStream].
func (s *Stream) Release() error {
	s.countMu.Lock()
	s.ReleaseCallCount++
	s.countMu.Unlock()
	s.finish(nil)
	return nil
}

// Released reports whether the stream has ended.
func (s *Stream) Released() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// ReleaseCount returns ReleaseCallCount under the lock.
func (s *Stream) ReleaseCount() int {
	s.countMu.Lock()
	defer s.countMu.Unlock()
	return s.ReleaseCallCount
}

func (s *Stream) finish(err error) {
	s.once.Do(func() {
		close(s.done) // unblock pending Push calls before taking the write lock
		s.mu.Lock()
		s.closed = true
		s.err = err
		close(s.frames)
		s.mu.Unlock()
	})
}

// ─── Output ───────────────────────────────────────────────────────────────────

// Output is a mock implementation of [audio.Output].
type Output struct {
	mu sync.Mutex

	// WriteErr, if non-nil, is returned by every Write.
	WriteErr error

	// Writes holds a copy of every buffer passed to Write, in order.
	Writes [][]byte

	// Volumes records every SetVolume argument in order.
	Volumes []float64

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// Write implements [audio.Output].
func (o *Output) Write(pcm []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	o.Writes = append(o.Writes, cp)
	return o.WriteErr
}

// SetVolume implements [audio.Output].
func (o *Output) SetVolume(v float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Volumes = append(o.Volumes, v)
}

// Close implements [audio.Output].
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.CloseCallCount++
	return nil
}

// Written returns every byte written so far, concatenated.
func (o *Output) Written() []byte {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []byte
	for _, w := range o.Writes {
		out = append(out, w...)
	}
	return out
}

// LastWrite returns the buffer passed to the most recent Write, or nil.
func (o *Output) LastWrite() []byte {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.Writes) == 0 {
		return nil
	}
	return o.Writes[len(o.Writes)-1]
}

// WriteCount returns the number of Write calls.
func (o *Output) WriteCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.Writes)
}

// Closes returns CloseCallCount under the lock.
func (o *Output) Closes() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.CloseCallCount
}

// LastVolume returns the most recent SetVolume argument, or -1 if none.
func (o *Output) LastVolume() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.Volumes) == 0 {
		return -1
	}
	return o.Volumes[len(o.Volumes)-1]
}

// Compile-time interface assertions.
var (
	_ audio.CaptureDevice = (*CaptureDevice)(nil)
	_ audio.CaptureStream = (*Stream)(nil)
	_ audio.Output        = (*Output)(nil)
)
