package vad

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/voxline/pkg/audio"
)

// Option configures an [Engine] during construction.
type Option func(*Engine)

// WithAnalyzer sets the loudness analyzer. Default: [audio.PeakAnalyzer].
func WithAnalyzer(a audio.Analyzer) Option {
	return func(e *Engine) {
		if a != nil {
			e.analyzer = a
		}
	}
}

// WithClipHandler registers the sink for emitted clips. It is called on the
// session goroutine, in capture order.
func WithClipHandler(fn func(audio.Clip)) Option {
	return func(e *Engine) {
		e.onClip = fn
	}
}

// WithResultHandler registers fn to observe every finalized segment,
// including discarded ones. It runs before the clip handler.
func WithResultHandler(fn func(Result)) Option {
	return func(e *Engine) {
		e.onResult = fn
	}
}

// WithDeviceName sets the device name reported in device errors.
func WithDeviceName(name string) Option {
	return func(e *Engine) {
		e.deviceName = name
	}
}

// Engine owns a capture device and runs at most one [Session] on it at a
// time. All methods are safe for concurrent use.
type Engine struct {
	device     audio.CaptureDevice
	deviceName string
	analyzer   audio.Analyzer
	onClip     func(audio.Clip)
	onResult   func(Result)

	mu     sync.Mutex
	active *Session
}

// NewEngine creates an [Engine] for device.
func NewEngine(device audio.CaptureDevice, opts ...Option) *Engine {
	e := &Engine{
		device:     device,
		deviceName: "capture",
		analyzer:   audio.PeakAnalyzer{},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Analyzer returns the analyzer sessions measure frames with.
func (e *Engine) Analyzer() audio.Analyzer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.analyzer
}

// SetAnalyzer replaces the analyzer used by sessions started from now on. A
// running session keeps the analyzer it started with.
func (e *Engine) SetAnalyzer(a audio.Analyzer) {
	if a == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.analyzer = a
}

// StartSession acquires the device and starts listening. An active session
// is stopped, and its device released, first. ctx bounds the acquisition
// only; the session runs until stopped.
//
// An invalid cfg is returned as is and leaves any active session running.
// Acquisition failures are wrapped in an [*audio.DeviceUnavailableError]; no
// retry is attempted.
func (e *Engine) StartSession(ctx context.Context, f audio.Format, cfg Config) (*Session, error) {
	seg, err := NewSegmenter(f, cfg, e.Analyzer(), time.Now())
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active != nil {
		e.active.Stop()
		e.active = nil
	}

	stream, err := e.device.Acquire(ctx, f)
	if err != nil {
		return nil, &audio.DeviceUnavailableError{Device: e.deviceName, Err: err}
	}

	s := &Session{
		id:       uuid.NewString(),
		device:   e.deviceName,
		stream:   stream,
		seg:      seg,
		onClip:   e.onClip,
		onResult: e.onResult,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	seg.Start()
	s.state.Store(int32(Listening))
	e.active = s
	go s.run()

	slog.Info("vad: session started", "session_id", s.id, "format", f.String(), "threshold", cfg.SpeechThreshold, "scale", cfg.Scale)
	return s, nil
}

// StopSession stops the active session, if any. It is idempotent.
func (e *Engine) StopSession() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return nil
	}
	err := e.active.Stop()
	e.active = nil
	return err
}

// Active returns the current session, or nil. A session that ended on its
// own stays current until it is stopped or superseded.
func (e *Engine) Active() *Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Session is one acquisition of the capture device.
type Session struct {
	id       string
	device   string
	stream   audio.CaptureStream
	seg      *Segmenter
	onClip   func(audio.Clip)
	onResult func(Result)

	state    atomic.Int32
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	err      error
}

// ID returns the session's unique ID.
func (s *Session) ID() string { return s.id }

// State returns the current state. A finished session reports [Idle].
func (s *Session) State() State { return State(s.state.Load()) }

// Done is closed once the session has stopped and released the device.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns why the session ended on its own: an
// [*audio.DeviceDisconnectedError] when the capture stream went away, or a
// measurement error. It is nil while running and after a requested stop.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Stop finalizes any open segment, halts the session loop and then releases
// the device. It blocks until all of that is done and is idempotent.
func (s *Session) Stop() error {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
	return nil
}

func (s *Session) run() {
	defer close(s.done)
	defer s.release()

	frames := s.stream.Frames()
	for {
		select {
		case <-s.stop:
			s.finish()
			return
		case fr, ok := <-frames:
			if !ok {
				s.err = &audio.DeviceDisconnectedError{Device: s.device, Err: s.stream.Err()}
				slog.Warn("vad: capture stream ended", "session_id", s.id, "err", s.err)
				s.finish()
				return
			}
			res, finalized, err := s.seg.Process(fr)
			if err != nil {
				s.err = err
				slog.Error("vad: frame rejected, stopping session", "session_id", s.id, "err", err)
				s.finish()
				return
			}
			if finalized {
				s.deliver(res)
			}
			s.state.Store(int32(s.seg.State()))
		}
	}
}

// finish finalizes an open segment and moves the session to Idle.
func (s *Session) finish() {
	if res, ok := s.seg.Stop(); ok {
		s.deliver(res)
	}
	s.state.Store(int32(Idle))
}

func (s *Session) release() {
	if err := s.stream.Release(); err != nil {
		slog.Warn("vad: release capture stream", "session_id", s.id, "err", err)
	}
	go audio.Drain(s.stream.Frames())
}

func (s *Session) deliver(res Result) {
	slog.Debug("vad: segment finalized",
		"session_id", s.id,
		"clip_id", res.Clip.ID,
		"outcome", res.Outcome.String(),
		"duration", res.Clip.Duration,
		"bytes", len(res.Clip.PCM),
	)
	if s.onResult != nil {
		s.onResult(res)
	}
	if res.Emitted() && s.onClip != nil {
		s.onClip(res.Clip)
	}
}
