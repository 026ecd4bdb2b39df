// Package playback plays an incrementally arriving sequence of PCM segments
// gaplessly through an [audio.Output].
//
// An [Engine] owns a [Timeline] and a single loop goroutine. Every public
// method is executed inside that loop, so the timeline, the cursor and the
// state are never observed half-updated. While playing, the loop writes one
// chunk per tick to the output; paused, stopped and ended engines do not tick
// at all.
//
// Segments may be appended at any time. Appending to an idle or ended engine
// starts playback without an explicit [Engine.Play]:
//
//	eng, _ := playback.New(out, audio.DefaultFormat())
//	defer eng.Close()
//	seg, _ := audio.Decode(chunk, audio.DefaultFormat())
//	eng.Append(seg) // now Playing
package playback

import (
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/MrWong99/voxline/pkg/audio"
)

const (
	// DefaultChunkDuration is the amount of audio written to the output per
	// tick.
	DefaultChunkDuration = 20 * time.Millisecond

	// DefaultProgressInterval is the minimum playing time between two
	// progress callbacks.
	DefaultProgressInterval = 100 * time.Millisecond
)

// ErrClosed is returned by every method of a closed [Engine].
var ErrClosed = errors.New("playback: engine closed")

// Status is a consistent snapshot of an engine.
type Status struct {
	State    State
	Position time.Duration
	Total    time.Duration
	Volume   float64
	Segments int
}

// Progress returns Position/Total in [0, 1], or 0 for an empty timeline.
func (s Status) Progress() float64 {
	if s.Total <= 0 {
		return 0
	}
	return min(float64(s.Position)/float64(s.Total), 1)
}

// Buffered is the audio queued ahead of the cursor.
func (s Status) Buffered() time.Duration {
	return max(s.Total-s.Position, 0)
}

// Option configures an [Engine] during construction.
type Option func(*Engine)

// WithChunkDuration sets how much audio is written per tick. Non-positive
// values are ignored.
func WithChunkDuration(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.chunk = d
		}
	}
}

// WithProgressInterval sets the minimum playing time between two progress
// callbacks. Non-positive values are ignored.
func WithProgressInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.progressEvery = d
		}
	}
}

// WithOnProgress registers fn to receive status updates while playing. fn
// runs on the engine loop and must not call back into the engine.
func WithOnProgress(fn func(Status)) Option {
	return func(e *Engine) {
		e.onProgress = fn
	}
}

// WithOnStateChange registers fn to be called after every state change. fn
// runs on the engine loop and must not call back into the engine.
func WithOnStateChange(fn func(from, to State)) Option {
	return func(e *Engine) {
		e.onStateChange = fn
	}
}

// WithVolume sets the initial output volume. The value is clamped to [0, 1].
func WithVolume(v float64) Option {
	return func(e *Engine) {
		e.volume = clampVolume(v)
	}
}

// WithTicks drives chunk writes from ch instead of a wall-clock ticker. The
// engine only receives from ch while playing.
func WithTicks(ch <-chan time.Time) Option {
	return func(e *Engine) {
		e.manualTicks = ch
	}
}

// Engine is a gapless playback queue. Create one with [New]; all methods are
// safe for concurrent use.
type Engine struct {
	out    audio.Output
	format audio.Format

	chunk         time.Duration
	progressEvery time.Duration
	onProgress    func(Status)
	onStateChange func(from, to State)
	manualTicks   <-chan time.Time

	// Loop-owned.
	timeline      *Timeline
	state         State
	cursor        int
	volume        float64
	ticker        *time.Ticker
	ticks         <-chan time.Time
	sinceProgress time.Duration

	cmds      chan command
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
	closeErr  error
}

type command struct {
	fn   func()
	done chan struct{}
}

// New creates an [Engine] that plays audio in format f through out and
// starts its loop. A nil out discards audio. Call [Engine.Close] to stop the
// loop and close out.
func New(out audio.Output, f audio.Format, opts ...Option) (*Engine, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if out == nil {
		out = audio.NullOutput{}
	}
	e := &Engine{
		out:           out,
		format:        f,
		chunk:         DefaultChunkDuration,
		progressEvery: DefaultProgressInterval,
		timeline:      NewTimeline(f),
		volume:        1,
		cmds:          make(chan command),
		done:          make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	for _, o := range opts {
		o(e)
	}
	e.out.SetVolume(e.volume)
	go e.run()
	return e, nil
}

// Append merges seg onto the end of the timeline without moving the cursor.
// An idle or ended engine starts playing. A segment whose format differs
// from the engine's is rejected with an [*audio.FormatMismatchError].
func (e *Engine) Append(seg audio.Segment) error {
	var err error
	if cerr := e.exec(func() {
		if err = e.timeline.Append(seg); err != nil {
			return
		}
		e.fire(EventAppend)
	}); cerr != nil {
		return cerr
	}
	return err
}

// Play starts or resumes playback. Playing an ended engine replays from the
// start. Play is a no-op while playing or with an empty queue.
func (e *Engine) Play() error {
	return e.exec(func() { e.fire(EventPlay) })
}

// Pause holds playback at the current position. It is a no-op unless
// playing.
func (e *Engine) Pause() error {
	return e.exec(func() { e.fire(EventPause) })
}

// Stop halts playback and rewinds to the start. Queued segments are kept.
func (e *Engine) Stop() error {
	return e.exec(func() { e.fire(EventStop) })
}

// Clear stops playback and discards every queued segment.
func (e *Engine) Clear() error {
	return e.exec(func() { e.fire(EventClear) })
}

// SetVolume clamps v to [0, 1] and applies it to the output immediately,
// whatever the play state.
func (e *Engine) SetVolume(v float64) error {
	return e.exec(func() {
		e.volume = clampVolume(v)
		e.out.SetVolume(e.volume)
	})
}

// Status returns a snapshot taken on the loop. A closed engine reports the
// state it was closed in.
func (e *Engine) Status() Status {
	var s Status
	if err := e.exec(func() { s = e.snapshot() }); err != nil {
		// The loop has exited and no longer writes these fields.
		return e.snapshot()
	}
	return s
}

// Format is the format every appended segment must have.
func (e *Engine) Format() audio.Format { return e.format }

// Alive reports whether the loop is still running.
func (e *Engine) Alive() bool {
	select {
	case <-e.stopped:
		return false
	default:
		return true
	}
}

// Close stops the loop, waits for it to exit and then closes the output.
// Close is idempotent.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		close(e.done)
		<-e.stopped
		e.closeErr = e.out.Close()
	})
	return e.closeErr
}

// exec runs fn on the loop and waits for it to finish.
func (e *Engine) exec(fn func()) error {
	c := command{fn: fn, done: make(chan struct{})}
	select {
	case e.cmds <- c:
	case <-e.stopped:
		return ErrClosed
	}
	<-c.done
	return nil
}

func (e *Engine) run() {
	defer close(e.stopped)
	defer e.halt()

	for {
		select {
		case <-e.done:
			return
		case c := <-e.cmds:
			c.fn()
			close(c.done)
		case <-e.ticks:
			e.step()
		}
	}
}

// fire applies ev to the state machine and performs the resulting effects.
func (e *Engine) fire(ev Event) {
	next, fx := Transition(e.state, ev, e.timeline.Len() > 0)
	if fx.Discard {
		e.timeline.Reset()
	}
	if fx.Rewind {
		e.cursor = 0
	}
	if fx.Halt {
		e.halt()
	}
	if fx.Start {
		e.start()
	}
	if next != e.state {
		prev := e.state
		e.state = next
		slog.Debug("playback: state change", "from", prev, "to", next, "event", ev)
		if e.onStateChange != nil {
			e.onStateChange(prev, next)
		}
	}
}

// step writes the next chunk and ends playback when the cursor reaches the
// end of the timeline.
func (e *Engine) step() {
	pcm := e.timeline.Read(e.cursor, e.format.BytesFor(e.chunk))
	if len(pcm) > 0 {
		if err := e.out.Write(pcm); err != nil {
			slog.Warn("playback: output write failed", "err", err)
		}
		e.cursor += len(pcm)
		e.sinceProgress += e.format.Duration(len(pcm))
	}

	if e.cursor >= e.timeline.Len() {
		e.fire(EventEnd)
		return
	}

	if e.onProgress != nil && e.sinceProgress >= e.progressEvery {
		e.sinceProgress = 0
		e.onProgress(e.snapshot())
	}
}

func (e *Engine) start() {
	// Report the first chunk after a start right away.
	e.sinceProgress = e.progressEvery
	if e.manualTicks != nil {
		e.ticks = e.manualTicks
		return
	}
	if e.ticker == nil {
		e.ticker = time.NewTicker(e.chunk)
		e.ticks = e.ticker.C
	}
}

func (e *Engine) halt() {
	if e.ticker != nil {
		e.ticker.Stop()
		e.ticker = nil
	}
	e.ticks = nil
}

func (e *Engine) snapshot() Status {
	return Status{
		State:    e.state,
		Position: e.format.Duration(e.cursor),
		Total:    e.timeline.Duration(),
		Volume:   e.volume,
		Segments: e.timeline.Segments(),
	}
}

func clampVolume(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return min(max(v, 0), 1)
}
