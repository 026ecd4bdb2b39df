package vad

import (
	"fmt"
	"time"

	"github.com/MrWong99/voxline/pkg/audio"
)

// Outcome classifies a finalized segment.
type Outcome int

const (
	// OutcomeEmitted means the segment passed the filters and became a clip.
	OutcomeEmitted Outcome = iota

	// OutcomeTooSmall means the clip had fewer than MinClipBytes bytes.
	OutcomeTooSmall

	// OutcomeTooShort means the clip was shorter than MinDuration.
	OutcomeTooShort
)

// String returns the metric label of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeEmitted:
		return "emitted"
	case OutcomeTooSmall:
		return "too_small"
	case OutcomeTooShort:
		return "too_short"
	default:
		return "unknown"
	}
}

// Result is a finalized segment. Clip is populated for every outcome so
// discarded segments can still be inspected.
type Result struct {
	Clip    audio.Clip
	Outcome Outcome
}

// Emitted reports whether the clip should be handed to the sink.
func (r Result) Emitted() bool { return r.Outcome == OutcomeEmitted }

// Segmenter is the deterministic core of a capture session: it turns a
// sequence of frames into finalized segments. It is not safe for concurrent
// use.
type Segmenter struct {
	format   audio.Format
	cfg      Config
	analyzer audio.Analyzer
	origin   time.Time

	history *History
	snap    Snapshot

	buf      []byte
	loudEnd  int
	segStart time.Duration
}

// NewSegmenter validates cfg against a and returns a segmenter in the Idle
// state. origin is the wall-clock time of capture time zero and is used to
// stamp clips.
func NewSegmenter(f audio.Format, cfg Config, a audio.Analyzer, origin time.Time) (*Segmenter, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if a == nil {
		a = audio.PeakAnalyzer{}
	}
	if err := cfg.Validate(a); err != nil {
		return nil, err
	}
	return &Segmenter{
		format:   f,
		cfg:      cfg,
		analyzer: a,
		origin:   origin,
		history:  NewHistory(cfg.Window),
	}, nil
}

// Start moves the segmenter from Idle to Listening with an empty history.
func (s *Segmenter) Start() {
	s.history = NewHistory(s.cfg.Window)
	s.snap, _ = Transition(s.snap, Event{Kind: EventStart}, s.cfg)
}

// State returns the current state.
func (s *Segmenter) State() State { return s.snap.State }

// Process measures fr, updates the window and applies the resulting
// transition. ok is true when a segment was finalized by this frame.
func (s *Segmenter) Process(fr audio.Frame) (res Result, ok bool, err error) {
	if s.snap.State == Idle {
		return Result{}, false, nil
	}
	amp, err := s.analyzer.Measure(fr.Data, s.format)
	if err != nil {
		return Result{}, false, fmt.Errorf("vad: measure frame at %v: %w", fr.Timestamp, err)
	}
	s.history.Push(Sample{At: fr.Timestamp, Amplitude: amp})
	windowMax, _ := s.history.Max()

	next, fx := Transition(s.snap, Event{Kind: EventFrame, At: fr.Timestamp, Max: windowMax}, s.cfg)
	s.snap = next

	if fx.Begin {
		s.buf = s.buf[:0]
		s.loudEnd = 0
		s.segStart = fr.Timestamp
	}
	if fx.Finalize {
		return s.finalize(), true, nil
	}
	if s.snap.State == Recording {
		s.buf = append(s.buf, fr.Data...)
		if amp > s.cfg.SpeechThreshold {
			s.loudEnd = len(s.buf)
		}
	}
	return Result{}, false, nil
}

// Stop closes the session. An open segment is finalized regardless of the
// silence state; ok reports whether there was one. Stop is idempotent.
func (s *Segmenter) Stop() (res Result, ok bool) {
	next, fx := Transition(s.snap, Event{Kind: EventStop}, s.cfg)
	s.snap = next
	if fx.Finalize {
		return s.finalize(), true
	}
	return Result{}, false
}

// finalize trims trailing sub-threshold audio and applies the noise filters.
func (s *Segmenter) finalize() Result {
	end := s.loudEnd
	if end == 0 {
		end = len(s.buf)
	}
	pcm := make([]byte, end)
	copy(pcm, s.buf[:end])
	s.buf = s.buf[:0]
	s.loudEnd = 0

	clip := audio.NewClip(pcm, s.format, s.origin.Add(s.segStart))
	res := Result{Clip: clip, Outcome: OutcomeEmitted}
	switch {
	case len(pcm) < s.cfg.MinClipBytes:
		res.Outcome = OutcomeTooSmall
	case clip.Duration < s.cfg.MinDuration:
		res.Outcome = OutcomeTooShort
	}
	return res
}
