package vad

import "time"

// State is the state of a capture session.
type State int

const (
	// Idle means no capture is running.
	Idle State = iota

	// Listening means capture is running and waiting for speech.
	Listening

	// Recording means a segment is open.
	Recording
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Listening:
		return "listening"
	case Recording:
		return "recording"
	default:
		return "unknown"
	}
}

// Snapshot is the complete input state of [Transition].
type Snapshot struct {
	State State

	// Armed reports whether a silence deadline is pending.
	Armed bool

	// Deadline is the capture time at which a pending silence deadline
	// expires. Only meaningful when Armed.
	Deadline time.Duration
}

// EventKind enumerates the inputs of [Transition].
type EventKind int

const (
	// EventStart opens a session.
	EventStart EventKind = iota

	// EventFrame is a measured frame. Event.Max carries the window maximum
	// after the frame was pushed.
	EventFrame

	// EventStop closes a session immediately.
	EventStop
)

// Event is one input of [Transition].
type Event struct {
	Kind EventKind

	// At is the capture time of the frame.
	At time.Duration

	// Max is the window maximum amplitude.
	Max float64
}

// Effects lists what the caller must do after a transition.
type Effects struct {
	// Begin opens a new segment buffer starting with the current frame.
	Begin bool

	// Finalize closes the open segment and hands it to the clip filters.
	Finalize bool
}

// Transition is the capture state machine. It has no side effects.
//
//	Idle      --start-->                   Listening
//	Listening --frame, max > threshold-->  Recording (begin)
//	Recording --frame, max > threshold-->  Recording (deadline cleared)
//	Recording --frame, max <= threshold--> Recording (deadline armed)
//	Recording --frame past deadline, still silent--> Listening (finalize)
//	Listening|Recording --stop-->          Idle (finalize if recording)
//
// A frame at or past the deadline re-checks the window: if speech resumed,
// the stale deadline is cleared and the segment stays open.
func Transition(s Snapshot, ev Event, cfg Config) (Snapshot, Effects) {
	switch ev.Kind {
	case EventStart:
		if s.State == Idle {
			return Snapshot{State: Listening}, Effects{}
		}
		return s, Effects{}

	case EventStop:
		if s.State == Recording {
			return Snapshot{State: Idle}, Effects{Finalize: true}
		}
		return Snapshot{State: Idle}, Effects{}

	case EventFrame:
		speech := ev.Max > cfg.SpeechThreshold
		switch s.State {
		case Listening:
			if speech {
				return Snapshot{State: Recording}, Effects{Begin: true}
			}
		case Recording:
			switch {
			case speech:
				return Snapshot{State: Recording}, Effects{}
			case !s.Armed:
				return Snapshot{State: Recording, Armed: true, Deadline: ev.At + cfg.SilenceDuration}, Effects{}
			case ev.At >= s.Deadline:
				return Snapshot{State: Listening}, Effects{Finalize: true}
			}
		}
	}
	return s, Effects{}
}
