package playback

// State is the play state of an [Engine].
type State int

const (
	// Idle is the initial state and the state after Stop or Clear. The
	// position is zero.
	Idle State = iota

	// Playing means the engine is writing the timeline to the output.
	Playing

	// Paused holds the position for an exact resume.
	Paused

	// Ended means the cursor reached the end of the timeline while playing.
	Ended
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Ended:
		return "ended"
	default:
		return "unknown"
	}
}

// Event is an input to the playback state machine.
type Event int

const (
	// EventAppend is raised after a segment was added to the timeline.
	EventAppend Event = iota

	// EventPlay is an explicit play request.
	EventPlay

	// EventPause is an explicit pause request.
	EventPause

	// EventStop is an explicit stop request. The queue is kept.
	EventStop

	// EventClear stops playback and discards the queue.
	EventClear

	// EventEnd is raised by the engine when the cursor reaches the end of the
	// timeline.
	EventEnd
)

// String returns the lower-case event name.
func (e Event) String() string {
	switch e {
	case EventAppend:
		return "append"
	case EventPlay:
		return "play"
	case EventPause:
		return "pause"
	case EventStop:
		return "stop"
	case EventClear:
		return "clear"
	case EventEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Effects lists the side effects the engine must apply after a transition.
// The zero value means "nothing to do".
type Effects struct {
	// Start begins paced writes to the output from the current cursor.
	Start bool

	// Halt stops paced writes. Progress reporting stops with it.
	Halt bool

	// Rewind moves the cursor to the start of the timeline.
	Rewind bool

	// Discard drops every queued segment.
	Discard bool
}

// Transition is the playback state machine. queued reports whether the
// timeline holds at least one byte of audio after the event was applied to
// the queue. Transition has no side effects; the caller applies the returned
// [Effects].
//
//	Idle    --append|play--> Playing
//	Playing --pause-->       Paused
//	Paused  --play-->        Playing
//	Playing --end-->         Ended
//	Ended   --append-->      Playing (continue after the old end)
//	Ended   --play-->        Playing (replay from the start)
//	any     --stop|clear-->  Idle
func Transition(s State, e Event, queued bool) (State, Effects) {
	switch e {
	case EventAppend:
		if queued && (s == Idle || s == Ended) {
			return Playing, Effects{Start: true}
		}
	case EventPlay:
		if !queued {
			return s, Effects{}
		}
		switch s {
		case Idle, Paused:
			return Playing, Effects{Start: true}
		case Ended:
			return Playing, Effects{Start: true, Rewind: true}
		}
	case EventPause:
		if s == Playing {
			return Paused, Effects{Halt: true}
		}
	case EventStop:
		return Idle, Effects{Halt: true, Rewind: true}
	case EventClear:
		return Idle, Effects{Halt: true, Rewind: true, Discard: true}
	case EventEnd:
		if s == Playing {
			return Ended, Effects{Halt: true}
		}
	}
	return s, Effects{}
}
