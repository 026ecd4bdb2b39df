package playback_test

import (
	"testing"

	"github.com/MrWong99/voxline/pkg/playback"
)

func TestTransition(t *testing.T) {
	t.Parallel()

	none := playback.Effects{}
	start := playback.Effects{Start: true}
	halt := playback.Effects{Halt: true}
	stop := playback.Effects{Halt: true, Rewind: true}

	tests := []struct {
		from    playback.State
		event   playback.Event
		queued  bool
		want    playback.State
		effects playback.Effects
	}{
		// Auto-start on append.
		{playback.Idle, playback.EventAppend, true, playback.Playing, start},
		{playback.Idle, playback.EventAppend, false, playback.Idle, none},
		{playback.Ended, playback.EventAppend, true, playback.Playing, start},
		{playback.Playing, playback.EventAppend, true, playback.Playing, none},
		{playback.Paused, playback.EventAppend, true, playback.Paused, none},

		// Play.
		{playback.Idle, playback.EventPlay, true, playback.Playing, start},
		{playback.Idle, playback.EventPlay, false, playback.Idle, none},
		{playback.Paused, playback.EventPlay, true, playback.Playing, start},
		{playback.Ended, playback.EventPlay, true, playback.Playing, playback.Effects{Start: true, Rewind: true}},
		{playback.Playing, playback.EventPlay, true, playback.Playing, none},

		// Pause.
		{playback.Playing, playback.EventPause, true, playback.Paused, halt},
		{playback.Idle, playback.EventPause, true, playback.Idle, none},
		{playback.Paused, playback.EventPause, true, playback.Paused, none},
		{playback.Ended, playback.EventPause, true, playback.Ended, none},

		// Stop from anywhere.
		{playback.Idle, playback.EventStop, false, playback.Idle, stop},
		{playback.Playing, playback.EventStop, true, playback.Idle, stop},
		{playback.Paused, playback.EventStop, true, playback.Idle, stop},
		{playback.Ended, playback.EventStop, true, playback.Idle, stop},

		// Clear.
		{playback.Playing, playback.EventClear, true, playback.Idle, playback.Effects{Halt: true, Rewind: true, Discard: true}},

		// Natural end.
		{playback.Playing, playback.EventEnd, true, playback.Ended, halt},
		{playback.Paused, playback.EventEnd, true, playback.Paused, none},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"+"+tt.event.String(), func(t *testing.T) {
			t.Parallel()
			got, fx := playback.Transition(tt.from, tt.event, tt.queued)
			if got != tt.want {
				t.Errorf("state = %s, want %s", got, tt.want)
			}
			if fx != tt.effects {
				t.Errorf("effects = %+v, want %+v", fx, tt.effects)
			}
		})
	}
}
