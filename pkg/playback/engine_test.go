package playback_test

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/voxline/pkg/audio"
	"github.com/MrWong99/voxline/pkg/audio/mock"
	"github.com/MrWong99/voxline/pkg/playback"
)

const chunk = 20 * time.Millisecond

var format = audio.DefaultFormat()

// newEngine returns an engine driven by a manual tick channel.
func newEngine(t *testing.T, opts ...playback.Option) (*playback.Engine, *mock.Output, chan time.Time) {
	t.Helper()
	out := &mock.Output{}
	ticks := make(chan time.Time)
	opts = append([]playback.Option{playback.WithTicks(ticks), playback.WithChunkDuration(chunk)}, opts...)
	eng, err := playback.New(out, format, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = eng.Close() })
	return eng, out, ticks
}

// tick delivers n ticks to a playing engine and waits until the last one
// has been processed.
func tick(t *testing.T, eng *playback.Engine, ticks chan<- time.Time, n int) {
	t.Helper()
	for range n {
		select {
		case ticks <- time.Time{}:
		case <-time.After(time.Second):
			t.Fatal("engine did not accept tick")
		}
	}
	_ = eng.Status()
}

func segment(seq uint64, d time.Duration, amplitude float64) audio.Segment {
	return audio.Segment{Seq: seq, Format: format, PCM: mock.Tone(format, d, amplitude)}
}

func mustAppend(t *testing.T, eng *playback.Engine, seg audio.Segment) {
	t.Helper()
	if err := eng.Append(seg); err != nil {
		t.Fatalf("Append: %v", err)
	}
}

func TestEngine_AutoStartOnFirstAppend(t *testing.T) {
	t.Parallel()

	eng, _, _ := newEngine(t)
	if got := eng.Status().State; got != playback.Idle {
		t.Fatalf("initial state = %s, want idle", got)
	}

	mustAppend(t, eng, segment(1, time.Second, 0.5))

	st := eng.Status()
	if st.State != playback.Playing {
		t.Fatalf("state after append = %s, want playing", st.State)
	}
	if st.Total != time.Second {
		t.Errorf("Total = %v, want 1s", st.Total)
	}
	if st.Position != 0 {
		t.Errorf("Position = %v, want 0", st.Position)
	}
}

func TestEngine_ContinuityOnAppend(t *testing.T) {
	t.Parallel()

	eng, out, ticks := newEngine(t)
	a := segment(1, 100*time.Millisecond, 0.5)
	b := segment(2, 100*time.Millisecond, 0.25)

	mustAppend(t, eng, a)
	tick(t, eng, ticks, 3)

	before := eng.Status().Position
	if before != 3*chunk {
		t.Fatalf("Position before append = %v, want %v", before, 3*chunk)
	}

	mustAppend(t, eng, b)

	after := eng.Status()
	if after.Position != before {
		t.Errorf("Position after append = %v, want %v", after.Position, before)
	}
	if after.Total != 200*time.Millisecond {
		t.Errorf("Total = %v, want 200ms", after.Total)
	}
	if after.State != playback.Playing {
		t.Errorf("state = %s, want playing", after.State)
	}

	// Play through to the end: the output must see A then B with no gap.
	tick(t, eng, ticks, 7)
	if got := eng.Status().State; got != playback.Ended {
		t.Fatalf("state = %s, want ended", got)
	}
	want := append(bytes.Clone(a.PCM), b.PCM...)
	if !bytes.Equal(out.Written(), want) {
		t.Errorf("output (%d bytes) is not A followed by B (%d bytes)", len(out.Written()), len(want))
	}
}

func TestEngine_PauseResume(t *testing.T) {
	t.Parallel()

	eng, out, ticks := newEngine(t)
	mustAppend(t, eng, segment(1, 200*time.Millisecond, 0.5))
	tick(t, eng, ticks, 2)

	if err := eng.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	st := eng.Status()
	if st.State != playback.Paused || st.Position != 2*chunk {
		t.Fatalf("after pause = %s at %v, want paused at %v", st.State, st.Position, 2*chunk)
	}

	// A paused engine does not consume ticks.
	select {
	case ticks <- time.Time{}:
		t.Fatal("paused engine accepted a tick")
	case <-time.After(30 * time.Millisecond):
	}
	writes := out.WriteCount()

	if err := eng.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	tick(t, eng, ticks, 1)
	if got := eng.Status().Position; got != 3*chunk {
		t.Errorf("Position after resume = %v, want %v", got, 3*chunk)
	}
	if out.WriteCount() != writes+1 {
		t.Errorf("writes = %d, want %d", out.WriteCount(), writes+1)
	}
}

func TestEngine_PauseWhenNotPlayingIsNoop(t *testing.T) {
	t.Parallel()

	eng, _, _ := newEngine(t)
	if err := eng.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if got := eng.Status().State; got != playback.Idle {
		t.Errorf("state = %s, want idle", got)
	}
}

func TestEngine_PlayEmptyQueueIsNoop(t *testing.T) {
	t.Parallel()

	eng, _, _ := newEngine(t)
	if err := eng.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if got := eng.Status().State; got != playback.Idle {
		t.Errorf("state = %s, want idle", got)
	}
}

func TestEngine_StopKeepsQueue(t *testing.T) {
	t.Parallel()

	eng, out, ticks := newEngine(t)
	seg := segment(1, 100*time.Millisecond, 0.5)
	mustAppend(t, eng, seg)
	tick(t, eng, ticks, 2)

	if err := eng.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	st := eng.Status()
	if st.State != playback.Idle || st.Position != 0 {
		t.Fatalf("after stop = %s at %v, want idle at 0", st.State, st.Position)
	}
	if st.Total != 100*time.Millisecond {
		t.Errorf("Total = %v, want queue retained (100ms)", st.Total)
	}

	if err := eng.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	tick(t, eng, ticks, 1)
	if !bytes.Equal(out.LastWrite(), seg.PCM[:format.BytesFor(chunk)]) {
		t.Error("play after stop did not restart from the beginning")
	}
}

func TestEngine_Clear(t *testing.T) {
	t.Parallel()

	eng, _, _ := newEngine(t)
	mustAppend(t, eng, segment(1, 100*time.Millisecond, 0.5))

	if err := eng.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	st := eng.Status()
	if st.State != playback.Idle || st.Total != 0 || st.Segments != 0 {
		t.Fatalf("after clear = %+v, want idle and empty", st)
	}
	if err := eng.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if got := eng.Status().State; got != playback.Idle {
		t.Errorf("play after clear: state = %s, want idle", got)
	}
}

func TestEngine_EndedThenAppendContinues(t *testing.T) {
	t.Parallel()

	eng, out, ticks := newEngine(t)
	a := segment(1, 2*chunk, 0.5)
	mustAppend(t, eng, a)
	tick(t, eng, ticks, 2)

	if got := eng.Status().State; got != playback.Ended {
		t.Fatalf("state = %s, want ended", got)
	}

	b := segment(2, 2*chunk, 0.25)
	mustAppend(t, eng, b)
	st := eng.Status()
	if st.State != playback.Playing {
		t.Fatalf("state after append = %s, want playing", st.State)
	}
	if st.Position != 2*chunk {
		t.Errorf("Position = %v, want %v", st.Position, 2*chunk)
	}

	tick(t, eng, ticks, 1)
	if !bytes.Equal(out.LastWrite(), b.PCM[:format.BytesFor(chunk)]) {
		t.Error("playback after auto-restart did not continue with the new segment")
	}
}

func TestEngine_PlayFromEndedReplays(t *testing.T) {
	t.Parallel()

	eng, _, ticks := newEngine(t)
	mustAppend(t, eng, segment(1, 2*chunk, 0.5))
	tick(t, eng, ticks, 2)

	if err := eng.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	st := eng.Status()
	if st.State != playback.Playing || st.Position != 0 {
		t.Errorf("after replay = %s at %v, want playing at 0", st.State, st.Position)
	}
}

func TestEngine_ProgressStopsOnPause(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var updates []playback.Status
	eng, _, ticks := newEngine(t,
		playback.WithProgressInterval(2*chunk),
		playback.WithOnProgress(func(s playback.Status) {
			mu.Lock()
			defer mu.Unlock()
			updates = append(updates, s)
		}),
	)
	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(updates)
	}

	mustAppend(t, eng, segment(1, time.Second, 0.5))
	tick(t, eng, ticks, 5)

	// First chunk reports immediately, then every second chunk.
	if got := count(); got != 3 {
		t.Fatalf("progress updates = %d, want 3", got)
	}

	if err := eng.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	paused := count()
	time.Sleep(30 * time.Millisecond)
	if got := count(); got != paused {
		t.Errorf("progress updates after pause = %d, want %d", got, paused)
	}

	mu.Lock()
	last := updates[len(updates)-1]
	mu.Unlock()
	if last.State != playback.Playing {
		t.Errorf("progress state = %s, want playing", last.State)
	}
	if last.Position != 5*chunk {
		t.Errorf("last progress position = %v, want %v", last.Position, 5*chunk)
	}
}

func TestEngine_ProgressStopsOnEnd(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var transitions []playback.State
	progress := 0
	eng, err := playback.New(&mock.Output{}, format,
		playback.WithChunkDuration(5*time.Millisecond),
		playback.WithProgressInterval(5*time.Millisecond),
		playback.WithOnProgress(func(playback.Status) {
			mu.Lock()
			progress++
			mu.Unlock()
		}),
		playback.WithOnStateChange(func(_, to playback.State) {
			mu.Lock()
			transitions = append(transitions, to)
			mu.Unlock()
		}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer eng.Close()

	mustAppend(t, eng, segment(1, 30*time.Millisecond, 0.5))

	deadline := time.Now().Add(2 * time.Second)
	for eng.Status().State != playback.Ended {
		if time.Now().After(deadline) {
			t.Fatal("engine never reached ended")
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	atEnd := progress
	mu.Unlock()
	time.Sleep(30 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if progress != atEnd {
		t.Errorf("progress updates after end = %d, want %d", progress, atEnd)
	}
	if len(transitions) != 2 || transitions[0] != playback.Playing || transitions[1] != playback.Ended {
		t.Errorf("transitions = %v, want [playing ended]", transitions)
	}
}

func TestEngine_SetVolume(t *testing.T) {
	t.Parallel()

	eng, out, _ := newEngine(t, playback.WithVolume(0.8))
	if got := out.LastVolume(); got != 0.8 {
		t.Fatalf("initial output volume = %v, want 0.8", got)
	}

	tests := []struct {
		in, want float64
	}{
		{0.5, 0.5},
		{1.5, 1},
		{-0.2, 0},
	}
	for _, tt := range tests {
		if err := eng.SetVolume(tt.in); err != nil {
			t.Fatalf("SetVolume(%v): %v", tt.in, err)
		}
		if got := eng.Status().Volume; got != tt.want {
			t.Errorf("SetVolume(%v): Status.Volume = %v, want %v", tt.in, got, tt.want)
		}
		if got := out.LastVolume(); got != tt.want {
			t.Errorf("SetVolume(%v): output volume = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestEngine_FormatMismatch(t *testing.T) {
	t.Parallel()

	eng, _, _ := newEngine(t)
	other := audio.Format{SampleRate: 24000, Channels: 1, BitsPerSample: 16}
	err := eng.Append(audio.Segment{Format: other, PCM: []byte{0, 0}})

	var me *audio.FormatMismatchError
	if !errors.As(err, &me) {
		t.Fatalf("err = %v, want *FormatMismatchError", err)
	}
	if me.Want != format || me.Got != other {
		t.Errorf("mismatch = %+v", me)
	}
	st := eng.Status()
	if st.State != playback.Idle || st.Total != 0 {
		t.Errorf("state after rejected append = %+v, want idle and empty", st)
	}
}

func TestEngine_Close(t *testing.T) {
	t.Parallel()

	out := &mock.Output{}
	eng, err := playback.New(out, format)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mustAppend(t, eng, segment(1, time.Second, 0.5))

	if err := eng.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := eng.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if got := out.Closes(); got != 1 {
		t.Errorf("output closed %d times, want 1", got)
	}
	if eng.Alive() {
		t.Error("Alive() = true after Close")
	}
	if err := eng.Play(); !errors.Is(err, playback.ErrClosed) {
		t.Errorf("Play after Close = %v, want ErrClosed", err)
	}
	if got := eng.Status().State; got != playback.Playing {
		t.Errorf("Status after Close = %s, want the state it was closed in", got)
	}
}

func TestNew_InvalidFormat(t *testing.T) {
	t.Parallel()

	_, err := playback.New(nil, audio.Format{SampleRate: 16000, Channels: 1, BitsPerSample: 32})
	if !errors.Is(err, audio.ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
}
