package mock

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/MrWong99/voxline/pkg/audio"
)

// toneHz is the pitch of generated tones.
const toneHz = 440.0

// Tone returns d of a 440 Hz sine at the given peak amplitude (0..1) in
// format f. Every channel carries the same signal.
func Tone(f audio.Format, d time.Duration, amplitude float64) []byte {
	return tone(f, d, amplitude, 0)
}

func tone(f audio.Format, d time.Duration, amplitude float64, phase int) []byte {
	pcm := make([]byte, f.BytesFor(d))
	frames := len(pcm) / f.BlockAlign()
	for i := range frames {
		v := amplitude * math.Sin(2*math.Pi*toneHz*float64(phase+i)/float64(f.SampleRate))
		for ch := range f.Channels {
			off := (i*f.Channels + ch) * f.BytesPerSample()
			putSample(pcm[off:], f, v)
		}
	}
	return pcm
}

// Silence returns d of digital silence in format f.
func Silence(f audio.Format, d time.Duration) []byte {
	pcm := make([]byte, f.BytesFor(d))
	if f.BitsPerSample == 8 {
		for i := range pcm {
			pcm[i] = 128
		}
	}
	return pcm
}

// Split cuts pcm into frames of frameDur, stamping them from start onwards.
// A trailing partial frame is kept.
func Split(pcm []byte, f audio.Format, frameDur, start time.Duration) []audio.Frame {
	size := f.BytesFor(frameDur)
	if size <= 0 {
		return nil
	}
	var out []audio.Frame
	at := start
	for off := 0; off < len(pcm); off += size {
		end := min(off+size, len(pcm))
		out = append(out, audio.Frame{Data: pcm[off:end], Timestamp: at})
		at += f.Duration(end - off)
	}
	return out
}

func putSample(dst []byte, f audio.Format, v float64) {
	switch f.BitsPerSample {
	case 16:
		s := int16(v * 32767)
		dst[0] = byte(s)
		dst[1] = byte(s >> 8)
	case 8:
		dst[0] = byte(int(v*127) + 128)
	}
}

// ─── Generator ────────────────────────────────────────────────────────────────

// Generator is an [audio.CaptureDevice] that synthesizes a repeating pattern
// of tone bursts and silence in real time. It stands in for a microphone on
// hosts without audio hardware.
type Generator struct {
	// Speech is the length of each tone burst. Default: 1.5s.
	Speech time.Duration

	// Pause is the silence between bursts. Default: 3s.
	Pause time.Duration

	// Amplitude is the peak tone level in [0, 1]. Default: 0.5.
	Amplitude float64

	// FrameDuration is the frame size and tick interval. Default: 20ms.
	FrameDuration time.Duration
}

// Acquire implements [audio.CaptureDevice].
func (g *Generator) Acquire(ctx context.Context, f audio.Format) (audio.CaptureStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	cfg := *g
	if cfg.Speech <= 0 {
		cfg.Speech = 1500 * time.Millisecond
	}
	if cfg.Pause <= 0 {
		cfg.Pause = 3 * time.Second
	}
	if cfg.Amplitude <= 0 {
		cfg.Amplitude = 0.5
	}
	if cfg.FrameDuration <= 0 {
		cfg.FrameDuration = 20 * time.Millisecond
	}

	s := &generatorStream{
		frames: make(chan audio.Frame, 8),
		done:   make(chan struct{}),
	}
	go s.run(cfg, f)
	slog.Debug("mock generator acquired", "format", f.String(), "speech", cfg.Speech, "pause", cfg.Pause)
	return s, nil
}

type generatorStream struct {
	frames   chan audio.Frame
	done     chan struct{}
	stopOnce sync.Once
}

func (s *generatorStream) run(g Generator, f audio.Format) {
	defer close(s.frames)

	ticker := time.NewTicker(g.FrameDuration)
	defer ticker.Stop()

	period := g.Speech + g.Pause
	frameBytes := f.BytesFor(g.FrameDuration)
	var at time.Duration
	var sample int
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
		}

		var data []byte
		if at%period < g.Speech {
			data = tone(f, g.FrameDuration, g.Amplitude, sample)
		} else {
			data = Silence(f, g.FrameDuration)
		}
		sample += frameBytes / f.BlockAlign()

		select {
		case s.frames <- audio.Frame{Data: data, Timestamp: at}:
		default:
			slog.Debug("mock generator: consumer behind, dropping frame")
		}
		at += g.FrameDuration
	}
}

func (s *generatorStream) Frames() <-chan audio.Frame { return s.frames }

func (s *generatorStream) Err() error { return nil }

func (s *generatorStream) Release() error {
	s.stopOnce.Do(func() { close(s.done) })
	return nil
}

var _ audio.CaptureDevice = (*Generator)(nil)
