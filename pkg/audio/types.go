package audio

import (
	"time"

	"github.com/google/uuid"
)

// Frame is a single block of captured PCM delivered by a [CaptureStream].
// Frames are the atomic unit of capture: they are measured by an [Analyzer],
// judged by the VAD segmenter, and accumulated into a [Clip].
type Frame struct {
	// Data holds interleaved PCM in the stream's [Format].
	Data []byte

	// Timestamp marks when this frame was captured, relative to stream start.
	// It is the capture clock that drives silence timing.
	Timestamp time.Duration
}

// Segment is an immutable block of PCM together with the [Format] needed to
// interpret it and its arrival sequence number. Segments are created by
// [Decode] or on capture and are consumed by the playback timeline or by a
// clip.
type Segment struct {
	// Seq is a monotonic arrival number assigned by the producer. Arrival order
	// defines playback order.
	Seq uint64

	Format Format

	// PCM holds interleaved samples. Treat as read-only.
	PCM []byte
}

// Duration returns the playing time of the segment.
func (s Segment) Duration() time.Duration {
	return s.Format.Duration(len(s.PCM))
}

// Clip is a finished utterance cut from a capture session. Ownership passes
// to the consumer on emission; the engine keeps no reference to it.
type Clip struct {
	ID         string
	PCM        []byte
	Format     Format
	Duration   time.Duration
	CapturedAt time.Time
}

// NewClip builds a [Clip] with a fresh random ID.
func NewClip(pcm []byte, f Format, capturedAt time.Time) Clip {
	return Clip{
		ID:         uuid.NewString(),
		PCM:        pcm,
		Format:     f,
		Duration:   f.Duration(len(pcm)),
		CapturedAt: capturedAt,
	}
}

// DurationSeconds returns the clip length in fractional seconds.
func (c Clip) DurationSeconds() float64 {
	return c.Duration.Seconds()
}
