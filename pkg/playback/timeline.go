package playback

import (
	"time"

	"github.com/MrWong99/voxline/pkg/audio"
)

// Timeline is the append-only, merged PCM buffer behind an [Engine]. All
// segments share one [audio.Format]. Offsets into the timeline stay valid
// across appends, so a playback cursor survives the buffer being reallocated.
//
// Timeline is not safe for concurrent use; the engine loop owns it.
type Timeline struct {
	format   audio.Format
	pcm      []byte
	segments int
	lastSeq  uint64
}

// NewTimeline returns an empty timeline for format f.
func NewTimeline(f audio.Format) *Timeline {
	return &Timeline{format: f}
}

// Append merges seg onto the end of the timeline. A segment in a different
// format is rejected with an [*audio.FormatMismatchError] and leaves the
// timeline untouched.
func (t *Timeline) Append(seg audio.Segment) error {
	if seg.Format != t.format {
		return &audio.FormatMismatchError{Want: t.format, Got: seg.Format, Index: -1}
	}
	t.pcm = append(t.pcm, seg.PCM...)
	t.segments++
	t.lastSeq = seg.Seq
	return nil
}

// Read returns up to n bytes starting at offset off. The returned slice
// aliases the timeline and must not be modified.
func (t *Timeline) Read(off, n int) []byte {
	if off < 0 || off >= len(t.pcm) || n <= 0 {
		return nil
	}
	return t.pcm[off:min(off+n, len(t.pcm))]
}

// Reset discards every segment.
func (t *Timeline) Reset() {
	t.pcm = nil
	t.segments = 0
	t.lastSeq = 0
}

// Len is the merged length in bytes.
func (t *Timeline) Len() int { return len(t.pcm) }

// Duration is the merged playing time.
func (t *Timeline) Duration() time.Duration { return t.format.Duration(len(t.pcm)) }

// Segments is the number of segments merged since the last reset.
func (t *Timeline) Segments() int { return t.segments }

// LastSeq is the Seq of the most recently merged segment.
func (t *Timeline) LastSeq() uint64 { return t.lastSeq }

// Format is the shared format of the timeline.
func (t *Timeline) Format() audio.Format { return t.format }
