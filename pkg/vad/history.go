package vad

import "time"

// Sample is one amplitude measurement on the capture clock.
type Sample struct {
	At        time.Duration
	Amplitude float64
}

// History is a time-bounded sliding window of amplitude samples. Samples
// must be pushed in non-decreasing At order.
type History struct {
	window  time.Duration
	samples []Sample
}

// NewHistory returns an empty history spanning window.
func NewHistory(window time.Duration) *History {
	return &History{window: window}
}

// Push records a sample and prunes every sample that fell out of the window
// ending at s.At.
func (h *History) Push(s Sample) {
	h.samples = append(h.samples, s)
	h.Prune(s.At)
}

// Prune drops samples with At <= now-window.
func (h *History) Prune(now time.Duration) {
	cutoff := now - h.window
	i := 0
	for i < len(h.samples) && h.samples[i].At <= cutoff {
		i++
	}
	if i > 0 {
		h.samples = append(h.samples[:0], h.samples[i:]...)
	}
}

// Max returns the largest amplitude in the window. ok is false when the
// window is empty.
func (h *History) Max() (maxAmp float64, ok bool) {
	for i, s := range h.samples {
		if i == 0 || s.Amplitude > maxAmp {
			maxAmp = s.Amplitude
		}
	}
	return maxAmp, len(h.samples) > 0
}

// Len is the number of samples in the window.
func (h *History) Len() int { return len(h.samples) }
