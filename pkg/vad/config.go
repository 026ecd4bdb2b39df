// Package vad cuts a live capture stream into utterance clips using
// single-band amplitude voice activity detection.
//
// Every frame delivered by the capture device is measured by an
// [audio.Analyzer] and pushed into a sliding [History]. The maximum amplitude
// in the window drives a small state machine ([Transition]): loud audio opens
// a segment, and a segment is closed once the window has stayed below the
// threshold for [Config.SilenceDuration]. Closed segments that are too short
// or too small are discarded as noise.
//
// All timing follows the capture frame clock ([audio.Frame.Timestamp]), not
// the wall clock, so a [Segmenter] fed synthetic frames behaves exactly like
// a live session.
package vad

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/voxline/pkg/audio"
)

// Defaults applied by [DefaultConfig].
const (
	DefaultSpeechThreshold        = 0.1
	DefaultDecibelSpeechThreshold = -50.0
	DefaultSilenceDuration        = 2 * time.Second
	DefaultWindow                 = 300 * time.Millisecond
	DefaultMinClipBytes           = 1000
	DefaultMinDuration            = 300 * time.Millisecond
)

// ErrScaleMismatch is returned by [Config.Validate] when the threshold scale
// does not match the analyzer's.
var ErrScaleMismatch = errors.New("vad: threshold scale does not match analyzer")

// Config holds the detection parameters of one capture session.
type Config struct {
	// Scale is the unit SpeechThreshold is expressed in. It must equal the
	// analyzer's [audio.Analyzer.Scale].
	Scale audio.Scale

	// SpeechThreshold is the window maximum above which audio counts as
	// speech. Typical: 0.1 on the normalized scale, -50 on the decibel scale.
	SpeechThreshold float64

	// SilenceDuration is how long the window must stay at or below the
	// threshold before an open segment is closed.
	SilenceDuration time.Duration

	// Window is the span of the sliding amplitude history.
	Window time.Duration

	// MinClipBytes discards clips with fewer PCM bytes.
	MinClipBytes int

	// MinDuration discards clips shorter than this.
	MinDuration time.Duration
}

// DefaultConfig returns the normalized-scale defaults.
func DefaultConfig() Config {
	return Config{
		Scale:           audio.ScaleNormalized,
		SpeechThreshold: DefaultSpeechThreshold,
		SilenceDuration: DefaultSilenceDuration,
		Window:          DefaultWindow,
		MinClipBytes:    DefaultMinClipBytes,
		MinDuration:     DefaultMinDuration,
	}
}

// Validate checks c against the analyzer it will be used with and returns
// every violation joined.
func (c Config) Validate(a audio.Analyzer) error {
	var errs []error
	if a != nil && a.Scale() != c.Scale {
		errs = append(errs, fmt.Errorf("%w: threshold is %s, analyzer reports %s", ErrScaleMismatch, c.Scale, a.Scale()))
	}
	if lo, hi := c.Scale.Bounds(); c.SpeechThreshold < lo || c.SpeechThreshold > hi {
		errs = append(errs, fmt.Errorf("vad: speech threshold %v outside %s range [%v, %v]", c.SpeechThreshold, c.Scale, lo, hi))
	}
	if c.SilenceDuration <= 0 {
		errs = append(errs, fmt.Errorf("vad: silence duration %v must be positive", c.SilenceDuration))
	}
	if c.Window <= 0 {
		errs = append(errs, fmt.Errorf("vad: window %v must be positive", c.Window))
	}
	if c.MinClipBytes < 0 {
		errs = append(errs, fmt.Errorf("vad: min clip bytes %d must not be negative", c.MinClipBytes))
	}
	if c.MinDuration < 0 {
		errs = append(errs, fmt.Errorf("vad: min duration %v must not be negative", c.MinDuration))
	}
	return errors.Join(errs...)
}
