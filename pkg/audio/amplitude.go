package audio

import (
	"fmt"
	"math"
)

// Scale identifies the unit an [Analyzer] reports in. Thresholds are only
// meaningful against the scale they were tuned for, so a deployment picks one
// scale and every threshold it configures is expressed in it.
type Scale int

const (
	// ScaleNormalized reports loudness in [0, 1], where 1 is full scale.
	ScaleNormalized Scale = iota

	// ScaleDecibel reports loudness in dBFS, in [DecibelFloor, 0].
	ScaleDecibel
)

// DecibelFloor is the value reported for digital silence on [ScaleDecibel].
const DecibelFloor = -100.0

// String returns the configuration name of the scale.
func (s Scale) String() string {
	switch s {
	case ScaleNormalized:
		return "normalized"
	case ScaleDecibel:
		return "decibel"
	default:
		return "unknown"
	}
}

// Bounds returns the closed range of values an analyzer on this scale can
// report.
func (s Scale) Bounds() (lo, hi float64) {
	if s == ScaleDecibel {
		return DecibelFloor, 0
	}
	return 0, 1
}

// ParseScale converts a configuration name into a [Scale].
func ParseScale(name string) (Scale, error) {
	switch name {
	case "", "normalized":
		return ScaleNormalized, nil
	case "decibel", "db":
		return ScaleDecibel, nil
	}
	return 0, fmt.Errorf("audio: unknown amplitude scale %q", name)
}

// Analyzer maps one PCM frame to a scalar loudness. Implementations are
// stateless and safe for concurrent use.
type Analyzer interface {
	// Measure returns the loudness of frame in the analyzer's [Scale].
	// An empty frame measures as the bottom of the scale.
	Measure(frame []byte, f Format) (float64, error)

	// Scale reports the unit Measure returns.
	Scale() Scale
}

// Analyzer kinds accepted by [NewAnalyzer].
const (
	AnalyzerPeak       = "peak"
	AnalyzerMeanEnergy = "mean_energy"
	AnalyzerDecibel    = "decibel"
)

// NewAnalyzer returns the analyzer registered under kind. An empty kind
// selects [PeakAnalyzer].
func NewAnalyzer(kind string) (Analyzer, error) {
	switch kind {
	case "", AnalyzerPeak:
		return PeakAnalyzer{}, nil
	case AnalyzerMeanEnergy:
		return MeanEnergyAnalyzer{}, nil
	case AnalyzerDecibel:
		return DecibelAnalyzer{}, nil
	}
	return nil, fmt.Errorf("audio: unknown analyzer %q (want %s, %s or %s)",
		kind, AnalyzerPeak, AnalyzerMeanEnergy, AnalyzerDecibel)
}

// PeakAnalyzer reports max(|sample - midpoint|) / halfRange over the frame.
type PeakAnalyzer struct{}

// Measure implements [Analyzer].
func (PeakAnalyzer) Measure(frame []byte, f Format) (float64, error) {
	var peak float64
	err := eachDeviation(frame, f, func(d float64) {
		if d > peak {
			peak = d
		}
	})
	return peak, err
}

// Scale implements [Analyzer].
func (PeakAnalyzer) Scale() Scale { return ScaleNormalized }

// MeanEnergyAnalyzer reports the mean absolute deviation from the midpoint,
// normalized to [0, 1].
type MeanEnergyAnalyzer struct{}

// Measure implements [Analyzer].
func (MeanEnergyAnalyzer) Measure(frame []byte, f Format) (float64, error) {
	return meanDeviation(frame, f)
}

// Scale implements [Analyzer].
func (MeanEnergyAnalyzer) Scale() Scale { return ScaleNormalized }

// DecibelAnalyzer reports the mean absolute deviation as 20*log10(mean).
// On the 0..255 byte domain this is 20*log10(byteMean/255). Silence is
// clamped to [DecibelFloor].
type DecibelAnalyzer struct{}

// Measure implements [Analyzer].
func (DecibelAnalyzer) Measure(frame []byte, f Format) (float64, error) {
	mean, err := meanDeviation(frame, f)
	if err != nil {
		return DecibelFloor, err
	}
	if mean <= 0 {
		return DecibelFloor, nil
	}
	return math.Max(20*math.Log10(mean), DecibelFloor), nil
}

// Scale implements [Analyzer].
func (DecibelAnalyzer) Scale() Scale { return ScaleDecibel }

func meanDeviation(frame []byte, f Format) (float64, error) {
	var sum float64
	var n int
	err := eachDeviation(frame, f, func(d float64) {
		sum += d
		n++
	})
	if err != nil || n == 0 {
		return 0, err
	}
	return sum / float64(n), nil
}

// eachDeviation calls fn with |sample - midpoint| / halfRange for every
// sample in frame without allocating.
func eachDeviation(frame []byte, f Format, fn func(float64)) error {
	switch f.BitsPerSample {
	case 16:
		for i := 0; i+1 < len(frame); i += 2 {
			s := int16(frame[i]) | int16(frame[i+1])<<8
			fn(math.Abs(float64(s)) / 32768)
		}
	case 8:
		for _, b := range frame {
			fn(math.Abs(float64(int(b)-128)) / 128)
		}
	default:
		return &UnsupportedFormatError{BitsPerSample: f.BitsPerSample}
	}
	return nil
}
