package audio_test

import (
	"errors"
	"math"
	"testing"

	"github.com/MrWong99/voxline/pkg/audio"
)

func TestPeakAnalyzer(t *testing.T) {
	t.Parallel()

	f := audio.DefaultFormat()
	tests := []struct {
		name    string
		samples []int16
		want    float64
	}{
		{"silence", []int16{0, 0, 0}, 0},
		{"half", []int16{100, -16384, 200}, 0.5},
		{"full negative", []int16{-32768, 0}, 1},
		{"empty", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := audio.PeakAnalyzer{}.Measure(samplesToBytes(tt.samples), f)
			if err != nil {
				t.Fatalf("Measure: %v", err)
			}
			if got != tt.want {
				t.Errorf("Measure = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPeakAnalyzer_EightBit(t *testing.T) {
	t.Parallel()

	f := audio.Format{SampleRate: 8000, Channels: 1, BitsPerSample: 8}
	got, err := audio.PeakAnalyzer{}.Measure([]byte{128, 160, 64}, f)
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	if got != 0.5 {
		t.Errorf("Measure = %v, want 0.5", got)
	}
}

func TestMeanEnergyAnalyzer(t *testing.T) {
	t.Parallel()

	got, err := audio.MeanEnergyAnalyzer{}.Measure(samplesToBytes([]int16{16384, -16384, 0, 0}), audio.DefaultFormat())
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	if got != 0.25 {
		t.Errorf("Measure = %v, want 0.25", got)
	}
}

func TestDecibelAnalyzer(t *testing.T) {
	t.Parallel()

	f := audio.DefaultFormat()
	a := audio.DecibelAnalyzer{}
	if a.Scale() != audio.ScaleDecibel {
		t.Fatalf("Scale = %v, want decibel", a.Scale())
	}

	silence, err := a.Measure(samplesToBytes([]int16{0, 0}), f)
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	if silence != audio.DecibelFloor {
		t.Errorf("silence = %v, want %v", silence, audio.DecibelFloor)
	}

	// Mean deviation 0.1 -> -20 dB.
	tenth := int16(3277)
	got, err := a.Measure(samplesToBytes([]int16{tenth, -tenth}), f)
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	if math.Abs(got-(-20)) > 0.01 {
		t.Errorf("Measure = %v, want about -20", got)
	}
}

func TestAnalyzer_UnsupportedFormat(t *testing.T) {
	t.Parallel()

	f := audio.Format{SampleRate: 8000, Channels: 1, BitsPerSample: 12}
	for _, a := range []audio.Analyzer{audio.PeakAnalyzer{}, audio.MeanEnergyAnalyzer{}, audio.DecibelAnalyzer{}} {
		if _, err := a.Measure([]byte{1, 2}, f); !errors.Is(err, audio.ErrUnsupportedFormat) {
			t.Errorf("%T: err = %v, want ErrUnsupportedFormat", a, err)
		}
	}
}

func TestNewAnalyzer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind  string
		scale audio.Scale
	}{
		{"", audio.ScaleNormalized},
		{audio.AnalyzerPeak, audio.ScaleNormalized},
		{audio.AnalyzerMeanEnergy, audio.ScaleNormalized},
		{audio.AnalyzerDecibel, audio.ScaleDecibel},
	}
	for _, tt := range tests {
		a, err := audio.NewAnalyzer(tt.kind)
		if err != nil {
			t.Fatalf("NewAnalyzer(%q): %v", tt.kind, err)
		}
		if a.Scale() != tt.scale {
			t.Errorf("NewAnalyzer(%q).Scale() = %v, want %v", tt.kind, a.Scale(), tt.scale)
		}
	}

	if _, err := audio.NewAnalyzer("spectral"); err == nil {
		t.Error("NewAnalyzer(spectral) returned nil error")
	}
}

func TestParseScale(t *testing.T) {
	t.Parallel()

	for name, want := range map[string]audio.Scale{
		"":           audio.ScaleNormalized,
		"normalized": audio.ScaleNormalized,
		"decibel":    audio.ScaleDecibel,
		"db":         audio.ScaleDecibel,
	} {
		got, err := audio.ParseScale(name)
		if err != nil {
			t.Fatalf("ParseScale(%q): %v", name, err)
		}
		if got != want {
			t.Errorf("ParseScale(%q) = %v, want %v", name, got, want)
		}
	}
	if _, err := audio.ParseScale("linear"); err == nil {
		t.Error("ParseScale(linear) returned nil error")
	}
}
