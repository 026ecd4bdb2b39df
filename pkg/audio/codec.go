package audio

import (
	"encoding/base64"
	"strings"
)

// Decode converts a base64 payload, optionally wrapped in a data URI such as
// "data:audio/pcm;base64,AAAA", into a [Segment] of format f.
//
// Malformed text, an empty payload, or a byte count that is not a whole
// number of sample frames yields a [*DecodeError]. An unsupported f yields an
// [*UnsupportedFormatError]. Decode never retries; the caller decides whether
// to drop the chunk.
func Decode(text string, f Format) (Segment, error) {
	if err := f.Validate(); err != nil {
		return Segment{}, err
	}

	payload := strings.TrimSpace(text)
	if strings.HasPrefix(payload, "data:") {
		_, rest, ok := strings.Cut(payload, ",")
		if !ok {
			return Segment{}, &DecodeError{Reason: "data URI has no payload"}
		}
		payload = rest
	}
	if payload == "" {
		return Segment{}, &DecodeError{Reason: "empty payload"}
	}

	pcm, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Some producers strip the trailing padding.
		raw, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if rawErr != nil {
			return Segment{}, &DecodeError{Reason: "invalid base64", Err: err}
		}
		pcm = raw
	}
	if len(pcm)%f.BlockAlign() != 0 {
		return Segment{}, &DecodeError{Reason: "payload is not a whole number of sample frames"}
	}
	return Segment{Format: f, PCM: pcm}, nil
}

// EncodeBase64 returns the standard base64 text for pcm.
func EncodeBase64(pcm []byte) string {
	return base64.StdEncoding.EncodeToString(pcm)
}

// NormalizeSamples converts interleaved PCM to float samples in [-1, 1].
// 16-bit samples are little-endian signed and divided by 32768; 8-bit samples
// are unsigned, offset by 128 and divided by 128.
func NormalizeSamples(pcm []byte, f Format) ([]float64, error) {
	switch f.BitsPerSample {
	case 16:
		out := make([]float64, len(pcm)/2)
		for i := range out {
			s := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
			out[i] = float64(s) / 32768
		}
		return out, nil
	case 8:
		out := make([]float64, len(pcm))
		for i, b := range pcm {
			out[i] = float64(int(b)-128) / 128
		}
		return out, nil
	default:
		return nil, &UnsupportedFormatError{BitsPerSample: f.BitsPerSample}
	}
}

// Concatenate joins segs byte-for-byte in the order given. Every segment must
// carry the shared format; the first one that does not yields a
// [*FormatMismatchError] and no output. The result carries the Seq of the
// last segment.
func Concatenate(segs []Segment, shared Format) (Segment, error) {
	total := 0
	for i, s := range segs {
		if s.Format != shared {
			return Segment{}, &FormatMismatchError{Want: shared, Got: s.Format, Index: i}
		}
		total += len(s.PCM)
	}

	out := Segment{Format: shared, PCM: make([]byte, 0, total)}
	for _, s := range segs {
		out.PCM = append(out.PCM, s.PCM...)
		out.Seq = s.Seq
	}
	return out, nil
}

// ApplyGain returns a copy of pcm with every sample scaled by gain and
// clamped to the sample range. A gain of 1 returns pcm unchanged.
func ApplyGain(pcm []byte, f Format, gain float64) []byte {
	if gain == 1 {
		return pcm
	}
	out := make([]byte, len(pcm))
	switch f.BitsPerSample {
	case 16:
		for i := 0; i+1 < len(pcm); i += 2 {
			s := float64(int16(pcm[i]) | int16(pcm[i+1])<<8)
			v := clamp(s*gain, -32768, 32767)
			iv := int16(v)
			out[i] = byte(iv)
			out[i+1] = byte(iv >> 8)
		}
	case 8:
		for i, b := range pcm {
			s := float64(int(b) - 128)
			out[i] = byte(int(clamp(s*gain, -128, 127)) + 128)
		}
	default:
		copy(out, pcm)
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
