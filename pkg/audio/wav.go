package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// WAVHeaderSize is the size of the canonical PCM WAV header written by
// [EncodeWAV].
const WAVHeaderSize = 44

// WAVHeader is the canonical 44-byte RIFF/WAVE header for uncompressed PCM.
// Field order and widths match the on-disk layout so the struct can be
// written and read with [binary.Write] and [binary.Read] in little-endian
// order.
type WAVHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // 36 + data length
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32 // SampleRate * BlockAlign
	BlockAlign    uint16 // NumChannels * BitsPerSample / 8
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // data length
}

// NewWAVHeader builds the header for dataLen bytes of PCM in format f.
func NewWAVHeader(dataLen int, f Format) WAVHeader {
	return WAVHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(36 + dataLen),
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   uint16(f.Channels),
		SampleRate:    uint32(f.SampleRate),
		ByteRate:      uint32(f.ByteRate()),
		BlockAlign:    uint16(f.BlockAlign()),
		BitsPerSample: uint16(f.BitsPerSample),
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: uint32(dataLen),
	}
}

// PCMFormat returns the [Format] described by the header.
func (h WAVHeader) PCMFormat() Format {
	return Format{
		SampleRate:    int(h.SampleRate),
		Channels:      int(h.NumChannels),
		BitsPerSample: int(h.BitsPerSample),
	}
}

// EncodeWAV wraps pcm in a canonical 44-byte WAV header. The PCM bytes are
// copied verbatim after the header.
func EncodeWAV(pcm []byte, f Format) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, WAVHeaderSize+len(pcm)))
	if err := WriteWAV(buf, pcm, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteWAV writes the header and pcm to w.
func WriteWAV(w io.Writer, pcm []byte, f Format) error {
	if err := f.Validate(); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, NewWAVHeader(len(pcm), f)); err != nil {
		return fmt.Errorf("audio: write wav header: %w", err)
	}
	if _, err := w.Write(pcm); err != nil {
		return fmt.Errorf("audio: write wav data: %w", err)
	}
	return nil
}

// EncodeWAVDataURI returns the WAV encoding of pcm as a "data:audio/wav;base64,"
// URI, suitable for handing to a browser audio element.
func EncodeWAVDataURI(pcm []byte, f Format) (string, error) {
	wav, err := EncodeWAV(pcm, f)
	if err != nil {
		return "", err
	}
	return "data:audio/wav;base64," + EncodeBase64(wav), nil
}

// ReadWAVHeader parses a canonical 44-byte PCM header from data.
func ReadWAVHeader(data []byte) (WAVHeader, error) {
	var h WAVHeader
	if len(data) < WAVHeaderSize {
		return h, &DecodeError{Reason: fmt.Sprintf("wav data too short: %d bytes", len(data))}
	}
	if err := binary.Read(bytes.NewReader(data[:WAVHeaderSize]), binary.LittleEndian, &h); err != nil {
		return h, &DecodeError{Reason: "read wav header", Err: err}
	}

	switch {
	case string(h.ChunkID[:]) != "RIFF":
		return h, &DecodeError{Reason: "missing RIFF chunk"}
	case string(h.Format[:]) != "WAVE":
		return h, &DecodeError{Reason: "missing WAVE format"}
	case string(h.Subchunk1ID[:]) != "fmt ":
		return h, &DecodeError{Reason: "missing fmt chunk"}
	case string(h.Subchunk2ID[:]) != "data":
		return h, &DecodeError{Reason: "missing data chunk"}
	case h.AudioFormat != 1:
		return h, &DecodeError{Reason: fmt.Sprintf("audio format %d is not PCM", h.AudioFormat)}
	}
	return h, nil
}

// DecodeWAV parses a canonical PCM WAV produced by [EncodeWAV] and returns
// its format and sample data. A data chunk that claims more bytes than are
// present yields a [*DecodeError].
func DecodeWAV(data []byte) (Format, []byte, error) {
	h, err := ReadWAVHeader(data)
	if err != nil {
		return Format{}, nil, err
	}
	f := h.PCMFormat()
	if err := f.Validate(); err != nil {
		return Format{}, nil, err
	}

	end := WAVHeaderSize + int(h.Subchunk2Size)
	if end > len(data) {
		return Format{}, nil, &DecodeError{
			Reason: fmt.Sprintf("data chunk claims %d bytes, %d present", h.Subchunk2Size, len(data)-WAVHeaderSize),
		}
	}
	return f, data[WAVHeaderSize:end], nil
}
