package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrWong99/voxline/pkg/audio"
)

var (
	wavFormat string
	wavBase64 bool
)

var wavCmd = &cobra.Command{
	Use:   "wav <input|-> <output.wav>",
	Short: "Wrap raw or base64 PCM in a WAV header",
	Long: `Read PCM samples from a file (or stdin when the input is "-") and write
them as a canonical WAV file. With --base64 the input is base64 text as
delivered by the audio feed; a data: URI prefix is accepted.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := parseFormat(wavFormat)
		if err != nil {
			return err
		}

		var in io.Reader = cmd.InOrStdin()
		if args[0] != "-" {
			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()
			in = file
		}

		data, err := pcmToWAV(in, f, wavBase64)
		if err != nil {
			return err
		}
		if err := os.WriteFile(args[1], data, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s, %s)\n",
			args[1], f, f.Duration(len(data)-audio.WAVHeaderSize))
		return nil
	},
}

func init() {
	wavCmd.Flags().StringVarP(&wavFormat, "format", "f", "16000:1:16", "PCM format as rate:channels:bits")
	wavCmd.Flags().BoolVar(&wavBase64, "base64", false, "input is base64 text")
	rootCmd.AddCommand(wavCmd)
}

// parseFormat parses "rate:channels:bits", e.g. "24000:1:16".
func parseFormat(s string) (audio.Format, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return audio.Format{}, fmt.Errorf("format %q: want rate:channels:bits", s)
	}
	var n [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return audio.Format{}, fmt.Errorf("format %q: %w", s, err)
		}
		n[i] = v
	}
	f := audio.Format{SampleRate: n[0], Channels: n[1], BitsPerSample: n[2]}
	if err := f.Validate(); err != nil {
		return audio.Format{}, err
	}
	return f, nil
}

// pcmToWAV reads all of r as PCM (or base64 text when isBase64 is set) in
// format f and returns the WAV encoding.
func pcmToWAV(r io.Reader, f audio.Format, isBase64 bool) ([]byte, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	pcm := raw
	if isBase64 {
		seg, err := audio.Decode(string(raw), f)
		if err != nil {
			return nil, err
		}
		pcm = seg.PCM
	} else if len(pcm)%f.BlockAlign() != 0 {
		return nil, fmt.Errorf("input is %d bytes, not a whole number of %d-byte frames", len(pcm), f.BlockAlign())
	}
	return audio.EncodeWAV(pcm, f)
}
