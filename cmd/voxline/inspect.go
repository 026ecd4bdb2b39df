package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrWong99/voxline/pkg/audio"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.wav>",
	Short: "Print the header of a PCM WAV file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		return inspectWAV(cmd.OutOrStdout(), data)
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func inspectWAV(w io.Writer, data []byte) error {
	h, err := audio.ReadWAVHeader(data)
	if err != nil {
		return err
	}
	f := h.PCMFormat()
	present := len(data) - audio.WAVHeaderSize

	rows := [][2]string{
		{"Format", f.String()},
		{"Sample rate", fmt.Sprintf("%d Hz", h.SampleRate)},
		{"Channels", fmt.Sprintf("%d", h.NumChannels)},
		{"Bits", fmt.Sprintf("%d", h.BitsPerSample)},
		{"Byte rate", fmt.Sprintf("%d", h.ByteRate)},
		{"Data", fmt.Sprintf("%d bytes", h.Subchunk2Size)},
	}
	if err := f.Validate(); err == nil {
		rows = append(rows, [2]string{"Duration", f.Duration(int(h.Subchunk2Size)).String()})
	}
	if present < int(h.Subchunk2Size) {
		rows = append(rows, [2]string{"Warning", fmt.Sprintf("truncated, %d bytes present", present)})
	}

	for _, r := range rows {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render(r[0]), r[1])
	}
	return nil
}
