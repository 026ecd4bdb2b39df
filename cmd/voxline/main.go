// Command voxline plays streamed PCM audio and records voice-activated clips.
//
// Usage:
//
//	voxline serve --config config.yaml
//	voxline wav --format 16000:1:16 speech.pcm speech.wav
//	voxline inspect speech.wav
package main

import (
	"fmt"
	"os"
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "voxline: %v\n", err)
		return 1
	}
	return 0
}
