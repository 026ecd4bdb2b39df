package main

import (
	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "voxline",
	Short: "Streaming audio playback and voice-activated recording",
	Long: `voxline consumes a chunked feed of base64 PCM audio, queues it for
gapless playback, and records voice-activated clips from a capture device.

The HTTP API exposes playback controls, capture sessions, recorded clips,
health probes and Prometheus metrics.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML configuration file")
}
