package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/MrWong99/voxline/internal/config"
	"github.com/MrWong99/voxline/pkg/audio/portaudio"
)

var (
	accent     = lipgloss.Color("#00ff9f")
	dim        = lipgloss.Color("#6e7681")
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(accent).Width(12)
	valueStyle = lipgloss.NewStyle()
	dimStyle   = lipgloss.NewStyle().Foreground(dim)
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1)
)

// printStartupSummary writes a boxed overview of the effective configuration.
func printStartupSummary(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, startupSummary(cfg))
}

func startupSummary(cfg *config.Config) string {
	capture := dimStyle.Render("(disabled)")
	detector := dimStyle.Render("(disabled)")
	if cfg.VAD.Enabled {
		capture = cfg.VAD.Capture.Name
		scale := cfg.VAD.Scale
		if scale == "" {
			scale = "analyzer default"
		}
		detector = fmt.Sprintf("%s, threshold %g (%s)", cfg.VAD.Analyzer, cfg.VAD.SpeechThreshold, scale)
	}

	feed := dimStyle.Render("(none)")
	if cfg.Feed.Kind != config.FeedNone && cfg.Feed.Kind != "" {
		feed = fmt.Sprintf("%s %s", cfg.Feed.Kind, cfg.Feed.URL)
	}

	clips := cfg.Clips.Dir
	if clips == "" {
		clips = dimStyle.Render("(memory only)")
	}

	pa := "available"
	if !portaudio.Available {
		pa = dimStyle.Render("not built")
	}

	rows := [][2]string{
		{"Listen", cfg.Server.ListenAddr},
		{"Format", cfg.Audio.Format().String()},
		{"Output", cfg.Playback.Output.Name},
		{"Volume", fmt.Sprintf("%.2f", cfg.Playback.Volume)},
		{"Capture", capture},
		{"Detector", detector},
		{"Feed", feed},
		{"Clips", clips},
		{"PortAudio", pa},
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("voxline " + version))
	for _, r := range rows {
		b.WriteString("\n")
		b.WriteString(labelStyle.Render(r[0]))
		b.WriteString(valueStyle.Render(r[1]))
	}
	return boxStyle.Render(b.String())
}
