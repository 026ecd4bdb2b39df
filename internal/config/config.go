// Package config provides the configuration schema, loader, device registry
// and hot-reload watcher for the voxline server.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/voxline/pkg/audio"
	"github.com/MrWong99/voxline/pkg/vad"
)

// LogLevel controls log verbosity for the voxline server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level returns the slog level for l. Unknown values map to info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// FeedKind selects the transport that delivers synthesized speech chunks.
type FeedKind string

const (
	// FeedNone disables the outbound feed client. Chunks can still be pushed
	// to the HTTP ingestion endpoints.
	FeedNone FeedKind = "none"

	// FeedSSE POSTs a request body and reads newline-delimited JSON events.
	FeedSSE FeedKind = "sse"

	// FeedWebSocket dials a websocket and reads one JSON event per message.
	FeedWebSocket FeedKind = "websocket"
)

// IsValid reports whether k is a recognised feed kind.
func (k FeedKind) IsValid() bool {
	switch k {
	case FeedNone, FeedSSE, FeedWebSocket:
		return true
	}
	return false
}

// Config is the root configuration structure for voxline.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Audio    AudioConfig    `yaml:"audio"`
	Playback PlaybackConfig `yaml:"playback"`
	VAD      VADConfig      `yaml:"vad"`
	Feed     FeedConfig     `yaml:"feed"`
	Clips    ClipsConfig    `yaml:"clips"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the HTTP API listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Hot-reloadable.
	LogLevel LogLevel `yaml:"log_level"`
}

// AudioConfig is the PCM format shared by playback and capture.
type AudioConfig struct {
	SampleRate    int `yaml:"sample_rate"`
	Channels      int `yaml:"channels"`
	BitsPerSample int `yaml:"bits_per_sample"`
}

// Format returns the configured PCM format.
func (c AudioConfig) Format() audio.Format {
	return audio.Format{
		SampleRate:    c.SampleRate,
		Channels:      c.Channels,
		BitsPerSample: c.BitsPerSample,
	}
}

// PlaybackConfig configures the playback queue engine and its output.
type PlaybackConfig struct {
	// Volume is the initial gain in [0, 1]. Hot-reloadable.
	Volume float64 `yaml:"volume"`

	// ChunkMS is the amount of audio written to the output per tick.
	ChunkMS int `yaml:"chunk_ms"`

	// ProgressIntervalMS is the spacing of progress notifications.
	ProgressIntervalMS int `yaml:"progress_interval_ms"`

	// Output selects the registered output backend.
	Output DeviceEntry `yaml:"output"`
}

// ChunkDuration returns ChunkMS as a duration.
func (c PlaybackConfig) ChunkDuration() time.Duration {
	return time.Duration(c.ChunkMS) * time.Millisecond
}

// ProgressInterval returns ProgressIntervalMS as a duration.
func (c PlaybackConfig) ProgressInterval() time.Duration {
	return time.Duration(c.ProgressIntervalMS) * time.Millisecond
}

// VADConfig configures voice-activated recording.
type VADConfig struct {
	// Enabled starts a capture session when the server starts.
	Enabled bool `yaml:"enabled"`

	// Analyzer names the amplitude analyzer (peak, mean_energy, decibel).
	Analyzer string `yaml:"analyzer"`

	// Scale is the unit SpeechThreshold is expressed in (normalized, decibel).
	Scale string `yaml:"scale"`

	SpeechThreshold    float64 `yaml:"speech_threshold"`
	SilenceDurationMS  int     `yaml:"silence_duration_ms"`
	WindowMS           int     `yaml:"window_ms"`
	MinClipBytes       int     `yaml:"min_clip_bytes"`
	MinDurationSeconds float64 `yaml:"min_duration_seconds"`

	// Capture selects the registered capture backend.
	Capture DeviceEntry `yaml:"capture"`
}

// Detector converts c into a [vad.Config]. Analyzer and scale names are
// resolved here; range checks are left to [vad.Config.Validate].
func (c VADConfig) Detector() (vad.Config, audio.Analyzer, error) {
	a, err := audio.NewAnalyzer(c.Analyzer)
	if err != nil {
		return vad.Config{}, nil, fmt.Errorf("config: vad.analyzer: %w", err)
	}
	scale := a.Scale()
	if c.Scale != "" {
		scale, err = audio.ParseScale(c.Scale)
		if err != nil {
			return vad.Config{}, nil, fmt.Errorf("config: vad.scale: %w", err)
		}
	}
	return vad.Config{
		Scale:           scale,
		SpeechThreshold: c.SpeechThreshold,
		SilenceDuration: time.Duration(c.SilenceDurationMS) * time.Millisecond,
		Window:          time.Duration(c.WindowMS) * time.Millisecond,
		MinClipBytes:    c.MinClipBytes,
		MinDuration:     time.Duration(c.MinDurationSeconds * float64(time.Second)),
	}, a, nil
}

// FeedConfig configures the outbound chunk feed client.
type FeedConfig struct {
	Kind FeedKind `yaml:"kind"`

	// URL is the stream endpoint (http(s):// for sse, ws(s):// for websocket).
	URL string `yaml:"url"`

	// Body is sent as the POST body for sse and as the first message for
	// websocket. May be empty.
	Body string `yaml:"body"`

	// Headers are added to the outbound request.
	Headers map[string]string `yaml:"headers"`

	// FallbackURLs are tried in order when URL fails. They use the same
	// kind, body and headers.
	FallbackURLs []string `yaml:"fallback_urls"`

	Reconnect ReconnectConfig `yaml:"reconnect"`

	// Breaker tunes the per-endpoint circuit breakers used when
	// FallbackURLs is set.
	Breaker BreakerConfig `yaml:"breaker"`
}

// BreakerConfig tunes the circuit breaker guarding each feed endpoint.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that take an
	// endpoint out of rotation. Default: 3.
	MaxFailures int `yaml:"max_failures"`

	// ResetTimeoutMS is how long an endpoint stays out of rotation before
	// it is probed again. Default: 30000.
	ResetTimeoutMS int `yaml:"reset_timeout_ms"`
}

// ReconnectConfig bounds how the feed client retries a dropped stream.
type ReconnectConfig struct {
	// MaxRetries is the number of consecutive failures tolerated before the
	// feed gives up. Zero retries forever.
	MaxRetries int `yaml:"max_retries"`

	BackoffMS    int `yaml:"backoff_ms"`
	MaxBackoffMS int `yaml:"max_backoff_ms"`
}

// ClipsConfig configures where emitted clips are stored.
type ClipsConfig struct {
	// Dir is the directory clips are written to. Empty keeps clips in memory
	// only.
	Dir string `yaml:"dir"`
}

// DeviceEntry is the common configuration block for capture and output
// backends. Name is used to look up the constructor in the [Registry].
type DeviceEntry struct {
	// Name selects the registered backend (e.g., "null", "wav", "portaudio").
	Name string `yaml:"name"`

	// Options holds backend-specific values.
	Options map[string]any `yaml:"options"`
}

// String returns the string option key, or def when unset.
func (e DeviceEntry) String(key, def string) string {
	if v, ok := e.Options[key].(string); ok && v != "" {
		return v
	}
	return def
}

// Float returns the numeric option key, or def when unset. YAML integers are
// accepted.
func (e DeviceEntry) Float(key string, def float64) float64 {
	switch v := e.Options[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}

// Duration returns the option key interpreted as milliseconds, or def when
// unset.
func (e DeviceEntry) Duration(key string, def time.Duration) time.Duration {
	ms := e.Float(key, -1)
	if ms < 0 {
		return def
	}
	return time.Duration(ms * float64(time.Millisecond))
}
