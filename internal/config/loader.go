package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/MrWong99/voxline/pkg/audio"
	"github.com/MrWong99/voxline/pkg/vad"
)

// ValidDeviceNames lists the built-in backend names per device kind.
// Used by [Validate] to warn about unrecognised backends.
var ValidDeviceNames = map[string][]string{
	"output":  {"null", "wav", "mock", "portaudio"},
	"capture": {"mock", "portaudio"},
}

// Default returns the configuration used for every field the YAML document
// leaves out.
func Default() *Config {
	f := audio.DefaultFormat()
	d := vad.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			ListenAddr: ":8080",
			LogLevel:   LogInfo,
		},
		Audio: AudioConfig{
			SampleRate:    f.SampleRate,
			Channels:      f.Channels,
			BitsPerSample: f.BitsPerSample,
		},
		Playback: PlaybackConfig{
			Volume:             1,
			ChunkMS:            20,
			ProgressIntervalMS: 100,
			Output:             DeviceEntry{Name: "null"},
		},
		VAD: VADConfig{
			Analyzer:           audio.AnalyzerPeak,
			SpeechThreshold:    d.SpeechThreshold,
			SilenceDurationMS:  int(d.SilenceDuration.Milliseconds()),
			WindowMS:           int(d.Window.Milliseconds()),
			MinClipBytes:       d.MinClipBytes,
			MinDurationSeconds: d.MinDuration.Seconds(),
			Capture:            DeviceEntry{Name: "mock"},
		},
		Feed: FeedConfig{
			Kind: FeedNone,
			Reconnect: ReconnectConfig{
				MaxRetries:   5,
				BackoffMS:    1000,
				MaxBackoffMS: 30000,
			},
			Breaker: BreakerConfig{
				MaxFailures:    3,
				ResetTimeoutMS: 30000,
			},
		},
		Clips: ClipsConfig{Dir: "clips"},
	}
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. A .env file next to the config is loaded into the environment
// first, and ${VAR} references in the file are expanded.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	cfg, err := LoadFromReader(strings.NewReader(os.ExpandEnv(string(data))))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// loadDotEnv loads path into the process environment if it exists. Variables
// that are already set win.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: load %q: %w", path, err)
	}
	slog.Debug("config: loaded environment file", "path", path)
	return nil
}

// LoadFromReader decodes a YAML config from r on top of [Default] and
// validates the result. An empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr is required"))
	}
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Audio
	f := cfg.Audio.Format()
	if err := f.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("audio: %w", err))
	}

	// Playback
	if v := cfg.Playback.Volume; v < 0 || v > 1 {
		errs = append(errs, fmt.Errorf("playback.volume %.2f is out of range [0, 1]", v))
	}
	if cfg.Playback.ChunkMS <= 0 {
		errs = append(errs, fmt.Errorf("playback.chunk_ms %d must be positive", cfg.Playback.ChunkMS))
	}
	if cfg.Playback.ProgressIntervalMS <= 0 {
		errs = append(errs, fmt.Errorf("playback.progress_interval_ms %d must be positive", cfg.Playback.ProgressIntervalMS))
	}
	if cfg.Playback.Output.Name == "" {
		errs = append(errs, errors.New("playback.output.name is required"))
	}
	validateDeviceName("output", cfg.Playback.Output.Name)

	// VAD
	if err := validateVAD(cfg.VAD); err != nil {
		errs = append(errs, err)
	}
	if cfg.VAD.Enabled && cfg.VAD.Capture.Name == "" {
		errs = append(errs, errors.New("vad.capture.name is required when vad is enabled"))
	}
	validateDeviceName("capture", cfg.VAD.Capture.Name)

	// Feed
	errs = append(errs, validateFeed(cfg.Feed)...)

	return errors.Join(errs...)
}

func validateVAD(c VADConfig) error {
	det, a, err := c.Detector()
	if err != nil {
		return err
	}
	if err := det.Validate(a); err != nil {
		return fmt.Errorf("vad: %w", err)
	}
	return nil
}

func validateFeed(c FeedConfig) []error {
	var errs []error
	if c.Kind != "" && !c.Kind.IsValid() {
		errs = append(errs, fmt.Errorf("feed.kind %q is invalid; valid values: none, sse, websocket", c.Kind))
	}
	if c.Kind == FeedSSE || c.Kind == FeedWebSocket {
		if err := validateFeedURL(c.Kind, c.URL); err != nil {
			errs = append(errs, err)
		}
		for _, u := range c.FallbackURLs {
			if err := validateFeedURL(c.Kind, u); err != nil {
				errs = append(errs, fmt.Errorf("feed.fallback_urls: %w", err))
			}
		}
	}
	rc := c.Reconnect
	if rc.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("feed.reconnect.max_retries %d must not be negative", rc.MaxRetries))
	}
	if rc.BackoffMS < 0 {
		errs = append(errs, fmt.Errorf("feed.reconnect.backoff_ms %d must not be negative", rc.BackoffMS))
	}
	if rc.MaxBackoffMS > 0 && rc.MaxBackoffMS < rc.BackoffMS {
		errs = append(errs, fmt.Errorf("feed.reconnect.max_backoff_ms %d is below backoff_ms %d", rc.MaxBackoffMS, rc.BackoffMS))
	}
	if c.Breaker.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("feed.breaker.max_failures %d must not be negative", c.Breaker.MaxFailures))
	}
	if c.Breaker.ResetTimeoutMS < 0 {
		errs = append(errs, fmt.Errorf("feed.breaker.reset_timeout_ms %d must not be negative", c.Breaker.ResetTimeoutMS))
	}
	return errs
}

func validateFeedURL(kind FeedKind, raw string) error {
	if raw == "" {
		return fmt.Errorf("feed.url is required when kind is %s", kind)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("feed.url %q: %w", raw, err)
	}
	schemes := []string{"http", "https"}
	if kind == FeedWebSocket {
		schemes = []string{"ws", "wss", "http", "https"}
	}
	if !slices.Contains(schemes, u.Scheme) {
		return fmt.Errorf("feed.url scheme %q is invalid for %s; valid values: %s", u.Scheme, kind, strings.Join(schemes, ", "))
	}
	return nil
}

// validateDeviceName logs a warning if name is non-empty and not found in
// the [ValidDeviceNames] list for the given kind.
func validateDeviceName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidDeviceNames[kind]
	if !ok || slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown device backend, may be a typo or a custom registration",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
