// Package app wires all voxline subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP and streams the chunk feed until the context
// ends, Reload applies hot-reloadable config changes, and Shutdown tears
// everything down in order.
//
// Devices are created by the caller from the config registry and passed in
// [Devices]. For testing, inject a feed source or metrics via functional
// options.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voxline/internal/api"
	"github.com/MrWong99/voxline/internal/clipstore"
	"github.com/MrWong99/voxline/internal/config"
	"github.com/MrWong99/voxline/internal/feed"
	"github.com/MrWong99/voxline/internal/health"
	"github.com/MrWong99/voxline/internal/observe"
	"github.com/MrWong99/voxline/internal/resilience"
	"github.com/MrWong99/voxline/pkg/audio"
	"github.com/MrWong99/voxline/pkg/playback"
	"github.com/MrWong99/voxline/pkg/vad"
)

// shutdownTimeout bounds the graceful HTTP shutdown inside Run.
const shutdownTimeout = 5 * time.Second

// Devices holds the audio devices the application drives. Output is
// required; Capture may be nil when capture is disabled.
type Devices struct {
	Output  audio.Output
	Capture audio.CaptureDevice
}

// App owns all subsystem lifetimes.
type App struct {
	cfg     *config.Config
	devices Devices
	metrics *observe.Metrics
	level   *slog.LevelVar
	source  feed.Source

	// Subsystems, initialised in New and torn down in Shutdown.
	playback *playback.Engine
	capture  *vad.Engine
	sessions *SessionManager
	clips    *clipstore.Store
	pump     *feed.Pump
	handler  http.Handler
	server   *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New.
type Option func(*App)

// WithMetrics records to m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogLevel lets Reload change the level of the process logger.
func WithLogLevel(level *slog.LevelVar) Option {
	return func(a *App) { a.level = level }
}

// WithFeedSource injects the outbound feed instead of building one from
// cfg.Feed.
func WithFeedSource(src feed.Source) Option {
	return func(a *App) { a.source = src }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. It takes ownership of
// the devices: Shutdown closes the output.
func New(ctx context.Context, cfg *config.Config, devices Devices, opts ...Option) (*App, error) {
	if devices.Output == nil {
		return nil, errors.New("app: an output device is required")
	}
	a := &App{
		cfg:     cfg,
		devices: devices,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Clip store ────────────────────────────────────────────────────
	clips, err := clipstore.Open(cfg.Clips.Dir)
	if err != nil {
		return nil, fmt.Errorf("app: init clips: %w", err)
	}
	a.clips = clips

	// ── 2. Playback ──────────────────────────────────────────────────────
	if err := a.initPlayback(); err != nil {
		return nil, fmt.Errorf("app: init playback: %w", err)
	}

	// ── 3. Capture ───────────────────────────────────────────────────────
	if err := a.initCapture(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init capture: %w", err)
	}

	// ── 4. Chunk feed ────────────────────────────────────────────────────
	a.pump = feed.NewPump(a.playback,
		feed.WithMetrics(a.metrics),
		feed.WithTextHandler(func(ev feed.Event) {
			slog.Debug("feed text", "role", ev.Role, "content", ev.Content)
		}),
	)
	if a.source == nil {
		a.source = newFeedSource(cfg.Feed, a.metrics)
	}

	// ── 5. HTTP ──────────────────────────────────────────────────────────
	a.initHTTP()

	slog.Info("app initialised",
		"format", cfg.Audio.Format().String(),
		"capture", a.capture != nil,
		"feed", cfg.Feed.Kind,
		"clips", len(a.clips.List()),
	)
	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initPlayback creates the playback engine on the output device and
// registers its metrics.
func (a *App) initPlayback() error {
	pc := a.cfg.Playback
	eng, err := playback.New(a.devices.Output, a.cfg.Audio.Format(),
		playback.WithVolume(pc.Volume),
		playback.WithChunkDuration(pc.ChunkDuration()),
		playback.WithProgressInterval(pc.ProgressInterval()),
		playback.WithOnStateChange(func(from, to playback.State) {
			a.metrics.RecordTransition(context.Background(), to.String())
			slog.Debug("playback state changed", "from", from, "to", to)
		}),
	)
	if err != nil {
		return err
	}
	a.playback = eng
	a.closers = append(a.closers, eng.Close)

	reg, err := a.metrics.ObserveBuffered(func() float64 {
		return eng.Status().Buffered().Seconds()
	})
	if err != nil {
		slog.Warn("buffered gauge unavailable", "err", err)
		return nil
	}
	a.closers = append(a.closers, reg.Unregister)
	return nil
}

// initCapture creates the VAD engine and session manager when capture is
// enabled.
func (a *App) initCapture() error {
	if !a.cfg.VAD.Enabled {
		return nil
	}
	if a.devices.Capture == nil {
		return errors.New("capture is enabled but no capture device was provided")
	}
	vcfg, analyzer, err := a.cfg.VAD.Detector()
	if err != nil {
		return err
	}
	a.capture = vad.NewEngine(a.devices.Capture,
		vad.WithAnalyzer(analyzer),
		vad.WithDeviceName(a.cfg.VAD.Capture.Name),
		vad.WithResultHandler(a.recordResult),
		vad.WithClipHandler(a.clips.Handle),
	)
	a.sessions = NewSessionManager(a.capture, a.cfg.Audio.Format(), vcfg, a.metrics)
	a.closers = append(a.closers, a.sessions.Stop)
	return nil
}

func (a *App) recordResult(r vad.Result) {
	a.metrics.RecordClip(context.Background(), r.Outcome.String(), r.Clip.DurationSeconds(), r.Emitted())
	if !r.Emitted() {
		slog.Debug("segment discarded", "outcome", r.Outcome, "bytes", len(r.Clip.PCM), "duration", r.Clip.Duration)
	}
}

// initHTTP builds the route table.
func (a *App) initHTTP() {
	mux := http.NewServeMux()

	checkers := []health.Checker{health.Playback(a.playback)}
	apiOpts := []api.Option{api.WithClips(a.clips)}
	if a.sessions != nil {
		checkers = append(checkers, health.Capture(a.capture))
		apiOpts = append(apiOpts, api.WithCapture(a.sessions))
	}

	health.New(checkers...).Register(mux)
	feed.NewHandler(a.pump).Register(mux)
	api.New(a.playback, apiOpts...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	a.handler = observe.Middleware(a.metrics)(mux)
	a.server = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// newFeedSource builds the outbound feed described by fc, or nil for
// [config.FeedNone]. With fallback URLs the endpoints are tried in order
// behind per-endpoint circuit breakers.
func newFeedSource(fc config.FeedConfig, m *observe.Metrics) feed.Source {
	var build func(url string) feed.Source
	switch fc.Kind {
	case config.FeedSSE:
		build = func(url string) feed.Source {
			return &feed.SSESource{URL: url, Body: fc.Body, Headers: fc.Headers}
		}
	case config.FeedWebSocket:
		build = func(url string) feed.Source {
			return &feed.WebSocketSource{URL: url, Body: fc.Body, Headers: fc.Headers}
		}
	default:
		return nil
	}

	src := build(fc.URL)
	if len(fc.FallbackURLs) > 0 {
		endpoints := []feed.Endpoint{{Name: fc.URL, Source: src}}
		for _, u := range fc.FallbackURLs {
			endpoints = append(endpoints, feed.Endpoint{Name: u, Source: build(u)})
		}
		src = feed.NewFailover(resilience.CircuitBreakerConfig{
			MaxFailures:  fc.Breaker.MaxFailures,
			ResetTimeout: time.Duration(fc.Breaker.ResetTimeoutMS) * time.Millisecond,
			OnStateChange: func(name string, _, to resilience.State) {
				m.RecordBreakerTransition(context.Background(), name, to.String())
			},
		}, endpoints...)
	}
	return feed.NewReconnector(src, feed.ReconnectConfig{
		MaxRetries: fc.Reconnect.MaxRetries,
		Backoff:    time.Duration(fc.Reconnect.BackoffMS) * time.Millisecond,
		MaxBackoff: time.Duration(fc.Reconnect.MaxBackoffMS) * time.Millisecond,
	})
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Handler returns the HTTP handler with every route and the observability
// middleware.
func (a *App) Handler() http.Handler { return a.handler }

// Playback returns the playback engine.
func (a *App) Playback() *playback.Engine { return a.playback }

// Sessions returns the capture session manager, or nil when capture is
// disabled.
func (a *App) Sessions() *SessionManager { return a.sessions }

// Clips returns the clip store.
func (a *App) Clips() *clipstore.Store { return a.clips }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts a capture session if capture is enabled, serves HTTP and streams
// the outbound feed into playback. It blocks until ctx is cancelled or the
// HTTP server fails.
//
// A capture device that cannot be acquired or a feed that gives up is logged
// and leaves the rest of the application running; /readyz reports the
// capture failure.
func (a *App) Run(ctx context.Context) error {
	if a.sessions != nil {
		if _, err := a.sessions.Start(ctx); err != nil {
			slog.Error("initial capture session failed", "err", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http server listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	if a.source != nil {
		g.Go(func() error {
			a.runFeed(gctx)
			return nil
		})
	}

	slog.Info("app running")
	err := g.Wait()
	if err != nil {
		return err
	}
	return ctx.Err()
}

// runFeed streams the outbound feed until it ends or ctx is cancelled.
func (a *App) runFeed(ctx context.Context) {
	err := a.pump.Run(ctx, a.source)
	switch {
	case err == nil:
		st := a.pump.Stats()
		slog.Info("feed ended", "events", st.Events, "segments", st.Segments, "rejected", st.Rejected)
	case ctx.Err() != nil:
	default:
		slog.Error("feed stopped", "err", err)
	}
}

// ─── Reload ──────────────────────────────────────────────────────────────────

// Reload applies the hot-reloadable differences between old and new: log
// level, playback volume and detection parameters. Everything else is logged
// as requiring a restart. It matches the [config.Watcher] callback.
func (a *App) Reload(old, new *config.Config) {
	d := config.Diff(old, new)
	if !d.Changed() {
		return
	}

	if d.LogLevelChanged && a.level != nil {
		a.level.Set(d.NewLogLevel.Level())
		slog.Info("log level changed", "level", d.NewLogLevel)
	}

	if d.VolumeChanged {
		if err := a.playback.SetVolume(d.NewVolume); err != nil {
			slog.Warn("apply volume", "err", err)
		} else {
			slog.Info("playback volume changed", "volume", d.NewVolume)
		}
	}

	if d.VADChanged && a.sessions != nil {
		vcfg, analyzer, err := new.VAD.Detector()
		if err == nil {
			err = a.sessions.Reconfigure(vcfg, analyzer)
		}
		if err != nil {
			slog.Warn("keeping previous capture parameters", "err", err)
		}
	}

	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes require a restart to take effect", "sections", d.RestartRequired)
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in reverse-init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// closeAll runs every closer registered so far, for failures inside New.
func (a *App) closeAll() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
	a.closers = nil
}
