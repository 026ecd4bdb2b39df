package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/voxline/internal/api"
	"github.com/MrWong99/voxline/internal/observe"
	"github.com/MrWong99/voxline/pkg/audio"
	"github.com/MrWong99/voxline/pkg/vad"
)

// SessionInfo holds metadata about the most recent capture session.
type SessionInfo struct {
	// SessionID is the unique identifier of the session.
	SessionID string

	// StartedAt is when the session acquired the device.
	StartedAt time.Time

	// Threshold and Scale are the detection parameters the session runs with.
	Threshold float64
	Scale     audio.Scale
}

// SessionManager starts and stops capture sessions on a [vad.Engine] using
// the most recently applied detection parameters. Parameter changes never
// touch a running session; they apply from the next [SessionManager.Start].
// All exported methods are safe for concurrent use.
type SessionManager struct {
	engine  *vad.Engine
	format  audio.Format
	metrics *observe.Metrics

	mu   sync.Mutex
	cfg  vad.Config
	info SessionInfo
}

var _ api.Capture = (*SessionManager)(nil)

// NewSessionManager creates a SessionManager for engine. Sessions capture in
// format f with detection parameters cfg until [SessionManager.Reconfigure]
// replaces them.
func NewSessionManager(engine *vad.Engine, f audio.Format, cfg vad.Config, m *observe.Metrics) *SessionManager {
	if m == nil {
		m = observe.DefaultMetrics()
	}
	return &SessionManager{
		engine:  engine,
		format:  f,
		metrics: m,
		cfg:     cfg,
	}
}

// Start begins a new capture session, superseding any active one.
func (sm *SessionManager) Start(ctx context.Context) (*vad.Session, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sess, err := sm.engine.StartSession(ctx, sm.format, sm.cfg)
	if err != nil {
		return nil, fmt.Errorf("app: start capture: %w", err)
	}
	sm.info = SessionInfo{
		SessionID: sess.ID(),
		StartedAt: time.Now().UTC(),
		Threshold: sm.cfg.SpeechThreshold,
		Scale:     sm.cfg.Scale,
	}

	sm.metrics.VADActiveSessions.Add(ctx, 1)
	go func() {
		<-sess.Done()
		sm.metrics.VADActiveSessions.Add(context.Background(), -1)
		if err := sess.Err(); err != nil {
			slog.Error("capture session ended", "session_id", sess.ID(), "err", err)
		}
	}()
	return sess, nil
}

// Stop ends the active session, if any.
func (sm *SessionManager) Stop() error {
	if err := sm.engine.StopSession(); err != nil {
		return fmt.Errorf("app: stop capture: %w", err)
	}
	return nil
}

// Active returns the current session, or nil.
func (sm *SessionManager) Active() *vad.Session {
	return sm.engine.Active()
}

// Info returns metadata about the most recent session. ok is false if no
// session was ever started.
func (sm *SessionManager) Info() (info SessionInfo, ok bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.info, sm.info.SessionID != ""
}

// Config returns the detection parameters the next session will use.
func (sm *SessionManager) Config() vad.Config {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.cfg
}

// Reconfigure validates cfg against a and stores both for the next session.
// An invalid pair is rejected and the previous parameters stay in place.
func (sm *SessionManager) Reconfigure(cfg vad.Config, a audio.Analyzer) error {
	if err := cfg.Validate(a); err != nil {
		return fmt.Errorf("app: reconfigure capture: %w", err)
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.cfg = cfg
	sm.engine.SetAnalyzer(a)
	slog.Info("capture parameters updated for next session",
		"threshold", cfg.SpeechThreshold,
		"scale", cfg.Scale,
		"silence", cfg.SilenceDuration,
	)
	return nil
}
