package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/voxline/internal/app"
	"github.com/MrWong99/voxline/internal/observe"
	"github.com/MrWong99/voxline/pkg/audio"
	"github.com/MrWong99/voxline/pkg/audio/mock"
	"github.com/MrWong99/voxline/pkg/vad"
)

func newMetrics(t *testing.T) (*observe.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// activeSessions reads the voxline.vad.active_sessions counter.
func activeSessions(t *testing.T, reader *sdkmetric.ManualReader) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "voxline.vad.active_sessions" {
				continue
			}
			for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

// eventually polls cond until it holds or a second has passed.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSessionManager_StartStop(t *testing.T) {
	t.Parallel()
	m, reader := newMetrics(t)
	dev := &mock.CaptureDevice{}
	sm := app.NewSessionManager(vad.NewEngine(dev), audio.DefaultFormat(), vad.DefaultConfig(), m)

	if _, ok := sm.Info(); ok {
		t.Error("Info reports a session before any start")
	}

	sess, err := sm.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if sm.Active() != sess {
		t.Error("Active is not the started session")
	}
	info, ok := sm.Info()
	if !ok || info.SessionID != sess.ID() || info.Threshold != vad.DefaultSpeechThreshold {
		t.Errorf("info = %+v, ok %v", info, ok)
	}
	if got := activeSessions(t, reader); got != 1 {
		t.Errorf("active sessions = %d, want 1", got)
	}

	// Starting again supersedes the first session.
	second, err := sm.Start(context.Background())
	if err != nil {
		t.Fatalf("second Start: %v", err)
	}
	<-sess.Done()

	if err := sm.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	<-second.Done()
	if sm.Active() != nil {
		t.Error("session still active after Stop")
	}
	eventually(t, "active sessions to drop to 0", func() bool { return activeSessions(t, reader) == 0 })
}

func TestSessionManager_StartDeviceUnavailable(t *testing.T) {
	t.Parallel()
	m, _ := newMetrics(t)
	dev := &mock.CaptureDevice{AcquireErr: audio.ErrDeviceNotFound}
	sm := app.NewSessionManager(vad.NewEngine(dev), audio.DefaultFormat(), vad.DefaultConfig(), m)

	_, err := sm.Start(context.Background())
	if !errors.Is(err, audio.ErrDeviceUnavailable) || !errors.Is(err, audio.ErrDeviceNotFound) {
		t.Fatalf("err = %v, want device unavailable wrapping not found", err)
	}
}

func TestSessionManager_Reconfigure(t *testing.T) {
	t.Parallel()
	m, _ := newMetrics(t)
	dev := &mock.CaptureDevice{}
	sm := app.NewSessionManager(vad.NewEngine(dev), audio.DefaultFormat(), vad.DefaultConfig(), m)

	// A decibel analyzer with a normalized threshold is rejected.
	bad := vad.DefaultConfig()
	if err := sm.Reconfigure(bad, audio.DecibelAnalyzer{}); !errors.Is(err, vad.ErrScaleMismatch) {
		t.Fatalf("err = %v, want ErrScaleMismatch", err)
	}
	if sm.Config() != vad.DefaultConfig() {
		t.Errorf("config changed after rejected reconfigure: %+v", sm.Config())
	}

	sess, err := sm.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	good := vad.DefaultConfig()
	good.Scale = audio.ScaleDecibel
	good.SpeechThreshold = -45
	if err := sm.Reconfigure(good, audio.DecibelAnalyzer{}); err != nil {
		t.Fatalf("Reconfigure: %v", err)
	}
	if sm.Active() != sess {
		t.Error("reconfigure replaced the running session")
	}

	if _, err := sm.Start(context.Background()); err != nil {
		t.Fatalf("Start with decibel parameters: %v", err)
	}
	defer sm.Stop()
	if info, _ := sm.Info(); info.Threshold != -45 || info.Scale != audio.ScaleDecibel {
		t.Errorf("info = %+v, want decibel -45", info)
	}
}
