package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/voxline/pkg/audio"
	"github.com/MrWong99/voxline/pkg/audio/mock"
	"github.com/MrWong99/voxline/pkg/playback"
	"github.com/MrWong99/voxline/pkg/vad"
)

func readyz(t *testing.T, h *Handler) (int, result) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return rec.Code, body
}

func TestHealthz_AlwaysReturns200(t *testing.T) {
	t.Parallel()
	h := New(Checker{Name: "broken", Check: func(context.Context) error { return errors.New("down") }})

	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

func TestReadyz(t *testing.T) {
	t.Parallel()

	ok := func(context.Context) error { return nil }
	tests := []struct {
		name       string
		checkers   []Checker
		wantStatus int
		wantChecks map[string]string
	}{
		{
			name:       "no checkers",
			wantStatus: http.StatusOK,
		},
		{
			name: "all pass",
			checkers: []Checker{
				{Name: "playback", Check: ok},
				{Name: "capture", Check: ok},
			},
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"playback": "ok", "capture": "ok"},
		},
		{
			name: "one fails",
			checkers: []Checker{
				{Name: "playback", Check: ok},
				{Name: "capture", Check: func(context.Context) error { return errors.New("no mic") }},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"playback": "ok", "capture": "fail: no mic"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			code, body := readyz(t, New(tt.checkers...))
			if code != tt.wantStatus {
				t.Errorf("status = %d, want %d", code, tt.wantStatus)
			}
			for name, want := range tt.wantChecks {
				if got := body.Checks[name]; got != want {
					t.Errorf("checks[%s] = %q, want %q", name, got, want)
				}
			}
		})
	}
}

func TestReadyz_CheckSeesRequestCancellation(t *testing.T) {
	t.Parallel()
	h := New(Checker{Name: "slow", Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil).WithContext(ctx))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestRegister(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	New().Register(mux)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}

func TestPlaybackChecker(t *testing.T) {
	t.Parallel()
	eng, err := playback.New(&mock.Output{}, audio.DefaultFormat(), playback.WithTicks(make(chan time.Time)))
	if err != nil {
		t.Fatalf("playback.New: %v", err)
	}
	c := Playback(eng)
	if err := c.Check(context.Background()); err != nil {
		t.Errorf("running engine: %v", err)
	}
	if err := eng.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Check(context.Background()); err == nil {
		t.Error("closed engine reported ready")
	}
}

func TestCaptureChecker(t *testing.T) {
	t.Parallel()
	stream := mock.NewStream()
	eng := vad.NewEngine(&mock.CaptureDevice{Stream: stream})
	c := Capture(eng)

	if err := c.Check(context.Background()); err == nil {
		t.Error("no session reported ready")
	}

	s, err := eng.StartSession(context.Background(), audio.DefaultFormat(), vad.DefaultConfig())
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	t.Cleanup(func() { _ = eng.StopSession() })
	if err := c.Check(context.Background()); err != nil {
		t.Errorf("running session: %v", err)
	}

	stream.End(errors.New("usb unplugged"))
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end")
	}
	err = c.Check(context.Background())
	if err == nil || !strings.Contains(err.Error(), "usb unplugged") {
		t.Errorf("ended session check = %v, want disconnect reason", err)
	}
}
