// Package api exposes the playback engine, the capture engine and the clip
// store over HTTP.
//
// Routes:
//
//	GET    /playback                    status snapshot
//	POST   /playback/{play,pause,stop,clear}
//	PUT    /playback/volume             {"volume": 0.5}
//	GET    /capture                     active session, if any
//	POST   /capture/start
//	POST   /capture/stop
//	GET    /clips                       index in capture order
//	GET    /clips/{id}                  audio/wav download
//	DELETE /clips/{id}
//
// The capture routes are registered only when a [Capture] is configured and
// the clip routes only when a store is.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/MrWong99/voxline/internal/clipstore"
	"github.com/MrWong99/voxline/internal/observe"
	"github.com/MrWong99/voxline/pkg/audio"
	"github.com/MrWong99/voxline/pkg/playback"
	"github.com/MrWong99/voxline/pkg/vad"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 16

// Capture starts and stops capture sessions with the currently configured
// detection parameters.
type Capture interface {
	Start(ctx context.Context) (*vad.Session, error)
	Stop() error
	Active() *vad.Session
}

// Server holds the components served by the API.
type Server struct {
	playback *playback.Engine
	capture  Capture
	clips    *clipstore.Store
}

// Option configures a [Server].
type Option func(*Server)

// WithCapture enables the capture routes.
func WithCapture(c Capture) Option {
	return func(s *Server) { s.capture = c }
}

// WithClips enables the clip routes.
func WithClips(store *clipstore.Store) Option {
	return func(s *Server) { s.clips = store }
}

// New returns a [Server] for pb.
func New(pb *playback.Engine, opts ...Option) *Server {
	s := &Server{playback: pb}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register adds the API routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /playback", s.playbackStatus)
	mux.HandleFunc("POST /playback/{action}", s.playbackAction)
	mux.HandleFunc("PUT /playback/volume", s.setVolume)

	if s.capture != nil {
		mux.HandleFunc("GET /capture", s.captureStatus)
		mux.HandleFunc("POST /capture/start", s.captureStart)
		mux.HandleFunc("POST /capture/stop", s.captureStop)
	}

	if s.clips != nil {
		mux.HandleFunc("GET /clips", s.listClips)
		mux.HandleFunc("GET /clips/{id}", s.getClip)
		mux.HandleFunc("DELETE /clips/{id}", s.deleteClip)
	}
}

// ─── Playback ─────────────────────────────────────────────────────────────────

// PlaybackStatus is the JSON form of [playback.Status].
type PlaybackStatus struct {
	State    string  `json:"state"`
	Position float64 `json:"position_seconds"`
	Total    float64 `json:"total_seconds"`
	Buffered float64 `json:"buffered_seconds"`
	Progress float64 `json:"progress"`
	Volume   float64 `json:"volume"`
	Segments int     `json:"segments"`
}

func newPlaybackStatus(st playback.Status) PlaybackStatus {
	return PlaybackStatus{
		State:    st.State.String(),
		Position: st.Position.Seconds(),
		Total:    st.Total.Seconds(),
		Buffered: st.Buffered().Seconds(),
		Progress: st.Progress(),
		Volume:   st.Volume,
		Segments: st.Segments,
	}
}

func (s *Server) playbackStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, newPlaybackStatus(s.playback.Status()))
}

func (s *Server) playbackAction(w http.ResponseWriter, r *http.Request) {
	var fn func() error
	switch action := r.PathValue("action"); action {
	case "play":
		fn = s.playback.Play
	case "pause":
		fn = s.playback.Pause
	case "stop":
		fn = s.playback.Stop
	case "clear":
		fn = s.playback.Clear
	default:
		writeError(w, http.StatusNotFound, "unknown playback action "+strconv.Quote(action))
		return
	}
	if err := fn(); err != nil {
		s.playbackError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPlaybackStatus(s.playback.Status()))
}

type volumeRequest struct {
	Volume *float64 `json:"volume"`
}

func (s *Server) setVolume(w http.ResponseWriter, r *http.Request) {
	var req volumeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Volume == nil {
		writeError(w, http.StatusBadRequest, "volume is required")
		return
	}
	if err := s.playback.SetVolume(*req.Volume); err != nil {
		s.playbackError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPlaybackStatus(s.playback.Status()))
}

func (s *Server) playbackError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, playback.ErrClosed) {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	observe.Logger(r.Context()).Error("api: playback command", "err", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

// ─── Capture ──────────────────────────────────────────────────────────────────

// CaptureStatus describes the current capture session.
type CaptureStatus struct {
	Active    bool   `json:"active"`
	SessionID string `json:"session_id,omitempty"`
	State     string `json:"state"`
	Error     string `json:"error,omitempty"`
}

func newCaptureStatus(sess *vad.Session) CaptureStatus {
	if sess == nil {
		return CaptureStatus{State: vad.Idle.String()}
	}
	st := CaptureStatus{
		SessionID: sess.ID(),
		State:     sess.State().String(),
	}
	select {
	case <-sess.Done():
		if err := sess.Err(); err != nil {
			st.Error = err.Error()
		}
	default:
		st.Active = true
	}
	return st
}

func (s *Server) captureStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, newCaptureStatus(s.capture.Active()))
}

func (s *Server) captureStart(w http.ResponseWriter, r *http.Request) {
	sess, err := s.capture.Start(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, audio.ErrDeviceUnavailable):
			status = http.StatusServiceUnavailable
		case errors.Is(err, vad.ErrScaleMismatch):
			status = http.StatusConflict
		}
		observe.Logger(r.Context()).Warn("api: start capture", "err", err)
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newCaptureStatus(sess))
}

func (s *Server) captureStop(w http.ResponseWriter, r *http.Request) {
	if err := s.capture.Stop(); err != nil {
		observe.Logger(r.Context()).Error("api: stop capture", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newCaptureStatus(nil))
}

// ─── Clips ────────────────────────────────────────────────────────────────────

func (s *Server) listClips(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"clips": s.clips.List()})
}

func (s *Server) getClip(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	e, err := s.clips.Get(id)
	if err != nil {
		s.clipError(w, r, err)
		return
	}
	data, err := s.clips.WAV(id)
	if err != nil {
		s.clipError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", `attachment; filename="`+e.ID+`.wav"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Last-Modified", e.CapturedAt.UTC().Format(http.TimeFormat))
	_, _ = w.Write(data)
}

func (s *Server) deleteClip(w http.ResponseWriter, r *http.Request) {
	if err := s.clips.Delete(r.PathValue("id")); err != nil {
		s.clipError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) clipError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, clipstore.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	observe.Logger(r.Context()).Error("api: clip request", "err", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
