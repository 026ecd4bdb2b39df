// Package clipstore keeps the clips emitted by capture sessions.
//
// A [Store] with a directory writes every clip as a canonical WAV file named
// "<captured-at>_<id>.wav" and rebuilds its index from that directory on
// [Open]. A Store without a directory keeps clips in memory only. Either way
// the index is ordered by capture time.
package clipstore

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/voxline/pkg/audio"
)

// ErrNotFound is returned when no clip with the requested ID exists.
var ErrNotFound = errors.New("clipstore: clip not found")

// timeLayout sorts lexically in capture order.
const timeLayout = "20060102T150405.000Z"

// Entry describes a stored clip.
type Entry struct {
	ID         string       `json:"id"`
	CapturedAt time.Time    `json:"captured_at"`
	Duration   float64      `json:"duration_seconds"`
	Bytes      int          `json:"bytes"`
	Format     audio.Format `json:"-"`
	SampleRate int          `json:"sample_rate"`
	Channels   int          `json:"channels"`

	// File is the WAV path, empty for in-memory stores.
	File string `json:"file,omitempty"`
}

// Store is a capture-ordered clip index. All methods are safe for
// concurrent use.
type Store struct {
	dir string

	mu      sync.RWMutex
	entries []Entry
	pcm     map[string][]byte // in-memory stores only
}

// Open returns a Store writing to dir, creating dir if needed and indexing
// any clips already in it. Files that do not parse as clips are skipped. An
// empty dir yields an in-memory Store.
func Open(dir string) (*Store, error) {
	s := &Store{dir: dir, pcm: make(map[string][]byte)}
	if dir == "" {
		return s, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("clipstore: create dir: %w", err)
	}
	names, err := filepath.Glob(filepath.Join(dir, "*.wav"))
	if err != nil {
		return nil, fmt.Errorf("clipstore: scan dir: %w", err)
	}
	for _, path := range names {
		e, err := readEntry(path)
		if err != nil {
			slog.Warn("clipstore: skipping file", "path", path, "err", err)
			continue
		}
		s.entries = append(s.entries, e)
	}
	slices.SortStableFunc(s.entries, func(a, b Entry) int {
		return a.CapturedAt.Compare(b.CapturedAt)
	})
	return s, nil
}

// Dir returns the directory clips are written to, or "" for memory stores.
func (s *Store) Dir() string { return s.dir }

// Save stores clip and returns its index entry.
func (s *Store) Save(clip audio.Clip) (Entry, error) {
	if clip.ID == "" {
		return Entry{}, errors.New("clipstore: clip has no id")
	}
	e := newEntry(clip)

	if s.dir != "" {
		e.File = filepath.Join(s.dir, fileName(clip.CapturedAt, clip.ID))
		if err := writeFile(e.File, clip.PCM, clip.Format); err != nil {
			return Entry{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dir == "" {
		s.pcm[clip.ID] = clip.PCM
	}
	// Keep the slice sorted even if a clip arrives out of order.
	i, _ := slices.BinarySearchFunc(s.entries, e, func(a, b Entry) int {
		return cmp.Or(a.CapturedAt.Compare(b.CapturedAt), -1)
	})
	s.entries = slices.Insert(s.entries, i, e)
	return e, nil
}

// Handle saves clip and logs failures. It matches the clip handler signature
// of the VAD engine.
func (s *Store) Handle(clip audio.Clip) {
	e, err := s.Save(clip)
	if err != nil {
		slog.Error("clipstore: save clip", "id", clip.ID, "err", err)
		return
	}
	slog.Info("clipstore: clip saved",
		"id", e.ID,
		"duration_s", e.Duration,
		"bytes", e.Bytes,
		"file", e.File,
	)
}

// List returns all entries in capture order.
func (s *Store) List() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.entries)
}

// Len returns the number of stored clips.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Get returns the entry for id.
func (s *Store) Get(id string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.index(id)
	if i < 0 {
		return Entry{}, ErrNotFound
	}
	return s.entries[i], nil
}

// WAV returns the clip encoded as a WAV file.
func (s *Store) WAV(id string) ([]byte, error) {
	e, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if e.File != "" {
		data, err := os.ReadFile(e.File)
		if err != nil {
			return nil, fmt.Errorf("clipstore: read %s: %w", e.File, err)
		}
		return data, nil
	}

	s.mu.RLock()
	pcm, ok := s.pcm[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return audio.EncodeWAV(pcm, e.Format)
}

// Delete removes the clip and its file. A file that is already gone is not an
// error.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return ErrNotFound
	}
	if f := s.entries[i].File; f != "" {
		if err := os.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("clipstore: remove %s: %w", f, err)
		}
	}
	s.entries = slices.Delete(s.entries, i, i+1)
	delete(s.pcm, id)
	return nil
}

// index must be called with s.mu held.
func (s *Store) index(id string) int {
	return slices.IndexFunc(s.entries, func(e Entry) bool { return e.ID == id })
}

// ─── Files ──────────────────────────────────────────────────────────────────

func newEntry(clip audio.Clip) Entry {
	return Entry{
		ID:         clip.ID,
		CapturedAt: clip.CapturedAt.UTC(),
		Duration:   clip.DurationSeconds(),
		Bytes:      len(clip.PCM),
		Format:     clip.Format,
		SampleRate: clip.Format.SampleRate,
		Channels:   clip.Format.Channels,
	}
}

func fileName(capturedAt time.Time, id string) string {
	return capturedAt.UTC().Format(timeLayout) + "_" + id + ".wav"
}

// parseFileName splits a name produced by fileName.
func parseFileName(name string) (time.Time, string, error) {
	stem, ok := strings.CutSuffix(name, ".wav")
	if !ok {
		return time.Time{}, "", fmt.Errorf("clipstore: %q is not a wav file", name)
	}
	ts, id, ok := strings.Cut(stem, "_")
	if !ok || id == "" {
		return time.Time{}, "", fmt.Errorf("clipstore: %q has no clip id", name)
	}
	t, err := time.Parse(timeLayout, ts)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("clipstore: %q: %w", name, err)
	}
	return t, id, nil
}

func readEntry(path string) (Entry, error) {
	capturedAt, id, err := parseFileName(filepath.Base(path))
	if err != nil {
		return Entry{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Entry{}, fmt.Errorf("clipstore: read: %w", err)
	}
	f, pcm, err := audio.DecodeWAV(data)
	if err != nil {
		return Entry{}, err
	}
	e := newEntry(audio.Clip{
		ID:         id,
		PCM:        pcm,
		Format:     f,
		Duration:   f.Duration(len(pcm)),
		CapturedAt: capturedAt,
	})
	e.File = path
	return e, nil
}

// writeFile writes the WAV through a temporary file so readers never see a
// partial clip.
func writeFile(path string, pcm []byte, f audio.Format) error {
	data, err := audio.EncodeWAV(pcm, f)
	if err != nil {
		return fmt.Errorf("clipstore: encode: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("clipstore: write: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("clipstore: write: %w", err)
	}
	return nil
}
