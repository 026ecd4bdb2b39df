// Package feed delivers synthesized speech chunks to the playback engine.
//
// A chat backend streams [Event] values, one JSON object per line or per
// websocket message. Audio events carry base64 PCM; text events carry the
// matching transcript; a stream_end event closes a response. A [Source]
// produces events (outbound [SSESource] and [WebSocketSource] clients, or the
// inbound [Handler]), optionally wrapped in a [Reconnector], and a [Pump]
// decodes audio events and appends them to playback in arrival order.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// EventType is the kind of a feed event.
type EventType string

const (
	TypeText      EventType = "text"
	TypeAudio     EventType = "audio"
	TypeStreamEnd EventType = "stream_end"
)

// Event is one message of the chunk feed.
type Event struct {
	Type EventType `json:"type"`

	// Data holds base64 PCM, optionally as a data URI.
	Data string `json:"data,omitempty"`

	// Content holds transcript text, or base64 PCM for producers that put
	// audio there.
	Content string `json:"content,omitempty"`

	// FinishReason is set on the last event of a response.
	FinishReason string `json:"finish_reason,omitempty"`

	Role string `json:"role,omitempty"`
}

// AudioPayload returns the encoded audio of an audio event: Data, falling
// back to Content.
func (e Event) AudioPayload() string {
	if e.Data != "" {
		return e.Data
	}
	return e.Content
}

// Final reports whether e closes a response.
func (e Event) Final() bool {
	return e.Type == TypeStreamEnd || e.FinishReason != ""
}

// ParseLine decodes one line of the feed. An optional "data:" prefix is
// stripped. Blank lines report ok == false.
func ParseLine(line string) (ev Event, ok bool, err error) {
	line = strings.TrimSpace(line)
	if rest, found := strings.CutPrefix(line, "data:"); found {
		line = strings.TrimSpace(rest)
	}
	if line == "" {
		return Event{}, false, nil
	}
	if err := json.Unmarshal([]byte(line), &ev); err != nil {
		return Event{}, false, fmt.Errorf("feed: parse event: %w", err)
	}
	if ev.Type == "" {
		return Event{}, false, fmt.Errorf("feed: parse event: missing type")
	}
	return ev, true, nil
}

// Source produces feed events. Stream calls emit for every event in arrival
// order until the upstream ends, ctx is cancelled, or emit returns an error.
// A clean end of stream returns nil.
type Source interface {
	Stream(ctx context.Context, emit func(Event) error) error
}

// SourceFunc adapts a function to [Source].
type SourceFunc func(ctx context.Context, emit func(Event) error) error

// Stream implements [Source].
func (f SourceFunc) Stream(ctx context.Context, emit func(Event) error) error {
	return f(ctx, emit)
}
