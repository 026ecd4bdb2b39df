package feed_test

import (
	"testing"

	"github.com/MrWong99/voxline/internal/feed"
)

func TestParseLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		line    string
		want    feed.Event
		wantOK  bool
		wantErr bool
	}{
		{
			name:   "plain json",
			line:   `{"type":"audio","data":"AAA="}`,
			want:   feed.Event{Type: feed.TypeAudio, Data: "AAA="},
			wantOK: true,
		},
		{
			name:   "data prefix",
			line:   `data: {"type":"text","content":"hi","role":"assistant"}`,
			want:   feed.Event{Type: feed.TypeText, Content: "hi", Role: "assistant"},
			wantOK: true,
		},
		{
			name:   "data prefix without space",
			line:   `data:{"type":"stream_end","finish_reason":"stop"}`,
			want:   feed.Event{Type: feed.TypeStreamEnd, FinishReason: "stop"},
			wantOK: true,
		},
		{
			name:   "null finish reason",
			line:   `{"type":"text","content":"x","finish_reason":null}`,
			want:   feed.Event{Type: feed.TypeText, Content: "x"},
			wantOK: true,
		},
		{name: "blank", line: "   "},
		{name: "bare data prefix", line: "data:"},
		{name: "not json", line: "data: hello", wantErr: true},
		{name: "missing type", line: `{"content":"x"}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok, err := feed.ParseLine(tt.line)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("event = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestEvent_AudioPayload(t *testing.T) {
	t.Parallel()
	if got := (feed.Event{Data: "d", Content: "c"}).AudioPayload(); got != "d" {
		t.Errorf("payload = %q, want data", got)
	}
	if got := (feed.Event{Content: "c"}).AudioPayload(); got != "c" {
		t.Errorf("payload = %q, want content fallback", got)
	}
}

func TestEvent_Final(t *testing.T) {
	t.Parallel()
	if !(feed.Event{Type: feed.TypeStreamEnd}).Final() {
		t.Error("stream_end is not final")
	}
	if !(feed.Event{Type: feed.TypeText, FinishReason: "stop"}).Final() {
		t.Error("finish_reason is not final")
	}
	if (feed.Event{Type: feed.TypeAudio}).Final() {
		t.Error("plain audio is final")
	}
}
