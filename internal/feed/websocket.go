package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/coder/websocket"
)

// maxMessageBytes bounds a single websocket message.
const maxMessageBytes = maxLineBytes

// WebSocketSource dials URL and reads one or more newline-separated events
// per text message. A non-empty Body is sent as the first message.
type WebSocketSource struct {
	URL     string
	Body    string
	Headers map[string]string
}

// Stream implements [Source].
func (s *WebSocketSource) Stream(ctx context.Context, emit func(Event) error) error {
	header := http.Header{}
	for k, v := range s.Headers {
		header.Set(k, v)
	}
	conn, _, err := websocket.Dial(ctx, s.URL, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return fmt.Errorf("feed: dial %s: %w", s.URL, err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(maxMessageBytes)

	if s.Body != "" {
		if err := conn.Write(ctx, websocket.MessageText, []byte(s.Body)); err != nil {
			return fmt.Errorf("feed: send request: %w", err)
		}
	}
	slog.Info("feed: websocket stream opened", "url", s.URL)

	err = readMessages(ctx, conn, emit)
	if err == nil {
		conn.Close(websocket.StatusNormalClosure, "stream ended")
	}
	return err
}

// readMessages emits every event read from conn until the peer closes
// normally, a final event arrives, or an error occurs.
func readMessages(ctx context.Context, conn *websocket.Conn, emit func(Event) error) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("feed: read message: %w", err)
		}
		end, err := emitMessage(string(data), emit)
		if err != nil || end {
			return err
		}
	}
}

func emitMessage(msg string, emit func(Event) error) (end bool, err error) {
	for line := range strings.Lines(msg) {
		ev, ok, perr := ParseLine(line)
		if perr != nil {
			slog.Warn("feed: skipping malformed message", "err", perr)
			continue
		}
		if !ok {
			continue
		}
		if err := emit(ev); err != nil {
			return false, err
		}
		if ev.Type == TypeStreamEnd {
			return true, nil
		}
	}
	return false, nil
}

var _ Source = (*WebSocketSource)(nil)
