package feed

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// maxLineBytes bounds a single feed line. Audio chunks of a few seconds of
// 24 kHz PCM fit comfortably.
const maxLineBytes = 8 << 20

// SSESource POSTs Body to URL and reads newline-delimited events from the
// streamed response.
type SSESource struct {
	URL     string
	Body    string
	Headers map[string]string

	// Client defaults to [http.DefaultClient].
	Client *http.Client
}

// Stream implements [Source].
func (s *SSESource) Stream(ctx context.Context, emit func(Event) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewBufferString(s.Body))
	if err != nil {
		return fmt.Errorf("feed: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	for k, v := range s.Headers {
		req.Header.Set(k, v)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("feed: post %s: %w", s.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("feed: post %s: status %d: %s", s.URL, resp.StatusCode, bytes.TrimSpace(msg))
	}

	slog.Info("feed: sse stream opened", "url", s.URL)
	return scanLines(ctx, resp.Body, emit)
}

// scanLines parses r line by line and emits every event. Malformed lines are
// logged and skipped. It returns nil at end of input or after a final event.
func scanLines(ctx context.Context, r io.Reader, emit func(Event) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxLineBytes)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		ev, ok, err := ParseLine(sc.Text())
		if err != nil {
			slog.Warn("feed: skipping malformed line", "err", err)
			continue
		}
		if !ok {
			continue
		}
		if err := emit(ev); err != nil {
			return err
		}
		if ev.Type == TypeStreamEnd {
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("feed: read stream: %w", err)
	}
	return nil
}

var _ Source = (*SSESource)(nil)
