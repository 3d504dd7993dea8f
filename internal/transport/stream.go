package transport

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/SinghAman21/silentparcel-uploader/errors"
	"github.com/SinghAman21/silentparcel-uploader/internal/api"
)

// Subscribe opens the server's status feed for the session. Callers that
// cannot establish or keep the feed fall back to polling Status.
func (c *Client) Subscribe(ctx context.Context, uploadID string) (api.StatusStream, error) {
	u := c.endpoint("api", "uploads", uploadID, "status", "ws")
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return nil, errors.NewError("subscribe", decodeError(resp)).WithUploadID(uploadID)
		}
		return nil, errors.NewError("subscribe", fmt.Errorf("%w: %v", errors.ErrNetwork, err)).
			WithUploadID(uploadID)
	}
	c.logger.Debug("status feed opened", "uploadId", uploadID, "url", redacted(u))
	return &wsStream{conn: conn, uploadID: uploadID}, nil
}

// wsStream adapts a websocket connection to the StatusStream interface.
type wsStream struct {
	conn     *websocket.Conn
	uploadID string

	closeOnce sync.Once
	closeErr  error
}

// Next blocks until the server pushes a status payload, the context is
// cancelled, or the connection drops.
func (s *wsStream) Next(ctx context.Context) (*api.StatusReport, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = s.conn.SetReadDeadline(deadline)
	} else {
		// Clear any deadline left behind by an earlier call.
		_ = s.conn.SetReadDeadline(time.Time{})
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = s.conn.Close()
		case <-done:
		}
	}()

	var payload statusPayload
	if err := s.conn.ReadJSON(&payload); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.NewError("statusFeed", fmt.Errorf("%w: %v", errors.ErrNetwork, err)).
			WithUploadID(s.uploadID)
	}
	return payload.toReport(), nil
}

// Close tears down the feed. Safe to call more than once.
func (s *wsStream) Close() error {
	s.closeOnce.Do(func() {
		_ = s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// redacted strips credentials from a URL before it reaches a log line.
func redacted(u *url.URL) string {
	copied := *u
	copied.User = nil
	return copied.String()
}
