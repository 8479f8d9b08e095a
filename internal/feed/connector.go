package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	handshakeTimeout = 10 * time.Second
	minBackoff       = time.Second
	maxBackoff       = 30 * time.Second
)

// frame is the upstream wire format: one message per channel update.
type frame struct {
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload"`
}

// Connector streams channel updates from an upstream WebSocket feed into the
// hub. It reconnects with capped exponential backoff until the context ends.
type Connector struct {
	hub    *Hub
	url    string
	logger *slog.Logger
}

func NewConnector(hub *Hub, url string, logger *slog.Logger) *Connector {
	return &Connector{hub: hub, url: url, logger: logger}
}

// Run connects and pumps frames until ctx is done. Connection errors are
// logged and retried; only context cancellation ends the loop.
func (c *Connector) Run(ctx context.Context) error {
	backoff := minBackoff
	for {
		read, err := c.pump(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			c.logger.Warn("feed connection lost",
				slog.String("url", c.url), slog.String("error", err.Error()))
		}
		if read > 0 {
			backoff = minBackoff
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// pump runs one connection: dial, read frames, publish. Returns how many
// frames were read so the caller can reset backoff after a healthy session.
func (c *Connector) pump(ctx context.Context) (int, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return 0, err
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	c.logger.Info("feed connected", slog.String("url", c.url))

	// ReadMessage has no context; closing the connection unblocks it.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			conn.Close()
		case <-done:
		}
	}()

	read := 0
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return read, err
		}
		var f frame
		if err := json.Unmarshal(message, &f); err != nil {
			c.logger.Debug("skipping malformed feed frame", slog.String("error", err.Error()))
			continue
		}
		if f.Channel == "" {
			continue
		}
		if err := c.hub.Publish(f.Channel, f.Payload); err != nil {
			c.logger.Debug("skipping ineligible feed payload",
				slog.String("channelKey", f.Channel), slog.String("error", err.Error()))
			continue
		}
		read++
	}
}
