package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// frame is the wire format: one JSON object per websocket message.
type frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// wsChannel is the live transport. A read pump decodes frames and fans
// them out in receipt order; a write pump serializes emits and pings.
type wsChannel struct {
	conn      *websocket.Conn
	subs      subscriberSet
	send      chan frame
	done      chan struct{}
	closeOnce sync.Once
	logger    zerolog.Logger
}

func dialWebsocket(ctx context.Context, url, token string, logger zerolog.Logger) (*wsChannel, error) {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", url)
	}

	c := &wsChannel{
		conn:   conn,
		send:   make(chan frame, 64),
		done:   make(chan struct{}),
		logger: logger.With().Str("component", "ws_channel").Logger(),
	}
	go c.readPump()
	go c.writePump()
	return c, nil
}

func (c *wsChannel) Subscribe(event string, h Handler) func() {
	return c.subs.add(event, h)
}

func (c *wsChannel) Emit(event string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		c.logger.Warn().Err(err).Str("event", event).Msg("dropping unmarshalable emit")
		return
	}
	select {
	case c.send <- frame{Event: event, Payload: raw}:
	case <-c.done:
	default:
		// Send buffer full: best-effort contract says drop, not block.
		c.logger.Warn().Str("event", event).Msg("send buffer full, emit dropped")
	}
}

func (c *wsChannel) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *wsChannel) readPump() {
	defer c.Close()
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn().Err(err).Msg("read error, channel closed")
			}
			return
		}
		var f frame
		if err := json.Unmarshal(message, &f); err != nil {
			c.logger.Warn().Err(err).Msg("skipping malformed frame")
			continue
		}
		c.subs.dispatch(f.Event, f.Payload)
	}
}

func (c *wsChannel) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case f := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(f); err != nil {
				c.logger.Warn().Err(err).Msg("write error")
				c.Close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

var _ Channel = (*wsChannel)(nil)
