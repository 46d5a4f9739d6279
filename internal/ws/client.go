package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024

	sendBufferSize = 256
)

// roomAuthorizer decides whether a user may join a chat room.
type roomAuthorizer func(ctx context.Context, roomID string) (bool, error)

// Client pairs a websocket connection with its hub subscriptions. The rooms
// map is owned by the hub and must only be touched under the hub mutex.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	userID string
	rooms  map[string]bool
	closed bool

	authorize roomAuthorizer
	onEvent   func(event string)
	logger    *zap.Logger
}

// readPump consumes client frames until the connection drops. It runs as a
// dedicated goroutine per connection.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("unexpected ws close", zap.String("user_id", c.userID), zap.Error(err))
			}
			return
		}

		var evt Event
		if err := json.Unmarshal(raw, &evt); err != nil {
			c.logger.Debug("discarding malformed ws frame", zap.String("user_id", c.userID), zap.Error(err))
			continue
		}
		if evt.RoomID == "" {
			continue
		}
		c.handleEvent(evt)
	}
}

func (c *Client) handleEvent(evt Event) {
	if c.onEvent != nil {
		c.onEvent(evt.Event)
	}

	switch evt.Event {
	case EventJoinRoom:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		ok, err := c.authorize(ctx, evt.RoomID)
		cancel()
		if err != nil {
			c.logger.Warn("room authorization failed",
				zap.String("user_id", c.userID),
				zap.String("room_id", evt.RoomID),
				zap.Error(err))
			return
		}
		if !ok {
			c.logger.Debug("join refused, not a chat party",
				zap.String("user_id", c.userID),
				zap.String("room_id", evt.RoomID))
			return
		}
		c.hub.join <- subscription{client: c, roomID: evt.RoomID}

	case EventLeaveRoom:
		c.hub.leave <- subscription{client: c, roomID: evt.RoomID}

	case EventTyping:
		if c.hub.inRoom(c, evt.RoomID) {
			c.hub.relay(evt.RoomID, EventUserTyping, c.typingPayload(evt), c)
		}

	case EventStopTyping:
		if c.hub.inRoom(c, evt.RoomID) {
			c.hub.relay(evt.RoomID, EventStopped, c.typingPayload(evt), c)
		}
	}
}

// typingPayload forwards the client-supplied payload (userName and friends)
// with the sender id stamped on top.
func (c *Client) typingPayload(evt Event) map[string]interface{} {
	payload := map[string]interface{}{"userId": c.userID}
	if fields, ok := evt.Payload.(map[string]interface{}); ok {
		for k, v := range fields {
			if k != "userId" {
				payload[k] = v
			}
		}
	}
	return payload
}

// writePump flushes hub frames to the connection and keeps it alive with
// periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
