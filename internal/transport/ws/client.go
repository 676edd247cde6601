package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
	// A pen stroke resends its whole point list on every update.
	maxMessageSize = 1 << 20
)

// Client represents a single WebSocket connection.
type Client struct {
	id   uuid.UUID
	hub  *Hub
	conn *websocket.Conn
	log  *zap.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	id := uuid.New()
	return &Client{
		id:   id,
		hub:  hub,
		conn: conn,
		log:  hub.log.With(zap.Stringer("conn_id", id)),
		send: make(chan []byte, hub.sendBufSize),
		done: make(chan struct{}),
	}
}

func (c *Client) ID() uuid.UUID { return c.id }

// shutdown stops the write pump. Safe to call more than once.
func (c *Client) shutdown() {
	c.closeOnce.Do(func() { close(c.done) })
}

// ReadPump reads events from the WebSocket and handles each one to
// completion before reading the next. On exit it runs the disconnect
// transition.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.HandleLeave(context.Background(), c)
		c.hub.unregister(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		var event Event
		err := wsjson.Read(ctx, c.conn, &event)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				c.log.Debug("client closed connection")
			} else {
				c.log.Info("read error", zap.Error(err))
			}
			return
		}

		c.handleEvent(ctx, &event)
	}
}

// WritePump writes messages from the send channel to the WebSocket.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message := <-c.send:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				c.log.Info("write error", zap.Error(err))
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				c.log.Info("ping error", zap.Error(err))
				return
			}

		case <-c.done:
			return
		}
	}
}

// handleEvent routes an incoming client event.
func (c *Client) handleEvent(ctx context.Context, event *Event) {
	switch event.Type {
	case EventTypeJoinRoom:
		c.hub.HandleJoin(ctx, c, event)

	case EventTypeLeaveRoom:
		c.hub.HandleLeave(ctx, c)

	case EventTypeDrawingStart, EventTypeDrawingUpdate, EventTypeDrawingEnd, EventTypeTextAdded:
		c.hub.HandleElement(ctx, c, event)

	case EventTypeClearCanvas:
		c.hub.HandleClear(ctx, c)

	case EventTypeCursorMove:
		c.hub.HandleCursor(c, event)

	case EventTypePing:
		c.sendPong()

	default:
		c.sendError(ErrCodeUnknownEvent, "unknown event type: "+event.Type)
	}
}

func (c *Client) sendPong() {
	data, _ := json.Marshal(Event{Type: EventTypePong, Timestamp: time.Now().UnixMilli()})
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) sendError(code, message string) {
	data, err := encodeEvent(EventTypeError, ErrorPayload{Code: code, Message: message})
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}
