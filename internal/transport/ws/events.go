package ws

import (
	"encoding/json"
	"time"

	"github.com/vedran77/whiteboard/internal/domain"
)

// Event types - Client → Server
const (
	EventTypeJoinRoom      = "join-room"
	EventTypeLeaveRoom     = "leave-room"
	EventTypeDrawingStart  = "drawing-start"
	EventTypeDrawingUpdate = "drawing-update"
	EventTypeDrawingEnd    = "drawing-end"
	EventTypeTextAdded     = "text-added"
	EventTypeClearCanvas   = "clear-canvas"
	EventTypeCursorMove    = "cursor-move"
	EventTypePing          = "ping"
)

// Event types - Server → Client
const (
	EventTypeJoinRoomAck      = "join-room:ack"
	EventTypeUserJoined       = "user-joined"
	EventTypeUserLeft         = "user-left"
	EventTypeRoomUsersUpdated = "room-users-updated"
	EventTypeCanvasCleared    = "canvas-cleared"
	EventTypeCursorMoved      = "cursor-moved"
	EventTypePong             = "pong"
	EventTypeError            = "error"
)

// Error codes carried by EventTypeError.
const (
	ErrCodeInvalidPayload = "INVALID_PAYLOAD"
	ErrCodeInvalidElement = "INVALID_ELEMENT"
	ErrCodeReadOnly       = "READ_ONLY"
	ErrCodeStorage        = "STORAGE_FAILURE"
	ErrCodeUnknownEvent   = "UNKNOWN_EVENT"
)

// Event is the base envelope for all WebSocket messages.
// ID is only set on join-room and echoed on its ack.
type Event struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"ts,omitempty"`
}

// --- Client → Server payloads ---

type JoinRoomPayload struct {
	RoomID   string `json:"roomId"`
	Password string `json:"password,omitempty"`
	UserName string `json:"userName"`
}

type ElementPayload struct {
	Element domain.Element `json:"element"`
}

type CursorMovePayload struct {
	Position domain.Point `json:"position"`
}

// --- Server → Client payloads ---

type JoinRoomAck struct {
	Success  bool             `json:"success"`
	Error    string           `json:"error,omitempty"`
	Room     *domain.Room     `json:"room,omitempty"`
	User     *domain.User     `json:"user,omitempty"`
	Elements []domain.Element `json:"elements"`
}

type ElementBroadcastPayload struct {
	Element domain.Element `json:"element"`
	UserID  string         `json:"userId"`
}

type CursorMovedPayload struct {
	UserID   string       `json:"userId"`
	Position domain.Point `json:"position"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewEvent creates a server→client event with the current timestamp.
// A nil payload produces an event without a payload field.
func NewEvent(eventType string, payload any) (*Event, error) {
	evt := &Event{
		Type:      eventType,
		Timestamp: time.Now().UnixMilli(),
	}
	if payload == nil {
		return evt, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	evt.Payload = data
	return evt, nil
}
