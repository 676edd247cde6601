package ws

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/vedran77/whiteboard/internal/service"
	"github.com/vedran77/whiteboard/pkg/validator"
	"go.uber.org/zap"
)

// Session binds one live connection to one room and one user.
type Session struct {
	RoomID  string
	UserID  string
	CanEdit bool
}

// sessionTable maps connection ids to sessions. Only the Hub reads or
// writes it.
type sessionTable struct {
	mu     sync.RWMutex
	byConn map[uuid.UUID]Session
}

func newSessionTable() *sessionTable {
	return &sessionTable{byConn: make(map[uuid.UUID]Session)}
}

func (t *sessionTable) get(connID uuid.UUID) (Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.byConn[connID]
	return s, ok
}

func (t *sessionTable) set(connID uuid.UUID, s Session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byConn[connID] = s
}

func (t *sessionTable) remove(connID uuid.UUID) (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.byConn[connID]
	if ok {
		delete(t.byConn, connID)
	}
	return s, ok
}

// Session returns the connection's current session, if joined.
func (h *Hub) Session(c *Client) (Session, bool) {
	return h.sessions.get(c.id)
}

// Join failure messages sent in the ack.
const (
	joinErrInvalidRequest = "Invalid join request"
	joinErrRoomNotFound   = "Room not found"
	joinErrInvalidPass    = "Invalid password"
	joinErrInternal       = "Failed to join room"
)

// HandleJoin runs the join transition and always answers with an ack.
func (h *Hub) HandleJoin(ctx context.Context, c *Client, evt *Event) {
	var p JoinRoomPayload
	if err := json.Unmarshal(evt.Payload, &p); err != nil {
		h.ackJoin(c, evt.ID, JoinRoomAck{Error: joinErrInvalidRequest})
		return
	}
	if errs := validator.ValidateJoin(p.RoomID, p.UserName); errs.HasErrors() {
		h.ackJoin(c, evt.ID, JoinRoomAck{Error: errs.First()})
		return
	}

	// A connection holds at most one session.
	if _, ok := h.sessions.get(c.id); ok {
		h.HandleLeave(ctx, c)
	}

	log := h.log.With(zap.Stringer("conn_id", c.id), zap.String("room_id", p.RoomID))

	room, err := h.roomService.GetByID(ctx, p.RoomID)
	switch {
	case errors.Is(err, service.ErrRoomNotFound):
		h.ackJoin(c, evt.ID, JoinRoomAck{Error: joinErrRoomNotFound})
		return
	case err != nil:
		log.Error("join: load room", zap.Error(err))
		h.ackJoin(c, evt.ID, JoinRoomAck{Error: joinErrInternal})
		return
	}

	if !service.CheckAccess(room, p.Password) {
		h.ackJoin(c, evt.ID, JoinRoomAck{Error: joinErrInvalidPass})
		return
	}

	user := h.identityService.CreateOrGetUser(c.id.String(), strings.TrimSpace(p.UserName))
	log = log.With(zap.String("user_id", user.ID))

	if err := h.roomService.AddUser(ctx, room.ID, user); err != nil {
		log.Error("join: add user", zap.Error(err))
		h.ackJoin(c, evt.ID, JoinRoomAck{Error: joinErrInternal})
		return
	}

	h.sessions.set(c.id, Session{RoomID: room.ID, UserID: user.ID, CanEdit: room.CanEdit()})
	h.subscribe(c, room.ID)

	elements, err := h.elementService.List(ctx, room.ID)
	if err != nil {
		log.Error("join: list elements", zap.Error(err))
		h.rollbackJoin(ctx, c, room.ID, user.ID)
		h.ackJoin(c, evt.ID, JoinRoomAck{Error: joinErrInternal})
		return
	}

	h.ackJoin(c, evt.ID, JoinRoomAck{
		Success:  true,
		Room:     room,
		User:     user,
		Elements: elements,
	})
	log.Info("user joined room")

	h.BroadcastToRoom(room.ID, EventTypeUserJoined, user, c)
	h.broadcastRoomUsers(ctx, room.ID)
}

func (h *Hub) rollbackJoin(ctx context.Context, c *Client, roomID, userID string) {
	h.sessions.remove(c.id)
	h.unsubscribe(c)
	if err := h.roomService.RemoveUser(ctx, roomID, userID); err != nil {
		h.log.Error("join rollback: remove user", zap.String("room_id", roomID), zap.String("user_id", userID), zap.Error(err))
	}
}

func (h *Hub) ackJoin(c *Client, requestID string, ack JoinRoomAck) {
	evt, err := NewEvent(EventTypeJoinRoomAck, ack)
	if err != nil {
		h.log.Error("marshal join ack", zap.Error(err))
		return
	}
	evt.ID = requestID
	h.sendOrdered(c, evt)
}

// HandleLeave ends the connection's session. Without a session it does nothing.
func (h *Hub) HandleLeave(ctx context.Context, c *Client) {
	sess, ok := h.sessions.remove(c.id)
	if !ok {
		return
	}
	h.unsubscribe(c)

	log := h.log.With(zap.Stringer("conn_id", c.id), zap.String("room_id", sess.RoomID), zap.String("user_id", sess.UserID))
	if err := h.roomService.RemoveUser(ctx, sess.RoomID, sess.UserID); err != nil {
		if !errors.Is(err, service.ErrConnectionNotCleared) {
			log.Error("leave: remove user", zap.Error(err))
			return
		}
		log.Warn("leave: user connection not cleared", zap.Error(err))
	}
	log.Info("user left room")

	h.BroadcastToRoom(sess.RoomID, EventTypeUserLeft, sess.UserID, c)
	h.broadcastRoomUsers(ctx, sess.RoomID)
}

func (h *Hub) broadcastRoomUsers(ctx context.Context, roomID string) {
	users, err := h.roomService.ListUsers(ctx, roomID)
	if err != nil {
		h.log.Error("list room users", zap.String("room_id", roomID), zap.Error(err))
		return
	}
	h.BroadcastToRoom(roomID, EventTypeRoomUsersUpdated, users, nil)
}

// HandleElement persists a drawing-start/update/end or text-added element
// and relays it to the rest of the room. Nothing is relayed when the write fails.
func (h *Hub) HandleElement(ctx context.Context, c *Client, evt *Event) {
	sess, ok := h.sessions.get(c.id)
	if !ok {
		return
	}
	if !sess.CanEdit {
		c.sendError(ErrCodeReadOnly, "room is view-only")
		return
	}

	var p ElementPayload
	if err := json.Unmarshal(evt.Payload, &p); err != nil {
		c.sendError(ErrCodeInvalidPayload, "invalid "+evt.Type+" payload")
		return
	}

	if err := h.elementService.Upsert(ctx, sess.RoomID, p.Element); err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			c.sendError(ErrCodeInvalidElement, verr.Fields.First())
			return
		}
		h.log.Error("persist element",
			zap.String("event", evt.Type),
			zap.String("room_id", sess.RoomID),
			zap.String("element_id", p.Element.ID()),
			zap.Error(err),
		)
		c.sendError(ErrCodeStorage, "failed to save element")
		return
	}

	h.BroadcastToRoom(sess.RoomID, evt.Type, ElementBroadcastPayload{
		Element: p.Element,
		UserID:  sess.UserID,
	}, c)
}

// HandleClear wipes the room's elements, then tells the other members.
func (h *Hub) HandleClear(ctx context.Context, c *Client) {
	sess, ok := h.sessions.get(c.id)
	if !ok {
		return
	}
	if !sess.CanEdit {
		c.sendError(ErrCodeReadOnly, "room is view-only")
		return
	}

	if err := h.elementService.Clear(ctx, sess.RoomID); err != nil {
		h.log.Error("clear canvas", zap.String("room_id", sess.RoomID), zap.Error(err))
		c.sendError(ErrCodeStorage, "failed to clear canvas")
		return
	}

	h.BroadcastToRoom(sess.RoomID, EventTypeCanvasCleared, nil, c)
}

// HandleCursor relays a cursor position. Positions are never stored.
func (h *Hub) HandleCursor(c *Client, evt *Event) {
	sess, ok := h.sessions.get(c.id)
	if !ok {
		return
	}

	var p CursorMovePayload
	if err := json.Unmarshal(evt.Payload, &p); err != nil {
		c.sendError(ErrCodeInvalidPayload, "invalid cursor-move payload")
		return
	}

	h.BroadcastToRoom(sess.RoomID, EventTypeCursorMoved, CursorMovedPayload{
		UserID:   sess.UserID,
		Position: p.Position,
	}, c)
}
