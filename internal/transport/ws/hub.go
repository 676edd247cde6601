package ws

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/vedran77/whiteboard/internal/service"
	"go.uber.org/zap"
)

const defaultSendBufSize = 256

type opKind int

const (
	opRegister opKind = iota
	opUnregister
	opSubscribe
	opUnsubscribe
	opBroadcast
	opDirect
	opSync
)

// hubOp is the single message type of the hub loop. Every delivery and
// membership change goes through one FIFO channel, so a client's own
// operations are applied in the order it issued them.
type hubOp struct {
	kind    opKind
	client  *Client
	roomID  string
	data    []byte
	exclude *Client
	done    chan struct{}
}

// Hub owns the live connections of every room and the session table, and
// runs the room protocol for each inbound event.
type Hub struct {
	roomService     *service.RoomService
	elementService  *service.ElementService
	identityService *service.IdentityService
	log             *zap.Logger
	sendBufSize     int

	sessions *sessionTable

	ops     chan hubOp
	stopped chan struct{}

	// Owned by Run.
	clients  map[uuid.UUID]*Client
	rooms    map[string]map[uuid.UUID]*Client
	memberOf map[uuid.UUID]string
}

func NewHub(
	roomService *service.RoomService,
	elementService *service.ElementService,
	identityService *service.IdentityService,
	logger *zap.Logger,
	sendBufSize int,
) *Hub {
	if sendBufSize <= 0 {
		sendBufSize = defaultSendBufSize
	}
	return &Hub{
		roomService:     roomService,
		elementService:  elementService,
		identityService: identityService,
		log:             logger.Named("ws"),
		sendBufSize:     sendBufSize,
		sessions:        newSessionTable(),
		ops:             make(chan hubOp, 512),
		stopped:         make(chan struct{}),
		clients:         make(map[uuid.UUID]*Client),
		rooms:           make(map[string]map[uuid.UUID]*Client),
		memberOf:        make(map[uuid.UUID]string),
	}
}

// Run starts the Hub's main loop and blocks until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)

	for {
		select {
		case <-ctx.Done():
			for _, c := range h.clients {
				c.shutdown()
			}
			h.log.Info("hub stopped", zap.Int("clients", len(h.clients)))
			return
		case op := <-h.ops:
			h.apply(op)
		}
	}
}

func (h *Hub) apply(op hubOp) {
	switch op.kind {
	case opRegister:
		h.clients[op.client.id] = op.client
		h.log.Debug("client connected", zap.Stringer("conn_id", op.client.id), zap.Int("total", len(h.clients)))

	case opUnregister:
		if _, ok := h.clients[op.client.id]; ok {
			h.detach(op.client)
			op.client.shutdown()
			h.log.Debug("client disconnected", zap.Stringer("conn_id", op.client.id), zap.Int("total", len(h.clients)))
		}

	case opSubscribe:
		h.leaveRoomSet(op.client)
		set, ok := h.rooms[op.roomID]
		if !ok {
			set = make(map[uuid.UUID]*Client)
			h.rooms[op.roomID] = set
		}
		set[op.client.id] = op.client
		h.memberOf[op.client.id] = op.roomID

	case opUnsubscribe:
		h.leaveRoomSet(op.client)

	case opBroadcast:
		for id, c := range h.rooms[op.roomID] {
			if op.exclude != nil && id == op.exclude.id {
				continue
			}
			h.deliver(c, op.data)
		}

	case opDirect:
		h.deliver(op.client, op.data)

	case opSync:
		close(op.done)
	}
}

// deliver never blocks the loop. A client whose buffer is full is dropped.
func (h *Hub) deliver(c *Client, data []byte) {
	select {
	case c.send <- data:
	default:
		h.log.Warn("dropping slow client", zap.Stringer("conn_id", c.id))
		h.detach(c)
		c.shutdown()
	}
}

func (h *Hub) detach(c *Client) {
	delete(h.clients, c.id)
	h.leaveRoomSet(c)
}

func (h *Hub) leaveRoomSet(c *Client) {
	roomID, ok := h.memberOf[c.id]
	if !ok {
		return
	}
	delete(h.memberOf, c.id)
	if set, ok := h.rooms[roomID]; ok {
		delete(set, c.id)
		if len(set) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

func (h *Hub) enqueue(op hubOp) {
	select {
	case h.ops <- op:
	case <-h.stopped:
	}
}

func (h *Hub) register(c *Client)   { h.enqueue(hubOp{kind: opRegister, client: c}) }
func (h *Hub) unregister(c *Client) { h.enqueue(hubOp{kind: opUnregister, client: c}) }

func (h *Hub) subscribe(c *Client, roomID string) {
	h.enqueue(hubOp{kind: opSubscribe, client: c, roomID: roomID})
}

func (h *Hub) unsubscribe(c *Client) {
	h.enqueue(hubOp{kind: opUnsubscribe, client: c})
}

// flush blocks until every op enqueued before it has been applied.
func (h *Hub) flush() {
	done := make(chan struct{})
	h.enqueue(hubOp{kind: opSync, done: done})
	select {
	case <-done:
	case <-h.stopped:
	}
}

// BroadcastToRoom sends an event to every connection in the room except
// exclude, which may be nil.
func (h *Hub) BroadcastToRoom(roomID string, eventType string, payload any, exclude *Client) {
	data, err := encodeEvent(eventType, payload)
	if err != nil {
		h.log.Error("marshal broadcast", zap.String("event", eventType), zap.Error(err))
		return
	}
	h.enqueue(hubOp{kind: opBroadcast, roomID: roomID, data: data, exclude: exclude})
}

// sendOrdered delivers an event to one client through the hub loop, keeping
// its position relative to room broadcasts.
func (h *Hub) sendOrdered(c *Client, evt *Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		h.log.Error("marshal event", zap.String("event", evt.Type), zap.Error(err))
		return
	}
	h.enqueue(hubOp{kind: opDirect, client: c, data: data})
}

func encodeEvent(eventType string, payload any) ([]byte, error) {
	evt, err := NewEvent(eventType, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(evt)
}
