package ws

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/whiteboard/internal/domain"
	"github.com/vedran77/whiteboard/internal/repository"
	"github.com/vedran77/whiteboard/internal/repository/memory"
	"github.com/vedran77/whiteboard/internal/service"
	"go.uber.org/zap"
)

type testEnv struct {
	hub      *Hub
	store    *memory.Store
	rooms    *service.RoomService
	elements *service.ElementService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.New()
	return newTestEnvWithUsers(t, store, store.Users())
}

func newTestEnvWithUsers(t *testing.T, store *memory.Store, users repository.UserRepository) *testEnv {
	t.Helper()

	rooms := service.NewRoomService(store.Rooms(), users)
	elements := service.NewElementService(store.Elements())
	hub := NewHub(rooms, elements, service.NewIdentityService(), zap.NewNop(), 64)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	return &testEnv{hub: hub, store: store, rooms: rooms, elements: elements}
}

// newTestClient registers a connection without a socket. Everything the hub
// delivers lands in its send buffer.
func (e *testEnv) newTestClient(bufSize int) *Client {
	c := &Client{
		id:   uuid.New(),
		hub:  e.hub,
		log:  e.hub.log,
		send: make(chan []byte, bufSize),
		done: make(chan struct{}),
	}
	e.hub.register(c)
	return c
}

func (e *testEnv) createRoom(t *testing.T, input service.CreateRoomInput) *domain.Room {
	t.Helper()
	room, err := e.rooms.Create(context.Background(), input)
	require.NoError(t, err)
	return room
}

// drain returns every event delivered to c so far.
func (e *testEnv) drain(t *testing.T, c *Client) []Event {
	t.Helper()
	e.hub.flush()

	var events []Event
	for {
		select {
		case data := <-c.send:
			var evt Event
			require.NoError(t, json.Unmarshal(data, &evt))
			events = append(events, evt)
		default:
			return events
		}
	}
}

func (e *testEnv) join(t *testing.T, c *Client, roomID, userName, password string) (JoinRoomAck, []Event) {
	t.Helper()

	payload, err := json.Marshal(JoinRoomPayload{RoomID: roomID, UserName: userName, Password: password})
	require.NoError(t, err)
	e.hub.HandleJoin(context.Background(), c, &Event{Type: EventTypeJoinRoom, ID: "req-1", Payload: payload})

	events := e.drain(t, c)
	require.NotEmpty(t, events)
	require.Equal(t, EventTypeJoinRoomAck, events[0].Type)
	require.Equal(t, "req-1", events[0].ID)

	var ack JoinRoomAck
	require.NoError(t, json.Unmarshal(events[0].Payload, &ack))
	return ack, events[1:]
}

func elementEvent(t *testing.T, eventType string, el domain.Element) *Event {
	t.Helper()
	payload, err := json.Marshal(ElementPayload{Element: el})
	require.NoError(t, err)
	return &Event{Type: eventType, Payload: payload}
}

func pathElement(id string, ts int64, points ...domain.Point) domain.Element {
	return domain.NewPathElement(domain.Path{
		ID:          id,
		Tool:        domain.ToolPen,
		Points:      points,
		Color:       "#000000",
		StrokeWidth: 2,
		Timestamp:   ts,
	})
}

func eventTypes(events []Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Type)
	}
	return out
}

func decodeUsers(t *testing.T, evt Event) []domain.User {
	t.Helper()
	require.Equal(t, EventTypeRoomUsersUpdated, evt.Type)
	var users []domain.User
	require.NoError(t, json.Unmarshal(evt.Payload, &users))
	return users
}

func TestJoin_MembershipFanOut(t *testing.T) {
	env := newTestEnv(t)
	room := env.createRoom(t, service.CreateRoomInput{Name: "demo", Permissions: "edit"})

	a := env.newTestClient(64)
	b := env.newTestClient(64)

	ackA, rest := env.join(t, a, room.ID, "Alice", "")
	require.True(t, ackA.Success)
	require.Equal(t, "Alice", ackA.User.Name)
	require.Contains(t, service.Palette, ackA.User.Color)
	require.NotNil(t, ackA.Elements)
	require.Empty(t, ackA.Elements)
	require.Equal(t, []string{EventTypeRoomUsersUpdated}, eventTypes(rest))

	ackB, restB := env.join(t, b, room.ID, "Bob", "")
	require.True(t, ackB.Success)
	require.Equal(t, []string{EventTypeRoomUsersUpdated}, eventTypes(restB), "joiner never sees its own user-joined")
	require.Len(t, decodeUsers(t, restB[0]), 2)

	eventsA := env.drain(t, a)
	require.Equal(t, []string{EventTypeUserJoined, EventTypeRoomUsersUpdated}, eventTypes(eventsA))

	var joined domain.User
	require.NoError(t, json.Unmarshal(eventsA[0].Payload, &joined))
	require.Equal(t, ackB.User.ID, joined.ID)

	users := decodeUsers(t, eventsA[1])
	require.Len(t, users, 2)
	assert.Equal(t, ackA.User.ID, users[0].ID)
	assert.Equal(t, ackB.User.ID, users[1].ID)
}

func TestJoin_Failures(t *testing.T) {
	env := newTestEnv(t)
	private := env.createRoom(t, service.CreateRoomInput{Name: "secret", IsPrivate: true, Password: "x"})

	c := env.newTestClient(64)

	ack, rest := env.join(t, c, "missing", "Alice", "")
	require.False(t, ack.Success)
	require.Equal(t, "Room not found", ack.Error)
	require.Empty(t, rest)

	ack, _ = env.join(t, c, private.ID, "Alice", "y")
	require.False(t, ack.Success)
	require.Equal(t, "Invalid password", ack.Error)

	ack, _ = env.join(t, c, private.ID, "", "x")
	require.False(t, ack.Success)

	_, ok := env.hub.Session(c)
	require.False(t, ok)

	ack, _ = env.join(t, c, private.ID, "Alice", "x")
	require.True(t, ack.Success)
	_, ok = env.hub.Session(c)
	require.True(t, ok)
}

func TestJoin_InvalidPayload(t *testing.T) {
	env := newTestEnv(t)
	c := env.newTestClient(64)

	env.hub.HandleJoin(context.Background(), c, &Event{Type: EventTypeJoinRoom, ID: "x", Payload: json.RawMessage(`"nope"`)})

	events := env.drain(t, c)
	require.Len(t, events, 1)
	var ack JoinRoomAck
	require.NoError(t, json.Unmarshal(events[0].Payload, &ack))
	require.False(t, ack.Success)
	require.Equal(t, "Invalid join request", ack.Error)
}

func TestElement_SenderExclusion(t *testing.T) {
	env := newTestEnv(t)
	room := env.createRoom(t, service.CreateRoomInput{Name: "demo"})

	a := env.newTestClient(64)
	b := env.newTestClient(64)
	ackA, _ := env.join(t, a, room.ID, "Alice", "")
	env.join(t, b, room.ID, "Bob", "")
	env.drain(t, a)

	ctx := context.Background()
	env.hub.HandleElement(ctx, a, elementEvent(t, EventTypeDrawingStart, pathElement("p1", 100, domain.Point{X: 1, Y: 1})))

	require.Empty(t, env.drain(t, a))

	eventsB := env.drain(t, b)
	require.Equal(t, []string{EventTypeDrawingStart}, eventTypes(eventsB))

	var got struct {
		Element domain.Element `json:"element"`
		UserID  string         `json:"userId"`
	}
	require.NoError(t, json.Unmarshal(eventsB[0].Payload, &got))
	require.Equal(t, "p1", got.Element.ID())
	require.Equal(t, ackA.User.ID, got.UserID)
}

func TestElement_IdempotentUpdate(t *testing.T) {
	env := newTestEnv(t)
	room := env.createRoom(t, service.CreateRoomInput{Name: "demo"})
	a := env.newTestClient(64)
	env.join(t, a, room.ID, "Alice", "")

	ctx := context.Background()
	update := elementEvent(t, EventTypeDrawingUpdate, pathElement("p1", 100, domain.Point{X: 1, Y: 1}, domain.Point{X: 2, Y: 2}))
	env.hub.HandleElement(ctx, a, update)
	env.hub.HandleElement(ctx, a, update)

	els, err := env.elements.List(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, els, 1)
	require.Len(t, els[0].Path.Points, 2)
}

func TestElement_NotJoinedIsIgnored(t *testing.T) {
	env := newTestEnv(t)
	room := env.createRoom(t, service.CreateRoomInput{Name: "demo"})

	member := env.newTestClient(64)
	env.join(t, member, room.ID, "Alice", "")

	stranger := env.newTestClient(64)
	ctx := context.Background()
	env.hub.HandleElement(ctx, stranger, elementEvent(t, EventTypeDrawingStart, pathElement("p1", 1, domain.Point{})))
	env.hub.HandleClear(ctx, stranger)
	env.hub.HandleCursor(stranger, &Event{Type: EventTypeCursorMove, Payload: json.RawMessage(`{"position":{"x":1,"y":2}}`)})

	require.Empty(t, env.drain(t, stranger))
	require.Empty(t, env.drain(t, member))

	els, err := env.elements.List(ctx, room.ID)
	require.NoError(t, err)
	require.Empty(t, els)
}

func TestElement_ViewOnlyRoom(t *testing.T) {
	env := newTestEnv(t)
	room := env.createRoom(t, service.CreateRoomInput{Name: "gallery", Permissions: "view"})

	a := env.newTestClient(64)
	b := env.newTestClient(64)
	env.join(t, a, room.ID, "Alice", "")
	env.join(t, b, room.ID, "Bob", "")
	env.drain(t, a)

	ctx := context.Background()
	env.hub.HandleElement(ctx, a, elementEvent(t, EventTypeDrawingStart, pathElement("p1", 1, domain.Point{})))
	env.hub.HandleClear(ctx, a)

	events := env.drain(t, a)
	require.Equal(t, []string{EventTypeError, EventTypeError}, eventTypes(events))
	var perr ErrorPayload
	require.NoError(t, json.Unmarshal(events[0].Payload, &perr))
	require.Equal(t, ErrCodeReadOnly, perr.Code)

	require.Empty(t, env.drain(t, b))
}

func TestElement_InvalidElement(t *testing.T) {
	env := newTestEnv(t)
	room := env.createRoom(t, service.CreateRoomInput{Name: "demo"})
	a := env.newTestClient(64)
	b := env.newTestClient(64)
	env.join(t, a, room.ID, "Alice", "")
	env.join(t, b, room.ID, "Bob", "")
	env.drain(t, a)

	env.hub.HandleElement(context.Background(), a, elementEvent(t, EventTypeDrawingStart, pathElement("", 1)))

	events := env.drain(t, a)
	require.Len(t, events, 1)
	var perr ErrorPayload
	require.NoError(t, json.Unmarshal(events[0].Payload, &perr))
	require.Equal(t, ErrCodeInvalidElement, perr.Code)
	require.Empty(t, env.drain(t, b))
}

func TestElement_StorageFailureSkipsBroadcast(t *testing.T) {
	env := newTestEnv(t)
	room := env.createRoom(t, service.CreateRoomInput{Name: "demo"})
	a := env.newTestClient(64)
	b := env.newTestClient(64)
	env.join(t, a, room.ID, "Alice", "")
	env.join(t, b, room.ID, "Bob", "")
	env.drain(t, a)

	env.store.FailWith(errors.New("db down"))
	env.hub.HandleElement(context.Background(), a, elementEvent(t, EventTypeDrawingStart, pathElement("p1", 1, domain.Point{})))
	env.store.FailWith(nil)

	events := env.drain(t, a)
	require.Len(t, events, 1)
	var perr ErrorPayload
	require.NoError(t, json.Unmarshal(events[0].Payload, &perr))
	require.Equal(t, ErrCodeStorage, perr.Code)

	require.Empty(t, env.drain(t, b))
}

func TestClearCanvas(t *testing.T) {
	env := newTestEnv(t)
	room := env.createRoom(t, service.CreateRoomInput{Name: "demo"})
	a := env.newTestClient(64)
	b := env.newTestClient(64)
	env.join(t, a, room.ID, "Alice", "")
	env.join(t, b, room.ID, "Bob", "")
	env.drain(t, a)

	ctx := context.Background()
	env.hub.HandleElement(ctx, a, elementEvent(t, EventTypeDrawingEnd, pathElement("p1", 1, domain.Point{})))
	env.hub.HandleElement(ctx, a, elementEvent(t, EventTypeTextAdded, domain.NewTextElement(domain.Text{ID: "t1", Text: "hi", FontSize: 12, Timestamp: 2})))
	env.drain(t, b)

	env.hub.HandleClear(ctx, a)

	require.Empty(t, env.drain(t, a))
	eventsB := env.drain(t, b)
	require.Equal(t, []string{EventTypeCanvasCleared}, eventTypes(eventsB))
	require.Empty(t, eventsB[0].Payload)

	els, err := env.elements.List(ctx, room.ID)
	require.NoError(t, err)
	require.Empty(t, els)

	late := env.newTestClient(64)
	ack, _ := env.join(t, late, room.ID, "Carol", "")
	require.True(t, ack.Success)
	require.Empty(t, ack.Elements)
}

func TestCursorRelay(t *testing.T) {
	env := newTestEnv(t)
	room := env.createRoom(t, service.CreateRoomInput{Name: "demo"})
	a := env.newTestClient(64)
	b := env.newTestClient(64)
	ackA, _ := env.join(t, a, room.ID, "Alice", "")
	env.join(t, b, room.ID, "Bob", "")
	env.drain(t, a)

	env.hub.HandleCursor(a, &Event{Type: EventTypeCursorMove, Payload: json.RawMessage(`{"position":{"x":3,"y":4}}`)})

	require.Empty(t, env.drain(t, a))
	eventsB := env.drain(t, b)
	require.Equal(t, []string{EventTypeCursorMoved}, eventTypes(eventsB))

	var moved CursorMovedPayload
	require.NoError(t, json.Unmarshal(eventsB[0].Payload, &moved))
	require.Equal(t, ackA.User.ID, moved.UserID)
	require.Equal(t, domain.Point{X: 3, Y: 4}, moved.Position)

	els, err := env.elements.List(context.Background(), room.ID)
	require.NoError(t, err)
	require.Empty(t, els)
}

func TestLeave(t *testing.T) {
	env := newTestEnv(t)
	room := env.createRoom(t, service.CreateRoomInput{Name: "demo"})
	a := env.newTestClient(64)
	b := env.newTestClient(64)
	ackA, _ := env.join(t, a, room.ID, "Alice", "")
	env.join(t, b, room.ID, "Bob", "")
	env.drain(t, a)

	ctx := context.Background()
	env.hub.HandleLeave(ctx, a)

	require.Empty(t, env.drain(t, a))
	eventsB := env.drain(t, b)
	require.Equal(t, []string{EventTypeUserLeft, EventTypeRoomUsersUpdated}, eventTypes(eventsB))

	var leftID string
	require.NoError(t, json.Unmarshal(eventsB[0].Payload, &leftID))
	require.Equal(t, ackA.User.ID, leftID)
	require.Len(t, decodeUsers(t, eventsB[1]), 1)

	_, ok := env.hub.Session(a)
	require.False(t, ok)

	// Leaving twice is a no-op.
	env.hub.HandleLeave(ctx, a)
	require.Empty(t, env.drain(t, b))

	// A former member no longer reaches the room.
	env.hub.HandleElement(ctx, a, elementEvent(t, EventTypeDrawingStart, pathElement("p1", 1, domain.Point{})))
	require.Empty(t, env.drain(t, b))
}

// stuckConnectionUsers fails every SetConnection once fail is set.
type stuckConnectionUsers struct {
	*memory.UserRepo
	fail bool
}

func (u *stuckConnectionUsers) SetConnection(ctx context.Context, id string, connectionID *string) error {
	if u.fail {
		return errors.New("db down")
	}
	return u.UserRepo.SetConnection(ctx, id, connectionID)
}

func TestLeave_BroadcastsWhenConnectionNotCleared(t *testing.T) {
	store := memory.New()
	users := &stuckConnectionUsers{UserRepo: store.Users()}
	env := newTestEnvWithUsers(t, store, users)
	room := env.createRoom(t, service.CreateRoomInput{Name: "demo"})

	a := env.newTestClient(64)
	b := env.newTestClient(64)
	ackA, _ := env.join(t, a, room.ID, "Alice", "")
	env.join(t, b, room.ID, "Bob", "")
	env.drain(t, a)

	users.fail = true
	env.hub.HandleLeave(context.Background(), a)

	members, err := env.rooms.ListUsers(context.Background(), room.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)

	eventsB := env.drain(t, b)
	require.Equal(t, []string{EventTypeUserLeft, EventTypeRoomUsersUpdated}, eventTypes(eventsB))

	var leftID string
	require.NoError(t, json.Unmarshal(eventsB[0].Payload, &leftID))
	require.Equal(t, ackA.User.ID, leftID)
	require.Len(t, decodeUsers(t, eventsB[1]), 1)
}

func TestRejoinLeavesPreviousRoom(t *testing.T) {
	env := newTestEnv(t)
	first := env.createRoom(t, service.CreateRoomInput{Name: "one"})
	second := env.createRoom(t, service.CreateRoomInput{Name: "two"})

	a := env.newTestClient(64)
	b := env.newTestClient(64)
	env.join(t, a, first.ID, "Alice", "")
	env.join(t, b, first.ID, "Bob", "")
	env.drain(t, a)

	ack, _ := env.join(t, a, second.ID, "Alice", "")
	require.True(t, ack.Success)

	sess, ok := env.hub.Session(a)
	require.True(t, ok)
	require.Equal(t, second.ID, sess.RoomID)

	eventsB := env.drain(t, b)
	require.Equal(t, []string{EventTypeUserLeft, EventTypeRoomUsersUpdated}, eventTypes(eventsB))

	users, err := env.rooms.ListUsers(context.Background(), first.ID)
	require.NoError(t, err)
	require.Len(t, users, 1)
}

func TestHubNotifier_CanvasClearedReachesEveryone(t *testing.T) {
	env := newTestEnv(t)
	env.elements.SetNotifier(NewHubNotifier(env.hub))
	room := env.createRoom(t, service.CreateRoomInput{Name: "demo"})

	a := env.newTestClient(64)
	b := env.newTestClient(64)
	env.join(t, a, room.ID, "Alice", "")
	env.join(t, b, room.ID, "Bob", "")
	env.drain(t, a)

	require.NoError(t, env.elements.Reset(context.Background(), room.ID))

	require.Equal(t, []string{EventTypeCanvasCleared}, eventTypes(env.drain(t, a)))
	require.Equal(t, []string{EventTypeCanvasCleared}, eventTypes(env.drain(t, b)))
}

func TestSlowClientIsDropped(t *testing.T) {
	env := newTestEnv(t)
	c := env.newTestClient(1)
	env.hub.subscribe(c, "r1")

	env.hub.BroadcastToRoom("r1", EventTypeCanvasCleared, nil, nil)
	env.hub.BroadcastToRoom("r1", EventTypeCanvasCleared, nil, nil)
	env.hub.flush()

	select {
	case <-c.done:
	default:
		t.Fatal("slow client was not shut down")
	}
}

func TestEventNilPayload(t *testing.T) {
	data, err := encodeEvent(EventTypeCanvasCleared, nil)
	require.NoError(t, err)
	require.NotContains(t, string(data), "payload")
}
