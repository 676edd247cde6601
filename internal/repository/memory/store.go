// Package memory is an in-process implementation of the repository
// interfaces. It backs service and transport tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vedran77/whiteboard/internal/domain"
	"github.com/vedran77/whiteboard/internal/repository"
)

type member struct {
	userID   string
	joinedAt time.Time
	seq      uint64
}

type storedElement struct {
	el  domain.Element
	seq uint64
}

// Store holds every relation behind a single lock, mirroring the row-level
// serialization the database provides.
type Store struct {
	mu       sync.RWMutex
	seq      uint64
	failWith error

	rooms    map[string]domain.Room
	users    map[string]domain.User
	members  map[string]map[string]member
	elements map[string]map[string]storedElement
}

func New() *Store {
	return &Store{
		rooms:    make(map[string]domain.Room),
		users:    make(map[string]domain.User),
		members:  make(map[string]map[string]member),
		elements: make(map[string]map[string]storedElement),
	}
}

// FailWith makes every subsequent operation return err. Pass nil to recover.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

func (s *Store) Rooms() *RoomRepo       { return &RoomRepo{s: s} }
func (s *Store) Users() *UserRepo       { return &UserRepo{s: s} }
func (s *Store) Elements() *ElementRepo { return &ElementRepo{s: s} }

func (s *Store) nextSeq() uint64 {
	s.seq++
	return s.seq
}

var (
	_ repository.RoomRepository    = (*RoomRepo)(nil)
	_ repository.UserRepository    = (*UserRepo)(nil)
	_ repository.ElementRepository = (*ElementRepo)(nil)
)

type RoomRepo struct{ s *Store }

func (r *RoomRepo) Create(_ context.Context, room *domain.Room) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return r.s.failWith
	}
	stored := *room
	stored.Users = nil
	r.s.rooms[room.ID] = stored
	return nil
}

func (r *RoomRepo) GetByID(_ context.Context, id string) (*domain.Room, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.failWith != nil {
		return nil, r.s.failWith
	}
	room, ok := r.s.rooms[id]
	if !ok {
		return nil, nil
	}
	return &room, nil
}

func (r *RoomRepo) AddMember(_ context.Context, m *domain.RoomMember) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return r.s.failWith
	}
	set, ok := r.s.members[m.RoomID]
	if !ok {
		set = make(map[string]member)
		r.s.members[m.RoomID] = set
	}
	set[m.UserID] = member{userID: m.UserID, joinedAt: m.JoinedAt, seq: r.s.nextSeq()}
	return nil
}

func (r *RoomRepo) RemoveMember(_ context.Context, roomID, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return r.s.failWith
	}
	delete(r.s.members[roomID], userID)
	return nil
}

func (r *RoomRepo) ListMembers(_ context.Context, roomID string) ([]domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.failWith != nil {
		return nil, r.s.failWith
	}

	ms := make([]member, 0, len(r.s.members[roomID]))
	for _, m := range r.s.members[roomID] {
		ms = append(ms, m)
	}
	sort.Slice(ms, func(i, j int) bool {
		if !ms[i].joinedAt.Equal(ms[j].joinedAt) {
			return ms[i].joinedAt.Before(ms[j].joinedAt)
		}
		return ms[i].seq < ms[j].seq
	})

	var users []domain.User
	for _, m := range ms {
		if u, ok := r.s.users[m.userID]; ok {
			users = append(users, u)
		}
	}
	return users, nil
}

type UserRepo struct{ s *Store }

func (r *UserRepo) Save(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return r.s.failWith
	}
	if existing, ok := r.s.users[user.ID]; ok {
		existing.Name = user.Name
		existing.Color = user.Color
		existing.CurrentConnectionID = user.CurrentConnectionID
		r.s.users[user.ID] = existing
		return nil
	}
	r.s.users[user.ID] = *user
	return nil
}

func (r *UserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.failWith != nil {
		return nil, r.s.failWith
	}
	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *UserRepo) SetConnection(_ context.Context, id string, connectionID *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return r.s.failWith
	}
	if u, ok := r.s.users[id]; ok {
		u.CurrentConnectionID = connectionID
		r.s.users[id] = u
	}
	return nil
}

func (r *UserRepo) DeleteUnattached(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return r.s.failWith
	}
	for _, set := range r.s.members {
		if _, ok := set[id]; ok {
			return nil
		}
	}
	delete(r.s.users, id)
	return nil
}

type ElementRepo struct{ s *Store }

func (r *ElementRepo) Upsert(_ context.Context, roomID string, el domain.Element) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return r.s.failWith
	}
	set, ok := r.s.elements[roomID]
	if !ok {
		set = make(map[string]storedElement)
		r.s.elements[roomID] = set
	}
	if existing, ok := set[el.ID()]; ok {
		set[el.ID()] = storedElement{el: el.Clone(), seq: existing.seq}
		return nil
	}
	set[el.ID()] = storedElement{el: el.Clone(), seq: r.s.nextSeq()}
	return nil
}

func (r *ElementRepo) ListByRoom(_ context.Context, roomID string) ([]domain.Element, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.failWith != nil {
		return nil, r.s.failWith
	}

	stored := make([]storedElement, 0, len(r.s.elements[roomID]))
	for _, se := range r.s.elements[roomID] {
		stored = append(stored, se)
	}
	sort.Slice(stored, func(i, j int) bool {
		ti, tj := stored[i].el.Timestamp(), stored[j].el.Timestamp()
		if ti != tj {
			return ti < tj
		}
		return stored[i].seq < stored[j].seq
	})

	var elements []domain.Element
	for _, se := range stored {
		elements = append(elements, se.el.Clone())
	}
	return elements, nil
}

func (r *ElementRepo) DeleteByRoom(_ context.Context, roomID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return r.s.failWith
	}
	delete(r.s.elements, roomID)
	return nil
}
