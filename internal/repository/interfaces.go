package repository

import (
	"context"

	"github.com/vedran77/whiteboard/internal/domain"
)

type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) error
	GetByID(ctx context.Context, id string) (*domain.Room, error)
	// AddMember inserts the membership or refreshes joined_at when it already exists.
	AddMember(ctx context.Context, member *domain.RoomMember) error
	RemoveMember(ctx context.Context, roomID, userID string) error
	// ListMembers returns the room's users ordered by join time.
	ListMembers(ctx context.Context, roomID string) ([]domain.User, error)
}

type UserRepository interface {
	// Save inserts the user or overwrites name, color and connection of an existing id.
	Save(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	SetConnection(ctx context.Context, id string, connectionID *string) error
	// DeleteUnattached removes the user only when it belongs to no room.
	DeleteUnattached(ctx context.Context, id string) error
}

type ElementRepository interface {
	// Upsert replaces the whole record stored under (roomID, element id).
	Upsert(ctx context.Context, roomID string, element domain.Element) error
	// ListByRoom returns elements ordered by their creation timestamp.
	ListByRoom(ctx context.Context, roomID string) ([]domain.Element, error)
	DeleteByRoom(ctx context.Context, roomID string) error
}
