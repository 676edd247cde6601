package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/ksuid"
	"github.com/vedran77/whiteboard/internal/domain"
	"github.com/vedran77/whiteboard/internal/repository"
	"github.com/vedran77/whiteboard/pkg/validator"
	"golang.org/x/crypto/argon2"
)

// RoomService is the room registry: room metadata, access policy and membership.
type RoomService struct {
	roomRepo repository.RoomRepository
	userRepo repository.UserRepository
	now      func() time.Time
	newID    func() string
}

func NewRoomService(roomRepo repository.RoomRepository, userRepo repository.UserRepository) *RoomService {
	return &RoomService{
		roomRepo: roomRepo,
		userRepo: userRepo,
		now:      time.Now,
		// ksuid ids carry a timestamp plus 128 random bits. Collisions are
		// not formally excluded.
		newID: func() string { return ksuid.New().String() },
	}
}

type CreateRoomInput struct {
	Name        string `json:"name"`
	IsPrivate   bool   `json:"isPrivate"`
	Password    string `json:"password,omitempty"`
	Permissions string `json:"permissions,omitempty"`
}

func (s *RoomService) Create(ctx context.Context, input CreateRoomInput) (*domain.Room, error) {
	if errs := validator.ValidateRoom(input.Name, input.IsPrivate, input.Password, input.Permissions); errs.HasErrors() {
		return nil, &ValidationError{Fields: errs}
	}

	perms := domain.Permission(input.Permissions)
	if perms == "" {
		perms = domain.PermissionEdit
	}

	room := &domain.Room{
		ID:          s.newID(),
		Name:        strings.TrimSpace(input.Name),
		IsPrivate:   input.IsPrivate,
		Permissions: perms,
		CreatedAt:   s.now(),
		Users:       []domain.User{},
	}

	// The password only exists for private rooms.
	if input.IsPrivate {
		hash, err := hashPassword(input.Password)
		if err != nil {
			return nil, fmt.Errorf("hashing room password: %w", err)
		}
		room.PasswordHash = &hash
	}

	if err := s.roomRepo.Create(ctx, room); err != nil {
		return nil, storageError("creating room", err)
	}

	return room, nil
}

// GetByID returns the room joined with its current members.
func (s *RoomService) GetByID(ctx context.Context, roomID string) (*domain.Room, error) {
	room, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, storageError("loading room", err)
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}

	users, err := s.ListUsers(ctx, roomID)
	if err != nil {
		return nil, err
	}
	room.Users = users

	return room, nil
}

// ValidateAccess reports whether password opens the room. Public rooms always
// pass; a missing room never does.
func (s *RoomService) ValidateAccess(ctx context.Context, roomID, password string) (bool, error) {
	room, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return false, storageError("loading room", err)
	}
	if room == nil {
		return false, nil
	}
	return CheckAccess(room, password), nil
}

// CheckAccess applies the access policy to an already loaded room.
func CheckAccess(room *domain.Room, password string) bool {
	if !room.IsPrivate {
		return true
	}
	if room.PasswordHash == nil {
		return false
	}
	return verifyPassword(password, *room.PasswordHash)
}

// AddUser persists the user record and its membership. Adding an existing
// pair refreshes joined_at.
func (s *RoomService) AddUser(ctx context.Context, roomID string, user *domain.User) error {
	if err := s.userRepo.Save(ctx, user); err != nil {
		return storageError("saving user", err)
	}

	member := &domain.RoomMember{
		RoomID:   roomID,
		UserID:   user.ID,
		JoinedAt: s.now(),
	}
	if err := s.roomRepo.AddMember(ctx, member); err != nil {
		if cerr := s.userRepo.DeleteUnattached(ctx, user.ID); cerr != nil {
			err = errors.Join(err, fmt.Errorf("removing unattached user: %w", cerr))
		}
		return storageError("adding room member", err)
	}
	return nil
}

// RemoveUser deletes the membership and detaches the user from its connection.
// A failure after the membership is gone matches ErrConnectionNotCleared.
func (s *RoomService) RemoveUser(ctx context.Context, roomID, userID string) error {
	if err := s.roomRepo.RemoveMember(ctx, roomID, userID); err != nil {
		return storageError("removing room member", err)
	}
	if err := s.userRepo.SetConnection(ctx, userID, nil); err != nil {
		return fmt.Errorf("clearing user connection: %w: %w", ErrConnectionNotCleared, err)
	}
	return nil
}

// ListUsers returns the room's members ordered by join time.
func (s *RoomService) ListUsers(ctx context.Context, roomID string) ([]domain.User, error) {
	users, err := s.roomRepo.ListMembers(ctx, roomID)
	if err != nil {
		return nil, storageError("listing room members", err)
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, nil
}

func hashPassword(password string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)

	return fmt.Sprintf("%s:%s",
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

func verifyPassword(password, encoded string) bool {
	saltB64, hashB64, ok := strings.Cut(encoded, ":")
	if !ok {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(saltB64)
	if err != nil {
		return false
	}

	expectedHash, err := base64.RawStdEncoding.DecodeString(hashB64)
	if err != nil {
		return false
	}

	hash := argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)
	return subtle.ConstantTimeCompare(hash, expectedHash) == 1
}
