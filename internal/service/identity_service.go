package service

import (
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/whiteboard/internal/domain"
)

// Palette is the fixed set of user colors.
var Palette = []string{"#3B82F6", "#8B5CF6", "#10B981", "#F59E0B", "#EF4444", "#6B7280"}

// IdentityService mints anonymous, ephemeral user identities.
type IdentityService struct {
	now  func() time.Time
	pick func(n int) int
}

func NewIdentityService() *IdentityService {
	return &IdentityService{
		now:  time.Now,
		pick: rand.IntN,
	}
}

// CreateOrGetUser always mints a fresh user bound to connectionID. Users are
// never looked up by name. Persisting the record is left to RoomService.AddUser.
func (s *IdentityService) CreateOrGetUser(connectionID, displayName string) *domain.User {
	conn := connectionID
	return &domain.User{
		ID:                  uuid.NewString(),
		Name:                displayName,
		Color:               Palette[s.pick(len(Palette))],
		CurrentConnectionID: &conn,
		CreatedAt:           s.now(),
	}
}
