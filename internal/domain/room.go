package domain

import "time"

type Permission string

const (
	PermissionEdit Permission = "edit"
	PermissionView Permission = "view"
)

// Room is an isolated collaboration namespace. PasswordHash is set iff IsPrivate.
type Room struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	IsPrivate    bool       `json:"isPrivate"`
	PasswordHash *string    `json:"-"`
	Permissions  Permission `json:"permissions"`
	CreatedAt    time.Time  `json:"createdAt"`
	// Joined fields
	Users []User `json:"users"`
}

// CanEdit reports whether members may mutate the room's canvas.
func (r *Room) CanEdit() bool {
	return r.Permissions != PermissionView
}

type RoomMember struct {
	RoomID   string    `json:"roomId"`
	UserID   string    `json:"userId"`
	JoinedAt time.Time `json:"joinedAt"`
}
