package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/vedran77/whiteboard/internal/domain"
)

type RoomRepo struct {
	db *DB
}

func NewRoomRepo(db *DB) *RoomRepo {
	return &RoomRepo{db: db}
}

func (r *RoomRepo) Create(ctx context.Context, room *domain.Room) error {
	query := `
		INSERT INTO rooms (id, name, is_private, password_hash, permissions, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.Pool.Exec(ctx, query,
		room.ID, room.Name, room.IsPrivate, room.PasswordHash, string(room.Permissions), room.CreatedAt,
	)
	return err
}

func (r *RoomRepo) GetByID(ctx context.Context, id string) (*domain.Room, error) {
	query := `SELECT id, name, is_private, password_hash, permissions, created_at FROM rooms WHERE id = $1`
	var (
		room  domain.Room
		perms string
	)
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&room.ID, &room.Name, &room.IsPrivate, &room.PasswordHash, &perms, &room.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	room.Permissions = domain.Permission(perms)
	return &room, nil
}

func (r *RoomRepo) AddMember(ctx context.Context, m *domain.RoomMember) error {
	query := `
		INSERT INTO room_members (room_id, user_id, joined_at) VALUES ($1, $2, $3)
		ON CONFLICT (room_id, user_id) DO UPDATE SET joined_at = EXCLUDED.joined_at`
	_, err := r.db.Pool.Exec(ctx, query, m.RoomID, m.UserID, m.JoinedAt)
	return err
}

func (r *RoomRepo) RemoveMember(ctx context.Context, roomID, userID string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM room_members WHERE room_id = $1 AND user_id = $2`, roomID, userID)
	return err
}

func (r *RoomRepo) ListMembers(ctx context.Context, roomID string) ([]domain.User, error) {
	query := `SELECT u.id, u.name, u.color, u.current_connection_id, u.created_at
		FROM users u JOIN room_members m ON m.user_id = u.id
		WHERE m.room_id = $1 ORDER BY m.joined_at, u.id`

	rows, err := r.db.Pool.Query(ctx, query, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Color, &u.CurrentConnectionID, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
