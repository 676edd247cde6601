package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/vedran77/whiteboard/internal/domain"
)

type UserRepo struct {
	db *DB
}

func NewUserRepo(db *DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) Save(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, name, color, current_connection_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			color = EXCLUDED.color,
			current_connection_id = EXCLUDED.current_connection_id`
	_, err := r.db.Pool.Exec(ctx, query,
		user.ID, user.Name, user.Color, user.CurrentConnectionID, user.CreatedAt,
	)
	return err
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT id, name, color, current_connection_id, created_at FROM users WHERE id = $1`
	var u domain.User
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(&u.ID, &u.Name, &u.Color, &u.CurrentConnectionID, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) SetConnection(ctx context.Context, id string, connectionID *string) error {
	_, err := r.db.Pool.Exec(ctx, `UPDATE users SET current_connection_id = $1 WHERE id = $2`, connectionID, id)
	return err
}

func (r *UserRepo) DeleteUnattached(ctx context.Context, id string) error {
	query := `
		DELETE FROM users u WHERE u.id = $1
		AND NOT EXISTS (SELECT 1 FROM room_members m WHERE m.user_id = u.id)`
	_, err := r.db.Pool.Exec(ctx, query, id)
	return err
}
