package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vedran77/whiteboard/internal/domain"
)

type ElementRepo struct {
	db *DB
}

func NewElementRepo(db *DB) *ElementRepo {
	return &ElementRepo{db: db}
}

// Upsert writes the element as a single row. seq is assigned on first insert
// only, so it keeps the original insertion order across updates.
func (r *ElementRepo) Upsert(ctx context.Context, roomID string, el domain.Element) error {
	payload, err := json.Marshal(el)
	if err != nil {
		return fmt.Errorf("encoding element %s: %w", el.ID(), err)
	}

	query := `
		INSERT INTO elements (room_id, id, element_type, payload, ts)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (room_id, id) DO UPDATE SET
			element_type = EXCLUDED.element_type,
			payload = EXCLUDED.payload,
			ts = EXCLUDED.ts`
	_, err = r.db.Pool.Exec(ctx, query, roomID, el.ID(), string(el.Type), payload, el.Timestamp())
	return err
}

func (r *ElementRepo) ListByRoom(ctx context.Context, roomID string) ([]domain.Element, error) {
	query := `SELECT payload FROM elements WHERE room_id = $1 ORDER BY ts, seq`

	rows, err := r.db.Pool.Query(ctx, query, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var elements []domain.Element
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var el domain.Element
		if err := json.Unmarshal(payload, &el); err != nil {
			return nil, fmt.Errorf("decoding element payload: %w", err)
		}
		elements = append(elements, el)
	}
	return elements, rows.Err()
}

func (r *ElementRepo) DeleteByRoom(ctx context.Context, roomID string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM elements WHERE room_id = $1`, roomID)
	return err
}
