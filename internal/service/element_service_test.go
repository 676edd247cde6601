package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vedran77/whiteboard/internal/domain"
	"github.com/vedran77/whiteboard/internal/repository/memory"
)

func TestElementService_UpsertReplacesWholeRecord(t *testing.T) {
	store := memory.New()
	s := NewElementService(store.Elements())
	ctx := context.Background()

	start := domain.NewPathElement(domain.Path{ID: "p1", Tool: domain.ToolPen, Color: "#000", StrokeWidth: 4, Points: []domain.Point{{X: 1, Y: 1}}, Timestamp: 100})
	update := domain.NewPathElement(domain.Path{ID: "p1", Tool: domain.ToolPen, Points: []domain.Point{{X: 1, Y: 1}, {X: 2, Y: 2}}, Timestamp: 100})

	require.NoError(t, s.Upsert(ctx, "r1", start))
	require.NoError(t, s.Upsert(ctx, "r1", update))
	require.NoError(t, s.Upsert(ctx, "r1", update))

	els, err := s.List(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, els, 1)
	require.Len(t, els[0].Path.Points, 2)
	// No field merge: the update carried no color or stroke width.
	require.Empty(t, els[0].Path.Color)
	require.Zero(t, els[0].Path.StrokeWidth)
}

func TestElementService_Validation(t *testing.T) {
	s := NewElementService(memory.New().Elements())

	err := s.Upsert(context.Background(), "r1", domain.NewPathElement(domain.Path{Tool: domain.ToolPen}))
	require.ErrorIs(t, err, ErrValidation)
}

func TestElementService_ClearAndEmptyList(t *testing.T) {
	store := memory.New()
	s := NewElementService(store.Elements())
	ctx := context.Background()

	els, err := s.List(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, els)
	require.Empty(t, els)

	require.NoError(t, s.Upsert(ctx, "r1", domain.NewTextElement(domain.Text{ID: "t1", Text: "hi", Timestamp: 1})))
	require.NoError(t, s.Clear(ctx, "r1"))

	els, err = s.List(ctx, "r1")
	require.NoError(t, err)
	require.Empty(t, els)
}

func TestElementService_StorageFailure(t *testing.T) {
	store := memory.New()
	s := NewElementService(store.Elements())
	ctx := context.Background()
	store.FailWith(errors.New("db down"))

	err := s.Upsert(ctx, "r1", domain.NewTextElement(domain.Text{ID: "t1", Text: "hi"}))
	require.ErrorIs(t, err, ErrStorage)
	require.ErrorIs(t, s.Clear(ctx, "r1"), ErrStorage)
	_, err = s.List(ctx, "r1")
	require.ErrorIs(t, err, ErrStorage)
}

type recordingNotifier struct{ cleared []string }

func (n *recordingNotifier) NotifyCanvasCleared(roomID string) {
	n.cleared = append(n.cleared, roomID)
}

func TestElementService_ResetNotifies(t *testing.T) {
	store := memory.New()
	s := NewElementService(store.Elements())
	ctx := context.Background()

	// Without a notifier Reset is a plain clear.
	require.NoError(t, s.Reset(ctx, "r1"))

	n := &recordingNotifier{}
	s.SetNotifier(n)
	require.NoError(t, s.Upsert(ctx, "r1", domain.NewTextElement(domain.Text{ID: "t1", Text: "hi"})))
	require.NoError(t, s.Reset(ctx, "r1"))
	require.Equal(t, []string{"r1"}, n.cleared)

	store.FailWith(errors.New("db down"))
	require.ErrorIs(t, s.Reset(ctx, "r1"), ErrStorage)
	require.Len(t, n.cleared, 1, "no notification when the clear fails")
}
