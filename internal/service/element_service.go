package service

import (
	"context"

	"github.com/vedran77/whiteboard/internal/domain"
	"github.com/vedran77/whiteboard/internal/repository"
	"github.com/vedran77/whiteboard/pkg/validator"
)

// ElementService keeps the per-room element log.
type ElementService struct {
	elementRepo repository.ElementRepository
	notifier    Notifier
}

func NewElementService(elementRepo repository.ElementRepository) *ElementService {
	return &ElementService{elementRepo: elementRepo}
}

// SetNotifier sets the real-time notifier (optional dependency).
func (s *ElementService) SetNotifier(n Notifier) {
	s.notifier = n
}

// Upsert inserts the element or replaces the whole record with the same id.
// No field-level merge happens.
func (s *ElementService) Upsert(ctx context.Context, roomID string, el domain.Element) error {
	if errs := validator.ValidateElement(el); errs.HasErrors() {
		return &ValidationError{Fields: errs}
	}
	if err := s.elementRepo.Upsert(ctx, roomID, el); err != nil {
		return storageError("saving element", err)
	}
	return nil
}

// List returns the room's elements ordered by creation timestamp. It never
// returns a nil slice.
func (s *ElementService) List(ctx context.Context, roomID string) ([]domain.Element, error) {
	elements, err := s.elementRepo.ListByRoom(ctx, roomID)
	if err != nil {
		return nil, storageError("listing elements", err)
	}
	if elements == nil {
		elements = []domain.Element{}
	}
	return elements, nil
}

func (s *ElementService) Clear(ctx context.Context, roomID string) error {
	if err := s.elementRepo.DeleteByRoom(ctx, roomID); err != nil {
		return storageError("clearing elements", err)
	}
	return nil
}

// Reset clears the room on behalf of a caller outside the room and tells
// every connection in it.
func (s *ElementService) Reset(ctx context.Context, roomID string) error {
	if err := s.Clear(ctx, roomID); err != nil {
		return err
	}
	if s.notifier != nil {
		s.notifier.NotifyCanvasCleared(roomID)
	}
	return nil
}
