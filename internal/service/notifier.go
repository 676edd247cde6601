package service

// Notifier pushes server-initiated events to the live connections of a room.
type Notifier interface {
	NotifyCanvasCleared(roomID string)
}
