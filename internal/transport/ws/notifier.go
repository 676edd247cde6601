package ws

// HubNotifier implements service.Notifier using the WebSocket Hub.
type HubNotifier struct {
	hub *Hub
}

func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (n *HubNotifier) NotifyCanvasCleared(roomID string) {
	n.hub.BroadcastToRoom(roomID, EventTypeCanvasCleared, nil, nil)
}
