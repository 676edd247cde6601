package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vedran77/whiteboard/internal/domain"
	"github.com/vedran77/whiteboard/internal/service"
	"go.uber.org/zap"
)

type RoomHandler struct {
	roomService    *service.RoomService
	elementService *service.ElementService
	log            *zap.Logger
}

func NewRoomHandler(roomService *service.RoomService, elementService *service.ElementService, logger *zap.Logger) *RoomHandler {
	return &RoomHandler{
		roomService:    roomService,
		elementService: elementService,
		log:            logger.Named("http"),
	}
}

type roomResponse struct {
	Success bool         `json:"success"`
	Room    *domain.Room `json:"room"`
}

type elementsResponse struct {
	Success  bool             `json:"success"`
	Elements []domain.Element `json:"elements"`
}

func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input service.CreateRoomInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	// A password on a public room is ignored.
	if !input.IsPrivate {
		input.Password = ""
	}

	room, err := h.roomService.Create(r.Context(), input)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			writeValidationErrors(w, verr.Fields)
			return
		}
		h.log.Error("create room", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Failed to create room")
		return
	}

	h.log.Info("room created", zap.String("room_id", room.ID), zap.Bool("private", room.IsPrivate))
	writeJSON(w, http.StatusCreated, roomResponse{Success: true, Room: room})
}

func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	room, err := h.roomService.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, service.ErrRoomNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Room not found")
		} else {
			h.log.Error("get room", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Failed to get room")
		}
		return
	}

	writeJSON(w, http.StatusOK, roomResponse{Success: true, Room: room})
}

// passwordHeader carries the room password for REST calls on private rooms.
const passwordHeader = "X-Room-Password"

// loadAccessibleRoom writes the error response itself and returns nil when
// the caller may not touch the room's canvas.
func (h *RoomHandler) loadAccessibleRoom(w http.ResponseWriter, r *http.Request) *domain.Room {
	room, err := h.roomService.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, service.ErrRoomNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Room not found")
		} else {
			h.log.Error("load room", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Failed to load room")
		}
		return nil
	}

	if !service.CheckAccess(room, r.Header.Get(passwordHeader)) {
		writeError(w, http.StatusForbidden, "ACCESS_DENIED", "Invalid password")
		return nil
	}
	return room
}

// ListElements replays the room's canvas in render order.
func (h *RoomHandler) ListElements(w http.ResponseWriter, r *http.Request) {
	room := h.loadAccessibleRoom(w, r)
	if room == nil {
		return
	}

	elements, err := h.elementService.List(r.Context(), room.ID)
	if err != nil {
		h.log.Error("list elements", zap.String("room_id", room.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Failed to list elements")
		return
	}

	writeJSON(w, http.StatusOK, elementsResponse{Success: true, Elements: elements})
}

func (h *RoomHandler) ClearElements(w http.ResponseWriter, r *http.Request) {
	room := h.loadAccessibleRoom(w, r)
	if room == nil {
		return
	}
	if !room.CanEdit() {
		writeError(w, http.StatusForbidden, "READ_ONLY", "Room is view-only")
		return
	}

	if err := h.elementService.Reset(r.Context(), room.ID); err != nil {
		h.log.Error("clear elements", zap.String("room_id", room.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Failed to clear canvas")
		return
	}

	h.log.Info("canvas cleared", zap.String("room_id", room.ID))
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
