package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/capitalize-ai/talkbridge/internal/middleware"
	"github.com/capitalize-ai/talkbridge/internal/model"
	"github.com/capitalize-ai/talkbridge/internal/service"
	"github.com/capitalize-ai/talkbridge/pkg/logger"
)

// RoomHandler handles room endpoints.
type RoomHandler struct {
	rooms  *service.RoomService
	logger *logger.Logger
}

// NewRoomHandler creates a new room handler.
func NewRoomHandler(rooms *service.RoomService, log *logger.Logger) *RoomHandler {
	return &RoomHandler{
		rooms:  rooms,
		logger: log,
	}
}

// List handles GET /api/v1/rooms
func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	resp, err := h.rooms.List(r.Context())
	if err != nil {
		writeTalkError(w, requestLogger(r, h.logger), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create handles POST /api/v1/rooms
func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateRoomRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Type == "" {
		writeError(w, http.StatusBadRequest, "type is required")
		return
	}
	if err := middleware.ValidateRoomName(req.Name); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conv, err := h.rooms.Create(r.Context(), &req)
	if err != nil {
		writeTalkError(w, requestLogger(r, h.logger), err)
		return
	}
	writeJSON(w, http.StatusCreated, model.RoomFromConversation(conv))
}

// Get handles GET /api/v1/rooms/{token}
func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	token, ok := roomToken(w, r)
	if !ok {
		return
	}

	conv, err := h.rooms.Get(r.Context(), token)
	if err != nil {
		writeTalkError(w, requestLogger(r, h.logger), err)
		return
	}
	writeJSON(w, http.StatusOK, model.RoomFromConversation(conv))
}

// renameRequest is the body of a rename.
type renameRequest struct {
	Name string `json:"name"`
}

// Rename handles PUT /api/v1/rooms/{token}
func (h *RoomHandler) Rename(w http.ResponseWriter, r *http.Request) {
	token, ok := roomToken(w, r)
	if !ok {
		return
	}

	var req renameRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateRoomName(req.Name); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conv, err := h.rooms.Rename(r.Context(), token, req.Name)
	if err != nil {
		writeTalkError(w, requestLogger(r, h.logger), err)
		return
	}
	writeJSON(w, http.StatusOK, model.RoomFromConversation(conv))
}

// Delete handles DELETE /api/v1/rooms/{token}
func (h *RoomHandler) Delete(w http.ResponseWriter, r *http.Request) {
	token, ok := roomToken(w, r)
	if !ok {
		return
	}

	if err := h.rooms.Delete(r.Context(), token); err != nil {
		writeTalkError(w, requestLogger(r, h.logger), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Participants handles GET /api/v1/rooms/{token}/participants
func (h *RoomHandler) Participants(w http.ResponseWriter, r *http.Request) {
	token, ok := roomToken(w, r)
	if !ok {
		return
	}

	resp, err := h.rooms.Participants(r.Context(), token)
	if err != nil {
		writeTalkError(w, requestLogger(r, h.logger), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// roomToken reads and validates the {token} path parameter.
func roomToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	token := chi.URLParam(r, "token")
	if err := middleware.ValidateRoomToken(token); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return token, true
}
