package handler

import (
	"net/http"

	"github.com/capitalize-ai/talkbridge/internal/middleware"
	"github.com/capitalize-ai/talkbridge/internal/model"
	"github.com/capitalize-ai/talkbridge/internal/service"
	"github.com/capitalize-ai/talkbridge/pkg/logger"
	"github.com/capitalize-ai/talkbridge/pkg/talk"
)

// MessageHandler handles message endpoints.
type MessageHandler struct {
	messages *service.MessageService
	logger   *logger.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(messages *service.MessageService, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		messages: messages,
		logger:   log,
	}
}

// List handles GET /api/v1/rooms/{token}/messages?last_known=&limit=
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	token, ok := roomToken(w, r)
	if !ok {
		return
	}

	lastKnown, err := intParam(r, "last_known", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := intParam(r, "limit", 50)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if limit == 0 || limit > talk.MaxReceiveLimit {
		writeError(w, http.StatusBadRequest, "limit must be between 1 and 200")
		return
	}

	resp, err := h.messages.History(r.Context(), token, lastKnown, limit)
	if err != nil {
		writeTalkError(w, requestLogger(r, h.logger), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Send handles POST /api/v1/rooms/{token}/messages
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	token, ok := roomToken(w, r)
	if !ok {
		return
	}

	var req model.SendMessageRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateMessageContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	msg, err := h.messages.Send(r.Context(), token, &req)
	if err != nil {
		writeTalkError(w, requestLogger(r, h.logger), err)
		return
	}
	writeJSON(w, http.StatusCreated, &model.SendMessageResponse{Message: msg})
}

// Share handles POST /api/v1/rooms/{token}/share
func (h *MessageHandler) Share(w http.ResponseWriter, r *http.Request) {
	token, ok := roomToken(w, r)
	if !ok {
		return
	}

	var req model.ShareRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msg, err := h.messages.Share(r.Context(), token, &req)
	if err != nil {
		writeTalkError(w, requestLogger(r, h.logger), err)
		return
	}
	writeJSON(w, http.StatusCreated, &model.SendMessageResponse{Message: msg})
}

// Clear handles DELETE /api/v1/rooms/{token}/messages
func (h *MessageHandler) Clear(w http.ResponseWriter, r *http.Request) {
	token, ok := roomToken(w, r)
	if !ok {
		return
	}

	if err := h.messages.ClearHistory(r.Context(), token); err != nil {
		writeTalkError(w, requestLogger(r, h.logger), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
