package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/talkbridge/internal/model"
	"github.com/capitalize-ai/talkbridge/internal/service"
	"github.com/capitalize-ai/talkbridge/pkg/logger"
	"github.com/capitalize-ai/talkbridge/pkg/metrics"
	"github.com/capitalize-ai/talkbridge/pkg/talk"
)

// Replayer reads relayed events back from the stream store.
type Replayer interface {
	Replay(ctx context.Context, token string, afterSequence uint64, limit int) ([]model.RoomEvent, uint64, error)
}

// StreamConfig tunes the SSE endpoint.
type StreamConfig struct {
	// PollTimeout is how long each server-side long-poll waits.
	PollTimeout time.Duration
	// RetryAfter is the pause after a failed poll.
	RetryAfter time.Duration
}

// StreamHandler handles SSE streaming and relay replay endpoints.
type StreamHandler struct {
	messages *service.MessageService
	replayer Replayer
	cfg      StreamConfig
	logger   *logger.Logger
}

// NewStreamHandler creates a new stream handler. replayer may be nil when
// the relay is disabled.
func NewStreamHandler(messages *service.MessageService, replayer Replayer, cfg StreamConfig, log *logger.Logger) *StreamHandler {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = talk.DefaultReceiveTimeout
	}
	if cfg.RetryAfter <= 0 {
		cfg.RetryAfter = 5 * time.Second
	}
	return &StreamHandler{
		messages: messages,
		replayer: replayer,
		cfg:      cfg,
		logger:   log,
	}
}

// ReplayResponse is one page of relayed events.
type ReplayResponse struct {
	Events       []model.RoomEvent `json:"events"`
	LastSequence uint64            `json:"last_sequence"`
}

// Stream handles GET /api/v1/rooms/{token}/stream
// The server long-polls Talk and forwards each new message as an SSE event
// whose id is the message id. Resume with ?last_known=N or Last-Event-ID.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token, ok := roomToken(w, r)
	if !ok {
		return
	}

	cursor, err := streamCursor(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	if cursor == 0 {
		if cursor, err = h.messages.Latest(ctx, token); err != nil {
			writeTalkError(w, requestLogger(r, h.logger), err)
			return
		}
	}

	// Streams outlive the server write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	log := requestLogger(r, h.logger).WithRoom(token)
	log.Info("stream opened", zap.Int("cursor", cursor))

	_ = sendSSEEvent(w, flusher, "connected", "", map[string]any{
		"room":       token,
		"last_known": cursor,
	})

	for {
		msgs, next, err := h.messages.Poll(ctx, token, cursor, h.cfg.PollTimeout)
		if ctx.Err() != nil {
			log.Info("stream closed", zap.Int("cursor", cursor))
			return
		}
		if err != nil {
			status, code := statusFor(err)
			_ = sendSSEEvent(w, flusher, "error", "", &model.ErrorEvent{
				Code:       code,
				Message:    err.Error(),
				RetryAfter: int(h.cfg.RetryAfter.Seconds()),
			})
			if status < http.StatusInternalServerError || errors.Is(err, talk.ErrNotCapable) {
				return
			}
			log.Warn("stream poll failed", zap.Error(err))
			if !sleepCtx(ctx, h.cfg.RetryAfter) {
				return
			}
			continue
		}

		if len(msgs) == 0 {
			_ = sendSSEEvent(w, flusher, "heartbeat", "", &model.HeartbeatEvent{Timestamp: time.Now().UTC()})
		}
		for _, m := range msgs {
			if err := sendSSEEvent(w, flusher, "message", strconv.Itoa(m.ID), m); err != nil {
				log.Warn("failed to write event", zap.Error(err))
				return
			}
		}
		cursor = next
	}
}

// Replay handles GET /api/v1/rooms/{token}/events?after_sequence=&limit=
func (h *StreamHandler) Replay(w http.ResponseWriter, r *http.Request) {
	token, ok := roomToken(w, r)
	if !ok {
		return
	}
	if h.replayer == nil {
		writeError(w, http.StatusNotImplemented, "relay is disabled")
		return
	}

	var after uint64
	if v := r.URL.Query().Get("after_sequence"); v != "" {
		seq, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "after_sequence must be a non-negative integer")
			return
		}
		after = seq
	}
	limit, err := intParam(r, "limit", 100)
	if err != nil || limit == 0 || limit > 1000 {
		writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
		return
	}

	events, last, err := h.replayer.Replay(r.Context(), token, after, limit)
	if err != nil {
		h.logger.Error("replay failed", zap.String("token", token), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "replay failed")
		return
	}
	if events == nil {
		events = []model.RoomEvent{}
	}
	if last == 0 {
		last = after
	}
	writeJSON(w, http.StatusOK, &ReplayResponse{Events: events, LastSequence: last})
}

// streamCursor reads the resume point from the query or Last-Event-ID.
func streamCursor(r *http.Request) (int, error) {
	if v := r.Header.Get("Last-Event-ID"); v != "" && r.URL.Query().Get("last_known") == "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, errors.New("invalid Last-Event-ID")
		}
		return n, nil
	}
	return intParam(r, "last_known", 0)
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event, id string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if id != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", id); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	flusher.Flush()

	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
