// Package handler implements the bridge gateway HTTP endpoints.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/capitalize-ai/talkbridge/internal/middleware"
	"github.com/capitalize-ai/talkbridge/pkg/logger"
	"github.com/capitalize-ai/talkbridge/pkg/talk"
)

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// requestLogger binds the correlation id and caller of r to log.
func requestLogger(r *http.Request, log *logger.Logger) *logger.Logger {
	ctx := r.Context()
	return log.WithRequest(middleware.GetCorrelationID(ctx), middleware.GetSubject(ctx))
}

// writeTalkError maps a library error to a gateway status. Failures on the
// Talk side are logged; caller mistakes are not.
func writeTalkError(w http.ResponseWriter, log *logger.Logger, err error) {
	status, code := statusFor(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		log.Warn("talk call failed", zap.Int("status", status), zap.Error(err))
		if status != http.StatusNotImplemented {
			message = "talk server error"
		}
	}
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

// statusFor picks the HTTP status and error code for a library error.
// A 401 from Talk means the bridge credentials were rejected, which is a
// gateway failure from the caller's point of view.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, talk.ErrInvalidArgument), errors.Is(err, talk.ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, talk.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, talk.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, talk.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, talk.ErrPreconditionFailed):
		return http.StatusPreconditionFailed, "precondition_failed"
	case errors.Is(err, talk.ErrNotCapable):
		return http.StatusNotImplemented, "not_capable"
	case errors.Is(err, talk.ErrUnauthorized):
		return http.StatusBadGateway, "upstream_unauthorized"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "upstream_timeout"
	default:
		return http.StatusBadGateway, "upstream_error"
	}
}

// intParam reads a non-negative integer query parameter.
func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New(name + " must be a non-negative integer")
	}
	return n, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
