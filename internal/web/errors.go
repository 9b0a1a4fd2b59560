package web

// errors.go maps import errors to HTTP responses. The technical error is
// logged with the request id; the client gets core.MapError's message.

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/coach/internal/core"
	"github.com/JonMunkholm/coach/internal/logging"
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// retryAfterSeconds is sent with 503 responses when import slots are exhausted.
const retryAfterSeconds = 30

// statusFor picks the HTTP status for an import error.
func statusFor(err error) int {
	var docErr *core.DocumentError
	var storeErr *core.StoreError
	var maxErr *http.MaxBytesError

	switch {
	case errors.Is(err, core.ErrMeetNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrNoDocuments), errors.Is(err, core.ErrUnknownDataset):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrResultsURLNotConfigured):
		return http.StatusNotImplemented
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &docErr):
		if errors.As(docErr.Err, &maxErr) {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	case errors.As(err, &storeErr):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes its user-facing JSON form.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := core.MapError(err)

	log := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	}
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		log.Error("request error", attrs...)
	} else {
		log.Warn("request error", attrs...)
	}

	if errors.Is(err, core.ErrTooManyImports) {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	writeJSON(w, status, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}
