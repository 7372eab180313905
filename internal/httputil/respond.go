// Package httputil writes JSON responses and API errors.
package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"bigbag/internal/apperr"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    apperr.Code `json:"code"`
	Message string      `json:"message"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("JSON encode error", "error", err)
	}
}

// WriteError converts err to an API error and writes it. Internal errors are
// logged with their cause and answered with a generic message.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	e := apperr.From(err)
	status := e.Status()
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", RequestID(r.Context()),
			"error", err,
		)
	}
	WriteJSON(w, status, errorBody{Error: errorDetail{Code: e.Code, Message: e.Message}})
}
