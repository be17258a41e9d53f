// Package http provides the HTTP server and handler implementations.
//
// This file implements JSON response helpers and the mapping from domain
// errors to HTTP status codes.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"sangha/internal/auth"
	"sangha/internal/core"
)

type errorBody struct {
	Error string `json:"error"`
}

// writeJSON renders v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError maps a domain error onto an HTTP status and renders it.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyCode),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrEmptyTitle),
		errors.Is(err, core.ErrBadJoinMonth),
		errors.Is(err, core.ErrBadTxType):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, auth.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		// Internal details stay in the logs.
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{Error: msg})
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

// writeSSE emits one server-sent event with a JSON payload.
func writeSSE(w io.Writer, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

// decodeBody parses a JSON request body into dst with a modest size cap.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeBadRequest(w, "invalid request body")
		return false
	}
	return true
}
