// Package httpx writes the JSON envelopes served by the local payment callback listener.
// The envelope has the same success/message/data shape the storefront backend returns,
// so apiclient decodes both.
package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/Hemanshudhaduk/Velora/internal/platform/requestctx"
)

// Error is a failed callback response.
type Error struct {
	Code    string
	Message string
	Status  int
}

// NewError builds an Error with single-line, length-capped text. Statuses below 400
// become 500.
func NewError(code, message string, status int) Error {
	if status < http.StatusBadRequest {
		status = http.StatusInternalServerError
	}
	return Error{Code: oneLine(code, 64), Message: oneLine(message, 400), Status: status}
}

// WriteError writes e as a failure envelope tagged with the request and trace ids
// found in ctx.
func WriteError(ctx context.Context, w http.ResponseWriter, e Error) {
	body := map[string]any{
		"success": false,
		"error":   e.Code,
		"message": e.Message,
	}
	if id := middleware.GetReqID(ctx); id != "" {
		body["requestId"] = oneLine(id, 64)
	}
	if id := requestctx.TraceID(ctx); id != "" {
		body["traceId"] = id
	}
	write(w, e.Status, body)
}

// WriteJSON writes data inside a success envelope.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	write(w, status, map[string]any{"success": true, "data": data})
}

func write(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func oneLine(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > limit {
		s = s[:limit]
	}
	return s
}
