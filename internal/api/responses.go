package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	app_errors "servimatt/chat/internal/errors"
)

// Shared DTOs for API responses and helpers for writing them consistently.

// ErrorResponse defines the standard JSON structure for error messages.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse is returned by operations that have no resource to return.
type StatusResponse struct {
	Status string `json:"status"`
}

// respondWithError maps the application's sentinel errors to HTTP status codes
// and writes a standard JSON error body.
func respondWithError(w http.ResponseWriter, err error) {
	var statusCode int
	var message string

	switch {
	case errors.Is(err, app_errors.ErrNotFound):
		statusCode = http.StatusNotFound
		message = "The requested resource was not found."
	case errors.Is(err, app_errors.ErrValidation):
		statusCode = http.StatusBadRequest
		// Validation messages are written for the user already.
		message = err.Error()
	case errors.Is(err, app_errors.ErrConflict):
		statusCode = http.StatusConflict
		message = err.Error()
	case errors.Is(err, app_errors.ErrNotConfigured):
		statusCode = http.StatusServiceUnavailable
		message = err.Error()
	case errors.Is(err, app_errors.ErrTransport):
		statusCode = http.StatusBadGateway
		message = err.Error()
	default:
		// Persistence and unexpected errors are not leaked to the client.
		statusCode = http.StatusInternalServerError
		message = "An unexpected internal server error occurred."
	}

	slog.Warn("Responding with error", "status_code", statusCode, "client_message", message, "internal_error", err)

	respondWithJSON(w, statusCode, ErrorResponse{Error: message})
}

// respondWithJSON marshals payload and writes it with the given status code.
func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Failed to marshal JSON response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		slog.Error("Failed to write JSON response", "error", err)
	}
}

// sendStreamError sends a named `error` event over a Server-Sent Events stream.
func sendStreamError(w http.ResponseWriter, message string) {
	slog.Warn("Sending stream error to client", "message", message)

	jsonData, err := json.Marshal(ErrorResponse{Error: message})
	if err != nil {
		slog.Error("Failed to marshal stream error payload", "error", err)
		return
	}
	if _, err := fmt.Fprintf(w, "event: error\ndata: %s\n\n", jsonData); err != nil {
		slog.Warn("Failed to write stream error, client might have disconnected", "error", err)
		return
	}
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

// writeStreamEvent writes one `data:` event. A returned error means the client
// is gone.
func writeStreamEvent(w http.ResponseWriter, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		slog.Error("Failed to marshal stream data to JSON", "error", err)
		return nil
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", jsonData); err != nil {
		return fmt.Errorf("failed to write data to stream: %w", err)
	}
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}
