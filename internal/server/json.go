package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/florianilch/ghdevice/internal/autherr"
)

// ErrorResponse represents a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
// Logs encoding failures internally using the provided context.
func writeJSON(ctx context.Context, w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	// Headers and status are written before encoding to avoid buffering.
	// If encoding fails, the client may receive a partial response.
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.ErrorContext(ctx, "failed to encode JSON response", "error", err, "request_id", RequestIDFrom(ctx))
	}
}

// writeJSONError writes a JSON error response with the given status code.
func writeJSONError(ctx context.Context, w http.ResponseWriter, message string, kind autherr.Kind, status int) {
	writeJSON(ctx, w, ErrorResponse{Error: message, Kind: string(kind)}, status)
}

// writeAuthError maps err onto a status code by its kind.
func writeAuthError(ctx context.Context, w http.ResponseWriter, err error) {
	kind := autherr.KindOf(err)
	status := statusForKind(kind)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
	}

	if status >= http.StatusInternalServerError {
		slog.WarnContext(ctx, "auth request failed", "kind", kind, "error", err, "request_id", RequestIDFrom(ctx))
	}
	writeJSONError(ctx, w, err.Error(), kind, status)
}

func statusForKind(kind autherr.Kind) int {
	switch kind {
	case autherr.KindInput:
		return http.StatusBadRequest
	case autherr.KindNotConnected:
		return http.StatusConflict
	case autherr.KindUnauthorized:
		return http.StatusUnauthorized
	case autherr.KindTransport, autherr.KindMalformed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
