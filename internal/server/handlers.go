package server

import (
	"encoding/json"
	"net/http"

	"github.com/florianilch/ghdevice/internal/autherr"
)

// maxRequestBody bounds request bodies; the only body is a device code.
const maxRequestBody = 64 << 10

// CompleteRequest is the body of POST /auth/complete.
type CompleteRequest struct {
	DeviceCode string `json:"deviceCode"`
}

type handlers struct {
	svc AuthService
}

func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	status, err := h.svc.Status(r.Context())
	if err != nil {
		writeAuthError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, status, http.StatusOK)
}

func (h *handlers) start(w http.ResponseWriter, r *http.Request) {
	start, err := h.svc.Start(r.Context())
	if err != nil {
		writeAuthError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, start, http.StatusOK)
}

func (h *handlers) complete(w http.ResponseWriter, r *http.Request) {
	var req CompleteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeAuthError(r.Context(), w, autherr.Input("invalid request body: %v", err))
		return
	}

	res, err := h.svc.Complete(r.Context(), req.DeviceCode)
	if err != nil {
		writeAuthError(r.Context(), w, err)
		return
	}
	// Pending is a normal outcome, not an error
	writeJSON(r.Context(), w, res, http.StatusOK)
}

func (h *handlers) disconnect(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, h.svc.Disconnect(r.Context()), http.StatusOK)
}

func (h *handlers) whoami(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.Whoami(r.Context())
	if err != nil {
		writeAuthError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, user, http.StatusOK)
}
