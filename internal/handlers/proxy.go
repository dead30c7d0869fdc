package handlers

import (
	"net/http"

	"github.com/BerylCAtieno/milo-api/internal/models"
	"github.com/BerylCAtieno/milo-api/internal/services"
	"github.com/BerylCAtieno/milo-api/internal/utils"
)

// ProxyHandler serves the two serverless-style endpoints. Each checks its own
// method so the same handlers work outside the router.
type ProxyHandler struct {
	responder
	service services.ProxyService
}

func NewProxyHandler(service services.ProxyService, logger *utils.Logger) *ProxyHandler {
	return &ProxyHandler{
		responder: responder{logger: logger},
		service:   service,
	}
}

func (h *ProxyHandler) Milo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.respondError(w, utils.NewMethodNotAllowedError())
		return
	}

	var req models.CompletionRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}

	resp, err := h.service.Complete(r.Context(), &req)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

func (h *ProxyHandler) AnalyzeLabs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.respondError(w, utils.NewMethodNotAllowedError())
		return
	}

	var req models.LabTextRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}

	resp, err := h.service.AnalyzeLabText(r.Context(), &req)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}
