package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/BerylCAtieno/milo-api/internal/utils"
)

type responder struct {
	logger *utils.Logger
}

func (h responder) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", "error", err)
	}
}

func (h responder) respondError(w http.ResponseWriter, err error) {
	var status int
	var message string

	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		status = appErr.StatusCode
		message = appErr.Message
	} else {
		status = http.StatusInternalServerError
		message = "Internal server error."
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("Request error", "status", status, "error", err)
	} else {
		h.logger.Warn("Request error", "status", status, "error", message)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func (h responder) decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return utils.NewBadRequestError("Invalid request body")
	}
	return nil
}

// MethodNotAllowed is the router's 405 handler.
func MethodNotAllowed(logger *utils.Logger) http.Handler {
	h := responder{logger: logger}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.respondError(w, utils.NewMethodNotAllowedError())
	})
}

// NotFound is the router's 404 handler.
func NotFound(logger *utils.Logger) http.Handler {
	h := responder{logger: logger}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.respondError(w, utils.NewNotFoundError("Route not found"))
	})
}
