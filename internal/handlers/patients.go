package handlers

import (
	"mime"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/BerylCAtieno/milo-api/internal/models"
	"github.com/BerylCAtieno/milo-api/internal/services"
	"github.com/BerylCAtieno/milo-api/internal/utils"
)

type PatientHandler struct {
	responder
	service services.PatientService
}

func NewPatientHandler(service services.PatientService, logger *utils.Logger) *PatientHandler {
	return &PatientHandler{
		responder: responder{logger: logger},
		service:   service,
	}
}

func (h *PatientHandler) CreatePatient(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePatientRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}

	patient, err := h.service.CreatePatient(r.Context(), &req)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, patient)
}

func (h *PatientHandler) ListPatients(w http.ResponseWriter, r *http.Request) {
	filter := models.PatientFilter{
		TeamID: r.URL.Query().Get("team_id"),
		Query:  r.URL.Query().Get("q"),
	}

	patients, err := h.service.ListPatients(r.Context(), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, patients)
}

func (h *PatientHandler) GetPatient(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		h.respondError(w, utils.NewBadRequestError("Patient ID is required"))
		return
	}

	patient, err := h.service.GetPatient(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, patient)
}

func (h *PatientHandler) DeletePatient(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		h.respondError(w, utils.NewBadRequestError("Patient ID is required"))
		return
	}

	if err := h.service.DeletePatient(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *PatientHandler) IngestLabs(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		h.respondError(w, utils.NewBadRequestError("Patient ID is required"))
		return
	}

	var req models.IngestLabRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}

	entry, err := h.service.IngestLabs(r.Context(), id, &req)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, entry)
}

func (h *PatientHandler) LabReport(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	file, err := h.service.LabReport(r.Context(), vars["id"], vars["entryID"])
	if err != nil {
		h.respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(file.Data); err != nil {
		h.logger.Error("Failed to write report file", "error", err, "entry_id", vars["entryID"])
	}
}
