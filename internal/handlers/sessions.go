package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/BerylCAtieno/milo-api/internal/models"
	"github.com/BerylCAtieno/milo-api/internal/services"
	"github.com/BerylCAtieno/milo-api/internal/utils"
)

// MaxFilesPerUpload bounds one multipart batch.
const MaxFilesPerUpload = 10

type SessionHandler struct {
	responder
	service     services.ChatService
	maxFileSize int64
}

func NewSessionHandler(service services.ChatService, maxFileSize int64, logger *utils.Logger) *SessionHandler {
	return &SessionHandler{
		responder:   responder{logger: logger},
		service:     service,
		maxFileSize: maxFileSize,
	}
}

func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	view := h.service.CreateSession(r.Context())
	h.respondJSON(w, http.StatusCreated, view)
}

func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, view)
}

func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteSession(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.respondError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) SelectPatient(w http.ResponseWriter, r *http.Request) {
	var req models.SelectPatientRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}

	view, err := h.service.SelectPatient(r.Context(), mux.Vars(r)["id"], req.PatientID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, view)
}

func (h *SessionHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req models.SendMessageRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}

	result, err := h.service.SendMessage(r.Context(), mux.Vars(r)["id"], &req)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

func (h *SessionHandler) UploadReports(w http.ResponseWriter, r *http.Request) {
	limit := h.maxFileSize*MaxFilesPerUpload + 1<<20
	if r.ContentLength > limit {
		h.respondError(w, h.sizeError())
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(h.maxFileSize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.respondError(w, h.sizeError())
			return
		}
		h.respondError(w, utils.NewBadRequestError("Invalid form data"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		h.respondError(w, utils.NewBadRequestError("No file provided"))
		return
	}
	if len(headers) > MaxFilesPerUpload {
		h.respondError(w, utils.NewBadRequestError(fmt.Sprintf("At most %d files per upload", MaxFilesPerUpload)))
		return
	}

	files := make([]models.UploadedFile, 0, len(headers))
	for _, header := range headers {
		contentType := services.DetermineContentType(header.Filename, header.Header.Get("Content-Type"))

		h.logger.Info("File upload attempt",
			"filename", header.Filename,
			"reported_content_type", header.Header.Get("Content-Type"),
			"determined_content_type", contentType)

		if !services.IsSupportedContentType(contentType) {
			h.respondError(w, utils.NewBadRequestError("Only .txt and .pdf files are supported"))
			return
		}
		if header.Size > h.maxFileSize {
			h.respondError(w, h.sizeError())
			return
		}

		file, err := header.Open()
		if err != nil {
			h.respondError(w, utils.NewInternalError("Failed to read file"))
			return
		}
		data, err := io.ReadAll(io.LimitReader(file, h.maxFileSize+1))
		file.Close()
		if err != nil {
			h.respondError(w, utils.NewInternalError("Failed to read file"))
			return
		}
		if int64(len(data)) > h.maxFileSize {
			h.respondError(w, h.sizeError())
			return
		}

		files = append(files, models.UploadedFile{
			Filename:    header.Filename,
			ContentType: contentType,
			Data:        data,
		})
	}

	results, err := h.service.UploadReports(r.Context(), mux.Vars(r)["id"], files)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

func (h *SessionHandler) sizeError() error {
	return utils.NewBadRequestError(fmt.Sprintf("File size exceeds %dMB limit", h.maxFileSize>>20))
}
