package router

import (
	"net/http"

	"github.com/BerylCAtieno/milo-api/internal/handlers"
	"github.com/BerylCAtieno/milo-api/internal/middleware"
	"github.com/BerylCAtieno/milo-api/internal/services"
	"github.com/BerylCAtieno/milo-api/internal/utils"

	"github.com/gorilla/mux"
)

type Services struct {
	Patients services.PatientService
	Chat     services.ChatService
	Proxy    services.ProxyService
}

func NewRouter(svcs Services, maxFileSize int64, logger *utils.Logger) http.Handler {
	r := mux.NewRouter()

	r.MethodNotAllowedHandler = handlers.MethodNotAllowed(logger)
	r.NotFoundHandler = handlers.NotFound(logger)

	// Middlewares
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recovery(logger))

	proxyHandler := handlers.NewProxyHandler(svcs.Proxy, logger)
	patientHandler := handlers.NewPatientHandler(svcs.Patients, logger)
	sessionHandler := handlers.NewSessionHandler(svcs.Chat, maxFileSize, logger)

	// Serverless-style endpoints check their own method
	r.HandleFunc("/api/milo", proxyHandler.Milo)
	r.HandleFunc("/api/openai", proxyHandler.AnalyzeLabs)

	api := r.PathPrefix("/api/v1").Subrouter()

	// Health check
	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	// Patient endpoints
	api.HandleFunc("/patients", patientHandler.CreatePatient).Methods(http.MethodPost)
	api.HandleFunc("/patients", patientHandler.ListPatients).Methods(http.MethodGet)
	api.HandleFunc("/patients/{id}", patientHandler.GetPatient).Methods(http.MethodGet)
	api.HandleFunc("/patients/{id}", patientHandler.DeletePatient).Methods(http.MethodDelete)
	api.HandleFunc("/patients/{id}/labs", patientHandler.IngestLabs).Methods(http.MethodPost)
	api.HandleFunc("/patients/{id}/labs/{entryID}/file", patientHandler.LabReport).Methods(http.MethodGet)

	// Session endpoints
	api.HandleFunc("/sessions", sessionHandler.CreateSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}", sessionHandler.GetSession).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", sessionHandler.DeleteSession).Methods(http.MethodDelete)
	api.HandleFunc("/sessions/{id}/patient", sessionHandler.SelectPatient).Methods(http.MethodPut)
	api.HandleFunc("/sessions/{id}/messages", sessionHandler.SendMessage).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/uploads", sessionHandler.UploadReports).Methods(http.MethodPost)

	// CORS wraps the router so preflight requests never reach route matching
	return middleware.CORS()(r)
}
