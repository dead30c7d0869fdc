package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BerylCAtieno/milo-api/internal/db"
	"github.com/BerylCAtieno/milo-api/internal/extractor"
	"github.com/BerylCAtieno/milo-api/internal/models"
	"github.com/BerylCAtieno/milo-api/internal/prompt"
	"github.com/BerylCAtieno/milo-api/internal/repository"
	"github.com/BerylCAtieno/milo-api/internal/services"
	"github.com/BerylCAtieno/milo-api/internal/session"
	"github.com/BerylCAtieno/milo-api/internal/utils"
)

type stubAnalyzer struct{ reply string }

func (s stubAnalyzer) Chat(ctx context.Context, req models.CompletionRequest) (string, error) {
	return s.reply, nil
}

func (s stubAnalyzer) AnalyzeLabs(ctx context.Context, labText string) (string, error) {
	return s.reply, nil
}

type noOCR struct{}

func (noOCR) Extract(ctx context.Context, data []byte) extractor.Result {
	return extractor.Result{Method: extractor.MethodOCR, Status: extractor.StatusNotFound}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := utils.NewNopLogger()

	conn, err := db.NewSQLiteDB(filepath.Join(t.TempDir(), "milo.db"))
	if err != nil {
		t.Fatalf("NewSQLiteDB: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := db.RunMigrations(conn); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}

	assembler, err := prompt.Load("")
	if err != nil {
		t.Fatalf("prompt.Load: %v", err)
	}

	repo := repository.NewSQLiteRepository(conn)
	llm := stubAnalyzer{reply: "**Estradiol**\nBelow goal."}
	ext := extractor.NewExtractor(extractor.NewHybrid(noOCR{}, logger), logger)

	handler := NewRouter(Services{
		Patients: services.NewPatientService(repo, nil, logger),
		Chat:     services.NewChatService(session.NewController(logger), repo, assembler, llm, ext, nil, services.ChatOptions{Model: "gpt-4"}, logger),
		Proxy:    services.NewProxyService(llm, logger),
	}, 1<<20, logger)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string, out interface{}) int {
	t.Helper()

	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	var body map[string]string
	if code := do(t, srv, http.MethodGet, "/api/v1/health", "", &body); code != http.StatusOK || body["status"] != "healthy" {
		t.Errorf("health = %d %v", code, body)
	}
}

func TestChatFlowRecordsLabEntry(t *testing.T) {
	srv := newTestServer(t)

	var patient models.Patient
	code := do(t, srv, http.MethodPost, "/api/v1/patients", `{"name":"Jane Doe","gender":"female","team_id":"msm"}`, &patient)
	if code != http.StatusCreated {
		t.Fatalf("create patient = %d", code)
	}

	var view session.View
	if code := do(t, srv, http.MethodPost, "/api/v1/sessions", "", &view); code != http.StatusCreated {
		t.Fatalf("create session = %d", code)
	}

	if code := do(t, srv, http.MethodPut, "/api/v1/sessions/"+view.ID+"/patient", `{"patient_id":"`+patient.ID+`"}`, &view); code != http.StatusOK {
		t.Fatalf("select patient = %d", code)
	}

	var turn models.TurnResult
	if code := do(t, srv, http.MethodPost, "/api/v1/sessions/"+view.ID+"/messages", `{"text":"Estradiol 41 pg/mL","tab":"lab"}`, &turn); code != http.StatusOK {
		t.Fatalf("send message = %d", code)
	}
	if turn.State != "delivered" || turn.LabEntryID == "" {
		t.Errorf("turn = %+v", turn)
	}

	var stored models.Patient
	do(t, srv, http.MethodGet, "/api/v1/patients/"+patient.ID, "", &stored)
	if len(stored.Labs) != 1 || stored.Labs[0].Values["estradiol"] != 41 {
		t.Errorf("labs = %+v", stored.Labs)
	}

	var listed []models.Patient
	do(t, srv, http.MethodGet, "/api/v1/patients?team_id=msm&q=jane", "", &listed)
	if len(listed) != 1 {
		t.Errorf("listed = %d", len(listed))
	}
}

func TestRouterErrors(t *testing.T) {
	srv := newTestServer(t)

	var body map[string]string
	if code := do(t, srv, http.MethodGet, "/api/v1/patients/missing", "", &body); code != http.StatusNotFound {
		t.Errorf("missing patient = %d", code)
	}
	if code := do(t, srv, http.MethodPatch, "/api/v1/patients", "", &body); code != http.StatusMethodNotAllowed || body["error"] == "" {
		t.Errorf("wrong method = %d %v", code, body)
	}
	if code := do(t, srv, http.MethodGet, "/api/milo", "", &body); code != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/milo = %d", code)
	}
	if code := do(t, srv, http.MethodPost, "/api/milo", `{"model":"gpt-4"}`, &body); code != http.StatusBadRequest {
		t.Errorf("missing messages = %d", code)
	}
	if code := do(t, srv, http.MethodOptions, "/api/milo", "", nil); code != http.StatusNoContent {
		t.Errorf("preflight = %d", code)
	}
}

func TestDeleteSession(t *testing.T) {
	srv := newTestServer(t)

	var view session.View
	if code := do(t, srv, http.MethodPost, "/api/v1/sessions", "", &view); code != http.StatusCreated {
		t.Fatalf("create session = %d", code)
	}

	if code := do(t, srv, http.MethodDelete, "/api/v1/sessions/"+view.ID, "", nil); code != http.StatusNoContent {
		t.Fatalf("delete session = %d", code)
	}

	var body map[string]string
	if code := do(t, srv, http.MethodGet, "/api/v1/sessions/"+view.ID, "", &body); code != http.StatusNotFound {
		t.Errorf("get deleted session = %d", code)
	}
	if code := do(t, srv, http.MethodDelete, "/api/v1/sessions/"+view.ID, "", &body); code != http.StatusNotFound {
		t.Errorf("delete twice = %d", code)
	}
	if code := do(t, srv, http.MethodPost, "/api/v1/sessions/"+view.ID+"/messages", `{"text":"TSH 1.8"}`, &body); code != http.StatusNotFound {
		t.Errorf("message to deleted session = %d", code)
	}
}

func TestLabReportRoute(t *testing.T) {
	srv := newTestServer(t)

	var patient models.Patient
	do(t, srv, http.MethodPost, "/api/v1/patients", `{"name":"Jane Doe"}`, &patient)

	var entry models.LabEntry
	if code := do(t, srv, http.MethodPost, "/api/v1/patients/"+patient.ID+"/labs", `{"file_content":"TSH 1.8","is_primary_labs":true}`, &entry); code != http.StatusCreated {
		t.Fatalf("ingest = %d", code)
	}

	// Ingested text has no stored file.
	var body map[string]string
	if code := do(t, srv, http.MethodGet, "/api/v1/patients/"+patient.ID+"/labs/"+entry.ID+"/file", "", &body); code != http.StatusNotFound {
		t.Errorf("file for text entry = %d", code)
	}
	if code := do(t, srv, http.MethodGet, "/api/v1/patients/"+patient.ID+"/labs/missing/file", "", &body); code != http.StatusNotFound {
		t.Errorf("file for missing entry = %d", code)
	}
}
