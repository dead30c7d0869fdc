package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/BerylCAtieno/milo-api/internal/models"
	"github.com/BerylCAtieno/milo-api/internal/repository"
	"github.com/BerylCAtieno/milo-api/internal/utils"
)

type fakeAnalyzer struct {
	mu       sync.Mutex
	reply    string
	err      error
	requests []models.CompletionRequest
	labTexts []string
	// inFlight runs while a chat reply is pending.
	inFlight func()
}

func (f *fakeAnalyzer) Chat(ctx context.Context, req models.CompletionRequest) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	reply, err, inFlight := f.reply, f.err, f.inFlight
	f.mu.Unlock()

	if inFlight != nil {
		inFlight()
	}
	return reply, err
}

func (f *fakeAnalyzer) AnalyzeLabs(ctx context.Context, labText string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.labTexts = append(f.labTexts, labText)
	return f.reply, f.err
}

func (f *fakeAnalyzer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests) + len(f.labTexts)
}

type memRepo struct {
	mu       sync.Mutex
	patients map[string]*models.Patient
	err      error
}

func newMemRepo() *memRepo {
	return &memRepo{patients: make(map[string]*models.Patient)}
}

func (r *memRepo) Create(ctx context.Context, p *models.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	cp := *p
	r.patients[p.ID] = &cp
	return nil
}

func (r *memRepo) GetByID(ctx context.Context, id string) (*models.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	cp.Labs = append([]models.LabEntry{}, p.Labs...)
	return &cp, nil
}

func (r *memRepo) List(ctx context.Context, filter models.PatientFilter) ([]models.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Patient{}
	for _, p := range r.patients {
		out = append(out, *p)
	}
	return out, nil
}

func (r *memRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.patients[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.patients, id)
	return nil
}

func (r *memRepo) AppendLabEntry(ctx context.Context, patientID string, entry *models.LabEntry) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	p, ok := r.patients[patientID]
	if !ok {
		return false, repository.ErrNotFound
	}
	for _, l := range p.Labs {
		if l.ID == entry.ID {
			return false, nil
		}
	}
	entry.PatientID = patientID
	p.Labs = append(p.Labs, *entry)
	return true, nil
}

func (r *memRepo) labs(t *testing.T, patientID string) []models.LabEntry {
	t.Helper()
	p, err := r.GetByID(context.Background(), patientID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	return p.Labs
}

type fakeStorage struct {
	mu      sync.Mutex
	keys    []string
	objects map[string][]byte
	deleted []string
	err     error
}

func (s *fakeStorage) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.objects == nil {
		s.objects = make(map[string][]byte)
	}
	s.keys = append(s.keys, key)
	s.objects[key] = data
	return nil
}

func (s *fakeStorage) Download(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return data, nil
}

func (s *fakeStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func assertStatus(t *testing.T, err error, want int) {
	t.Helper()

	var appErr *utils.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("err = %v, want *utils.AppError", err)
	}
	if appErr.StatusCode != want {
		t.Errorf("status = %d, want %d (%s)", appErr.StatusCode, want, appErr.Message)
	}
}
