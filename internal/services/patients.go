package services

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"

	"github.com/BerylCAtieno/milo-api/internal/labs"
	"github.com/BerylCAtieno/milo-api/internal/models"
	"github.com/BerylCAtieno/milo-api/internal/repository"
	"github.com/BerylCAtieno/milo-api/internal/storage"
	"github.com/BerylCAtieno/milo-api/internal/utils"
)

type PatientService interface {
	CreatePatient(ctx context.Context, req *models.CreatePatientRequest) (*models.Patient, error)
	GetPatient(ctx context.Context, id string) (*models.Patient, error)
	ListPatients(ctx context.Context, filter models.PatientFilter) ([]models.Patient, error)
	// DeletePatient removes the patient and the stored report files of its
	// lab entries.
	DeletePatient(ctx context.Context, id string) error
	// IngestLabs stores raw report text against a patient. Values are parsed
	// only for primary labs; context documents keep the text alone.
	IngestLabs(ctx context.Context, id string, req *models.IngestLabRequest) (*models.LabEntry, error)
	// LabReport returns the original upload behind a lab entry.
	LabReport(ctx context.Context, patientID, entryID string) (*models.ReportFile, error)
}

type patientService struct {
	repo    repository.PatientRepository
	storage storage.Storage
	logger  *utils.Logger
	now     func() time.Time
}

// NewPatientService builds the patient service. store may be nil when report
// files are not kept.
func NewPatientService(repo repository.PatientRepository, store storage.Storage, logger *utils.Logger) PatientService {
	return &patientService{
		repo:    repo,
		storage: store,
		logger:  logger,
		now:     time.Now,
	}
}

var validGenders = map[string]bool{
	"female": true,
	"male":   true,
	"other":  true,
}

func (s *patientService) CreatePatient(ctx context.Context, req *models.CreatePatientRequest) (*models.Patient, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, utils.NewBadRequestError("Patient name is required")
	}

	patient := &models.Patient{
		ID:        utils.GenerateID(),
		Name:      name,
		Labs:      []models.LabEntry{},
		CreatedAt: s.now().UTC(),
	}

	if req.DOB != nil && strings.TrimSpace(*req.DOB) != "" {
		dob, err := time.Parse("2006-01-02", strings.TrimSpace(*req.DOB))
		if err != nil {
			return nil, utils.NewBadRequestError("Date of birth must be formatted as YYYY-MM-DD")
		}
		patient.DOB = &dob
	}

	if req.Gender != nil && strings.TrimSpace(*req.Gender) != "" {
		gender := strings.ToLower(strings.TrimSpace(*req.Gender))
		if !validGenders[gender] {
			return nil, utils.NewBadRequestError("Gender must be female, male or other")
		}
		patient.Gender = &gender
	}

	if req.TeamID != nil && strings.TrimSpace(*req.TeamID) != "" {
		team := strings.TrimSpace(*req.TeamID)
		patient.TeamID = &team
	}

	if err := s.repo.Create(ctx, patient); err != nil {
		s.logger.Error("Failed to save patient", "error", err, "patient_id", patient.ID)
		return nil, utils.NewInternalError("Failed to save patient")
	}

	s.logger.Info("Patient created", "patient_id", patient.ID)
	return patient, nil
}

func (s *patientService) GetPatient(ctx context.Context, id string) (*models.Patient, error) {
	patient, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, utils.NewNotFoundError("Patient not found")
	}
	if err != nil {
		s.logger.Error("Failed to get patient", "error", err, "patient_id", id)
		return nil, utils.NewInternalError("Failed to retrieve patient")
	}

	return patient, nil
}

func (s *patientService) ListPatients(ctx context.Context, filter models.PatientFilter) ([]models.Patient, error) {
	filter.Query = strings.TrimSpace(filter.Query)

	patients, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list patients", "error", err)
		return nil, utils.NewInternalError("Failed to list patients")
	}

	return patients, nil
}

func (s *patientService) DeletePatient(ctx context.Context, id string) error {
	patient, err := s.GetPatient(ctx, id)
	if err != nil {
		return err
	}

	err = s.repo.Delete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return utils.NewNotFoundError("Patient not found")
	}
	if err != nil {
		s.logger.Error("Failed to delete patient", "error", err, "patient_id", id)
		return utils.NewInternalError("Failed to delete patient")
	}

	// The record is gone either way; orphaned objects are only logged.
	removed := 0
	if s.storage != nil {
		for _, entry := range patient.Labs {
			if entry.FileKey == nil {
				continue
			}
			if err := s.storage.Delete(ctx, *entry.FileKey); err != nil {
				s.logger.Error("Failed to delete report file", "error", err, "patient_id", id, "key", *entry.FileKey)
				continue
			}
			removed++
		}
	}

	s.logger.Info("Patient deleted", "patient_id", id, "report_files", removed)
	return nil
}

func (s *patientService) LabReport(ctx context.Context, patientID, entryID string) (*models.ReportFile, error) {
	patient, err := s.GetPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	var entry *models.LabEntry
	for i := range patient.Labs {
		if patient.Labs[i].ID == entryID {
			entry = &patient.Labs[i]
			break
		}
	}
	if entry == nil {
		return nil, utils.NewNotFoundError("Lab entry not found")
	}
	if entry.FileKey == nil || s.storage == nil {
		return nil, utils.NewNotFoundError("No report file stored for this lab entry")
	}

	data, err := s.storage.Download(ctx, *entry.FileKey)
	if err != nil {
		s.logger.Error("Failed to download report file", "error", err, "patient_id", patientID, "key", *entry.FileKey)
		return nil, utils.WrapInternalError("Failed to retrieve report file", err)
	}

	name := path.Base(*entry.FileKey)
	return &models.ReportFile{
		Filename:    name,
		ContentType: DetermineContentType(name, "application/octet-stream"),
		Data:        data,
	}, nil
}

func (s *patientService) IngestLabs(ctx context.Context, id string, req *models.IngestLabRequest) (*models.LabEntry, error) {
	if strings.TrimSpace(req.FileContent) == "" {
		return nil, utils.NewBadRequestError("Missing fields")
	}

	now := s.now()
	entry := &models.LabEntry{
		ID:        utils.GenerateID(),
		Date:      models.EntryDate(now),
		Values:    map[string]float64{},
		RawText:   req.FileContent,
		IsPrimary: req.IsPrimaryLabs,
		CreatedAt: now,
	}
	if req.IsPrimaryLabs {
		entry.Values = labs.Parse(req.FileContent).Strings()
	}

	if _, err := s.repo.AppendLabEntry(ctx, id, entry); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, utils.NewNotFoundError("Patient not found")
		}
		s.logger.Error("Failed to save lab data", "error", err, "patient_id", id)
		return nil, utils.NewInternalError("Failed to upload and save lab data")
	}

	s.logger.Info("Lab data ingested",
		"patient_id", id,
		"entry_id", entry.ID,
		"primary", entry.IsPrimary,
		"values", len(entry.Values))

	return entry, nil
}
