package repository

import (
	"context"
	"errors"

	"github.com/BerylCAtieno/milo-api/internal/labs"
	"github.com/BerylCAtieno/milo-api/internal/models"
)

var ErrNotFound = errors.New("patient not found")

// PatientRepository persists patients and their append-only lab history.
type PatientRepository interface {
	Create(ctx context.Context, patient *models.Patient) error
	GetByID(ctx context.Context, id string) (*models.Patient, error)
	List(ctx context.Context, filter models.PatientFilter) ([]models.Patient, error)
	Delete(ctx context.Context, id string) error
	// AppendLabEntry adds entry to the end of the patient's labs. Appending an
	// entry whose ID is already stored is a no-op and reports false.
	AppendLabEntry(ctx context.Context, patientID string, entry *models.LabEntry) (bool, error)
}

// readValues keeps only vocabulary markers from a stored value map.
func readValues(stored map[string]float64) map[string]float64 {
	return labs.FromStrings(stored).Strings()
}
