package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/BerylCAtieno/milo-api/internal/models"
)

type sqliteRepository struct {
	db *sqlx.DB
}

func NewSQLiteRepository(db *sqlx.DB) PatientRepository {
	return &sqliteRepository{db: db}
}

type labEntryRow struct {
	models.LabEntry
	ValuesJSON string `db:"lab_values"`
}

func (r *sqliteRepository) Create(ctx context.Context, patient *models.Patient) error {
	query := `
		INSERT INTO patients (id, name, dob, gender, team_id, created_at)
		VALUES (:id, :name, :dob, :gender, :team_id, :created_at)
	`

	_, err := r.db.NamedExecContext(ctx, query, patient)
	return err
}

func (r *sqliteRepository) GetByID(ctx context.Context, id string) (*models.Patient, error) {
	var patient models.Patient

	query := `
		SELECT id, name, dob, gender, team_id, created_at
		FROM patients
		WHERE id = ?
	`

	err := r.db.GetContext(ctx, &patient, query, id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	labs, err := r.labEntries(ctx, id)
	if err != nil {
		return nil, err
	}
	patient.Labs = labs

	return &patient, nil
}

func (r *sqliteRepository) List(ctx context.Context, filter models.PatientFilter) ([]models.Patient, error) {
	query := `
		SELECT id, name, dob, gender, team_id, created_at
		FROM patients
		WHERE (? = '' OR team_id = ?)
		  AND (? = '' OR name LIKE '%' || ? || '%')
		ORDER BY name, created_at
	`

	patients := []models.Patient{}
	err := r.db.SelectContext(ctx, &patients, query,
		filter.TeamID, filter.TeamID,
		filter.Query, filter.Query,
	)
	if err != nil {
		return nil, err
	}

	for i := range patients {
		patients[i].Labs = []models.LabEntry{}
	}

	return patients, nil
}

func (r *sqliteRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM lab_entries WHERE patient_id = ?`, id); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM patients WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

func (r *sqliteRepository) AppendLabEntry(ctx context.Context, patientID string, entry *models.LabEntry) (bool, error) {
	valuesJSON, err := json.Marshal(entry.Values)
	if err != nil {
		return false, fmt.Errorf("failed to marshal lab values: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.GetContext(ctx, &exists, `SELECT COUNT(*) FROM patients WHERE id = ?`, patientID); err != nil {
		return false, err
	}
	if exists == 0 {
		return false, ErrNotFound
	}

	query := `
		INSERT INTO lab_entries (id, patient_id, seq, date, lab_values, recommendation, file_key, raw_text, is_primary, created_at)
		VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM lab_entries WHERE patient_id = ?), ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`

	res, err := tx.ExecContext(ctx, query,
		entry.ID,
		patientID,
		patientID,
		entry.Date,
		string(valuesJSON),
		entry.Recommendation,
		entry.FileKey,
		entry.RawText,
		entry.IsPrimary,
		entry.CreatedAt,
	)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}

	entry.PatientID = patientID
	return n == 1, nil
}

func (r *sqliteRepository) labEntries(ctx context.Context, patientID string) ([]models.LabEntry, error) {
	query := `
		SELECT id, patient_id, date, lab_values, recommendation, file_key, raw_text, is_primary, created_at
		FROM lab_entries
		WHERE patient_id = ?
		ORDER BY seq
	`

	var rows []labEntryRow
	if err := r.db.SelectContext(ctx, &rows, query, patientID); err != nil {
		return nil, err
	}

	labs := make([]models.LabEntry, 0, len(rows))
	for _, row := range rows {
		entry := row.LabEntry
		stored := map[string]float64{}
		if row.ValuesJSON != "" {
			if err := json.Unmarshal([]byte(row.ValuesJSON), &stored); err != nil {
				return nil, fmt.Errorf("failed to unmarshal lab values for %s: %w", entry.ID, err)
			}
		}
		entry.Values = readValues(stored)
		labs = append(labs, entry)
	}

	return labs, nil
}
