package models

import (
	"time"
)

// LabEntry is one analyzed upload appended to a patient's history. Entries
// are never modified after creation.
type LabEntry struct {
	ID             string             `json:"id" db:"id"`
	PatientID      string             `json:"patient_id" db:"patient_id"`
	Date           string             `json:"date" db:"date"`
	Values         map[string]float64 `json:"values" db:"-"`
	Recommendation string             `json:"recommendation,omitempty" db:"recommendation"`
	FileKey        *string            `json:"file_key,omitempty" db:"file_key"`
	RawText        string             `json:"raw_text,omitempty" db:"raw_text"`
	IsPrimary      bool               `json:"is_primary_labs" db:"is_primary"`
	CreatedAt      time.Time          `json:"created_at" db:"created_at"`
}

// EntryDate formats t as the calendar day stored on a LabEntry.
func EntryDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// IngestLabRequest stores raw lab text against a patient without a chat turn.
type IngestLabRequest struct {
	FileContent   string `json:"file_content"`
	IsPrimaryLabs bool   `json:"is_primary_labs"`
}

// LabTextRequest is the body accepted by the single-shot lab analysis endpoint.
type LabTextRequest struct {
	LabText string `json:"labText"`
}

type LabTextResponse struct {
	Result string `json:"result"`
}

// ReportFile is a stored lab report served back to staff.
type ReportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}
