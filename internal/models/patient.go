package models

import (
	"time"
)

// Patient is a clinical record owned by a team. DOB, Gender and TeamID are
// optional and nil when unknown.
type Patient struct {
	ID        string     `json:"id" db:"id"`
	Name      string     `json:"name" db:"name"`
	DOB       *time.Time `json:"dob,omitempty" db:"dob"`
	Gender    *string    `json:"gender,omitempty" db:"gender"`
	TeamID    *string    `json:"team_id,omitempty" db:"team_id"`
	Labs      []LabEntry `json:"labs" db:"-"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// LatestPrimaryLab returns the most recent entry flagged as primary labs.
func (p *Patient) LatestPrimaryLab() *LabEntry {
	for i := len(p.Labs) - 1; i >= 0; i-- {
		if p.Labs[i].IsPrimary {
			return &p.Labs[i]
		}
	}
	return nil
}

type CreatePatientRequest struct {
	Name   string  `json:"name"`
	DOB    *string `json:"dob,omitempty"`
	Gender *string `json:"gender,omitempty"`
	TeamID *string `json:"team_id,omitempty"`
}

// PatientFilter narrows patient listings. Empty fields match everything.
type PatientFilter struct {
	TeamID string
	Query  string
}
