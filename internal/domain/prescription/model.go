// Package prescription implements digital prescriptions: doctors issue
// them with a verification code, patients and doctors list their own,
// and pharmacies check a code through a public endpoint.
package prescription

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusExpired   = "expired"
)

// ValidStatus reports whether s is a known prescription status.
func ValidStatus(s string) bool {
	switch s {
	case StatusActive, StatusCompleted, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// MedicationItem is one line of a prescription. The slice is stored as
// a JSONB array.
type MedicationItem struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage"`
	Frequency string `json:"frequency"`
	Duration  string `json:"duration,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

// Prescription maps to the prescriptions table.
type Prescription struct {
	ID               uuid.UUID        `db:"id" json:"id"`
	PatientID        uuid.UUID        `db:"patient_id" json:"patient_id"`
	DoctorID         uuid.UUID        `db:"doctor_id" json:"doctor_id"`
	AppointmentID    *uuid.UUID       `db:"appointment_id" json:"appointment_id,omitempty"`
	Diagnosis        string           `db:"diagnosis" json:"diagnosis"`
	Medications      []MedicationItem `db:"medications" json:"medications"`
	Instructions     *string          `db:"instructions" json:"instructions,omitempty"`
	FollowUpDate     *time.Time       `db:"follow_up_date" json:"follow_up_date,omitempty"`
	FollowUpNotes    *string          `db:"follow_up_notes" json:"follow_up_notes,omitempty"`
	IssueDate        time.Time        `db:"issue_date" json:"issue_date"`
	ExpiryDate       *time.Time       `db:"expiry_date" json:"expiry_date,omitempty"`
	Status           string           `db:"status" json:"status"`
	IsVerified       bool             `db:"is_verified" json:"is_verified"`
	VerificationCode string           `db:"verification_code" json:"verification_code"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`

	// Derived display fields, filled by Derive.
	IsExpired       bool `db:"-" json:"is_expired"`
	MedicationCount int  `db:"-" json:"medication_count"`
}

// Derive fills the computed display fields.
func (p *Prescription) Derive() {
	p.IsExpired = p.expiredAt(time.Now())
	p.MedicationCount = len(p.Medications)
}

// expiredAt reports whether the validity window has passed. The
// prescription is still good on its expiry date; without one it never
// expires on its own.
func (p *Prescription) expiredAt(now time.Time) bool {
	if p.ExpiryDate == nil {
		return false
	}
	return dateOnly(*p.ExpiryDate).Before(dateOnly(now))
}

// EffectiveStatus folds expiry into the stored status: an active
// prescription past its expiry date reads as expired without waiting
// for a write.
func (p *Prescription) EffectiveStatus() string {
	if p.Status == StatusActive && p.expiredAt(time.Now()) {
		return StatusExpired
	}
	return p.Status
}

// dateOnly truncates to a calendar date in UTC so DATE columns and
// wall-clock times compare cleanly.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// CreateRequest issues a new prescription.
type CreateRequest struct {
	PatientID     uuid.UUID        `json:"patient_id"`
	AppointmentID *uuid.UUID       `json:"appointment_id"`
	Diagnosis     string           `json:"diagnosis"`
	Medications   []MedicationItem `json:"medications"`
	Instructions  *string          `json:"instructions"`
	FollowUpDate  *time.Time       `json:"follow_up_date"`
	FollowUpNotes *string          `json:"follow_up_notes"`
	ExpiryDate    *time.Time       `json:"expiry_date"`
}

func (req *CreateRequest) validate() error {
	if req.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if strings.TrimSpace(req.Diagnosis) == "" {
		return fmt.Errorf("diagnosis is required")
	}
	if len(req.Medications) == 0 {
		return fmt.Errorf("at least one medication is required")
	}
	for i, m := range req.Medications {
		if strings.TrimSpace(m.Name) == "" {
			return fmt.Errorf("medications[%d]: name is required", i)
		}
		if strings.TrimSpace(m.Dosage) == "" {
			return fmt.Errorf("medications[%d]: dosage is required", i)
		}
		if strings.TrimSpace(m.Frequency) == "" {
			return fmt.Errorf("medications[%d]: frequency is required", i)
		}
	}
	return nil
}

// StatusUpdateRequest moves a prescription out of active.
type StatusUpdateRequest struct {
	Status string `json:"status"`
}

// VerifyResult is the public answer to a verification-code check. It
// names the issuing doctor but carries no patient identity: the
// endpoint is unauthenticated.
type VerifyResult struct {
	Valid           bool       `json:"valid"`
	Message         string     `json:"message"`
	Status          string     `json:"status,omitempty"`
	DoctorName      string     `json:"doctor_name,omitempty"`
	IssueDate       *time.Time `json:"issue_date,omitempty"`
	ExpiryDate      *time.Time `json:"expiry_date,omitempty"`
	MedicationCount int        `json:"medication_count,omitempty"`
}
