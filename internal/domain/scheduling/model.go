// Package scheduling books consultations between patients and doctors:
// conflict-checked creation, role-scoped listings, lifecycle transitions,
// and per-day available-slot computation from a doctor's weekly schedule.
package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// Appointment statuses. Scheduled, confirmed, and in-progress
// appointments hold their slot; the rest are terminal.
const (
	StatusScheduled  = "scheduled"
	StatusConfirmed  = "confirmed"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
	StatusNoShow     = "no_show"
)

// Consultation channels.
const (
	TypeVideo    = "video"
	TypeInPerson = "in_person"
	TypePhone    = "phone"
)

// Appointment length bounds, in minutes. The default also doubles as the
// slot width for availability computation.
const (
	DefaultDurationMinutes = 30
	MinDurationMinutes     = 15
	MaxDurationMinutes     = 120
)

// ValidStatus reports whether s is a known appointment status.
func ValidStatus(s string) bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusInProgress,
		StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// ValidType reports whether t is a known consultation channel.
func ValidType(t string) bool {
	switch t {
	case TypeVideo, TypeInPerson, TypePhone:
		return true
	}
	return false
}

// Appointment is a booked consultation between a patient and a doctor.
type Appointment struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	PatientID          uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID           uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	ScheduledAt        time.Time  `db:"scheduled_at" json:"scheduled_at"`
	DurationMinutes    int        `db:"duration_minutes" json:"duration_minutes"`
	Type               string     `db:"appointment_type" json:"appointment_type"`
	Status             string     `db:"status" json:"status"`
	Reason             *string    `db:"reason" json:"reason,omitempty"`
	Symptoms           *string    `db:"symptoms" json:"symptoms,omitempty"`
	PatientNotes       *string    `db:"patient_notes" json:"patient_notes,omitempty"`
	DoctorNotes        *string    `db:"doctor_notes" json:"doctor_notes,omitempty"`
	VideoLink          *string    `db:"video_link" json:"video_link,omitempty"`
	FeeAmount          float64    `db:"fee_amount" json:"fee_amount"`
	CancelledAt        *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CancelledBy        *string    `db:"cancelled_by" json:"cancelled_by,omitempty"`
	CancellationReason *string    `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CompletedAt        *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`

	// Display fields joined from the identity tables.
	DoctorName      string `db:"-" json:"doctor_name,omitempty"`
	DoctorSpecialty string `db:"-" json:"doctor_specialty,omitempty"`
	PatientName     string `db:"-" json:"patient_name,omitempty"`
}

// End returns the exclusive end of the booked window.
func (a *Appointment) End() time.Time {
	return a.ScheduledAt.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// Active reports whether the appointment still occupies its slot.
func (a *Appointment) Active() bool {
	switch a.Status {
	case StatusScheduled, StatusConfirmed, StatusInProgress:
		return true
	}
	return false
}

// Upcoming reports whether the appointment lies in the future and has
// not started yet.
func (a *Appointment) Upcoming() bool {
	if a.Status != StatusScheduled && a.Status != StatusConfirmed {
		return false
	}
	return a.ScheduledAt.After(time.Now())
}

// Cancellable reports whether the appointment may still be cancelled.
func (a *Appointment) Cancellable() bool {
	return a.Status == StatusScheduled || a.Status == StatusConfirmed
}

// CreateRequest is the payload for booking an appointment.
type CreateRequest struct {
	DoctorID        uuid.UUID `json:"doctor_id"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Type            string    `json:"appointment_type"`
	Reason          *string   `json:"reason"`
	Symptoms        *string   `json:"symptoms"`
	PatientNotes    *string   `json:"patient_notes"`
}

// UpdateRequest carries a partial appointment update. Nil fields are
// left unchanged.
type UpdateRequest struct {
	ScheduledAt     *time.Time `json:"scheduled_at"`
	DurationMinutes *int       `json:"duration_minutes"`
	Type            *string    `json:"appointment_type"`
	Status          *string    `json:"status"`
	PatientNotes    *string    `json:"patient_notes"`
	DoctorNotes     *string    `json:"doctor_notes"`
	VideoLink       *string    `json:"video_link"`
}

// TimeSlot is one bookable interval in a doctor's day.
type TimeSlot struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Available bool      `json:"is_available"`
}

// AvailableSlotsRequest asks for a doctor's bookable intervals on one
// day. Date uses the YYYY-MM-DD form.
type AvailableSlotsRequest struct {
	DoctorID            uuid.UUID `json:"doctor_id"`
	Date                string    `json:"date"`
	SlotDurationMinutes int       `json:"slot_duration_minutes"`
}

// AvailableSlotsResponse lists a doctor's slots for the requested day.
type AvailableSlotsResponse struct {
	DoctorID uuid.UUID  `json:"doctor_id"`
	Date     string     `json:"date"`
	Slots    []TimeSlot `json:"slots"`
}
