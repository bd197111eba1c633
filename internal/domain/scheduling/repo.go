package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrAppointmentNotFound is returned when no appointment matches the
// requested id.
var ErrAppointmentNotFound = errors.New("Appointment not found")

// ListFilter narrows appointment listings.
type ListFilter struct {
	Statuses []string   // empty matches any status
	From     *time.Time // inclusive lower bound on scheduled_at
	To       *time.Time // inclusive upper bound on scheduled_at
}

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	// ListByPatient returns the patient's appointments newest first.
	ListByPatient(ctx context.Context, patientID uuid.UUID, f ListFilter, limit, offset int) ([]*Appointment, int, error)
	// ListByDoctor returns the doctor's appointments oldest first.
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, f ListFilter, limit, offset int) ([]*Appointment, int, error)
	// ListUpcoming returns the nearest scheduled or confirmed
	// appointments for either party, soonest first. Pass uuid.Nil for
	// the id that does not apply.
	ListUpcoming(ctx context.Context, patientID, doctorID uuid.UUID, from time.Time, limit int) ([]*Appointment, error)
	// CountConflicts counts slot-holding appointments of the doctor
	// that overlap the [start, end) window, excluding the given id.
	CountConflicts(ctx context.Context, doctorID uuid.UUID, start, end time.Time, exclude uuid.UUID) (int, error)
	// BookedStarts returns the start times of slot-holding appointments
	// for the doctor within [from, to).
	BookedStarts(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]time.Time, error)
}
