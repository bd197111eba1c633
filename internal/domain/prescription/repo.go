package prescription

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrPrescriptionNotFound = errors.New("Prescription not found")

// Repository persists prescriptions.
type Repository interface {
	Create(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	GetByCode(ctx context.Context, code string) (*Prescription, error)

	// Update persists the mutable fields: status and is_verified.
	Update(ctx context.Context, p *Prescription) error

	// ListForPatient and ListForDoctor return newest first.
	ListForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error)
	ListForDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Prescription, int, error)
}
