package emergency

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrEventNotFound = errors.New("Emergency event not found")

// EventRepository persists emergency events.
type EventRepository interface {
	Create(ctx context.Context, e *Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*Event, error)
	Update(ctx context.Context, e *Event) error

	// ListForPatient returns the patient's events newest first. When
	// includeResolved is false, resolved events are dropped; cancelled
	// ones still appear so the patient can see their false alarms.
	ListForPatient(ctx context.Context, patientID uuid.UUID, includeResolved bool) ([]*Event, error)

	// ListActive returns every event awaiting response, most severe
	// first and oldest first within a severity.
	ListActive(ctx context.Context) ([]*Event, error)
}
