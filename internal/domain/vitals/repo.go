package vitals

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrRecordNotFound is returned for lookups that match no record. The
// message is API-facing.
var ErrRecordNotFound = errors.New("Vitals record not found")

// HistoryFilter bounds a history window on recorded_at. Nil bounds
// are open.
type HistoryFilter struct {
	From *time.Time
	To   *time.Time
}

// RecordRepository persists vitals records.
type RecordRepository interface {
	Create(ctx context.Context, r *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	// Latest returns the patient's most recent record by recorded_at.
	Latest(ctx context.Context, patientID uuid.UUID) (*Record, error)
	// History returns a page of the patient's records, newest first.
	History(ctx context.Context, patientID uuid.UUID, f HistoryFilter, limit, offset int) ([]*Record, int, error)
	// Summarize aggregates per-metric averages over the whole window.
	Summarize(ctx context.Context, patientID uuid.UUID, f HistoryFilter) (*Summary, error)
	Update(ctx context.Context, r *Record) error
	Delete(ctx context.Context, id uuid.UUID) error
}
