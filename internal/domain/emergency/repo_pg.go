package emergency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type eventRepoPG struct {
	pool *pgxpool.Pool
}

func NewEventRepo(pool *pgxpool.Pool) EventRepository {
	return &eventRepoPG{pool: pool}
}

const eventCols = `id, patient_id, emergency_type, severity, status, description,
	latitude, longitude, address, ai_analysis, triggered_at,
	acknowledged_at, acknowledged_by, resolved_at, resolved_by, resolution_notes,
	contacts_notified, notification_log, created_at, updated_at`

func (r *eventRepoPG) Create(ctx context.Context, e *Event) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	now := time.Now()
	e.CreatedAt = now
	e.UpdatedAt = now

	_, err := r.pool.Exec(ctx, `
		INSERT INTO emergency_events (
			id, patient_id, emergency_type, severity, status, description,
			latitude, longitude, address, ai_analysis, triggered_at,
			acknowledged_at, acknowledged_by, resolved_at, resolved_by, resolution_notes,
			contacts_notified, notification_log, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`,
		e.ID, e.PatientID, e.Type, e.Severity, e.Status, e.Description,
		e.Latitude, e.Longitude, e.Address, e.AIAnalysis, e.TriggeredAt,
		e.AcknowledgedAt, e.AcknowledgedBy, e.ResolvedAt, e.ResolvedBy, e.ResolutionNotes,
		e.ContactsNotified, e.NotificationLog, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create emergency event: %w", err)
	}
	return nil
}

func (r *eventRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+eventCols+` FROM emergency_events WHERE id = $1`, id)
	return scanEvent(row)
}

func (r *eventRepoPG) Update(ctx context.Context, e *Event) error {
	e.UpdatedAt = time.Now()
	ct, err := r.pool.Exec(ctx, `
		UPDATE emergency_events SET
			severity = $2, status = $3, latitude = $4, longitude = $5, address = $6,
			acknowledged_at = $7, acknowledged_by = $8, resolved_at = $9, resolved_by = $10,
			resolution_notes = $11, contacts_notified = $12, notification_log = $13,
			updated_at = $14
		WHERE id = $1`,
		e.ID, e.Severity, e.Status, e.Latitude, e.Longitude, e.Address,
		e.AcknowledgedAt, e.AcknowledgedBy, e.ResolvedAt, e.ResolvedBy,
		e.ResolutionNotes, e.ContactsNotified, e.NotificationLog, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update emergency event: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrEventNotFound
	}
	return nil
}

func (r *eventRepoPG) ListForPatient(ctx context.Context, patientID uuid.UUID, includeResolved bool) ([]*Event, error) {
	query := `SELECT ` + eventCols + ` FROM emergency_events WHERE patient_id = $1`
	if !includeResolved {
		query += ` AND status <> 'resolved'`
	}
	query += ` ORDER BY triggered_at DESC`

	rows, err := r.pool.Query(ctx, query, patientID)
	if err != nil {
		return nil, fmt.Errorf("list emergency events: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

func (r *eventRepoPG) ListActive(ctx context.Context) ([]*Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+eventCols+` FROM emergency_events
		WHERE status IN ('triggered', 'acknowledged', 'dispatched')
		ORDER BY
			CASE severity
				WHEN 'critical' THEN 4
				WHEN 'high' THEN 3
				WHEN 'medium' THEN 2
				ELSE 1
			END DESC,
			triggered_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list active emergency events: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

func collectEvents(rows pgx.Rows) ([]*Event, error) {
	var events []*Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func scanEvent(row pgx.Row) (*Event, error) {
	var e Event
	err := row.Scan(
		&e.ID, &e.PatientID, &e.Type, &e.Severity, &e.Status, &e.Description,
		&e.Latitude, &e.Longitude, &e.Address, &e.AIAnalysis, &e.TriggeredAt,
		&e.AcknowledgedAt, &e.AcknowledgedBy, &e.ResolvedAt, &e.ResolvedBy, &e.ResolutionNotes,
		&e.ContactsNotified, &e.NotificationLog, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("scan emergency event: %w", err)
	}
	return &e, nil
}
