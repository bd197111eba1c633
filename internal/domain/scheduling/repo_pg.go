package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type appointmentRepoPG struct {
	pool *pgxpool.Pool
}

func NewAppointmentRepo(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

const apptCols = `a.id, a.patient_id, a.doctor_id, a.scheduled_at, a.duration_minutes,
	a.appointment_type, a.status, a.reason, a.symptoms, a.patient_notes, a.doctor_notes,
	a.video_link, a.fee_amount, a.cancelled_at, a.cancelled_by, a.cancellation_reason,
	a.completed_at, a.created_at, a.updated_at,
	du.full_name, d.specialty, pu.full_name`

const apptJoins = `
	FROM appointments a
	JOIN doctors d ON d.id = a.doctor_id
	JOIN users du ON du.id = d.user_id
	JOIN patients p ON p.id = a.patient_id
	JOIN users pu ON pu.id = p.user_id`

// slotHolding are the statuses that keep an appointment's window booked.
var slotHolding = []string{StatusScheduled, StatusConfirmed, StatusInProgress}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now

	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointments (
			id, patient_id, doctor_id, scheduled_at, duration_minutes,
			appointment_type, status, reason, symptoms, patient_notes, doctor_notes,
			video_link, fee_amount, cancelled_at, cancelled_by, cancellation_reason,
			completed_at, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		a.ID, a.PatientID, a.DoctorID, a.ScheduledAt, a.DurationMinutes,
		a.Type, a.Status, a.Reason, a.Symptoms, a.PatientNotes, a.DoctorNotes,
		a.VideoLink, a.FeeAmount, a.CancelledAt, a.CancelledBy, a.CancellationReason,
		a.CompletedAt, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+apptCols+apptJoins+` WHERE a.id = $1`, id)
	return scanAppointment(row)
}

func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment) error {
	a.UpdatedAt = time.Now()
	ct, err := r.pool.Exec(ctx, `
		UPDATE appointments SET
			scheduled_at = $2, duration_minutes = $3, appointment_type = $4, status = $5,
			reason = $6, symptoms = $7, patient_notes = $8, doctor_notes = $9,
			video_link = $10, cancelled_at = $11, cancelled_by = $12,
			cancellation_reason = $13, completed_at = $14, updated_at = $15
		WHERE id = $1`,
		a.ID, a.ScheduledAt, a.DurationMinutes, a.Type, a.Status,
		a.Reason, a.Symptoms, a.PatientNotes, a.DoctorNotes,
		a.VideoLink, a.CancelledAt, a.CancelledBy,
		a.CancellationReason, a.CompletedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *appointmentRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	where := []string{"a.patient_id = $1"}
	args := []interface{}{patientID}
	where, args = appendFilter(where, args, f)
	return r.list(ctx, where, args, "a.scheduled_at DESC", limit, offset)
}

func (r *appointmentRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	where := []string{"a.doctor_id = $1"}
	args := []interface{}{doctorID}
	where, args = appendFilter(where, args, f)
	return r.list(ctx, where, args, "a.scheduled_at ASC", limit, offset)
}

func appendFilter(where []string, args []interface{}, f ListFilter) ([]string, []interface{}) {
	if len(f.Statuses) > 0 {
		args = append(args, f.Statuses)
		where = append(where, fmt.Sprintf("a.status = ANY($%d)", len(args)))
	}
	if f.From != nil {
		args = append(args, *f.From)
		where = append(where, fmt.Sprintf("a.scheduled_at >= $%d", len(args)))
	}
	if f.To != nil {
		args = append(args, *f.To)
		where = append(where, fmt.Sprintf("a.scheduled_at <= $%d", len(args)))
	}
	return where, args
}

func (r *appointmentRepoPG) list(ctx context.Context, where []string, args []interface{}, order string, limit, offset int) ([]*Appointment, int, error) {
	cond := strings.Join(where, " AND ")

	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+apptJoins+` WHERE `+cond, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	args = append(args, limit, offset)
	rows, err := r.pool.Query(ctx, `
		SELECT `+apptCols+apptJoins+`
		WHERE `+cond+`
		ORDER BY `+order+
		fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var appts []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		appts = append(appts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	return appts, total, nil
}

func (r *appointmentRepoPG) ListUpcoming(ctx context.Context, patientID, doctorID uuid.UUID, from time.Time, limit int) ([]*Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+apptCols+apptJoins+`
		WHERE (a.patient_id = $1 OR a.doctor_id = $2)
		  AND a.status = ANY($3)
		  AND a.scheduled_at >= $4
		ORDER BY a.scheduled_at ASC
		LIMIT $5`,
		patientID, doctorID, []string{StatusScheduled, StatusConfirmed}, from, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list upcoming appointments: %w", err)
	}
	defer rows.Close()

	var appts []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list upcoming appointments: %w", err)
	}
	return appts, nil
}

func (r *appointmentRepoPG) CountConflicts(ctx context.Context, doctorID uuid.UUID, start, end time.Time, exclude uuid.UUID) (int, error) {
	// Overlap cases: an existing appointment spans the new start, spans
	// the new end, or sits wholly inside the new window.
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM appointments
		WHERE doctor_id = $1
		  AND id <> $2
		  AND status = ANY($3)
		  AND (
			(scheduled_at <= $4 AND scheduled_at + make_interval(mins => duration_minutes) > $4)
			OR (scheduled_at < $5 AND scheduled_at + make_interval(mins => duration_minutes) >= $5)
			OR (scheduled_at >= $4 AND scheduled_at + make_interval(mins => duration_minutes) <= $5)
		  )`,
		doctorID, exclude, slotHolding, start, end,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count conflicts: %w", err)
	}
	return n, nil
}

func (r *appointmentRepoPG) BookedStarts(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]time.Time, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT scheduled_at FROM appointments
		WHERE doctor_id = $1 AND status = ANY($2)
		  AND scheduled_at >= $3 AND scheduled_at < $4
		ORDER BY scheduled_at`,
		doctorID, slotHolding, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("booked starts: %w", err)
	}
	defer rows.Close()

	var starts []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("booked starts: %w", err)
		}
		starts = append(starts, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("booked starts: %w", err)
	}
	return starts, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID, &a.PatientID, &a.DoctorID, &a.ScheduledAt, &a.DurationMinutes,
		&a.Type, &a.Status, &a.Reason, &a.Symptoms, &a.PatientNotes, &a.DoctorNotes,
		&a.VideoLink, &a.FeeAmount, &a.CancelledAt, &a.CancelledBy, &a.CancellationReason,
		&a.CompletedAt, &a.CreatedAt, &a.UpdatedAt,
		&a.DoctorName, &a.DoctorSpecialty, &a.PatientName,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("scan appointment: %w", err)
	}
	return &a, nil
}
