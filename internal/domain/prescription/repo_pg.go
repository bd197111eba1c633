package prescription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const prescriptionCols = `id, patient_id, doctor_id, appointment_id, diagnosis,
	medications, instructions, follow_up_date, follow_up_notes,
	issue_date, expiry_date, status, is_verified, verification_code,
	created_at, updated_at`

type prescriptionRepoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &prescriptionRepoPG{pool: pool}
}

func (r *prescriptionRepoPG) Create(ctx context.Context, p *Prescription) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := r.pool.Exec(ctx, `
		INSERT INTO prescriptions (`+prescriptionCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		p.ID, p.PatientID, p.DoctorID, p.AppointmentID, p.Diagnosis,
		p.Medications, p.Instructions, p.FollowUpDate, p.FollowUpNotes,
		p.IssueDate, p.ExpiryDate, p.Status, p.IsVerified, p.VerificationCode,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create prescription: %w", err)
	}
	return nil
}

func (r *prescriptionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+prescriptionCols+` FROM prescriptions WHERE id = $1`, id)
	return scanPrescription(row)
}

func (r *prescriptionRepoPG) GetByCode(ctx context.Context, code string) (*Prescription, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+prescriptionCols+` FROM prescriptions WHERE verification_code = $1`, code)
	return scanPrescription(row)
}

func (r *prescriptionRepoPG) Update(ctx context.Context, p *Prescription) error {
	p.UpdatedAt = time.Now()
	tag, err := r.pool.Exec(ctx, `
		UPDATE prescriptions
		SET status = $1, is_verified = $2, updated_at = $3
		WHERE id = $4`,
		p.Status, p.IsVerified, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update prescription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPrescriptionNotFound
	}
	return nil
}

func (r *prescriptionRepoPG) ListForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	return r.list(ctx, "patient_id", patientID, limit, offset)
}

func (r *prescriptionRepoPG) ListForDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	return r.list(ctx, "doctor_id", doctorID, limit, offset)
}

func (r *prescriptionRepoPG) list(ctx context.Context, col string, owner uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM prescriptions WHERE "+col+" = $1", owner,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count prescriptions: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+prescriptionCols+` FROM prescriptions
		WHERE `+col+` = $1
		ORDER BY issue_date DESC, created_at DESC
		LIMIT $2 OFFSET $3`, owner, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list prescriptions: %w", err)
	}
	defer rows.Close()

	var prescriptions []*Prescription
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, 0, err
		}
		prescriptions = append(prescriptions, p)
	}
	return prescriptions, total, rows.Err()
}

func scanPrescription(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(
		&p.ID, &p.PatientID, &p.DoctorID, &p.AppointmentID, &p.Diagnosis,
		&p.Medications, &p.Instructions, &p.FollowUpDate, &p.FollowUpNotes,
		&p.IssueDate, &p.ExpiryDate, &p.Status, &p.IsVerified, &p.VerificationCode,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPrescriptionNotFound
		}
		return nil, fmt.Errorf("scan prescription: %w", err)
	}
	return &p, nil
}
