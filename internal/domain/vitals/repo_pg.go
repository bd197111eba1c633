package vitals

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const recordCols = `id, patient_id, recorded_at, source, device_name,
	systolic_bp, diastolic_bp, heart_rate, spo2, temperature, glucose,
	respiratory_rate, weight, height, additional_metrics, notes,
	created_at, updated_at`

type recordRepoPG struct {
	pool *pgxpool.Pool
}

func NewRecordRepo(pool *pgxpool.Pool) RecordRepository {
	return &recordRepoPG{pool: pool}
}

func (r *recordRepoPG) Create(ctx context.Context, rec *Record) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	now := time.Now()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	_, err := r.pool.Exec(ctx, `
		INSERT INTO vitals_records (`+recordCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		rec.ID, rec.PatientID, rec.RecordedAt, rec.Source, rec.DeviceName,
		rec.SystolicBP, rec.DiastolicBP, rec.HeartRate, rec.SpO2, rec.Temperature, rec.Glucose,
		rec.RespiratoryRate, rec.Weight, rec.Height, rec.AdditionalMetrics, rec.Notes,
		rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create vitals record: %w", err)
	}
	return nil
}

func (r *recordRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+recordCols+` FROM vitals_records WHERE id = $1`, id)
	return scanRecord(row)
}

func (r *recordRepoPG) Latest(ctx context.Context, patientID uuid.UUID) (*Record, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+recordCols+` FROM vitals_records
		WHERE patient_id = $1
		ORDER BY recorded_at DESC
		LIMIT 1`, patientID)
	return scanRecord(row)
}

func (r *recordRepoPG) History(ctx context.Context, patientID uuid.UUID, f HistoryFilter, limit, offset int) ([]*Record, int, error) {
	where := []string{"patient_id = $1"}
	args := []interface{}{patientID}
	where, args = appendWindow(f, where, args)
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM vitals_records WHERE "+clause, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count vitals records: %w", err)
	}

	args = append(args, limit, offset)
	query := "SELECT " + recordCols + " FROM vitals_records WHERE " + clause +
		" ORDER BY recorded_at DESC" +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list vitals records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	return records, total, rows.Err()
}

func (r *recordRepoPG) Summarize(ctx context.Context, patientID uuid.UUID, f HistoryFilter) (*Summary, error) {
	where := []string{"patient_id = $1"}
	args := []interface{}{patientID}
	where, args = appendWindow(f, where, args)

	var (
		s        Summary
		from, to *time.Time
	)
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
			AVG(systolic_bp), AVG(diastolic_bp), AVG(heart_rate),
			AVG(spo2), AVG(temperature), AVG(glucose),
			MIN(recorded_at), MAX(recorded_at)
		FROM vitals_records WHERE `+strings.Join(where, " AND "), args...,
	).Scan(
		&s.TotalRecords,
		&s.AvgSystolicBP, &s.AvgDiastolicBP, &s.AvgHeartRate,
		&s.AvgSpO2, &s.AvgTemperature, &s.AvgGlucose,
		&from, &to,
	)
	if err != nil {
		return nil, fmt.Errorf("summarize vitals: %w", err)
	}
	if s.TotalRecords == 0 {
		return &Summary{}, nil
	}

	round1(s.AvgSystolicBP)
	round1(s.AvgDiastolicBP)
	round1(s.AvgHeartRate)
	round1(s.AvgSpO2)
	round1(s.AvgTemperature)
	round1(s.AvgGlucose)
	if f.From != nil {
		s.PeriodStart = f.From.Format("2006-01-02")
	} else if from != nil {
		s.PeriodStart = from.Format("2006-01-02")
	}
	if f.To != nil {
		s.PeriodEnd = f.To.Format("2006-01-02")
	} else if to != nil {
		s.PeriodEnd = to.Format("2006-01-02")
	}
	return &s, nil
}

func (r *recordRepoPG) Update(ctx context.Context, rec *Record) error {
	rec.UpdatedAt = time.Now()
	tag, err := r.pool.Exec(ctx, `
		UPDATE vitals_records SET
			systolic_bp = $1, diastolic_bp = $2, heart_rate = $3,
			spo2 = $4, temperature = $5, glucose = $6,
			notes = $7, updated_at = $8
		WHERE id = $9`,
		rec.SystolicBP, rec.DiastolicBP, rec.HeartRate,
		rec.SpO2, rec.Temperature, rec.Glucose,
		rec.Notes, rec.UpdatedAt, rec.ID,
	)
	if err != nil {
		return fmt.Errorf("update vitals record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (r *recordRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM vitals_records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete vitals record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func appendWindow(f HistoryFilter, where []string, args []interface{}) ([]string, []interface{}) {
	if f.From != nil {
		args = append(args, *f.From)
		where = append(where, fmt.Sprintf("recorded_at >= $%d", len(args)))
	}
	if f.To != nil {
		args = append(args, *f.To)
		where = append(where, fmt.Sprintf("recorded_at <= $%d", len(args)))
	}
	return where, args
}

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	err := row.Scan(
		&rec.ID, &rec.PatientID, &rec.RecordedAt, &rec.Source, &rec.DeviceName,
		&rec.SystolicBP, &rec.DiastolicBP, &rec.HeartRate, &rec.SpO2, &rec.Temperature, &rec.Glucose,
		&rec.RespiratoryRate, &rec.Weight, &rec.Height, &rec.AdditionalMetrics, &rec.Notes,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan vitals record: %w", err)
	}
	return &rec, nil
}

func round1(v *float64) {
	if v != nil {
		*v = math.Round(*v*10) / 10
	}
}
