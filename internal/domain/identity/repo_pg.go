package identity

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

// -- User Repository --

type userRepoPG struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) UserRepository {
	return &userRepoPG{pool: pool}
}

const userCols = `id, supabase_uid, email, full_name, phone, avatar_url, role,
	is_active, is_verified, last_login_at, created_at, updated_at`

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (
			id, supabase_uid, email, full_name, phone, avatar_url, role,
			is_active, is_verified, last_login_at, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		u.ID, u.SupabaseUID, u.Email, u.FullName, u.Phone, u.AvatarURL, u.Role,
		u.IsActive, u.IsVerified, u.LastLoginAt, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *userRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *userRepoPG) GetBySupabaseUID(ctx context.Context, uid string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE supabase_uid = $1`, uid)
	return scanUser(row)
}

func (r *userRepoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE email = $1`, strings.ToLower(email))
	return scanUser(row)
}

func (r *userRepoPG) Update(ctx context.Context, u *User) error {
	u.UpdatedAt = time.Now()
	ct, err := r.pool.Exec(ctx, `
		UPDATE users SET
			email = $2, full_name = $3, phone = $4, avatar_url = $5, role = $6,
			is_active = $7, is_verified = $8, last_login_at = $9, updated_at = $10
		WHERE id = $1`,
		u.ID, u.Email, u.FullName, u.Phone, u.AvatarURL, u.Role,
		u.IsActive, u.IsVerified, u.LastLoginAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *userRepoPG) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_login_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	return nil
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.SupabaseUID, &u.Email, &u.FullName, &u.Phone, &u.AvatarURL, &u.Role,
		&u.IsActive, &u.IsVerified, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// -- Patient Profile Repository --

type patientProfileRepoPG struct {
	pool *pgxpool.Pool
}

func NewPatientProfileRepo(pool *pgxpool.Pool) PatientProfileRepository {
	return &patientProfileRepoPG{pool: pool}
}

const patientCols = `id, user_id, date_of_birth, gender, blood_type,
	allergies, chronic_conditions, current_medications,
	emergency_contact_name, emergency_contact_phone, emergency_contact_relationship,
	address, city, state, zip_code, insurance_info, medical_notes,
	created_at, updated_at`

func (r *patientProfileRepoPG) Create(ctx context.Context, p *PatientProfile) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := r.pool.Exec(ctx, `
		INSERT INTO patients (
			id, user_id, date_of_birth, gender, blood_type,
			allergies, chronic_conditions, current_medications,
			emergency_contact_name, emergency_contact_phone, emergency_contact_relationship,
			address, city, state, zip_code, insurance_info, medical_notes,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		p.ID, p.UserID, p.DateOfBirth, p.Gender, p.BloodType,
		p.Allergies, p.ChronicConditions, p.CurrentMedications,
		p.EmergencyContactName, p.EmergencyContactPhone, p.EmergencyContactRelationship,
		p.Address, p.City, p.State, p.ZipCode, p.InsuranceInfo, p.MedicalNotes,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create patient profile: %w", err)
	}
	return nil
}

func (r *patientProfileRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*PatientProfile, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id)
	return scanPatientProfile(row)
}

func (r *patientProfileRepoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*PatientProfile, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE user_id = $1`, userID)
	return scanPatientProfile(row)
}

func (r *patientProfileRepoPG) Update(ctx context.Context, p *PatientProfile) error {
	p.UpdatedAt = time.Now()
	ct, err := r.pool.Exec(ctx, `
		UPDATE patients SET
			date_of_birth = $2, gender = $3, blood_type = $4,
			allergies = $5, chronic_conditions = $6, current_medications = $7,
			emergency_contact_name = $8, emergency_contact_phone = $9, emergency_contact_relationship = $10,
			address = $11, city = $12, state = $13, zip_code = $14,
			insurance_info = $15, medical_notes = $16, updated_at = $17
		WHERE id = $1`,
		p.ID, p.DateOfBirth, p.Gender, p.BloodType,
		p.Allergies, p.ChronicConditions, p.CurrentMedications,
		p.EmergencyContactName, p.EmergencyContactPhone, p.EmergencyContactRelationship,
		p.Address, p.City, p.State, p.ZipCode,
		p.InsuranceInfo, p.MedicalNotes, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update patient profile: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func scanPatientProfile(row pgx.Row) (*PatientProfile, error) {
	var p PatientProfile
	err := row.Scan(
		&p.ID, &p.UserID, &p.DateOfBirth, &p.Gender, &p.BloodType,
		&p.Allergies, &p.ChronicConditions, &p.CurrentMedications,
		&p.EmergencyContactName, &p.EmergencyContactPhone, &p.EmergencyContactRelationship,
		&p.Address, &p.City, &p.State, &p.ZipCode, &p.InsuranceInfo, &p.MedicalNotes,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("scan patient profile: %w", err)
	}
	return &p, nil
}

// -- Doctor Profile Repository --

type doctorProfileRepoPG struct {
	pool *pgxpool.Pool
}

func NewDoctorProfileRepo(pool *pgxpool.Pool) DoctorProfileRepository {
	return &doctorProfileRepoPG{pool: pool}
}

const doctorCols = `id, user_id, specialty, department, license_number, qualifications,
	years_of_experience, hospital_name, hospital_address, consultation_fee,
	video_consultation_available, in_clinic_available, languages, bio,
	rating, total_reviews, total_patients, availability_schedule, is_verified,
	created_at, updated_at`

// doctorDirCols adds the joined user columns the directory responses
// carry.
const doctorDirCols = `d.id, d.user_id, d.specialty, d.department, d.license_number, d.qualifications,
	d.years_of_experience, d.hospital_name, d.hospital_address, d.consultation_fee,
	d.video_consultation_available, d.in_clinic_available, d.languages, d.bio,
	d.rating, d.total_reviews, d.total_patients, d.availability_schedule, d.is_verified,
	d.created_at, d.updated_at, u.full_name, u.avatar_url`

func (r *doctorProfileRepoPG) Create(ctx context.Context, d *DoctorProfile) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	now := time.Now()
	d.CreatedAt = now
	d.UpdatedAt = now

	_, err := r.pool.Exec(ctx, `
		INSERT INTO doctors (
			id, user_id, specialty, department, license_number, qualifications,
			years_of_experience, hospital_name, hospital_address, consultation_fee,
			video_consultation_available, in_clinic_available, languages, bio,
			rating, total_reviews, total_patients, availability_schedule, is_verified,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)`,
		d.ID, d.UserID, d.Specialty, d.Department, d.LicenseNumber, d.Qualifications,
		d.YearsOfExperience, d.HospitalName, d.HospitalAddress, d.ConsultationFee,
		d.VideoAvailable, d.InClinicAvailable, d.Languages, d.Bio,
		d.Rating, d.TotalReviews, d.TotalPatients, d.AvailabilitySchedule, d.IsVerified,
		d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create doctor profile: %w", err)
	}
	return nil
}

func (r *doctorProfileRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*DoctorProfile, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+doctorDirCols+`
		FROM doctors d
		JOIN users u ON u.id = d.user_id
		WHERE d.id = $1`, id)
	return scanDoctorDir(row)
}

func (r *doctorProfileRepoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*DoctorProfile, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+doctorCols+` FROM doctors WHERE user_id = $1`, userID)
	return scanDoctor(row)
}

func (r *doctorProfileRepoPG) Update(ctx context.Context, d *DoctorProfile) error {
	d.UpdatedAt = time.Now()
	ct, err := r.pool.Exec(ctx, `
		UPDATE doctors SET
			specialty = $2, department = $3, license_number = $4, qualifications = $5,
			years_of_experience = $6, hospital_name = $7, hospital_address = $8,
			consultation_fee = $9, video_consultation_available = $10, in_clinic_available = $11,
			languages = $12, bio = $13, rating = $14, total_reviews = $15, total_patients = $16,
			availability_schedule = $17, is_verified = $18, updated_at = $19
		WHERE id = $1`,
		d.ID, d.Specialty, d.Department, d.LicenseNumber, d.Qualifications,
		d.YearsOfExperience, d.HospitalName, d.HospitalAddress,
		d.ConsultationFee, d.VideoAvailable, d.InClinicAvailable,
		d.Languages, d.Bio, d.Rating, d.TotalReviews, d.TotalPatients,
		d.AvailabilitySchedule, d.IsVerified, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update doctor profile: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrDoctorNotFound
	}
	return nil
}

func (r *doctorProfileRepoPG) List(ctx context.Context, filter DoctorFilter, limit, offset int) ([]*DoctorProfile, int, error) {
	where := []string{"u.is_active = TRUE"}
	args := []interface{}{}

	if filter.Specialty != "" {
		args = append(args, filter.Specialty)
		where = append(where, fmt.Sprintf("LOWER(d.specialty) = LOWER($%d)", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(
			"(u.full_name ILIKE $%d OR d.specialty ILIKE $%d OR d.hospital_name ILIKE $%d)", n, n, n))
	}
	if filter.MinRating > 0 {
		args = append(args, filter.MinRating)
		where = append(where, fmt.Sprintf("d.rating >= $%d", len(args)))
	}
	if filter.AvailableOnly {
		where = append(where, "(d.video_consultation_available OR d.in_clinic_available)")
	}
	cond := strings.Join(where, " AND ")

	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM doctors d JOIN users u ON u.id = d.user_id WHERE `+cond,
		args...,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count doctors: %w", err)
	}

	args = append(args, limit, offset)
	rows, err := r.pool.Query(ctx, `
		SELECT `+doctorDirCols+`
		FROM doctors d
		JOIN users u ON u.id = d.user_id
		WHERE `+cond+`
		ORDER BY d.rating DESC`+
		fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list doctors: %w", err)
	}
	defer rows.Close()

	var doctors []*DoctorProfile
	for rows.Next() {
		d, err := scanDoctorDir(rows)
		if err != nil {
			return nil, 0, err
		}
		doctors = append(doctors, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list doctors: %w", err)
	}
	return doctors, total, nil
}

func (r *doctorProfileRepoPG) Search(ctx context.Context, q *DoctorSearchQuery) ([]*DoctorProfile, int, error) {
	where := []string{"u.is_active = TRUE"}
	args := []interface{}{}

	if q.AvailableOnly == nil || *q.AvailableOnly {
		where = append(where, "(d.video_consultation_available OR d.in_clinic_available)")
	}
	if len(q.Specialties) > 0 {
		lowered := make([]string, len(q.Specialties))
		for i, s := range q.Specialties {
			lowered[i] = strings.ToLower(s)
		}
		args = append(args, lowered)
		where = append(where, fmt.Sprintf("LOWER(d.specialty) = ANY($%d)", len(args)))
	}
	if q.MinFee != nil {
		args = append(args, *q.MinFee)
		where = append(where, fmt.Sprintf("d.consultation_fee >= $%d", len(args)))
	}
	if q.MaxFee != nil {
		args = append(args, *q.MaxFee)
		where = append(where, fmt.Sprintf("d.consultation_fee <= $%d", len(args)))
	}
	if q.MinRating != nil {
		args = append(args, *q.MinRating)
		where = append(where, fmt.Sprintf("d.rating >= $%d", len(args)))
	}
	if q.MinExperienceYears != nil {
		args = append(args, *q.MinExperienceYears)
		where = append(where, fmt.Sprintf("d.years_of_experience >= $%d", len(args)))
	}
	if q.SearchTerm != "" {
		args = append(args, "%"+q.SearchTerm+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(
			"(u.full_name ILIKE $%d OR d.specialty ILIKE $%d OR d.hospital_name ILIKE $%d OR array_to_string(d.languages, ' ') ILIKE $%d)",
			n, n, n, n))
	}
	cond := strings.Join(where, " AND ")

	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM doctors d JOIN users u ON u.id = d.user_id WHERE `+cond,
		args...,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count doctors: %w", err)
	}

	args = append(args, q.Limit, q.Offset)
	rows, err := r.pool.Query(ctx, `
		SELECT `+doctorDirCols+`
		FROM doctors d
		JOIN users u ON u.id = d.user_id
		WHERE `+cond+`
		ORDER BY d.rating DESC`+
		fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("search doctors: %w", err)
	}
	defer rows.Close()

	var doctors []*DoctorProfile
	for rows.Next() {
		d, err := scanDoctorDir(rows)
		if err != nil {
			return nil, 0, err
		}
		doctors = append(doctors, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("search doctors: %w", err)
	}
	return doctors, total, nil
}

func (r *doctorProfileRepoPG) Specialties(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT specialty FROM doctors
		WHERE (video_consultation_available OR in_clinic_available) AND specialty <> ''
		ORDER BY specialty`)
	if err != nil {
		return nil, fmt.Errorf("list specialties: %w", err)
	}
	defer rows.Close()

	var specialties []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan specialty: %w", err)
		}
		specialties = append(specialties, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list specialties: %w", err)
	}
	return specialties, nil
}

func scanDoctor(row pgx.Row) (*DoctorProfile, error) {
	var d DoctorProfile
	err := row.Scan(
		&d.ID, &d.UserID, &d.Specialty, &d.Department, &d.LicenseNumber, &d.Qualifications,
		&d.YearsOfExperience, &d.HospitalName, &d.HospitalAddress, &d.ConsultationFee,
		&d.VideoAvailable, &d.InClinicAvailable, &d.Languages, &d.Bio,
		&d.Rating, &d.TotalReviews, &d.TotalPatients, &d.AvailabilitySchedule, &d.IsVerified,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, fmt.Errorf("scan doctor profile: %w", err)
	}
	return &d, nil
}

func scanDoctorDir(row pgx.Row) (*DoctorProfile, error) {
	var d DoctorProfile
	err := row.Scan(
		&d.ID, &d.UserID, &d.Specialty, &d.Department, &d.LicenseNumber, &d.Qualifications,
		&d.YearsOfExperience, &d.HospitalName, &d.HospitalAddress, &d.ConsultationFee,
		&d.VideoAvailable, &d.InClinicAvailable, &d.Languages, &d.Bio,
		&d.Rating, &d.TotalReviews, &d.TotalPatients, &d.AvailabilitySchedule, &d.IsVerified,
		&d.CreatedAt, &d.UpdatedAt, &d.FullName, &d.AvatarURL,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, fmt.Errorf("scan doctor profile: %w", err)
	}
	return &d, nil
}
