// Package identity manages user accounts and their role-specific
// profiles. Accounts are created by an external auth provider
// (Supabase); this package keeps the mirrored user row plus the
// patient or doctor profile attached to it, and serves the doctor
// directory.
package identity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// User maps to the users table. ID is internal; SupabaseUID is the
// subject of the tokens the auth provider issues.
type User struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	SupabaseUID string     `db:"supabase_uid" json:"supabase_uid"`
	Email       string     `db:"email" json:"email"`
	FullName    string     `db:"full_name" json:"full_name"`
	Phone       *string    `db:"phone" json:"phone,omitempty"`
	AvatarURL   *string    `db:"avatar_url" json:"avatar_url,omitempty"`
	Role        string     `db:"role" json:"role"`
	IsActive    bool       `db:"is_active" json:"is_active"`
	IsVerified  bool       `db:"is_verified" json:"is_verified"`
	LastLoginAt *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// PatientProfile maps to the patients table.
type PatientProfile struct {
	ID                           uuid.UUID       `db:"id" json:"id"`
	UserID                       uuid.UUID       `db:"user_id" json:"user_id"`
	DateOfBirth                  *time.Time      `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Gender                       *string         `db:"gender" json:"gender,omitempty"`
	BloodType                    *string         `db:"blood_type" json:"blood_type,omitempty"`
	Allergies                    []string        `db:"allergies" json:"allergies"`
	ChronicConditions            []string        `db:"chronic_conditions" json:"chronic_conditions"`
	CurrentMedications           []string        `db:"current_medications" json:"current_medications"`
	EmergencyContactName         *string         `db:"emergency_contact_name" json:"emergency_contact_name,omitempty"`
	EmergencyContactPhone        *string         `db:"emergency_contact_phone" json:"emergency_contact_phone,omitempty"`
	EmergencyContactRelationship *string         `db:"emergency_contact_relationship" json:"emergency_contact_relationship,omitempty"`
	Address                      *string         `db:"address" json:"address,omitempty"`
	City                         *string         `db:"city" json:"city,omitempty"`
	State                        *string         `db:"state" json:"state,omitempty"`
	ZipCode                      *string         `db:"zip_code" json:"zip_code,omitempty"`
	InsuranceInfo                json.RawMessage `db:"insurance_info" json:"insurance_info,omitempty"`
	MedicalNotes                 *string         `db:"medical_notes" json:"medical_notes,omitempty"`
	CreatedAt                    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt                    time.Time       `db:"updated_at" json:"updated_at"`
}

// Age derives the patient's age in whole years from the date of
// birth: calendar-year difference, minus one if the birthday has not
// occurred yet this year. Nil when no date of birth is recorded.
func (p *PatientProfile) Age() *int {
	if p.DateOfBirth == nil {
		return nil
	}
	now := time.Now()
	age := now.Year() - p.DateOfBirth.Year()
	if now.Month() < p.DateOfBirth.Month() ||
		(now.Month() == p.DateOfBirth.Month() && now.Day() < p.DateOfBirth.Day()) {
		age--
	}
	return &age
}

// DaySchedule is one weekday's consultation window.
type DaySchedule struct {
	Available bool   `json:"available"`
	Start     string `json:"start,omitempty"`
	End       string `json:"end,omitempty"`
}

// WeeklySchedule maps lowercase weekday names ("monday"...) to their
// consultation windows. Days absent from the map fall back to the
// scheduling defaults.
type WeeklySchedule map[string]DaySchedule

// DoctorProfile maps to the doctors table. FullName and AvatarURL are
// joined from the users table for directory responses.
type DoctorProfile struct {
	ID                   uuid.UUID      `db:"id" json:"id"`
	UserID               uuid.UUID      `db:"user_id" json:"user_id"`
	Specialty            string         `db:"specialty" json:"specialty"`
	Department           *string        `db:"department" json:"department,omitempty"`
	LicenseNumber        string         `db:"license_number" json:"license_number"`
	Qualifications       []string       `db:"qualifications" json:"qualifications"`
	YearsOfExperience    int            `db:"years_of_experience" json:"years_of_experience"`
	HospitalName         *string        `db:"hospital_name" json:"hospital_name,omitempty"`
	HospitalAddress      *string        `db:"hospital_address" json:"hospital_address,omitempty"`
	ConsultationFee      float64        `db:"consultation_fee" json:"consultation_fee"`
	VideoAvailable       bool           `db:"video_consultation_available" json:"video_consultation_available"`
	InClinicAvailable    bool           `db:"in_clinic_available" json:"in_clinic_available"`
	Languages            []string       `db:"languages" json:"languages"`
	Bio                  *string        `db:"bio" json:"bio,omitempty"`
	Rating               float64        `db:"rating" json:"rating"`
	TotalReviews         int            `db:"total_reviews" json:"total_reviews"`
	TotalPatients        int            `db:"total_patients" json:"total_patients"`
	AvailabilitySchedule WeeklySchedule `db:"availability_schedule" json:"availability_schedule,omitempty"`
	IsVerified           bool           `db:"is_verified" json:"is_verified"`
	CreatedAt            time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time      `db:"updated_at" json:"updated_at"`

	FullName  string  `db:"-" json:"full_name,omitempty"`
	AvatarURL *string `db:"-" json:"avatar_url,omitempty"`
}

// Accepting reports whether the doctor takes new consultations on any
// channel. The directory's available-only filter uses this.
func (d *DoctorProfile) Accepting() bool {
	return d.VideoAvailable || d.InClinicAvailable
}

// UserWithProfile is a user row together with the role profile
// attached to it, the shape returned by the /auth endpoints.
type UserWithProfile struct {
	User
	PatientProfile *PatientProfile `json:"patient_profile,omitempty"`
	DoctorProfile  *DoctorProfile  `json:"doctor_profile,omitempty"`
}

// RegisterRequest creates the backend user row after an external
// signup completed.
type RegisterRequest struct {
	SupabaseUID string  `json:"supabase_uid"`
	Email       string  `json:"email"`
	FullName    string  `json:"full_name"`
	Phone       *string `json:"phone"`
	AvatarURL   *string `json:"avatar_url"`
	Role        string  `json:"role"`
}

// UpdateUserRequest carries a partial update of the current user. Nil
// fields are left unchanged; nested profile sections update or create
// the role profile.
type UpdateUserRequest struct {
	FullName       *string               `json:"full_name"`
	Phone          *string               `json:"phone"`
	AvatarURL      *string               `json:"avatar_url"`
	PatientProfile *PatientProfileUpdate `json:"patient_profile"`
	DoctorProfile  *DoctorProfileUpdate  `json:"doctor_profile"`
}

// PatientProfileUpdate is the nested patient section of an update.
// Nil means unchanged; an empty slice clears a list field.
type PatientProfileUpdate struct {
	DateOfBirth                  *time.Time      `json:"date_of_birth"`
	Gender                       *string         `json:"gender"`
	BloodType                    *string         `json:"blood_type"`
	Allergies                    []string        `json:"allergies"`
	ChronicConditions            []string        `json:"chronic_conditions"`
	CurrentMedications           []string        `json:"current_medications"`
	EmergencyContactName         *string         `json:"emergency_contact_name"`
	EmergencyContactPhone        *string         `json:"emergency_contact_phone"`
	EmergencyContactRelationship *string         `json:"emergency_contact_relationship"`
	Address                      *string         `json:"address"`
	City                         *string         `json:"city"`
	State                        *string         `json:"state"`
	ZipCode                      *string         `json:"zip_code"`
	InsuranceInfo                json.RawMessage `json:"insurance_info"`
	MedicalNotes                 *string         `json:"medical_notes"`
}

// DoctorProfileUpdate is the nested doctor section of an update. On
// first use it creates the profile, which requires specialty and
// license number.
type DoctorProfileUpdate struct {
	Specialty            *string         `json:"specialty"`
	Department           *string         `json:"department"`
	LicenseNumber        *string         `json:"license_number"`
	Qualifications       []string        `json:"qualifications"`
	YearsOfExperience    *int            `json:"years_of_experience"`
	HospitalName         *string         `json:"hospital_name"`
	HospitalAddress      *string         `json:"hospital_address"`
	ConsultationFee      *float64        `json:"consultation_fee"`
	VideoAvailable       *bool           `json:"video_consultation_available"`
	InClinicAvailable    *bool           `json:"in_clinic_available"`
	Languages            []string        `json:"languages"`
	Bio                  *string         `json:"bio"`
	AvailabilitySchedule *WeeklySchedule `json:"availability_schedule"`
}

// TokenVerification is the response to POST /auth/verify.
type TokenVerification struct {
	Valid     bool   `json:"valid"`
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	ExpiresAt int64  `json:"expires_at,omitempty"`
}

// DoctorFilter narrows the doctor directory listing.
type DoctorFilter struct {
	Specialty     string
	Search        string
	MinRating     float64
	AvailableOnly bool
}

// DoctorSearchQuery is the advanced-search request body.
// AvailableOnly defaults to true when omitted.
type DoctorSearchQuery struct {
	Specialties        []string `json:"specialties"`
	SearchTerm         string   `json:"search_term"`
	MinFee             *float64 `json:"min_fee"`
	MaxFee             *float64 `json:"max_fee"`
	MinRating          *float64 `json:"min_rating"`
	MinExperienceYears *int     `json:"min_experience_years"`
	AvailableOnly      *bool    `json:"available_only"`
	Limit              int      `json:"limit"`
	Offset             int      `json:"offset"`
}
