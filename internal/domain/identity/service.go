package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/athishkirthikjd/MedTech-AI/internal/platform/auth"
)

// API-facing errors. Handlers return these messages verbatim.
var (
	ErrAlreadyRegistered  = errors.New("User already registered")
	ErrEmailInUse         = errors.New("Email already in use")
	ErrInvalidToken       = errors.New("Invalid or expired token")
	ErrAccountDeactivated = errors.New("User account is deactivated")
)

// TokenChecker validates provider-issued tokens. *auth.TokenVerifier
// satisfies it.
type TokenChecker interface {
	Verify(token string) (*auth.Claims, error)
}

// Service implements account registration, token verification, the
// current-user endpoints and the doctor directory.
type Service struct {
	users    UserRepository
	patients PatientProfileRepository
	doctors  DoctorProfileRepository
	tokens   TokenChecker
}

func NewService(users UserRepository, patients PatientProfileRepository, doctors DoctorProfileRepository, tokens TokenChecker) *Service {
	return &Service{users: users, patients: patients, doctors: doctors, tokens: tokens}
}

// Register mirrors a completed provider signup into the backend.
// Patients get an empty profile immediately; doctors get theirs on
// the first profile update, since a doctor row needs a license
// number.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*UserWithProfile, error) {
	req.SupabaseUID = strings.TrimSpace(req.SupabaseUID)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FullName = strings.TrimSpace(req.FullName)

	if req.SupabaseUID == "" {
		return nil, fmt.Errorf("supabase_uid is required")
	}
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return nil, fmt.Errorf("a valid email is required")
	}
	if req.FullName == "" {
		return nil, fmt.Errorf("full_name is required")
	}
	role := req.Role
	if role == "" {
		role = auth.RolePatient
	}
	switch role {
	case auth.RolePatient, auth.RoleDoctor, auth.RoleAdmin:
	default:
		return nil, fmt.Errorf("invalid role: %s", role)
	}

	if _, err := s.users.GetBySupabaseUID(ctx, req.SupabaseUID); err == nil {
		return nil, ErrAlreadyRegistered
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}
	if _, err := s.users.GetByEmail(ctx, req.Email); err == nil {
		return nil, ErrEmailInUse
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	u := &User{
		SupabaseUID: req.SupabaseUID,
		Email:       req.Email,
		FullName:    req.FullName,
		Phone:       req.Phone,
		AvatarURL:   req.AvatarURL,
		Role:        role,
		IsActive:    true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	out := &UserWithProfile{User: *u}
	if role == auth.RolePatient {
		profile := emptyPatientProfile(u.ID)
		if err := s.patients.Create(ctx, profile); err != nil {
			return nil, fmt.Errorf("register: %w", err)
		}
		out.PatientProfile = profile
	}
	return out, nil
}

// VerifyToken validates a provider token, provisions the backend user
// on first sight, and reports the resolved identity.
func (s *Service) VerifyToken(ctx context.Context, token string) (*TokenVerification, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrInvalidToken
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, ErrInvalidToken
	}

	u, err := s.ensureUser(ctx, claims)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrAccountDeactivated
	}

	// Last-login tracking is best effort.
	_ = s.users.TouchLastLogin(ctx, u.ID, time.Now())

	v := &TokenVerification{
		Valid:  true,
		UserID: u.ID.String(),
		Email:  u.Email,
		Role:   u.Role,
	}
	if claims.ExpiresAt != nil {
		v.ExpiresAt = claims.ExpiresAt.Unix()
	}
	return v, nil
}

// ensureUser returns the backend user for verified claims, creating
// it when the account signed up directly with the provider and never
// hit the register endpoint.
func (s *Service) ensureUser(ctx context.Context, claims *auth.Claims) (*User, error) {
	u, err := s.users.GetBySupabaseUID(ctx, claims.Subject)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	email := strings.ToLower(claims.Email)
	name := metadataString(claims.UserMetadata, "full_name")
	if name == "" {
		name = metadataString(claims.UserMetadata, "name")
	}
	if name == "" {
		if i := strings.Index(email, "@"); i > 0 {
			name = email[:i]
		}
	}

	u = &User{
		SupabaseUID: claims.Subject,
		Email:       email,
		FullName:    name,
		Role:        claims.ResolvedRole(),
		IsActive:    true,
		IsVerified:  true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("provision user: %w", err)
	}
	if u.Role == auth.RolePatient {
		if err := s.patients.Create(ctx, emptyPatientProfile(u.ID)); err != nil {
			return nil, fmt.Errorf("provision patient profile: %w", err)
		}
	}
	return u, nil
}

// Me returns the current user with their role profile attached.
func (s *Service) Me(ctx context.Context, supabaseUID string) (*UserWithProfile, error) {
	u, err := s.loadActive(ctx, supabaseUID)
	if err != nil {
		return nil, err
	}
	return s.withProfile(ctx, u)
}

// UpdateMe applies a partial update to the current user and their
// role profile. Nil fields are left unchanged.
func (s *Service) UpdateMe(ctx context.Context, supabaseUID string, req UpdateUserRequest) (*UserWithProfile, error) {
	u, err := s.loadActive(ctx, supabaseUID)
	if err != nil {
		return nil, err
	}

	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		if name == "" {
			return nil, fmt.Errorf("full_name cannot be empty")
		}
		u.FullName = name
	}
	if req.Phone != nil {
		u.Phone = req.Phone
	}
	if req.AvatarURL != nil {
		u.AvatarURL = req.AvatarURL
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}

	if req.PatientProfile != nil {
		if u.Role != auth.RolePatient {
			return nil, fmt.Errorf("patient profile updates require the patient role")
		}
		if err := s.updatePatientProfile(ctx, u.ID, req.PatientProfile); err != nil {
			return nil, err
		}
	}
	if req.DoctorProfile != nil {
		if u.Role != auth.RoleDoctor {
			return nil, fmt.Errorf("doctor profile updates require the doctor role")
		}
		if err := s.updateDoctorProfile(ctx, u.ID, req.DoctorProfile); err != nil {
			return nil, err
		}
	}
	return s.withProfile(ctx, u)
}

// Deactivate soft-deletes the current user. The row and its history
// stay; authenticated endpoints stop serving the account.
func (s *Service) Deactivate(ctx context.Context, supabaseUID string) error {
	u, err := s.loadActive(ctx, supabaseUID)
	if err != nil {
		return err
	}
	u.IsActive = false
	return s.users.Update(ctx, u)
}

// ListDoctors serves the doctor directory.
func (s *Service) ListDoctors(ctx context.Context, filter DoctorFilter, limit, offset int) ([]*DoctorProfile, int, error) {
	return s.doctors.List(ctx, filter, limit, offset)
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*DoctorProfile, error) {
	return s.doctors.GetByID(ctx, id)
}

// SearchDoctors runs the advanced directory search with normalized
// paging.
func (s *Service) SearchDoctors(ctx context.Context, q *DoctorSearchQuery) ([]*DoctorProfile, int, error) {
	if q.Limit <= 0 {
		q.Limit = 20
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return s.doctors.Search(ctx, q)
}

func (s *Service) Specialties(ctx context.Context) ([]string, error) {
	return s.doctors.Specialties(ctx)
}

// PatientByUser loads the patient profile for an authenticated user.
// Triage and the clinical domains read patient context through this.
func (s *Service) PatientByUser(ctx context.Context, supabaseUID string) (*PatientProfile, error) {
	u, err := s.loadActive(ctx, supabaseUID)
	if err != nil {
		return nil, err
	}
	if u.Role != auth.RolePatient {
		return nil, fmt.Errorf("user is not a patient")
	}
	return s.patients.GetByUserID(ctx, u.ID)
}

// ResolvePatientID maps an authenticated user to their patient
// profile ID. Appointment, vitals and emergency rows key on it.
func (s *Service) ResolvePatientID(ctx context.Context, supabaseUID string) (uuid.UUID, error) {
	p, err := s.PatientByUser(ctx, supabaseUID)
	if err != nil {
		return uuid.Nil, err
	}
	return p.ID, nil
}

// ResolveDoctorID maps an authenticated user to their doctor profile
// ID.
func (s *Service) ResolveDoctorID(ctx context.Context, supabaseUID string) (uuid.UUID, error) {
	u, err := s.loadActive(ctx, supabaseUID)
	if err != nil {
		return uuid.Nil, err
	}
	if u.Role != auth.RoleDoctor {
		return uuid.Nil, fmt.Errorf("user is not a doctor")
	}
	d, err := s.doctors.GetByUserID(ctx, u.ID)
	if err != nil {
		return uuid.Nil, err
	}
	return d.ID, nil
}

// PatientRecord loads the account and profile behind a patient ID.
// The clinical domains use it for names and contact details when they
// notify about a row that carries only the patient reference.
func (s *Service) PatientRecord(ctx context.Context, patientID uuid.UUID) (*User, *PatientProfile, error) {
	p, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		return nil, nil, err
	}
	u, err := s.users.GetByID(ctx, p.UserID)
	if err != nil {
		return nil, nil, err
	}
	return u, p, nil
}

func (s *Service) loadActive(ctx context.Context, supabaseUID string) (*User, error) {
	u, err := s.users.GetBySupabaseUID(ctx, supabaseUID)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrAccountDeactivated
	}
	return u, nil
}

func (s *Service) withProfile(ctx context.Context, u *User) (*UserWithProfile, error) {
	out := &UserWithProfile{User: *u}
	switch u.Role {
	case auth.RolePatient:
		p, err := s.patients.GetByUserID(ctx, u.ID)
		if err != nil && !errors.Is(err, ErrProfileNotFound) {
			return nil, err
		}
		out.PatientProfile = p
	case auth.RoleDoctor:
		d, err := s.doctors.GetByUserID(ctx, u.ID)
		if err != nil && !errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		out.DoctorProfile = d
	}
	return out, nil
}

func (s *Service) updatePatientProfile(ctx context.Context, userID uuid.UUID, upd *PatientProfileUpdate) error {
	p, err := s.patients.GetByUserID(ctx, userID)
	if errors.Is(err, ErrProfileNotFound) {
		p = emptyPatientProfile(userID)
		applyPatientUpdate(p, upd)
		return s.patients.Create(ctx, p)
	}
	if err != nil {
		return err
	}
	applyPatientUpdate(p, upd)
	return s.patients.Update(ctx, p)
}

func (s *Service) updateDoctorProfile(ctx context.Context, userID uuid.UUID, upd *DoctorProfileUpdate) error {
	d, err := s.doctors.GetByUserID(ctx, userID)
	if errors.Is(err, ErrDoctorNotFound) {
		if upd.Specialty == nil || strings.TrimSpace(*upd.Specialty) == "" {
			return fmt.Errorf("specialty is required to create a doctor profile")
		}
		if upd.LicenseNumber == nil || strings.TrimSpace(*upd.LicenseNumber) == "" {
			return fmt.Errorf("license_number is required to create a doctor profile")
		}
		d = &DoctorProfile{
			UserID:               userID,
			Qualifications:       []string{},
			Languages:            []string{},
			VideoAvailable:       true,
			InClinicAvailable:    true,
			AvailabilitySchedule: WeeklySchedule{},
		}
		applyDoctorUpdate(d, upd)
		return s.doctors.Create(ctx, d)
	}
	if err != nil {
		return err
	}
	applyDoctorUpdate(d, upd)
	return s.doctors.Update(ctx, d)
}

func applyPatientUpdate(p *PatientProfile, upd *PatientProfileUpdate) {
	if upd.DateOfBirth != nil {
		p.DateOfBirth = upd.DateOfBirth
	}
	if upd.Gender != nil {
		p.Gender = upd.Gender
	}
	if upd.BloodType != nil {
		p.BloodType = upd.BloodType
	}
	if upd.Allergies != nil {
		p.Allergies = upd.Allergies
	}
	if upd.ChronicConditions != nil {
		p.ChronicConditions = upd.ChronicConditions
	}
	if upd.CurrentMedications != nil {
		p.CurrentMedications = upd.CurrentMedications
	}
	if upd.EmergencyContactName != nil {
		p.EmergencyContactName = upd.EmergencyContactName
	}
	if upd.EmergencyContactPhone != nil {
		p.EmergencyContactPhone = upd.EmergencyContactPhone
	}
	if upd.EmergencyContactRelationship != nil {
		p.EmergencyContactRelationship = upd.EmergencyContactRelationship
	}
	if upd.Address != nil {
		p.Address = upd.Address
	}
	if upd.City != nil {
		p.City = upd.City
	}
	if upd.State != nil {
		p.State = upd.State
	}
	if upd.ZipCode != nil {
		p.ZipCode = upd.ZipCode
	}
	if upd.InsuranceInfo != nil {
		p.InsuranceInfo = upd.InsuranceInfo
	}
	if upd.MedicalNotes != nil {
		p.MedicalNotes = upd.MedicalNotes
	}
}

func applyDoctorUpdate(d *DoctorProfile, upd *DoctorProfileUpdate) {
	if upd.Specialty != nil {
		d.Specialty = *upd.Specialty
	}
	if upd.Department != nil {
		d.Department = upd.Department
	}
	if upd.LicenseNumber != nil {
		d.LicenseNumber = *upd.LicenseNumber
	}
	if upd.Qualifications != nil {
		d.Qualifications = upd.Qualifications
	}
	if upd.YearsOfExperience != nil {
		d.YearsOfExperience = *upd.YearsOfExperience
	}
	if upd.HospitalName != nil {
		d.HospitalName = upd.HospitalName
	}
	if upd.HospitalAddress != nil {
		d.HospitalAddress = upd.HospitalAddress
	}
	if upd.ConsultationFee != nil {
		d.ConsultationFee = *upd.ConsultationFee
	}
	if upd.VideoAvailable != nil {
		d.VideoAvailable = *upd.VideoAvailable
	}
	if upd.InClinicAvailable != nil {
		d.InClinicAvailable = *upd.InClinicAvailable
	}
	if upd.Languages != nil {
		d.Languages = upd.Languages
	}
	if upd.Bio != nil {
		d.Bio = upd.Bio
	}
	if upd.AvailabilitySchedule != nil {
		d.AvailabilitySchedule = *upd.AvailabilitySchedule
	}
}

func emptyPatientProfile(userID uuid.UUID) *PatientProfile {
	return &PatientProfile{
		UserID:             userID,
		Allergies:          []string{},
		ChronicConditions:  []string{},
		CurrentMedications: []string{},
	}
}

func metadataString(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}
