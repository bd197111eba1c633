package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors returned by repositories. Services map these to
// API responses.
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrProfileNotFound = errors.New("profile not found")
	ErrDoctorNotFound  = errors.New("doctor not found")
)

// UserRepository persists user accounts.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetBySupabaseUID(ctx context.Context, uid string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

// PatientProfileRepository persists patient profiles.
type PatientProfileRepository interface {
	Create(ctx context.Context, p *PatientProfile) error
	GetByID(ctx context.Context, id uuid.UUID) (*PatientProfile, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*PatientProfile, error)
	Update(ctx context.Context, p *PatientProfile) error
}

// DoctorProfileRepository persists doctor profiles and serves the
// public directory.
type DoctorProfileRepository interface {
	Create(ctx context.Context, d *DoctorProfile) error
	GetByID(ctx context.Context, id uuid.UUID) (*DoctorProfile, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*DoctorProfile, error)
	Update(ctx context.Context, d *DoctorProfile) error
	List(ctx context.Context, filter DoctorFilter, limit, offset int) ([]*DoctorProfile, int, error)
	Search(ctx context.Context, q *DoctorSearchQuery) ([]*DoctorProfile, int, error)
	Specialties(ctx context.Context) ([]string, error)
}
