package prescription

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/athishkirthikjd/MedTech-AI/internal/platform/notification"
)

var ErrNotActive = errors.New("Prescription is not active")

// Actor identifies the caller inside the prescription domain.
// PatientID and DoctorID are Nil unless the account has the matching
// profile.
type Actor struct {
	Role      string
	PatientID uuid.UUID
	DoctorID  uuid.UUID
}

// PatientInfo is what the issue flow needs from a patient record: a
// name for the notification and an address to send it to.
type PatientInfo struct {
	ID       uuid.UUID
	FullName string
	Email    string
}

// DoctorInfo names a doctor for the notification and the public
// verification answer.
type DoctorInfo struct {
	ID       uuid.UUID
	FullName string
}

// Directory resolves identity data for this domain.
type Directory interface {
	ActorForUser(ctx context.Context, userID string) (*Actor, error)
	PatientByID(ctx context.Context, id uuid.UUID) (*PatientInfo, error)
	DoctorByID(ctx context.Context, id uuid.UUID) (*DoctorInfo, error)
}

type Service struct {
	repo     Repository
	dir      Directory
	notifier *notification.Manager
	logger   zerolog.Logger
}

// NewService wires the prescription flows. notifier may be nil; the
// issue notification is skipped.
func NewService(repo Repository, dir Directory, notifier *notification.Manager, logger zerolog.Logger) *Service {
	return &Service{repo: repo, dir: dir, notifier: notifier, logger: logger}
}

// Actor resolves the calling user's prescription-domain identity.
func (s *Service) Actor(ctx context.Context, userID string) (*Actor, error) {
	return s.dir.ActorForUser(ctx, userID)
}

// Create issues a prescription from the doctor to the patient and
// emails the patient their verification code.
func (s *Service) Create(ctx context.Context, doctorID uuid.UUID, req CreateRequest) (*Prescription, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	now := time.Now()
	if req.ExpiryDate != nil && dateOnly(*req.ExpiryDate).Before(dateOnly(now)) {
		return nil, fmt.Errorf("expiry_date cannot be in the past")
	}

	pat, err := s.dir.PatientByID(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}
	doc, err := s.dir.DoctorByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	code, err := newVerificationCode()
	if err != nil {
		return nil, err
	}
	p := &Prescription{
		PatientID:        req.PatientID,
		DoctorID:         doctorID,
		AppointmentID:    req.AppointmentID,
		Diagnosis:        strings.TrimSpace(req.Diagnosis),
		Medications:      req.Medications,
		Instructions:     req.Instructions,
		FollowUpNotes:    req.FollowUpNotes,
		IssueDate:        dateOnly(now),
		Status:           StatusActive,
		VerificationCode: code,
	}
	if req.FollowUpDate != nil {
		d := dateOnly(*req.FollowUpDate)
		p.FollowUpDate = &d
	}
	if req.ExpiryDate != nil {
		d := dateOnly(*req.ExpiryDate)
		p.ExpiryDate = &d
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	p.Derive()

	s.logger.Info().
		Str("prescription_id", p.ID.String()).
		Str("patient_id", p.PatientID.String()).
		Str("doctor_id", p.DoctorID.String()).
		Int("medications", len(p.Medications)).
		Msg("prescription issued")

	s.notifyIssued(ctx, p, pat, doc)
	return p, nil
}

// newVerificationCode builds the code printed on the prescription,
// "RX-" plus 12 hex characters from a CSPRNG.
func newVerificationCode() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}
	return "RX-" + strings.ToUpper(hex.EncodeToString(buf)), nil
}

// notifyIssued emails the patient. Failures are logged, never
// surfaced: the prescription is already on file.
func (s *Service) notifyIssued(ctx context.Context, p *Prescription, pat *PatientInfo, doc *DoctorInfo) {
	if s.notifier == nil || pat.Email == "" {
		return
	}
	data := map[string]string{
		"patient_name":      pat.FullName,
		"doctor_name":       doc.FullName,
		"verification_code": p.VerificationCode,
	}
	if _, err := s.notifier.SendFromTemplate(ctx, notification.TemplatePrescriptionIssued, data, pat.Email); err != nil {
		s.logger.Warn().Err(err).Str("prescription_id", p.ID.String()).Msg("prescription notification failed")
	}
}

// Get loads one prescription.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Derive()
	return p, nil
}

// ListForPatient returns the patient's prescriptions, newest first.
func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	ps, total, err := s.repo.ListForPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for _, p := range ps {
		p.Derive()
	}
	return ps, total, nil
}

// ListForDoctor returns the prescriptions the doctor issued, newest
// first.
func (s *Service) ListForDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	ps, total, err := s.repo.ListForDoctor(ctx, doctorID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for _, p := range ps {
		p.Derive()
	}
	return ps, total, nil
}

// UpdateStatus moves a prescription out of active. Completed and
// cancelled are terminal; expiry happens on its own, so neither active
// nor expired can be set directly.
func (s *Service) UpdateStatus(ctx context.Context, p *Prescription, status string) (*Prescription, error) {
	if !ValidStatus(status) {
		return nil, fmt.Errorf("Invalid status: %s", status)
	}
	if status == StatusActive || status == StatusExpired {
		return nil, fmt.Errorf("status cannot be set to %s", status)
	}
	if p.EffectiveStatus() != StatusActive {
		return nil, ErrNotActive
	}

	p.Status = status
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	p.Derive()

	s.logger.Info().
		Str("prescription_id", p.ID.String()).
		Str("status", p.Status).
		Msg("prescription status updated")
	return p, nil
}

// Verify answers a pharmacy's code check. An unknown code is not an
// error: the endpoint answers valid=false either way so callers get
// one response shape. The first successful check marks the
// prescription verified.
func (s *Service) Verify(ctx context.Context, code string) (*VerifyResult, error) {
	p, err := s.repo.GetByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		if errors.Is(err, ErrPrescriptionNotFound) {
			return &VerifyResult{Valid: false, Message: "Invalid verification code"}, nil
		}
		return nil, err
	}

	res := &VerifyResult{
		Status:          p.EffectiveStatus(),
		IssueDate:       &p.IssueDate,
		ExpiryDate:      p.ExpiryDate,
		MedicationCount: len(p.Medications),
	}
	if doc, err := s.dir.DoctorByID(ctx, p.DoctorID); err == nil {
		res.DoctorName = doc.FullName
	}
	switch res.Status {
	case StatusActive:
		res.Valid = true
		res.Message = "Prescription is valid"
	case StatusExpired:
		res.Message = "Prescription has expired"
	case StatusCancelled:
		res.Message = "Prescription has been cancelled"
	case StatusCompleted:
		res.Message = "Prescription has already been completed"
	}

	if res.Valid && !p.IsVerified {
		p.IsVerified = true
		if err := s.repo.Update(ctx, p); err != nil {
			s.logger.Warn().Err(err).Str("prescription_id", p.ID.String()).Msg("marking prescription verified failed")
		}
	}
	return res, nil
}
