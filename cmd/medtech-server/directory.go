package main

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/athishkirthikjd/MedTech-AI/internal/domain/emergency"
	"github.com/athishkirthikjd/MedTech-AI/internal/domain/identity"
	"github.com/athishkirthikjd/MedTech-AI/internal/domain/prescription"
	"github.com/athishkirthikjd/MedTech-AI/internal/domain/scheduling"
	"github.com/athishkirthikjd/MedTech-AI/internal/domain/triage"
	"github.com/athishkirthikjd/MedTech-AI/internal/domain/vitals"
)

// The clinical domains never import identity directly; each declares a
// small Directory interface for the lookups it needs. The adapters below
// satisfy those interfaces on top of the identity service, avoiding
// circular imports between identity and the packages it serves.

// schedulingDirectory adapts identity.Service to scheduling.Directory.
type schedulingDirectory struct {
	ids *identity.Service
}

func (d *schedulingDirectory) ActorForUser(ctx context.Context, userID string) (*scheduling.Actor, error) {
	u, err := d.ids.Me(ctx, userID)
	if err != nil {
		return nil, err
	}
	act := &scheduling.Actor{Role: u.Role}
	if u.PatientProfile != nil {
		act.PatientID = u.PatientProfile.ID
	}
	if u.DoctorProfile != nil {
		act.DoctorID = u.DoctorProfile.ID
	}
	return act, nil
}

func (d *schedulingDirectory) DoctorByID(ctx context.Context, id uuid.UUID) (*scheduling.DoctorInfo, error) {
	doc, err := d.ids.GetDoctor(ctx, id)
	if err != nil {
		if errors.Is(err, identity.ErrDoctorNotFound) {
			return nil, scheduling.ErrDoctorNotFound
		}
		return nil, err
	}
	return &scheduling.DoctorInfo{
		ID:        doc.ID,
		FullName:  doc.FullName,
		Specialty: doc.Specialty,
		Fee:       doc.ConsultationFee,
		Accepting: doc.Accepting(),
		Schedule:  weeklySchedule(doc.AvailabilitySchedule),
	}, nil
}

func (d *schedulingDirectory) PatientByID(ctx context.Context, id uuid.UUID) (*scheduling.PatientInfo, error) {
	u, _, err := d.ids.PatientRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	return &scheduling.PatientInfo{ID: id, FullName: u.FullName, Email: u.Email}, nil
}

// vitalsDirectory adapts identity.Service to vitals.Directory.
type vitalsDirectory struct {
	ids *identity.Service
}

func (d *vitalsDirectory) PatientIDForUser(ctx context.Context, userID string) (uuid.UUID, error) {
	return d.ids.ResolvePatientID(ctx, userID)
}

func (d *vitalsDirectory) PatientByID(ctx context.Context, id uuid.UUID) (*vitals.PatientInfo, error) {
	u, _, err := d.ids.PatientRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	return &vitals.PatientInfo{ID: id, FullName: u.FullName, Email: u.Email}, nil
}

// emergencyDirectory adapts identity.Service to emergency.Directory. The
// SOS flow needs the medical snapshot and emergency contact, not just the
// patient's name.
type emergencyDirectory struct {
	ids *identity.Service
}

func (d *emergencyDirectory) ActorForUser(ctx context.Context, userID string) (*emergency.Actor, error) {
	u, err := d.ids.Me(ctx, userID)
	if err != nil {
		return nil, err
	}
	act := &emergency.Actor{UserID: userID, Role: u.Role}
	if u.PatientProfile != nil {
		act.PatientID = u.PatientProfile.ID
	}
	return act, nil
}

func (d *emergencyDirectory) PatientByID(ctx context.Context, id uuid.UUID) (*emergency.PatientInfo, error) {
	u, p, err := d.ids.PatientRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	return &emergency.PatientInfo{
		ID:                id,
		FullName:          u.FullName,
		BloodType:         strVal(p.BloodType),
		Allergies:         p.Allergies,
		ChronicConditions: p.ChronicConditions,
		Contact:           emergencyContact(p),
	}, nil
}

// prescriptionDirectory adapts identity.Service to prescription.Directory.
type prescriptionDirectory struct {
	ids *identity.Service
}

func (d *prescriptionDirectory) ActorForUser(ctx context.Context, userID string) (*prescription.Actor, error) {
	u, err := d.ids.Me(ctx, userID)
	if err != nil {
		return nil, err
	}
	act := &prescription.Actor{Role: u.Role}
	if u.PatientProfile != nil {
		act.PatientID = u.PatientProfile.ID
	}
	if u.DoctorProfile != nil {
		act.DoctorID = u.DoctorProfile.ID
	}
	return act, nil
}

func (d *prescriptionDirectory) PatientByID(ctx context.Context, id uuid.UUID) (*prescription.PatientInfo, error) {
	u, _, err := d.ids.PatientRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	return &prescription.PatientInfo{ID: id, FullName: u.FullName, Email: u.Email}, nil
}

func (d *prescriptionDirectory) DoctorByID(ctx context.Context, id uuid.UUID) (*prescription.DoctorInfo, error) {
	doc, err := d.ids.GetDoctor(ctx, id)
	if err != nil {
		return nil, err
	}
	return &prescription.DoctorInfo{ID: doc.ID, FullName: doc.FullName}, nil
}

// triageProfiles adapts identity.Service to triage.ProfileSource so the
// symptom checker can fold the caller's age and history into the AI
// context.
type triageProfiles struct {
	ids *identity.Service
}

func (d *triageProfiles) PatientProfileByUser(ctx context.Context, userID string) (*triage.PatientProfile, error) {
	p, err := d.ids.PatientByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &triage.PatientProfile{
		Age:                p.Age(),
		ChronicConditions:  p.ChronicConditions,
		CurrentMedications: p.CurrentMedications,
	}, nil
}

// weeklySchedule converts an identity availability calendar into the
// scheduling package's representation.
func weeklySchedule(ws identity.WeeklySchedule) scheduling.WeeklySchedule {
	if ws == nil {
		return nil
	}
	out := make(scheduling.WeeklySchedule, len(ws))
	for day, win := range ws {
		out[day] = scheduling.DaySchedule{
			Available: win.Available,
			Start:     win.Start,
			End:       win.End,
		}
	}
	return out
}

// emergencyContact extracts the emergency contact from a patient profile.
// A contact without a phone number cannot be notified, so it is treated
// as absent.
func emergencyContact(p *identity.PatientProfile) *emergency.ContactInfo {
	if p == nil || p.EmergencyContactPhone == nil || *p.EmergencyContactPhone == "" {
		return nil
	}
	return &emergency.ContactInfo{
		Name:         strVal(p.EmergencyContactName),
		Phone:        *p.EmergencyContactPhone,
		Relationship: strVal(p.EmergencyContactRelationship),
	}
}

func strVal(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
