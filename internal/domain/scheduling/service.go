package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/athishkirthikjd/MedTech-AI/internal/platform/notification"
	"github.com/athishkirthikjd/MedTech-AI/internal/platform/webhook"
	"github.com/athishkirthikjd/MedTech-AI/internal/platform/websocket"
)

// Service errors surfaced verbatim through the API.
var (
	ErrDoctorNotFound = errors.New("Doctor not found")
	ErrSlotTaken      = errors.New("Selected time slot is not available")
	ErrNotCancellable = errors.New("Appointment can no longer be cancelled")
)

// Actor identifies the caller inside the scheduling domain. Only the
// profile ids that exist for the account are set.
type Actor struct {
	Role      string
	PatientID uuid.UUID
	DoctorID  uuid.UUID
}

// DaySchedule is one weekday's working window in a doctor's calendar,
// with times in 24h "HH:MM" form.
type DaySchedule struct {
	Available bool
	Start     string
	End       string
}

// WeeklySchedule maps lowercase weekday names to working windows.
type WeeklySchedule map[string]DaySchedule

// DoctorInfo is the slice of a doctor profile the scheduler needs.
type DoctorInfo struct {
	ID        uuid.UUID
	FullName  string
	Specialty string
	Fee       float64
	Accepting bool
	Schedule  WeeklySchedule
}

// PatientInfo carries patient contact details for notifications.
type PatientInfo struct {
	ID       uuid.UUID
	FullName string
	Email    string
}

// Directory resolves callers and booking data from the identity
// domain. Implementations return ErrDoctorNotFound for unknown doctor
// ids.
type Directory interface {
	ActorForUser(ctx context.Context, userID string) (*Actor, error)
	DoctorByID(ctx context.Context, id uuid.UUID) (*DoctorInfo, error)
	PatientByID(ctx context.Context, id uuid.UUID) (*PatientInfo, error)
}

type Service struct {
	repo     AppointmentRepository
	dir      Directory
	notifier *notification.Manager
	events   webhook.Publisher
	feed     websocket.EventPublisher
	logger   zerolog.Logger
}

// NewService wires the scheduler to its repository, the identity
// directory, and the notification fan-out. notifier, events, and feed
// may be nil.
func NewService(repo AppointmentRepository, dir Directory, notifier *notification.Manager, events webhook.Publisher, feed websocket.EventPublisher, logger zerolog.Logger) *Service {
	return &Service{repo: repo, dir: dir, notifier: notifier, events: events, feed: feed, logger: logger}
}

// Actor resolves the calling user's scheduling identity.
func (s *Service) Actor(ctx context.Context, userID string) (*Actor, error) {
	return s.dir.ActorForUser(ctx, userID)
}

// Create books an appointment for the patient after checking the slot.
func (s *Service) Create(ctx context.Context, patientID uuid.UUID, req CreateRequest) (*Appointment, error) {
	if req.DoctorID == uuid.Nil {
		return nil, fmt.Errorf("doctor_id is required")
	}
	if req.ScheduledAt.IsZero() {
		return nil, fmt.Errorf("scheduled_at is required")
	}
	duration := req.DurationMinutes
	if duration == 0 {
		duration = DefaultDurationMinutes
	}
	if duration < MinDurationMinutes || duration > MaxDurationMinutes {
		return nil, fmt.Errorf("duration_minutes must be between %d and %d", MinDurationMinutes, MaxDurationMinutes)
	}
	apptType := req.Type
	if apptType == "" {
		apptType = TypeVideo
	}
	if !ValidType(apptType) {
		return nil, fmt.Errorf("invalid appointment type: %s", apptType)
	}

	doc, err := s.dir.DoctorByID(ctx, req.DoctorID)
	if err != nil {
		return nil, err
	}

	end := req.ScheduledAt.Add(time.Duration(duration) * time.Minute)
	conflicts, err := s.repo.CountConflicts(ctx, req.DoctorID, req.ScheduledAt, end, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if conflicts > 0 {
		return nil, ErrSlotTaken
	}

	a := &Appointment{
		PatientID:       patientID,
		DoctorID:        req.DoctorID,
		ScheduledAt:     req.ScheduledAt,
		DurationMinutes: duration,
		Type:            apptType,
		Status:          StatusScheduled,
		Reason:          req.Reason,
		Symptoms:        req.Symptoms,
		PatientNotes:    req.PatientNotes,
		FeeAmount:       doc.Fee,
		DoctorName:      doc.FullName,
		DoctorSpecialty: doc.Specialty,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("appointment_id", a.ID.String()).
		Str("doctor_id", a.DoctorID.String()).
		Time("scheduled_at", a.ScheduledAt).
		Msg("appointment booked")

	s.announce(ctx, a, webhook.EventAppointmentCreated, notification.TemplateAppointmentConfirm)
	return a, nil
}

// Get loads a single appointment with its display fields.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

// ListForPatient returns the patient's appointments newest first.
func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.ListByPatient(ctx, patientID, f, limit, offset)
}

// ListForDoctor returns the doctor's appointments oldest first.
func (s *Service) ListForDoctor(ctx context.Context, doctorID uuid.UUID, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.ListByDoctor(ctx, doctorID, f, limit, offset)
}

// Upcoming returns the caller's next booked appointments, soonest
// first.
func (s *Service) Upcoming(ctx context.Context, act *Actor, limit int) ([]*Appointment, error) {
	if act.PatientID == uuid.Nil && act.DoctorID == uuid.Nil {
		return []*Appointment{}, nil
	}
	return s.repo.ListUpcoming(ctx, act.PatientID, act.DoctorID, startOfDay(time.Now()), limit)
}

// Update applies a partial update, re-checking the slot when the
// appointment moves.
func (s *Service) Update(ctx context.Context, a *Appointment, req UpdateRequest) (*Appointment, error) {
	start := a.ScheduledAt
	duration := a.DurationMinutes
	if req.ScheduledAt != nil {
		start = *req.ScheduledAt
	}
	if req.DurationMinutes != nil {
		duration = *req.DurationMinutes
	}
	if duration < MinDurationMinutes || duration > MaxDurationMinutes {
		return nil, fmt.Errorf("duration_minutes must be between %d and %d", MinDurationMinutes, MaxDurationMinutes)
	}
	if req.ScheduledAt != nil || req.DurationMinutes != nil {
		end := start.Add(time.Duration(duration) * time.Minute)
		conflicts, err := s.repo.CountConflicts(ctx, a.DoctorID, start, end, a.ID)
		if err != nil {
			return nil, err
		}
		if conflicts > 0 {
			return nil, ErrSlotTaken
		}
	}
	if req.Type != nil {
		if !ValidType(*req.Type) {
			return nil, fmt.Errorf("invalid appointment type: %s", *req.Type)
		}
		a.Type = *req.Type
	}
	if req.Status != nil && *req.Status != a.Status {
		if !ValidStatus(*req.Status) {
			return nil, fmt.Errorf("invalid appointment status: %s", *req.Status)
		}
		now := time.Now()
		switch *req.Status {
		case StatusCancelled:
			if !a.Cancellable() {
				return nil, ErrNotCancellable
			}
			a.CancelledAt = &now
		case StatusCompleted:
			a.CompletedAt = &now
		}
		a.Status = *req.Status
	}
	a.ScheduledAt = start
	a.DurationMinutes = duration
	if req.PatientNotes != nil {
		a.PatientNotes = req.PatientNotes
	}
	if req.DoctorNotes != nil {
		a.DoctorNotes = req.DoctorNotes
	}
	if req.VideoLink != nil {
		a.VideoLink = req.VideoLink
	}
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Cancel moves a scheduled or confirmed appointment to cancelled and
// notifies both ends.
func (s *Service) Cancel(ctx context.Context, a *Appointment, by, reason string) (*Appointment, error) {
	if !a.Cancellable() {
		return nil, ErrNotCancellable
	}
	now := time.Now()
	a.Status = StatusCancelled
	a.CancelledAt = &now
	a.CancelledBy = &by
	if reason != "" {
		a.CancellationReason = &reason
	}
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("appointment_id", a.ID.String()).
		Str("cancelled_by", by).
		Msg("appointment cancelled")

	s.announce(ctx, a, webhook.EventAppointmentCancelled, notification.TemplateAppointmentCancel)
	return a, nil
}

// AvailableSlots computes the bookable intervals for a doctor on one
// day from their weekly schedule and existing bookings. Unknown
// doctors, doctors not taking consultations, and days off all yield an
// empty slot list rather than an error.
func (s *Service) AvailableSlots(ctx context.Context, req AvailableSlotsRequest) (*AvailableSlotsResponse, error) {
	if req.DoctorID == uuid.Nil {
		return nil, fmt.Errorf("doctor_id is required")
	}
	day, err := time.ParseInLocation("2006-01-02", req.Date, time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, want YYYY-MM-DD", req.Date)
	}
	slotMinutes := req.SlotDurationMinutes
	if slotMinutes <= 0 {
		slotMinutes = DefaultDurationMinutes
	}

	resp := &AvailableSlotsResponse{DoctorID: req.DoctorID, Date: req.Date, Slots: []TimeSlot{}}

	doc, err := s.dir.DoctorByID(ctx, req.DoctorID)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return resp, nil
		}
		return nil, err
	}
	if !doc.Accepting {
		return resp, nil
	}

	ds, ok := doc.Schedule[strings.ToLower(day.Weekday().String())]
	if !ok || !ds.Available {
		return resp, nil
	}

	start, err := clockOn(day, ds.Start, "09:00")
	if err != nil {
		return nil, err
	}
	end, err := clockOn(day, ds.End, "17:00")
	if err != nil {
		return nil, err
	}

	booked, err := s.repo.BookedStarts(ctx, req.DoctorID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	bookedSet := make(map[int64]struct{}, len(booked))
	for _, b := range booked {
		bookedSet[b.Unix()] = struct{}{}
	}

	now := time.Now()
	sameDay := now.Year() == day.Year() && now.YearDay() == day.YearDay()
	slotDur := time.Duration(slotMinutes) * time.Minute

	for cur := start; !cur.Add(slotDur).After(end); cur = cur.Add(slotDur) {
		_, taken := bookedSet[cur.Unix()]
		available := !taken
		if sameDay && !cur.After(now) {
			available = false
		}
		resp.Slots = append(resp.Slots, TimeSlot{
			StartTime: cur,
			EndTime:   cur.Add(slotDur),
			Available: available,
		})
	}
	return resp, nil
}

// announce pushes an appointment lifecycle change to the patient's
// inbox, webhook subscribers, and the live feed. Delivery failures are
// logged, never surfaced to the caller.
func (s *Service) announce(ctx context.Context, a *Appointment, eventType, templateID string) {
	if s.notifier != nil {
		pat, err := s.dir.PatientByID(ctx, a.PatientID)
		if err != nil {
			s.logger.Warn().Err(err).
				Str("appointment_id", a.ID.String()).
				Msg("patient lookup for notification failed")
		} else {
			if a.PatientName == "" {
				a.PatientName = pat.FullName
			}
			data := map[string]string{
				"patient_name": pat.FullName,
				"doctor_name":  a.DoctorName,
				"date":         a.ScheduledAt.Format("January 2, 2006"),
				"time":         a.ScheduledAt.Format("15:04"),
				"reason":       reasonOr(a.Reason),
			}
			if _, err := s.notifier.SendFromTemplate(ctx, templateID, data, pat.Email); err != nil {
				s.logger.Warn().Err(err).
					Str("appointment_id", a.ID.String()).
					Msg("appointment notification failed")
			}
		}
	}
	if s.events != nil {
		s.events.Deliver(ctx, webhook.NewEvent(eventType, "appointment", a.ID.String(), a))
	}
	if s.feed != nil {
		_ = s.feed.Publish(ctx, websocket.NewEvent(eventType, websocket.TopicAppointments, "appointment", a.ID.String(), a))
	}
}

func reasonOr(r *string) string {
	if r == nil || *r == "" {
		return "consultation"
	}
	return *r
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func clockOn(day time.Time, clock, fallback string) (time.Time, error) {
	if clock == "" {
		clock = fallback
	}
	t, err := time.ParseInLocation("15:04", clock, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid schedule time %q", clock)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, day.Location()), nil
}
