package emergency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/athishkirthikjd/MedTech-AI/internal/platform/ai"
	"github.com/athishkirthikjd/MedTech-AI/internal/platform/notification"
	"github.com/athishkirthikjd/MedTech-AI/internal/platform/webhook"
	"github.com/athishkirthikjd/MedTech-AI/internal/platform/websocket"
)

var ErrNotActive = errors.New("Emergency event is no longer active")

const assessSystemPrompt = `You are an emergency triage assistant supporting a medical dispatch team.
Assess the reported situation conservatively: when in doubt, assign the higher severity.`

// Actor identifies the caller inside the emergency domain. PatientID
// is Nil unless the account has a patient profile.
type Actor struct {
	UserID    string
	Role      string
	PatientID uuid.UUID
}

// ContactInfo is the emergency contact on a patient's profile.
type ContactInfo struct {
	Name         string
	Phone        string
	Relationship string
}

// PatientInfo is the slice of a patient profile the SOS pipeline
// needs: identity for the alert message and clinical background for
// the severity prompt. Contact is nil when none is on file.
type PatientInfo struct {
	ID                uuid.UUID
	FullName          string
	BloodType         string
	Allergies         []string
	ChronicConditions []string
	Contact           *ContactInfo
}

// Directory resolves identity data for this domain.
type Directory interface {
	ActorForUser(ctx context.Context, userID string) (*Actor, error)
	PatientByID(ctx context.Context, id uuid.UUID) (*PatientInfo, error)
}

type Service struct {
	repo     EventRepository
	dir      Directory
	model    ai.Client
	notifier *notification.Manager
	events   webhook.Publisher
	feed     websocket.EventPublisher
	logger   zerolog.Logger
}

// NewService wires the SOS pipeline. model, notifier, events, and feed
// may each be nil; the affected step is skipped.
func NewService(repo EventRepository, dir Directory, model ai.Client, notifier *notification.Manager, events webhook.Publisher, feed websocket.EventPublisher, logger zerolog.Logger) *Service {
	return &Service{repo: repo, dir: dir, model: model, notifier: notifier, events: events, feed: feed, logger: logger}
}

// Actor resolves the calling user's emergency-domain identity.
func (s *Service) Actor(ctx context.Context, userID string) (*Actor, error) {
	return s.dir.ActorForUser(ctx, userID)
}

// Trigger raises a new SOS event: assesses severity, alerts the
// emergency contact, and fans the event out to subscribers. The event
// is created even when every downstream step fails; losing an SOS is
// the one unacceptable outcome here.
func (s *Service) Trigger(ctx context.Context, patientID uuid.UUID, req TriggerRequest) (*Event, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	pat, err := s.dir.PatientByID(ctx, patientID)
	if err != nil {
		return nil, err
	}

	e := &Event{
		PatientID:   patientID,
		Type:        NormalizeType(req.Type),
		Status:      StatusTriggered,
		Description: req.Description,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		Address:     req.Address,
		TriggeredAt: time.Now(),
	}
	e.Severity, e.AIAnalysis = s.assess(ctx, e, pat)

	if err := s.repo.Create(ctx, e); err != nil {
		return nil, err
	}

	s.logger.Error().
		Str("event_id", e.ID.String()).
		Str("patient_id", patientID.String()).
		Str("type", e.Type).
		Str("severity", e.Severity).
		Msg("emergency triggered")

	s.alertContact(ctx, e, pat)
	s.publish(ctx, webhook.EventEmergencyTriggered, e)
	return e, nil
}

// assess asks the model for a severity verdict. Any failure, or a
// missing description, falls back to medium; cardiac and breathing
// events never come back below medium.
func (s *Service) assess(ctx context.Context, e *Event, pat *PatientInfo) (string, map[string]interface{}) {
	severity := SeverityMedium
	var analysis map[string]interface{}

	if e.Description != nil && *e.Description != "" && s.model != nil && s.model.Available() {
		out, err := s.model.GenerateJSON(ctx, assessPrompt(e, pat), assessSystemPrompt)
		if err != nil {
			s.logger.Error().Err(err).Msg("emergency severity assessment failed")
		} else if out != nil {
			analysis = out
			if v, ok := out["severity"].(string); ok && ValidSeverity(strings.ToLower(v)) {
				severity = strings.ToLower(v)
			}
		}
	}

	if (e.Type == TypeCardiac || e.Type == TypeBreathing) && severity == SeverityLow {
		severity = SeverityMedium
	}
	return severity, analysis
}

func assessPrompt(e *Event, pat *PatientInfo) string {
	bloodType := "Unknown"
	if pat.BloodType != "" {
		bloodType = pat.BloodType
	}
	allergies := "None known"
	if len(pat.Allergies) > 0 {
		allergies = strings.Join(pat.Allergies, ", ")
	}
	conditions := "None known"
	if len(pat.ChronicConditions) > 0 {
		conditions = strings.Join(pat.ChronicConditions, ", ")
	}

	return fmt.Sprintf(`Analyze this emergency situation and provide a structured response.

Emergency Type: %s
Description: %s

Patient Info:
- Blood Type: %s
- Allergies: %s
- Chronic Conditions: %s

Respond with JSON:
{
    "severity": "low" | "medium" | "high" | "critical",
    "immediate_actions": ["action1", "action2"],
    "dispatch_recommendation": "ambulance" | "police" | "fire" | "all" | "none",
    "medical_considerations": ["consideration1"],
    "eta_priority": "immediate" | "urgent" | "routine"
}`, e.Type, *e.Description, bloodType, allergies, conditions)
}

// alertContact sends the SOS text to the patient's emergency contact
// and records the attempt on the event's notification log.
func (s *Service) alertContact(ctx context.Context, e *Event, pat *PatientInfo) {
	if s.notifier == nil {
		return
	}
	if pat.Contact == nil || pat.Contact.Phone == "" {
		s.logger.Warn().
			Str("event_id", e.ID.String()).
			Msg("no emergency contact on file, skipping alert")
		return
	}

	data := map[string]string{
		"patient_name": pat.FullName,
		"event_type":   e.Type,
		"severity":     e.Severity,
		"location":     locationLine(e),
	}
	entry := NotificationEntry{
		Channel:   "sms",
		Recipient: pat.Contact.Phone,
		SentAt:    time.Now(),
	}
	if _, err := s.notifier.SendFromTemplate(ctx, notification.TemplateEmergencyAlert, data, pat.Contact.Phone); err != nil {
		entry.Error = err.Error()
		s.logger.Warn().Err(err).Str("event_id", e.ID.String()).Msg("emergency contact alert failed")
	} else {
		e.ContactsNotified = true
	}
	e.NotificationLog = append(e.NotificationLog, entry)

	if err := s.repo.Update(ctx, e); err != nil {
		s.logger.Warn().Err(err).Str("event_id", e.ID.String()).Msg("persisting notification log failed")
	}
}

// locationLine renders the best location hint available for the alert
// message.
func locationLine(e *Event) string {
	if e.Address != nil && *e.Address != "" {
		return *e.Address
	}
	if e.Latitude != nil && e.Longitude != nil {
		return fmt.Sprintf("%g, %g", *e.Latitude, *e.Longitude)
	}
	return "Unknown"
}

// UpdateStatus moves the event through its lifecycle on behalf of the
// acting user. Transitions outside the lifecycle graph are rejected.
func (s *Service) UpdateStatus(ctx context.Context, e *Event, req StatusUpdateRequest, act *Actor) (*Event, error) {
	now := time.Now()

	switch req.Status {
	case StatusAcknowledged:
		if e.Status != StatusTriggered {
			return nil, fmt.Errorf("cannot acknowledge an event in status %s", e.Status)
		}
		e.Status = StatusAcknowledged
		e.AcknowledgedAt = &now
		e.AcknowledgedBy = &act.UserID
		if req.Notes != nil && *req.Notes != "" {
			e.ResolutionNotes = req.Notes
		}

	case StatusDispatched:
		if e.Status != StatusTriggered && e.Status != StatusAcknowledged {
			return nil, fmt.Errorf("cannot dispatch responders for an event in status %s", e.Status)
		}
		e.Status = StatusDispatched
		appendNote(e, "Dispatched", req.Notes)

	case StatusResolved:
		if !e.Active() {
			return nil, fmt.Errorf("cannot resolve an event in status %s", e.Status)
		}
		e.Status = StatusResolved
		e.ResolvedAt = &now
		e.ResolvedBy = &act.UserID
		appendNote(e, "Resolution", req.Notes)

	case StatusCancelled:
		if !e.Active() {
			return nil, ErrNotActive
		}
		e.Status = StatusCancelled
		e.ResolvedAt = &now
		e.ResolvedBy = &act.UserID
		appendNote(e, "Cancelled", req.Notes)

	default:
		return nil, fmt.Errorf("Invalid status: %s", req.Status)
	}

	if err := s.repo.Update(ctx, e); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("event_id", e.ID.String()).
		Str("status", e.Status).
		Str("by", act.UserID).
		Msg("emergency status updated")

	s.publish(ctx, webhook.EventEmergencyStatusChanged, e)
	return e, nil
}

func appendNote(e *Event, label string, notes *string) {
	if notes == nil || *notes == "" {
		return
	}
	line := fmt.Sprintf("%s: %s", label, *notes)
	if e.ResolutionNotes != nil && *e.ResolutionNotes != "" {
		line = *e.ResolutionNotes + "\n" + line
	}
	e.ResolutionNotes = &line
}

// UpdateLocation refreshes the patient's position while the event is
// still being responded to.
func (s *Service) UpdateLocation(ctx context.Context, e *Event, req LocationUpdateRequest) (*Event, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if !e.Active() {
		return nil, ErrNotActive
	}

	e.Latitude = &req.Latitude
	e.Longitude = &req.Longitude
	if req.Address != nil && *req.Address != "" {
		e.Address = req.Address
	}

	if err := s.repo.Update(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Get loads one event.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Event, error) {
	return s.repo.GetByID(ctx, id)
}

// EventsForPatient lists the patient's own events, newest first.
func (s *Service) EventsForPatient(ctx context.Context, patientID uuid.UUID, includeResolved bool) ([]*Event, error) {
	events, err := s.repo.ListForPatient(ctx, patientID, includeResolved)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []*Event{}
	}
	return events, nil
}

// ActiveEvents lists every event awaiting response for the dispatch
// view.
func (s *Service) ActiveEvents(ctx context.Context) ([]*Event, error) {
	events, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []*Event{}
	}
	return events, nil
}

func (s *Service) publish(ctx context.Context, eventType string, e *Event) {
	if s.events != nil {
		s.events.Deliver(ctx, webhook.NewEvent(eventType, "emergency_event", e.ID.String(), e))
	}
	if s.feed != nil {
		_ = s.feed.Publish(ctx, websocket.NewEvent(eventType, websocket.TopicEmergency, "emergency_event", e.ID.String(), e))
	}
}
