package vitals

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/athishkirthikjd/MedTech-AI/internal/platform/notification"
	"github.com/athishkirthikjd/MedTech-AI/internal/platform/webhook"
	"github.com/athishkirthikjd/MedTech-AI/internal/platform/websocket"
)

// PatientInfo carries patient contact details for alert delivery.
type PatientInfo struct {
	ID       uuid.UUID
	FullName string
	Email    string
}

// Directory resolves patients from the identity domain.
type Directory interface {
	PatientIDForUser(ctx context.Context, userID string) (uuid.UUID, error)
	PatientByID(ctx context.Context, id uuid.UUID) (*PatientInfo, error)
}

type Service struct {
	repo     RecordRepository
	dir      Directory
	notifier *notification.Manager
	events   webhook.Publisher
	feed     websocket.EventPublisher
	logger   zerolog.Logger
}

// NewService wires vitals tracking to its repository, the identity
// directory, and the alert fan-out. notifier, events, and feed may be
// nil.
func NewService(repo RecordRepository, dir Directory, notifier *notification.Manager, events webhook.Publisher, feed websocket.EventPublisher, logger zerolog.Logger) *Service {
	return &Service{repo: repo, dir: dir, notifier: notifier, events: events, feed: feed, logger: logger}
}

// PatientID resolves the calling user to their patient profile.
func (s *Service) PatientID(ctx context.Context, userID string) (uuid.UUID, error) {
	return s.dir.PatientIDForUser(ctx, userID)
}

// Record stores a new recording, evaluates it against the reference
// ranges, and raises alerts for anything critical.
func (s *Service) Record(ctx context.Context, patientID uuid.UUID, req CreateRequest) (*Record, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	source := req.Source
	if source == "" {
		source = SourceManual
	}
	if !ValidSource(source) {
		return nil, fmt.Errorf("invalid source: %s", source)
	}
	recordedAt := req.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}

	rec := &Record{
		PatientID:         patientID,
		RecordedAt:        recordedAt,
		Source:            source,
		DeviceName:        req.DeviceName,
		SystolicBP:        req.SystolicBP,
		DiastolicBP:       req.DiastolicBP,
		HeartRate:         req.HeartRate,
		SpO2:              req.SpO2,
		Temperature:       roundTemp(req.Temperature),
		Glucose:           req.Glucose,
		RespiratoryRate:   req.RespiratoryRate,
		Weight:            req.Weight,
		Height:            req.Height,
		AdditionalMetrics: req.AdditionalMetrics,
		Notes:             req.Notes,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, err
	}
	rec.Derive()

	if alerts := Evaluate(rec); len(alerts) > 0 {
		messages := make([]string, len(alerts))
		for i, a := range alerts {
			messages[i] = a.Message
		}
		s.logger.Warn().
			Str("patient_id", rec.PatientID.String()).
			Strs("alerts", messages).
			Msg("vitals outside reference range")
		s.raise(ctx, rec, CriticalOnly(alerts))
	}
	return rec, nil
}

// Latest returns the patient's most recent recording.
func (s *Service) Latest(ctx context.Context, patientID uuid.UUID) (*Record, error) {
	rec, err := s.repo.Latest(ctx, patientID)
	if err != nil {
		return nil, err
	}
	rec.Derive()
	return rec, nil
}

// History returns a page of the patient's recordings, newest first,
// optionally with summary statistics over the whole window.
func (s *Service) History(ctx context.Context, patientID uuid.UUID, f HistoryFilter, limit, offset int, includeSummary bool) (*HistoryResponse, error) {
	records, total, err := s.repo.History(ctx, patientID, f, limit, offset)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		rec.Derive()
	}
	if records == nil {
		records = []*Record{}
	}

	resp := &HistoryResponse{Records: records, Total: total}
	if includeSummary {
		summary, err := s.repo.Summarize(ctx, patientID, f)
		if err != nil {
			return nil, err
		}
		resp.Summary = summary
	}
	return resp, nil
}

// Get loads a single recording.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	rec.Derive()
	return rec, nil
}

// Update corrects a recording's measurements. Corrections do not
// re-raise alerts.
func (s *Service) Update(ctx context.Context, rec *Record, req UpdateRequest) (*Record, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if req.SystolicBP != nil {
		rec.SystolicBP = req.SystolicBP
	}
	if req.DiastolicBP != nil {
		rec.DiastolicBP = req.DiastolicBP
	}
	if req.HeartRate != nil {
		rec.HeartRate = req.HeartRate
	}
	if req.SpO2 != nil {
		rec.SpO2 = req.SpO2
	}
	if req.Temperature != nil {
		rec.Temperature = roundTemp(req.Temperature)
	}
	if req.Glucose != nil {
		rec.Glucose = req.Glucose
	}
	if req.Notes != nil {
		rec.Notes = req.Notes
	}
	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, err
	}
	rec.BloodPressure = ""
	rec.BMI = nil
	rec.Derive()
	return rec, nil
}

// Delete removes a recording.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// raise pushes critical alerts to the patient's inbox, webhook
// subscribers, and the live feed. Delivery failures are logged, never
// surfaced to the caller.
func (s *Service) raise(ctx context.Context, rec *Record, critical []Alert) {
	if len(critical) == 0 {
		return
	}
	if s.notifier != nil {
		pat, err := s.dir.PatientByID(ctx, rec.PatientID)
		if err != nil {
			s.logger.Warn().Err(err).
				Str("record_id", rec.ID.String()).
				Msg("patient lookup for vitals alert failed")
		} else {
			for _, a := range critical {
				data := map[string]string{
					"patient_name": pat.FullName,
					"metric":       a.Metric,
					"value":        formatValue(a.Value),
					"unit":         a.Unit,
					"date":         rec.RecordedAt.Format("January 2, 2006"),
					"level":        a.Severity,
				}
				if _, err := s.notifier.SendFromTemplate(ctx, notification.TemplateVitalsAlert, data, pat.Email); err != nil {
					s.logger.Warn().Err(err).
						Str("record_id", rec.ID.String()).
						Msg("vitals alert notification failed")
				}
			}
		}
	}
	payload := AlertEvent{Record: rec, Alerts: critical}
	if s.events != nil {
		s.events.Deliver(ctx, webhook.NewEvent(webhook.EventVitalsCritical, "vital_record", rec.ID.String(), payload))
	}
	if s.feed != nil {
		_ = s.feed.Publish(ctx, websocket.NewEvent(webhook.EventVitalsCritical, websocket.TopicVitals, "vital_record", rec.ID.String(), payload))
	}
}

func roundTemp(t *float64) *float64 {
	if t == nil {
		return nil
	}
	v := math.Round(*t*10) / 10
	return &v
}
