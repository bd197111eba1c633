package vitals

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/athishkirthikjd/MedTech-AI/internal/platform/notification"
	"github.com/athishkirthikjd/MedTech-AI/internal/platform/webhook"
	"github.com/athishkirthikjd/MedTech-AI/internal/platform/websocket"
)

// -- Mock Repository --

type mockRecordRepo struct {
	records map[uuid.UUID]*Record
}

func newMockRecordRepo() *mockRecordRepo {
	return &mockRecordRepo{records: make(map[uuid.UUID]*Record)}
}

func (m *mockRecordRepo) Create(_ context.Context, r *Record) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	r.CreatedAt = time.Now()
	r.UpdatedAt = time.Now()
	cp := *r
	m.records[r.ID] = &cp
	return nil
}

func (m *mockRecordRepo) GetByID(_ context.Context, id uuid.UUID) (*Record, error) {
	r, ok := m.records[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *mockRecordRepo) forPatient(patientID uuid.UUID, f HistoryFilter) []*Record {
	var out []*Record
	for _, r := range m.records {
		if r.PatientID != patientID {
			continue
		}
		if f.From != nil && r.RecordedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && r.RecordedAt.After(*f.To) {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.After(out[j].RecordedAt) })
	return out
}

func (m *mockRecordRepo) Latest(_ context.Context, patientID uuid.UUID) (*Record, error) {
	out := m.forPatient(patientID, HistoryFilter{})
	if len(out) == 0 {
		return nil, ErrRecordNotFound
	}
	return out[0], nil
}

func (m *mockRecordRepo) History(_ context.Context, patientID uuid.UUID, f HistoryFilter, limit, offset int) ([]*Record, int, error) {
	out := m.forPatient(patientID, f)
	total := len(out)
	if offset >= len(out) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], total, nil
}

func (m *mockRecordRepo) Summarize(_ context.Context, patientID uuid.UUID, f HistoryFilter) (*Summary, error) {
	out := m.forPatient(patientID, f)
	s := &Summary{TotalRecords: len(out)}
	if len(out) == 0 {
		return s, nil
	}

	avg := func(pick func(*Record) *float64) *float64 {
		var sum float64
		var n int
		for _, r := range out {
			if v := pick(r); v != nil {
				sum += *v
				n++
			}
		}
		if n == 0 {
			return nil
		}
		v := sum / float64(n)
		return &v
	}
	s.AvgSystolicBP = avg(func(r *Record) *float64 { return intVal(r.SystolicBP) })
	s.AvgDiastolicBP = avg(func(r *Record) *float64 { return intVal(r.DiastolicBP) })
	s.AvgHeartRate = avg(func(r *Record) *float64 { return intVal(r.HeartRate) })
	s.AvgSpO2 = avg(func(r *Record) *float64 { return intVal(r.SpO2) })
	s.AvgTemperature = avg(func(r *Record) *float64 { return r.Temperature })
	s.AvgGlucose = avg(func(r *Record) *float64 { return intVal(r.Glucose) })
	round1(s.AvgSystolicBP)
	round1(s.AvgDiastolicBP)
	round1(s.AvgHeartRate)
	round1(s.AvgSpO2)
	round1(s.AvgTemperature)
	round1(s.AvgGlucose)

	first := out[len(out)-1].RecordedAt
	last := out[0].RecordedAt
	if f.From != nil {
		first = *f.From
	}
	if f.To != nil {
		last = *f.To
	}
	s.PeriodStart = first.Format("2006-01-02")
	s.PeriodEnd = last.Format("2006-01-02")
	return s, nil
}

func (m *mockRecordRepo) Update(_ context.Context, r *Record) error {
	if _, ok := m.records[r.ID]; !ok {
		return ErrRecordNotFound
	}
	r.UpdatedAt = time.Now()
	cp := *r
	m.records[r.ID] = &cp
	return nil
}

func (m *mockRecordRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.records[id]; !ok {
		return ErrRecordNotFound
	}
	delete(m.records, id)
	return nil
}

// -- Mock Directory --

type mockDirectory struct {
	patientsByUser map[string]uuid.UUID
	patients       map[uuid.UUID]*PatientInfo
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{
		patientsByUser: make(map[string]uuid.UUID),
		patients:       make(map[uuid.UUID]*PatientInfo),
	}
}

func (m *mockDirectory) PatientIDForUser(_ context.Context, userID string) (uuid.UUID, error) {
	id, ok := m.patientsByUser[userID]
	if !ok {
		return uuid.Nil, errors.New("user is not a patient")
	}
	return id, nil
}

func (m *mockDirectory) PatientByID(_ context.Context, id uuid.UUID) (*PatientInfo, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, errors.New("Patient not found")
	}
	return p, nil
}

func (m *mockDirectory) seed(userID string) uuid.UUID {
	id := uuid.New()
	m.patientsByUser[userID] = id
	m.patients[id] = &PatientInfo{ID: id, FullName: "Ravi Kumar", Email: "ravi@example.com"}
	return id
}

// -- Mock Fan-out --

type mockPublisher struct {
	events []webhook.Event
}

func (m *mockPublisher) Deliver(_ context.Context, event webhook.Event) []webhook.DeliveryResult {
	m.events = append(m.events, event)
	return nil
}

type mockFeed struct {
	events []websocket.Event
}

func (m *mockFeed) Publish(_ context.Context, event websocket.Event) error {
	m.events = append(m.events, event)
	return nil
}

func newTestService() (*Service, *mockRecordRepo, *mockDirectory, *notification.MockEmailSender, *mockPublisher, *mockFeed) {
	repo := newMockRecordRepo()
	dir := newMockDirectory()
	email := &notification.MockEmailSender{}
	notifier := notification.NewManager(email, &notification.MockSMSSender{}, notification.NewTemplateEngine(), true)
	events := &mockPublisher{}
	feed := &mockFeed{}
	svc := NewService(repo, dir, notifier, events, feed, zerolog.Nop())
	return svc, repo, dir, email, events, feed
}

// -- Record --

func TestRecordDefaults(t *testing.T) {
	svc, repo, dir, _, _, _ := newTestService()
	patID := dir.seed("sb-pat")

	rec, err := svc.Record(context.Background(), patID, CreateRequest{
		SystolicBP:  ptrInt(120),
		DiastolicBP: ptrInt(80),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rec.ID == uuid.Nil {
		t.Error("expected record id to be assigned")
	}
	if rec.Source != SourceManual {
		t.Errorf("source = %s, want default %s", rec.Source, SourceManual)
	}
	if rec.RecordedAt.IsZero() {
		t.Error("expected recorded_at to default to now")
	}
	if rec.BloodPressure != "120/80" {
		t.Errorf("blood pressure = %q, want 120/80", rec.BloodPressure)
	}
	if _, err := repo.GetByID(context.Background(), rec.ID); err != nil {
		t.Errorf("record not persisted: %v", err)
	}
}

func TestRecordRoundsTemperature(t *testing.T) {
	svc, _, dir, _, _, _ := newTestService()
	patID := dir.seed("sb-pat")

	rec, err := svc.Record(context.Background(), patID, CreateRequest{Temperature: ptrFloat(36.6789)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *rec.Temperature != 36.7 {
		t.Errorf("temperature = %v, want 36.7", *rec.Temperature)
	}
}

func TestRecordValidation(t *testing.T) {
	svc, _, dir, _, _, _ := newTestService()
	patID := dir.seed("sb-pat")

	cases := []struct {
		name    string
		req     CreateRequest
		wantErr string
	}{
		{"systolic too high", CreateRequest{SystolicBP: ptrInt(300)}, "systolic_bp must be between"},
		{"heart rate too low", CreateRequest{HeartRate: ptrInt(10)}, "heart_rate must be between"},
		{"spo2 over scale", CreateRequest{SpO2: ptrInt(105)}, "spo2 must be between"},
		{"temperature too low", CreateRequest{Temperature: ptrFloat(30)}, "temperature must be between"},
		{"bad source", CreateRequest{Source: "telepathy"}, "invalid source"},
	}
	for _, tc := range cases {
		_, err := svc.Record(context.Background(), patID, tc.req)
		if err == nil {
			t.Errorf("%s: expected error", tc.name)
			continue
		}
		if !strings.Contains(err.Error(), tc.wantErr) {
			t.Errorf("%s: error = %q, want prefix %q", tc.name, err, tc.wantErr)
		}
	}
}

func TestRecordCriticalFansOut(t *testing.T) {
	svc, _, dir, email, events, feed := newTestService()
	patID := dir.seed("sb-pat")

	rec, err := svc.Record(context.Background(), patID, CreateRequest{SpO2: ptrInt(85)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calls := email.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 alert email, got %d", len(calls))
	}
	if calls[0].To != "ravi@example.com" {
		t.Errorf("alert recipient = %s, want ravi@example.com", calls[0].To)
	}
	if !strings.Contains(calls[0].Body, "Oxygen Saturation") {
		t.Errorf("alert body missing metric: %s", calls[0].Body)
	}

	if len(events.events) != 1 {
		t.Fatalf("expected 1 webhook event, got %d", len(events.events))
	}
	if events.events[0].Type != webhook.EventVitalsCritical {
		t.Errorf("event type = %s, want %s", events.events[0].Type, webhook.EventVitalsCritical)
	}
	if events.events[0].ResourceID != rec.ID.String() {
		t.Errorf("event resource id = %s, want %s", events.events[0].ResourceID, rec.ID)
	}

	if len(feed.events) != 1 || feed.events[0].Topic != websocket.TopicVitals {
		t.Errorf("expected one feed event on %s, got %+v", websocket.TopicVitals, feed.events)
	}
}

func TestRecordWarningDoesNotFanOut(t *testing.T) {
	svc, _, dir, email, events, feed := newTestService()
	patID := dir.seed("sb-pat")

	if _, err := svc.Record(context.Background(), patID, CreateRequest{SystolicBP: ptrInt(150)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := len(email.Calls()); got != 0 {
		t.Errorf("expected no emails for a warning, got %d", got)
	}
	if len(events.events) != 0 {
		t.Errorf("expected no webhook events for a warning, got %d", len(events.events))
	}
	if len(feed.events) != 0 {
		t.Errorf("expected no feed events for a warning, got %d", len(feed.events))
	}
}

// -- Latest / History --

func seedRecord(t *testing.T, repo *mockRecordRepo, patID uuid.UUID, at time.Time, sys int) *Record {
	t.Helper()
	rec := &Record{
		PatientID:  patID,
		RecordedAt: at,
		Source:     SourceManual,
		SystolicBP: ptrInt(sys),
	}
	if err := repo.Create(context.Background(), rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return rec
}

func TestLatest(t *testing.T) {
	svc, repo, dir, _, _, _ := newTestService()
	patID := dir.seed("sb-pat")

	seedRecord(t, repo, patID, time.Now().Add(-48*time.Hour), 118)
	newest := seedRecord(t, repo, patID, time.Now().Add(-1*time.Hour), 126)

	rec, err := svc.Latest(context.Background(), patID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.ID != newest.ID {
		t.Errorf("latest returned %s, want %s", rec.ID, newest.ID)
	}
}

func TestLatestEmpty(t *testing.T) {
	svc, _, dir, _, _, _ := newTestService()
	patID := dir.seed("sb-pat")

	if _, err := svc.Latest(context.Background(), patID); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("error = %v, want ErrRecordNotFound", err)
	}
}

func TestHistoryPagingAndSummary(t *testing.T) {
	svc, repo, dir, _, _, _ := newTestService()
	patID := dir.seed("sb-pat")

	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	seedRecord(t, repo, patID, base, 110)
	seedRecord(t, repo, patID, base.AddDate(0, 0, 1), 120)
	seedRecord(t, repo, patID, base.AddDate(0, 0, 2), 131)

	resp, err := svc.History(context.Background(), patID, HistoryFilter{}, 2, 0, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Total != 3 || len(resp.Records) != 2 {
		t.Fatalf("expected total=3 page=2, got total=%d page=%d", resp.Total, len(resp.Records))
	}
	if !resp.Records[0].RecordedAt.After(resp.Records[1].RecordedAt) {
		t.Error("history should be newest first")
	}

	if resp.Summary == nil {
		t.Fatal("expected summary")
	}
	if resp.Summary.TotalRecords != 3 {
		t.Errorf("summary total = %d, want 3", resp.Summary.TotalRecords)
	}
	// (110+120+131)/3 = 120.3 rounded to one decimal.
	if resp.Summary.AvgSystolicBP == nil || *resp.Summary.AvgSystolicBP != 120.3 {
		t.Errorf("avg systolic = %v, want 120.3", resp.Summary.AvgSystolicBP)
	}
	if resp.Summary.AvgHeartRate != nil {
		t.Errorf("expected nil heart-rate average with no readings, got %v", *resp.Summary.AvgHeartRate)
	}
	if resp.Summary.PeriodStart != "2026-03-02" || resp.Summary.PeriodEnd != "2026-03-04" {
		t.Errorf("period = %s..%s, want 2026-03-02..2026-03-04", resp.Summary.PeriodStart, resp.Summary.PeriodEnd)
	}
}

func TestHistoryDateWindow(t *testing.T) {
	svc, repo, dir, _, _, _ := newTestService()
	patID := dir.seed("sb-pat")

	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	seedRecord(t, repo, patID, base, 110)
	seedRecord(t, repo, patID, base.AddDate(0, 0, 5), 120)

	from := base.AddDate(0, 0, 3)
	resp, err := svc.History(context.Background(), patID, HistoryFilter{From: &from}, 50, 0, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Total != 1 {
		t.Errorf("expected 1 record in window, got %d", resp.Total)
	}
	if resp.Summary != nil {
		t.Error("summary should be omitted when not requested")
	}
}

func TestHistoryEmpty(t *testing.T) {
	svc, _, dir, _, _, _ := newTestService()
	patID := dir.seed("sb-pat")

	resp, err := svc.History(context.Background(), patID, HistoryFilter{}, 50, 0, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Records == nil || len(resp.Records) != 0 {
		t.Errorf("expected empty records slice, got %v", resp.Records)
	}
	if resp.Summary == nil || resp.Summary.TotalRecords != 0 {
		t.Errorf("expected zero-count summary, got %+v", resp.Summary)
	}
}

// -- Update / Delete --

func TestUpdateCorrectsMeasurements(t *testing.T) {
	svc, repo, dir, _, _, _ := newTestService()
	patID := dir.seed("sb-pat")
	rec := seedRecord(t, repo, patID, time.Now(), 120)

	loaded, err := svc.Get(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	updated, err := svc.Update(context.Background(), loaded, UpdateRequest{
		SystolicBP:  ptrInt(118),
		DiastolicBP: ptrInt(76),
		Notes:       ptrStr("corrected cuff reading"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *updated.SystolicBP != 118 {
		t.Errorf("systolic = %d, want 118", *updated.SystolicBP)
	}
	if updated.BloodPressure != "118/76" {
		t.Errorf("blood pressure = %q, want 118/76", updated.BloodPressure)
	}

	stored, err := repo.GetByID(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.Notes == nil || *stored.Notes != "corrected cuff reading" {
		t.Errorf("notes not persisted: %v", stored.Notes)
	}
}

func TestUpdateValidation(t *testing.T) {
	svc, repo, dir, _, _, _ := newTestService()
	patID := dir.seed("sb-pat")
	rec := seedRecord(t, repo, patID, time.Now(), 120)

	if _, err := svc.Update(context.Background(), rec, UpdateRequest{Glucose: ptrInt(700)}); err == nil {
		t.Fatal("expected error for out-of-bounds glucose")
	}
}

func TestDelete(t *testing.T) {
	svc, repo, dir, _, _, _ := newTestService()
	patID := dir.seed("sb-pat")
	rec := seedRecord(t, repo, patID, time.Now(), 120)

	if err := svc.Delete(context.Background(), rec.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := repo.GetByID(context.Background(), rec.ID); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("record should be gone, got %v", err)
	}

	if err := svc.Delete(context.Background(), rec.ID); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("second delete should report not found, got %v", err)
	}
}
