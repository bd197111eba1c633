package scheduling

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

type mockAppointmentRepo struct {
	appts map[uuid.UUID]*Appointment
}

func newMockAppointmentRepo() *mockAppointmentRepo {
	return &mockAppointmentRepo{appts: make(map[uuid.UUID]*Appointment)}
}

func (m *mockAppointmentRepo) Create(_ context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = time.Now()
	a.UpdatedAt = time.Now()
	cp := *a
	m.appts[a.ID] = &cp
	return nil
}

func (m *mockAppointmentRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockAppointmentRepo) Update(_ context.Context, a *Appointment) error {
	if _, ok := m.appts[a.ID]; !ok {
		return ErrAppointmentNotFound
	}
	a.UpdatedAt = time.Now()
	cp := *a
	m.appts[a.ID] = &cp
	return nil
}

func (m *mockAppointmentRepo) matching(f ListFilter, keep func(*Appointment) bool) []*Appointment {
	var out []*Appointment
	for _, a := range m.appts {
		if !keep(a) {
			continue
		}
		if len(f.Statuses) > 0 {
			found := false
			for _, s := range f.Statuses {
				if a.Status == s {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		if f.From != nil && a.ScheduledAt.Before(*f.From) {
			continue
		}
		if f.To != nil && a.ScheduledAt.After(*f.To) {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	return out
}

func page(appts []*Appointment, limit, offset int) []*Appointment {
	if offset >= len(appts) {
		return nil
	}
	end := offset + limit
	if end > len(appts) {
		end = len(appts)
	}
	return appts[offset:end]
}

func (m *mockAppointmentRepo) ListByPatient(_ context.Context, patientID uuid.UUID, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	out := m.matching(f, func(a *Appointment) bool { return a.PatientID == patientID })
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.After(out[j].ScheduledAt) })
	return page(out, limit, offset), len(out), nil
}

func (m *mockAppointmentRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	out := m.matching(f, func(a *Appointment) bool { return a.DoctorID == doctorID })
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return page(out, limit, offset), len(out), nil
}

func (m *mockAppointmentRepo) ListUpcoming(_ context.Context, patientID, doctorID uuid.UUID, from time.Time, limit int) ([]*Appointment, error) {
	out := m.matching(ListFilter{Statuses: []string{StatusScheduled, StatusConfirmed}, From: &from}, func(a *Appointment) bool {
		return (patientID != uuid.Nil && a.PatientID == patientID) || (doctorID != uuid.Nil && a.DoctorID == doctorID)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return page(out, limit, 0), nil
}

func (m *mockAppointmentRepo) CountConflicts(_ context.Context, doctorID uuid.UUID, start, end time.Time, exclude uuid.UUID) (int, error) {
	n := 0
	for _, a := range m.appts {
		if a.DoctorID != doctorID || a.ID == exclude || !a.Active() {
			continue
		}
		aEnd := a.End()
		spansStart := !a.ScheduledAt.After(start) && aEnd.After(start)
		spansEnd := a.ScheduledAt.Before(end) && !aEnd.Before(end)
		inside := !a.ScheduledAt.Before(start) && !aEnd.After(end)
		if spansStart || spansEnd || inside {
			n++
		}
	}
	return n, nil
}

func (m *mockAppointmentRepo) BookedStarts(_ context.Context, doctorID uuid.UUID, from, to time.Time) ([]time.Time, error) {
	var out []time.Time
	for _, a := range m.appts {
		if a.DoctorID != doctorID || !a.Active() {
			continue
		}
		if a.ScheduledAt.Before(from) || !a.ScheduledAt.Before(to) {
			continue
		}
		out = append(out, a.ScheduledAt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

// -- Mock Directory --

type mockDirectory struct {
	actors   map[string]*Actor
	doctors  map[uuid.UUID]*DoctorInfo
	patients map[uuid.UUID]*PatientInfo
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{
		actors:   make(map[string]*Actor),
		doctors:  make(map[uuid.UUID]*DoctorInfo),
		patients: make(map[uuid.UUID]*PatientInfo),
	}
}

func (m *mockDirectory) ActorForUser(_ context.Context, userID string) (*Actor, error) {
	act, ok := m.actors[userID]
	if !ok {
		return nil, errors.New("User not found")
	}
	return act, nil
}

func (m *mockDirectory) DoctorByID(_ context.Context, id uuid.UUID) (*DoctorInfo, error) {
	d, ok := m.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return d, nil
}

func (m *mockDirectory) PatientByID(_ context.Context, id uuid.UUID) (*PatientInfo, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, errors.New("Patient not found")
	}
	return p, nil
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

// -- Fixtures --

func newTestService() (*Service, *mockAppointmentRepo, *mockDirectory, *notification.MockEmailSender, *mockPublisher, *mockFeed) {
	repo := newMockAppointmentRepo()
	dir := newMockDirectory()
	email := &notification.MockEmailSender{}
	notifier := notification.NewManager(email, &notification.MockSMSSender{}, notification.NewTemplateEngine(), true)
	events := &mockPublisher{}
	feed := &mockFeed{}
	svc := NewService(repo, dir, notifier, events, feed, zerolog.Nop())
	return svc, repo, dir, email, events, feed
}

func seedDoctor(dir *mockDirectory, schedule WeeklySchedule) uuid.UUID {
	id := uuid.New()
	dir.doctors[id] = &DoctorInfo{
		ID:        id,
		FullName:  "Dr. Asha Rao",
		Specialty: "cardiology",
		Fee:       150,
		Accepting: true,
		Schedule:  schedule,
	}
	return id
}

func seedPatient(dir *mockDirectory) uuid.UUID {
	id := uuid.New()
	dir.patients[id] = &PatientInfo{ID: id, FullName: "Ravi Kumar", Email: "ravi@example.com"}
	return id
}

// nextMonday returns the next Monday strictly after today, at midnight
// local time. Keeps slot tests off the same-day past-slot rule.
func nextMonday() time.Time {
	d := startOfDay(time.Now()).AddDate(0, 0, 1)
	for d.Weekday() != time.Monday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// -- Create --

func TestCreateBooksSlot(t *testing.T) {
	svc, repo, dir, email, events, feed := newTestService()
	docID := seedDoctor(dir, nil)
	patID := seedPatient(dir)

	when := nextMonday().Add(10 * time.Hour)
	a, err := svc.Create(context.Background(), patID, CreateRequest{
		DoctorID:    docID,
		ScheduledAt: when,
		Reason:      ptrStr("chest pain"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if a.ID == uuid.Nil {
		t.Error("expected appointment id to be assigned")
	}
	if a.Status != StatusScheduled {
		t.Errorf("status = %s, want %s", a.Status, StatusScheduled)
	}
	if a.DurationMinutes != DefaultDurationMinutes {
		t.Errorf("duration = %d, want default %d", a.DurationMinutes, DefaultDurationMinutes)
	}
	if a.Type != TypeVideo {
		t.Errorf("type = %s, want default %s", a.Type, TypeVideo)
	}
	if a.FeeAmount != 150 {
		t.Errorf("fee = %v, want doctor's fee 150", a.FeeAmount)
	}
	if _, err := repo.GetByID(context.Background(), a.ID); err != nil {
		t.Errorf("appointment not persisted: %v", err)
	}

	calls := email.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 confirmation email, got %d", len(calls))
	}
	if calls[0].To != "ravi@example.com" {
		t.Errorf("email recipient = %s, want ravi@example.com", calls[0].To)
	}
	if len(events.events) != 1 || events.events[0].Type != webhook.EventAppointmentCreated {
		t.Errorf("expected one %s webhook event, got %+v", webhook.EventAppointmentCreated, events.events)
	}
	if len(feed.events) != 1 || feed.events[0].Topic != websocket.TopicAppointments {
		t.Errorf("expected one feed event on %s, got %+v", websocket.TopicAppointments, feed.events)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _, dir, _, _, _ := newTestService()
	docID := seedDoctor(dir, nil)
	patID := seedPatient(dir)
	when := nextMonday().Add(10 * time.Hour)

	cases := []struct {
		name    string
		req     CreateRequest
		wantErr string
	}{
		{"missing doctor", CreateRequest{ScheduledAt: when}, "doctor_id is required"},
		{"missing time", CreateRequest{DoctorID: docID}, "scheduled_at is required"},
		{"duration too short", CreateRequest{DoctorID: docID, ScheduledAt: when, DurationMinutes: 10}, "duration_minutes must be between"},
		{"duration too long", CreateRequest{DoctorID: docID, ScheduledAt: when, DurationMinutes: 180}, "duration_minutes must be between"},
		{"bad type", CreateRequest{DoctorID: docID, ScheduledAt: when, Type: "telepathy"}, "invalid appointment type"},
	}
	for _, tc := range cases {
		_, err := svc.Create(context.Background(), patID, tc.req)
		if err == nil {
			t.Errorf("%s: expected error", tc.name)
			continue
		}
		if !strings.Contains(err.Error(), tc.wantErr) {
			t.Errorf("%s: error = %q, want prefix %q", tc.name, err, tc.wantErr)
		}
	}
}

func TestCreateUnknownDoctor(t *testing.T) {
	svc, _, dir, _, _, _ := newTestService()
	patID := seedPatient(dir)

	_, err := svc.Create(context.Background(), patID, CreateRequest{
		DoctorID:    uuid.New(),
		ScheduledAt: nextMonday().Add(10 * time.Hour),
	})
	if !errors.Is(err, ErrDoctorNotFound) {
		t.Fatalf("error = %v, want ErrDoctorNotFound", err)
	}
}

func TestCreateConflictRejected(t *testing.T) {
	svc, _, dir, _, _, _ := newTestService()
	docID := seedDoctor(dir, nil)
	patID := seedPatient(dir)
	base := nextMonday().Add(10 * time.Hour)

	if _, err := svc.Create(context.Background(), patID, CreateRequest{DoctorID: docID, ScheduledAt: base, DurationMinutes: 60}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	overlaps := []struct {
		name  string
		start time.Time
		mins  int
	}{
		{"same start", base, 60},
		{"straddles start", base.Add(-15 * time.Minute), 30},
		{"straddles end", base.Add(45 * time.Minute), 30},
		{"wholly inside", base.Add(15 * time.Minute), 15},
	}
	for _, tc := range overlaps {
		_, err := svc.Create(context.Background(), patID, CreateRequest{DoctorID: docID, ScheduledAt: tc.start, DurationMinutes: tc.mins})
		if !errors.Is(err, ErrSlotTaken) {
			t.Errorf("%s: error = %v, want ErrSlotTaken", tc.name, err)
		}
	}

	// Back to back at the existing end is fine.
	if _, err := svc.Create(context.Background(), patID, CreateRequest{DoctorID: docID, ScheduledAt: base.Add(60 * time.Minute), DurationMinutes: 30}); err != nil {
		t.Errorf("back-to-back booking rejected: %v", err)
	}
}

func TestCreateCancelledDoesNotBlock(t *testing.T) {
	svc, _, dir, _, _, _ := newTestService()
	docID := seedDoctor(dir, nil)
	patID := seedPatient(dir)
	when := nextMonday().Add(10 * time.Hour)

	a, err := svc.Create(context.Background(), patID, CreateRequest{DoctorID: docID, ScheduledAt: when})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Cancel(context.Background(), a, "patient", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.Create(context.Background(), patID, CreateRequest{DoctorID: docID, ScheduledAt: when}); err != nil {
		t.Errorf("cancelled appointment should free the slot: %v", err)
	}
}

// -- Update --

func TestUpdateReschedule(t *testing.T) {
	svc, repo, dir, _, _, _ := newTestService()
	docID := seedDoctor(dir, nil)
	patID := seedPatient(dir)
	base := nextMonday().Add(10 * time.Hour)

	a, err := svc.Create(context.Background(), patID, CreateRequest{DoctorID: docID, ScheduledAt: base})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Moving within its own window must not conflict with itself.
	moved := base.Add(15 * time.Minute)
	updated, err := svc.Update(context.Background(), a, UpdateRequest{ScheduledAt: &moved, DurationMinutes: ptrInt(45)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !updated.ScheduledAt.Equal(moved) || updated.DurationMinutes != 45 {
		t.Errorf("reschedule not applied: %v / %d", updated.ScheduledAt, updated.DurationMinutes)
	}

	stored, err := repo.GetByID(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !stored.ScheduledAt.Equal(moved) {
		t.Errorf("stored scheduled_at = %v, want %v", stored.ScheduledAt, moved)
	}
}

func TestUpdateRescheduleConflict(t *testing.T) {
	svc, _, dir, _, _, _ := newTestService()
	docID := seedDoctor(dir, nil)
	patID := seedPatient(dir)
	base := nextMonday().Add(10 * time.Hour)

	if _, err := svc.Create(context.Background(), patID, CreateRequest{DoctorID: docID, ScheduledAt: base}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := svc.Create(context.Background(), patID, CreateRequest{DoctorID: docID, ScheduledAt: base.Add(time.Hour)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	moved := base.Add(15 * time.Minute)
	if _, err := svc.Update(context.Background(), b, UpdateRequest{ScheduledAt: &moved}); !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("error = %v, want ErrSlotTaken", err)
	}
}

func TestUpdateStatusCompleted(t *testing.T) {
	svc, _, dir, _, _, _ := newTestService()
	docID := seedDoctor(dir, nil)
	patID := seedPatient(dir)

	a, err := svc.Create(context.Background(), patID, CreateRequest{DoctorID: docID, ScheduledAt: nextMonday().Add(10 * time.Hour)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updated, err := svc.Update(context.Background(), a, UpdateRequest{Status: ptrStr(StatusCompleted), DoctorNotes: ptrStr("follow up in 2 weeks")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != StatusCompleted {
		t.Errorf("status = %s, want %s", updated.Status, StatusCompleted)
	}
	if updated.CompletedAt == nil {
		t.Error("expected completed_at to be set")
	}
	if updated.DoctorNotes == nil || *updated.DoctorNotes != "follow up in 2 weeks" {
		t.Errorf("doctor notes not applied: %v", updated.DoctorNotes)
	}
}

func TestUpdateCancelFromCompleted(t *testing.T) {
	svc, _, dir, _, _, _ := newTestService()
	docID := seedDoctor(dir, nil)
	patID := seedPatient(dir)

	a, err := svc.Create(context.Background(), patID, CreateRequest{DoctorID: docID, ScheduledAt: nextMonday().Add(10 * time.Hour)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Update(context.Background(), a, UpdateRequest{Status: ptrStr(StatusCompleted)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.Update(context.Background(), a, UpdateRequest{Status: ptrStr(StatusCancelled)}); !errors.Is(err, ErrNotCancellable) {
		t.Fatalf("error = %v, want ErrNotCancellable", err)
	}
}

// -- Cancel --

func TestCancel(t *testing.T) {
	svc, _, dir, email, events, feed := newTestService()
	docID := seedDoctor(dir, nil)
	patID := seedPatient(dir)

	a, err := svc.Create(context.Background(), patID, CreateRequest{DoctorID: docID, ScheduledAt: nextMonday().Add(10 * time.Hour)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cancelled, err := svc.Cancel(context.Background(), a, "patient", "feeling better")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Errorf("status = %s, want %s", cancelled.Status, StatusCancelled)
	}
	if cancelled.CancelledAt == nil {
		t.Error("expected cancelled_at to be set")
	}
	if cancelled.CancelledBy == nil || *cancelled.CancelledBy != "patient" {
		t.Errorf("cancelled_by = %v, want patient", cancelled.CancelledBy)
	}
	if cancelled.CancellationReason == nil || *cancelled.CancellationReason != "feeling better" {
		t.Errorf("cancellation_reason = %v, want feeling better", cancelled.CancellationReason)
	}

	// One confirmation on create, one cancellation notice.
	if got := len(email.Calls()); got != 2 {
		t.Errorf("expected 2 emails, got %d", got)
	}
	if len(events.events) != 2 || events.events[1].Type != webhook.EventAppointmentCancelled {
		t.Errorf("expected %s webhook event, got %+v", webhook.EventAppointmentCancelled, events.events)
	}
	if len(feed.events) != 2 || feed.events[1].Type != webhook.EventAppointmentCancelled {
		t.Errorf("expected cancellation feed event, got %+v", feed.events)
	}
}

func TestCancelOnlyFromActive(t *testing.T) {
	svc, _, dir, _, _, _ := newTestService()
	docID := seedDoctor(dir, nil)
	patID := seedPatient(dir)

	a, err := svc.Create(context.Background(), patID, CreateRequest{DoctorID: docID, ScheduledAt: nextMonday().Add(10 * time.Hour)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Cancel(context.Background(), a, "patient", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.Cancel(context.Background(), a, "patient", ""); !errors.Is(err, ErrNotCancellable) {
		t.Fatalf("error = %v, want ErrNotCancellable", err)
	}
}

// -- Available Slots --

func mondaySchedule(start, end string) WeeklySchedule {
	return WeeklySchedule{
		"monday": {Available: true, Start: start, End: end},
	}
}

func TestAvailableSlots(t *testing.T) {
	svc, repo, dir, _, _, _ := newTestService()
	docID := seedDoctor(dir, mondaySchedule("09:00", "12:00"))
	day := nextMonday()

	// A booking at 10:00 blocks that slot.
	booked := &Appointment{
		PatientID:   uuid.New(),
		DoctorID:    docID,
		ScheduledAt: day.Add(10 * time.Hour),
		Status:      StatusConfirmed,
	}
	if err := repo.Create(context.Background(), booked); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resp, err := svc.AvailableSlots(context.Background(), AvailableSlotsRequest{
		DoctorID: docID,
		Date:     day.Format("2006-01-02"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(resp.Slots) != 6 {
		t.Fatalf("expected 6 half-hour slots between 09:00 and 12:00, got %d", len(resp.Slots))
	}
	for i, slot := range resp.Slots {
		wantStart := day.Add(9 * time.Hour).Add(time.Duration(i) * 30 * time.Minute)
		if !slot.StartTime.Equal(wantStart) {
			t.Errorf("slot %d start = %v, want %v", i, slot.StartTime, wantStart)
		}
	}
	if resp.Slots[2].Available {
		t.Error("10:00 slot should be booked")
	}
	if !resp.Slots[0].Available || !resp.Slots[5].Available {
		t.Error("unbooked slots should be available")
	}
}

func TestAvailableSlotsDayOff(t *testing.T) {
	svc, _, dir, _, _, _ := newTestService()
	docID := seedDoctor(dir, WeeklySchedule{"monday": {Available: false, Start: "09:00", End: "17:00"}})

	resp, err := svc.AvailableSlots(context.Background(), AvailableSlotsRequest{
		DoctorID: docID,
		Date:     nextMonday().Format("2006-01-02"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Slots) != 0 {
		t.Errorf("expected no slots on a day off, got %d", len(resp.Slots))
	}
}

func TestAvailableSlotsDefaultHours(t *testing.T) {
	svc, _, dir, _, _, _ := newTestService()
	docID := seedDoctor(dir, mondaySchedule("", ""))

	resp, err := svc.AvailableSlots(context.Background(), AvailableSlotsRequest{
		DoctorID: docID,
		Date:     nextMonday().Format("2006-01-02"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 09:00 to 17:00 in half-hour steps.
	if len(resp.Slots) != 16 {
		t.Errorf("expected 16 slots for default hours, got %d", len(resp.Slots))
	}
}

func TestAvailableSlotsNotAccepting(t *testing.T) {
	svc, _, dir, _, _, _ := newTestService()
	docID := seedDoctor(dir, mondaySchedule("09:00", "17:00"))
	dir.doctors[docID].Accepting = false

	resp, err := svc.AvailableSlots(context.Background(), AvailableSlotsRequest{
		DoctorID: docID,
		Date:     nextMonday().Format("2006-01-02"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Slots) != 0 {
		t.Errorf("expected no slots for a doctor not taking patients, got %d", len(resp.Slots))
	}
}

func TestAvailableSlotsUnknownDoctor(t *testing.T) {
	svc, _, _, _, _, _ := newTestService()

	resp, err := svc.AvailableSlots(context.Background(), AvailableSlotsRequest{
		DoctorID: uuid.New(),
		Date:     nextMonday().Format("2006-01-02"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Slots) != 0 {
		t.Errorf("expected empty slot list for unknown doctor, got %d", len(resp.Slots))
	}
}

func TestAvailableSlotsBadDate(t *testing.T) {
	svc, _, dir, _, _, _ := newTestService()
	docID := seedDoctor(dir, mondaySchedule("09:00", "17:00"))

	_, err := svc.AvailableSlots(context.Background(), AvailableSlotsRequest{DoctorID: docID, Date: "10-03-2026"})
	if err == nil || !strings.Contains(err.Error(), "invalid date") {
		t.Fatalf("error = %v, want invalid date", err)
	}
}

func TestAvailableSlotsPastSlotsToday(t *testing.T) {
	svc, _, dir, _, _, _ := newTestService()
	today := startOfDay(time.Now())
	weekday := strings.ToLower(today.Weekday().String())
	docID := seedDoctor(dir, WeeklySchedule{weekday: {Available: true, Start: "00:00", End: "23:30"}})

	resp, err := svc.AvailableSlots(context.Background(), AvailableSlotsRequest{
		DoctorID: docID,
		Date:     today.Format("2006-01-02"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Slots) == 0 {
		t.Fatal("expected slots for today")
	}
	if resp.Slots[0].Available {
		t.Error("the midnight slot should already have passed")
	}
}

// -- Upcoming --

func TestUpcoming(t *testing.T) {
	svc, repo, dir, _, _, _ := newTestService()
	docID := seedDoctor(dir, nil)
	patID := seedPatient(dir)

	seed := func(at time.Time, status string) {
		a := &Appointment{PatientID: patID, DoctorID: docID, ScheduledAt: at, DurationMinutes: 30, Status: status}
		if err := repo.Create(context.Background(), a); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	seed(time.Now().AddDate(0, 0, -7), StatusCompleted)
	seed(time.Now().AddDate(0, 0, 5), StatusScheduled)
	seed(time.Now().AddDate(0, 0, 2), StatusConfirmed)
	seed(time.Now().AddDate(0, 0, 9), StatusCancelled)

	act := &Actor{Role: "patient", PatientID: patID}
	appts, err := svc.Upcoming(context.Background(), act, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(appts) != 2 {
		t.Fatalf("expected 2 upcoming appointments, got %d", len(appts))
	}
	if !appts[0].ScheduledAt.Before(appts[1].ScheduledAt) {
		t.Error("upcoming appointments should be soonest first")
	}
}

func TestUpcomingNoProfile(t *testing.T) {
	svc, _, _, _, _, _ := newTestService()

	appts, err := svc.Upcoming(context.Background(), &Actor{Role: "admin"}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(appts) != 0 {
		t.Errorf("expected empty list for an actor without profiles, got %d", len(appts))
	}
}

// -- Listing --

func TestListForPatientFilters(t *testing.T) {
	svc, repo, dir, _, _, _ := newTestService()
	docID := seedDoctor(dir, nil)
	patID := seedPatient(dir)
	base := nextMonday()

	seed := func(at time.Time, status string) {
		a := &Appointment{PatientID: patID, DoctorID: docID, ScheduledAt: at, DurationMinutes: 30, Status: status}
		if err := repo.Create(context.Background(), a); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	seed(base.Add(9*time.Hour), StatusScheduled)
	seed(base.Add(11*time.Hour), StatusCancelled)
	seed(base.AddDate(0, 0, 7).Add(9*time.Hour), StatusScheduled)

	appts, total, err := svc.ListForPatient(context.Background(), patID, ListFilter{Statuses: []string{StatusScheduled}}, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 || len(appts) != 2 {
		t.Fatalf("expected 2 scheduled appointments, got total=%d len=%d", total, len(appts))
	}
	if !appts[0].ScheduledAt.After(appts[1].ScheduledAt) {
		t.Error("patient listing should be newest first")
	}

	to := base.Add(23 * time.Hour)
	appts, total, err = svc.ListForPatient(context.Background(), patID, ListFilter{From: &base, To: &to}, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 {
		t.Errorf("expected 2 appointments on the first Monday, got %d", total)
	}

	appts, _, err = svc.ListForDoctor(context.Background(), docID, ListFilter{}, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(appts) != 3 {
		t.Fatalf("expected 3 appointments for doctor, got %d", len(appts))
	}
	if !appts[0].ScheduledAt.Before(appts[2].ScheduledAt) {
		t.Error("doctor listing should be oldest first")
	}
}
