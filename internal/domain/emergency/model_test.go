package emergency

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func ptrStr(s string) *string     { return &s }
func ptrFloat(f float64) *float64 { return &f }

func TestNormalizeType(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"medical", TypeMedical},
		{"cardiac", TypeCardiac},
		{"breathing", TypeBreathing},
		{"fall", TypeFall},
		{"accident", TypeAccident},
		{"other", TypeOther},
		{"zombie attack", TypeOther},
		{"", TypeOther},
		{"CARDIAC", TypeOther},
	}
	for _, tc := range cases {
		if got := NormalizeType(tc.in); got != tc.want {
			t.Errorf("NormalizeType(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestValidSeverity(t *testing.T) {
	for _, s := range []string{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical} {
		if !ValidSeverity(s) {
			t.Errorf("ValidSeverity(%q) = false", s)
		}
	}
	if ValidSeverity("catastrophic") {
		t.Error("ValidSeverity should reject unknown levels")
	}
}

func TestSeverityRankOrdering(t *testing.T) {
	order := []string{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
	for i := 1; i < len(order); i++ {
		if severityRank(order[i]) <= severityRank(order[i-1]) {
			t.Errorf("severityRank(%s) should exceed severityRank(%s)", order[i], order[i-1])
		}
	}
	if severityRank("unknown") != 0 {
		t.Errorf("unknown severity should rank 0, got %d", severityRank("unknown"))
	}
}

func TestEventActive(t *testing.T) {
	cases := []struct {
		status string
		want   bool
	}{
		{StatusTriggered, true},
		{StatusAcknowledged, true},
		{StatusDispatched, true},
		{StatusResolved, false},
		{StatusCancelled, false},
	}
	for _, tc := range cases {
		e := &Event{Status: tc.status}
		if got := e.Active(); got != tc.want {
			t.Errorf("Active() with status %s = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestResponseTimeSeconds(t *testing.T) {
	triggered := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	acked := triggered.Add(95 * time.Second)

	e := &Event{TriggeredAt: triggered}
	if e.ResponseTimeSeconds() != nil {
		t.Error("expected nil response time before acknowledgement")
	}

	e.AcknowledgedAt = &acked
	got := e.ResponseTimeSeconds()
	if got == nil || *got != 95 {
		t.Errorf("response time = %v, want 95", got)
	}
}

func TestTriggerRequestValidate(t *testing.T) {
	cases := []struct {
		name    string
		req     TriggerRequest
		wantErr string
	}{
		{"missing type", TriggerRequest{}, "emergency_type is required"},
		{"latitude too high", TriggerRequest{Type: "medical", Latitude: ptrFloat(95)}, "latitude must be between"},
		{"longitude too low", TriggerRequest{Type: "medical", Longitude: ptrFloat(-181)}, "longitude must be between"},
	}
	for _, tc := range cases {
		err := tc.req.validate()
		if err == nil {
			t.Errorf("%s: expected error", tc.name)
			continue
		}
		if !strings.Contains(err.Error(), tc.wantErr) {
			t.Errorf("%s: error = %q, want %q", tc.name, err, tc.wantErr)
		}
	}

	ok := TriggerRequest{Type: "fall", Latitude: ptrFloat(12.97), Longitude: ptrFloat(77.59)}
	if err := ok.validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLocationUpdateRequestValidate(t *testing.T) {
	bad := LocationUpdateRequest{Latitude: 12.97, Longitude: 200}
	if err := bad.validate(); err == nil {
		t.Error("expected error for out-of-range longitude")
	}
	ok := LocationUpdateRequest{Latitude: -33.86, Longitude: 151.2}
	if err := ok.validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestEventJSONShape(t *testing.T) {
	e := &Event{
		ID:          uuid.New(),
		PatientID:   uuid.New(),
		Type:        TypeCardiac,
		Severity:    SeverityHigh,
		Status:      StatusTriggered,
		TriggeredAt: time.Now(),
	}

	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(data)

	if !strings.Contains(s, `"emergency_type":"cardiac"`) {
		t.Errorf("missing emergency_type field: %s", s)
	}
	if !strings.Contains(s, `"contacts_notified":false`) {
		t.Error("contacts_notified should always be present")
	}
	for _, omitted := range []string{`"description"`, `"acknowledged_at"`, `"resolution_notes"`, `"notification_log"`, `"ai_analysis"`} {
		if strings.Contains(s, omitted) {
			t.Errorf("nil %s should be omitted", omitted)
		}
	}
}

func TestNotificationLogJSON(t *testing.T) {
	e := &Event{
		ID:          uuid.New(),
		PatientID:   uuid.New(),
		Type:        TypeFall,
		Severity:    SeverityMedium,
		Status:      StatusTriggered,
		TriggeredAt: time.Now(),
		NotificationLog: []NotificationEntry{
			{Channel: "sms", Recipient: "+15550100", SentAt: time.Now()},
		},
	}

	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Event
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded.NotificationLog) != 1 || decoded.NotificationLog[0].Recipient != "+15550100" {
		t.Errorf("notification log did not round-trip: %+v", decoded.NotificationLog)
	}
	if strings.Contains(string(data), `"error"`) {
		t.Error("empty error should be omitted from log entries")
	}
}
