package prescription

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestValidStatus(t *testing.T) {
	for _, s := range []string{StatusActive, StatusCompleted, StatusCancelled, StatusExpired} {
		if !ValidStatus(s) {
			t.Errorf("ValidStatus(%q) = false", s)
		}
	}
	if ValidStatus("draft") {
		t.Error("ValidStatus should reject unknown statuses")
	}
}

func TestEffectiveStatus(t *testing.T) {
	yesterday := dateOnly(time.Now().AddDate(0, 0, -1))
	today := dateOnly(time.Now())
	tomorrow := dateOnly(time.Now().AddDate(0, 0, 1))

	cases := []struct {
		name   string
		status string
		expiry *time.Time
		want   string
	}{
		{"no expiry", StatusActive, nil, StatusActive},
		{"expires tomorrow", StatusActive, &tomorrow, StatusActive},
		{"still good on expiry date", StatusActive, &today, StatusActive},
		{"past expiry", StatusActive, &yesterday, StatusExpired},
		{"cancelled stays cancelled", StatusCancelled, &yesterday, StatusCancelled},
		{"completed stays completed", StatusCompleted, &yesterday, StatusCompleted},
	}
	for _, tc := range cases {
		p := &Prescription{Status: tc.status, ExpiryDate: tc.expiry}
		if got := p.EffectiveStatus(); got != tc.want {
			t.Errorf("%s: EffectiveStatus() = %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestDerive(t *testing.T) {
	yesterday := dateOnly(time.Now().AddDate(0, 0, -1))
	p := &Prescription{
		Status:     StatusActive,
		ExpiryDate: &yesterday,
		Medications: []MedicationItem{
			{Name: "Paracetamol", Dosage: "500mg", Frequency: "twice daily"},
			{Name: "Cetirizine", Dosage: "10mg", Frequency: "at night"},
		},
	}
	p.Derive()
	if !p.IsExpired {
		t.Error("is_expired should be true past the expiry date")
	}
	if p.MedicationCount != 2 {
		t.Errorf("medication_count = %d, want 2", p.MedicationCount)
	}
}

func TestCreateRequestValidate(t *testing.T) {
	med := MedicationItem{Name: "Paracetamol", Dosage: "500mg", Frequency: "twice daily"}

	cases := []struct {
		name    string
		req     CreateRequest
		wantErr string
	}{
		{"missing patient", CreateRequest{Diagnosis: "flu", Medications: []MedicationItem{med}}, "patient_id is required"},
		{"missing diagnosis", CreateRequest{PatientID: uuid.New(), Diagnosis: "  ", Medications: []MedicationItem{med}}, "diagnosis is required"},
		{"no medications", CreateRequest{PatientID: uuid.New(), Diagnosis: "flu"}, "at least one medication is required"},
		{"missing name", CreateRequest{PatientID: uuid.New(), Diagnosis: "flu", Medications: []MedicationItem{{Dosage: "500mg", Frequency: "daily"}}}, "medications[0]: name is required"},
		{"missing dosage", CreateRequest{PatientID: uuid.New(), Diagnosis: "flu", Medications: []MedicationItem{med, {Name: "Cetirizine", Frequency: "daily"}}}, "medications[1]: dosage is required"},
		{"missing frequency", CreateRequest{PatientID: uuid.New(), Diagnosis: "flu", Medications: []MedicationItem{{Name: "Cetirizine", Dosage: "10mg"}}}, "medications[0]: frequency is required"},
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

	ok := CreateRequest{PatientID: uuid.New(), Diagnosis: "flu", Medications: []MedicationItem{med}}
	if err := ok.validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestPrescriptionJSONShape(t *testing.T) {
	p := &Prescription{
		ID:               uuid.New(),
		PatientID:        uuid.New(),
		DoctorID:         uuid.New(),
		Diagnosis:        "seasonal flu",
		Medications:      []MedicationItem{{Name: "Paracetamol", Dosage: "500mg", Frequency: "twice daily"}},
		IssueDate:        dateOnly(time.Now()),
		Status:           StatusActive,
		VerificationCode: "RX-0123456789AB",
	}
	p.Derive()

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(data)

	for _, want := range []string{`"verification_code":"RX-0123456789AB"`, `"medication_count":1`, `"is_expired":false`, `"name":"Paracetamol"`} {
		if !strings.Contains(s, want) {
			t.Errorf("missing %s: %s", want, s)
		}
	}
	for _, omitted := range []string{`"appointment_id"`, `"instructions"`, `"follow_up_date"`, `"expiry_date"`, `"duration"`, `"notes"`} {
		if strings.Contains(s, omitted) {
			t.Errorf("nil %s should be omitted", omitted)
		}
	}
}
