// Package vitals tracks patient vital-sign recordings: manual or
// device-sourced measurements, reference-range evaluation with
// warning/critical alerts, and windowed history with summary
// statistics.
package vitals

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Measurement sources.
const (
	SourceManual     = "manual"
	SourceWearable   = "wearable"
	SourceClinic     = "clinic"
	SourceHomeDevice = "home_device"
)

// Alert severities.
const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// ValidSource reports whether s is a known measurement source.
func ValidSource(s string) bool {
	switch s {
	case SourceManual, SourceWearable, SourceClinic, SourceHomeDevice:
		return true
	}
	return false
}

// Record is one set of vital-sign measurements. Every measurement is
// optional; a record holds whatever the patient or device reported.
type Record struct {
	ID                uuid.UUID              `db:"id" json:"id"`
	PatientID         uuid.UUID              `db:"patient_id" json:"patient_id"`
	RecordedAt        time.Time              `db:"recorded_at" json:"recorded_at"`
	Source            string                 `db:"source" json:"source"`
	DeviceName        *string                `db:"device_name" json:"device_name,omitempty"`
	SystolicBP        *int                   `db:"systolic_bp" json:"systolic_bp,omitempty"`
	DiastolicBP       *int                   `db:"diastolic_bp" json:"diastolic_bp,omitempty"`
	HeartRate         *int                   `db:"heart_rate" json:"heart_rate,omitempty"`
	SpO2              *int                   `db:"spo2" json:"spo2,omitempty"`
	Temperature       *float64               `db:"temperature" json:"temperature,omitempty"`
	Glucose           *int                   `db:"glucose" json:"glucose,omitempty"`
	RespiratoryRate   *int                   `db:"respiratory_rate" json:"respiratory_rate,omitempty"`
	Weight            *float64               `db:"weight" json:"weight,omitempty"`
	Height            *float64               `db:"height" json:"height,omitempty"`
	AdditionalMetrics map[string]interface{} `db:"additional_metrics" json:"additional_metrics,omitempty"`
	Notes             *string                `db:"notes" json:"notes,omitempty"`
	CreatedAt         time.Time              `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time              `db:"updated_at" json:"updated_at"`

	// Derived display fields, filled by Derive.
	BloodPressure string   `db:"-" json:"blood_pressure_string,omitempty"`
	BMI           *float64 `db:"-" json:"bmi,omitempty"`
}

// Derive fills the computed display fields from the raw measurements.
func (r *Record) Derive() {
	if r.SystolicBP != nil && r.DiastolicBP != nil {
		r.BloodPressure = fmt.Sprintf("%d/%d", *r.SystolicBP, *r.DiastolicBP)
	}
	if r.Weight != nil && r.Height != nil && *r.Height > 0 {
		m := *r.Height / 100
		bmi := math.Round(*r.Weight/(m*m)*10) / 10
		r.BMI = &bmi
	}
}

// CreateRequest carries a new recording. A zero recorded_at means now;
// an empty source means manual.
type CreateRequest struct {
	RecordedAt        time.Time              `json:"recorded_at"`
	Source            string                 `json:"source"`
	DeviceName        *string                `json:"device_name"`
	SystolicBP        *int                   `json:"systolic_bp"`
	DiastolicBP       *int                   `json:"diastolic_bp"`
	HeartRate         *int                   `json:"heart_rate"`
	SpO2              *int                   `json:"spo2"`
	Temperature       *float64               `json:"temperature"`
	Glucose           *int                   `json:"glucose"`
	RespiratoryRate   *int                   `json:"respiratory_rate"`
	Weight            *float64               `json:"weight"`
	Height            *float64               `json:"height"`
	AdditionalMetrics map[string]interface{} `json:"additional_metrics"`
	Notes             *string                `json:"notes"`
}

// UpdateRequest corrects a recording. Nil fields are left unchanged.
type UpdateRequest struct {
	SystolicBP  *int     `json:"systolic_bp"`
	DiastolicBP *int     `json:"diastolic_bp"`
	HeartRate   *int     `json:"heart_rate"`
	SpO2        *int     `json:"spo2"`
	Temperature *float64 `json:"temperature"`
	Glucose     *int     `json:"glucose"`
	Notes       *string  `json:"notes"`
}

// Plausibility bounds for incoming measurements. Values outside these
// are rejected as entry errors rather than recorded as readings.
func (req *CreateRequest) validate() error {
	if err := checkInt("systolic_bp", req.SystolicBP, 60, 250); err != nil {
		return err
	}
	if err := checkInt("diastolic_bp", req.DiastolicBP, 40, 150); err != nil {
		return err
	}
	if err := checkInt("heart_rate", req.HeartRate, 30, 250); err != nil {
		return err
	}
	if err := checkInt("spo2", req.SpO2, 70, 100); err != nil {
		return err
	}
	if err := checkFloat("temperature", req.Temperature, 35.0, 42.0); err != nil {
		return err
	}
	if err := checkInt("glucose", req.Glucose, 20, 600); err != nil {
		return err
	}
	if err := checkInt("respiratory_rate", req.RespiratoryRate, 8, 40); err != nil {
		return err
	}
	if err := checkFloat("weight", req.Weight, 1.0, 500.0); err != nil {
		return err
	}
	return checkFloat("height", req.Height, 30.0, 300.0)
}

func (req *UpdateRequest) validate() error {
	if err := checkInt("systolic_bp", req.SystolicBP, 60, 250); err != nil {
		return err
	}
	if err := checkInt("diastolic_bp", req.DiastolicBP, 40, 150); err != nil {
		return err
	}
	if err := checkInt("heart_rate", req.HeartRate, 30, 250); err != nil {
		return err
	}
	if err := checkInt("spo2", req.SpO2, 70, 100); err != nil {
		return err
	}
	if err := checkFloat("temperature", req.Temperature, 35.0, 42.0); err != nil {
		return err
	}
	return checkInt("glucose", req.Glucose, 20, 600)
}

func checkInt(name string, v *int, min, max int) error {
	if v != nil && (*v < min || *v > max) {
		return fmt.Errorf("%s must be between %d and %d", name, min, max)
	}
	return nil
}

func checkFloat(name string, v *float64, min, max float64) error {
	if v != nil && (*v < min || *v > max) {
		return fmt.Errorf("%s must be between %g and %g", name, min, max)
	}
	return nil
}

// HistoryResponse is a page of records with an optional summary over
// the full filtered window.
type HistoryResponse struct {
	Records []*Record `json:"records"`
	Total   int       `json:"total"`
	Summary *Summary  `json:"summary,omitempty"`
}

// Summary holds per-metric averages over a history window. Averages
// are nil when no record in the window carried the metric.
type Summary struct {
	TotalRecords   int      `json:"total_records"`
	AvgSystolicBP  *float64 `json:"avg_systolic_bp,omitempty"`
	AvgDiastolicBP *float64 `json:"avg_diastolic_bp,omitempty"`
	AvgHeartRate   *float64 `json:"avg_heart_rate,omitempty"`
	AvgSpO2        *float64 `json:"avg_spo2,omitempty"`
	AvgTemperature *float64 `json:"avg_temperature,omitempty"`
	AvgGlucose     *float64 `json:"avg_glucose,omitempty"`
	PeriodStart    string   `json:"period_start,omitempty"`
	PeriodEnd      string   `json:"period_end,omitempty"`
}

// Alert flags a measurement outside its reference range.
type Alert struct {
	Metric      string  `json:"metric"`
	Value       float64 `json:"value"`
	Unit        string  `json:"unit"`
	NormalRange string  `json:"normal_range"`
	Severity    string  `json:"severity"`
	Message     string  `json:"message"`
}

// AlertEvent is the payload published to the live feed and webhook
// subscribers when a recording crosses a critical bound.
type AlertEvent struct {
	Record *Record `json:"record"`
	Alerts []Alert `json:"alerts"`
}

// Range is the reference band for one metric. Inside [Low, High] is
// normal; at or beyond the critical bounds is critical; between the
// two is a warning.
type Range struct {
	Metric       string
	Unit         string
	Low          float64
	High         float64
	CriticalLow  float64
	CriticalHigh float64
}

// ReferenceRanges are the clinical bands measurements are evaluated
// against. SpO2 tops out its scale, so High equals CriticalHigh and
// high-side checks are skipped for it.
var ReferenceRanges = []Range{
	{Metric: "Systolic Blood Pressure", Unit: "mmHg", Low: 90, High: 140, CriticalLow: 70, CriticalHigh: 180},
	{Metric: "Diastolic Blood Pressure", Unit: "mmHg", Low: 60, High: 90, CriticalLow: 40, CriticalHigh: 120},
	{Metric: "Heart Rate", Unit: "bpm", Low: 60, High: 100, CriticalLow: 40, CriticalHigh: 150},
	{Metric: "Oxygen Saturation", Unit: "%", Low: 95, High: 100, CriticalLow: 90, CriticalHigh: 100},
	{Metric: "Temperature", Unit: "°C", Low: 36.1, High: 37.2, CriticalLow: 35.0, CriticalHigh: 39.5},
	{Metric: "Blood Glucose", Unit: "mg/dL", Low: 70, High: 140, CriticalLow: 50, CriticalHigh: 400},
}

// Evaluate checks a record's measurements against the reference
// ranges and returns an alert for each one outside its band.
func Evaluate(r *Record) []Alert {
	var alerts []Alert
	values := []*float64{
		intVal(r.SystolicBP),
		intVal(r.DiastolicBP),
		intVal(r.HeartRate),
		intVal(r.SpO2),
		r.Temperature,
		intVal(r.Glucose),
	}
	for i, rng := range ReferenceRanges {
		if values[i] == nil {
			continue
		}
		if a := rng.evaluate(*values[i]); a != nil {
			alerts = append(alerts, *a)
		}
	}
	return alerts
}

func (rng Range) evaluate(v float64) *Alert {
	capped := rng.High == rng.CriticalHigh
	var severity, message string
	switch {
	case !capped && v >= rng.CriticalHigh:
		severity = SeverityCritical
		message = fmt.Sprintf("Critical: %s %s %s is dangerously high", rng.Metric, formatValue(v), rng.Unit)
	case v <= rng.CriticalLow:
		severity = SeverityCritical
		message = fmt.Sprintf("Critical: %s %s %s is dangerously low", rng.Metric, formatValue(v), rng.Unit)
	case !capped && v > rng.High:
		severity = SeverityWarning
		message = fmt.Sprintf("Warning: %s %s %s is elevated", rng.Metric, formatValue(v), rng.Unit)
	case v < rng.Low:
		severity = SeverityWarning
		message = fmt.Sprintf("Warning: %s %s %s is below normal", rng.Metric, formatValue(v), rng.Unit)
	default:
		return nil
	}
	return &Alert{
		Metric:      rng.Metric,
		Value:       v,
		Unit:        rng.Unit,
		NormalRange: fmt.Sprintf("%s-%s", formatValue(rng.Low), formatValue(rng.High)),
		Severity:    severity,
		Message:     message,
	}
}

// CriticalOnly filters alerts down to the critical ones.
func CriticalOnly(alerts []Alert) []Alert {
	var out []Alert
	for _, a := range alerts {
		if a.Severity == SeverityCritical {
			out = append(out, a)
		}
	}
	return out
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func intVal(v *int) *float64 {
	if v == nil {
		return nil
	}
	f := float64(*v)
	return &f
}
