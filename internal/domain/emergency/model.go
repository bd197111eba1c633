// Package emergency implements the SOS pipeline: patients trigger
// events from the app, severity is assessed with the language model
// when one is configured, the emergency contact is alerted over SMS,
// and responders walk the event through a fixed lifecycle until it is
// resolved or the patient cancels it.
package emergency

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Emergency types. Unknown input coerces to TypeOther rather than
// failing: a panicked user mistyping the category must not lose the
// alert.
const (
	TypeMedical   = "medical"
	TypeCardiac   = "cardiac"
	TypeBreathing = "breathing"
	TypeFall      = "fall"
	TypeAccident  = "accident"
	TypeOther     = "other"
)

const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

const (
	StatusTriggered    = "triggered"
	StatusAcknowledged = "acknowledged"
	StatusDispatched   = "dispatched"
	StatusResolved     = "resolved"
	StatusCancelled    = "cancelled"
)

// NormalizeType maps free input onto the known emergency types.
func NormalizeType(t string) string {
	switch t {
	case TypeMedical, TypeCardiac, TypeBreathing, TypeFall, TypeAccident, TypeOther:
		return t
	}
	return TypeOther
}

// ValidSeverity reports whether s is a known severity level.
func ValidSeverity(s string) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// severityRank orders severities for the dispatch queue. Unknown
// values sort last.
func severityRank(s string) int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// NotificationEntry is one line of the event's notification log.
type NotificationEntry struct {
	Channel   string    `json:"channel"`
	Recipient string    `json:"recipient"`
	SentAt    time.Time `json:"sent_at"`
	Error     string    `json:"error,omitempty"`
}

// Event maps to the emergency_events table.
type Event struct {
	ID               uuid.UUID              `db:"id" json:"id"`
	PatientID        uuid.UUID              `db:"patient_id" json:"patient_id"`
	Type             string                 `db:"emergency_type" json:"emergency_type"`
	Severity         string                 `db:"severity" json:"severity"`
	Status           string                 `db:"status" json:"status"`
	Description      *string                `db:"description" json:"description,omitempty"`
	Latitude         *float64               `db:"latitude" json:"latitude,omitempty"`
	Longitude        *float64               `db:"longitude" json:"longitude,omitempty"`
	Address          *string                `db:"address" json:"address,omitempty"`
	AIAnalysis       map[string]interface{} `db:"ai_analysis" json:"ai_analysis,omitempty"`
	TriggeredAt      time.Time              `db:"triggered_at" json:"triggered_at"`
	AcknowledgedAt   *time.Time             `db:"acknowledged_at" json:"acknowledged_at,omitempty"`
	AcknowledgedBy   *string                `db:"acknowledged_by" json:"acknowledged_by,omitempty"`
	ResolvedAt       *time.Time             `db:"resolved_at" json:"resolved_at,omitempty"`
	ResolvedBy       *string                `db:"resolved_by" json:"resolved_by,omitempty"`
	ResolutionNotes  *string                `db:"resolution_notes" json:"resolution_notes,omitempty"`
	ContactsNotified bool                   `db:"contacts_notified" json:"contacts_notified"`
	NotificationLog  []NotificationEntry    `db:"notification_log" json:"notification_log,omitempty"`
	CreatedAt        time.Time              `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time              `db:"updated_at" json:"updated_at"`
}

// Active reports whether the event still needs a response.
func (e *Event) Active() bool {
	switch e.Status {
	case StatusTriggered, StatusAcknowledged, StatusDispatched:
		return true
	}
	return false
}

// ResponseTimeSeconds is the time from trigger to acknowledgement,
// nil until someone acknowledges.
func (e *Event) ResponseTimeSeconds() *int {
	if e.AcknowledgedAt == nil {
		return nil
	}
	secs := int(e.AcknowledgedAt.Sub(e.TriggeredAt).Seconds())
	return &secs
}

// TriggerRequest raises a new SOS event.
type TriggerRequest struct {
	Type        string   `json:"emergency_type"`
	Description *string  `json:"description"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Address     *string  `json:"address"`
}

func (req *TriggerRequest) validate() error {
	if req.Type == "" {
		return fmt.Errorf("emergency_type is required")
	}
	if err := checkLatitude(req.Latitude); err != nil {
		return err
	}
	return checkLongitude(req.Longitude)
}

// StatusUpdateRequest moves an event through its lifecycle.
type StatusUpdateRequest struct {
	Status string  `json:"status"`
	Notes  *string `json:"notes"`
}

// LocationUpdateRequest refreshes the patient's position during an
// ongoing emergency.
type LocationUpdateRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   *string `json:"address"`
}

func (req *LocationUpdateRequest) validate() error {
	if err := checkLatitude(&req.Latitude); err != nil {
		return err
	}
	return checkLongitude(&req.Longitude)
}

func checkLatitude(v *float64) error {
	if v != nil && (*v < -90 || *v > 90) {
		return fmt.Errorf("latitude must be between -90 and 90")
	}
	return nil
}

func checkLongitude(v *float64) error {
	if v != nil && (*v < -180 || *v > 180) {
		return fmt.Errorf("longitude must be between -180 and 180")
	}
	return nil
}
