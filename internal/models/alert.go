package models

import (
	"strings"
	"time"
)

type AlertStatus string

const (
	AlertStatusActive   AlertStatus = "active"
	AlertStatusResolved AlertStatus = "resolved"
)

// AlertCategory is the explicit discriminator for alert kinds. Older
// backends encode the kind in the message text instead; Normalize maps
// those onto a category so consumers never have to match substrings.
type AlertCategory string

const (
	AlertCategoryEmergency  AlertCategory = "emergency"
	AlertCategoryAnomaly    AlertCategory = "anomaly"
	AlertCategoryPredictive AlertCategory = "predictive"
	AlertCategoryInfo       AlertCategory = "info"
)

// EmergencyMarker is the message prefix legacy backends use to flag
// emergency-stop alerts.
const EmergencyMarker = "EMERGENCY STOP"

type Alert struct {
	ID          string        `json:"id"`
	MachineID   string        `json:"machine_id"`
	SensorType  string        `json:"sensor_type"`
	RiskLevel   int           `json:"risk_level"`
	Status      AlertStatus   `json:"status"`
	Category    AlertCategory `json:"category,omitempty"`
	Message     string        `json:"message"`
	Suggestions []string      `json:"suggestions,omitempty"`
	Value       float64       `json:"value,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
	ResolvedBy  string        `json:"resolved_by,omitempty"`
	ResolvedAt  *time.Time    `json:"resolved_at,omitempty"`
}

// Normalize fills in fields a legacy payload may omit.
func (a *Alert) Normalize() {
	if a.Status == "" {
		a.Status = AlertStatusActive
	}
	if a.Category == "" {
		if strings.Contains(a.Message, EmergencyMarker) {
			a.Category = AlertCategoryEmergency
		} else {
			a.Category = AlertCategoryAnomaly
		}
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
}

func (a Alert) IsActive() bool {
	return a.Status == AlertStatusActive
}

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityInfo     Severity = "info"
)

// SeverityForRisk buckets a 0-100 risk level the same way the alert
// surfaces color-code it.
func SeverityForRisk(risk int) Severity {
	switch {
	case risk >= 90:
		return SeverityCritical
	case risk >= 70:
		return SeverityHigh
	case risk >= 50:
		return SeverityMedium
	default:
		return SeverityInfo
	}
}
