package models

import "time"

// Event names carried over the live channel.
const (
	EventNewAlert      = "new_alert"
	EventAlertResolved = "alert_resolved"
	EventSensorUpdate  = "sensor_update"
	EventSubscribe     = "subscribe"
	EventUnsubscribe   = "unsubscribe"
)

type AlertResolvedEvent struct {
	AlertID    string `json:"alert_id"`
	ResolvedBy string `json:"resolved_by"`
}

type SensorUpdateEvent struct {
	MachineID  string    `json:"machine_id"`
	SensorType string    `json:"sensor_type"`
	SensorID   string    `json:"sensor_id"`
	Value      float64   `json:"value"`
	Timestamp  time.Time `json:"timestamp"`
}

func (e SensorUpdateEvent) Reading() SensorReading {
	return SensorReading{
		SensorID:   e.SensorID,
		MachineID:  e.MachineID,
		SensorType: e.SensorType,
		Value:      e.Value,
		Timestamp:  e.Timestamp,
	}
}

// MachineScope is the outbound payload scoping sensor-update delivery to
// one machine of interest.
type MachineScope struct {
	MachineID string `json:"machine_id"`
}
