package models

import "time"

// SensorReading is ephemeral: it lives only in the bounded per-sensor
// window owned by the view rendering it.
type SensorReading struct {
	SensorID   string    `json:"sensor_id"`
	MachineID  string    `json:"machine_id"`
	SensorType string    `json:"sensor_type"`
	Value      float64   `json:"value"`
	Timestamp  time.Time `json:"timestamp"`
}
