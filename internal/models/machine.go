package models

import "time"

type MachineStatus string

const (
	MachineStatusActive        MachineStatus = "active"
	MachineStatusMaintenance   MachineStatus = "maintenance"
	MachineStatusEmergencyStop MachineStatus = "emergency_stop"
	MachineStatusOffline       MachineStatus = "offline"
)

// Machine is one monitored physical unit. The REST collaborator owns the
// record; this side only reads it and requests status transitions.
type Machine struct {
	MachineID string        `json:"machine_id"`
	Name      string        `json:"name"`
	Type      string        `json:"type"`
	Location  string        `json:"location"`
	Status    MachineStatus `json:"status"`
	Sensors   []string      `json:"sensors,omitempty"`
	CreatedAt time.Time     `json:"created_at,omitempty"`
}

func (m Machine) HasSensor(sensorType string) bool {
	for _, s := range m.Sensors {
		if s == sensorType {
			return true
		}
	}
	return false
}
