// Package forecast synthesizes illustrative "risk in the next 30
// minutes" records per machine and sensor. The numbers come from fixed
// per-machine condition profiles plus an internal progression counter,
// not from telemetry; the contract shape is what matters, the arithmetic
// is a demonstration oracle.
package forecast

import (
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog"

	"github.com/forgewatch/machwatch/internal/models"
)

type profile struct {
	age       int
	condition string
}

// Fixed demo fleet: Alpha is new, Beta shows wear, Gamma is degrading on
// several sensors, Delta is near failure.
var profiles = map[string]profile{
	"machine-001": {age: 1, condition: "new"},
	"machine-002": {age: 5, condition: "normal"},
	"machine-003": {age: 7, condition: "worn"},
	"machine-004": {age: 10, condition: "critical"},
}

const defaultAge = 5

type Stub struct {
	mu          sync.Mutex
	progression map[string]float64 // machineID/sensorType
	logger      zerolog.Logger
}

func NewStub(logger zerolog.Logger) *Stub {
	return &Stub{
		progression: make(map[string]float64),
		logger:      logger.With().Str("component", "forecast").Logger(),
	}
}

// Predict produces the prediction for one sensor. It is a pure function
// of machine id, refresh counter, and the accumulated progression for
// that machine/sensor pair: identical inputs yield identical outputs.
func (s *Stub) Predict(machineID, sensorType string, currentValue float64, counter int) models.SensorPrediction {
	key := machineID + "/" + sensorType

	s.mu.Lock()
	prog := s.progression[key]
	if counter > 0 {
		s.progression[key] = prog + 0.5
	}
	s.mu.Unlock()

	risk, future, ttl := trend(machineID, sensorType, currentValue, prog, counter)
	if risk < 0 {
		risk = 0
	}
	if risk > 100 {
		risk = 100
	}
	riskInt := int(math.Round(risk))

	return models.SensorPrediction{
		MachineID:       machineID,
		SensorType:      sensorType,
		CurrentValue:    currentValue,
		FutureValue:     math.Round(future*100) / 100,
		TimeToThreshold: ttl,
		RiskProbability: riskInt,
		Message:         message(riskInt, sensorType),
		Suggestions:     suggestions(riskInt, sensorType),
		WillHaveIssue:   riskInt > 50 && ttl != nil,
	}
}

// trend holds the per-profile arithmetic: each profile clamps risk to
// its own ceiling and floors time-to-threshold.
func trend(machineID, sensorType string, current, prog float64, counter int) (risk, future float64, ttl *int) {
	c := float64(counter)
	future = current

	switch machineID {
	case "machine-001":
		switch sensorType {
		case "temperature":
			risk = 10 + math.Mod(c, 3) + prog/10
			future = current * (1.01 + prog*0.001)
		case "pressure":
			risk = 5 + math.Mod(c, 2) + prog/15
			future = current * (1.005 + prog*0.0005)
		case "vibration":
			risk = 8 + math.Mod(c, 4) + prog/12
			future = current * (1.008 + prog*0.0008)
		}

	case "machine-002":
		switch sensorType {
		case "temperature":
			risk = clamp(40+c*2+prog*1.5, 75)
			future = current * (1.05 + prog*0.008)
			if prog > 2 {
				ttl = floored(25-int(math.Floor(prog*0.8)), 10)
			}
		case "pressure":
			risk = clamp(12+math.Mod(c, 5)+prog*0.5, 30)
			future = current * (1.02 + prog*0.002)
		case "vibration":
			risk = clamp(15+math.Mod(c, 4)+prog*0.7, 35)
			future = current * (1.03 + prog*0.003)
		}

	case "machine-003":
		switch sensorType {
		case "temperature":
			risk = clamp(60+c*1.5+prog*1.8, 90)
			future = current * (1.15 + prog*0.01)
			if prog > 1 {
				ttl = floored(15-int(math.Floor(prog*0.6)), 5)
			}
		case "pressure":
			risk = clamp(65+c*1.8+prog*2, 95)
			future = current * (1.2 + prog*0.012)
			if prog > 1 {
				ttl = floored(18-int(math.Floor(prog*0.8)), 6)
			}
		case "vibration":
			risk = clamp(30+c*1.2+prog*1.5, 75)
			future = current * (1.1 + prog*0.008)
			if prog > 3 {
				ttl = floored(22-int(math.Floor(prog*0.7)), 8)
			}
		}

	case "machine-004":
		switch sensorType {
		case "temperature":
			risk = clamp(85+c+prog*1.2, 99)
			future = current * (1.3 + prog*0.015)
			ttl = floored(5-int(math.Floor(prog*0.5)), 1)
		case "pressure":
			risk = clamp(90+c*0.8+prog, 99)
			future = current * (1.35 + prog*0.018)
			ttl = floored(3-int(math.Floor(prog*0.3)), 1)
		case "vibration":
			risk = clamp(80+c*1.2+prog*1.5, 99)
			future = current * (1.25 + prog*0.014)
			ttl = floored(8-int(math.Floor(prog*0.6)), 2)
		}
	}
	return risk, future, ttl
}

func clamp(v, ceiling float64) float64 {
	if v > ceiling {
		return ceiling
	}
	return v
}

func floored(v, floor int) *int {
	if v < floor {
		v = floor
	}
	return &v
}

func message(risk int, sensorType string) string {
	switch {
	case risk < 30:
		return fmt.Sprintf("Normal operation of %s sensor", sensorType)
	case risk < 70:
		return fmt.Sprintf("Monitoring recommended: %s shows signs of wear", sensorType)
	case risk < 90:
		return fmt.Sprintf("High risk of %s sensor failure", sensorType)
	default:
		return fmt.Sprintf("CRITICAL: imminent %s failure", sensorType)
	}
}

func suggestions(risk int, sensorType string) []string {
	switch {
	case risk < 30:
		return []string{
			"No action needed",
			"Scheduled preventive maintenance",
		}
	case risk < 70:
		out := []string{"Check operating parameters"}
		switch sensorType {
		case "temperature":
			out = append(out, "Inspect the cooling system")
		case "pressure":
			out = append(out, "Check seals and valves")
		default:
			out = append(out, "Inspect rotating parts")
		}
		return out
	default:
		out := []string{"Technical intervention required promptly"}
		switch sensorType {
		case "temperature":
			out = append(out,
				"Schedule a stop to replace the thermal system",
				"Reduce workload immediately")
		case "pressure":
			out = append(out,
				"Check the main circuit for leaks",
				"Prepare replacement of worn seals")
		default:
			out = append(out,
				"Full inspection of bearings and alignment",
				"Consider replacing vibration modules")
		}
		return out
	}
}

// Analyze runs the forecast over every active machine, synthesizing
// baseline sensor values from the machine's profile age the way the demo
// does, and aggregates the soonest predicted issue per machine.
func (s *Stub) Analyze(machines []models.Machine, counter int) map[string]models.MachineForecast {
	out := make(map[string]models.MachineForecast)

	for _, machine := range machines {
		if machine.Status != models.MachineStatusActive {
			continue
		}
		age := defaultAge
		if p, ok := profiles[machine.MachineID]; ok {
			age = p.age
		}

		baselines := []struct {
			sensorType string
			value      float64
		}{
			{"temperature", 65 + float64(age)*2},
			{"pressure", 2.5 + float64(age)*0.1},
			{"vibration", 8 + float64(age)*0.6},
		}
		preds := make([]models.SensorPrediction, 0, len(baselines))
		for _, b := range baselines {
			// A machine with a declared sensor list is only forecast on
			// those sensors.
			if len(machine.Sensors) > 0 && !machine.HasSensor(b.sensorType) {
				continue
			}
			preds = append(preds, s.Predict(machine.MachineID, b.sensorType, b.value, counter))
		}

		var soonest *int
		hasIssues := false
		for _, p := range preds {
			if !p.WillHaveIssue {
				continue
			}
			hasIssues = true
			if p.TimeToThreshold != nil && (soonest == nil || *p.TimeToThreshold < *soonest) {
				v := *p.TimeToThreshold
				soonest = &v
			}
		}

		msg := "No issues expected in the next 30 minutes"
		if hasIssues && soonest != nil {
			msg = fmt.Sprintf("Issue expected within %d minutes", *soonest)
		}

		name := machine.Name
		if name == "" {
			name = "Machine " + machine.MachineID
		}
		out[machine.MachineID] = models.MachineForecast{
			MachineName:     name,
			MachineStatus:   machine.Status,
			Sensors:         preds,
			HasFutureIssues: hasIssues,
			SoonestIssue:    soonest,
			Message:         msg,
		}
	}
	return out
}
