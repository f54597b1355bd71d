// Package sensors keeps a bounded rolling window of live readings per
// machine and sensor. The window is a fixed-capacity ring: once full,
// each new reading overwrites the oldest.
package sensors

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/forgewatch/machwatch/internal/channel"
	"github.com/forgewatch/machwatch/internal/models"
)

// DefaultWindow is the per-sensor history cap.
const DefaultWindow = 50

type ring struct {
	data []models.SensorReading
	head int
	size int
}

func newRing(capacity int) *ring {
	return &ring{data: make([]models.SensorReading, capacity)}
}

func (r *ring) push(reading models.SensorReading) {
	r.data[r.head] = reading
	r.head = (r.head + 1) % len(r.data)
	if r.size < len(r.data) {
		r.size++
	}
}

// snapshot returns readings oldest to newest.
func (r *ring) snapshot() []models.SensorReading {
	out := make([]models.SensorReading, 0, r.size)
	start := r.head - r.size
	if start < 0 {
		start += len(r.data)
	}
	for i := 0; i < r.size; i++ {
		out = append(out, r.data[(start+i)%len(r.data)])
	}
	return out
}

type Store struct {
	mu       sync.RWMutex
	capacity int
	windows  map[string]*ring
	logger   zerolog.Logger
}

func NewStore(capacity int, logger zerolog.Logger) *Store {
	if capacity <= 0 {
		capacity = DefaultWindow
	}
	return &Store{
		capacity: capacity,
		windows:  make(map[string]*ring),
		logger:   logger.With().Str("component", "sensors").Logger(),
	}
}

func (s *Store) Add(reading models.SensorReading) {
	key := reading.MachineID + "/" + reading.SensorType

	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.windows[key]
	if !ok {
		w = newRing(s.capacity)
		s.windows[key] = w
	}
	w.push(reading)
}

// Readings returns the window for one machine/sensor pair, oldest first.
func (s *Store) Readings(machineID, sensorType string) []models.SensorReading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.windows[machineID+"/"+sensorType]
	if !ok {
		return nil
	}
	return w.snapshot()
}

// Focus asks the live channel to scope sensor-update delivery to one
// machine of interest. The returned function lifts the scope again.
func Focus(ch channel.Channel, machineID string) func() {
	ch.Emit(models.EventSubscribe, models.MachineScope{MachineID: machineID})
	return func() {
		ch.Emit(models.EventUnsubscribe, models.MachineScope{MachineID: machineID})
	}
}

// Bind feeds the store from sensor_update events; the returned function
// detaches it.
func (s *Store) Bind(ch channel.Channel) func() {
	return ch.Subscribe(models.EventSensorUpdate, func(payload json.RawMessage) {
		var ev models.SensorUpdateEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			s.logger.Warn().Err(err).Msg("skipping malformed sensor_update event")
			return
		}
		s.Add(ev.Reading())
	})
}
