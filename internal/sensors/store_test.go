package sensors

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgewatch/machwatch/internal/channel"
	"github.com/forgewatch/machwatch/internal/models"
)

func reading(machineID, sensorType string, value float64) models.SensorReading {
	return models.SensorReading{
		SensorID:   machineID + "-" + sensorType,
		MachineID:  machineID,
		SensorType: sensorType,
		Value:      value,
		Timestamp:  time.Now(),
	}
}

func TestWindowCapsAtCapacityDroppingOldest(t *testing.T) {
	store := NewStore(50, zerolog.Nop())

	for i := 0; i < 60; i++ {
		store.Add(reading("machine-001", "temperature", float64(i)))
	}

	window := store.Readings("machine-001", "temperature")
	require.Len(t, window, 50)
	// Oldest first, readings 10..59 survive.
	assert.Equal(t, float64(10), window[0].Value)
	assert.Equal(t, float64(59), window[49].Value)
	for i := 1; i < len(window); i++ {
		assert.Greater(t, window[i].Value, window[i-1].Value)
	}
}

func TestWindowsAreIndependentPerMachineAndSensor(t *testing.T) {
	store := NewStore(3, zerolog.Nop())

	store.Add(reading("machine-001", "temperature", 70))
	store.Add(reading("machine-001", "pressure", 2.8))
	store.Add(reading("machine-002", "temperature", 64))

	assert.Len(t, store.Readings("machine-001", "temperature"), 1)
	assert.Len(t, store.Readings("machine-001", "pressure"), 1)
	assert.Len(t, store.Readings("machine-002", "temperature"), 1)
	assert.Nil(t, store.Readings("machine-002", "pressure"))
}

func TestPartialWindowReturnsWhatItHas(t *testing.T) {
	store := NewStore(50, zerolog.Nop())

	store.Add(reading("machine-001", "vibration", 8.1))
	store.Add(reading("machine-001", "vibration", 8.4))

	window := store.Readings("machine-001", "vibration")
	require.Len(t, window, 2)
	assert.Equal(t, 8.1, window[0].Value)
	assert.Equal(t, 8.4, window[1].Value)
}

func TestBindIngestsSensorUpdateEvents(t *testing.T) {
	store := NewStore(5, zerolog.Nop())

	// Capture the registered handler and drive it the way the live
	// channel would.
	var handler channel.Handler
	wrapped := channelFunc(func(event string, h channel.Handler) func() {
		if event == models.EventSensorUpdate {
			handler = h
		}
		return func() { handler = nil }
	})
	detach := store.Bind(wrapped)
	require.NotNil(t, handler)

	for i := 0; i < 3; i++ {
		handler([]byte(fmt.Sprintf(
			`{"machine_id":"machine-003","sensor_type":"pressure","sensor_id":"s9","value":%d.5,"timestamp":"2026-08-31T10:00:0%dZ"}`,
			i, i,
		)))
	}
	handler([]byte(`{not json`))

	window := store.Readings("machine-003", "pressure")
	require.Len(t, window, 3)
	assert.Equal(t, 2.5, window[2].Value)

	detach()
	assert.Nil(t, handler)
}

func TestFocusEmitsScopeEvents(t *testing.T) {
	rec := &recordingChannel{}

	release := Focus(rec, "machine-002")
	require.Len(t, rec.emitted, 1)
	assert.Equal(t, models.EventSubscribe, rec.emitted[0].event)
	assert.Equal(t, models.MachineScope{MachineID: "machine-002"}, rec.emitted[0].payload)

	release()
	require.Len(t, rec.emitted, 2)
	assert.Equal(t, models.EventUnsubscribe, rec.emitted[1].event)
	assert.Equal(t, models.MachineScope{MachineID: "machine-002"}, rec.emitted[1].payload)
}

// channelFunc adapts a subscribe function to the channel contract for
// tests that need to capture the registered handler.
type channelFunc func(event string, h channel.Handler) func()

func (f channelFunc) Subscribe(event string, h channel.Handler) func() { return f(event, h) }
func (f channelFunc) Emit(event string, payload interface{})           {}
func (f channelFunc) Close()                                           {}

// recordingChannel captures outbound emits.
type recordingChannel struct {
	emitted []emittedEvent
}

type emittedEvent struct {
	event   string
	payload interface{}
}

func (r *recordingChannel) Subscribe(event string, h channel.Handler) func() { return func() {} }
func (r *recordingChannel) Emit(event string, payload interface{}) {
	r.emitted = append(r.emitted, emittedEvent{event: event, payload: payload})
}
func (r *recordingChannel) Close() {}
