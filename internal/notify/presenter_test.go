package notify

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgewatch/machwatch/internal/models"
)

func alertWithRisk(id string, risk int) models.Alert {
	return models.Alert{ID: id, MachineID: "machine-001", RiskLevel: risk, Message: "test"}
}

// A long display duration keeps the timer out of ordering tests.
func newIdlePresenter() *Presenter {
	return NewPresenter(time.Minute, nil, nil, zerolog.Nop())
}

func TestDismissWhileIdleIsNoop(t *testing.T) {
	p := newIdlePresenter()
	defer p.Close()

	p.Dismiss()
	p.Dismiss()

	_, showing := p.Current()
	assert.False(t, showing)
	assert.Equal(t, 0, p.QueueLen())
}

func TestFirstAlertShowsImmediately(t *testing.T) {
	p := newIdlePresenter()
	defer p.Close()

	p.Publish(alertWithRisk("a", 10))

	entry, showing := p.Current()
	require.True(t, showing)
	assert.Equal(t, "a", entry.Alert.ID)
	assert.False(t, entry.Expanded)
}

func TestQueueDrainsInRiskOrderWithoutPreemption(t *testing.T) {
	p := newIdlePresenter()
	defer p.Close()

	p.Publish(alertWithRisk("current", 10))
	p.Publish(alertWithRisk("low", 30))
	p.Publish(alertWithRisk("high", 90))
	p.Publish(alertWithRisk("mid", 60))

	// The showing alert is never preempted, even by higher risk.
	entry, _ := p.Current()
	assert.Equal(t, "current", entry.Alert.ID)

	var order []string
	for {
		entry, showing := p.Current()
		if !showing {
			break
		}
		order = append(order, entry.Alert.ID)
		p.Dismiss()
	}
	assert.Equal(t, []string{"current", "high", "mid", "low"}, order)
}

func TestEqualRiskKeepsArrivalOrder(t *testing.T) {
	p := newIdlePresenter()
	defer p.Close()

	p.Publish(alertWithRisk("current", 10))
	p.Publish(alertWithRisk("first", 60))
	p.Publish(alertWithRisk("second", 60))

	p.Dismiss()
	entry, _ := p.Current()
	assert.Equal(t, "first", entry.Alert.ID)
	p.Dismiss()
	entry, _ = p.Current()
	assert.Equal(t, "second", entry.Alert.ID)
}

func TestAutoDismissAdvancesQueue(t *testing.T) {
	p := NewPresenter(30*time.Millisecond, nil, nil, zerolog.Nop())
	defer p.Close()

	p.Publish(alertWithRisk("a", 50))
	p.Publish(alertWithRisk("b", 40))

	require.Eventually(t, func() bool {
		entry, showing := p.Current()
		return showing && entry.Alert.ID == "b"
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		_, showing := p.Current()
		return !showing
	}, time.Second, 5*time.Millisecond)
}

func TestExpandSuspendsAutoDismiss(t *testing.T) {
	p := NewPresenter(30*time.Millisecond, nil, nil, zerolog.Nop())
	defer p.Close()

	p.Publish(alertWithRisk("a", 50))
	p.Expand()

	time.Sleep(120 * time.Millisecond)
	entry, showing := p.Current()
	require.True(t, showing, "expanded alert must not auto-dismiss")
	assert.True(t, entry.Expanded)

	p.Collapse()
	require.Eventually(t, func() bool {
		_, showing := p.Current()
		return !showing
	}, time.Second, 5*time.Millisecond)
}

func TestManualDismissWhileExpanded(t *testing.T) {
	p := newIdlePresenter()
	defer p.Close()

	p.Publish(alertWithRisk("a", 50))
	p.Expand()
	p.Dismiss()

	_, showing := p.Current()
	assert.False(t, showing)
}

func TestNextAlertResetsExpandedState(t *testing.T) {
	p := newIdlePresenter()
	defer p.Close()

	p.Publish(alertWithRisk("a", 50))
	p.Publish(alertWithRisk("b", 40))
	p.Expand()
	p.Dismiss()

	entry, showing := p.Current()
	require.True(t, showing)
	assert.Equal(t, "b", entry.Alert.ID)
	assert.False(t, entry.Expanded)
}

func TestGoToAlertsNavigatesAndDismisses(t *testing.T) {
	var navigated atomic.Bool
	p := NewPresenter(time.Minute, func() { navigated.Store(true) }, nil, zerolog.Nop())
	defer p.Close()

	p.Publish(alertWithRisk("a", 50))
	p.GoToAlerts()

	assert.True(t, navigated.Load())
	_, showing := p.Current()
	assert.False(t, showing)
}

func TestOnDisplayFiresForEachShownAlert(t *testing.T) {
	p := newIdlePresenter()
	defer p.Close()

	var shown atomic.Int32
	p.OnDisplay(func(models.Alert) { shown.Add(1) })

	p.Publish(alertWithRisk("a", 50))
	p.Publish(alertWithRisk("b", 40))
	p.Dismiss()

	require.Eventually(t, func() bool {
		return shown.Load() == 2
	}, time.Second, 5*time.Millisecond)
}
