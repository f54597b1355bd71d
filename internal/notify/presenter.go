// Package notify presents at most one alert notification at a time,
// auto-advancing through a risk-prioritized queue.
package notify

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/forgewatch/machwatch/internal/metrics"
	"github.com/forgewatch/machwatch/internal/models"
)

// DefaultDisplayDuration matches the dashboard toast: 12 seconds unless
// the operator has expanded the details.
const DefaultDisplayDuration = 12 * time.Second

// Entry is an alert plus its presentation state.
type Entry struct {
	Alert    models.Alert
	Expanded bool
}

// Presenter is the single globally-visible notification surface.
//
// States: Idle (empty queue) and Showing (queue[0] is on screen). A new
// alert while Idle shows immediately; while Showing it is inserted into
// the waiting queue ordered by risk level descending, ties broken by
// arrival order, and never preempts the current alert.
type Presenter struct {
	mu      sync.Mutex
	queue   []Entry
	showing bool
	timer   *time.Timer
	gen     int // invalidates stale timer fires

	display   time.Duration
	navigate  func()
	onDisplay func(models.Alert)
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// NewPresenter creates a presenter. navigate is the "go to alerts" host
// action and may be nil.
func NewPresenter(display time.Duration, navigate func(), m *metrics.Metrics, logger zerolog.Logger) *Presenter {
	if display <= 0 {
		display = DefaultDisplayDuration
	}
	return &Presenter{
		display:  display,
		navigate: navigate,
		metrics:  m,
		logger:   logger.With().Str("component", "notify").Logger(),
	}
}

// OnDisplay registers the render callback invoked each time an alert
// takes the screen.
func (p *Presenter) OnDisplay(fn func(models.Alert)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onDisplay = fn
}

// Publish enqueues an alert for presentation.
func (p *Presenter) Publish(alert models.Alert) {
	p.mu.Lock()

	entry := Entry{Alert: alert}
	if !p.showing {
		p.queue = []Entry{entry}
		p.showing = true
		p.startTimerLocked()
		p.displayLocked()
		p.mu.Unlock()
		return
	}

	// Stable insert into the waiting portion; queue[0] stays put.
	pos := len(p.queue)
	for i := 1; i < len(p.queue); i++ {
		if p.queue[i].Alert.RiskLevel < alert.RiskLevel {
			pos = i
			break
		}
	}
	p.queue = append(p.queue, Entry{})
	copy(p.queue[pos+1:], p.queue[pos:])
	p.queue[pos] = entry
	p.mu.Unlock()
}

// Dismiss removes the current alert and shows the next queued one, if
// any. A dismiss with nothing showing is a no-op.
func (p *Presenter) Dismiss() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.showing {
		return
	}
	p.stopTimerLocked()
	p.advanceLocked()
}

// Expand shows the detail view and suspends the auto-dismiss timer until
// the alert is collapsed or dismissed.
func (p *Presenter) Expand() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.showing || p.queue[0].Expanded {
		return
	}
	p.queue[0].Expanded = true
	p.stopTimerLocked()
}

// Collapse returns to the compact view and rearms the timer.
func (p *Presenter) Collapse() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.showing || !p.queue[0].Expanded {
		return
	}
	p.queue[0].Expanded = false
	p.startTimerLocked()
}

// GoToAlerts navigates the host application to the alerts page and
// dismisses the current notification.
func (p *Presenter) GoToAlerts() {
	p.mu.Lock()
	navigate := p.navigate
	p.mu.Unlock()
	if navigate != nil {
		navigate()
	}
	p.Dismiss()
}

// Current returns the alert on screen, if any.
func (p *Presenter) Current() (Entry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.showing {
		return Entry{}, false
	}
	return p.queue[0], true
}

// QueueLen reports how many alerts are waiting behind the current one.
func (p *Presenter) QueueLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.showing {
		return 0
	}
	return len(p.queue) - 1
}

// Close stops the timer; pending queue entries are abandoned.
func (p *Presenter) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopTimerLocked()
	p.queue = nil
	p.showing = false
}

// advanceLocked pops the head and shows the next entry; requires p.mu.
func (p *Presenter) advanceLocked() {
	p.queue = p.queue[1:]
	if len(p.queue) == 0 {
		p.queue = nil
		p.showing = false
		return
	}
	p.queue[0].Expanded = false
	p.startTimerLocked()
	p.displayLocked()
}

func (p *Presenter) displayLocked() {
	alert := p.queue[0].Alert
	p.metrics.IncNotificationsShown()
	p.logger.Debug().
		Str("alert_id", alert.ID).
		Int("risk_level", alert.RiskLevel).
		Int("queued", len(p.queue)-1).
		Msg("notification shown")
	if p.onDisplay != nil {
		fn := p.onDisplay
		go fn(alert)
	}
}

func (p *Presenter) startTimerLocked() {
	p.stopTimerLocked()
	p.gen++
	gen := p.gen
	p.timer = time.AfterFunc(p.display, func() {
		p.expire(gen)
	})
}

func (p *Presenter) stopTimerLocked() {
	p.gen++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func (p *Presenter) expire(gen int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen || !p.showing {
		return
	}
	if p.queue[0].Expanded {
		// Expanded details never auto-dismiss.
		return
	}
	p.advanceLocked()
}
