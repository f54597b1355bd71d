// Package alerts owns the canonical in-memory alert state, reconciling
// the initial REST fetch, live-pushed events, and locally-synthesized
// emergency alerts into one deduplicated collection.
package alerts

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/forgewatch/machwatch/internal/channel"
	"github.com/forgewatch/machwatch/internal/metrics"
	"github.com/forgewatch/machwatch/internal/models"
)

// API is the slice of the REST collaborator the aggregator needs.
type API interface {
	ListAlerts(ctx context.Context) ([]models.Alert, error)
	ResolveAlert(ctx context.Context, alertID string) error
	DeleteAlert(ctx context.Context, alertID string) error
}

// Journal records resolved and deleted alerts for the local audit trail.
type Journal interface {
	Append(alert models.Alert) error
}

type Aggregator struct {
	mu     sync.RWMutex
	alerts []models.Alert // newest first
	// ids inserted since the last refresh; a stale refresh response must
	// not clobber them.
	recent map[string]struct{}

	api     API
	journal Journal
	metrics *metrics.Metrics
	logger  zerolog.Logger

	subMu     sync.Mutex
	nextSub   int
	subs      map[int]func(models.Alert)
	delivered map[string]struct{} // new-alert ids already fanned out
	unbind    []func()
}

// NewAggregator wires the aggregator; journal and m may be nil.
func NewAggregator(api API, journal Journal, m *metrics.Metrics, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		api:       api,
		journal:   journal,
		metrics:   m,
		logger:    logger.With().Str("component", "alerts").Logger(),
		recent:    make(map[string]struct{}),
		subs:      make(map[int]func(models.Alert)),
		delivered: make(map[string]struct{}),
	}
}

// Bind attaches the aggregator to a live channel. The returned function
// detaches it again.
func (a *Aggregator) Bind(ch channel.Channel) func() {
	offNew := ch.Subscribe(models.EventNewAlert, func(payload json.RawMessage) {
		var alert models.Alert
		if err := json.Unmarshal(payload, &alert); err != nil {
			a.logger.Warn().Err(err).Msg("skipping malformed new_alert event")
			return
		}
		a.ingest(alert)
	})
	offResolved := ch.Subscribe(models.EventAlertResolved, func(payload json.RawMessage) {
		var ev models.AlertResolvedEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			a.logger.Warn().Err(err).Msg("skipping malformed alert_resolved event")
			return
		}
		a.markResolved(ev.AlertID, ev.ResolvedBy)
	})

	detach := func() {
		offNew()
		offResolved()
	}
	a.subMu.Lock()
	a.unbind = append(a.unbind, detach)
	a.subMu.Unlock()
	return detach
}

// Refresh replaces local state with the collaborator's alert collection.
// Alerts inserted since the previous refresh are retained even when the
// response predates them, so a stale fetch cannot clobber a live event
// or a local emergency alert. Run on mount, session change, or explicit
// user request only.
func (a *Aggregator) Refresh(ctx context.Context) error {
	fetched, err := a.api.ListAlerts(ctx)
	if err != nil {
		a.logger.Error().Err(err).Msg("alert refresh failed")
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	next := make([]models.Alert, 0, len(fetched)+len(a.recent))
	seen := make(map[string]struct{}, len(fetched))
	for _, alert := range fetched {
		alert.Normalize()
		if _, dup := seen[alert.ID]; dup {
			continue
		}
		seen[alert.ID] = struct{}{}
		next = append(next, alert)
	}
	// Re-prepend recent insertions the fetch does not know about yet.
	for i := len(a.alerts) - 1; i >= 0; i-- {
		existing := a.alerts[i]
		if _, recent := a.recent[existing.ID]; !recent {
			continue
		}
		if _, dup := seen[existing.ID]; dup {
			continue
		}
		seen[existing.ID] = struct{}{}
		next = append([]models.Alert{existing}, next...)
	}

	a.alerts = next
	a.recent = make(map[string]struct{})
	a.logger.Info().Int("count", len(next)).Msg("alerts refreshed")
	return nil
}

// AddLocal inserts a client-synthesized alert at the head of the active
// set without a round trip, so the UI reflects it instantly.
func (a *Aggregator) AddLocal(alert models.Alert) models.Alert {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	alert.Normalize()
	a.ingest(alert)
	return alert
}

// ingest is the single entry point for new alerts from any source.
// Duplicate ids (a live echo of a locally-added alert, or a refresh race)
// are absorbed.
func (a *Aggregator) ingest(alert models.Alert) {
	alert.Normalize()

	a.mu.Lock()
	for _, existing := range a.alerts {
		if existing.ID == alert.ID {
			a.mu.Unlock()
			return
		}
	}
	a.alerts = append([]models.Alert{alert}, a.alerts...)
	a.recent[alert.ID] = struct{}{}
	a.mu.Unlock()

	a.metrics.IncAlertsReceived()
	a.fanOut(alert)
}

// fanOut delivers a new-alert notification to every subscriber exactly
// once per alert id, regardless of re-subscription.
func (a *Aggregator) fanOut(alert models.Alert) {
	a.subMu.Lock()
	if _, done := a.delivered[alert.ID]; done {
		a.subMu.Unlock()
		return
	}
	a.delivered[alert.ID] = struct{}{}
	fns := make([]func(models.Alert), 0, len(a.subs))
	for _, fn := range a.subs {
		fns = append(fns, fn)
	}
	a.subMu.Unlock()

	for _, fn := range fns {
		fn(alert)
	}
}

// Subscribe registers a consumer for new-alert notifications. Delivery is
// at-least-once per consumer but never double-counted per alert id.
func (a *Aggregator) Subscribe(fn func(models.Alert)) func() {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	id := a.nextSub
	a.nextSub++
	a.subs[id] = fn
	return func() {
		a.subMu.Lock()
		defer a.subMu.Unlock()
		delete(a.subs, id)
	}
}

// Resolve marks an alert resolved via the collaborator and in place,
// retaining it for the audit trail. Returns false when the alert is
// unknown, already resolved, or the collaborator refuses.
func (a *Aggregator) Resolve(ctx context.Context, alertID string) bool {
	a.mu.RLock()
	idx := a.indexOf(alertID)
	resolvable := idx >= 0 && a.alerts[idx].IsActive()
	a.mu.RUnlock()
	if !resolvable {
		return false
	}

	if err := a.api.ResolveAlert(ctx, alertID); err != nil {
		a.logger.Error().Err(err).Str("alert_id", alertID).Msg("resolve failed")
		return false
	}

	a.markResolved(alertID, "")
	a.metrics.IncAlertsResolved()
	return true
}

// Delete removes an alert outright. Returns false on any failure.
func (a *Aggregator) Delete(ctx context.Context, alertID string) bool {
	a.mu.RLock()
	exists := a.indexOf(alertID) >= 0
	a.mu.RUnlock()
	if !exists {
		return false
	}

	if err := a.api.DeleteAlert(ctx, alertID); err != nil {
		a.logger.Error().Err(err).Str("alert_id", alertID).Msg("delete failed")
		return false
	}

	a.mu.Lock()
	var removed *models.Alert
	if idx := a.indexOf(alertID); idx >= 0 {
		alert := a.alerts[idx]
		removed = &alert
		a.alerts = append(a.alerts[:idx], a.alerts[idx+1:]...)
		delete(a.recent, alertID)
	}
	a.mu.Unlock()

	if removed != nil {
		a.appendJournal(*removed)
	}
	return true
}

func (a *Aggregator) markResolved(alertID, resolvedBy string) {
	now := time.Now().UTC()

	a.mu.Lock()
	idx := a.indexOf(alertID)
	if idx < 0 || !a.alerts[idx].IsActive() {
		a.mu.Unlock()
		return
	}
	a.alerts[idx].Status = models.AlertStatusResolved
	a.alerts[idx].ResolvedBy = resolvedBy
	a.alerts[idx].ResolvedAt = &now
	resolved := a.alerts[idx]
	a.mu.Unlock()

	a.appendJournal(resolved)
}

// RemoveByMachine purges every alert referencing a machine, any status.
// Used when a machine transitions back to active so stale warnings do
// not linger.
func (a *Aggregator) RemoveByMachine(machineID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	kept := a.alerts[:0]
	removed := 0
	for _, alert := range a.alerts {
		if alert.MachineID == machineID {
			removed++
			delete(a.recent, alert.ID)
			continue
		}
		kept = append(kept, alert)
	}
	a.alerts = kept
	if removed > 0 {
		a.logger.Info().Str("machine_id", machineID).Int("removed", removed).Msg("purged machine alerts")
	}
	return removed
}

// Alerts returns a copy of the full collection, newest first.
func (a *Aggregator) Alerts() []models.Alert {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]models.Alert, len(a.alerts))
	copy(out, a.alerts)
	return out
}

// ActiveAlerts is the derived view of alerts with active status.
func (a *Aggregator) ActiveAlerts() []models.Alert {
	return a.filter(func(alert models.Alert) bool {
		return alert.IsActive()
	})
}

// Emergencies is the single centralized emergency view; both the navbar
// badge and the alerts panel consume it instead of re-filtering raw
// state.
func (a *Aggregator) Emergencies() []models.Alert {
	return a.ByCategory(models.AlertCategoryEmergency)
}

// ByCategory returns active alerts of one category.
func (a *Aggregator) ByCategory(category models.AlertCategory) []models.Alert {
	return a.filter(func(alert models.Alert) bool {
		return alert.IsActive() && alert.Category == category
	})
}

func (a *Aggregator) filter(keep func(models.Alert) bool) []models.Alert {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var out []models.Alert
	for _, alert := range a.alerts {
		if keep(alert) {
			out = append(out, alert)
		}
	}
	return out
}

// Unbind detaches every channel binding registered through Bind.
func (a *Aggregator) Unbind() {
	a.subMu.Lock()
	detach := a.unbind
	a.unbind = nil
	a.subMu.Unlock()
	for _, fn := range detach {
		fn()
	}
}

// indexOf requires a.mu held.
func (a *Aggregator) indexOf(alertID string) int {
	for i, alert := range a.alerts {
		if alert.ID == alertID {
			return i
		}
	}
	return -1
}

func (a *Aggregator) appendJournal(alert models.Alert) {
	if a.journal == nil {
		return
	}
	if err := a.journal.Append(alert); err != nil {
		a.logger.Warn().Err(err).Str("alert_id", alert.ID).Msg("journal append failed")
	}
}
