// Package channel delivers named server-pushed events to any number of
// subscribers over a live transport, degrading to a local no-op stub when
// the transport cannot be reached. Consumers never branch on
// connectivity: Subscribe and Emit are always safe to call.
package channel

import (
	"encoding/json"
	"sort"
	"sync"
)

// Handler receives the raw payload of one event.
type Handler func(payload json.RawMessage)

// Channel is the live event stream abstraction.
type Channel interface {
	// Subscribe registers h for every received event of the given name,
	// in receipt order. The returned function deregisters exactly that
	// handler; once it returns, h is not invoked again.
	Subscribe(event string, h Handler) (unsubscribe func())
	// Emit is a best-effort send. It never blocks on a slow transport
	// and is silently dropped when no live connection exists.
	Emit(event string, payload interface{})
	// Close disconnects and releases all subscriptions.
	Close()
}

// subscriberSet is the fan-out registry shared by all transports.
// dispatch runs under the read lock, so a remove that has returned is
// guaranteed to see no further invocations of its handler.
type subscriberSet struct {
	mu   sync.RWMutex
	next int
	subs map[string]map[int]Handler
}

func (s *subscriberSet) add(event string, h Handler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs == nil {
		s.subs = make(map[string]map[int]Handler)
	}
	if s.subs[event] == nil {
		s.subs[event] = make(map[int]Handler)
	}
	id := s.next
	s.next++
	s.subs[event][id] = h

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs[event], id)
	}
}

// dispatch invokes handlers while holding the read lock: an unsubscribe
// in flight blocks until delivery completes, and once it returns the
// handler is never invoked again. Handlers must not subscribe or
// unsubscribe from within themselves.
func (s *subscriberSet) dispatch(event string, payload json.RawMessage) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int, 0, len(s.subs[event]))
	for id := range s.subs[event] {
		ids = append(ids, id)
	}
	sort.Ints(ids) // registration order, so fan-out is deterministic

	for _, id := range ids {
		s.subs[event][id](payload)
	}
}
