package channel

import (
	"github.com/rs/zerolog"
)

// StubChannel is the local fallback used once the live transport is
// unreachable. It accepts subscriptions and emits but never delivers an
// event, so dependents degrade to REST-only behavior instead of failing.
type StubChannel struct {
	subs   subscriberSet
	logger zerolog.Logger
}

func NewStub(logger zerolog.Logger) *StubChannel {
	return &StubChannel{
		logger: logger.With().Str("component", "stub_channel").Logger(),
	}
}

func (s *StubChannel) Subscribe(event string, h Handler) func() {
	return s.subs.add(event, h)
}

func (s *StubChannel) Emit(event string, payload interface{}) {
	s.logger.Debug().Str("event", event).Msg("emit dropped, no live connection")
}

func (s *StubChannel) Close() {}

var _ Channel = (*StubChannel)(nil)
