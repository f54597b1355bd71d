package channel

import (
	"encoding/json"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const natsSubjectPrefix = "machwatch."

// natsChannel maps event names onto NATS subjects for plants that run a
// message bus instead of exposing a websocket endpoint.
type natsChannel struct {
	nc     *nats.Conn
	subs   subscriberSet
	mu     sync.Mutex
	bound  map[string]*nats.Subscription
	logger zerolog.Logger
}

func dialNATS(url, token string, logger zerolog.Logger) (*natsChannel, error) {
	opts := []nats.Option{nats.Name("machwatch")}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "connect %s", url)
	}
	return &natsChannel{
		nc:     nc,
		bound:  make(map[string]*nats.Subscription),
		logger: logger.With().Str("component", "nats_channel").Logger(),
	}, nil
}

func (c *natsChannel) Subscribe(event string, h Handler) func() {
	c.ensureBound(event)
	return c.subs.add(event, h)
}

// ensureBound lazily creates one NATS subscription per event name; the
// local subscriberSet does the per-handler fan-out.
func (c *natsChannel) ensureBound(event string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.bound[event]; ok {
		return
	}
	sub, err := c.nc.Subscribe(natsSubjectPrefix+event, func(msg *nats.Msg) {
		c.subs.dispatch(event, json.RawMessage(msg.Data))
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("event", event).Msg("subject subscription failed")
		return
	}
	c.bound[event] = sub
}

func (c *natsChannel) Emit(event string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		c.logger.Warn().Err(err).Str("event", event).Msg("dropping unmarshalable emit")
		return
	}
	if err := c.nc.Publish(natsSubjectPrefix+event, raw); err != nil {
		c.logger.Warn().Err(err).Str("event", event).Msg("publish failed, emit dropped")
	}
}

func (c *natsChannel) Close() {
	c.mu.Lock()
	for _, sub := range c.bound {
		sub.Unsubscribe()
	}
	c.bound = make(map[string]*nats.Subscription)
	c.mu.Unlock()
	c.nc.Close()
}

var _ Channel = (*natsChannel)(nil)
