package channel

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/forgewatch/machwatch/internal/config"
	"github.com/forgewatch/machwatch/internal/metrics"
)

// Supervisor selects the channel variant once per session: the live
// transport when it can be reached within the configured attempt budget,
// otherwise the stub. The fallback is one-way; no attempt is made to
// restore the live channel afterwards.
type Supervisor struct {
	cfg     config.ChannelConfig
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func NewSupervisor(cfg config.ChannelConfig, m *metrics.Metrics, logger zerolog.Logger) *Supervisor {
	return &Supervisor{
		cfg:     cfg,
		metrics: m,
		logger:  logger.With().Str("component", "channel_supervisor").Logger(),
	}
}

// Open dials with fixed-delay retries and always returns a usable
// Channel. Callers must hold a valid session token before opening.
func (s *Supervisor) Open(ctx context.Context, token string) Channel {
	attempts := s.cfg.ReconnectAttempts
	if attempts <= 0 {
		attempts = 5
	}
	delay := s.cfg.ReconnectDelay
	if delay <= 0 {
		delay = time.Second
	}

	for i := 0; i < attempts; i++ {
		ch, err := s.dial(ctx, token)
		if err == nil {
			s.logger.Info().Str("transport", s.cfg.Transport).Str("url", s.cfg.URL).Msg("live channel connected")
			return ch
		}
		s.metrics.IncReconnectAttempts()
		s.logger.Warn().Err(err).Int("attempt", i+1).Int("max_attempts", attempts).Msg("channel connection failed")

		select {
		case <-ctx.Done():
			i = attempts
		case <-time.After(delay):
		}
	}

	s.metrics.IncChannelFallbacks()
	s.logger.Warn().Msg("connection attempts exhausted, using local stub channel")
	return NewStub(s.logger)
}

func (s *Supervisor) dial(ctx context.Context, token string) (Channel, error) {
	switch s.cfg.Transport {
	case "", "websocket":
		return dialWebsocket(ctx, s.cfg.URL, token, s.logger)
	case "nats":
		return dialNATS(s.cfg.URL, token, s.logger)
	default:
		return nil, errors.Errorf("unknown channel transport %q", s.cfg.Transport)
	}
}
