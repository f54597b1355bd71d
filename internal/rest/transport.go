package rest

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// loggingTransport records method, path, status, and latency for every
// outbound request at debug level.
type loggingTransport struct {
	next   http.RoundTripper
	logger zerolog.Logger
}

func newLoggingTransport(logger zerolog.Logger) *loggingTransport {
	return &loggingTransport{
		next:   http.DefaultTransport,
		logger: logger,
	}
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	duration := time.Since(start)

	event := t.logger.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Dur("duration", duration)
	if err != nil {
		event.Err(err).Msg("request failed")
		return nil, err
	}
	event.Int("status", resp.StatusCode).Msg("request")
	return resp, nil
}
