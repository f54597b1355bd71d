// Package session holds the current authenticated identity and persists
// it across runs. A cleared session cascades to everything that depends
// on it (channel teardown, pending optimistic state).
package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/forgewatch/machwatch/internal/models"
)

type Store struct {
	mu      sync.Mutex
	path    string
	current *models.Session
	onClear []func()
	logger  zerolog.Logger
}

func NewStore(path string, logger zerolog.Logger) *Store {
	return &Store{
		path:   path,
		logger: logger.With().Str("component", "session").Logger(),
	}
}

// Current returns the active session, if any.
func (s *Store) Current() (models.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return models.Session{}, false
	}
	return *s.current, true
}

func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ""
	}
	return s.current.Token
}

// Save stores the session in memory and persists it with owner-only
// permissions.
func (s *Store) Save(sess models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal session")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return errors.Wrap(err, "create session dir")
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return errors.Wrap(err, "write session file")
	}
	s.current = &sess
	return nil
}

// Load restores a persisted session. Corrupt or expired sessions are
// discarded rather than restored.
func (s *Store) Load() (models.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return models.Session{}, false
	}

	var sess models.Session
	if err := json.Unmarshal(data, &sess); err != nil || sess.Token == "" {
		s.logger.Warn().Msg("discarding corrupt session file")
		os.Remove(s.path)
		return models.Session{}, false
	}
	if tokenExpired(sess.Token) {
		s.logger.Info().Str("user", sess.User.Username).Msg("persisted session expired")
		os.Remove(s.path)
		return models.Session{}, false
	}

	s.current = &sess
	return sess, true
}

// Clear ends the session: in-memory state, the persisted file, and every
// registered dependent are torn down. Safe to call repeatedly.
func (s *Store) Clear() {
	s.mu.Lock()
	hadSession := s.current != nil
	s.current = nil
	os.Remove(s.path)
	hooks := make([]func(), len(s.onClear))
	copy(hooks, s.onClear)
	s.mu.Unlock()

	if !hadSession {
		return
	}
	s.logger.Info().Msg("session cleared")
	for _, fn := range hooks {
		fn()
	}
}

// OnClear registers a hook invoked whenever an active session ends.
func (s *Store) OnClear(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClear = append(s.onClear, fn)
}

// tokenExpired inspects the exp claim without verifying the signature;
// only the server can verify, this is just a cheap staleness check.
// Opaque non-JWT tokens are assumed valid.
func tokenExpired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	return !claims.VerifyExpiresAt(time.Now().Unix(), false)
}
