package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgewatch/machwatch/internal/models"
)

func signedToken(t *testing.T, expiresAt time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": "user-1",
		"exp": expiresAt.Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func testSession(token string) models.Session {
	return models.Session{
		Token: token,
		User:  models.User{ID: "user-1", Username: "marc", Role: models.RoleWorker},
	}
}

func TestSaveThenLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewStore(path, zerolog.Nop())

	sess := testSession(signedToken(t, time.Now().Add(time.Hour)))
	require.NoError(t, store.Save(sess))

	restored := NewStore(path, zerolog.Nop())
	got, ok := restored.Load()
	require.True(t, ok)
	assert.Equal(t, sess, got)
	assert.Equal(t, sess.Token, restored.Token())
}

func TestLoadDiscardsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	store := NewStore(path, zerolog.Nop())
	_, ok := store.Load()
	assert.False(t, ok)

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "corrupt file should be removed")
}

func TestLoadDiscardsExpiredToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewStore(path, zerolog.Nop())
	require.NoError(t, store.Save(testSession(signedToken(t, time.Now().Add(-time.Hour)))))

	restored := NewStore(path, zerolog.Nop())
	_, ok := restored.Load()
	assert.False(t, ok)

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestLoadAcceptsOpaqueToken(t *testing.T) {
	// Non-JWT bearer tokens carry no exp claim; staleness is the
	// server's call.
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewStore(path, zerolog.Nop())
	require.NoError(t, store.Save(testSession("opaque-bearer-credential")))

	restored := NewStore(path, zerolog.Nop())
	_, ok := restored.Load()
	assert.True(t, ok)
}

func TestClearRemovesStateAndFiresHooksOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewStore(path, zerolog.Nop())

	fired := 0
	store.OnClear(func() { fired++ })
	require.NoError(t, store.Save(testSession("tok")))

	store.Clear()
	assert.Equal(t, 1, fired)
	assert.Empty(t, store.Token())
	_, ok := store.Current()
	assert.False(t, ok)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Clearing an already-empty store is a no-op for hooks.
	store.Clear()
	assert.Equal(t, 1, fired)
}
