package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgewatch/machwatch/internal/models"
	"github.com/forgewatch/machwatch/internal/session"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *session.Store) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	sess := session.NewStore(filepath.Join(t.TempDir(), "session.json"), zerolog.Nop())
	return NewClient(srv.URL, sess, zerolog.Nop()), sess
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestLoginSavesSessionAndSkipsBearerHeader(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/api/login", func(w http.ResponseWriter, req *http.Request) {
		assert.Empty(t, req.Header.Get("Authorization"))
		var creds map[string]string
		require.NoError(t, json.NewDecoder(req.Body).Decode(&creds))
		if creds["username"] != "marc" || creds["password"] != "secret" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "bad credentials"})
			return
		}
		writeJSON(w, http.StatusOK, models.Session{
			Token: "tok-123",
			User:  models.User{ID: "u1", Username: "marc", Role: models.RoleWorker},
		})
	}).Methods(http.MethodPost)

	client, sess := newTestClient(t, r)

	got, err := client.Login(context.Background(), "marc", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok-123", got.Token)
	assert.Equal(t, "tok-123", sess.Token())
}

func TestRequestsCarryBearerToken(t *testing.T) {
	var seen string
	r := mux.NewRouter()
	r.HandleFunc("/api/machines", func(w http.ResponseWriter, req *http.Request) {
		seen = req.Header.Get("Authorization")
		writeJSON(w, http.StatusOK, []models.Machine{{MachineID: "machine-001"}})
	}).Methods(http.MethodGet)

	client, sess := newTestClient(t, r)
	require.NoError(t, sess.Save(models.Session{Token: "tok-456"}))

	machines, err := client.ListMachines(context.Background())
	require.NoError(t, err)
	assert.Len(t, machines, 1)
	assert.Equal(t, "Bearer tok-456", seen)
}

func TestUnauthorizedClearsSession(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/api/alerts", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "token expired"})
	}).Methods(http.MethodGet)

	client, sess := newTestClient(t, r)
	require.NoError(t, sess.Save(models.Session{Token: "stale"}))

	cleared := false
	sess.OnClear(func() { cleared = true })

	_, err := client.ListAlerts(context.Background())
	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.True(t, cleared)
	assert.Empty(t, sess.Token())
}

func TestListAlertsToleratesNonArrayPayload(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/api/alerts", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"error": "unexpected shape"})
	}).Methods(http.MethodGet)

	client, _ := newTestClient(t, r)

	alerts, err := client.ListAlerts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestErrorResponseBodyIsSurfaced(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/api/machines/{id}/status", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "machine already stopped"})
	}).Methods(http.MethodPost)

	client, _ := newTestClient(t, r)

	err := client.SetMachineStatus(context.Background(), "machine-001", models.MachineStatusEmergencyStop, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "machine already stopped")
	assert.Contains(t, err.Error(), "409")
}

func TestResolveAlertHitsResolveEndpoint(t *testing.T) {
	var resolved string
	r := mux.NewRouter()
	r.HandleFunc("/api/alerts/{id}/resolve", func(w http.ResponseWriter, req *http.Request) {
		resolved = mux.Vars(req)["id"]
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodPost)

	client, _ := newTestClient(t, r)

	require.NoError(t, client.ResolveAlert(context.Background(), "a1"))
	assert.Equal(t, "a1", resolved)
}

func TestAnalyzePauseRoundtrip(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/api/workers/analyze-pause", func(w http.ResponseWriter, req *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		assert.Equal(t, "machine-003", body["machine_id"])
		writeJSON(w, http.StatusOK, models.PauseAnalysis{
			IsSafe:          false,
			RiskProbability: 80,
		})
	}).Methods(http.MethodPost)

	client, _ := newTestClient(t, r)

	analysis, err := client.AnalyzePause(context.Background(), "machine-003", 30)
	require.NoError(t, err)
	assert.False(t, analysis.IsSafe)
	assert.Equal(t, 80, analysis.RiskProbability)
}
