// Package rest is the typed client for the REST collaborator. Every
// request except login carries the session's bearer credential; a 401
// anywhere terminates the session.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/forgewatch/machwatch/internal/models"
	"github.com/forgewatch/machwatch/internal/session"
)

// ErrUnauthorized is returned when the collaborator rejects the
// credential; the session has already been cleared by then.
var ErrUnauthorized = errors.New("unauthorized")

type Client struct {
	baseURL string
	http    *http.Client
	session *session.Store
	logger  zerolog.Logger
}

func NewClient(baseURL string, sess *session.Store, logger zerolog.Logger) *Client {
	clientLogger := logger.With().Str("component", "rest_client").Logger()
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout:   15 * time.Second,
			Transport: newLoggingTransport(clientLogger),
		},
		session: sess,
		logger:  clientLogger,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "marshal request body")
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if path != "/api/login" {
		if token := c.session.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.logger.Warn().Str("path", path).Msg("credential rejected, clearing session")
		c.session.Clear()
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return errors.Errorf("%s %s: %s (status %d)", method, path, apiErr.Error, resp.StatusCode)
		}
		return errors.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decode %s response", path)
	}
	return nil
}

// Login authenticates and persists the resulting session.
func (c *Client) Login(ctx context.Context, username, password string) (models.Session, error) {
	var sess models.Session
	err := c.do(ctx, http.MethodPost, "/api/login", map[string]string{
		"username": username,
		"password": password,
	}, &sess)
	if err != nil {
		return models.Session{}, err
	}
	if sess.Token == "" {
		return models.Session{}, errors.New("login response missing token")
	}
	if err := c.session.Save(sess); err != nil {
		return models.Session{}, err
	}
	return sess, nil
}

// ListMachines returns the machine registry. An unexpected payload shape
// yields an empty collection rather than an error.
func (c *Client) ListMachines(ctx context.Context) ([]models.Machine, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/api/machines", nil, &raw); err != nil {
		return nil, err
	}
	var machines []models.Machine
	if err := json.Unmarshal(raw, &machines); err != nil {
		c.logger.Warn().Msg("machines payload was not an array, substituting empty list")
		return []models.Machine{}, nil
	}
	return machines, nil
}

func (c *Client) GetMachine(ctx context.Context, machineID string) (models.Machine, error) {
	var machine models.Machine
	err := c.do(ctx, http.MethodGet, "/api/machines/"+url.PathEscape(machineID), nil, &machine)
	return machine, err
}

func (c *Client) CreateMachine(ctx context.Context, machine models.Machine) error {
	return c.do(ctx, http.MethodPost, "/api/machines", machine, nil)
}

func (c *Client) UpdateMachine(ctx context.Context, machine models.Machine) error {
	return c.do(ctx, http.MethodPut, "/api/machines/"+url.PathEscape(machine.MachineID), machine, nil)
}

func (c *Client) DeleteMachine(ctx context.Context, machineID string) error {
	return c.do(ctx, http.MethodDelete, "/api/machines/"+url.PathEscape(machineID), nil, nil)
}

// SetMachineStatus drives machine lifecycle transitions.
func (c *Client) SetMachineStatus(ctx context.Context, machineID string, status models.MachineStatus, reason string) error {
	path := fmt.Sprintf("/api/machines/%s/status", url.PathEscape(machineID))
	return c.do(ctx, http.MethodPost, path, map[string]string{
		"status": string(status),
		"reason": reason,
	}, nil)
}

// ListAlerts fetches the full alert collection, defending against
// non-array payloads the same way ListMachines does.
func (c *Client) ListAlerts(ctx context.Context) ([]models.Alert, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/api/alerts", nil, &raw); err != nil {
		return nil, err
	}
	var alerts []models.Alert
	if err := json.Unmarshal(raw, &alerts); err != nil {
		c.logger.Warn().Msg("alerts payload was not an array, substituting empty list")
		return []models.Alert{}, nil
	}
	return alerts, nil
}

func (c *Client) ResolveAlert(ctx context.Context, alertID string) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/alerts/%s/resolve", url.PathEscape(alertID)), nil, nil)
}

func (c *Client) DeleteAlert(ctx context.Context, alertID string) error {
	return c.do(ctx, http.MethodDelete, "/api/alerts/"+url.PathEscape(alertID), nil, nil)
}

func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := c.do(ctx, http.MethodGet, "/api/users", nil, &users)
	return users, err
}

func (c *Client) CreateUser(ctx context.Context, user models.User) error {
	return c.do(ctx, http.MethodPost, "/api/users", user, nil)
}

func (c *Client) UpdateUser(ctx context.Context, user models.User) error {
	return c.do(ctx, http.MethodPut, "/api/users/"+url.PathEscape(user.ID), user, nil)
}

func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodDelete, "/api/users/"+url.PathEscape(userID), nil, nil)
}

// AnalyzePause asks the collaborator whether pausing a machine's worker
// for the given duration is safe.
func (c *Client) AnalyzePause(ctx context.Context, machineID string, durationMinutes int) (models.PauseAnalysis, error) {
	var analysis models.PauseAnalysis
	err := c.do(ctx, http.MethodPost, "/api/workers/analyze-pause", map[string]interface{}{
		"machine_id": machineID,
		"duration":   durationMinutes,
	}, &analysis)
	return analysis, err
}

// SensorData returns recent readings for a machine, optionally filtered
// by sensor type.
func (c *Client) SensorData(ctx context.Context, machineID, sensorType string, limit int) ([]models.SensorReading, error) {
	q := url.Values{}
	if sensorType != "" {
		q.Set("sensor_type", sensorType)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	path := "/api/sensor-data/" + url.PathEscape(machineID)
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var readings []models.SensorReading
	err := c.do(ctx, http.MethodGet, path, nil, &readings)
	return readings, err
}
