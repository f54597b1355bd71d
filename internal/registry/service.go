// Package registry is the glue between machine lifecycle actions and the
// alert state they imply: an emergency stop both flips machine status via
// REST and synthesizes a local alert, and reactivation purges the
// machine's stale alerts.
package registry

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/forgewatch/machwatch/internal/alerts"
	"github.com/forgewatch/machwatch/internal/models"
	"github.com/forgewatch/machwatch/internal/rest"
)

type Service struct {
	api    *rest.Client
	alerts *alerts.Aggregator
	logger zerolog.Logger
}

func NewService(api *rest.Client, agg *alerts.Aggregator, logger zerolog.Logger) *Service {
	return &Service{
		api:    api,
		alerts: agg,
		logger: logger.With().Str("component", "registry").Logger(),
	}
}

func (s *Service) Machines(ctx context.Context) ([]models.Machine, error) {
	return s.api.ListMachines(ctx)
}

func (s *Service) Machine(ctx context.Context, machineID string) (models.Machine, error) {
	return s.api.GetMachine(ctx, machineID)
}

// EmergencyStop halts a machine and surfaces the emergency immediately:
// the local alert is inserted before the live event echoes back.
func (s *Service) EmergencyStop(ctx context.Context, machineID string) bool {
	err := s.api.SetMachineStatus(ctx, machineID, models.MachineStatusEmergencyStop, "manual emergency stop")
	if err != nil {
		s.logger.Error().Err(err).Str("machine_id", machineID).Msg("emergency stop failed")
		return false
	}

	s.alerts.AddLocal(models.Alert{
		MachineID:  machineID,
		SensorType: "system",
		RiskLevel:  100,
		Category:   models.AlertCategoryEmergency,
		Message:    fmt.Sprintf("%s: machine %s halted manually", models.EmergencyMarker, machineID),
		Suggestions: []string{
			"Inspect the machine before restarting",
			"Reactivate from the machine registry once cleared",
		},
	})
	s.logger.Info().Str("machine_id", machineID).Msg("emergency stop issued")
	return true
}

// Activate returns a machine to service and clears every alert that
// referenced it, stale warnings included.
func (s *Service) Activate(ctx context.Context, machineID string) bool {
	err := s.api.SetMachineStatus(ctx, machineID, models.MachineStatusActive, "manual activation")
	if err != nil {
		s.logger.Error().Err(err).Str("machine_id", machineID).Msg("activation failed")
		return false
	}
	s.alerts.RemoveByMachine(machineID)
	s.logger.Info().Str("machine_id", machineID).Msg("machine activated")
	return true
}

func (s *Service) SetMaintenance(ctx context.Context, machineID string) bool {
	err := s.api.SetMachineStatus(ctx, machineID, models.MachineStatusMaintenance, "manual maintenance")
	if err != nil {
		s.logger.Error().Err(err).Str("machine_id", machineID).Msg("maintenance transition failed")
		return false
	}
	s.logger.Info().Str("machine_id", machineID).Msg("machine in maintenance")
	return true
}

func (s *Service) CreateMachine(ctx context.Context, machine models.Machine) error {
	return s.api.CreateMachine(ctx, machine)
}

func (s *Service) UpdateMachine(ctx context.Context, machine models.Machine) error {
	return s.api.UpdateMachine(ctx, machine)
}

func (s *Service) DeleteMachine(ctx context.Context, machineID string) bool {
	if err := s.api.DeleteMachine(ctx, machineID); err != nil {
		s.logger.Error().Err(err).Str("machine_id", machineID).Msg("machine delete failed")
		return false
	}
	s.alerts.RemoveByMachine(machineID)
	return true
}

func (s *Service) Users(ctx context.Context) ([]models.User, error) {
	return s.api.ListUsers(ctx)
}

func (s *Service) CreateUser(ctx context.Context, user models.User) error {
	return s.api.CreateUser(ctx, user)
}

func (s *Service) UpdateUser(ctx context.Context, user models.User) error {
	return s.api.UpdateUser(ctx, user)
}

func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	return s.api.DeleteUser(ctx, userID)
}

// AnalyzePause forwards a pause-risk query for a machine's worker.
func (s *Service) AnalyzePause(ctx context.Context, machineID string, durationMinutes int) (models.PauseAnalysis, error) {
	return s.api.AnalyzePause(ctx, machineID, durationMinutes)
}
