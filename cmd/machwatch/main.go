package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/forgewatch/machwatch/internal/alerts"
	"github.com/forgewatch/machwatch/internal/channel"
	"github.com/forgewatch/machwatch/internal/config"
	"github.com/forgewatch/machwatch/internal/forecast"
	"github.com/forgewatch/machwatch/internal/history"
	"github.com/forgewatch/machwatch/internal/metrics"
	"github.com/forgewatch/machwatch/internal/models"
	"github.com/forgewatch/machwatch/internal/notify"
	"github.com/forgewatch/machwatch/internal/registry"
	"github.com/forgewatch/machwatch/internal/rest"
	"github.com/forgewatch/machwatch/internal/sensors"
	"github.com/forgewatch/machwatch/internal/session"
)

type application struct {
	config  *config.Config
	logger  zerolog.Logger
	session *session.Store
	api     *rest.Client
}

func main() {
	// Set up structured, level-based logging.
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	logger := zerolog.New(consoleWriter).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	sess := session.NewStore(cfg.SessionFile, logger)
	sess.Load()

	app := &application{
		config:  cfg,
		logger:  logger,
		session: sess,
		api:     rest.NewClient(cfg.APIBaseURL, sess, logger),
	}

	root := &cobra.Command{
		Use:           "machwatch",
		Short:         "Plant-floor machine monitoring console",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		app.loginCmd(),
		app.logoutCmd(),
		app.watchCmd(),
		app.machinesCmd(),
		app.usersCmd(),
		app.predictCmd(),
	)

	if err := root.Execute(); err != nil {
		logger.Fatal().Err(err).Msg("command failed")
	}
}

func (app *application) loginCmd() *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate against the monitoring backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := app.api.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			app.logger.Info().
				Str("user", sess.User.Username).
				Str("role", string(sess.User.Role)).
				Msg("logged in")
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	cmd.MarkFlagRequired("username")
	cmd.MarkFlagRequired("password")
	return cmd
}

func (app *application) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the current session",
		Run: func(cmd *cobra.Command, args []string) {
			app.session.Clear()
		},
	}
}

func (app *application) requireSession() (models.Session, error) {
	sess, ok := app.session.Current()
	if !ok {
		return models.Session{}, fmt.Errorf("no active session, run `machwatch login` first")
	}
	return sess, nil
}

func (app *application) watchCmd() *cobra.Command {
	var machineID string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream alerts and sensor updates until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := app.requireSession()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			reg := prometheus.NewRegistry()
			m := metrics.New(reg)
			if addr := app.config.MetricsAddr; addr != "" {
				router := mux.NewRouter()
				router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
				metricsSrv := &http.Server{Addr: addr, Handler: router}
				go func() {
					app.logger.Info().Str("addr", addr).Msg("metrics endpoint listening")
					if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						app.logger.Warn().Err(err).Msg("metrics endpoint failed")
					}
				}()
				defer metricsSrv.Shutdown(context.Background())
			}

			journal, err := history.Open(app.config.HistoryDir, app.logger)
			if err != nil {
				return err
			}
			defer journal.Close()

			agg := alerts.NewAggregator(app.api, journal, m, app.logger)
			readings := sensors.NewStore(app.config.SensorWindow, app.logger)

			supervisor := channel.NewSupervisor(app.config.Channel, m, app.logger)
			ch := supervisor.Open(ctx, sess.Token)
			defer ch.Close()
			app.session.OnClear(func() {
				ch.Close()
				cancel()
			})

			unbindAlerts := agg.Bind(ch)
			defer unbindAlerts()
			unbindSensors := readings.Bind(ch)
			defer unbindSensors()
			if machineID != "" {
				release := sensors.Focus(ch, machineID)
				defer release()
			}

			presenter := notify.NewPresenter(app.config.Notify.DisplayDuration, nil, m, app.logger)
			defer presenter.Close()
			presenter.OnDisplay(func(alert models.Alert) {
				app.logger.Warn().
					Str("machine_id", alert.MachineID).
					Str("sensor_type", alert.SensorType).
					Str("severity", string(models.SeverityForRisk(alert.RiskLevel))).
					Int("risk_level", alert.RiskLevel).
					Msg(alert.Message)
			})
			unsubscribe := agg.Subscribe(presenter.Publish)
			defer unsubscribe()

			if err := agg.Refresh(ctx); err != nil {
				app.logger.Warn().Err(err).Msg("initial alert fetch failed, continuing with live events only")
			}
			for _, alert := range agg.Emergencies() {
				app.logger.Warn().
					Str("machine_id", alert.MachineID).
					Msg("active emergency: " + alert.Message)
			}

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
			select {
			case sig := <-quit:
				app.logger.Info().Msgf("received signal: %s, shutting down", sig)
			case <-ctx.Done():
				app.logger.Info().Msg("session ended, shutting down")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&machineID, "machine", "", "scope live sensor updates to one machine")
	return cmd
}

func (app *application) machinesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "machines",
		Short: "Inspect and control the machine registry",
	}

	// One-shot commands discard local alert state on exit; the purge
	// inside Activate and DeleteMachine only matters for long-lived
	// sessions like watch, which build their own aggregator.
	newService := func() (*registry.Service, error) {
		if _, err := app.requireSession(); err != nil {
			return nil, err
		}
		agg := alerts.NewAggregator(app.api, nil, nil, app.logger)
		return registry.NewService(app.api, agg, app.logger), nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all machines",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}
			machines, err := svc.Machines(cmd.Context())
			if err != nil {
				return err
			}
			for _, machine := range machines {
				fmt.Printf("%-14s %-20s %-14s %s\n", machine.MachineID, machine.Name, machine.Status, machine.Location)
			}
			return nil
		},
	})

	action := func(use, short string, run func(ctx context.Context, svc *registry.Service, id string) bool) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <machine-id>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				svc, err := newService()
				if err != nil {
					return err
				}
				if !run(cmd.Context(), svc, args[0]) {
					return fmt.Errorf("%s failed for %s", use, args[0])
				}
				return nil
			},
		}
	}
	cmd.AddCommand(
		action("stop", "Emergency-stop a machine", func(ctx context.Context, svc *registry.Service, id string) bool {
			return svc.EmergencyStop(ctx, id)
		}),
		action("activate", "Return a machine to service", func(ctx context.Context, svc *registry.Service, id string) bool {
			return svc.Activate(ctx, id)
		}),
		action("maintenance", "Put a machine into maintenance", func(ctx context.Context, svc *registry.Service, id string) bool {
			return svc.SetMaintenance(ctx, id)
		}),
	)
	return cmd
}

func (app *application) usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage operator accounts",
	}

	requireAdmin := func() error {
		sess, err := app.requireSession()
		if err != nil {
			return err
		}
		if !sess.IsAdmin() {
			return fmt.Errorf("user management requires an admin session")
		}
		return nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all users",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAdmin(); err != nil {
				return err
			}
			users, err := app.api.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			for _, user := range users {
				fmt.Printf("%-24s %-16s %-8s %s\n", user.ID, user.Username, user.Role, user.Name)
			}
			return nil
		},
	})

	var username, name, role string
	add := &cobra.Command{
		Use:   "add",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAdmin(); err != nil {
				return err
			}
			if !models.IsValidRole(models.UserRole(role)) {
				return fmt.Errorf("invalid role %q, expected %s or %s", role, models.RoleWorker, models.RoleAdmin)
			}
			return app.api.CreateUser(cmd.Context(), models.User{
				Username: username,
				Name:     name,
				Role:     models.UserRole(role),
			})
		},
	}
	add.Flags().StringVarP(&username, "username", "u", "", "username")
	add.Flags().StringVar(&name, "name", "", "display name")
	add.Flags().StringVar(&role, "role", string(models.RoleWorker), "worker or admin")
	add.MarkFlagRequired("username")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <user-id>",
		Short: "Delete a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAdmin(); err != nil {
				return err
			}
			return app.api.DeleteUser(cmd.Context(), args[0])
		},
	})
	return cmd
}

func (app *application) predictCmd() *cobra.Command {
	var rounds int
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Run the demo 30-minute forecast over active machines",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.requireSession(); err != nil {
				return err
			}
			machines, err := app.api.ListMachines(cmd.Context())
			if err != nil {
				return err
			}

			stub := forecast.NewStub(app.logger)
			var forecasts map[string]models.MachineForecast
			for i := 1; i <= rounds; i++ {
				forecasts = stub.Analyze(machines, i)
			}
			for machineID, fc := range forecasts {
				fmt.Printf("%s (%s): %s\n", fc.MachineName, machineID, fc.Message)
				for _, p := range fc.Sensors {
					ttl := "-"
					if p.TimeToThreshold != nil {
						ttl = fmt.Sprintf("%d min", *p.TimeToThreshold)
					}
					fmt.Printf("  %-12s risk %3d%%  now %.2f -> %.2f  threshold in %s\n",
						p.SensorType, p.RiskProbability, p.CurrentValue, p.FutureValue, ttl)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&rounds, "rounds", 1, "number of refresh rounds to simulate")
	return cmd
}
