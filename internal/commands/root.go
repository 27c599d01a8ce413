package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"cashflow/internal/backend"
	"cashflow/internal/cli"
	"cashflow/internal/config"
	"cashflow/internal/core"
	"cashflow/internal/log"
	"cashflow/internal/services"
)

// app holds what a command needs once the backend is open.
type app struct {
	now     func() time.Time
	envFile string

	cfg        *config.Config
	logger     *log.Logger
	backend    *backend.BackendResult
	ledger     *services.LedgerService
	projector  *services.Projector
	forecaster *services.Forecaster
	dashboard  *services.Dashboard
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	return newRootCommand(time.Now)
}

func newRootCommand(now func() time.Time) *cobra.Command {
	a := &app{now: now}

	rootCmd := &cobra.Command{
		Use:   "cashflow",
		Short: "Recurring income and expense forecasting",
		Long:  "Expand recurring rules into dated occurrences and forecast month-end balances.",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	rootCmd.AddCommand(
		newRulesCommand(a),
		newProjectCommand(a),
		newForecastCommand(a),
		newCurveCommand(a),
		newDashboardCommand(a),
		newBalanceCommand(a),
		newOccurrenceCommand(a),
	)

	return rootCmd
}

// runE opens the backend around fn.
func (a *app) runE(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := a.open(cmd.Context()); err != nil {
			return err
		}
		ctx := log.WithContext(cmd.Context(), a.logger)
		cmd.SetContext(ctx)
		defer a.close(ctx)
		return fn(cmd, args)
	}
}

func (a *app) open(ctx context.Context) error {
	if err := cli.LoadEnvFile(a.envFile); err != nil {
		return err
	}

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return err
	}

	logger, err := cli.SetupLogger(cfg.LogLevel, log.ComponentCLI)
	if err != nil {
		return err
	}

	result, err := cli.OpenBackend(ctx, logger, cfg)
	if err != nil {
		return err
	}

	initial, err := cfg.Balance()
	if err != nil {
		result.Cleanup()
		return err
	}

	store := result.Store
	a.cfg, a.logger, a.backend = cfg, logger, result
	a.ledger = services.NewLedgerService(store, result.Publisher())
	a.projector = services.NewProjector(store, store)
	a.forecaster = services.NewForecaster(a.projector, store)
	a.dashboard = services.NewDashboard(store, a.forecaster, services.DashboardConfig{
		Horizon:        cfg.ForecastHorizon,
		InitialBalance: initial,
		CacheTTL:       cfg.DashboardCacheTTL,
	})
	return nil
}

func (a *app) close(ctx context.Context) {
	if a.backend == nil {
		return
	}
	if err := a.backend.Cleanup(); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Failed to close backend", log.FieldError, err)
	}
	a.backend = nil
}

// month parses a "YYYY-MM" flag value, defaulting to the current month.
func (a *app) month(value string) (core.Date, error) {
	if value == "" {
		return core.MonthStart(a.now()), nil
	}
	return core.ParseMonthKey(value)
}

// openingBalance returns the recorded opening balance of monthKey, or the configured
// initial balance when the month has none.
func (a *app) openingBalance(ctx context.Context, monthKey string) (core.Money, error) {
	balance, found, err := services.OpeningBalance(ctx, a.backend.Store, monthKey)
	if err != nil {
		return core.Money{}, fmt.Errorf("read opening balance of %s: %w", monthKey, err)
	}
	if found {
		return balance, nil
	}
	return a.cfg.Balance()
}
