package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"cashflow/internal/amqp"
	"cashflow/internal/core"
	"cashflow/internal/ledger"
	"cashflow/internal/log"
	"cashflow/internal/services"
)

// Consumer delivers projection requests until its context is done.
type Consumer interface {
	ConsumeProjectionRequests(ctx context.Context, handler func(context.Context, *amqp.ProjectionRequestMessage) error) error
}

type Config struct {
	Horizon        int
	InitialBalance core.Money // used when the current month has no balance occurrence
	Schedule       string     // standard cron spec of the horizon refresh
}

// ProjectionWorker runs every projection pass of the process behind one lock, so two
// passes never regenerate the same month concurrently.
type ProjectionWorker struct {
	projector   services.MonthProjector
	forecaster  services.Projections
	occurrences ledger.OccurrenceReader
	cfg         Config

	mu      sync.Mutex
	refresh singleflight.Group
	now     func() time.Time
}

func NewProjectionWorker(projector services.MonthProjector, forecaster services.Projections, occurrences ledger.OccurrenceReader, cfg Config) *ProjectionWorker {
	return &ProjectionWorker{
		projector:   projector,
		forecaster:  forecaster,
		occurrences: occurrences,
		cfg:         cfg,
		now:         time.Now,
	}
}

// HandleProjectionRequest regenerates income and expense occurrences of the requested
// month.
func (w *ProjectionWorker) HandleProjectionRequest(ctx context.Context, msg *amqp.ProjectionRequestMessage) error {
	month, err := msg.Month()
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Processing projection request", log.NewFields().
		WithOperation(log.OpProject).
		WithMonth(msg.MonthKey, "").
		With(log.FieldReason, msg.Reason).
		ToSlice()...)

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.projectMonth(ctx, month.Time)
}

func (w *ProjectionWorker) projectMonth(ctx context.Context, month time.Time) error {
	var errs []error
	for _, kind := range []core.RuleKind{core.RuleIncome, core.RuleExpense} {
		n, err := w.projector.Project(ctx, month, kind)
		if err != nil {
			errs = append(errs, fmt.Errorf("project %s: %w", kind, err))
			continue
		}
		slog.DebugContext(ctx, "Month regenerated", "month_key", core.MonthKey(month), "kind", kind, "occurrences", n)
	}
	return errors.Join(errs...)
}

// RefreshHorizon projects now's month, then rebuilds the whole horizon from its opening
// balance. Concurrent calls for the same month share one run.
func (w *ProjectionWorker) RefreshHorizon(ctx context.Context, now time.Time) ([]core.MonthProjection, error) {
	monthKey := core.MonthKey(now)

	v, err, shared := w.refresh.Do(monthKey, func() (any, error) {
		w.mu.Lock()
		defer w.mu.Unlock()

		started := time.Now()
		projectErr := w.projectMonth(ctx, now)
		if projectErr != nil {
			slog.WarnContext(ctx, "Current month projection failed", log.NewFields().
				WithOperation(log.OpRefresh).
				WithMonth(monthKey, "").
				WithError(projectErr).
				ToSlice()...)
		}

		opening, found, err := services.OpeningBalance(ctx, w.occurrences, monthKey)
		if err != nil {
			slog.WarnContext(ctx, "Failed to read opening balance, using configured balance", "month_key", monthKey, "error", err)
		}
		if !found {
			opening = w.cfg.InitialBalance
		}

		projections := w.forecaster.BuildProjections(ctx, w.cfg.Horizon, opening, now)

		slog.InfoContext(ctx, "Horizon refreshed",
			log.FieldMonthKey, monthKey,
			log.FieldHorizon, len(projections),
			"opening_cents", opening.Cents,
			log.FieldDuration, time.Since(started).Milliseconds())
		return projections, projectErr
	})

	if shared {
		slog.DebugContext(ctx, "Joined in-flight horizon refresh", "month_key", monthKey)
	}
	projections, _ := v.([]core.MonthProjection)
	return projections, err
}

// Run consumes projection requests from consumer (when not nil) and refreshes the
// horizon on the configured schedule until ctx is done.
func (w *ProjectionWorker) Run(ctx context.Context, consumer Consumer) error {
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(w.cfg.Schedule, func() {
		if _, err := w.RefreshHorizon(ctx, w.now()); err != nil {
			slog.ErrorContext(ctx, "Scheduled refresh failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule horizon refresh %q: %w", w.cfg.Schedule, err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		scheduler.Start()
		slog.InfoContext(ctx, "Horizon refresh scheduled", "schedule", w.cfg.Schedule)
		<-ctx.Done()
		<-scheduler.Stop().Done()
		return nil
	})

	if consumer != nil {
		g.Go(func() error {
			err := consumer.ConsumeProjectionRequests(ctx, w.HandleProjectionRequest)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	return g.Wait()
}
