package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"cashflow/internal/core"
	"cashflow/internal/ledger"
)

// ForecastStore is what the forecaster reads and writes besides the rules.
type ForecastStore interface {
	ledger.OccurrenceReader
	ledger.Transactor
}

// MonthProjector regenerates the generated occurrences of one month and kind.
type MonthProjector interface {
	Project(ctx context.Context, target time.Time, kind core.RuleKind) (int, error)
}

// Forecaster chains month projections across a horizon, carrying each month's ending
// balance into the next month's opening balance.
type Forecaster struct {
	projector MonthProjector
	store     ForecastStore
	newID     func() string
}

func NewForecaster(projector MonthProjector, store ForecastStore) *Forecaster {
	return &Forecaster{
		projector: projector,
		store:     store,
		newID:     uuid.NewString,
	}
}

// BuildProjections returns one projection per month of the horizon starting at ref's
// month. Month 0 is read as stored; every later month is regenerated first and gets an
// auto balance occurrence holding its carried-in balance.
//
// Failures never abort the horizon: a month whose regeneration or fetch fails is logged
// and rolled up from whatever could be read.
func (f *Forecaster) BuildProjections(ctx context.Context, horizon int, base core.Money, ref time.Time) []core.MonthProjection {
	if horizon <= 0 {
		return nil
	}

	start := core.MonthStart(ref)
	running := base
	projections := make([]core.MonthProjection, 0, horizon)

	for offset := 0; offset < horizon; offset++ {
		monthDate := start.AddMonths(offset)
		monthKey := monthDate.MonthKey()

		if offset > 0 {
			f.regenerate(ctx, monthDate, running)
		}

		incomes := f.fetch(ctx, monthKey, core.KindIncome)
		expenses := f.fetch(ctx, monthKey, core.KindExpense)
		incomesTotal, expensesTotal := Totals(incomes, expenses)
		end := running.Add(incomesTotal).Sub(expensesTotal)

		projections = append(projections, core.MonthProjection{
			MonthIndex:    offset,
			MonthDate:     monthDate,
			MonthKey:      monthKey,
			StartBalance:  running,
			IncomesTotal:  incomesTotal,
			ExpensesTotal: expensesTotal,
			EndBalance:    end,
		})
		running = end
	}

	slog.DebugContext(ctx, "Forecast built",
		"from", start.MonthKey(),
		"horizon", horizon,
		"start_cents", base.Cents,
		"end_cents", running.Cents)

	return projections
}

// regenerate projects both kinds for a future month and records its opening balance.
func (f *Forecaster) regenerate(ctx context.Context, monthDate core.Date, opening core.Money) {
	for _, kind := range []core.RuleKind{core.RuleIncome, core.RuleExpense} {
		if _, err := f.projector.Project(ctx, monthDate.Time, kind); err != nil {
			slog.WarnContext(ctx, "Projection failed, using stored occurrences",
				"month_key", monthDate.MonthKey(),
				"kind", kind,
				"error", err)
		}
	}
	if err := f.upsertAutoBalance(ctx, monthDate, opening); err != nil {
		slog.WarnContext(ctx, "Failed to record carried balance",
			"month_key", monthDate.MonthKey(),
			"amount_cents", opening.Cents,
			"error", err)
	}
}

// upsertAutoBalance keeps exactly one generated balance occurrence for the month.
func (f *Forecaster) upsertAutoBalance(ctx context.Context, monthDate core.Date, amount core.Money) error {
	tx, err := f.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin balance upsert: %w", err)
	}
	defer tx.Rollback()

	filter := ledger.OccurrenceFilter{MonthKey: monthDate.MonthKey(), Kind: core.KindBalance, Manual: ledger.Generated}
	existing, err := tx.ListOccurrences(ctx, filter)
	if err != nil {
		return fmt.Errorf("find auto balance: %w", err)
	}

	occ := core.Occurrence{
		Date:     monthDate,
		Amount:   amount,
		Kind:     core.KindBalance,
		Title:    "Solde reporté",
		MonthKey: monthDate.MonthKey(),
	}

	if len(existing) > 0 {
		occ.ID = existing[0].ID
		if err := tx.UpdateOccurrence(ctx, occ); err != nil {
			return fmt.Errorf("update auto balance: %w", err)
		}
		for _, dup := range existing[1:] {
			if _, err := tx.DeleteOccurrences(ctx, ledger.OccurrenceFilter{ID: dup.ID}); err != nil {
				return fmt.Errorf("delete duplicate auto balance: %w", err)
			}
		}
	} else {
		occ.ID = f.newID()
		if err := tx.InsertOccurrence(ctx, occ); err != nil {
			return fmt.Errorf("insert auto balance: %w", err)
		}
	}

	return tx.Commit()
}

func (f *Forecaster) fetch(ctx context.Context, monthKey string, kind core.OccurrenceKind) []core.Occurrence {
	occ, err := f.store.ListOccurrences(ctx, ledger.OccurrenceFilter{MonthKey: monthKey, Kind: kind})
	if err != nil {
		slog.WarnContext(ctx, "Failed to fetch occurrences, treating month as empty",
			"month_key", monthKey,
			"kind", kind,
			"error", err)
		return nil
	}
	return occ
}

// Curve returns the daily balance curve of month, starting from start.
func (f *Forecaster) Curve(ctx context.Context, month time.Time, start core.Money) []core.ForecastPoint {
	monthKey := core.MonthKey(month)
	return ComputeForecastSeries(month,
		f.fetch(ctx, monthKey, core.KindIncome),
		f.fetch(ctx, monthKey, core.KindExpense),
		start)
}

// Totals sums income amounts and expense magnitudes.
func Totals(incomes, expenses []core.Occurrence) (incomesTotal, expensesTotal core.Money) {
	for _, o := range incomes {
		incomesTotal = incomesTotal.Add(o.Amount)
	}
	for _, o := range expenses {
		expensesTotal = expensesTotal.Add(o.Amount.Abs())
	}
	return incomesTotal, expensesTotal
}

// ComputeForecastSeries returns one point per calendar day of monthDate's month. An
// occurrence dated on a day is already reflected in that day's balance. Occurrences
// outside the month are ignored.
func ComputeForecastSeries(monthDate time.Time, incomes, expenses []core.Occurrence, start core.Money) []core.ForecastPoint {
	deltas := make(map[string]core.Money)
	for _, o := range incomes {
		key := o.Date.Format(time.DateOnly)
		deltas[key] = deltas[key].Add(o.Amount)
	}
	for _, o := range expenses {
		key := o.Date.Format(time.DateOnly)
		deltas[key] = deltas[key].Sub(o.Amount.Abs())
	}

	first := core.MonthStart(monthDate)
	end := first.AddMonths(1)
	points := make([]core.ForecastPoint, 0, 31)
	balance := start
	for d := first.Time; d.Before(end.Time); d = d.AddDate(0, 0, 1) {
		if delta, ok := deltas[d.Format(time.DateOnly)]; ok {
			balance = balance.Add(delta)
		}
		points = append(points, core.ForecastPoint{Date: d, Balance: balance})
	}
	return points
}

// OpeningBalance returns the opening balance of a month: the sum of its manual balance
// occurrences when any exist, else the sum of its generated ones. found is false when
// the month has no balance occurrence at all.
func OpeningBalance(ctx context.Context, reader ledger.OccurrenceReader, monthKey string) (balance core.Money, found bool, err error) {
	balances, err := reader.ListOccurrences(ctx, ledger.OccurrenceFilter{MonthKey: monthKey, Kind: core.KindBalance})
	if err != nil {
		return core.Money{}, false, fmt.Errorf("list balances for %s: %w", monthKey, err)
	}

	var manual, auto core.Money
	var hasManual bool
	for _, b := range balances {
		if b.IsManual {
			manual = manual.Add(b.Amount)
			hasManual = true
		} else {
			auto = auto.Add(b.Amount)
		}
	}

	switch {
	case hasManual:
		return manual, true, nil
	case len(balances) > 0:
		return auto, true, nil
	}
	return core.Money{}, false, nil
}
