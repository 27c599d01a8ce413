package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cashflow/internal/cache"
	"cashflow/internal/core"
	"cashflow/internal/ledger"
)

// Projections builds the chained month summaries of a horizon.
type Projections interface {
	BuildProjections(ctx context.Context, horizon int, base core.Money, ref time.Time) []core.MonthProjection
}

// DashboardConfig controls the paging behaviour of the dashboard.
type DashboardConfig struct {
	Horizon        int
	InitialBalance core.Money // used when the current month has no balance occurrence
	CacheTTL       time.Duration
}

// Dashboard derives the figures displayed for one month of the horizon. It never
// writes to the store and never returns an error.
type Dashboard struct {
	occurrences ledger.OccurrenceReader
	forecaster  Projections
	cfg         DashboardConfig
	cache       cache.Cache[[]core.MonthProjection]
}

func NewDashboard(occurrences ledger.OccurrenceReader, forecaster Projections, cfg DashboardConfig) *Dashboard {
	if cfg.Horizon <= 0 {
		cfg.Horizon = 1
	}
	return &Dashboard{
		occurrences: occurrences,
		forecaster:  forecaster,
		cfg:         cfg,
		cache:       cache.NewLRUCache[[]core.MonthProjection](8, cfg.CacheTTL),
	}
}

// Page returns the figures of the month offset months after now's month. The horizon
// is built once per (month, horizon, opening balance) and reused while paging.
func (d *Dashboard) Page(ctx context.Context, now time.Time, offset int) core.DashboardFigures {
	monthKey := core.MonthKey(now)

	opening, found, err := OpeningBalance(ctx, d.occurrences, monthKey)
	if err != nil {
		slog.WarnContext(ctx, "Failed to read opening balance", "month_key", monthKey, "error", err)
	}
	if !found {
		opening = d.cfg.InitialBalance
	}

	key := fmt.Sprintf("%s|%d|%d", monthKey, d.cfg.Horizon, opening.Cents)
	projections, ok := d.cache.Get(key)
	if !ok {
		projections = d.forecaster.BuildProjections(ctx, d.cfg.Horizon, opening, now)
		d.cache.Set(key, projections)
	}

	return d.Figures(ctx, now, projections, offset)
}

// Invalidate drops every cached horizon. Call it after the ledger changes.
func (d *Dashboard) Invalidate() {
	d.cache.Clear()
}

// Figures selects the figures for offset. Month 0 is recomputed from live occurrences
// split at now; later months come straight from their projection. An offset outside the
// horizon yields zero figures for that month.
func (d *Dashboard) Figures(ctx context.Context, now time.Time, projections []core.MonthProjection, offset int) core.DashboardFigures {
	figures := core.DashboardFigures{
		Offset:   offset,
		MonthKey: core.MonthStart(now).AddMonths(offset).MonthKey(),
	}

	if offset == 0 {
		return d.current(ctx, now, figures)
	}

	for _, p := range projections {
		if p.MonthIndex == offset {
			figures.MonthKey = p.MonthKey
			figures.FixedIncomes = p.IncomesTotal
			figures.FixedExpenses = p.ExpensesTotal
			figures.CurrentBalance = p.StartBalance
			figures.Forecast = p.EndBalance
			return figures
		}
	}
	return figures
}

// current splits the current month's occurrences into realized and upcoming.
func (d *Dashboard) current(ctx context.Context, now time.Time, figures core.DashboardFigures) core.DashboardFigures {
	monthKey := figures.MonthKey

	opening, _, err := OpeningBalance(ctx, d.occurrences, monthKey)
	if err != nil {
		slog.WarnContext(ctx, "Failed to read opening balance", "month_key", monthKey, "error", err)
	}
	incomes := d.list(ctx, monthKey, core.KindIncome)
	expenses := d.list(ctx, monthKey, core.KindExpense)

	figures.FixedIncomes, figures.FixedExpenses = Totals(incomes, expenses)

	today := core.DateOf(now)
	var pastIn, pastOut, futureIn, futureOut []core.Occurrence
	for _, o := range incomes {
		if o.Date.After(today.Time) {
			futureIn = append(futureIn, o)
		} else {
			pastIn = append(pastIn, o)
		}
	}
	for _, o := range expenses {
		if o.Date.After(today.Time) {
			futureOut = append(futureOut, o)
		} else {
			pastOut = append(pastOut, o)
		}
	}

	realizedIn, realizedOut := Totals(pastIn, pastOut)
	upcomingIn, upcomingOut := Totals(futureIn, futureOut)

	figures.CurrentBalance = opening.Add(realizedIn).Sub(realizedOut)
	figures.Forecast = figures.CurrentBalance.Add(upcomingIn).Sub(upcomingOut)
	return figures
}

func (d *Dashboard) list(ctx context.Context, monthKey string, kind core.OccurrenceKind) []core.Occurrence {
	occ, err := d.occurrences.ListOccurrences(ctx, ledger.OccurrenceFilter{MonthKey: monthKey, Kind: kind})
	if err != nil {
		slog.WarnContext(ctx, "Failed to read occurrences for dashboard",
			"month_key", monthKey,
			"kind", kind,
			"error", err)
		return nil
	}
	return occ
}
