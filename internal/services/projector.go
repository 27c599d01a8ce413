package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"cashflow/internal/core"
	"cashflow/internal/ledger"
)

// Projector expands rules into the generated occurrences of one month.
// Calls for the same (month, kind) must be serialised by the caller.
type Projector struct {
	rules ledger.RuleReader
	store ledger.Transactor
	newID func() string
}

// NewProjector creates a projector reading rules from rules and writing occurrences
// through store.
func NewProjector(rules ledger.RuleReader, store ledger.Transactor) *Projector {
	return &Projector{
		rules: rules,
		store: store,
		newID: uuid.NewString,
	}
}

// Project replaces the generated occurrences of kind in target's month with a fresh
// expansion of the current rules. Manual occurrences are never touched. The deletion
// and the insertions are committed together; on failure nothing is written.
// It returns the number of generated occurrences now in the month.
func (p *Projector) Project(ctx context.Context, target time.Time, kind core.RuleKind) (int, error) {
	if p.rules == nil || p.store == nil {
		return 0, errors.New("projector not properly initialized")
	}
	if _, err := core.ParseRuleKind(string(kind)); err != nil {
		return 0, err
	}

	year, month := target.Year(), target.Month()
	monthKey := core.MonthKey(target)
	occKind := kind.OccurrenceKind()

	// Rules are read before the transaction opens: some backends hold a single
	// connection for the whole transaction.
	rules, err := p.rules.ListRules(ctx, kind)
	if err != nil {
		return 0, fmt.Errorf("list %s rules: %w", kind, err)
	}

	tx, err := p.store.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin projection: %w", err)
	}
	defer tx.Rollback()

	deleted, err := tx.DeleteOccurrences(ctx, ledger.OccurrenceFilter{
		MonthKey: monthKey,
		Kind:     occKind,
		Manual:   ledger.Generated,
	})
	if err != nil {
		return 0, fmt.Errorf("clear generated %s occurrences for %s: %w", kind, monthKey, err)
	}

	inserted := 0
	for _, rule := range rules {
		occ, ok := p.occurrenceFor(ctx, rule, year, month)
		if !ok {
			continue
		}
		if err := tx.InsertOccurrence(ctx, occ); err != nil {
			return 0, fmt.Errorf("insert occurrence for rule %s: %w", rule.ID, err)
		}
		inserted++
	}

	if deleted == 0 && inserted == 0 {
		return 0, nil
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit projection for %s: %w", monthKey, err)
	}

	slog.DebugContext(ctx, "Month projected",
		"month_key", monthKey,
		"kind", kind,
		"deleted", deleted,
		"inserted", inserted)

	return inserted, nil
}

// occurrenceFor builds the occurrence a rule generates in (year, month), if any.
func (p *Projector) occurrenceFor(ctx context.Context, rule core.Rule, year int, month time.Month) (core.Occurrence, bool) {
	timing := ResolveTiming(rule)
	if !timing.Fires(rule.Periodicity, month) {
		return core.Occurrence{}, false
	}

	date := timing.DateIn(year, month)
	if rule.Kind == core.RuleExpense && !rule.EndDate.IsEmpty() && date.After(rule.EndDate.Time) {
		return core.Occurrence{}, false
	}

	amount := rule.Amount.Abs()
	if rule.Kind == core.RuleExpense {
		amount = amount.Neg()
	}

	occ := core.Occurrence{
		ID:       p.newID(),
		Date:     date,
		Amount:   amount,
		Kind:     rule.Kind.OccurrenceKind(),
		Title:    rule.Label,
		MonthKey: date.MonthKey(),
		RuleID:   rule.ID,
	}
	if err := occ.Validate(); err != nil {
		slog.WarnContext(ctx, "Skipping rule occurrence",
			"rule_id", rule.ID,
			"label", rule.Label,
			"month_key", occ.MonthKey,
			"error", err)
		return core.Occurrence{}, false
	}
	return occ, true
}
