// Package ledger defines the storage ports used by the projection core.
package ledger

import (
	"context"
	"errors"
	"sort"

	"cashflow/internal/core"
)

var (
	ErrNotFound = errors.New("not found")
	ErrTxDone   = errors.New("transaction already committed or rolled back")
)

// OccurrenceFilter is an equality predicate over occurrences. Zero fields match anything.
type OccurrenceFilter struct {
	ID       string
	MonthKey string
	Kind     core.OccurrenceKind
	Manual   *bool
}

// Match reports whether o satisfies every set field of f.
func (f OccurrenceFilter) Match(o core.Occurrence) bool {
	if f.ID != "" && o.ID != f.ID {
		return false
	}
	if f.MonthKey != "" && o.MonthKey != f.MonthKey {
		return false
	}
	if f.Kind != "" && o.Kind != f.Kind {
		return false
	}
	if f.Manual != nil && o.IsManual != *f.Manual {
		return false
	}
	return true
}

// Manual and Generated are ready-made values for OccurrenceFilter.Manual.
var (
	manualTrue  = true
	manualFalse = false
	Manual      = &manualTrue
	Generated   = &manualFalse
)

// Ports for outbound adapters.
type (
	RuleReader interface {
		// ListRules returns the rules of the given kind, or all rules when kind is empty.
		ListRules(ctx context.Context, kind core.RuleKind) ([]core.Rule, error)
	}

	RuleWriter interface {
		// SaveRule inserts or replaces the rule with r.ID.
		SaveRule(ctx context.Context, r core.Rule) error
		DeleteRule(ctx context.Context, id string) error
	}

	OccurrenceReader interface {
		// ListOccurrences returns matching occurrences ordered by date then id.
		ListOccurrences(ctx context.Context, f OccurrenceFilter) ([]core.Occurrence, error)
	}

	// Tx is a unit of work over occurrences. Nothing is visible to other readers
	// until Commit returns nil.
	Tx interface {
		OccurrenceReader
		// DeleteOccurrences removes every match and returns how many were removed.
		DeleteOccurrences(ctx context.Context, f OccurrenceFilter) (int, error)
		InsertOccurrence(ctx context.Context, o core.Occurrence) error
		// UpdateOccurrence replaces the occurrence with o.ID; ErrNotFound if absent.
		UpdateOccurrence(ctx context.Context, o core.Occurrence) error
		Commit() error
		// Rollback discards the work. It is a no-op after Commit.
		Rollback() error
	}

	Transactor interface {
		Begin(ctx context.Context) (Tx, error)
	}

	// Store is the full persistence surface of a backend.
	Store interface {
		RuleReader
		RuleWriter
		OccurrenceReader
		Transactor
		Close() error
	}
)

// SortOccurrences orders occurrences by date then id.
func SortOccurrences(occ []core.Occurrence) {
	sort.SliceStable(occ, func(i, j int) bool {
		if !occ[i].Date.Equal(occ[j].Date.Time) {
			return occ[i].Date.Before(occ[j].Date.Time)
		}
		return occ[i].ID < occ[j].ID
	})
}
