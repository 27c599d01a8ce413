package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"cashflow/internal/core"
	"cashflow/internal/ledger"
)

// ErrGeneratedOccurrence is returned when a caller tries to edit an occurrence owned by
// the projector.
var ErrGeneratedOccurrence = errors.New("occurrence is generated from a rule")

// Publisher announces that a month needs to be projected again.
type Publisher interface {
	PublishProjectionRequest(ctx context.Context, monthKey, reason string) error
}

// LedgerService orchestrates the user-facing edits of rules and manual occurrences.
type LedgerService struct {
	store     ledger.Store
	publisher Publisher
	newID     func() string
}

// NewLedgerService creates the service. publisher may be nil.
func NewLedgerService(store ledger.Store, publisher Publisher) *LedgerService {
	return &LedgerService{
		store:     store,
		publisher: publisher,
		newID:     uuid.NewString,
	}
}

// SaveRule validates and stores a rule, assigning an id to new ones, then requests a
// projection of now's month.
func (s *LedgerService) SaveRule(ctx context.Context, r core.Rule, now time.Time) (core.Rule, error) {
	r.Label = strings.TrimSpace(r.Label)
	if r.Periodicity != "" {
		r.Periodicity = r.Periodicity.Canonical()
	}
	if err := r.Validate(); err != nil {
		return core.Rule{}, fmt.Errorf("validate rule: %w", err)
	}
	if r.ID == "" {
		r.ID = s.newID()
	}

	if err := s.store.SaveRule(ctx, r); err != nil {
		return core.Rule{}, fmt.Errorf("save rule: %w", err)
	}

	slog.InfoContext(ctx, "Rule saved",
		"rule_id", r.ID,
		"kind", r.Kind,
		"label", r.Label,
		"amount_cents", r.Amount.Cents,
		"periodicity", r.Periodicity)

	s.requestProjection(ctx, core.MonthKey(now), "rule saved")
	return r, nil
}

// DeleteRule removes a rule and requests a projection of now's month.
func (s *LedgerService) DeleteRule(ctx context.Context, id string, now time.Time) error {
	if err := s.store.DeleteRule(ctx, id); err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}

	slog.InfoContext(ctx, "Rule deleted", "rule_id", id)
	s.requestProjection(ctx, core.MonthKey(now), "rule deleted")
	return nil
}

// AddManualOccurrence records a user-entered income or expense. amount is a magnitude;
// the sign follows kind.
func (s *LedgerService) AddManualOccurrence(ctx context.Context, date core.Date, kind core.OccurrenceKind, amount core.Money, title string) (core.Occurrence, error) {
	signed := amount.Abs()
	switch kind {
	case core.KindIncome:
	case core.KindExpense:
		signed = signed.Neg()
	default:
		return core.Occurrence{}, fmt.Errorf("%w: manual occurrences are income or expense, got %q", core.ErrInvalidKind, kind)
	}

	occ := core.Occurrence{
		ID:       s.newID(),
		Date:     date,
		Amount:   signed,
		Kind:     kind,
		Title:    strings.TrimSpace(title),
		MonthKey: date.MonthKey(),
		IsManual: true,
	}
	if err := occ.Validate(); err != nil {
		return core.Occurrence{}, fmt.Errorf("validate occurrence: %w", err)
	}

	if err := s.inTx(ctx, func(tx ledger.Tx) error {
		return tx.InsertOccurrence(ctx, occ)
	}); err != nil {
		return core.Occurrence{}, fmt.Errorf("add occurrence: %w", err)
	}

	slog.InfoContext(ctx, "Manual occurrence added",
		"occurrence_id", occ.ID,
		"kind", kind,
		"month_key", occ.MonthKey,
		"amount_cents", occ.Amount.Cents)
	return occ, nil
}

// SetOpeningBalance upserts the single manual balance occurrence of a month.
func (s *LedgerService) SetOpeningBalance(ctx context.Context, monthKey string, amount core.Money) (core.Occurrence, error) {
	month, err := core.ParseMonthKey(monthKey)
	if err != nil {
		return core.Occurrence{}, err
	}

	occ := core.Occurrence{
		Date:     month,
		Amount:   amount,
		Kind:     core.KindBalance,
		Title:    "Solde initial",
		MonthKey: month.MonthKey(),
		IsManual: true,
	}

	err = s.inTx(ctx, func(tx ledger.Tx) error {
		existing, err := tx.ListOccurrences(ctx, ledger.OccurrenceFilter{MonthKey: occ.MonthKey, Kind: core.KindBalance, Manual: ledger.Manual})
		if err != nil {
			return err
		}
		if len(existing) == 0 {
			occ.ID = s.newID()
			return tx.InsertOccurrence(ctx, occ)
		}

		occ.ID = existing[0].ID
		if err := tx.UpdateOccurrence(ctx, occ); err != nil {
			return err
		}
		for _, dup := range existing[1:] {
			if _, err := tx.DeleteOccurrences(ctx, ledger.OccurrenceFilter{ID: dup.ID}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return core.Occurrence{}, fmt.Errorf("set opening balance: %w", err)
	}

	slog.InfoContext(ctx, "Opening balance set", "month_key", occ.MonthKey, "amount_cents", amount.Cents)
	return occ, nil
}

// DeleteOccurrence removes a manual occurrence. Generated ones are refused.
func (s *LedgerService) DeleteOccurrence(ctx context.Context, id string) error {
	err := s.inTx(ctx, func(tx ledger.Tx) error {
		found, err := tx.ListOccurrences(ctx, ledger.OccurrenceFilter{ID: id})
		if err != nil {
			return err
		}
		if len(found) == 0 {
			return fmt.Errorf("occurrence %s: %w", id, ledger.ErrNotFound)
		}
		if !found[0].IsManual {
			return fmt.Errorf("occurrence %s: %w", id, ErrGeneratedOccurrence)
		}
		_, err = tx.DeleteOccurrences(ctx, ledger.OccurrenceFilter{ID: id})
		return err
	})
	if err != nil {
		return fmt.Errorf("delete occurrence: %w", err)
	}

	slog.InfoContext(ctx, "Manual occurrence deleted", "occurrence_id", id)
	return nil
}

// Rules lists the rules of kind, or all rules when kind is empty.
func (s *LedgerService) Rules(ctx context.Context, kind core.RuleKind) ([]core.Rule, error) {
	return s.store.ListRules(ctx, kind)
}

func (s *LedgerService) inTx(ctx context.Context, fn func(tx ledger.Tx) error) error {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *LedgerService) requestProjection(ctx context.Context, monthKey, reason string) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "No publisher configured, skipping projection request", "month_key", monthKey)
		return
	}

	if err := s.publisher.PublishProjectionRequest(ctx, monthKey, reason); err != nil {
		// The edit is stored; the nightly refresh picks it up.
		slog.ErrorContext(ctx, "Failed to publish projection request",
			"month_key", monthKey,
			"reason", reason,
			"error", err)
	}
}

// Close closes the store and, when it is closable, the publisher.
func (s *LedgerService) Close() error {
	var errs []error

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}

	if c, ok := s.publisher.(io.Closer); ok && c != nil {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %w", errors.Join(errs...))
	}
	return nil
}
