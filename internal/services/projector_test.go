package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashflow/internal/core"
	"cashflow/internal/ledger"
	"cashflow/internal/ledger/memory"
)

func rule(id string, kind core.RuleKind, cents int64, p core.Periodicity, day int, months ...int) core.Rule {
	return core.Rule{ID: id, Kind: kind, Label: id, Amount: core.Money{Cents: cents}, Periodicity: p, Day: day, Months: months}
}

func month(year int, m time.Month) time.Time {
	return time.Date(year, m, 10, 12, 0, 0, 0, time.UTC)
}

func generated(t *testing.T, store ledger.OccurrenceReader, monthKey string, kind core.OccurrenceKind) []core.Occurrence {
	t.Helper()
	occ, err := store.ListOccurrences(context.Background(), ledger.OccurrenceFilter{MonthKey: monthKey, Kind: kind, Manual: ledger.Generated})
	require.NoError(t, err)
	return occ
}

func TestProjector_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.New(
		rule("salary", core.RuleIncome, 200000, core.Monthly, 1),
		rule("bonus", core.RuleIncome, 50000, core.Quarterly, 20, 1, 4, 7, 10),
	)
	manual := core.Occurrence{ID: "m", Date: core.NewDate(2025, 4, 3), Amount: core.Money{Cents: 999}, Kind: core.KindIncome, MonthKey: "2025-04", IsManual: true}
	tx, _ := store.Begin(ctx)
	require.NoError(t, tx.InsertOccurrence(ctx, manual))
	require.NoError(t, tx.Commit())

	p := NewProjector(store, store)

	n, err := p.Project(ctx, month(2025, time.April), core.RuleIncome)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	first := generated(t, store, "2025-04", core.KindIncome)

	n, err = p.Project(ctx, month(2025, time.April), core.RuleIncome)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	second := generated(t, store, "2025-04", core.KindIncome)

	require.Len(t, second, len(first))
	for i := range first {
		assert.True(t, first[i].Date.Equal(second[i].Date.Time))
		assert.Equal(t, first[i].Amount, second[i].Amount)
		assert.Equal(t, first[i].RuleID, second[i].RuleID)
	}

	all, err := store.ListOccurrences(ctx, ledger.OccurrenceFilter{MonthKey: "2025-04", Manual: ledger.Manual})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, manual.Amount, all[0].Amount, "manual occurrences are untouched")
}

func TestProjector_ExpenseSignAndKindIsolation(t *testing.T) {
	ctx := context.Background()
	store := memory.New(
		rule("rent", core.RuleExpense, 80000, core.Monthly, 5),
		rule("salary", core.RuleIncome, 200000, core.Monthly, 1),
	)
	p := NewProjector(store, store)

	_, err := p.Project(ctx, month(2025, time.March), core.RuleExpense)
	require.NoError(t, err)

	expenses := generated(t, store, "2025-03", core.KindExpense)
	require.Len(t, expenses, 1)
	assert.Equal(t, int64(-80000), expenses[0].Amount.Cents)
	assert.Equal(t, "rent", expenses[0].Title)
	assert.Equal(t, 5, expenses[0].Date.Day())
	assert.False(t, expenses[0].IsManual)

	assert.Empty(t, generated(t, store, "2025-03", core.KindIncome), "only the requested kind is projected")
}

func TestProjector_DayClamping(t *testing.T) {
	ctx := context.Background()
	store := memory.New(rule("eom", core.RuleIncome, 100, core.Monthly, 31))
	p := NewProjector(store, store)

	_, err := p.Project(ctx, month(2025, time.February), core.RuleIncome)
	require.NoError(t, err)
	feb := generated(t, store, "2025-02", core.KindIncome)
	require.Len(t, feb, 1)
	assert.Equal(t, "2025-02-28", feb[0].Date.Format("2006-01-02"))

	_, err = p.Project(ctx, month(2024, time.February), core.RuleIncome)
	require.NoError(t, err)
	leap := generated(t, store, "2024-02", core.KindIncome)
	require.Len(t, leap, 1)
	assert.Equal(t, "2024-02-29", leap[0].Date.Format("2006-01-02"))

	assert.Empty(t, generated(t, store, "2025-03", core.KindIncome), "no rollover into march")
}

func TestProjector_Eligibility(t *testing.T) {
	ctx := context.Background()
	store := memory.New(
		rule("quarterly", core.RuleIncome, 100, core.Quarterly, 1, 1, 4, 7, 10),
		rule("monthly", core.RuleIncome, 100, core.Monthly, 1, 6),
		rule("unknown", core.RuleIncome, 100, "weekly", 1, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12),
	)
	p := NewProjector(store, store)

	for m := time.January; m <= time.December; m++ {
		n, err := p.Project(ctx, month(2025, m), core.RuleIncome)
		require.NoError(t, err)

		want := 1
		if m == time.January || m == time.April || m == time.July || m == time.October {
			want = 2
		}
		assert.Equal(t, want, n, "month %s", m)
	}
}

func TestProjector_ComplementFallback(t *testing.T) {
	ctx := context.Background()
	legacy := core.Rule{ID: "tax", Kind: core.RuleExpense, Label: "Taxe foncière", Amount: core.Money{Cents: 90000}, Periodicity: "Annuel", Complement: "mois=10;jour=15;comment=avis"}
	store := memory.New(legacy)
	p := NewProjector(store, store)

	n, err := p.Project(ctx, month(2025, time.October), core.RuleExpense)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	occ := generated(t, store, "2025-10", core.KindExpense)
	assert.Equal(t, 15, occ[0].Date.Day())

	n, err = p.Project(ctx, month(2025, time.November), core.RuleExpense)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProjector_EndDate(t *testing.T) {
	ctx := context.Background()
	r := rule("loan", core.RuleExpense, 100, core.Monthly, 15)
	r.EndDate = core.NewDate(2025, 1, 10)
	store := memory.New(r)
	p := NewProjector(store, store)

	n, err := p.Project(ctx, month(2025, time.January), core.RuleExpense)
	require.NoError(t, err)
	assert.Zero(t, n, "occurrence after the end date is suppressed")

	n, err = p.Project(ctx, month(2024, time.December), core.RuleExpense)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestProjector_RemovesStaleOccurrences(t *testing.T) {
	ctx := context.Background()
	store := memory.New(rule("gym", core.RuleExpense, 3000, core.Monthly, 2))
	p := NewProjector(store, store)

	_, err := p.Project(ctx, month(2025, time.May), core.RuleExpense)
	require.NoError(t, err)
	require.NoError(t, store.DeleteRule(ctx, "gym"))

	n, err := p.Project(ctx, month(2025, time.May), core.RuleExpense)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, generated(t, store, "2025-05", core.KindExpense))
}

func TestProjector_InvalidKind(t *testing.T) {
	store := memory.New()
	_, err := NewProjector(store, store).Project(context.Background(), month(2025, time.May), "balance")
	assert.ErrorIs(t, err, core.ErrInvalidKind)
}

// failingStore fails the n-th insertion of every transaction.
type failingStore struct {
	*memory.Store
	failAt int
}

func (f failingStore) Begin(ctx context.Context) (ledger.Tx, error) {
	tx, err := f.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &failingTx{Tx: tx, failAt: f.failAt}, nil
}

type failingTx struct {
	ledger.Tx
	failAt int
	seen   int
}

func (t *failingTx) InsertOccurrence(ctx context.Context, o core.Occurrence) error {
	t.seen++
	if t.seen == t.failAt {
		return errors.New("disk full")
	}
	return t.Tx.InsertOccurrence(ctx, o)
}

func TestProjector_NoPartialCommit(t *testing.T) {
	ctx := context.Background()
	mem := memory.New(
		rule("a", core.RuleIncome, 100, core.Monthly, 1),
		rule("b", core.RuleIncome, 200, core.Monthly, 2),
	)
	_, err := NewProjector(mem, mem).Project(ctx, month(2025, time.June), core.RuleIncome)
	require.NoError(t, err)
	before := generated(t, mem, "2025-06", core.KindIncome)
	require.Len(t, before, 2)

	broken := failingStore{Store: mem, failAt: 2}
	_, err = NewProjector(mem, broken).Project(ctx, month(2025, time.June), core.RuleIncome)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	after := generated(t, mem, "2025-06", core.KindIncome)
	require.Len(t, after, 2)
	assert.Equal(t, before[0].ID, after[0].ID, "previous generation survives a failed run")
}
