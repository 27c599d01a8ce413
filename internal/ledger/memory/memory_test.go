package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashflow/internal/core"
	"cashflow/internal/ledger"
)

func occurrence(id string, day int, kind core.OccurrenceKind, cents int64, manual bool) core.Occurrence {
	d := core.NewDate(2025, 3, day)
	return core.Occurrence{ID: id, Date: d, Amount: core.Money{Cents: cents}, Kind: kind, MonthKey: d.MonthKey(), IsManual: manual}
}

func TestTxCommitIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := New()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.InsertOccurrence(ctx, occurrence("a", 1, core.KindIncome, 100, false)))
	require.NoError(t, tx.InsertOccurrence(ctx, occurrence("b", 2, core.KindExpense, -50, true)))

	visible, err := s.ListOccurrences(ctx, ledger.OccurrenceFilter{})
	require.NoError(t, err)
	assert.Empty(t, visible, "uncommitted work must not be visible")

	require.NoError(t, tx.Commit())
	require.NoError(t, tx.Rollback(), "rollback after commit is a no-op")

	visible, err = s.ListOccurrences(ctx, ledger.OccurrenceFilter{})
	require.NoError(t, err)
	require.Len(t, visible, 2)
	assert.Equal(t, "a", visible[0].ID)

	assert.ErrorIs(t, tx.Commit(), ledger.ErrTxDone)
}

func TestTxRollbackDiscards(t *testing.T) {
	ctx := context.Background()
	s := New()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.InsertOccurrence(ctx, occurrence("a", 1, core.KindIncome, 100, false)))
	require.NoError(t, tx.Rollback())

	visible, err := s.ListOccurrences(ctx, ledger.OccurrenceFilter{})
	require.NoError(t, err)
	assert.Empty(t, visible)
}

func TestTxDeleteAndUpdate(t *testing.T) {
	ctx := context.Background()
	s := New()

	tx, _ := s.Begin(ctx)
	require.NoError(t, tx.InsertOccurrence(ctx, occurrence("a", 1, core.KindIncome, 100, false)))
	require.NoError(t, tx.InsertOccurrence(ctx, occurrence("b", 2, core.KindIncome, 200, true)))
	require.NoError(t, tx.Commit())

	tx, _ = s.Begin(ctx)
	n, err := tx.DeleteOccurrences(ctx, ledger.OccurrenceFilter{Kind: core.KindIncome, Manual: ledger.Generated})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	updated := occurrence("b", 3, core.KindIncome, 300, true)
	require.NoError(t, tx.UpdateOccurrence(ctx, updated))
	assert.ErrorIs(t, tx.UpdateOccurrence(ctx, occurrence("zz", 1, core.KindIncome, 1, true)), ledger.ErrNotFound)
	assert.Error(t, tx.InsertOccurrence(ctx, updated), "duplicate ids are refused")
	require.NoError(t, tx.Commit())

	got, err := s.ListOccurrences(ctx, ledger.OccurrenceFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(300), got[0].Amount.Cents)
}

func TestTxOverlappingCommitsKeepEachOthersRows(t *testing.T) {
	ctx := context.Background()
	s := New()

	first, err := s.Begin(ctx)
	require.NoError(t, err)
	second, err := s.Begin(ctx)
	require.NoError(t, err)

	require.NoError(t, second.InsertOccurrence(ctx, occurrence("manual", 4, core.KindExpense, -30, true)))
	require.NoError(t, second.Commit())

	require.NoError(t, first.InsertOccurrence(ctx, occurrence("gen", 1, core.KindIncome, 100, false)))
	require.NoError(t, first.Commit())

	got, err := s.ListOccurrences(ctx, ledger.OccurrenceFilter{})
	require.NoError(t, err)
	ids := make([]string, 0, len(got))
	for _, o := range got {
		ids = append(ids, o.ID)
	}
	assert.ElementsMatch(t, []string{"manual", "gen"}, ids)
}

func TestTxOverlappingDeleteOnlyRemovesWhatItSaw(t *testing.T) {
	ctx := context.Background()
	s := New()

	seed, _ := s.Begin(ctx)
	require.NoError(t, seed.InsertOccurrence(ctx, occurrence("old", 1, core.KindIncome, 100, false)))
	require.NoError(t, seed.Commit())

	regen, _ := s.Begin(ctx)
	edit, _ := s.Begin(ctx)
	require.NoError(t, edit.InsertOccurrence(ctx, occurrence("balance", 1, core.KindBalance, 500, true)))
	require.NoError(t, edit.Commit())

	n, err := regen.DeleteOccurrences(ctx, ledger.OccurrenceFilter{Manual: ledger.Generated})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, regen.InsertOccurrence(ctx, occurrence("new", 1, core.KindIncome, 100, false)))
	require.NoError(t, regen.Commit())

	got, err := s.ListOccurrences(ctx, ledger.OccurrenceFilter{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "balance", got[0].ID)
	assert.Equal(t, "new", got[1].ID)
}

func TestRules(t *testing.T) {
	ctx := context.Background()
	s := New(core.Rule{Kind: core.RuleIncome, Label: "Salaire", Amount: core.Money{Cents: 1}, Periodicity: core.Monthly})

	rules, err := s.ListRules(ctx, "")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.NotEmpty(t, rules[0].ID, "ids are assigned on seed")

	r := rules[0]
	r.Label = "Salaire net"
	require.NoError(t, s.SaveRule(ctx, r))
	require.NoError(t, s.SaveRule(ctx, core.Rule{ID: "x", Kind: core.RuleExpense, Label: "Loyer", Amount: core.Money{Cents: 1}, Periodicity: core.Monthly}))

	incomes, _ := s.ListRules(ctx, core.RuleIncome)
	require.Len(t, incomes, 1)
	assert.Equal(t, "Salaire net", incomes[0].Label)

	require.NoError(t, s.DeleteRule(ctx, "x"))
	assert.ErrorIs(t, s.DeleteRule(ctx, "x"), ledger.ErrNotFound)
}

func TestNewFromFile(t *testing.T) {
	dir := t.TempDir()

	s, err := NewFromFile(filepath.Join(dir, "missing.toml"))
	require.NoError(t, err)
	rules, _ := s.ListRules(context.Background(), "")
	assert.Empty(t, rules)

	path := filepath.Join(dir, "rules.toml")
	seed := `
[[income]]
label = "Salaire"
amount = "2000.00"
periodicity = "Mensuel"
day = 1

[[expense]]
label = "Assurance"
amount = "120,50"
periodicity = "annual"
complement = "mois=3;jour=15"
end_date = "2027-12-31"
`
	require.NoError(t, os.WriteFile(path, []byte(seed), 0o644))

	s, err = NewFromFile(path)
	require.NoError(t, err)

	incomes, _ := s.ListRules(context.Background(), core.RuleIncome)
	require.Len(t, incomes, 1)
	assert.Equal(t, core.Monthly, incomes[0].Periodicity)
	assert.Equal(t, int64(200000), incomes[0].Amount.Cents)

	expenses, _ := s.ListRules(context.Background(), core.RuleExpense)
	require.Len(t, expenses, 1)
	assert.Equal(t, int64(12050), expenses[0].Amount.Cents)
	assert.Equal(t, "mois=3;jour=15", expenses[0].Complement)
	assert.Equal(t, 2027, expenses[0].EndDate.Year())

	require.NoError(t, os.WriteFile(path, []byte("[[income]]\nlabel = \"x\"\namount = \"-1\"\nperiodicity = \"monthly\"\n"), 0o644))
	_, err = NewFromFile(path)
	assert.Error(t, err)
}
