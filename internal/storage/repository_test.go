package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashflow/internal/core"
	"cashflow/internal/ledger"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRulesRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	insurance := core.Rule{
		ID:          "r1",
		Kind:        core.RuleExpense,
		Label:       "Assurance",
		Amount:      core.Money{Cents: 12050},
		Periodicity: core.Annual,
		Months:      []int{3},
		Day:         15,
		EndDate:     core.NewDate(2027, 12, 31),
		Complement:  "comment=auto",
	}
	salary := core.Rule{ID: "r2", Kind: core.RuleIncome, Label: "Salaire", Amount: core.Money{Cents: 200000}, Periodicity: "Mensuel"}

	require.NoError(t, repo.SaveRule(ctx, insurance))
	require.NoError(t, repo.SaveRule(ctx, salary))

	all, err := repo.ListRules(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "r1", all[0].ID, "insertion order is kept")
	assert.Equal(t, []int{3}, all[0].Months)
	assert.Equal(t, 15, all[0].Day)
	assert.True(t, all[0].EndDate.Equal(insurance.EndDate.Time))
	assert.Equal(t, core.Monthly, all[1].Periodicity, "legacy tokens are canonicalised")
	assert.Nil(t, all[1].Months)
	assert.Zero(t, all[1].Day)

	insurance.Label = "Assurance habitation"
	require.NoError(t, repo.SaveRule(ctx, insurance))
	expenses, err := repo.ListRules(ctx, core.RuleExpense)
	require.NoError(t, err)
	require.Len(t, expenses, 1)
	assert.Equal(t, "Assurance habitation", expenses[0].Label)

	require.NoError(t, repo.DeleteRule(ctx, "r1"))
	assert.ErrorIs(t, repo.DeleteRule(ctx, "r1"), ledger.ErrNotFound)
}

func TestOccurrenceTransactions(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	d := core.NewDate(2025, 3, 10)
	generated := core.Occurrence{ID: "g1", Date: d, Amount: core.Money{Cents: 1000}, Kind: core.KindIncome, Title: "Salaire", MonthKey: d.MonthKey(), RuleID: "r2"}
	manual := core.Occurrence{ID: "m1", Date: d, Amount: core.Money{Cents: 5000}, Kind: core.KindBalance, Title: "Solde", MonthKey: d.MonthKey(), IsManual: true}

	tx, err := repo.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.InsertOccurrence(ctx, generated))
	require.NoError(t, tx.InsertOccurrence(ctx, manual))
	require.NoError(t, tx.Rollback())

	got, err := repo.ListOccurrences(ctx, ledger.OccurrenceFilter{})
	require.NoError(t, err)
	assert.Empty(t, got)

	tx, err = repo.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.InsertOccurrence(ctx, generated))
	require.NoError(t, tx.InsertOccurrence(ctx, manual))
	require.NoError(t, tx.Commit())
	require.NoError(t, tx.Rollback())

	got, err = repo.ListOccurrences(ctx, ledger.OccurrenceFilter{MonthKey: "2025-03", Manual: ledger.Manual})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, manual.ID, got[0].ID)
	assert.True(t, got[0].IsManual)
	assert.Empty(t, got[0].RuleID)

	tx, err = repo.Begin(ctx)
	require.NoError(t, err)
	n, err := tx.DeleteOccurrences(ctx, ledger.OccurrenceFilter{Kind: core.KindIncome, Manual: ledger.Generated})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	manual.Amount = core.Money{Cents: 7000}
	require.NoError(t, tx.UpdateOccurrence(ctx, manual))
	assert.ErrorIs(t, tx.UpdateOccurrence(ctx, generated), ledger.ErrNotFound)
	require.NoError(t, tx.Commit())

	got, err = repo.ListOccurrences(ctx, ledger.OccurrenceFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(7000), got[0].Amount.Cents)
	assert.True(t, got[0].Date.Equal(d.Time))
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reopen.db")

	repo, err := NewSQLiteRepository(path)
	require.NoError(t, err)
	require.NoError(t, repo.SaveRule(ctx, core.Rule{ID: "r", Kind: core.RuleIncome, Label: "x", Amount: core.Money{Cents: 1}, Periodicity: core.Monthly}))
	require.NoError(t, repo.Close())

	repo, err = NewSQLiteRepository(path)
	require.NoError(t, err)
	defer repo.Close()

	rules, err := repo.ListRules(ctx, "")
	require.NoError(t, err)
	assert.Len(t, rules, 1)
}
