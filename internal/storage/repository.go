package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cashflow/internal/core"
	"cashflow/internal/ledger"

	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

var _ ledger.Store = (*SQLiteRepository)(nil)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection serialises writers; sqlite has one writer anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ListRules implements ledger.RuleReader
func (r *SQLiteRepository) ListRules(ctx context.Context, kind core.RuleKind) ([]core.Rule, error) {
	rows, err := r.queries.ListRules(ctx, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}

	rules := make([]core.Rule, 0, len(rows))
	for _, row := range rows {
		rule, err := ruleFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", row.ID, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// SaveRule implements ledger.RuleWriter
func (r *SQLiteRepository) SaveRule(ctx context.Context, rule core.Rule) error {
	if rule.ID == "" {
		return fmt.Errorf("rule id is required")
	}
	if err := r.queries.UpsertRule(ctx, ruleToRow(rule)); err != nil {
		return fmt.Errorf("save rule: %w", err)
	}

	slog.DebugContext(ctx, "Rule saved to SQLite", "id", rule.ID, "kind", rule.Kind, "label", rule.Label)
	return nil
}

// DeleteRule implements ledger.RuleWriter
func (r *SQLiteRepository) DeleteRule(ctx context.Context, id string) error {
	n, err := r.queries.DeleteRule(ctx, id)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("rule %s: %w", id, ledger.ErrNotFound)
	}
	return nil
}

// ListOccurrences implements ledger.OccurrenceReader
func (r *SQLiteRepository) ListOccurrences(ctx context.Context, f ledger.OccurrenceFilter) ([]core.Occurrence, error) {
	return listOccurrences(ctx, r.queries, f)
}

// Begin implements ledger.Transactor
func (r *SQLiteRepository) Begin(ctx context.Context) (ledger.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &sqlTx{tx: tx, queries: r.queries.WithTx(tx)}, nil
}

type sqlTx struct {
	tx      *sql.Tx
	queries *Queries
	done    bool
}

func (t *sqlTx) ListOccurrences(ctx context.Context, f ledger.OccurrenceFilter) ([]core.Occurrence, error) {
	if t.done {
		return nil, ledger.ErrTxDone
	}
	return listOccurrences(ctx, t.queries, f)
}

func (t *sqlTx) DeleteOccurrences(ctx context.Context, f ledger.OccurrenceFilter) (int, error) {
	if t.done {
		return 0, ledger.ErrTxDone
	}
	n, err := t.queries.DeleteOccurrences(ctx, where(f))
	if err != nil {
		return 0, fmt.Errorf("delete occurrences: %w", err)
	}
	return int(n), nil
}

func (t *sqlTx) InsertOccurrence(ctx context.Context, o core.Occurrence) error {
	if t.done {
		return ledger.ErrTxDone
	}
	return t.queries.InsertOccurrence(ctx, occurrenceToRow(o))
}

func (t *sqlTx) UpdateOccurrence(ctx context.Context, o core.Occurrence) error {
	if t.done {
		return ledger.ErrTxDone
	}
	n, err := t.queries.UpdateOccurrence(ctx, occurrenceToRow(o))
	if err != nil {
		return fmt.Errorf("update occurrence: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("occurrence %s: %w", o.ID, ledger.ErrNotFound)
	}
	return nil
}

func (t *sqlTx) Commit() error {
	if t.done {
		return ledger.ErrTxDone
	}
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (t *sqlTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

func listOccurrences(ctx context.Context, q *Queries, f ledger.OccurrenceFilter) ([]core.Occurrence, error) {
	rows, err := q.ListOccurrences(ctx, where(f))
	if err != nil {
		return nil, fmt.Errorf("list occurrences: %w", err)
	}

	out := make([]core.Occurrence, 0, len(rows))
	for _, row := range rows {
		o, err := occurrenceFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("occurrence %s: %w", row.ID, err)
		}
		out = append(out, o)
	}
	return out, nil
}

func where(f ledger.OccurrenceFilter) OccurrenceWhere {
	return OccurrenceWhere{ID: f.ID, MonthKey: f.MonthKey, Kind: string(f.Kind), Manual: f.Manual}
}

func ruleToRow(rule core.Rule) RuleRow {
	row := RuleRow{
		ID:          rule.ID,
		Kind:        string(rule.Kind),
		Label:       rule.Label,
		AmountCents: rule.Amount.Cents,
		Periodicity: string(rule.Periodicity),
		Complement:  rule.Complement,
	}
	if len(rule.Months) > 0 {
		parts := make([]string, len(rule.Months))
		for i, m := range rule.Months {
			parts[i] = strconv.Itoa(m)
		}
		row.Months = sql.NullString{String: strings.Join(parts, ","), Valid: true}
	}
	if rule.Day > 0 {
		row.Day = sql.NullInt64{Int64: int64(rule.Day), Valid: true}
	}
	if !rule.EndDate.IsEmpty() {
		row.EndDate = sql.NullString{String: rule.EndDate.Format(dateLayout), Valid: true}
	}
	return row
}

func ruleFromRow(row RuleRow) (core.Rule, error) {
	rule := core.Rule{
		ID:          row.ID,
		Kind:        core.RuleKind(row.Kind),
		Label:       row.Label,
		Amount:      core.Money{Cents: row.AmountCents},
		Periodicity: core.Periodicity(row.Periodicity).Canonical(),
		Complement:  row.Complement,
	}
	if row.Months.Valid && row.Months.String != "" {
		for _, part := range strings.Split(row.Months.String, ",") {
			m, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return core.Rule{}, fmt.Errorf("invalid months %q: %w", row.Months.String, err)
			}
			rule.Months = append(rule.Months, m)
		}
	}
	if row.Day.Valid {
		rule.Day = int(row.Day.Int64)
	}
	if row.EndDate.Valid {
		t, err := time.Parse(dateLayout, row.EndDate.String)
		if err != nil {
			return core.Rule{}, fmt.Errorf("invalid end date: %w", err)
		}
		rule.EndDate = core.Date{Time: t}
	}
	return rule, nil
}

func occurrenceToRow(o core.Occurrence) OccurrenceRow {
	return OccurrenceRow{
		ID:          o.ID,
		Date:        o.Date.Format(dateLayout),
		AmountCents: o.Amount.Cents,
		Kind:        string(o.Kind),
		Title:       o.Title,
		MonthKey:    o.MonthKey,
		IsManual:    o.IsManual,
		RuleID:      sql.NullString{String: o.RuleID, Valid: o.RuleID != ""},
	}
}

func occurrenceFromRow(row OccurrenceRow) (core.Occurrence, error) {
	t, err := time.Parse(dateLayout, row.Date)
	if err != nil {
		return core.Occurrence{}, fmt.Errorf("invalid date: %w", err)
	}
	return core.Occurrence{
		ID:       row.ID,
		Date:     core.Date{Time: t},
		Amount:   core.Money{Cents: row.AmountCents},
		Kind:     core.OccurrenceKind(row.Kind),
		Title:    row.Title,
		MonthKey: row.MonthKey,
		IsManual: row.IsManual,
		RuleID:   row.RuleID.String,
	}, nil
}
