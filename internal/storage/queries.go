package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type RuleRow struct {
	ID          string
	Kind        string
	Label       string
	AmountCents int64
	Periodicity string
	Months      sql.NullString
	Day         sql.NullInt64
	EndDate     sql.NullString
	Complement  string
}

const listRules = `
SELECT id, kind, label, amount_cents, periodicity, months, day, end_date, complement
FROM rules
WHERE (?1 = '' OR kind = ?1)
ORDER BY position, id`

func (q *Queries) ListRules(ctx context.Context, kind string) ([]RuleRow, error) {
	rows, err := q.db.QueryContext(ctx, listRules, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []RuleRow
	for rows.Next() {
		var i RuleRow
		if err := rows.Scan(&i.ID, &i.Kind, &i.Label, &i.AmountCents, &i.Periodicity,
			&i.Months, &i.Day, &i.EndDate, &i.Complement); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const upsertRule = `
INSERT INTO rules (id, kind, label, amount_cents, periodicity, months, day, end_date, complement, position)
VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7, ?8, ?9, (SELECT COALESCE(MAX(position), 0) + 1 FROM rules))
ON CONFLICT (id) DO UPDATE SET
    kind = excluded.kind,
    label = excluded.label,
    amount_cents = excluded.amount_cents,
    periodicity = excluded.periodicity,
    months = excluded.months,
    day = excluded.day,
    end_date = excluded.end_date,
    complement = excluded.complement`

func (q *Queries) UpsertRule(ctx context.Context, r RuleRow) error {
	_, err := q.db.ExecContext(ctx, upsertRule, r.ID, r.Kind, r.Label, r.AmountCents, r.Periodicity,
		r.Months, r.Day, r.EndDate, r.Complement)
	return err
}

const deleteRule = `DELETE FROM rules WHERE id = ?1`

func (q *Queries) DeleteRule(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteRule, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type OccurrenceRow struct {
	ID          string
	Date        string
	AmountCents int64
	Kind        string
	Title       string
	MonthKey    string
	IsManual    bool
	RuleID      sql.NullString
}

// OccurrenceWhere is the SQL rendering of an occurrence filter.
type OccurrenceWhere struct {
	ID       string
	MonthKey string
	Kind     string
	Manual   *bool
}

func (w OccurrenceWhere) clause() (string, []any) {
	var (
		conds []string
		args  []any
	)
	if w.ID != "" {
		conds = append(conds, "id = ?")
		args = append(args, w.ID)
	}
	if w.MonthKey != "" {
		conds = append(conds, "month_key = ?")
		args = append(args, w.MonthKey)
	}
	if w.Kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, w.Kind)
	}
	if w.Manual != nil {
		conds = append(conds, "is_manual = ?")
		args = append(args, *w.Manual)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

const selectOccurrences = `
SELECT id, date, amount_cents, kind, title, month_key, is_manual, rule_id
FROM occurrences`

func (q *Queries) ListOccurrences(ctx context.Context, w OccurrenceWhere) ([]OccurrenceRow, error) {
	where, args := w.clause()
	rows, err := q.db.QueryContext(ctx, selectOccurrences+where+" ORDER BY date, id", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OccurrenceRow
	for rows.Next() {
		var i OccurrenceRow
		if err := rows.Scan(&i.ID, &i.Date, &i.AmountCents, &i.Kind, &i.Title,
			&i.MonthKey, &i.IsManual, &i.RuleID); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

func (q *Queries) DeleteOccurrences(ctx context.Context, w OccurrenceWhere) (int64, error) {
	where, args := w.clause()
	res, err := q.db.ExecContext(ctx, "DELETE FROM occurrences"+where, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const insertOccurrence = `
INSERT INTO occurrences (id, date, amount_cents, kind, title, month_key, is_manual, rule_id)
VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7, ?8)`

func (q *Queries) InsertOccurrence(ctx context.Context, o OccurrenceRow) error {
	_, err := q.db.ExecContext(ctx, insertOccurrence, o.ID, o.Date, o.AmountCents, o.Kind, o.Title,
		o.MonthKey, o.IsManual, o.RuleID)
	if err != nil {
		return fmt.Errorf("insert occurrence %s: %w", o.ID, err)
	}
	return nil
}

const updateOccurrence = `
UPDATE occurrences
SET date = ?2, amount_cents = ?3, kind = ?4, title = ?5, month_key = ?6, is_manual = ?7, rule_id = ?8
WHERE id = ?1`

func (q *Queries) UpdateOccurrence(ctx context.Context, o OccurrenceRow) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateOccurrence, o.ID, o.Date, o.AmountCents, o.Kind, o.Title,
		o.MonthKey, o.IsManual, o.RuleID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
