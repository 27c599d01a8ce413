package memory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"

	"cashflow/internal/core"
	"cashflow/internal/ledger"
)

var _ ledger.Store = (*Store)(nil)

type Store struct {
	mu          sync.Mutex
	rules       []core.Rule
	occurrences map[string]core.Occurrence
}

func New(rules ...core.Rule) *Store {
	s := &Store{occurrences: make(map[string]core.Occurrence)}
	for _, r := range rules {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		s.rules = append(s.rules, r)
	}
	return s
}

// seedFile is the TOML layout accepted by NewFromFile.
type seedFile struct {
	Income  []seedRule `toml:"income"`
	Expense []seedRule `toml:"expense"`
}

type seedRule struct {
	ID          string `toml:"id"`
	Label       string `toml:"label"`
	Amount      string `toml:"amount"`
	Periodicity string `toml:"periodicity"`
	Months      []int  `toml:"months"`
	Day         int    `toml:"day"`
	EndDate     string `toml:"end_date"`
	Complement  string `toml:"complement"`
}

// NewFromFile seeds the store with the rules of a TOML file. A missing file yields
// an empty store.
func NewFromFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var seed seedFile
	if err := toml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	var rules []core.Rule
	for _, group := range []struct {
		kind    core.RuleKind
		entries []seedRule
	}{{core.RuleIncome, seed.Income}, {core.RuleExpense, seed.Expense}} {
		for i, e := range group.entries {
			r, err := e.rule(group.kind)
			if err != nil {
				return nil, fmt.Errorf("seed %s #%d: %w", group.kind, i+1, err)
			}
			rules = append(rules, r)
		}
	}
	return New(rules...), nil
}

func (e seedRule) rule(kind core.RuleKind) (core.Rule, error) {
	cents, err := core.ParseDecimalToCents(e.Amount)
	if err != nil {
		return core.Rule{}, err
	}
	r := core.Rule{
		ID:          strings.TrimSpace(e.ID),
		Kind:        kind,
		Label:       strings.TrimSpace(e.Label),
		Amount:      core.Money{Cents: cents},
		Periodicity: core.Periodicity(e.Periodicity).Canonical(),
		Months:      e.Months,
		Day:         e.Day,
		Complement:  e.Complement,
	}
	if e.EndDate != "" {
		t, err := time.Parse("2006-01-02", e.EndDate)
		if err != nil {
			return core.Rule{}, fmt.Errorf("invalid end date %q: %w", e.EndDate, err)
		}
		r.EndDate = core.Date{Time: t}
	}
	if err := r.Validate(); err != nil {
		return core.Rule{}, err
	}
	return r, nil
}

// ListRules returns rules in insertion order.
func (s *Store) ListRules(_ context.Context, kind core.RuleKind) ([]core.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Rule, 0, len(s.rules))
	for _, r := range s.rules {
		if kind == "" || r.Kind == kind {
			out = append(out, cloneRule(r))
		}
	}
	return out, nil
}

func (s *Store) SaveRule(_ context.Context, r core.Rule) error {
	if r.ID == "" {
		return errors.New("rule id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r = cloneRule(r)
	for i := range s.rules {
		if s.rules[i].ID == r.ID {
			s.rules[i] = r
			return nil
		}
	}
	s.rules = append(s.rules, r)
	return nil
}

func (s *Store) DeleteRule(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rules {
		if s.rules[i].ID == id {
			s.rules = append(s.rules[:i], s.rules[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("rule %s: %w", id, ledger.ErrNotFound)
}

func (s *Store) ListOccurrences(_ context.Context, f ledger.OccurrenceFilter) ([]core.Occurrence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return filter(s.occurrences, f), nil
}

// Begin starts a transaction over a private copy of the occurrences. Its writes are
// logged and replayed on the live occurrences at commit, so overlapping transactions
// keep each other's committed rows.
func (s *Store) Begin(_ context.Context) (ledger.Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	work := make(map[string]core.Occurrence, len(s.occurrences))
	for id, o := range s.occurrences {
		work[id] = o
	}
	return &tx{store: s, work: work}, nil
}

func (s *Store) Close() error {
	return nil
}

type tx struct {
	store *Store
	work  map[string]core.Occurrence
	ops   []op
	done  bool
}

// op is one logged write: a put of occ, or a delete of id.
type op struct {
	id     string
	occ    core.Occurrence
	delete bool
}

func (t *tx) ListOccurrences(_ context.Context, f ledger.OccurrenceFilter) ([]core.Occurrence, error) {
	if t.done {
		return nil, ledger.ErrTxDone
	}
	return filter(t.work, f), nil
}

func (t *tx) DeleteOccurrences(_ context.Context, f ledger.OccurrenceFilter) (int, error) {
	if t.done {
		return 0, ledger.ErrTxDone
	}
	n := 0
	for id, o := range t.work {
		if f.Match(o) {
			delete(t.work, id)
			t.ops = append(t.ops, op{id: id, delete: true})
			n++
		}
	}
	return n, nil
}

func (t *tx) InsertOccurrence(_ context.Context, o core.Occurrence) error {
	if t.done {
		return ledger.ErrTxDone
	}
	if o.ID == "" {
		return errors.New("occurrence id is required")
	}
	if _, exists := t.work[o.ID]; exists {
		return fmt.Errorf("occurrence %s already exists", o.ID)
	}
	t.work[o.ID] = o
	t.ops = append(t.ops, op{id: o.ID, occ: o})
	return nil
}

func (t *tx) UpdateOccurrence(_ context.Context, o core.Occurrence) error {
	if t.done {
		return ledger.ErrTxDone
	}
	if _, exists := t.work[o.ID]; !exists {
		return fmt.Errorf("occurrence %s: %w", o.ID, ledger.ErrNotFound)
	}
	t.work[o.ID] = o
	t.ops = append(t.ops, op{id: o.ID, occ: o})
	return nil
}

func (t *tx) Commit() error {
	if t.done {
		return ledger.ErrTxDone
	}
	t.done = true
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for _, o := range t.ops {
		if o.delete {
			delete(t.store.occurrences, o.id)
			continue
		}
		t.store.occurrences[o.id] = o.occ
	}
	t.work, t.ops = nil, nil
	return nil
}

func (t *tx) Rollback() error {
	t.done = true
	t.work, t.ops = nil, nil
	return nil
}

func filter(occurrences map[string]core.Occurrence, f ledger.OccurrenceFilter) []core.Occurrence {
	var out []core.Occurrence
	for _, o := range occurrences {
		if f.Match(o) {
			out = append(out, o)
		}
	}
	ledger.SortOccurrences(out)
	return out
}

func cloneRule(r core.Rule) core.Rule {
	r.Months = append([]int(nil), r.Months...)
	return r
}
