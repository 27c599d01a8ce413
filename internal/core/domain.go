package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MonthKeyLayout is the time layout of a month key ("2025-03").
const MonthKeyLayout = "2006-01"

const (
	Monthly    Periodicity = "monthly"
	Bimonthly  Periodicity = "bimonthly"
	Quarterly  Periodicity = "quarterly"
	Semiannual Periodicity = "semiannual"
	Annual     Periodicity = "annual"
	OneOff     Periodicity = "one-off"
)

const (
	RuleIncome  RuleKind = "income"
	RuleExpense RuleKind = "expense"
)

const (
	KindIncome  OccurrenceKind = "income"
	KindExpense OccurrenceKind = "expense"
	KindBalance OccurrenceKind = "balance"
)

type (
	Periodicity    string
	RuleKind       string
	OccurrenceKind string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Rule is a recurring income or expense definition.
	Rule struct {
		ID          string
		Kind        RuleKind
		Label       string // free-text category, e.g. "Salaire"
		Amount      Money  // unsigned, the sign is applied per occurrence
		Periodicity Periodicity
		Months      []int // structured months set, empty means "use Complement"
		Day         int   // structured day of month, <= 0 means "use Complement"
		EndDate     Date  // expense rules only, zero means open-ended
		Complement  string
	}

	// Occurrence is one dated ledger entry.
	Occurrence struct {
		ID       string
		Date     Date
		Amount   Money // signed: > 0 inflow, < 0 outflow
		Kind     OccurrenceKind
		Title    string
		MonthKey string
		IsManual bool
		RuleID   string // set on generated occurrences
	}
)

var (
	ErrInvalidDay         = errors.New("invalid day")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyLabel         = errors.New("empty label")
	ErrInvalidPeriodicity = errors.New("invalid periodicity")
	ErrInvalidKind        = errors.New("invalid kind")
	ErrInvalidMonthKey    = errors.New("invalid month key")
)

// periodicityAliases maps every accepted token, lower-cased, to its canonical value.
// The French tokens are the ones persisted by older records.
var periodicityAliases = map[string]Periodicity{
	"monthly":     Monthly,
	"mensuel":     Monthly,
	"bimonthly":   Bimonthly,
	"bimestriel":  Bimonthly,
	"quarterly":   Quarterly,
	"trimestriel": Quarterly,
	"semiannual":  Semiannual,
	"semestriel":  Semiannual,
	"annual":      Annual,
	"annuel":      Annual,
	"one-off":     OneOff,
	"one_off":     OneOff,
	"oneoff":      OneOff,
	"ponctuel":    OneOff,
}

// ParsePeriodicity resolves a case-insensitive periodicity token.
func ParsePeriodicity(s string) (Periodicity, error) {
	p, ok := periodicityAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriodicity, s)
	}
	return p, nil
}

// Canonical returns the canonical token for p, or p unchanged when it is unknown.
func (p Periodicity) Canonical() Periodicity {
	if c, err := ParsePeriodicity(string(p)); err == nil {
		return c
	}
	return p
}

// ParseRuleKind resolves "income" or "expense".
func ParseRuleKind(s string) (RuleKind, error) {
	switch RuleKind(strings.ToLower(strings.TrimSpace(s))) {
	case RuleIncome:
		return RuleIncome, nil
	case RuleExpense:
		return RuleExpense, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// OccurrenceKind returns the kind of the occurrences a rule generates.
func (k RuleKind) OccurrenceKind() OccurrenceKind {
	if k == RuleExpense {
		return KindExpense
	}
	return KindIncome
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// MonthKey returns the "YYYY-MM" key of the date's month.
func (d Date) MonthKey() string {
	return d.Format(MonthKeyLayout)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day, keeping t's wall clock date.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// IsEmpty returns true if the date is zero (for optional dates)
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// MonthStart returns the first day of t's month.
func MonthStart(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), 1)
}

// AddMonths returns the first day of the month offset months after d's month.
func (d Date) AddMonths(offset int) Date {
	return NewDate(d.Year(), d.Month()+offset, 1)
}

// DaysIn returns the number of days of the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MonthKey formats t as "YYYY-MM".
func MonthKey(t time.Time) string {
	return t.Format(MonthKeyLayout)
}

// ParseMonthKey returns the first day of the month named by key.
func ParseMonthKey(key string) (Date, error) {
	t, err := time.Parse(MonthKeyLayout, strings.TrimSpace(key))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidMonthKey, key)
	}
	return Date{Time: t}, nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Abs returns the magnitude of m.
func (m Money) Abs() Money {
	if m.Cents < 0 {
		return Money{Cents: -m.Cents}
	}
	return m
}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// Sub returns m - o.
func (m Money) Sub(o Money) Money {
	return Money{Cents: m.Cents - o.Cents}
}

// Neg returns -m.
func (m Money) Neg() Money {
	return Money{Cents: -m.Cents}
}

func (r Rule) Validate() error {
	if _, err := ParseRuleKind(string(r.Kind)); err != nil {
		return err
	}
	if len(strings.TrimSpace(r.Label)) == 0 {
		return ErrEmptyLabel
	}
	if len(r.Label) > 200 {
		return errors.New("label too long (max 200 characters)")
	}
	if err := r.Amount.Validate(); err != nil {
		return err
	}
	if _, err := ParsePeriodicity(string(r.Periodicity)); err != nil {
		return err
	}
	for _, m := range r.Months {
		if m < 1 || m > 12 {
			return ErrInvalidMonth
		}
	}
	if r.Day > 31 {
		return ErrInvalidDay
	}
	if !r.EndDate.IsZero() {
		if r.Kind != RuleExpense {
			return errors.New("end date is only supported on expense rules")
		}
		if err := r.EndDate.Validate(); err != nil {
			return errors.New("invalid end date: " + err.Error())
		}
	}
	return nil
}

func (o Occurrence) Validate() error {
	if err := o.Date.Validate(); err != nil {
		return err
	}
	switch o.Kind {
	case KindIncome:
		if o.Amount.Cents <= 0 {
			return ErrInvalidAmount
		}
	case KindExpense:
		if o.Amount.Cents >= 0 {
			return ErrInvalidAmount
		}
	case KindBalance:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidKind, o.Kind)
	}
	if o.MonthKey != o.Date.MonthKey() {
		return fmt.Errorf("%w: %q does not match date %s", ErrInvalidMonthKey, o.MonthKey, o.Date.Format("2006-01-02"))
	}
	return nil
}
