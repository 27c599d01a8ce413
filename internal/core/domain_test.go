package core

import (
	"errors"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
}

func TestParsePeriodicity(t *testing.T) {
	tests := []struct {
		in      string
		want    Periodicity
		wantErr bool
	}{
		{"monthly", Monthly, false},
		{"MONTHLY", Monthly, false},
		{" Trimestriel ", Quarterly, false},
		{"bimestriel", Bimonthly, false},
		{"semiannual", Semiannual, false},
		{"Annuel", Annual, false},
		{"one-off", OneOff, false},
		{"ponctuel", OneOff, false},
		{"weekly", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePeriodicity(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePeriodicity(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParsePeriodicity(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if tt.wantErr && !errors.Is(err, ErrInvalidPeriodicity) {
				t.Errorf("ParsePeriodicity(%q) error = %v, want ErrInvalidPeriodicity", tt.in, err)
			}
		})
	}
}

func TestMonthHelpers(t *testing.T) {
	if got := DaysIn(2024, time.February); got != 29 {
		t.Errorf("DaysIn(2024, Feb) = %d, want 29", got)
	}
	if got := DaysIn(2025, time.February); got != 28 {
		t.Errorf("DaysIn(2025, Feb) = %d, want 28", got)
	}

	start := MonthStart(time.Date(2025, 11, 17, 15, 4, 0, 0, time.UTC))
	if got := start.AddMonths(2).MonthKey(); got != "2026-01" {
		t.Errorf("AddMonths(2) = %s, want 2026-01", got)
	}

	d, err := ParseMonthKey("2025-03")
	if err != nil {
		t.Fatalf("ParseMonthKey() error = %v", err)
	}
	if !d.Equal(NewDate(2025, 3, 1).Time) {
		t.Errorf("ParseMonthKey() = %v, want 2025-03-01", d)
	}
	if _, err := ParseMonthKey("2025-13"); !errors.Is(err, ErrInvalidMonthKey) {
		t.Errorf("ParseMonthKey(2025-13) error = %v, want ErrInvalidMonthKey", err)
	}
}

func TestRuleValidate(t *testing.T) {
	good := Rule{
		Kind:        RuleExpense,
		Label:       "Loyer + charges",
		Amount:      Money{Cents: 80000},
		Periodicity: Monthly,
		Day:         5,
		EndDate:     NewDate(2026, 6, 30),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Rule{
		{Kind: "transfer", Label: "a", Amount: Money{Cents: 1}, Periodicity: Monthly},
		{Kind: RuleIncome, Label: " ", Amount: Money{Cents: 1}, Periodicity: Monthly},
		{Kind: RuleIncome, Label: "a", Amount: Money{Cents: 0}, Periodicity: Monthly},
		{Kind: RuleIncome, Label: "a", Amount: Money{Cents: 1}, Periodicity: "weekly"},
		{Kind: RuleIncome, Label: "a", Amount: Money{Cents: 1}, Periodicity: Annual, Months: []int{13}},
		{Kind: RuleIncome, Label: "a", Amount: Money{Cents: 1}, Periodicity: Monthly, Day: 32},
		{Kind: RuleIncome, Label: "a", Amount: Money{Cents: 1}, Periodicity: Monthly, EndDate: NewDate(2025, 1, 1)},
	}
	for i, r := range bads {
		if err := r.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestOccurrenceValidate(t *testing.T) {
	good := Occurrence{
		Date:     NewDate(2025, 2, 5),
		Amount:   Money{Cents: -800},
		Kind:     KindExpense,
		MonthKey: "2025-02",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Occurrence{
		{Date: NewDate(2025, 2, 5), Amount: Money{Cents: 800}, Kind: KindExpense, MonthKey: "2025-02"},
		{Date: NewDate(2025, 2, 5), Amount: Money{Cents: -800}, Kind: KindIncome, MonthKey: "2025-02"},
		{Date: NewDate(2025, 2, 5), Amount: Money{Cents: 800}, Kind: KindIncome, MonthKey: "2025-03"},
		{Date: NewDate(2025, 2, 5), Amount: Money{Cents: 800}, Kind: "transfer", MonthKey: "2025-02"},
	}
	for i, o := range bads {
		if err := o.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}
