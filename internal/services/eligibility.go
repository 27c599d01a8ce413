// Package services provides the projection, forecasting and dashboard logic.
//
// This file implements the Strategy Pattern for rule eligibility. Each periodicity
// maps to a Schedule that decides which calendar months a rule fires in.

package services

import (
	"time"

	"cashflow/internal/core"
	"cashflow/internal/recurrence"
)

// Schedule is the strategy interface deciding whether a rule fires in a month.
type Schedule interface {
	Fires(month time.Month) bool
}

// MonthlySchedule fires in every month, whatever months set the rule carries.
type MonthlySchedule struct{}

func (MonthlySchedule) Fires(time.Month) bool { return true }

// EnumeratedMonths fires only in the listed months. It does not compute a cycle from
// an anchor date.
type EnumeratedMonths struct {
	set [13]bool
}

// NewEnumeratedMonths ignores numbers outside 1..12.
func NewEnumeratedMonths(months []int) EnumeratedMonths {
	var e EnumeratedMonths
	for _, m := range months {
		if m >= 1 && m <= 12 {
			e.set[m] = true
		}
	}
	return e
}

func (e EnumeratedMonths) Fires(month time.Month) bool {
	return month >= time.January && month <= time.December && e.set[month]
}

// NeverFires is used for unknown periodicity tokens.
type NeverFires struct{}

func (NeverFires) Fires(time.Month) bool { return false }

// ScheduleFactory builds a schedule from a rule's resolved months set.
type ScheduleFactory func(months []int) Schedule

func enumerated(months []int) Schedule { return NewEnumeratedMonths(months) }

// scheduleStrategies maps canonical periodicities to their schedule factory.
var scheduleStrategies = map[core.Periodicity]ScheduleFactory{
	core.Monthly:    func([]int) Schedule { return MonthlySchedule{} },
	core.Bimonthly:  enumerated,
	core.Quarterly:  enumerated,
	core.Semiannual: enumerated,
	core.Annual:     enumerated,
	core.OneOff:     enumerated,
}

// ScheduleFor returns the schedule of a periodicity token. Tokens are matched
// case-insensitively; unknown tokens never fire.
func ScheduleFor(p core.Periodicity, months []int) Schedule {
	factory, ok := scheduleStrategies[p.Canonical()]
	if !ok {
		return NeverFires{}
	}
	return factory(months)
}

// Timing is the resolved firing pattern of a rule.
type Timing struct {
	Months []int
	Day    int
}

// ResolveTiming returns the months and day a rule fires on. Structured fields win;
// the complement string fills whatever is missing. The day defaults to 1.
func ResolveTiming(r core.Rule) Timing {
	t := Timing{Months: r.Months, Day: r.Day}
	if len(t.Months) == 0 || t.Day <= 0 {
		d := recurrence.Decode(r.Complement)
		if len(t.Months) == 0 {
			t.Months = d.Months
		}
		if t.Day <= 0 {
			t.Day = d.Day
		}
	}
	if t.Day <= 0 {
		t.Day = 1
	}
	return t
}

// Fires reports whether the rule is eligible in the given month.
func (t Timing) Fires(p core.Periodicity, month time.Month) bool {
	return ScheduleFor(p, t.Months).Fires(month)
}

// DateIn returns the firing date in (year, month), clamping the day to the month's
// last day.
func (t Timing) DateIn(year int, month time.Month) core.Date {
	day := min(t.Day, core.DaysIn(year, month))
	return core.NewDate(year, int(month), day)
}
