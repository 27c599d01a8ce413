package cli

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"

	"cashflow/internal/core"
)

// FormatMoney formats an amount with thousands separators, e.g. "-1,234.50 €".
func FormatMoney(m core.Money) string {
	sign := ""
	cents := m.Cents
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%s.%02d €", sign, humanize.Comma(cents/100), cents%100)
}

// FormatDelta formats a signed amount with an explicit "+" for non-negative values.
func FormatDelta(m core.Money) string {
	if m.Cents >= 0 {
		return "+" + FormatMoney(m)
	}
	return FormatMoney(m)
}

// FormatMonths lists a months set, "all" when empty.
func FormatMonths(months []int) string {
	if len(months) == 0 {
		return "all"
	}
	out := ""
	for i, m := range months {
		if i > 0 {
			out += ","
		}
		out += strconv.Itoa(m)
	}
	return out
}

// FormatDay formats a structured day, "-" when unset.
func FormatDay(day int) string {
	if day <= 0 {
		return "-"
	}
	return humanize.Ordinal(day)
}

// FormatCount formats an integer with thousands separators.
func FormatCount(n int) string {
	return humanize.Comma(int64(n))
}
