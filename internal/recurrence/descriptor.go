// Package recurrence reads and writes the compact complement string stored on rules,
// e.g. "mois=1,4,7,10;jour=15;comment=Assurance%20auto".
//
// Segments are separated by ';' and split on the first '='. Recognised keys are
// "mois" (legacy "months"), "jour" (legacy "day") and "comment"; any other key is
// ignored. The comment is percent-encoded so it can never contain a delimiter.
package recurrence

import (
	"net/url"
	"slices"
	"strconv"
	"strings"
)

const (
	keyMonths       = "mois"
	keyMonthsLegacy = "months"
	keyDay          = "jour"
	keyDayLegacy    = "day"
	keyComment      = "comment"
)

// Descriptor is the structured form of a complement string.
type Descriptor struct {
	Months  []int  // sorted, deduplicated, each in 1..12; nil when absent
	Day     int    // 0 when absent or unparseable
	Comment string // decoded free text
}

// Decode parses a complement string. It never fails: malformed segments are skipped
// and month numbers outside 1..12 are dropped.
func Decode(complement string) Descriptor {
	var d Descriptor
	for _, segment := range strings.Split(complement, ";") {
		key, value, ok := strings.Cut(segment, "=")
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case keyMonths, keyMonthsLegacy:
			d.Months = parseMonths(value)
		case keyDay, keyDayLegacy:
			day, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil || day < 0 {
				day = 0
			}
			d.Day = day
		case keyComment:
			comment, err := url.PathUnescape(value)
			if err != nil {
				comment = value
			}
			d.Comment = comment
		}
	}
	return d
}

// Encode renders d as "mois=1,3,6;jour=15;comment=...". The months segment is
// omitted when empty, the day segment when <= 0, the comment segment when empty.
func (d Descriptor) Encode() string {
	var segments []string
	if months := normalizeMonths(d.Months); len(months) > 0 {
		parts := make([]string, len(months))
		for i, m := range months {
			parts[i] = strconv.Itoa(m)
		}
		segments = append(segments, keyMonths+"="+strings.Join(parts, ","))
	}
	if d.Day > 0 {
		segments = append(segments, keyDay+"="+strconv.Itoa(d.Day))
	}
	if d.Comment != "" {
		segments = append(segments, keyComment+"="+escapeComment(d.Comment))
	}
	return strings.Join(segments, ";")
}

// Encode is a shorthand for Descriptor{...}.Encode().
func Encode(months []int, day int, comment string) string {
	return Descriptor{Months: months, Day: day, Comment: comment}.Encode()
}

// escapeComment percent-encodes s with spaces as %20, so a literal '+' survives decoding.
func escapeComment(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func parseMonths(csv string) []int {
	var months []int
	for _, field := range strings.Split(csv, ",") {
		m, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			continue
		}
		months = append(months, m)
	}
	return normalizeMonths(months)
}

// normalizeMonths returns the valid months of in, sorted and deduplicated.
func normalizeMonths(in []int) []int {
	var out []int
	for _, m := range in {
		if m >= 1 && m <= 12 {
			out = append(out, m)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
