// Package core holds the domain types for the dues ledger: canonical
// months, money amounts, members, payments and transactions.
//
// This file implements the canonical month representation and the flexible
// normalizer for human-entered month strings. A canonical month is always a
// zero-padded "YYYY-MM" string; it is the only month representation the rest
// of the codebase works with.
package core

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Month is a canonical "YYYY-MM" month key. The zero value ("") means
// "not parseable" and contributes zero accrual everywhere.
type Month string

// monthNames maps full names and common abbreviations to month numbers.
// "sept" is accepted alongside "sep" because it shows up in real entries.
var monthNames = map[string]int{
	"jan": 1, "january": 1,
	"feb": 2, "february": 2,
	"mar": 3, "march": 3,
	"apr": 4, "april": 4,
	"may": 5,
	"jun": 6, "june": 6,
	"jul": 7, "july": 7,
	"aug": 8, "august": 8,
	"sep": 9, "sept": 9, "september": 9,
	"oct": 10, "october": 10,
	"nov": 11, "november": 11,
	"dec": 12, "december": 12,
}

func monthNumber(key string) int {
	if n, ok := monthNames[key]; ok {
		return n
	}
	if len(key) > 3 {
		if n, ok := monthNames[key[:3]]; ok {
			return n
		}
	}
	return 0
}

var (
	reYearMonth    = regexp.MustCompile(`^(\d{4})-(\d{1,2})(?:$|-)`)
	reYearName     = regexp.MustCompile(`^(\d{4})[-. ]([a-z]{3,9})$`)
	reNameYear     = regexp.MustCompile(`^([a-z]{3,9})[-. ](\d{4})$`)
	reMonthYear    = regexp.MustCompile(`^(\d{1,2})[-.](\d{4})$`)
	reDayMidYear   = regexp.MustCompile(`^(\d{1,2})[-. ]([a-z]{3,9}|\d{1,2})[-. ](\d{4})$`)
	reAllDigitsSep = regexp.MustCompile(`\s+`)
)

// fallbackLayouts is tried, in order, when none of the recognized patterns
// match. It stands in for a general-purpose date parse on the raw input.
var fallbackLayouts = []string{
	"Jan 2 2006",
	"January 2 2006",
	"2 Jan 2006",
	"2 January 2006",
	"2006 Jan 2",
	"Jan 2, 2006",
	"January 2, 2006",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
}

// NormalizeMonth parses heterogeneous human-entered month strings into a
// canonical Month. It accepts, in priority order:
//
//	"2025-8", "2025/08", "2025-8-01"   numeric year first
//	"2025-oct", "2025-october"         year plus month name
//	"oct-2025", "October 2025"         month name plus year
//	"10-2025"                          numeric month first
//	"12-oct-2025", "12/10/2025"        day discarded, month+year kept
//
// and finally a handful of free-form date layouts. Matching is
// case-insensitive and tolerant of "-", "/", "." and whitespace separators.
// A recognized-but-invalid pattern (month 13, say) is not rescued by the
// fallback. Returns ok=false when nothing matches; callers must treat that
// as zero accrual, never as an error.
func NormalizeMonth(raw string) (Month, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}

	s := strings.ToLower(reAllDigitsSep.ReplaceAllString(trimmed, " "))
	s = strings.ReplaceAll(s, "/", "-")

	if m := reYearMonth.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		mon, _ := strconv.Atoi(m[2])
		if mon >= 1 && mon <= 12 {
			return MonthOf(year, mon), true
		}
		return "", false
	}

	if m := reYearName.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		if mon := monthNumber(m[2]); mon != 0 {
			return MonthOf(year, mon), true
		}
	}

	if m := reNameYear.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[2])
		if mon := monthNumber(m[1]); mon != 0 {
			return MonthOf(year, mon), true
		}
	}

	if m := reMonthYear.FindStringSubmatch(s); m != nil {
		mon, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[2])
		if mon >= 1 && mon <= 12 {
			return MonthOf(year, mon), true
		}
	}

	if m := reDayMidYear.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[3])
		mon := 0
		if n, err := strconv.Atoi(m[2]); err == nil {
			mon = n
		} else {
			mon = monthNumber(m[2])
		}
		if mon >= 1 && mon <= 12 {
			return MonthOf(year, mon), true
		}
	}

	for _, layout := range fallbackLayouts {
		if d, err := time.Parse(layout, trimmed); err == nil {
			return MonthOf(d.Year(), int(d.Month())), true
		}
		// The layouts above are lowercase-hostile; retry titled.
		if d, err := time.Parse(layout, titleWords(s)); err == nil {
			return MonthOf(d.Year(), int(d.Month())), true
		}
	}

	return "", false
}

func titleWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// MonthOf builds a canonical Month from a year and a 1-12 month number.
func MonthOf(year, month int) Month {
	return Month(fmt.Sprintf("%04d-%02d", year, month))
}

// CurrentMonth returns the canonical month for the given instant in the
// given location. A nil location falls back to the instant's own zone.
func CurrentMonth(now time.Time, loc *time.Location) Month {
	if loc != nil {
		now = now.In(loc)
	}
	return MonthOf(now.Year(), int(now.Month()))
}

// Valid reports whether m is a well-formed canonical month.
func (m Month) Valid() bool {
	norm, ok := NormalizeMonth(string(m))
	return ok && norm == m
}

// Year returns the year component, or 0 for the zero Month.
func (m Month) Year() int {
	y, _ := m.split()
	return y
}

// Mon returns the 1-12 month component, or 0 for the zero Month.
func (m Month) Mon() int {
	_, mon := m.split()
	return mon
}

func (m Month) split() (int, int) {
	parts := strings.SplitN(string(m), "-", 2)
	if len(parts) != 2 {
		return 0, 0
	}
	y, err1 := strconv.Atoi(parts[0])
	mon, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0, 0
	}
	return y, mon
}

// Start returns midnight UTC on the first day of the month. The zero Month
// maps to the zero time.
func (m Month) Start() time.Time {
	y, mon := m.split()
	if y == 0 || mon == 0 {
		return time.Time{}
	}
	return time.Date(y, time.Month(mon), 1, 0, 0, 0, 0, time.UTC)
}

// Label renders the month in "Oct 2025" form for display. The zero Month
// renders as "-".
func (m Month) Label() string {
	t := m.Start()
	if t.IsZero() {
		return "-"
	}
	return t.Format("Jan 2006")
}

// MonthsInclusive counts whole months from from to to counting both
// endpoints: a member who joined in month M owes for M itself. Returns 0
// when either month is zero or when to precedes from.
func MonthsInclusive(from, to Month) int {
	fy, fm := from.split()
	ty, tm := to.split()
	if fy == 0 || fm == 0 || ty == 0 || tm == 0 {
		return 0
	}
	diff := (ty*12 + tm) - (fy*12 + fm)
	if diff < 0 {
		return 0
	}
	return diff + 1
}
