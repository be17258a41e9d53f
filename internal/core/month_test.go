package core

import (
	"testing"
	"time"
)

func TestNormalizeMonth(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Month
		ok   bool
	}{
		{name: "canonical", raw: "2025-08", want: "2025-08", ok: true},
		{name: "single digit month", raw: "2025-8", want: "2025-08", ok: true},
		{name: "slash separator", raw: "2025/08", want: "2025-08", ok: true},
		{name: "trailing day ignored", raw: "2025-8-01", want: "2025-08", ok: true},
		{name: "year month name", raw: "2025-oct", want: "2025-10", ok: true},
		{name: "year full month name", raw: "2025-october", want: "2025-10", ok: true},
		{name: "month name year", raw: "oct-2025", want: "2025-10", ok: true},
		{name: "month name space year", raw: "October 2025", want: "2025-10", ok: true},
		{name: "sept abbreviation", raw: "sept-2025", want: "2025-09", ok: true},
		{name: "numeric month first", raw: "10-2025", want: "2025-10", ok: true},
		{name: "numeric month slash", raw: "10/2025", want: "2025-10", ok: true},
		{name: "day month name year", raw: "12-oct-2025", want: "2025-10", ok: true},
		{name: "day numeric month year", raw: "12/10/2025", want: "2025-10", ok: true},
		{name: "day month spaces", raw: "12 oct 2025", want: "2025-10", ok: true},
		{name: "mixed case", raw: "2025-OCT", want: "2025-10", ok: true},
		{name: "dot separator", raw: "10.2025", want: "2025-10", ok: true},
		{name: "free form fallback", raw: "Oct 12 2025", want: "2025-10", ok: true},
		{name: "empty", raw: "", ok: false},
		{name: "whitespace only", raw: "   ", ok: false},
		{name: "month out of range", raw: "2025-13", ok: false},
		{name: "zero month", raw: "2025-0", ok: false},
		{name: "unknown month name", raw: "2025-frost", ok: false},
		{name: "garbage", raw: "not a month", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeMonth(tt.raw)
			if ok != tt.ok {
				t.Fatalf("NormalizeMonth(%q) ok = %v, want %v", tt.raw, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("NormalizeMonth(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeMonthRoundTrip(t *testing.T) {
	// Every canonical month must normalize to itself.
	for year := 1999; year <= 2031; year++ {
		for mon := 1; mon <= 12; mon++ {
			canonical := MonthOf(year, mon)
			got, ok := NormalizeMonth(string(canonical))
			if !ok || got != canonical {
				t.Fatalf("round trip %q -> (%q, %v)", canonical, got, ok)
			}
		}
	}
}

func TestMonthsInclusive(t *testing.T) {
	tests := []struct {
		name string
		from Month
		to   Month
		want int
	}{
		{name: "same month counts once", from: "2025-01", to: "2025-01", want: 1},
		{name: "adjacent months", from: "2024-12", to: "2025-01", want: 2},
		{name: "four months", from: "2024-06", to: "2024-09", want: 4},
		{name: "join in the future", from: "2025-05", to: "2025-01", want: 0},
		{name: "zero from", from: "", to: "2025-01", want: 0},
		{name: "zero to", from: "2025-01", to: "", want: 0},
		{name: "year boundary", from: "2023-11", to: "2024-02", want: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MonthsInclusive(tt.from, tt.to); got != tt.want {
				t.Errorf("MonthsInclusive(%q, %q) = %d, want %d", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestCurrentMonth(t *testing.T) {
	dhaka, err := time.LoadLocation("Asia/Dhaka")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	// 2025-01-31 23:00 UTC is already February in Dhaka (UTC+6).
	instant := time.Date(2025, 1, 31, 23, 0, 0, 0, time.UTC)

	if got := CurrentMonth(instant, nil); got != "2025-01" {
		t.Errorf("CurrentMonth(UTC) = %q, want 2025-01", got)
	}
	if got := CurrentMonth(instant, dhaka); got != "2025-02" {
		t.Errorf("CurrentMonth(Dhaka) = %q, want 2025-02", got)
	}
}

func TestMonthAccessors(t *testing.T) {
	m := Month("2025-10")
	if m.Year() != 2025 || m.Mon() != 10 {
		t.Errorf("split %q = (%d, %d)", m, m.Year(), m.Mon())
	}
	if got := m.Label(); got != "Oct 2025" {
		t.Errorf("Label() = %q, want Oct 2025", got)
	}
	if got := m.Start(); !got.Equal(time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Start() = %v", got)
	}

	var zero Month
	if zero.Label() != "-" {
		t.Errorf("zero Label() = %q, want -", zero.Label())
	}
	if !zero.Start().IsZero() {
		t.Errorf("zero Start() = %v, want zero time", zero.Start())
	}
}
