package core

import (
	"errors"
	"testing"
)

func TestParseDecimalToCents(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{name: "dot separator", input: "12.34", want: 1234},
		{name: "comma separator", input: "12,34", want: 1234},
		{name: "integer", input: "150", want: 15000},
		{name: "single fractional digit", input: "12.3", want: 1230},
		{name: "third digit rounds down", input: "12.344", want: 1234},
		{name: "third digit rounds up", input: "12.346", want: 1235},
		{name: "leading dot", input: ".50", want: 50},
		{name: "surrounding spaces", input: "  7.5  ", want: 750},
		{name: "zero rejected", input: "0", wantErr: true},
		{name: "zero decimal rejected", input: "0.00", wantErr: true},
		{name: "negative rejected", input: "-5", wantErr: true},
		{name: "plus sign rejected", input: "+5", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "letters", input: "abc", wantErr: true},
		{name: "two dots", input: "1.2.3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDecimalToCents(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidAmount) {
					t.Fatalf("ParseDecimalToCents(%q) err = %v, want ErrInvalidAmount", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDecimalToCents(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseDecimalToCents(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseNonNegativeCents(t *testing.T) {
	if got, err := ParseNonNegativeCents(""); err != nil || got != 0 {
		t.Errorf("empty = (%d, %v), want (0, nil)", got, err)
	}
	if got, err := ParseNonNegativeCents("0"); err != nil || got != 0 {
		t.Errorf("zero = (%d, %v), want (0, nil)", got, err)
	}
	if got, err := ParseNonNegativeCents("100"); err != nil || got != 10000 {
		t.Errorf("100 = (%d, %v), want (10000, nil)", got, err)
	}
	if _, err := ParseNonNegativeCents("-1"); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("negative err = %v, want ErrInvalidAmount", err)
	}
}

func TestMoneyString(t *testing.T) {
	if got := (Money{Cents: 1234}).String(); got != "12.34" {
		t.Errorf("String() = %q, want 12.34", got)
	}
	if got := (Money{Cents: 500}).String(); got != "5.00" {
		t.Errorf("String() = %q, want 5.00", got)
	}
}
