package coerce

import (
	"testing"
	"time"
)

func TestNumberCurrency(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want float64
		wantNil bool
	}{
		{"plain string", "1234.50", 1234.50, false},
		{"dollar sign", "$1,234.50", 1234.50, false},
		{"euro with spaces", "€ 1 234,50", 123450, false}, // comma stripped, not decimal
		{"float value", 99.95, 99.95, false},
		{"int value", 42, 42, false},
		{"empty string", "", 0, true},
		{"garbage", "n/a", 0, true},
		{"nil", nil, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Number(tt.raw, KindCurrency)
			if tt.wantNil {
				if got != nil {
					t.Fatalf("Number(%v) = %v, want nil", tt.raw, *got)
				}
				return
			}
			if got == nil {
				t.Fatalf("Number(%v) = nil, want %v", tt.raw, tt.want)
			}
			if *got != tt.want {
				t.Errorf("Number(%v) = %v, want %v", tt.raw, *got, tt.want)
			}
		})
	}
}

func TestNumberCountTruncates(t *testing.T) {
	got := Number("15.9", KindCount)
	if got == nil || *got != 15 {
		t.Fatalf("Number(15.9, count) = %v, want 15", got)
	}
	got = Number(10.0, KindCount)
	if got == nil || *got != 10 {
		t.Fatalf("Number(10.0, count) = %v, want 10", got)
	}
}

func TestNumberNeverPanics(t *testing.T) {
	// Unexpected raw types coerce to nil, not panic.
	for _, raw := range []any{[]string{"x"}, map[string]any{}, true} {
		if got := Number(raw, KindCount); got != nil {
			t.Errorf("Number(%T) = %v, want nil", raw, *got)
		}
	}
}

func TestTimestamp(t *testing.T) {
	got := Timestamp("2024-07-09T14:30:00Z")
	if got == nil {
		t.Fatal("Timestamp(RFC3339) = nil")
	}
	want := time.Date(2024, 7, 9, 14, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", got, want)
	}

	if got := Timestamp("2024-07-09"); got == nil {
		t.Error("Timestamp(date only) = nil, want parsed")
	}
	if got := Timestamp("not a date"); got != nil {
		t.Errorf("Timestamp(garbage) = %v, want nil", got)
	}
	if got := Timestamp(""); got != nil {
		t.Errorf("Timestamp(empty) = %v, want nil", got)
	}
}
