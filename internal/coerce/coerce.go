// Package coerce converts raw cell values from the grid service into typed
// numbers and timestamps. Historical cell data is frequently malformed, so
// every function here degrades to nil instead of returning an error: a bad
// value must never abort an audit pass.
package coerce

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind selects the coercion rule for a tracked field.
type Kind string

const (
	// KindCurrency strips currency symbols and thousands separators, then
	// parses the remainder as a decimal.
	KindCurrency Kind = "currency"
	// KindCount parses as a float and truncates to an integer quantity.
	KindCount Kind = "count"
)

var currencyReplacer = strings.NewReplacer("$", "", "€", "", "£", "", ",", "", " ", "")

// Number coerces a raw cell value to a number according to kind. Raw values
// arrive as whatever JSON decoding produced: float64, int, or string. Returns
// nil on empty input or parse failure.
func Number(raw any, kind Kind) *float64 {
	switch v := raw.(type) {
	case nil:
		return nil
	case float64:
		return applyKind(v, kind)
	case int:
		return applyKind(float64(v), kind)
	case int64:
		return applyKind(float64(v), kind)
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil
		}
		if kind == KindCurrency {
			s = currencyReplacer.Replace(s)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		return applyKind(f, kind)
	default:
		return nil
	}
}

func applyKind(f float64, kind Kind) *float64 {
	if kind == KindCount {
		f = math.Trunc(f)
	}
	return &f
}

// timestampLayouts are tried in order. The grid API normally emits RFC 3339,
// but cell history rows imported from older systems carry a mix of formats.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006",
}

// Timestamp parses a raw timestamp string permissively. Returns nil when no
// known layout matches; callers must treat such revisions as unusable for
// ordering rather than dropping them.
func Timestamp(raw string) *time.Time {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
