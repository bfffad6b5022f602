package core

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// Coerce converts a cell to a float. Thousands separators and percent signs
// are stripped; anything unparseable, missing or blank becomes exactly 0.
func Coerce(v Value) float64 {
	switch v.Kind {
	case KindNumber:
		if math.IsNaN(v.Number) {
			return 0
		}
		return v.Number
	case KindText:
		f, ok := parseLoose(v.Text)
		if !ok {
			return 0
		}
		return f
	}
	return 0
}

// parseLoose parses "1,234", "50%", " 12.5 ". Values beyond float range keep
// their infinite result so the final report can mark them absent.
func parseLoose(s string) (float64, bool) {
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "%", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return f, true
		}
		return 0, false
	}
	return f, true
}

// Probability returns the win probability (0–100) of a row, or nil when the
// row has no probability column or the value is blank or unparseable.
// Fractions in (0, 1] are scaled to percent; 0 stays 0.
func Probability(row Row, labels Labels) *float64 {
	var (
		raw   Value
		found bool
	)
	for _, label := range labels.Probability {
		if v, ok := row.Get(label); ok {
			raw, found = v, true
			break
		}
	}
	if !found || raw.IsBlank() {
		return nil
	}

	var val float64
	switch raw.Kind {
	case KindNumber:
		if math.IsNaN(raw.Number) {
			return nil
		}
		val = raw.Number
	case KindText:
		f, ok := parseLoose(raw.Text)
		if !ok {
			return nil
		}
		val = f
	default:
		return nil
	}

	if val > 0 && val <= 1.0 {
		val *= 100
	}
	return &val
}

// rowAmount sums a row over the given monthly columns and returns the month
// holding the largest absolute amount (first column wins ties, 0 if none).
func rowAmount(t *Table, id string, months []string) (month int, total float64) {
	var peak float64
	for _, col := range months {
		m, ok := MonthOf(col)
		if !ok {
			continue
		}
		v, _ := t.cell(id, col)
		val := Coerce(v)
		total += val
		if math.Abs(val) > math.Abs(peak) {
			peak = val
			month = m
		}
	}
	return month, total
}

// grandTotal sums every monthly cell of the table.
func grandTotal(t *Table, months []string) float64 {
	var total float64
	for _, id := range t.ids {
		for _, col := range months {
			v, _ := t.cell(id, col)
			total += Coerce(v)
		}
	}
	return total
}
