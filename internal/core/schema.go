package core

import (
	"regexp"
	"strconv"
	"strings"
)

// Unassigned is the sector/department placeholder for rows that carry none.
const Unassigned = "미지정"

// UnknownProject is used when a table has no usable name column.
const UnknownProject = "Unknown"

// Labels lists the column labels schema detection looks for. It is a plain
// value owned by the engine so callers can swap it per deployment.
type Labels struct {
	Name               string
	Department         string
	DepartmentFallback string
	// Sectors are tried in order; the first present label wins.
	Sectors []string
	// Probability labels are tried in order against each row.
	Probability []string
}

// DefaultLabels returns the labels used by the portfolio workbook.
func DefaultLabels() Labels {
	return Labels{
		Name:               "PJT명",
		Department:         "주관부서",
		DepartmentFallback: "부서",
		Sectors:            []string{"부문", "본부", "Division", "Sector"},
		Probability:        []string{"수주가능성", "확률", "Probability", "가능성", "영업기회진행상태", "Status"},
	}
}

// Schema is the outcome of column detection on a single table.
type Schema struct {
	MonthColumns     []string
	NameColumn       string
	DepartmentColumn string
	// SectorColumn is empty when HasSector is false.
	SectorColumn string
	HasSector    bool
}

var monthLabel = regexp.MustCompile(`^.*[0-9]+월$`)

// IsMonthLabel reports whether a column label denotes a monthly amount ("4월", "2025년 04월").
func IsMonthLabel(label string) bool {
	return monthLabel.MatchString(label)
}

// MonthOf extracts the month number from a monthly column label. Labels
// carrying more digits than a month (e.g. "202504월") are reduced modulo 100.
func MonthOf(label string) (int, bool) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, label)
	if digits == "" {
		return 0, false
	}
	m, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	if m > 12 {
		m %= 100
	}
	return m, true
}

// DetectSchema locates the monthly, name, department and sector columns of t.
// Optional columns that are missing are reported as such, never guessed.
func DetectSchema(t *Table, labels Labels) Schema {
	var s Schema
	for _, c := range t.Columns() {
		if IsMonthLabel(c) {
			s.MonthColumns = append(s.MonthColumns, c)
		}
	}

	switch {
	case t.HasColumn(labels.Name):
		s.NameColumn = labels.Name
	case len(t.columns) > 0:
		s.NameColumn = t.columns[0]
	}

	if t.HasColumn(labels.Department) {
		s.DepartmentColumn = labels.Department
	} else {
		s.DepartmentColumn = labels.DepartmentFallback
	}

	for _, c := range labels.Sectors {
		if t.HasColumn(c) {
			s.SectorColumn = c
			s.HasSector = true
			break
		}
	}
	return s
}

// unionMonths merges the monthly columns of both snapshots: the new table's
// order first, then columns that only the old table still has.
func unionMonths(newCols, oldCols []string) []string {
	seen := make(map[string]struct{}, len(newCols)+len(oldCols))
	out := make([]string, 0, len(newCols)+len(oldCols))
	for _, group := range [][]string{newCols, oldCols} {
		for _, c := range group {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}
