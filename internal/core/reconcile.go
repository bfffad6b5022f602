// Package core implements the snapshot reconciliation engine: it compares two
// portfolio snapshots keyed by project identifier and produces a categorized
// change report with aggregates by sector and department.
//
// The engine is pure. A call reads its two tables and the reference date and
// returns a new Report; it keeps no state between calls and takes no locks,
// so independent reconciliations may run concurrently.
package core

import (
	"math"
	"time"
)

const (
	DefaultCategoryTop = 10
	DefaultGroupTop    = 5
	DefaultDigestLimit = 50
)

// Engine reconciles snapshot tables.
type Engine struct {
	labels      Labels
	categoryTop int
	groupTop    int
	digestLimit int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLabels replaces the column labels used for schema detection.
func WithLabels(l Labels) Option {
	return func(e *Engine) { e.labels = l }
}

// WithTopN sets the length of per-category and per-group top lists.
func WithTopN(category, group int) Option {
	return func(e *Engine) {
		if category > 0 {
			e.categoryTop = category
		}
		if group > 0 {
			e.groupTop = group
		}
	}
}

// WithDigestLimit caps the number of lines in the text digest.
func WithDigestLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.digestLimit = n
		}
	}
}

// NewEngine returns an engine with the default labels and limits.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		labels:      DefaultLabels(),
		categoryTop: DefaultCategoryTop,
		groupTop:    DefaultGroupTop,
		digestLimit: DefaultDigestLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Reconcile runs the default engine.
func Reconcile(old, new *Table, referenceDate string) (*Report, error) {
	return NewEngine().Reconcile(old, new, referenceDate)
}

// ReferenceMonth parses a YYYY-MM-DD date and returns its month, or 0 when
// the date cannot be parsed (which disables temporal classification).
func ReferenceMonth(date string) int {
	t, err := time.Parse("2006-1-2", date)
	if err != nil {
		return 0
	}
	return int(t.Month())
}

// Classify decides the category of a non-zero monthly delta.
func Classify(month, refMonth int, delta float64) Category {
	switch {
	case refMonth > 0 && month < refMonth:
		return Advance
	case refMonth > 0 && month > refMonth && delta < 0:
		return CarryOver
	default:
		return Revision
	}
}

// Partition splits identifiers into new-only, old-only and common sets.
// Added and common follow the new table's order, removed the old table's.
func Partition(old, new *Table) (added, removed, common []string) {
	for _, id := range new.ids {
		if old.Has(id) {
			common = append(common, id)
		} else {
			added = append(added, id)
		}
	}
	for _, id := range old.ids {
		if !new.Has(id) {
			removed = append(removed, id)
		}
	}
	return added, removed, common
}

// Reconcile compares old against new using referenceDate's month for
// classification and returns the aggregated report.
func (e *Engine) Reconcile(old, new *Table, referenceDate string) (*Report, error) {
	if old == nil || new == nil {
		return nil, ErrNilTable
	}

	refMonth := ReferenceMonth(referenceDate)
	oldSchema := DetectSchema(old, e.labels)
	newSchema := DetectSchema(new, e.labels)

	oldMeta := metaReader{table: old, schema: oldSchema}
	newMeta := metaReader{table: new, schema: newSchema}

	added, removed, common := Partition(old, new)
	changes := make([]Change, 0, len(added)+len(removed))

	for _, id := range added {
		month, amt := rowAmount(new, id, newSchema.MonthColumns)
		if amt == 0 {
			continue
		}
		c := newMeta.change(id, Added)
		c.Month = month
		c.MonthLabel = monthLabelOf(month)
		c.MonthInfo = c.MonthLabel
		c.New, c.Delta, c.Impact = Amount(amt), Amount(amt), Amount(amt)
		c.Probability = e.probability(new, id)
		changes = append(changes, c)
	}

	for _, id := range removed {
		month, amt := rowAmount(old, id, oldSchema.MonthColumns)
		if amt == 0 {
			continue
		}
		c := oldMeta.change(id, Removed)
		c.Month = month
		c.MonthLabel = monthLabelOf(month)
		c.MonthInfo = c.MonthLabel
		c.Old, c.Delta, c.Impact = Amount(amt), Amount(-amt), Amount(-amt)
		c.Probability = e.probability(old, id)
		changes = append(changes, c)
	}

	months := unionMonths(newSchema.MonthColumns, oldSchema.MonthColumns)
	for _, id := range common {
		prob := e.probability(new, id)
		for _, col := range months {
			m, ok := MonthOf(col)
			if !ok {
				continue
			}
			ov, _ := old.cell(id, col)
			nv, _ := new.cell(id, col)
			before, after := Coerce(ov), Coerce(nv)
			delta := after - before
			if !(math.Abs(delta) > 0) {
				continue
			}
			c := newMeta.change(id, Classify(m, refMonth, delta))
			c.Month = m
			c.MonthLabel = monthLabelOf(m)
			c.MonthInfo = c.MonthLabel
			c.Old, c.New = Amount(before), Amount(after)
			c.Delta, c.Impact = Amount(delta), Amount(delta)
			c.Probability = prob
			changes = append(changes, c)
		}
	}

	totals := macroTotals{
		newSum: grandTotal(new, newSchema.MonthColumns),
		oldSum: grandTotal(old, oldSchema.MonthColumns),
	}
	return e.aggregate(changes, totals), nil
}

func (e *Engine) probability(t *Table, id string) *Amount {
	row, ok := t.Row(id)
	if !ok {
		return nil
	}
	p := Probability(row, e.labels)
	if p == nil {
		return nil
	}
	a := Amount(*p)
	return &a
}

// metaReader resolves the descriptive columns of one table.
type metaReader struct {
	table  *Table
	schema Schema
}

func (m metaReader) change(id string, cat Category) Change {
	c := Change{
		ProjectCode: id,
		ProjectName: m.text(id, m.schema.NameColumn, UnknownProject),
		Department:  m.text(id, m.schema.DepartmentColumn, Unassigned),
		Sector:      Unassigned,
		Category:    cat,
		sectorKnown: m.schema.HasSector,
	}
	if m.schema.HasSector {
		c.Sector = m.text(id, m.schema.SectorColumn, Unassigned)
	}
	return c
}

func (m metaReader) text(id, column, fallback string) string {
	if column == "" {
		return fallback
	}
	v, ok := m.table.cell(id, column)
	if !ok || v.IsBlank() {
		return fallback
	}
	return v.String()
}
