package core

import "math"

// absent is the canonical absent amount; it encodes as JSON null.
var absent = Amount(math.NaN())

// Sanitize replaces every non-finite figure in the report with the absent
// marker. It runs once over the finished report.
func (r *Report) Sanitize() {
	s := &r.Summary
	for _, a := range []*Amount{
		&s.MacroTotalSales, &s.MacroTotalSalesOld, &s.MacroSalesDiff, &s.TotalImpact,
		&s.NewAmount, &s.DelAmount, &s.UpdateAmount, &s.AdvSalesAmount, &s.CarryOverAmount,
	} {
		sanitizeAmount(a)
	}
	for _, top := range [][]Change{s.NewTop, s.DelTop, s.UpdateTop, s.AdvSalesTop, s.CarryOverTop} {
		for i := range top {
			sanitizeChange(&top[i])
		}
	}
	for i := range s.SectorChartData {
		g := &s.SectorChartData[i]
		sanitizeAmount(&g.Impact)
		sanitizeProjects(g.Projects)
	}
	for i := range s.DeptChartData {
		g := &s.DeptChartData[i]
		sanitizeAmount(&g.Impact)
		sanitizeProjects(g.Projects)
	}
	for i := range r.DailyReport {
		row := &r.DailyReport[i]
		sanitizeAmount(&row.Old)
		sanitizeAmount(&row.New)
		sanitizeAmount(&row.Delta)
		row.Probability = sanitizeOptional(row.Probability)
	}
}

func sanitizeAmount(a *Amount) {
	if !a.Finite() {
		*a = absent
	}
}

func sanitizeOptional(a *Amount) *Amount {
	if a == nil || !a.Finite() {
		return nil
	}
	return a
}

func sanitizeChange(c *Change) {
	sanitizeAmount(&c.Old)
	sanitizeAmount(&c.New)
	sanitizeAmount(&c.Delta)
	sanitizeAmount(&c.Impact)
	c.Probability = sanitizeOptional(c.Probability)
}

func sanitizeProjects(ps []ProjectDelta) {
	for i := range ps {
		sanitizeAmount(&ps[i].Old)
		sanitizeAmount(&ps[i].New)
		sanitizeAmount(&ps[i].Delta)
	}
}
