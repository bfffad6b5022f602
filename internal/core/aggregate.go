package core

import (
	"math"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type macroTotals struct {
	newSum float64
	oldSum float64
}

func (e *Engine) aggregate(changes []Change, totals macroTotals) *Report {
	byCat := make(map[Category][]Change, 5)
	var impact float64
	for _, c := range changes {
		byCat[c.Category] = append(byCat[c.Category], c)
		impact += c.Impact.Float()
	}

	s := Summary{
		MacroTotalSales:    Amount(totals.newSum),
		MacroTotalSalesOld: Amount(totals.oldSum),
		MacroSalesDiff:     Amount(totals.newSum - totals.oldSum),
		TotalImpact:        Amount(impact),
	}
	s.NewCount, s.NewAmount, s.NewTop = e.categoryStats(byCat[Added])
	s.DelCount, s.DelAmount, s.DelTop = e.categoryStats(byCat[Removed])
	s.UpdateCount, s.UpdateAmount, s.UpdateTop = e.categoryStats(byCat[Revision])
	s.AdvSalesCount, s.AdvSalesAmount, s.AdvSalesTop = e.categoryStats(byCat[Advance])
	s.CarryOverCount, s.CarryOverAmount, s.CarryOverTop = e.categoryStats(byCat[CarryOver])

	s.SectorChartData = e.sectorGroups(changes)
	s.DeptChartData = e.deptGroups(changes)

	r := &Report{
		Summary:     s,
		DailyReport: dailyRows(changes),
		TextReport:  Digest(changes, e.digestLimit),
	}
	r.Sanitize()
	return r
}

func (e *Engine) categoryStats(list []Change) (int, Amount, []Change) {
	var sum float64
	for _, c := range list {
		sum += c.Delta.Float()
	}
	return len(list), Amount(sum), topBy(list, e.categoryTop, func(c Change) float64 { return c.Delta.Float() })
}

// topBy returns at most n items ordered by descending |key(item)|. Ties keep
// their original order.
func topBy(list []Change, n int, key func(Change) float64) []Change {
	out := append([]Change{}, list...)
	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(key(out[i])) > math.Abs(key(out[j]))
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

type group struct {
	key     string
	members []Change
	impact  float64
}

// groupChanges buckets changes by key. Groups come back ordered by key, then
// stably re-sorted by descending absolute impact.
func groupChanges(changes []Change, key func(Change) string) []*group {
	index := make(map[string]*group)
	var groups []*group
	for _, c := range changes {
		k := key(c)
		g, ok := index[k]
		if !ok {
			g = &group{key: k}
			index[k] = g
			groups = append(groups, g)
		}
		g.members = append(g.members, c)
		g.impact += c.Impact.Float()
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].key < groups[j].key })
	sort.SliceStable(groups, func(i, j int) bool {
		return math.Abs(groups[i].impact) > math.Abs(groups[j].impact)
	})
	return groups
}

func (e *Engine) projects(members []Change) []ProjectDelta {
	top := topBy(members, e.groupTop, func(c Change) float64 { return c.Impact.Float() })
	out := make([]ProjectDelta, 0, len(top))
	for _, c := range top {
		out = append(out, ProjectDelta{
			Name:  c.ProjectName,
			Month: c.MonthLabel,
			Old:   c.Old,
			New:   c.New,
			Delta: c.Delta,
		})
	}
	return out
}

// sectorGroups groups by sector. When no record came from a table with a
// sector column at all, departments stand in for sectors.
func (e *Engine) sectorGroups(changes []Change) []SectorGroup {
	anySector := false
	for _, c := range changes {
		if c.sectorKnown {
			anySector = true
			break
		}
	}
	key := func(c Change) string { return c.Sector }
	if !anySector {
		key = func(c Change) string { return c.Department }
	}

	groups := groupChanges(changes, key)
	out := make([]SectorGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, SectorGroup{
			Name:     g.key,
			Impact:   Amount(g.impact),
			Projects: e.projects(g.members),
		})
	}
	return out
}

func (e *Engine) deptGroups(changes []Change) []DeptGroup {
	groups := groupChanges(changes, func(c Change) string { return c.Department })
	out := make([]DeptGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, DeptGroup{
			Department: g.key,
			Sector:     g.members[0].Sector,
			Impact:     Amount(g.impact),
			Projects:   e.projects(g.members),
		})
	}
	return out
}

func dailyRows(changes []Change) []ReportRow {
	rows := make([]ReportRow, 0, len(changes))
	for _, c := range changes {
		rows = append(rows, ReportRow{
			Type:        c.Category,
			ProjectName: c.ProjectName,
			Sector:      c.Sector,
			Department:  c.Department,
			Period:      c.MonthLabel,
			Old:         c.Old,
			New:         c.New,
			Delta:       c.Delta,
			Probability: c.Probability,
			Note:        c.MonthInfo + " 변동",
		})
	}
	return rows
}

var digestPrinter = message.NewPrinter(language.English)

// Digest renders up to limit changes, one per line, for the insight generator:
//
//	- [선매출] Alpha (3월): -1,500
func Digest(changes []Change, limit int) string {
	if limit > 0 && len(changes) > limit {
		changes = changes[:limit]
	}
	lines := make([]string, 0, len(changes))
	for _, c := range changes {
		lines = append(lines, "- ["+string(c.Category)+"] "+c.ProjectName+" ("+c.MonthLabel+"): "+SignedAmount(c.Delta.Float()))
	}
	return strings.Join(lines, "\n")
}

// SignedAmount formats f rounded to an integer with an explicit sign and
// thousands separators.
func SignedAmount(f float64) string {
	switch {
	case math.IsNaN(f):
		return "+nan"
	case math.IsInf(f, 1):
		return "+inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	sign := "+"
	if math.Signbit(f) {
		sign = "-"
	}
	return sign + digestPrinter.Sprintf("%.0f", math.Abs(f))
}
