package core

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type project struct {
	id     string
	name   string
	dept   string
	sector string
	months map[string]Value
	extra  map[string]Value
}

func buildTable(columns []string, projects ...project) *Table {
	t := NewTable(columns)
	for _, p := range projects {
		row := Row{}
		if p.name != "" {
			row["PJT명"] = TextValue(p.name)
		}
		if p.dept != "" {
			row["주관부서"] = TextValue(p.dept)
		}
		if p.sector != "" {
			row["부문"] = TextValue(p.sector)
		}
		for k, v := range p.months {
			row[k] = v
		}
		for k, v := range p.extra {
			row[k] = v
		}
		t.Append(p.id, row)
	}
	return t
}

var stdColumns = []string{"PJT명", "주관부서", "부문", "3월", "4월", "5월", "6월", "8월"}

func num(f float64) Value { return NumberValue(f) }

func TestReconcile_RevisionAndAddition(t *testing.T) {
	old := buildTable(stdColumns, project{
		id: "P1", name: "Alpha", dept: "A", sector: "X",
		months: map[string]Value{"3월": num(100), "4월": num(200)},
	})
	new := buildTable(stdColumns,
		project{
			id: "P1", name: "Alpha", dept: "A", sector: "X",
			months: map[string]Value{"3월": num(100), "4월": num(300)},
		},
		project{
			id: "P2", name: "Beta", dept: "B",
			months: map[string]Value{"5월": num(50)},
		},
	)

	r, err := Reconcile(old, new, "2025-04-15")
	require.NoError(t, err)

	rows := r.DailyReport
	require.Len(t, rows, 2)

	assert.Equal(t, Added, rows[0].Type)
	assert.Equal(t, "Beta", rows[0].ProjectName)
	assert.Equal(t, "5월", rows[0].Period)
	assert.Equal(t, Amount(50), rows[0].Delta)

	assert.Equal(t, Revision, rows[1].Type)
	assert.Equal(t, "4월", rows[1].Period)
	assert.Equal(t, Amount(100), rows[1].Delta)

	s := r.Summary
	assert.Equal(t, Amount(150), s.TotalImpact)
	assert.Equal(t, 1, s.NewCount)
	assert.Equal(t, 1, s.UpdateCount)
	assert.Equal(t, Amount(450), s.MacroTotalSales)
	assert.Equal(t, Amount(300), s.MacroTotalSalesOld)
	assert.Equal(t, Amount(150), s.MacroSalesDiff)

	depts := map[string]Amount{}
	for _, g := range s.DeptChartData {
		depts[g.Department] = g.Impact
	}
	assert.Equal(t, map[string]Amount{"A": 100, "B": 50}, depts)
}

func TestReconcile_TemporalCategories(t *testing.T) {
	tests := []struct {
		name   string
		column string
		before float64
		after  float64
		date   string
		want   Category
		delta  Amount
	}{
		{"earlier month is advance", "3월", 100, 50, "2025-06-01", Advance, -50},
		{"earlier month increase is advance", "3월", 100, 150, "2025-06-01", Advance, 50},
		{"later month decrease is carry-over", "8월", 100, 40, "2025-06-01", CarryOver, -60},
		{"later month increase is revision", "8월", 100, 140, "2025-06-01", Revision, 40},
		{"reference month decrease is revision", "6월", 100, 10, "2025-06-01", Revision, -90},
		{"reference month increase is revision", "6월", 100, 110, "2025-06-01", Revision, 10},
		{"unparseable date routes to revision", "3월", 100, 50, "yesterday", Revision, -50},
		{"empty date routes to revision", "8월", 100, 40, "", Revision, -60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			old := buildTable(stdColumns, project{id: "P1", name: "Alpha", dept: "A",
				months: map[string]Value{tt.column: num(tt.before)}})
			new := buildTable(stdColumns, project{id: "P1", name: "Alpha", dept: "A",
				months: map[string]Value{tt.column: num(tt.after)}})

			r, err := Reconcile(old, new, tt.date)
			require.NoError(t, err)
			require.Len(t, r.DailyReport, 1)
			assert.Equal(t, tt.want, r.DailyReport[0].Type)
			assert.Equal(t, tt.delta, r.DailyReport[0].Delta)
		})
	}
}

func TestReconcile_IdenticalTablesProduceNothing(t *testing.T) {
	p := project{id: "P1", name: "Alpha", dept: "A", sector: "X",
		months: map[string]Value{"3월": num(100), "4월": TextValue("1,200"), "5월": TextValue("n/a")}}
	r, err := Reconcile(buildTable(stdColumns, p), buildTable(stdColumns, p), "2025-04-01")
	require.NoError(t, err)

	assert.Empty(t, r.DailyReport)
	assert.Equal(t, Amount(0), r.Summary.TotalImpact)
	assert.Equal(t, Amount(0), r.Summary.MacroSalesDiff)
	assert.Equal(t, Amount(1300), r.Summary.MacroTotalSales)
	assert.Empty(t, r.TextReport)
}

func TestReconcile_RemovedNegatesImpact(t *testing.T) {
	old := buildTable(stdColumns, project{id: "P9", name: "Gone", dept: "C", sector: "Y",
		months: map[string]Value{"3월": num(30), "5월": num(-70)}})
	new := buildTable(stdColumns)

	r, err := Reconcile(old, new, "2025-04-01")
	require.NoError(t, err)
	require.Len(t, r.DailyReport, 1)

	row := r.DailyReport[0]
	assert.Equal(t, Removed, row.Type)
	assert.Equal(t, "5월", row.Period)
	assert.Equal(t, Amount(-40), row.Old)
	assert.Equal(t, Amount(40), row.Delta)
	assert.Equal(t, Amount(40), r.Summary.TotalImpact)
	assert.Equal(t, "5월 변동", row.Note)
}

func TestReconcile_AddedWithZeroTotalIsDropped(t *testing.T) {
	new := buildTable(stdColumns,
		project{id: "Z", name: "Zero", months: map[string]Value{"3월": num(0), "4월": TextValue("-")}},
		project{id: "N", name: "Net zero", months: map[string]Value{"3월": num(100), "4월": num(-100)}},
	)
	r, err := Reconcile(buildTable(stdColumns), new, "2025-04-01")
	require.NoError(t, err)
	assert.Empty(t, r.DailyReport)
	assert.Equal(t, 0, r.Summary.NewCount)
}

func TestReconcile_AddedMonthTieKeepsFirstColumn(t *testing.T) {
	new := buildTable(stdColumns, project{id: "P1", name: "Tie",
		months: map[string]Value{"4월": num(-50), "5월": num(50), "8월": num(10)}})
	r, err := Reconcile(buildTable(stdColumns), new, "2025-04-01")
	require.NoError(t, err)
	require.Len(t, r.DailyReport, 1)
	assert.Equal(t, "4월", r.DailyReport[0].Period)
	assert.Equal(t, Amount(10), r.DailyReport[0].Delta)
}

func TestReconcile_DefaultsForMissingDescriptors(t *testing.T) {
	columns := []string{"설명", "3월"}
	old := NewTable(columns)
	new := NewTable(columns)
	new.Append("P1", Row{"설명": TextValue("  First column name  "), "3월": num(10)})
	new.Append("P2", Row{"3월": num(20)})

	r, err := Reconcile(old, new, "2025-04-01")
	require.NoError(t, err)
	require.Len(t, r.DailyReport, 2)

	assert.Equal(t, "First column name", r.DailyReport[0].ProjectName)
	assert.Equal(t, UnknownProject, r.DailyReport[1].ProjectName)
	for _, row := range r.DailyReport {
		assert.Equal(t, Unassigned, row.Department)
		assert.Equal(t, Unassigned, row.Sector)
	}
}

func TestReconcile_SectorGroupsFallBackToDepartment(t *testing.T) {
	columns := []string{"PJT명", "주관부서", "3월"}
	old := buildTable(columns)
	new := buildTable(columns,
		project{id: "P1", name: "a", dept: "Sales", months: map[string]Value{"3월": num(10)}},
		project{id: "P2", name: "b", dept: "Ops", months: map[string]Value{"3월": num(-30)}},
	)

	r, err := Reconcile(old, new, "2025-04-01")
	require.NoError(t, err)

	var names []string
	for _, g := range r.Summary.SectorChartData {
		names = append(names, g.Name)
	}
	assert.Equal(t, []string{"Ops", "Sales"}, names)
}

func TestReconcile_SectorGroupsKeepUnassignedWhenSectorColumnExists(t *testing.T) {
	new := buildTable(stdColumns,
		project{id: "P1", name: "a", dept: "Sales", sector: "X", months: map[string]Value{"3월": num(10)}},
		project{id: "P2", name: "b", dept: "Ops", months: map[string]Value{"3월": num(5)}},
	)
	r, err := Reconcile(buildTable(stdColumns), new, "2025-04-01")
	require.NoError(t, err)

	var names []string
	for _, g := range r.Summary.SectorChartData {
		names = append(names, g.Name)
	}
	assert.Equal(t, []string{"X", Unassigned}, names)
}

func TestReconcile_GroupOrderingAndDeptSector(t *testing.T) {
	new := buildTable(stdColumns,
		project{id: "P1", name: "a", dept: "D1", sector: "S1", months: map[string]Value{"3월": num(10)}},
		project{id: "P2", name: "b", dept: "D2", sector: "S2", months: map[string]Value{"3월": num(-50)}},
		project{id: "P3", name: "c", dept: "D1", sector: "S3", months: map[string]Value{"3월": num(15)}},
		project{id: "P4", name: "d", dept: "D3", sector: "S2", months: map[string]Value{"3월": num(25)}},
	)
	r, err := Reconcile(buildTable(stdColumns), new, "2025-04-01")
	require.NoError(t, err)

	sectors := r.Summary.SectorChartData
	require.Len(t, sectors, 3)
	assert.Equal(t, "S2", sectors[0].Name)
	assert.Equal(t, Amount(-25), sectors[0].Impact)
	assert.Equal(t, "S3", sectors[1].Name)
	assert.Equal(t, "S1", sectors[2].Name)

	require.Len(t, sectors[0].Projects, 2)
	assert.Equal(t, "b", sectors[0].Projects[0].Name)
	assert.Equal(t, "d", sectors[0].Projects[1].Name)

	depts := r.Summary.DeptChartData
	require.Len(t, depts, 3)
	assert.Equal(t, "D2", depts[0].Department)
	assert.Equal(t, "D1", depts[1].Department)
	assert.Equal(t, Amount(25), depts[1].Impact)
	assert.Equal(t, "S1", depts[1].Sector)
}

func TestReconcile_TopListsAreCappedAndOrdered(t *testing.T) {
	var projects []project
	for i := 0; i < 15; i++ {
		projects = append(projects, project{
			id:     "P" + strconv.Itoa(i),
			name:   "n" + strconv.Itoa(i),
			dept:   "D",
			sector: "S",
			months: map[string]Value{"3월": num(float64((i % 5) + 1))},
		})
	}
	r, err := Reconcile(buildTable(stdColumns), buildTable(stdColumns, projects...), "2025-04-01")
	require.NoError(t, err)

	top := r.Summary.NewTop
	require.Len(t, top, DefaultCategoryTop)
	assert.True(t, sort.SliceIsSorted(top, func(i, j int) bool {
		return math.Abs(top[i].Delta.Float()) > math.Abs(top[j].Delta.Float())
	}))
	// Ties keep encounter order: P4, P9, P14 all carry 5.
	assert.Equal(t, []string{"P4", "P9", "P14"}, []string{top[0].ProjectCode, top[1].ProjectCode, top[2].ProjectCode})

	require.Len(t, r.Summary.SectorChartData, 1)
	assert.Len(t, r.Summary.SectorChartData[0].Projects, DefaultGroupTop)

	small, err := NewEngine(WithTopN(2, 1)).Reconcile(buildTable(stdColumns), buildTable(stdColumns, projects[:3]...), "2025-04-01")
	require.NoError(t, err)
	assert.Len(t, small.Summary.NewTop, 2)
	assert.Len(t, small.Summary.SectorChartData[0].Projects, 1)
	assert.Equal(t, 3, small.Summary.NewCount)
}

func TestReconcile_ProbabilityFromNewRow(t *testing.T) {
	columns := append(append([]string{}, stdColumns...), "확률")
	old := buildTable(columns, project{id: "P1", name: "a",
		months: map[string]Value{"3월": num(1), "4월": num(1)}, extra: map[string]Value{"확률": num(0.1)}})
	new := buildTable(columns, project{id: "P1", name: "a",
		months: map[string]Value{"3월": num(2), "4월": num(3)}, extra: map[string]Value{"확률": TextValue("0.5")}})

	r, err := Reconcile(old, new, "2025-04-01")
	require.NoError(t, err)
	require.Len(t, r.DailyReport, 2)
	for _, row := range r.DailyReport {
		require.NotNil(t, row.Probability)
		assert.Equal(t, Amount(50), *row.Probability)
	}
}

func TestReconcile_NonFiniteBecomesNull(t *testing.T) {
	old := buildTable(stdColumns, project{id: "P1", name: "a", months: map[string]Value{"3월": num(1)}})
	new := buildTable(stdColumns, project{id: "P1", name: "a", months: map[string]Value{"3월": TextValue("1e400")}})

	r, err := Reconcile(old, new, "2025-04-01")
	require.NoError(t, err)
	require.Len(t, r.DailyReport, 1)

	b, err := json.Marshal(r)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))
	stats := decoded["summary_stats"].(map[string]any)
	assert.Nil(t, stats["total_impact"])
	assert.Nil(t, stats["macro_total_sales"])

	daily := decoded["daily_report"].([]any)
	row := daily[0].(map[string]any)
	assert.Nil(t, row["증감"])
	assert.Nil(t, row["확률"])
	assert.Equal(t, float64(1), row["전월 금액"])
}

func TestReconcile_IsIdempotent(t *testing.T) {
	old := buildTable(stdColumns,
		project{id: "P1", name: "a", dept: "A", sector: "X", months: map[string]Value{"3월": num(100), "8월": num(5)}},
		project{id: "P2", name: "b", dept: "B", months: map[string]Value{"4월": num(7)}},
	)
	new := buildTable(stdColumns,
		project{id: "P1", name: "a", dept: "A", sector: "X", months: map[string]Value{"3월": num(90), "8월": num(1)}},
		project{id: "P3", name: "c", dept: "C", sector: "Z", months: map[string]Value{"6월": num(8)}},
	)

	first, err := Reconcile(old, new, "2025-06-30")
	require.NoError(t, err)
	second, err := Reconcile(old, new, "2025-06-30")
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestReconcile_SchemaDriftUsesBothMonthSets(t *testing.T) {
	old := buildTable([]string{"PJT명", "3월"}, project{id: "P1", name: "a", months: map[string]Value{"3월": num(10)}})
	new := buildTable([]string{"PJT명", "4월"}, project{id: "P1", name: "a", months: map[string]Value{"4월": num(10)}})

	r, err := Reconcile(old, new, "2025-04-01")
	require.NoError(t, err)
	require.Len(t, r.DailyReport, 2)
	assert.Equal(t, "4월", r.DailyReport[0].Period)
	assert.Equal(t, Revision, r.DailyReport[0].Type)
	assert.Equal(t, "3월", r.DailyReport[1].Period)
	assert.Equal(t, Advance, r.DailyReport[1].Type)
	assert.Equal(t, Amount(-10), r.DailyReport[1].Delta)
}

func TestReconcile_NilTable(t *testing.T) {
	_, err := Reconcile(nil, NewTable(nil), "2025-01-01")
	assert.ErrorIs(t, err, ErrNilTable)
}

func TestPartition(t *testing.T) {
	old := NewTable(nil)
	new := NewTable(nil)
	for _, id := range []string{"a", "b", "c", "d"} {
		old.Append(id, nil)
	}
	for _, id := range []string{"e", "c", "a", "f"} {
		new.Append(id, nil)
	}

	added, removed, common := Partition(old, new)
	assert.Equal(t, []string{"e", "f"}, added)
	assert.Equal(t, []string{"b", "d"}, removed)
	assert.Equal(t, []string{"c", "a"}, common)

	seen := map[string]int{}
	for _, set := range [][]string{added, removed, common} {
		for _, id := range set {
			seen[id]++
		}
	}
	assert.Len(t, seen, 6)
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
	}
}

func TestDigest(t *testing.T) {
	changes := make([]Change, 0, 60)
	for i := 0; i < 60; i++ {
		changes = append(changes, Change{Category: Revision, ProjectName: "p", MonthLabel: "4월", Delta: Amount(i)})
	}
	changes[0] = Change{Category: Advance, ProjectName: "Alpha", MonthLabel: "3월", Delta: -1500}
	changes[1] = Change{Category: Added, ProjectName: "Beta", MonthLabel: "-", Delta: 1234567.6}

	out := Digest(changes, DefaultDigestLimit)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, DefaultDigestLimit)
	assert.Equal(t, "- [선매출] Alpha (3월): -1,500", lines[0])
	assert.Equal(t, "- [신규 추가] Beta (-): +1,234,568", lines[1])
	assert.Equal(t, "- [기존 변동] p (4월): +2", lines[2])
}

func TestSignedAmount(t *testing.T) {
	assert.Equal(t, "+0", SignedAmount(0))
	assert.Equal(t, "-1,000", SignedAmount(-1000))
	assert.Equal(t, "+12", SignedAmount(12.4))
	assert.Equal(t, "+inf", SignedAmount(math.Inf(1)))
	assert.Equal(t, "-0", SignedAmount(-0.3))
	assert.Equal(t, "+100,000,000,000,000,000,000", SignedAmount(1e20))
	assert.Equal(t, "-100,000,000,000,000,000,000", SignedAmount(-1e20))
}
