package core

import (
	"encoding/json"
	"math"
	"strconv"
)

// Category classifies one change record.
type Category string

const (
	Added     Category = "신규 추가"
	Removed   Category = "취소/드랍"
	Advance   Category = "선매출"
	CarryOver Category = "이월"
	Revision  Category = "기존 변동"
)

// Categories lists every category in report order.
func Categories() []Category {
	return []Category{Added, Removed, Revision, Advance, CarryOver}
}

// Amount is a monetary figure in a report. Non-finite amounts encode as JSON
// null, which is how an absent value reaches consumers.
type Amount float64

func (a Amount) Float() float64 { return float64(a) }

// Finite reports whether the amount is a usable number.
func (a Amount) Finite() bool {
	f := float64(a)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.Finite() {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, float64(a), 'f', -1, 64), nil
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*a = Amount(math.NaN())
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*a = Amount(f)
	return nil
}

// Change is one classified difference between the snapshots.
type Change struct {
	ProjectCode string   `json:"pjt_code"`
	ProjectName string   `json:"pjt_name"`
	Department  string   `json:"dept_name"`
	Sector      string   `json:"sector_name"`
	Category    Category `json:"type"`
	// Month is 1-12, or 0 when the change concerns the whole project.
	Month       int     `json:"-"`
	MonthLabel  string  `json:"month"`
	Old         Amount  `json:"old_val"`
	New         Amount  `json:"new_val"`
	Delta       Amount  `json:"diff"`
	Impact      Amount  `json:"financial_impact"`
	MonthInfo   string  `json:"month_info"`
	Probability *Amount `json:"probability"`

	// sectorKnown is false when the source table had no sector column.
	sectorKnown bool
}

// ProjectDelta is the compact projection used inside group breakdowns.
type ProjectDelta struct {
	Name  string `json:"pjt_name"`
	Month string `json:"month"`
	Old   Amount `json:"old_val"`
	New   Amount `json:"new_val"`
	Delta Amount `json:"diff"`
}

// SectorGroup aggregates changes of one sector.
type SectorGroup struct {
	Name     string         `json:"name"`
	Impact   Amount         `json:"financial_impact"`
	Projects []ProjectDelta `json:"projects"`
}

// DeptGroup aggregates changes of one department. Sector is the sector of
// the group's first record and only serves as a filter hint.
type DeptGroup struct {
	Department string         `json:"dept_name"`
	Sector     string         `json:"sector_name"`
	Impact     Amount         `json:"financial_impact"`
	Projects   []ProjectDelta `json:"projects"`
}

// Summary holds the headline statistics of a report.
type Summary struct {
	MacroTotalSales    Amount `json:"macro_total_sales"`
	MacroTotalSalesOld Amount `json:"macro_total_sales_old"`
	MacroSalesDiff     Amount `json:"macro_sales_diff"`
	TotalImpact        Amount `json:"total_impact"`

	NewCount  int      `json:"new_count"`
	NewAmount Amount   `json:"new_amount"`
	NewTop    []Change `json:"new_top"`

	DelCount  int      `json:"del_count"`
	DelAmount Amount   `json:"del_amount"`
	DelTop    []Change `json:"del_top"`

	UpdateCount  int      `json:"update_count"`
	UpdateAmount Amount   `json:"update_amount"`
	UpdateTop    []Change `json:"update_top"`

	AdvSalesCount  int      `json:"adv_sales_count"`
	AdvSalesAmount Amount   `json:"adv_sales_amount"`
	AdvSalesTop    []Change `json:"adv_sales_top"`

	CarryOverCount  int      `json:"carry_over_count"`
	CarryOverAmount Amount   `json:"carry_over_amount"`
	CarryOverTop    []Change `json:"carry_over_top"`

	SectorChartData []SectorGroup `json:"sector_chart_data"`
	DeptChartData   []DeptGroup   `json:"dept_chart_data"`
}

// ReportRow is a display-ready change line. Keys match the dashboard columns.
type ReportRow struct {
	Type        Category `json:"유형"`
	ProjectName string   `json:"사업명"`
	Sector      string   `json:"부문"`
	Department  string   `json:"부서"`
	Period      string   `json:"기간"`
	Old         Amount   `json:"전월 금액"`
	New         Amount   `json:"당월 금액"`
	Delta       Amount   `json:"증감"`
	Probability *Amount  `json:"확률"`
	Note        string   `json:"비고"`
}

// Report is the full outcome of one reconciliation.
type Report struct {
	Summary     Summary     `json:"summary_stats"`
	DailyReport []ReportRow `json:"daily_report"`
	TextReport  string      `json:"text_report"`
}

// CategoryStats returns count, summed delta and the top list for c.
func (s Summary) CategoryStats(c Category) (int, Amount, []Change) {
	switch c {
	case Added:
		return s.NewCount, s.NewAmount, s.NewTop
	case Removed:
		return s.DelCount, s.DelAmount, s.DelTop
	case Advance:
		return s.AdvSalesCount, s.AdvSalesAmount, s.AdvSalesTop
	case CarryOver:
		return s.CarryOverCount, s.CarryOverAmount, s.CarryOverTop
	default:
		return s.UpdateCount, s.UpdateAmount, s.UpdateTop
	}
}

func monthLabelOf(m int) string {
	if m <= 0 {
		return "-"
	}
	return strconv.Itoa(m) + "월"
}
