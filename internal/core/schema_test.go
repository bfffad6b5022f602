package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthOf(t *testing.T) {
	tests := []struct {
		label string
		want  int
		ok    bool
	}{
		{"4월", 4, true},
		{"12월", 12, true},
		{"2025년 04월", 4, true},
		{"202511월", 11, true},
		{"월", 0, false},
		{"PJT명", 0, false},
	}
	for _, tt := range tests {
		got, ok := MonthOf(tt.label)
		assert.Equal(t, tt.ok, ok, tt.label)
		assert.Equal(t, tt.want, got, tt.label)
	}
}

func TestIsMonthLabel(t *testing.T) {
	assert.True(t, IsMonthLabel("1월"))
	assert.True(t, IsMonthLabel("FY25 10월"))
	assert.False(t, IsMonthLabel("월별"))
	assert.False(t, IsMonthLabel("4월 누계"))
	assert.False(t, IsMonthLabel("매출(계)"))
}

func TestDetectSchema(t *testing.T) {
	labels := DefaultLabels()

	t.Run("preferred labels", func(t *testing.T) {
		tbl := NewTable([]string{"구분", "PJT명", "주관부서", "부서", "본부", "부문", "1월", "2월", "비고"})
		s := DetectSchema(tbl, labels)
		assert.Equal(t, []string{"1월", "2월"}, s.MonthColumns)
		assert.Equal(t, "PJT명", s.NameColumn)
		assert.Equal(t, "주관부서", s.DepartmentColumn)
		assert.True(t, s.HasSector)
		assert.Equal(t, "부문", s.SectorColumn)
	})

	t.Run("fallbacks", func(t *testing.T) {
		tbl := NewTable([]string{"사업", "부서", "Division", "3월"})
		s := DetectSchema(tbl, labels)
		assert.Equal(t, "사업", s.NameColumn)
		assert.Equal(t, "부서", s.DepartmentColumn)
		assert.Equal(t, "Division", s.SectorColumn)
	})

	t.Run("no sector", func(t *testing.T) {
		s := DetectSchema(NewTable([]string{"PJT명", "3월"}), labels)
		assert.False(t, s.HasSector)
		assert.Empty(t, s.SectorColumn)
	})

	t.Run("empty table", func(t *testing.T) {
		s := DetectSchema(NewTable(nil), labels)
		assert.Empty(t, s.NameColumn)
		assert.Empty(t, s.MonthColumns)
	})
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		name string
		in   Value
		want float64
	}{
		{"number", NumberValue(12.5), 12.5},
		{"negative", NumberValue(-3), -3},
		{"thousands", TextValue("1,234,567"), 1234567},
		{"percent", TextValue("45%"), 45},
		{"padded", TextValue("  7  "), 7},
		{"garbage", TextValue("TBD"), 0},
		{"blank", TextValue("   "), 0},
		{"empty", EmptyValue(), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Coerce(tt.in))
		})
	}
}

func TestProbability(t *testing.T) {
	labels := DefaultLabels()
	tests := []struct {
		name string
		row  Row
		want *float64
	}{
		{"fraction scaled", Row{"확률": NumberValue(0.5)}, ptr(50)},
		{"one scaled", Row{"확률": NumberValue(1)}, ptr(100)},
		{"zero stays zero", Row{"확률": NumberValue(0)}, ptr(0)},
		{"percent passes", Row{"확률": NumberValue(75)}, ptr(75)},
		{"text percent", Row{"Probability": TextValue("80%")}, ptr(80)},
		{"priority order", Row{"Status": NumberValue(10), "수주가능성": NumberValue(0.3)}, ptr(30)},
		{"blank", Row{"확률": TextValue("")}, nil},
		{"unparseable", Row{"확률": TextValue("high")}, nil},
		{"absent", Row{"3월": NumberValue(1)}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Probability(tt.row, labels)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		})
	}
}

func TestTableAppendKeepsFirst(t *testing.T) {
	tbl := NewTable([]string{"a", "a", "b"})
	assert.Equal(t, []string{"a", "b"}, tbl.Columns())
	assert.True(t, tbl.Append("x", Row{"a": TextValue("first")}))
	assert.False(t, tbl.Append("x", Row{"a": TextValue("second")}))

	row, ok := tbl.Row("x")
	require.True(t, ok)
	v, _ := row.Get("a")
	assert.Equal(t, "first", v.Text)
	assert.Equal(t, 1, tbl.Len())
}

func ptr(f float64) *float64 { return &f }
