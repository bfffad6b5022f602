// Package parser turns uploaded portfolio files (CSV or xlsx) into snapshot
// tables keyed by project identifier.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"cdc/internal/core"
	"cdc/internal/log"
)

const (
	DefaultSkipRows = 7
	DefaultScanRows = 50

	// TotalSalesColumn is the preferred label of the header metric column.
	TotalSalesColumn = "매출(계)"
)

var (
	ErrEmptyFile         = errors.New("empty file")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrHeaderNotFound    = errors.New("header row with a project identifier column not found")
	ErrKeyColumnNotFound = errors.New("project identifier column not found")
)

var (
	// keyMarkers locate both the header row and the key column, in priority order.
	keyMarkers = []string{"PJT", "PROJECT", "코드", "CODE"}

	totalRow     = regexp.MustCompile(`(?i)합계|총계|total|소계`)
	nonNumericRe = regexp.MustCompile(`[^\d.\-]`)
)

// Result is a parsed snapshot plus metadata gathered on the way.
type Result struct {
	Table      *core.Table
	KeyColumn  string
	Format     string
	Encoding   string
	TotalSales float64
	// Dropped counts rows discarded as blank-keyed, total lines or duplicates.
	Dropped int
}

// Options tunes header detection.
type Options struct {
	// SkipRows data rows following the header are discarded when more than
	// SkipRows rows remain. The portfolio workbook carries a sub-header block there.
	SkipRows int
	// ScanRows bounds the header search.
	ScanRows int
}

// DefaultOptions matches the portfolio workbook layout.
func DefaultOptions() Options {
	return Options{SkipRows: DefaultSkipRows, ScanRows: DefaultScanRows}
}

// Parser converts raw uploads into tables.
type Parser struct {
	opts   Options
	logger *log.Logger
}

// New creates a parser. A zero ScanRows falls back to the default; a
// negative SkipRows disables skipping.
func New(opts Options, logger *log.Logger) *Parser {
	if opts.ScanRows <= 0 {
		opts.ScanRows = DefaultScanRows
	}
	if opts.SkipRows < 0 {
		opts.SkipRows = 0
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Parser{opts: opts, logger: logger.WithComponent(log.ComponentParser)}
}

// Parse returns the snapshot table of raw.
func (p *Parser) Parse(raw []byte) (*core.Table, error) {
	res, err := p.Load(raw)
	if err != nil {
		return nil, err
	}
	return res.Table, nil
}

// Load parses raw and reports detection metadata along with the table.
func (p *Parser) Load(raw []byte) (*Result, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, ErrEmptyFile
	}

	var (
		rows [][]string
		res  = &Result{}
		err  error
	)
	switch sniff(raw) {
	case formatXLSX:
		res.Format = formatXLSX
		rows, err = readWorkbook(raw)
	case formatXLS:
		return nil, fmt.Errorf("%w: legacy .xls workbooks must be saved as .xlsx", ErrUnsupportedFormat)
	default:
		res.Format = formatCSV
		rows, res.Encoding, err = readCSV(raw)
	}
	if err != nil {
		return nil, err
	}

	if err := p.build(rows, res); err != nil {
		return nil, err
	}

	p.logger.Debug("Snapshot parsed",
		log.FieldFormat, res.Format,
		log.FieldEncoding, res.Encoding,
		log.FieldRows, res.Table.Len(),
		"dropped", res.Dropped,
	)
	return res, nil
}

func (p *Parser) build(rows [][]string, res *Result) error {
	headerIdx := findHeader(rows, p.opts.ScanRows)
	if headerIdx < 0 {
		return ErrHeaderNotFound
	}

	columns := headerLabels(rows[headerIdx])
	// Delimiter-only lines still count toward the skipped block.
	data := nonEmpty(rows[headerIdx+1:])
	if len(data) > p.opts.SkipRows {
		data = data[p.opts.SkipRows:]
	}
	data = nonBlank(data)

	keyIdx := keyColumn(columns)
	if keyIdx < 0 {
		return ErrKeyColumnNotFound
	}
	res.KeyColumn = columns[keyIdx]
	res.TotalSales = totalSales(columns, data)

	tableColumns := make([]string, 0, len(columns)-1)
	for i, c := range columns {
		if i != keyIdx {
			tableColumns = append(tableColumns, c)
		}
	}

	t := core.NewTable(tableColumns)
	for _, rec := range data {
		key := strings.TrimSpace(field(rec, keyIdx))
		if key == "" || totalRow.MatchString(key) {
			res.Dropped++
			continue
		}
		row := make(core.Row, len(columns)-1)
		for i, c := range columns {
			if i == keyIdx {
				continue
			}
			row[c] = cellValue(field(rec, i))
		}
		if !t.Append(key, row) {
			res.Dropped++
		}
	}
	res.Table = t
	return nil
}

// findHeader returns the index of the first row within limit whose joined,
// upper-cased text mentions a key marker, or -1.
func findHeader(rows [][]string, limit int) int {
	if len(rows) < limit {
		limit = len(rows)
	}
	for i := 0; i < limit; i++ {
		joined := strings.ToUpper(strings.Join(rows[i], " "))
		for _, m := range keyMarkers {
			if strings.Contains(joined, m) {
				return i
			}
		}
	}
	return -1
}

// headerLabels trims labels, names blank ones by position and suffixes
// repeated ones (".1", ".2") so every column stays addressable.
func headerLabels(raw []string) []string {
	seen := make(map[string]int, len(raw))
	out := make([]string, len(raw))
	for i, l := range raw {
		l = strings.TrimSpace(l)
		if l == "" {
			l = "Unnamed: " + strconv.Itoa(i)
		}
		if n, dup := seen[l]; dup {
			seen[l] = n + 1
			l = l + "." + strconv.Itoa(n+1)
		} else {
			seen[l] = 0
		}
		out[i] = l
	}
	return out
}

func keyColumn(columns []string) int {
	for _, m := range keyMarkers {
		for i, c := range columns {
			if strings.Contains(strings.ToUpper(c), m) {
				return i
			}
		}
	}
	return -1
}

// totalSales sums the sales-total column, keeping only digits, dots and
// minus signs of each cell. Cells that still fail to parse are skipped.
func totalSales(columns []string, data [][]string) float64 {
	idx := -1
	for i, c := range columns {
		if c == TotalSalesColumn {
			idx = i
			break
		}
	}
	if idx < 0 {
		for i, c := range columns {
			if strings.Contains(c, "매출") && strings.Contains(c, "계") {
				idx = i
				break
			}
		}
	}
	if idx < 0 {
		return 0
	}

	var sum float64
	for _, rec := range data {
		s := nonNumericRe.ReplaceAllString(field(rec, idx), "")
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			sum += f
		}
	}
	return sum
}

// nonEmpty drops records with no cells at all, as left by empty lines or
// empty spreadsheet rows.
func nonEmpty(rows [][]string) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		if len(r) > 0 {
			out = append(out, r)
		}
	}
	return out
}

func nonBlank(rows [][]string) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		for _, c := range r {
			if strings.TrimSpace(c) != "" {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

func field(rec []string, i int) string {
	if i < len(rec) {
		return rec[i]
	}
	return ""
}

// cellValue keeps numeric-looking cells as numbers and everything else as
// text; amount coercion happens in the engine.
func cellValue(s string) core.Value {
	s = strings.TrimSpace(s)
	if s == "" {
		return core.EmptyValue()
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return core.NumberValue(f)
	}
	return core.TextValue(s)
}
