package google

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
)

// valuesToCSV renders a values matrix (as returned by Sheets API) as CSV.
// Ragged rows are padded to the widest row so every record has the same
// number of fields.
func valuesToCSV(values [][]interface{}) ([]byte, error) {
	width := 0
	for _, row := range values {
		if len(row) > width {
			width = len(row)
		}
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, row := range values {
		rec := make([]string, width)
		for i, v := range row {
			rec[i] = cellString(v)
		}
		if err := w.Write(rec); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func cellString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}
