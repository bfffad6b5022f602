package parser

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	formatCSV  = "csv"
	formatXLSX = "xlsx"
	formatXLS  = "xls"
)

var (
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

func sniff(raw []byte) string {
	switch {
	case bytes.HasPrefix(raw, zipMagic):
		return formatXLSX
	case bytes.HasPrefix(raw, oleMagic):
		return formatXLS
	default:
		return formatCSV
	}
}

// readWorkbook returns the raw cell values of the first sheet.
func readWorkbook(raw []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

type csvEncoding struct {
	name string
	enc  encoding.Encoding
}

// csvEncodings are tried in order. Latin-1 maps every byte and always succeeds.
var csvEncodings = []csvEncoding{
	{"utf-8", unicode.UTF8BOM},
	{"cp949", korean.EUCKR},
	{"latin1", charmap.ISO8859_1},
}

// readCSV decodes raw with the first encoding that yields clean text and
// parses it as CSV.
func readCSV(raw []byte) ([][]string, string, error) {
	var lastErr error
	for _, ce := range csvEncodings {
		text, ok := decode(raw, ce.enc)
		if !ok {
			continue
		}
		rows, err := parseCSV(text)
		if err != nil {
			lastErr = err
			continue
		}
		return rows, ce.name, nil
	}
	if lastErr == nil {
		lastErr = ErrUnsupportedFormat
	}
	return nil, "", fmt.Errorf("%w: %v", ErrUnsupportedFormat, lastErr)
}

func decode(raw []byte, enc encoding.Encoding) (string, bool) {
	out, _, err := transform.Bytes(enc.NewDecoder(), raw)
	if err != nil {
		return "", false
	}
	if !utf8.Valid(out) || bytes.ContainsRune(out, utf8.RuneError) {
		return "", false
	}
	return string(out), true
}

func parseCSV(text string) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
	}
	return rows, nil
}
