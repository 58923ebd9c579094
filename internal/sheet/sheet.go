// Package sheet reads spreadsheet files into importer rows.
package sheet

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/nhle/obligations/internal/importer"
)

var (
	ErrMissingHeader = errors.New("missing header")
	ErrNoSheet       = errors.New("sheet not found")
	ErrUnsupported   = errors.New("unsupported file type")
)

// ReadFile reads a .xlsx or .csv file. sheetName selects an xlsx sheet and
// defaults to the first one; it is ignored for CSV.
func ReadFile(path, sheetName string) ([]importer.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return ReadXLSX(f, sheetName)
	case ".csv", ".txt":
		return ReadCSV(f)
	default:
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupported)
	}
}

// ReadXLSX reads one worksheet. Cells are read raw so date cells arrive as
// serial numbers rather than in the workbook's display format.
func ReadXLSX(r io.Reader, sheetName string) ([]importer.Row, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoSheet
	}
	if sheetName == "" {
		sheetName = sheets[0]
	} else if idx, _ := wb.GetSheetIndex(sheetName); idx < 0 {
		return nil, fmt.Errorf("%q: %w", sheetName, ErrNoSheet)
	}

	records, err := wb.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheetName, err)
	}
	if len(records) == 0 {
		return nil, ErrMissingHeader
	}
	return toRows(records[0], records[1:])
}

// ReadCSV reads comma separated rows with a header line. A UTF-8 byte
// order mark is skipped.
func ReadCSV(r io.Reader) ([]importer.Row, error) {
	cr := csv.NewReader(stripUTF8BOM(bufio.NewReader(r)))
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrMissingHeader
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	var records [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv: %w", err)
		}
		records = append(records, rec)
	}
	return toRows(header, records)
}

func stripUTF8BOM(r *bufio.Reader) *bufio.Reader {
	b, err := r.Peek(3)
	if err == nil && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		_, _ = r.Discard(3)
	}
	return r
}

// toRows keys each record by header text. The header is line 1; blank
// records are dropped but still count toward line numbers.
func toRows(header []string, records [][]string) ([]importer.Row, error) {
	names := make([]string, len(header))
	named := false
	for i, h := range header {
		h = strings.TrimSpace(h)
		if !utf8.ValidString(h) {
			return nil, fmt.Errorf("header column %d: invalid encoding", i+1)
		}
		names[i] = h
		named = named || h != ""
	}
	if !named {
		return nil, ErrMissingHeader
	}

	var headers []string
	for _, h := range names {
		if h != "" && !slices.Contains(headers, h) {
			headers = append(headers, h)
		}
	}

	rows := make([]importer.Row, 0, len(records))
	for n, rec := range records {
		cells := make(map[string]string, len(names))
		for i, v := range rec {
			if i >= len(names) || names[i] == "" {
				continue
			}
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			if _, dup := cells[names[i]]; !dup {
				cells[names[i]] = v
			}
		}
		if len(cells) == 0 {
			continue
		}
		rows = append(rows, importer.Row{Line: n + 2, Cells: cells, Headers: headers})
	}
	return rows, nil
}
