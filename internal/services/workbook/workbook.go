// Package workbook reads the source spreadsheet into plain header/row tables.
package workbook

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrSheetNotFound is returned when a required sheet is absent from the workbook
var ErrSheetNotFound = errors.New("sheet not found")

// Sheet is a raw worksheet: a header row plus data rows in source order.
// Cells hold raw values (dates as Excel serial numbers, times as day
// fractions) unless the cell was stored as text.
type Sheet struct {
	Name   string
	Header []string
	Rows   [][]string
}

// Cell returns the trimmed value at row/col, or "" when the row is short
func (s *Sheet) Cell(row, col int) string {
	if row < 0 || row >= len(s.Rows) || col < 0 {
		return ""
	}
	r := s.Rows[row]
	if col >= len(r) {
		return ""
	}
	return strings.TrimSpace(r[col])
}

// Len returns the number of data rows
func (s *Sheet) Len() int {
	return len(s.Rows)
}

// Workbook wraps an opened excelize file
type Workbook struct {
	file *excelize.File
}

// Open parses workbook bytes (already decrypted by storage)
func Open(data []byte) (*Workbook, error) {
	return OpenReader(bytes.NewReader(data))
}

// OpenReader parses a workbook from a reader
func OpenReader(r io.Reader) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	return &Workbook{file: f}, nil
}

// Close releases the underlying file
func (wb *Workbook) Close() error {
	if wb.file == nil {
		return nil
	}
	return wb.file.Close()
}

// SheetNames returns the sheet names in workbook order
func (wb *Workbook) SheetNames() []string {
	return wb.file.GetSheetList()
}

// Sheet reads a named sheet. The first non-blank row is the header; every
// row after it is returned untouched and in order, so row position can be
// used downstream to recover sub-day timestamps.
func (wb *Workbook) Sheet(name string) (*Sheet, error) {
	idx, err := wb.file.GetSheetIndex(name)
	if err != nil || idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, name)
	}

	rows, err := wb.file.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("error reading sheet %q: %w", name, err)
	}

	sheet := &Sheet{Name: name}

	headerIdx := -1
	for i, row := range rows {
		if !isBlank(row) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return sheet, nil
	}

	sheet.Header = make([]string, len(rows[headerIdx]))
	for i, h := range rows[headerIdx] {
		sheet.Header[i] = strings.TrimSpace(h)
	}
	sheet.Rows = rows[headerIdx+1:]

	return sheet, nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
