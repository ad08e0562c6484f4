// Package export serializes windowed tables into a multi-sheet workbook.
//
// Sheet names are a precondition: callers must pass names that are valid
// worksheet names (see ValidateSheetName). Assemble rejects invalid names
// instead of repairing them.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"cmgvisor/internal/models"
)

// FileName is the download name of the dashboard export
const FileName = "visor_export.xlsx"

// ContentType is the MIME type of an assembled workbook
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Fixed sheet names of the dashboard export
const (
	SheetPDO      = "CMG_PDO"
	SheetCOS      = "CMG_COS"
	SheetMeasured = "Caudal_Medido"
	SheetForecast = "Caudal_Proyeccion"
)

const maxSheetNameLen = 31

// ErrInvalidSheetName is returned for names the xlsx format does not accept
var ErrInvalidSheetName = errors.New("invalid sheet name")

// ErrNoSheets is returned when Assemble is called without any sheet
var ErrNoSheets = errors.New("no sheets to export")

// Table is a rectangular table with a fixed column order
type Table interface {
	Columns() []string
	Rows() [][]interface{}
}

// Sheet pairs a worksheet name with the table dumped into it
type Sheet struct {
	Name  string
	Table Table
}

// ValidateSheetName checks the worksheet naming rules: 1 to 31 characters,
// none of : \ / ? * [ ], and no leading or trailing apostrophe.
func ValidateSheetName(name string) error {
	n := len([]rune(name))
	if n == 0 || n > maxSheetNameLen {
		return fmt.Errorf("%w: %q must be 1-%d characters", ErrInvalidSheetName, name, maxSheetNameLen)
	}
	if strings.ContainsAny(name, `:\/?*[]`) {
		return fmt.Errorf("%w: %q contains a forbidden character", ErrInvalidSheetName, name)
	}
	if strings.HasPrefix(name, "'") || strings.HasSuffix(name, "'") {
		return fmt.Errorf("%w: %q starts or ends with an apostrophe", ErrInvalidSheetName, name)
	}
	return nil
}

// Assemble writes one worksheet per entry, in order. Each sheet gets the
// table's columns as its first row followed by the rows verbatim.
func Assemble(sheets []Sheet) ([]byte, error) {
	if len(sheets) == 0 {
		return nil, ErrNoSheets
	}
	seen := make(map[string]bool, len(sheets))
	for _, s := range sheets {
		if err := ValidateSheetName(s.Name); err != nil {
			return nil, err
		}
		key := strings.ToLower(s.Name)
		if seen[key] {
			return nil, fmt.Errorf("%w: duplicate name %q", ErrInvalidSheetName, s.Name)
		}
		seen[key] = true
	}

	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.Name); err != nil {
				return nil, fmt.Errorf("failed to name sheet %s: %w", s.Name, err)
			}
		} else if _, err := f.NewSheet(s.Name); err != nil {
			return nil, fmt.Errorf("failed to create sheet %s: %w", s.Name, err)
		}
		if err := writeTable(f, s); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeTable(f *excelize.File, s Sheet) error {
	if s.Table == nil {
		return nil
	}
	header := s.Table.Columns()
	values := make([]interface{}, len(header))
	for i, c := range header {
		values[i] = c
	}
	if err := f.SetSheetRow(s.Name, "A1", &values); err != nil {
		return fmt.Errorf("failed to write header of %s: %w", s.Name, err)
	}

	for i, row := range s.Table.Rows() {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		r := row
		if err := f.SetSheetRow(s.Name, cell, &r); err != nil {
			return fmt.Errorf("failed to write row %d of %s: %w", i+2, s.Name, err)
		}
	}
	return nil
}

// WindowedSheets builds the four fixed sheets of the dashboard export
func WindowedSheets(pdo, cos *models.CostSeries, measured, forecast *models.FlowSeries) []Sheet {
	return []Sheet{
		{Name: SheetPDO, Table: pdo},
		{Name: SheetCOS, Table: cos},
		{Name: SheetMeasured, Table: measured},
		{Name: SheetForecast, Table: forecast},
	}
}
