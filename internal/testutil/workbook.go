package testutil

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

// FixtureSheet is one worksheet of a generated workbook
type FixtureSheet struct {
	Name string
	Rows [][]interface{} // first row is the header
}

// WriteWorkbook writes sheets, in order, to path
func WriteWorkbook(t *testing.T, path string, sheets ...FixtureSheet) {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.Name); err != nil {
				t.Fatalf("rename sheet: %v", err)
			}
		} else if _, err := f.NewSheet(s.Name); err != nil {
			t.Fatalf("new sheet %s: %v", s.Name, err)
		}
		for r, row := range s.Rows {
			cell, _ := excelize.CoordinatesToCellName(1, r+1)
			values := row
			if err := f.SetSheetRow(s.Name, cell, &values); err != nil {
				t.Fatalf("write %s row %d: %v", s.Name, r+1, err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook %s: %v", path, err)
	}
}

// SampleSheets builds a source workbook for one day:
//   - CMG-PDO with barras Santa Rosa and Chavarria, 48 half-hour rows
//   - CMG-COS with barras Santa Rosa and Oroya, 48 half-hour rows
//   - Hidro-ELP with hourly rows; measured up to measuredUntil (exclusive
//     hour), forecast for every hour
func SampleSheets(day time.Time, measuredUntil int) []FixtureSheet {
	date := day.Format("2006-01-02")

	pdo := [][]interface{}{{"Fecha", "Santa Rosa", "Chavarria"}}
	cos := [][]interface{}{{"Fecha", "Santa Rosa", "Oroya"}}
	for k := 0; k < 48; k++ {
		pdo = append(pdo, []interface{}{date, 100 + float64(k), 90 + float64(k)})
		cos = append(cos, []interface{}{date, 110 + float64(k), 80 + float64(k)})
	}

	hidro := [][]interface{}{{"Fecha", "Hora", "Caudal Medido", "Proyección"}}
	for h := 0; h < 24; h++ {
		var measured interface{} = ""
		if h < measuredUntil {
			measured = 20 + float64(h)/2
		}
		hidro = append(hidro, []interface{}{
			day.Format("02/01/2006"),
			fmt.Sprintf("%02d:00", h),
			measured,
			21 + float64(h)/2,
		})
	}

	return []FixtureSheet{
		{Name: "CMG-PDO", Rows: pdo},
		{Name: "CMG-COS", Rows: cos},
		{Name: "Hidro-ELP", Rows: hidro},
	}
}

// WriteSampleWorkbook writes SampleSheets to dir/Fuente.xlsx and returns the path
func WriteSampleWorkbook(t *testing.T, dir string, day time.Time, measuredUntil int) string {
	t.Helper()
	path := filepath.Join(dir, "Fuente.xlsx")
	WriteWorkbook(t, path, SampleSheets(day, measuredUntil)...)
	return path
}
