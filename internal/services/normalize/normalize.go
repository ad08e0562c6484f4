// Package normalize reshapes reconstructed sheets into long-form series.
package normalize

import (
	"math"
	"strconv"
	"strings"

	"cmgvisor/internal/models"
	"cmgvisor/internal/services/reconstruct"
	"cmgvisor/internal/services/workbook"
)

// ParseValue coerces a cell to a finite number. Blank, non-numeric, NaN
// and infinite cells report false and are never replaced by zero.
func ParseValue(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Melt turns a wide cost sheet into (datetime, barra, valor) records: all
// rows of the first entity column, then the next, each in stamp order.
// It returns the series and the number of cells dropped as non-numeric.
func Melt(sheet *workbook.Sheet, stamps []reconstruct.Stamp, cols []Column) (*models.CostSeries, int) {
	series := &models.CostSeries{Records: make([]models.CostRecord, 0, len(stamps)*len(cols))}
	dropped := 0

	for _, col := range cols {
		for _, st := range stamps {
			v, ok := ParseValue(sheet.Cell(st.Row, col.Index))
			if !ok {
				dropped++
				continue
			}
			series.Records = append(series.Records, models.CostRecord{
				DateTime: st.DateTime,
				Barra:    col.Name,
				Valor:    v,
			})
		}
	}

	return series, dropped
}

// Single extracts one value column as (datetime, valor) records in stamp
// order, dropping non-numeric cells.
func Single(sheet *workbook.Sheet, stamps []reconstruct.Stamp, col int) (*models.FlowSeries, int) {
	series := &models.FlowSeries{Records: make([]models.FlowRecord, 0, len(stamps))}
	dropped := 0

	for _, st := range stamps {
		v, ok := ParseValue(sheet.Cell(st.Row, col))
		if !ok {
			dropped++
			continue
		}
		series.Records = append(series.Records, models.FlowRecord{
			DateTime: st.DateTime,
			Valor:    v,
		})
	}

	return series, dropped
}
