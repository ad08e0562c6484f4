// Package reconstruct derives timestamps for sheet rows.
//
// Two strategies exist. HalfHourly is used for cost sheets, which only carry
// a date label per batch of rows: each row gets the next 30-minute slot of
// its date, in source row order. Exact is used for the flow sheet, which has
// an explicit date and time-of-day per row.
//
// Both strategies rely on the caller preserving source row order from the
// workbook reader to this package.
package reconstruct

import (
	"errors"
	"strings"
	"time"

	"cmgvisor/internal/services/workbook"
)

// SlotWidth is the spacing between consecutive rows of one date group
const SlotWidth = 30 * time.Minute

// ErrSkipRow marks a row whose date or time could not be parsed. Such rows
// are dropped from the output; the error never aborts a load.
var ErrSkipRow = errors.New("skip row")

// Stamp is a reconstructed timestamp for one source row
type Stamp struct {
	Row      int // index into Sheet.Rows
	DateTime time.Time
}

// Stats counts what happened to the rows of a sheet
type Stats struct {
	Rows    int // non-blank data rows seen
	Dropped int // rows skipped because of a parse failure
}

// HalfHourly assigns each row the wall-clock time midnight(date) + k*30min,
// where k is the row's position among the rows sharing its date, counted in
// source order. Any time-of-day on the date cell is ignored. Groups longer
// than 48 rows continue past midnight into the following day.
func HalfHourly(sheet *workbook.Sheet, dateCol int, loc *time.Location) ([]Stamp, Stats) {
	var stats Stats
	stamps := make([]Stamp, 0, sheet.Len())
	positions := make(map[string]int)

	for i, row := range sheet.Rows {
		if blankRow(row) {
			continue
		}
		stats.Rows++

		day, err := ParseDate(sheet.Cell(i, dateCol), false, loc)
		if err != nil {
			stats.Dropped++
			continue
		}
		day = Midnight(day)

		key := day.Format("2006-01-02")
		k := positions[key]
		positions[key] = k + 1

		stamps = append(stamps, Stamp{Row: i, DateTime: Slot(day, k)})
	}

	return stamps, stats
}

// Slot returns the k-th half-hour label of day. The offset is applied to
// the wall clock, not to elapsed time, so a daylight saving change in the
// day's location does not shift later labels.
func Slot(day time.Time, k int) time.Time {
	wall := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC).
		Add(time.Duration(k) * SlotWidth)
	return time.Date(wall.Year(), wall.Month(), wall.Day(), wall.Hour(), wall.Minute(), 0, 0, day.Location())
}

// Exact combines the date portion of the date cell with the literal text of
// the time cell. Dates are parsed day-first.
func Exact(sheet *workbook.Sheet, dateCol, timeCol int, loc *time.Location) ([]Stamp, Stats) {
	var stats Stats
	stamps := make([]Stamp, 0, sheet.Len())

	for i, row := range sheet.Rows {
		if blankRow(row) {
			continue
		}
		stats.Rows++

		dt, err := exactRow(sheet, i, dateCol, timeCol, loc)
		if err != nil {
			stats.Dropped++
			continue
		}
		stamps = append(stamps, Stamp{Row: i, DateTime: dt})
	}

	return stamps, stats
}

func exactRow(sheet *workbook.Sheet, row, dateCol, timeCol int, loc *time.Location) (time.Time, error) {
	day, err := ParseDate(sheet.Cell(row, dateCol), true, loc)
	if err != nil {
		return time.Time{}, err
	}
	return CombineDateTime(day, TimeOfDayText(sheet.Cell(row, timeCol)), loc)
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
