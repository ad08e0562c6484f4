package reconstruct

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// maxExcelSerial is 9999-12-31, the last date Excel can represent
const maxExcelSerial = 2958465

var isoLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006/01/02",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
}

var dayFirstLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
	"02.01.2006",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"2/1/2006 15:04",
	"02-01-2006 15:04:05",
	"02-01-2006 15:04",
}

var monthFirstLayouts = []string{
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"1-2-2006",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"1/2/2006 15:04",
	"01-02-2006 15:04:05",
	"01-02-2006 15:04",
}

var combinedLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 3:04 PM",
	"2006-01-02 3:04PM",
	"2006-01-02 3:04:05 PM",
}

// ParseDate parses a date cell. Raw Excel serial numbers are accepted as
// well as common text layouts; dayFirst decides which of the ambiguous
// slash layouts is tried first. The wall clock is interpreted in loc.
func ParseDate(s string, dayFirst bool, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty date", ErrSkipRow)
	}

	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		return fromSerial(s, serial, loc)
	}

	layouts := make([]string, 0, len(isoLayouts)+len(dayFirstLayouts)+len(monthFirstLayouts))
	layouts = append(layouts, isoLayouts...)
	if dayFirst {
		layouts = append(layouts, dayFirstLayouts...)
		layouts = append(layouts, monthFirstLayouts...)
	} else {
		layouts = append(layouts, monthFirstLayouts...)
		layouts = append(layouts, dayFirstLayouts...)
	}

	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: unparseable date %q", ErrSkipRow, s)
}

func fromSerial(raw string, serial float64, loc *time.Location) (time.Time, error) {
	if math.IsNaN(serial) || serial <= 0 || serial > maxExcelSerial {
		return time.Time{}, fmt.Errorf("%w: date serial out of range %q", ErrSkipRow, raw)
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrSkipRow, err)
	}
	t = t.Round(time.Second)
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc), nil
}

// Midnight truncates t to the start of its calendar day in its location
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// TimeOfDayText returns the literal text of a time-of-day cell. A raw
// Excel time (a day fraction in [0, 1)) is rendered as "15:04:05"; any
// other value is returned trimmed and unchanged.
func TimeOfDayText(s string) string {
	s = strings.TrimSpace(s)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f >= 1 {
		return s
	}
	secs := int(math.Round(f * 86400))
	if secs >= 86400 {
		// rounds up to the next day; let the combined parse reject it
		return "24:00:00"
	}
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
}

// CombineDateTime joins the date portion of day with the literal time text
// and parses the result as a single timestamp.
func CombineDateTime(day time.Time, timeText string, loc *time.Location) (time.Time, error) {
	timeText = strings.TrimSpace(timeText)
	if timeText == "" {
		return time.Time{}, fmt.Errorf("%w: empty time", ErrSkipRow)
	}
	combined := day.Format("2006-01-02") + " " + timeText
	for _, layout := range combinedLayouts {
		if t, err := time.ParseInLocation(layout, combined, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparseable date-time %q", ErrSkipRow, combined)
}
