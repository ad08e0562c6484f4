package reconstruct

import (
	"errors"
	"fmt"
	"testing"
	"time"
	_ "time/tzdata"

	"cmgvisor/internal/services/workbook"
)

func sheetOf(rows ...[]string) *workbook.Sheet {
	return &workbook.Sheet{Name: "test", Header: []string{"Fecha", "Hora", "Valor"}, Rows: rows}
}

func date(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func TestHalfHourlySingleGroup(t *testing.T) {
	sheet := sheetOf(
		[]string{"2024-01-01", "", "1"},
		[]string{"2024-01-01", "", "2"},
		[]string{"2024-01-01", "", "3"},
	)

	stamps, stats := HalfHourly(sheet, 0, time.UTC)

	want := []time.Time{
		date(2024, 1, 1, 0, 0),
		date(2024, 1, 1, 0, 30),
		date(2024, 1, 1, 1, 0),
	}
	if len(stamps) != len(want) {
		t.Fatalf("got %d stamps, want %d", len(stamps), len(want))
	}
	for i, s := range stamps {
		if !s.DateTime.Equal(want[i]) {
			t.Errorf("stamp %d = %v, want %v", i, s.DateTime, want[i])
		}
		if s.Row != i {
			t.Errorf("stamp %d row = %d, want %d", i, s.Row, i)
		}
	}
	if stats.Rows != 3 || stats.Dropped != 0 {
		t.Errorf("stats = %+v, want 3 rows, 0 dropped", stats)
	}
}

func TestHalfHourlyInterleavedDatesKeepSourceOrder(t *testing.T) {
	sheet := sheetOf(
		[]string{"2024-01-02"},
		[]string{"2024-01-01"},
		[]string{"2024-01-02"},
		[]string{"2024-01-01"},
		[]string{"2024-01-02"},
	)

	stamps, _ := HalfHourly(sheet, 0, time.UTC)

	want := []time.Time{
		date(2024, 1, 2, 0, 0),
		date(2024, 1, 1, 0, 0),
		date(2024, 1, 2, 0, 30),
		date(2024, 1, 1, 0, 30),
		date(2024, 1, 2, 1, 0),
	}
	for i, s := range stamps {
		if !s.DateTime.Equal(want[i]) {
			t.Errorf("stamp %d = %v, want %v", i, s.DateTime, want[i])
		}
	}
}

func TestHalfHourlyIgnoresTimeOfDayNoise(t *testing.T) {
	sheet := sheetOf(
		[]string{"2024-01-01 13:45:00"},
		[]string{"2024-01-01"},
		[]string{"45292.75"}, // 2024-01-01 18:00 as an Excel serial
	)

	stamps, _ := HalfHourly(sheet, 0, time.UTC)

	want := []time.Time{
		date(2024, 1, 1, 0, 0),
		date(2024, 1, 1, 0, 30),
		date(2024, 1, 1, 1, 0),
	}
	if len(stamps) != 3 {
		t.Fatalf("got %d stamps, want 3", len(stamps))
	}
	for i, s := range stamps {
		if !s.DateTime.Equal(want[i]) {
			t.Errorf("stamp %d = %v, want %v", i, s.DateTime, want[i])
		}
	}
}

func TestHalfHourlyDropsUnparseableRows(t *testing.T) {
	sheet := sheetOf(
		[]string{"2024-01-01", "", "1"},
		[]string{"not a date", "", "2"},
		[]string{"", "", "3"},
		[]string{"", "", ""},
		[]string{"2024-01-01", "", "4"},
	)

	stamps, stats := HalfHourly(sheet, 0, time.UTC)

	if len(stamps) != 2 {
		t.Fatalf("got %d stamps, want 2", len(stamps))
	}
	if stamps[0].Row != 0 || stamps[1].Row != 4 {
		t.Errorf("rows = %d, %d; want 0, 4", stamps[0].Row, stamps[1].Row)
	}
	// Dropped rows do not consume a slot.
	if !stamps[1].DateTime.Equal(date(2024, 1, 1, 0, 30)) {
		t.Errorf("second stamp = %v, want 00:30", stamps[1].DateTime)
	}
	if stats.Rows != 4 || stats.Dropped != 2 {
		t.Errorf("stats = %+v, want 4 rows (blank row ignored), 2 dropped", stats)
	}
}

func TestHalfHourlyRollsPastMidnight(t *testing.T) {
	var rows [][]string
	for i := 0; i < 50; i++ {
		rows = append(rows, []string{"2024-01-01"})
	}

	stamps, _ := HalfHourly(sheetOf(rows...), 0, time.UTC)

	if len(stamps) != 50 {
		t.Fatalf("got %d stamps, want 50", len(stamps))
	}
	if got := stamps[47].DateTime; !got.Equal(date(2024, 1, 1, 23, 30)) {
		t.Errorf("slot 47 = %v, want 23:30", got)
	}
	if got := stamps[48].DateTime; !got.Equal(date(2024, 1, 2, 0, 0)) {
		t.Errorf("slot 48 = %v, want next day 00:00", got)
	}
	if got := stamps[49].DateTime; !got.Equal(date(2024, 1, 2, 0, 30)) {
		t.Errorf("slot 49 = %v, want next day 00:30", got)
	}
}

func TestHalfHourlyDaylightSavingDays(t *testing.T) {
	madrid, err := time.LoadLocation("Europe/Madrid")
	if err != nil {
		t.Fatalf("load zone: %v", err)
	}

	tests := []struct {
		name string
		day  string
		// slots falling in the spring-forward gap have no wall-clock label
		gap map[int]bool
	}{
		{"spring forward", "2024-03-31", map[int]bool{4: true, 5: true}},
		{"fall back", "2024-10-27", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := make([][]string, 48)
			for i := range rows {
				rows[i] = []string{tt.day}
			}

			stamps, stats := HalfHourly(sheetOf(rows...), 0, madrid)
			if len(stamps) != 48 || stats.Dropped != 0 {
				t.Fatalf("got %d stamps, %d dropped", len(stamps), stats.Dropped)
			}

			for k, s := range stamps {
				local := s.DateTime.In(madrid)
				if got := local.Format("2006-01-02"); got != tt.day {
					t.Errorf("slot %d date = %s, want %s", k, got, tt.day)
				}
				if tt.gap[k] {
					continue
				}
				if h, m := local.Hour(), local.Minute(); h*60+m != k*30 {
					t.Errorf("slot %d = %02d:%02d, want %02d:%02d", k, h, m, k/2, (k%2)*30)
				}
			}
		})
	}
}

func TestSlotKeepsLocation(t *testing.T) {
	lima, err := time.LoadLocation("America/Lima")
	if err != nil {
		t.Fatalf("load zone: %v", err)
	}
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, lima)

	got := Slot(day, 49)
	want := time.Date(2024, 1, 2, 0, 30, 0, 0, lima)
	if !got.Equal(want) || got.Location() != lima {
		t.Errorf("Slot(day, 49) = %v, want %v", got, want)
	}
}

func TestHalfHourlySlotsProperty(t *testing.T) {
	for n := 1; n <= 60; n += 7 {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			var rows [][]string
			for i := 0; i < n; i++ {
				rows = append(rows, []string{"15/03/2024"})
			}
			stamps, _ := HalfHourly(sheetOf(rows...), 0, time.UTC)
			if len(stamps) != n {
				t.Fatalf("got %d stamps, want %d", len(stamps), n)
			}
			base := date(2024, 3, 15, 0, 0)
			for k, s := range stamps {
				want := base.Add(time.Duration(k) * 30 * time.Minute)
				if !s.DateTime.Equal(want) {
					t.Fatalf("slot %d = %v, want %v", k, s.DateTime, want)
				}
			}
		})
	}
}

func TestExactScenario(t *testing.T) {
	sheet := sheetOf([]string{"2024-01-01", "14:30", "12.5"})

	stamps, stats := Exact(sheet, 0, 1, time.UTC)

	if len(stamps) != 1 {
		t.Fatalf("got %d stamps, want 1", len(stamps))
	}
	if want := date(2024, 1, 1, 14, 30); !stamps[0].DateTime.Equal(want) {
		t.Errorf("stamp = %v, want %v", stamps[0].DateTime, want)
	}
	if stats.Dropped != 0 {
		t.Errorf("dropped = %d, want 0", stats.Dropped)
	}
}

func TestExactVariants(t *testing.T) {
	tests := []struct {
		name    string
		fecha   string
		hora    string
		want    time.Time
		dropped bool
	}{
		{"day first slash", "01/02/2024", "08:00", date(2024, 2, 1, 8, 0), false},
		{"excel serial date", "45292", "23:30", date(2024, 1, 1, 23, 30), false},
		{"excel time fraction", "45292", "0.604166666666667", date(2024, 1, 1, 14, 30), false},
		{"seconds", "2024-01-01", "06:15:30", time.Date(2024, 1, 1, 6, 15, 30, 0, time.UTC), false},
		{"date with time noise", "2024-01-01 10:00:00", "05:00", date(2024, 1, 1, 5, 0), false},
		{"single digit hour", "2024-01-01", "9:30", date(2024, 1, 1, 9, 30), false},
		{"hour out of range", "2024-01-01", "25:00", time.Time{}, true},
		{"empty time", "2024-01-01", "", time.Time{}, true},
		{"garbage date", "mañana", "10:00", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stamps, stats := Exact(sheetOf([]string{tt.fecha, tt.hora, "1"}), 0, 1, time.UTC)
			if tt.dropped {
				if len(stamps) != 0 || stats.Dropped != 1 {
					t.Errorf("expected row to be dropped, got %v (stats %+v)", stamps, stats)
				}
				return
			}
			if len(stamps) != 1 {
				t.Fatalf("got %d stamps, want 1", len(stamps))
			}
			if !stamps[0].DateTime.Equal(tt.want) {
				t.Errorf("stamp = %v, want %v", stamps[0].DateTime, tt.want)
			}
		})
	}
}

func TestExactRoundTrip(t *testing.T) {
	inputs := [][2]string{
		{"2024-01-01", "00:00"},
		{"2024-01-01", "14:30"},
		{"2023-12-31", "23:59"},
		{"2024-02-29", "12:05"},
	}
	for _, in := range inputs {
		stamps, _ := Exact(sheetOf([]string{in[0], in[1]}), 0, 1, time.UTC)
		if len(stamps) != 1 {
			t.Fatalf("%v: got %d stamps", in, len(stamps))
		}
		dt := stamps[0].DateTime
		if got := [2]string{dt.Format("2006-01-02"), dt.Format("15:04")}; got != in {
			t.Errorf("round trip %v -> %v", in, got)
		}
	}
}

func TestParseDateErrorsWrapSkipRow(t *testing.T) {
	for _, s := range []string{"", "abc", "-5", "99999999"} {
		_, err := ParseDate(s, false, time.UTC)
		if !errors.Is(err, ErrSkipRow) {
			t.Errorf("ParseDate(%q) error = %v, want ErrSkipRow", s, err)
		}
	}
}

func TestParseDateDayFirstPreference(t *testing.T) {
	got, err := ParseDate("03/04/2024", true, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	if got.Month() != time.April || got.Day() != 3 {
		t.Errorf("day first: got %v", got)
	}

	got, err = ParseDate("03/04/2024", false, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	if got.Month() != time.March || got.Day() != 4 {
		t.Errorf("month first: got %v", got)
	}

	// Unambiguous day-first dates still parse when month-first is preferred.
	got, err = ParseDate("25/12/2024", false, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	if got.Month() != time.December || got.Day() != 25 {
		t.Errorf("fallback: got %v", got)
	}
}

func TestTimeOfDayText(t *testing.T) {
	tests := map[string]string{
		"14:30":             "14:30",
		" 07:05 ":           "07:05",
		"0":                 "00:00:00",
		"0.5":               "12:00:00",
		"0.604166666666667": "14:30:00",
		"0.999999999":       "24:00:00",
		"1.5":               "1.5",
		"texto":             "texto",
	}
	for in, want := range tests {
		if got := TimeOfDayText(in); got != want {
			t.Errorf("TimeOfDayText(%q) = %q, want %q", in, got, want)
		}
	}
}
