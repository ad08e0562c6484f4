// Package window computes the display window for the dashboard.
package window

import (
	"errors"
	"time"
)

// ErrNoData is returned when no candidate series has any record, so no
// cutoff exists and no window may be drawn.
var ErrNoData = errors.New("no data available")

// Timestamped is any series that can report its latest timestamp
type Timestamped interface {
	MaxDateTime() (time.Time, bool)
}

// TimeWindow is an inclusive [Start, End] range
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Empty reports whether no instant can fall inside the window
func (w TimeWindow) Empty() bool {
	return w.Start.After(w.End)
}

// Cutoff returns the maximum timestamp across all non-empty series. The
// second result is false when every series is empty; callers must decide
// what to do then instead of assuming a default.
func Cutoff(series ...Timestamped) (time.Time, bool) {
	var cutoff time.Time
	found := false
	for _, s := range series {
		if s == nil {
			continue
		}
		t, ok := s.MaxDateTime()
		if !ok {
			continue
		}
		if !found || t.After(cutoff) {
			cutoff = t
			found = true
		}
	}
	return cutoff, found
}

// Resolve builds the window [now - lookback, cutoff]. It returns ErrNoData
// when the cutoff is undefined.
func Resolve(now time.Time, lookback time.Duration, series ...Timestamped) (TimeWindow, error) {
	end, ok := Cutoff(series...)
	if !ok {
		return TimeWindow{}, ErrNoData
	}
	return TimeWindow{Start: now.Add(-lookback), End: end}, nil
}

// Lookback bounds a requested look-back in whole hours
type Lookback struct {
	Default int
	Min     int
	Max     int
}

// Clamp returns hours limited to [Min, Max]
func (l Lookback) Clamp(hours int) int {
	if hours < l.Min {
		return l.Min
	}
	if hours > l.Max {
		return l.Max
	}
	return hours
}

// Duration converts clamped hours to a time.Duration
func (l Lookback) Duration(hours int) time.Duration {
	return time.Duration(l.Clamp(hours)) * time.Hour
}
