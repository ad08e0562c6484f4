// Package selection cuts the windowed, per-barra view of a dataset that the
// dashboard charts and the export both draw from.
package selection

import (
	"time"

	"cmgvisor/internal/models"
	"cmgvisor/internal/services/window"
)

// Selection is a dataset restricted to a window and a set of barras
type Selection struct {
	Window window.TimeWindow
	Barras []string

	PDO      *models.CostSeries
	COS      *models.CostSeries
	Measured *models.FlowSeries
	Forecast *models.FlowSeries

	LastMeasured    time.Time
	HasLastMeasured bool
}

// Apply resolves the window [now-lookback, cutoff] where the cutoff is the
// latest COS or forecast timestamp, and filters every series to it. It
// returns window.ErrNoData when both candidates are empty.
func Apply(ds *models.Dataset, now time.Time, lookback time.Duration, barras []string) (*Selection, error) {
	_, cos := ds.CostSeriesOrEmpty()
	_, forecast := ds.FlowSeriesOrEmpty()

	tw, err := window.Resolve(now, lookback, cos, forecast)
	if err != nil {
		return nil, err
	}

	return Within(ds, tw, barras), nil
}

// Within filters every series of ds to an already resolved window
func Within(ds *models.Dataset, tw window.TimeWindow, barras []string) *Selection {
	pdo, cos := ds.CostSeriesOrEmpty()
	measured, forecast := ds.FlowSeriesOrEmpty()

	s := &Selection{
		Window:   tw,
		Barras:   barras,
		PDO:      pdo.FilterByBarras(barras).FilterByWindow(tw.Start, tw.End),
		COS:      cos.FilterByBarras(barras).FilterByWindow(tw.Start, tw.End),
		Measured: measured.FilterByWindow(tw.Start, tw.End),
		Forecast: forecast.FilterByWindow(tw.Start, tw.End),
	}
	s.LastMeasured, s.HasLastMeasured = s.Measured.MaxDateTime()
	return s
}

// Cutoff returns the right edge of the window for ds
func Cutoff(ds *models.Dataset) (time.Time, bool) {
	_, cos := ds.CostSeriesOrEmpty()
	_, forecast := ds.FlowSeriesOrEmpty()
	return window.Cutoff(cos, forecast)
}
