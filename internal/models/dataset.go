package models

import "time"

// SourceStatus describes how one sheet fared during a load
type SourceStatus struct {
	Sheet       string `json:"sheet"`
	RowsRead    int    `json:"rows_read"`
	RowsDropped int    `json:"rows_dropped"`
	Records     int    `json:"records"`
	Error       string `json:"error,omitempty"`
}

// OK reports whether the sheet loaded without a schema problem
func (s SourceStatus) OK() bool {
	return s.Error == ""
}

// CostData is the loaded marginal cost source (PDO + COS sheets)
type CostData struct {
	PDO       *CostSeries  `json:"-"`
	COS       *CostSeries  `json:"-"`
	PDOBarras []string     `json:"pdo_barras"`
	COSBarras []string     `json:"cos_barras"`
	PDOStatus SourceStatus `json:"pdo_status"`
	COSStatus SourceStatus `json:"cos_status"`
	Err       error        `json:"-"`
}

// FlowData is the loaded river flow source (measured + forecast)
type FlowData struct {
	Measured *FlowSeries  `json:"-"`
	Forecast *FlowSeries  `json:"-"`
	Status   SourceStatus `json:"status"`
	Err      error        `json:"-"`
}

// Dataset is one complete, immutable load of the source workbook.
// A Dataset is only ever published after every source has been processed.
type Dataset struct {
	ID         string    `json:"id"`
	Generation uint64    `json:"generation"`
	LoadedAt   time.Time `json:"loaded_at"`
	SourceFile string    `json:"source_file"`
	Cost       CostData  `json:"cost"`
	Flow       FlowData  `json:"flow"`
}

// Barras returns the entity catalog offered to the user: PDO barras in
// column order followed by barras that only appear in COS.
func (d *Dataset) Barras() []string {
	seen := make(map[string]bool)
	var names []string
	for _, group := range [][]string{d.Cost.PDOBarras, d.Cost.COSBarras} {
		for _, b := range group {
			if !seen[b] {
				seen[b] = true
				names = append(names, b)
			}
		}
	}
	return names
}

// Errors returns the schema errors of every source that failed to load
func (d *Dataset) Errors() []error {
	var errs []error
	if d.Cost.Err != nil {
		errs = append(errs, d.Cost.Err)
	}
	if d.Flow.Err != nil {
		errs = append(errs, d.Flow.Err)
	}
	return errs
}

// CostSeriesOrEmpty returns the PDO and COS series, never nil
func (d *Dataset) CostSeriesOrEmpty() (pdo, cos *CostSeries) {
	pdo, cos = d.Cost.PDO, d.Cost.COS
	if pdo == nil {
		pdo = &CostSeries{}
	}
	if cos == nil {
		cos = &CostSeries{}
	}
	return pdo, cos
}

// FlowSeriesOrEmpty returns the measured and forecast series, never nil
func (d *Dataset) FlowSeriesOrEmpty() (measured, forecast *FlowSeries) {
	measured, forecast = d.Flow.Measured, d.Flow.Forecast
	if measured == nil {
		measured = &FlowSeries{}
	}
	if forecast == nil {
		forecast = &FlowSeries{}
	}
	return measured, forecast
}

// SourceInfo describes the source workbook on disk
type SourceInfo struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	ModTime   time.Time `json:"mod_time"`
	Encrypted bool      `json:"encrypted"`
	Sheets    []string  `json:"sheets,omitempty"`
}
