package models

import (
	"time"
)

// CostRecord is one marginal cost reading for a single barra
type CostRecord struct {
	DateTime time.Time `json:"datetime"`
	Barra    string    `json:"barra"`
	Valor    float64   `json:"valor"`
}

// FlowRecord is one river flow reading (measured or forecast)
type FlowRecord struct {
	DateTime time.Time `json:"datetime"`
	Valor    float64   `json:"valor"`
}

// CostSeries wraps long-form cost records with filtering helpers.
// Record order is the order produced by the normalizer and is never changed
// by the helpers below.
type CostSeries struct {
	Records []CostRecord
}

// NewCostSeries creates a new CostSeries from a slice
func NewCostSeries(records []CostRecord) *CostSeries {
	return &CostSeries{Records: records}
}

// Len returns the number of records
func (cs *CostSeries) Len() int {
	if cs == nil {
		return 0
	}
	return len(cs.Records)
}

// FilterByWindow returns records with start <= DateTime <= end.
// A start after end yields an empty series.
func (cs *CostSeries) FilterByWindow(start, end time.Time) *CostSeries {
	result := &CostSeries{}
	if cs.Len() == 0 || start.After(end) {
		return result
	}
	for _, r := range cs.Records {
		if !r.DateTime.Before(start) && !r.DateTime.After(end) {
			result.Records = append(result.Records, r)
		}
	}
	return result
}

// FilterByBarras returns records whose barra is in names
func (cs *CostSeries) FilterByBarras(names []string) *CostSeries {
	result := &CostSeries{}
	if cs.Len() == 0 || len(names) == 0 {
		return result
	}
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	for _, r := range cs.Records {
		if wanted[r.Barra] {
			result.Records = append(result.Records, r)
		}
	}
	return result
}

// ForBarra returns the records of a single barra
func (cs *CostSeries) ForBarra(name string) *CostSeries {
	return cs.FilterByBarras([]string{name})
}

// MaxDateTime returns the latest timestamp and false when the series is empty
func (cs *CostSeries) MaxDateTime() (time.Time, bool) {
	if cs.Len() == 0 {
		return time.Time{}, false
	}
	maxDT := cs.Records[0].DateTime
	for _, r := range cs.Records[1:] {
		if r.DateTime.After(maxDT) {
			maxDT = r.DateTime
		}
	}
	return maxDT, true
}

// Columns returns the export header for cost tables
func (cs *CostSeries) Columns() []string {
	return []string{"datetime", "barra", "valor"}
}

// Rows returns the records as export rows, in record order
func (cs *CostSeries) Rows() [][]interface{} {
	rows := make([][]interface{}, 0, cs.Len())
	if cs == nil {
		return rows
	}
	for _, r := range cs.Records {
		rows = append(rows, []interface{}{r.DateTime, r.Barra, r.Valor})
	}
	return rows
}

// FlowSeries wraps flow records with filtering helpers
type FlowSeries struct {
	Records []FlowRecord
}

// NewFlowSeries creates a new FlowSeries from a slice
func NewFlowSeries(records []FlowRecord) *FlowSeries {
	return &FlowSeries{Records: records}
}

// Len returns the number of records
func (fs *FlowSeries) Len() int {
	if fs == nil {
		return 0
	}
	return len(fs.Records)
}

// FilterByWindow returns records with start <= DateTime <= end.
// A start after end yields an empty series.
func (fs *FlowSeries) FilterByWindow(start, end time.Time) *FlowSeries {
	result := &FlowSeries{}
	if fs.Len() == 0 || start.After(end) {
		return result
	}
	for _, r := range fs.Records {
		if !r.DateTime.Before(start) && !r.DateTime.After(end) {
			result.Records = append(result.Records, r)
		}
	}
	return result
}

// MaxDateTime returns the latest timestamp and false when the series is empty
func (fs *FlowSeries) MaxDateTime() (time.Time, bool) {
	if fs.Len() == 0 {
		return time.Time{}, false
	}
	maxDT := fs.Records[0].DateTime
	for _, r := range fs.Records[1:] {
		if r.DateTime.After(maxDT) {
			maxDT = r.DateTime
		}
	}
	return maxDT, true
}

// Columns returns the export header for flow tables
func (fs *FlowSeries) Columns() []string {
	return []string{"datetime", "valor"}
}

// Rows returns the records as export rows, in record order
func (fs *FlowSeries) Rows() [][]interface{} {
	rows := make([][]interface{}, 0, fs.Len())
	if fs == nil {
		return rows
	}
	for _, r := range fs.Records {
		rows = append(rows, []interface{}{r.DateTime, r.Valor})
	}
	return rows
}

// Times returns the timestamps of the series, for chart x values
func (fs *FlowSeries) Times() []time.Time {
	out := make([]time.Time, 0, fs.Len())
	if fs == nil {
		return out
	}
	for _, r := range fs.Records {
		out = append(out, r.DateTime)
	}
	return out
}

// Values returns the values of the series, for chart y values
func (fs *FlowSeries) Values() []float64 {
	out := make([]float64, 0, fs.Len())
	if fs == nil {
		return out
	}
	for _, r := range fs.Records {
		out = append(out, r.Valor)
	}
	return out
}
