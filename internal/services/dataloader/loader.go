package dataloader

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"cmgvisor/internal/config"
	"cmgvisor/internal/models"
	"cmgvisor/internal/services/metrics"
	"cmgvisor/internal/services/normalize"
	"cmgvisor/internal/services/reconstruct"
	"cmgvisor/internal/services/storage"
	"cmgvisor/internal/services/workbook"
)

// Options names the sheets and columns the loader reads
type Options struct {
	SourceFile string

	PDOSheet  string
	COSSheet  string
	FlowSheet string

	DateColumn string
	TimeColumn string
	Measured   normalize.Matcher
	Forecast   normalize.Matcher
	Reserved   []string

	Location *time.Location
}

// OptionsFromConfig maps the application config onto loader options
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	loc, err := cfg.Location()
	if err != nil {
		return Options{}, err
	}
	return Options{
		SourceFile: cfg.SourceFile,
		PDOSheet:   cfg.Sheets.PDO,
		COSSheet:   cfg.Sheets.COS,
		FlowSheet:  cfg.Sheets.Flow,
		DateColumn: cfg.Columns.Date,
		TimeColumn: cfg.Columns.Time,
		Measured:   normalize.Matcher{Name: cfg.Columns.Measured.Exact, Contains: cfg.Columns.Measured.Contains},
		Forecast:   normalize.Matcher{Name: cfg.Columns.Forecast.Exact, Contains: cfg.Columns.Forecast.Contains},
		Reserved:   cfg.Columns.Reserved,
		Location:   loc,
	}, nil
}

// DataLoader reads the source workbook and turns it into a Dataset
type DataLoader struct {
	opts  Options
	store *storage.Storage
	now   func() time.Time
}

// New creates a new DataLoader
func New(store *storage.Storage, opts Options) *DataLoader {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &DataLoader{
		opts:  opts,
		store: store,
		now:   time.Now,
	}
}

// Options returns the loader options
func (dl *DataLoader) Options() Options {
	return dl.opts
}

// SourcePath returns the resolved path of the source workbook
func (dl *DataLoader) SourcePath() string {
	return dl.store.Path(dl.opts.SourceFile)
}

// LoadData reads every source of the workbook. A sheet with a schema
// problem is recorded on its source and the other sources still load; only
// an unreadable workbook is returned as an error.
func (dl *DataLoader) LoadData(generation uint64) (*models.Dataset, error) {
	start := time.Now()

	wb, err := dl.openWorkbook()
	if err != nil {
		metrics.ObserveLoad(metrics.ResultError, time.Since(start))
		return nil, err
	}
	defer wb.Close()

	ds := &models.Dataset{
		ID:         uuid.NewString(),
		Generation: generation,
		LoadedAt:   dl.now(),
		SourceFile: filepath.Base(dl.opts.SourceFile),
		Cost:       dl.loadCost(wb),
		Flow:       dl.loadFlow(wb),
	}

	result := metrics.ResultSuccess
	if len(ds.Errors()) > 0 {
		result = metrics.ResultPartial
	}
	metrics.ObserveLoad(result, time.Since(start))

	log.Printf("Loaded dataset %s (generation %d): PDO %d, COS %d, measured %d, forecast %d records",
		ds.ID, generation, ds.Cost.PDO.Len(), ds.Cost.COS.Len(), ds.Flow.Measured.Len(), ds.Flow.Forecast.Len())

	return ds, nil
}

func (dl *DataLoader) openWorkbook() (*workbook.Workbook, error) {
	data, err := dl.store.ReadFile(dl.opts.SourceFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read source workbook %s: %w", dl.opts.SourceFile, err)
	}
	wb, err := workbook.Open(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse source workbook %s: %w", dl.opts.SourceFile, err)
	}
	return wb, nil
}

func (dl *DataLoader) loadCost(wb *workbook.Workbook) models.CostData {
	var cd models.CostData
	var pdoErr, cosErr error

	cd.PDO, cd.PDOBarras, cd.PDOStatus, pdoErr = dl.loadCostSheet(wb, dl.opts.PDOSheet)
	cd.COS, cd.COSBarras, cd.COSStatus, cosErr = dl.loadCostSheet(wb, dl.opts.COSSheet)
	cd.Err = errors.Join(pdoErr, cosErr)

	return cd
}

// loadCostSheet reconstructs half-hour slots and melts the barra columns.
// Barras are derived from this sheet's header alone.
func (dl *DataLoader) loadCostSheet(wb *workbook.Workbook, name string) (*models.CostSeries, []string, models.SourceStatus, error) {
	status := models.SourceStatus{Sheet: name}

	sheet, err := wb.Sheet(name)
	if err != nil {
		return dl.failSheet(status, err)
	}

	dateCol, err := normalize.FindColumn(name, sheet.Header, normalize.Matcher{Name: dl.opts.DateColumn, IgnoreCase: true})
	if err != nil {
		return dl.failSheet(status, err)
	}

	var cols []normalize.Column
	for _, c := range normalize.CatalogColumns(sheet.Header, dl.opts.Reserved) {
		if c.Index != dateCol {
			cols = append(cols, c)
		}
	}

	stamps, stats := reconstruct.HalfHourly(sheet, dateCol, dl.opts.Location)
	series, droppedCells := normalize.Melt(sheet, stamps, cols)

	barras := make([]string, len(cols))
	for i, c := range cols {
		barras[i] = c.Name
	}

	status.RowsRead = stats.Rows
	status.RowsDropped = stats.Dropped
	status.Records = series.Len()
	dl.report(name, stats.Dropped, droppedCells, series.Len())

	return series, barras, status, nil
}

func (dl *DataLoader) failSheet(status models.SourceStatus, err error) (*models.CostSeries, []string, models.SourceStatus, error) {
	status.Error = err.Error()
	log.Printf("Warning: %v", err)
	metrics.IncSchemaError(status.Sheet)
	return nil, nil, status, err
}

// loadFlow reads the measured and forecast columns of the flow sheet with
// exact timestamps. Any missing or ambiguous column aborts this source.
func (dl *DataLoader) loadFlow(wb *workbook.Workbook) models.FlowData {
	name := dl.opts.FlowSheet
	fd := models.FlowData{Status: models.SourceStatus{Sheet: name}}

	fail := func(err error) models.FlowData {
		fd.Err = err
		fd.Status.Error = err.Error()
		log.Printf("Warning: %v", err)
		metrics.IncSchemaError(name)
		return fd
	}

	sheet, err := wb.Sheet(name)
	if err != nil {
		return fail(err)
	}

	var dateCol, timeCol, measuredCol, forecastCol int
	for _, f := range []struct {
		dst *int
		m   normalize.Matcher
	}{
		{&dateCol, normalize.Matcher{Name: dl.opts.DateColumn, IgnoreCase: true}},
		{&timeCol, normalize.Matcher{Name: dl.opts.TimeColumn, IgnoreCase: true}},
		{&measuredCol, dl.opts.Measured},
		{&forecastCol, dl.opts.Forecast},
	} {
		idx, err := normalize.FindColumn(name, sheet.Header, f.m)
		if err != nil {
			return fail(err)
		}
		*f.dst = idx
	}

	stamps, stats := reconstruct.Exact(sheet, dateCol, timeCol, dl.opts.Location)
	measured, droppedMeasured := normalize.Single(sheet, stamps, measuredCol)
	forecast, droppedForecast := normalize.Single(sheet, stamps, forecastCol)

	fd.Measured = measured
	fd.Forecast = forecast
	fd.Status.RowsRead = stats.Rows
	fd.Status.RowsDropped = stats.Dropped
	fd.Status.Records = measured.Len() + forecast.Len()
	dl.report(name, stats.Dropped, droppedMeasured+droppedForecast, fd.Status.Records)

	return fd
}

// report logs drop counts once per sheet and updates metrics
func (dl *DataLoader) report(sheet string, droppedRows, droppedCells, records int) {
	if droppedRows > 0 {
		log.Printf("Warning: %s: dropped %d row(s) with an unparseable date or time", sheet, droppedRows)
	}
	if droppedCells > 0 {
		log.Printf("Warning: %s: dropped %d non-numeric value(s)", sheet, droppedCells)
	}
	metrics.AddRowsDropped(sheet, "timestamp", droppedRows)
	metrics.AddRowsDropped(sheet, "value", droppedCells)
	metrics.SetRecordsLoaded(sheet, records)
}

// SourceInfo describes the source workbook without transforming it
func (dl *DataLoader) SourceInfo() (*models.SourceInfo, error) {
	path := dl.SourcePath()
	st, err := dl.store.Stat(dl.opts.SourceFile)
	if err != nil {
		return nil, err
	}

	info := &models.SourceInfo{
		Name:      filepath.Base(path),
		Path:      path,
		Size:      st.Size(),
		ModTime:   st.ModTime(),
		Encrypted: dl.store.IsEncrypted(),
	}

	if !dl.store.IsUnlocked() {
		return info, nil
	}
	wb, err := dl.openWorkbook()
	if err != nil {
		return info, err
	}
	defer wb.Close()
	info.Sheets = wb.SheetNames()

	return info, nil
}
