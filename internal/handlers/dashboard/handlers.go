package dashboard

import (
	"errors"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"cmgvisor/internal/config"
	httpx "cmgvisor/internal/http"
	"cmgvisor/internal/models"
	"cmgvisor/internal/services/cache"
	"cmgvisor/internal/services/charts"
	"cmgvisor/internal/services/dataloader"
	"cmgvisor/internal/services/export"
	"cmgvisor/internal/services/metrics"
	"cmgvisor/internal/services/selection"
	"cmgvisor/internal/services/window"
	"cmgvisor/internal/templates"
	"cmgvisor/internal/version"
)

var (
	loader   *dataloader.DataLoader
	datasets *cache.Cache[*models.Dataset]
	renderer *templates.Renderer
	cfg      *config.Config
	now      = time.Now
)

const noDataMessage = "Ni los costos COS ni la proyección de caudal tienen registros, no hay una fecha final para la ventana."

// Initialize sets up the dashboard package with required dependencies
func Initialize(l *dataloader.DataLoader, c *cache.Cache[*models.Dataset], r *templates.Renderer, conf *config.Config) {
	loader = l
	datasets = c
	renderer = r
	cfg = conf
}

// SetClock replaces the wall clock used to place the window start
func SetClock(fn func() time.Time) {
	if fn == nil {
		fn = time.Now
	}
	now = fn
}

// RegisterRoutes registers all dashboard routes
func RegisterRoutes(r chi.Router) {
	r.Get("/dashboard", handleDashboard)
	r.Get("/dashboard/charts/data/{chartType}", handleChartData)
	r.Post("/dashboard/refresh", handleRefresh)
	r.Get("/dashboard/export", handleExport)
}

// view is one request's controls plus its slice of the current dataset.
// sel is nil when no cutoff exists.
type view struct {
	dataset  *models.Dataset
	controls httpx.Controls
	sel      *selection.Selection
}

func lookback() window.Lookback {
	return window.Lookback{
		Default: cfg.Lookback.Default,
		Min:     cfg.Lookback.Min,
		Max:     cfg.Lookback.Max,
	}
}

func buildView(r *http.Request) (*view, error) {
	ds, err := datasets.Get(loader.LoadData)
	if err != nil {
		return nil, err
	}

	lb := lookback()
	v := &view{
		dataset:  ds,
		controls: httpx.ParseControls(r, lb, ds.Barras(), cfg.DefaultBarra),
	}

	if tw, ok := httpx.ParsePinnedWindow(r.URL.Query(), location()); ok {
		v.sel = selection.Within(ds, tw, v.controls.Barras)
		return v, nil
	}

	v.sel, err = selection.Apply(ds, now().Truncate(time.Second), lb.Duration(v.controls.Hours), v.controls.Barras)
	if err != nil && !errors.Is(err, window.ErrNoData) {
		return nil, err
	}
	return v, nil
}

func location() *time.Location {
	loc, err := cfg.Location()
	if err != nil {
		return time.Local
	}
	return loc
}

// recordCounts is the number of windowed records per series
type recordCounts struct {
	PDO, COS, Measured, Forecast int
}

func handleDashboard(w http.ResponseWriter, r *http.Request) {
	v, err := buildView(r)
	if err != nil {
		httpx.ErrorResponse(w, "Error loading data: "+err.Error(), http.StatusInternalServerError)
		return
	}

	var sourceErrors []string
	for _, e := range v.dataset.Errors() {
		sourceErrors = append(sourceErrors, e.Error())
	}

	query := v.controls.Query()
	if v.sel != nil {
		query = httpx.PinWindow(query, v.sel.Window)
	}
	pinned := query.Encode()
	pageData := map[string]interface{}{
		"Title":         "Dashboard",
		"ActiveTab":     "dashboard",
		"Dataset":       v.dataset,
		"Version":       version.Get().Version,
		"Controls":      v.controls,
		"Catalog":       v.dataset.Barras(),
		"Lookback":      lookback(),
		"SourceErrors":  sourceErrors,
		"HasData":       v.sel != nil,
		"NoDataMessage": noDataMessage,
		"CMGChartURL":   template.URL("/dashboard/charts/data/cmg?" + pinned),
		"FlowChartURL":  template.URL("/dashboard/charts/data/caudal?" + pinned),
		"ExportURL":     template.URL("/dashboard/export?" + pinned),
	}
	if v.sel != nil {
		pageData["Window"] = v.sel.Window
		pageData["LastMeasured"] = v.sel.LastMeasured
		pageData["HasLastMeasured"] = v.sel.HasLastMeasured
		pageData["WindowEmpty"] = v.sel.Window.Empty()
		pageData["Counts"] = recordCounts{
			PDO:      v.sel.PDO.Len(),
			COS:      v.sel.COS.Len(),
			Measured: v.sel.Measured.Len(),
			Forecast: v.sel.Forecast.Len(),
		}
	}

	httpx.RenderTemplate(w, renderer, "base", pageData)
}

func handleChartData(w http.ResponseWriter, r *http.Request) {
	chartType := chi.URLParam(r, "chartType")
	if chartType != "cmg" && chartType != "caudal" {
		httpx.JSONError(w, "Unknown chart type", http.StatusBadRequest)
		return
	}

	v, err := buildView(r)
	if err != nil {
		httpx.JSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if v.sel == nil {
		httpx.JSONError(w, window.ErrNoData.Error(), http.StatusNotFound)
		return
	}

	var chart models.ChartResponse
	switch chartType {
	case "cmg":
		chart = charts.CostChart(v.sel.PDO, v.sel.COS, v.controls.Barras)
	case "caudal":
		chart = charts.FlowChart(v.sel.Measured, v.sel.Forecast, v.sel.LastMeasured, v.sel.HasLastMeasured)
	}
	httpx.WriteJSON(w, http.StatusOK, chart)
}

func handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httpx.ErrorResponse(w, "Invalid form: "+err.Error(), http.StatusBadRequest)
		return
	}

	datasets.Invalidate()
	ds, err := datasets.Get(loader.LoadData)
	if err != nil {
		httpx.ErrorResponse(w, "Error loading data: "+err.Error(), http.StatusInternalServerError)
		return
	}
	log.Printf("Reloaded %s (load %s, generation %d)", ds.SourceFile, ds.ID, ds.Generation)

	controls := httpx.ControlsFromValues(r.Form, lookback(), ds.Barras(), cfg.DefaultBarra)
	http.Redirect(w, r, "/dashboard?"+controls.Query().Encode(), http.StatusSeeOther)
}

func handleExport(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	v, err := buildView(r)
	if err != nil {
		metrics.ObserveExport(metrics.ResultError, time.Since(start))
		httpx.ErrorResponse(w, "Error loading data: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if v.sel == nil {
		metrics.ObserveExport(metrics.ResultNoData, time.Since(start))
		httpx.ErrorResponse(w, "Nothing to export: "+window.ErrNoData.Error(), http.StatusConflict)
		return
	}

	body, err := export.Assemble(export.WindowedSheets(v.sel.PDO, v.sel.COS, v.sel.Measured, v.sel.Forecast))
	if err != nil {
		metrics.ObserveExport(metrics.ResultError, time.Since(start))
		httpx.ErrorResponse(w, "Error building export: "+err.Error(), http.StatusInternalServerError)
		return
	}
	metrics.ObserveExport(metrics.ResultSuccess, time.Since(start))

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName+`"`)
	w.Write(body)
}
