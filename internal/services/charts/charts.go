// Package charts builds the Plotly figures of the dashboard.
package charts

import (
	"time"

	"cmgvisor/internal/models"
)

// TimeLayout is how timestamps are sent to Plotly
const TimeLayout = "2006-01-02 15:04:05"

// Palette is cycled per selected barra
var Palette = []string{"#1f77b4", "#ff7f0e", "#2ca02c", "#9467bd", "#8c564b", "#e377c2"}

const (
	measuredColor = "#1f77b4"
	forecastColor = "#d62728"
	markerColor   = "gray"

	chartHeight = 430

	// LastMeasuredLabel annotates the last measured timestamp
	LastMeasuredLabel = "Última medida"
)

func baseLayout(yTitle string) models.ChartLayout {
	return models.ChartLayout{
		Height:     chartHeight,
		XAxis:      models.Axis{Title: "Fecha-Hora"},
		YAxis:      models.Axis{Title: yTitle},
		ShowLegend: true,
		Legend: &models.Legend{
			Orientation: "h",
			X:           0.5,
			XAnchor:     "center",
			Y:           -0.30,
		},
		Margin: &models.Margin{L: 40, R: 40, T: 10, B: 80},
	}
}

// CostChart draws one PDO (solid) and one COS (dashed) line per barra,
// sharing the barra's palette colour. Barras with no records in a series
// get no trace for it.
func CostChart(pdo, cos *models.CostSeries, barras []string) models.ChartResponse {
	resp := models.ChartResponse{
		Data:   []models.ChartData{},
		Layout: baseLayout("CMg (PEN/MWh)"),
	}

	for i, b := range barras {
		color := Palette[i%len(Palette)]
		if tr, ok := costTrace(pdo.ForBarra(b), b+" – PDO", color, "solid"); ok {
			resp.Data = append(resp.Data, tr)
		}
		if tr, ok := costTrace(cos.ForBarra(b), b+" – COS", color, "dash"); ok {
			resp.Data = append(resp.Data, tr)
		}
	}
	return resp
}

func costTrace(s *models.CostSeries, name, color, dash string) (models.ChartData, bool) {
	if s.Len() == 0 {
		return models.ChartData{}, false
	}
	x := make([]string, 0, s.Len())
	y := make([]float64, 0, s.Len())
	for _, r := range s.Records {
		x = append(x, r.DateTime.Format(TimeLayout))
		y = append(y, r.Valor)
	}
	return models.ChartData{
		Type: "scatter",
		Mode: "lines",
		Name: name,
		X:    x,
		Y:    y,
		Line: &models.Line{Color: color, Dash: dash},
	}, true
}

// FlowChart draws the measured and forecast flow. When lastMeasured is
// set, a dotted vertical line marks it.
func FlowChart(measured, forecast *models.FlowSeries, lastMeasured time.Time, hasLast bool) models.ChartResponse {
	resp := models.ChartResponse{
		Data: []models.ChartData{
			flowTrace(measured, "Medido", &models.Line{Color: measuredColor}),
			flowTrace(forecast, "Proyección", &models.Line{Color: forecastColor, Dash: "dash"}),
		},
		Layout: baseLayout("Caudal (m³/s)"),
	}

	if hasLast {
		x := lastMeasured.Format(TimeLayout)
		resp.Layout.Shapes = []models.Shape{{
			Type: "line",
			X0:   x,
			X1:   x,
			Y0:   0,
			Y1:   1,
			XRef: "x",
			YRef: "paper",
			Line: &models.Line{Color: markerColor, Dash: "dot", Width: 2},
		}}
		resp.Layout.Annotations = []models.Annotation{{
			X:         x,
			Y:         1.05,
			XRef:      "x",
			YRef:      "paper",
			Text:      LastMeasuredLabel,
			ShowArrow: false,
			Font:      &models.Font{Size: 11, Color: markerColor},
			Align:     "center",
		}}
	}
	return resp
}

func flowTrace(s *models.FlowSeries, name string, line *models.Line) models.ChartData {
	x := make([]string, 0, s.Len())
	for _, t := range s.Times() {
		x = append(x, t.Format(TimeLayout))
	}
	return models.ChartData{
		Type: "scatter",
		Mode: "lines",
		Name: name,
		X:    x,
		Y:    s.Values(),
		Line: line,
	}
}
