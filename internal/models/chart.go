package models

// Line describes a Plotly trace line style
type Line struct {
	Color string `json:"color,omitempty"`
	Dash  string `json:"dash,omitempty"` // solid, dash, dot
	Width int    `json:"width,omitempty"`
}

// ChartData represents one Plotly trace
type ChartData struct {
	Type string      `json:"type"` // scatter
	X    interface{} `json:"x"`    // x-axis values
	Y    interface{} `json:"y"`    // y-axis values
	Name string      `json:"name"` // series name shown in the legend
	Mode string      `json:"mode,omitempty"`
	Line *Line       `json:"line,omitempty"`
}

// Shape is a Plotly layout shape (used for the last-measured marker)
type Shape struct {
	Type string      `json:"type"`
	X0   interface{} `json:"x0"`
	X1   interface{} `json:"x1"`
	Y0   float64     `json:"y0"`
	Y1   float64     `json:"y1"`
	XRef string      `json:"xref"`
	YRef string      `json:"yref"`
	Line *Line       `json:"line,omitempty"`
}

// Font is a Plotly font spec
type Font struct {
	Size  int    `json:"size,omitempty"`
	Color string `json:"color,omitempty"`
}

// Annotation is a Plotly text annotation
type Annotation struct {
	X         interface{} `json:"x"`
	Y         float64     `json:"y"`
	XRef      string      `json:"xref"`
	YRef      string      `json:"yref"`
	Text      string      `json:"text"`
	ShowArrow bool        `json:"showarrow"`
	Font      *Font       `json:"font,omitempty"`
	Align     string      `json:"align,omitempty"`
}

// Legend is a Plotly legend spec
type Legend struct {
	Orientation string  `json:"orientation,omitempty"`
	X           float64 `json:"x"`
	XAnchor     string  `json:"xanchor,omitempty"`
	Y           float64 `json:"y"`
}

// Margin is a Plotly layout margin
type Margin struct {
	L int `json:"l"`
	R int `json:"r"`
	T int `json:"t"`
	B int `json:"b"`
}

// Axis is a Plotly axis spec
type Axis struct {
	Title string `json:"title,omitempty"`
}

// ChartLayout defines Plotly layout options
type ChartLayout struct {
	Title       string       `json:"title,omitempty"`
	Height      int          `json:"height,omitempty"`
	XAxis       Axis         `json:"xaxis"`
	YAxis       Axis         `json:"yaxis"`
	ShowLegend  bool         `json:"showlegend"`
	Legend      *Legend      `json:"legend,omitempty"`
	Margin      *Margin      `json:"margin,omitempty"`
	Shapes      []Shape      `json:"shapes,omitempty"`
	Annotations []Annotation `json:"annotations,omitempty"`
}

// ChartResponse wraps chart data with layout options
type ChartResponse struct {
	Data   []ChartData `json:"data"`
	Layout ChartLayout `json:"layout"`
}
