package http

import (
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cmgvisor/internal/services/window"
	"cmgvisor/internal/templates"
)

// Controls are the dashboard inputs carried in the query string
type Controls struct {
	Hours  int
	Barras []string
}

// Query encodes the controls back into a query string
func (c Controls) Query() url.Values {
	q := url.Values{}
	q.Set("hours", strconv.Itoa(c.Hours))
	for _, b := range c.Barras {
		q.Add("barra", b)
	}
	return q
}

// Selected reports whether barra is part of the selection
func (c Controls) Selected(barra string) bool {
	for _, b := range c.Barras {
		if b == barra {
			return true
		}
	}
	return false
}

// RenderTemplate renders a full page template with data
func RenderTemplate(w http.ResponseWriter, renderer *templates.Renderer, templateName string, data map[string]interface{}) {
	if renderer != nil {
		renderer.Render(w, templateName, data)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte("<html><body><h1>" + templateName + "</h1><p>Templates not loaded. Check configuration.</p></body></html>"))
}

// ErrorResponse sends a plain-text error response
func ErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	log.Printf("Error: %s (status %d)", message, statusCode)
	http.Error(w, message, statusCode)
}

// WriteJSON encodes v with the given status
func WriteJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

// JSONError sends {"error": message} with the given status
func JSONError(w http.ResponseWriter, message string, statusCode int) {
	if statusCode >= http.StatusInternalServerError {
		log.Printf("Error: %s (status %d)", message, statusCode)
	}
	WriteJSON(w, statusCode, map[string]string{"error": message})
}

// ParseLookback reads the hours control. Unparseable input falls back to
// the default; out-of-range values are clamped.
func ParseLookback(raw string, lb window.Lookback) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return lb.Default
	}
	h, err := strconv.Atoi(raw)
	if err != nil {
		return lb.Default
	}
	return lb.Clamp(h)
}

// ParseBarras keeps the requested barras that exist in catalog, in request
// order and without duplicates. An empty result falls back to preferred if
// it is in the catalog, else to the first catalog entry.
func ParseBarras(requested []string, catalog []string, preferred string) []string {
	known := make(map[string]bool, len(catalog))
	for _, b := range catalog {
		known[b] = true
	}

	var out []string
	seen := make(map[string]bool)
	for _, b := range requested {
		b = strings.TrimSpace(b)
		if known[b] && !seen[b] {
			seen[b] = true
			out = append(out, b)
		}
	}
	if len(out) > 0 {
		return out
	}

	if known[preferred] {
		return []string{preferred}
	}
	if len(catalog) > 0 {
		return []string{catalog[0]}
	}
	return nil
}

// ParseControls reads hours and barra from the request query
func ParseControls(r *http.Request, lb window.Lookback, catalog []string, preferred string) Controls {
	return ControlsFromValues(r.URL.Query(), lb, catalog, preferred)
}

// ControlsFromValues reads hours and barra from already parsed values,
// such as a submitted form
func ControlsFromValues(q url.Values, lb window.Lookback, catalog []string, preferred string) Controls {
	return Controls{
		Hours:  ParseLookback(q.Get("hours"), lb),
		Barras: ParseBarras(q["barra"], catalog, preferred),
	}
}

// PinWindow adds the bounds of tw to q as unix seconds, so links built from
// a rendered page select the same window the page displayed
func PinWindow(q url.Values, tw window.TimeWindow) url.Values {
	q.Set("from", strconv.FormatInt(tw.Start.Unix(), 10))
	q.Set("to", strconv.FormatInt(tw.End.Unix(), 10))
	return q
}

// ParsePinnedWindow reads the from/to bounds written by PinWindow. It
// reports false unless both are present and valid.
func ParsePinnedWindow(q url.Values, loc *time.Location) (window.TimeWindow, bool) {
	from, err := strconv.ParseInt(q.Get("from"), 10, 64)
	if err != nil {
		return window.TimeWindow{}, false
	}
	to, err := strconv.ParseInt(q.Get("to"), 10, 64)
	if err != nil {
		return window.TimeWindow{}, false
	}
	return window.TimeWindow{Start: time.Unix(from, 0).In(loc), End: time.Unix(to, 0).In(loc)}, true
}
