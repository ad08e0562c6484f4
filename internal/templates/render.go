// Package templates loads and renders the dashboard's html/template files.
package templates

import (
	"bytes"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// templateDirs are the subdirectories read by the renderer, in parse order
var templateDirs = []string{"layouts", "pages", "partials"}

var (
	callRe = regexp.MustCompile(`\{\{-?\s*template\s+"([^"]+)"`)
	lineRe = regexp.MustCompile(`:(\d+):`)
)

// Renderer executes named templates parsed from a template directory. With
// debug set the directory is re-read before every Render.
type Renderer struct {
	dir   string
	debug bool

	mu  sync.RWMutex
	set *template.Template
}

// New parses every template under dir. It fails on parse errors and on
// {{template}} calls that name an undefined template.
func New(dir string, debug bool) (*Renderer, error) {
	r := &Renderer{dir: dir, debug: debug}
	if err := r.reload(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Renderer) reload() error {
	set, err := parseDir(r.dir)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.set = set
	r.mu.Unlock()
	return nil
}

// Render executes the named template into w. Output is buffered so a failing
// template answers 500 instead of a truncated page.
func (r *Renderer) Render(w http.ResponseWriter, name string, data interface{}) error {
	if r.debug {
		if err := r.reload(); err != nil {
			log.Printf("Warning: keeping previous templates: %v", err)
		}
	}

	r.mu.RLock()
	set := r.set
	r.mu.RUnlock()

	var buf bytes.Buffer
	if err := set.ExecuteTemplate(&buf, name, data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return err
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err := buf.WriteTo(w)
	return err
}

type source struct {
	path string
	text string
}

func readSources(dir string) ([]source, error) {
	var sources []source
	for _, sub := range templateDirs {
		paths, err := filepath.Glob(filepath.Join(dir, sub, "*.html"))
		if err != nil {
			return nil, err
		}
		for _, p := range paths {
			b, err := os.ReadFile(p)
			if err != nil {
				return nil, fmt.Errorf("reading template %s: %w", p, err)
			}
			sources = append(sources, source{path: p, text: string(b)})
		}
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no template files found in %s", dir)
	}
	return sources, nil
}

func parseDir(dir string) (*template.Template, error) {
	sources, err := readSources(dir)
	if err != nil {
		return nil, err
	}

	set := template.New("").Funcs(funcs())
	var problems []string
	for _, src := range sources {
		if _, err := set.New(filepath.Base(src.path)).Parse(src.text); err != nil {
			problems = append(problems, parseProblem(src, err))
		}
	}
	if len(problems) == 0 {
		problems = undefinedCalls(set, sources)
	}

	if len(problems) > 0 {
		for _, p := range problems {
			log.Printf("Template error: %s", p)
		}
		return nil, fmt.Errorf("loading templates from %s: %d problem(s), first: %s", dir, len(problems), problems[0])
	}

	log.Printf("Templates loaded: %d files from %s", len(sources), dir)
	return set, nil
}

// parseProblem prefixes a parse error with the offending source line
func parseProblem(src source, err error) string {
	m := lineRe.FindStringSubmatch(err.Error())
	if m == nil {
		return fmt.Sprintf("%s: %v", src.path, err)
	}
	n, _ := strconv.Atoi(m[1])
	lines := strings.Split(src.text, "\n")
	if n < 1 || n > len(lines) {
		return fmt.Sprintf("%s: %v", src.path, err)
	}
	return fmt.Sprintf("%s:%d: %v | %s", src.path, n, err, strings.TrimSpace(lines[n-1]))
}

// undefinedCalls lists every {{template "x"}} whose target is not defined.
// html/template only reports these at execution time.
func undefinedCalls(set *template.Template, sources []source) []string {
	var problems []string
	for _, src := range sources {
		for i, line := range strings.Split(src.text, "\n") {
			for _, m := range callRe.FindAllStringSubmatch(line, -1) {
				if set.Lookup(m[1]) == nil {
					problems = append(problems, fmt.Sprintf("%s:%d: undefined template %q", src.path, i+1, m[1]))
				}
			}
		}
	}
	return problems
}

func funcs() template.FuncMap {
	return template.FuncMap{
		"formatNumber":   formatNumber,
		"formatDateTime": formatDateTime,
		"inList":         inList,
		"join":           strings.Join,
	}
}

// formatNumber renders an int or float with the given decimals and a
// thousands separator
func formatNumber(v interface{}, decimals int) string {
	var f float64
	switch n := v.(type) {
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case float64:
		f = n
	default:
		return fmt.Sprint(v)
	}

	sign := ""
	if f < 0 {
		sign = "-"
		f = -f
	}
	whole, frac, _ := strings.Cut(strconv.FormatFloat(f, 'f', decimals, 64), ".")

	var b strings.Builder
	b.WriteString(sign)
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if frac != "" {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}

func inList(s string, list []string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
