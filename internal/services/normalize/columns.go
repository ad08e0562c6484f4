package normalize

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingColumn indicates a required column could not be located
var ErrMissingColumn = errors.New("missing required column")

// ErrAmbiguousColumn indicates more than one column matched a required column
var ErrAmbiguousColumn = errors.New("ambiguous column match")

// SchemaError reports a sheet whose header does not provide a required column.
// It aborts the load of the source it belongs to.
type SchemaError struct {
	Sheet   string
	Column  string   // what was being looked for
	Matches []string // offending headers when the match was ambiguous
	Err     error
}

func (e *SchemaError) Error() string {
	if errors.Is(e.Err, ErrAmbiguousColumn) {
		return fmt.Sprintf("sheet %q: %v for %s: %s", e.Sheet, e.Err, e.Column, strings.Join(quoteAll(e.Matches), ", "))
	}
	return fmt.Sprintf("sheet %q: %v: %s", e.Sheet, e.Err, e.Column)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// Matcher describes how to locate a column in a header row
type Matcher struct {
	Name       string // exact header text, tried first
	Contains   string // substring fallback, case-sensitive; empty disables it
	IgnoreCase bool   // compare Name case-insensitively
}

func (m Matcher) describe() string {
	if m.Contains != "" && m.Contains != m.Name {
		return fmt.Sprintf("%q (or a header containing %q)", m.Name, m.Contains)
	}
	return fmt.Sprintf("%q", m.Name)
}

// FindColumn locates a column. An exact match on Name wins; otherwise headers
// containing Contains are considered. Zero matches is ErrMissingColumn and
// more than one is ErrAmbiguousColumn, in both phases.
func FindColumn(sheet string, header []string, m Matcher) (int, error) {
	exact := matchingColumns(header, func(h string) bool {
		if m.Name == "" {
			return false
		}
		if m.IgnoreCase {
			return strings.EqualFold(h, m.Name)
		}
		return h == m.Name
	})
	switch len(exact) {
	case 1:
		return exact[0], nil
	case 0:
	default:
		return -1, &SchemaError{Sheet: sheet, Column: m.describe(), Matches: headersAt(header, exact), Err: ErrAmbiguousColumn}
	}

	if m.Contains != "" {
		partial := matchingColumns(header, func(h string) bool {
			return strings.Contains(h, m.Contains)
		})
		switch len(partial) {
		case 1:
			return partial[0], nil
		case 0:
		default:
			return -1, &SchemaError{Sheet: sheet, Column: m.describe(), Matches: headersAt(header, partial), Err: ErrAmbiguousColumn}
		}
	}

	return -1, &SchemaError{Sheet: sheet, Column: m.describe(), Err: ErrMissingColumn}
}

func matchingColumns(header []string, match func(string) bool) []int {
	var idx []int
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h != "" && match(h) {
			idx = append(idx, i)
		}
	}
	return idx
}

func headersAt(header []string, idx []int) []string {
	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = header[j]
	}
	return out
}

func quoteAll(s []string) []string {
	out := make([]string, len(s))
	for i, v := range s {
		out[i] = fmt.Sprintf("%q", v)
	}
	return out
}

// Column is an entity column of a wide cost sheet
type Column struct {
	Name  string
	Index int
}

// CatalogColumns returns the entity columns of a wide sheet: every non-blank
// header that is not reserved (case-insensitive), in first-seen order.
// Repeated headers keep their first column.
func CatalogColumns(header []string, reserved []string) []Column {
	skip := make(map[string]bool, len(reserved))
	for _, r := range reserved {
		skip[strings.ToLower(strings.TrimSpace(r))] = true
	}

	seen := make(map[string]bool)
	var cols []Column
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" || skip[strings.ToLower(name)] || seen[name] {
			continue
		}
		seen[name] = true
		cols = append(cols, Column{Name: name, Index: i})
	}
	return cols
}

// Catalog returns the entity names of a wide sheet in column order
func Catalog(header []string, reserved []string) []string {
	cols := CatalogColumns(header, reserved)
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}
