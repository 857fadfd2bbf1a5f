// Package source reads tabular input (spreadsheets and CSV files) as a stream
// of named rows. The first non-blank line of a file is its header; every later
// line becomes a Row addressed by header name.
package source

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUnsupportedFormat is returned by Open for unknown file extensions.
	ErrUnsupportedFormat = errors.New("unsupported source format")

	// ErrNoHeader is returned when a file has no non-blank line to use as header.
	ErrNoHeader = errors.New("source has no header row")
)

// ReadError reports a single malformed line. The reader can continue past it.
type ReadError struct {
	Line int
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// Header maps field names to cell positions. Names are matched exactly first,
// then case-insensitively.
type Header struct {
	names  []string
	exact  map[string]int
	folded map[string]int
}

// NewHeader builds a header from the cells of a header line.
func NewHeader(cells []string) *Header {
	h := &Header{
		names:  make([]string, len(cells)),
		exact:  make(map[string]int, len(cells)),
		folded: make(map[string]int, len(cells)),
	}
	for i, c := range cells {
		name := cleanHeader(c)
		h.names[i] = name
		if name == "" {
			continue
		}
		if _, dup := h.exact[name]; !dup {
			h.exact[name] = i
		}
		key := strings.ToLower(name)
		if _, dup := h.folded[key]; !dup {
			h.folded[key] = i
		}
	}
	return h
}

// Names returns the header cells in file order.
func (h *Header) Names() []string {
	out := make([]string, len(h.names))
	copy(out, h.names)
	return out
}

// Index returns the cell position of a field.
func (h *Header) Index(field string) (int, bool) {
	if i, ok := h.exact[field]; ok {
		return i, true
	}
	i, ok := h.folded[strings.ToLower(strings.TrimSpace(field))]
	return i, ok
}

// Row is one data line of the source.
type Row struct {
	Ordinal int // 1-based position among data rows
	Line    int // 1-based line or sheet row in the file

	header *Header
	cells  []string
}

// NewRow builds a row over a header. Used by readers and tests.
func NewRow(ordinal, line int, header *Header, cells []string) Row {
	return Row{Ordinal: ordinal, Line: line, header: header, cells: cells}
}

// RowFromMap builds a standalone row from field values. Field order is sorted
// so rows built from the same map are identical.
func RowFromMap(ordinal int, values map[string]string) Row {
	names := make([]string, 0, len(values))
	for k := range values {
		names = append(names, k)
	}
	sort.Strings(names)
	cells := make([]string, len(names))
	for i, n := range names {
		cells[i] = values[n]
	}
	return NewRow(ordinal, ordinal+1, NewHeader(names), cells)
}

// Get returns the raw cell for a field. The second result is false when the
// header has no such field or the line is shorter than the header.
func (r Row) Get(field string) (string, bool) {
	if r.header == nil {
		return "", false
	}
	i, ok := r.header.Index(field)
	if !ok || i >= len(r.cells) {
		return "", false
	}
	return r.cells[i], true
}

// Empty reports whether every cell is blank.
func (r Row) Empty() bool {
	for _, c := range r.cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Map returns the row as field name to cell value.
func (r Row) Map() map[string]string {
	out := make(map[string]string, len(r.cells))
	if r.header == nil {
		return out
	}
	for i, name := range r.header.names {
		if name == "" || i >= len(r.cells) {
			continue
		}
		out[name] = r.cells[i]
	}
	return out
}

// cleanHeader strips a UTF-8 BOM and surrounding whitespace from a header cell.
func cleanHeader(s string) string {
	return strings.TrimSpace(strings.TrimPrefix(s, "\ufeff"))
}
