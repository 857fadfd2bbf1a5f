package source

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Reader streams the rows of one source file.
type Reader interface {
	// Header returns the header line.
	Header() []string
	// Next returns the next data row, or io.EOF after the last one.
	// A *ReadError describes one bad line; reading may continue after it.
	Next() (Row, error)
	Close() error
}

// Options tune how a file is read.
type Options struct {
	Sheet     string // xlsx worksheet; empty means the first sheet
	Encoding  string // csv encoding: utf-8, latin1, windows-1252
	Delimiter rune   // csv separator; zero means ','
}

// Open picks a reader by file extension.
func Open(path string, opts Options) (Reader, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return OpenXLSX(path, opts.Sheet)
	case ".csv", ".txt", ".tsv":
		if ext == ".tsv" && opts.Delimiter == 0 {
			opts.Delimiter = '\t'
		}
		return OpenCSV(path, opts)
	default:
		return nil, fmt.Errorf("open %s: %w %q", path, ErrUnsupportedFormat, ext)
	}
}

// lineSource yields raw lines; readers over files and memory share it.
type lineSource interface {
	next() (cells []string, line int, err error)
	close() error
}

// lineReader turns raw lines into Rows. Blank lines before the header are
// skipped; blank lines after it are returned as empty rows.
type lineReader struct {
	src     lineSource
	header  *Header
	ordinal int
}

func newLineReader(src lineSource) (*lineReader, error) {
	r := &lineReader{src: src}
	for {
		cells, _, err := src.next()
		if err == io.EOF {
			src.close()
			return nil, ErrNoHeader
		}
		if err != nil {
			src.close()
			return nil, err
		}
		if !blank(cells) {
			r.header = NewHeader(cells)
			return r, nil
		}
	}
}

func (r *lineReader) Header() []string {
	return r.header.Names()
}

func (r *lineReader) Next() (Row, error) {
	cells, line, err := r.src.next()
	if err != nil {
		if rerr, ok := err.(*ReadError); ok {
			r.ordinal++
			return Row{Ordinal: r.ordinal, Line: rerr.Line, header: r.header}, err
		}
		return Row{}, err
	}
	r.ordinal++
	return NewRow(r.ordinal, line, r.header, cells), nil
}

func (r *lineReader) Close() error {
	return r.src.close()
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// memorySource serves records held in memory.
type memorySource struct {
	records [][]string
	pos     int
}

func (m *memorySource) next() ([]string, int, error) {
	if m.pos >= len(m.records) {
		return nil, 0, io.EOF
	}
	m.pos++
	return m.records[m.pos-1], m.pos, nil
}

func (m *memorySource) close() error { return nil }

// FromRecords reads records held in memory; the first non-blank record is the header.
func FromRecords(records [][]string) (Reader, error) {
	lr, err := newLineReader(&memorySource{records: records})
	if err != nil {
		return nil, err
	}
	return lr, nil
}
