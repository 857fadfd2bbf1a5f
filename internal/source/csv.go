package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// csvSource reads lines from a delimited text file.
type csvSource struct {
	file *os.File
	r    *csv.Reader
}

// OpenCSV opens a delimited text file. Input is decoded from opts.Encoding to
// UTF-8; a leading byte order mark is dropped and invalid UTF-8 is replaced
// with U+FFFD instead of failing the read.
func OpenCSV(path string, opts Options) (Reader, error) {
	dec, err := decoderFor(opts.Encoding)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	lr, err := newLineReader(newCSVSource(f, dec, opts.Delimiter))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return lr, nil
}

func newCSVSource(f *os.File, dec transform.Transformer, delim rune) *csvSource {
	r := csv.NewReader(transform.NewReader(f, dec))
	if delim != 0 {
		r.Comma = delim
	}
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return &csvSource{file: f, r: r}
}

func (s *csvSource) next() ([]string, int, error) {
	record, err := s.r.Read()
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return nil, perr.StartLine, &ReadError{Line: perr.StartLine, Err: perr.Err}
		}
		return nil, 0, err
	}
	line, _ := s.r.FieldPos(0)
	return record, line, nil
}

func (s *csvSource) close() error {
	return s.file.Close()
}

// decoderFor returns a transformer producing UTF-8 from the named encoding.
func decoderFor(name string) (transform.Transformer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return unicode.BOMOverride(unicode.UTF8.NewDecoder()), nil
	case "latin1", "iso-8859-1":
		return charmap.ISO8859_1.NewDecoder(), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder(), nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
}
