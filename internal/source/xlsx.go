package source

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// xlsxSource streams rows from one worksheet.
type xlsxSource struct {
	file *excelize.File
	rows *excelize.Rows
	line int
}

// OpenXLSX opens a worksheet of an Excel workbook. An empty sheet name selects
// the first sheet.
//
// Cells are read raw: numbers keep full precision and dates arrive as Excel
// serial numbers, which typed columns convert back to dates.
func OpenXLSX(path, sheet string) (Reader, error) {
	f, err := excelize.OpenFile(path, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			f.Close()
			return nil, fmt.Errorf("read %s: %w", path, ErrNoHeader)
		}
		sheet = sheets[0]
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open sheet %q of %s: %w", sheet, path, err)
	}

	lr, err := newLineReader(&xlsxSource{file: f, rows: rows})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return lr, nil
}

func (s *xlsxSource) next() ([]string, int, error) {
	if !s.rows.Next() {
		if err := s.rows.Error(); err != nil {
			return nil, 0, err
		}
		return nil, 0, io.EOF
	}
	s.line++
	cells, err := s.rows.Columns(excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, s.line, &ReadError{Line: s.line, Err: err}
	}
	return cells, s.line, nil
}

func (s *xlsxSource) close() error {
	rowsErr := s.rows.Close()
	if err := s.file.Close(); err != nil {
		return err
	}
	return rowsErr
}
