package core

// convert.go turns raw spreadsheet cells into typed column values.
//
// Public spending sheets are messy in predictable ways:
//   - Amounts written as "R$ 1.234,56", "1,234.56", "(500,00)" or plain "1234.5"
//   - Dates as dd/mm/yyyy, ISO, or Excel serial numbers from raw .xlsx cells
//   - Booleans as sim/não, true/false, s/n, 1/0
//   - Excel formula wrappers (="00123") around codes
//
// Every converter treats a blank cell as null. A non-blank cell that cannot be
// parsed is an error; the row fails instead of silently storing null.

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/empenhos/internal/mapping"
)

var (
	errInvalidNumber  = errors.New("invalid number")
	errInvalidDate    = errors.New("invalid date")
	errInvalidBool    = errors.New("invalid boolean")
	errInvalidInteger = errors.New("invalid integer")
)

// numericRegex validates a number once separators have been normalised.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would land more than this many years in the future
// are moved to the previous century.
var TwoDigitYearPivot = 20

// Date layouts split by year format for proper 2-digit year handling.
// Day comes before month, as written in Brazilian documents.
var (
	twoDigitYearLayouts = []string{
		"02/01/06", "2/1/06", "02-01-06", "02.01.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02T15:04:05Z07:00",
		"02/01/2006", "2/1/2006", "02/01/2006 15:04:05", "02/01/2006 15:04",
		"02-01-2006", "02.01.2006", "2006/01/02",
		"20060102",
	}
)

// excelSerialRegex matches raw Excel date cells (days since 1899-12-30).
var excelSerialRegex = regexp.MustCompile(`^\d{4,6}(\.\d+)?$`)

// CleanCell trims whitespace and unwraps Excel text formulas (="...").
func CleanCell(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) && len(s) >= 3 {
		s = s[2 : len(s)-1]
	}
	return s
}

// Coerce converts a raw cell to the Go value stored for a column of type vt.
// A blank cell yields nil.
func Coerce(raw string, vt mapping.ValueType) (any, error) {
	s := CleanCell(raw)
	if s == "" {
		return nil, nil
	}

	switch vt {
	case mapping.TypeNumeric:
		return ParseDecimal(s)
	case mapping.TypeInteger:
		return ParseInteger(s)
	case mapping.TypeDate:
		d := ToPgDate(s)
		if !d.Valid {
			return nil, fmt.Errorf("%w: %q", errInvalidDate, s)
		}
		return d, nil
	case mapping.TypeBool:
		b := ToPgBool(s)
		if !b.Valid {
			return nil, fmt.Errorf("%w: %q", errInvalidBool, s)
		}
		return b, nil
	default:
		return s, nil
	}
}

// ParseDecimal parses an amount in Brazilian or international notation.
// Currency symbols are dropped and "(x)" is read as negative. When both '.'
// and ',' appear, the last one is the decimal separator; a lone ',' is always
// decimal and repeated separators of one kind are thousands marks.
func ParseDecimal(s string) (decimal.Decimal, error) {
	orig := s
	s = strings.TrimSpace(s)

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	s = strings.NewReplacer("R$", "", "$", "", "\u20ac", "", " ", "", "\u00a0", "").Replace(s)
	s = normaliseSeparators(s)

	if negative {
		s = "-" + strings.TrimPrefix(s, "+")
	}

	if !numericRegex.MatchString(s) {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", errInvalidNumber, orig)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", errInvalidNumber, orig)
	}
	return d, nil
}

func normaliseSeparators(s string) string {
	dot := strings.LastIndex(s, ".")
	comma := strings.LastIndex(s, ",")

	switch {
	case dot >= 0 && comma >= 0:
		if comma > dot {
			// 1.234,56
			return strings.Replace(strings.ReplaceAll(s, ".", ""), ",", ".", 1)
		}
		// 1,234.56
		return strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		if strings.Count(s, ",") > 1 {
			return strings.ReplaceAll(s, ",", "")
		}
		return strings.Replace(s, ",", ".", 1)
	case dot >= 0 && strings.Count(s, ".") > 1:
		return strings.ReplaceAll(s, ".", "")
	}
	return s
}

// ParseInteger parses a whole number, accepting the same notation as ParseDecimal.
func ParseInteger(s string) (int64, error) {
	if i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
		return i, nil
	}
	d, err := ParseDecimal(s)
	if err != nil || !d.IsInteger() {
		return 0, fmt.Errorf("%w: %q", errInvalidInteger, s)
	}
	return d.IntPart(), nil
}

// ToPgDate converts a string to pgtype.Date.
// Supports several layouts, 2-digit years with a pivot, and Excel serial numbers.
func ToPgDate(s string) pgtype.Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Date{Valid: false}
	}

	// Try 4-digit year layouts first (unambiguous)
	for _, layout := range fourDigitYearLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return pgtype.Date{Time: dateOnly(t), Valid: true}
		}
	}

	// Try 2-digit year layouts with pivot year adjustment
	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return pgtype.Date{Time: dateOnly(t), Valid: true}
		}
	}

	// Raw .xlsx date cells
	if excelSerialRegex.MatchString(s) {
		serial, err := strconv.ParseFloat(s, 64)
		if err == nil {
			if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
				return pgtype.Date{Time: dateOnly(t), Valid: true}
			}
		}
	}

	return pgtype.Date{Valid: false}
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ToPgBool converts a string to pgtype.Bool.
// Accepts Portuguese and English forms: sim/não, s/n, true/false, yes/no, 1/0.
func ToPgBool(s string) pgtype.Bool {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return pgtype.Bool{Valid: false}
	}

	switch s {
	case "true", "t", "yes", "y", "1", "sim", "s", "verdadeiro", "v":
		return pgtype.Bool{Bool: true, Valid: true}
	case "false", "f", "no", "n", "0", "não", "nao", "falso":
		return pgtype.Bool{Bool: false, Valid: true}
	default:
		return pgtype.Bool{Valid: false}
	}
}
