package core

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/empenhos/internal/mapping"
)

// ----------------------------------------------------------------------------
// ParseDecimal Tests
// ----------------------------------------------------------------------------

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "plain integer", input: "123", want: "123"},
		{name: "plain decimal", input: "1234.5", want: "1234.5"},
		{name: "brazilian notation", input: "1.234,56", want: "1234.56"},
		{name: "brazilian with currency", input: "R$ 1.234,56", want: "1234.56"},
		{name: "international notation", input: "1,234.56", want: "1234.56"},
		{name: "lone comma is decimal", input: "1234,5", want: "1234.5"},
		{name: "repeated dots are thousands", input: "1.234.567", want: "1234567"},
		{name: "repeated commas are thousands", input: "1,234,567", want: "1234567"},
		{name: "parentheses are negative", input: "(500,00)", want: "-500"},
		{name: "explicit negative", input: "-42,10", want: "-42.1"},
		{name: "non-breaking space", input: "1\u00a0234,00", want: "1234"},
		{name: "euro sign", input: "\u20ac 10", want: "10"},
		{name: "exponent", input: "1e3", want: "1000"},

		{name: "letters", input: "abc", wantErr: true},
		{name: "dash only", input: "-", wantErr: true},
		{name: "embedded dash", input: "12-3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDecimal(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseDecimal(%q) = %s, want error", tt.input, got)
				}
				if !errors.Is(err, errInvalidNumber) {
					t.Errorf("ParseDecimal(%q) error = %v, want errInvalidNumber", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDecimal(%q) unexpected error: %v", tt.input, err)
			}
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("ParseDecimal(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseInteger(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{input: "42", want: 42},
		{input: " -7 ", want: -7},
		{input: "3,0", want: 3},
		{input: "1.234.567", want: 1234567},
		{input: "2,5", wantErr: true},
		{input: "dez", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseInteger(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseInteger(%q) = %d, want error", tt.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseInteger(%q) unexpected error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseInteger(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

// ----------------------------------------------------------------------------
// ToPgDate Tests
// ----------------------------------------------------------------------------

func TestToPgDate(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValid bool
		wantYear  int
		wantMonth time.Month
		wantDay   int
	}{
		{name: "ISO", input: "2024-01-15", wantValid: true, wantYear: 2024, wantMonth: time.January, wantDay: 15},
		{name: "ISO with time", input: "2024-01-15 13:45:00", wantValid: true, wantYear: 2024, wantMonth: time.January, wantDay: 15},
		{name: "day first", input: "15/01/2024", wantValid: true, wantYear: 2024, wantMonth: time.January, wantDay: 15},
		{name: "day first single digits", input: "5/3/2024", wantValid: true, wantYear: 2024, wantMonth: time.March, wantDay: 5},
		{name: "day first with dashes", input: "15-01-2024", wantValid: true, wantYear: 2024, wantMonth: time.January, wantDay: 15},
		{name: "day first with dots", input: "15.01.2024", wantValid: true, wantYear: 2024, wantMonth: time.January, wantDay: 15},
		{name: "compact", input: "20240115", wantValid: true, wantYear: 2024, wantMonth: time.January, wantDay: 15},
		{name: "excel serial", input: "45306", wantValid: true, wantYear: 2024, wantMonth: time.January, wantDay: 15},
		{name: "excel serial with fraction", input: "45306.5", wantValid: true, wantYear: 2024, wantMonth: time.January, wantDay: 15},
		{name: "surrounding whitespace", input: "  2024-01-15  ", wantValid: true, wantYear: 2024, wantMonth: time.January, wantDay: 15},

		{name: "empty", input: "", wantValid: false},
		{name: "month first is rejected", input: "01/31/2024", wantValid: false},
		{name: "garbage", input: "ontem", wantValid: false},
		{name: "impossible day", input: "2024-02-30", wantValid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToPgDate(tt.input)
			if got.Valid != tt.wantValid {
				t.Fatalf("ToPgDate(%q).Valid = %v, want %v", tt.input, got.Valid, tt.wantValid)
			}
			if !tt.wantValid {
				return
			}
			if got.Time.Year() != tt.wantYear || got.Time.Month() != tt.wantMonth || got.Time.Day() != tt.wantDay {
				t.Errorf("ToPgDate(%q) = %s, want %04d-%02d-%02d",
					tt.input, got.Time.Format("2006-01-02"), tt.wantYear, tt.wantMonth, tt.wantDay)
			}
			if got.Time.Hour() != 0 || got.Time.Location() != time.UTC {
				t.Errorf("ToPgDate(%q) = %v, want midnight UTC", tt.input, got.Time)
			}
		})
	}
}

func TestToPgDate_TwoDigitYear(t *testing.T) {
	originalPivot := TwoDigitYearPivot
	defer func() { TwoDigitYearPivot = originalPivot }()
	TwoDigitYearPivot = 20

	got := ToPgDate("15/01/24")
	if !got.Valid || got.Time.Year() != 2024 {
		t.Errorf("ToPgDate(15/01/24) = %v, want year 2024", got)
	}

	got = ToPgDate("15/01/99")
	if !got.Valid || got.Time.Year() != 1999 {
		t.Errorf("ToPgDate(15/01/99) = %v, want year 1999", got)
	}
}

// ----------------------------------------------------------------------------
// ToPgBool Tests
// ----------------------------------------------------------------------------

func TestToPgBool(t *testing.T) {
	tests := []struct {
		input string
		want  pgtype.Bool
	}{
		{"sim", pgtype.Bool{Bool: true, Valid: true}},
		{"S", pgtype.Bool{Bool: true, Valid: true}},
		{"true", pgtype.Bool{Bool: true, Valid: true}},
		{"1", pgtype.Bool{Bool: true, Valid: true}},
		{"Não", pgtype.Bool{Bool: false, Valid: true}},
		{"nao", pgtype.Bool{Bool: false, Valid: true}},
		{"false", pgtype.Bool{Bool: false, Valid: true}},
		{"0", pgtype.Bool{Bool: false, Valid: true}},
		{"", pgtype.Bool{}},
		{"talvez", pgtype.Bool{}},
	}

	for _, tt := range tests {
		if got := ToPgBool(tt.input); got != tt.want {
			t.Errorf("ToPgBool(%q) = %+v, want %+v", tt.input, got, tt.want)
		}
	}
}

// ----------------------------------------------------------------------------
// CleanCell / Coerce Tests
// ----------------------------------------------------------------------------

func TestCleanCell(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"  abc  ", "abc"},
		{`="00123"`, "00123"},
		{`=""`, ""},
		{`="`, `="`},
		{"\t\n", ""},
	}

	for _, tt := range tests {
		if got := CleanCell(tt.input); got != tt.want {
			t.Errorf("CleanCell(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestCoerce(t *testing.T) {
	t.Run("blank is null for every type", func(t *testing.T) {
		for _, vt := range []mapping.ValueType{mapping.TypeText, mapping.TypeNumeric, mapping.TypeDate, mapping.TypeInteger, mapping.TypeBool} {
			v, err := Coerce("   ", vt)
			if err != nil || v != nil {
				t.Errorf("Coerce(blank, %s) = %v, %v; want nil, nil", vt, v, err)
			}
		}
	})

	t.Run("text is trimmed", func(t *testing.T) {
		v, err := Coerce(`  ="Ministério A" `, mapping.TypeText)
		if err != nil {
			t.Fatal(err)
		}
		if v != "Ministério A" {
			t.Errorf("got %q", v)
		}
	})

	t.Run("numeric", func(t *testing.T) {
		v, err := Coerce("R$ 100,50", mapping.TypeNumeric)
		if err != nil {
			t.Fatal(err)
		}
		d, ok := v.(decimal.Decimal)
		if !ok || !d.Equal(decimal.RequireFromString("100.5")) {
			t.Errorf("got %#v", v)
		}
	})

	t.Run("date", func(t *testing.T) {
		v, err := Coerce("15/01/2024", mapping.TypeDate)
		if err != nil {
			t.Fatal(err)
		}
		if d, ok := v.(pgtype.Date); !ok || d.Time.Day() != 15 {
			t.Errorf("got %#v", v)
		}
	})

	t.Run("invalid values fail", func(t *testing.T) {
		cases := []struct {
			raw  string
			vt   mapping.ValueType
			want error
		}{
			{"cem", mapping.TypeNumeric, errInvalidNumber},
			{"2024-13-01", mapping.TypeDate, errInvalidDate},
			{"talvez", mapping.TypeBool, errInvalidBool},
			{"1,5", mapping.TypeInteger, errInvalidInteger},
		}
		for _, c := range cases {
			_, err := Coerce(c.raw, c.vt)
			if !errors.Is(err, c.want) {
				t.Errorf("Coerce(%q, %s) error = %v, want %v", c.raw, c.vt, err, c.want)
			}
		}
	})
}
