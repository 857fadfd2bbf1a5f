package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/JonMunkholm/empenhos/internal/mapping"
	"github.com/JonMunkholm/empenhos/internal/source"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "postgres duplicate key",
			err:         errors.New(`ERROR: duplicate key value violates unique constraint "tb_orgao_org_nome_key"`),
			wantCode:    "DB001",
			wantMessage: "A record with this key already exists",
		},
		{
			name:        "mysql duplicate entry",
			err:         errors.New("Error 1062 (23000): Duplicate entry 'Ministry A' for key 'ORG_NOME'"),
			wantCode:    "DB001",
			wantMessage: "A record with this key already exists",
		},
		{
			name:        "sqlite unique constraint",
			err:         errors.New("constraint failed: UNIQUE constraint failed: TB_ORGAO.ORG_NOME (2067)"),
			wantCode:    "DB002",
			wantMessage: "This value must be unique but already exists",
		},
		{
			name:        "foreign key",
			err:         errors.New("insert or update violates foreign key constraint"),
			wantCode:    "DB003",
			wantMessage: "Referenced record does not exist",
		},
		{
			name:        "not null",
			err:         errors.New("NOT NULL constraint failed: TB_EMPENHO.EMP_VALOR_CONVERTIDO"),
			wantCode:    "DB008",
			wantMessage: "A required column received no value",
		},
		{
			name:        "mysql column cannot be null",
			err:         errors.New("Error 1048 (23000): Column 'EMP_ORGID' cannot be null"),
			wantCode:    "DB008",
			wantMessage: "A required column received no value",
		},
		{
			name:        "connection refused",
			err:         errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"),
			wantCode:    "DB004",
			wantMessage: "Unable to connect to database",
		},
		{
			name:        "timeout text",
			err:         errors.New("i/o timeout"),
			wantCode:    "DB006",
			wantMessage: "Operation timed out",
		},
		{
			name:        "deadlock",
			err:         errors.New("Deadlock found when trying to get lock"),
			wantCode:    "DB007",
			wantMessage: "Database was busy with conflicting operations",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestMapError_Typed(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{
			name:     "unreadable mapping",
			err:      &mapping.ConfigError{Source: "mapeamento.json", Err: errors.New("read: no such file")},
			wantCode: "MAP001",
		},
		{
			name:     "invalid mapping",
			err:      &mapping.ConfigError{Source: "mapeamento.json", Problems: []string{"TB_ORGAO: campo_unico \"ORG_NOME\" requires id_coluna"}},
			wantCode: "MAP002",
		},
		{
			name:     "schema mismatch",
			err:      &mapping.ConfigError{Source: "schema", Problems: []string{"TB_ORGAO: table \"TB_ORGAO\" does not exist"}},
			wantCode: "MAP003",
		},
		{
			name:     "forward reference",
			err:      &mapping.ConfigError{Problems: []string{`A: fks.A_BID references "B", which is processed later`}},
			wantCode: "MAP004",
		},
		{
			name:     "unsupported source",
			err:      fmt.Errorf("open planilha.ods: %w", source.ErrUnsupportedFormat),
			wantCode: "SRC001",
		},
		{
			name:     "no header",
			err:      fmt.Errorf("read planilha.csv: %w", source.ErrNoHeader),
			wantCode: "SRC002",
		},
		{
			name:     "unreadable line",
			err:      &source.ReadError{Line: 7, Err: errors.New(`bare " in non-quoted field`)},
			wantCode: "SRC003",
		},
		{
			name:     "value error wins over its text",
			err:      &RowError{Ordinal: 1, Table: "TB_EMPENHO", Err: &ValueError{Field: "valor", Column: "EMP_VALOR", Type: mapping.TypeNumeric, Value: "cem", Err: errInvalidNumber}},
			wantCode: "RUN001",
		},
		{
			name:     "cancelled",
			err:      fmt.Errorf("begin transaction: %w", context.Canceled),
			wantCode: "RUN002",
		},
		{
			name:     "row deadline",
			err:      &InsertError{Table: "TB_ORGAO", Err: context.DeadlineExceeded},
			wantCode: "RUN002",
		},
		{
			name:     "connectivity",
			err:      &ConnectivityError{Op: "connect", Err: errors.New("no route to host")},
			wantCode: "DB004",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MapError(tt.err).Code; got != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got, tt.wantCode)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	err := errors.New("duplicate key value violates")
	result := FormatUserError(err)

	expected := "A record with this key already exists (Code: DB001). Review the unique column configured for this table"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}
	if FormatUserError(nil) != "" {
		t.Error("FormatUserError(nil) should be empty")
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error is not user facing", err: nil, want: false},
		{name: "known error is user facing", err: errors.New("duplicate key"), want: true},
		{name: "typed error is user facing", err: source.ErrNoHeader, want: true},
		{name: "unknown error is not user facing", err: errors.New("random internal error xyz"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "value", err: &ValueError{Err: errInvalidDate}, want: KindValue},
		{name: "insert", err: &InsertError{Table: "T", Err: errors.New("UNIQUE constraint failed")}, want: KindInsert},
		{name: "canceled", err: fmt.Errorf("lock: %w", context.Canceled), want: KindCanceled},
		{name: "connectivity", err: &InsertError{Table: "T", Err: &ConnectivityError{Op: "exec", Err: errors.New("eof")}}, want: KindConnectivity},
		{name: "other", err: errors.New("commit: tx already closed"), want: KindTransaction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := kindOf(tt.err); got != tt.want {
				t.Errorf("kindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}
