package core

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/empenhos/internal/mapping"
	"github.com/JonMunkholm/empenhos/internal/source"
	"github.com/JonMunkholm/empenhos/internal/store"
)

const orgEmpMapping = `{
  "ORG": {"colunas": {"orgao": "NOME"}, "campo_unico": "NOME", "id_coluna": "ID"},
  "EMP": {"colunas": {"valor": "VALOR"}, "fks": {"ORGID": "ORG"}}
}`

const (
	mysqlLookupORG = "SELECT `ID` FROM `ORG` WHERE `NOME` = ? LIMIT 1"
	mysqlInsertORG = "INSERT INTO `ORG` (`NOME`) VALUES (?)"
	mysqlInsertEMP = "INSERT INTO `EMP` (`VALOR`, `ORGID`) VALUES (?, ?)"
)

func mustParse(t *testing.T, doc string) *mapping.Spec {
	t.Helper()
	spec, err := mapping.Parse([]byte(doc))
	require.NoError(t, err)
	return spec
}

func newMockProcessor(t *testing.T, dialect store.Dialect, doc string, opts Options) (*RowProcessor, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRowProcessor(store.Wrap(db, dialect), mustParse(t, doc), opts), mock
}

func row(ordinal int, values map[string]string) source.Row {
	return source.RowFromMap(ordinal, values)
}

func TestProcess_InsertsInMappingOrder(t *testing.T) {
	p, mock := newMockProcessor(t, store.MySQL, orgEmpMapping, Options{})

	mock.ExpectBegin()
	mock.ExpectQuery(mysqlLookupORG).WithArgs("Ministry A").
		WillReturnRows(sqlmock.NewRows([]string{"ID"}))
	mock.ExpectExec(mysqlInsertORG).WithArgs("Ministry A").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(mysqlInsertEMP).WithArgs("100.0", int64(1)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	res := p.Process(context.Background(), row(1, map[string]string{"orgao": "Ministry A", "valor": "100.0"}))

	require.NoError(t, res.Err)
	assert.Equal(t, StatusImported, res.Status)
	assert.Equal(t, []TableOutcome{
		{Key: "ORG", Action: ActionInserted, ID: 1, HasID: true},
		{Key: "EMP", Action: ActionInserted, ID: 1, HasID: true},
	}, res.Tables)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcess_ReusesExistingRecord(t *testing.T) {
	p, mock := newMockProcessor(t, store.MySQL, orgEmpMapping, Options{})

	mock.ExpectBegin()
	mock.ExpectQuery(mysqlLookupORG).WithArgs("Ministry A").
		WillReturnRows(sqlmock.NewRows([]string{"ID"}).AddRow(1))
	mock.ExpectExec(mysqlInsertEMP).WithArgs("250.0", int64(1)).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	res := p.Process(context.Background(), row(2, map[string]string{"orgao": "Ministry A", "valor": "250.0"}))

	require.NoError(t, res.Err)
	org, ok := res.Outcome("ORG")
	require.True(t, ok)
	assert.Equal(t, ActionReused, org.Action)
	assert.Equal(t, int64(1), org.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcess_LookupFailureFallsThroughToInsert(t *testing.T) {
	p, mock := newMockProcessor(t, store.MySQL, orgEmpMapping, Options{})

	mock.ExpectBegin()
	mock.ExpectQuery(mysqlLookupORG).WithArgs("Ministry A").
		WillReturnError(errors.New("Error 1054: Unknown column 'NOME'"))
	mock.ExpectExec(mysqlInsertORG).WithArgs("Ministry A").
		WillReturnResult(sqlmock.NewResult(9, 1))
	mock.ExpectExec(mysqlInsertEMP).WithArgs("100", int64(9)).
		WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectCommit()

	res := p.Process(context.Background(), row(1, map[string]string{"orgao": "Ministry A", "valor": "100"}))

	require.NoError(t, res.Err)
	assert.Equal(t, StatusImported, res.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcess_InsertFailureRollsBackRow(t *testing.T) {
	p, mock := newMockProcessor(t, store.MySQL, orgEmpMapping, Options{})

	fkErr := &mysql.MySQLError{Number: 1452, Message: "Cannot add or update a child row: a foreign key constraint fails"}

	mock.ExpectBegin()
	mock.ExpectQuery(mysqlLookupORG).WithArgs("Ministry A").
		WillReturnRows(sqlmock.NewRows([]string{"ID"}))
	mock.ExpectExec(mysqlInsertORG).WithArgs("Ministry A").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(mysqlInsertEMP).WithArgs("100", int64(1)).
		WillReturnError(fkErr)
	mock.ExpectRollback()

	res := p.Process(context.Background(), row(4, map[string]string{"orgao": "Ministry A", "valor": "100"}))

	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, KindInsert, res.Kind)
	assert.Equal(t, "EMP", res.Table)
	assert.Equal(t, "DB003", res.Code)
	assert.Empty(t, res.Tables, "a rolled back row reports no table outcomes")

	var rowErr *RowError
	require.ErrorAs(t, res.Err, &rowErr)
	assert.Equal(t, 4, rowErr.Ordinal)
	var insertErr *InsertError
	require.ErrorAs(t, res.Err, &insertErr)
	assert.Equal(t, store.ClassConstraint, insertErr.Class)
	assert.ErrorIs(t, res.Err, fkErr)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcess_ConnectionLossIsConnectivity(t *testing.T) {
	p, mock := newMockProcessor(t, store.MySQL, orgEmpMapping, Options{})

	mock.ExpectBegin().WillReturnError(&net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset by peer")})

	res := p.Process(context.Background(), row(1, map[string]string{"orgao": "Ministry A"}))

	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, KindConnectivity, res.Kind)
	assert.Empty(t, res.Table)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcess_DryRunRollsBack(t *testing.T) {
	p, mock := newMockProcessor(t, store.MySQL, orgEmpMapping, Options{DryRun: true})

	mock.ExpectBegin()
	mock.ExpectQuery(mysqlLookupORG).WithArgs("Ministry A").
		WillReturnRows(sqlmock.NewRows([]string{"ID"}))
	mock.ExpectExec(mysqlInsertORG).WithArgs("Ministry A").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(mysqlInsertEMP).WithArgs("1", int64(1)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectRollback()

	res := p.Process(context.Background(), row(1, map[string]string{"orgao": "Ministry A", "valor": "1"}))

	assert.Equal(t, StatusImported, res.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcess_NullUniqueValueSkipsLookup(t *testing.T) {
	p, mock := newMockProcessor(t, store.MySQL, orgEmpMapping, Options{})

	// ORG has nothing to write, so EMP gets no foreign key either.
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `EMP` (`VALOR`) VALUES (?)").WithArgs("100").
		WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectCommit()

	res := p.Process(context.Background(), row(1, map[string]string{"orgao": "  ", "valor": "100"}))

	require.NoError(t, res.Err)
	org, _ := res.Outcome("ORG")
	assert.Equal(t, ActionSkipped, org.Action)
	assert.False(t, org.HasID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcess_AlwaysInsertsWithoutUniqueField(t *testing.T) {
	doc := `{"LOG": {"colunas": {"msg": "TEXTO"}}}`
	p, mock := newMockProcessor(t, store.MySQL, doc, Options{})

	for i := 1; i <= 2; i++ {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO `LOG` (`TEXTO`) VALUES (?)").WithArgs("same").
			WillReturnResult(sqlmock.NewResult(int64(i), 1))
		mock.ExpectCommit()
	}

	for i := 1; i <= 2; i++ {
		res := p.Process(context.Background(), row(i, map[string]string{"msg": "same"}))
		require.NoError(t, res.Err)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcess_ValueErrorFailsBeforeAnyWrite(t *testing.T) {
	doc := `{
	  "ORG": {"colunas": {"orgao": "NOME"}, "campo_unico": "NOME", "id_coluna": "ID"},
	  "EMP": {"colunas": {"valor": "VALOR"}, "fks": {"ORGID": "ORG"}, "tipos": {"VALOR": "numeric"}}
	}`
	p, mock := newMockProcessor(t, store.MySQL, doc, Options{})

	res := p.Process(context.Background(), row(3, map[string]string{"orgao": "Ministry A", "valor": "cem reais"}))

	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, KindValue, res.Kind)
	assert.Equal(t, "EMP", res.Table)
	assert.Equal(t, "RUN001", res.Code)

	var valueErr *ValueError
	require.ErrorAs(t, res.Err, &valueErr)
	assert.Equal(t, "valor", valueErr.Field)
	assert.Equal(t, "VALOR", valueErr.Column)
	assert.NoError(t, mock.ExpectationsWereMet(), "no transaction is opened")
}

func TestProcess_EmptyRowIsSkipped(t *testing.T) {
	p, mock := newMockProcessor(t, store.MySQL, orgEmpMapping, Options{})

	res := p.Process(context.Background(), row(1, map[string]string{"orgao": "", "valor": " "}))

	assert.Equal(t, StatusSkipped, res.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcess_CancelledContext(t *testing.T) {
	p, mock := newMockProcessor(t, store.MySQL, orgEmpMapping, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := p.Process(ctx, row(1, map[string]string{"orgao": "Ministry A"}))

	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, KindCanceled, res.Kind)
	assert.Equal(t, "RUN002", res.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcess_PostgresReturningAndSavepoint(t *testing.T) {
	p, mock := newMockProcessor(t, store.Postgres, orgEmpMapping, Options{})

	mock.ExpectBegin()
	mock.ExpectExec("SAVEPOINT empenhos_lookup").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT "ID" FROM "ORG" WHERE "NOME" = $1 LIMIT 1`).WithArgs("Ministry A").
		WillReturnError(errors.New(`ERROR: permission denied for table ORG (SQLSTATE 42501)`))
	mock.ExpectExec("ROLLBACK TO SAVEPOINT empenhos_lookup").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`INSERT INTO "ORG" ("NOME") VALUES ($1) RETURNING "ID"`).WithArgs("Ministry A").
		WillReturnRows(sqlmock.NewRows([]string{"ID"}).AddRow(int64(3)))
	mock.ExpectExec(`INSERT INTO "EMP" ("VALOR", "ORGID") VALUES ($1, $2)`).WithArgs("100", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res := p.Process(context.Background(), row(1, map[string]string{"orgao": "Ministry A", "valor": "100"}))

	require.NoError(t, res.Err)
	org, _ := res.Outcome("ORG")
	assert.Equal(t, TableOutcome{Key: "ORG", Action: ActionInserted, ID: 3, HasID: true}, org)
	emp, _ := res.Outcome("EMP")
	assert.False(t, emp.HasID, "EMP has no id column, so no id is recorded")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcess_PostgresSavepointReleasedAfterLookup(t *testing.T) {
	p, mock := newMockProcessor(t, store.Postgres, orgEmpMapping, Options{})

	mock.ExpectBegin()
	mock.ExpectExec("SAVEPOINT empenhos_lookup").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT "ID" FROM "ORG" WHERE "NOME" = $1 LIMIT 1`).WithArgs("Ministry A").
		WillReturnRows(sqlmock.NewRows([]string{"ID"}).AddRow(int64(8)))
	mock.ExpectExec("RELEASE SAVEPOINT empenhos_lookup").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO "EMP" ("VALOR", "ORGID") VALUES ($1, $2)`).WithArgs("7", int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res := p.Process(context.Background(), row(1, map[string]string{"orgao": "Ministry A", "valor": "7"}))

	require.NoError(t, res.Err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockKeys(t *testing.T) {
	doc := `{
	  "ORG": {"colunas": {"orgao": "NOME"}, "campo_unico": "NOME", "id_coluna": "ID"},
	  "ORG#dono": {"colunas": {"dono": "NOME"}, "campo_unico": "NOME", "id_coluna": "ID"},
	  "LINK": {"fks": {"ORGID": "ORG"}, "campo_unico": "ORGID", "id_coluna": "ID"},
	  "EMP": {"colunas": {"valor": "VALOR"}}
	}`
	p, _ := newMockProcessor(t, store.MySQL, doc, Options{})

	r := row(1, map[string]string{"orgao": "A", "dono": "", "valor": "1"})
	extracted := make([]Fields, 0, len(p.tables))
	for _, tm := range p.tables {
		f, err := Extract(r, tm)
		require.NoError(t, err)
		extracted = append(extracted, f)
	}

	assert.Equal(t, []string{"ORG\x00NOME\x00a", "LINK\x00ORGID"}, p.lockKeys(extracted))
}

func TestLockValue_EqualKeysShareALock(t *testing.T) {
	tests := []struct {
		name string
		a, b any
	}{
		{"case", "Ministry A", "ministry a"},
		{"padding", " Ministry A", "Ministry A "},
		{"decimal scale", decimal.RequireFromString("100"), decimal.RequireFromString("100.0")},
		{"decimal trailing zeros", decimal.RequireFromString("1.50"), decimal.RequireFromString("1.5")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, lockValue(tt.a), lockValue(tt.b))
		})
	}
	assert.NotEqual(t, lockValue("Ministry A"), lockValue("Ministry B"))
	assert.Equal(t, "42", lockValue(int64(42)))
}

func TestLockKeys_NumericUniqueField(t *testing.T) {
	doc := `{"CDE": {"colunas": {"codigo": "CODIGO"}, "campo_unico": "CODIGO", "id_coluna": "ID", "tipos": {"CODIGO": "numeric"}}}`
	p, _ := newMockProcessor(t, store.MySQL, doc, Options{})

	keysFor := func(raw string) []string {
		f, err := Extract(row(1, map[string]string{"codigo": raw}), p.tables[0])
		require.NoError(t, err)
		return p.lockKeys([]Fields{f})
	}
	assert.Equal(t, keysFor("100"), keysFor("100,0"))
}
