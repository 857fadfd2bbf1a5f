// Package analytics answers read-only questions about imported commitments
// (empenhos): the fact rows for a date range and the aggregates the dashboard
// shows for them.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/empenhos/internal/store"
)

// ErrInvalidRange is returned when a range ends before it starts.
var ErrInvalidRange = errors.New("invalid date range: start is after end")

// Commitment is one commitment with its dimension names resolved.
type Commitment struct {
	Amount   decimal.Decimal `json:"amount"`
	Agency   string          `json:"agency"`
	Payee    string          `json:"payee"`
	IssuedOn time.Time       `json:"issued_on"`
	Category string          `json:"category"`
}

// Repository reads commitments from the store the importer writes to.
type Repository struct {
	db      *store.DB
	dialect store.Dialect
}

// NewRepository creates a repository over an open store.
func NewRepository(db *store.DB) *Repository {
	return &Repository{db: db, dialect: db.Dialect}
}

func commitmentsSQL(d store.Dialect) string {
	return `SELECT EMP.EMP_VALOR_CONVERTIDO, ORG.ORG_NOME, FAV.FAV_NOME, EMP.EMP_DATA_EMISSAO, CDE.CDE_NOME
FROM TB_EMPENHO EMP
JOIN TB_ORGAO ORG ON EMP.EMP_ORGID = ORG.ORG_ID
JOIN TB_FAVORECIDO FAV ON EMP.EMP_FAVID = FAV.FAV_ID
JOIN TB_CATEGORIA_DESPESA CDE ON EMP.EMP_CDEID = CDE.CDE_ID
WHERE EMP.EMP_DATA_EMISSAO BETWEEN ` + d.Placeholder(1) + ` AND ` + d.Placeholder(2)
}

// Commitments returns every commitment issued between from and to, both
// inclusive. Only the calendar day of each bound is used.
func (r *Repository) Commitments(ctx context.Context, from, to time.Time) ([]Commitment, error) {
	from, to = Day(from), Day(to)
	if from.After(to) {
		return nil, ErrInvalidRange
	}

	rows, err := r.db.QueryContext(ctx, commitmentsSQL(r.dialect), from, to)
	if err != nil {
		return nil, fmt.Errorf("query commitments: %w", err)
	}
	defer rows.Close()

	var out []Commitment
	for rows.Next() {
		var (
			c      Commitment
			amount decimal.NullDecimal
			issued dateValue
		)
		if err := rows.Scan(&amount, &c.Agency, &c.Payee, &issued, &c.Category); err != nil {
			return nil, fmt.Errorf("scan commitment: %w", err)
		}
		c.Amount = amount.Decimal
		c.IssuedOn = issued.Time
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read commitments: %w", err)
	}
	return out, nil
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// dateValue scans a date column whatever representation the driver uses.
type dateValue struct {
	time.Time
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
}

func (d *dateValue) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		d.Time = time.Time{}
		return nil
	case time.Time:
		d.Time = Day(v)
		return nil
	case []byte:
		return d.parse(string(v))
	case string:
		return d.parse(v)
	default:
		return fmt.Errorf("cannot scan %T into a date", src)
	}
}

func (d *dateValue) parse(s string) error {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = Day(t)
			return nil
		}
	}
	return fmt.Errorf("cannot parse date %q", s)
}
