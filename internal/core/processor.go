package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/empenhos/internal/logging"
	"github.com/JonMunkholm/empenhos/internal/mapping"
	"github.com/JonMunkholm/empenhos/internal/source"
	"github.com/JonMunkholm/empenhos/internal/store"
)

// Options tune an import.
type Options struct {
	// Workers is the number of rows processed at once. Values below 1 mean 1.
	Workers int

	// DryRun rolls back every row after processing it.
	DryRun bool

	// RowTimeout bounds one row's transaction. Zero means no deadline.
	RowTimeout time.Duration

	// ProgressEvery logs progress after this many rows. Zero uses 1000.
	ProgressEvery int
}

const defaultProgressEvery = 1000

// RowProcessor writes one source row across every table mapping inside a
// single transaction.
type RowProcessor struct {
	db     *store.DB
	spec   *mapping.Spec
	tables []mapping.TableMapping
	opts   Options
	locks  *KeyLocker
}

// NewRowProcessor prepares a processor. Tables are walked in mapping order.
func NewRowProcessor(db *store.DB, spec *mapping.Spec, opts Options) *RowProcessor {
	return &RowProcessor{
		db:     db,
		spec:   spec,
		tables: spec.Tables(),
		opts:   opts,
		locks:  NewKeyLocker(),
	}
}

// Spec returns the mapping the processor writes with.
func (p *RowProcessor) Spec() *mapping.Spec {
	return p.spec
}

// Process imports one row. It never panics on row data and never returns a
// bare error: every outcome is described by the RowResult.
//
// All tables of the row are written in one transaction. The first failing
// table stops the row and rolls back whatever the earlier tables wrote.
func (p *RowProcessor) Process(ctx context.Context, row source.Row) RowResult {
	res := RowResult{Ordinal: row.Ordinal, Line: row.Line}

	if row.Empty() {
		res.Status = StatusSkipped
		return res
	}
	if err := ctx.Err(); err != nil {
		return p.fail(res, "", err)
	}

	if p.opts.RowTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.RowTimeout)
		defer cancel()
	}

	// Conversion errors fail the row before anything touches the store.
	extracted := make([]Fields, len(p.tables))
	for i, t := range p.tables {
		fields, err := Extract(row, t)
		if err != nil {
			return p.fail(res, t.Key, err)
		}
		extracted[i] = fields
	}

	unlock, err := p.locks.LockAll(ctx, p.lockKeys(extracted))
	if err != nil {
		return p.fail(res, "", err)
	}
	defer unlock()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return p.fail(res, "", fmt.Errorf("begin transaction: %w", err))
	}

	rc := NewRowContext()
	res.Tables = make([]TableOutcome, 0, len(p.tables))
	for i, t := range p.tables {
		outcome, err := p.processTable(ctx, tx, t, extracted[i], rc)
		if err != nil {
			_ = tx.Rollback()
			res.Tables = nil
			return p.fail(res, t.Key, err)
		}
		res.Tables = append(res.Tables, outcome)
	}

	if p.opts.DryRun {
		if err := tx.Rollback(); err != nil {
			return p.fail(res, "", fmt.Errorf("rollback: %w", err))
		}
	} else if err := tx.Commit(); err != nil {
		return p.fail(res, "", fmt.Errorf("commit: %w", err))
	}

	res.Status = StatusImported
	return res
}

func (p *RowProcessor) processTable(ctx context.Context, tx DBTX, t mapping.TableMapping, fields Fields, rc *RowContext) (TableOutcome, error) {
	outcome := TableOutcome{Key: t.Key}

	payload := ResolveForeignKeys(fields, t.ForeignKeys, rc).NonNull()
	if len(payload) == 0 {
		outcome.Action = ActionSkipped
		return outcome, nil
	}

	if t.Deduplicates() {
		if value, ok := payload.Get(t.UniqueField); ok {
			id, found, err := findInSavepoint(ctx, tx, p.db.Dialect, t, value)
			var lookupErr *LookupError
			switch {
			case errors.As(err, &lookupErr):
				logging.FromContext(ctx).Warn("lookup failed, inserting",
					"table", t.Key,
					"column", t.UniqueField,
					"error", lookupErr.Err,
				)
			case err != nil:
				return outcome, err
			case found:
				logging.FromContext(ctx).Debug("reusing existing record",
					"table", t.Key,
					"id", id,
				)
				rc.Set(t.Key, id)
				outcome.Action = ActionReused
				outcome.ID, outcome.HasID = id, true
				return outcome, nil
			}
		}
	}

	id, hasID, err := Insert(ctx, tx, p.db.Dialect, t, payload)
	if err != nil {
		return outcome, err
	}
	if hasID {
		rc.Set(t.Key, id)
	}
	outcome.Action = ActionInserted
	outcome.ID, outcome.HasID = id, hasID
	return outcome, nil
}

// lockKeys lists the natural keys a row will look up. A unique field that is
// filled from a foreign key is only known mid-transaction, so it locks the
// whole column instead of one value.
func (p *RowProcessor) lockKeys(extracted []Fields) []string {
	var keys []string
	for i, t := range p.tables {
		if !t.Deduplicates() {
			continue
		}
		if value, ok := extracted[i].Get(t.UniqueField); ok {
			if value != nil {
				keys = append(keys, t.Table+"\x00"+t.UniqueField+"\x00"+lockValue(value))
			}
			continue
		}
		for _, fk := range t.ForeignKeys {
			if fk.Column == t.UniqueField {
				keys = append(keys, t.Table+"\x00"+t.UniqueField)
				break
			}
		}
	}
	return keys
}

// lockValue renders a natural key so that values the store may compare as
// equal share a lock. Text is folded to lower case, which only ever makes
// locks coarser. Decimals use their canonical form.
func lockValue(v any) string {
	switch v := v.(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	case decimal.Decimal:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func (p *RowProcessor) fail(res RowResult, table string, err error) RowResult {
	res.Status = StatusFailed
	res.Table = table
	res.Kind = kindOf(err)
	res.Err = &RowError{Ordinal: res.Ordinal, Line: res.Line, Table: table, Err: err}
	res.Code = MapError(res.Err).Code
	return res
}
