package core

import (
	"sort"
	"time"
)

// Status is the outcome of one source row.
type Status string

const (
	StatusImported Status = "imported"
	StatusFailed   Status = "failed"
	StatusSkipped  Status = "skipped"
)

// Kind classifies why a row failed.
type Kind string

const (
	KindNone         Kind = ""
	KindValue        Kind = "value"
	KindInsert       Kind = "insert"
	KindConnectivity Kind = "connectivity"
	KindTransaction  Kind = "transaction"
	KindSource       Kind = "source"
	KindCanceled     Kind = "canceled"
)

// Action is what happened to one table mapping within a row.
type Action string

const (
	ActionInserted Action = "inserted"
	ActionReused   Action = "reused"
	ActionSkipped  Action = "skipped" // every column was null
)

// TableOutcome records one table mapping of a processed row.
type TableOutcome struct {
	Key    string
	Action Action
	ID     int64
	HasID  bool
}

// RowResult is the explicit outcome of processing one source row.
type RowResult struct {
	Ordinal int
	Line    int
	Status  Status
	Kind    Kind
	Code    string // user-facing error code, see MapError
	Table   string // failing table key
	Err     error
	Tables  []TableOutcome
}

// Failed reports whether the row was rolled back.
func (r RowResult) Failed() bool {
	return r.Status == StatusFailed
}

// Outcome returns the outcome recorded for a table key.
func (r RowResult) Outcome(key string) (TableOutcome, bool) {
	for _, o := range r.Tables {
		if o.Key == key {
			return o, true
		}
	}
	return TableOutcome{}, false
}

// TableCounts tallies table-mapping actions across a run.
type TableCounts struct {
	Inserted int
	Reused   int
	Skipped  int
}

// Summary is the terminal report of an import run.
type Summary struct {
	RunID    string
	DryRun   bool
	Total    int
	Imported int
	Failed   int
	Skipped  int
	Tables   map[string]*TableCounts
	Failures []RowResult
	Duration time.Duration
}

func newSummary(runID string, dryRun bool) *Summary {
	return &Summary{
		RunID:  runID,
		DryRun: dryRun,
		Tables: make(map[string]*TableCounts),
	}
}

// record adds a row result. Callers serialise access.
func (s *Summary) record(res RowResult) {
	s.Total++
	switch res.Status {
	case StatusImported:
		s.Imported++
		for _, o := range res.Tables {
			c := s.Tables[o.Key]
			if c == nil {
				c = &TableCounts{}
				s.Tables[o.Key] = c
			}
			switch o.Action {
			case ActionInserted:
				c.Inserted++
			case ActionReused:
				c.Reused++
			case ActionSkipped:
				c.Skipped++
			}
		}
	case StatusFailed:
		s.Failed++
		s.Failures = append(s.Failures, res)
	case StatusSkipped:
		s.Skipped++
	}
}

func (s *Summary) sortFailures() {
	sort.Slice(s.Failures, func(i, j int) bool {
		return s.Failures[i].Ordinal < s.Failures[j].Ordinal
	})
}

// RowContext is the per-row registry of ids produced or reused so far,
// keyed by table key. It lives for exactly one row.
type RowContext struct {
	ids map[string]int64
}

// NewRowContext returns an empty registry.
func NewRowContext() *RowContext {
	return &RowContext{ids: make(map[string]int64)}
}

// Set records the id for a table key.
func (c *RowContext) Set(key string, id int64) {
	c.ids[key] = id
}

// ID returns the id recorded for a table key.
func (c *RowContext) ID(key string) (int64, bool) {
	id, ok := c.ids[key]
	return id, ok
}

// Len returns the number of recorded ids.
func (c *RowContext) Len() int {
	return len(c.ids)
}
