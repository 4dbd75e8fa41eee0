// Package aggregator implements the session fan-in: per-session results
// are collected concurrently and materialized into one rectangular
// dataset.
package aggregator

import (
	"NDT7Spectra/internal/model"
	"sort"
	"sync"
)

// entry is a collected session with its position in the input.
type entry struct {
	index int
	res   *model.SessionResult
}

// SessionAggregator collects the results of one processing run.
type SessionAggregator struct {
	name      string
	mode      string
	threshold float64

	mu      sync.Mutex
	entries []entry
}

// New creates an aggregator for the dataset of one mode and threshold.
func New(name, mode string, threshold float64) *SessionAggregator {
	return &SessionAggregator{
		name:      name,
		mode:      mode,
		threshold: threshold,
	}
}

// Add records a session result. Every added session keeps its rows, even
// when another input resolved to the same UUID.
func (a *SessionAggregator) Add(index int, res *model.SessionResult) {
	if res == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry{index: index, res: res})
}

// Len returns the number of collected sessions.
func (a *SessionAggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

// Dataset materializes the collected rows. Row columns come first in
// sorted order, followed by the sorted session aggregate columns. Absent
// row cells are Empty; a session without a value for an aggregate column
// gets NA. Sessions sharing a UUID all take their aggregates from the
// one latest in the input.
func (a *SessionAggregator) Dataset() *model.Dataset {
	a.mu.Lock()
	entries := append([]entry(nil), a.entries...)
	a.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].index < entries[j].index })

	latest := make(map[string]*model.SessionResult, len(entries))
	for _, e := range entries {
		latest[e.res.UUID] = e.res
	}

	rowCols := make(map[string]struct{})
	aggCols := make(map[string]struct{})
	total := 0
	for _, e := range entries {
		for _, row := range e.res.Rows {
			for col := range row {
				rowCols[col] = struct{}{}
			}
		}
		for col := range e.res.Aggregates {
			aggCols[col] = struct{}{}
		}
		total += len(e.res.Rows)
	}
	// A name already used by the rows is not repeated as an aggregate.
	for col := range rowCols {
		delete(aggCols, col)
	}
	rowNames := sortedKeys(rowCols)
	aggNames := sortedKeys(aggCols)

	ds := &model.Dataset{
		Name:      a.name,
		Mode:      a.mode,
		Threshold: a.threshold,
		Columns:   append(rowNames, aggNames...),
		Rows:      make([][]model.Value, 0, total),
		UUIDs:     make([]string, 0, total),
	}

	for _, e := range entries {
		aggregates := aggregateCells(latest[e.res.UUID], aggNames)
		for _, row := range e.res.Rows {
			cells := make([]model.Value, 0, len(ds.Columns))
			for _, col := range rowNames {
				cells = append(cells, row[col])
			}
			cells = append(cells, aggregates...)
			ds.Rows = append(ds.Rows, cells)
			ds.UUIDs = append(ds.UUIDs, e.res.UUID)
		}
	}
	return ds
}

// aggregateCells resolves the aggregate columns of one session.
func aggregateCells(res *model.SessionResult, names []string) []model.Value {
	cells := make([]model.Value, len(names))
	for i, name := range names {
		v, ok := res.Aggregates[name]
		if !ok || !v.Valid {
			cells[i] = model.NA
			continue
		}
		cells[i] = model.Number(v.Value)
	}
	return cells
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
