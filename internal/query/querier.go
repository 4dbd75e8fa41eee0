package query

import (
	"NDT7Spectra/internal/config"
	"NDT7Spectra/internal/output"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// ErrNotFound is returned when a dataset or session has no stored rows.
var ErrNotFound = errors.New("query: not found")

// DatasetStats summarizes the stored runs of one dataset.
type DatasetStats struct {
	Dataset  string    `json:"dataset"`
	Mode     string    `json:"mode"`
	Runs     uint64    `json:"runs"`
	Rows     uint64    `json:"rows"`
	Sessions uint64    `json:"sessions"`
	LastRun  string    `json:"last_run"`
	LastSeen time.Time `json:"last_seen"`
}

// RunSummary describes one stored run of a dataset.
type RunSummary struct {
	RunID     string    `json:"run_id"`
	Threshold float64   `json:"threshold"`
	Rows      uint64    `json:"rows"`
	Sessions  uint64    `json:"sessions"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionRow is one stored row of a session, keyed by column.
type SessionRow struct {
	RowIndex uint32                 `json:"row_index"`
	Values   map[string]interface{} `json:"values"`
}

// Querier defines the interface for reading stored datasets back.
type Querier interface {
	ListDatasets(ctx context.Context) ([]DatasetStats, error)
	DatasetStats(ctx context.Context, dataset string) (*DatasetStats, error)
	ListRuns(ctx context.Context, dataset string) ([]RunSummary, error)
	// TraceSession returns the rows of one session from the latest run of
	// the dataset.
	TraceSession(ctx context.Context, dataset, uuid string) ([]SessionRow, error)
}

// clickhouseQuerier implements the Querier interface for ClickHouse.
type clickhouseQuerier struct {
	conn driver.Conn
}

// NewClickHouseQuerier creates a new querier for ClickHouse.
func NewClickHouseQuerier(cfg config.ClickHouseConfig) (Querier, error) {
	conn, err := output.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	return &clickhouseQuerier{conn: conn}, nil
}

const datasetStatsQuery = `
	SELECT
		Dataset,
		any(Mode) AS Mode,
		uniqExact(RunID) AS Runs,
		uniqExact(RunID, RowIndex) AS Rows,
		uniqExact(UUID) AS Sessions,
		argMax(RunID, Timestamp) AS LastRun,
		max(Timestamp) AS LastSeen
	FROM ndt7_features
`

// ListDatasets returns the stats of every stored dataset.
func (q *clickhouseQuerier) ListDatasets(ctx context.Context) ([]DatasetStats, error) {
	rows, err := q.conn.Query(ctx, datasetStatsQuery+" GROUP BY Dataset ORDER BY Dataset")
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var stats []DatasetStats
	for rows.Next() {
		var s DatasetStats
		if err := rows.Scan(&s.Dataset, &s.Mode, &s.Runs, &s.Rows, &s.Sessions, &s.LastRun, &s.LastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan dataset stats: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// DatasetStats returns the stats of one dataset.
func (q *clickhouseQuerier) DatasetStats(ctx context.Context, dataset string) (*DatasetStats, error) {
	rows, err := q.conn.Query(ctx, datasetStatsQuery+" WHERE Dataset = ? GROUP BY Dataset", dataset)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: dataset '%s'", ErrNotFound, dataset)
	}
	var s DatasetStats
	if err := rows.Scan(&s.Dataset, &s.Mode, &s.Runs, &s.Rows, &s.Sessions, &s.LastRun, &s.LastSeen); err != nil {
		return nil, fmt.Errorf("failed to scan dataset stats: %w", err)
	}
	return &s, nil
}

// ListRuns returns the runs of a dataset, newest first.
func (q *clickhouseQuerier) ListRuns(ctx context.Context, dataset string) ([]RunSummary, error) {
	rows, err := q.conn.Query(ctx, `
		SELECT
			RunID,
			any(Threshold) AS Threshold,
			uniqExact(RowIndex) AS Rows,
			uniqExact(UUID) AS Sessions,
			max(Timestamp) AS Timestamp
		FROM ndt7_features
		WHERE Dataset = ?
		GROUP BY RunID
		ORDER BY Timestamp DESC
	`, dataset)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunID, &r.Threshold, &r.Rows, &r.Sessions, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan run summary: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// TraceSession rebuilds the rows of a session from its stored cells.
func (q *clickhouseQuerier) TraceSession(ctx context.Context, dataset, uuid string) ([]SessionRow, error) {
	rows, err := q.conn.Query(ctx, `
		SELECT RowIndex, Column, NumValue, TextValue
		FROM ndt7_features
		WHERE Dataset = ? AND UUID = ? AND RunID = (
			SELECT argMax(RunID, Timestamp) FROM ndt7_features WHERE Dataset = ?
		)
		ORDER BY RowIndex
	`, dataset, uuid, dataset)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	byIndex := make(map[uint32]map[string]interface{})
	for rows.Next() {
		var (
			index  uint32
			column string
			num    *float64
			text   *string
		)
		if err := rows.Scan(&index, &column, &num, &text); err != nil {
			return nil, fmt.Errorf("failed to scan session cell: %w", err)
		}
		values, ok := byIndex[index]
		if !ok {
			values = make(map[string]interface{})
			byIndex[index] = values
		}
		values[column] = cellValue(num, text)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(byIndex) == 0 {
		return nil, fmt.Errorf("%w: session '%s' in dataset '%s'", ErrNotFound, uuid, dataset)
	}
	return collectRows(byIndex), nil
}

// cellValue merges the nullable value columns back into one value.
func cellValue(num *float64, text *string) interface{} {
	switch {
	case num != nil:
		return *num
	case text != nil:
		return *text
	default:
		return nil
	}
}

// collectRows orders the rebuilt rows by their index.
func collectRows(byIndex map[uint32]map[string]interface{}) []SessionRow {
	out := make([]SessionRow, 0, len(byIndex))
	for index, values := range byIndex {
		out = append(out, SessionRow{RowIndex: index, Values: values})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RowIndex < out[j].RowIndex })
	return out
}
