package output

import (
	"NDT7Spectra/internal/config"
	"NDT7Spectra/internal/model"
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/apex/log"
)

const createTableStatement = `
CREATE TABLE IF NOT EXISTS ndt7_features (
    RunID      String,
    Dataset    String,
    Mode       LowCardinality(String),
    Threshold  Float64,
    RowIndex   UInt32,
    UUID       String,
    Column     LowCardinality(String),
    NumValue   Nullable(Float64),
    TextValue  Nullable(String),
    Timestamp  DateTime
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (Dataset, RunID, UUID, RowIndex);
`

// ClickHouseWriter stores datasets in long format: one row per cell.
type ClickHouseWriter struct {
	conn driver.Conn
}

// NewClickHouseWriter connects to ClickHouse and ensures the table exists.
func NewClickHouseWriter(cfg config.ClickHouseConfig) (*ClickHouseWriter, error) {
	conn, err := Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	if err := conn.Exec(context.Background(), createTableStatement); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	log.Info("connected to ClickHouse and ensured table ndt7_features exists")

	return &ClickHouseWriter{conn: conn}, nil
}

// Connect opens and pings a ClickHouse connection.
func Connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return conn, nil
}

// Name returns the writer type.
func (w *ClickHouseWriter) Name() string {
	return TypeClickHouse
}

// Write inserts every non-empty cell of the dataset as one row.
func (w *ClickHouseWriter) Write(ds *model.Dataset, run model.RunInfo) error {
	batch, err := w.conn.PrepareBatch(context.Background(), "INSERT INTO ndt7_features")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	cells := 0
	for i, row := range ds.Rows {
		for j, cell := range row {
			num, text, ok := cellColumns(cell)
			if !ok {
				continue
			}
			cells++
			err = batch.Append(
				run.RunID,
				ds.Name,
				ds.Mode,
				ds.Threshold,
				uint32(i),
				ds.UUIDs[i],
				ds.Columns[j],
				num,
				text,
				run.StartedAt,
			)
			if err != nil {
				return fmt.Errorf("failed to append cell to batch: %w", err)
			}
		}
	}

	if cells == 0 {
		return batch.Abort()
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	log.WithFields(log.Fields{"dataset": ds.Name, "cells": cells}).Info("wrote dataset to ClickHouse")
	return nil
}

// cellColumns splits a cell into the nullable NumValue and TextValue
// columns. Empty cells are not stored.
func cellColumns(v model.Value) (*float64, *string, bool) {
	switch v.Kind {
	case model.KindNumber:
		num := v.Num
		return &num, nil, true
	case model.KindText:
		text := v.Text
		return nil, &text, true
	case model.KindNA:
		text := model.NotApplicable
		return nil, &text, true
	default:
		return nil, nil, false
	}
}

// Close closes the ClickHouse connection.
func (w *ClickHouseWriter) Close() error {
	return w.conn.Close()
}
