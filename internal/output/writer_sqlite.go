package output

import (
	"NDT7Spectra/internal/config"
	"NDT7Spectra/internal/model"
	"database/sql"
	"fmt"
	"strings"

	"github.com/apex/log"
	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver
)

// SQLiteWriter stores each dataset in its own wide table. Every column is
// TEXT; empty cells are NULL.
type SQLiteWriter struct {
	db *sql.DB
}

// NewSQLiteWriter opens (or creates) the database file.
func NewSQLiteWriter(cfg config.SQLiteConfig) (*SQLiteWriter, error) {
	path := cfg.Path
	if path == "" {
		path = "ndt7_features.db"
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database '%s': %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open sqlite database '%s': %w", path, err)
	}
	return &SQLiteWriter{db: db}, nil
}

// Name returns the writer type.
func (w *SQLiteWriter) Name() string {
	return TypeSQLite
}

// Write replaces the dataset table with the new rows.
func (w *SQLiteWriter) Write(ds *model.Dataset, run model.RunInfo) error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	table := quoteIdent(ds.Name)
	if _, err := tx.Exec("DROP TABLE IF EXISTS " + table); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", table, err)
	}

	columns := make([]string, 0, len(ds.Columns)+1)
	columns = append(columns, quoteIdent("run_id"))
	for _, col := range ds.Columns {
		columns = append(columns, quoteIdent(col))
	}
	defs := make([]string, len(columns))
	for i, col := range columns {
		defs[i] = col + " TEXT"
	}
	if _, err := tx.Exec(fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(defs, ", "))); err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	stmt, err := tx.Prepare(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), placeholders))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]interface{}, len(columns))
	for _, row := range ds.Rows {
		args[0] = run.RunID
		for i, cell := range row {
			if cell.Kind == model.KindEmpty {
				args[i+1] = nil
				continue
			}
			args[i+1] = cell.String()
		}
		if _, err := stmt.Exec(args...); err != nil {
			return fmt.Errorf("failed to insert row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit dataset %s: %w", ds.Name, err)
	}
	log.WithFields(log.Fields{"table": ds.Name, "rows": len(ds.Rows)}).Info("wrote dataset to sqlite")
	return nil
}

// quoteIdent quotes an SQL identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Close closes the database.
func (w *SQLiteWriter) Close() error {
	return w.db.Close()
}
