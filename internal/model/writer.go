package model

import "time"

// RunInfo describes the processing run a dataset came from.
type RunInfo struct {
	RunID     string
	StartedAt time.Time
}

// Writer defines a generic interface for persisting a dataset.
type Writer interface {
	// Write takes a finished dataset and persists it.
	Write(ds *Dataset, run RunInfo) error

	// Name returns the writer type, used in logs.
	Name() string

	// Close releases any connection held by the writer.
	Close() error
}
