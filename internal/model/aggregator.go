package model

// Aggregator defines the fan-in step that turns per-session results into
// one rectangular dataset.
type Aggregator interface {
	// Add records the result of the session at position index of the input.
	// It is safe for concurrent use.
	Add(index int, res *SessionResult)

	// Dataset materializes every collected row against the union of columns.
	Dataset() *Dataset
}
