package model

// Task defines a single feature extraction mode (per-row engineered
// features, session summary, classification dataset).
type Task interface {
	// Extract folds one session into its output rows.
	Extract(session *Session) (*SessionResult, error)
	Name() string
}
