// Package features is the feature engine. It registers three output modes
// with the factory, all built on the normalizer:
//
//   - engineered: one row per measurement under a time threshold, with
//     running, expanding-window and derivative features;
//   - summary: one row per session with session-wide aggregates;
//   - classification: one row per measurement with throughput variants,
//     rolling latency, loss trend and the session escape time.
package features

import (
	"NDT7Spectra/internal/factory"
	"NDT7Spectra/internal/model"
	"errors"
	"fmt"
	"strconv"
)

// Mode names.
const (
	ModeEngineered     = "engineered"
	ModeSummary        = "summary"
	ModeClassification = "classification"
)

// ErrEmptyResult is returned when a session yields no qualifying rows.
// It is not a failure of the batch.
var ErrEmptyResult = errors.New("features: session produced no rows")

// ColAverageBandwidth is the session aggregate attached to engineered and
// summary rows.
const ColAverageBandwidth = "AverageBandwidth"

// DatasetName returns the name of the dataset a mode produces. Only the
// engineered mode depends on the threshold.
func DatasetName(mode string, threshold float64) string {
	switch mode {
	case ModeEngineered:
		return fmt.Sprintf("combined_sec%s_data", strconv.FormatFloat(threshold, 'f', -1, 64))
	case ModeSummary:
		return "ndt7_features"
	case ModeClassification:
		return "ndt7_dataset"
	default:
		return mode
	}
}

// UsesThreshold reports whether the output of a mode depends on the time
// threshold.
func UsesThreshold(mode string) bool {
	return mode == ModeEngineered
}

func init() {
	factory.RegisterTask(ModeEngineered, func(threshold float64) (model.Task, error) {
		return NewEngineered(threshold), nil
	})
	factory.RegisterTask(ModeSummary, func(float64) (model.Task, error) {
		return NewSummary(), nil
	})
	factory.RegisterTask(ModeClassification, func(float64) (model.Task, error) {
		return NewClassification(), nil
	})
}
