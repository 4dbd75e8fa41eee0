package features

import (
	"NDT7Spectra/internal/model"
	"math"

	"github.com/montanaflynn/stats"
)

// sub returns a-b, absent if either operand is absent.
func sub(a, b model.Float) model.Float {
	if !a.Valid || !b.Valid {
		return model.None
	}
	return model.Some(a.Value - b.Value)
}

// div returns a/b, absent if either operand is absent or b is zero.
func div(a, b model.Float) model.Float {
	if !a.Valid || !b.Valid || b.Value == 0 {
		return model.None
	}
	return model.Some(a.Value / b.Value)
}

// orZero guards a statistic of a possibly empty input: any error of the
// stats package (empty input) yields 0.
func orZero(v float64, err error) float64 {
	if err != nil || math.IsNaN(v) {
		return 0
	}
	return v
}

// averageBandwidth is the mean BBR bandwidth estimate, in bits/s, over
// every sample reporting one; absent when none does.
func averageBandwidth(samples []model.Sample) model.Float {
	var bws stats.Float64Data
	for _, s := range samples {
		if s.BW.Valid {
			bws = append(bws, s.BW.Value)
		}
	}
	mean, err := bws.Mean()
	if err != nil {
		return model.None
	}
	return model.Some(mean)
}

// rollingMean returns, for every index, the mean of the present values in
// the trailing window of the given size. At least minPeriods present
// values are required, otherwise the result is absent.
func rollingMean(values []model.Float, window, minPeriods int) []model.Float {
	out := make([]model.Float, len(values))
	for i := range values {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		var present stats.Float64Data
		for _, v := range values[start : i+1] {
			if v.Valid {
				present = append(present, v.Value)
			}
		}
		if len(present) < minPeriods || len(present) == 0 {
			continue
		}
		out[i] = model.Some(orZero(present.Mean()))
	}
	return out
}
