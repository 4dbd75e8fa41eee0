package main

import (
	"NDT7Spectra/internal/config"
	"NDT7Spectra/internal/engine/manager"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBuildJobs(t *testing.T) {
	cfg := config.Default()
	cfg.Pipeline.Modes = []string{"engineered", "summary", "classification"}
	cfg.Pipeline.Thresholds = []float64{2, 5}
	files := []string{"a.json"}

	want := []manager.Job{
		{Mode: "engineered", Threshold: 2, Files: files},
		{Mode: "engineered", Threshold: 5, Files: files},
		{Mode: "summary", Files: files},
		{Mode: "classification", Files: files},
	}
	if diff := cmp.Diff(want, buildJobs(cfg, files)); diff != "" {
		t.Errorf("buildJobs() mismatch (-want +got):\n%s", diff)
	}
}
