package factory

import (
	"NDT7Spectra/internal/config"
	"NDT7Spectra/internal/model"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTask struct{ threshold float64 }

func (s *stubTask) Extract(*model.Session) (*model.SessionResult, error) { return nil, nil }
func (s *stubTask) Name() string { return "stub" }

type stubWriter struct{}

func (stubWriter) Write(*model.Dataset, model.RunInfo) error { return nil }
func (stubWriter) Name() string { return "stub" }
func (stubWriter) Close() error { return nil }

func TestCreateTask(t *testing.T) {
	RegisterTask("stub", func(threshold float64) (model.Task, error) {
		return &stubTask{threshold: threshold}, nil
	})
	RegisterTask("broken", func(float64) (model.Task, error) {
		return nil, errors.New("boom")
	})

	task, err := CreateTask("stub", 3)
	require.NoError(t, err)
	assert.Equal(t, 3.0, task.(*stubTask).threshold)
	assert.Contains(t, Modes(), "stub")

	_, err = CreateTask("missing", 0)
	assert.True(t, errors.Is(err, ErrUnknownMode))

	_, err = CreateTask("broken", 0)
	assert.ErrorContains(t, err, "boom")

	assert.Panics(t, func() {
		RegisterTask("stub", func(float64) (model.Task, error) { return nil, nil })
	})
}

func TestCreateWriters_SkipsFailures(t *testing.T) {
	RegisterWriter("stub", func(config.WriterDef) (model.Writer, error) { return stubWriter{}, nil })
	RegisterWriter("failing", func(config.WriterDef) (model.Writer, error) { return nil, errors.New("no server") })

	writers := CreateWriters(&config.Config{Writers: []config.WriterDef{
		{Type: "stub", Enabled: true},
		{Type: "failing", Enabled: true},
		{Type: "stub", Enabled: false},
		{Type: "unknown", Enabled: true},
	}})
	require.Len(t, writers, 1)
	assert.Equal(t, "stub", writers[0].Name())
}
