package manager

import (
	"NDT7Spectra/internal/config"
	"NDT7Spectra/internal/engine/aggregator"
	"NDT7Spectra/internal/engine/features"
	"NDT7Spectra/internal/factory"
	"NDT7Spectra/internal/metrics"
	"NDT7Spectra/internal/model"
	_ "NDT7Spectra/internal/output" // Registers the dataset writers
	"NDT7Spectra/pkg/ndt7"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/apex/log"
)

// Job is one processing run: a mode and threshold applied to a file list.
type Job struct {
	Mode      string
	Threshold float64
	Files     []string
}

// Report summarizes the outcome of a run.
type Report struct {
	Mode       string
	Threshold  float64
	Dataset    string
	Files      int
	OK         int
	Structural int
	Parse      int
	Empty      int
	Failed     int
	Rows       int
	Elapsed    time.Duration
}

// Skipped returns the number of files that contributed no rows.
func (r *Report) Skipped() int {
	return r.Structural + r.Parse + r.Empty + r.Failed
}

func (r *Report) count(status string) {
	switch status {
	case metrics.StatusOK:
		r.OK++
	case metrics.StatusStructural:
		r.Structural++
	case metrics.StatusParse:
		r.Parse++
	case metrics.StatusEmpty:
		r.Empty++
	default:
		r.Failed++
	}
}

// fileJob is a file with its position in the input.
type fileJob struct {
	index int
	path  string
}

// Manager runs feature extraction jobs over a worker pool and hands the
// resulting datasets to the configured writers.
type Manager struct {
	writers []model.Writer
	metrics *metrics.Metrics

	numWorkers        int
	sizeOfFileChannel int

	// onFileDone is called once per processed file, from the workers.
	onFileDone func()
}

// NewManager creates a Manager and the writers named in the config.
func NewManager(cfg *config.Config, m *metrics.Metrics) *Manager {
	if m == nil {
		m = metrics.New()
	}
	numWorkers := cfg.Pipeline.NumWorkers
	if numWorkers <= 0 {
		numWorkers = 1
	}
	return &Manager{
		writers:           factory.CreateWriters(cfg),
		metrics:           m,
		numWorkers:        numWorkers,
		sizeOfFileChannel: cfg.Pipeline.SizeOfFileChannel,
	}
}

// OnFileDone sets a callback invoked after every processed file.
func (m *Manager) OnFileDone(fn func()) {
	m.onFileDone = fn
}

// Writers returns the active writers.
func (m *Manager) Writers() []model.Writer {
	return m.writers
}

// Run processes every file of the job and returns the assembled dataset.
// A file that fails is logged and skipped; the run itself only fails for
// an unknown mode. Cancelling ctx stops feeding new files and the dataset
// of the files processed so far is returned together with ctx.Err().
func (m *Manager) Run(ctx context.Context, job Job) (*model.Dataset, *Report, error) {
	task, err := factory.CreateTask(job.Mode, job.Threshold)
	if err != nil {
		return nil, nil, err
	}

	name := features.DatasetName(job.Mode, job.Threshold)
	agg := aggregator.New(name, job.Mode, job.Threshold)
	report := &Report{Mode: job.Mode, Threshold: job.Threshold, Dataset: name}
	start := time.Now()

	logger := log.WithFields(log.Fields{"mode": job.Mode, "dataset": name})
	logger.Infof("processing %d files with %d workers", len(job.Files), m.numWorkers)

	fileChannel := make(chan fileJob, m.sizeOfFileChannel)
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	wg.Add(m.numWorkers)
	for i := 0; i < m.numWorkers; i++ {
		go func() {
			defer wg.Done()
			for fj := range fileChannel {
				status := m.process(task, agg, fj, logger)
				mu.Lock()
				report.Files++
				report.count(status)
				mu.Unlock()
				if m.onFileDone != nil {
					m.onFileDone()
				}
			}
		}()
	}

	var runErr error
feed:
	for i, path := range job.Files {
		if runErr = ctx.Err(); runErr != nil {
			break
		}
		select {
		case <-ctx.Done():
			runErr = ctx.Err()
			break feed
		case fileChannel <- fileJob{index: i, path: path}:
		}
	}
	close(fileChannel)
	if runErr != nil {
		logger.WithError(runErr).Warn("run cancelled, remaining files were not processed")
	}
	wg.Wait()

	ds := agg.Dataset()
	report.Rows = len(ds.Rows)
	report.Elapsed = time.Since(start)
	logger.WithFields(log.Fields{
		"files":      report.Files,
		"ok":         report.OK,
		"structural": report.Structural,
		"parse":      report.Parse,
		"empty":      report.Empty,
		"failed":     report.Failed,
		"rows":       report.Rows,
	}).Info("run finished")
	return ds, report, runErr
}

// process reads and extracts a single file and returns its status.
func (m *Manager) process(task model.Task, agg model.Aggregator, fj fileJob, logger log.Interface) string {
	start := time.Now()
	rows := 0
	status := metrics.StatusOK
	defer func() {
		m.metrics.ObserveFile(task.Name(), status, rows, time.Since(start))
	}()

	flog := logger.WithField("file", fj.path)

	session, err := ndt7.ReadFile(fj.path)
	switch {
	case errors.Is(err, ndt7.ErrStructure):
		status = metrics.StatusStructural
		flog.WithError(err).Warn("skipping file: required structure is missing")
		return status
	case errors.Is(err, ndt7.ErrParse):
		status = metrics.StatusParse
		flog.WithError(err).Warn("skipping file: malformed content")
		return status
	case err != nil:
		status = metrics.StatusError
		flog.WithError(err).Warn("skipping file")
		return status
	}

	res, err := task.Extract(session)
	switch {
	case errors.Is(err, features.ErrEmptyResult):
		status = metrics.StatusEmpty
		flog.WithError(err).Debug("session contributes no rows")
		return status
	case err != nil:
		status = metrics.StatusError
		flog.WithError(err).Warn("skipping session: extraction failed")
		return status
	}

	agg.Add(fj.index, res)
	rows = len(res.Rows)
	return status
}

// Write hands the dataset to every writer. A failing writer does not stop
// the others; their errors are joined. A dataset without rows is not
// written at all.
func (m *Manager) Write(ds *model.Dataset, run model.RunInfo) error {
	if len(ds.Rows) == 0 {
		log.WithField("dataset", ds.Name).Warn("no data was processed, dataset will not be written")
		return nil
	}
	var errs []error
	for _, w := range m.writers {
		if err := w.Write(ds, run); err != nil {
			log.WithError(err).WithField("writer", w.Name()).Error("failed to write dataset")
			errs = append(errs, fmt.Errorf("%s writer: %w", w.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every writer.
func (m *Manager) Close() {
	for _, w := range m.writers {
		if err := w.Close(); err != nil {
			log.WithError(err).WithField("writer", w.Name()).Warn("failed to close writer")
		}
	}
	log.Info("manager stopped")
}
