package main

import (
	"NDT7Spectra/internal/config"
	"NDT7Spectra/internal/engine/features"
	"NDT7Spectra/internal/engine/manager"
	"NDT7Spectra/internal/logging"
	"NDT7Spectra/internal/metrics"
	"NDT7Spectra/internal/model"
	"NDT7Spectra/pkg/ndt7"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
)

var (
	app        = kingpin.New("ndt7-features", "Extract feature datasets from NDT7 session records.")
	configPath = app.Flag("config", "Path to the YAML config file. Built-in defaults are used when empty.").Short('c').String()
	inputDir   = app.Flag("input", "Directory of .json / .json.gz session records.").Short('i').String()
	modes      = app.Flag("mode", "Feature mode (engineered, summary, classification). Repeatable.").Short('m').Strings()
	thresholds = app.Flag("threshold", "Time threshold in seconds for the engineered mode. Repeatable.").Short('t').Float64List()
	outputDir  = app.Flag("output", "Output directory of the csv writers.").Short('o').String()
	numWorkers = app.Flag("workers", "Number of extraction workers.").Short('w').Int()
	logLevel   = app.Flag("log-level", "Log level (debug, info, warn, error).").String()
	noProgress = app.Flag("no-progress", "Do not draw progress bars.").Bool()
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))
	os.Exit(run())
}

// run executes every configured job and returns the exit code.
func run() int {
	cfg, err := loadConfig()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.WithError(err).Fatal("failed to set up logging")
	}

	files, err := ndt7.ListFiles(cfg.Pipeline.InputDir)
	if err != nil {
		log.WithError(err).Fatal("failed to list input files")
	}
	if len(files) == 0 {
		log.Fatalf("no .json or .json.gz files found in '%s'", cfg.Pipeline.InputDir)
	}
	log.Infof("found %d session files in '%s'", len(files), cfg.Pipeline.InputDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mgr := manager.NewManager(cfg, metrics.New())
	defer mgr.Close()
	if len(mgr.Writers()) == 0 {
		log.Warn("no writer is enabled, datasets will not be stored")
	}

	runInfo := model.RunInfo{RunID: uuid.NewString(), StartedAt: time.Now().UTC()}
	log.WithField("run_id", runInfo.RunID).Info("starting feature extraction")

	failed := false
	for _, job := range buildJobs(cfg, files) {
		var bar *progressbar.ProgressBar
		if !*noProgress {
			bar = progressbar.NewOptions(len(files),
				progressbar.OptionSetDescription(features.DatasetName(job.Mode, job.Threshold)),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
			mgr.OnFileDone(func() { bar.Add(1) })
		}

		ds, report, err := mgr.Run(ctx, job)
		if bar != nil {
			bar.Finish()
		}
		if errors.Is(err, context.Canceled) {
			log.Warn("interrupted, partial dataset is not written")
			return 1
		}
		if err != nil {
			log.WithError(err).Error("run failed")
			return 1
		}

		if err := mgr.Write(ds, runInfo); err != nil {
			failed = true
		}
		fmt.Printf("%s: %d rows from %d/%d files (%d structural, %d parse, %d empty, %d failed) in %s\n",
			report.Dataset, report.Rows, report.OK, report.Files,
			report.Structural, report.Parse, report.Empty, report.Failed,
			report.Elapsed.Round(time.Millisecond))
	}

	if failed {
		log.Error("some datasets could not be written")
		return 1
	}
	return 0
}

// loadConfig reads the config file, if any, and applies the flags on top.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadConfig(*configPath); err != nil {
			return nil, err
		}
	}

	if *inputDir != "" {
		cfg.Pipeline.InputDir = *inputDir
	}
	if len(*modes) > 0 {
		cfg.Pipeline.Modes = *modes
	}
	if len(*thresholds) > 0 {
		cfg.Pipeline.Thresholds = *thresholds
	}
	if *numWorkers > 0 {
		cfg.Pipeline.NumWorkers = *numWorkers
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *outputDir != "" {
		for i := range cfg.Writers {
			if cfg.Writers[i].Type == "csv" {
				cfg.Writers[i].CSV.RootPath = *outputDir
			}
		}
	}
	return cfg, cfg.Validate()
}

// buildJobs expands the configured modes and thresholds. Modes that do
// not depend on the threshold run once.
func buildJobs(cfg *config.Config, files []string) []manager.Job {
	var jobs []manager.Job
	for _, mode := range cfg.Pipeline.Modes {
		if !features.UsesThreshold(mode) {
			jobs = append(jobs, manager.Job{Mode: mode, Files: files})
			continue
		}
		for _, th := range cfg.Pipeline.Thresholds {
			jobs = append(jobs, manager.Job{Mode: mode, Threshold: th, Files: files})
		}
	}
	return jobs
}
