package factory

import (
	"NDT7Spectra/internal/config"
	"NDT7Spectra/internal/model"
	"errors"
	"fmt"
	"sort"

	"github.com/apex/log"
)

// TaskFactory creates the task of a feature mode for one processing run.
// threshold is the per-row time threshold in seconds; modes that do not
// filter by time ignore it.
type TaskFactory func(threshold float64) (model.Task, error)

// WriterFactory creates a dataset writer from its config definition.
type WriterFactory func(def config.WriterDef) (model.Writer, error)

// ErrUnknownMode is returned for a feature mode nobody registered.
var ErrUnknownMode = errors.New("unknown feature mode")

var (
	// taskRegistry holds the mapping of feature modes to their factories.
	taskRegistry = make(map[string]TaskFactory)
	// writerRegistry holds the mapping of writer types to their factories.
	writerRegistry = make(map[string]WriterFactory)
)

// RegisterTask registers a new feature mode with its factory function.
func RegisterTask(name string, factory TaskFactory) {
	if _, exists := taskRegistry[name]; exists {
		panic(fmt.Sprintf("feature mode '%s' already registered", name))
	}
	taskRegistry[name] = factory
}

// RegisterWriter registers a new writer type with its factory function.
func RegisterWriter(name string, factory WriterFactory) {
	if _, exists := writerRegistry[name]; exists {
		panic(fmt.Sprintf("writer type '%s' already registered", name))
	}
	writerRegistry[name] = factory
}

// CreateTask creates the task for the given mode.
func CreateTask(mode string, threshold float64) (model.Task, error) {
	factory, ok := taskRegistry[mode]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownMode, mode)
	}
	task, err := factory(threshold)
	if err != nil {
		return nil, fmt.Errorf("error creating feature mode '%s': %w", mode, err)
	}
	return task, nil
}

// Modes returns the registered feature modes, sorted.
func Modes() []string {
	names := make([]string, 0, len(taskRegistry))
	for name := range taskRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CreateWriters creates every enabled writer of the config. Writers that
// fail to initialize are logged and skipped.
func CreateWriters(cfg *config.Config) []model.Writer {
	var writers []model.Writer
	for _, def := range cfg.Writers {
		if !def.Enabled {
			continue
		}
		factory, ok := writerRegistry[def.Type]
		if !ok {
			log.Warnf("unknown writer type '%s' in config, skipping", def.Type)
			continue
		}
		writer, err := factory(def)
		if err != nil {
			log.WithError(err).Warnf("failed to create writer type '%s', skipping", def.Type)
			continue
		}
		log.Infof("created writer type '%s'", def.Type)
		writers = append(writers, writer)
	}
	return writers
}
