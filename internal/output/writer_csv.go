package output

import (
	"NDT7Spectra/internal/config"
	"NDT7Spectra/internal/model"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"
)

// Manifest describes a written dataset. It is stored next to the CSV file.
type Manifest struct {
	RunID     string    `json:"run_id"`
	Dataset   string    `json:"dataset"`
	Mode      string    `json:"mode"`
	Threshold float64   `json:"threshold"`
	Rows      int       `json:"rows"`
	Sessions  int       `json:"sessions"`
	Columns   []string  `json:"columns"`
	File      string    `json:"file"`
	StartedAt time.Time `json:"started_at"`
}

// CSVWriter writes each dataset to a delimited text file.
type CSVWriter struct {
	rootPath string
	fileName string
}

// NewCSVWriter creates a CSV writer rooted at cfg.RootPath.
func NewCSVWriter(cfg config.CSVConfig) (*CSVWriter, error) {
	root := cfg.RootPath
	if root == "" {
		root = "."
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create csv output directory: %w", err)
	}
	return &CSVWriter{rootPath: root, fileName: cfg.FileName}, nil
}

// Name returns the writer type.
func (w *CSVWriter) Name() string {
	return TypeCSV
}

// Path returns the file a dataset is written to. Without a configured
// template the dataset name is used.
func (w *CSVWriter) Path(ds *model.Dataset) string {
	name := ds.Name + ".csv"
	if w.fileName != "" {
		name = strings.NewReplacer(
			"{mode}", ds.Mode,
			"{threshold}", strconv.FormatFloat(ds.Threshold, 'f', -1, 64),
			"{dataset}", ds.Name,
		).Replace(w.fileName)
	}
	return filepath.Join(w.rootPath, name)
}

// Write stores the dataset as CSV with a header row, then its manifest.
func (w *CSVWriter) Write(ds *model.Dataset, run model.RunInfo) error {
	path := w.Path(ds)
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create csv file '%s': %w", path, err)
	}
	defer file.Close()

	cw := csv.NewWriter(file)
	if err := cw.Write(ds.Columns); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	record := make([]string, len(ds.Columns))
	for _, row := range ds.Rows {
		for i, cell := range row {
			record[i] = cell.String()
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv file '%s': %w", path, err)
	}

	if err := w.writeManifest(ds, run, path); err != nil {
		return err
	}
	log.WithFields(log.Fields{"file": path, "rows": len(ds.Rows)}).Info("wrote csv dataset")
	return nil
}

func (w *CSVWriter) writeManifest(ds *model.Dataset, run model.RunInfo, csvPath string) error {
	sessions := make(map[string]struct{})
	for _, id := range ds.UUIDs {
		sessions[id] = struct{}{}
	}
	manifest := Manifest{
		RunID:     run.RunID,
		Dataset:   ds.Name,
		Mode:      ds.Mode,
		Threshold: ds.Threshold,
		Rows:      len(ds.Rows),
		Sessions:  len(sessions),
		Columns:   ds.Columns,
		File:      filepath.Base(csvPath),
		StartedAt: run.StartedAt,
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	path := strings.TrimSuffix(csvPath, filepath.Ext(csvPath)) + ".manifest.json"
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest '%s': %w", path, err)
	}
	return nil
}

// Close is a no-op; files are closed after every write.
func (w *CSVWriter) Close() error {
	return nil
}
