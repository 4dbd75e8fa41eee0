package output

import (
	"NDT7Spectra/internal/config"
	"NDT7Spectra/internal/factory"
	"NDT7Spectra/internal/model"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

func testDataset() *model.Dataset {
	return &model.Dataset{
		Name:      "combined_sec2_data",
		Mode:      "engineered",
		Threshold: 2,
		Columns:   []string{"BW", "RTT", "UUID", "AverageBandwidth"},
		Rows: [][]model.Value{
			{model.Number(400000), model.Number(20000.5), model.Text("a"), model.Number(500000)},
			{model.Empty, model.Number(1e-7), model.Text("b"), model.NA},
		},
		UUIDs: []string{"a", "b"},
	}
}

var testRun = model.RunInfo{RunID: "run-1", StartedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}

func TestCSVWriter_Write(t *testing.T) {
	dir := t.TempDir()

	// 1. Default file name comes from the dataset.
	w, err := NewCSVWriter(config.CSVConfig{RootPath: dir})
	require.NoError(t, err)
	require.NoError(t, w.Write(testDataset(), testRun))

	f, err := os.Open(filepath.Join(dir, "combined_sec2_data.csv"))
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	want := [][]string{
		{"BW", "RTT", "UUID", "AverageBandwidth"},
		{"400000", "20000.5", "a", "500000"},
		{"", "0.0000001", "b", "N/A"},
	}
	assert.Equal(t, want, records)

	// 2. The manifest sits next to the file.
	data, err := os.ReadFile(filepath.Join(dir, "combined_sec2_data.manifest.json"))
	require.NoError(t, err)
	var manifest Manifest
	require.NoError(t, json.Unmarshal(data, &manifest))
	assert.Equal(t, "run-1", manifest.RunID)
	assert.Equal(t, 2, manifest.Rows)
	assert.Equal(t, 2, manifest.Sessions)
	assert.Equal(t, "combined_sec2_data.csv", manifest.File)
}

func TestCSVWriter_Path(t *testing.T) {
	dir := t.TempDir()
	w, err := NewCSVWriter(config.CSVConfig{RootPath: filepath.Join(dir, "nested"), FileName: "{mode}_{threshold}s.csv"})
	require.NoError(t, err)

	ds := testDataset()
	ds.Threshold = 2.5
	assert.Equal(t, filepath.Join(dir, "nested", "engineered_2.5s.csv"), w.Path(ds))
}

func TestSQLiteWriter_Write(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.db")
	w, err := NewSQLiteWriter(config.SQLiteConfig{Path: path})
	require.NoError(t, err)
	defer w.Close()

	// Writing twice replaces the table.
	require.NoError(t, w.Write(testDataset(), testRun))
	require.NoError(t, w.Write(testDataset(), testRun))

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "combined_sec2_data"`).Scan(&count))
	assert.Equal(t, 2, count)

	var bw sql.NullString
	var avg, runID string
	require.NoError(t, db.QueryRow(`SELECT "BW", "AverageBandwidth", "run_id" FROM "combined_sec2_data" WHERE "UUID" = 'b'`).Scan(&bw, &avg, &runID))
	assert.False(t, bw.Valid)
	assert.Equal(t, "N/A", avg)
	assert.Equal(t, "run-1", runID)
}

func TestCellColumns(t *testing.T) {
	num, text, ok := cellColumns(model.Number(1.5))
	require.True(t, ok)
	assert.Equal(t, 1.5, *num)
	assert.Nil(t, text)

	num, text, ok = cellColumns(model.NA)
	require.True(t, ok)
	assert.Nil(t, num)
	assert.Equal(t, "N/A", *text)

	_, _, ok = cellColumns(model.Empty)
	assert.False(t, ok)
}

func TestRowMessage_Proto(t *testing.T) {
	in := RowMessage{
		RunID:     "run-1",
		Dataset:   "ndt7_dataset",
		Mode:      "classification",
		RowIndex:  7,
		UUID:      "u",
		Features:  map[string]interface{}{"Latency": 9.5, "UUID": "u", "BW": nil},
	}
	pb, err := in.toProto()
	require.NoError(t, err)
	data, err := proto.Marshal(pb)
	require.NoError(t, err)

	var decoded structpb.Struct
	require.NoError(t, proto.Unmarshal(data, &decoded))
	assert.Equal(t, in, rowMessageFromProto(&decoded))
	assert.Equal(t, "ndt7.features.classification", subjectFor(DefaultSubject, in.Mode))
}

func TestCreateWriters(t *testing.T) {
	cfg := &config.Config{Writers: []config.WriterDef{
		{Type: TypeCSV, Enabled: true, CSV: config.CSVConfig{RootPath: t.TempDir()}},
		{Type: TypeSQLite, Enabled: false},
		{Type: "parquet", Enabled: true},
	}}

	writers := factory.CreateWriters(cfg)
	require.Len(t, writers, 1)
	assert.Equal(t, TypeCSV, writers[0].Name())
}
