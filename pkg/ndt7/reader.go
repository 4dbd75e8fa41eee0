package ndt7

import (
	"NDT7Spectra/internal/model"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"
)

var (
	// ErrStructure is returned when the record lacks the Download or
	// Download.ServerMeasurements keys.
	ErrStructure = errors.New("ndt7: unexpected record structure")

	// ErrParse is returned when the record content cannot be decoded.
	ErrParse = errors.New("ndt7: malformed record")
)

// Reader reads a single NDT7 session record from disk.
type Reader struct {
	path string
	file *os.File
	gz   *gzip.Reader
	src  io.Reader
}

// NewReader opens the record at filePath. Files ending in .gz are
// decompressed on the fly.
func NewReader(filePath string) (*Reader, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	r := &Reader{path: filePath, file: file, src: file}
	if strings.HasSuffix(filePath, ".gz") {
		gz, err := gzip.NewReader(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("%w: %s: %v", ErrParse, filePath, err)
		}
		r.gz = gz
		r.src = gz
	}
	return r, nil
}

// Close closes the underlying file.
func (r *Reader) Close() {
	if r.gz != nil {
		r.gz.Close()
	}
	r.file.Close()
}

// ReadSession decodes the record into a Session.
func (r *Reader) ReadSession() (*model.Session, error) {
	return Decode(r.path, r.src)
}

// ReadFile is a convenience wrapper around NewReader and ReadSession.
func ReadFile(filePath string) (*model.Session, error) {
	r, err := NewReader(filePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.ReadSession()
}

// Decode reads one JSON record from src. name is used as the session file
// name and in error messages.
func Decode(name string, src io.Reader) (*model.Session, error) {
	var rec model.Record
	if err := json.NewDecoder(src).Decode(&rec); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, name, err)
	}
	if rec.Download == nil {
		return nil, fmt.Errorf("%w: %s: 'Download' key is missing", ErrStructure, name)
	}
	if rec.Download.ServerMeasurements == nil {
		return nil, fmt.Errorf("%w: %s: 'ServerMeasurements' key is missing", ErrStructure, name)
	}
	return model.NewSession(name, &rec), nil
}

// ListFiles returns the record files (.json and .json.gz) directly inside
// dir, sorted by name.
func ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list records in '%s': %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.ToLower(e.Name())
		if strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".json.gz") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
