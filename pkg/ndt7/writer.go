package ndt7

import (
	"NDT7Spectra/internal/model"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Encode writes rec as JSON.
func Encode(w io.Writer, rec *model.Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}

// WriteFile stores rec at filePath, gzip-compressed when the name ends
// in .gz.
func WriteFile(filePath string, rec *model.Record) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create record file '%s': %w", filePath, err)
	}
	defer file.Close()

	var dst io.Writer = file
	var gz *gzip.Writer
	if strings.HasSuffix(filePath, ".gz") {
		gz = gzip.NewWriter(file)
		dst = gz
	}
	if err := Encode(dst, rec); err != nil {
		return fmt.Errorf("failed to encode record '%s': %w", filePath, err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return fmt.Errorf("failed to compress record '%s': %w", filePath, err)
		}
	}
	return nil
}
