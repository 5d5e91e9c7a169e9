package csvexport

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dvloznov/bacs-export/internal/logger"
)

// Record is one output row.
type Record interface {
	// Fields returns the values in header order.
	Fields() []string
}

// Writer persists an export batch under a file name.
type Writer interface {
	// CreateExportFile writes header followed by one line per record,
	// replacing any existing file, and returns where it was written.
	CreateExportFile(ctx context.Context, fileName string, header []string, records []Record) (string, error)
}

// FileWriter writes comma-separated files into a local directory.
type FileWriter struct {
	OutputDir string
}

// NewFileWriter returns a FileWriter rooted at outputDir ("." when empty).
func NewFileWriter(outputDir string) *FileWriter {
	if outputDir == "" {
		outputDir = "."
	}
	return &FileWriter{OutputDir: outputDir}
}

// CreateExportFile implements Writer.
func (w *FileWriter) CreateExportFile(ctx context.Context, fileName string, header []string, records []Record) (string, error) {
	if fileName == "" {
		return "", fmt.Errorf("CreateExportFile: file name is required")
	}
	if err := os.MkdirAll(w.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("CreateExportFile: creating output dir %q: %w", w.OutputDir, err)
	}

	path := filepath.Join(w.OutputDir, fileName)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("CreateExportFile: creating %q: %w", path, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		return "", fmt.Errorf("CreateExportFile: writing header: %w", err)
	}
	for i, r := range records {
		fields := r.Fields()
		if len(fields) != len(header) {
			return "", fmt.Errorf("CreateExportFile: record %d has %d fields, header has %d", i, len(fields), len(header))
		}
		if err := cw.Write(fields); err != nil {
			return "", fmt.Errorf("CreateExportFile: writing record %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", fmt.Errorf("CreateExportFile: flushing %q: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("CreateExportFile: closing %q: %w", path, err)
	}

	log := logger.FromContext(ctx)

	log.Debug().
		Str("file", path).
		Int("records", len(records)).
		Msg("Export file written")

	return path, nil
}

var _ Writer = (*FileWriter)(nil)

// Records converts a typed row slice into the Writer's record slice.
func Records[T Record](rows []T) []Record {
	out := make([]Record, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out
}
