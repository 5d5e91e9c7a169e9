package csvexport

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/dvloznov/bacs-export/internal/gcsuploader"
	"github.com/dvloznov/bacs-export/internal/logger"
)

// UploadingWriter copies every file written by Next to a Cloud Storage bucket.
// The local path is still returned. A failed upload fails the write and
// removes the local file.
type UploadingWriter struct {
	Next    Writer
	Storage gcsuploader.StorageService
	Bucket  string
	Prefix  string
}

// CreateExportFile implements Writer.
func (w *UploadingWriter) CreateExportFile(ctx context.Context, fileName string, header []string, records []Record) (string, error) {
	path, err := w.Next.CreateExportFile(ctx, fileName, header, records)
	if err != nil {
		return "", err
	}

	objectName := gcsuploader.ObjectName(w.Prefix, fileName)
	if err := w.Storage.UploadFile(ctx, w.Bucket, objectName, path); err != nil {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			log := logger.FromContext(ctx)
			log.Warn().Err(rmErr).Str("file", path).Msg("Failed to remove export file after upload error")
		}
		return "", fmt.Errorf("CreateExportFile: uploading %q: %w", path, err)
	}

	log := logger.FromContext(ctx)

	log.Info().
		Str("file", path).
		Str("gcs_uri", gcsuploader.ObjectURI(w.Bucket, objectName)).
		Msg("Export file uploaded")

	return path, nil
}

var _ Writer = (*UploadingWriter)(nil)
