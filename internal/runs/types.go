package runs

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"
)

// Status is the lifecycle state of an export run record.
type Status string

const (
	// StatusRunning is written when a run starts.
	StatusRunning Status = "RUNNING"
	// StatusSuccess is written after the export file was produced.
	StatusSuccess Status = "SUCCESS"
	// StatusFailed is written when the run ends with an error.
	StatusFailed Status = "FAILED"
)

// MaxErrorMessageLen bounds the stored error message.
const MaxErrorMessageLen = 2000

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("export run not found")

// Run is the audit record of one export invocation.
type Run struct {
	RunID      string
	ExportType string
	Status     Status

	WindowStart time.Time
	WindowEnd   time.Time

	StartedAt  time.Time
	FinishedAt *time.Time

	FileName     string
	RowCount     int
	ErrorMessage string
}

// Recorder tracks the status of export runs.
type Recorder interface {
	// StartRun stores a RUNNING record and returns its generated id.
	StartRun(ctx context.Context, exportType string, windowStart, windowEnd time.Time) (string, error)

	// MarkRunSucceeded sets SUCCESS with the written file and row count.
	MarkRunSucceeded(ctx context.Context, runID, fileName string, rowCount int) error

	// MarkRunFailed sets FAILED with the error message. Problems are logged,
	// never returned, so they cannot hide the original failure.
	MarkRunFailed(ctx context.Context, runID string, runErr error)
}

// Lister reads back run records.
type Lister interface {
	GetRun(ctx context.Context, runID string) (*Run, error)

	// ListRuns returns runs newest first.
	ListRuns(ctx context.Context, filter Filter) ([]*Run, error)
}

// Store records and reads export runs.
type Store interface {
	Recorder
	Lister
}

// Filter narrows ListRuns. Zero fields match everything.
type Filter struct {
	ExportType string
	Status     Status
	Limit      int
	Offset     int
}

// ErrorMessage renders runErr for storage, truncated to MaxErrorMessageLen.
func ErrorMessage(runErr error) string {
	if runErr == nil {
		return ""
	}
	msg := runErr.Error()
	if len(msg) > MaxErrorMessageLen {
		cut := MaxErrorMessageLen
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		msg = msg[:cut]
	}
	return msg
}
