package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
)

// ExportRunRow is one row of export_runs.
type ExportRunRow struct {
	ExportRunID string `bigquery:"export_run_id"` // REQUIRED
	ExportType  string `bigquery:"export_type"`   // REQUIRED

	WindowStart time.Time `bigquery:"window_start"` // REQUIRED
	WindowEnd   time.Time `bigquery:"window_end"`   // REQUIRED

	StartedTS  time.Time              `bigquery:"started_ts"`  // REQUIRED
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts"` // NULLABLE

	Status       string              `bigquery:"status"`        // REQUIRED
	FileName     bigquery.NullString `bigquery:"file_name"`     // NULLABLE
	RowCount     bigquery.NullInt64  `bigquery:"row_count"`     // NULLABLE
	ErrorMessage bigquery.NullString `bigquery:"error_message"` // NULLABLE
}
