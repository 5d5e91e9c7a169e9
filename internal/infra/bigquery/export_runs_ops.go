package bigquery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/bacs-export/internal/logger"
	"github.com/dvloznov/bacs-export/internal/runs"
	"github.com/google/uuid"
)

// StartExportRunWithClient inserts a new row into export_runs with status=RUNNING
// and returns the generated export_run_id.
func StartExportRunWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, exportType string, windowStart, windowEnd time.Time) (string, error) {
	exportRunID := uuid.NewString()

	q := client.Query(fmt.Sprintf(`
		INSERT %s (
			export_run_id,
			export_type,
			window_start,
			window_end,
			started_ts,
			status
		)
		VALUES (
			@export_run_id,
			@export_type,
			@window_start,
			@window_end,
			@started_ts,
			@status
		)
	`, ds.Table(exportRunsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "export_run_id", Value: exportRunID},
		{Name: "export_type", Value: exportType},
		{Name: "window_start", Value: windowStart},
		{Name: "window_end", Value: windowEnd},
		{Name: "started_ts", Value: time.Now()},
		{Name: "status", Value: string(runs.StatusRunning)},
	}

	if err := execQuery(ctx, "StartExportRun", exportRunsTable, q); err != nil {
		return "", err
	}

	return exportRunID, nil
}

// MarkExportRunSucceededWithClient sets status=SUCCESS, finished_ts, file_name
// and row_count, and clears error_message.
func MarkExportRunSucceededWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, exportRunID, fileName string, rowCount int) error {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_ts = @finished_ts,
		    file_name = @file_name,
		    row_count = @row_count,
		    error_message = ""
		WHERE export_run_id = @export_run_id
	`, ds.Table(exportRunsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: string(runs.StatusSuccess)},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "file_name", Value: fileName},
		{Name: "row_count", Value: rowCount},
		{Name: "export_run_id", Value: exportRunID},
	}

	return execQuery(ctx, "MarkExportRunSucceeded", exportRunsTable, q)
}

// MarkExportRunFailedWithClient sets status=FAILED, finished_ts and error_message.
// Errors are logged rather than returned.
func MarkExportRunFailedWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, exportRunID string, runErr error) {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = @error_message
		WHERE export_run_id = @export_run_id
	`, ds.Table(exportRunsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: string(runs.StatusFailed)},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "error_message", Value: runs.ErrorMessage(runErr)},
		{Name: "export_run_id", Value: exportRunID},
	}

	if err := execQuery(ctx, "MarkExportRunFailed", exportRunsTable, q); err != nil {
		log := logger.FromContext(ctx)
		log.Error().
			Err(err).
			Str("run_id", exportRunID).
			Msg("MarkExportRunFailed: updating export run")
	}
}

const exportRunColumns = `
			export_run_id,
			export_type,
			window_start,
			window_end,
			started_ts,
			finished_ts,
			status,
			file_name,
			row_count,
			error_message`

// GetExportRunWithClient loads one export run.
func GetExportRunWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, exportRunID string) (*runs.Run, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE export_run_id = @export_run_id
		LIMIT 1
	`, exportRunColumns, ds.Table(exportRunsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "export_run_id", Value: exportRunID},
	}

	rows, err := readRows[ExportRunRow](ctx, "GetExportRun", exportRunsTable, q)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("GetExportRun: %w: %s", runs.ErrRunNotFound, exportRunID)
	}

	return rows[0].ToRun(), nil
}

// ListExportRunsWithClient returns export runs newest first.
func ListExportRunsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, filter runs.Filter) ([]*runs.Run, error) {
	var (
		where  []string
		params []bigquery.QueryParameter
	)
	if filter.ExportType != "" {
		where = append(where, "export_type = @export_type")
		params = append(params, bigquery.QueryParameter{Name: "export_type", Value: filter.ExportType})
	}
	if filter.Status != "" {
		where = append(where, "status = @status")
		params = append(params, bigquery.QueryParameter{Name: "status", Value: string(filter.Status)})
	}

	sql := fmt.Sprintf("SELECT %s\n\t\tFROM %s", exportRunColumns, ds.Table(exportRunsTable))
	if len(where) > 0 {
		sql += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	sql += "\n\t\tORDER BY started_ts DESC, export_run_id"
	if filter.Limit > 0 {
		sql += "\n\t\tLIMIT @limit"
		params = append(params, bigquery.QueryParameter{Name: "limit", Value: filter.Limit})
	}
	if filter.Offset > 0 {
		if filter.Limit <= 0 {
			// BigQuery requires LIMIT before OFFSET.
			sql += "\n\t\tLIMIT 9223372036854775807"
		}
		sql += "\n\t\tOFFSET @offset"
		params = append(params, bigquery.QueryParameter{Name: "offset", Value: filter.Offset})
	}

	q := client.Query(sql)
	q.Parameters = params

	rows, err := readRows[ExportRunRow](ctx, "ListExportRuns", exportRunsTable, q)
	if err != nil {
		return nil, err
	}

	result := make([]*runs.Run, 0, len(rows))
	for i := range rows {
		result = append(result, rows[i].ToRun())
	}
	return result, nil
}

// ToRun maps the row onto a runs.Run.
func (r *ExportRunRow) ToRun() *runs.Run {
	run := &runs.Run{
		RunID:        r.ExportRunID,
		ExportType:   r.ExportType,
		Status:       runs.Status(r.Status),
		WindowStart:  r.WindowStart,
		WindowEnd:    r.WindowEnd,
		StartedAt:    r.StartedTS,
		FileName:     r.FileName.StringVal,
		RowCount:     int(r.RowCount.Int64),
		ErrorMessage: r.ErrorMessage.StringVal,
	}
	if r.FinishedTS.Valid {
		finished := r.FinishedTS.Timestamp
		run.FinishedAt = &finished
	}
	return run
}
