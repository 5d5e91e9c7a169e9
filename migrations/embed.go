// Package migrations embeds the record-store DDL applied by cmd/migrate.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed bigquery/*.sql
var files embed.FS

// BigQuery returns the NNNN_name.sql files at the root of an fs.FS.
// {{PROJECT_ID}} and {{DATASET_ID}} are substituted before execution.
func BigQuery() fs.FS {
	sub, err := fs.Sub(files, "bigquery")
	if err != nil {
		// The directory is embedded at build time.
		panic(err)
	}
	return sub
}
