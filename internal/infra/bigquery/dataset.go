package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/bacs-export/internal/config"
	"google.golang.org/api/option"
)

const (
	invoiceTransactionsTable = "invoice_transactions"
	paymentsTable            = "payments"
	candidatesTable          = "candidates"
	agenciesTable            = "agencies"
	exportRunsTable          = "export_runs"

	dateFormat = "2006-01-02"
)

// Dataset names the project and dataset every query runs against.
type Dataset struct {
	Project string
	ID      string
}

// Table returns the fully qualified, backtick-quoted table name.
func (d Dataset) Table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", d.Project, d.ID, name)
}

// DatasetFromConfig builds the Dataset for cfg, defaulting the dataset id.
func DatasetFromConfig(cfg config.RecordStoreConfig) Dataset {
	id := cfg.Dataset
	if id == "" {
		id = config.DefaultDataset
	}
	return Dataset{Project: cfg.Project, ID: id}
}

// NewClient opens a BigQuery client for the record store. When cfg.URL is set
// the client talks to that endpoint without authentication (emulators).
func NewClient(ctx context.Context, cfg config.RecordStoreConfig) (*bigquery.Client, error) {
	if cfg.Project == "" {
		return nil, fmt.Errorf("NewClient: project is required")
	}

	var opts []option.ClientOption
	if cfg.URL != "" {
		opts = append(opts, option.WithEndpoint(cfg.URL), option.WithoutAuthentication())
	}

	client, err := bigquery.NewClient(ctx, cfg.Project, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewClient: creating client: %w", err)
	}
	return client, nil
}
