package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/bacs-export/internal/bacs"
	"github.com/dvloznov/bacs-export/internal/config"
	"github.com/dvloznov/bacs-export/internal/runs"
)

// Store owns the shared BigQuery client and hands out repositories bound to it.
type Store struct {
	client  *bigquery.Client
	dataset Dataset
}

// NewStore opens the record store described by cfg.
func NewStore(ctx context.Context, cfg config.RecordStoreConfig) (*Store, error) {
	client, err := NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("NewStore: %w", err)
	}
	return &Store{client: client, dataset: DatasetFromConfig(cfg)}, nil
}

// Close closes the BigQuery client connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Client exposes the underlying client, e.g. for migrations.
func (s *Store) Client() *bigquery.Client { return s.client }

// Dataset returns the dataset the store queries.
func (s *Store) Dataset() Dataset { return s.dataset }

func (s *Store) InvoiceTransactions() *BigQueryInvoiceTransactionRepository {
	return &BigQueryInvoiceTransactionRepository{client: s.client, dataset: s.dataset}
}

func (s *Store) Payments() *BigQueryPaymentRepository {
	return &BigQueryPaymentRepository{client: s.client, dataset: s.dataset}
}

func (s *Store) Candidates() *BigQueryCandidateRepository {
	return &BigQueryCandidateRepository{client: s.client, dataset: s.dataset}
}

func (s *Store) Agencies() *BigQueryAgencyRepository {
	return &BigQueryAgencyRepository{client: s.client, dataset: s.dataset}
}

func (s *Store) ExportRuns() *BigQueryExportRunRepository {
	return &BigQueryExportRunRepository{client: s.client, dataset: s.dataset}
}

// BigQueryInvoiceTransactionRepository implements bacs.InvoiceTransactionRepository.
type BigQueryInvoiceTransactionRepository struct {
	client  *bigquery.Client
	dataset Dataset
}

// GetBetweenDates delegates to QueryInvoiceTransactionsByDateRangeWithClient with the shared client.
func (r *BigQueryInvoiceTransactionRepository) GetBetweenDates(ctx context.Context, start, end time.Time) ([]bacs.InvoiceTransaction, error) {
	return QueryInvoiceTransactionsByDateRangeWithClient(ctx, r.client, r.dataset, start, end)
}

// BigQueryPaymentRepository implements bacs.PaymentRepository.
type BigQueryPaymentRepository struct {
	client  *bigquery.Client
	dataset Dataset
}

// GetBetweenDates delegates to QueryPaymentsByDateRangeWithClient with the shared client.
func (r *BigQueryPaymentRepository) GetBetweenDates(ctx context.Context, start, end time.Time) ([]bacs.Payment, error) {
	return QueryPaymentsByDateRangeWithClient(ctx, r.client, r.dataset, start, end)
}

// BigQueryCandidateRepository implements bacs.CandidateRepository.
type BigQueryCandidateRepository struct {
	client  *bigquery.Client
	dataset Dataset
}

// GetByID delegates to GetCandidateByIDWithClient with the shared client.
func (r *BigQueryCandidateRepository) GetByID(ctx context.Context, id string) (*bacs.Payee, error) {
	return GetCandidateByIDWithClient(ctx, r.client, r.dataset, id)
}

// BigQueryAgencyRepository implements bacs.AgencyRepository.
type BigQueryAgencyRepository struct {
	client  *bigquery.Client
	dataset Dataset
}

// GetMany delegates to GetAgenciesByIDsWithClient with the shared client.
func (r *BigQueryAgencyRepository) GetMany(ctx context.Context, ids []string) (map[string]*bacs.Payee, error) {
	return GetAgenciesByIDsWithClient(ctx, r.client, r.dataset, ids)
}

// BigQueryExportRunRepository implements runs.Store on export_runs.
type BigQueryExportRunRepository struct {
	client  *bigquery.Client
	dataset Dataset
}

func (r *BigQueryExportRunRepository) StartRun(ctx context.Context, exportType string, windowStart, windowEnd time.Time) (string, error) {
	return StartExportRunWithClient(ctx, r.client, r.dataset, exportType, windowStart, windowEnd)
}

func (r *BigQueryExportRunRepository) MarkRunSucceeded(ctx context.Context, runID, fileName string, rowCount int) error {
	return MarkExportRunSucceededWithClient(ctx, r.client, r.dataset, runID, fileName, rowCount)
}

func (r *BigQueryExportRunRepository) MarkRunFailed(ctx context.Context, runID string, runErr error) {
	MarkExportRunFailedWithClient(ctx, r.client, r.dataset, runID, runErr)
}

func (r *BigQueryExportRunRepository) GetRun(ctx context.Context, runID string) (*runs.Run, error) {
	return GetExportRunWithClient(ctx, r.client, r.dataset, runID)
}

func (r *BigQueryExportRunRepository) ListRuns(ctx context.Context, filter runs.Filter) ([]*runs.Run, error) {
	return ListExportRunsWithClient(ctx, r.client, r.dataset, filter)
}

var (
	_ bacs.InvoiceTransactionRepository = (*BigQueryInvoiceTransactionRepository)(nil)
	_ bacs.PaymentRepository            = (*BigQueryPaymentRepository)(nil)
	_ bacs.CandidateRepository          = (*BigQueryCandidateRepository)(nil)
	_ bacs.AgencyRepository             = (*BigQueryAgencyRepository)(nil)
	_ runs.Store                        = (*BigQueryExportRunRepository)(nil)
)
