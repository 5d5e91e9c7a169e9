package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/bacs-export/internal/bacs"
	"github.com/dvloznov/bacs-export/internal/csvexport"
	"github.com/dvloznov/bacs-export/internal/logger"
	"github.com/dvloznov/bacs-export/internal/runs"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("bacs.export")

const (
	DefaultAgencyFileName   = "Agency_BACSExport.csv"
	DefaultSupplierFileName = "Supplier_BACSExport.csv"
)

// Config holds settings fixed for the life of a Service.
type Config struct {
	// EnableAgencyPayments is read once here; agency runs are a no-op when false.
	EnableAgencyPayments bool
	AgencyFileName       string
	SupplierFileName     string
	Engine               bacs.Engine
}

// Dependencies are the collaborators a Service drives. Runs is optional.
type Dependencies struct {
	Payments            bacs.PaymentRepository
	InvoiceTransactions bacs.InvoiceTransactionRepository
	Candidates          bacs.CandidateRepository
	Agencies            bacs.AgencyRepository
	Writer              csvexport.Writer
	Runs                runs.Recorder
}

// Result describes how a run ended.
type Result struct {
	ExportType  bacs.ExportType
	State       State
	WindowStart time.Time
	WindowEnd   time.Time
	FilePath    string
	RowCount    int
	RunID       string
	// Skipped is set when the category is disabled and nothing was produced.
	Skipped bool
}

// Option customises a Service.
type Option func(*Service)

// WithClock replaces time.Now as the source of the window end.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger; otherwise the one in the context is used.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) { s.log = &log }
}

// Service orchestrates one export run per call to Export.
type Service struct {
	cfg  Config
	deps Dependencies
	now  func() time.Time
	log  *zerolog.Logger
}

func NewService(cfg Config, deps Dependencies, opts ...Option) (*Service, error) {
	if cfg.AgencyFileName == "" {
		cfg.AgencyFileName = DefaultAgencyFileName
	}
	if cfg.SupplierFileName == "" {
		cfg.SupplierFileName = DefaultSupplierFileName
	}

	switch {
	case deps.InvoiceTransactions == nil:
		return nil, fmt.Errorf("NewService: invoice transaction repository is required")
	case deps.Candidates == nil:
		return nil, fmt.Errorf("NewService: candidate repository is required")
	case deps.Writer == nil:
		return nil, fmt.Errorf("NewService: writer is required")
	case cfg.EnableAgencyPayments && (deps.Payments == nil || deps.Agencies == nil):
		return nil, fmt.Errorf("NewService: payment and agency repositories are required when agency payments are enabled")
	}

	s := &Service{cfg: cfg, deps: deps, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// run carries the state of one Export call.
type run struct {
	res *Result
	log zerolog.Logger
}

func (r *run) transition(to State) {
	r.log.Debug().
		Str("from", r.res.State.String()).
		Str("to", to.String()).
		Msg("Export state changed")
	r.res.State = to
}

// Export produces the file for exportType. On failure the returned Result has
// State == StateFailed and an empty FilePath. Failures before the write stage
// leave the output untouched; after a write-stage failure any leftover file is
// up to the Writer.
func (s *Service) Export(ctx context.Context, exportType bacs.ExportType) (res *Result, err error) {
	ctx, span := tracer.Start(ctx, "export.Run", trace.WithAttributes(
		attribute.String("bacs.export_type", exportType.String()),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	log := logger.FromContext(ctx)
	if s.log != nil {
		log = *s.log
	}
	r := &run{
		res: &Result{ExportType: exportType, State: StateIdle},
		log: log.With().Str("export_type", exportType.String()).Logger(),
	}

	switch exportType {
	case bacs.ExportTypeNone:
		return s.fail(ctx, r, bacs.ErrNoExportType)
	case bacs.ExportTypeAgency, bacs.ExportTypeSupplier:
	default:
		return s.fail(ctx, r, fmt.Errorf("%w: %s", bacs.ErrInvalidExportType, exportType))
	}
	r.transition(StateCategorySelected)

	if exportType == bacs.ExportTypeAgency && !s.cfg.EnableAgencyPayments {
		r.res.Skipped = true
		r.transition(StateDone)
		r.log.Info().Msg("Agency payments are disabled, nothing exported")
		return r.res, nil
	}

	start, end := Window(s.now())
	r.res.WindowStart, r.res.WindowEnd = start, end
	span.SetAttributes(
		attribute.String("bacs.window_start", start.Format(time.RFC3339)),
		attribute.String("bacs.window_end", end.Format(time.RFC3339)),
	)

	if s.deps.Runs != nil {
		runID, err := s.deps.Runs.StartRun(ctx, exportType.String(), start, end)
		if err != nil {
			return s.fail(ctx, r, fmt.Errorf("Export: recording run start: %w", err))
		}
		r.res.RunID = runID
		r.log = logger.WithRun(r.log, runID, exportType.String())
	}

	var (
		fileName string
		header   []string
		records  []csvexport.Record
	)
	switch exportType {
	case bacs.ExportTypeAgency:
		rows, err := s.agencyRows(ctx, r, start, end)
		if err != nil {
			return s.fail(ctx, r, err)
		}
		fileName, header, records = s.cfg.AgencyFileName, bacs.AgencyBacsHeader, csvexport.Records(rows)
	case bacs.ExportTypeSupplier:
		rows, err := s.supplierRows(ctx, r, start, end)
		if err != nil {
			return s.fail(ctx, r, err)
		}
		fileName, header, records = s.cfg.SupplierFileName, bacs.SupplierBacsHeader, csvexport.Records(rows)
	}

	err = stage(ctx, "export.write", func(ctx context.Context) error {
		path, err := s.deps.Writer.CreateExportFile(ctx, fileName, header, records)
		if err != nil {
			return fmt.Errorf("Export: writing %s: %w", fileName, err)
		}
		r.res.FilePath = path
		return nil
	})
	if err != nil {
		return s.fail(ctx, r, err)
	}
	r.res.RowCount = len(records)
	r.transition(StateWritten)

	if r.res.RunID != "" {
		if err := s.deps.Runs.MarkRunSucceeded(ctx, r.res.RunID, r.res.FilePath, r.res.RowCount); err != nil {
			r.log.Error().Err(err).Msg("Failed to record export run success")
		}
	}

	r.transition(StateDone)
	r.log.Info().
		Str("file", r.res.FilePath).
		Int("rows", r.res.RowCount).
		Time("window_start", start).
		Time("window_end", end).
		Msg("Export completed")

	return r.res, nil
}

func (s *Service) agencyRows(ctx context.Context, r *run, start, end time.Time) ([]bacs.AgencyBacsRow, error) {
	var payments []bacs.Payment
	err := stage(ctx, "export.fetch", func(ctx context.Context) (err error) {
		payments, err = s.deps.Payments.GetBetweenDates(ctx, start, end)
		if err != nil {
			return fmt.Errorf("Export: fetching agency payments: %w", err)
		}
		if len(payments) == 0 {
			return &bacs.NoDataError{ExportType: bacs.ExportTypeAgency, Start: start, End: end}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.transition(StateFetched)

	var agencies map[string]*bacs.Payee
	err = stage(ctx, "export.resolve", func(ctx context.Context) (err error) {
		agencies, err = s.deps.Agencies.GetMany(ctx, bacs.DistinctAgencyIDs(payments))
		if err != nil {
			return fmt.Errorf("Export: loading agencies: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.transition(StateBankDetailsResolved)

	rows := s.cfg.Engine.BuildAgencyPayments(payments, agencies)
	if dropped := len(payments) - len(rows); dropped > 0 {
		r.log.Warn().
			Int("dropped", dropped).
			Msg("Skipped agency payments without a payable agency")
	}
	r.transition(StateAggregated)

	return rows, nil
}

func (s *Service) supplierRows(ctx context.Context, r *run, start, end time.Time) ([]bacs.SupplierBacsRow, error) {
	var txs []bacs.InvoiceTransaction
	err := stage(ctx, "export.fetch", func(ctx context.Context) (err error) {
		txs, err = s.deps.InvoiceTransactions.GetBetweenDates(ctx, start, end)
		if err != nil {
			return fmt.Errorf("Export: fetching supplier invoice transactions: %w", err)
		}
		if len(txs) == 0 {
			return &bacs.NoDataError{ExportType: bacs.ExportTypeSupplier, Start: start, End: end}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.transition(StateFetched)

	// Candidates are resolved group by group while aggregating.
	var rows []bacs.SupplierBacsRow
	err = stage(ctx, "export.aggregate", func(ctx context.Context) (err error) {
		rows, err = s.cfg.Engine.BuildSupplierPayments(ctx, txs, s.deps.Candidates)
		return err
	})
	if err != nil {
		return nil, err
	}
	r.transition(StateBankDetailsResolved)
	r.transition(StateAggregated)

	return rows, nil
}

func (s *Service) fail(ctx context.Context, r *run, err error) (*Result, error) {
	from := r.res.State
	r.res.State = StateFailed

	event := r.log.Error()
	if errors.Is(err, bacs.ErrNoData) {
		event = r.log.Warn()
	}
	event.Err(err).Str("state", from.String()).Msg("Export failed")

	if r.res.RunID != "" {
		s.deps.Runs.MarkRunFailed(ctx, r.res.RunID, err)
	}
	return r.res, err
}

// stage runs fn inside a child span.
func stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := tracer.Start(ctx, name)
	defer span.End()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}
