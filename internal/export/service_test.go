package export

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/bacs-export/internal/bacs"
	"github.com/dvloznov/bacs-export/internal/csvexport"
	"github.com/dvloznov/bacs-export/internal/logger"
	"github.com/dvloznov/bacs-export/internal/runs"
	"github.com/dvloznov/bacs-export/internal/runs/inmemory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2021, time.March, 31, 9, 0, 0, 0, time.UTC)

type mockPayments struct {
	GetBetweenDatesFunc func(ctx context.Context, start, end time.Time) ([]bacs.Payment, error)
	calls               int
}

func (m *mockPayments) GetBetweenDates(ctx context.Context, start, end time.Time) ([]bacs.Payment, error) {
	m.calls++
	return m.GetBetweenDatesFunc(ctx, start, end)
}

type mockInvoiceTransactions struct {
	GetBetweenDatesFunc func(ctx context.Context, start, end time.Time) ([]bacs.InvoiceTransaction, error)
	calls               int
}

func (m *mockInvoiceTransactions) GetBetweenDates(ctx context.Context, start, end time.Time) ([]bacs.InvoiceTransaction, error) {
	m.calls++
	return m.GetBetweenDatesFunc(ctx, start, end)
}

type mockCandidates struct {
	byID map[string]*bacs.Payee
}

func (m *mockCandidates) GetByID(ctx context.Context, id string) (*bacs.Payee, error) {
	return m.byID[id], nil
}

type mockAgencies struct {
	byID     map[string]*bacs.Payee
	requests [][]string
}

func (m *mockAgencies) GetMany(ctx context.Context, ids []string) (map[string]*bacs.Payee, error) {
	m.requests = append(m.requests, ids)
	out := make(map[string]*bacs.Payee)
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type writeCall struct {
	fileName string
	header   []string
	records  []csvexport.Record
}

type fakeWriter struct {
	calls []writeCall
	err   error
}

func (w *fakeWriter) CreateExportFile(ctx context.Context, fileName string, header []string, records []csvexport.Record) (string, error) {
	if w.err != nil {
		return "", w.err
	}
	w.calls = append(w.calls, writeCall{fileName: fileName, header: header, records: records})
	return "/exports/" + fileName, nil
}

type fixture struct {
	payments     *mockPayments
	transactions *mockInvoiceTransactions
	candidates   *mockCandidates
	agencies     *mockAgencies
	writer       *fakeWriter
	runs         *inmemory.Store
	logs         *bytes.Buffer
}

func bank(name, number, sortCode string) *bacs.BankDetails {
	return &bacs.BankDetails{AccountName: name, AccountNumber: number, SortCode: sortCode}
}

func newFixture() *fixture {
	return &fixture{
		payments: &mockPayments{GetBetweenDatesFunc: func(ctx context.Context, start, end time.Time) ([]bacs.Payment, error) {
			return []bacs.Payment{
				{AgencyID: "1", Balance: decimal.RequireFromString("123.45"), PaymentDate: civil.Date{Year: 2021, Month: time.March, Day: 25}},
			}, nil
		}},
		transactions: &mockInvoiceTransactions{GetBetweenDatesFunc: func(ctx context.Context, start, end time.Time) ([]bacs.InvoiceTransaction, error) {
			return []bacs.InvoiceTransaction{
				{SupplierID: "1", InvoiceID: "1", Gross: decimal.RequireFromString("123.45"), InvoiceDate: &civil.Date{Year: 2021, Month: time.February, Day: 25}, InvoiceRef: "TestRef"},
				{SupplierID: "1", InvoiceID: "2", Gross: decimal.RequireFromString("45678.10"), InvoiceDate: &civil.Date{Year: 2021, Month: time.March, Day: 26}, InvoiceRef: "TestRef2"},
				{SupplierID: "1", InvoiceID: "3", Gross: decimal.RequireFromString("777777.77"), InvoiceDate: &civil.Date{Year: 2021, Month: time.March, Day: 27}, InvoiceRef: "TestRef3"},
			}, nil
		}},
		candidates: &mockCandidates{byID: map[string]*bacs.Payee{
			"1": {ID: "1", Kind: bacs.PayeeKindCandidate, BankDetails: bank("test", "12345678", "000000")},
		}},
		agencies: &mockAgencies{byID: map[string]*bacs.Payee{
			"1": {ID: "1", Kind: bacs.PayeeKindAgency, BankDetails: bank("fives", "55555555", "555555")},
		}},
		writer: &fakeWriter{},
		runs:   inmemory.NewStore(),
		logs:   &bytes.Buffer{},
	}
}

func (f *fixture) service(t *testing.T, agencyEnabled bool) *Service {
	t.Helper()
	svc, err := NewService(
		Config{EnableAgencyPayments: agencyEnabled, Engine: bacs.NewEngine()},
		Dependencies{
			Payments:            f.payments,
			InvoiceTransactions: f.transactions,
			Candidates:          f.candidates,
			Agencies:            f.agencies,
			Writer:              f.writer,
			Runs:                f.runs,
		},
		WithClock(func() time.Time { return fixedNow }),
		WithLogger(logger.NewWithWriter(f.logs)),
	)
	require.NoError(t, err)
	return svc
}

func (f *fixture) run(t *testing.T, id string) *runs.Run {
	t.Helper()
	run, err := f.runs.GetRun(context.Background(), id)
	require.NoError(t, err)
	return run
}

func TestExport_NoExportType(t *testing.T) {
	f := newFixture()

	res, err := f.service(t, true).Export(context.Background(), bacs.ExportTypeNone)
	assert.ErrorIs(t, err, bacs.ErrNoExportType)
	assert.EqualError(t, err, "no export type provided")
	assert.Equal(t, StateFailed, res.State)

	assert.Zero(t, f.payments.calls)
	assert.Zero(t, f.transactions.calls)
	assert.Empty(t, f.writer.calls)
	all, _ := f.runs.ListRuns(context.Background(), runs.Filter{})
	assert.Empty(t, all, "no run is recorded before a category is selected")
}

func TestExport_InvalidExportType(t *testing.T) {
	f := newFixture()

	res, err := f.service(t, true).Export(context.Background(), bacs.ExportType(42))
	assert.ErrorIs(t, err, bacs.ErrInvalidExportType)
	assert.Equal(t, StateFailed, res.State)
	assert.Zero(t, f.payments.calls)
	assert.Empty(t, f.writer.calls)
}

func TestExport_AgencyDisabled(t *testing.T) {
	f := newFixture()

	res, err := f.service(t, false).Export(context.Background(), bacs.ExportTypeAgency)
	require.NoError(t, err)
	assert.Equal(t, StateDone, res.State)
	assert.True(t, res.Skipped)
	assert.Zero(t, res.RowCount)
	assert.Zero(t, f.payments.calls)
	assert.Empty(t, f.writer.calls)
}

func TestExport_AgencySuccess(t *testing.T) {
	f := newFixture()

	res, err := f.service(t, true).Export(context.Background(), bacs.ExportTypeAgency)
	require.NoError(t, err)

	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, 1, res.RowCount)
	assert.Equal(t, "/exports/Agency_BACSExport.csv", res.FilePath)
	assert.Equal(t, time.Date(2021, time.February, 28, 9, 0, 0, 0, time.UTC), res.WindowStart)
	assert.Equal(t, fixedNow, res.WindowEnd)

	require.Len(t, f.writer.calls, 1)
	call := f.writer.calls[0]
	assert.Equal(t, "Agency_BACSExport.csv", call.fileName)
	assert.Equal(t, bacs.AgencyBacsHeader, call.header)
	require.Len(t, call.records, 1)
	assert.Equal(t, []string{"fives", "55555555", "555555", "123.45", "SONOVATE25032021"}, call.records[0].Fields())

	run := f.run(t, res.RunID)
	assert.Equal(t, runs.StatusSuccess, run.Status)
	assert.Equal(t, 1, run.RowCount)
	assert.Equal(t, "agency", run.ExportType)
}

func TestExport_AgencyDropsUnpayableAgencies(t *testing.T) {
	f := newFixture()
	f.payments.GetBetweenDatesFunc = func(ctx context.Context, start, end time.Time) ([]bacs.Payment, error) {
		d := civil.Date{Year: 2021, Month: time.March, Day: 25}
		return []bacs.Payment{
			{AgencyID: "1", Balance: decimal.NewFromInt(1), PaymentDate: d},
			{AgencyID: "2", Balance: decimal.NewFromInt(2), PaymentDate: d},
			{AgencyID: "3", Balance: decimal.NewFromInt(3), PaymentDate: d},
			{AgencyID: "1", Balance: decimal.NewFromInt(4), PaymentDate: d},
		}, nil
	}
	f.agencies.byID["2"] = &bacs.Payee{ID: "2", Kind: bacs.PayeeKindAgency}

	res, err := f.service(t, true).Export(context.Background(), bacs.ExportTypeAgency)
	require.NoError(t, err)
	assert.Equal(t, 2, res.RowCount)
	assert.Equal(t, [][]string{{"1", "2", "3"}}, f.agencies.requests, "one bulk lookup for distinct ids")
	assert.Contains(t, f.logs.String(), "Skipped agency payments")
}

func TestExport_AgencyAllDroppedWritesHeaderOnly(t *testing.T) {
	f := newFixture()
	f.agencies.byID = map[string]*bacs.Payee{}

	res, err := f.service(t, true).Export(context.Background(), bacs.ExportTypeAgency)
	require.NoError(t, err)
	assert.Equal(t, StateDone, res.State)
	assert.Zero(t, res.RowCount)
	require.Len(t, f.writer.calls, 1)
	assert.Empty(t, f.writer.calls[0].records)
}

func TestExport_NoData(t *testing.T) {
	tests := []struct {
		name       string
		exportType bacs.ExportType
		wantMsg    string
	}{
		{"agency", bacs.ExportTypeAgency, "no agency payments found between dates 28/02/2021 to 31/03/2021"},
		{"supplier", bacs.ExportTypeSupplier, "no supplier invoice transactions found between dates 28/02/2021 to 31/03/2021"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.payments.GetBetweenDatesFunc = func(ctx context.Context, start, end time.Time) ([]bacs.Payment, error) {
				return nil, nil
			}
			f.transactions.GetBetweenDatesFunc = func(ctx context.Context, start, end time.Time) ([]bacs.InvoiceTransaction, error) {
				return []bacs.InvoiceTransaction{}, nil
			}

			res, err := f.service(t, true).Export(context.Background(), tt.exportType)
			require.Error(t, err)
			assert.ErrorIs(t, err, bacs.ErrNoData)
			assert.EqualError(t, err, tt.wantMsg)
			assert.Equal(t, StateFailed, res.State)
			assert.Empty(t, f.writer.calls)

			run := f.run(t, res.RunID)
			assert.Equal(t, runs.StatusFailed, run.Status)
			assert.Equal(t, tt.wantMsg, run.ErrorMessage)
		})
	}
}

func TestExport_SupplierSuccess(t *testing.T) {
	f := newFixture()

	res, err := f.service(t, false).Export(context.Background(), bacs.ExportTypeSupplier)
	require.NoError(t, err)

	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, 3, res.RowCount)
	require.Len(t, f.writer.calls, 1)

	call := f.writer.calls[0]
	assert.Equal(t, "Supplier_BACSExport.csv", call.fileName)
	assert.Equal(t, bacs.SupplierBacsHeader, call.header)
	for _, rec := range call.records {
		fields := rec.Fields()
		assert.Equal(t, "12345678", fields[1])
		assert.Contains(t, fields[5], "SONOVATE")
	}
	assert.Equal(t, runs.StatusSuccess, f.run(t, res.RunID).Status)
}

func TestExport_SupplierCustomFileName(t *testing.T) {
	f := newFixture()
	svc, err := NewService(
		Config{SupplierFileName: "suppliers-march.csv"},
		Dependencies{InvoiceTransactions: f.transactions, Candidates: f.candidates, Writer: f.writer},
		WithClock(func() time.Time { return fixedNow }),
	)
	require.NoError(t, err)

	res, err := svc.Export(context.Background(), bacs.ExportTypeSupplier)
	require.NoError(t, err)
	assert.Equal(t, "/exports/suppliers-march.csv", res.FilePath)
	assert.Empty(t, res.RunID, "runs are not recorded without a recorder")
}

func TestExport_SupplierUnresolvable(t *testing.T) {
	f := newFixture()
	f.transactions.GetBetweenDatesFunc = func(ctx context.Context, start, end time.Time) ([]bacs.InvoiceTransaction, error) {
		return []bacs.InvoiceTransaction{
			{SupplierID: "1", InvoiceID: "1", Gross: decimal.NewFromInt(1)},
			{SupplierID: "5", InvoiceID: "2", Gross: decimal.NewFromInt(2)},
		}, nil
	}

	res, err := f.service(t, false).Export(context.Background(), bacs.ExportTypeSupplier)
	assert.ErrorIs(t, err, bacs.ErrUnresolvablePayee)
	assert.Contains(t, err.Error(), `"5"`)
	assert.Equal(t, StateFailed, res.State)
	assert.Empty(t, f.writer.calls, "no file when a supplier cannot be resolved")
	assert.Equal(t, runs.StatusFailed, f.run(t, res.RunID).Status)
}

func TestExport_SourceError(t *testing.T) {
	f := newFixture()
	storeErr := errors.New("connection refused")
	f.transactions.GetBetweenDatesFunc = func(ctx context.Context, start, end time.Time) ([]bacs.InvoiceTransaction, error) {
		return nil, storeErr
	}

	res, err := f.service(t, false).Export(context.Background(), bacs.ExportTypeSupplier)
	assert.ErrorIs(t, err, storeErr)
	assert.Equal(t, StateFailed, res.State)
	assert.Empty(t, f.writer.calls)
}

func TestExport_WriterError(t *testing.T) {
	f := newFixture()
	f.writer.err = errors.New("read-only file system")

	res, err := f.service(t, false).Export(context.Background(), bacs.ExportTypeSupplier)
	assert.ErrorIs(t, err, f.writer.err)
	assert.Equal(t, StateFailed, res.State)
	assert.Empty(t, res.FilePath)
}

type failingRecorder struct {
	runs.Recorder
}

func (failingRecorder) StartRun(ctx context.Context, exportType string, start, end time.Time) (string, error) {
	return "", errors.New("quota exceeded")
}

func TestExport_RunStartFailureAbortsBeforeFetch(t *testing.T) {
	f := newFixture()
	svc, err := NewService(
		Config{},
		Dependencies{InvoiceTransactions: f.transactions, Candidates: f.candidates, Writer: f.writer, Runs: failingRecorder{}},
		WithClock(func() time.Time { return fixedNow }),
		WithLogger(logger.NewWithWriter(f.logs)),
	)
	require.NoError(t, err)

	res, err := svc.Export(context.Background(), bacs.ExportTypeSupplier)
	assert.ErrorContains(t, err, "quota exceeded")
	assert.Equal(t, StateFailed, res.State)
	assert.Zero(t, f.transactions.calls)
}

func TestExport_LogsStateTransitions(t *testing.T) {
	f := newFixture()

	_, err := f.service(t, false).Export(context.Background(), bacs.ExportTypeSupplier)
	require.NoError(t, err)

	logs := f.logs.String()
	for _, state := range []State{StateCategorySelected, StateFetched, StateBankDetailsResolved, StateAggregated, StateWritten, StateDone} {
		assert.Contains(t, logs, `"to":"`+state.String()+`"`)
	}
	assert.Contains(t, logs, `"export_type":"supplier"`)
	assert.Contains(t, logs, "Export completed")
}

func TestNewService_Validation(t *testing.T) {
	f := newFixture()

	_, err := NewService(Config{}, Dependencies{Candidates: f.candidates, Writer: f.writer})
	assert.Error(t, err)

	_, err = NewService(Config{EnableAgencyPayments: true}, Dependencies{
		InvoiceTransactions: f.transactions, Candidates: f.candidates, Writer: f.writer,
	})
	assert.Error(t, err, "agency repositories are needed when agency payments are enabled")

	svc, err := NewService(Config{}, Dependencies{InvoiceTransactions: f.transactions, Candidates: f.candidates, Writer: f.writer})
	require.NoError(t, err)
	assert.Equal(t, DefaultAgencyFileName, svc.cfg.AgencyFileName)
	assert.Equal(t, DefaultSupplierFileName, svc.cfg.SupplierFileName)
}
