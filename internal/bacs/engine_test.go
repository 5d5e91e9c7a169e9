package bacs

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockCandidateRepository is a function-field mock of CandidateRepository
type mockCandidateRepository struct {
	GetByIDFunc func(ctx context.Context, id string) (*Payee, error)
	calls       []string
}

func (m *mockCandidateRepository) GetByID(ctx context.Context, id string) (*Payee, error) {
	m.calls = append(m.calls, id)
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, nil
}

func candidatesByID(payees ...*Payee) *mockCandidateRepository {
	byID := make(map[string]*Payee, len(payees))
	for _, p := range payees {
		byID[p.ID] = p
	}
	return &mockCandidateRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*Payee, error) {
			return byID[id], nil
		},
	}
}

func date(y int, m time.Month, d int) *civil.Date {
	return &civil.Date{Year: y, Month: m, Day: d}
}

func amount(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

var (
	testCandidate = &Payee{
		ID:          "1",
		Kind:        PayeeKindCandidate,
		BankDetails: &BankDetails{AccountName: "test", AccountNumber: "12345678", SortCode: "000000"},
	}
	otherCandidate = &Payee{
		ID:          "2",
		Kind:        PayeeKindCandidate,
		BankDetails: &BankDetails{AccountName: "fives", AccountNumber: "55555555", SortCode: "555555"},
	}
)

func testTransactions(t *testing.T) []InvoiceTransaction {
	return []InvoiceTransaction{
		{SupplierID: "1", InvoiceID: "1", Gross: amount(t, "123.45"), InvoiceDate: date(2021, time.February, 25), InvoiceRef: "TestRef"},
		{SupplierID: "1", InvoiceID: "2", Gross: amount(t, "45678.10"), InvoiceDate: date(2021, time.March, 26), InvoiceRef: "TestRef2"},
		{SupplierID: "1", InvoiceID: "3", Gross: amount(t, "777777.77"), InvoiceDate: date(2021, time.March, 27), InvoiceRef: "TestRef3"},
	}
}

func TestBuildSupplierPayments_ValidSupplier_OneRowPerInvoice(t *testing.T) {
	repo := candidatesByID(testCandidate, otherCandidate)

	rows, err := NewEngine().BuildSupplierPayments(context.Background(), testTransactions(t), repo)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	wantRefs := []string{"SONOVATE25022021", "SONOVATE26032021", "SONOVATE27032021"}
	for i, row := range rows {
		assert.Equal(t, "12345678", row.AccountNumber)
		assert.Equal(t, "000000", row.SortCode)
		assert.Equal(t, wantRefs[i], row.PaymentReference)
	}
	assert.Equal(t, []string{"TestRef", "TestRef2", "TestRef3"},
		[]string{rows[0].InvoiceReference, rows[1].InvoiceReference, rows[2].InvoiceReference})
	assert.Equal(t, []string{"1", "1", "1"}, repo.calls, "one lookup per group")
}

func TestBuildSupplierPayments_MixedSuppliers(t *testing.T) {
	txs := testTransactions(t)
	txs[1].SupplierID = "2"

	rows, err := NewEngine().BuildSupplierPayments(context.Background(), txs, candidatesByID(testCandidate, otherCandidate))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "12345678", rows[0].AccountNumber)
	assert.Equal(t, "55555555", rows[1].AccountNumber)
	assert.Equal(t, "12345678", rows[2].AccountNumber)
}

func TestBuildSupplierPayments_SameInvoice_SumsIntoOneRow(t *testing.T) {
	txs := testTransactions(t)
	for i := range txs {
		txs[i].InvoiceID = "1"
	}

	rows, err := NewEngine().BuildSupplierPayments(context.Background(), txs, candidatesByID(testCandidate))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.True(t, rows[0].PaymentAmount.Equal(amount(t, "778579.32")),
		"got %s", rows[0].PaymentAmount)
	assert.Equal(t, "TestRef", rows[0].InvoiceReference)
	assert.Equal(t, "SONOVATE25022021", rows[0].PaymentReference)
}

func TestBuildSupplierPayments_UnresolvableSupplier(t *testing.T) {
	txs := testTransactions(t)
	txs[0].SupplierID = "5"

	rows, err := NewEngine().BuildSupplierPayments(context.Background(), txs, candidatesByID(testCandidate))
	require.Error(t, err)
	assert.Nil(t, rows)
	assert.ErrorIs(t, err, ErrUnresolvablePayee)

	var unresolved *UnresolvablePayeeError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, "5", unresolved.ID)
	assert.Contains(t, err.Error(), `"5"`)
}

func TestBuildSupplierPayments_CandidateWithoutBankDetails(t *testing.T) {
	noBank := &Payee{ID: "1", Kind: PayeeKindCandidate}

	rows, err := NewEngine().BuildSupplierPayments(context.Background(), testTransactions(t), candidatesByID(noBank))
	assert.Nil(t, rows)
	assert.ErrorIs(t, err, ErrMissingBankDetails)
}

func TestBuildSupplierPayments_LookupErrorIsWrapped(t *testing.T) {
	storeErr := errors.New("store unavailable")
	repo := &mockCandidateRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*Payee, error) {
			return nil, storeErr
		},
	}

	_, err := NewEngine().BuildSupplierPayments(context.Background(), testTransactions(t), repo)
	assert.ErrorIs(t, err, storeErr)
	assert.Len(t, repo.calls, 1, "lookup stops at the first failure")
}

func TestBuildSupplierPayments_BlankInvoiceIDStillGroups(t *testing.T) {
	txs := testTransactions(t)
	txs[0].InvoiceID = ""

	rows, err := NewEngine().BuildSupplierPayments(context.Background(), txs, candidatesByID(testCandidate))
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestBuildSupplierPayments_BlankInvoiceRef(t *testing.T) {
	txs := testTransactions(t)
	txs[0].InvoiceRef = ""

	rows, err := NewEngine().BuildSupplierPayments(context.Background(), txs, candidatesByID(testCandidate))
	require.NoError(t, err)

	count := 0
	for _, r := range rows {
		if r.InvoiceReference == DefaultNotAvailable {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.Equal(t, "NOT AVAILABLE", rows[0].InvoiceReference)
}

func TestBuildSupplierPayments_OnlyFirstTransactionDrivesReferences(t *testing.T) {
	txs := testTransactions(t)
	txs[1].InvoiceID = "1"
	txs[0].InvoiceRef = ""
	txs[0].InvoiceDate = nil

	rows, err := NewEngine().BuildSupplierPayments(context.Background(), txs, candidatesByID(testCandidate))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "NOT AVAILABLE", rows[0].InvoiceReference)
	assert.Equal(t, "SONOVATE01010001", rows[0].PaymentReference)
	assert.True(t, rows[0].PaymentAmount.Equal(amount(t, "45801.55")))
}

func TestBuildSupplierPayments_CustomSentinels(t *testing.T) {
	txs := testTransactions(t)[:1]
	txs[0].InvoiceRef = ""

	engine := Engine{NotAvailable: "N/A", ReferencePrefix: "ACME"}
	rows, err := engine.BuildSupplierPayments(context.Background(), txs, candidatesByID(testCandidate))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, "N/A", rows[0].InvoiceReference)
	assert.Equal(t, "ACME25022021", rows[0].PaymentReference)
}

func TestGroupInvoiceTransactions(t *testing.T) {
	tx := func(invoice, supplier, gross string) InvoiceTransaction {
		return InvoiceTransaction{InvoiceID: invoice, SupplierID: supplier, Gross: amount(t, gross)}
	}

	tests := []struct {
		name       string
		input      []InvoiceTransaction
		wantKeys   [][2]string
		wantTotals []string
	}{
		{
			name:       "empty input",
			input:      nil,
			wantKeys:   nil,
			wantTotals: nil,
		},
		{
			name:       "same invoice different suppliers stay apart",
			input:      []InvoiceTransaction{tx("A", "1", "1.00"), tx("A", "2", "2.00")},
			wantKeys:   [][2]string{{"A", "1"}, {"A", "2"}},
			wantTotals: []string{"1", "2"},
		},
		{
			name:       "first occurrence order",
			input:      []InvoiceTransaction{tx("B", "1", "0.10"), tx("A", "1", "1.00"), tx("B", "1", "0.20")},
			wantKeys:   [][2]string{{"B", "1"}, {"A", "1"}},
			wantTotals: []string{"0.3", "1"},
		},
		{
			name:       "empty invoice id is a key",
			input:      []InvoiceTransaction{tx("", "1", "5"), tx("", "1", "5")},
			wantKeys:   [][2]string{{"", "1"}},
			wantTotals: []string{"10"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groups := GroupInvoiceTransactions(tt.input)
			require.Len(t, groups, len(tt.wantKeys))
			for i, g := range groups {
				assert.Equal(t, tt.wantKeys[i], [2]string{g.InvoiceID, g.SupplierID})
				assert.True(t, g.Total().Equal(amount(t, tt.wantTotals[i])),
					"group %d total = %s, want %s", i, g.Total(), tt.wantTotals[i])
			}
		})
	}
}

func TestGroupInvoiceTransactions_SumMatchesInput(t *testing.T) {
	var txs []InvoiceTransaction
	want := decimal.Zero
	for i := 0; i < 100; i++ {
		g := decimal.New(int64(i*7+1), -2) // 0.01, 0.08, ...
		want = want.Add(g)
		txs = append(txs, InvoiceTransaction{InvoiceID: "X", SupplierID: "1", Gross: g})
	}

	groups := GroupInvoiceTransactions(txs)
	require.Len(t, groups, 1)
	assert.True(t, groups[0].Total().Equal(want))
	assert.Len(t, groups[0].Transactions, 100)
}

func TestBuildAgencyPayments(t *testing.T) {
	agencies := map[string]*Payee{
		"1": {ID: "1", Kind: PayeeKindAgency, BankDetails: &BankDetails{AccountName: "agency one", AccountNumber: "11111111", SortCode: "111111"}},
		"2": {ID: "2", Kind: PayeeKindAgency},
		"3": {ID: "3", Kind: PayeeKindAgency, BankDetails: &BankDetails{AccountName: "agency three", AccountNumber: "33333333", SortCode: "333333"}},
	}
	payments := []Payment{
		{AgencyID: "3", Balance: amount(t, "10.00"), PaymentDate: civil.Date{Year: 2021, Month: time.March, Day: 25}},
		{AgencyID: "2", Balance: amount(t, "20.00"), PaymentDate: civil.Date{Year: 2021, Month: time.March, Day: 25}},
		{AgencyID: "9", Balance: amount(t, "30.00"), PaymentDate: civil.Date{Year: 2021, Month: time.March, Day: 25}},
		{AgencyID: "1", Balance: amount(t, "123.45"), PaymentDate: civil.Date{Year: 2021, Month: time.April, Day: 1}},
		{AgencyID: "3", Balance: amount(t, "5.55"), PaymentDate: civil.Date{Year: 2021, Month: time.April, Day: 2}},
	}

	rows := NewEngine().BuildAgencyPayments(payments, agencies)
	require.Len(t, rows, 3, "agency without bank details and unknown agency are dropped")

	assert.Equal(t, "33333333", rows[0].AccountNumber)
	assert.Equal(t, "SONOVATE25032021", rows[0].Ref)
	assert.Equal(t, "11111111", rows[1].AccountNumber)
	assert.True(t, rows[1].Amount.Equal(amount(t, "123.45")))
	assert.Equal(t, "SONOVATE01042021", rows[1].Ref)
	assert.Equal(t, "33333333", rows[2].AccountNumber, "payments for one agency are not aggregated")
	assert.True(t, rows[2].Amount.Equal(amount(t, "5.55")))
}

func TestBuildAgencyPayments_NoAgencies(t *testing.T) {
	payments := []Payment{{AgencyID: "1", Balance: decimal.NewFromInt(1)}}
	assert.Empty(t, NewEngine().BuildAgencyPayments(payments, nil))
}

func TestDistinctAgencyIDs(t *testing.T) {
	payments := []Payment{{AgencyID: "b"}, {AgencyID: "a"}, {AgencyID: "b"}, {AgencyID: "c"}, {AgencyID: "a"}}
	assert.Equal(t, []string{"b", "a", "c"}, DistinctAgencyIDs(payments))
}

func TestFormatReference(t *testing.T) {
	tests := []struct {
		date civil.Date
		want string
	}{
		{civil.Date{Year: 2021, Month: time.February, Day: 25}, "SONOVATE25022021"},
		{civil.Date{Year: 2024, Month: time.December, Day: 1}, "SONOVATE01122024"},
		{defaultInvoiceDate, "SONOVATE01010001"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatReference(DefaultReferencePrefix, tt.date))
		})
	}
}
