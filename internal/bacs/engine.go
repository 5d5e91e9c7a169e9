package bacs

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

const (
	// DefaultNotAvailable replaces a blank invoice reference.
	DefaultNotAvailable = "NOT AVAILABLE"

	// DefaultReferencePrefix starts every payment reference.
	DefaultReferencePrefix = "SONOVATE"

	// ReferenceDateLayout is ddMMyyyy.
	ReferenceDateLayout = "02012006"
)

// defaultInvoiceDate stands in for a missing invoice date.
var defaultInvoiceDate = civil.Date{Year: 1, Month: time.January, Day: 1}

// Engine turns raw transactions and payments into export rows.
// The zero value uses the default sentinel and prefix.
type Engine struct {
	NotAvailable    string
	ReferencePrefix string
}

// NewEngine returns an Engine with the default sentinel and prefix.
func NewEngine() Engine {
	return Engine{
		NotAvailable:    DefaultNotAvailable,
		ReferencePrefix: DefaultReferencePrefix,
	}
}

func (e Engine) notAvailable() string {
	if e.NotAvailable == "" {
		return DefaultNotAvailable
	}
	return e.NotAvailable
}

func (e Engine) prefix() string {
	if e.ReferencePrefix == "" {
		return DefaultReferencePrefix
	}
	return e.ReferencePrefix
}

// FormatReference renders prefix followed by the date as ddMMyyyy.
func FormatReference(prefix string, d civil.Date) string {
	return prefix + d.In(time.UTC).Format(ReferenceDateLayout)
}

// DistinctAgencyIDs returns each agency id once, in first-occurrence order.
func DistinctAgencyIDs(payments []Payment) []string {
	seen := make(map[string]struct{}, len(payments))
	ids := make([]string, 0, len(payments))
	for _, p := range payments {
		if _, ok := seen[p.AgencyID]; ok {
			continue
		}
		seen[p.AgencyID] = struct{}{}
		ids = append(ids, p.AgencyID)
	}
	return ids
}

// BuildAgencyPayments emits one row per payment whose agency was found and
// has bank details. Payments are never aggregated and keep their input order.
func (e Engine) BuildAgencyPayments(payments []Payment, agencies map[string]*Payee) []AgencyBacsRow {
	rows := make([]AgencyBacsRow, 0, len(payments))
	for _, p := range payments {
		agency := agencies[p.AgencyID]
		if !agency.HasBankDetails() {
			continue
		}
		bank := agency.BankDetails
		rows = append(rows, AgencyBacsRow{
			AccountName:   bank.AccountName,
			AccountNumber: bank.AccountNumber,
			SortCode:      bank.SortCode,
			Amount:        p.Balance,
			Ref:           FormatReference(e.prefix(), p.PaymentDate),
		})
	}
	return rows
}

// TransactionGroup holds the transactions sharing one (invoice, supplier) pair.
type TransactionGroup struct {
	InvoiceID    string
	SupplierID   string
	Transactions []InvoiceTransaction
}

// Total is the exact sum of the group's gross amounts.
func (g TransactionGroup) Total() decimal.Decimal {
	total := decimal.Zero
	for _, tx := range g.Transactions {
		total = total.Add(tx.Gross)
	}
	return total
}

type groupKey struct {
	invoiceID  string
	supplierID string
}

// GroupInvoiceTransactions groups by (InvoiceID, SupplierID). Groups appear in
// the order their key is first seen; members keep input order. An empty
// InvoiceID is a key like any other.
func GroupInvoiceTransactions(txs []InvoiceTransaction) []TransactionGroup {
	index := make(map[groupKey]int)
	var groups []TransactionGroup
	for _, tx := range txs {
		key := groupKey{invoiceID: tx.InvoiceID, supplierID: tx.SupplierID}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, TransactionGroup{InvoiceID: tx.InvoiceID, SupplierID: tx.SupplierID})
		}
		groups[i].Transactions = append(groups[i].Transactions, tx)
	}
	return groups
}

// BuildSupplierPayments groups the transactions and emits one row per group.
// Each group's supplier is resolved through candidates; the first group that
// cannot be resolved aborts the whole batch and no rows are returned.
func (e Engine) BuildSupplierPayments(ctx context.Context, txs []InvoiceTransaction, candidates CandidateRepository) ([]SupplierBacsRow, error) {
	groups := GroupInvoiceTransactions(txs)
	rows := make([]SupplierBacsRow, 0, len(groups))

	for _, g := range groups {
		candidate, err := candidates.GetByID(ctx, g.SupplierID)
		if err != nil {
			return nil, fmt.Errorf("BuildSupplierPayments: loading candidate %q: %w", g.SupplierID, err)
		}
		if candidate == nil {
			return nil, &UnresolvablePayeeError{ID: g.SupplierID}
		}
		if !candidate.HasBankDetails() {
			return nil, &MissingBankDetailsError{ID: g.SupplierID}
		}

		rows = append(rows, e.supplierRow(g, candidate.BankDetails))
	}

	return rows, nil
}

func (e Engine) supplierRow(g TransactionGroup, bank *BankDetails) SupplierBacsRow {
	first := g.Transactions[0]

	invoiceRef := first.InvoiceRef
	if invoiceRef == "" {
		invoiceRef = e.notAvailable()
	}

	invoiceDate := defaultInvoiceDate
	if first.InvoiceDate != nil {
		invoiceDate = *first.InvoiceDate
	}

	return SupplierBacsRow{
		AccountName:      bank.AccountName,
		AccountNumber:    bank.AccountNumber,
		SortCode:         bank.SortCode,
		PaymentAmount:    g.Total(),
		InvoiceReference: invoiceRef,
		PaymentReference: FormatReference(e.prefix(), invoiceDate),
	}
}
