package bacs

import (
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// ExportType selects which payee category an export run covers.
type ExportType int

const (
	// ExportTypeNone is the zero value and is always rejected.
	ExportTypeNone ExportType = iota
	// ExportTypeAgency exports agency payments.
	ExportTypeAgency
	// ExportTypeSupplier exports supplier (candidate) invoice transactions.
	ExportTypeSupplier
)

func (t ExportType) String() string {
	switch t {
	case ExportTypeNone:
		return "none"
	case ExportTypeAgency:
		return "agency"
	case ExportTypeSupplier:
		return "supplier"
	default:
		return fmt.Sprintf("ExportType(%d)", int(t))
	}
}

// ParseExportType maps a CLI selector to an ExportType.
// An empty selector or "none" yields ExportTypeNone without error so that the
// orchestrator is the single place that rejects it.
func ParseExportType(s string) (ExportType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return ExportTypeNone, nil
	case "agency":
		return ExportTypeAgency, nil
	case "supplier":
		return ExportTypeSupplier, nil
	default:
		return ExportTypeNone, fmt.Errorf("%w: %q", ErrInvalidExportType, s)
	}
}

// PayeeKind distinguishes the two disjoint payee populations.
type PayeeKind string

const (
	PayeeKindCandidate PayeeKind = "CANDIDATE"
	PayeeKindAgency    PayeeKind = "AGENCY"
)

// InvoiceTransaction is one payable line item for a supplier/candidate.
type InvoiceTransaction struct {
	SupplierID  string
	InvoiceID   string
	Gross       decimal.Decimal
	InvoiceDate *civil.Date // nil when the store has no date
	InvoiceRef  string      // empty when absent
}

// Payment is one net agency payment.
type Payment struct {
	AgencyID    string
	Balance     decimal.Decimal
	PaymentDate civil.Date
}

// BankDetails are the banking coordinates a payment is sent to.
type BankDetails struct {
	AccountName   string
	AccountNumber string
	SortCode      string
}

// Payee is a candidate or agency entitled to receive payments.
type Payee struct {
	ID          string
	Kind        PayeeKind
	BankDetails *BankDetails // nil when the payee has no bank details on file
}

// HasBankDetails reports whether the payee can be paid.
func (p *Payee) HasBankDetails() bool {
	return p != nil && p.BankDetails != nil
}

// AgencyBacsHeader is the column order of the agency export file.
var AgencyBacsHeader = []string{"AccountName", "AccountNumber", "SortCode", "Amount", "Ref"}

// SupplierBacsHeader is the column order of the supplier export file.
var SupplierBacsHeader = []string{"AccountName", "AccountNumber", "SortCode", "PaymentAmount", "InvoiceReference", "PaymentReference"}

// FormatAmount renders a at two decimal places unless that would round it;
// sub-penny amounts are written with all their significant digits.
func FormatAmount(a decimal.Decimal) string {
	if a.Equal(a.Round(2)) {
		return a.StringFixed(2)
	}
	return a.String()
}

// AgencyBacsRow is one line of the agency export file.
type AgencyBacsRow struct {
	AccountName   string
	AccountNumber string
	SortCode      string
	Amount        decimal.Decimal
	Ref           string
}

// Fields returns the row values in AgencyBacsHeader order.
func (r AgencyBacsRow) Fields() []string {
	return []string{r.AccountName, r.AccountNumber, r.SortCode, FormatAmount(r.Amount), r.Ref}
}

// SupplierBacsRow is one line of the supplier export file.
type SupplierBacsRow struct {
	AccountName      string
	AccountNumber    string
	SortCode         string
	PaymentAmount    decimal.Decimal
	InvoiceReference string
	PaymentReference string
}

// Fields returns the row values in SupplierBacsHeader order.
func (r SupplierBacsRow) Fields() []string {
	return []string{
		r.AccountName,
		r.AccountNumber,
		r.SortCode,
		FormatAmount(r.PaymentAmount),
		r.InvoiceReference,
		r.PaymentReference,
	}
}
