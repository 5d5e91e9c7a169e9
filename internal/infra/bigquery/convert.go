package bigquery

import (
	"fmt"
	"math/big"
	"strings"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/bacs-export/internal/bacs"
	"github.com/shopspring/decimal"
)

// numericScale is the fractional precision of a BigQuery NUMERIC.
const numericScale = 9

// ratToDecimal converts a NUMERIC value without loss.
func ratToDecimal(r *big.Rat) (decimal.Decimal, error) {
	if r == nil {
		return decimal.Zero, fmt.Errorf("ratToDecimal: NULL numeric")
	}
	d, err := decimal.NewFromString(r.FloatString(numericScale))
	if err != nil {
		return decimal.Zero, fmt.Errorf("ratToDecimal: %w", err)
	}
	return d, nil
}

func nullDatePtr(d bigquery.NullDate) *civil.Date {
	if !d.Valid {
		return nil
	}
	date := d.Date
	return &date
}

// bankDetails returns nil unless both account number and sort code are present.
func bankDetails(name, number, sortCode bigquery.NullString) *bacs.BankDetails {
	accountNumber := strings.TrimSpace(number.StringVal)
	code := strings.TrimSpace(sortCode.StringVal)
	if !number.Valid || !sortCode.Valid || accountNumber == "" || code == "" {
		return nil
	}
	return &bacs.BankDetails{
		AccountName:   strings.TrimSpace(name.StringVal),
		AccountNumber: accountNumber,
		SortCode:      code,
	}
}

// ToInvoiceTransaction maps the row onto the domain type.
func (r *InvoiceTransactionRow) ToInvoiceTransaction() (bacs.InvoiceTransaction, error) {
	gross, err := ratToDecimal(r.Gross)
	if err != nil {
		return bacs.InvoiceTransaction{}, fmt.Errorf("transaction %s gross: %w", r.TransactionID, err)
	}
	return bacs.InvoiceTransaction{
		SupplierID:  r.SupplierID,
		InvoiceID:   r.InvoiceID,
		Gross:       gross,
		InvoiceDate: nullDatePtr(r.InvoiceDate),
		InvoiceRef:  r.InvoiceRef.StringVal,
	}, nil
}

// ToPayment maps the row onto the domain type.
func (r *PaymentRow) ToPayment() (bacs.Payment, error) {
	balance, err := ratToDecimal(r.Balance)
	if err != nil {
		return bacs.Payment{}, fmt.Errorf("payment %s balance: %w", r.PaymentID, err)
	}
	return bacs.Payment{
		AgencyID:    r.AgencyID,
		Balance:     balance,
		PaymentDate: r.PaymentDate,
	}, nil
}

func (r *CandidateRow) ToPayee() *bacs.Payee {
	return &bacs.Payee{
		ID:          r.CandidateID,
		Kind:        bacs.PayeeKindCandidate,
		BankDetails: bankDetails(r.AccountName, r.AccountNumber, r.SortCode),
	}
}

func (r *AgencyRow) ToPayee() *bacs.Payee {
	return &bacs.Payee{
		ID:          r.AgencyID,
		Kind:        bacs.PayeeKindAgency,
		BankDetails: bankDetails(r.AccountName, r.AccountNumber, r.SortCode),
	}
}
