package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
)

// InvoiceTransactionRow is one row of invoice_transactions.
type InvoiceTransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED
	SupplierID    string `bigquery:"supplier_id"`    // REQUIRED
	InvoiceID     string `bigquery:"invoice_id"`     // NULLABLE (empty string → "")

	Gross *big.Rat `bigquery:"gross"` // REQUIRED NUMERIC

	InvoiceDate bigquery.NullDate   `bigquery:"invoice_date"` // NULLABLE
	InvoiceRef  bigquery.NullString `bigquery:"invoice_ref"`  // NULLABLE

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED (default CURRENT_TIMESTAMP)
}

// PaymentRow is one row of payments.
type PaymentRow struct {
	PaymentID string `bigquery:"payment_id"` // REQUIRED
	AgencyID  string `bigquery:"agency_id"`  // REQUIRED

	Balance     *big.Rat   `bigquery:"balance"`      // REQUIRED NUMERIC
	PaymentDate civil.Date `bigquery:"payment_date"` // REQUIRED

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED (default CURRENT_TIMESTAMP)
}
