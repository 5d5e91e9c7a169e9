package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/bacs-export/internal/bacs"
)

// QueryInvoiceTransactionsByDateRangeWithClient returns the invoice transactions
// created inside [startDate, endDate], oldest first.
func QueryInvoiceTransactionsByDateRangeWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, startDate, endDate time.Time) ([]bacs.InvoiceTransaction, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			transaction_id,
			supplier_id,
			invoice_id,
			gross,
			invoice_date,
			invoice_ref,
			created_ts
		FROM %s
		WHERE created_ts >= @start_ts
		  AND created_ts <= @end_ts
		ORDER BY created_ts, transaction_id
	`, ds.Table(invoiceTransactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "start_ts", Value: startDate},
		{Name: "end_ts", Value: endDate},
	}

	rows, err := readRows[InvoiceTransactionRow](ctx, "QueryInvoiceTransactionsByDateRange", invoiceTransactionsTable, q)
	if err != nil {
		return nil, err
	}

	txs := make([]bacs.InvoiceTransaction, 0, len(rows))
	for i := range rows {
		tx, err := rows[i].ToInvoiceTransaction()
		if err != nil {
			return nil, fmt.Errorf("QueryInvoiceTransactionsByDateRange: %w", err)
		}
		txs = append(txs, tx)
	}

	return txs, nil
}

// QueryPaymentsByDateRangeWithClient returns the agency payments dated inside
// [startDate, endDate] (calendar dates), oldest first.
func QueryPaymentsByDateRangeWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, startDate, endDate time.Time) ([]bacs.Payment, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			payment_id,
			agency_id,
			balance,
			payment_date,
			created_ts
		FROM %s
		WHERE payment_date >= @start_date
		  AND payment_date <= @end_date
		ORDER BY payment_date, payment_id
	`, ds.Table(paymentsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "start_date", Value: startDate.Format(dateFormat)},
		{Name: "end_date", Value: endDate.Format(dateFormat)},
	}

	rows, err := readRows[PaymentRow](ctx, "QueryPaymentsByDateRange", paymentsTable, q)
	if err != nil {
		return nil, err
	}

	payments := make([]bacs.Payment, 0, len(rows))
	for i := range rows {
		p, err := rows[i].ToPayment()
		if err != nil {
			return nil, fmt.Errorf("QueryPaymentsByDateRange: %w", err)
		}
		payments = append(payments, p)
	}

	return payments, nil
}
