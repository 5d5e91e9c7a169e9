package bigquery

import "cloud.google.com/go/bigquery"

// CandidateRow is one row of candidates: a supplier who is paid per invoice.
type CandidateRow struct {
	CandidateID string `bigquery:"candidate_id"` // REQUIRED

	AccountName   bigquery.NullString `bigquery:"account_name"`   // NULLABLE
	AccountNumber bigquery.NullString `bigquery:"account_number"` // NULLABLE
	SortCode      bigquery.NullString `bigquery:"sort_code"`      // NULLABLE

	UpdatedTS bigquery.NullTimestamp `bigquery:"updated_ts"` // NULLABLE
}

// AgencyRow is one row of agencies.
type AgencyRow struct {
	AgencyID string `bigquery:"agency_id"` // REQUIRED

	AccountName   bigquery.NullString `bigquery:"account_name"`   // NULLABLE
	AccountNumber bigquery.NullString `bigquery:"account_number"` // NULLABLE
	SortCode      bigquery.NullString `bigquery:"sort_code"`      // NULLABLE

	UpdatedTS bigquery.NullTimestamp `bigquery:"updated_ts"` // NULLABLE
}
