package bigquery

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/bacs-export/internal/bacs"
)

// GetCandidateByIDWithClient loads one candidate. Returns nil if no matching
// candidate is found.
func GetCandidateByIDWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, candidateID string) (*bacs.Payee, error) {
	id := strings.TrimSpace(candidateID)
	if id == "" {
		return nil, nil
	}

	q := client.Query(fmt.Sprintf(`
		SELECT
			candidate_id,
			account_name,
			account_number,
			sort_code,
			updated_ts
		FROM %s
		WHERE candidate_id = @candidate_id
		ORDER BY updated_ts DESC
		LIMIT 1
	`, ds.Table(candidatesTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "candidate_id", Value: id},
	}

	rows, err := readRows[CandidateRow](ctx, "GetCandidateByID", candidatesTable, q)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	return rows[0].ToPayee(), nil
}

// GetAgenciesByIDsWithClient loads every agency in ids with a single query.
// Ids without a row are absent from the result.
func GetAgenciesByIDsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, ids []string) (map[string]*bacs.Payee, error) {
	agencies := make(map[string]*bacs.Payee, len(ids))
	if len(ids) == 0 {
		return agencies, nil
	}

	q := client.Query(fmt.Sprintf(`
		SELECT
			agency_id,
			account_name,
			account_number,
			sort_code,
			updated_ts
		FROM %s
		WHERE agency_id IN UNNEST(@agency_ids)
	`, ds.Table(agenciesTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "agency_ids", Value: ids},
	}

	rows, err := readRows[AgencyRow](ctx, "GetAgenciesByIDs", agenciesTable, q)
	if err != nil {
		return nil, err
	}

	return latestAgencies(rows), nil
}

// latestAgencies keys rows by agency id, keeping the most recently updated row
// when an id appears more than once.
func latestAgencies(rows []AgencyRow) map[string]*bacs.Payee {
	agencies := make(map[string]*bacs.Payee, len(rows))
	latest := make(map[string]*AgencyRow, len(rows))
	for i := range rows {
		row := &rows[i]
		if prev, ok := latest[row.AgencyID]; ok && !newer(row.UpdatedTS, prev.UpdatedTS) {
			continue
		}
		latest[row.AgencyID] = row
		agencies[row.AgencyID] = row.ToPayee()
	}
	return agencies
}

func newer(a, b bigquery.NullTimestamp) bool {
	if !a.Valid {
		return false
	}
	if !b.Valid {
		return true
	}
	return a.Timestamp.After(b.Timestamp)
}
