package bacs

import (
	"context"
	"time"
)

// InvoiceTransactionRepository yields supplier invoice transactions for a date window.
// An empty window is not an error.
type InvoiceTransactionRepository interface {
	GetBetweenDates(ctx context.Context, start, end time.Time) ([]InvoiceTransaction, error)
}

// PaymentRepository yields agency payments for a date window.
// An empty window is not an error.
type PaymentRepository interface {
	GetBetweenDates(ctx context.Context, start, end time.Time) ([]Payment, error)
}

// CandidateRepository resolves one supplier/candidate at a time.
type CandidateRepository interface {
	// GetByID returns (nil, nil) when no candidate has the given id.
	GetByID(ctx context.Context, id string) (*Payee, error)
}

// AgencyRepository resolves many agencies in a single round trip.
type AgencyRepository interface {
	// GetMany returns the agencies that exist, keyed by id. Unknown ids are
	// simply absent from the map.
	GetMany(ctx context.Context, ids []string) (map[string]*Payee, error)
}
