package bacs

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors
var (
	ErrNoExportType       = errors.New("no export type provided")
	ErrInvalidExportType  = errors.New("invalid BACS export type")
	ErrNoData             = errors.New("no data found")
	ErrUnresolvablePayee  = errors.New("could not load payee")
	ErrMissingBankDetails = errors.New("payee has no bank details")
)

// ErrorDateLayout is used for every date that appears in an error message.
const ErrorDateLayout = "02/01/2006"

// NoDataError reports an empty date-windowed fetch.
type NoDataError struct {
	ExportType ExportType
	Start      time.Time
	End        time.Time
}

func (e *NoDataError) Error() string {
	what := "agency payments"
	if e.ExportType == ExportTypeSupplier {
		what = "supplier invoice transactions"
	}
	return fmt.Sprintf("no %s found between dates %s to %s",
		what, e.Start.Format(ErrorDateLayout), e.End.Format(ErrorDateLayout))
}

func (e *NoDataError) Unwrap() error { return ErrNoData }

// UnresolvablePayeeError names a supplier id that has no candidate record.
type UnresolvablePayeeError struct {
	ID string
}

func (e *UnresolvablePayeeError) Error() string {
	return fmt.Sprintf("could not load candidate with id %q", e.ID)
}

func (e *UnresolvablePayeeError) Unwrap() error { return ErrUnresolvablePayee }

// MissingBankDetailsError names a resolved candidate that cannot be paid.
type MissingBankDetailsError struct {
	ID string
}

func (e *MissingBankDetailsError) Error() string {
	return fmt.Sprintf("candidate %q has no bank details", e.ID)
}

func (e *MissingBankDetailsError) Unwrap() error { return ErrMissingBankDetails }
