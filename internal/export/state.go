package export

import (
	"fmt"
	"time"
)

// State is a step of one export run.
type State int

const (
	StateIdle State = iota
	StateCategorySelected
	StateFetched
	StateBankDetailsResolved
	StateAggregated
	StateWritten
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCategorySelected:
		return "category_selected"
	case StateFetched:
		return "fetched"
	case StateBankDetailsResolved:
		return "bank_details_resolved"
	case StateAggregated:
		return "aggregated"
	case StateWritten:
		return "written"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Window returns the export date window ending at now: from the same instant
// one calendar month earlier (clamped to the end of that month) up to now.
func Window(now time.Time) (start, end time.Time) {
	return minusOneMonth(now), now
}

func minusOneMonth(t time.Time) time.Time {
	year, month, day := t.Date()
	prev := time.Date(year, month-1, 1, 0, 0, 0, 0, t.Location())

	if last := daysIn(prev.Year(), prev.Month(), t.Location()); day > last {
		day = last
	}

	return time.Date(prev.Year(), prev.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
