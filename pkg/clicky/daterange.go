package clicky

import (
	"fmt"
	"math"
	"time"
)

const (
	// DateLayout is the provider's calendar date format.
	DateLayout = "2006-01-02"
	// MaxRangeDays is the widest span the provider accepts in one query.
	MaxRangeDays = 31
)

// DateRange is an inclusive pair of calendar dates in DateLayout.
type DateRange struct {
	StartDate string
	EndDate   string
}

// NewDateRange returns a DateRange for the given dates.
func NewDateRange(start, end string) DateRange {
	return DateRange{StartDate: start, EndDate: end}
}

// Validate checks the range against provider limits.
func (r DateRange) Validate() error {
	start, err := time.Parse(DateLayout, r.StartDate)
	if err != nil {
		return &ValidationError{Field: "start_date", Message: fmt.Sprintf("%q is not a YYYY-MM-DD date", r.StartDate)}
	}
	end, err := time.Parse(DateLayout, r.EndDate)
	if err != nil {
		return &ValidationError{Field: "end_date", Message: fmt.Sprintf("%q is not a YYYY-MM-DD date", r.EndDate)}
	}

	diff := end.Sub(start)
	if diff < 0 {
		diff = -diff
	}
	days := int(math.Ceil(diff.Hours() / 24))
	if days > MaxRangeDays {
		return &ValidationError{Message: fmt.Sprintf("Date range cannot exceed %d days as per Clicky API limits", MaxRangeDays)}
	}

	if start.After(end) {
		return &ValidationError{Message: "Start date must be before or equal to end date"}
	}

	return nil
}

// String formats the range as the provider's date parameter.
func (r DateRange) String() string {
	return r.StartDate + "," + r.EndDate
}
