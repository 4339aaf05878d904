package schedule

import (
	"context"
	"time"

	"github.com/peantunes/sptrans-core/internal/models"
)

// CalendarSource provides calendar and exception rows for a service id.
// Implementations return nil (not an error) when no row exists.
type CalendarSource interface {
	Calendar(ctx context.Context, serviceID string) (*models.ServiceCalendar, error)
	Exception(ctx context.Context, serviceID string, date time.Time) (*models.ServiceCalendarException, error)
}

// Resolver decides whether a service operates on a given date, consulting
// weekly patterns and date-specific exceptions.
type Resolver struct {
	src CalendarSource
	// hasExceptions reflects whether the calendar_dates table exists in
	// the dataset. Detected once at construction, never re-checked.
	hasExceptions bool
}

// NewResolver creates a Resolver. hasExceptions should be the capability
// flag detected by the dataset layer at startup.
func NewResolver(src CalendarSource, hasExceptions bool) *Resolver {
	return &Resolver{src: src, hasExceptions: hasExceptions}
}

// IsServiceActive reports whether serviceID operates on date.
//
// An exception of type 1 activates the service for that date and type 2
// deactivates it, overriding the weekly pattern. Without an exception the
// weekly pattern + date range decides. Service ids with no calendar data at
// all are treated as always active: an unknown service is unrestricted
// rather than silenced.
func (r *Resolver) IsServiceActive(ctx context.Context, serviceID string, date time.Time) (bool, error) {
	if r.hasExceptions {
		ex, err := r.src.Exception(ctx, serviceID, date)
		if err != nil {
			return false, err
		}
		if ex != nil {
			switch ex.ExceptionType {
			case models.ExceptionServiceAdded:
				return true, nil
			case models.ExceptionServiceRemoved:
				return false, nil
			}
		}
	}

	cal, err := r.src.Calendar(ctx, serviceID)
	if err != nil {
		return false, err
	}
	if cal == nil {
		// Lenient default: a service id with no calendar data is
		// treated as unrestricted.
		return true, nil
	}

	if !cal.Weekdays[date.Weekday()] {
		return false, nil
	}

	day := truncateToDay(date)
	if !cal.StartDate.IsZero() && day.Before(truncateToDay(cal.StartDate)) {
		return false, nil
	}
	if !cal.EndDate.IsZero() && day.After(truncateToDay(cal.EndDate)) {
		return false, nil
	}

	return true, nil
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
