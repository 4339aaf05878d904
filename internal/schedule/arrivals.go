package schedule

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/peantunes/sptrans-core/internal/gtfs"
	"github.com/peantunes/sptrans-core/internal/models"
)

const (
	// Queries before 06:00 also consider the previous service day, so
	// trips running past 24:00:00 are still found.
	overnightCutoffSecs = 6 * 3600

	dateLayout = "2006-01-02"
)

// WindowSource provides the scheduling window rows for a stop: every
// frequency definition of every trip serving the stop, projected onto the
// stop's offset from the trip's first stop time.
type WindowSource interface {
	FrequencyWindows(ctx context.Context, stopID string) ([]models.FrequencyWindow, error)
}

// ServiceResolver decides whether a service id operates on a date
type ServiceResolver interface {
	IsServiceActive(ctx context.Context, serviceID string, date time.Time) (bool, error)
}

// Calculator computes upcoming frequency-based arrivals at a stop
type Calculator struct {
	src      WindowSource
	services ServiceResolver
	loc      *time.Location
	now      func() time.Time
}

// NewCalculator creates a Calculator. loc is the agency's fixed timezone,
// used when the caller supplies no query time or date.
func NewCalculator(src WindowSource, services ServiceResolver, loc *time.Location) *Calculator {
	if loc == nil {
		loc = time.UTC
	}
	return &Calculator{
		src:      src,
		services: services,
		loc:      loc,
		now:      time.Now,
	}
}

// NextArrivals computes the next scheduled arrivals at stopID, ordered by
// wait time, then arrival time, then route short name.
//
// timeStr ("HH:MM:SS") and dateStr ("YYYY-MM-DD") default to the current
// wall clock in the service timezone. limit <= 0 and unparseable time or
// date inputs yield an empty result rather than an error; only dataset
// failures propagate.
func (c *Calculator) NextArrivals(ctx context.Context, stopID, timeStr, dateStr string, limit int) ([]models.Arrival, error) {
	if limit <= 0 {
		return []models.Arrival{}, nil
	}

	now := c.now().In(c.loc)

	querySecs := now.Hour()*3600 + now.Minute()*60 + now.Second()
	if timeStr != "" {
		parsed, err := gtfs.ParseTimeToSeconds(timeStr)
		if err != nil {
			return []models.Arrival{}, nil
		}
		querySecs = parsed
	}

	date := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, c.loc)
	if dateStr != "" {
		parsed, err := time.ParseInLocation(dateLayout, dateStr, c.loc)
		if err != nil {
			return []models.Arrival{}, nil
		}
		date = parsed
	}

	arrivals, err := c.collect(ctx, stopID, querySecs, 0, date, limit)
	if err != nil {
		return nil, err
	}

	// Overnight rule: early-morning queries re-run against yesterday's
	// service day with the clock shifted past 24:00.
	if querySecs < overnightCutoffSecs {
		prev, err := c.collect(ctx, stopID, querySecs+gtfs.SecondsPerDay, -gtfs.SecondsPerDay, date.AddDate(0, 0, -1), limit)
		if err != nil {
			return nil, err
		}
		arrivals = append(arrivals, prev...)
	}

	arrivals = dedupeArrivals(arrivals)

	sort.SliceStable(arrivals, func(i, j int) bool {
		a, b := arrivals[i], arrivals[j]
		if a.WaitMins != b.WaitMins {
			return a.WaitMins < b.WaitMins
		}
		if a.ArrivalSecs != b.ArrivalSecs {
			return a.ArrivalSecs < b.ArrivalSecs
		}
		return a.RouteShortName < b.RouteShortName
	})

	if len(arrivals) > limit {
		arrivals = arrivals[:limit]
	}
	if arrivals == nil {
		arrivals = []models.Arrival{}
	}
	return arrivals, nil
}

// collect computes arrivals for a single service day. querySecs is on that
// day's clock (shifted past 24:00 for the previous-day pass) and normShift
// converts computed occurrence times back onto the original query day.
func (c *Calculator) collect(ctx context.Context, stopID string, querySecs, normShift int, date time.Time, limit int) ([]models.Arrival, error) {
	windows, err := c.src.FrequencyWindows(ctx, stopID)
	if err != nil {
		return nil, fmt.Errorf("loading frequency windows for stop %s: %w", stopID, err)
	}

	var arrivals []models.Arrival
	for _, w := range windows {
		if w.HeadwaySecs <= 0 {
			continue
		}

		active, err := c.services.IsServiceActive(ctx, w.ServiceID, date)
		if err != nil {
			return nil, err
		}
		if !active {
			continue
		}

		// Project the frequency window onto this stop's position
		// within the trip.
		windowStart := w.StartSecs + w.StopOffsetSecs
		windowEnd := w.EndSecs + w.StopOffsetSecs
		if windowEnd < querySecs {
			continue
		}

		occurrence := windowStart
		if querySecs > windowStart {
			steps := (querySecs - windowStart + w.HeadwaySecs - 1) / w.HeadwaySecs
			occurrence = windowStart + steps*w.HeadwaySecs
		}

		for n := 0; occurrence <= windowEnd && n < limit; n++ {
			wait := (occurrence - querySecs + 59) / 60
			if wait < 0 {
				wait = 0
			}

			arrivals = append(arrivals, models.Arrival{
				TripID:         w.TripID,
				RouteID:        w.RouteID,
				RouteShortName: w.RouteShortName,
				RouteLongName:  w.RouteLongName,
				RouteColor:     w.RouteColor,
				RouteTextColor: w.RouteTextColor,
				Headsign:       w.Headsign,
				ArrivalTime:    gtfs.FormatSeconds(occurrence),
				ArrivalSecs:    occurrence + normShift,
				Sequence:       w.StopSequence,
				FrequencyMins:  w.HeadwaySecs / 60,
				WaitMins:       wait,
			})
			occurrence += w.HeadwaySecs
		}
	}

	return arrivals, nil
}

func dedupeArrivals(arrivals []models.Arrival) []models.Arrival {
	seen := make(map[string]bool, len(arrivals))
	out := arrivals[:0]
	for _, a := range arrivals {
		key := fmt.Sprintf("%s|%d|%d", a.TripID, a.ArrivalSecs, a.Sequence)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, a)
	}
	return out
}
