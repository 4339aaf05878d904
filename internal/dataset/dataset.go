// Package dataset is the read-only query surface over the static GTFS
// tables (stops, routes, trips, stop_times, frequencies, calendar,
// calendar_dates). Every row is mapped into a typed record at this
// boundary; a required field that fails to parse is a mapping error, not a
// silently propagated null.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/peantunes/sptrans-core/internal/gtfs"
	"github.com/peantunes/sptrans-core/internal/models"
)

// Source wraps the connection pool with typed GTFS queries
type Source struct {
	pool *pgxpool.Pool
	// hasCalendarDates records whether the optional calendar_dates table
	// exists. Detected once here and passed to the calendar resolver.
	hasCalendarDates bool
}

// New creates a Source and detects the optional calendar_dates table
func New(ctx context.Context, pool *pgxpool.Pool) (*Source, error) {
	var hasCalendarDates bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = 'calendar_dates'
		)
	`).Scan(&hasCalendarDates)
	if err != nil {
		return nil, fmt.Errorf("detecting calendar_dates table: %w", err)
	}

	return &Source{pool: pool, hasCalendarDates: hasCalendarDates}, nil
}

// HasCalendarDates reports whether the dataset carries calendar exceptions
func (s *Source) HasCalendarDates() bool {
	return s.hasCalendarDates
}

// GetStop returns one stop with its comma-joined serving routes, or nil
// when the id is unknown
func (s *Source) GetStop(ctx context.Context, stopID string) (*models.Stop, error) {
	var stop models.Stop
	err := s.pool.QueryRow(ctx, `
		SELECT s.stop_id, s.name, COALESCE(s.description, ''), s.lat, s.lon,
			COALESCE((
				SELECT string_agg(DISTINCT t.route_id, ',')
				FROM stop_times st
				JOIN trips t ON t.trip_id = st.trip_id
				WHERE st.stop_id = s.stop_id
			), '')
		FROM stops s
		WHERE s.stop_id = $1
	`, stopID).Scan(&stop.ID, &stop.Name, &stop.Description, &stop.Lat, &stop.Lon, &stop.Routes)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading stop %s: %w", stopID, err)
	}
	return &stop, nil
}

// StopsByID batch-loads stop entities by id
func (s *Source) StopsByID(ctx context.Context, ids []string) (map[string]models.Stop, error) {
	if len(ids) == 0 {
		return map[string]models.Stop{}, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT stop_id, name, COALESCE(description, ''), lat, lon
		FROM stops
		WHERE stop_id = ANY($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("loading stops: %w", err)
	}
	defer rows.Close()

	stops := make(map[string]models.Stop, len(ids))
	for rows.Next() {
		var stop models.Stop
		if err := rows.Scan(&stop.ID, &stop.Name, &stop.Description, &stop.Lat, &stop.Lon); err != nil {
			return nil, fmt.Errorf("scanning stop: %w", err)
		}
		stops[stop.ID] = stop
	}
	return stops, rows.Err()
}

// ListRoutes returns up to limit routes
func (s *Source) ListRoutes(ctx context.Context, limit int) ([]models.Route, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT route_id, COALESCE(short_name, ''), COALESCE(long_name, ''),
			route_type, COALESCE(color, ''), COALESCE(text_color, ''), COALESCE(agency_id, '')
		FROM routes
		ORDER BY route_id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("loading routes: %w", err)
	}
	defer rows.Close()

	var routes []models.Route
	for rows.Next() {
		var r models.Route
		if err := rows.Scan(&r.ID, &r.ShortName, &r.LongName, &r.Type, &r.Color, &r.TextColor, &r.AgencyID); err != nil {
			return nil, fmt.Errorf("scanning route: %w", err)
		}
		routes = append(routes, r)
	}
	return routes, rows.Err()
}

// FrequencyWindows returns every frequency definition of every trip serving
// stopID, joined with the stop's offset from the trip's first stop time so
// the headway window can be projected onto this stop's position.
func (s *Source) FrequencyWindows(ctx context.Context, stopID string) ([]models.FrequencyWindow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT t.trip_id, t.route_id, t.service_id, COALESCE(t.headsign, ''),
			COALESCE(r.short_name, ''), COALESCE(r.long_name, ''),
			COALESCE(r.color, ''), COALESCE(r.text_color, ''),
			st.stop_sequence, st.arrival_time, ft.first_arrival,
			f.start_time, f.end_time, f.headway_secs
		FROM stop_times st
		JOIN trips t ON t.trip_id = st.trip_id
		JOIN routes r ON r.route_id = t.route_id
		JOIN frequencies f ON f.trip_id = t.trip_id
		JOIN (
			SELECT DISTINCT ON (trip_id) trip_id, arrival_time AS first_arrival
			FROM stop_times
			ORDER BY trip_id, stop_sequence
		) ft ON ft.trip_id = st.trip_id
		WHERE st.stop_id = $1
	`, stopID)
	if err != nil {
		return nil, fmt.Errorf("loading frequency windows: %w", err)
	}
	defer rows.Close()

	var windows []models.FrequencyWindow
	for rows.Next() {
		var w models.FrequencyWindow
		var arrivalTime, firstArrival, startTime, endTime string
		if err := rows.Scan(
			&w.TripID, &w.RouteID, &w.ServiceID, &w.Headsign,
			&w.RouteShortName, &w.RouteLongName, &w.RouteColor, &w.RouteTextColor,
			&w.StopSequence, &arrivalTime, &firstArrival,
			&startTime, &endTime, &w.HeadwaySecs,
		); err != nil {
			return nil, fmt.Errorf("scanning frequency window: %w", err)
		}

		arrivalSecs, err := gtfs.ParseTimeToSeconds(arrivalTime)
		if err != nil {
			return nil, fmt.Errorf("trip %s arrival time: %w", w.TripID, err)
		}
		firstSecs, err := gtfs.ParseTimeToSeconds(firstArrival)
		if err != nil {
			return nil, fmt.Errorf("trip %s first arrival time: %w", w.TripID, err)
		}
		w.StartSecs, err = gtfs.ParseTimeToSeconds(startTime)
		if err != nil {
			return nil, fmt.Errorf("trip %s frequency start: %w", w.TripID, err)
		}
		w.EndSecs, err = gtfs.ParseTimeToSeconds(endTime)
		if err != nil {
			return nil, fmt.Errorf("trip %s frequency end: %w", w.TripID, err)
		}

		w.StopOffsetSecs = arrivalSecs - firstSecs
		if w.StopOffsetSecs < 0 {
			w.StopOffsetSecs = 0
		}

		windows = append(windows, w)
	}
	return windows, rows.Err()
}

// Calendar returns the weekly calendar row for serviceID, or nil when the
// service has none
func (s *Source) Calendar(ctx context.Context, serviceID string) (*models.ServiceCalendar, error) {
	cal := models.ServiceCalendar{ServiceID: serviceID}
	err := s.pool.QueryRow(ctx, `
		SELECT sunday, monday, tuesday, wednesday, thursday, friday, saturday,
			start_date, end_date
		FROM calendar
		WHERE service_id = $1
	`, serviceID).Scan(
		&cal.Weekdays[time.Sunday], &cal.Weekdays[time.Monday], &cal.Weekdays[time.Tuesday],
		&cal.Weekdays[time.Wednesday], &cal.Weekdays[time.Thursday], &cal.Weekdays[time.Friday],
		&cal.Weekdays[time.Saturday],
		&cal.StartDate, &cal.EndDate,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading calendar for service %s: %w", serviceID, err)
	}
	return &cal, nil
}

// Exception returns the calendar exception for (serviceID, date), or nil.
// Callers must not invoke this when the calendar_dates table is absent.
func (s *Source) Exception(ctx context.Context, serviceID string, date time.Time) (*models.ServiceCalendarException, error) {
	ex := models.ServiceCalendarException{ServiceID: serviceID, Date: date}
	err := s.pool.QueryRow(ctx, `
		SELECT exception_type
		FROM calendar_dates
		WHERE service_id = $1 AND date = $2::date
	`, serviceID, date).Scan(&ex.ExceptionType)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading calendar exception for service %s: %w", serviceID, err)
	}
	return &ex, nil
}

// DirectConnections joins stop times at an origin stop to stop times of the
// same trip at a destination stop, smallest sequence gap first
func (s *Source) DirectConnections(ctx context.Context, originIDs, destIDs []string, limit int) ([]models.Leg, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT t.route_id, COALESCE(r.short_name, ''), o.trip_id,
			o.stop_id, o.stop_sequence, d.stop_id, d.stop_sequence
		FROM stop_times o
		JOIN stop_times d ON d.trip_id = o.trip_id AND d.stop_sequence > o.stop_sequence
		JOIN trips t ON t.trip_id = o.trip_id
		JOIN routes r ON r.route_id = t.route_id
		WHERE o.stop_id = ANY($1)
		  AND d.stop_id = ANY($2)
		ORDER BY d.stop_sequence - o.stop_sequence, o.trip_id
		LIMIT $3
	`, originIDs, destIDs, limit)
	if err != nil {
		return nil, fmt.Errorf("direct connection query: %w", err)
	}
	return scanLegs(rows)
}

// DepartingLegs enumerates (stop, later stop on same trip) pairs starting
// at any of the given stops
func (s *Source) DepartingLegs(ctx context.Context, stopIDs []string, limit int) ([]models.Leg, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT t.route_id, COALESCE(r.short_name, ''), o.trip_id,
			o.stop_id, o.stop_sequence, d.stop_id, d.stop_sequence
		FROM stop_times o
		JOIN stop_times d ON d.trip_id = o.trip_id AND d.stop_sequence > o.stop_sequence
		JOIN trips t ON t.trip_id = o.trip_id
		JOIN routes r ON r.route_id = t.route_id
		WHERE o.stop_id = ANY($1)
		ORDER BY o.trip_id, o.stop_sequence, d.stop_sequence
		LIMIT $2
	`, stopIDs, limit)
	if err != nil {
		return nil, fmt.Errorf("departing leg query: %w", err)
	}
	return scanLegs(rows)
}

// ArrivingLegs enumerates (earlier stop on same trip, stop) pairs ending at
// any of the given stops
func (s *Source) ArrivingLegs(ctx context.Context, stopIDs []string, limit int) ([]models.Leg, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT t.route_id, COALESCE(r.short_name, ''), o.trip_id,
			o.stop_id, o.stop_sequence, d.stop_id, d.stop_sequence
		FROM stop_times d
		JOIN stop_times o ON o.trip_id = d.trip_id AND o.stop_sequence < d.stop_sequence
		JOIN trips t ON t.trip_id = d.trip_id
		JOIN routes r ON r.route_id = t.route_id
		WHERE d.stop_id = ANY($1)
		ORDER BY d.trip_id, d.stop_sequence, o.stop_sequence
		LIMIT $2
	`, stopIDs, limit)
	if err != nil {
		return nil, fmt.Errorf("arriving leg query: %w", err)
	}
	return scanLegs(rows)
}

func scanLegs(rows pgx.Rows) ([]models.Leg, error) {
	defer rows.Close()

	var legs []models.Leg
	for rows.Next() {
		var leg models.Leg
		if err := rows.Scan(
			&leg.RouteID, &leg.RouteShortName, &leg.TripID,
			&leg.FromStopID, &leg.FromSequence, &leg.ToStopID, &leg.ToSequence,
		); err != nil {
			return nil, fmt.Errorf("scanning leg: %w", err)
		}
		legs = append(legs, leg)
	}
	return legs, rows.Err()
}
