package models

import "time"

// Stop represents a physical transit stop location
type Stop struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	// Routes is a comma-joined list of route ids serving this stop,
	// populated only by stop detail lookups
	Routes string `json:"routes,omitempty"`
	// DistanceM is set only when the stop was produced by a geo query
	DistanceM *int `json:"distance_meters,omitempty"`
}

// Route represents a transit route (line)
type Route struct {
	ID        string `json:"id"`
	ShortName string `json:"short_name"`
	LongName  string `json:"long_name"`
	Type      int    `json:"type"`
	Color     string `json:"color,omitempty"`
	TextColor string `json:"text_color,omitempty"`
	AgencyID  string `json:"agency_id"`
}

// Trip represents a single scheduled run of a route
type Trip struct {
	ID        string `json:"id"`
	RouteID   string `json:"route_id"`
	ServiceID string `json:"service_id"`
	Headsign  string `json:"headsign"`
	Direction int    `json:"direction"`
	ShapeID   string `json:"shape_id,omitempty"`
}

// StopTime is a (trip, stop) pair with its time-of-day and ordinal position.
// Arrival/departure strings may exceed 24:00:00 for overnight continuation
// of the same service day.
type StopTime struct {
	TripID        string `json:"trip_id"`
	StopID        string `json:"stop_id"`
	ArrivalTime   string `json:"arrival_time"`
	DepartureTime string `json:"departure_time"`
	Sequence      int    `json:"sequence"`
}

// Frequency expresses "this trip repeats every HeadwaySecs seconds
// between StartTime and EndTime" rather than a single fixed time
type Frequency struct {
	TripID      string `json:"trip_id"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	HeadwaySecs int    `json:"headway_secs"`
}

// ServiceCalendar is the weekly pattern + date range for a service id.
// Weekdays is indexed by time.Weekday (Sunday = 0).
type ServiceCalendar struct {
	ServiceID string
	Weekdays  [7]bool
	StartDate time.Time
	EndDate   time.Time
}

// Calendar exception types per GTFS calendar_dates.txt
const (
	ExceptionServiceAdded   = 1
	ExceptionServiceRemoved = 2
)

// ServiceCalendarException overrides the weekly pattern for one date
type ServiceCalendarException struct {
	ServiceID     string
	Date          time.Time
	ExceptionType int
}

// FrequencyWindow is one scheduling window row for a stop: a trip's
// frequency definition joined with the stop's offset from the trip's
// first stop time, plus the display fields needed to build an Arrival.
type FrequencyWindow struct {
	TripID         string
	RouteID        string
	ServiceID      string
	RouteShortName string
	RouteLongName  string
	RouteColor     string
	RouteTextColor string
	Headsign       string
	StopSequence   int
	StopOffsetSecs int
	StartSecs      int
	EndSecs        int
	HeadwaySecs    int
}

// Arrival is a computed upcoming arrival at a stop. ArrivalTime keeps the
// service-day clock (may read past 24:00:00 for prior-day trips), while
// ArrivalSecs is normalized to the query day for ordering.
type Arrival struct {
	TripID         string `json:"trip_id"`
	RouteID        string `json:"route_id"`
	RouteShortName string `json:"route_short_name"`
	RouteLongName  string `json:"route_long_name,omitempty"`
	RouteColor     string `json:"route_color,omitempty"`
	RouteTextColor string `json:"route_text_color,omitempty"`
	Headsign       string `json:"headsign,omitempty"`
	ArrivalTime    string `json:"arrival_time"`
	ArrivalSecs    int    `json:"arrival_seconds"`
	Sequence       int    `json:"sequence"`
	FrequencyMins  int    `json:"frequency_minutes,omitempty"`
	WaitMins       int    `json:"wait_minutes"`
}

// Leg is one ride on a single trip, from one stop to a later stop
type Leg struct {
	RouteID        string `json:"route_id"`
	RouteShortName string `json:"route_short_name"`
	TripID         string `json:"trip_id"`
	FromStopID     string `json:"from_stop_id"`
	FromSequence   int    `json:"from_sequence"`
	ToStopID       string `json:"to_stop_id"`
	ToSequence     int    `json:"to_sequence"`
}

// ItineraryCandidate is a direct (one leg) or one-transfer (two legs)
// connection. Origin and Destination reference the true endpoint stops;
// Transfer is nil for direct candidates.
type ItineraryCandidate struct {
	Legs        []Leg `json:"legs"`
	Origin      *Stop `json:"origin,omitempty"`
	Destination *Stop `json:"destination,omitempty"`
	Transfer    *Stop `json:"transfer,omitempty"`
}

// Transfers returns the number of transfers in the candidate
func (c ItineraryCandidate) Transfers() int {
	if len(c.Legs) <= 1 {
		return 0
	}
	return len(c.Legs) - 1
}
