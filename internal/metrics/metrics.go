package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ArrivalsRequests counts arrivals lookups by cache outcome
	ArrivalsRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sptrans_arrivals_requests_total",
		Help: "Arrivals requests served, labeled by cache outcome.",
	}, []string{"cache"})

	// PlanRequests counts trip planning runs by ranking priority
	PlanRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sptrans_plan_requests_total",
		Help: "Trip planning requests served, labeled by ranking priority.",
	}, []string{"priority"})

	// LineStatusScrapes counts upstream line status fetches by outcome
	LineStatusScrapes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sptrans_line_status_scrapes_total",
		Help: "Rail line status scrapes, labeled by outcome.",
	}, []string{"outcome"})
)
