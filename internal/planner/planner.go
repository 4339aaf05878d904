package planner

import (
	"context"
	"fmt"

	"github.com/peantunes/sptrans-core/internal/models"
)

// NearbyStopFinder resolves a coordinate to stops ordered by distance
type NearbyStopFinder interface {
	FindNearbyStops(ctx context.Context, lat, lon float64, limit int) ([]models.Stop, error)
}

// Options are the user-tunable knobs of a planning request. Zero or
// out-of-range values are clamped to defensive defaults, never rejected.
type Options struct {
	OriginLimit      int
	DestinationLimit int
	DirectLimit      int
	TransferLimit    int
	MaxTransfers     int
	MaxAlternatives  int
	LegSearchLimit   int
	Priority         Priority
}

// DefaultOptions returns the defaults applied to unset fields
func DefaultOptions() Options {
	return Options{
		OriginLimit:      5,
		DestinationLimit: 5,
		DirectLimit:      6,
		TransferLimit:    6,
		MaxTransfers:     1,
		MaxAlternatives:  5,
		LegSearchLimit:   400,
		Priority:         PriorityArrivesFirst,
	}
}

// normalized clamps every option into its defensive range
func (o Options) normalized() Options {
	defaults := DefaultOptions()

	o.OriginLimit = clamp(o.OriginLimit, 1, 20, defaults.OriginLimit)
	o.DestinationLimit = clamp(o.DestinationLimit, 1, 20, defaults.DestinationLimit)
	o.DirectLimit = clampAllowZero(o.DirectLimit, 20, defaults.DirectLimit)
	o.TransferLimit = clampAllowZero(o.TransferLimit, 20, defaults.TransferLimit)
	if o.MaxTransfers != 0 && o.MaxTransfers != 1 {
		o.MaxTransfers = defaults.MaxTransfers
	}
	o.MaxAlternatives = clamp(o.MaxAlternatives, 1, 10, defaults.MaxAlternatives)
	o.LegSearchLimit = clamp(o.LegSearchLimit, 50, 2000, defaults.LegSearchLimit)
	o.Priority = NormalizePriority(string(o.Priority))
	return o
}

// clamp returns v limited to [min, max]; an unset (zero) value falls back
// to def
func clamp(v, min, max, def int) int {
	if v == 0 {
		return def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// clampAllowZero is clamp for caps whose range starts at zero: an explicit
// zero is a legitimate "return nothing" request, only negatives fall back
func clampAllowZero(v, max, def int) int {
	if v < 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}

// PlanStats summarizes a planning run
type PlanStats struct {
	OriginStops      int `json:"origin_stops"`
	DestinationStops int `json:"destination_stops"`
	DirectFound      int `json:"direct_found"`
	TransfersFound   int `json:"transfers_found"`
	Alternatives     int `json:"alternatives"`
}

// PlanResult is the full outcome of one planning request
type PlanResult struct {
	OriginStops      []models.Stop               `json:"origin_stops"`
	DestinationStops []models.Stop               `json:"destination_stops"`
	Direct           []models.ItineraryCandidate `json:"direct"`
	Transfers        []models.ItineraryCandidate `json:"transfers"`
	Alternatives     []RankedItinerary           `json:"alternatives"`
	Priority         Priority                    `json:"ranking_priority"`
	Stats            PlanStats                   `json:"stats"`
}

// Planner composes the nearby-stop lookup, candidate search and ranking
// into a bounded trip planning operation
type Planner struct {
	nearby NearbyStopFinder
	finder *Finder
	ranker *Ranker
}

// NewPlanner creates a Planner
func NewPlanner(nearby NearbyStopFinder, finder *Finder, ranker *Ranker) *Planner {
	return &Planner{nearby: nearby, finder: finder, ranker: ranker}
}

// Plan resolves both coordinates to nearby stop sets, searches direct and
// (optionally) one-transfer connections, and returns the ranked, truncated
// alternatives together with the raw candidate lists.
func (p *Planner) Plan(ctx context.Context, originLat, originLon, destLat, destLon float64, opts Options) (*PlanResult, error) {
	opts = opts.normalized()

	originStops, err := p.nearby.FindNearbyStops(ctx, originLat, originLon, opts.OriginLimit)
	if err != nil {
		return nil, fmt.Errorf("resolving origin stops: %w", err)
	}
	destStops, err := p.nearby.FindNearbyStops(ctx, destLat, destLon, opts.DestinationLimit)
	if err != nil {
		return nil, fmt.Errorf("resolving destination stops: %w", err)
	}

	direct, err := p.finder.FindDirect(ctx, originStops, destStops, opts.DirectLimit)
	if err != nil {
		return nil, err
	}

	transfers := []models.ItineraryCandidate{}
	if opts.MaxTransfers > 0 {
		transfers, err = p.finder.FindOneTransfer(ctx, originStops, destStops, opts.LegSearchLimit, opts.TransferLimit)
		if err != nil {
			return nil, err
		}
	}

	alternatives, err := p.ranker.Rank(ctx, direct, transfers, opts.MaxAlternatives, opts.Priority)
	if err != nil {
		return nil, err
	}

	if originStops == nil {
		originStops = []models.Stop{}
	}
	if destStops == nil {
		destStops = []models.Stop{}
	}

	return &PlanResult{
		OriginStops:      originStops,
		DestinationStops: destStops,
		Direct:           direct,
		Transfers:        transfers,
		Alternatives:     alternatives,
		Priority:         opts.Priority,
		Stats: PlanStats{
			OriginStops:      len(originStops),
			DestinationStops: len(destStops),
			DirectFound:      len(direct),
			TransfersFound:   len(transfers),
			Alternatives:     len(alternatives),
		},
	}, nil
}
