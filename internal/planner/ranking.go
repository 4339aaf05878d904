package planner

import (
	"context"
	"sort"

	"github.com/peantunes/sptrans-core/internal/models"
)

// Priority selects the objective function used to order itineraries
type Priority string

const (
	PriorityArrivesFirst       Priority = "arrives_first"
	PriorityShortest           Priority = "shortest"
	PriorityFewestTransfers    Priority = "fewest_transfers"
	PriorityClosestOrigin      Priority = "closest_origin"
	PriorityClosestDestination Priority = "closest_destination"
)

// NormalizePriority maps unrecognized values to the default priority
func NormalizePriority(s string) Priority {
	switch Priority(s) {
	case PriorityShortest, PriorityFewestTransfers, PriorityClosestOrigin, PriorityClosestDestination:
		return Priority(s)
	default:
		return PriorityArrivesFirst
	}
}

// arrivalLookahead is how many upcoming arrivals are inspected when scoring
// a candidate's boarding wait
const arrivalLookahead = 12

// ArrivalSource supplies upcoming arrivals for time-sensitive scoring
type ArrivalSource interface {
	NextArrivals(ctx context.Context, stopID, timeStr, dateStr string, limit int) ([]models.Arrival, error)
}

// RankedItinerary is a candidate with its computed ranking metrics
type RankedItinerary struct {
	Candidate           models.ItineraryCandidate `json:"itinerary"`
	TransferCount       int                       `json:"transfer_count"`
	HopCount            Metric                    `json:"-"`
	OriginDistance      Metric                    `json:"-"`
	DestinationDistance Metric                    `json:"-"`
	ArrivalScore        Metric                    `json:"-"`
	Hops                int                       `json:"hop_count"`
	WaitScoreMins       int                       `json:"wait_score_minutes,omitempty"`
}

// Ranker scores and orders itinerary candidates
type Ranker struct {
	arrivals ArrivalSource
}

// NewRanker creates a Ranker; arrivals feeds the arrives_first scoring
func NewRanker(arrivals ArrivalSource) *Ranker {
	return &Ranker{arrivals: arrivals}
}

// Rank pools direct and transfer candidates, computes metrics, sorts by the
// priority's composite key and truncates to maxAlternatives. The sort is
// stable, so a fixed candidate set always ranks identically.
func (r *Ranker) Rank(ctx context.Context, direct, transfers []models.ItineraryCandidate, maxAlternatives int, priority Priority) ([]RankedItinerary, error) {
	if maxAlternatives <= 0 {
		return []RankedItinerary{}, nil
	}

	ranked := make([]RankedItinerary, 0, len(direct)+len(transfers))
	for _, c := range append(append([]models.ItineraryCandidate{}, direct...), transfers...) {
		ri := RankedItinerary{
			Candidate:           c,
			TransferCount:       c.Transfers(),
			HopCount:            hopCount(c),
			OriginDistance:      stopDistance(c.Origin),
			DestinationDistance: stopDistance(c.Destination),
			ArrivalScore:        Unbounded(),
		}

		// The arrival score only participates in arrives_first
		// ordering; the sentinel keeps it neutral elsewhere.
		if priority == PriorityArrivesFirst {
			score, err := r.arrivalScore(ctx, c)
			if err != nil {
				return nil, err
			}
			ri.ArrivalScore = score
		}

		if !ri.HopCount.Unbounded {
			ri.Hops = ri.HopCount.Value
		}
		if !ri.ArrivalScore.Unbounded {
			ri.WaitScoreMins = ri.ArrivalScore.Value
		}
		ranked = append(ranked, ri)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return compareKeys(sortKey(ranked[i], priority), sortKey(ranked[j], priority)) < 0
	})

	if len(ranked) > maxAlternatives {
		ranked = ranked[:maxAlternatives]
	}
	return ranked, nil
}

// sortKey builds the composite key for a priority; ties on one element fall
// through to the next
func sortKey(ri RankedItinerary, priority Priority) []Metric {
	transferCount := Finite(ri.TransferCount)
	totalDistance := ri.OriginDistance.Add(ri.DestinationDistance)

	switch priority {
	case PriorityShortest:
		return []Metric{ri.HopCount, transferCount, ri.ArrivalScore, totalDistance}
	case PriorityFewestTransfers:
		return []Metric{transferCount, ri.HopCount, ri.ArrivalScore}
	case PriorityClosestOrigin:
		return []Metric{ri.OriginDistance, ri.HopCount, ri.ArrivalScore}
	case PriorityClosestDestination:
		return []Metric{ri.DestinationDistance, ri.HopCount, ri.ArrivalScore}
	default:
		return []Metric{ri.ArrivalScore, transferCount, ri.HopCount, totalDistance}
	}
}

// arrivalScore computes the boarding wait for a candidate.
//
// Direct: wait of the first of the next 12 arrivals at the origin stop on
// the candidate's route, unbounded when none matches. Transfer: origin-leg
// wait plus the destination-leg wait at the transfer stop; an unmatched side
// contributes half the maximum finite score instead of making the whole
// result unbounded. The direct/transfer asymmetry is deliberate.
func (r *Ranker) arrivalScore(ctx context.Context, c models.ItineraryCandidate) (Metric, error) {
	if len(c.Legs) == 0 || c.Origin == nil {
		return Unbounded(), nil
	}

	originWait, originOK, err := r.routeWait(ctx, c.Origin.ID, c.Legs[0].RouteID)
	if err != nil {
		return Metric{}, err
	}

	if len(c.Legs) == 1 {
		if !originOK {
			return Unbounded(), nil
		}
		return Finite(originWait), nil
	}

	transferWait, transferOK := 0, false
	if c.Transfer != nil {
		transferWait, transferOK, err = r.routeWait(ctx, c.Transfer.ID, c.Legs[1].RouteID)
		if err != nil {
			return Metric{}, err
		}
	}

	if !originOK {
		originWait = halfScore
	}
	if !transferOK {
		transferWait = halfScore
	}
	return Finite(originWait + transferWait), nil
}

// routeWait finds the wait of the first upcoming arrival at stopID whose
// route matches routeID, within the lookahead window
func (r *Ranker) routeWait(ctx context.Context, stopID, routeID string) (int, bool, error) {
	arrivals, err := r.arrivals.NextArrivals(ctx, stopID, "", "", arrivalLookahead)
	if err != nil {
		return 0, false, err
	}
	for _, a := range arrivals {
		if a.RouteID == routeID {
			return a.WaitMins, true, nil
		}
	}
	return 0, false, nil
}

// hopCount sums destination minus origin stop sequence across legs,
// unbounded when sequence data is missing
func hopCount(c models.ItineraryCandidate) Metric {
	total := 0
	for _, leg := range c.Legs {
		if leg.ToSequence <= 0 && leg.FromSequence <= 0 {
			return Unbounded()
		}
		hops := leg.ToSequence - leg.FromSequence
		if hops < 0 {
			return Unbounded()
		}
		total += hops
	}
	if len(c.Legs) == 0 {
		return Unbounded()
	}
	return Finite(total)
}

func stopDistance(s *models.Stop) Metric {
	if s == nil || s.DistanceM == nil {
		return Unbounded()
	}
	return Finite(*s.DistanceM)
}
