package planner

import (
	"context"
	"fmt"

	"github.com/peantunes/sptrans-core/internal/models"
)

// LegSource is the read-only stop-time query surface the finder needs
type LegSource interface {
	// DirectConnections returns same-trip (origin, destination) stop-time
	// pairs with the origin sequence preceding the destination sequence,
	// ordered by smallest sequence gap, at most limit rows.
	DirectConnections(ctx context.Context, originIDs, destIDs []string, limit int) ([]models.Leg, error)
	// DepartingLegs returns (stop, later stop on same trip) pairs
	// starting at any of the given stops, at most limit rows.
	DepartingLegs(ctx context.Context, stopIDs []string, limit int) ([]models.Leg, error)
	// ArrivingLegs returns (earlier stop on same trip, stop) pairs
	// ending at any of the given stops, at most limit rows.
	ArrivingLegs(ctx context.Context, stopIDs []string, limit int) ([]models.Leg, error)
	// StopsByID batch-loads stop entities
	StopsByID(ctx context.Context, ids []string) (map[string]models.Stop, error)
}

// Finder searches the static stop-time dataset for direct and one-transfer
// connections between origin and destination stop sets.
type Finder struct {
	src LegSource
}

// NewFinder creates a Finder over the given dataset
func NewFinder(src LegSource) *Finder {
	return &Finder{src: src}
}

// FindDirect returns single-trip connections from any origin stop to any
// destination stop, fewest intermediate stops first, deduplicated by
// (route, origin stop, destination stop), capped at limit.
func (f *Finder) FindDirect(ctx context.Context, origins, dests []models.Stop, limit int) ([]models.ItineraryCandidate, error) {
	if len(origins) == 0 || len(dests) == 0 || limit <= 0 {
		return []models.ItineraryCandidate{}, nil
	}

	originIdx := indexStops(origins)
	destIdx := indexStops(dests)

	// Fetch more rows than needed so deduplication can still fill limit.
	legs, err := f.src.DirectConnections(ctx, stopIDs(origins), stopIDs(dests), limit*directScanFactor)
	if err != nil {
		return nil, fmt.Errorf("direct connection search: %w", err)
	}

	seen := make(map[string]bool)
	candidates := []models.ItineraryCandidate{}
	for _, leg := range legs {
		key := leg.RouteID + "|" + leg.FromStopID + "|" + leg.ToStopID
		if seen[key] {
			continue
		}
		seen[key] = true

		candidates = append(candidates, models.ItineraryCandidate{
			Legs:        []models.Leg{leg},
			Origin:      originIdx[leg.FromStopID],
			Destination: destIdx[leg.ToStopID],
		})
		if len(candidates) == limit {
			break
		}
	}

	return candidates, nil
}

const directScanFactor = 8

// FindOneTransfer returns two-leg connections through a common intermediate
// stop. Each side's leg enumeration is capped by legSearchLimit; the pairing
// stops as soon as limit unique connections are found.
func (f *Finder) FindOneTransfer(ctx context.Context, origins, dests []models.Stop, legSearchLimit, limit int) ([]models.ItineraryCandidate, error) {
	if len(origins) == 0 || len(dests) == 0 || limit <= 0 {
		return []models.ItineraryCandidate{}, nil
	}

	originIdx := indexStops(origins)
	destIdx := indexStops(dests)

	departing, err := f.src.DepartingLegs(ctx, stopIDs(origins), legSearchLimit)
	if err != nil {
		return nil, fmt.Errorf("origin leg search: %w", err)
	}
	arriving, err := f.src.ArrivingLegs(ctx, stopIDs(dests), legSearchLimit)
	if err != nil {
		return nil, fmt.Errorf("destination leg search: %w", err)
	}

	// Group destination legs by their transfer-stop candidate, the
	// non-destination end of the pair.
	byTransfer := make(map[string][]models.Leg)
	for _, leg := range arriving {
		byTransfer[leg.FromStopID] = append(byTransfer[leg.FromStopID], leg)
	}

	seen := make(map[string]bool)
	candidates := []models.ItineraryCandidate{}

search:
	for _, first := range departing {
		transferID := first.ToStopID
		for _, second := range byTransfer[transferID] {
			// A transfer through the true origin or destination is
			// no transfer at all, and both legs must change routes.
			if transferID == first.FromStopID || transferID == second.ToStopID {
				continue
			}
			if first.RouteID == second.RouteID {
				continue
			}

			key := first.RouteID + "|" + second.RouteID + "|" + first.FromStopID + "|" + second.ToStopID + "|" + transferID
			if seen[key] {
				continue
			}
			seen[key] = true

			candidates = append(candidates, models.ItineraryCandidate{
				Legs:        []models.Leg{first, second},
				Origin:      originIdx[first.FromStopID],
				Destination: destIdx[second.ToStopID],
			})
			if len(candidates) == limit {
				break search
			}
		}
	}

	if err := f.attachTransferStops(ctx, candidates); err != nil {
		return nil, err
	}

	return candidates, nil
}

// attachTransferStops batch-loads the transfer stop entities referenced by
// the surviving candidates
func (f *Finder) attachTransferStops(ctx context.Context, candidates []models.ItineraryCandidate) error {
	if len(candidates) == 0 {
		return nil
	}

	idSet := make(map[string]bool)
	var ids []string
	for _, c := range candidates {
		id := c.Legs[0].ToStopID
		if !idSet[id] {
			idSet[id] = true
			ids = append(ids, id)
		}
	}

	stops, err := f.src.StopsByID(ctx, ids)
	if err != nil {
		return fmt.Errorf("loading transfer stops: %w", err)
	}

	for i := range candidates {
		if stop, ok := stops[candidates[i].Legs[0].ToStopID]; ok {
			s := stop
			candidates[i].Transfer = &s
		}
	}
	return nil
}

func stopIDs(stops []models.Stop) []string {
	ids := make([]string, len(stops))
	for i, s := range stops {
		ids[i] = s.ID
	}
	return ids
}

func indexStops(stops []models.Stop) map[string]*models.Stop {
	idx := make(map[string]*models.Stop, len(stops))
	for i := range stops {
		idx[stops[i].ID] = &stops[i]
	}
	return idx
}
