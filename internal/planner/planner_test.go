package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peantunes/sptrans-core/internal/models"
)

type fakeNearby struct {
	stops map[string][]models.Stop // keyed by "lat,lon" rendered coarsely
}

func (f *fakeNearby) FindNearbyStops(_ context.Context, lat, lon float64, limit int) ([]models.Stop, error) {
	key := coordKey(lat, lon)
	stops := f.stops[key]
	if len(stops) > limit {
		stops = stops[:limit]
	}
	return stops, nil
}

func coordKey(lat, lon float64) string {
	if lat < 0 {
		return "origin"
	}
	return "destination"
}

func TestOptionsNormalized(t *testing.T) {
	t.Run("zero value gets defaults", func(t *testing.T) {
		opts := Options{}.normalized()
		assert.Equal(t, 5, opts.OriginLimit)
		assert.Equal(t, 5, opts.DestinationLimit)
		assert.Equal(t, 0, opts.DirectLimit) // zero is a valid cap
		assert.Equal(t, 0, opts.TransferLimit)
		assert.Equal(t, 0, opts.MaxTransfers)
		assert.Equal(t, 5, opts.MaxAlternatives)
		assert.Equal(t, 400, opts.LegSearchLimit)
		assert.Equal(t, PriorityArrivesFirst, opts.Priority)
	})

	t.Run("out of range values are clamped", func(t *testing.T) {
		opts := Options{
			OriginLimit:      99,
			DestinationLimit: -1,
			DirectLimit:      50,
			TransferLimit:    -7,
			MaxTransfers:     3,
			MaxAlternatives:  100,
			LegSearchLimit:   10,
			Priority:         "whatever",
		}.normalized()

		assert.Equal(t, 20, opts.OriginLimit)
		assert.Equal(t, 1, opts.DestinationLimit)
		assert.Equal(t, 20, opts.DirectLimit)
		assert.Equal(t, 6, opts.TransferLimit) // negative falls back to default
		assert.Equal(t, 1, opts.MaxTransfers)
		assert.Equal(t, 10, opts.MaxAlternatives)
		assert.Equal(t, 50, opts.LegSearchLimit)
		assert.Equal(t, PriorityArrivesFirst, opts.Priority)
	})

	t.Run("in range values pass through", func(t *testing.T) {
		opts := DefaultOptions()
		opts.Priority = PriorityShortest
		normalized := opts.normalized()
		assert.Equal(t, opts, normalized)
	})
}

func TestPlan(t *testing.T) {
	origin := stop("A", 120)
	dest := stop("B", 90)

	nearby := &fakeNearby{stops: map[string][]models.Stop{
		"origin":      {origin},
		"destination": {dest},
	}}
	legSrc := &fakeLegSource{
		direct: []models.Leg{
			leg("R1", "T1", "A", 1, "B", 4),
		},
		departing: []models.Leg{
			leg("R2", "T2", "A", 1, "X", 3),
		},
		arriving: []models.Leg{
			leg("R3", "T3", "X", 2, "B", 5),
		},
		stops: map[string]models.Stop{"X": {ID: "X", Name: "Transfer X"}},
	}
	arrivals := &fakeArrivalSource{arrivals: map[string][]models.Arrival{
		"A": {arrival("R1", 5), arrival("R2", 2)},
		"X": {arrival("R3", 8)},
	}}

	p := NewPlanner(nearby, NewFinder(legSrc), NewRanker(arrivals))
	ctx := context.Background()

	t.Run("composes nearby lookup, search and ranking", func(t *testing.T) {
		result, err := p.Plan(ctx, -23.55, -46.63, 23.54, 46.64, DefaultOptions())
		require.NoError(t, err)

		assert.Len(t, result.OriginStops, 1)
		assert.Len(t, result.DestinationStops, 1)
		require.Len(t, result.Direct, 1)
		require.Len(t, result.Transfers, 1)
		require.Len(t, result.Alternatives, 2)

		assert.Equal(t, PriorityArrivesFirst, result.Priority)
		assert.Equal(t, 1, result.Stats.DirectFound)
		assert.Equal(t, 1, result.Stats.TransfersFound)
		assert.Equal(t, 2, result.Stats.Alternatives)

		// Direct on R1 waits 5; transfer waits 2+8=10.
		assert.Equal(t, 0, result.Alternatives[0].TransferCount)
		assert.Equal(t, 5, result.Alternatives[0].WaitScoreMins)
	})

	t.Run("max_transfers zero skips the transfer search", func(t *testing.T) {
		opts := DefaultOptions()
		opts.MaxTransfers = 0
		result, err := p.Plan(ctx, -23.55, -46.63, 23.54, 46.64, opts)
		require.NoError(t, err)
		assert.Empty(t, result.Transfers)
		require.Len(t, result.Alternatives, 1)
		assert.Equal(t, 0, result.Alternatives[0].TransferCount)
	})

	t.Run("direct limit zero yields no direct candidates", func(t *testing.T) {
		opts := DefaultOptions()
		opts.DirectLimit = 0
		result, err := p.Plan(ctx, -23.55, -46.63, 23.54, 46.64, opts)
		require.NoError(t, err)
		assert.Empty(t, result.Direct)
		require.Len(t, result.Alternatives, 1)
		assert.Equal(t, 1, result.Alternatives[0].TransferCount)
	})

	t.Run("alternatives are truncated to max_alternatives", func(t *testing.T) {
		opts := DefaultOptions()
		opts.MaxAlternatives = 1
		result, err := p.Plan(ctx, -23.55, -46.63, 23.54, 46.64, opts)
		require.NoError(t, err)
		assert.Len(t, result.Alternatives, 1)
		assert.Equal(t, 2, result.Stats.DirectFound+result.Stats.TransfersFound)
	})

	t.Run("no nearby stops produces an empty but valid result", func(t *testing.T) {
		empty := &fakeNearby{stops: map[string][]models.Stop{}}
		p2 := NewPlanner(empty, NewFinder(legSrc), NewRanker(arrivals))
		result, err := p2.Plan(ctx, -1, -1, 1, 1, DefaultOptions())
		require.NoError(t, err)
		assert.Empty(t, result.OriginStops)
		assert.Empty(t, result.Direct)
		assert.Empty(t, result.Transfers)
		assert.Empty(t, result.Alternatives)
	})
}
