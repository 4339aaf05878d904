package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peantunes/sptrans-core/internal/models"
)

type fakeLegSource struct {
	direct    []models.Leg
	departing []models.Leg
	arriving  []models.Leg
	stops     map[string]models.Stop

	directCalls int
}

func (f *fakeLegSource) DirectConnections(_ context.Context, originIDs, destIDs []string, limit int) ([]models.Leg, error) {
	f.directCalls++
	var out []models.Leg
	for _, leg := range f.direct {
		if contains(originIDs, leg.FromStopID) && contains(destIDs, leg.ToStopID) && len(out) < limit {
			out = append(out, leg)
		}
	}
	return out, nil
}

func (f *fakeLegSource) DepartingLegs(_ context.Context, stopIDs []string, limit int) ([]models.Leg, error) {
	return filterLegs(f.departing, func(l models.Leg) bool { return contains(stopIDs, l.FromStopID) }, limit), nil
}

func (f *fakeLegSource) ArrivingLegs(_ context.Context, stopIDs []string, limit int) ([]models.Leg, error) {
	return filterLegs(f.arriving, func(l models.Leg) bool { return contains(stopIDs, l.ToStopID) }, limit), nil
}

func (f *fakeLegSource) StopsByID(_ context.Context, ids []string) (map[string]models.Stop, error) {
	out := make(map[string]models.Stop)
	for _, id := range ids {
		if s, ok := f.stops[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

func filterLegs(legs []models.Leg, keep func(models.Leg) bool, limit int) []models.Leg {
	var out []models.Leg
	for _, l := range legs {
		if keep(l) && len(out) < limit {
			out = append(out, l)
		}
	}
	return out
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func leg(route, trip, from string, fromSeq int, to string, toSeq int) models.Leg {
	return models.Leg{
		RouteID:        route,
		RouteShortName: route,
		TripID:         trip,
		FromStopID:     from,
		FromSequence:   fromSeq,
		ToStopID:       to,
		ToSequence:     toSeq,
	}
}

func stop(id string, distance int) models.Stop {
	return models.Stop{ID: id, Name: "Stop " + id, DistanceM: &distance}
}

func TestFindDirect(t *testing.T) {
	src := &fakeLegSource{
		direct: []models.Leg{
			leg("R1", "T1", "A", 2, "B", 5),
			leg("R1", "T2", "A", 1, "B", 4), // same (route, origin, dest) tuple
			leg("R2", "T3", "A", 3, "B", 10),
		},
	}
	finder := NewFinder(src)
	origins := []models.Stop{stop("A", 100)}
	dests := []models.Stop{stop("B", 200)}

	t.Run("deduplicates by route and endpoints", func(t *testing.T) {
		candidates, err := finder.FindDirect(context.Background(), origins, dests, 10)
		require.NoError(t, err)
		require.Len(t, candidates, 2)
		assert.Equal(t, "R1", candidates[0].Legs[0].RouteID)
		assert.Equal(t, "R2", candidates[1].Legs[0].RouteID)
	})

	t.Run("attaches origin and destination stop entities", func(t *testing.T) {
		candidates, err := finder.FindDirect(context.Background(), origins, dests, 10)
		require.NoError(t, err)
		require.NotNil(t, candidates[0].Origin)
		require.NotNil(t, candidates[0].Destination)
		assert.Equal(t, "A", candidates[0].Origin.ID)
		assert.Equal(t, "B", candidates[0].Destination.ID)
		assert.Nil(t, candidates[0].Transfer)
	})

	t.Run("caps at limit", func(t *testing.T) {
		candidates, err := finder.FindDirect(context.Background(), origins, dests, 1)
		require.NoError(t, err)
		assert.Len(t, candidates, 1)
	})

	t.Run("empty inputs short-circuit without querying", func(t *testing.T) {
		src.directCalls = 0

		candidates, err := finder.FindDirect(context.Background(), nil, dests, 10)
		require.NoError(t, err)
		assert.Empty(t, candidates)

		candidates, err = finder.FindDirect(context.Background(), origins, nil, 10)
		require.NoError(t, err)
		assert.Empty(t, candidates)

		candidates, err = finder.FindDirect(context.Background(), origins, dests, 0)
		require.NoError(t, err)
		assert.Empty(t, candidates)

		assert.Zero(t, src.directCalls)
	})
}

func TestFindOneTransfer(t *testing.T) {
	src := &fakeLegSource{
		departing: []models.Leg{
			leg("R1", "T1", "A", 1, "X", 4),
			leg("R1", "T1", "A", 1, "B", 6), // "transfer" at the destination itself
			leg("R3", "T5", "A", 2, "A", 3), // degenerate, transfer at origin
			leg("R4", "T6", "A", 1, "Y", 2),
		},
		arriving: []models.Leg{
			leg("R2", "T2", "X", 3, "B", 8),
			leg("R1", "T3", "X", 2, "B", 7), // same route as origin leg R1
			leg("R2", "T4", "B", 1, "B", 9),
			leg("R5", "T7", "Y", 5, "B", 11),
		},
		stops: map[string]models.Stop{
			"X": {ID: "X", Name: "Transfer X"},
			"Y": {ID: "Y", Name: "Transfer Y"},
		},
	}
	finder := NewFinder(src)
	origins := []models.Stop{stop("A", 50)}
	dests := []models.Stop{stop("B", 80)}

	t.Run("pairs legs through a common transfer stop", func(t *testing.T) {
		candidates, err := finder.FindOneTransfer(context.Background(), origins, dests, 100, 10)
		require.NoError(t, err)
		require.Len(t, candidates, 2)

		first := candidates[0]
		assert.Equal(t, "R1", first.Legs[0].RouteID)
		assert.Equal(t, "R2", first.Legs[1].RouteID)
		require.NotNil(t, first.Transfer)
		assert.Equal(t, "X", first.Transfer.ID)
		assert.Equal(t, "Transfer X", first.Transfer.Name)

		second := candidates[1]
		assert.Equal(t, "R4", second.Legs[0].RouteID)
		assert.Equal(t, "R5", second.Legs[1].RouteID)
	})

	t.Run("never reuses a route across both legs", func(t *testing.T) {
		candidates, err := finder.FindOneTransfer(context.Background(), origins, dests, 100, 10)
		require.NoError(t, err)
		for _, c := range candidates {
			assert.NotEqual(t, c.Legs[0].RouteID, c.Legs[1].RouteID)
		}
	})

	t.Run("never transfers at the true origin or destination", func(t *testing.T) {
		candidates, err := finder.FindOneTransfer(context.Background(), origins, dests, 100, 10)
		require.NoError(t, err)
		for _, c := range candidates {
			transferID := c.Legs[0].ToStopID
			assert.NotEqual(t, c.Legs[0].FromStopID, transferID)
			assert.NotEqual(t, c.Legs[1].ToStopID, transferID)
		}
	})

	t.Run("short-circuits at limit", func(t *testing.T) {
		candidates, err := finder.FindOneTransfer(context.Background(), origins, dests, 100, 1)
		require.NoError(t, err)
		assert.Len(t, candidates, 1)
	})

	t.Run("limit zero returns empty", func(t *testing.T) {
		candidates, err := finder.FindOneTransfer(context.Background(), origins, dests, 100, 0)
		require.NoError(t, err)
		assert.Empty(t, candidates)
	})
}

func TestFindOneTransferDeduplicates(t *testing.T) {
	src := &fakeLegSource{
		departing: []models.Leg{
			leg("R1", "T1", "A", 1, "X", 4),
			leg("R1", "T9", "A", 2, "X", 5), // different trip, same 5-tuple
		},
		arriving: []models.Leg{
			leg("R2", "T2", "X", 3, "B", 8),
		},
		stops: map[string]models.Stop{"X": {ID: "X", Name: "Transfer X"}},
	}
	finder := NewFinder(src)

	candidates, err := finder.FindOneTransfer(context.Background(),
		[]models.Stop{stop("A", 10)}, []models.Stop{stop("B", 10)}, 100, 10)
	require.NoError(t, err)
	assert.Len(t, candidates, 1)
}
