package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peantunes/sptrans-core/internal/models"
)

// fakeArrivalSource serves canned arrivals per stop id
type fakeArrivalSource struct {
	arrivals map[string][]models.Arrival
	calls    int
}

func (f *fakeArrivalSource) NextArrivals(_ context.Context, stopID, _, _ string, limit int) ([]models.Arrival, error) {
	f.calls++
	arrivals := f.arrivals[stopID]
	if len(arrivals) > limit {
		arrivals = arrivals[:limit]
	}
	return arrivals, nil
}

func arrival(routeID string, wait int) models.Arrival {
	return models.Arrival{RouteID: routeID, RouteShortName: routeID, WaitMins: wait}
}

func directCandidate(route string, origin, dest models.Stop, fromSeq, toSeq int) models.ItineraryCandidate {
	return models.ItineraryCandidate{
		Legs:        []models.Leg{leg(route, "T-"+route, origin.ID, fromSeq, dest.ID, toSeq)},
		Origin:      &origin,
		Destination: &dest,
	}
}

func transferCandidate(route1, route2 string, origin, transfer, dest models.Stop, hops1, hops2 int) models.ItineraryCandidate {
	return models.ItineraryCandidate{
		Legs: []models.Leg{
			leg(route1, "T-"+route1, origin.ID, 1, transfer.ID, 1+hops1),
			leg(route2, "T-"+route2, transfer.ID, 2, dest.ID, 2+hops2),
		},
		Origin:      &origin,
		Transfer:    &transfer,
		Destination: &dest,
	}
}

func TestRankArrivesFirst(t *testing.T) {
	origin := stop("A", 100)
	dest := stop("B", 150)
	transfer := stop("X", 0)

	arrivals := &fakeArrivalSource{arrivals: map[string][]models.Arrival{
		"A": {arrival("SLOW", 20), arrival("FAST", 3)},
		"X": {arrival("CONN", 4)},
	}}
	ranker := NewRanker(arrivals)

	direct := []models.ItineraryCandidate{
		directCandidate("SLOW", origin, dest, 1, 4),
		directCandidate("FAST", origin, dest, 1, 8),
	}
	transfers := []models.ItineraryCandidate{
		transferCandidate("FAST", "CONN", origin, transfer, dest, 2, 2),
	}

	ranked, err := ranker.Rank(context.Background(), direct, transfers, 10, PriorityArrivesFirst)
	require.NoError(t, err)
	require.Len(t, ranked, 3)

	// FAST direct waits 3; the transfer option waits 3+4=7; SLOW waits 20.
	assert.Equal(t, "FAST", ranked[0].Candidate.Legs[0].RouteID)
	assert.Equal(t, 0, ranked[0].TransferCount)
	assert.Equal(t, 3, ranked[0].WaitScoreMins)

	assert.Equal(t, 1, ranked[1].TransferCount)
	assert.Equal(t, 7, ranked[1].WaitScoreMins)

	assert.Equal(t, "SLOW", ranked[2].Candidate.Legs[0].RouteID)
}

func TestRankArrivalScoreSentinels(t *testing.T) {
	origin := stop("A", 100)
	dest := stop("B", 150)
	transfer := stop("X", 0)

	// No arrivals anywhere: every lookup misses.
	ranker := NewRanker(&fakeArrivalSource{arrivals: map[string][]models.Arrival{}})

	t.Run("direct with no matching arrival is unbounded", func(t *testing.T) {
		ranked, err := ranker.Rank(context.Background(),
			[]models.ItineraryCandidate{directCandidate("R1", origin, dest, 1, 3)},
			nil, 10, PriorityArrivesFirst)
		require.NoError(t, err)
		require.Len(t, ranked, 1)
		assert.True(t, ranked[0].ArrivalScore.Unbounded)
	})

	t.Run("transfer with both legs unmatched gets a finite penalty", func(t *testing.T) {
		ranked, err := ranker.Rank(context.Background(), nil,
			[]models.ItineraryCandidate{transferCandidate("R1", "R2", origin, transfer, dest, 2, 2)},
			10, PriorityArrivesFirst)
		require.NoError(t, err)
		require.Len(t, ranked, 1)
		assert.False(t, ranked[0].ArrivalScore.Unbounded)
		assert.Equal(t, 2*halfScore, ranked[0].ArrivalScore.Value)
	})

	t.Run("unmatched transfer ranks above unmatched direct", func(t *testing.T) {
		ranked, err := ranker.Rank(context.Background(),
			[]models.ItineraryCandidate{directCandidate("R1", origin, dest, 1, 3)},
			[]models.ItineraryCandidate{transferCandidate("R2", "R3", origin, transfer, dest, 2, 2)},
			10, PriorityArrivesFirst)
		require.NoError(t, err)
		require.Len(t, ranked, 2)
		assert.Equal(t, 1, ranked[0].TransferCount)
		assert.Equal(t, 0, ranked[1].TransferCount)
	})

	t.Run("one matched leg halves the penalty", func(t *testing.T) {
		arrivals := &fakeArrivalSource{arrivals: map[string][]models.Arrival{
			"A": {arrival("R1", 6)},
		}}
		r := NewRanker(arrivals)
		ranked, err := r.Rank(context.Background(), nil,
			[]models.ItineraryCandidate{transferCandidate("R1", "R2", origin, transfer, dest, 2, 2)},
			10, PriorityArrivesFirst)
		require.NoError(t, err)
		require.Len(t, ranked, 1)
		assert.Equal(t, 6+halfScore, ranked[0].ArrivalScore.Value)
	})
}

func TestRankPriorities(t *testing.T) {
	origin := stop("A", 100)
	originFar := stop("A2", 900)
	dest := stop("B", 150)
	destFar := stop("B2", 700)
	transfer := stop("X", 0)

	arrivals := &fakeArrivalSource{arrivals: map[string][]models.Arrival{}}
	ranker := NewRanker(arrivals)
	ctx := context.Background()

	t.Run("fewest_transfers prefers direct regardless of hops", func(t *testing.T) {
		direct := []models.ItineraryCandidate{directCandidate("R1", origin, dest, 1, 4)} // 3 hops
		transfers := []models.ItineraryCandidate{
			transferCandidate("R2", "R3", origin, transfer, dest, 1, 1), // 2 hops, 1 transfer
		}
		ranked, err := ranker.Rank(ctx, direct, transfers, 10, PriorityFewestTransfers)
		require.NoError(t, err)
		require.Len(t, ranked, 2)
		assert.Equal(t, 0, ranked[0].TransferCount)
		assert.Equal(t, 3, ranked[0].Hops)
	})

	t.Run("shortest orders by hop count first", func(t *testing.T) {
		direct := []models.ItineraryCandidate{directCandidate("R1", origin, dest, 1, 9)} // 8 hops
		transfers := []models.ItineraryCandidate{
			transferCandidate("R2", "R3", origin, transfer, dest, 1, 2), // 3 hops
		}
		ranked, err := ranker.Rank(ctx, direct, transfers, 10, PriorityShortest)
		require.NoError(t, err)
		assert.Equal(t, 1, ranked[0].TransferCount)
		assert.Equal(t, 3, ranked[0].Hops)
	})

	t.Run("closest_origin orders by origin distance", func(t *testing.T) {
		direct := []models.ItineraryCandidate{
			directCandidate("R1", originFar, dest, 1, 2),
			directCandidate("R2", origin, dest, 1, 7),
		}
		ranked, err := ranker.Rank(ctx, direct, nil, 10, PriorityClosestOrigin)
		require.NoError(t, err)
		assert.Equal(t, "R2", ranked[0].Candidate.Legs[0].RouteID)
	})

	t.Run("closest_origin ties fall back to hop count", func(t *testing.T) {
		direct := []models.ItineraryCandidate{
			directCandidate("R1", origin, dest, 1, 7), // 6 hops
			directCandidate("R2", origin, dest, 1, 3), // 2 hops
		}
		ranked, err := ranker.Rank(ctx, direct, nil, 10, PriorityClosestOrigin)
		require.NoError(t, err)
		assert.Equal(t, "R2", ranked[0].Candidate.Legs[0].RouteID)
		assert.Equal(t, "R1", ranked[1].Candidate.Legs[0].RouteID)
	})

	t.Run("closest_destination orders by destination distance", func(t *testing.T) {
		direct := []models.ItineraryCandidate{
			directCandidate("R1", origin, destFar, 1, 2),
			directCandidate("R2", origin, dest, 1, 7),
		}
		ranked, err := ranker.Rank(ctx, direct, nil, 10, PriorityClosestDestination)
		require.NoError(t, err)
		assert.Equal(t, "R2", ranked[0].Candidate.Legs[0].RouteID)
	})

	t.Run("non-arrival priorities skip arrival lookups", func(t *testing.T) {
		arrivals.calls = 0
		direct := []models.ItineraryCandidate{directCandidate("R1", origin, dest, 1, 4)}
		_, err := ranker.Rank(ctx, direct, nil, 10, PriorityShortest)
		require.NoError(t, err)
		assert.Zero(t, arrivals.calls)
	})
}

func TestRankDeterminismAndTruncation(t *testing.T) {
	origin := stop("A", 100)
	dest := stop("B", 100)

	ranker := NewRanker(&fakeArrivalSource{arrivals: map[string][]models.Arrival{}})
	ctx := context.Background()

	direct := []models.ItineraryCandidate{
		directCandidate("R1", origin, dest, 1, 4),
		directCandidate("R2", origin, dest, 1, 4),
		directCandidate("R3", origin, dest, 1, 4),
	}

	first, err := ranker.Rank(ctx, direct, nil, 2, PriorityFewestTransfers)
	require.NoError(t, err)
	require.Len(t, first, 2)

	// All metrics tie; stable sort preserves input order on every run.
	for i := 0; i < 5; i++ {
		again, err := ranker.Rank(ctx, direct, nil, 2, PriorityFewestTransfers)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, "R1", first[0].Candidate.Legs[0].RouteID)
	assert.Equal(t, "R2", first[1].Candidate.Legs[0].RouteID)
}

func TestNormalizePriority(t *testing.T) {
	tests := []struct {
		input    string
		expected Priority
	}{
		{"arrives_first", PriorityArrivesFirst},
		{"shortest", PriorityShortest},
		{"fewest_transfers", PriorityFewestTransfers},
		{"closest_origin", PriorityClosestOrigin},
		{"closest_destination", PriorityClosestDestination},
		{"", PriorityArrivesFirst},
		{"bogus", PriorityArrivesFirst},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizePriority(tt.input))
		})
	}
}

func TestMetricCompare(t *testing.T) {
	assert.Equal(t, -1, Finite(1).Compare(Finite(2)))
	assert.Equal(t, 1, Finite(2).Compare(Finite(1)))
	assert.Equal(t, 0, Finite(3).Compare(Finite(3)))
	assert.Equal(t, 1, Unbounded().Compare(Finite(maxFiniteScore)))
	assert.Equal(t, -1, Finite(0).Compare(Unbounded()))
	assert.Equal(t, 0, Unbounded().Compare(Unbounded()))

	assert.True(t, Finite(2).Add(Unbounded()).Unbounded)
	assert.Equal(t, Finite(5), Finite(2).Add(Finite(3)))
}

func TestHopCountMissingSequences(t *testing.T) {
	origin := stop("A", 10)
	dest := stop("B", 10)

	c := models.ItineraryCandidate{
		Legs:        []models.Leg{leg("R1", "T1", "A", 0, "B", 0)},
		Origin:      &origin,
		Destination: &dest,
	}
	assert.True(t, hopCount(c).Unbounded)
}
