// Package geo resolves coordinates to nearby stops, ordered by a coarse
// great-circle distance computed in SQL.
package geo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/peantunes/sptrans-core/internal/models"
)

// Locator finds stops near a coordinate
type Locator struct {
	pool *pgxpool.Pool
}

// NewLocator creates a Locator over the stops table
func NewLocator(pool *pgxpool.Pool) *Locator {
	return &Locator{pool: pool}
}

// FindNearbyStops returns up to limit stops ordered by distance from
// (lat, lon). Each returned stop carries its distance in meters.
func (l *Locator) FindNearbyStops(ctx context.Context, lat, lon float64, limit int) ([]models.Stop, error) {
	if limit <= 0 {
		return []models.Stop{}, nil
	}

	rows, err := l.pool.Query(ctx, `
		SELECT stop_id, name, COALESCE(description, ''), lat, lon,
			ROUND(
				6371000 * acos(
					LEAST(1.0, GREATEST(-1.0,
						cos(radians($1)) * cos(radians(lat)) *
						cos(radians(lon) - radians($2)) +
						sin(radians($1)) * sin(radians(lat))
					))
				)
			)::int AS distance
		FROM stops
		ORDER BY distance
		LIMIT $3
	`, lat, lon, limit)
	if err != nil {
		return nil, fmt.Errorf("nearby stop query: %w", err)
	}
	defer rows.Close()

	var stops []models.Stop
	for rows.Next() {
		var stop models.Stop
		var distance int
		if err := rows.Scan(&stop.ID, &stop.Name, &stop.Description, &stop.Lat, &stop.Lon, &distance); err != nil {
			return nil, fmt.Errorf("scanning nearby stop: %w", err)
		}
		stop.DistanceM = &distance
		stops = append(stops, stop)
	}
	return stops, rows.Err()
}
