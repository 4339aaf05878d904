package api

import (
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/peantunes/sptrans-core/internal/cache"
	"github.com/peantunes/sptrans-core/internal/dataset"
	"github.com/peantunes/sptrans-core/internal/db"
	"github.com/peantunes/sptrans-core/internal/geo"
	"github.com/peantunes/sptrans-core/internal/linestatus"
	"github.com/peantunes/sptrans-core/internal/metrics"
	"github.com/peantunes/sptrans-core/internal/models"
	"github.com/peantunes/sptrans-core/internal/planner"
	"github.com/peantunes/sptrans-core/internal/schedule"
)

// Server wires the planning core and its collaborators into HTTP handlers
type Server struct {
	data       *dataset.Source
	calculator *schedule.Calculator
	planner    *planner.Planner
	locator    *geo.Locator
	lines      *linestatus.Service
	loc        *time.Location
}

// NewServer creates a Server
func NewServer(
	data *dataset.Source,
	calculator *schedule.Calculator,
	p *planner.Planner,
	locator *geo.Locator,
	lines *linestatus.Service,
	loc *time.Location,
) *Server {
	return &Server{
		data:       data,
		calculator: calculator,
		planner:    p,
		locator:    locator,
		lines:      lines,
		loc:        loc,
	}
}

// ArrivalsResponse is the response for the arrivals endpoint
type ArrivalsResponse struct {
	StopID   string           `json:"stop_id"`
	Time     string           `json:"time"`
	Date     string           `json:"date"`
	Arrivals []models.Arrival `json:"arrivals"`
	Total    int              `json:"total"`
}

// StopArrivals handles GET /v1/stops/:id/arrivals
func (s *Server) StopArrivals(c *fiber.Ctx) error {
	stopID := c.Params("id")
	if stopID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "stop ID is required"})
	}

	now := time.Now().In(s.loc)

	timeStr := c.Query("time")
	if timeStr == "" {
		timeStr = now.Format("15:04:05")
	}
	dateStr := c.Query("date")
	if dateStr == "" {
		dateStr = now.Format("2006-01-02")
	}

	limit, err := strconv.Atoi(c.Query("limit", "20"))
	if err != nil || limit <= 0 || limit > 50 {
		limit = 20
	}

	ctx := c.Context()

	// Cache only when the time parses; the bucket key needs seconds.
	var cacheKey string
	if timeSecs, err := timeToCacheBucket(timeStr); err == nil {
		cacheKey = cache.ArrivalsKey(stopID, dateStr, timeSecs, limit)
		var cached ArrivalsResponse
		if err := cache.GetJSON(ctx, cacheKey, &cached); err == nil {
			metrics.ArrivalsRequests.WithLabelValues("hit").Inc()
			return c.JSON(cached)
		}
	}
	metrics.ArrivalsRequests.WithLabelValues("miss").Inc()

	arrivals, err := s.calculator.NextArrivals(ctx, stopID, timeStr, dateStr, limit)
	if err != nil {
		log.Printf("Arrivals computation error: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}

	resp := ArrivalsResponse{
		StopID:   stopID,
		Time:     timeStr,
		Date:     dateStr,
		Arrivals: arrivals,
		Total:    len(arrivals),
	}

	if cacheKey != "" {
		if err := cache.SetJSON(ctx, cacheKey, resp, 60*time.Second); err != nil {
			log.Printf("Cache set error: %v", err)
		}
	}

	return c.JSON(resp)
}

// PlanTrip handles GET /v1/trips/plan
func (s *Server) PlanTrip(c *fiber.Ctx) error {
	originLat, err1 := parseCoordinate(c.Query("origin_lat"), 90)
	originLon, err2 := parseCoordinate(c.Query("origin_lon"), 180)
	destLat, err3 := parseCoordinate(c.Query("dest_lat"), 90)
	destLon, err4 := parseCoordinate(c.Query("dest_lon"), 180)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "origin_lat, origin_lon, dest_lat and dest_lon are required coordinates",
		})
	}

	opts := planOptions(c)
	metrics.PlanRequests.WithLabelValues(string(opts.Priority)).Inc()

	ctx := c.Context()

	cacheKey := cache.PlanKey(originLat, originLon, destLat, destLon, optsKey(opts))
	var cached planner.PlanResult
	if err := cache.GetJSON(ctx, cacheKey, &cached); err == nil {
		return c.JSON(cached)
	}

	result, err := s.planner.Plan(ctx, originLat, originLon, destLat, destLon, opts)
	if err != nil {
		log.Printf("Trip planning error: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}

	if err := cache.SetJSON(ctx, cacheKey, result, 10*time.Minute); err != nil {
		log.Printf("Cache set error: %v", err)
	}

	return c.JSON(result)
}

// StopsNearby handles GET /v1/stops/nearby
func (s *Server) StopsNearby(c *fiber.Ctx) error {
	lat, errLat := parseCoordinate(c.Query("lat"), 90)
	lon, errLon := parseCoordinate(c.Query("lon"), 180)
	if errLat != nil || errLon != nil {
		return c.Status(400).JSON(fiber.Map{"error": "lat and lon are required coordinates"})
	}

	limit, err := strconv.Atoi(c.Query("limit", "10"))
	if err != nil || limit <= 0 || limit > 50 {
		limit = 10
	}

	stops, err := s.locator.FindNearbyStops(c.Context(), lat, lon, limit)
	if err != nil {
		log.Printf("Nearby stops query error: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}
	if stops == nil {
		stops = []models.Stop{}
	}

	return c.JSON(fiber.Map{"stops": stops, "total": len(stops)})
}

// StopDetails handles GET /v1/stops/:id
func (s *Server) StopDetails(c *fiber.Ctx) error {
	stopID := c.Params("id")
	if stopID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "stop ID is required"})
	}

	stop, err := s.data.GetStop(c.Context(), stopID)
	if err != nil {
		log.Printf("Stop query error: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}
	if stop == nil {
		return c.Status(404).JSON(fiber.Map{"error": "stop not found"})
	}

	return c.JSON(stop)
}

// RoutesList handles GET /v1/routes
func (s *Server) RoutesList(c *fiber.Ctx) error {
	limit, err := strconv.Atoi(c.Query("limit", "100"))
	if err != nil || limit <= 0 || limit > 1000 {
		limit = 100
	}

	routes, err := s.data.ListRoutes(c.Context(), limit)
	if err != nil {
		log.Printf("Routes query error: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}
	if routes == nil {
		routes = []models.Route{}
	}

	return c.JSON(fiber.Map{"routes": routes, "total": len(routes)})
}

// LineStatus handles GET /v1/lines/status
func (s *Server) LineStatus(c *fiber.Ctx) error {
	lines, err := s.lines.Lines(c.Context())
	if err != nil {
		log.Printf("Line status error: %v", err)
		return c.Status(502).JSON(fiber.Map{"error": "line status unavailable"})
	}

	return c.JSON(fiber.Map{"lines": lines, "total": len(lines)})
}

// Health handles GET /health
func (s *Server) Health(c *fiber.Ctx) error {
	ctx := c.Context()

	dbStatus := "ok"
	dbErr := db.HealthCheck(ctx)
	if dbErr != nil {
		dbStatus = dbErr.Error()
	}

	redisStatus := "ok"
	redisErr := cache.HealthCheck(ctx)
	if redisErr != nil {
		redisStatus = redisErr.Error()
	}

	status := "healthy"
	httpStatus := 200
	if dbErr != nil || redisErr != nil {
		status = "unhealthy"
		httpStatus = 503
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
	})
}

// planOptions reads the planning knobs from query parameters. Absent or
// non-numeric values fall back to their defaults; range clamping happens in
// the planner.
func planOptions(c *fiber.Ctx) planner.Options {
	opts := planner.DefaultOptions()

	opts.OriginLimit = queryInt(c, "origin_limit", opts.OriginLimit)
	opts.DestinationLimit = queryInt(c, "destination_limit", opts.DestinationLimit)
	opts.DirectLimit = queryInt(c, "direct_limit", opts.DirectLimit)
	opts.TransferLimit = queryInt(c, "transfer_limit", opts.TransferLimit)
	opts.MaxTransfers = queryInt(c, "max_transfers", opts.MaxTransfers)
	opts.MaxAlternatives = queryInt(c, "max_alternatives", opts.MaxAlternatives)
	opts.Priority = planner.NormalizePriority(c.Query("ranking_priority"))

	return opts
}

func queryInt(c *fiber.Ctx, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

// optsKey renders options into a stable cache key fragment
func optsKey(o planner.Options) string {
	return fmt.Sprintf("%d:%d:%d:%d:%d:%d:%s",
		o.OriginLimit, o.DestinationLimit, o.DirectLimit, o.TransferLimit,
		o.MaxTransfers, o.MaxAlternatives, o.Priority)
}

// parseCoordinate parses a required latitude or longitude query value
func parseCoordinate(raw string, bound float64) (float64, error) {
	if raw == "" {
		return 0, fmt.Errorf("missing coordinate")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid coordinate: %w", err)
	}
	if v < -bound || v > bound {
		return 0, fmt.Errorf("coordinate out of range")
	}
	return v, nil
}

// timeToCacheBucket converts HH:MM:SS into seconds for arrivals cache keys
func timeToCacheBucket(timeStr string) (int, error) {
	t, err := time.Parse("15:04:05", timeStr)
	if err != nil {
		return 0, err
	}
	return t.Hour()*3600 + t.Minute()*60 + t.Second(), nil
}
