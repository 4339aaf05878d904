package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/peantunes/sptrans-core/internal/api"
	"github.com/peantunes/sptrans-core/internal/cache"
	"github.com/peantunes/sptrans-core/internal/config"
	"github.com/peantunes/sptrans-core/internal/dataset"
	"github.com/peantunes/sptrans-core/internal/db"
	"github.com/peantunes/sptrans-core/internal/geo"
	"github.com/peantunes/sptrans-core/internal/linestatus"
	"github.com/peantunes/sptrans-core/internal/middleware"
	"github.com/peantunes/sptrans-core/internal/planner"
	"github.com/peantunes/sptrans-core/internal/schedule"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("Failed to resolve timezone: %v", err)
	}

	pool, err := db.GetDB()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connection established")

	if _, err := cache.GetClient(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer cache.Close()
	log.Println("Redis connection established")

	data, err := dataset.New(context.Background(), pool)
	if err != nil {
		log.Fatalf("Failed to initialize dataset: %v", err)
	}
	if data.HasCalendarDates() {
		log.Println("Calendar exceptions table detected")
	} else {
		log.Println("No calendar_dates table, running on weekly patterns only")
	}

	resolver := schedule.NewResolver(data, data.HasCalendarDates())
	calculator := schedule.NewCalculator(data, resolver, loc)
	finder := planner.NewFinder(data)
	ranker := planner.NewRanker(calculator)
	locator := geo.NewLocator(pool)
	trips := planner.NewPlanner(locator, finder, ranker)
	lines := linestatus.NewService(cfg.LineStatusURL, cfg.LineStatusTTL)

	server := api.NewServer(data, calculator, trips, locator, lines, loc)

	app := fiber.New(fiber.Config{
		AppName:      "SPTrans Core API",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorHandler: errorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	if rdb, err := cache.GetClient(); err == nil {
		app.Use(middleware.RateLimit(rdb, middleware.DefaultRateLimits()))
	}

	app.Get("/health", server.Health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/v1/stops/nearby", server.StopsNearby)
	app.Get("/v1/stops/:id/arrivals", server.StopArrivals)
	app.Get("/v1/stops/:id", server.StopDetails)
	app.Get("/v1/routes", server.RoutesList)
	app.Get("/v1/trips/plan", server.PlanTrip)
	app.Get("/v1/lines/status", server.LineStatus)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(404).JSON(fiber.Map{"error": "endpoint not found"})
	})

	addr := fmt.Sprintf(":%s", cfg.Port)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down gracefully...")
		if err := app.Shutdown(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	}()

	log.Printf("Server listening on http://localhost%s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	log.Printf("Error: %v", err)

	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
