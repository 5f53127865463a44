package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/i474232898/air-quality-service/internal/airquality"
	"github.com/i474232898/air-quality-service/internal/airquality/providers"
	httpapi "github.com/i474232898/air-quality-service/internal/api/http"
	"github.com/i474232898/air-quality-service/internal/config"
	"github.com/i474232898/air-quality-service/internal/oracle"
	"github.com/i474232898/air-quality-service/internal/scheduler"
	"github.com/i474232898/air-quality-service/internal/store"
	"github.com/i474232898/air-quality-service/internal/timezone"
)

func main() {
	syncOnce := flag.Bool("sync-once", false, "sync the scheduler locations (or the default location) once and exit")
	flag.Parse()

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := cfg.NewLogger()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	recordStore, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open store", "backend", cfg.Store.Backend, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.Provider.HTTPTimeout,
	}

	provider := providers.NewOpenMeteoProvider(httpClient, providers.OpenMeteoConfig{
		AirQualityURL: cfg.Provider.AirQualityURL,
		WeatherURL:    cfg.Provider.WeatherURL,
		Backoff: providers.BackoffConfig{
			MaxRetries:      cfg.Provider.MaxRetries,
			InitialInterval: cfg.Provider.RetryInitial,
			MaxInterval:     cfg.Provider.RetryMax,
		},
	})

	// A configured zero disables history; the service treats zero as unset.
	pastDays := cfg.Provider.SyncPastDays
	if pastDays == 0 {
		pastDays = -1
	}

	opts := airquality.Options{
		DefaultLocation: cfg.DefaultLocation(),
		ForecastDays:    cfg.Provider.ForecastDays,
		SyncPastDays:    pastDays,
		FetchTimeout:    cfg.Request.Timeout,
	}
	if cfg.Location.LookupTimezone {
		resolver, err := timezone.NewResolver()
		if err != nil {
			log.Warn("timezone lookup disabled", "error", err)
		} else {
			opts.TimezoneResolver = resolver
		}
	}

	// Core service orchestrating provider and store.
	service := airquality.NewService(provider, recordStore, opts, log)

	if *syncOnce {
		locations := cfg.Scheduler.Locations
		if len(locations) == 0 {
			locations = []airquality.LocationQuery{{}}
		}
		rows := scheduler.New(locations, 0, service, log).RunOnce(ctx)
		log.Info("sync-once finished", "rows", rows)
		return
	}

	sched := scheduler.New(cfg.Scheduler.Locations, cfg.Scheduler.Interval, service, log)

	if err := sched.Start(); err != nil {
		log.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()

	predictor := oracle.NewClient(cfg.Oracle.URL, &http.Client{Timeout: cfg.Oracle.Timeout})

	app := fiber.New(fiber.Config{
		AppName:               "air-quality-service",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          60 * time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(cors.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "air-quality-service",
		})
	})

	httpapi.RegisterRoutes(app, service, predictor)

	go func() {
		log.Info("http server listening", "port", cfg.Server.Port, "store", cfg.Store.Backend)
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			log.Error("fiber server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("error during shutdown", "error", err)
	}
}

// openStore builds the configured record store and its cleanup function.
func openStore(ctx context.Context, cfg *config.AppConfig, log *slog.Logger) (airquality.Store, func(), error) {
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		s, err := store.NewSQLiteStore(ctx, cfg.Store.SQLitePath, log)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			if err := s.Close(); err != nil {
				log.Error("closing sqlite store", "error", err)
			}
		}, nil

	case config.BackendMongo:
		s, err := store.NewMongoStore(ctx, store.MongoConfig{
			URI:            cfg.Store.MongoURI,
			Database:       cfg.Store.MongoDatabase,
			Collection:     cfg.Store.MongoCollection,
			ConnectTimeout: cfg.Store.MongoTimeout,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.Close(closeCtx); err != nil {
				log.Error("closing mongo store", "error", err)
			}
		}, nil

	default:
		return store.NewMemoryStore(), func() {}, nil
	}
}
