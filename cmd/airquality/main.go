package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/i474232898/airquality/internal/airquality"
	"github.com/i474232898/airquality/internal/airquality/providers"
	httpapi "github.com/i474232898/airquality/internal/api/http"
	"github.com/i474232898/airquality/internal/config"
	"github.com/i474232898/airquality/internal/device"
	"github.com/i474232898/airquality/internal/geocode"
	"github.com/i474232898/airquality/internal/location"
	"github.com/i474232898/airquality/internal/observability"
	"github.com/i474232898/airquality/internal/scheduler"
	"github.com/i474232898/airquality/internal/screen"
	"github.com/i474232898/airquality/internal/store"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Shared HTTP client for outbound calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	snapshots, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open snapshot store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	// Providers with resilience (backoff + circuit breaker).
	var provs []airquality.Provider
	if cfg.AirVisualAPIKey != "" {
		provs = append(provs, providers.NewAirVisualProvider(httpClient, cfg.AirVisualAPIKey))
	}
	if cfg.OpenMeteoEnabled {
		provs = append(provs, providers.NewOpenMeteoProvider(httpClient))
	}
	service := airquality.NewService(snapshots, provs, metrics, logger)

	var geocoder geocode.Geocoder
	if cfg.GeocoderAPIKey != "" {
		geocoder = geocode.NewCachedGeocoder(
			geocode.NewGoogleGeocoder(cfg.GeocoderAPIKey, metrics, logger),
			cfg.GeocodeCacheSize,
		)
	} else {
		logger.Info("GOOGLE_GEOCODER_API_KEY not set; addresses will not be resolved")
	}

	// Device adapters. The enable flags are read on every check so that the
	// settings screen can flip them.
	prompter := device.NewPrompter(os.Stdin, os.Stdout, cfg.Interactive)
	gps := device.NewGPSDBackend(cfg.GPSDAddr, func() bool {
		return config.EnvBool("LOCATION_GPS_ENABLED", true)
	}, logger)
	network := device.NewNetworkBackend(httpClient, func() bool {
		return config.EnvBool("LOCATION_NETWORK_ENABLED", true)
	}, logger)

	availability := location.NewServiceCheck(gps, network)
	flows := screen.NewFlowFactory(location.Deps{
		Gate: location.NewPermissionGate(
			device.NewConsolePermissions(device.ParsePermissions(cfg.Permissions), prompter, logger),
		),
		Service:  availability,
		Settings: location.NewSettingsRoundTrip(device.NewEnvSettings(prompter, cfg.SettingsEnvFile, logger), availability),
		Fetcher:  location.NewPositionFetcher(cfg.PositionTimeout, clockwork.NewRealClock(), logger, gps, network),
		Logger:   logger,
	})

	mainScreen := screen.NewMainScreen(screen.Deps{
		NewFlow:    flows,
		AirQuality: service,
		Geocoder:   geocoder,
		Notifier:   device.NewConsoleNotifier(os.Stdout, logger),
		Metrics:    metrics,
		Logger:     logger,
	})
	defer mainScreen.Close()

	go func() {
		if err := mainScreen.Enter(ctx); err != nil {
			logger.Warn("initial update failed", "error", err)
		}
	}()

	// Scheduler that periodically refreshes the view.
	sched := scheduler.New(mainScreen, cfg.RefreshInterval, cfg.RefreshInterval, logger)
	if err := sched.Start(); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "airquality",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          2 * cfg.HTTPTimeout,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(fiberlogger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "airquality",
			"closed":  mainScreen.Closed(),
		})
	})
	httpapi.RegisterMetrics(app, prometheus.DefaultGatherer)
	httpapi.RegisterRoutes(app, mainScreen, service)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("fiber server stopped", "error", err)
		}
	}()
	logger.Info("airquality agent started", "port", cfg.Port, "providers", len(provs))

	// Run until a termination signal or until the screen closes itself.
	select {
	case <-ctx.Done():
		logger.Info("shutting down", "reason", ctx.Err())
	case <-mainScreen.Done():
		logger.Info("screen closed; shutting down")
	}
	mainScreen.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("error during shutdown", "error", err)
	}
}

// openStore returns the Redis store when REDIS_ADDR is set, the in-memory
// store otherwise.
func openStore(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (airquality.Store, func(), error) {
	if cfg.RedisAddr == "" {
		return store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
	}

	logger.Info("storing snapshots in redis", "addr", cfg.RedisAddr)
	return store.NewRedisStore(client, "airquality", cfg.StoreMaxHistory, cfg.StoreMaxAge), func() {
		if err := client.Close(); err != nil {
			logger.Warn("failed to close redis client", "error", err)
		}
	}, nil
}
