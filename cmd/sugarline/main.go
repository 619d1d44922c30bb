// Sugarline Core - multi-tenant CGM data service.
//
// This is the main entry point for the Sugarline Core application: a
// wire-compatible reimplementation of the legacy Nightscout entries API
// with per-tenant isolation, live WebSocket fan-out, and optional MQTT
// ingest and InfluxDB telemetry.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/sugarline/sugarline-core/migrations"

	"github.com/sugarline/sugarline-core/internal/api"
	"github.com/sugarline/sugarline-core/internal/entry"
	"github.com/sugarline/sugarline-core/internal/infrastructure/config"
	"github.com/sugarline/sugarline-core/internal/infrastructure/database"
	"github.com/sugarline/sugarline-core/internal/infrastructure/influxdb"
	"github.com/sugarline/sugarline-core/internal/infrastructure/logging"
	"github.com/sugarline/sugarline-core/internal/infrastructure/mqtt"
	"github.com/sugarline/sugarline-core/internal/tenant"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Sugarline Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Repositories and tenant resolution
	tenantRepo := tenant.NewSQLiteRepository(db.DB)
	entryRepo := entry.NewSQLiteRepository(db.DB)
	resolver := tenant.NewResolver(tenantRepo, cfg.Security.JWT.Secret,
		cfg.Tenancy.ReservedSubdomains, log.With("component", "resolver"))

	// Connect to InfluxDB (optional)
	var recorder entry.Recorder
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		recorder = entry.NewInfluxRecorder(influxClient)
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// The hub is created before the entry service because the service
	// broadcasts through it on every stored entry.
	hub := api.NewHub(cfg.WebSocket, log.With("component", "hub"))
	entries := entry.NewService(entryRepo, hub, recorder, log.With("component", "entries"))

	// Connect to MQTT broker (optional entry ingest path)
	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.With("component", "mqtt"))
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		ingester := entry.NewMQTTIngester(mqttClient, entries, tenantRepo,
			byte(cfg.MQTT.QoS), log.With("component", "ingest"))
		if startErr := ingester.Start(); startErr != nil {
			return fmt.Errorf("starting MQTT ingest: %w", startErr)
		}
	} else {
		log.Info("MQTT ingest disabled")
	}

	// Start API server
	server, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Logger:      log.With("component", "api"),
		Entries:     entries,
		Tenants:     tenantRepo,
		Resolver:    resolver,
		ExternalHub: hub,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	go hub.Run(ctx)

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. MQTT (if enabled)
	// 3. InfluxDB (if enabled)
	// 4. Database

	log.Info("Sugarline Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses SUGARLINE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SUGARLINE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
