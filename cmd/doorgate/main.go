// Doorgate Core - Door Access Gateway
//
// This is the main entry point for the door access gateway. It connects
// RFID door controllers on an MQTT broker to the access engine:
//   - Card reads are authorised against users, permissions and door schedules
//   - Door state, device liveness and alerts are persisted in SQLite
//   - Lock commands are published back to controllers, optionally encrypted
//
// Device provisioning and the operator UI live outside this process.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/doorgate-core/internal/access"
	"github.com/nerrad567/doorgate-core/internal/alert"
	"github.com/nerrad567/doorgate-core/internal/audit"
	"github.com/nerrad567/doorgate-core/internal/auth"
	"github.com/nerrad567/doorgate-core/internal/codec"
	"github.com/nerrad567/doorgate-core/internal/command"
	"github.com/nerrad567/doorgate-core/internal/crypto"
	"github.com/nerrad567/doorgate-core/internal/device"
	"github.com/nerrad567/doorgate-core/internal/door"
	"github.com/nerrad567/doorgate-core/internal/gateway"
	"github.com/nerrad567/doorgate-core/internal/infrastructure/clock"
	"github.com/nerrad567/doorgate-core/internal/infrastructure/config"
	"github.com/nerrad567/doorgate-core/internal/infrastructure/database"
	"github.com/nerrad567/doorgate-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/doorgate-core/internal/infrastructure/logging"
	"github.com/nerrad567/doorgate-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/doorgate-core/internal/liveness"
	"github.com/nerrad567/doorgate-core/migrations"
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

// healthCheckTimeout bounds the startup health probe.
const healthCheckTimeout = 5 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Doorgate Core",
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

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

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

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	deviceRegistry := device.NewRegistry(device.NewSQLiteRepository(db.DB))
	deviceRegistry.SetLogger(log)
	if refreshErr := deviceRegistry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}
	log.Info("device registry initialised", "devices", deviceRegistry.GetDeviceCount())

	doors := door.NewSQLiteRepository(db.DB)
	users := auth.NewUserRepository(db.DB)
	permissions := auth.NewPermissionRepository(db.DB)
	accessLog := audit.NewSQLiteRepository(db.DB)
	alerts := alert.NewSQLiteRepository(db.DB)

	msgCodec, err := newCodec(cfg)
	if err != nil {
		return err
	}
	log.Info("payload codec ready", "encryption", cfg.Encryption.Enabled)

	// InfluxDB is optional; the gateway runs without telemetry.
	influxClient, err := influxdb.Connect(ctx, cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	}

	clk := clock.Real()

	emitter := alert.NewEmitter(alerts, clk)
	emitter.SetLogger(log)

	mqttClient := mqtt.New(cfg.MQTT)
	mqttClient.SetLogger(log)

	dispatcher := command.NewDispatcher(mqttClient, deviceRegistry, msgCodec, clk)
	dispatcher.SetLogger(log)

	monitor := liveness.New(deviceRegistry, emitter, clk, liveness.Config{
		Interval:  cfg.SweepInterval(),
		Threshold: cfg.OfflineThreshold(),
	})
	monitor.SetLogger(log)

	engine, err := access.NewEngine(access.Deps{
		Doors:       doors,
		Users:       users,
		Permissions: permissions,
		Log:         accessLog,
		Alerts:      emitter,
		Commands:    dispatcher,
		Clock:       clk,
		Location:    cfg.Location(),
	})
	if err != nil {
		return fmt.Errorf("creating access engine: %w", err)
	}
	engine.SetLogger(log)

	var gatewayTelemetry gateway.Telemetry
	if influxClient != nil {
		emitter.SetTelemetry(influxClient)
		monitor.SetTelemetry(influxClient)
		engine.SetTelemetry(influxClient)
		gatewayTelemetry = influxClient
	}

	gw, err := gateway.New(gateway.Deps{
		Session:  mqttClient,
		Codec:    msgCodec,
		Devices:  deviceRegistry,
		Doors:    doors,
		Log:      accessLog,
		Alerts:   emitter,
		Access:   engine,
		Liveness: monitor,
		Commands: dispatcher,
		Clock:    clk,
		Reconnect: gateway.ReconnectConfig{
			Delay:       cfg.ReconnectDelay(),
			MaxAttempts: cfg.MQTT.Reconnect.MaxAttempts,
			Policy:      cfg.MQTT.Reconnect.Policy,
		},
		Logger:    log,
		Telemetry: gatewayTelemetry,
	})
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	if err := gw.Start(ctx); err != nil {
		return fmt.Errorf("starting gateway: %w", err)
	}
	defer func() {
		log.Info("stopping gateway")
		gw.Stop()
	}()
	log.Info("gateway started",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
		"reconnect_policy", cfg.MQTT.Reconnect.Policy,
	)

	// The broker may still be coming up and the gateway keeps retrying,
	// so a failed probe is reported, not fatal.
	if err := healthCheck(ctx, db, gw, influxClient); err != nil {
		log.Warn("startup health check", "error", err)
	} else {
		log.Info("all health checks passed")
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// 1. Gateway (liveness monitor, retries, broker session)
	// 2. InfluxDB (if enabled)
	// 3. Database

	log.Info("Doorgate Core stopped")
	return nil
}

// newCodec builds the payload codec, with the envelope cipher when
// encryption is enabled.
func newCodec(cfg *config.Config) (*codec.Codec, error) {
	if !cfg.Encryption.Enabled {
		return codec.New(nil), nil
	}
	key, err := cfg.EncryptionKey()
	if err != nil {
		return nil, err
	}
	cipher, err := crypto.New(key)
	if err != nil {
		return nil, fmt.Errorf("creating envelope cipher: %w", err)
	}
	return codec.New(cipher), nil
}

// getConfigPath returns the configuration file path.
// Uses DOORGATE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("DOORGATE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthChecker is satisfied by every component with a liveness probe.
type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// healthCheck probes the database, the broker session and, when enabled,
// InfluxDB. Only the first failure is returned.
func healthCheck(ctx context.Context, db healthChecker, gw healthChecker, influx *influxdb.Client) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := gw.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if influx != nil {
		if err := influx.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
