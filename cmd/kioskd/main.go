// kioskd serves the kiosk fleet: device pairing, heartbeats, configuration
// resolution and live push to displays, plus the operator API.
//
// Configuration is read from KIOSK_CONFIG (default configs/config.yaml);
// see configs/config.yaml for every option.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/nerrad567/kiosk-fleet-core/migrations"

	"github.com/nerrad567/kiosk-fleet-core/internal/api"
	"github.com/nerrad567/kiosk-fleet-core/internal/audit"
	"github.com/nerrad567/kiosk-fleet-core/internal/auth"
	"github.com/nerrad567/kiosk-fleet-core/internal/device"
	"github.com/nerrad567/kiosk-fleet-core/internal/document"
	"github.com/nerrad567/kiosk-fleet-core/internal/infrastructure/config"
	"github.com/nerrad567/kiosk-fleet-core/internal/infrastructure/database"
	"github.com/nerrad567/kiosk-fleet-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/kiosk-fleet-core/internal/infrastructure/logging"
	"github.com/nerrad567/kiosk-fleet-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/kiosk-fleet-core/internal/live"
	"github.com/nerrad567/kiosk-fleet-core/internal/resolver"
	"github.com/nerrad567/kiosk-fleet-core/internal/telemetry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until ctx is cancelled.
// Deferred cleanup runs in reverse: API, background workers, InfluxDB,
// MQTT, database.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting kioskd",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(database.Config{
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

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Documents
	store := document.NewStore(db.DB)
	if err := store.EnsureDefaults(ctx); err != nil {
		return fmt.Errorf("seeding default documents: %w", err)
	}

	// Registry, with the audit trail as its first listener
	auditRepo := audit.NewSQLiteRepository(db.DB)
	auditNotifier := audit.NewNotifier(auditRepo)
	auditNotifier.SetLogger(log)

	registry := device.NewRegistry(device.NewSQLiteRepository(db.DB), device.Options{
		PairingTTL:           cfg.Fleet.PairingTTL(),
		OnlineThreshold:      cfg.Fleet.OnlineThreshold(),
		ClaimedCodeRetention: cfg.Fleet.ClaimedCodeRetention(),
	})
	registry.SetLogger(log)
	registry.AddNotifier(auditNotifier)

	recorder := telemetry.NewRecorder(db.DB, cfg.Fleet.HistorySize)
	recorder.SetLogger(log)

	// Optional MQTT fleet events
	var mqttClient *mqtt.Client
	var events *mqtt.EventPublisher
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
			"prefix", mqttClient.Topics().Prefix,
		)

		events = mqtt.NewEventPublisher(mqttClient, mqttClient.Topics(), mqttClient.QoS(), 0)
		events.SetLogger(log)
		registry.AddNotifier(events)
	} else {
		log.Info("MQTT disabled")
	}

	// Optional InfluxDB export
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
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
		recorder.SetMetricsSink(influxClient)
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	res := resolver.New(registry, store)
	res.SetLogger(log)

	hub := live.NewHub(live.Sources{Registry: registry, Documents: store, Resolver: res}, live.Options{
		PollInterval: cfg.Live.PollInterval(),
		PingInterval: cfg.Live.PingInterval(),
	})
	hub.SetLogger(log)

	// Operators
	operators := auth.NewOperatorRepository(db.DB)
	password, err := auth.SeedAdmin(ctx, operators)
	if err != nil {
		return fmt.Errorf("seeding admin operator: %w", err)
	}
	if password != "" {
		log.Warn("created initial operator account; change this password",
			"username", auth.SeedUsername,
			"password", password,
		)
	}
	authenticator := auth.NewAuthenticator(operators, cfg.Security.JWT.Secret, cfg.Security.JWT.TokenTTL())

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	// Background workers stop with ctx; wait for them before closing
	// the clients they write to.
	var workers sync.WaitGroup
	defer workers.Wait()

	workers.Go(func() { registry.RunJanitor(ctx, cfg.Fleet.JanitorInterval()) })
	if events != nil {
		workers.Go(func() { events.Run(ctx) })
	}
	if influxClient != nil {
		workers.Go(func() {
			exportFleetPresence(ctx, registry, influxClient, cfg.Fleet.JanitorInterval(), log)
		})
	}

	server, err := api.New(api.Deps{
		Config:        cfg.API,
		Live:          cfg.Live,
		Logger:        log,
		Registry:      registry,
		Recorder:      recorder,
		Resolver:      res,
		Documents:     store,
		Hub:           hub,
		Audit:         auditRepo,
		Authenticator: authenticator,
		Authorizer:    api.JWTAuthorizer{Secret: cfg.Security.JWT.Secret},
		Database:      db,
		Version:       version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	return nil
}

// getConfigPath returns KIOSK_CONFIG if set, otherwise the default path.
func getConfigPath() string {
	if path := os.Getenv("KIOSK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies the database and any enabled optional clients.
// nil clients are disabled and skipped.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}

// presenceWriter is the part of influxdb.Client used by exportFleetPresence.
type presenceWriter interface {
	WriteFleetPresence(ts time.Time, counts map[string]int)
}

// exportFleetPresence writes presence counts every interval until ctx is
// cancelled.
func exportFleetPresence(ctx context.Context, registry *device.Registry, w presenceWriter, interval time.Duration, log *logging.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			devices, err := registry.ListDevices(ctx, now)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					log.Warn("fleet presence export failed", "error", err)
				}
				continue
			}
			w.WriteFleetPresence(now, device.CountPresence(devices))
		}
	}
}
