// CityWalk Core - campus walking guide backend
//
// This is the main entry point for the CityWalk Core service. It serves the
// mobile client's conversation, route planning, AR session, POI scan,
// navigation and building recognition endpoints.
//
// Usage:
//
//	citywalk              run the server
//	citywalk hash-key K   print an argon2id hash of API key K for config.yaml
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/citywalk-core/migrations"

	"github.com/nerrad567/citywalk-core/internal/amap"
	"github.com/nerrad567/citywalk-core/internal/api"
	"github.com/nerrad567/citywalk-core/internal/arsession"
	"github.com/nerrad567/citywalk-core/internal/audit"
	"github.com/nerrad567/citywalk-core/internal/auth"
	"github.com/nerrad567/citywalk-core/internal/building"
	"github.com/nerrad567/citywalk-core/internal/conversation"
	"github.com/nerrad567/citywalk-core/internal/infrastructure/config"
	"github.com/nerrad567/citywalk-core/internal/infrastructure/database"
	"github.com/nerrad567/citywalk-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/citywalk-core/internal/infrastructure/logging"
	"github.com/nerrad567/citywalk-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/citywalk-core/internal/navigation"
	"github.com/nerrad567/citywalk-core/internal/poi"
	"github.com/nerrad567/citywalk-core/internal/preference"
	"github.com/nerrad567/citywalk-core/internal/recognition"
	"github.com/nerrad567/citywalk-core/internal/route"
	"github.com/nerrad567/citywalk-core/internal/telemetry"
	"github.com/nerrad567/citywalk-core/internal/vision"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath  = "configs/config.yaml"
	healthCheckTimeout = 5 * time.Second
)

func main() {
	if len(os.Args) > 1 {
		if err := runCommand(os.Args[1:], os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runCommand handles the one-shot subcommands.
func runCommand(args []string, out io.Writer) error {
	switch args[0] {
	case "hash-key":
		if len(args) != 2 || args[1] == "" {
			return errors.New("usage: citywalk hash-key <key>")
		}
		encoded, err := auth.HashKey(args[1])
		if err != nil {
			return fmt.Errorf("hashing key: %w", err)
		}
		fmt.Fprintln(out, encoded)
		return nil
	case "version":
		fmt.Fprintf(out, "citywalk %s (%s, %s)\n", version, commit, date)
		return nil
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// run is the actual application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting CityWalk Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath, "campus", cfg.Campus.ID)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
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

	recorder := telemetry.NewRecorder(log)
	deps := api.Deps{
		Config:    cfg.API,
		WS:        cfg.WebSocket,
		Security:  cfg.Security,
		Logger:    log,
		DB:        db,
		Telemetry: recorder,
		Version:   version,
	}

	// MQTT is optional; events are only published when a broker is configured.
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
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		recorder.SetPublisher(mqttClient)
		deps.MQTT = mqttClient
	} else {
		log.Info("MQTT disabled")
	}

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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		recorder.SetPointWriter(influxClient)
		deps.InfluxDB = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	collab, err := newCollaborators(cfg, log)
	if err != nil {
		return err
	}
	deps.Breakers = collab.breakers

	wireServices(&deps, db, cfg, collab, log)
	if err := deps.Navigation.RestoreActiveGauge(ctx); err != nil {
		return fmt.Errorf("restoring navigation gauge: %w", err)
	}

	server, err := api.New(deps)
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

	if err := healthCheck(ctx, db, server); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal",
		"address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// API server, InfluxDB, MQTT, database.

	log.Info("CityWalk Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses CITYWALK_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("CITYWALK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// loadConfig reads path, falling back to built-in defaults when the file
// does not exist so a fresh checkout runs without any setup.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		cfg := config.Default()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("validating default config: %w", err)
		}
		return cfg, nil
	}
	return config.Load(path)
}

// collaborators holds the external services. Interface fields stay nil when
// a provider is disabled so the services fall back to local behaviour.
type collaborators struct {
	planner    route.Planner
	places     poi.PlaceSource
	recognizer recognition.Recognizer
	breakers   map[string]api.BreakerReporter
}

func newCollaborators(cfg *config.Config, log *logging.Logger) (collaborators, error) {
	c := collaborators{breakers: make(map[string]api.BreakerReporter)}

	routing := cfg.Services.Routing
	if routing.Provider == config.ProviderAMap {
		client, err := amap.New(amap.Config{
			BaseURL: routing.BaseURL,
			Key:     routing.Key,
			City:    cfg.Campus.City,
			Timeout: time.Duration(routing.Timeout) * time.Second,
			QPS:     routing.QPS,
		}, log)
		if err != nil {
			return c, fmt.Errorf("creating amap client: %w", err)
		}
		c.planner = client
		c.places = client
		c.breakers[amap.ProviderName] = client
		log.Info("routing provider enabled", "provider", amap.ProviderName)
	} else {
		log.Info("routing provider disabled, using straight-line navigation")
	}

	rec := cfg.Services.Recognition
	if rec.Provider == config.ProviderHTTP {
		client, err := vision.New(vision.Config{
			URL:     rec.URL,
			Token:   rec.Token,
			Timeout: time.Duration(rec.Timeout) * time.Second,
		}, log)
		if err != nil {
			return c, fmt.Errorf("creating recognition client: %w", err)
		}
		c.recognizer = client
		c.breakers[vision.ProviderName] = client
		log.Info("recognition provider enabled", "url", rec.URL)
	} else {
		log.Info("recognition provider disabled, using geo-ray matching")
	}

	return c, nil
}

// wireServices builds the repositories and domain services on db.
func wireServices(deps *api.Deps, db *database.DB, cfg *config.Config, c collaborators, log *logging.Logger) {
	buildings := building.NewSQLiteRepository(db.DB)

	deps.Conversations = conversation.NewSQLiteRepository(db.DB)
	deps.RoutePlans = route.NewSQLiteRepository(db.DB)
	deps.Segments = route.NewService(deps.RoutePlans, c.planner, log)
	deps.ARSessions = arsession.NewSQLiteRepository(db.DB)
	deps.POIs = poi.NewService(poi.NewSQLiteRepository(db.DB), c.places, log)
	deps.Buildings = buildings
	deps.Navigation = navigation.NewService(navigation.NewSQLiteRepository(db.DB), c.planner, navigation.Config{
		WalkingSpeedMPS: cfg.Navigation.WalkingSpeedMPS,
		ArrivalRadiusM:  cfg.Navigation.ArrivalRadiusM,
	}, log)
	deps.Recognition = recognition.NewService(recognition.NewSQLiteRepository(db.DB), buildings,
		c.recognizer, cfg.Services.Recognition.ModelVersion, log)
	deps.Preferences = preference.NewSQLiteRepository(db.DB)
	deps.Audit = audit.NewSQLiteRepository(db.DB)
}

// healthCheck verifies the database and the API listener.
// MQTT and InfluxDB are checked at connect time and reported by /health.
func healthCheck(ctx context.Context, db *database.DB, server *api.Server) error {
	checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	if err := db.HealthCheck(checkCtx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := server.HealthCheck(checkCtx); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}
