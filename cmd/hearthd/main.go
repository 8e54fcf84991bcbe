// Hearth Core - Smart House Command Relay
//
// Hearth Core is the hub between mobile clients and the field
// microcontrollers that run a house's hardware. It relays device
// commands, holds them pending until the hardware acknowledges, and
// fans outcomes back out to every connected client of the house.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hearthgrid/hearth-core/internal/activity"
	"github.com/hearthgrid/hearth-core/internal/api"
	"github.com/hearthgrid/hearth-core/internal/house"
	"github.com/hearthgrid/hearth-core/internal/infrastructure/config"
	"github.com/hearthgrid/hearth-core/internal/infrastructure/database"
	"github.com/hearthgrid/hearth-core/internal/infrastructure/influxdb"
	"github.com/hearthgrid/hearth-core/internal/infrastructure/logging"
	"github.com/hearthgrid/hearth-core/internal/infrastructure/mqtt"
	"github.com/hearthgrid/hearth-core/internal/inventory"
	"github.com/hearthgrid/hearth-core/internal/relay"
	"github.com/hearthgrid/hearth-core/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Hearth Core",
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

	// Open database and run migrations
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

	if migrateErr := db.Migrate(ctx, migrations.FS, migrations.Dir); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Repositories
	houseRepo := house.NewSQLiteRepository(db.DB)
	activityRepo := activity.NewSQLiteRepository(db.DB)

	inventoryRegistry := inventory.NewRegistry(inventory.NewSQLiteRepository(db.DB))
	inventoryRegistry.SetLogger(log)
	if refreshErr := inventoryRegistry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading inventory: %w", refreshErr)
	}
	log.Info("inventory initialised")

	// Relay core: registry, buffer, dispatcher, notifier, correlator
	connRegistry := relay.NewRegistry()
	buffer := relay.NewBuffer(cfg.Command.TTL())
	dispatcher := relay.NewDispatcher(connRegistry, buffer, inventoryRegistry)
	dispatcher.SetLogger(log)
	notifier := relay.NewNotifier(connRegistry)
	correlator := relay.NewCorrelator(buffer, notifier, activityRepo)
	correlator.SetLogger(log)

	// Connect to InfluxDB (optional telemetry)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
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
		correlator.SetTelemetry(influxClient)
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Reap expired commands in the background. Expiry is enforced
	// lazily on take; the reaper frees memory and feeds telemetry.
	if cfg.Command.ReapInterval() > 0 {
		buffer.StartReaper(ctx, cfg.Command.ReapInterval(), func(cmd relay.PendingCommand) {
			log.Warn("command expired without acknowledgment",
				"command_id", cmd.CommandID,
				"component_id", cmd.ComponentID,
			)
			if influxClient != nil {
				influxClient.WriteCommandExpired(cmd.HouseID, cmd.ComponentID, cmd.ActionName)
			}
		})
	}

	// Connect to MQTT and start the automation ingress (optional)
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
		mqttClient.SetLogger(log)
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		ingress := relay.NewIngress(mqttClient, dispatcher, byte(cfg.MQTT.QoS))
		ingress.SetLogger(log)
		if startErr := ingress.Start(ctx); startErr != nil {
			return fmt.Errorf("starting automation ingress: %w", startErr)
		}
		correlator.SetEventPublisher(ingress)
		log.Info("automation ingress started")
	} else {
		log.Info("MQTT disabled")
	}

	// HTTP and WebSocket server
	server, err := api.New(api.Deps{
		Config:     cfg.Server,
		WS:         cfg.WebSocket,
		Security:   cfg.Security,
		Logger:     log,
		Houses:     houseRepo,
		Inventory:  inventoryRegistry,
		Activity:   activityRepo,
		Relay:      connRegistry,
		Dispatcher: dispatcher,
		Correlator: correlator,
		Notifier:   notifier,
		Metrics:    metricSink(influxClient),
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("Hearth Core ready",
		"address", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		"command_ttl", cfg.Command.TTL(),
	)

	<-ctx.Done()
	log.Info("shutdown signal received")
	return nil
}

// metricSink converts a possibly-nil influx client into the api
// package's optional sink without handing it a typed nil.
func metricSink(c *influxdb.Client) api.MetricSink {
	if c == nil {
		return nil
	}
	return c
}

// getConfigPath returns the configuration file path from the command
// line, the environment, or the default, in that order.
func getConfigPath() string {
	if len(os.Args) > 1 {
		return os.Args[1]
	}
	if path := os.Getenv("HEARTH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
