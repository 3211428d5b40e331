// Gray Logic AVR bridge
//
// This is the main entry point for the AV receiver bridge. It keeps a telnet
// session to one Denon/Marantz-style receiver or amplifier, mirrors its
// state into the host state store, and turns host writes into receiver
// commands.
//
// Subcommands:
//   - run:      start the bridge (default)
//   - discover: list receivers answering an SSDP search
//   - send:     send raw commands and print the replies
//   - version:  print build information
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/gray-logic-avr/migrations"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nerrad567/gray-logic-avr/internal/api"
	"github.com/nerrad567/gray-logic-avr/internal/avr"
	"github.com/nerrad567/gray-logic-avr/internal/discovery"
	"github.com/nerrad567/gray-logic-avr/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-avr/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-avr/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-avr/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-avr/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-avr/internal/state"
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
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the bridge service, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - configPath: YAML configuration file
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting Gray Logic AVR bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

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

	// State store backend
	var (
		inner       state.Store
		history     api.HistoryReader
		db          *database.DB
		sqliteStore *state.SQLiteStore
	)
	switch cfg.State.Backend {
	case "sqlite":
		db, err = database.Open(cfg.Database)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		if migrateErr := db.Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("database ready", "path", cfg.Database.Path)

		sqliteStore = state.NewSQLiteStore(db)
		inner, history = sqliteStore, sqliteStore
	default:
		inner = state.NewMemoryStore()
		log.Info("using in-memory state store")
	}

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
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
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Decorate the store: MQTT mirror, then watcher fan-out.
	store := inner
	var mqttStore *state.MQTTStore
	if mqttClient != nil && cfg.State.PublishMQTT {
		var recorder state.HistoryRecorder
		if influxClient != nil {
			recorder = influxClient
		}
		mqttStore = state.NewMQTTStore(inner, mqttClient, cfg.State.Instance, recorder)
		mqttStore.SetLogger(log)
		store = mqttStore
	}
	broadcaster := state.NewBroadcaster(store)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	bridgeOpts := avr.BridgeOptions{
		Config:   cfg.Receiver,
		Store:    broadcaster,
		Logger:   log.Component("avr"),
		Metrics:  avr.NewMetrics(registry),
		BridgeID: cfg.State.Instance,
		Version:  version,
	}
	if mqttClient != nil {
		bridgeOpts.HealthPublisher = mqttClient
	}
	if influxClient != nil {
		bridgeOpts.OnConnectionChange = func(connected bool) {
			influxClient.WriteConnection(cfg.State.Instance, connected)
		}
	}
	bridge, err := avr.NewBridge(bridgeOpts)
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}
	if err := bridge.Start(ctx); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	defer func() {
		log.Info("stopping bridge")
		bridge.Stop()
	}()
	log.Info("bridge started", "receiver", cfg.Receiver.Address())

	// Host writes on MQTT set topics
	if mqttStore != nil {
		err := mqttStore.Listen(mqttSubscriber{client: mqttClient}, func(change state.StateChange) {
			if submitErr := bridge.Submit(change); submitErr != nil {
				log.Warn("dropping host write", "id", change.ID, "error", submitErr)
			}
		})
		if err != nil {
			return fmt.Errorf("listening for host writes: %w", err)
		}
	}

	// HTTP API (optional)
	if cfg.API.Enabled {
		deps := api.Deps{
			Config:  cfg.API,
			WS:      cfg.WebSocket,
			Logger:  log,
			Store:   broadcaster,
			Bridge:  bridge,
			Watcher: broadcaster,
			History: history,
			Scanner: newScanner(cfg.Discovery, log),
			Metrics: registry,
			Version: version,
		}
		if mqttClient != nil {
			deps.MQTT = mqttClient
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
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	log.Info("Gray Logic AVR bridge stopped")
	return nil
}

// healthCheck verifies the optional infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection, nil for the memory backend
//   - mqttClient: MQTT client, nil when disabled
//   - influxClient: InfluxDB client, nil when disabled
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
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

// newScanner builds an SSDP scanner from the discovery config.
func newScanner(cfg config.DiscoveryConfig, log *logging.Logger) *discovery.Scanner {
	return discovery.NewScanner(discovery.Options{
		Timeout:      cfg.GetTimeout(),
		SearchTarget: cfg.SearchTarget,
		Match:        discovery.MatchReceivers,
		Logger:       log.Component("discovery"),
	})
}

// getConfigPath returns the configuration file path.
// Uses AVRBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("AVRBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// mqttSubscriber adapts the infrastructure MQTT client to state.Subscriber,
// subscribing at the client's configured QoS.
type mqttSubscriber struct {
	client *mqtt.Client
}

// Subscribe implements state.Subscriber.
func (s mqttSubscriber) Subscribe(topic string, handler func(topic string, payload []byte) error) error {
	return s.client.Subscribe(topic, s.client.QoS(), handler)
}
