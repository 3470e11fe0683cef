package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/minewatch/emergency/internal/alerts"
	"github.com/minewatch/emergency/internal/metrics"
	"github.com/minewatch/emergency/internal/persistence"
	"github.com/minewatch/emergency/internal/protocol"
	"github.com/minewatch/emergency/internal/risk"
	"github.com/minewatch/emergency/internal/scheduler"
	"github.com/minewatch/emergency/internal/server"
	"github.com/minewatch/emergency/internal/simulator"
	"github.com/minewatch/emergency/pkg/mqtt"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- sensor catalog ---
	configs := simulator.DefaultSensorConfigs()
	roster := simulator.DefaultRoster()
	if path := env("SENSOR_CATALOG", ""); path != "" {
		var err error
		configs, roster, err = simulator.LoadCatalog(path)
		if err != nil {
			log.Fatalf("sensor catalog %s: %v", path, err)
		}
	}
	sim := simulator.New(configs, simulator.Options{
		OfflineProbability:     envFloat("OFFLINE_PROBABILITY", 0),
		MaintenanceProbability: envFloat("MAINTENANCE_PROBABILITY", 0),
	})

	// --- protocol catalog ---
	catalog := protocol.DefaultCatalog()
	if path := env("PROTOCOL_CATALOG", ""); path != "" {
		var err error
		catalog, err = protocol.LoadCatalog(path)
		if err != nil {
			log.Fatalf("protocol catalog %s: %v", path, err)
		}
	}
	executor := protocol.NewExecutor(catalog, protocol.Options{
		TimeCompression: envFloat("TIME_COMPRESSION", 30),
	})

	// --- analysis collaborator ---
	analyzer := risk.NewHTTPAnalyzer(
		env("ANALYZER_URL", "http://localhost:9000/analyze"),
		env("ANALYZER_API_KEY", ""),
		envDuration("ANALYZER_TIMEOUT", 10*time.Second),
	)
	classifier := risk.NewClassifier(analyzer, risk.Options{})

	// --- MQTT (optional: empty host runs standalone) ---
	var alertPub, snapshotPub *mqtt.Publisher
	var commandClient paho.Client
	if host := env("MQTT_HOST", ""); host != "" {
		mqCfg := &mqtt.Config{
			Host:     host,
			Port:     envInt("MQTT_PORT", 1883),
			User:     env("MQTT_USER", ""),
			Password: env("MQTT_PASS", ""),
			ClientID: env("MQTT_CLIENT_ID", "mine-monitor"),
		}
		client, err := mqtt.NewConn(ctx, mqCfg)
		if err != nil {
			log.Fatalf("mqtt connect failed: %v", err)
		}
		alertPub = mqtt.NewPublisher(client, env("ALERT_TOPIC", "mine/alerts"))
		snapshotPub = mqtt.NewPublisher(client, env("SNAPSHOT_TOPIC", "mine/snapshot"))
		commandClient = client
	}

	alertMgr := alerts.NewManager(alerts.Options{
		Capacity:  envInt("ALERT_CAPACITY", 0),
		DedupTTL:  envDuration("ALERT_DEDUP_TTL", 5*time.Minute),
		Publisher: publisherOrNil(alertPub),
	})

	// --- InfluxDB (optional: empty token runs without persistence) ---
	var store *persistence.Store
	if token := env("INFLUX_TOKEN", ""); token != "" {
		var err error
		store, err = persistence.NewStore(persistence.Config{
			URL:    env("INFLUX_URL", "http://localhost:8086"),
			Token:  token,
			Org:    env("INFLUX_ORG", "mine"),
			Bucket: env("INFLUX_BUCKET", "monitoring"),
		})
		if err != nil {
			log.Fatalf("influx init failed: %v", err)
		}
		defer store.Close()
	}

	// --- metrics ---
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	mon := metrics.New(reg)

	sched := scheduler.New(scheduler.Deps{
		Simulator:  sim,
		Roster:     roster,
		Classifier: classifier,
		Alerts:     alertMgr,
		Executor:   executor,
		Store:      store,
		Metrics:    mon,
		Snapshots:  publisherOrNil(snapshotPub),
	}, scheduler.Config{
		BaseInterval: envDuration("BASE_INTERVAL", 8*time.Second),
		MinInterval:  envDuration("MIN_INTERVAL", time.Second),
	})

	// scenario commands over MQTT
	if commandClient != nil {
		consumer := mqtt.NewConsumer(commandClient, env("COMMAND_TOPIC", "mine/commands/scenario"),
			func(_ string, msg paho.Message) error {
				return sched.HandleScenarioCommand(msg.Payload())
			})
		go consumer.ConsumeMessage(ctx)
	}

	mux := server.NewHTTPMux(sched, store, reg)
	httpPort := env("PORT", "8080")
	srv := &http.Server{
		Addr:              ":" + httpPort,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("monitor HTTP listening on :%s", httpPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	go sched.Run(ctx)

	<-ctx.Done()
	stop()

	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shCtx)
	if alertPub != nil {
		alertPub.Close()
	}
	log.Println("monitor: shutdown complete")
}

// publisherOrNil avoids handing a typed-nil *mqtt.Publisher to an
// interface field.
func publisherOrNil(p *mqtt.Publisher) alerts.Publisher {
	if p == nil {
		return nil
	}
	return p
}
