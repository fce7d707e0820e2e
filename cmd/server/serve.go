package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"smart-garden/internal/api"
	"smart-garden/internal/engine"
	"smart-garden/internal/mqtt"
	"smart-garden/internal/observability"
	"smart-garden/internal/services"
	"smart-garden/pkg/config"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and, when enabled, the MQTT pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	log.Println("Starting Smart Garden irrigation gateway...")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	classifier, regressor, err := loadModels(cfg)
	if err != nil {
		return fmt.Errorf("model loading failed: %w", err)
	}
	if !cfg.CooldownEnabled {
		log.Println("Warning: cooldown is disabled, repeated WATER decisions are possible")
	}

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open decision store: %w", err)
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewPromMetrics(reg)

	zones := engine.NewZones(classifier, regressor, cfg.Engine(), engine.WithObserver(metrics)).
		WithPolicy(cfg.ZonePolicy())
	decisions := services.NewDecisionService(zones, store, metrics, services.DefaultDecisionServiceConfig())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// === MQTT pipeline ===
	if cfg.MQTTEnabled {
		mqttClient, err := startMQTT(ctx, cfg, zones, decisions, metrics)
		if err != nil {
			return fmt.Errorf("failed to initialize MQTT: %w", err)
		}
		defer mqttClient.Close()
	} else {
		log.Println("MQTT disabled (MQTT_ENABLED=false)")
	}

	// === HTTP API ===
	opts := api.Options{
		DiagnosticFields: cfg.DiagnosticFields,
		Errors:           metrics,
	}
	if cfg.MetricsEnabled {
		opts.Gatherer = reg
	}
	httpServer := api.NewHTTPServer(cfg.HTTPAddr, api.NewServer(decisions, zones, opts))

	serveErr := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	log.Println("=== Smart Garden gateway is running ===")
	log.Printf("HTTP listening on %s (diagnostics=%t, metrics=%t)", cfg.HTTPAddr, cfg.DiagnosticFields, cfg.MetricsEnabled)
	log.Printf("Limits: max=%.2fs min=%.2fs cooldown=%.0fs enabled=%t locale=%s",
		cfg.MaxWaterDuration, engine.DefaultMinWaterDuration, cfg.CooldownSeconds, cfg.CooldownEnabled, cfg.MessageLocale)
	log.Println("Press Ctrl+C to exit...")

	return waitForShutdown(ctx, httpServer, serveErr)
}

// waitForShutdown blocks until a signal or a listener failure, then drains the
// HTTP server. A listener failure is returned so the process exits non-zero.
func waitForShutdown(ctx context.Context, httpServer *http.Server, serveErr <-chan error) error {
	var runErr error
	select {
	case <-ctx.Done():
		log.Println("Shutdown signal received, stopping services...")
	case err := <-serveErr:
		log.Printf("HTTP server failed: %v", err)
		runErr = fmt.Errorf("HTTP server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}

	log.Println("Shutdown complete. Goodbye!")
	return runErr
}

// startMQTT wires subscriber -> decision service -> publisher and connects
func startMQTT(ctx context.Context, cfg *config.Config, zones *engine.Zones, decisions *services.DecisionService, metrics *observability.PromMetrics) (*mqtt.Client, error) {
	log.Println("Connecting to MQTT broker...")
	client, err := mqtt.NewClient(mqtt.ClientConfig{
		Broker:      cfg.MQTTBroker,
		ClientID:    cfg.MQTTClientID,
		Username:    cfg.MQTTUsername,
		Password:    cfg.MQTTPassword,
		StatusTopic: cfg.MQTTTopicStatus,
	})
	if err != nil {
		return nil, err
	}

	subscriber := mqtt.NewSubscriber(client.GetNativeClient(), mqtt.SubscriberConfig{
		SensorTopic: cfg.MQTTTopicSensor,
		AcceptZone:  zones.Allows,
	}, decisions.ReadingChan)
	if err := subscriber.SubscribeAll(); err != nil {
		client.Close()
		return nil, err
	}
	client.OnConnect(subscriber.Resubscribe)

	publisher := mqtt.NewPublisher(client.GetNativeClient(), mqtt.PublisherConfig{
		PumpTopic: cfg.MQTTTopicPump,
		OnError:   func(error) { metrics.IncError(observability.ErrorPublish) },
	}, decisions.CommandChan)

	go decisions.Start(ctx)
	go publisher.Start(ctx)

	log.Printf("MQTT Topics:")
	log.Printf("  - Sensors: %s", cfg.MQTTTopicSensor)
	log.Printf("  - Pump:    %s", cfg.MQTTTopicPump)
	return client, nil
}
