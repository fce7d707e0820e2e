package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"smart-garden/internal/engine"
	"smart-garden/internal/models"
	"smart-garden/internal/services"
	"smart-garden/pkg/config"
)

func decideCmd() *cobra.Command {
	var (
		humidity, light, temperature float64
		hour, minute                 int
		zone                         string
		record                       bool
	)

	c := &cobra.Command{
		Use:   "decide",
		Short: "Run a single decision and print it as JSON",
		Long:  "Loads both models, decides once for the given reading, and prints the result. Cooldown state starts empty.",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := models.SensorPayload{
				Humidity:    &humidity,
				Light:       &light,
				Temperature: &temperature,
			}
			if cmd.Flags().Changed("hour") {
				payload.Hour = &hour
			}
			if cmd.Flags().Changed("minute") {
				payload.Minute = &minute
			}
			reading, err := payload.Reading()
			if err != nil {
				return err
			}

			cfg := config.Load()
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			classifier, regressor, err := loadModels(cfg)
			if err != nil {
				return err
			}

			decider := engine.NewZones(classifier, regressor, cfg.Engine()).WithPolicy(cfg.ZonePolicy())
			svcConfig := services.DefaultDecisionServiceConfig()
			var svc *services.DecisionService
			if record {
				store, err := openStore(cfg)
				if err != nil {
					return err
				}
				defer store.Close()
				svc = services.NewDecisionService(decider, store, nil, svcConfig)
			} else {
				svc = services.NewDecisionService(decider, nil, nil, svcConfig)
			}

			decision, err := svc.Decide(context.Background(), zone, services.SourceCLI, reading)
			if err != nil {
				return err
			}
			if !cfg.DiagnosticFields {
				decision = decision.WithoutDiagnostics()
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(decision)
		},
	}

	c.Flags().Float64Var(&humidity, "humidity", 0, "soil humidity reading")
	c.Flags().Float64Var(&light, "light", 0, "light intensity reading")
	c.Flags().Float64Var(&temperature, "temperature", 0, "air temperature reading")
	c.Flags().IntVar(&hour, "hour", 0, "hour of day 0-23 (defaults to now)")
	c.Flags().IntVar(&minute, "minute", 0, "minute 0-59 (defaults to now)")
	c.Flags().StringVar(&zone, "zone", engine.DefaultZone, "zone to decide for")
	c.Flags().BoolVar(&record, "record", false, "append the decision to the configured history store")
	_ = c.MarkFlagRequired("humidity")
	_ = c.MarkFlagRequired("light")
	_ = c.MarkFlagRequired("temperature")

	return c
}
