package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"smart-garden/internal/ml"
	"smart-garden/internal/models"
	"smart-garden/pkg/config"
)

func modelsCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "models",
		Short: "Manage model artifacts",
	}
	c.AddCommand(modelsInitCmd())
	c.AddCommand(modelsCheckCmd())
	return c
}

func modelsInitCmd() *cobra.Command {
	var (
		dir    string
		format string
		force  bool
	)

	c := &cobra.Command{
		Use:   "init",
		Short: "Write sample classifier and regressor artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			var ext string
			switch format {
			case "json":
				ext = ".json"
			case "yaml":
				ext = ".yaml"
			default:
				return fmt.Errorf("unsupported format %q (json or yaml)", format)
			}

			specs := []ml.LinearSpec{ml.SampleClassifier(), ml.SampleRegressor()}
			for _, spec := range specs {
				target := filepath.Join(dir, spec.Name+ext)
				if _, err := os.Stat(target); err == nil && !force {
					return fmt.Errorf("%s already exists (use --force to overwrite)", target)
				}
				if err := ml.WriteSpec(target, spec); err != nil {
					return err
				}
				fmt.Println("Created", target)
			}
			return nil
		},
	}

	c.Flags().StringVar(&dir, "dir", "./model", "output directory")
	c.Flags().StringVar(&format, "format", "json", "artifact format: json or yaml")
	c.Flags().BoolVar(&force, "force", false, "overwrite existing artifacts")
	return c
}

func modelsCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Load the configured artifacts and verify the feature contract",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			classifier, regressor, err := loadModels(cfg)
			if err != nil {
				return err
			}

			var probe models.FeatureVector
			for _, m := range []*ml.LinearModel{classifier, regressor} {
				out, err := m.Predict(probe)
				if err != nil {
					return fmt.Errorf("%s: %w", m.Name(), err)
				}
				fmt.Printf("%s (%s): ok, zero-input prediction %.4f\n", m.Name(), m.Kind(), out)
			}
			fmt.Printf("Feature order: %v\n", models.FeatureColumns)
			return nil
		},
	}
}
