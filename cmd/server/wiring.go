package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"smart-garden/internal/database"
	"smart-garden/internal/ml"
	"smart-garden/pkg/config"
)

// loadModels loads both artifacts. Either failing is fatal for the caller.
func loadModels(cfg *config.Config) (*ml.LinearModel, *ml.LinearModel, error) {
	classifier, err := ml.LoadModel(cfg.ClassifierPath, ml.KindClassifier)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load classifier: %w", err)
	}
	regressor, err := ml.LoadModel(cfg.RegressorPath, ml.KindRegressor)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load regressor: %w", err)
	}
	return classifier, regressor, nil
}

// openStore connects the decision history backend named by STORE_DRIVER
func openStore(cfg *config.Config) (database.DecisionStore, error) {
	switch cfg.StoreDriver {
	case config.StoreNone:
		log.Println("Decision history disabled (STORE_DRIVER=none)")
		return database.NopStore{}, nil

	case config.StoreClickHouse:
		db, err := database.OpenClickHouse(cfg.ClickHouseAddr, cfg.ClickHouseDB, cfg.ClickHouseUser, cfg.ClickHousePass)
		if err != nil {
			return nil, err
		}
		store := database.NewClickHouseStore(db)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := store.InitSchema(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil

	default:
		db, err := database.OpenGorm(cfg.StoreDriver, cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		store := database.NewGormStore(db)
		if err := store.Migrate(); err != nil {
			store.Close()
			return nil, err
		}
		log.Printf("Decision history stored in %s", cfg.StoreDriver)
		return store, nil
	}
}
