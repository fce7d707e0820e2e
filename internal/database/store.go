package database

import (
	"context"

	"smart-garden/internal/models"
)

// DecisionStore appends decisions to a history log. The log is an audit trail
// only; cooldown state is never restored from it.
type DecisionStore interface {
	SaveDecision(ctx context.Context, rec *models.DecisionRecord) error
	RecentDecisions(ctx context.Context, zoneID string, limit int) ([]models.DecisionRecord, error)
	Close() error
}

// NopStore discards every decision
type NopStore struct{}

func (NopStore) SaveDecision(context.Context, *models.DecisionRecord) error { return nil }

func (NopStore) RecentDecisions(context.Context, string, int) ([]models.DecisionRecord, error) {
	return nil, nil
}

func (NopStore) Close() error { return nil }
