package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"smart-garden/internal/database"
	"smart-garden/internal/models"
	"smart-garden/internal/observability"
)

// Decision sources stored with each record
const (
	SourceHTTP = "http"
	SourceMQTT = "mqtt"
	SourceCLI  = "cli"
)

// PumpActionStart is the only action the gateway issues; the pump stops on its own
// after DurationSeconds.
const PumpActionStart = "start"

// Decider runs one decision for a zone. Implemented by engine.Zones.
type Decider interface {
	Decide(zone string, reading models.SensorReading) (models.Decision, error)
}

// ErrorCounter counts failures by kind. Implemented by observability.PromMetrics.
type ErrorCounter interface {
	IncError(kind string)
}

// DecisionService turns sensor readings into decisions, records them, and
// dispatches pump commands for WATER outcomes
type DecisionService struct {
	decider Decider
	store   database.DecisionStore
	errors  ErrorCounter

	// Input channel from the MQTT subscriber
	ReadingChan chan *models.ZoneReading

	// Output channel to the MQTT publisher
	CommandChan chan *models.PumpCommand

	storeTimeout time.Duration
}

// DecisionServiceConfig holds configuration for the decision service
type DecisionServiceConfig struct {
	ReadingChannelSize int
	CommandChannelSize int
	StoreTimeout       time.Duration
}

// DefaultDecisionServiceConfig returns default configuration
func DefaultDecisionServiceConfig() DecisionServiceConfig {
	return DecisionServiceConfig{
		ReadingChannelSize: 100,
		CommandChannelSize: 50,
		StoreTimeout:       5 * time.Second,
	}
}

// NewDecisionService creates a new decision service. store and errors may be nil.
func NewDecisionService(decider Decider, store database.DecisionStore, errors ErrorCounter, config DecisionServiceConfig) *DecisionService {
	if store == nil {
		store = database.NopStore{}
	}
	return &DecisionService{
		decider:      decider,
		store:        store,
		errors:       errors,
		ReadingChan:  make(chan *models.ZoneReading, config.ReadingChannelSize),
		CommandChan:  make(chan *models.PumpCommand, config.CommandChannelSize),
		storeTimeout: config.StoreTimeout,
	}
}

// Start processes readings until the context is cancelled or the reading
// channel is closed, then closes CommandChan
func (s *DecisionService) Start(ctx context.Context) {
	log.Println("DecisionService: Starting...")
	defer func() {
		close(s.CommandChan)
		log.Println("DecisionService: Shutdown complete")
	}()

	for {
		select {
		case <-ctx.Done():
			log.Println("DecisionService: Shutting down...")
			return
		case reading, ok := <-s.ReadingChan:
			if !ok {
				return
			}
			s.HandleReading(ctx, reading)
		}
	}
}

// HandleReading decides for an MQTT reading and queues a pump command on WATER
func (s *DecisionService) HandleReading(ctx context.Context, zr *models.ZoneReading) {
	decision, err := s.Decide(ctx, zr.ZoneID, SourceMQTT, zr.Reading)
	if err != nil {
		log.Printf("DecisionService: Decision failed for %s: %v", zr.ZoneID, err)
		return
	}
	if decision.Decision != models.DecisionWater {
		return
	}

	cmd := &models.PumpCommand{
		CommandID:       uuid.NewString(),
		ZoneID:          zr.ZoneID,
		Action:          PumpActionStart,
		DurationSeconds: decision.WaterDuration,
		IssuedAt:        decision.DecidedAt,
	}

	select {
	case s.CommandChan <- cmd:
	case <-ctx.Done():
	default:
		log.Printf("Warning: Command channel full, dropping pump command for %s", zr.ZoneID)
		s.incError(observability.ErrorPublish)
	}
}

// Decide runs the engine for a zone and appends the result to the history.
// A store failure is logged and counted but never changes the decision.
func (s *DecisionService) Decide(ctx context.Context, zone, source string, reading models.SensorReading) (models.Decision, error) {
	decision, err := s.decider.Decide(zone, reading)
	if err != nil {
		s.incError(observability.ErrorKind(err))
		return models.Decision{}, err
	}

	if err := s.record(ctx, zone, source, decision); err != nil {
		log.Printf("DecisionService: Failed to record decision for %s: %v", zone, err)
		s.incError(observability.ErrorStore)
	}
	return decision, nil
}

// History returns the most recent decisions for a zone, newest first
func (s *DecisionService) History(ctx context.Context, zone string, limit int) ([]models.DecisionRecord, error) {
	records, err := s.store.RecentDecisions(ctx, zone, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history for %s: %w", zone, err)
	}
	if records == nil {
		records = []models.DecisionRecord{}
	}
	return records, nil
}

func (s *DecisionService) record(ctx context.Context, zone, source string, d models.Decision) error {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	rec := NewDecisionRecord(zone, source, d)
	return s.store.SaveDecision(ctx, &rec)
}

func (s *DecisionService) incError(kind string) {
	if s.errors != nil {
		s.errors.IncError(kind)
	}
}

// NewDecisionRecord flattens a decision and its resolved input into a history row
func NewDecisionRecord(zone, source string, d models.Decision) models.DecisionRecord {
	rec := models.DecisionRecord{
		ID:            uuid.NewString(),
		ZoneID:        zone,
		Timestamp:     d.DecidedAt,
		Decision:      string(d.Decision),
		Reason:        d.Reason,
		WaterDuration: float64(d.WaterDuration),
		RawPrediction: d.RawPrediction,
		Source:        source,
	}
	if in := d.DataReceived; in != nil {
		rec.Humidity = in.Humidity
		rec.Light = in.Light
		rec.Temperature = in.Temperature
		if in.Hour != nil {
			rec.Hour = *in.Hour
		}
		if in.Minute != nil {
			rec.Minute = *in.Minute
		}
	}
	return rec
}
