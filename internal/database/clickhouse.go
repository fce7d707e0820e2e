package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"smart-garden/internal/models"
)

// ClickHouseStore keeps the decision history in ClickHouse
type ClickHouseStore struct {
	db *sql.DB
}

// OpenClickHouse opens and pings a ClickHouse connection
func OpenClickHouse(addr, database, username, password string) (*sql.DB, error) {
	db := clickhouse.OpenDB(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	log.Printf("Connected to ClickHouse at %s", addr)
	return db, nil
}

// NewClickHouseStore wraps an open connection
func NewClickHouseStore(db *sql.DB) *ClickHouseStore {
	return &ClickHouseStore{db: db}
}

// InitSchema creates the necessary tables if they don't exist
func (s *ClickHouseStore) InitSchema(ctx context.Context) error {
	for _, tableSQL := range AllTables() {
		if _, err := s.db.ExecContext(ctx, tableSQL); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	log.Println("Database schema initialized successfully")
	return nil
}

// SaveDecision appends one decision to irrigation_decisions
func (s *ClickHouseStore) SaveDecision(ctx context.Context, rec *models.DecisionRecord) error {
	query := `
		INSERT INTO irrigation_decisions (id, timestamp, zone_id, humidity, light, temperature, hour, minute, decision, reason, water_duration, raw_prediction, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var raw sql.NullFloat64
	if rec.RawPrediction != nil {
		raw = sql.NullFloat64{Float64: *rec.RawPrediction, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.Timestamp,
		rec.ZoneID,
		rec.Humidity,
		rec.Light,
		rec.Temperature,
		uint8(rec.Hour),
		uint8(rec.Minute),
		rec.Decision,
		rec.Reason,
		rec.WaterDuration,
		raw,
		rec.Source,
	)
	if err != nil {
		return fmt.Errorf("failed to insert decision: %w", err)
	}

	return nil
}

// RecentDecisions returns up to limit decisions for a zone, newest first
func (s *ClickHouseStore) RecentDecisions(ctx context.Context, zoneID string, limit int) ([]models.DecisionRecord, error) {
	query := `
		SELECT id, timestamp, zone_id, humidity, light, temperature, hour, minute, decision, reason, water_duration, raw_prediction, source
		FROM irrigation_decisions
		WHERE zone_id = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, zoneID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	defer rows.Close()

	var records []models.DecisionRecord
	for rows.Next() {
		var (
			rec          models.DecisionRecord
			hour, minute uint8
			raw          sql.NullFloat64
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.Timestamp,
			&rec.ZoneID,
			&rec.Humidity,
			&rec.Light,
			&rec.Temperature,
			&hour,
			&minute,
			&rec.Decision,
			&rec.Reason,
			&rec.WaterDuration,
			&raw,
			&rec.Source,
		); err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		rec.Hour = int(hour)
		rec.Minute = int(minute)
		if raw.Valid {
			v := raw.Float64
			rec.RawPrediction = &v
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read decisions: %w", err)
	}

	return records, nil
}

// Close closes the ClickHouse connection
func (s *ClickHouseStore) Close() error {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return fmt.Errorf("failed to close ClickHouse connection: %w", err)
		}
		log.Println("ClickHouse connection closed")
	}
	return nil
}
