package database

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"smart-garden/internal/models"
)

// DecisionRow is the relational form of a DecisionRecord
type DecisionRow struct {
	ID            uint      `gorm:"primaryKey;autoIncrement"`
	DecisionID    string    `gorm:"uniqueIndex;size:36;not null"`
	ZoneID        string    `gorm:"index:idx_zone_timestamp;size:128;not null"`
	Timestamp     time.Time `gorm:"index:idx_zone_timestamp;not null"`
	Humidity      float64
	Light         float64
	Temperature   float64
	Hour          int
	Minute        int
	Decision      string `gorm:"size:16;not null"`
	Reason        string
	WaterDuration float64
	RawPrediction *float64
	Source        string    `gorm:"size:16"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
}

// TableName customizes the table name
func (DecisionRow) TableName() string {
	return "irrigation_decisions"
}

func rowFromRecord(rec *models.DecisionRecord) DecisionRow {
	return DecisionRow{
		DecisionID:    rec.ID,
		ZoneID:        rec.ZoneID,
		Timestamp:     rec.Timestamp,
		Humidity:      rec.Humidity,
		Light:         rec.Light,
		Temperature:   rec.Temperature,
		Hour:          rec.Hour,
		Minute:        rec.Minute,
		Decision:      rec.Decision,
		Reason:        rec.Reason,
		WaterDuration: rec.WaterDuration,
		RawPrediction: rec.RawPrediction,
		Source:        rec.Source,
	}
}

func (r DecisionRow) record() models.DecisionRecord {
	return models.DecisionRecord{
		ID:            r.DecisionID,
		ZoneID:        r.ZoneID,
		Timestamp:     r.Timestamp,
		Humidity:      r.Humidity,
		Light:         r.Light,
		Temperature:   r.Temperature,
		Hour:          r.Hour,
		Minute:        r.Minute,
		Decision:      r.Decision,
		Reason:        r.Reason,
		WaterDuration: r.WaterDuration,
		RawPrediction: r.RawPrediction,
		Source:        r.Source,
	}
}

// GormStore keeps the decision history in MySQL, PostgreSQL or SQLite
type GormStore struct {
	db *gorm.DB
}

// OpenGorm connects with the driver named by the configuration
func OpenGorm(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch driver {
	case "mysql":
		dialector = mysql.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	return connectGorm(dialector, logger.Default.LogMode(logger.Warn))
}

// connectGorm opens the dialector and pings it once, closing the pool if the
// database is unreachable
func connectGorm(dialector gorm.Dialector, gormLogger logger.Interface) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:               gormLogger,
		DisableAutomaticPing: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// NewGormStore wraps an open connection
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates or updates the decisions table
func (s *GormStore) Migrate() error {
	if err := s.db.AutoMigrate(&DecisionRow{}); err != nil {
		return fmt.Errorf("failed to migrate decisions table: %w", err)
	}
	return nil
}

// SaveDecision appends one decision
func (s *GormStore) SaveDecision(ctx context.Context, rec *models.DecisionRecord) error {
	row := rowFromRecord(rec)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert decision: %w", err)
	}
	return nil
}

// RecentDecisions returns up to limit decisions for a zone, newest first
func (s *GormStore) RecentDecisions(ctx context.Context, zoneID string, limit int) ([]models.DecisionRecord, error) {
	var rows []DecisionRow
	err := s.db.WithContext(ctx).
		Where("zone_id = ?", zoneID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}

	records := make([]models.DecisionRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.record())
	}
	return records, nil
}

// Close closes the underlying connection
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}
