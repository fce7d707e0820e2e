package database

// SQL schemas for ClickHouse tables

const (
	// IrrigationDecisionsTableSQL creates the irrigation_decisions table
	IrrigationDecisionsTableSQL = `
		CREATE TABLE IF NOT EXISTS irrigation_decisions (
			id String,
			timestamp DateTime64(3),
			zone_id String,
			humidity Float64,
			light Float64,
			temperature Float64,
			hour UInt8,
			minute UInt8,
			decision LowCardinality(String),
			reason String,
			water_duration Float64,
			raw_prediction Nullable(Float64),
			source LowCardinality(String)
		) ENGINE = MergeTree()
		ORDER BY (zone_id, timestamp)
		PARTITION BY toYYYYMM(timestamp)
	`
)

// AllTables returns all table creation SQL statements
func AllTables() []string {
	return []string{
		IrrigationDecisionsTableSQL,
	}
}
