package config

import (
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"smart-garden/internal/engine"
)

// Store drivers
const (
	StoreNone       = "none"
	StoreClickHouse = "clickhouse"
	StorePostgres   = "postgres"
	StoreMySQL      = "mysql"
	StoreSQLite     = "sqlite"
)

type Config struct {
	// HTTP Configuration
	HTTPAddr         string
	DiagnosticFields bool
	MetricsEnabled   bool

	// Model artifacts
	ClassifierPath string
	RegressorPath  string

	// Safety limits
	MaxWaterDuration float64
	CooldownSeconds  float64
	CooldownEnabled  bool
	MessageLocale    string

	// Zones
	Zones    []string // allow-list, empty accepts any zone up to MaxZones
	MaxZones int

	// MQTT Configuration
	MQTTEnabled     bool
	MQTTBroker      string
	MQTTClientID    string
	MQTTUsername    string
	MQTTPassword    string
	MQTTTopicSensor string
	MQTTTopicPump   string
	MQTTTopicStatus string

	// Decision history store
	StoreDriver    string
	ClickHouseAddr string
	ClickHouseDB   string
	ClickHouseUser string
	ClickHousePass string
	DatabaseDSN    string
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		HTTPAddr:         getEnv("HTTP_ADDR", ":8000"),
		DiagnosticFields: getEnvBool("DIAGNOSTIC_FIELDS", true),
		MetricsEnabled:   getEnvBool("METRICS_ENABLED", true),

		ClassifierPath: getEnv("CLASSIFIER_PATH", "./model/water_need_classifier.json"),
		RegressorPath:  getEnv("REGRESSOR_PATH", "./model/water_duration_regressor.json"),

		MaxWaterDuration: getEnvFloat("MAX_WATER_DURATION", engine.DefaultMaxWaterDuration),
		CooldownSeconds:  getEnvFloat("COOLDOWN_SECONDS", engine.DefaultCooldown.Seconds()),
		CooldownEnabled:  getEnvBool("COOLDOWN_ENABLED", true),
		MessageLocale:    getEnv("MESSAGE_LOCALE", engine.LocaleEnglish),

		Zones:    getEnvList("ZONES"),
		MaxZones: getEnvInt("MAX_ZONES", engine.DefaultMaxZones),

		MQTTEnabled:     getEnvBool("MQTT_ENABLED", false),
		MQTTBroker:      getEnv("MQTT_BROKER", "tcp://localhost:1883"),
		MQTTClientID:    getEnv("MQTT_CLIENT_ID", "smart-garden"),
		MQTTUsername:    getEnv("MQTT_USERNAME", ""),
		MQTTPassword:    getEnv("MQTT_PASSWORD", ""),
		MQTTTopicSensor: getEnv("MQTT_TOPIC_SENSOR", "garden/+/sensors"),
		MQTTTopicPump:   getEnv("MQTT_TOPIC_PUMP", "garden/{device_id}/pump"),
		MQTTTopicStatus: getEnv("MQTT_TOPIC_STATUS", "garden/gateway/status"),

		StoreDriver:    getEnv("STORE_DRIVER", StoreNone),
		ClickHouseAddr: getEnv("CLICKHOUSE_ADDR", "localhost:9000"),
		ClickHouseDB:   getEnv("CLICKHOUSE_DB", "garden"),
		ClickHouseUser: getEnv("CLICKHOUSE_USER", "default"),
		ClickHousePass: getEnv("CLICKHOUSE_PASS", ""),
		DatabaseDSN:    getEnv("DATABASE_DSN", ""),
	}
}

// ZonePolicy returns the zone admission rules
func (c *Config) ZonePolicy() engine.ZonePolicy {
	return engine.ZonePolicy{Allowed: c.Zones, MaxZones: c.MaxZones}
}

// Engine returns the decision engine limits
func (c *Config) Engine() engine.Config {
	cfg := engine.DefaultConfig()
	cfg.MaxWaterDuration = c.MaxWaterDuration
	cfg.Cooldown = time.Duration(c.CooldownSeconds * float64(time.Second))
	cfg.CooldownEnabled = c.CooldownEnabled
	cfg.Locale = c.MessageLocale
	return cfg
}

// Validate checks the settings that cannot fall back to a default
func (c *Config) Validate() error {
	if math.IsNaN(c.CooldownSeconds) || math.IsInf(c.CooldownSeconds, 0) || c.CooldownSeconds < 0 {
		return fmt.Errorf("COOLDOWN_SECONDS must be a finite non-negative number, got %v", c.CooldownSeconds)
	}
	if err := c.Engine().Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if c.ClassifierPath == "" || c.RegressorPath == "" {
		return fmt.Errorf("both CLASSIFIER_PATH and REGRESSOR_PATH are required")
	}

	switch c.StoreDriver {
	case StoreNone, StoreClickHouse:
	case StorePostgres, StoreMySQL, StoreSQLite:
		if c.DatabaseDSN == "" {
			return fmt.Errorf("DATABASE_DSN is required for store driver %s", c.StoreDriver)
		}
	default:
		return fmt.Errorf("unsupported store driver: %s", c.StoreDriver)
	}

	if c.MaxZones < 1 {
		return fmt.Errorf("MAX_ZONES must be at least 1, got %d", c.MaxZones)
	}

	if c.MQTTEnabled && c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required when MQTT is enabled")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Warning: failed to parse %s as int, using default: %v", key, err)
		return defaultValue
	}
	return intValue
}

// getEnvList splits a comma-separated value, dropping blanks
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Printf("Warning: failed to parse %s as float, using default: %v", key, err)
		return defaultValue
	}
	return floatValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Warning: failed to parse %s as bool, using default: %v", key, err)
		return defaultValue
	}
	return boolValue
}
