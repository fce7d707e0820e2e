package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DecisionKind is the outcome of one decision
type DecisionKind string

const (
	DecisionWater   DecisionKind = "WATER"
	DecisionNoWater DecisionKind = "NO_WATER"
	DecisionSkip    DecisionKind = "SKIP"
)

// Seconds is a watering duration. It is always serialized with two decimal places.
type Seconds float64

// RoundSeconds rounds v half away from zero to two decimal places.
func RoundSeconds(v float64) Seconds {
	return Seconds(decimal.NewFromFloat(v).Round(2).InexactFloat64())
}

func (s Seconds) String() string {
	return decimal.NewFromFloat(float64(s)).StringFixed(2)
}

func (s Seconds) MarshalJSON() ([]byte, error) {
	return []byte(s.String()), nil
}

// Decision is the result of one pass through the decision pipeline
type Decision struct {
	Decision      DecisionKind   `json:"decision"`
	Reason        string         `json:"reason"`
	WaterDuration Seconds        `json:"water_duration"`
	RawPrediction *float64       `json:"raw_prediction,omitempty"` // unclamped regressor output
	DataReceived  *SensorReading `json:"data_received,omitempty"`  // resolved input
	DecidedAt     time.Time      `json:"-"`
}

// WithoutDiagnostics returns a copy stripped of raw_prediction and data_received.
func (d Decision) WithoutDiagnostics() Decision {
	d.RawPrediction = nil
	d.DataReceived = nil
	return d
}

// DecisionRecord is a decision as stored in the history log
type DecisionRecord struct {
	ID            string    `json:"id"`
	ZoneID        string    `json:"zone_id"`
	Timestamp     time.Time `json:"timestamp"`
	Humidity      float64   `json:"humidity"`
	Light         float64   `json:"light"`
	Temperature   float64   `json:"temperature"`
	Hour          int       `json:"hour"`
	Minute        int       `json:"minute"`
	Decision      string    `json:"decision"`
	Reason        string    `json:"reason"`
	WaterDuration float64   `json:"water_duration"`
	RawPrediction *float64  `json:"raw_prediction,omitempty"`
	Source        string    `json:"source"` // "http", "mqtt" or "cli"
}

// PumpCommand is published to the actuator when a zone should be watered
type PumpCommand struct {
	CommandID       string    `json:"command_id"`
	ZoneID          string    `json:"zone_id"`
	Action          string    `json:"action"`
	DurationSeconds Seconds   `json:"duration_seconds"`
	IssuedAt        time.Time `json:"issued_at"`
}
