package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidReading is returned when a sensor payload is missing a required field
// or carries an out-of-range time of day.
var ErrInvalidReading = errors.New("invalid sensor reading")

// Feature column positions. Both models were trained against this exact order.
const (
	FeatureHumidity = iota
	FeatureLight
	FeatureTemperature
	FeatureHour
	FeatureMinute
	featureCount
)

// FeatureColumns names the FeatureVector columns in model-contract order.
var FeatureColumns = [featureCount]string{"humidity", "light", "temperature", "hour", "minute"}

// FeatureVector is the ordered model input.
type FeatureVector [featureCount]float64

// Get returns the value of a named column.
func (fv FeatureVector) Get(column string) (float64, bool) {
	for i, name := range FeatureColumns {
		if name == column {
			return fv[i], true
		}
	}
	return 0, false
}

// SensorReading represents one set of environmental readings for a zone
type SensorReading struct {
	Humidity    float64 `json:"humidity"`
	Light       float64 `json:"light"`
	Temperature float64 `json:"temperature"`
	Hour        *int    `json:"hour,omitempty"`   // 0-23, filled from the clock when nil
	Minute      *int    `json:"minute,omitempty"` // 0-59, filled from the clock when nil
}

// Resolve returns a copy with hour/minute filled from now when unset.
func (r SensorReading) Resolve(now time.Time) SensorReading {
	resolved := r
	if r.Hour == nil {
		h := now.Hour()
		resolved.Hour = &h
	} else {
		h := *r.Hour
		resolved.Hour = &h
	}
	if r.Minute == nil {
		m := now.Minute()
		resolved.Minute = &m
	} else {
		m := *r.Minute
		resolved.Minute = &m
	}
	return resolved
}

// Features builds the FeatureVector. Unset hour/minute count as zero, so callers
// should Resolve first.
func (r SensorReading) Features() FeatureVector {
	var fv FeatureVector
	fv[FeatureHumidity] = r.Humidity
	fv[FeatureLight] = r.Light
	fv[FeatureTemperature] = r.Temperature
	if r.Hour != nil {
		fv[FeatureHour] = float64(*r.Hour)
	}
	if r.Minute != nil {
		fv[FeatureMinute] = float64(*r.Minute)
	}
	return fv
}

// SensorPayload is the wire form of a reading received over HTTP or MQTT.
// Pointer fields distinguish a missing value from an explicit zero.
type SensorPayload struct {
	Humidity    *float64 `json:"humidity"`
	Light       *float64 `json:"light"`
	Temperature *float64 `json:"temperature"`
	Hour        *int     `json:"hour"`
	Minute      *int     `json:"minute"`
}

// Reading validates the payload and converts it to a SensorReading
func (p SensorPayload) Reading() (SensorReading, error) {
	switch {
	case p.Humidity == nil:
		return SensorReading{}, fmt.Errorf("%w: humidity is required", ErrInvalidReading)
	case p.Light == nil:
		return SensorReading{}, fmt.Errorf("%w: light is required", ErrInvalidReading)
	case p.Temperature == nil:
		return SensorReading{}, fmt.Errorf("%w: temperature is required", ErrInvalidReading)
	}
	if p.Hour != nil && (*p.Hour < 0 || *p.Hour > 23) {
		return SensorReading{}, fmt.Errorf("%w: hour %d out of range 0-23", ErrInvalidReading, *p.Hour)
	}
	if p.Minute != nil && (*p.Minute < 0 || *p.Minute > 59) {
		return SensorReading{}, fmt.Errorf("%w: minute %d out of range 0-59", ErrInvalidReading, *p.Minute)
	}

	return SensorReading{
		Humidity:    *p.Humidity,
		Light:       *p.Light,
		Temperature: *p.Temperature,
		Hour:        p.Hour,
		Minute:      p.Minute,
	}, nil
}

// ZoneReading is a reading received for a specific irrigation zone
type ZoneReading struct {
	ZoneID     string        `json:"zone_id"`
	ReceivedAt time.Time     `json:"received_at"`
	Reading    SensorReading `json:"reading"`
}
