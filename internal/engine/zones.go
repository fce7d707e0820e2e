package engine

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"smart-garden/internal/ml"
	"smart-garden/internal/models"
)

// DefaultZone is used when a caller names no zone. It is always admitted.
const DefaultZone = "default"

// DefaultMaxZones bounds how many zones are tracked when no allow-list is set
const DefaultMaxZones = 64

// ErrUnknownZone is returned for a zone outside the allow-list or beyond MaxZones
var ErrUnknownZone = errors.New("unknown zone")

// ZonePolicy decides which zones get an engine
type ZonePolicy struct {
	Allowed  []string // empty admits any zone until MaxZones is reached
	MaxZones int
}

// Zones holds one engine per irrigation zone. Engines share the models and
// limits but each owns its rate-limit state.
type Zones struct {
	classifier ml.Model
	regressor  ml.Model
	config     Config
	opts       []Option

	allowed  map[string]bool
	maxZones int

	mu      sync.RWMutex
	engines map[string]*Engine
}

// NewZones creates an empty zone set
func NewZones(classifier, regressor ml.Model, config Config, opts ...Option) *Zones {
	return &Zones{
		classifier: classifier,
		regressor:  regressor,
		config:     config,
		opts:       opts,
		maxZones:   DefaultMaxZones,
		engines:    make(map[string]*Engine),
	}
}

// WithPolicy sets the zone admission rules. Call before the first Decide.
func (z *Zones) WithPolicy(p ZonePolicy) *Zones {
	z.mu.Lock()
	defer z.mu.Unlock()

	z.allowed = nil
	if len(p.Allowed) > 0 {
		z.allowed = make(map[string]bool, len(p.Allowed))
		for _, id := range p.Allowed {
			z.allowed[id] = true
		}
	}
	if p.MaxZones > 0 {
		z.maxZones = p.MaxZones
	}
	return z
}

// Allows reports whether zone is admitted by the allow-list. It does not
// account for MaxZones.
func (z *Zones) Allows(zone string) bool {
	if zone == "" || zone == DefaultZone {
		return true
	}
	z.mu.RLock()
	defer z.mu.RUnlock()
	return z.allowed == nil || z.allowed[zone]
}

// Get returns the engine for zone, creating it on first use when the policy
// admits it
func (z *Zones) Get(zone string) (*Engine, error) {
	if zone == "" {
		zone = DefaultZone
	}

	z.mu.RLock()
	e, ok := z.engines[zone]
	z.mu.RUnlock()
	if ok {
		return e, nil
	}

	z.mu.Lock()
	defer z.mu.Unlock()

	if e, ok := z.engines[zone]; ok {
		return e, nil
	}
	if zone != DefaultZone {
		if z.allowed != nil && !z.allowed[zone] {
			return nil, fmt.Errorf("%w: %s is not configured", ErrUnknownZone, zone)
		}
		tracked := len(z.engines)
		if _, ok := z.engines[DefaultZone]; ok {
			tracked--
		}
		if tracked >= z.maxZones {
			return nil, fmt.Errorf("%w: %s exceeds the limit of %d zones", ErrUnknownZone, zone, z.maxZones)
		}
	}

	opts := append([]Option{}, z.opts...)
	opts = append(opts, WithZone(zone), WithState(&RateLimitState{}))
	e = New(z.classifier, z.regressor, z.config, opts...)
	z.engines[zone] = e
	log.Printf("DecisionEngine: Now tracking zone %s", zone)
	return e, nil
}

// Decide runs the zone's engine
func (z *Zones) Decide(zone string, reading models.SensorReading) (models.Decision, error) {
	e, err := z.Get(zone)
	if err != nil {
		return models.Decision{}, err
	}
	return e.Decide(reading)
}

// Ready reports whether both models are loaded
func (z *Zones) Ready() bool {
	return z.classifier != nil && z.regressor != nil
}

// ModelNames returns the classifier and regressor names, empty when missing
func (z *Zones) ModelNames() (classifier, regressor string) {
	if z.classifier != nil {
		classifier = z.classifier.Name()
	}
	if z.regressor != nil {
		regressor = z.regressor.Name()
	}
	return classifier, regressor
}

// IDs returns the known zone IDs in sorted order
func (z *Zones) IDs() []string {
	z.mu.RLock()
	defer z.mu.RUnlock()

	ids := make([]string, 0, len(z.engines))
	for id := range z.engines {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
