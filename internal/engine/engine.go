package engine

import (
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"smart-garden/internal/ml"
	"smart-garden/internal/models"
)

var (
	// ErrModelUnavailable is returned on every call while a model is missing. It is
	// never downgraded to a NO_WATER decision.
	ErrModelUnavailable = errors.New("prediction model unavailable")

	// ErrModelFailure wraps an error returned by a model during prediction
	ErrModelFailure = errors.New("prediction model failed")
)

const (
	DefaultMaxWaterDuration = 7.0
	DefaultMinWaterDuration = 1.0
	DefaultCooldown         = 300 * time.Second
)

// Config holds the safety limits of an engine
type Config struct {
	MaxWaterDuration float64       // hard ceiling in seconds
	MinWaterDuration float64       // shorter predictions become NO_WATER
	Cooldown         time.Duration // minimum gap between two waterings
	CooldownEnabled  bool
	Locale           string // reason language, "en" or "vi"
}

// DefaultConfig returns the production limits with cooldown enforced
func DefaultConfig() Config {
	return Config{
		MaxWaterDuration: DefaultMaxWaterDuration,
		MinWaterDuration: DefaultMinWaterDuration,
		Cooldown:         DefaultCooldown,
		CooldownEnabled:  true,
		Locale:           LocaleEnglish,
	}
}

// Validate checks that the limits are usable
func (c Config) Validate() error {
	if !finite(c.MaxWaterDuration) || !finite(c.MinWaterDuration) {
		return fmt.Errorf("water durations must be finite, got max=%v min=%v", c.MaxWaterDuration, c.MinWaterDuration)
	}
	if c.MaxWaterDuration <= 0 {
		return fmt.Errorf("max water duration must be positive, got %v", c.MaxWaterDuration)
	}
	if c.MinWaterDuration < 0 || c.MinWaterDuration > c.MaxWaterDuration {
		return fmt.Errorf("min water duration %v must be within [0, %v]", c.MinWaterDuration, c.MaxWaterDuration)
	}
	if c.CooldownEnabled && c.Cooldown <= 0 {
		return fmt.Errorf("cooldown must be positive when enabled, got %v", c.Cooldown)
	}
	if !SupportedLocale(c.Locale) {
		return fmt.Errorf("unsupported message locale %q", c.Locale)
	}
	return nil
}

// Observer is notified of model latencies and final decisions
type Observer interface {
	ObserveModel(model string, elapsed time.Duration)
	ObserveDecision(zone string, d models.Decision)
}

// Engine turns a SensorReading into exactly one Decision
type Engine struct {
	zone       string
	classifier ml.Model
	regressor  ml.Model
	config     Config
	msgs       messages

	clock    Clock
	state    *RateLimitState
	observer Observer
}

// Option customizes an Engine
type Option func(*Engine)

// WithClock replaces the wall clock
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithState injects the rate-limit state
func WithState(s *RateLimitState) Option {
	return func(e *Engine) { e.state = s }
}

// WithObserver attaches a metrics observer
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithZone labels the engine's logs and observations
func WithZone(zone string) Option {
	return func(e *Engine) { e.zone = zone }
}

// New creates an engine. A nil classifier or regressor leaves the engine
// unready: every Decide call fails with ErrModelUnavailable.
func New(classifier, regressor ml.Model, config Config, opts ...Option) *Engine {
	e := &Engine{
		zone:       DefaultZone,
		classifier: classifier,
		regressor:  regressor,
		config:     config,
		msgs:       messagesFor(config.Locale),
		clock:      SystemClock{},
		state:      &RateLimitState{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Ready reports whether both models are loaded
func (e *Engine) Ready() bool {
	return e.classifier != nil && e.regressor != nil
}

// Zone returns the zone label
func (e *Engine) Zone() string {
	return e.zone
}

// State returns the engine's rate-limit state
func (e *Engine) State() *RateLimitState {
	return e.state
}

// Config returns the engine limits
func (e *Engine) Config() Config {
	return e.config
}

// Decide runs the pipeline: resolve time of day, cooldown gate, classifier,
// regressor, clamp, pump-protection floor. Only a WATER outcome updates the
// rate-limit state.
func (e *Engine) Decide(reading models.SensorReading) (models.Decision, error) {
	if !e.Ready() {
		return models.Decision{}, ErrModelUnavailable
	}

	now := e.clock.Now()
	resolved := reading.Resolve(now)
	fv := resolved.Features()

	decision := models.Decision{
		DataReceived: &resolved,
		DecidedAt:    now,
	}

	if e.config.CooldownEnabled {
		if left := e.state.Remaining(now, e.config.Cooldown); left > 0 {
			return e.finish(e.skip(decision, left)), nil
		}
	}

	need, err := e.predict(e.classifier, fv)
	if err != nil {
		return models.Decision{}, err
	}
	if math.IsNaN(need) {
		return models.Decision{}, fmt.Errorf("%w: %s: classifier returned NaN", ErrModelFailure, e.classifier.Name())
	}
	if need == 0 {
		decision.Decision = models.DecisionNoWater
		decision.Reason = e.msgs.notNeeded
		return e.finish(decision), nil
	}

	raw, err := e.predict(e.regressor, fv)
	if err != nil {
		return models.Decision{}, err
	}
	if finite(raw) {
		decision.RawPrediction = &raw
	}

	final := Clamp(raw, e.config.MaxWaterDuration)
	if final < e.config.MinWaterDuration {
		decision.Decision = models.DecisionNoWater
		decision.Reason = e.msgs.tooSmall
		return e.finish(decision), nil
	}

	// Re-checked under the state lock: a concurrent WATER may have landed
	// while the models were running.
	if left, ok := e.state.TryMark(now, e.cooldown()); !ok {
		return e.finish(e.skip(decision, left)), nil
	}

	decision.Decision = models.DecisionWater
	decision.Reason = e.msgs.waterNeeded
	decision.WaterDuration = models.RoundSeconds(final)
	return e.finish(decision), nil
}

func (e *Engine) cooldown() time.Duration {
	if !e.config.CooldownEnabled {
		return 0
	}
	return e.config.Cooldown
}

func (e *Engine) skip(d models.Decision, left time.Duration) models.Decision {
	d.Decision = models.DecisionSkip
	d.Reason = e.msgs.cooldown(left)
	d.WaterDuration = 0
	d.RawPrediction = nil
	return d
}

func (e *Engine) predict(m ml.Model, fv models.FeatureVector) (float64, error) {
	start := time.Now()
	out, err := m.Predict(fv)
	if e.observer != nil {
		e.observer.ObserveModel(m.Name(), time.Since(start))
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrModelFailure, m.Name(), err)
	}
	return out, nil
}

func (e *Engine) finish(d models.Decision) models.Decision {
	log.Printf("DecisionEngine: zone=%s decision=%s duration=%s reason=%q",
		e.zone, d.Decision, d.WaterDuration, d.Reason)
	if e.observer != nil {
		e.observer.ObserveDecision(e.zone, d)
	}
	return d
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Clamp bounds a predicted duration to [0, ceiling]. NaN is treated as zero.
func Clamp(raw, ceiling float64) float64 {
	if math.IsNaN(raw) {
		return 0
	}
	return math.Max(0, math.Min(raw, ceiling))
}
