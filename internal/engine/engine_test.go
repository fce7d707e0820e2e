package engine

import (
	"errors"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"smart-garden/internal/models"
)

type stubModel struct {
	name  string
	out   float64
	err   error
	calls int32
	delay time.Duration
}

func (m *stubModel) Predict(models.FeatureVector) (float64, error) {
	atomic.AddInt32(&m.calls, 1)
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	return m.out, m.err
}

func (m *stubModel) Name() string { return m.name }

func (m *stubModel) Calls() int { return int(atomic.LoadInt32(&m.calls)) }

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingObserver struct {
	mu        sync.Mutex
	models    []string
	decisions []models.DecisionKind
}

func (o *recordingObserver) ObserveModel(model string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.models = append(o.models, model)
}

func (o *recordingObserver) ObserveDecision(_ string, d models.Decision) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.decisions = append(o.decisions, d.Decision)
}

func scenarioReading() models.SensorReading {
	return models.SensorReading{Humidity: 20, Light: 300, Temperature: 28}
}

func newTestEngine(classOut, regOut float64, cfg Config) (*Engine, *stubModel, *stubModel, *fakeClock) {
	classifier := &stubModel{name: "classifier", out: classOut}
	regressor := &stubModel{name: "regressor", out: regOut}
	clock := &fakeClock{now: time.Date(2026, 7, 1, 9, 30, 0, 0, time.UTC)}
	return New(classifier, regressor, cfg, WithClock(clock)), classifier, regressor, clock
}

func TestScenarioAWater(t *testing.T) {
	e, _, _, _ := newTestEngine(1, 4.2, DefaultConfig())

	d, err := e.Decide(scenarioReading())
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if d.Decision != models.DecisionWater || d.WaterDuration != 4.2 {
		t.Fatalf("expected WATER 4.2, got %s %v", d.Decision, d.WaterDuration)
	}
	if d.RawPrediction == nil || *d.RawPrediction != 4.2 {
		t.Fatalf("expected raw prediction 4.2, got %v", d.RawPrediction)
	}
}

func TestScenarioBClampedToCeiling(t *testing.T) {
	e, _, _, _ := newTestEngine(1, 9.9, DefaultConfig())

	d, err := e.Decide(scenarioReading())
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if d.Decision != models.DecisionWater || d.WaterDuration != 7.0 {
		t.Fatalf("expected WATER 7.0, got %s %v", d.Decision, d.WaterDuration)
	}
	if *d.RawPrediction != 9.9 {
		t.Fatalf("expected unclamped raw 9.9, got %v", *d.RawPrediction)
	}
}

func TestScenarioCBelowPracticalMinimum(t *testing.T) {
	e, _, _, _ := newTestEngine(1, 0.3, DefaultConfig())

	d, err := e.Decide(scenarioReading())
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if d.Decision != models.DecisionNoWater || d.WaterDuration != 0 {
		t.Fatalf("expected NO_WATER 0, got %s %v", d.Decision, d.WaterDuration)
	}
	if d.RawPrediction == nil || *d.RawPrediction != 0.3 {
		t.Fatalf("expected raw prediction 0.3 to be surfaced")
	}
	if !e.State().LastWaterTime().IsZero() {
		t.Fatalf("NO_WATER must not update the rate-limit state")
	}
}

func TestScenarioDClassifierSaysNo(t *testing.T) {
	e, _, regressor, _ := newTestEngine(0, 5, DefaultConfig())

	d, err := e.Decide(scenarioReading())
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if d.Decision != models.DecisionNoWater || d.WaterDuration != 0 {
		t.Fatalf("expected NO_WATER 0, got %s %v", d.Decision, d.WaterDuration)
	}
	if regressor.Calls() != 0 {
		t.Fatalf("regressor must not be invoked, got %d calls", regressor.Calls())
	}
}

func TestScenarioESkipWithinCooldown(t *testing.T) {
	e, classifier, regressor, clock := newTestEngine(1, 4.2, DefaultConfig())

	if d, _ := e.Decide(scenarioReading()); d.Decision != models.DecisionWater {
		t.Fatalf("expected first decision to water, got %s", d.Decision)
	}
	clock.Advance(60 * time.Second)

	d, err := e.Decide(scenarioReading())
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if d.Decision != models.DecisionSkip || d.WaterDuration != 0 {
		t.Fatalf("expected SKIP 0, got %s %v", d.Decision, d.WaterDuration)
	}
	if !strings.Contains(d.Reason, "240s") {
		t.Fatalf("expected remaining seconds in reason, got %q", d.Reason)
	}
	if classifier.Calls() != 1 || regressor.Calls() != 1 {
		t.Fatalf("models must not run during cooldown, got classifier=%d regressor=%d",
			classifier.Calls(), regressor.Calls())
	}
}

func TestSameInstantAfterWaterSkips(t *testing.T) {
	e, _, _, _ := newTestEngine(1, 4.2, DefaultConfig())

	first, _ := e.Decide(scenarioReading())
	second, _ := e.Decide(scenarioReading())
	if first.Decision != models.DecisionWater || second.Decision != models.DecisionSkip {
		t.Fatalf("expected WATER then SKIP, got %s then %s", first.Decision, second.Decision)
	}
}

func TestCooldownExpires(t *testing.T) {
	e, _, _, clock := newTestEngine(1, 4.2, DefaultConfig())

	e.Decide(scenarioReading())
	clock.Advance(DefaultCooldown)

	d, _ := e.Decide(scenarioReading())
	if d.Decision != models.DecisionWater {
		t.Fatalf("expected WATER once the cooldown elapsed, got %s", d.Decision)
	}
}

func TestCooldownSkipsRegardlessOfModels(t *testing.T) {
	for _, classOut := range []float64{0, 1} {
		e, _, _, clock := newTestEngine(classOut, 6, DefaultConfig())
		e.State().TryMark(clock.Now(), DefaultCooldown)
		clock.Advance(time.Second)

		d, _ := e.Decide(scenarioReading())
		if d.Decision != models.DecisionSkip || d.WaterDuration != 0 {
			t.Fatalf("classifier=%v: expected SKIP 0, got %s %v", classOut, d.Decision, d.WaterDuration)
		}
	}
}

func TestCooldownDisabledIsIdempotent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CooldownEnabled = false
	e, _, _, _ := newTestEngine(1, 3.456, cfg)

	reading := scenarioReading()
	first, err := e.Decide(reading)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	second, err := e.Decide(reading)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if first.Decision != second.Decision || first.WaterDuration != second.WaterDuration {
		t.Fatalf("expected identical decisions, got %s/%v and %s/%v",
			first.Decision, first.WaterDuration, second.Decision, second.WaterDuration)
	}
	if first.WaterDuration != 3.46 {
		t.Fatalf("expected duration rounded to 3.46, got %v", first.WaterDuration)
	}
}

func TestNegativePredictionIsNoWater(t *testing.T) {
	e, _, _, _ := newTestEngine(1, -12, DefaultConfig())

	d, _ := e.Decide(scenarioReading())
	if d.Decision != models.DecisionNoWater || d.WaterDuration != 0 {
		t.Fatalf("expected NO_WATER 0, got %s %v", d.Decision, d.WaterDuration)
	}
}

func TestMissingModelFailsFast(t *testing.T) {
	regressor := &stubModel{name: "regressor", out: 4}
	e := New(nil, regressor, DefaultConfig())

	_, err := e.Decide(scenarioReading())
	if !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
	if e.Ready() {
		t.Fatalf("engine without a classifier must not be ready")
	}
	if regressor.Calls() != 0 {
		t.Fatalf("no model may run when one is missing")
	}
}

func TestModelErrorPropagates(t *testing.T) {
	classifier := &stubModel{name: "classifier", out: 1}
	regressor := &stubModel{name: "regressor", err: errors.New("boom")}
	e := New(classifier, regressor, DefaultConfig())

	_, err := e.Decide(scenarioReading())
	if !errors.Is(err, ErrModelFailure) {
		t.Fatalf("expected ErrModelFailure, got %v", err)
	}
	if !e.State().LastWaterTime().IsZero() {
		t.Fatalf("a failed decision must not update the rate-limit state")
	}
}

func TestTimeOfDayFilledFromClock(t *testing.T) {
	e, _, _, _ := newTestEngine(0, 0, DefaultConfig())

	d, _ := e.Decide(scenarioReading())
	if d.DataReceived == nil || *d.DataReceived.Hour != 9 || *d.DataReceived.Minute != 30 {
		t.Fatalf("expected resolved time 09:30, got %+v", d.DataReceived)
	}
}

func TestVietnameseReasons(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Locale = LocaleVietnamese
	e, _, _, _ := newTestEngine(0, 0, cfg)

	d, _ := e.Decide(scenarioReading())
	if d.Reason != catalog[LocaleVietnamese].notNeeded {
		t.Fatalf("expected vietnamese reason, got %q", d.Reason)
	}
}

func TestObserverSeesModelsAndDecision(t *testing.T) {
	classifier := &stubModel{name: "classifier", out: 1}
	regressor := &stubModel{name: "regressor", out: 4}
	obs := &recordingObserver{}
	e := New(classifier, regressor, DefaultConfig(), WithObserver(obs))

	e.Decide(scenarioReading())
	if len(obs.models) != 2 || obs.models[0] != "classifier" || obs.models[1] != "regressor" {
		t.Fatalf("expected classifier then regressor observations, got %v", obs.models)
	}
	if len(obs.decisions) != 1 || obs.decisions[0] != models.DecisionWater {
		t.Fatalf("expected one WATER observation, got %v", obs.decisions)
	}
}

func TestConcurrentDecisionsWaterOnce(t *testing.T) {
	classifier := &stubModel{name: "classifier", out: 1}
	regressor := &stubModel{name: "regressor", out: 5, delay: time.Millisecond}
	clock := &fakeClock{now: time.Date(2026, 7, 1, 9, 30, 0, 0, time.UTC)}
	e := New(classifier, regressor, DefaultConfig(), WithClock(clock))

	const callers = 32
	var (
		wg      sync.WaitGroup
		waters  int32
		skipped int32
	)
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			d, err := e.Decide(scenarioReading())
			if err != nil {
				t.Errorf("decide: %v", err)
				return
			}
			switch d.Decision {
			case models.DecisionWater:
				atomic.AddInt32(&waters, 1)
			case models.DecisionSkip:
				atomic.AddInt32(&skipped, 1)
			}
		}()
	}
	wg.Wait()

	if waters != 1 {
		t.Fatalf("expected exactly one WATER, got %d", waters)
	}
	if skipped != callers-1 {
		t.Fatalf("expected %d SKIP decisions, got %d", callers-1, skipped)
	}
}

func TestClampBoundsAndMonotonic(t *testing.T) {
	inputs := []float64{math.Inf(-1), -100, -0.5, 0, 0.3, 1, 4.2, 6.999, 7, 7.01, 9.9, 1e9, math.Inf(1)}

	prev := math.Inf(-1)
	for _, in := range inputs {
		got := Clamp(in, DefaultMaxWaterDuration)
		if got < 0 || got > DefaultMaxWaterDuration {
			t.Fatalf("Clamp(%v)=%v out of [0, %v]", in, got, DefaultMaxWaterDuration)
		}
		if got < prev {
			t.Fatalf("Clamp not monotonic at %v: %v < %v", in, got, prev)
		}
		prev = got
	}
	if got := Clamp(math.NaN(), DefaultMaxWaterDuration); got != 0 {
		t.Fatalf("expected NaN to clamp to 0, got %v", got)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}

	bad := []func(*Config){
		func(c *Config) { c.MaxWaterDuration = 0 },
		func(c *Config) { c.MinWaterDuration = 8 },
		func(c *Config) { c.Cooldown = 0 },
		func(c *Config) { c.Locale = "fr" },
		func(c *Config) { c.MaxWaterDuration = math.Inf(1) },
		func(c *Config) { c.MaxWaterDuration = math.NaN() },
		func(c *Config) { c.MinWaterDuration = math.NaN() },
	}
	for i, mutate := range bad {
		cfg := DefaultConfig()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}

	disabled := DefaultConfig()
	disabled.CooldownEnabled = false
	disabled.Cooldown = 0
	if err := disabled.Validate(); err != nil {
		t.Fatalf("disabled cooldown may be zero: %v", err)
	}
}

func TestNonFiniteRegressorOutput(t *testing.T) {
	cases := []struct {
		raw  float64
		want models.DecisionKind
		dur  models.Seconds
	}{
		{math.Inf(1), models.DecisionWater, 7},
		{math.Inf(-1), models.DecisionNoWater, 0},
		{math.NaN(), models.DecisionNoWater, 0},
	}
	for _, tc := range cases {
		e, _, _, _ := newTestEngine(1, tc.raw, DefaultConfig())
		d, err := e.Decide(scenarioReading())
		if err != nil {
			t.Fatalf("raw %v: unexpected error %v", tc.raw, err)
		}
		if d.Decision != tc.want || d.WaterDuration != tc.dur {
			t.Fatalf("raw %v: expected %s %v, got %s %v", tc.raw, tc.want, tc.dur, d.Decision, d.WaterDuration)
		}
		if d.RawPrediction != nil {
			t.Fatalf("raw %v: non-finite prediction must not be reported", tc.raw)
		}
	}
}

func TestNaNClassifierIsModelFailure(t *testing.T) {
	e, _, regressor, _ := newTestEngine(math.NaN(), 4.2, DefaultConfig())

	_, err := e.Decide(scenarioReading())
	if !errors.Is(err, ErrModelFailure) {
		t.Fatalf("expected ErrModelFailure, got %v", err)
	}
	if regressor.Calls() != 0 {
		t.Fatalf("regressor must not run after a NaN classification")
	}
	if !e.State().LastWaterTime().IsZero() {
		t.Fatalf("failed decision must not touch the cooldown")
	}
}
