package engine

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"smart-garden/internal/models"
)

func TestZonesHaveIndependentCooldown(t *testing.T) {
	classifier := &stubModel{name: "classifier", out: 1}
	regressor := &stubModel{name: "regressor", out: 4}
	clock := &fakeClock{now: time.Date(2026, 7, 1, 9, 30, 0, 0, time.UTC)}
	zones := NewZones(classifier, regressor, DefaultConfig(), WithClock(clock))

	a, err := zones.Decide("bed-a", scenarioReading())
	if err != nil {
		t.Fatalf("decide bed-a: %v", err)
	}
	b, err := zones.Decide("bed-b", scenarioReading())
	if err != nil {
		t.Fatalf("decide bed-b: %v", err)
	}
	if a.Decision != models.DecisionWater || b.Decision != models.DecisionWater {
		t.Fatalf("expected both zones to water, got %s and %s", a.Decision, b.Decision)
	}

	again, _ := zones.Decide("bed-a", scenarioReading())
	if again.Decision != models.DecisionSkip {
		t.Fatalf("expected bed-a to be in cooldown, got %s", again.Decision)
	}

	ids := zones.IDs()
	if len(ids) != 2 || ids[0] != "bed-a" || ids[1] != "bed-b" {
		t.Fatalf("unexpected zone ids %v", ids)
	}
}

func mustGet(t *testing.T, zones *Zones, zone string) *Engine {
	t.Helper()
	e, err := zones.Get(zone)
	if err != nil {
		t.Fatalf("get %q: %v", zone, err)
	}
	return e
}

func TestZonesGetIsStable(t *testing.T) {
	zones := NewZones(&stubModel{}, &stubModel{}, DefaultConfig())

	if mustGet(t, zones, "x") != mustGet(t, zones, "x") {
		t.Fatalf("expected the same engine for the same zone")
	}
	if mustGet(t, zones, "") != mustGet(t, zones, DefaultZone) {
		t.Fatalf("expected empty zone to map to the default zone")
	}
	if mustGet(t, zones, "x").State() == mustGet(t, zones, "y").State() {
		t.Fatalf("zones must not share rate-limit state")
	}
}

func TestZonesAllowList(t *testing.T) {
	zones := NewZones(&stubModel{out: 0}, &stubModel{}, DefaultConfig()).
		WithPolicy(ZonePolicy{Allowed: []string{"bed-a"}})

	if _, err := zones.Decide("bed-a", scenarioReading()); err != nil {
		t.Fatalf("configured zone rejected: %v", err)
	}
	if _, err := zones.Decide(DefaultZone, scenarioReading()); err != nil {
		t.Fatalf("default zone rejected: %v", err)
	}
	if _, err := zones.Decide("bed-z", scenarioReading()); !errors.Is(err, ErrUnknownZone) {
		t.Fatalf("expected ErrUnknownZone, got %v", err)
	}
	if !zones.Allows("bed-a") || zones.Allows("bed-z") || !zones.Allows("") {
		t.Fatalf("unexpected Allows results")
	}
	if ids := zones.IDs(); len(ids) != 2 {
		t.Fatalf("rejected zone must not be tracked, got %v", ids)
	}
}

func TestZonesMaxZones(t *testing.T) {
	zones := NewZones(&stubModel{out: 0}, &stubModel{}, DefaultConfig()).
		WithPolicy(ZonePolicy{MaxZones: 2})

	if _, err := zones.Decide("", scenarioReading()); err != nil {
		t.Fatalf("default zone rejected: %v", err)
	}
	for _, id := range []string{"a", "b"} {
		if _, err := zones.Decide(id, scenarioReading()); err != nil {
			t.Fatalf("zone %s rejected: %v", id, err)
		}
	}
	for i := 0; i < 10; i++ {
		if _, err := zones.Decide(fmt.Sprintf("flood-%d", i), scenarioReading()); !errors.Is(err, ErrUnknownZone) {
			t.Fatalf("expected ErrUnknownZone past the limit, got %v", err)
		}
	}
	if _, err := zones.Decide("a", scenarioReading()); err != nil {
		t.Fatalf("known zone must keep working: %v", err)
	}
	if ids := zones.IDs(); len(ids) != 3 {
		t.Fatalf("expected default plus 2 tracked zones, got %v", ids)
	}
}

func TestZonesWithoutModels(t *testing.T) {
	zones := NewZones(&stubModel{name: "classifier"}, nil, DefaultConfig())

	if zones.Ready() {
		t.Fatalf("expected zones without a regressor to be unready")
	}
	if _, err := zones.Decide("x", scenarioReading()); !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
	classifier, regressor := zones.ModelNames()
	if classifier != "classifier" || regressor != "" {
		t.Fatalf("unexpected model names %q %q", classifier, regressor)
	}
}

func TestRateLimitStateReset(t *testing.T) {
	var s RateLimitState
	now := time.Now()

	if _, ok := s.TryMark(now, time.Minute); !ok {
		t.Fatalf("expected first mark to succeed")
	}
	if left, ok := s.TryMark(now.Add(10*time.Second), time.Minute); ok || left != 50*time.Second {
		t.Fatalf("expected 50s remaining, got %v (ok=%v)", left, ok)
	}
	s.Reset()
	if !s.LastWaterTime().IsZero() {
		t.Fatalf("expected reset to clear last water time")
	}
}
