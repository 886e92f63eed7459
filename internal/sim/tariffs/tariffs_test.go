package tariffs

import (
	"math"
	"testing"

	"gadgetwars.ai/internal/sim/logistics"
)

func near(t *testing.T, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-6 {
		t.Fatalf("duty=%v want %v", got, want)
	}
}

func TestAmount_IntraRegionDutyFree(t *testing.T) {
	got, err := Amount(logistics.RegionEurope, logistics.RegionEurope, MaterialBatteryCells, 50000, 3)
	if err != nil {
		t.Fatalf("amount: %v", err)
	}
	if got != 0 {
		t.Fatalf("intra-region duty=%v want 0", got)
	}
}

func TestAmount_BaseRates(t *testing.T) {
	got, err := Amount(logistics.RegionAsia, logistics.RegionEurope, MaterialElectronics, 10000, 3)
	if err != nil {
		t.Fatalf("amount: %v", err)
	}
	near(t, got, 500)
}

func TestAmount_PacificEscalation(t *testing.T) {
	cases := []struct {
		round int
		want  float64
	}{
		{4, 800},   // before the ramp
		{5, 850},   // first escalated round
		{14, 1300}, // ramp reaches the cap
		{30, 1300}, // capped
	}
	for _, tc := range cases {
		got, err := Amount(logistics.RegionAsia, logistics.RegionAmericas, MaterialBatteryCells, 10000, tc.round)
		if err != nil {
			t.Fatalf("round %d: %v", tc.round, err)
		}
		near(t, got, tc.want)
	}
}

func TestAmount_EscalationIsCorridorSpecific(t *testing.T) {
	got, err := Amount(logistics.RegionAsia, logistics.RegionEurope, MaterialBatteryCells, 10000, 30)
	if err != nil {
		t.Fatalf("amount: %v", err)
	}
	near(t, got, 800)
}

func TestAmount_Errors(t *testing.T) {
	if _, err := Amount(logistics.RegionAsia, logistics.RegionEurope, "plutonium", 100, 1); err == nil {
		t.Fatalf("expected error for unknown material")
	}
	if _, err := Amount(logistics.RegionAsia, logistics.RegionEurope, MaterialElectronics, -5, 1); err == nil {
		t.Fatalf("expected error for negative cost")
	}
	if _, err := Amount(logistics.RegionAsia, logistics.RegionEurope, MaterialElectronics, 100, 0); err == nil {
		t.Fatalf("expected error for round zero")
	}
	if _, err := Amount("moon", logistics.RegionEurope, MaterialElectronics, 100, 1); err == nil {
		t.Fatalf("expected error for unknown region")
	}
}
