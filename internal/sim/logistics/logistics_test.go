package logistics

import (
	"math"
	"testing"
)

func TestQuoteShipment_SameRegionBaseRate(t *testing.T) {
	q, err := QuoteShipment(RegionAsia, RegionAsia, MethodSea, 100, 2)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	want := 400 + 100*0.4 + 2*45.0
	if math.Abs(q.Cost-want) > 1e-6 {
		t.Fatalf("cost=%v want %v", q.Cost, want)
	}
	if q.LeadTimeRounds != 2 {
		t.Fatalf("lead=%d want 2", q.LeadTimeRounds)
	}
	if q.Reliability != 0.92 {
		t.Fatalf("reliability=%v want 0.92", q.Reliability)
	}
}

func TestQuoteShipment_LaneOrdering(t *testing.T) {
	local, err := QuoteShipment(RegionAsia, RegionAsia, MethodAir, 50, 1)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	near, err := QuoteShipment(RegionAsia, RegionEurope, MethodAir, 50, 1)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	far, err := QuoteShipment(RegionAsia, RegionAmericas, MethodAir, 50, 1)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if !(local.Cost < near.Cost && near.Cost < far.Cost) {
		t.Fatalf("cost ordering broken: %v %v %v", local.Cost, near.Cost, far.Cost)
	}
	if local.LeadTimeRounds != 1 || near.LeadTimeRounds != 2 {
		t.Fatalf("cross-region lead time not one round longer: %d %d", local.LeadTimeRounds, near.LeadTimeRounds)
	}
	if !(far.Reliability < local.Reliability) {
		t.Fatalf("longer lane should be less reliable: %v vs %v", far.Reliability, local.Reliability)
	}
}

func TestQuoteShipment_Symmetric(t *testing.T) {
	ab, err := QuoteShipment(RegionEurope, RegionAmericas, MethodSea, 200, 5)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	ba, err := QuoteShipment(RegionAmericas, RegionEurope, MethodSea, 200, 5)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if ab != ba {
		t.Fatalf("lane not symmetric: %+v vs %+v", ab, ba)
	}
}

func TestQuoteShipment_Errors(t *testing.T) {
	cases := []struct {
		name     string
		origin   Region
		dest     Region
		method   Method
		kg, m3   float64
	}{
		{"unknown origin", "moon", RegionAsia, MethodSea, 1, 1},
		{"unknown dest", RegionAsia, "moon", MethodSea, 1, 1},
		{"unknown method", RegionAsia, RegionEurope, "teleport", 1, 1},
		{"negative weight", RegionAsia, RegionEurope, MethodSea, -1, 1},
		{"negative volume", RegionAsia, RegionEurope, MethodSea, 1, -1},
	}
	for _, tc := range cases {
		if _, err := QuoteShipment(tc.origin, tc.dest, tc.method, tc.kg, tc.m3); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}
