// Package logistics prices component shipments between supplier regions.
// Quotes are pure functions of the lane and load: no randomness, no state,
// so decision validation and cost bookkeeping can call them freely without
// touching round resolution.
package logistics

import "fmt"

type Region string

const (
	RegionAsia     Region = "asia"
	RegionEurope   Region = "europe"
	RegionAmericas Region = "americas"
)

type Method string

const (
	MethodSea     Method = "sea"
	MethodAir     Method = "air"
	MethodExpress Method = "express"
)

// Quote is the landed shipping estimate for one lane and load.
type Quote struct {
	Cost           float64 `json:"cost"`
	LeadTimeRounds int     `json:"lead_time_rounds"`
	Reliability    float64 `json:"reliability"`
}

type methodRates struct {
	base        float64 // flat handling cost
	perKg       float64
	perM3       float64
	leadRounds  int
	reliability float64
}

var methods = map[Method]methodRates{
	MethodSea:     {base: 400, perKg: 0.4, perM3: 45, leadRounds: 2, reliability: 0.92},
	MethodAir:     {base: 1200, perKg: 2.8, perM3: 160, leadRounds: 1, reliability: 0.97},
	MethodExpress: {base: 2600, perKg: 5.5, perM3: 310, leadRounds: 0, reliability: 0.995},
}

// Lane distance factors. Same-region lanes cost the base rate; the
// asia<->americas lane is the longest corridor.
var laneFactor = map[Region]map[Region]float64{
	RegionAsia:     {RegionAsia: 1.0, RegionEurope: 1.7, RegionAmericas: 2.1},
	RegionEurope:   {RegionAsia: 1.7, RegionEurope: 1.0, RegionAmericas: 1.5},
	RegionAmericas: {RegionAsia: 2.1, RegionEurope: 1.5, RegionAmericas: 1.0},
}

func QuoteShipment(origin, dest Region, method Method, weightKg, volumeM3 float64) (Quote, error) {
	factors, ok := laneFactor[origin]
	if !ok {
		return Quote{}, fmt.Errorf("logistics: unknown origin region %q", origin)
	}
	factor, ok := factors[dest]
	if !ok {
		return Quote{}, fmt.Errorf("logistics: unknown destination region %q", dest)
	}
	rates, ok := methods[method]
	if !ok {
		return Quote{}, fmt.Errorf("logistics: unknown shipping method %q", method)
	}
	if weightKg < 0 || volumeM3 < 0 {
		return Quote{}, fmt.Errorf("logistics: negative load (%.2fkg, %.2fm3)", weightKg, volumeM3)
	}

	lead := rates.leadRounds
	if origin != dest {
		lead++
	}
	rel := rates.reliability - 0.01*(factor-1)
	if rel < 0 {
		rel = 0
	}
	return Quote{
		Cost:           rates.base + factor*(weightKg*rates.perKg+volumeM3*rates.perM3),
		LeadTimeRounds: lead,
		Reliability:    rel,
	}, nil
}
