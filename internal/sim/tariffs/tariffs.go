// Package tariffs computes import duties on cross-region component
// purchases. Like logistics, this is a pure calculator consumed by cost
// bookkeeping; round resolution never reads it.
package tariffs

import (
	"fmt"

	"gadgetwars.ai/internal/sim/logistics"
)

type Material string

const (
	MaterialElectronics   Material = "electronics"
	MaterialBatteryCells  Material = "battery_cells"
	MaterialDisplayPanels Material = "display_panels"
	MaterialRawMaterials  Material = "raw_materials"
)

var baseRate = map[Material]float64{
	MaterialElectronics:   0.05,
	MaterialBatteryCells:  0.08,
	MaterialDisplayPanels: 0.06,
	MaterialRawMaterials:  0.02,
}

// Escalation of the asia<->americas corridor: +0.5% per round from round 5,
// capped at +5%.
const (
	escalationStartRound = 5
	escalationPerRound   = 0.005
	escalationCap        = 0.05
)

// Amount computes the duty owed on a cross-region purchase of the given
// declared cost in the given round. Intra-region purchases are duty free.
func Amount(origin, dest logistics.Region, material Material, cost float64, round int) (float64, error) {
	rate, ok := baseRate[material]
	if !ok {
		return 0, fmt.Errorf("tariffs: unknown material %q", material)
	}
	if cost < 0 {
		return 0, fmt.Errorf("tariffs: negative declared cost %.2f", cost)
	}
	if round < 1 {
		return 0, fmt.Errorf("tariffs: round %d", round)
	}
	if !validRegion(origin) {
		return 0, fmt.Errorf("tariffs: unknown origin region %q", origin)
	}
	if !validRegion(dest) {
		return 0, fmt.Errorf("tariffs: unknown destination region %q", dest)
	}
	if origin == dest {
		return 0, nil
	}

	if crossesPacific(origin, dest) && round >= escalationStartRound {
		extra := escalationPerRound * float64(round-escalationStartRound+1)
		if extra > escalationCap {
			extra = escalationCap
		}
		rate += extra
	}
	return cost * rate, nil
}

func validRegion(r logistics.Region) bool {
	switch r {
	case logistics.RegionAsia, logistics.RegionEurope, logistics.RegionAmericas:
		return true
	}
	return false
}

func crossesPacific(a, b logistics.Region) bool {
	return (a == logistics.RegionAsia && b == logistics.RegionAmericas) ||
		(a == logistics.RegionAmericas && b == logistics.RegionAsia)
}
