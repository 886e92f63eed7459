package engine

import (
	"fmt"

	"gadgetwars.ai/internal/sim/rng"
)

// ResearchResult is the research block of a team's round result.
type ResearchResult struct {
	Started         []string           `json:"started,omitempty"`
	Completed       []string           `json:"completed,omitempty"`
	Delayed         []string           `json:"delayed,omitempty"`
	Overruns        map[string]float64 `json:"overruns,omitempty"` // tech id -> extra cost
	Spend           float64            `json:"spend"`
	PlatformCreated string             `json:"platform_created,omitempty"`
}

// runResearch advances one team's research queue for the round and applies
// new research decisions. Returns the per-team result block and the
// transient spillover bonus per segment for this round's market scoring.
//
// Per-project draw order is fixed: delay, overrun, then overrun fraction if
// the overrun fired. All draws come from the "rd" stream.
func (e *Engine) runResearch(team TeamID, st *TeamState, dec *ResearchDecisions, round int, stream *rng.Stream, mods eventModifiers, warns *warnings) (ResearchResult, map[string]float64) {
	res := ResearchResult{Overruns: map[string]float64{}}
	spill := map[string]float64{}

	// Advance active projects in queue order.
	var still []ActiveResearch
	for _, proj := range st.ActiveResearch {
		proj.RemainingRounds--

		if stream.Bool(e.tun.Research.DelayProb[proj.RiskLevel]) {
			proj.RemainingRounds++
			proj.Delays++
			res.Delayed = append(res.Delayed, proj.TechID)
		}
		if stream.Bool(e.tun.Research.OverrunProb[proj.RiskLevel]) {
			frac := stream.Range(e.tun.Research.OverrunMinFrac, e.tun.Research.OverrunMaxFrac)
			extra := proj.BudgetedCost * frac * mods.costFor(team)
			st.Cash -= extra
			st.TotalCosts += extra
			proj.SpentCost += extra
			res.Overruns[proj.TechID] += extra
			res.Spend += extra
		}

		if proj.RemainingRounds <= 0 {
			e.completeResearch(st, proj, round, spill)
			res.Completed = append(res.Completed, proj.TechID)
			continue
		}
		still = append(still, proj)
	}
	st.ActiveResearch = still

	if dec != nil {
		for _, np := range dec.NewProjects {
			if err := e.startResearch(st, np, round, mods.costFor(team)); err != nil {
				warns.addf(team, "research", "project %s rejected: %v", np.TechID, err)
				continue
			}
			res.Started = append(res.Started, np.TechID)
			res.Spend += e.cats.Tech.ByID[np.TechID].Cost * mods.costFor(team)
		}

		if dec.PlatformInvestment > 0 {
			spend := dec.PlatformInvestment * mods.costFor(team)
			if spend > st.Cash {
				warns.addf(team, "research", "platform investment %.0f exceeds cash, skipped", spend)
			} else {
				st.Cash -= spend
				st.TotalCosts += spend
				st.PlatformInvestment += spend
				res.Spend += spend
			}
		}
		if st.PlatformInvestment >= e.tun.Research.PlatformThreshold && len(dec.PlatformSegments) > 0 {
			segs := make([]string, 0, len(dec.PlatformSegments))
			for _, s := range dec.PlatformSegments {
				if _, ok := e.cats.Segments.ByID[s]; !ok {
					warns.addf(team, "research", "platform target segment %q unknown, dropped", s)
					continue
				}
				segs = append(segs, s)
			}
			if len(segs) > 0 {
				st.PlatformInvestment -= e.tun.Research.PlatformThreshold
				pl := Platform{
					ID:            fmt.Sprintf("PLAT-%s-%d", team, len(st.Platforms)+1),
					Segments:      segs,
					CostReduction: e.tun.Research.PlatformCostReduction,
					SpeedBonus:    e.tun.Research.PlatformSpeedBonus,
					CreatedRound:  round,
				}
				st.Platforms = append(st.Platforms, pl)
				res.PlatformCreated = pl.ID
			}
		}
	}

	if len(st.ActiveResearch) == 0 && len(res.Started) == 0 && len(res.Completed) == 0 {
		st.IdleResearchRounds++
	} else {
		st.IdleResearchRounds = 0
	}

	return res, spill
}

func (e *Engine) startResearch(st *TeamState, np NewProject, round int, costMult float64) error {
	node, ok := e.cats.Tech.ByID[np.TechID]
	if !ok {
		return fmt.Errorf("unknown technology")
	}
	if !validRisk(np.RiskLevel) {
		return fmt.Errorf("unknown risk level %q", np.RiskLevel)
	}
	if st.HasTech(np.TechID) {
		return fmt.Errorf("already unlocked")
	}
	if st.researching(np.TechID) {
		return fmt.Errorf("already in progress")
	}
	for _, p := range node.Prereqs {
		if !st.HasTech(p) {
			return fmt.Errorf("prerequisite %s not unlocked", p)
		}
	}
	cost := node.Cost * costMult
	if cost > st.Cash {
		return fmt.Errorf("insufficient cash (%.0f needed, %.0f available)", cost, st.Cash)
	}

	duration := node.DurationRounds
	if e.platformSpeedup(st, node.Family) {
		duration -= e.tun.Research.PlatformSpeedBonus
		if duration < 1 {
			duration = 1
		}
	}

	st.Cash -= cost
	st.TotalCosts += cost
	st.ActiveResearch = append(st.ActiveResearch, ActiveResearch{
		TechID:          np.TechID,
		RiskLevel:       np.RiskLevel,
		RemainingRounds: duration,
		BudgetedCost:    node.Cost,
		SpentCost:       cost,
		StartedRound:    round,
	})
	return nil
}

// platformSpeedup reports whether any of the team's platforms targets a
// segment dominated by the given family.
func (e *Engine) platformSpeedup(st *TeamState, family string) bool {
	for _, pl := range st.Platforms {
		for _, segID := range pl.Segments {
			if seg, ok := e.cats.Segments.ByID[segID]; ok && seg.DominantFamily == family {
				return true
			}
		}
	}
	return false
}

func (e *Engine) completeResearch(st *TeamState, proj ActiveResearch, round int, spill map[string]float64) {
	st.Technologies = insertSorted(st.Technologies, proj.TechID)
	st.Completed = append(st.Completed, CompletedResearch{
		TechID:         proj.TechID,
		RiskLevel:      proj.RiskLevel,
		CompletedRound: round,
		TotalCost:      proj.SpentCost,
		Delays:         proj.Delays,
	})

	node := e.cats.Tech.ByID[proj.TechID]
	for _, eff := range node.Effects {
		switch eff.Type {
		case "quality_bonus":
			if st.QualityBonus == nil {
				st.QualityBonus = map[string]float64{}
			}
			st.QualityBonus[eff.Family] += eff.Value
			// Shared engineering knowledge: a fraction of the bonus leaks
			// into segments not dominated by the boosted family, this round
			// only.
			for _, segID := range e.cats.Segments.IDs {
				seg := e.cats.Segments.ByID[segID]
				if seg.DominantFamily == eff.Family {
					continue
				}
				spill[segID] += e.tun.Research.SpilloverFrac * (eff.Value / 100) * seg.Weights[eff.Family]
			}
		case "cost_reduction":
			st.CostReduction += eff.Value
		case "segment_bonus":
			if st.SegmentBonus == nil {
				st.SegmentBonus = map[string]float64{}
			}
			st.SegmentBonus[eff.Segment] += eff.Value
		case "feature_unlock":
			st.UnlockedFeatures = insertSorted(st.UnlockedFeatures, eff.Feature)
		}
	}
}

func validRisk(r string) bool {
	return r == "conservative" || r == "moderate" || r == "aggressive"
}

func insertSorted(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	list = append(list, v)
	for i := len(list) - 1; i > 0 && list[i] < list[i-1]; i-- {
		list[i], list[i-1] = list[i-1], list[i]
	}
	return list
}
