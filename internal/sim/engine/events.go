package engine

// FacilitatorEvent is an operator-injected round event. Modifiers are
// multiplicative and applied before market scoring. An empty Teams list
// targets every team.
type FacilitatorEvent struct {
	Type  string   `json:"type"`
	Title string   `json:"title"`
	Teams []TeamID `json:"teams,omitempty"`

	// DemandMult scales segment demand (segment id -> factor).
	DemandMult map[string]float64 `json:"demand_mult,omitempty"`
	// ScoreMult scales the targeted teams' composite market scores.
	ScoreMult float64 `json:"score_mult,omitempty"`
	// CostMult scales the targeted teams' research spending this round.
	CostMult float64 `json:"cost_mult,omitempty"`
}

// eventModifiers is the merged, per-round view of all injected events,
// handed forward into the stages that consume it.
type eventModifiers struct {
	demandMult map[string]float64 // segment -> factor
	scoreMult  map[TeamID]float64
	costMult   map[TeamID]float64
}

func mergeEvents(events []FacilitatorEvent, teams []TeamID, warns *warnings) eventModifiers {
	m := eventModifiers{
		demandMult: map[string]float64{},
		scoreMult:  map[TeamID]float64{},
		costMult:   map[TeamID]float64{},
	}
	for _, ev := range events {
		targets := ev.Teams
		if len(targets) == 0 {
			targets = teams
		}
		for seg, f := range ev.DemandMult {
			if f <= 0 {
				warns.addf("", "events", "event %q: ignoring non-positive demand multiplier %v for segment %s", ev.Type, f, seg)
				continue
			}
			if _, ok := m.demandMult[seg]; !ok {
				m.demandMult[seg] = 1
			}
			m.demandMult[seg] *= f
		}
		for _, t := range targets {
			if ev.ScoreMult > 0 {
				if _, ok := m.scoreMult[t]; !ok {
					m.scoreMult[t] = 1
				}
				m.scoreMult[t] *= ev.ScoreMult
			}
			if ev.CostMult > 0 {
				if _, ok := m.costMult[t]; !ok {
					m.costMult[t] = 1
				}
				m.costMult[t] *= ev.CostMult
			}
		}
	}
	return m
}

func (m eventModifiers) demandFor(segment string) float64 {
	if f, ok := m.demandMult[segment]; ok {
		return f
	}
	return 1
}

func (m eventModifiers) scoreFor(team TeamID) float64 {
	if f, ok := m.scoreMult[team]; ok {
		return f
	}
	return 1
}

func (m eventModifiers) costFor(team TeamID) float64 {
	if f, ok := m.costMult[team]; ok {
		return f
	}
	return 1
}
