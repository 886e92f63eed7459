package engine

import (
	"fmt"
	"sort"

	"gadgetwars.ai/internal/sim/rng"
)

// PatentResult is the patents block of a team's round result.
type PatentResult struct {
	Filed           []string           `json:"filed,omitempty"`            // patent ids created
	LicensesGranted []string           `json:"licenses_granted,omitempty"` // patent ids licensed in
	ChallengesWon   []string           `json:"challenges_won,omitempty"`
	ChallengesLost  []string           `json:"challenges_lost,omitempty"`
	Expired         []string           `json:"expired,omitempty"` // own patents that expired
	LicenseRevenue  float64            `json:"license_revenue"`
	LicenseFeesPaid float64            `json:"license_fees_paid"`
	BlockingPenalty map[string]float64 `json:"blocking_penalty,omitempty"` // family -> penalty
}

// runPatents resolves all teams' patent decisions against the (cloned)
// registry. The stage order is strict: filings, license grants, challenges,
// licensing revenue, expiry, blocking penalties. Teams are iterated in the
// round's input order, which is what breaks same-round first-to-file ties.
func (e *Engine) runPatents(order []TeamID, states map[TeamID]*TeamState, decs map[TeamID]*PatentDecisions, reg *PatentRegistry, round int, stream *rng.Stream, warns *warnings) map[TeamID]*PatentResult {
	results := make(map[TeamID]*PatentResult, len(order))
	for _, id := range order {
		results[id] = &PatentResult{BlockingPenalty: map[string]float64{}}
	}

	// 1. Filings — first-to-file, decision order breaks same-round ties.
	for _, team := range order {
		dec := decs[team]
		if dec == nil {
			continue
		}
		st := states[team]
		for _, techID := range dec.Filings {
			p, err := e.fileFiling(team, st, techID, reg, round)
			if err != nil {
				warns.addf(team, "patents", "filing %s rejected: %v", techID, err)
				continue
			}
			results[team].Filed = append(results[team].Filed, p.ID)
		}
	}

	// 2. License requests — granted automatically when the patent is active,
	// the requester is not the owner and holds no license yet.
	for _, team := range order {
		dec := decs[team]
		if dec == nil {
			continue
		}
		st := states[team]
		for _, patentID := range dec.LicenseRequests {
			p, ok := reg.Patents[patentID]
			switch {
			case !ok:
				warns.addf(team, "patents", "license request %s rejected: unknown patent", patentID)
			case p.Status != PatentActive:
				warns.addf(team, "patents", "license request %s rejected: patent not active", patentID)
			case p.Owner == team:
				warns.addf(team, "patents", "license request %s rejected: cannot license own patent", patentID)
			case st.HasLicense(patentID):
				warns.addf(team, "patents", "license request %s rejected: already licensed", patentID)
			default:
				p.Licensees = append(p.Licensees, team)
				st.Licenses = insertSorted(st.Licenses, patentID)
				results[team].LicensesGranted = append(results[team].LicensesGranted, patentID)
			}
		}
	}

	// 3. Challenges — fixed fee, deducted win or lose.
	for _, team := range order {
		dec := decs[team]
		if dec == nil {
			continue
		}
		st := states[team]
		for _, patentID := range dec.Challenges {
			p, ok := reg.Patents[patentID]
			if !ok {
				warns.addf(team, "patents", "challenge %s rejected: unknown patent", patentID)
				continue
			}
			if p.Status != PatentActive {
				warns.addf(team, "patents", "challenge %s rejected: patent not active", patentID)
				continue
			}
			if p.Owner == team {
				warns.addf(team, "patents", "challenge %s rejected: cannot challenge own patent", patentID)
				continue
			}
			st.Cash -= e.tun.Patents.ChallengeCost
			st.TotalCosts += e.tun.Patents.ChallengeCost
			if stream.Bool(e.tun.Patents.ChallengeSuccessPct) {
				// Invalidated, never deleted: history stays queryable.
				p.Status = PatentChallenged
				results[team].ChallengesWon = append(results[team].ChallengesWon, patentID)
			} else {
				results[team].ChallengesLost = append(results[team].ChallengesLost, patentID)
			}
		}
	}

	// 4. Licensing revenue — settled after grants so new licenses pay
	// immediately.
	for _, patentID := range sortedPatentIDs(reg) {
		p := reg.Patents[patentID]
		if p.Status != PatentActive || len(p.Licensees) == 0 {
			continue
		}
		total := p.LicenseFee * float64(len(p.Licensees))
		if owner, ok := states[p.Owner]; ok {
			owner.Cash += total
			owner.TotalRevenue += total
			if r, ok := results[p.Owner]; ok {
				r.LicenseRevenue += total
			}
		}
		for _, lic := range p.Licensees {
			if st, ok := states[lic]; ok {
				st.Cash -= p.LicenseFee
				st.TotalCosts += p.LicenseFee
				if r, ok := results[lic]; ok {
					r.LicenseFeesPaid += p.LicenseFee
				}
			}
		}
	}

	// 5. Expiry.
	for _, patentID := range sortedPatentIDs(reg) {
		p := reg.Patents[patentID]
		if p.Status == PatentActive && round >= p.ExpiryRound {
			p.Status = PatentExpired
			if r, ok := results[p.Owner]; ok {
				r.Expired = append(r.Expired, patentID)
			}
		}
	}

	// 6. Blocking penalties — per team per family, capped.
	for _, team := range order {
		st := states[team]
		pen := results[team].BlockingPenalty
		for _, patentID := range sortedPatentIDs(reg) {
			p := reg.Patents[patentID]
			if p.Status != PatentActive || p.Owner == team {
				continue
			}
			if !st.HasTech(p.TechID) || st.HasLicense(p.ID) {
				continue
			}
			pen[p.Family] += p.BlockingPower
		}
		for fam, v := range pen {
			if v > e.tun.Patents.BlockingCap {
				pen[fam] = e.tun.Patents.BlockingCap
			}
		}
	}

	return results
}

func (e *Engine) fileFiling(team TeamID, st *TeamState, techID string, reg *PatentRegistry, round int) (*Patent, error) {
	node, ok := e.cats.Tech.ByID[techID]
	if !ok {
		return nil, fmt.Errorf("unknown technology")
	}
	if node.Tier < e.tun.Patents.MinTier {
		return nil, fmt.Errorf("tier %d below patentable tier %d", node.Tier, e.tun.Patents.MinTier)
	}
	if !st.HasTech(techID) {
		return nil, fmt.Errorf("technology not researched")
	}
	if existing := reg.ActiveForTech(techID); existing != nil {
		if existing.Owner == team {
			return nil, fmt.Errorf("already patented by you (%s)", existing.ID)
		}
		return nil, fmt.Errorf("already patented by %s", existing.Owner)
	}
	cost := e.tun.Patents.FilingCostPerTier * float64(node.Tier)
	if cost > st.Cash {
		return nil, fmt.Errorf("insufficient cash (%.0f needed, %.0f available)", cost, st.Cash)
	}

	st.Cash -= cost
	st.TotalCosts += cost
	duration := e.tun.Patents.DurationBase + e.tun.Patents.DurationPerTier*node.Tier
	p := &Patent{
		// One active patent per tech means (tech, round) is unique.
		ID:             fmt.Sprintf("PAT-%s-R%d", techID, round),
		TechID:         techID,
		Family:         node.Family,
		Owner:          team,
		Status:         PatentActive,
		FiledRound:     round,
		ExpiryRound:    round + duration,
		LicenseFee:     e.tun.Patents.LicenseFeePerTier * float64(node.Tier),
		BlockingPower:  e.tun.Patents.BlockingPerTier * float64(node.Tier),
		ExclusiveBonus: e.tun.Patents.ExclusiveBonusTier * float64(node.Tier),
	}
	reg.Patents[p.ID] = p
	st.PatentsOwned = insertSorted(st.PatentsOwned, p.ID)
	return p, nil
}

func sortedPatentIDs(reg *PatentRegistry) []string {
	ids := make([]string, 0, len(reg.Patents))
	for id := range reg.Patents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
