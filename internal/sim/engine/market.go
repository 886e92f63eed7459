package engine

import (
	"fmt"
	"math"

	"gadgetwars.ai/internal/sim/catalogs"
	"gadgetwars.ai/internal/sim/rng"
)

// TeamMarketResult is the market block of a team's round result.
type TeamMarketResult struct {
	Revenue   float64             `json:"revenue"`
	COGS      float64             `json:"cogs"`
	Positions map[string]Position `json:"positions,omitempty"` // segment -> position
}

// Position records the score components behind one team's standing in one
// segment. Consumed by the achievement engine.
type Position struct {
	ProductID        string  `json:"product_id"`
	Price            float64 `json:"price"`
	FeatureMatch     float64 `json:"feature_match"`
	PriceAdvantage   float64 `json:"price_advantage"`
	UnderservedBonus float64 `json:"underserved_bonus"`
	SegmentBonus     float64 `json:"segment_bonus"`
	Spillover        float64 `json:"spillover"`
	ExclusiveBonus   float64 `json:"exclusive_bonus"`
	BlockingPenalty  float64 `json:"blocking_penalty"`
	Composite        float64 `json:"composite"`
	Share            float64 `json:"share"`
	Units            float64 `json:"units"`
	Revenue          float64 `json:"revenue"`
}

// applyProductDecisions launches, discontinues and reprices products. Runs
// ahead of market scoring so this round's lineup competes immediately.
func (e *Engine) applyProductDecisions(team TeamID, st *TeamState, dec *DecisionSet, warns *warnings) {
	if dec.Products != nil {
		for _, id := range dec.Products.Discontinue {
			p := st.product(id)
			if p == nil {
				warns.addf(team, "products", "discontinue %s rejected: unknown product", id)
				continue
			}
			p.Status = ProductDiscontinued
		}
		for _, np := range dec.Products.NewProducts {
			if err := e.launchProduct(st, np); err != nil {
				warns.addf(team, "products", "product %s rejected: %v", np.ID, err)
			}
		}
	}
	if dec.Pricing != nil {
		for id, price := range dec.Pricing.Prices {
			p := st.product(id)
			if p == nil {
				warns.addf(team, "pricing", "price for %s ignored: unknown product", id)
				continue
			}
			if price <= 0 {
				warns.addf(team, "pricing", "price %.2f for %s ignored: must be positive", price, id)
				continue
			}
			p.Price = price
		}
	}
}

func (e *Engine) launchProduct(st *TeamState, np NewProduct) error {
	if np.ID == "" {
		return fmt.Errorf("empty product id")
	}
	if st.product(np.ID) != nil {
		return fmt.Errorf("product id already in use")
	}
	if _, ok := e.cats.Segments.ByID[np.Segment]; !ok {
		return fmt.Errorf("unknown segment %q", np.Segment)
	}
	if np.Price <= 0 {
		return fmt.Errorf("price must be positive")
	}
	if np.PlatformID != "" && st.platform(np.PlatformID) == nil {
		return fmt.Errorf("unknown platform %q", np.PlatformID)
	}
	features := map[string]float64{}
	for fam, v := range np.Features {
		if !validFamilyName(fam) {
			return fmt.Errorf("unknown feature axis %q", fam)
		}
		features[fam] = clamp(v, 0, 100)
	}
	st.Products = append(st.Products, Product{
		ID:         np.ID,
		Name:       np.Name,
		Segment:    np.Segment,
		Features:   features,
		Price:      np.Price,
		Status:     ProductLaunched,
		PlatformID: np.PlatformID,
	})
	return nil
}

func (s *TeamState) platform(id string) *Platform {
	for i := range s.Platforms {
		if s.Platforms[i].ID == id {
			return &s.Platforms[i]
		}
	}
	return nil
}

// marketInputs is the cross-stage data handed into market scoring: blocking
// penalties from the patent stage and transient spillover from research.
type marketInputs struct {
	blocking  map[TeamID]map[string]float64 // team -> family -> penalty
	spillover map[TeamID]map[string]float64 // team -> segment -> bonus
	registry  *PatentRegistry
	mods      eventModifiers
}

// runMarket scores every segment, allocates demand proportionally to
// composite scores, books revenue/COGS into team states and produces the
// next MarketState (per-round EMA update).
func (e *Engine) runMarket(order []TeamID, states map[TeamID]*TeamState, prior *MarketState, in marketInputs, round int, stream *rng.Stream) (map[TeamID]*TeamMarketResult, *MarketState) {
	results := make(map[TeamID]*TeamMarketResult, len(order))
	for _, id := range order {
		results[id] = &TeamMarketResult{Positions: map[string]Position{}}
		// Stale shares from the previous round would linger for segments the
		// team no longer serves.
		states[id].MarketShare = map[string]float64{}
	}

	next := prior.Clone()
	next.Round = round

	for _, segID := range e.cats.Segments.IDs {
		seg := e.cats.Segments.ByID[segID]
		ema := prior.ExpectedPrice[segID]
		if ema <= 0 {
			ema = seg.BasePrice
		}

		// One eligible product per team: its best-matching launched product
		// assigned to the segment.
		type entrant struct {
			team TeamID
			pos  Position
		}
		var entrants []entrant
		for _, team := range order {
			st := states[team]
			prod, match := e.bestProduct(st, segID)
			if prod == nil {
				continue
			}
			pos := Position{
				ProductID:    prod.ID,
				Price:        prod.Price,
				FeatureMatch: match,
			}
			pos.PriceAdvantage = math.Tanh(e.tun.Market.PriceSensitivity * (ema - prod.Price) / ema)
			pos.SegmentBonus = st.SegmentBonus[segID]
			pos.Spillover = in.spillover[team][segID]
			pos.ExclusiveBonus = e.exclusiveBonus(team, seg.DominantFamily, in.registry)
			pos.BlockingPenalty = in.blocking[team][seg.DominantFamily]
			entrants = append(entrants, entrant{team: team, pos: pos})
		}

		// Underserved segments reward whoever shows up.
		underserved := 0.0
		if capacity := e.tun.Market.UnderservedCapacity; len(entrants) > 0 && len(entrants) < capacity {
			underserved = e.tun.Market.UnderservedBonusMax * (1 - float64(len(entrants))/float64(capacity))
		}

		total := 0.0
		for i := range entrants {
			p := &entrants[i].pos
			p.UnderservedBonus = underserved
			c := p.FeatureMatch + p.PriceAdvantage + p.UnderservedBonus + p.SegmentBonus + p.Spillover + p.ExclusiveBonus - p.BlockingPenalty
			c *= in.mods.scoreFor(entrants[i].team)
			if c < 0 {
				c = 0
			}
			p.Composite = c
			total += c
		}

		// Demand for the round, with seeded jitter scaled by the segment's
		// volatility. No entrants means the demand simply goes unmet.
		demand := seg.BaseDemand * in.mods.demandFor(segID)
		if vol := prior.Volatility[segID]; vol > 0 {
			demand *= 1 + stream.Range(-vol, vol)
		}

		sumPriced, sumUnits := 0.0, 0.0
		for i := range entrants {
			ent := &entrants[i]
			if total <= 0 || ent.pos.Composite <= 0 {
				results[ent.team].Positions[segID] = ent.pos
				continue
			}
			share := ent.pos.Composite / total
			units := share * demand
			revenue := units * ent.pos.Price

			st := states[ent.team]
			unitCost := seg.UnitCost * (1 - e.costReductionFor(st, ent.pos.ProductID))
			cogs := units * unitCost

			ent.pos.Share = share
			ent.pos.Units = units
			ent.pos.Revenue = revenue

			st.Cash += revenue - cogs
			st.TotalRevenue += revenue
			st.TotalCosts += cogs
			st.MarketShare[segID] = share

			r := results[ent.team]
			r.Revenue += revenue
			r.COGS += cogs
			r.Positions[segID] = ent.pos

			sumPriced += units * ent.pos.Price
			sumUnits += units
		}

		// EMA of expected price, updated once per round from the realized
		// demand-weighted average. An empty round leaves the EMA alone.
		if sumUnits > 0 {
			realized := sumPriced / sumUnits
			alpha := e.tun.Market.EMAAlpha
			next.ExpectedPrice[segID] = alpha*realized + (1-alpha)*ema
		} else {
			next.ExpectedPrice[segID] = ema
		}
	}

	return results, next
}

// bestProduct returns the team's launched product in the segment with the
// highest feature-match score, plus that score. Slice order breaks ties.
func (e *Engine) bestProduct(st *TeamState, segID string) (*Product, float64) {
	seg := e.cats.Segments.ByID[segID]
	var best *Product
	bestMatch := -1.0
	for i := range st.Products {
		p := &st.Products[i]
		if p.Status != ProductLaunched || p.Segment != segID {
			continue
		}
		m := e.featureMatch(st, p, seg.Weights)
		if m > bestMatch {
			best, bestMatch = p, m
		}
	}
	if best == nil {
		return nil, 0
	}
	return best, bestMatch
}

// featureMatch is the weighted capability score in [0, 1]: the sum over the
// six axes of (effective capability / 100) x segment weight.
func (e *Engine) featureMatch(st *TeamState, p *Product, weights map[string]float64) float64 {
	// Fixed axis order: float summation must not depend on map iteration.
	score := 0.0
	for _, fam := range catalogs.Families {
		f := clamp(p.Features[fam]+st.QualityBonus[fam], 0, 100)
		score += f / 100 * weights[fam]
	}
	return score
}

// exclusiveBonus is the score bonus from owning active patents in the
// segment's dominant family.
func (e *Engine) exclusiveBonus(team TeamID, family string, reg *PatentRegistry) float64 {
	bonus := 0.0
	for _, id := range sortedPatentIDs(reg) {
		p := reg.Patents[id]
		if p.Status == PatentActive && p.Owner == team && p.Family == family {
			bonus += p.ExclusiveBonus
		}
	}
	return bonus
}

func (e *Engine) costReductionFor(st *TeamState, productID string) float64 {
	red := st.CostReduction
	if p := st.product(productID); p != nil && p.PlatformID != "" {
		if pl := st.platform(p.PlatformID); pl != nil {
			red += pl.CostReduction
		}
	}
	// COGS never drop below a fifth of catalog unit cost.
	return clamp(red, 0, 0.8)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func validFamilyName(f string) bool {
	for _, fam := range catalogs.Families {
		if fam == f {
			return true
		}
	}
	return false
}
