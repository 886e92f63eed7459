// Package engine implements the round-resolution core: given every team's
// prior state and this round's decisions, it deterministically produces new
// team states, a new market state, a new patent registry, newly unlocked
// achievements, and an audit trail.
package engine

import "gadgetwars.ai/internal/sim/catalogs"

type TeamID string

// Product status values.
const (
	ProductInDevelopment = "in_development"
	ProductLaunched      = "launched"
	ProductDiscontinued  = "discontinued"
)

// Patent status values.
const (
	PatentActive     = "active"
	PatentExpired    = "expired"
	PatentChallenged = "challenged"
)

// TeamState is one team's full snapshot. The orchestrator never mutates a
// prior state: it clones, advances the clone, and returns it wholesale.
type TeamState struct {
	Cash         float64 `json:"cash"`
	TotalRevenue float64 `json:"total_revenue"`
	TotalCosts   float64 `json:"total_costs"`

	Products []Product `json:"products,omitempty"`

	Technologies     []string            `json:"technologies,omitempty"` // unlocked tech ids, sorted
	ActiveResearch   []ActiveResearch    `json:"active_research,omitempty"`
	Completed        []CompletedResearch `json:"completed_research,omitempty"`
	QualityBonus     map[string]float64  `json:"quality_bonus,omitempty"`  // family -> feature points
	CostReduction    float64             `json:"cost_reduction,omitempty"` // fraction of unit cost, cumulative
	SegmentBonus     map[string]float64  `json:"segment_bonus,omitempty"`  // segment -> additive score bonus
	UnlockedFeatures []string            `json:"unlocked_features,omitempty"`

	PlatformInvestment float64    `json:"platform_investment,omitempty"`
	Platforms          []Platform `json:"platforms,omitempty"`

	PatentsOwned []string `json:"patents_owned,omitempty"` // patent ids
	Licenses     []string `json:"licenses,omitempty"`      // patent ids licensed in

	MarketShare map[string]float64 `json:"market_share,omitempty"` // segment -> share

	Achievements []UnlockedAchievement `json:"achievements,omitempty"`

	// Consecutive rounds with no active or newly started research.
	IdleResearchRounds int `json:"idle_research_rounds,omitempty"`
}

type Product struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Segment    string             `json:"segment"`
	Features   map[string]float64 `json:"features"` // family -> 0..100
	Price      float64            `json:"price"`
	Status     string             `json:"status"`
	PlatformID string             `json:"platform_id,omitempty"`
}

type ActiveResearch struct {
	TechID          string  `json:"tech_id"`
	RiskLevel       string  `json:"risk_level"`
	RemainingRounds int     `json:"remaining_rounds"`
	BudgetedCost    float64 `json:"budgeted_cost"`
	SpentCost       float64 `json:"spent_cost"`
	Delays          int     `json:"delays,omitempty"`
	StartedRound    int     `json:"started_round"`
}

type CompletedResearch struct {
	TechID         string  `json:"tech_id"`
	RiskLevel      string  `json:"risk_level"`
	CompletedRound int     `json:"completed_round"`
	TotalCost      float64 `json:"total_cost"`
	Delays         int     `json:"delays,omitempty"`
}

type Platform struct {
	ID            string   `json:"id"`
	Segments      []string `json:"segments"`
	CostReduction float64  `json:"cost_reduction"`
	SpeedBonus    int      `json:"speed_bonus"`
	CreatedRound  int      `json:"created_round"`
}

type UnlockedAchievement struct {
	ID     string  `json:"id"`
	Round  int     `json:"round"`
	Points float64 `json:"points"`
}

// Patent is never deleted; it only transitions status.
type Patent struct {
	ID             string   `json:"id"`
	TechID         string   `json:"tech_id"`
	Family         string   `json:"family"`
	Owner          TeamID   `json:"owner"`
	Licensees      []TeamID `json:"licensees,omitempty"`
	Status         string   `json:"status"`
	FiledRound     int      `json:"filed_round"`
	ExpiryRound    int      `json:"expiry_round"`
	LicenseFee     float64  `json:"license_fee"` // per licensee per round
	BlockingPower  float64  `json:"blocking_power"`
	ExclusiveBonus float64  `json:"exclusive_bonus"`
}

// PatentRegistry is the game-scoped patent state. The resolver clones the
// prior registry and returns a new value; the prior one is never touched.
type PatentRegistry struct {
	Patents map[string]*Patent `json:"patents"`
}

func NewPatentRegistry() *PatentRegistry {
	return &PatentRegistry{Patents: map[string]*Patent{}}
}

// ActiveForTech returns the active patent covering techID, if any. At most
// one exists at a time (first-to-file exclusivity).
func (r *PatentRegistry) ActiveForTech(techID string) *Patent {
	for _, p := range r.Patents {
		if p.TechID == techID && p.Status == PatentActive {
			return p
		}
	}
	return nil
}

func (r *PatentRegistry) Clone() *PatentRegistry {
	out := NewPatentRegistry()
	for id, p := range r.Patents {
		cp := *p
		cp.Licensees = append([]TeamID(nil), p.Licensees...)
		out.Patents[id] = &cp
	}
	return out
}

// MarketState carries the per-segment expected-price EMAs and demand
// volatility. Replaced wholesale each round.
type MarketState struct {
	ExpectedPrice map[string]float64 `json:"expected_price"`       // segment -> EMA
	Volatility    map[string]float64 `json:"volatility,omitempty"` // segment -> demand jitter amplitude
	Round         int                `json:"round"`
}

// DefaultVolatility is the demand jitter amplitude for fresh games.
const DefaultVolatility = 0.05

// NewMarketState seeds segment EMAs from catalog base prices.
func NewMarketState(segs catalogs.SegmentCatalog) *MarketState {
	ms := &MarketState{ExpectedPrice: map[string]float64{}, Volatility: map[string]float64{}}
	for id, s := range segs.ByID {
		ms.ExpectedPrice[id] = s.BasePrice
		ms.Volatility[id] = DefaultVolatility
	}
	return ms
}

func (m *MarketState) Clone() *MarketState {
	out := &MarketState{
		ExpectedPrice: cloneFloatMap(m.ExpectedPrice),
		Volatility:    cloneFloatMap(m.Volatility),
		Round:         m.Round,
	}
	return out
}

func (s *TeamState) Clone() *TeamState {
	out := *s
	out.Products = make([]Product, len(s.Products))
	for i, p := range s.Products {
		cp := p
		cp.Features = cloneFloatMap(p.Features)
		out.Products[i] = cp
	}
	out.Technologies = append([]string(nil), s.Technologies...)
	out.ActiveResearch = append([]ActiveResearch(nil), s.ActiveResearch...)
	out.Completed = append([]CompletedResearch(nil), s.Completed...)
	out.QualityBonus = cloneFloatMap(s.QualityBonus)
	out.SegmentBonus = cloneFloatMap(s.SegmentBonus)
	out.UnlockedFeatures = append([]string(nil), s.UnlockedFeatures...)
	out.Platforms = make([]Platform, len(s.Platforms))
	for i, pl := range s.Platforms {
		cp := pl
		cp.Segments = append([]string(nil), pl.Segments...)
		out.Platforms[i] = cp
	}
	out.PatentsOwned = append([]string(nil), s.PatentsOwned...)
	out.Licenses = append([]string(nil), s.Licenses...)
	out.MarketShare = cloneFloatMap(s.MarketShare)
	out.Achievements = append([]UnlockedAchievement(nil), s.Achievements...)
	return &out
}

func cloneFloatMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// HasTech reports whether the team has unlocked techID.
func (s *TeamState) HasTech(techID string) bool {
	for _, id := range s.Technologies {
		if id == techID {
			return true
		}
	}
	return false
}

// HasLicense reports whether the team licenses patentID.
func (s *TeamState) HasLicense(patentID string) bool {
	for _, id := range s.Licenses {
		if id == patentID {
			return true
		}
	}
	return false
}

// HasAchievement reports whether the achievement id is already unlocked.
func (s *TeamState) HasAchievement(id string) bool {
	for _, a := range s.Achievements {
		if a.ID == id {
			return true
		}
	}
	return false
}

func (s *TeamState) product(id string) *Product {
	for i := range s.Products {
		if s.Products[i].ID == id {
			return &s.Products[i]
		}
	}
	return nil
}

func (s *TeamState) researching(techID string) bool {
	for _, r := range s.ActiveResearch {
		if r.TechID == techID {
			return true
		}
	}
	return false
}
