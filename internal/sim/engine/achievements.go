package engine

import (
	"fmt"
	"math"
	"sort"

	"gadgetwars.ai/internal/sim/catalogs"
)

// achievementContext is the typed evaluation context handed to every
// achievement predicate. Predicates are pure reads over post-market state.
type achievementContext struct {
	Round    int
	Team     TeamID
	State    *TeamState
	States   map[TeamID]*TeamState
	Market   *TeamMarketResult
	Expected map[string]float64 // segment EMAs the round was scored against
	Leaders  map[string]TeamID  // segment -> team with top composite score
	Registry *PatentRegistry
}

type predicate func(*achievementContext) bool

// deferred marks conditions that need historical tracking the engine does
// not keep yet (challenge outcomes, cumulative licensing revenue). They are
// explicitly unimplemented rather than approximated.
func deferred(*achievementContext) bool { return false }

// buildPredicates wires every achievement id in the catalog to its
// condition. New catalog entries without a predicate fail engine
// construction, keeping the table and the catalog aligned.
func (e *Engine) buildPredicates() error {
	tier := func(ctx *achievementContext, min int) bool {
		for _, id := range ctx.State.Technologies {
			if e.cats.Tech.ByID[id].Tier >= min {
				return true
			}
		}
		return false
	}
	techFamilies := func(ctx *achievementContext) map[string]int {
		out := map[string]int{}
		for _, id := range ctx.State.Technologies {
			out[e.cats.Tech.ByID[id].Family]++
		}
		return out
	}
	launched := func(st *TeamState) []*Product {
		var out []*Product
		for i := range st.Products {
			if st.Products[i].Status == ProductLaunched {
				out = append(out, &st.Products[i])
			}
		}
		return out
	}
	effFeature := func(st *TeamState, p *Product, fam string) float64 {
		return clamp(p.Features[fam]+st.QualityBonus[fam], 0, 100)
	}
	shareAtLeast := func(ctx *achievementContext, min float64) int {
		n := 0
		for _, segID := range e.cats.Segments.IDs {
			if ctx.State.MarketShare[segID] >= min {
				n++
			}
		}
		return n
	}
	activeOwned := func(ctx *achievementContext) []*Patent {
		var out []*Patent
		for _, id := range ctx.State.PatentsOwned {
			if p, ok := ctx.Registry.Patents[id]; ok && p.Status == PatentActive {
				out = append(out, p)
			}
		}
		return out
	}
	anyPosition := func(ctx *achievementContext, cond func(segID string, pos Position) bool) bool {
		for segID, pos := range ctx.Market.Positions {
			if cond(segID, pos) {
				return true
			}
		}
		return false
	}

	e.preds = map[string]predicate{
		// Tech tree.
		"first_steps":    func(ctx *achievementContext) bool { return len(ctx.State.Technologies) >= 1 },
		"researcher":     func(ctx *achievementContext) bool { return len(ctx.State.Technologies) >= 3 },
		"tech_portfolio": func(ctx *achievementContext) bool { return len(ctx.State.Technologies) >= 5 },
		"tech_titan":     func(ctx *achievementContext) bool { return len(ctx.State.Technologies) >= 10 },
		"tier_breaker":   func(ctx *achievementContext) bool { return tier(ctx, 3) },
		"bleeding_edge":  func(ctx *achievementContext) bool { return tier(ctx, 4) },
		"moonshot":       func(ctx *achievementContext) bool { return tier(ctx, 5) },
		"family_specialist": func(ctx *achievementContext) bool {
			for _, n := range techFamilies(ctx) {
				if n >= 3 {
					return true
				}
			}
			return false
		},
		"renaissance": func(ctx *achievementContext) bool { return len(techFamilies(ctx)) >= 4 },
		"risk_taker": func(ctx *achievementContext) bool {
			for _, c := range ctx.State.Completed {
				if c.RiskLevel == "aggressive" && c.Delays == 0 {
					return true
				}
			}
			return false
		},

		// Products.
		"launch_day":   func(ctx *achievementContext) bool { return len(launched(ctx.State)) >= 1 },
		"product_line": func(ctx *achievementContext) bool { return len(launched(ctx.State)) >= 3 },
		"full_catalog": func(ctx *achievementContext) bool {
			served := map[string]bool{}
			for _, p := range launched(ctx.State) {
				served[p.Segment] = true
			}
			return len(served) == len(e.cats.Segments.IDs)
		},
		"flagship": func(ctx *achievementContext) bool {
			for _, p := range launched(ctx.State) {
				sum := 0.0
				for _, fam := range catalogs.Families {
					sum += effFeature(ctx.State, p, fam)
				}
				if sum/float64(len(catalogs.Families)) >= 80 {
					return true
				}
			}
			return false
		},
		"budget_champion":  func(ctx *achievementContext) bool { return ctx.State.MarketShare["budget"] >= 0.30 },
		"platform_builder": func(ctx *achievementContext) bool { return len(ctx.State.Platforms) >= 1 },
		"platform_family": func(ctx *achievementContext) bool {
			byPlatform := map[string]int{}
			for _, p := range launched(ctx.State) {
				if p.PlatformID != "" {
					byPlatform[p.PlatformID]++
				}
			}
			for _, n := range byPlatform {
				if n >= 2 {
					return true
				}
			}
			return false
		},
		"feature_complete": func(ctx *achievementContext) bool {
			for _, p := range launched(ctx.State) {
				for _, fam := range catalogs.Families {
					if effFeature(ctx.State, p, fam) >= 100 {
						return true
					}
				}
			}
			return false
		},

		// Market.
		"first_sale":           func(ctx *achievementContext) bool { return ctx.State.TotalRevenue > 0 },
		"market_presence":      func(ctx *achievementContext) bool { return shareAtLeast(ctx, 0.10) >= 1 },
		"segment_leader":       func(ctx *achievementContext) bool { return shareAtLeast(ctx, 0.40) >= 1 },
		"dominator":            func(ctx *achievementContext) bool { return shareAtLeast(ctx, 0.60) >= 1 },
		"multi_segment_leader": func(ctx *achievementContext) bool { return shareAtLeast(ctx, 0.40) >= 2 },
		"household_name": func(ctx *achievementContext) bool {
			for _, segID := range e.cats.Segments.IDs {
				if ctx.State.MarketShare[segID] <= 0 {
					return false
				}
			}
			return true
		},
		"revenue_1m":  func(ctx *achievementContext) bool { return ctx.State.TotalRevenue >= 1e6 },
		"revenue_10m": func(ctx *achievementContext) bool { return ctx.State.TotalRevenue >= 1e7 },

		// Pricing.
		"undercutter": func(ctx *achievementContext) bool {
			return anyPosition(ctx, func(segID string, pos Position) bool {
				return pos.Price <= 0.80*ctx.Expected[segID] && pos.Share >= 0.10
			})
		},
		"premium_brand": func(ctx *achievementContext) bool {
			return anyPosition(ctx, func(segID string, pos Position) bool {
				return pos.Price >= 1.30*ctx.Expected[segID] && pos.Share >= 0.05
			})
		},
		"price_anchor": func(ctx *achievementContext) bool {
			return anyPosition(ctx, func(segID string, pos Position) bool {
				return pos.Share > 0 && math.Abs(pos.Price-ctx.Expected[segID]) <= 0.05*ctx.Expected[segID]
			})
		},
		"perfect_fit": func(ctx *achievementContext) bool {
			return anyPosition(ctx, func(_ string, pos Position) bool { return pos.FeatureMatch >= 0.90 })
		},
		"good_fit": func(ctx *achievementContext) bool {
			return anyPosition(ctx, func(_ string, pos Position) bool { return pos.FeatureMatch >= 0.80 })
		},
		"value_king": func(ctx *achievementContext) bool {
			for segID, leader := range ctx.Leaders {
				if leader == ctx.Team && ctx.Market.Positions[segID].Composite > 0 {
					return true
				}
			}
			return false
		},

		// Patents.
		"first_patent":     func(ctx *achievementContext) bool { return len(activeOwned(ctx)) >= 1 },
		"patent_portfolio": func(ctx *achievementContext) bool { return len(activeOwned(ctx)) >= 3 },
		"patent_arsenal":   func(ctx *achievementContext) bool { return len(activeOwned(ctx)) >= 5 },
		"cross_licensed":   func(ctx *achievementContext) bool { return len(ctx.State.Licenses) >= 1 },
		"patent_spread": func(ctx *achievementContext) bool {
			fams := map[string]bool{}
			for _, p := range activeOwned(ctx) {
				fams[p.Family] = true
			}
			return len(fams) >= 3
		},
		"gatekeeper": func(ctx *achievementContext) bool {
			for _, p := range activeOwned(ctx) {
				for id, other := range ctx.States {
					if id == ctx.Team {
						continue
					}
					if other.HasTech(p.TechID) && !other.HasLicense(p.ID) {
						return true
					}
				}
			}
			return false
		},
		"patent_warrior": deferred,
		"toll_collector": deferred,

		// Bad / infamy. Zero points, but they go on the record.
		"in_the_red": func(ctx *achievementContext) bool { return ctx.State.Cash < 0 },
		"deep_hole":  func(ctx *achievementContext) bool { return ctx.State.Cash < -100000 },
		"research_drought": func(ctx *achievementContext) bool {
			return ctx.State.IdleResearchRounds >= 6
		},
		"shelfware": func(ctx *achievementContext) bool {
			return len(launched(ctx.State)) >= 1 && ctx.Market.Revenue == 0
		},
		"vaporware": func(ctx *achievementContext) bool {
			for _, r := range ctx.State.ActiveResearch {
				if node, ok := e.cats.Tech.ByID[r.TechID]; ok && r.Delays >= node.DurationRounds {
					return true
				}
			}
			return false
		},
		"price_gouger": func(ctx *achievementContext) bool {
			return anyPosition(ctx, func(segID string, pos Position) bool {
				return pos.Price >= 2.0*ctx.Expected[segID] && pos.Share < 0.05
			})
		},
		"copycat": func(ctx *achievementContext) bool {
			return len(activeOwned(ctx)) == 0 && len(ctx.State.Technologies) >= 5
		},
	}

	for _, id := range e.cats.Achievements.IDs {
		if _, ok := e.preds[id]; !ok {
			return fmt.Errorf("achievement %q has no predicate", id)
		}
	}
	return nil
}

// runAchievements evaluates the catalog for every team against post-market
// state. Already-unlocked ids are skipped; grants are final.
func (e *Engine) runAchievements(order []TeamID, states map[TeamID]*TeamState, market map[TeamID]*TeamMarketResult, expected map[string]float64, reg *PatentRegistry, round int) map[TeamID][]UnlockedAchievement {
	leaders := segmentLeaders(e.cats.Segments.IDs, order, market)

	out := make(map[TeamID][]UnlockedAchievement, len(order))
	for _, team := range order {
		ctx := &achievementContext{
			Round:    round,
			Team:     team,
			State:    states[team],
			States:   states,
			Market:   market[team],
			Expected: expected,
			Leaders:  leaders,
			Registry: reg,
		}
		for _, id := range e.cats.Achievements.IDs {
			if ctx.State.HasAchievement(id) {
				continue
			}
			if !e.preds[id](ctx) {
				continue
			}
			def := e.cats.Achievements.ByID[id]
			ua := UnlockedAchievement{ID: id, Round: round, Points: def.Points}
			ctx.State.Achievements = append(ctx.State.Achievements, ua)
			out[team] = append(out[team], ua)
		}
	}
	return out
}

func segmentLeaders(segments []string, order []TeamID, market map[TeamID]*TeamMarketResult) map[string]TeamID {
	leaders := map[string]TeamID{}
	for _, segID := range segments {
		best := -1.0
		for _, team := range order {
			if pos, ok := market[team].Positions[segID]; ok && pos.Composite > best {
				best = pos.Composite
				leaders[segID] = team
			}
		}
	}
	return leaders
}

// Standing is one team's entry in the victory ranking.
type Standing struct {
	Team     TeamID  `json:"team"`
	Points   float64 `json:"points"`
	Revenue  float64 `json:"revenue"`
	AvgShare float64 `json:"avg_share"`
	Rank     int     `json:"rank"`
}

// ResolveVictory ranks teams by achievement points, then cumulative
// revenue, then average market share. The sort is stable, so full ties keep
// input order.
func ResolveVictory(standings []Standing) []Standing {
	out := append([]Standing(nil), standings...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		if out[i].Revenue != out[j].Revenue {
			return out[i].Revenue > out[j].Revenue
		}
		return out[i].AvgShare > out[j].AvgShare
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// standings builds the current ranking inputs from team states.
func (e *Engine) standings(order []TeamID, states map[TeamID]*TeamState) []Standing {
	out := make([]Standing, 0, len(order))
	for _, team := range order {
		st := states[team]
		points := 0.0
		for _, a := range st.Achievements {
			points += a.Points
		}
		shareSum := 0.0
		for _, segID := range e.cats.Segments.IDs {
			shareSum += st.MarketShare[segID]
		}
		out = append(out, Standing{
			Team:     team,
			Points:   points,
			Revenue:  st.TotalRevenue,
			AvgShare: shareSum / float64(len(e.cats.Segments.IDs)),
		})
	}
	return out
}
