package engine

import (
	"fmt"

	"gadgetwars.ai/internal/sim/catalogs"
	"gadgetwars.ai/internal/sim/rng"
	"gadgetwars.ai/internal/sim/tuning"
)

// Engine resolves rounds against immutable catalogs and tuning. Safe to
// share across games; it holds no per-game state.
type Engine struct {
	cats  *catalogs.Catalogs
	tun   tuning.Tuning
	preds map[string]predicate
}

func New(cats *catalogs.Catalogs, tun tuning.Tuning) (*Engine, error) {
	if cats == nil {
		return nil, fmt.Errorf("engine: nil catalogs")
	}
	if err := tun.Validate(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	e := &Engine{cats: cats, tun: tun}
	if err := e.buildPredicates(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	return e, nil
}

func (e *Engine) Catalogs() *catalogs.Catalogs { return e.cats }

// TeamInput is one team's slice of the round input.
type TeamInput struct {
	ID        TeamID
	State     *TeamState
	Decisions DecisionSet
}

// RoundInput is everything the orchestrator needs for one round. The engine
// treats all of it as read-only.
type RoundInput struct {
	GameID string
	Round  int
	Seed   string // empty means rng.ComposeSeed(GameID, Round)

	Teams    []TeamInput
	Market   *MarketState
	Registry *PatentRegistry
	Events   []FacilitatorEvent
}

// TeamResult is one team's slice of the round output.
type TeamResult struct {
	ID    TeamID
	State *TeamState

	Research        ResearchResult
	Patents         *PatentResult
	Market          *TeamMarketResult
	NewAchievements []UnlockedAchievement
	Rank            int
}

// AuditTrail makes a round reproducible and disputable: re-running the same
// input must yield the same digests.
type AuditTrail struct {
	Seed        string            `json:"seed"`
	StreamSeeds map[string]string `json:"stream_seeds"`
	TeamHashes  map[TeamID]string `json:"team_hashes"`
	Registry    string            `json:"registry_hash"`
	Market      string            `json:"market_hash"`
}

type RoundOutput struct {
	Round     int
	Teams     []TeamResult
	Market    *MarketState
	Registry  *PatentRegistry
	Standings []Standing
	Audit     AuditTrail
	Warnings  []Warning
	Summary   []string
}

// ResolveRound runs the fixed stage pipeline for one round: tech tree,
// patents, market, achievements. It is a pure function of its input: no
// I/O, no clock, no global state. Inputs are never mutated; the caller
// persists the returned states atomically.
//
// The stage order is load-bearing: patents can only be filed on researched
// technology, blocking penalties must exist before market scoring, and
// achievements read market results.
func (e *Engine) ResolveRound(in RoundInput) (*RoundOutput, error) {
	if err := e.validateInput(in); err != nil {
		return nil, err
	}

	seed := in.Seed
	if seed == "" {
		seed = rng.ComposeSeed(in.GameID, in.Round)
	}
	bundle := rng.NewBundle(seed)
	warns := &warnings{}

	order := make([]TeamID, len(in.Teams))
	states := make(map[TeamID]*TeamState, len(in.Teams))
	decs := make(map[TeamID]*DecisionSet, len(in.Teams))
	for i, t := range in.Teams {
		order[i] = t.ID
		states[t.ID] = t.State.Clone()
		d := t.Decisions
		decs[t.ID] = &d
	}

	mods := mergeEvents(in.Events, order, warns)

	// Stage 1: tech tree.
	rdStream := bundle.Stream("rd")
	research := make(map[TeamID]ResearchResult, len(order))
	spillover := make(map[TeamID]map[string]float64, len(order))
	for _, team := range order {
		res, spill := e.runResearch(team, states[team], decs[team].Research, in.Round, rdStream, mods, warns)
		research[team] = res
		spillover[team] = spill
	}

	// Stage 2: patents, on a cloned registry. The prior registry is never
	// touched.
	registry := in.Registry.Clone()
	patentDecs := make(map[TeamID]*PatentDecisions, len(order))
	for _, team := range order {
		patentDecs[team] = decs[team].Patents
	}
	patents := e.runPatents(order, states, patentDecs, registry, in.Round, bundle.Stream("patents"), warns)

	// Stage 3: market. Product and pricing decisions land here so the
	// round's lineup competes immediately.
	for _, team := range order {
		e.applyProductDecisions(team, states[team], decs[team], warns)
	}
	blocking := make(map[TeamID]map[string]float64, len(order))
	for _, team := range order {
		blocking[team] = patents[team].BlockingPenalty
	}
	market, nextMarket := e.runMarket(order, states, in.Market, marketInputs{
		blocking:  blocking,
		spillover: spillover,
		registry:  registry,
		mods:      mods,
	}, in.Round, bundle.Stream("market"))

	// Stage 4: achievements, against post-market state.
	newAch := e.runAchievements(order, states, market, in.Market.ExpectedPrice, registry, in.Round)

	standings := ResolveVictory(e.standings(order, states))
	ranks := make(map[TeamID]int, len(standings))
	for _, s := range standings {
		ranks[s.Team] = s.Rank
	}

	out := &RoundOutput{
		Round:    in.Round,
		Market:   nextMarket,
		Registry: registry,
		Warnings: warns.list,
	}
	out.Audit = AuditTrail{
		Seed:        seed,
		StreamSeeds: bundle.StreamSeeds(),
		TeamHashes:  map[TeamID]string{},
		Registry:    RegistryDigest(registry),
		Market:      MarketDigest(nextMarket),
	}
	for _, team := range order {
		st := states[team]
		out.Audit.TeamHashes[team] = TeamDigest(st)
		out.Teams = append(out.Teams, TeamResult{
			ID:              team,
			State:           st,
			Research:        research[team],
			Patents:         patents[team],
			Market:          market[team],
			NewAchievements: newAch[team],
			Rank:            ranks[team],
		})
		out.Summary = append(out.Summary, fmt.Sprintf(
			"%s: revenue %.0f, cash %.0f, rank %d, %d new achievements",
			team, market[team].Revenue, st.Cash, ranks[team], len(newAch[team])))
	}
	out.Standings = standings
	return out, nil
}

// validateInput covers structural failures: these abort the call before any
// stage runs, unlike per-decision rejections which become warnings.
func (e *Engine) validateInput(in RoundInput) error {
	if in.Round < 1 {
		return fmt.Errorf("engine: round %d invalid", in.Round)
	}
	if len(in.Teams) == 0 {
		return fmt.Errorf("engine: no teams")
	}
	if in.Market == nil {
		return fmt.Errorf("engine: nil market state")
	}
	if in.Registry == nil {
		return fmt.Errorf("engine: nil patent registry")
	}
	seen := map[TeamID]bool{}
	for _, t := range in.Teams {
		if t.ID == "" {
			return fmt.Errorf("engine: empty team id")
		}
		if t.State == nil {
			return fmt.Errorf("engine: team %s has no state", t.ID)
		}
		if seen[t.ID] {
			return fmt.Errorf("engine: duplicate team %s", t.ID)
		}
		seen[t.ID] = true
	}
	return nil
}
