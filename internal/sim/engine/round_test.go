package engine

import (
	"reflect"
	"testing"

	"gadgetwars.ai/internal/sim/tuning"
)

func TestResolveRound_Deterministic(t *testing.T) {
	e := newTestEngine(t, tuning.Default())

	build := func() RoundInput {
		alpha := newTeam(500000)
		alpha.Technologies = []string{"bat_liion", "bat_fastcharge"}
		alpha.Products = []Product{launchedProduct("a1", "budget", allFeatures(55), 240)}
		beta := newTeam(300000)
		beta.Products = []Product{launchedProduct("b1", "mainstream", allFeatures(45), 560)}
		return RoundInput{
			GameID: "G-determinism", Round: 7,
			Teams: []TeamInput{
				{ID: "alpha", State: alpha, Decisions: DecisionSet{
					Research: &ResearchDecisions{NewProjects: []NewProject{{TechID: "bat_silicon", RiskLevel: "aggressive"}}},
					Patents:  &PatentDecisions{Filings: []string{"bat_fastcharge"}},
				}},
				{ID: "beta", State: beta, Decisions: DecisionSet{
					Research: &ResearchDecisions{NewProjects: []NewProject{{TechID: "cam_stacked", RiskLevel: "moderate"}}},
				}},
			},
			Market:   NewMarketState(e.Catalogs().Segments),
			Registry: NewPatentRegistry(),
		}
	}

	out1, err := e.ResolveRound(build())
	if err != nil {
		t.Fatal(err)
	}
	out2, err := e.ResolveRound(build())
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(out1.Audit, out2.Audit) {
		t.Fatalf("audit trails differ:\n%+v\n%+v", out1.Audit, out2.Audit)
	}
	for team, h := range out1.Audit.TeamHashes {
		if out2.Audit.TeamHashes[team] != h {
			t.Fatalf("%s: hash %s vs %s", team, h, out2.Audit.TeamHashes[team])
		}
	}
	if out1.Audit.Registry != out2.Audit.Registry || out1.Audit.Market != out2.Audit.Market {
		t.Fatal("registry or market digest differs")
	}
}

func TestResolveRound_SeedChangesOutcome(t *testing.T) {
	e := newTestEngine(t, tuning.Default())

	build := func(seed string) RoundInput {
		st := newTeam(500000)
		return RoundInput{
			GameID: "G", Round: 1, Seed: seed,
			Teams: []TeamInput{{ID: "a", State: st, Decisions: DecisionSet{
				Research: &ResearchDecisions{NewProjects: []NewProject{{TechID: "bat_liion", RiskLevel: "aggressive"}}},
			}}},
			Market:   NewMarketState(e.Catalogs().Segments),
			Registry: NewPatentRegistry(),
		}
	}
	out1, err := e.ResolveRound(build("seed-one"))
	if err != nil {
		t.Fatal(err)
	}
	out2, err := e.ResolveRound(build("seed-two"))
	if err != nil {
		t.Fatal(err)
	}
	if out1.Audit.Seed == out2.Audit.Seed {
		t.Fatal("seeds not carried into audit")
	}
	if out1.Audit.StreamSeeds["market"] == out2.Audit.StreamSeeds["market"] {
		t.Fatal("stream seeds identical across different round seeds")
	}
}

func TestResolveRound_InputsNeverMutated(t *testing.T) {
	e := newTestEngine(t, tuning.Default())

	st := newTeam(500000)
	st.Technologies = []string{"bat_liion", "bat_fastcharge"}
	st.Products = []Product{launchedProduct("p", "budget", allFeatures(50), 250)}
	before := TeamDigest(st)

	ms := NewMarketState(e.Catalogs().Segments)
	msBefore := MarketDigest(ms)
	reg := NewPatentRegistry()

	_, err := e.ResolveRound(RoundInput{
		GameID: "G", Round: 3,
		Teams: []TeamInput{{ID: "a", State: st, Decisions: DecisionSet{
			Patents: &PatentDecisions{Filings: []string{"bat_fastcharge"}},
			Pricing: &PricingDecisions{Prices: map[string]float64{"p": 199}},
		}}},
		Market: ms, Registry: reg,
	})
	if err != nil {
		t.Fatal(err)
	}
	if TeamDigest(st) != before {
		t.Fatal("input team state mutated")
	}
	if MarketDigest(ms) != msBefore {
		t.Fatal("input market state mutated")
	}
	if len(reg.Patents) != 0 {
		t.Fatal("input registry mutated")
	}
}

func TestResolveRound_StructuralValidation(t *testing.T) {
	e := newTestEngine(t, tuning.Default())
	ms := NewMarketState(e.Catalogs().Segments)
	reg := NewPatentRegistry()
	team := TeamInput{ID: "a", State: newTeam(0), Decisions: DecisionSet{}}

	cases := []struct {
		name string
		in   RoundInput
	}{
		{"round zero", RoundInput{GameID: "G", Round: 0, Teams: []TeamInput{team}, Market: ms, Registry: reg}},
		{"no teams", RoundInput{GameID: "G", Round: 1, Market: ms, Registry: reg}},
		{"nil market", RoundInput{GameID: "G", Round: 1, Teams: []TeamInput{team}, Registry: reg}},
		{"nil registry", RoundInput{GameID: "G", Round: 1, Teams: []TeamInput{team}, Market: ms}},
		{"empty team id", RoundInput{GameID: "G", Round: 1, Teams: []TeamInput{{State: newTeam(0)}}, Market: ms, Registry: reg}},
		{"nil team state", RoundInput{GameID: "G", Round: 1, Teams: []TeamInput{{ID: "x"}}, Market: ms, Registry: reg}},
		{"duplicate team", RoundInput{GameID: "G", Round: 1, Teams: []TeamInput{team, team}, Market: ms, Registry: reg}},
	}
	for _, tc := range cases {
		if _, err := e.ResolveRound(tc.in); err == nil {
			t.Fatalf("%s: no error", tc.name)
		}
	}
}

// Patent blocking should hit an unlicensed user of the tech every round the
// patent is active, then vanish once it expires.
func TestResolveRound_BlockingUntilExpiry(t *testing.T) {
	e := newTestEngine(t, noRandomness())

	owner := newTeam(1e6)
	owner.Technologies = []string{"bat_liion", "bat_fastcharge"}
	user := newTeam(1e6)
	user.Technologies = []string{"bat_liion", "bat_fastcharge"}
	user.Products = []Product{launchedProduct("u", "budget", allFeatures(50), 250)}

	ms := quietMarket(e)
	reg := NewPatentRegistry()

	// Round 1: owner files on the tier-2 battery tech.
	out, err := e.ResolveRound(RoundInput{
		GameID: "G", Round: 1,
		Teams: []TeamInput{
			{ID: "owner", State: owner, Decisions: DecisionSet{
				Patents: &PatentDecisions{Filings: []string{"bat_fastcharge"}},
			}},
			{ID: "user", State: user, Decisions: DecisionSet{}},
		},
		Market: ms, Registry: reg,
	})
	if err != nil {
		t.Fatal(err)
	}
	patID := "PAT-bat_fastcharge-R1"
	pat := out.Registry.Patents[patID]
	if pat == nil || pat.Status != PatentActive {
		t.Fatalf("patent not filed: %+v", out.Registry.Patents)
	}
	// Tier 2: duration 4 + 2x2 = 8 rounds.
	if pat.ExpiryRound != 9 {
		t.Fatalf("expiry round = %d, want 9", pat.ExpiryRound)
	}
	wantPenalty := 2 * 0.05 // tier x per-tier blocking

	states := map[TeamID]*TeamState{}
	for _, tr := range out.Teams {
		states[tr.ID] = tr.State
	}
	ms, reg = out.Market, out.Registry

	for round := 2; round <= 10; round++ {
		out, err = e.ResolveRound(RoundInput{
			GameID: "G", Round: round,
			Teams: []TeamInput{
				{ID: "owner", State: states["owner"], Decisions: DecisionSet{}},
				{ID: "user", State: states["user"], Decisions: DecisionSet{}},
			},
			Market: ms, Registry: reg,
		})
		if err != nil {
			t.Fatal(err)
		}
		var userRes *TeamResult
		for i := range out.Teams {
			if out.Teams[i].ID == "user" {
				userRes = &out.Teams[i]
			}
			states[out.Teams[i].ID] = out.Teams[i].State
		}
		ms, reg = out.Market, out.Registry

		got := userRes.Patents.BlockingPenalty["battery"]
		if round < 9 {
			if got != wantPenalty {
				t.Fatalf("round %d: blocking = %v, want %v", round, got, wantPenalty)
			}
			if pos := userRes.Market.Positions["budget"]; pos.BlockingPenalty != wantPenalty {
				t.Fatalf("round %d: market position penalty = %v", round, pos.BlockingPenalty)
			}
		} else {
			if got != 0 {
				t.Fatalf("round %d: blocking after expiry = %v", round, got)
			}
		}
	}
	if reg.Patents[patID].Status != PatentExpired {
		t.Fatalf("patent status = %s, want expired", reg.Patents[patID].Status)
	}
}

func TestResolveRound_SummaryAndStandings(t *testing.T) {
	e := newTestEngine(t, noRandomness())

	a := newTeam(100000)
	a.Products = []Product{launchedProduct("pa", "budget", allFeatures(80), 250)}
	b := newTeam(100000)

	out, err := e.ResolveRound(RoundInput{
		GameID: "G", Round: 1,
		Teams: []TeamInput{
			{ID: "a", State: a, Decisions: DecisionSet{}},
			{ID: "b", State: b, Decisions: DecisionSet{}},
		},
		Market: quietMarket(e), Registry: NewPatentRegistry(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Summary) != 2 {
		t.Fatalf("summary lines = %d", len(out.Summary))
	}
	if len(out.Standings) != 2 {
		t.Fatalf("standings entries = %d", len(out.Standings))
	}
	if out.Standings[0].Team != "a" || out.Standings[0].Rank != 1 {
		t.Fatalf("selling team not ranked first: %+v", out.Standings)
	}
	for _, tr := range out.Teams {
		want := 1
		if tr.ID == "b" {
			want = 2
		}
		if tr.Rank != want {
			t.Fatalf("%s rank = %d, want %d", tr.ID, tr.Rank, want)
		}
	}
}
