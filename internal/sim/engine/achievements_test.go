package engine

import (
	"testing"
)

func pointsOf(st *TeamState) float64 {
	sum := 0.0
	for _, a := range st.Achievements {
		sum += a.Points
	}
	return sum
}

func TestAchievements_UnlockOnceAndKeep(t *testing.T) {
	e := newTestEngine(t, noRandomness())

	st := newTeam(1e6)
	out, err := e.ResolveRound(RoundInput{
		GameID: "G", Round: 1,
		Teams: []TeamInput{{ID: "a", State: st, Decisions: DecisionSet{
			Research: &ResearchDecisions{NewProjects: []NewProject{{TechID: "bat_liion", RiskLevel: "conservative"}}},
		}}},
		Market: quietMarket(e), Registry: NewPatentRegistry(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if out.Teams[0].State.HasAchievement("first_steps") {
		t.Fatal("first_steps before any tech completed")
	}

	// The 1-round project completes when round 2 advances it.
	out2, err := e.ResolveRound(RoundInput{
		GameID: "G", Round: 2,
		Teams:  []TeamInput{{ID: "a", State: out.Teams[0].State, Decisions: DecisionSet{}}},
		Market: out.Market, Registry: out.Registry,
	})
	if err != nil {
		t.Fatal(err)
	}
	next := out2.Teams[0].State
	if !next.HasAchievement("first_steps") {
		t.Fatalf("first_steps not unlocked: %+v", next.Achievements)
	}
	found := false
	for _, a := range out2.Teams[0].NewAchievements {
		if a.ID == "first_steps" {
			found = true
		}
	}
	if !found {
		t.Fatal("round output does not report the new unlock")
	}

	// The same id is never granted twice.
	out3, err := e.ResolveRound(RoundInput{
		GameID: "G", Round: 3,
		Teams:  []TeamInput{{ID: "a", State: next, Decisions: DecisionSet{}}},
		Market: out2.Market, Registry: out2.Registry,
	})
	if err != nil {
		t.Fatal(err)
	}
	n := 0
	for _, a := range out3.Teams[0].State.Achievements {
		if a.ID == "first_steps" {
			n++
		}
	}
	if n != 1 {
		t.Fatalf("first_steps granted %d times", n)
	}
	for _, a := range out3.Teams[0].NewAchievements {
		if a.ID == "first_steps" {
			t.Fatal("first_steps reported as new again")
		}
	}
}

func TestAchievements_PointsMonotonic(t *testing.T) {
	e := newTestEngine(t, noRandomness())

	st := newTeam(1e6)
	st.Products = []Product{launchedProduct("p", "budget", allFeatures(60), 250)}
	ms := quietMarket(e)
	reg := NewPatentRegistry()

	prev := 0.0
	for round := 1; round <= 8; round++ {
		out, err := e.ResolveRound(RoundInput{
			GameID: "G", Round: round,
			Teams:  []TeamInput{{ID: "a", State: st, Decisions: DecisionSet{}}},
			Market: ms, Registry: reg,
		})
		if err != nil {
			t.Fatal(err)
		}
		st, ms, reg = out.Teams[0].State, out.Market, out.Registry
		got := pointsOf(st)
		if got < prev {
			t.Fatalf("round %d: points dropped %v -> %v", round, prev, got)
		}
		prev = got
	}
}

func TestAchievements_BadOnesScoreZero(t *testing.T) {
	e := newTestEngine(t, noRandomness())

	st := newTeam(-200000)
	out, err := e.ResolveRound(RoundInput{
		GameID: "G", Round: 1,
		Teams:  []TeamInput{{ID: "a", State: st, Decisions: DecisionSet{}}},
		Market: quietMarket(e), Registry: NewPatentRegistry(),
	})
	if err != nil {
		t.Fatal(err)
	}
	next := out.Teams[0].State
	if !next.HasAchievement("in_the_red") || !next.HasAchievement("deep_hole") {
		t.Fatalf("infamy achievements missing: %+v", next.Achievements)
	}
	if got := pointsOf(next); got != 0 {
		t.Fatalf("bad achievements contributed points: %v", got)
	}
}

func TestAchievements_DeferredNeverFire(t *testing.T) {
	e := newTestEngine(t, noRandomness())

	// A maximally decorated state must still not trip the deferred ids.
	st := newTeam(1e9)
	st.TotalRevenue = 1e8
	out, err := e.ResolveRound(RoundInput{
		GameID: "G", Round: 1,
		Teams:  []TeamInput{{ID: "a", State: st, Decisions: DecisionSet{}}},
		Market: quietMarket(e), Registry: NewPatentRegistry(),
	})
	if err != nil {
		t.Fatal(err)
	}
	next := out.Teams[0].State
	if next.HasAchievement("patent_warrior") || next.HasAchievement("toll_collector") {
		t.Fatal("deferred achievement unlocked")
	}
}

func TestResolveVictory_TieBreakByRevenue(t *testing.T) {
	in := []Standing{
		{Team: "a", Points: 50, Revenue: 1000, AvgShare: 0.30},
		{Team: "b", Points: 50, Revenue: 2000, AvgShare: 0.10},
		{Team: "c", Points: 40, Revenue: 5000, AvgShare: 0.50},
	}
	out := ResolveVictory(in)

	wantOrder := []TeamID{"b", "a", "c"}
	for i, want := range wantOrder {
		if out[i].Team != want {
			t.Fatalf("rank %d = %s, want %s (full: %+v)", i+1, out[i].Team, want, out)
		}
		if out[i].Rank != i+1 {
			t.Fatalf("rank field = %d at index %d", out[i].Rank, i)
		}
	}
	// Input slice untouched.
	if in[0].Team != "a" || in[0].Rank != 0 {
		t.Fatalf("input mutated: %+v", in[0])
	}
}

func TestResolveVictory_FullTieKeepsInputOrder(t *testing.T) {
	in := []Standing{
		{Team: "x", Points: 10, Revenue: 100, AvgShare: 0.2},
		{Team: "y", Points: 10, Revenue: 100, AvgShare: 0.2},
	}
	out := ResolveVictory(in)
	if out[0].Team != "x" || out[1].Team != "y" {
		t.Fatalf("stable order broken: %+v", out)
	}
}

func TestSegmentLeaders_TopComposite(t *testing.T) {
	e := newTestEngine(t, noRandomness())

	strong := newTeam(0)
	strong.Products = []Product{launchedProduct("s", "budget", allFeatures(90), 250)}
	weak := newTeam(0)
	weak.Products = []Product{launchedProduct("w", "budget", allFeatures(20), 250)}

	out, err := e.ResolveRound(RoundInput{
		GameID: "G", Round: 1,
		Teams: []TeamInput{
			{ID: "weak", State: weak, Decisions: DecisionSet{}},
			{ID: "strong", State: strong, Decisions: DecisionSet{}},
		},
		Market: quietMarket(e), Registry: NewPatentRegistry(),
	})
	if err != nil {
		t.Fatal(err)
	}
	var strongState *TeamState
	for _, tr := range out.Teams {
		if tr.ID == "strong" {
			strongState = tr.State
		}
	}
	if !strongState.HasAchievement("value_king") {
		t.Fatalf("segment leader did not earn value_king: %+v", strongState.Achievements)
	}
}
