package engine

import (
	"strings"
	"testing"
)

func teamWithTech(cash float64, techs ...string) *TeamState {
	st := newTeam(cash)
	for _, id := range techs {
		st.Technologies = insertSorted(st.Technologies, id)
	}
	return st
}

func resolveTeams(t *testing.T, e *Engine, round int, reg *PatentRegistry, teams ...TeamInput) *RoundOutput {
	t.Helper()
	out, err := e.ResolveRound(RoundInput{
		GameID:   "G",
		Round:    round,
		Teams:    teams,
		Market:   NewMarketState(e.Catalogs().Segments),
		Registry: reg,
	})
	if err != nil {
		t.Fatalf("resolve round: %v", err)
	}
	return out
}

func patentDecisions(d PatentDecisions) DecisionSet {
	return DecisionSet{Patents: &d}
}

func TestFiling_FirstToFileWins(t *testing.T) {
	e := newTestEngine(t, noRandomness())

	a := teamWithTech(1e6, "bat_liion", "bat_fastcharge")
	b := teamWithTech(1e6, "bat_liion", "bat_fastcharge")
	out := resolveTeams(t, e, 1, NewPatentRegistry(),
		TeamInput{ID: "alpha", State: a, Decisions: patentDecisions(PatentDecisions{Filings: []string{"bat_fastcharge"}})},
		TeamInput{ID: "beta", State: b, Decisions: patentDecisions(PatentDecisions{Filings: []string{"bat_fastcharge"}})},
	)

	if n := len(out.Teams[0].Patents.Filed); n != 1 {
		t.Fatalf("alpha filed %d patents, want 1", n)
	}
	if n := len(out.Teams[1].Patents.Filed); n != 0 {
		t.Fatalf("beta filed %d patents, want 0", n)
	}
	// The loser's cash is untouched and a rejection message exists.
	if got := out.Teams[1].State.Cash; got != 1e6 {
		t.Fatalf("beta cash = %v, want unchanged 1e6", got)
	}
	found := false
	for _, w := range out.Warnings {
		if w.Team == "beta" && w.Module == "patents" && strings.Contains(w.Message, "already patented") {
			found = true
		}
	}
	if !found {
		t.Fatalf("no rejection warning for beta: %+v", out.Warnings)
	}
	// Tier-2 filing: cost 2 x 10000.
	if got := out.Teams[0].State.Cash; got != 1e6-20000 {
		t.Fatalf("alpha cash = %v, want 980000", got)
	}
}

func TestFiling_Rejections(t *testing.T) {
	e := newTestEngine(t, noRandomness())

	cases := []struct {
		name string
		st   *TeamState
		tech string
		msg  string
	}{
		{"unknown tech", teamWithTech(1e6), "nope", "unknown technology"},
		{"tier too low", teamWithTech(1e6, "bat_liion"), "bat_liion", "below patentable tier"},
		{"not researched", teamWithTech(1e6), "bat_fastcharge", "not researched"},
		{"unaffordable", teamWithTech(100, "bat_liion", "bat_fastcharge"), "bat_fastcharge", "insufficient cash"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := resolveTeams(t, e, 1, NewPatentRegistry(),
				TeamInput{ID: "alpha", State: tc.st, Decisions: patentDecisions(PatentDecisions{Filings: []string{tc.tech}})})
			if len(out.Teams[0].Patents.Filed) != 0 {
				t.Fatal("filing succeeded")
			}
			ok := false
			for _, w := range out.Warnings {
				if strings.Contains(w.Message, tc.msg) {
					ok = true
				}
			}
			if !ok {
				t.Fatalf("missing %q warning, got %+v", tc.msg, out.Warnings)
			}
		})
	}
}

func TestLicense_GrantAndRevenue(t *testing.T) {
	e := newTestEngine(t, noRandomness())

	a := teamWithTech(1e6, "bat_liion", "bat_fastcharge")
	b := teamWithTech(1e6, "bat_liion", "bat_fastcharge")
	out1 := resolveTeams(t, e, 1, NewPatentRegistry(),
		TeamInput{ID: "alpha", State: a, Decisions: patentDecisions(PatentDecisions{Filings: []string{"bat_fastcharge"}})},
		TeamInput{ID: "beta", State: b, Decisions: DecisionSet{}},
	)
	patentID := out1.Teams[0].Patents.Filed[0]

	// A newly granted license pays in the same round.
	out2 := resolveTeams(t, e, 2, out1.Registry,
		TeamInput{ID: "alpha", State: out1.Teams[0].State, Decisions: DecisionSet{}},
		TeamInput{ID: "beta", State: out1.Teams[1].State, Decisions: patentDecisions(PatentDecisions{LicenseRequests: []string{patentID}})},
	)

	alpha, beta := out2.Teams[0], out2.Teams[1]
	if !beta.State.HasLicense(patentID) {
		t.Fatal("license not granted")
	}
	// Tier-2 fee: 2 x 2000 per round.
	if got := alpha.Patents.LicenseRevenue; got != 4000 {
		t.Fatalf("owner revenue = %v, want 4000", got)
	}
	if got := beta.Patents.LicenseFeesPaid; got != 4000 {
		t.Fatalf("licensee fees = %v, want 4000", got)
	}

	// Re-requesting is rejected without effect.
	out3 := resolveTeams(t, e, 3, out2.Registry,
		TeamInput{ID: "alpha", State: alpha.State, Decisions: DecisionSet{}},
		TeamInput{ID: "beta", State: beta.State, Decisions: patentDecisions(PatentDecisions{LicenseRequests: []string{patentID}})},
	)
	if n := len(out3.Registry.Patents[patentID].Licensees); n != 1 {
		t.Fatalf("licensee recorded twice: %d entries", n)
	}
}

func TestLicense_SelfLicensingRejected(t *testing.T) {
	e := newTestEngine(t, noRandomness())
	a := teamWithTech(1e6, "bat_liion", "bat_fastcharge")
	out1 := resolveTeams(t, e, 1, NewPatentRegistry(),
		TeamInput{ID: "alpha", State: a, Decisions: patentDecisions(PatentDecisions{Filings: []string{"bat_fastcharge"}})})
	patentID := out1.Teams[0].Patents.Filed[0]

	out2 := resolveTeams(t, e, 2, out1.Registry,
		TeamInput{ID: "alpha", State: out1.Teams[0].State, Decisions: patentDecisions(PatentDecisions{LicenseRequests: []string{patentID}})})
	if len(out2.Teams[0].Patents.LicensesGranted) != 0 {
		t.Fatal("self-license granted")
	}
	if len(out2.Warnings) == 0 {
		t.Fatal("no warning for self-license")
	}
}

func TestChallenge_FeeAlwaysPaid(t *testing.T) {
	for _, success := range []bool{true, false} {
		tun := noRandomness()
		if success {
			tun.Patents.ChallengeSuccessPct = 1.0
		} else {
			tun.Patents.ChallengeSuccessPct = 0.0
		}
		e := newTestEngine(t, tun)

		a := teamWithTech(1e6, "bat_liion", "bat_fastcharge")
		b := teamWithTech(1e6)
		out1 := resolveTeams(t, e, 1, NewPatentRegistry(),
			TeamInput{ID: "alpha", State: a, Decisions: patentDecisions(PatentDecisions{Filings: []string{"bat_fastcharge"}})},
			TeamInput{ID: "beta", State: b, Decisions: DecisionSet{}},
		)
		patentID := out1.Teams[0].Patents.Filed[0]

		out2 := resolveTeams(t, e, 2, out1.Registry,
			TeamInput{ID: "alpha", State: out1.Teams[0].State, Decisions: DecisionSet{}},
			TeamInput{ID: "beta", State: out1.Teams[1].State, Decisions: patentDecisions(PatentDecisions{Challenges: []string{patentID}})},
		)

		beta := out2.Teams[1]
		if got := beta.State.Cash; got != 1e6-15000 {
			t.Fatalf("success=%v: challenger cash = %v, want 985000", success, got)
		}
		p := out2.Registry.Patents[patentID]
		if success && p.Status != PatentChallenged {
			t.Fatalf("patent status = %s, want challenged", p.Status)
		}
		if !success && p.Status != PatentActive {
			t.Fatalf("patent status = %s, want still active", p.Status)
		}
		if success && len(beta.Patents.ChallengesWon) != 1 {
			t.Fatalf("challenge win not recorded: %+v", beta.Patents)
		}
		// Never deleted, only status-transitioned.
		if _, ok := out2.Registry.Patents[patentID]; !ok {
			t.Fatal("patent deleted from registry")
		}
	}
}

func TestPatent_RefileAfterChallenge(t *testing.T) {
	tun := noRandomness()
	tun.Patents.ChallengeSuccessPct = 1.0
	e := newTestEngine(t, tun)

	a := teamWithTech(1e6, "bat_liion", "bat_fastcharge")
	b := teamWithTech(1e6, "bat_liion", "bat_fastcharge")
	out1 := resolveTeams(t, e, 1, NewPatentRegistry(),
		TeamInput{ID: "alpha", State: a, Decisions: patentDecisions(PatentDecisions{Filings: []string{"bat_fastcharge"}})},
		TeamInput{ID: "beta", State: b, Decisions: DecisionSet{}},
	)
	patentID := out1.Teams[0].Patents.Filed[0]

	out2 := resolveTeams(t, e, 2, out1.Registry,
		TeamInput{ID: "alpha", State: out1.Teams[0].State, Decisions: DecisionSet{}},
		TeamInput{ID: "beta", State: out1.Teams[1].State, Decisions: patentDecisions(PatentDecisions{Challenges: []string{patentID}})},
	)

	// The invalidated tech is open for filing again next round.
	out3 := resolveTeams(t, e, 3, out2.Registry,
		TeamInput{ID: "alpha", State: out2.Teams[0].State, Decisions: DecisionSet{}},
		TeamInput{ID: "beta", State: out2.Teams[1].State, Decisions: patentDecisions(PatentDecisions{Filings: []string{"bat_fastcharge"}})},
	)
	if len(out3.Teams[1].Patents.Filed) != 1 {
		t.Fatalf("beta could not refile after successful challenge: %+v", out3.Warnings)
	}
}

func TestBlockingPenalty_CappedPerFamily(t *testing.T) {
	tun := noRandomness()
	tun.Patents.BlockingPerTier = 0.20 // tier 2 -> 0.40, above the 0.30 cap
	e := newTestEngine(t, tun)

	a := teamWithTech(1e6, "bat_liion", "bat_fastcharge")
	b := teamWithTech(1e6, "bat_liion", "bat_fastcharge")
	out := resolveTeams(t, e, 1, NewPatentRegistry(),
		TeamInput{ID: "alpha", State: a, Decisions: patentDecisions(PatentDecisions{Filings: []string{"bat_fastcharge"}})},
		TeamInput{ID: "beta", State: b, Decisions: DecisionSet{}},
	)
	if got := out.Teams[1].Patents.BlockingPenalty["battery"]; got != 0.30 {
		t.Fatalf("blocking penalty = %v, want capped 0.30", got)
	}
	// Licensed teams and the owner are never blocked.
	if got := out.Teams[0].Patents.BlockingPenalty["battery"]; got != 0 {
		t.Fatalf("owner penalized: %v", got)
	}
}
