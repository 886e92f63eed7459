package snapshot

import (
	"path/filepath"
	"testing"

	"gadgetwars.ai/internal/sim/engine"
)

func TestSnapshot_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "games", "G1", "r5.snap.zst")

	reg := engine.NewPatentRegistry()
	reg.Patents["PAT-bat_fastcharge-R1"] = &engine.Patent{
		ID: "PAT-bat_fastcharge-R1", TechID: "bat_fastcharge", Family: "battery",
		Owner: "alpha", Status: engine.PatentActive, FiledRound: 1, ExpiryRound: 9,
		LicenseFee: 4000, BlockingPower: 0.10,
	}

	in := SnapshotV1{
		Header:     Header{Version: 1, GameID: "G1", Round: 5},
		SeedSalt:   "salt",
		MaxRounds:  12,
		TechDigest: "aaaa", SegmentDigest: "bbbb", AchievementDigest: "cccc", TuningDigest: "dddd",
		Teams: []TeamV1{
			{ID: "alpha", Name: "Team Alpha", State: &engine.TeamState{
				Cash:         123456.78,
				Technologies: []string{"bat_fastcharge", "bat_liion"},
				QualityBonus: map[string]float64{"battery": 15},
				PatentsOwned: []string{"PAT-bat_fastcharge-R1"},
				MarketShare:  map[string]float64{"budget": 0.42},
			}},
			{ID: "beta", Name: "Team Beta", State: &engine.TeamState{Cash: -5000}},
		},
		Market: &engine.MarketState{
			ExpectedPrice: map[string]float64{"budget": 241.5},
			Volatility:    map[string]float64{"budget": 0.05},
			Round:         5,
		},
		Registry: reg,
		Events: []ScheduledEventV1{
			{Round: 7, Event: engine.FacilitatorEvent{Type: "demand_shock", DemandMult: map[string]float64{"budget": 0.8}}},
		},
	}

	if err := WriteSnapshot(path, in); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	h, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if h.GameID != "G1" || h.Round != 5 || h.Version != 1 {
		t.Fatalf("header mismatch: %+v", h)
	}

	out, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if out.Header != in.Header || out.MaxRounds != 12 || out.TechDigest != "aaaa" {
		t.Fatalf("metadata mismatch: %+v", out)
	}
	if len(out.Teams) != 2 {
		t.Fatalf("teams: %d", len(out.Teams))
	}
	if engine.TeamDigest(out.Teams[0].State) != engine.TeamDigest(in.Teams[0].State) {
		t.Fatalf("alpha state digest changed across round trip")
	}
	if engine.RegistryDigest(out.Registry) != engine.RegistryDigest(in.Registry) {
		t.Fatalf("registry digest changed across round trip")
	}
	if engine.MarketDigest(out.Market) != engine.MarketDigest(in.Market) {
		t.Fatalf("market digest changed across round trip")
	}
	if len(out.Events) != 1 || out.Events[0].Round != 7 {
		t.Fatalf("events: %+v", out.Events)
	}
}

func TestReadSnapshot_MissingFile(t *testing.T) {
	if _, err := ReadSnapshot(filepath.Join(t.TempDir(), "nope.snap.zst")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
