package game

import (
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"
	"sort"

	"gadgetwars.ai/internal/decisions"
	"gadgetwars.ai/internal/persistence/archive"
	persistlog "gadgetwars.ai/internal/persistence/log"
	"gadgetwars.ai/internal/persistence/snapshot"
	"gadgetwars.ai/internal/persistence/store"
	"gadgetwars.ai/internal/sim/engine"
	"gadgetwars.ai/internal/sim/rng"
)

// Runner coordinates a round end to end: load state, parse submissions,
// resolve, commit, snapshot, publish. The engine stays pure; everything
// stateful funnels through here.
type Runner struct {
	Store     *store.Store
	Engine    *engine.Engine
	Validator *decisions.Validator
	Log       *log.Logger

	// SnapshotDir, when set, receives a game archive after every round.
	SnapshotDir string

	// RoundLog, when set, appends every resolved round to the JSONL history.
	RoundLog *persistlog.RoundLogger

	// Publish, when set, is called with every resolved round.
	Publish func(gameID string, out *engine.RoundOutput)
}

// CreateGame seeds a new game with identical starting states for all teams.
func (r *Runner) CreateGame(g store.Game, teams []store.Team, startingCash float64) error {
	initial := make(map[engine.TeamID]*engine.TeamState, len(teams))
	for _, t := range teams {
		initial[t.ID] = &engine.TeamState{Cash: startingCash}
	}
	market := engine.NewMarketState(r.Engine.Catalogs().Segments)
	return r.Store.CreateGame(g, teams, initial, market, engine.NewPatentRegistry())
}

// ResolveCurrentRound resolves the game's open round from the stored
// submissions. Teams without a submission play the round with no decisions.
func (r *Runner) ResolveCurrentRound(gameID string) (*engine.RoundOutput, error) {
	g, err := r.Store.Game(gameID)
	if err != nil {
		return nil, err
	}
	if g.Status != store.GameActive {
		return nil, fmt.Errorf("game %s is %s", gameID, g.Status)
	}
	round := g.CurrentRound

	states, market, registry, err := r.Store.RoundState(gameID, round)
	if err != nil {
		return nil, err
	}
	teams, err := r.Store.Teams(gameID)
	if err != nil {
		return nil, err
	}
	subs, err := r.Store.Submissions(gameID, round)
	if err != nil {
		return nil, err
	}
	decsByTeam := map[engine.TeamID]engine.DecisionSet{}
	for _, sub := range subs {
		set, err := r.Validator.Parse(sub.Decisions)
		if err != nil {
			// Validated at submission time; a parse failure here means the
			// store was written around the API. Resolve with no decisions
			// rather than blocking every other team.
			if r.Log != nil {
				r.Log.Printf("game %s round %d: dropping submission from %s: %v", gameID, round, sub.Team, err)
			}
			continue
		}
		decsByTeam[sub.Team] = set
	}
	events, err := r.Store.EventsFor(gameID, round)
	if err != nil {
		return nil, err
	}

	in := engine.RoundInput{
		GameID:   gameID,
		Round:    round,
		Seed:     rng.ComposeSeed(gameID+g.SeedSalt, round),
		Market:   market,
		Registry: registry,
		Events:   events,
	}
	for _, t := range teams {
		st, ok := states[t.ID]
		if !ok {
			return nil, fmt.Errorf("game %s round %d: no state for team %s", gameID, round, t.ID)
		}
		in.Teams = append(in.Teams, engine.TeamInput{ID: t.ID, State: st, Decisions: decsByTeam[t.ID]})
	}

	out, err := r.Engine.ResolveRound(in)
	if err != nil {
		return nil, err
	}
	if err := r.Store.CommitRound(gameID, out); err != nil {
		return nil, err
	}

	if r.RoundLog != nil {
		if err := r.RoundLog.WriteRound(gameID, out); err != nil && r.Log != nil {
			r.Log.Printf("game %s round %d: round log: %v", gameID, round, err)
		}
	}
	if r.SnapshotDir != "" {
		if err := r.writeSnapshot(g, teams, out); err != nil && r.Log != nil {
			r.Log.Printf("game %s round %d: snapshot: %v", gameID, round, err)
		}
	}
	if r.Publish != nil {
		r.Publish(gameID, out)
	}
	return out, nil
}

func (r *Runner) writeSnapshot(g store.Game, teams []store.Team, out *engine.RoundOutput) error {
	names := map[engine.TeamID]string{}
	for _, t := range teams {
		names[t.ID] = t.Name
	}
	snap := snapshot.SnapshotV1{
		Header:            snapshot.Header{Version: 1, GameID: g.ID, Round: out.Round},
		SeedSalt:          g.SeedSalt,
		MaxRounds:         g.MaxRounds,
		TechDigest:        r.Engine.Catalogs().Tech.Digest,
		SegmentDigest:     r.Engine.Catalogs().Segments.Digest,
		AchievementDigest: r.Engine.Catalogs().Achievements.Digest,
		Market:            out.Market,
		Registry:          out.Registry,
		Standings:         out.Standings,
		AuditTrail:        &out.Audit,
	}
	for _, tr := range out.Teams {
		snap.Teams = append(snap.Teams, snapshot.TeamV1{ID: tr.ID, Name: names[tr.ID], State: tr.State})
	}
	path := filepath.Join(r.SnapshotDir, g.ID, fmt.Sprintf("r%04d.snap.zst", out.Round))
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		return err
	}
	archived, ok, err := archive.ArchiveFinalSnapshot(r.SnapshotDir, path, snap)
	if err != nil {
		return err
	}
	if ok && r.Log != nil {
		r.Log.Printf("game %s archived to %s", g.ID, archived)
	}
	return nil
}

// ReplayRound re-resolves an already committed round and compares its audit
// trail against the stored record. A mismatch means the inputs drifted (or
// the engine changed) since the round was played.
func (r *Runner) ReplayRound(gameID string, round int) (*engine.RoundOutput, error) {
	rec, err := r.Store.RoundRecord(gameID, round)
	if err != nil {
		return nil, err
	}
	states, market, registry, err := r.Store.RoundState(gameID, round)
	if err != nil {
		return nil, err
	}
	teams, err := r.Store.Teams(gameID)
	if err != nil {
		return nil, err
	}
	subs, err := r.Store.Submissions(gameID, round)
	if err != nil {
		return nil, err
	}
	decsByTeam := map[engine.TeamID]engine.DecisionSet{}
	for _, sub := range subs {
		set, err := r.Validator.Parse(sub.Decisions)
		if err != nil {
			continue
		}
		decsByTeam[sub.Team] = set
	}
	events, err := r.Store.EventsFor(gameID, round)
	if err != nil {
		return nil, err
	}

	in := engine.RoundInput{
		GameID:   gameID,
		Round:    round,
		Seed:     rec.Seed,
		Market:   market,
		Registry: registry,
		Events:   events,
	}
	for _, t := range teams {
		st, ok := states[t.ID]
		if !ok {
			return nil, fmt.Errorf("game %s round %d: no state for team %s", gameID, round, t.ID)
		}
		in.Teams = append(in.Teams, engine.TeamInput{ID: t.ID, State: st, Decisions: decsByTeam[t.ID]})
	}

	out, err := r.Engine.ResolveRound(in)
	if err != nil {
		return nil, err
	}
	if err := diffAudit(rec.Audit, out.Audit); err != nil {
		return out, err
	}
	return out, nil
}

func diffAudit(want, got engine.AuditTrail) error {
	if want.Seed != got.Seed {
		return fmt.Errorf("replay: seed %s, recorded %s", got.Seed, want.Seed)
	}
	if want.Registry != got.Registry {
		return fmt.Errorf("replay: registry digest mismatch")
	}
	if want.Market != got.Market {
		return fmt.Errorf("replay: market digest mismatch")
	}
	teams := make([]string, 0, len(want.TeamHashes))
	for id := range want.TeamHashes {
		teams = append(teams, string(id))
	}
	sort.Strings(teams)
	for _, id := range teams {
		if want.TeamHashes[engine.TeamID(id)] != got.TeamHashes[engine.TeamID(id)] {
			return fmt.Errorf("replay: team %s digest mismatch", id)
		}
	}
	return nil
}

// SubmissionPreview summarizes a stored sheet for facilitator tooling.
type SubmissionPreview struct {
	Team    engine.TeamID `json:"team"`
	Modules []string      `json:"modules"`
}

func PreviewSubmissions(subs []store.Submission) []SubmissionPreview {
	out := make([]SubmissionPreview, 0, len(subs))
	for _, sub := range subs {
		var set map[string]json.RawMessage
		_ = json.Unmarshal(sub.Decisions, &set)
		mods := make([]string, 0, len(set))
		for k := range set {
			mods = append(mods, k)
		}
		sort.Strings(mods)
		out = append(out, SubmissionPreview{Team: sub.Team, Modules: mods})
	}
	return out
}
