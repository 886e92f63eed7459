package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"gadgetwars.ai/internal/sim/catalogs"
	"gadgetwars.ai/internal/sim/engine"
	"gadgetwars.ai/internal/sim/tuning"
)

// Game status values.
const (
	GameActive   = "active"
	GameComplete = "complete"
)

// Round status values.
const (
	RoundOpen     = "open"
	RoundResolved = "resolved"
)

type Game struct {
	ID           string
	Name         string
	SeedSalt     string
	MaxRounds    int
	CurrentRound int
	Status       string
}

type Team struct {
	ID   engine.TeamID
	Name string
}

type Submission struct {
	ID          string
	Team        engine.TeamID
	Decisions   json.RawMessage
	SubmittedAt string
}

// Store is the single source of truth for game state between rounds. One
// writer connection; round commits are transactional so a crash mid-resolve
// never leaves a half-written round behind.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func initPragmas(db *sql.DB) error {
	// WAL keeps readers (standings queries, observers) off the writer's back.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS games (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			seed_salt TEXT NOT NULL,
			max_rounds INTEGER NOT NULL,
			current_round INTEGER NOT NULL,
			status TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS teams (
			game_id TEXT NOT NULL,
			team_id TEXT NOT NULL,
			name TEXT NOT NULL,
			PRIMARY KEY (game_id, team_id)
		);`,
		`CREATE TABLE IF NOT EXISTS team_states (
			game_id TEXT NOT NULL,
			round INTEGER NOT NULL,
			team_id TEXT NOT NULL,
			state_json TEXT NOT NULL,
			digest TEXT NOT NULL,
			PRIMARY KEY (game_id, round, team_id)
		);`,
		`CREATE TABLE IF NOT EXISTS submissions (
			id TEXT NOT NULL,
			game_id TEXT NOT NULL,
			round INTEGER NOT NULL,
			team_id TEXT NOT NULL,
			decisions_json TEXT NOT NULL,
			submitted_at TEXT NOT NULL,
			PRIMARY KEY (game_id, round, team_id)
		);`,
		`CREATE TABLE IF NOT EXISTS rounds (
			game_id TEXT NOT NULL,
			round INTEGER NOT NULL,
			status TEXT NOT NULL,
			seed TEXT NOT NULL DEFAULT '',
			market_json TEXT NOT NULL DEFAULT '',
			registry_json TEXT NOT NULL DEFAULT '',
			standings_json TEXT NOT NULL DEFAULT '',
			audit_json TEXT NOT NULL DEFAULT '',
			summary_json TEXT NOT NULL DEFAULT '',
			warnings_json TEXT NOT NULL DEFAULT '',
			resolved_at TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (game_id, round)
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			game_id TEXT NOT NULL,
			round INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			event_json TEXT NOT NULL,
			PRIMARY KEY (game_id, round, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_states_team ON team_states(game_id, team_id, round);`,
		`CREATE INDEX IF NOT EXISTS idx_rounds_status ON rounds(game_id, status);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func now() string { return time.Now().UTC().Format(time.RFC3339Nano) }

// UpsertCatalogs records the config the game runs under, digests included,
// so a replay can detect catalog drift.
func (s *Store) UpsertCatalogs(cats *catalogs.Catalogs, tun tuning.Tuning) error {
	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	{
		// Canonicalize to sorted slices for stable JSON.
		nodes := make([]catalogs.TechNode, 0, len(cats.Tech.IDs))
		for _, id := range cats.Tech.IDs {
			nodes = append(nodes, cats.Tech.ByID[id])
		}
		if b, _ := json.Marshal(nodes); len(b) > 0 {
			rows = append(rows, kv{"technologies", cats.Tech.Digest, b})
		}
	}
	{
		segs := make([]catalogs.Segment, 0, len(cats.Segments.IDs))
		for _, id := range cats.Segments.IDs {
			segs = append(segs, cats.Segments.ByID[id])
		}
		if b, _ := json.Marshal(segs); len(b) > 0 {
			rows = append(rows, kv{"segments", cats.Segments.Digest, b})
		}
	}
	{
		achs := make([]catalogs.AchievementDef, 0, len(cats.Achievements.IDs))
		for _, id := range cats.Achievements.IDs {
			achs = append(achs, cats.Achievements.ByID[id])
		}
		if b, _ := json.Marshal(achs); len(b) > 0 {
			rows = append(rows, kv{"achievements", cats.Achievements.Digest, b})
		}
	}
	{
		b, _ := json.Marshal(tun)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{"tuning", hex.EncodeToString(sum[:]), b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	ts := now()
	for _, r := range rows {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`,
			r.name, r.digest, string(r.json), ts); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CreateGame writes the game, its teams, the round-0 states, and opens
// round 1, all in one transaction.
func (s *Store) CreateGame(g Game, teams []Team, initial map[engine.TeamID]*engine.TeamState, market *engine.MarketState, registry *engine.PatentRegistry) error {
	if g.ID == "" {
		return fmt.Errorf("store: empty game id")
	}
	if g.MaxRounds < 1 {
		return fmt.Errorf("store: max rounds %d", g.MaxRounds)
	}
	if len(teams) == 0 {
		return fmt.Errorf("store: no teams")
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	ts := now()
	if _, err := tx.Exec(`INSERT INTO games(id,name,seed_salt,max_rounds,current_round,status,created_at,updated_at) VALUES(?,?,?,?,?,?,?,?)`,
		g.ID, g.Name, g.SeedSalt, g.MaxRounds, 1, GameActive, ts, ts); err != nil {
		return err
	}
	for _, t := range teams {
		if _, err := tx.Exec(`INSERT INTO teams(game_id,team_id,name) VALUES(?,?,?)`, g.ID, string(t.ID), t.Name); err != nil {
			return err
		}
		st, ok := initial[t.ID]
		if !ok {
			return fmt.Errorf("store: team %s has no initial state", t.ID)
		}
		b, err := json.Marshal(st)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`INSERT INTO team_states(game_id,round,team_id,state_json,digest) VALUES(?,0,?,?,?)`,
			g.ID, string(t.ID), string(b), engine.TeamDigest(st)); err != nil {
			return err
		}
	}

	mj, err := json.Marshal(market)
	if err != nil {
		return err
	}
	rj, err := json.Marshal(registry)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT INTO rounds(game_id,round,status,market_json,registry_json) VALUES(?,1,?,?,?)`,
		g.ID, RoundOpen, string(mj), string(rj)); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) Game(id string) (Game, error) {
	var g Game
	row := s.db.QueryRow(`SELECT id,name,seed_salt,max_rounds,current_round,status FROM games WHERE id=?`, id)
	if err := row.Scan(&g.ID, &g.Name, &g.SeedSalt, &g.MaxRounds, &g.CurrentRound, &g.Status); err != nil {
		if err == sql.ErrNoRows {
			return Game{}, fmt.Errorf("store: game %s not found", id)
		}
		return Game{}, err
	}
	return g, nil
}

func (s *Store) Games() ([]Game, error) {
	rows, err := s.db.Query(`SELECT id,name,seed_salt,max_rounds,current_round,status FROM games ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Game
	for rows.Next() {
		var g Game
		if err := rows.Scan(&g.ID, &g.Name, &g.SeedSalt, &g.MaxRounds, &g.CurrentRound, &g.Status); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *Store) Teams(gameID string) ([]Team, error) {
	rows, err := s.db.Query(`SELECT team_id,name FROM teams WHERE game_id=? ORDER BY team_id`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Team
	for rows.Next() {
		var t Team
		var id string
		if err := rows.Scan(&id, &t.Name); err != nil {
			return nil, err
		}
		t.ID = engine.TeamID(id)
		out = append(out, t)
	}
	return out, rows.Err()
}

// PutSubmission stores a team's decision sheet for an open round, replacing
// any earlier sheet. Returns whether an earlier sheet was replaced.
func (s *Store) PutSubmission(gameID string, round int, team engine.TeamID, decisions json.RawMessage) (bool, error) {
	var status string
	row := s.db.QueryRow(`SELECT status FROM rounds WHERE game_id=? AND round=?`, gameID, round)
	if err := row.Scan(&status); err != nil {
		if err == sql.ErrNoRows {
			return false, fmt.Errorf("store: round %d of %s not found", round, gameID)
		}
		return false, err
	}
	if status != RoundOpen {
		return false, fmt.Errorf("store: round %d of %s is %s", round, gameID, status)
	}

	var existing string
	replaced := true
	err := s.db.QueryRow(`SELECT id FROM submissions WHERE game_id=? AND round=? AND team_id=?`,
		gameID, round, string(team)).Scan(&existing)
	if err == sql.ErrNoRows {
		replaced = false
	} else if err != nil {
		return false, err
	}

	_, err = s.db.Exec(`INSERT OR REPLACE INTO submissions(id,game_id,round,team_id,decisions_json,submitted_at) VALUES(?,?,?,?,?,?)`,
		uuid.NewString(), gameID, round, string(team), string(decisions), now())
	return replaced, err
}

func (s *Store) Submissions(gameID string, round int) ([]Submission, error) {
	rows, err := s.db.Query(`SELECT id,team_id,decisions_json,submitted_at FROM submissions WHERE game_id=? AND round=? ORDER BY team_id`,
		gameID, round)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Submission
	for rows.Next() {
		var sub Submission
		var team, raw string
		if err := rows.Scan(&sub.ID, &team, &raw, &sub.SubmittedAt); err != nil {
			return nil, err
		}
		sub.Team = engine.TeamID(team)
		sub.Decisions = json.RawMessage(raw)
		out = append(out, sub)
	}
	return out, rows.Err()
}

// ScheduleEvent queues a facilitator event for a future round.
func (s *Store) ScheduleEvent(gameID string, round int, ev engine.FacilitatorEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	var seq int
	if err := s.db.QueryRow(`SELECT COALESCE(MAX(seq),-1)+1 FROM events WHERE game_id=? AND round=?`, gameID, round).Scan(&seq); err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO events(game_id,round,seq,event_json) VALUES(?,?,?,?)`, gameID, round, seq, string(b))
	return err
}

func (s *Store) EventsFor(gameID string, round int) ([]engine.FacilitatorEvent, error) {
	rows, err := s.db.Query(`SELECT event_json FROM events WHERE game_id=? AND round=? ORDER BY seq`, gameID, round)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []engine.FacilitatorEvent
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var ev engine.FacilitatorEvent
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// RoundState loads everything needed to resolve (or re-resolve) a round:
// the team states as of the previous round and the round's market and
// registry snapshots.
func (s *Store) RoundState(gameID string, round int) (map[engine.TeamID]*engine.TeamState, *engine.MarketState, *engine.PatentRegistry, error) {
	var mj, rj string
	row := s.db.QueryRow(`SELECT market_json,registry_json FROM rounds WHERE game_id=? AND round=?`, gameID, round)
	if err := row.Scan(&mj, &rj); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, nil, fmt.Errorf("store: round %d of %s not found", round, gameID)
		}
		return nil, nil, nil, err
	}
	var market engine.MarketState
	if err := json.Unmarshal([]byte(mj), &market); err != nil {
		return nil, nil, nil, err
	}
	var registry engine.PatentRegistry
	if err := json.Unmarshal([]byte(rj), &registry); err != nil {
		return nil, nil, nil, err
	}
	if registry.Patents == nil {
		registry.Patents = map[string]*engine.Patent{}
	}

	rows, err := s.db.Query(`SELECT team_id,state_json FROM team_states WHERE game_id=? AND round=? ORDER BY team_id`,
		gameID, round-1)
	if err != nil {
		return nil, nil, nil, err
	}
	defer rows.Close()
	states := map[engine.TeamID]*engine.TeamState{}
	for rows.Next() {
		var team, raw string
		if err := rows.Scan(&team, &raw); err != nil {
			return nil, nil, nil, err
		}
		var st engine.TeamState
		if err := json.Unmarshal([]byte(raw), &st); err != nil {
			return nil, nil, nil, err
		}
		states[engine.TeamID(team)] = &st
	}
	if err := rows.Err(); err != nil {
		return nil, nil, nil, err
	}
	return states, &market, &registry, nil
}

// CommitRound persists a resolved round atomically: resulting team states,
// the round record with its audit trail, and either the next open round or
// game completion.
func (s *Store) CommitRound(gameID string, out *engine.RoundOutput) error {
	g, err := s.Game(gameID)
	if err != nil {
		return err
	}
	if g.Status != GameActive {
		return fmt.Errorf("store: game %s is %s", gameID, g.Status)
	}
	if out.Round != g.CurrentRound {
		return fmt.Errorf("store: commit for round %d, game is at round %d", out.Round, g.CurrentRound)
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, tr := range out.Teams {
		b, err := json.Marshal(tr.State)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`INSERT OR REPLACE INTO team_states(game_id,round,team_id,state_json,digest) VALUES(?,?,?,?,?)`,
			gameID, out.Round, string(tr.ID), string(b), out.Audit.TeamHashes[tr.ID]); err != nil {
			return err
		}
	}

	mj, err := json.Marshal(out.Market)
	if err != nil {
		return err
	}
	rj, err := json.Marshal(out.Registry)
	if err != nil {
		return err
	}
	sj, err := json.Marshal(out.Standings)
	if err != nil {
		return err
	}
	aj, err := json.Marshal(out.Audit)
	if err != nil {
		return err
	}
	uj, err := json.Marshal(out.Summary)
	if err != nil {
		return err
	}
	wj, err := json.Marshal(out.Warnings)
	if err != nil {
		return err
	}
	ts := now()
	res, err := tx.Exec(`UPDATE rounds SET status=?,seed=?,standings_json=?,audit_json=?,summary_json=?,warnings_json=?,resolved_at=? WHERE game_id=? AND round=? AND status=?`,
		RoundResolved, out.Audit.Seed, string(sj), string(aj), string(uj), string(wj), ts, gameID, out.Round, RoundOpen)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return fmt.Errorf("store: round %d of %s not open", out.Round, gameID)
	}

	if out.Round >= g.MaxRounds {
		if _, err := tx.Exec(`UPDATE games SET status=?,updated_at=? WHERE id=?`, GameComplete, ts, gameID); err != nil {
			return err
		}
	} else {
		if _, err := tx.Exec(`INSERT INTO rounds(game_id,round,status,market_json,registry_json) VALUES(?,?,?,?,?)`,
			gameID, out.Round+1, RoundOpen, string(mj), string(rj)); err != nil {
			return err
		}
		if _, err := tx.Exec(`UPDATE games SET current_round=?,updated_at=? WHERE id=?`, out.Round+1, ts, gameID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// RoundRecord is a resolved round as archived in the store.
type RoundRecord struct {
	Round     int
	Seed      string
	Standings []engine.Standing
	Audit     engine.AuditTrail
	Summary   []string
	Warnings  []engine.Warning
}

func (s *Store) RoundRecord(gameID string, round int) (*RoundRecord, error) {
	var status, seed, sj, aj, uj, wj string
	row := s.db.QueryRow(`SELECT status,seed,standings_json,audit_json,summary_json,warnings_json FROM rounds WHERE game_id=? AND round=?`,
		gameID, round)
	if err := row.Scan(&status, &seed, &sj, &aj, &uj, &wj); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("store: round %d of %s not found", round, gameID)
		}
		return nil, err
	}
	if status != RoundResolved {
		return nil, fmt.Errorf("store: round %d of %s is %s", round, gameID, status)
	}
	rec := &RoundRecord{Round: round, Seed: seed}
	if err := json.Unmarshal([]byte(sj), &rec.Standings); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(aj), &rec.Audit); err != nil {
		return nil, err
	}
	if uj != "" {
		if err := json.Unmarshal([]byte(uj), &rec.Summary); err != nil {
			return nil, err
		}
	}
	if wj != "" {
		if err := json.Unmarshal([]byte(wj), &rec.Warnings); err != nil {
			return nil, err
		}
	}
	return rec, nil
}
