package observer

import "gadgetwars.ai/internal/sim/engine"

// Version is the observer protocol version (separate from the decision
// submission protocol).
const Version = "0.1"

// Client -> Server. First message on the observer WS connection; can be
// re-sent to switch games.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	GameID          string `json:"game_id,omitempty"` // empty means all games
}

// HTTP response for GET /observer/v1/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string     `json:"protocol_version"`
	Games           []GameInfo `json:"games"`
}

type GameInfo struct {
	GameID       string `json:"game_id"`
	Name         string `json:"name"`
	CurrentRound int    `json:"current_round"`
	MaxRounds    int    `json:"max_rounds"`
	Status       string `json:"status"`
}

// Server -> Client. Broadcast once per resolved round.
type RoundMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	GameID          string `json:"game_id"`
	Round           int    `json:"round"`

	Standings []engine.Standing `json:"standings"`
	Summary   []string          `json:"summary,omitempty"`
	Teams     []TeamRound       `json:"teams"`
	AuditSeed string            `json:"audit_seed"`
}

type TeamRound struct {
	ID              engine.TeamID                `json:"id"`
	Cash            float64                      `json:"cash"`
	Revenue         float64                      `json:"revenue"`
	MarketShare     map[string]float64           `json:"market_share,omitempty"`
	Rank            int                          `json:"rank"`
	NewAchievements []engine.UnlockedAchievement `json:"new_achievements,omitempty"`
	Warnings        int                          `json:"warnings,omitempty"`
}
