package decisions

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeSubmit = "SUBMIT"
	TypeAck    = "ACK"
	TypeReject = "REJECT"
	TypeResult = "RESULT"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// SUBMIT (team -> server). One team's complete decision sheet for a round.
// Omitted modules mean "no decisions for that department".
type SubmitMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	GameID          string          `json:"game_id"`
	Round           int             `json:"round"`
	TeamID          string          `json:"team_id"`
	Decisions       json.RawMessage `json:"decisions"`
}

// ACK (server -> team). Submission accepted; replaces any earlier sheet for
// the same round.
type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	GameID          string `json:"game_id"`
	Round           int    `json:"round"`
	TeamID          string `json:"team_id"`
	Replaced        bool   `json:"replaced,omitempty"`
}

// REJECT (server -> team). Submission refused outright; nothing was stored.
type RejectMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Detail          string `json:"detail,omitempty"`
}

// RESULT (server -> observers). Broadcast after a round resolves.
type ResultMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	GameID          string          `json:"game_id"`
	Round           int             `json:"round"`
	Summary         []string        `json:"summary,omitempty"`
	Standings       json.RawMessage `json:"standings,omitempty"`
	AuditSeed       string          `json:"audit_seed,omitempty"`
}
