package decisions

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Game routing/state.
	ErrGameNotFound  = "E_GAME_NOT_FOUND"
	ErrGameComplete  = "E_GAME_COMPLETE"
	ErrRoundClosed   = "E_ROUND_CLOSED"
	ErrRoundMismatch = "E_ROUND_MISMATCH"
	ErrTeamNotFound  = "E_TEAM_NOT_FOUND"

	// Decision payload layer.
	ErrBadRequest = "E_BAD_REQUEST"
	ErrSchema     = "E_SCHEMA"
	ErrConflict   = "E_CONFLICT"
	ErrInternal   = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrGameNotFound:    {},
	ErrGameComplete:    {},
	ErrRoundClosed:     {},
	ErrRoundMismatch:   {},
	ErrTeamNotFound:    {},
	ErrBadRequest:      {},
	ErrSchema:          {},
	ErrConflict:        {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
