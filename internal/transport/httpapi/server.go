package httpapi

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"

	"gadgetwars.ai/internal/decisions"
	"gadgetwars.ai/internal/game"
	"gadgetwars.ai/internal/persistence/store"
	"gadgetwars.ai/internal/sim/engine"
	"gadgetwars.ai/internal/transport/observer"
)

// Server is the decision intake and results API. Team-facing routes take
// SUBMIT messages and answer with ACK/REJECT; facilitator routes (resolve,
// events) are loopback-only.
type Server struct {
	runner    *game.Runner
	validator *decisions.Validator
	obs       *observer.Server
	log       *log.Logger
}

func NewServer(runner *game.Runner, validator *decisions.Validator, obs *observer.Server, logger *log.Logger) *Server {
	return &Server{runner: runner, validator: validator, obs: obs, log: logger}
}

func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/submit", s.handleSubmit)
	mux.HandleFunc("GET /v1/games/{game}", s.handleGame)
	mux.HandleFunc("GET /v1/games/{game}/rounds/{round}", s.handleRound)
	mux.HandleFunc("POST /v1/games/{game}/resolve", s.facilitatorOnly(s.handleResolve))
	mux.HandleFunc("GET /v1/games/{game}/submissions", s.facilitatorOnly(s.handleSubmissions))
	if s.obs != nil {
		mux.HandleFunc("GET /observer/v1/bootstrap", s.obs.BootstrapHandler())
		mux.HandleFunc("GET /observer/v1/ws", s.obs.WSHandler())
	}
	return mux
}

func (s *Server) facilitatorOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !observer.IsLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		h(rw, r)
	}
}

func (s *Server) handleSubmit(rw http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		s.reject(rw, http.StatusBadRequest, decisions.ErrProtoBadRequest, "read body")
		return
	}
	msg, err := s.validator.ValidateSubmit(body)
	if err != nil {
		s.rejectErr(rw, http.StatusBadRequest, err)
		return
	}
	if _, err := s.validator.Parse(msg.Decisions); err != nil {
		s.rejectErr(rw, http.StatusBadRequest, err)
		return
	}

	g, err := s.runner.Store.Game(msg.GameID)
	if err != nil {
		s.reject(rw, http.StatusNotFound, decisions.ErrGameNotFound, msg.GameID)
		return
	}
	if g.Status != store.GameActive {
		s.reject(rw, http.StatusConflict, decisions.ErrGameComplete, g.ID)
		return
	}
	if msg.Round != g.CurrentRound {
		s.reject(rw, http.StatusConflict, decisions.ErrRoundMismatch, "")
		return
	}
	if !s.knownTeam(g.ID, msg.TeamID) {
		s.reject(rw, http.StatusNotFound, decisions.ErrTeamNotFound, msg.TeamID)
		return
	}

	replaced, err := s.runner.Store.PutSubmission(g.ID, msg.Round, engine.TeamID(msg.TeamID), msg.Decisions)
	if err != nil {
		s.reject(rw, http.StatusConflict, decisions.ErrRoundClosed, err.Error())
		return
	}
	writeJSON(rw, http.StatusOK, decisions.AckMsg{
		Type:            decisions.TypeAck,
		ProtocolVersion: decisions.Version,
		GameID:          g.ID,
		Round:           msg.Round,
		TeamID:          msg.TeamID,
		Replaced:        replaced,
	})
}

func (s *Server) handleGame(rw http.ResponseWriter, r *http.Request) {
	g, err := s.runner.Store.Game(r.PathValue("game"))
	if err != nil {
		s.reject(rw, http.StatusNotFound, decisions.ErrGameNotFound, "")
		return
	}
	resp := map[string]any{
		"id":            g.ID,
		"name":          g.Name,
		"current_round": g.CurrentRound,
		"max_rounds":    g.MaxRounds,
		"status":        g.Status,
	}
	last := g.CurrentRound - 1
	if g.Status == store.GameComplete {
		last = g.MaxRounds
	}
	if last >= 1 {
		if rec, err := s.runner.Store.RoundRecord(g.ID, last); err == nil {
			resp["standings"] = rec.Standings
		}
	}
	writeJSON(rw, http.StatusOK, resp)
}

func (s *Server) handleRound(rw http.ResponseWriter, r *http.Request) {
	round, ok := atoiParam(r.PathValue("round"))
	if !ok {
		s.reject(rw, http.StatusBadRequest, decisions.ErrBadRequest, "round")
		return
	}
	rec, err := s.runner.Store.RoundRecord(r.PathValue("game"), round)
	if err != nil {
		s.reject(rw, http.StatusNotFound, decisions.ErrGameNotFound, err.Error())
		return
	}
	writeJSON(rw, http.StatusOK, rec)
}

func (s *Server) handleResolve(rw http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("game")
	out, err := s.runner.ResolveCurrentRound(gameID)
	if err != nil {
		s.reject(rw, http.StatusConflict, decisions.ErrConflict, err.Error())
		return
	}
	writeJSON(rw, http.StatusOK, decisions.ResultMsg{
		Type:            decisions.TypeResult,
		ProtocolVersion: decisions.Version,
		GameID:          gameID,
		Round:           out.Round,
		Summary:         out.Summary,
		AuditSeed:       out.Audit.Seed,
	})
}

func (s *Server) handleSubmissions(rw http.ResponseWriter, r *http.Request) {
	g, err := s.runner.Store.Game(r.PathValue("game"))
	if err != nil {
		s.reject(rw, http.StatusNotFound, decisions.ErrGameNotFound, "")
		return
	}
	subs, err := s.runner.Store.Submissions(g.ID, g.CurrentRound)
	if err != nil {
		s.reject(rw, http.StatusInternalServerError, decisions.ErrInternal, "")
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{
		"round":       g.CurrentRound,
		"submissions": game.PreviewSubmissions(subs),
	})
}

func (s *Server) knownTeam(gameID, teamID string) bool {
	teams, err := s.runner.Store.Teams(gameID)
	if err != nil {
		return false
	}
	for _, t := range teams {
		if string(t.ID) == teamID {
			return true
		}
	}
	return false
}

func (s *Server) reject(rw http.ResponseWriter, status int, code, detail string) {
	writeJSON(rw, status, decisions.RejectMsg{
		Type:            decisions.TypeReject,
		ProtocolVersion: decisions.Version,
		Code:            code,
		Detail:          detail,
	})
}

func (s *Server) rejectErr(rw http.ResponseWriter, status int, err error) {
	if derr, ok := err.(*decisions.Error); ok {
		s.reject(rw, status, derr.Code, derr.Detail)
		return
	}
	s.reject(rw, status, decisions.ErrBadRequest, err.Error())
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func atoiParam(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	return n, err == nil && n >= 0
}
