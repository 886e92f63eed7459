package observer

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"gadgetwars.ai/internal/sim/engine"
)

// Server fans resolved rounds out to read-only websocket observers. It is
// strictly one-way: observers never influence the game.
type Server struct {
	log *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu     sync.Mutex
	subs   map[string]*subscriber
	games  map[string]GameInfo
	latest map[string][]byte // game id -> last ROUND message
}

type subscriber struct {
	gameID string // empty means all games
	out    chan []byte
}

func NewServer(logger *log.Logger) *Server {
	return &Server{
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		subs:   map[string]*subscriber{},
		games:  map[string]GameInfo{},
		latest: map[string][]byte{},
	}
}

// RegisterGame makes a game visible in the bootstrap listing.
func (s *Server) RegisterGame(info GameInfo) {
	s.mu.Lock()
	s.games[info.GameID] = info
	s.mu.Unlock()
}

// PublishRound broadcasts a resolved round to matching subscribers. Slow
// observers are skipped, not waited for; they catch up on the next round.
func (s *Server) PublishRound(gameID string, out *engine.RoundOutput) {
	warnsByTeam := map[engine.TeamID]int{}
	for _, w := range out.Warnings {
		warnsByTeam[w.Team]++
	}
	msg := RoundMsg{
		Type:            "ROUND",
		ProtocolVersion: Version,
		GameID:          gameID,
		Round:           out.Round,
		Standings:       out.Standings,
		Summary:         out.Summary,
		AuditSeed:       out.Audit.Seed,
	}
	for _, tr := range out.Teams {
		msg.Teams = append(msg.Teams, TeamRound{
			ID:              tr.ID,
			Cash:            tr.State.Cash,
			Revenue:         tr.Market.Revenue,
			MarketShare:     tr.State.MarketShare,
			Rank:            tr.Rank,
			NewAchievements: tr.NewAchievements,
			Warnings:        warnsByTeam[tr.ID],
		})
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.latest[gameID] = b
	if info, ok := s.games[gameID]; ok {
		info.CurrentRound = out.Round
		s.games[gameID] = info
	}
	for _, sub := range s.subs {
		if sub.gameID != "" && sub.gameID != gameID {
			continue
		}
		select {
		case sub.out <- b:
		default:
		}
	}
	s.mu.Unlock()
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		resp := BootstrapResponse{ProtocolVersion: Version}
		s.mu.Lock()
		for _, g := range s.games {
			resp.Games = append(resp.Games, g)
		}
		s.mu.Unlock()

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub SubscribeMsg
		if err := json.Unmarshal(raw, &sub); err != nil || sub.Type != "SUBSCRIBE" || sub.ProtocolVersion != Version {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		out := make(chan []byte, 32)

		s.mu.Lock()
		s.subs[sid] = &subscriber{gameID: sub.GameID, out: out}
		// Replay the latest round so a fresh observer is not blank until the
		// next resolve.
		if sub.GameID != "" {
			if b, ok := s.latest[sub.GameID]; ok {
				out <- b
			}
		} else {
			for _, b := range s.latest {
				select {
				case out <- b:
				default:
				}
			}
		}
		s.mu.Unlock()

		defer func() {
			s.mu.Lock()
			delete(s.subs, sid)
			s.mu.Unlock()
		}()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		done := make(chan struct{})
		go func() {
			for {
				select {
				case <-done:
					writeErr <- nil
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates to switch games.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
			_, raw, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var upd SubscribeMsg
			if err := json.Unmarshal(raw, &upd); err != nil {
				continue
			}
			if upd.Type != "SUBSCRIBE" || upd.ProtocolVersion != Version {
				continue
			}
			s.mu.Lock()
			if cur, ok := s.subs[sid]; ok {
				cur.gameID = upd.GameID
			}
			s.mu.Unlock()
		}

		close(done)
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// IsLoopbackRemote reports whether the request came from localhost. The
// admin surfaces use it as their only access control.
func IsLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
