package web

import (
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/peterkuimelis/crib/internal/log"
	cnet "github.com/peterkuimelis/crib/internal/net"
)

// ScriptInfo is the JSON representation of the hosted script for the
// /api/script endpoint.
type ScriptInfo struct {
	Name    string     `json:"name"`
	Sends   int        `json:"sends"`
	Expects int        `json:"expects"`
	Steps   []StepInfo `json:"steps"`
}

type StepInfo struct {
	Send   string `json:"send,omitempty"`
	Expect string `json:"expect,omitempty"`
}

// KindsInfo lists the message kinds of the protocol for /api/kinds.
type KindsInfo struct {
	Server []string `json:"server"`
	Client []string `json:"client"`
}

// Server plays a script to every client that connects over WebSocket.
// Clients dial ws://host/ws and exchange one binary frame per message.
type Server struct {
	script *cnet.Script
	logger zerolog.Logger
	mux    *http.ServeMux
}

// NewServer creates a new web server.
func NewServer(script *cnet.Script, logger zerolog.Logger) *Server {
	s := &Server{
		script: script,
		logger: logger,
		mux:    http.NewServeMux(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /api/script", s.handleScript)
	s.mux.HandleFunc("GET /api/kinds", s.handleKinds)
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
}

func (s *Server) handleScript(w http.ResponseWriter, r *http.Request) {
	info := ScriptInfo{Name: s.script.Name}
	info.Sends, info.Expects = s.script.Counts()
	for _, st := range s.script.Steps {
		var si StepInfo
		if st.Send != nil {
			si.Send = st.Send.String()
		}
		if st.Expect != nil {
			si.Expect = st.Expect.String()
		}
		info.Steps = append(info.Steps, si)
	}
	writeJSON(w, info)
}

func (s *Server) handleKinds(w http.ResponseWriter, r *http.Request) {
	var info KindsInfo
	for k := cnet.ServerKind(0); k.Valid(); k++ {
		info.Server = append(info.Server, k.String())
	}
	for k := cnet.ClientKind(0); k.Valid(); k++ {
		info.Client = append(info.Client, k.String())
	}
	writeJSON(w, info)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // Allow connections from any origin
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket accept")
		return
	}
	defer wsConn.CloseNow()

	remote := r.RemoteAddr
	s.logger.Info().Str("remote", remote).Str("script", s.script.Name).Msg("player connected")

	events := log.NewZeroLogger(s.logger.With().Str("remote", remote).Logger())
	if err := cnet.Serve(r.Context(), cnet.NewWebSocketConn(wsConn), s.script, events); err != nil {
		s.logger.Warn().Err(err).Str("remote", remote).Msg("script stopped")
		return
	}
	s.logger.Info().Str("remote", remote).Msg("script finished")
}

// Handler exposes the routes, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s.mux)
}
