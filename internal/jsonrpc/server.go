// Package jsonrpc serves the local HTTP API: JSON-RPC commands on /api, a
// WebSocket stream of transmission events on /events and /health.
package jsonrpc

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/novy-bridge/internal/auth"
	"github.com/novy-bridge/internal/commands"
	"github.com/novy-bridge/internal/config"
	"github.com/novy-bridge/internal/events"
)

// eventBuffer is how many events a slow stream client may fall behind
const eventBuffer = 16

// Server handles HTTP API requests
type Server struct {
	config     *config.Config
	dispatcher commands.Dispatcher
	hub        *events.Hub
	auth       *auth.Middleware
	rpc        *commands.RPCServer
}

// HealthResponse is returned by /health
type HealthResponse struct {
	Status      string `json:"status"`
	Hostname    string `json:"hostname"`
	Transmitter string `json:"transmitter"`
	Queued      int    `json:"queued"`
}

// NewServer creates a new HTTP API server
func NewServer(cfg *config.Config, dispatcher commands.Dispatcher, hub *events.Hub, mw *auth.Middleware) *Server {
	registry := commands.NewCommandRegistry()
	commands.RegisterCoreCommands(registry, dispatcher)

	s := &Server{
		config:     cfg,
		dispatcher: dispatcher,
		hub:        hub,
		auth:       mw,
	}
	s.rpc = commands.NewRPCServer(registry).
		WithServerHeader(cfg.Network.HTTP.ServerHeader).
		WithAuthorizer(s.authorize)
	return s
}

// Handler returns the routes of the API
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api", s.auth.RequireAuth(s.rpc.HandleRequest))
	mux.HandleFunc("/events", s.auth.RequireAuth(s.auth.RequireScope(auth.ScopeRead)(s.HandleEvents)))
	mux.HandleFunc("/health", s.HandleHealth)
	return mux
}

// authorize requires the control scope for transmitting methods and the
// read scope for everything else
func (s *Server) authorize(ctx context.Context, handler commands.CommandHandler) error {
	scope := auth.ScopeRead
	if !handler.IsReadOnly() {
		scope = auth.ScopeControl
	}
	return s.auth.CheckScope(ctx, scope)
}

// HandleEvents upgrades to a WebSocket and streams transmission events
// until the client goes away
func (s *Server) HandleEvents(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.config.Network.HTTP.OriginPatterns})
	if err != nil {
		log.Printf("[ERROR] Event stream upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}
	log.Printf("[INFO] Accepted event stream from %s", r.RemoteAddr)
	defer log.Printf("[INFO] Closing event stream for %s", r.RemoteAddr)
	defer c.Close(websocket.StatusNormalClosure, "Handler exits")

	evs, cancel := s.hub.Subscribe(r.RemoteAddr, eventBuffer)
	defer cancel()

	ctx := c.CloseRead(r.Context())
	for {
		select {
		case e, ok := <-evs:
			if !ok {
				return
			}
			if err := writeEvent(ctx, c, e); err != nil {
				log.Printf("[DEBUG] Event stream write to %s failed: %v", r.RemoteAddr, err)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func writeEvent(ctx context.Context, c *websocket.Conn, e events.Event) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	return wsjson.Write(ctx, c, e)
}

// HandleHealth reports liveness without authentication
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.config.Network.HTTP.ServerHeader != "" {
		w.Header().Set("Server", s.config.Network.HTTP.ServerHeader)
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	st := s.dispatcher.Status()
	if err := json.NewEncoder(w).Encode(HealthResponse{
		Status:      "ok",
		Hostname:    s.config.Hostname,
		Transmitter: st.State,
		Queued:      st.Queued,
	}); err != nil {
		log.Printf("[ERROR] Failed to encode health response: %v", err)
	}
}
