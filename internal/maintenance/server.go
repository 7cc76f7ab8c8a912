// Package maintenance serves read-only diagnostics on a TCP port restricted
// to an allow-list of networks. Each connection carries one JSON-RPC
// request and its response.
package maintenance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/novy-bridge/internal/commands"
	"github.com/novy-bridge/internal/config"
)

// Server handles maintenance TCP connections
type Server struct {
	config            *config.Config
	rpc               *commands.RPCServer
	allowed           []*net.IPNet
	listener          net.Listener
	stopChan          chan struct{}
	closeOnce         sync.Once
	activeConnections map[string]net.Conn
	connectionsMutex  sync.Mutex
	maxConnections    int
	connectionTimeout time.Duration
}

// NewServer creates a new maintenance server. Only read-only commands are
// reachable through it.
func NewServer(cfg *config.Config, dispatcher commands.Dispatcher) *Server {
	registry := commands.NewCommandRegistry()
	commands.RegisterCoreCommands(registry, dispatcher)

	s := &Server{
		config:            cfg,
		rpc:               commands.NewRPCServer(registry.ReadOnly()),
		stopChan:          make(chan struct{}),
		activeConnections: make(map[string]net.Conn),
		maxConnections:    10, // Limit concurrent connections
		connectionTimeout: 30 * time.Second,
	}

	for _, cidrStr := range cfg.Network.Maintenance.AllowedCIDRs {
		_, network, err := net.ParseCIDR(cidrStr)
		if err != nil {
			log.Printf("[ERROR] Invalid CIDR in config: %s", cidrStr)
			continue
		}
		s.allowed = append(s.allowed, network)
	}

	return s
}

// ListenAndServe starts the maintenance TCP server
func (s *Server) ListenAndServe() error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Network.Maintenance.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.config.Network.Maintenance.Port, err)
	}
	return s.Serve(listener)
}

// Serve accepts connections on listener until Close
func (s *Server) Serve(listener net.Listener) error {
	s.connectionsMutex.Lock()
	select {
	case <-s.stopChan:
		s.connectionsMutex.Unlock()
		return listener.Close()
	default:
	}
	s.listener = listener
	s.connectionsMutex.Unlock()

	log.Printf("[INFO] Maintenance server listening on %s", listener.Addr())

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.stopChan:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Printf("[ERROR] Failed to accept connection: %v", err)
			continue
		}

		// Check if connection is from allowed CIDR
		if !s.isAllowedConnection(conn) {
			log.Printf("[INFO] Rejected connection from %s (not in allowed CIDRs)", conn.RemoteAddr())
			conn.Close()
			continue
		}

		if !s.track(conn) {
			log.Printf("[INFO] Rejected connection from %s (too many connections)", conn.RemoteAddr())
			conn.Close()
			continue
		}

		go func() {
			defer s.untrack(conn)
			s.handleConnection(conn)
		}()
	}
}

func (s *Server) track(conn net.Conn) bool {
	s.connectionsMutex.Lock()
	defer s.connectionsMutex.Unlock()
	if len(s.activeConnections) >= s.maxConnections {
		return false
	}
	s.activeConnections[conn.RemoteAddr().String()] = conn
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.connectionsMutex.Lock()
	delete(s.activeConnections, conn.RemoteAddr().String())
	s.connectionsMutex.Unlock()
}

// handleConnection handles a single TCP connection
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(s.connectionTimeout))

	var req commands.Request
	decoder := json.NewDecoder(conn)
	if err := decoder.Decode(&req); err != nil {
		log.Printf("[INFO] Failed to decode JSON-RPC request from %s: %v", conn.RemoteAddr(), err)
		s.writeErrorResponse(conn, commands.CodeParseError, "Parse error", nil)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.connectionTimeout)
	defer cancel()
	response := s.rpc.Process(ctx, &req)

	if err := json.NewEncoder(conn).Encode(response); err != nil {
		log.Printf("[ERROR] Failed to encode response: %v", err)
		return
	}

	log.Printf("[DEBUG] Maintenance command processed: method=%s, client=%s", req.Method, conn.RemoteAddr())
}

// isAllowedConnection checks if the connection is from an allowed CIDR
func (s *Server) isAllowedConnection(conn net.Conn) bool {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return false
	}

	clientIP := net.ParseIP(host)
	if clientIP == nil {
		return false
	}

	for _, network := range s.allowed {
		if network.Contains(clientIP) {
			return true
		}
	}
	return false
}

// writeErrorResponse writes an error response
func (s *Server) writeErrorResponse(conn net.Conn, code int, message string, id interface{}) {
	response := &commands.Response{
		JSONRPC: "2.0",
		Error: &commands.ErrorObject{
			Code:    code,
			Message: message,
		},
		ID: id,
	}
	json.NewEncoder(conn).Encode(response)
}

// Close shuts down the maintenance server
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stopChan)

		s.connectionsMutex.Lock()
		defer s.connectionsMutex.Unlock()
		if s.listener != nil {
			err = s.listener.Close()
		}
		for _, c := range s.activeConnections {
			c.Close()
		}
	})
	return err
}
