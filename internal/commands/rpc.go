package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// JSON-RPC 2.0 error codes
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeCommandFailed  = -32000
	CodeUnauthorized   = -32001
)

// Params holds positional parameters. Clients may send them as strings or
// as numbers; both decode to their string form.
type Params []string

// UnmarshalJSON accepts an array of strings and numbers
func (p *Params) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("params must be an array: %w", err)
	}
	out := make(Params, 0, len(raw))
	for i, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			out = append(out, s)
			continue
		}
		var n json.Number
		dec := json.NewDecoder(bytes.NewReader(r))
		dec.UseNumber()
		if err := dec.Decode(&n); err != nil {
			return fmt.Errorf("param %d must be a string or a number", i)
		}
		out = append(out, n.String())
	}
	*p = out
	return nil
}

// Request represents a JSON-RPC 2.0 request
type Request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  Params      `json:"params,omitempty"`
	ID      interface{} `json:"id"`
}

// Response represents a JSON-RPC 2.0 response
type Response struct {
	JSONRPC string       `json:"jsonrpc"`
	Result  interface{}  `json:"result,omitempty"`
	Error   *ErrorObject `json:"error,omitempty"`
	ID      interface{}  `json:"id"`
}

// ErrorObject is the JSON-RPC error member. Message carries the bridge
// error code (NOT_FOUND, BUSY, ...) and Data the human readable detail.
type ErrorObject struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Authorizer decides whether the caller in ctx may run handler
type Authorizer func(ctx context.Context, handler CommandHandler) error

// RPCServer answers JSON-RPC requests from a command registry. It is shared
// by the HTTP API and the maintenance port.
type RPCServer struct {
	registry     *CommandRegistry
	serverHeader string
	authorize    Authorizer
}

// NewRPCServer creates a server over registry
func NewRPCServer(registry *CommandRegistry) *RPCServer {
	return &RPCServer{registry: registry}
}

// WithServerHeader sets the Server header written on HTTP responses
func (s *RPCServer) WithServerHeader(header string) *RPCServer {
	s.serverHeader = header
	return s
}

// WithAuthorizer installs a per-method access check
func (s *RPCServer) WithAuthorizer(a Authorizer) *RPCServer {
	s.authorize = a
	return s
}

// Registry returns the registry the server dispatches to
func (s *RPCServer) Registry() *CommandRegistry {
	return s.registry
}

// HandleRequest handles HTTP POST requests to the JSON-RPC endpoint
func (s *RPCServer) HandleRequest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	// Set response headers
	w.Header().Set("Content-Type", "application/json")
	if s.serverHeader != "" {
		w.Header().Set("Server", s.serverHeader)
	}

	// Only accept POST requests
	if r.Method != http.MethodPost {
		s.writeErrorResponse(w, CodeInvalidRequest, "Invalid Request", nil)
		return
	}

	// Parse JSON-RPC request
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, CodeParseError, "Parse error", nil)
		return
	}

	response := s.Process(r.Context(), &req)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("[ERROR] Failed to encode response: %v", err)
		return
	}

	log.Printf("[DEBUG] JSON-RPC request processed: method=%s, duration=%v", req.Method, time.Since(start))
}

// Process runs one decoded request
func (s *RPCServer) Process(ctx context.Context, req *Request) *Response {
	// Validate JSON-RPC version
	if req.JSONRPC != "2.0" {
		return errorResponse(req.ID, CodeInvalidRequest, "Invalid Request", nil)
	}

	// Find command handler
	handler, exists := s.registry.Get(req.Method)
	if !exists {
		return errorResponse(req.ID, CodeMethodNotFound, "Method not found", nil)
	}

	if s.authorize != nil {
		if err := s.authorize(ctx, handler); err != nil {
			return errorResponse(req.ID, CodeUnauthorized, ErrUnauthorized, err.Error())
		}
	}

	result, err := handler.Handle(ctx, req.Params)
	if err != nil {
		if cmdErr, ok := err.(*CommandError); ok {
			code := CodeCommandFailed
			if cmdErr.Code == ErrInvalidParams {
				code = CodeInvalidParams
			}
			return errorResponse(req.ID, code, cmdErr.Code, cmdErr.Message)
		}

		log.Printf("[ERROR] Command %s failed: %v", req.Method, err)
		return errorResponse(req.ID, CodeInternalError, ErrInternal, nil)
	}

	return &Response{
		JSONRPC: "2.0",
		Result:  result,
		ID:      req.ID,
	}
}

func errorResponse(id interface{}, code int, message string, data interface{}) *Response {
	return &Response{
		JSONRPC: "2.0",
		Error: &ErrorObject{
			Code:    code,
			Message: message,
			Data:    data,
		},
		ID: id,
	}
}

// writeErrorResponse writes an error response
func (s *RPCServer) writeErrorResponse(w http.ResponseWriter, code int, message string, id interface{}) {
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(errorResponse(id, code, message, nil))
}
