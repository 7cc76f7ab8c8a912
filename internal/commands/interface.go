package commands

import (
	"context"
	"errors"
	"sort"

	"github.com/novy-bridge/internal/codes"
	"github.com/novy-bridge/internal/dispatch"
)

// CommandHandler defines the interface for command handlers
type CommandHandler interface {
	// Handle processes a command and returns the response
	Handle(ctx context.Context, params []string) (interface{}, error)

	// GetName returns the command name
	GetName() string

	// GetDescription returns a human-readable description
	GetDescription() string

	// IsReadOnly returns true if the command never transmits
	IsReadOnly() bool
}

// Dispatcher is the part of dispatch.Dispatcher the handlers use
type Dispatcher interface {
	Dispatch(ctx context.Context, device int, command string) error
	Preview(device int, command string) (dispatch.Preview, error)
	Status() dispatch.Status
	CodeTable() codes.Snapshot
}

// CommandRegistry manages available commands
type CommandRegistry struct {
	handlers map[string]CommandHandler
}

// NewCommandRegistry creates a new command registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		handlers: make(map[string]CommandHandler),
	}
}

// Register adds a command handler to the registry
func (r *CommandRegistry) Register(handler CommandHandler) {
	r.handlers[handler.GetName()] = handler
}

// Get returns a command handler by name
func (r *CommandRegistry) Get(name string) (CommandHandler, bool) {
	handler, exists := r.handlers[name]
	return handler, exists
}

// List returns all registered command names in sorted order
func (r *CommandRegistry) List() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ReadOnly returns a registry holding only the read-only handlers
func (r *CommandRegistry) ReadOnly() *CommandRegistry {
	ro := NewCommandRegistry()
	for _, h := range r.handlers {
		if _, ok := h.(*ListCommandHandler); ok {
			ro.Register(NewListCommandHandler(ro))
			continue
		}
		if h.IsReadOnly() {
			ro.Register(h)
		}
	}
	return ro
}

// CommandError represents a command-specific error
type CommandError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *CommandError) Error() string {
	return e.Message
}

// Common error codes
const (
	ErrNotFound      = dispatch.CodeNotFound
	ErrInvalidLength = dispatch.CodeInvalidLength
	ErrBusy          = dispatch.CodeBusy
	ErrHardwareFault = dispatch.CodeHardwareFault
	ErrUnavailable   = dispatch.CodeUnavailable
	ErrInternal      = dispatch.CodeInternal
	ErrInvalidParams = "INVALID_PARAMS"
	ErrUnauthorized  = "UNAUTHORIZED"
)

// toCommandError converts a dispatcher error into a CommandError
func toCommandError(err error) error {
	if err == nil {
		return nil
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr
	}
	return &CommandError{Code: dispatch.Code(err), Message: err.Error()}
}
