package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/novy-bridge/internal/codes"
	"github.com/novy-bridge/internal/dispatch"
)

var descriptions = map[codes.Command]string{
	codes.Light: "Toggle the hood light",
	codes.Power: "Toggle the hood motor on or off",
	codes.Plus:  "Raise the extraction level",
	codes.Minus: "Lower the extraction level",
	codes.Novy:  "Press the Novy button (intensive mode)",
}

// ActionResult is returned by every transmitting command
type ActionResult struct {
	Device  int    `json:"device"`
	Command string `json:"command"`
	Result  string `json:"result"`
}

// ActionCommandHandler transmits one hood command to a device
type ActionCommandHandler struct {
	command    codes.Command
	dispatcher Dispatcher
}

// NewActionCommandHandler creates a handler for command
func NewActionCommandHandler(command codes.Command, dispatcher Dispatcher) *ActionCommandHandler {
	return &ActionCommandHandler{
		command:    command,
		dispatcher: dispatcher,
	}
}

// Handle expects one parameter, the device index
func (h *ActionCommandHandler) Handle(ctx context.Context, params []string) (interface{}, error) {
	if len(params) != 1 {
		return nil, &CommandError{Code: ErrInvalidParams, Message: "expected one parameter: device index"}
	}
	device, err := parseDevice(params[0])
	if err != nil {
		return nil, err
	}

	if err := h.dispatcher.Dispatch(ctx, device, h.command.String()); err != nil {
		return nil, toCommandError(err)
	}

	return ActionResult{
		Device:  device,
		Command: h.command.String(),
		Result:  dispatch.CodeOK,
	}, nil
}

// GetName returns the command name
func (h *ActionCommandHandler) GetName() string {
	return h.command.String()
}

// GetDescription returns the command description
func (h *ActionCommandHandler) GetDescription() string {
	return descriptions[h.command]
}

// IsReadOnly returns false (the command is transmitted)
func (h *ActionCommandHandler) IsReadOnly() bool {
	return false
}

// StatusCommandHandler reports dispatcher and driver state
type StatusCommandHandler struct {
	dispatcher Dispatcher
}

// NewStatusCommandHandler creates a new status command handler
func NewStatusCommandHandler(dispatcher Dispatcher) *StatusCommandHandler {
	return &StatusCommandHandler{dispatcher: dispatcher}
}

// Handle returns the dispatcher status
func (h *StatusCommandHandler) Handle(ctx context.Context, params []string) (interface{}, error) {
	if len(params) > 0 {
		return nil, &CommandError{Code: ErrInvalidParams, Message: "This command does not accept parameters"}
	}
	return h.dispatcher.Status(), nil
}

func (h *StatusCommandHandler) GetName() string { return "status" }
func (h *StatusCommandHandler) GetDescription() string { return "Get queue, transmitter and counter state" }
func (h *StatusCommandHandler) IsReadOnly() bool { return true }

// CodeTableCommandHandler returns the code table in use
type CodeTableCommandHandler struct {
	dispatcher Dispatcher
}

// NewCodeTableCommandHandler creates a new code table command handler
func NewCodeTableCommandHandler(dispatcher Dispatcher) *CodeTableCommandHandler {
	return &CodeTableCommandHandler{dispatcher: dispatcher}
}

// Handle returns the code table snapshot
func (h *CodeTableCommandHandler) Handle(ctx context.Context, params []string) (interface{}, error) {
	if len(params) > 0 {
		return nil, &CommandError{Code: ErrInvalidParams, Message: "This command does not accept parameters"}
	}
	return h.dispatcher.CodeTable(), nil
}

func (h *CodeTableCommandHandler) GetName() string { return "code_table" }
func (h *CodeTableCommandHandler) GetDescription() string { return "Get the prefix, device and command codes" }
func (h *CodeTableCommandHandler) IsReadOnly() bool { return true }

// PreviewCommandHandler shows the frame and pulse train a command would send
type PreviewCommandHandler struct {
	dispatcher Dispatcher
}

// NewPreviewCommandHandler creates a new preview command handler
func NewPreviewCommandHandler(dispatcher Dispatcher) *PreviewCommandHandler {
	return &PreviewCommandHandler{dispatcher: dispatcher}
}

// Handle expects the device index and the command name
func (h *PreviewCommandHandler) Handle(ctx context.Context, params []string) (interface{}, error) {
	if len(params) != 2 {
		return nil, &CommandError{Code: ErrInvalidParams, Message: "expected two parameters: device index, command"}
	}
	device, err := parseDevice(params[0])
	if err != nil {
		return nil, err
	}

	p, err := h.dispatcher.Preview(device, params[1])
	if err != nil {
		return nil, toCommandError(err)
	}
	return p, nil
}

func (h *PreviewCommandHandler) GetName() string { return "preview" }
func (h *PreviewCommandHandler) GetDescription() string {
	return "Show the frame, repeats and airtime of a command without sending it"
}
func (h *PreviewCommandHandler) IsReadOnly() bool { return true }

// ListCommandHandler describes the registered commands
type ListCommandHandler struct {
	registry *CommandRegistry
}

// NewListCommandHandler creates a handler listing registry
func NewListCommandHandler(registry *CommandRegistry) *ListCommandHandler {
	return &ListCommandHandler{registry: registry}
}

// Handle returns a description of every command
func (h *ListCommandHandler) Handle(ctx context.Context, params []string) (interface{}, error) {
	return GetAvailableCommands(h.registry), nil
}

func (h *ListCommandHandler) GetName() string { return "commands" }
func (h *ListCommandHandler) GetDescription() string { return "List the available commands" }
func (h *ListCommandHandler) IsReadOnly() bool { return true }

// CommandInfo provides information about a command
type CommandInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ReadOnly    bool   `json:"read_only"`
}

// GetAvailableCommands returns the registered commands sorted by name
func GetAvailableCommands(registry *CommandRegistry) []CommandInfo {
	names := registry.List()
	infos := make([]CommandInfo, 0, len(names))
	for _, name := range names {
		h, _ := registry.Get(name)
		infos = append(infos, CommandInfo{
			Name:        h.GetName(),
			Description: h.GetDescription(),
			ReadOnly:    h.IsReadOnly(),
		})
	}
	return infos
}

// parseDevice reads a device index parameter
func parseDevice(param string) (int, error) {
	device, err := strconv.Atoi(strings.TrimSpace(param))
	if err != nil {
		return 0, &CommandError{Code: ErrInvalidParams, Message: fmt.Sprintf("device index %q is not an integer", param)}
	}
	return device, nil
}

// RegisterCoreCommands registers the hood actions and the read-only commands
func RegisterCoreCommands(registry *CommandRegistry, dispatcher Dispatcher) {
	for _, c := range codes.Commands {
		registry.Register(NewActionCommandHandler(c, dispatcher))
	}
	registry.Register(NewStatusCommandHandler(dispatcher))
	registry.Register(NewCodeTableCommandHandler(dispatcher))
	registry.Register(NewPreviewCommandHandler(dispatcher))
	registry.Register(NewListCommandHandler(registry))
}
