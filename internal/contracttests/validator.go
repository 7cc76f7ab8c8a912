// Package contracttests checks the wire contract of the JSON-RPC surfaces
// end to end: envelopes, error objects and the frames the bridge would key.
package contracttests

import (
	"encoding/json"
	"fmt"
	"strings"
)

// JSONRPCEnvelope validates JSON-RPC 2.0 envelope structure
type JSONRPCEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
}

// ValidateEnvelope validates JSON-RPC 2.0 envelope compliance
func ValidateEnvelope(data []byte) error {
	var envelope JSONRPCEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	// Check jsonrpc version
	if envelope.JSONRPC != "2.0" {
		return fmt.Errorf("jsonrpc must be '2.0', got '%s'", envelope.JSONRPC)
	}

	// Check id is present
	if envelope.ID == nil {
		return fmt.Errorf("id field is required")
	}

	// Check mutual exclusivity of result and error
	hasResult := len(envelope.Result) > 0
	hasError := len(envelope.Error) > 0

	if hasResult && hasError {
		return fmt.Errorf("both result and error cannot be present")
	}

	if !hasResult && !hasError {
		return fmt.Errorf("either result or error must be present")
	}

	return nil
}

// ValidateErrorResponse validates JSON-RPC error structure
func ValidateErrorResponse(errorData json.RawMessage) error {
	var errorObj map[string]interface{}
	if err := json.Unmarshal(errorData, &errorObj); err != nil {
		return fmt.Errorf("error must be an object: %w", err)
	}

	code, hasCode := errorObj["code"]
	if !hasCode {
		return fmt.Errorf("error object must have 'code' field")
	}

	message, hasMessage := errorObj["message"]
	if !hasMessage {
		return fmt.Errorf("error object must have 'message' field")
	}

	if _, ok := code.(float64); !ok {
		return fmt.Errorf("error code must be numeric")
	}

	if _, ok := message.(string); !ok {
		return fmt.Errorf("error message must be string")
	}

	return nil
}

// ValidateFrame checks that frame is prefix followed by a 4 bit device code
// and a 4 or 10 bit command code
func ValidateFrame(frame, prefix string) error {
	if strings.Trim(frame, "01") != "" {
		return fmt.Errorf("frame %q contains characters other than 0 and 1", frame)
	}
	if len(frame) != 12 && len(frame) != 18 {
		return fmt.Errorf("frame must be 12 or 18 bits, got %d", len(frame))
	}
	if !strings.HasPrefix(frame, prefix) {
		return fmt.Errorf("frame %q does not start with prefix %q", frame, prefix)
	}
	return nil
}

// ValidatePreview checks that a preview result is self-consistent: the
// frame is the concatenation of its parts and the pulse count matches two
// pulses per bit plus one gap per repetition
func ValidatePreview(preview map[string]interface{}) error {
	for _, field := range []string{"prefix", "device_code", "command_code", "frame"} {
		if _, ok := preview[field].(string); !ok {
			return fmt.Errorf("%s field must be a string", field)
		}
	}
	for _, field := range []string{"device", "bits", "repeats", "pulses", "duration_ms"} {
		if _, ok := preview[field].(float64); !ok {
			return fmt.Errorf("%s field must be a number", field)
		}
	}

	frame := preview["frame"].(string)
	if err := ValidateFrame(frame, preview["prefix"].(string)); err != nil {
		return err
	}
	if joined := preview["prefix"].(string) + preview["device_code"].(string) + preview["command_code"].(string); joined != frame {
		return fmt.Errorf("frame %q is not prefix+device+command %q", frame, joined)
	}

	bits := int(preview["bits"].(float64))
	if bits != len(frame) {
		return fmt.Errorf("bits = %d, frame has %d", bits, len(frame))
	}
	repeats := int(preview["repeats"].(float64))
	if repeats < 1 {
		return fmt.Errorf("repeats must be at least 1, got %d", repeats)
	}
	if pulses := int(preview["pulses"].(float64)); pulses != (2*bits+1)*repeats {
		return fmt.Errorf("pulses = %d, want %d", pulses, (2*bits+1)*repeats)
	}
	if preview["duration_ms"].(float64) <= 0 {
		return fmt.Errorf("duration_ms must be positive")
	}
	return nil
}

// CompareEnvelopes compares two JSON-RPC envelopes for structural equality
func CompareEnvelopes(expected, actual []byte) error {
	if err := ValidateEnvelope(expected); err != nil {
		return fmt.Errorf("expected envelope invalid: %w", err)
	}
	if err := ValidateEnvelope(actual); err != nil {
		return fmt.Errorf("actual envelope invalid: %w", err)
	}

	var expEnv, actEnv JSONRPCEnvelope
	if err := json.Unmarshal(expected, &expEnv); err != nil {
		return fmt.Errorf("failed to unmarshal expected: %w", err)
	}
	if err := json.Unmarshal(actual, &actEnv); err != nil {
		return fmt.Errorf("failed to unmarshal actual: %w", err)
	}

	// Compare id (allowing for different types but same value)
	if fmt.Sprintf("%v", expEnv.ID) != fmt.Sprintf("%v", actEnv.ID) {
		return fmt.Errorf("id mismatch: expected '%v', got '%v'", expEnv.ID, actEnv.ID)
	}

	if len(expEnv.Result) > 0 && len(actEnv.Result) == 0 {
		return fmt.Errorf("expected result but got none")
	}
	if len(expEnv.Error) > 0 && len(actEnv.Error) == 0 {
		return fmt.Errorf("expected error but got none")
	}

	return nil
}
