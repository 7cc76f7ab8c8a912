// Package frame composes Novy transmission frames.
//
// Frame layout:
//
//	+--------+--------+-----------------+
//	| Prefix | Device | Command         |
//	+--------+--------+-----------------+
//	| 4 bits | 4 bits | 4 or 10 bits    |
//	+--------+--------+-----------------+
//
// A frame is immutable once built and is retransmitted verbatim for every
// repetition.
package frame

import (
	"fmt"

	"github.com/novy-bridge/internal/codes"
)

const (
	deviceOffset  = codes.PrefixLen
	commandOffset = codes.PrefixLen + codes.DeviceLen
)

// Frame is an ordered bit sequence: Prefix ∥ DeviceCode ∥ CommandCode.
type Frame struct {
	bits codes.Bits
}

// Bits returns the frame's bit pattern.
func (f Frame) Bits() codes.Bits { return f.bits }

// Len returns the number of bits in the frame.
func (f Frame) Len() int { return len(f.bits) }

// Bit reports whether bit i is a one.
func (f Frame) Bit(i int) bool { return f.bits[i] == '1' }

func (f Frame) String() string { return string(f.bits) }

// Encode concatenates prefix, device and command in that order.
func Encode(prefix, device, command codes.Bits) (Frame, error) {
	if err := checkLen("prefix", prefix, codes.PrefixLen); err != nil {
		return Frame{}, err
	}
	if err := checkLen("device", device, codes.DeviceLen); err != nil {
		return Frame{}, err
	}
	if command.Len() != codes.ShortCommandLen && command.Len() != codes.LongCommandLen {
		return Frame{}, fmt.Errorf("command %q has %d bits, want %d or %d: %w",
			command, command.Len(), codes.ShortCommandLen, codes.LongCommandLen, codes.ErrInvalidLength)
	}
	for _, b := range []codes.Bits{prefix, device, command} {
		if !b.Valid() {
			return Frame{}, fmt.Errorf("%q: %w", b, codes.ErrInvalidBits)
		}
	}

	return Frame{bits: prefix + device + command}, nil
}

func checkLen(what string, b codes.Bits, want int) error {
	if b.Len() != want {
		return fmt.Errorf("%s %q has %d bits, want %d: %w", what, b, b.Len(), want, codes.ErrInvalidLength)
	}
	return nil
}

// Split cuts a frame back into its three fields at the fixed offsets.
func Split(f Frame) (prefix, device, command codes.Bits, err error) {
	n := f.Len() - commandOffset
	if n != codes.ShortCommandLen && n != codes.LongCommandLen {
		return "", "", "", fmt.Errorf("frame %q has %d bits: %w", f.bits, f.Len(), codes.ErrInvalidLength)
	}
	return f.bits[:deviceOffset], f.bits[deviceOffset:commandOffset], f.bits[commandOffset:], nil
}

// Job is one transmission: a resolved frame and how many times to send it.
type Job struct {
	Device  codes.DeviceID
	Command codes.Command
	Frame   Frame
	Repeats int
}

// Encoder builds frames and decides their repeat count.
type Encoder struct {
	repeats   int
	overrides map[codes.Command]int
}

// NewEncoder returns an encoder sending every frame repeats times unless an
// override exists for the command. Override keys are command names.
func NewEncoder(repeats int, overrides map[string]int) (*Encoder, error) {
	if repeats < 1 {
		return nil, fmt.Errorf("repeat count must be at least 1, got %d", repeats)
	}
	e := &Encoder{repeats: repeats, overrides: make(map[codes.Command]int, len(overrides))}
	for name, n := range overrides {
		c, err := codes.ParseCommand(name)
		if err != nil {
			return nil, fmt.Errorf("repeat override: %w", err)
		}
		if n < 1 {
			return nil, fmt.Errorf("repeat override for %s must be at least 1, got %d", c, n)
		}
		e.overrides[c] = n
	}
	return e, nil
}

// Encode builds a frame; see the package-level Encode.
func (e *Encoder) Encode(prefix, device, command codes.Bits) (Frame, error) {
	return Encode(prefix, device, command)
}

// Repeats returns how many times a frame for c is transmitted.
func (e *Encoder) Repeats(c codes.Command) int {
	if n, ok := e.overrides[c]; ok {
		return n
	}
	return e.repeats
}

// Build resolves device and command through table into a Job.
func (e *Encoder) Build(table *codes.Table, device int, command codes.Command) (Job, error) {
	id, err := codes.ParseDevice(device)
	if err != nil {
		return Job{}, err
	}
	dev, err := table.Device(device)
	if err != nil {
		return Job{}, err
	}
	cmd, err := table.Command(command)
	if err != nil {
		return Job{}, err
	}
	if cmd.Len() != command.CodeLen() {
		return Job{}, fmt.Errorf("command %s code %q has %d bits, want %d: %w",
			command, cmd, cmd.Len(), command.CodeLen(), codes.ErrInvalidLength)
	}

	f, err := e.Encode(table.Prefix(), dev, cmd)
	if err != nil {
		return Job{}, err
	}

	return Job{
		Device:  id,
		Command: command,
		Frame:   f,
		Repeats: e.Repeats(command),
	}, nil
}
