// Package codes holds the Novy code table: the prefix, the ten paired device
// codes and the command codes. The table is the protocol's fixed vocabulary;
// any deviation silences or misaddresses real hardware.
package codes

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidLength = errors.New("invalid code length")
	ErrInvalidBits   = errors.New("code must contain only 0 and 1")
)

const (
	NumDevices = 10

	PrefixLen       = 4
	DeviceLen       = 4
	ShortCommandLen = 4
	LongCommandLen  = 10
)

// Bits is an ordered bit pattern written as a string of '0' and '1'.
type Bits string

// Valid reports whether b only contains '0' and '1'.
func (b Bits) Valid() bool {
	for i := 0; i < len(b); i++ {
		if b[i] != '0' && b[i] != '1' {
			return false
		}
	}
	return true
}

// Len returns the number of bits.
func (b Bits) Len() int { return len(b) }

// DeviceID selects one of the paired hood units.
type DeviceID int

const (
	D0 DeviceID = iota
	D1
	D2
	D3
	D4
	D5
	D6
	D7
	D8
	D9
)

// ParseDevice converts a device index into a DeviceID.
func ParseDevice(index int) (DeviceID, error) {
	if index < 0 || index >= NumDevices {
		return 0, fmt.Errorf("device %d: %w", index, ErrNotFound)
	}
	return DeviceID(index), nil
}

// Command is a hood action.
type Command int

const (
	Light Command = iota
	Power
	Plus
	Minus
	Novy
)

// Commands lists every command in table order.
var Commands = []Command{Light, Power, Plus, Minus, Novy}

var commandNames = map[Command]string{
	Light: "light",
	Power: "power",
	Plus:  "plus",
	Minus: "minus",
	Novy:  "novy",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("command(%d)", int(c))
}

// CodeLen is the bit length a command code must have.
func (c Command) CodeLen() int {
	switch c {
	case Light, Power:
		return LongCommandLen
	default:
		return ShortCommandLen
	}
}

// ParseCommand resolves a command name, ignoring case and surrounding space.
func ParseCommand(name string) (Command, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for c, cn := range commandNames {
		if cn == n {
			return c, nil
		}
	}
	return 0, fmt.Errorf("command %q: %w", name, ErrNotFound)
}

// Table maps devices and commands to their bit patterns. It is read-only
// after construction and safe for concurrent use.
type Table struct {
	prefix   Bits
	devices  [NumDevices]Bits
	commands map[Command]Bits
}

// Default returns the factory Novy code table.
func Default() *Table {
	return &Table{
		prefix: "0101",
		devices: [NumDevices]Bits{
			"0101", "1001", "0001", "1110", "0110",
			"1010", "0010", "1100", "0100", "1000",
		},
		commands: map[Command]Bits{
			Light: "0111010001",
			Power: "0111010011",
			Plus:  "0101",
			Minus: "0110",
			Novy:  "0100",
		},
	}
}

// New builds a table from configured strings. Every code is checked for
// its alphabet and its category length.
func New(prefix string, devices []string, commands map[string]string) (*Table, error) {
	t := &Table{commands: make(map[Command]Bits, len(Commands))}

	p, err := checkCode("prefix", prefix, PrefixLen)
	if err != nil {
		return nil, err
	}
	t.prefix = p

	if len(devices) != NumDevices {
		return nil, fmt.Errorf("expected %d device codes, got %d: %w", NumDevices, len(devices), ErrInvalidLength)
	}
	for i, d := range devices {
		code, err := checkCode(fmt.Sprintf("device %d", i), d, DeviceLen)
		if err != nil {
			return nil, err
		}
		t.devices[i] = code
	}

	for name, code := range commands {
		c, err := ParseCommand(name)
		if err != nil {
			return nil, err
		}
		bits, err := checkCode("command "+c.String(), code, c.CodeLen())
		if err != nil {
			return nil, err
		}
		t.commands[c] = bits
	}
	for _, c := range Commands {
		if _, ok := t.commands[c]; !ok {
			return nil, fmt.Errorf("command %s has no code: %w", c, ErrNotFound)
		}
	}

	return t, nil
}

func checkCode(what, code string, want int) (Bits, error) {
	b := Bits(code)
	if !b.Valid() {
		return "", fmt.Errorf("%s %q: %w", what, code, ErrInvalidBits)
	}
	if b.Len() != want {
		return "", fmt.Errorf("%s %q has %d bits, want %d: %w", what, code, b.Len(), want, ErrInvalidLength)
	}
	return b, nil
}

// Prefix returns the protocol family prefix.
func (t *Table) Prefix() Bits { return t.prefix }

// Device returns the code of the device at index.
func (t *Table) Device(index int) (Bits, error) {
	id, err := ParseDevice(index)
	if err != nil {
		return "", err
	}
	return t.devices[id], nil
}

// Command returns the code of c.
func (t *Table) Command(c Command) (Bits, error) {
	code, ok := t.commands[c]
	if !ok {
		return "", fmt.Errorf("%s: %w", c, ErrNotFound)
	}
	return code, nil
}

// LookupCommand resolves a command by name and returns its code.
func (t *Table) LookupCommand(name string) (Command, Bits, error) {
	c, err := ParseCommand(name)
	if err != nil {
		return 0, "", err
	}
	code, err := t.Command(c)
	if err != nil {
		return 0, "", err
	}
	return c, code, nil
}

// Snapshot is a serialisable copy of a table.
type Snapshot struct {
	Prefix   string            `json:"prefix"`
	Devices  []string          `json:"devices"`
	Commands map[string]string `json:"commands"`
}

// Snapshot returns a copy of the table for status surfaces.
func (t *Table) Snapshot() Snapshot {
	s := Snapshot{
		Prefix:   string(t.prefix),
		Devices:  make([]string, 0, NumDevices),
		Commands: make(map[string]string, len(t.commands)),
	}
	for _, d := range t.devices {
		s.Devices = append(s.Devices, string(d))
	}
	for c, code := range t.commands {
		s.Commands[c.String()] = string(code)
	}
	return s
}

// CommandNames returns the command vocabulary sorted by name.
func CommandNames() []string {
	names := make([]string, 0, len(commandNames))
	for _, n := range commandNames {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
