package codes

import (
	"errors"
	"testing"
)

func TestDefaultDeviceCodes(t *testing.T) {
	want := []Bits{"0101", "1001", "0001", "1110", "0110", "1010", "0010", "1100", "0100", "1000"}
	table := Default()

	for i, w := range want {
		got, err := table.Device(i)
		if err != nil {
			t.Fatalf("Device(%d) error = %v", i, err)
		}
		if got != w {
			t.Errorf("Device(%d) = %s, want %s", i, got, w)
		}
	}

	if table.Prefix() != "0101" {
		t.Errorf("Prefix() = %s, want 0101", table.Prefix())
	}
}

func TestDefaultCommandCodes(t *testing.T) {
	tests := []struct {
		name string
		want Bits
	}{
		{"light", "0111010001"},
		{"power", "0111010011"},
		{"plus", "0101"},
		{"minus", "0110"},
		{"novy", "0100"},
		{"Light", "0111010001"},
		{" NOVY ", "0100"},
	}

	table := Default()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, got, err := table.LookupCommand(tt.name)
			if err != nil {
				t.Fatalf("LookupCommand(%q) error = %v", tt.name, err)
			}
			if got != tt.want {
				t.Errorf("LookupCommand(%q) = %s, want %s", tt.name, got, tt.want)
			}
		})
	}
}

func TestLookupNotFound(t *testing.T) {
	table := Default()

	for _, index := range []int{-1, 10, 99} {
		if _, err := table.Device(index); !errors.Is(err, ErrNotFound) {
			t.Errorf("Device(%d) error = %v, want ErrNotFound", index, err)
		}
	}

	for _, name := range []string{"Blink", "", "lights"} {
		if _, _, err := table.LookupCommand(name); !errors.Is(err, ErrNotFound) {
			t.Errorf("LookupCommand(%q) error = %v, want ErrNotFound", name, err)
		}
	}
}

func TestCommandCodeLen(t *testing.T) {
	table := Default()
	for _, c := range Commands {
		code, err := table.Command(c)
		if err != nil {
			t.Fatalf("Command(%s) error = %v", c, err)
		}
		if code.Len() != c.CodeLen() {
			t.Errorf("%s code %s has %d bits, want %d", c, code, code.Len(), c.CodeLen())
		}
	}
}

func TestNewMatchesDefault(t *testing.T) {
	def := Default().Snapshot()

	table, err := New(def.Prefix, def.Devices, def.Commands)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	got := table.Snapshot()
	if got.Prefix != def.Prefix {
		t.Errorf("prefix = %s, want %s", got.Prefix, def.Prefix)
	}
	for i := range def.Devices {
		if got.Devices[i] != def.Devices[i] {
			t.Errorf("device %d = %s, want %s", i, got.Devices[i], def.Devices[i])
		}
	}
	for name, code := range def.Commands {
		if got.Commands[name] != code {
			t.Errorf("command %s = %s, want %s", name, got.Commands[name], code)
		}
	}
}

func TestNewRejectsBadTables(t *testing.T) {
	def := Default().Snapshot()
	commandsWith := func(name, code string) map[string]string {
		m := make(map[string]string, len(def.Commands))
		for k, v := range def.Commands {
			m[k] = v
		}
		if code == "" {
			delete(m, name)
		} else {
			m[name] = code
		}
		return m
	}

	tests := []struct {
		name     string
		prefix   string
		devices  []string
		commands map[string]string
		wantErr  error
	}{
		{"short prefix", "010", def.Devices, def.Commands, ErrInvalidLength},
		{"non binary prefix", "01a1", def.Devices, def.Commands, ErrInvalidBits},
		{"nine devices", def.Prefix, def.Devices[:9], def.Commands, ErrInvalidLength},
		{"long device", def.Prefix, append([]string{"01011"}, def.Devices[1:]...), def.Commands, ErrInvalidLength},
		{"short light", def.Prefix, def.Devices, commandsWith("light", "0111"), ErrInvalidLength},
		{"padded plus", def.Prefix, def.Devices, commandsWith("plus", "0000000101"), ErrInvalidLength},
		{"missing novy", def.Prefix, def.Devices, commandsWith("novy", ""), ErrNotFound},
		{"unknown command", def.Prefix, def.Devices, commandsWith("blink", "0101"), ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.prefix, tt.devices, tt.commands)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("New() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestBitsValid(t *testing.T) {
	tests := []struct {
		bits Bits
		want bool
	}{
		{"0101", true},
		{"", true},
		{"0102", false},
		{"01 1", false},
	}

	for _, tt := range tests {
		if got := tt.bits.Valid(); got != tt.want {
			t.Errorf("Bits(%q).Valid() = %v, want %v", tt.bits, got, tt.want)
		}
	}
}

func TestCommandNames(t *testing.T) {
	want := []string{"light", "minus", "novy", "plus", "power"}
	got := CommandNames()
	if len(got) != len(want) {
		t.Fatalf("CommandNames() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("CommandNames()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}
