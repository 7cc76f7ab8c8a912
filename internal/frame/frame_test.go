package frame

import (
	"errors"
	"testing"

	"github.com/novy-bridge/internal/codes"
)

func TestEncodeExamples(t *testing.T) {
	tests := []struct {
		name    string
		device  int
		command codes.Command
		want    codes.Bits
	}{
		{"device 0 light", 0, codes.Light, "010101010111010001"},
		{"device 9 power", 9, codes.Power, "010110000111010011"},
		{"device 3 plus", 3, codes.Plus, "010111100101"},
		{"device 5 minus", 5, codes.Minus, "010110100110"},
		{"device 8 novy", 8, codes.Novy, "010101000100"},
	}

	enc, err := NewEncoder(10, nil)
	if err != nil {
		t.Fatalf("NewEncoder() error = %v", err)
	}
	table := codes.Default()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job, err := enc.Build(table, tt.device, tt.command)
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			if job.Frame.Bits() != tt.want {
				t.Errorf("frame = %s, want %s", job.Frame, tt.want)
			}
			if job.Frame.Len() != len(tt.want) {
				t.Errorf("frame length = %d, want %d", job.Frame.Len(), len(tt.want))
			}
			if job.Repeats != 10 {
				t.Errorf("repeats = %d, want 10", job.Repeats)
			}
			if int(job.Device) != tt.device || job.Command != tt.command {
				t.Errorf("job addressed %d/%s, want %d/%s", job.Device, job.Command, tt.device, tt.command)
			}
		})
	}
}

func TestFrameLengths(t *testing.T) {
	enc, _ := NewEncoder(3, nil)
	table := codes.Default()

	want := map[codes.Command]int{
		codes.Light: 18,
		codes.Power: 18,
		codes.Plus:  12,
		codes.Minus: 12,
		codes.Novy:  12,
	}

	for device := 0; device < codes.NumDevices; device++ {
		for _, c := range codes.Commands {
			job, err := enc.Build(table, device, c)
			if err != nil {
				t.Fatalf("Build(%d, %s) error = %v", device, c, err)
			}
			if job.Frame.Len() != want[c] {
				t.Errorf("Build(%d, %s) frame length = %d, want %d", device, c, job.Frame.Len(), want[c])
			}
		}
	}
}

func TestSplitRecoversFields(t *testing.T) {
	table := codes.Default()

	for device := 0; device < codes.NumDevices; device++ {
		for _, c := range codes.Commands {
			dev, _ := table.Device(device)
			cmd, _ := table.Command(c)

			f, err := Encode(table.Prefix(), dev, cmd)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}

			p, d, k, err := Split(f)
			if err != nil {
				t.Fatalf("Split() error = %v", err)
			}
			if p != table.Prefix() || d != dev || k != cmd {
				t.Errorf("Split(%s) = %s/%s/%s, want %s/%s/%s", f, p, d, k, table.Prefix(), dev, cmd)
			}
		}
	}
}

func TestSplitRejectsForeignFrame(t *testing.T) {
	if _, _, _, err := Split(Frame{bits: "0101010101"}); !errors.Is(err, codes.ErrInvalidLength) {
		t.Errorf("Split() error = %v, want ErrInvalidLength", err)
	}
}

func TestEncodeInvalidLength(t *testing.T) {
	tests := []struct {
		name    string
		prefix  codes.Bits
		device  codes.Bits
		command codes.Bits
		wantErr error
	}{
		{"short prefix", "010", "0101", "0101", codes.ErrInvalidLength},
		{"long device", "0101", "01010", "0101", codes.ErrInvalidLength},
		{"empty command", "0101", "0101", "", codes.ErrInvalidLength},
		{"seven bit command", "0101", "0101", "0111010", codes.ErrInvalidLength},
		{"non binary command", "0101", "0101", "01x1", codes.ErrInvalidBits},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(tt.prefix, tt.device, tt.command)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Encode() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestBuildNotFound(t *testing.T) {
	enc, _ := NewEncoder(3, nil)
	if _, err := enc.Build(codes.Default(), 10, codes.Light); !errors.Is(err, codes.ErrNotFound) {
		t.Errorf("Build(10) error = %v, want ErrNotFound", err)
	}
	if _, err := enc.Build(codes.Default(), 0, codes.Command(42)); !errors.Is(err, codes.ErrNotFound) {
		t.Errorf("Build(command 42) error = %v, want ErrNotFound", err)
	}
}

func TestRepeatOverrides(t *testing.T) {
	enc, err := NewEncoder(4, map[string]int{"novy": 12})
	if err != nil {
		t.Fatalf("NewEncoder() error = %v", err)
	}

	if got := enc.Repeats(codes.Novy); got != 12 {
		t.Errorf("Repeats(novy) = %d, want 12", got)
	}
	if got := enc.Repeats(codes.Light); got != 4 {
		t.Errorf("Repeats(light) = %d, want 4", got)
	}
}

func TestNewEncoderValidation(t *testing.T) {
	if _, err := NewEncoder(0, nil); err == nil {
		t.Error("Expected error for zero repeats")
	}
	if _, err := NewEncoder(3, map[string]int{"blink": 2}); !errors.Is(err, codes.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown override, got %v", err)
	}
	if _, err := NewEncoder(3, map[string]int{"light": 0}); err == nil {
		t.Error("Expected error for zero override")
	}
}

func TestFrameIsImmutableAcrossBuilds(t *testing.T) {
	enc, _ := NewEncoder(3, nil)
	table := codes.Default()

	a, _ := enc.Build(table, 2, codes.Power)
	b, _ := enc.Build(table, 2, codes.Power)
	if a.Frame != b.Frame {
		t.Errorf("identical inputs produced %s and %s", a.Frame, b.Frame)
	}
}
