package gpio

import (
	"testing"

	"github.com/novy-bridge/internal/pulse"
)

func TestOpenRejectsUnknownBackend(t *testing.T) {
	tests := []struct {
		name    string
		backend string
		pin     int
	}{
		{"unknown backend", "wiringpi", 3},
		{"empty backend", "", 3},
		{"negative pin", "periph", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Open(tt.backend, tt.pin)
			if err == nil {
				out.Close()
				t.Errorf("Open(%q, %d) succeeded, want error", tt.backend, tt.pin)
			}
		})
	}
}

func TestStubBackend(t *testing.T) {
	out, err := Open("stub", 3)
	if err != nil {
		t.Fatalf("Open(stub) error = %v", err)
	}
	defer out.Close()

	for _, level := range []pulse.Level{pulse.High, pulse.High, pulse.Low, pulse.High} {
		if err := out.Out(level); err != nil {
			t.Fatalf("Out(%v) error = %v", level, err)
		}
	}

	s := out.(*stubOutput)
	if s.level != pulse.High || s.changes != 3 {
		t.Errorf("level = %v, changes = %d, want High, 3", s.level, s.changes)
	}
}
