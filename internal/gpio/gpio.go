// Package gpio opens the digital outputs that key the transmitter.
package gpio

import (
	"fmt"
	"sync"

	"github.com/novy-bridge/internal/pulse"
)

// Output is a digital output line.
type Output interface {
	Out(level pulse.Level) error
	Close() error
}

// Open returns pin n on the named backend: "periph" (memory-mapped through
// periph.io), "sysfs" (/sys/class/gpio) or "stub" (drives nothing, for
// dry runs on hosts without GPIO).
func Open(backend string, n int) (Output, error) {
	if n < 0 {
		return nil, fmt.Errorf("invalid gpio pin %d", n)
	}
	switch backend {
	case "periph":
		return openPeriph(n)
	case "sysfs":
		return openSysfs(n)
	case "stub":
		return &stubOutput{pin: n}, nil
	default:
		return nil, fmt.Errorf("unsupported gpio backend %q", backend)
	}
}

// stubOutput remembers the last level and counts changes
type stubOutput struct {
	mu      sync.Mutex
	pin     int
	level   pulse.Level
	changes int
}

func (s *stubOutput) Out(level pulse.Level) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if level != s.level {
		s.changes++
	}
	s.level = level
	return nil
}

func (s *stubOutput) Close() error { return nil }
