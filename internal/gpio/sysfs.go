package gpio

import (
	"fmt"

	sysfsgpio "github.com/davecheney/gpio"

	"github.com/novy-bridge/internal/pulse"
)

type sysfsPin struct {
	pin sysfsgpio.Pin
}

func openSysfs(n int) (Output, error) {
	p, err := sysfsgpio.OpenPin(n, sysfsgpio.ModeOutput)
	if err != nil {
		return nil, fmt.Errorf("gpio %d: %w", n, err)
	}
	p.Clear()
	if err := p.Err(); err != nil {
		p.Close()
		return nil, fmt.Errorf("gpio %d: %w", n, err)
	}
	return &sysfsPin{pin: p}, nil
}

func (p *sysfsPin) Out(level pulse.Level) error {
	if level == pulse.High {
		p.pin.Set()
	} else {
		p.pin.Clear()
	}
	return p.pin.Err()
}

func (p *sysfsPin) Close() error {
	p.pin.Clear()
	return p.pin.Close()
}
