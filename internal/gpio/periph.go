package gpio

import (
	"fmt"
	"strconv"
	"sync"

	periphgpio "periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"

	"github.com/novy-bridge/internal/pulse"
)

var (
	hostOnce sync.Once
	hostErr  error
)

type periphPin struct {
	pin periphgpio.PinOut
}

func openPeriph(n int) (Output, error) {
	hostOnce.Do(func() {
		_, hostErr = host.Init()
	})
	if hostErr != nil {
		return nil, fmt.Errorf("periph host init: %w", hostErr)
	}

	p := gpioreg.ByName(strconv.Itoa(n))
	if p == nil {
		return nil, fmt.Errorf("gpio %d not found", n)
	}
	if err := p.Out(periphgpio.Low); err != nil {
		return nil, fmt.Errorf("gpio %d: %w", n, err)
	}
	return &periphPin{pin: p}, nil
}

func (p *periphPin) Out(level pulse.Level) error {
	return p.pin.Out(periphgpio.Level(level == pulse.High))
}

func (p *periphPin) Close() error {
	return p.pin.Out(periphgpio.Low)
}
