// Package transceiver drives a 433.92 MHz on/off keyed transmitter through
// a data line and a power-enable line.
package transceiver

import (
	"errors"
	"fmt"
	"log"
	"runtime"
	"sync"
	"time"

	"github.com/novy-bridge/internal/pulse"
)

var (
	ErrBusy          = errors.New("transmitter busy")
	ErrHardwareFault = errors.New("hardware fault")
)

// Pin is a digital output.
type Pin interface {
	Out(level pulse.Level) error
}

// Clock waits for a duration. Implementations used for transmission must be
// accurate to well below the shortest pulse.
type Clock interface {
	Sleep(d time.Duration)
}

// State is the driver's position in its power/transmit cycle.
type State int32

const (
	Idle State = iota
	PoweringUp
	Transmitting
	PoweringDown
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case PoweringUp:
		return "powering_up"
	case Transmitting:
		return "transmitting"
	case PoweringDown:
		return "powering_down"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Options holds the power sequencing delays.
type Options struct {
	SettleDelay time.Duration // after power-enable, before the first pulse
	TrailDelay  time.Duration // after the last pulse, before power-disable
}

// Stats counts what the driver has done since start.
type Stats struct {
	Transmissions uint64 `json:"transmissions"`
	Faults        uint64 `json:"faults"`
	LastFault     string `json:"last_fault,omitempty"`
}

// Driver owns the transmitter. One transmission runs at a time; a call made
// while another is in flight fails with ErrBusy.
//
// The air interface has no acknowledgement. A pulse train with bad timing is
// sent without any error and the hood simply does not react; the driver has
// no way to detect that.
type Driver struct {
	mu    sync.Mutex
	state State
	stats Stats

	data  Pin
	power Pin
	clock Clock
	opts  Options
}

// New returns an idle driver. Both lines are expected to be low.
func New(data, power Pin, clock Clock, opts Options) *Driver {
	return &Driver{
		data:  data,
		power: power,
		clock: clock,
		opts:  opts,
	}
}

// State returns the current state.
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Stats returns a copy of the counters.
func (d *Driver) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

func (d *Driver) setState(s State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

// Transmit powers the transmitter up, plays pulses on the data line and
// powers it down again. It blocks for the whole cycle and cannot be
// cancelled once started.
func (d *Driver) Transmit(pulses []pulse.Pulse) error {
	d.mu.Lock()
	if d.state != Idle {
		d.mu.Unlock()
		return ErrBusy
	}
	d.state = PoweringUp
	d.mu.Unlock()

	// Keep the scheduler from moving us between threads mid-train
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := d.power.Out(pulse.High); err != nil {
		return d.fault("power up", err)
	}
	d.clock.Sleep(d.opts.SettleDelay)

	d.setState(Transmitting)
	for i, p := range pulses {
		if err := d.data.Out(p.Level); err != nil {
			return d.fault(fmt.Sprintf("pulse %d of %d", i+1, len(pulses)), err)
		}
		d.clock.Sleep(p.Duration)
	}

	d.setState(PoweringDown)
	if err := d.data.Out(pulse.Low); err != nil {
		return d.fault("data release", err)
	}
	d.clock.Sleep(d.opts.TrailDelay)
	if err := d.power.Out(pulse.Low); err != nil {
		return d.fault("power down", err)
	}

	d.mu.Lock()
	d.state = Idle
	d.stats.Transmissions++
	d.mu.Unlock()
	return nil
}

// fault drops both lines as far as the hardware allows and returns to Idle.
func (d *Driver) fault(stage string, cause error) error {
	err := fmt.Errorf("%w: %s: %v", ErrHardwareFault, stage, cause)
	log.Printf("[ERROR] Transmitter %v", err)

	if e := d.data.Out(pulse.Low); e != nil {
		log.Printf("[ERROR] Could not release data line: %v", e)
	}
	if e := d.power.Out(pulse.Low); e != nil {
		log.Printf("[ERROR] Could not release power line: %v", e)
	}

	d.mu.Lock()
	d.state = Idle
	d.stats.Faults++
	d.stats.LastFault = err.Error()
	d.mu.Unlock()
	return err
}

// Release drives both lines low. It is meant for shutdown and fails with
// ErrBusy while a transmission is running.
func (d *Driver) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != Idle {
		return ErrBusy
	}
	if err := d.data.Out(pulse.Low); err != nil {
		return fmt.Errorf("%w: data line: %v", ErrHardwareFault, err)
	}
	if err := d.power.Out(pulse.Low); err != nil {
		return fmt.Errorf("%w: power line: %v", ErrHardwareFault, err)
	}
	return nil
}
