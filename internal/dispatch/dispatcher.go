// Package dispatch turns (device, command) requests into transmissions. It
// resolves codes, builds the frame and pulse train, and serialises jobs onto
// the transmitter through a bounded FIFO queue served by one worker.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/novy-bridge/internal/codes"
	"github.com/novy-bridge/internal/config"
	"github.com/novy-bridge/internal/events"
	"github.com/novy-bridge/internal/frame"
	"github.com/novy-bridge/internal/pulse"
	"github.com/novy-bridge/internal/transceiver"
)

// ErrClosed is returned for requests made after Close, and for jobs still
// queued when the dispatcher shut down.
var ErrClosed = errors.New("dispatcher closed")

// Transmitter is the hardware side of the dispatcher.
type Transmitter interface {
	Transmit(pulses []pulse.Pulse) error
	State() transceiver.State
	Stats() transceiver.Stats
}

// Result describes the last finished job.
type Result struct {
	Time       time.Time `json:"time"`
	Device     int       `json:"device"`
	Command    string    `json:"command"`
	Frame      string    `json:"frame"`
	Code       string    `json:"result"`
	Error      string    `json:"error,omitempty"`
	DurationMs float64   `json:"duration_ms"`
}

// Status is a point-in-time view of the dispatcher and its transmitter.
type Status struct {
	State      string            `json:"state"`
	Queued     int               `json:"queued"`
	QueueSize  int               `json:"queue_size"`
	Dispatched uint64            `json:"dispatched"`
	Failed     uint64            `json:"failed"`
	Rejected   uint64            `json:"rejected"`
	Driver     transceiver.Stats `json:"driver"`
	Last       *Result           `json:"last,omitempty"`
}

// Preview is what a dispatch would send, without sending it.
type Preview struct {
	Device      int     `json:"device"`
	Command     string  `json:"command"`
	Prefix      string  `json:"prefix"`
	DeviceCode  string  `json:"device_code"`
	CommandCode string  `json:"command_code"`
	Frame       string  `json:"frame"`
	Bits        int     `json:"bits"`
	Repeats     int     `json:"repeats"`
	Pulses      int     `json:"pulses"`
	DurationMs  float64 `json:"duration_ms"`
}

// job is one queued transmission
type job struct {
	frame.Job
	pulses []pulse.Pulse
	queued time.Time
	done   chan error
}

// Dispatcher owns the job queue. It is safe for concurrent use.
type Dispatcher struct {
	table  *codes.Table
	enc    *frame.Encoder
	timing pulse.Timing
	tx     Transmitter
	hub    *events.Hub

	queue    chan job
	stopChan chan struct{}
	wg       sync.WaitGroup

	closeMu sync.RWMutex
	closed  bool

	mu         sync.RWMutex
	dispatched uint64
	failed     uint64
	rejected   uint64
	last       *Result
}

// New builds the code table, encoder and timing profile from cfg and starts
// the worker. hub may be nil.
func New(cfg *config.Config, tx Transmitter, hub *events.Hub) (*Dispatcher, error) {
	table, err := codes.New(cfg.Codes.Prefix, cfg.Codes.Devices, cfg.Codes.Commands)
	if err != nil {
		return nil, fmt.Errorf("code table: %w", err)
	}

	enc, err := frame.NewEncoder(cfg.Protocol.Repeats, cfg.Protocol.RepeatOverrides)
	if err != nil {
		return nil, fmt.Errorf("encoder: %w", err)
	}

	timing := TimingFromConfig(cfg.Protocol)
	if err := timing.Validate(); err != nil {
		return nil, fmt.Errorf("timing: %w", err)
	}

	if cfg.Driver.QueueSize < 1 {
		return nil, fmt.Errorf("queue size must be at least 1, got %d", cfg.Driver.QueueSize)
	}

	d := &Dispatcher{
		table:    table,
		enc:      enc,
		timing:   timing,
		tx:       tx,
		hub:      hub,
		queue:    make(chan job, cfg.Driver.QueueSize),
		stopChan: make(chan struct{}),
	}

	d.wg.Add(1)
	go d.worker()

	return d, nil
}

// TimingFromConfig converts the configured unit multiples into a Timing.
func TimingFromConfig(p config.ProtocolConfig) pulse.Timing {
	return pulse.Timing{
		Unit:     time.Duration(p.UnitUs) * time.Microsecond,
		Zero:     p.Zero,
		One:      p.One,
		GapUnits: p.GapUnits,
	}
}

// DriverOptions converts the configured sequencing delays into driver options.
func DriverOptions(c config.DriverConfig) transceiver.Options {
	return transceiver.Options{
		SettleDelay: time.Duration(c.SettleMs) * time.Millisecond,
		TrailDelay:  time.Duration(c.TrailMs) * time.Millisecond,
	}
}

// resolve builds the job for device and command without queueing it.
func (d *Dispatcher) resolve(device int, command string) (frame.Job, error) {
	c, _, err := d.table.LookupCommand(command)
	if err != nil {
		return frame.Job{}, err
	}
	return d.enc.Build(d.table, device, c)
}

// Dispatch sends command to device and waits for the transmission to end.
// Resolution errors are returned before anything is queued. A full queue
// fails with transceiver.ErrBusy. If ctx ends first, ctx.Err() is returned
// but an accepted job still runs to completion.
func (d *Dispatcher) Dispatch(ctx context.Context, device int, command string) error {
	fj, err := d.resolve(device, command)
	if err != nil {
		d.reject(device, command, err)
		return err
	}

	j := job{
		Job:    fj,
		pulses: pulse.ToPulses(fj.Frame, fj.Repeats, d.timing),
		queued: time.Now(),
		done:   make(chan error, 1),
	}

	if err := d.enqueue(j); err != nil {
		d.reject(device, command, err)
		return err
	}

	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) enqueue(j job) error {
	d.closeMu.RLock()
	defer d.closeMu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.queue <- j:
		log.Printf("[DEBUG] Queued %s for device %d (%d queued)", j.Command, j.Device, len(d.queue))
		return nil
	default:
		return fmt.Errorf("queue full (%d jobs): %w", cap(d.queue), transceiver.ErrBusy)
	}
}

func (d *Dispatcher) reject(device int, command string, err error) {
	log.Printf("[INFO] Rejected %s for device %d: %v", command, device, err)
	d.mu.Lock()
	d.rejected++
	d.mu.Unlock()
}

// worker processes jobs in FIFO order
func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for {
		// Stop takes priority over queued work
		select {
		case <-d.stopChan:
			d.drain()
			return
		default:
		}

		select {
		case j := <-d.queue:
			d.run(j)
		case <-d.stopChan:
			d.drain()
			return
		}
	}
}

// drain fails every job left in the queue after Close
func (d *Dispatcher) drain() {
	for {
		select {
		case j := <-d.queue:
			j.done <- ErrClosed
		default:
			return
		}
	}
}

func (d *Dispatcher) run(j job) {
	log.Printf("[INFO] Transmitting %s to device %d: %s x%d", j.Command, j.Device, j.Frame, j.Repeats)

	start := time.Now()
	err := d.tx.Transmit(j.pulses)
	elapsed := time.Since(start)

	res := &Result{
		Time:       start,
		Device:     int(j.Device),
		Command:    j.Command.String(),
		Frame:      j.Frame.String(),
		Code:       Code(err),
		DurationMs: float64(elapsed) / float64(time.Millisecond),
	}
	if err != nil {
		res.Error = err.Error()
		log.Printf("[ERROR] Transmission of %s to device %d failed: %v", j.Command, j.Device, err)
	} else {
		log.Printf("[DEBUG] Transmission of %s to device %d took %s after %s queued", j.Command, j.Device, elapsed, start.Sub(j.queued))
	}

	d.mu.Lock()
	if err != nil {
		d.failed++
	} else {
		d.dispatched++
	}
	d.last = res
	d.mu.Unlock()

	j.done <- err

	if d.hub != nil {
		d.hub.Publish(events.Event{
			Time:       res.Time,
			Device:     res.Device,
			Command:    res.Command,
			Frame:      res.Frame,
			Repeats:    j.Repeats,
			Pulses:     len(j.pulses),
			DurationMs: res.DurationMs,
			Result:     res.Code,
			Error:      res.Error,
		})
	}
}

// Preview resolves device and command and reports what would be sent.
func (d *Dispatcher) Preview(device int, command string) (Preview, error) {
	fj, err := d.resolve(device, command)
	if err != nil {
		return Preview{}, err
	}
	prefix, dev, cmd, err := frame.Split(fj.Frame)
	if err != nil {
		return Preview{}, err
	}
	return Preview{
		Device:      int(fj.Device),
		Command:     fj.Command.String(),
		Prefix:      string(prefix),
		DeviceCode:  string(dev),
		CommandCode: string(cmd),
		Frame:       fj.Frame.String(),
		Bits:        fj.Frame.Len(),
		Repeats:     fj.Repeats,
		Pulses:      pulse.Count(fj.Frame, fj.Repeats),
		DurationMs:  float64(pulse.Duration(fj.Frame, fj.Repeats, d.timing)) / float64(time.Millisecond),
	}, nil
}

// Status returns the queue depth, driver state and counters.
func (d *Dispatcher) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s := Status{
		State:      d.tx.State().String(),
		Queued:     len(d.queue),
		QueueSize:  cap(d.queue),
		Dispatched: d.dispatched,
		Failed:     d.failed,
		Rejected:   d.rejected,
		Driver:     d.tx.Stats(),
	}
	if d.last != nil {
		last := *d.last
		s.Last = &last
	}
	return s
}

// CodeTable returns a copy of the code table in use.
func (d *Dispatcher) CodeTable() codes.Snapshot {
	return d.table.Snapshot()
}

// Close stops accepting jobs, lets the in-flight job finish and fails the
// rest with ErrClosed.
func (d *Dispatcher) Close() error {
	d.closeMu.Lock()
	if d.closed {
		d.closeMu.Unlock()
		return nil
	}
	d.closed = true
	close(d.stopChan)
	d.closeMu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(10 * time.Second):
		return fmt.Errorf("shutdown timeout")
	}
}
