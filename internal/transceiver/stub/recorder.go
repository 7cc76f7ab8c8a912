// Package stub records transmitter line activity instead of driving GPIO.
// It backs the tests and the "stub" GPIO backend used for dry runs.
package stub

import (
	"errors"
	"sync"
	"time"

	"github.com/novy-bridge/internal/pulse"
)

// ErrInjected is returned by a line that was told to fail.
var ErrInjected = errors.New("injected line failure")

// Event is one recorded action: a level change on Line, or a sleep when
// Line is empty.
type Event struct {
	Line  string
	Level pulse.Level
	Sleep time.Duration
}

// Recorder is a clock that records waits instead of sleeping, plus a
// factory for recording lines.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// Sleep records d and returns immediately.
func (r *Recorder) Sleep(d time.Duration) {
	r.mu.Lock()
	r.events = append(r.events, Event{Sleep: d})
	r.mu.Unlock()
}

// Line returns a recording output called name.
func (r *Recorder) Line(name string) *Line {
	return &Line{name: name, rec: r, failAfter: -1}
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Reset forgets all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// Pulses rebuilds the pulse train seen on line: every level written to it
// paired with the sleep that follows.
func (r *Recorder) Pulses(line string) []pulse.Pulse {
	events := r.Events()
	var pulses []pulse.Pulse
	for i, e := range events {
		if e.Line != line {
			continue
		}
		if i+1 < len(events) && events[i+1].Line == "" {
			pulses = append(pulses, pulse.Pulse{Level: e.Level, Duration: events[i+1].Sleep})
		}
	}
	return pulses
}

// Levels returns the sequence of levels written to line.
func (r *Recorder) Levels(line string) []pulse.Level {
	var levels []pulse.Level
	for _, e := range r.Events() {
		if e.Line == line {
			levels = append(levels, e.Level)
		}
	}
	return levels
}

func (r *Recorder) record(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Line is a recording digital output.
type Line struct {
	name string
	rec  *Recorder

	mu        sync.Mutex
	writes    int
	failAfter int
	level     pulse.Level
}

// Out records level on the line.
func (l *Line) Out(level pulse.Level) error {
	l.mu.Lock()
	if l.failAfter >= 0 && l.writes >= l.failAfter {
		l.mu.Unlock()
		return ErrInjected
	}
	l.writes++
	l.level = level
	l.mu.Unlock()

	l.rec.record(Event{Line: l.name, Level: level})
	return nil
}

// FailAfter makes every write after the first n fail. A negative n
// disables failures.
func (l *Line) FailAfter(n int) {
	l.mu.Lock()
	l.failAfter = n
	l.writes = 0
	l.mu.Unlock()
}

// Level returns the last level written.
func (l *Line) Level() pulse.Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// Close implements the GPIO output contract.
func (l *Line) Close() error { return nil }
