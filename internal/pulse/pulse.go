// Package pulse expands frames into timed on/off keying pulses.
//
// Each bit becomes a HIGH pulse followed by a LOW pulse:
//
//	bit 0: HIGH zero[0] units, LOW zero[1] units
//	bit 1: HIGH one[0] units,  LOW one[1] units
//
// and every repetition of the frame is closed by a single LOW gap pulse.
// The expansion is a pure function of the frame, the repeat count and the
// timing profile, so it can be recomputed at will.
package pulse

import (
	"fmt"
	"time"

	"github.com/novy-bridge/internal/frame"
)

// PulsesPerBit is the number of pulses emitted for one bit.
const PulsesPerBit = 2

// Level is the state of the transmit line.
type Level uint8

const (
	Low Level = iota
	High
)

func (l Level) String() string {
	if l == High {
		return "HIGH"
	}
	return "LOW"
}

// Pulse is one timed interval on the transmit line.
type Pulse struct {
	Level    Level
	Duration time.Duration
}

func (p Pulse) String() string {
	return fmt.Sprintf("%s %s", p.Level, p.Duration)
}

// Timing is an on/off keying profile expressed in multiples of Unit.
type Timing struct {
	Unit     time.Duration
	Zero     [2]int // high, low
	One      [2]int // high, low
	GapUnits int
}

// DefaultTiming returns the profile the bridge ships with.
func DefaultTiming() Timing {
	return Timing{
		Unit:     380 * time.Microsecond,
		Zero:     [2]int{1, 3},
		One:      [2]int{3, 1},
		GapUnits: 31,
	}
}

// Validate rejects profiles that cannot be transmitted.
func (t Timing) Validate() error {
	if t.Unit <= 0 {
		return fmt.Errorf("timing unit must be positive, got %s", t.Unit)
	}
	for _, v := range []int{t.Zero[0], t.Zero[1], t.One[0], t.One[1], t.GapUnits} {
		if v <= 0 {
			return fmt.Errorf("timing multiples must be positive: zero=%v one=%v gap=%d", t.Zero, t.One, t.GapUnits)
		}
	}
	return nil
}

// Gap returns the inter-frame gap duration.
func (t Timing) Gap() time.Duration {
	return time.Duration(t.GapUnits) * t.Unit
}

// BitDuration returns the total airtime of one bit.
func (t Timing) BitDuration(one bool) time.Duration {
	m := t.Zero
	if one {
		m = t.One
	}
	return time.Duration(m[0]+m[1]) * t.Unit
}

// ToPulses expands f into the pulses for repeats transmissions of it.
func ToPulses(f frame.Frame, repeats int, t Timing) []Pulse {
	if repeats < 1 {
		return nil
	}

	one := [2]Pulse{
		{Level: High, Duration: time.Duration(t.One[0]) * t.Unit},
		{Level: Low, Duration: time.Duration(t.One[1]) * t.Unit},
	}
	zero := [2]Pulse{
		{Level: High, Duration: time.Duration(t.Zero[0]) * t.Unit},
		{Level: Low, Duration: time.Duration(t.Zero[1]) * t.Unit},
	}
	gap := Pulse{Level: Low, Duration: t.Gap()}

	pulses := make([]Pulse, 0, Count(f, repeats))
	for r := 0; r < repeats; r++ {
		for i := 0; i < f.Len(); i++ {
			if f.Bit(i) {
				pulses = append(pulses, one[0], one[1])
			} else {
				pulses = append(pulses, zero[0], zero[1])
			}
		}
		pulses = append(pulses, gap)
	}
	return pulses
}

// Count returns how many pulses ToPulses produces.
func Count(f frame.Frame, repeats int) int {
	if repeats < 1 {
		return 0
	}
	return repeats * (f.Len()*PulsesPerBit + 1)
}

// Duration computes the airtime of repeats transmissions of f from the
// profile, without expanding it.
func Duration(f frame.Frame, repeats int, t Timing) time.Duration {
	if repeats < 1 {
		return 0
	}
	var perFrame time.Duration
	for i := 0; i < f.Len(); i++ {
		perFrame += t.BitDuration(f.Bit(i))
	}
	return time.Duration(repeats) * (perFrame + t.Gap())
}

// Total sums the durations of pulses.
func Total(pulses []Pulse) time.Duration {
	var d time.Duration
	for _, p := range pulses {
		d += p.Duration
	}
	return d
}
