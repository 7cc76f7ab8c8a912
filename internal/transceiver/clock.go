package transceiver

import "time"

// spinWindow is the tail of every wait that is busy-waited instead of slept.
const spinWindow = 2 * time.Millisecond

// SpinClock sleeps for the coarse part of a wait and spins on the monotonic
// clock for the rest, which keeps pulse edges within a few microseconds on
// an otherwise idle core.
type SpinClock struct{}

func (SpinClock) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	deadline := time.Now().Add(d)
	if d > spinWindow {
		time.Sleep(d - spinWindow)
	}
	for time.Now().Before(deadline) {
	}
}
