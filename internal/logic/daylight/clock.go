package daylight

import "time"

// Clock abstracts wall-clock access so the control loop and the evaluator can
// be driven by a fake clock in tests.
type Clock interface {
	// Now returns the current local time.
	Now() time.Time
	// After returns a channel that receives once d has elapsed.
	After(d time.Duration) <-chan time.Time
}

// SystemClock reads the host's local wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
