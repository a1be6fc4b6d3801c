package control

import (
	"context"
	"time"

	"github.com/cluckburg/coopdoor/internal/debug"
	"github.com/cluckburg/coopdoor/internal/logic/daylight"
)

// DefaultSelfTestPause is the wait after each self-test maneuver.
const DefaultSelfTestPause = 15 * time.Second

// SelfTest cycles the door open and closed, pausing after each maneuver, to
// exercise the gearing, winch and mounting. It runs until ctx is cancelled
// or a maneuver fails; cancellation is only observed during pauses.
func SelfTest(ctx context.Context, d Door, clock daylight.Clock, pause time.Duration) error {
	if clock == nil {
		clock = daylight.SystemClock{}
	}
	if pause <= 0 {
		pause = DefaultSelfTestPause
	}

	debug.Section("Hardware self-test")
	for cycle := 1; ; cycle++ {
		debug.Live("Self-test cycle %d", cycle)

		for _, maneuver := range []func() error{d.Open, d.Close} {
			if err := maneuver(); err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				debug.Info("Self-test stopped after %d cycles", cycle)
				return nil
			case <-clock.After(pause):
			}
		}
	}
}
