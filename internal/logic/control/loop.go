// Package control runs the door in one of three modes: the daylight tick
// loop, the hardware self-test, and the interactive console.
//
// Every mode drives the sequencer from the calling goroutine only; maneuvers
// never overlap and are never interrupted once started.
package control

import (
	"context"
	"time"

	"github.com/cluckburg/coopdoor/internal/debug"
	"github.com/cluckburg/coopdoor/internal/logic/daylight"
	"github.com/cluckburg/coopdoor/internal/logic/door"
)

// DefaultTickInterval is the pause between two daylight evaluations.
const DefaultTickInterval = 1800 * time.Second

// Action is what a tick decided to do.
type Action int

const (
	ActionNone Action = iota
	ActionOpen
	ActionClose
)

func (a Action) String() string {
	switch a {
	case ActionOpen:
		return "open"
	case ActionClose:
		return "close"
	default:
		return "none"
	}
}

// Door is the part of door.Sequencer the control loop drives.
type Door interface {
	Open() error
	Close() error
	State() door.State
}

// TickObserver is notified after every evaluation of the loop.
type TickObserver interface {
	TickDone(now time.Time, daylight bool, state door.State, action Action)
}

// Loop opens the door when it is light out and closes it when it is dark.
type Loop struct {
	evaluator *daylight.Evaluator
	door      Door
	clock     daylight.Clock
	interval  time.Duration
	observers []TickObserver
}

// NewLoop builds a loop; interval <= 0 means DefaultTickInterval.
func NewLoop(e *daylight.Evaluator, d Door, interval time.Duration, observers ...TickObserver) *Loop {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Loop{
		evaluator: e,
		door:      d,
		clock:     e.Clock(),
		interval:  interval,
		observers: observers,
	}
}

// Interval returns the pause between ticks.
func (l *Loop) Interval() time.Duration { return l.interval }

// Tick evaluates daylight once and runs at most one maneuver.
func (l *Loop) Tick() (Action, error) {
	now := l.clock.Now()
	light := l.evaluator.IsDaylight(now)
	state := l.door.State()

	action := ActionNone
	var err error
	switch {
	case light && state == door.Closed:
		action = ActionOpen
		err = l.door.Open()
	case !light && state == door.Open:
		action = ActionClose
		err = l.door.Close()
	}

	debug.Tick(daylight.MinuteOfDay(now), light, l.door.State().String(), action.String())
	if err != nil {
		return action, err
	}

	for _, o := range l.observers {
		o.TickDone(now, light, l.door.State(), action)
	}
	return action, nil
}

// Run ticks immediately and then once per interval until ctx is cancelled.
// A maneuver error stops the loop.
func (l *Loop) Run(ctx context.Context) error {
	debug.Section("Daylight loop")
	debug.Value("Tick interval", l.interval)

	for {
		if _, err := l.Tick(); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			debug.Info("Daylight loop stopped")
			return nil
		case <-l.clock.After(l.interval):
		}
	}
}
