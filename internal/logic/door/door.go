// Package door sequences the coop door's open and close maneuvers on a
// stepper motor and tracks the door state those maneuvers imply.
//
// There is no end-stop or position sensor: State reports what was last
// commanded, not what the hardware did.
package door

import (
	"fmt"
	"time"

	"github.com/cluckburg/coopdoor/internal/debug"
	"github.com/cluckburg/coopdoor/internal/hw/stepper"
)

// State is the software-tracked door position.
type State int

const (
	Closed State = iota
	Open
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Motor is the capability set the sequencer needs from a stepper.
// *stepper.Stepper satisfies it.
type Motor interface {
	SetStepInterval(ms int)
	SetStepSequence(p stepper.Pattern)
	SetStepsPerRevolution(n int)
	Rotate(revolutions int) error
	Stop() error
}

// Command describes one maneuver: how long to hold each step, which coil
// pattern to walk and how many revolutions to turn (sign = direction).
type Command struct {
	StepIntervalMs int
	Pattern        stepper.Pattern
	Revolutions    int
}

// Steps returns the number of pattern advances the command issues.
func (c Command) Steps(stepsPerRev int) int {
	if c.Revolutions < 0 {
		return -c.Revolutions * stepsPerRev
	}
	return c.Revolutions * stepsPerRev
}

// Config holds the two maneuvers and their shared timing.
type Config struct {
	Open               Command
	Close              Command
	SettlePause        time.Duration // wait after rotation, before Stop
	StepsPerRevolution int
}

// DefaultConfig opens fast with a single-coil sequence and closes slowly
// with a double-coil sequence for extra torque against the door's weight.
// Anything below 2ms per step stalls the single-coil sequence.
func DefaultConfig() Config {
	return Config{
		Open: Command{
			StepIntervalMs: 2,
			Pattern:        stepper.WeakFast,
			Revolutions:    2,
		},
		Close: Command{
			StepIntervalMs: 10,
			Pattern:        stepper.StrongSlow,
			Revolutions:    -2,
		},
		SettlePause:        2 * time.Second,
		StepsPerRevolution: stepper.DefaultStepsPerRevolution,
	}
}

// Observer is notified after every completed maneuver.
type Observer interface {
	ManeuverDone(state State, cmd Command, elapsed time.Duration)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(state State, cmd Command, elapsed time.Duration)

func (f ObserverFunc) ManeuverDone(state State, cmd Command, elapsed time.Duration) {
	f(state, cmd, elapsed)
}

// Sequencer owns the motor and runs one maneuver at a time, synchronously.
// It is not safe for concurrent use.
type Sequencer struct {
	motor     Motor
	cfg       Config
	state     State
	observers []Observer
	sleep     func(time.Duration)
	now       func() time.Time
}

// NewSequencer calibrates the motor and starts in the Closed state.
func NewSequencer(m Motor, cfg Config, observers ...Observer) *Sequencer {
	if cfg.StepsPerRevolution <= 0 {
		cfg.StepsPerRevolution = stepper.DefaultStepsPerRevolution
	}
	m.SetStepsPerRevolution(cfg.StepsPerRevolution)
	return &Sequencer{
		motor:     m,
		cfg:       cfg,
		state:     Closed,
		observers: observers,
		sleep:     time.Sleep,
		now:       time.Now,
	}
}

// State returns the last commanded door state.
func (s *Sequencer) State() State { return s.state }

// Config returns the maneuver configuration.
func (s *Sequencer) Config() Config { return s.cfg }

// AddObserver registers o for subsequent maneuvers.
func (s *Sequencer) AddObserver(o Observer) {
	s.observers = append(s.observers, o)
}

// Open runs the open maneuver to completion and marks the door Open.
// It always drives the motor, even if the door is already tracked as Open.
func (s *Sequencer) Open() error {
	debug.Info("Opening coop door")
	return s.run(Open, s.cfg.Open)
}

// Close runs the close maneuver to completion and marks the door Closed.
// It always drives the motor, even if the door is already tracked as Closed.
func (s *Sequencer) Close() error {
	debug.Info("Closing coop door")
	return s.run(Closed, s.cfg.Close)
}

func (s *Sequencer) run(target State, cmd Command) error {
	start := s.now()

	s.motor.SetStepInterval(cmd.StepIntervalMs)
	s.motor.SetStepSequence(cmd.Pattern)

	direction := "FORWARD"
	if cmd.Revolutions < 0 {
		direction = "BACKWARD"
	}
	debug.Move(cmd.Revolutions, direction, cmd.Pattern.Name())
	if debug.IsEnabled(debug.LevelVerbose) {
		debug.Verbose("%d steps at %dms per step", cmd.Steps(s.cfg.StepsPerRevolution), cmd.StepIntervalMs)
	}

	if err := s.motor.Rotate(cmd.Revolutions); err != nil {
		return fmt.Errorf("%s door: rotate %d revolutions: %w", verb(target), cmd.Revolutions, err)
	}

	debug.Live("Motor settling for %v", s.cfg.SettlePause)
	s.sleep(s.cfg.SettlePause)

	if err := s.motor.Stop(); err != nil {
		return fmt.Errorf("%s door: stop motor: %w", verb(target), err)
	}

	s.state = target
	elapsed := s.now().Sub(start)
	debug.Info("Door should be %s", target)

	for _, o := range s.observers {
		o.ManeuverDone(target, cmd, elapsed)
	}
	return nil
}

func verb(target State) string {
	if target == Open {
		return "open"
	}
	return "close"
}
