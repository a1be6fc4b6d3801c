package stepper

import (
	"errors"
	"fmt"
	"time"

	"github.com/cluckburg/coopdoor/internal/debug"
	"github.com/cluckburg/coopdoor/internal/hw/gpio"
)

// Coils is the number of windings on a unipolar stepper (ULN2003 inputs IN1-IN4).
const Coils = 4

// Config holds the hardware configuration for a stepper motor.
type Config struct {
	Pins        [Coils]int    // BCM pins wired to IN1..IN4
	StepsPerRev int           // 0 = DefaultStepsPerRevolution
	StepDelay   time.Duration // initial hold time per step; 0 = 2ms
	Pattern     Pattern       // initial sequence; zero = WeakFast
}

// Stepper drives a 4-coil unipolar motor by walking a coil Pattern.
// It is not safe for concurrent use; one goroutine owns the motor.
type Stepper struct {
	gpio        gpio.Driver
	pins        [Coils]int
	stepsPerRev int
	delay       time.Duration // hold time per step
	pattern     Pattern
	index       int // current position within pattern
	steps       int // total steps issued, signed
	sleep       func(time.Duration)
}

// NewStepper configures the coil pins as LOW outputs and returns the motor.
// A pin that cannot be claimed (e.g. a line busy under cdev) fails here
// rather than on the first maneuver.
func NewStepper(g gpio.Driver, cfg Config) (*Stepper, error) {
	for _, pin := range cfg.Pins {
		if err := g.SetupPin(pin, gpio.Output); err != nil {
			return nil, fmt.Errorf("stepper: setup pin %d: %w", pin, err)
		}
		if err := g.WritePin(pin, gpio.Low); err != nil {
			return nil, fmt.Errorf("stepper: drive pin %d low: %w", pin, err)
		}
	}

	s := &Stepper{
		gpio:        g,
		pins:        cfg.Pins,
		stepsPerRev: cfg.StepsPerRev,
		delay:       cfg.StepDelay,
		pattern:     cfg.Pattern,
		sleep:       time.Sleep,
	}
	if s.stepsPerRev <= 0 {
		s.stepsPerRev = DefaultStepsPerRevolution
	}
	if s.delay <= 0 {
		s.delay = 2 * time.Millisecond
	}
	if s.pattern.Len() == 0 {
		s.pattern = WeakFast
	}
	return s, nil
}

// SetStepInterval sets how long each step's coil mask is held, in milliseconds.
func (s *Stepper) SetStepInterval(ms int) {
	s.delay = time.Duration(ms) * time.Millisecond
}

// SetStepSequence selects the coil pattern used by subsequent steps.
// The position index restarts at the beginning of the new pattern.
func (s *Stepper) SetStepSequence(p Pattern) {
	s.pattern = p
	s.index = 0
}

// SetStepsPerRevolution sets the calibration used by Rotate.
func (s *Stepper) SetStepsPerRevolution(n int) {
	s.stepsPerRev = n
}

// StepsPerRevolution returns the current calibration.
func (s *Stepper) StepsPerRevolution() int { return s.stepsPerRev }

// Steps returns the signed total of steps issued since creation.
func (s *Stepper) Steps() int { return s.steps }

// Rotate turns the shaft by the given number of revolutions; negative
// values run the pattern backwards.
func (s *Stepper) Rotate(revolutions int) error {
	return s.Step(revolutions * s.stepsPerRev)
}

// Step advances the pattern by n positions (sign = direction), holding each
// mask for the step interval. Coils stay energized afterwards; call Stop.
func (s *Stepper) Step(n int) error {
	if n == 0 {
		return nil
	}
	if s.pattern.Len() == 0 {
		return errors.New("stepper: no step sequence set")
	}

	dir := 1
	direction := "forward"
	if n < 0 {
		dir = -1
		direction = "backward"
		n = -n
	}

	debug.Printf("Stepper: moving %d steps (%s, %s, hold %v)", n, direction, s.pattern.Name(), s.delay)

	for i := 0; i < n; i++ {
		s.index = (s.index + dir + s.pattern.Len()) % s.pattern.Len()
		if err := s.energize(s.pattern.At(s.index)); err != nil {
			return err
		}
		s.steps += dir
		s.sleep(s.delay)
	}
	return nil
}

// Stop de-energizes every coil. The rotor is left without holding torque.
func (s *Stepper) Stop() error {
	debug.Trace("Stepper: stop")
	return s.energize(0)
}

func (s *Stepper) energize(mask uint8) error {
	for i, pin := range s.pins {
		level := gpio.Low
		if mask&(1<<uint(i)) != 0 {
			level = gpio.High
		}
		if err := s.gpio.WritePin(pin, level); err != nil {
			return err
		}
	}
	return nil
}
