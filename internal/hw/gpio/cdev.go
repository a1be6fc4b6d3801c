//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/cluckburg/coopdoor/internal/debug"
	"github.com/warthog618/go-gpiocdev"
)

// CdevDriver drives GPIO lines through the Linux GPIO character device
// (/dev/gpiochipN). Unlike go-rpio it works on kernels where /dev/gpiomem
// is unavailable and on non-BCM boards.
type CdevDriver struct {
	chip  string
	lines map[int]*gpiocdev.Line
	modes map[int]PinMode
}

// NewCdevDriver opens lines lazily on the given chip ("" = gpiochip0).
func NewCdevDriver(chip string) (*CdevDriver, error) {
	if chip == "" {
		chip = "gpiochip0"
	}
	debug.Info("Initializing character-device GPIO driver on %s", chip)
	return &CdevDriver{
		chip:  chip,
		lines: make(map[int]*gpiocdev.Line),
		modes: make(map[int]PinMode),
	}, nil
}

func (c *CdevDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)

	var reqOpt gpiocdev.LineReqOption
	var cfgOpt gpiocdev.LineConfigOption
	switch mode {
	case Input:
		reqOpt, cfgOpt = gpiocdev.AsInput, gpiocdev.AsInput
	case Output:
		reqOpt, cfgOpt = gpiocdev.AsOutput(0), gpiocdev.AsOutput(0)
	default:
		return fmt.Errorf("unknown pin mode: %d", mode)
	}

	if l, ok := c.lines[pin]; ok {
		if err := l.Reconfigure(cfgOpt); err != nil {
			return fmt.Errorf("reconfigure line %d: %w", pin, err)
		}
		c.modes[pin] = mode
		return nil
	}

	l, err := gpiocdev.RequestLine(c.chip, pin, reqOpt, gpiocdev.WithConsumer("coopdoor"))
	if err != nil {
		return fmt.Errorf("request line %d on %s: %w", pin, c.chip, err)
	}
	c.lines[pin] = l
	c.modes[pin] = mode
	return nil
}

func (c *CdevDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)

	if c.modes[pin] != Output || c.lines[pin] == nil {
		if err := c.SetupPin(pin, Output); err != nil {
			return err
		}
	}

	v := 0
	if level == High {
		v = 1
	}
	return c.lines[pin].SetValue(v)
}

func (c *CdevDriver) ReadPin(pin int) (Level, error) {
	debug.GPIO("ReadPin", pin, nil)

	l, ok := c.lines[pin]
	if !ok {
		if err := c.SetupPin(pin, Input); err != nil {
			return Low, err
		}
		l = c.lines[pin]
	}

	v, err := l.Value()
	if err != nil {
		return Low, err
	}
	return Level(v != 0), nil
}

// Close drives outputs LOW, then releases every requested line.
func (c *CdevDriver) Close() error {
	debug.Trace("GPIO Close (cdev driver)")

	var errs []error
	for pin, l := range c.lines {
		if c.modes[pin] == Output {
			debug.Verbose("Forcing pin %d LOW", pin)
			if err := l.SetValue(0); err != nil {
				errs = append(errs, fmt.Errorf("pin %d low: %w", pin, err))
			}
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line %d: %w", pin, err))
		}
		delete(c.lines, pin)
	}
	return errors.Join(errs...)
}
