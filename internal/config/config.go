package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cluckburg/coopdoor/internal/hw/gpio"
	"github.com/cluckburg/coopdoor/internal/hw/stepper"
	"github.com/cluckburg/coopdoor/internal/logic/daylight"
	"github.com/cluckburg/coopdoor/internal/logic/door"
)

// MaxConfigFileBytes caps the size of a configuration file.
const MaxConfigFileBytes = 64 * 1024

// GPIOConfig selects the GPIO backend.
type GPIOConfig struct {
	Driver string `yaml:"driver"` // "rpio", "cdev" or "mock"
	Chip   string `yaml:"chip"`   // cdev only, e.g. "gpiochip0"
}

// MotorConfig holds the stepper wiring and calibration.
type MotorConfig struct {
	Pins        []int `yaml:"pins"`          // BCM pins wired to ULN2003 IN1..IN4
	StepsPerRev int   `yaml:"steps_per_rev"` // 2038 for a 28BYJ-48
}

// DoorConfig describes the open and close maneuvers.
type DoorConfig struct {
	RevolutionsToOpen   int    `yaml:"revolutions_to_open"`    // > 0
	RevolutionsToClose  int    `yaml:"revolutions_to_close"`   // < 0 (reverse)
	OpenStepIntervalMs  int    `yaml:"open_step_interval_ms"`  // fast, low torque
	CloseStepIntervalMs int    `yaml:"close_step_interval_ms"` // slow, high torque
	OpenPattern         string `yaml:"open_pattern"`
	ClosePattern        string `yaml:"close_pattern"`
	SettleMs            int    `yaml:"settle_ms"` // pause before the final stop
}

// ScheduleConfig controls the daylight loop and the self-test.
type ScheduleConfig struct {
	TickIntervalSec  int              `yaml:"tick_interval_sec"`
	SelfTestPauseSec int              `yaml:"self_test_pause_sec"`
	Daylight         []daylight.Window `yaml:"daylight,omitempty"` // optional, 12 entries January first
}

// WebConfig enables the read-only status server.
type WebConfig struct {
	Port int `yaml:"port"` // 0 = disabled
}

// MQTTConfig enables door-state announcements. Empty Host disables MQTT.
type MQTTConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Topic      string `yaml:"topic"`
	ClientID   string `yaml:"client_id"`
	CACert     string `yaml:"ca_cert"`
	ClientCert string `yaml:"client_cert"`
	ClientKey  string `yaml:"client_key"`
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
}

// Config aggregates all application configuration.
type Config struct {
	GPIO     GPIOConfig     `yaml:"gpio"`
	Motor    MotorConfig    `yaml:"motor"`
	Door     DoorConfig     `yaml:"door"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Web      WebConfig      `yaml:"web"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

// ValidateConfigPath accepts only .yaml files directly inside a "configs"
// directory, after cleaning the path.
func ValidateConfigPath(path string) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if strings.Contains(filepath.ToSlash(path), "..") {
		return fmt.Errorf("config path %q must not contain '..'", path)
	}
	clean := filepath.Clean(path)
	if filepath.Ext(clean) != ".yaml" {
		return fmt.Errorf("config path %q must have a .yaml extension", path)
	}
	abs, err := filepath.Abs(clean)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if filepath.Base(filepath.Dir(abs)) != "configs" {
		return fmt.Errorf("config path %q must be inside a configs/ directory", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	if err := ValidateConfigPath(path); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxConfigFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if len(data) > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file exceeds %d bytes", MaxConfigFileBytes)
	}

	return Parse(data)
}

// Parse decodes YAML, fills defaults and validates the result.
// An empty document yields the all-default configuration.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() error {
	switch c.GPIO.Driver {
	case "":
		c.GPIO.Driver = gpio.KindRPi
	case gpio.KindRPi, gpio.KindCdev, gpio.KindMock:
	default:
		return fmt.Errorf("gpio.driver must be one of rpio, cdev, mock, got %q", c.GPIO.Driver)
	}

	if len(c.Motor.Pins) == 0 {
		c.Motor.Pins = []int{17, 18, 27, 22} // WiringPi 0..3
	}
	if len(c.Motor.Pins) != stepper.Coils {
		return fmt.Errorf("motor.pins must list %d pins, got %d", stepper.Coils, len(c.Motor.Pins))
	}
	seen := make(map[int]bool, stepper.Coils)
	for _, p := range c.Motor.Pins {
		if p < 0 || p > 27 {
			return fmt.Errorf("motor.pins: BCM pin %d out of range 0-27", p)
		}
		if seen[p] {
			return fmt.Errorf("motor.pins: pin %d listed twice", p)
		}
		seen[p] = true
	}
	if c.Motor.StepsPerRev < 0 {
		return fmt.Errorf("motor.steps_per_rev must be > 0, got %d", c.Motor.StepsPerRev)
	}
	if c.Motor.StepsPerRev == 0 {
		c.Motor.StepsPerRev = stepper.DefaultStepsPerRevolution
	}

	if c.Door.RevolutionsToOpen == 0 {
		c.Door.RevolutionsToOpen = 2
	}
	if c.Door.RevolutionsToOpen < 0 {
		return fmt.Errorf("door.revolutions_to_open must be > 0, got %d", c.Door.RevolutionsToOpen)
	}
	if c.Door.RevolutionsToClose == 0 {
		c.Door.RevolutionsToClose = -2
	}
	if c.Door.RevolutionsToClose > 0 {
		return fmt.Errorf("door.revolutions_to_close must be < 0, got %d", c.Door.RevolutionsToClose)
	}
	if c.Door.OpenStepIntervalMs <= 0 {
		c.Door.OpenStepIntervalMs = 2 // lower stalls the single-coil sequence
	}
	if c.Door.CloseStepIntervalMs <= 0 {
		c.Door.CloseStepIntervalMs = 10
	}
	if c.Door.OpenPattern == "" {
		c.Door.OpenPattern = stepper.WeakFast.Name()
	}
	if c.Door.ClosePattern == "" {
		c.Door.ClosePattern = stepper.StrongSlow.Name()
	}
	if _, err := stepper.PatternByName(c.Door.OpenPattern); err != nil {
		return fmt.Errorf("door.open_pattern: %w", err)
	}
	if _, err := stepper.PatternByName(c.Door.ClosePattern); err != nil {
		return fmt.Errorf("door.close_pattern: %w", err)
	}
	if c.Door.SettleMs <= 0 {
		c.Door.SettleMs = 2000
	}

	if c.Schedule.TickIntervalSec <= 0 {
		c.Schedule.TickIntervalSec = 1800 // 30 minutes
	}
	if c.Schedule.SelfTestPauseSec <= 0 {
		c.Schedule.SelfTestPauseSec = 15
	}
	if n := len(c.Schedule.Daylight); n != 0 {
		if n != 12 {
			return fmt.Errorf("schedule.daylight must have 12 entries, got %d", n)
		}
		if err := c.DaylightTable().Validate(); err != nil {
			return fmt.Errorf("schedule.daylight: %w", err)
		}
	}

	if c.Web.Port < 0 || c.Web.Port > 65535 {
		return fmt.Errorf("web.port must be 0-65535, got %d", c.Web.Port)
	}

	if c.MQTT.Topic == "" {
		c.MQTT.Topic = "coopdoor/state"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "coopdoor"
	}

	if c.Defaults.DebugLevel < 0 || c.Defaults.DebugLevel > 4 {
		return fmt.Errorf("defaults.debug_level must be 0-4, got %d", c.Defaults.DebugLevel)
	}
	return nil
}

// TickInterval returns the pause between two daylight evaluations.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Schedule.TickIntervalSec) * time.Second
}

// SelfTestPause returns the wait after each self-test maneuver.
func (c *Config) SelfTestPause() time.Duration {
	return time.Duration(c.Schedule.SelfTestPauseSec) * time.Second
}

// SettlePause returns the pause between rotation and the final stop.
func (c *Config) SettlePause() time.Duration {
	return time.Duration(c.Door.SettleMs) * time.Millisecond
}

// MotorPins returns the coil pins in IN1..IN4 order.
func (c *Config) MotorPins() [stepper.Coils]int {
	var pins [stepper.Coils]int
	copy(pins[:], c.Motor.Pins)
	return pins
}

// DaylightTable returns the configured table, or the built-in one.
func (c *Config) DaylightTable() daylight.Table {
	if len(c.Schedule.Daylight) != 12 {
		return daylight.DefaultTable()
	}
	var t daylight.Table
	copy(t[:], c.Schedule.Daylight)
	return t
}

// DoorConfig builds the sequencer configuration. Patterns were validated by Load.
func (c *Config) DoorConfig() door.Config {
	openPattern, _ := stepper.PatternByName(c.Door.OpenPattern)
	closePattern, _ := stepper.PatternByName(c.Door.ClosePattern)
	return door.Config{
		Open: door.Command{
			StepIntervalMs: c.Door.OpenStepIntervalMs,
			Pattern:        openPattern,
			Revolutions:    c.Door.RevolutionsToOpen,
		},
		Close: door.Command{
			StepIntervalMs: c.Door.CloseStepIntervalMs,
			Pattern:        closePattern,
			Revolutions:    c.Door.RevolutionsToClose,
		},
		SettlePause:        c.SettlePause(),
		StepsPerRevolution: c.Motor.StepsPerRev,
	}
}
