package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/cluckburg/coopdoor/internal/config"
)

// Version is set at build time via ldflags.
var Version = "dev"

const defaultWebPort = 8080

var (
	cfgPath    string
	debugLevel int
	tickFlag   time.Duration
	webPort    = &webPortFlag{defaultPort: defaultWebPort}
)

var rootCmd = &cobra.Command{
	Use:   "coopdoor",
	Short: "Open the coop door at daybreak and close it at dusk",
	Long: `coopdoor drives a 4-coil stepper motor that winds a chicken-coop door.
Without a subcommand it runs the daylight loop: every tick it looks up
today's sunrise and sunset and opens or closes the door accordingly.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runLoop,
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("coopdoor version {{.Version}}\n")

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgPath, "config", filepath.Join("configs", "default.yaml"), "path to config file")
	pf.IntVar(&debugLevel, "debug-level", -1, "debug level 0-4; -1 uses the config value")
	pf.DurationVar(&tickFlag, "tick", 0, "override the daylight check interval (e.g. 30m); 0 uses the config value")
	pf.Var(webPort, "web", "start the status server; --web for port 8080, --web=8980 for a custom port")
	pf.Lookup("web").NoOptDefVal = strconv.Itoa(defaultWebPort)
}

// overrides are the command-line values that take precedence over the config file.
type overrides struct {
	DebugLevel int           // -1 = keep config
	Tick       time.Duration // 0 = keep config
	WebPort    int           // 0 = keep config
}

func cliOverrides() overrides {
	return overrides{DebugLevel: debugLevel, Tick: tickFlag, WebPort: webPort.port()}
}

// validateCLIOverrides checks that overrides are within valid ranges.
// Sentinel values (-1 debug level, zero tick, zero port) are accepted.
func validateCLIOverrides(o overrides) error {
	if o.DebugLevel < -1 || o.DebugLevel > 4 {
		return fmt.Errorf("debug-level must be between 0 and 4, got %d", o.DebugLevel)
	}
	if o.Tick < 0 {
		return fmt.Errorf("tick must not be negative, got %v", o.Tick)
	}
	if o.Tick > 0 && o.Tick < time.Second {
		return fmt.Errorf("tick must be at least 1s, got %v", o.Tick)
	}
	if o.WebPort < 0 || o.WebPort > 65535 {
		return fmt.Errorf("web port must be 1-65535, got %d", o.WebPort)
	}
	return nil
}

// applyOverrides mutates cfg with the overrides that are set.
func applyOverrides(cfg *config.Config, o overrides) {
	if o.DebugLevel >= 0 {
		cfg.Defaults.DebugLevel = o.DebugLevel
	}
	if o.Tick > 0 {
		cfg.Schedule.TickIntervalSec = int(o.Tick / time.Second)
	}
	if o.WebPort > 0 {
		cfg.Web.Port = o.WebPort
	}
}

// webPortFlag implements pflag.Value for --web: 0 = disabled, --web → 8080, --web=8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) Type() string { return "port" }

func (w *webPortFlag) port() int { return w.val }
