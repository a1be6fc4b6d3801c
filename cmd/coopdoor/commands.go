package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/cluckburg/coopdoor/internal/debug"
	"github.com/cluckburg/coopdoor/internal/logic/control"
)

const (
	modeRun      = "run"
	modeDebug    = "debug"
	modeSelfTest = "selftest"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the daylight loop (default)",
	Long: `Evaluate daylight once per tick (30 minutes by default). The door is
opened when it is light and the door is closed, and closed when it is dark
and the door is open. Runs until SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runLoop,
}

var debugCmd = &cobra.Command{
	Use:     "debug",
	Aliases: []string{"debug_mode"},
	Short:   "Drive the door interactively",
	Long: `Read commands from standard input, one per line:

  open        run the open maneuver
  close       run the close maneuver
  lightcheck  print whether it is daylight now
  q           quit

Commands are case-insensitive. Anything else is ignored.`,
	Args: cobra.NoArgs,
	RunE: runDebug,
}

var selfTestCmd = &cobra.Command{
	Use:     "selftest",
	Aliases: []string{"hardware_test"},
	Short:   "Open and close the door forever to exercise the hardware",
	Long: `Alternate open and close maneuvers with a pause (15s by default) after
each one, until SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runSelfTest,
}

func init() {
	rootCmd.AddCommand(runCmd, debugCmd, selfTestCmd)
}

func runLoop(cmd *cobra.Command, _ []string) error {
	return withApp(cmd.Context(), modeRun, func(ctx context.Context, a *app) error {
		return control.NewLoop(a.evaluator, a.door, a.cfg.TickInterval(), a.tickObservers()...).Run(ctx)
	})
}

func runDebug(cmd *cobra.Command, _ []string) error {
	return withApp(cmd.Context(), modeDebug, func(ctx context.Context, a *app) error {
		return control.NewConsole(a.door, a.evaluator, os.Stdin, os.Stdout).Run(ctx)
	})
}

func runSelfTest(cmd *cobra.Command, _ []string) error {
	return withApp(cmd.Context(), modeSelfTest, func(ctx context.Context, a *app) error {
		debug.Value("Self-test pause", a.cfg.SelfTestPause())
		return control.SelfTest(ctx, a.door, a.evaluator.Clock(), a.cfg.SelfTestPause())
	})
}

// withApp builds the application, runs fn on the calling goroutine and
// always releases the hardware before returning.
func withApp(ctx context.Context, mode string, fn func(context.Context, *app) error) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := validateCLIOverrides(cliOverrides()); err != nil {
		return err
	}

	a, err := newApp(cfgPath, mode, cliOverrides())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return a.serve(ctx, fn)
}
