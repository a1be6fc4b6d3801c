package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/cluckburg/coopdoor/internal/config"
	"github.com/cluckburg/coopdoor/internal/debug"
	"github.com/cluckburg/coopdoor/internal/hw/gpio"
	"github.com/cluckburg/coopdoor/internal/hw/stepper"
	"github.com/cluckburg/coopdoor/internal/logic/control"
	"github.com/cluckburg/coopdoor/internal/logic/daylight"
	"github.com/cluckburg/coopdoor/internal/logic/door"
	"github.com/cluckburg/coopdoor/internal/notify"
	"github.com/cluckburg/coopdoor/internal/observability"
	"github.com/cluckburg/coopdoor/internal/web"
)

// app holds the wired hardware and its observers for one run mode.
type app struct {
	cfg         *config.Config
	mode        string
	driver      gpio.Driver
	motor       *stepper.Stepper
	door        *door.Sequencer
	evaluator   *daylight.Evaluator
	collector   *observability.Collector
	publisher   *notify.Publisher
	board       *web.StatusBoard
	broadcaster *web.StatusBroadcaster
	server      *web.Server // nil when web.port is 0
}

func newApp(path, mode string, o overrides) (*app, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	applyOverrides(cfg, o)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return newAppFromConfig(cfg, mode, reg)
}

func newAppFromConfig(cfg *config.Config, mode string, reg *prometheus.Registry) (*app, error) {
	debug.Init(cfg.Defaults.DebugLevel)
	debug.Summary("coopdoor " + Version + " (" + mode + ")")
	debug.Section("Initialization")
	debug.Value("Mode", mode)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)

	a := &app{cfg: cfg, mode: mode}

	debug.Step(1, "Initializing GPIO driver")
	debug.Value("GPIO driver", cfg.GPIO.Driver)
	driver, err := gpio.NewDriver(cfg.GPIO.Driver, cfg.GPIO.Chip)
	if err != nil {
		return nil, fmt.Errorf("init GPIO: %w", err)
	}
	a.driver = driver

	debug.Step(2, "Initializing stepper motor")
	a.motor, err = stepper.NewStepper(driver, stepper.Config{
		Pins:        cfg.MotorPins(),
		StepsPerRev: cfg.Motor.StepsPerRev,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init motor: %w", err)
	}
	debug.PrintStruct("Motor config", cfg.Motor)

	debug.Step(3, "Initializing observers")
	if a.collector, err = observability.NewCollector(reg); err != nil {
		a.Close()
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	a.publisher, err = notify.New(notify.Config{
		Host:       cfg.MQTT.Host,
		Port:       cfg.MQTT.Port,
		Topic:      cfg.MQTT.Topic,
		ClientID:   cfg.MQTT.ClientID,
		CACert:     cfg.MQTT.CACert,
		ClientCert: cfg.MQTT.ClientCert,
		ClientKey:  cfg.MQTT.ClientKey,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init MQTT: %w", err)
	}
	if err := a.publisher.Connect(); err != nil {
		a.Close()
		return nil, fmt.Errorf("MQTT: %w", err)
	}

	a.broadcaster = web.NewStatusBroadcaster()
	a.board = web.NewStatusBoard(mode, a.broadcaster)
	if cfg.Web.Port > 0 {
		debug.SetOutput(io.MultiWriter(os.Stdout, web.LogWriter(a.broadcaster)))
		a.server, err = web.NewServer(fmt.Sprintf(":%d", cfg.Web.Port), a.board, a.broadcaster, a.collector.Handler())
		if err != nil {
			a.Close()
			return nil, err
		}
		debug.Value("Web port", cfg.Web.Port)
	}

	debug.Step(4, "Initializing door and daylight evaluator")
	doorCfg := cfg.DoorConfig()
	debug.PrintStruct("Door config", doorCfg)
	a.door = door.NewSequencer(a.motor, doorCfg, a.collector, a.publisher, a.board)
	a.evaluator = daylight.NewEvaluator(cfg.DaylightTable(), daylight.SystemClock{})

	return a, nil
}

func (a *app) tickObservers() []control.TickObserver {
	return []control.TickObserver{a.collector, a.board}
}

// serve runs fn on the calling goroutine alongside the optional status
// server. When fn returns the server is shut down; a server failure cancels
// fn's context. fn never runs on a helper goroutine, so a panic in a mode
// still unwinds through the caller's deferred GPIO release.
func (a *app) serve(ctx context.Context, fn func(context.Context, *app) error) error {
	if a.server == nil {
		return fn(ctx, a)
	}

	g, gctx := errgroup.WithContext(ctx)
	runCtx, stop := context.WithCancel(gctx)
	defer stop()

	g.Go(func() error {
		if err := a.server.Run(runCtx); err != nil {
			return fmt.Errorf("web server: %w", err)
		}
		return nil
	})

	err := func() error {
		defer stop()
		return fn(runCtx, a)
	}()
	if werr := g.Wait(); err == nil {
		err = werr
	}
	return err
}

// Close releases the broker connection and drives every coil LOW.
func (a *app) Close() error {
	if a.publisher != nil {
		a.publisher.Disconnect()
	}
	if a.driver == nil {
		return nil
	}
	debug.Info("Releasing GPIO")
	if err := a.driver.Close(); err != nil {
		return fmt.Errorf("close GPIO: %w", err)
	}
	return nil
}
