package main

import (
	"fmt"
	"os"

	"remote-calculator/internal/calculator"
	"remote-calculator/internal/config"
	"remote-calculator/internal/observability"
	"remote-calculator/internal/server"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type runtime struct {
	cfg      *config.Config
	shutdown func() error
}

func newApp() *cli.App {
	rt := &runtime{}

	return &cli.App{
		Name:  "calcserver",
		Usage: "serve calculator operations to remote clients",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "TOML config file (default ./calculator.toml when present)",
			},
			&cli.StringFlag{
				Name:  "advertise-host",
				Usage: "address advertised to clients instead of the detected one",
			},
			&cli.BoolFlag{
				Name:  "telemetry",
				Usage: "export traces, metrics and logs over OTLP",
			},
		},
		Before: rt.setup,
		After:  rt.teardown,
		Commands: []*cli.Command{
			{
				Name:   "combined",
				Usage:  "serve every operation under one binding",
				Flags:  endpointFlags(),
				Action: rt.serveCombined,
			},
			{
				Name:   "math",
				Usage:  "serve add, sub, mul, div, pow and sqrt",
				Flags:  endpointFlags(),
				Action: rt.serveMath,
			},
			{
				Name:   "trig",
				Usage:  "serve sin, cos and tan",
				Flags:  endpointFlags(),
				Action: rt.serveTrig,
			},
			{
				Name:   "split",
				Usage:  "serve the math and trig bindings from one process",
				Action: rt.serveSplit,
			},
		},
	}
}

func endpointFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "port",
			Usage: "registry port",
		},
		&cli.StringFlag{
			Name:  "name",
			Usage: "binding name",
		},
	}
}

func (rt *runtime) setup(c *cli.Context) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("advertise-host") {
		cfg.Server.AdvertiseHost = c.String("advertise-host")
	}
	if c.Bool("telemetry") {
		cfg.Telemetry.Enabled = true
	}
	rt.cfg = cfg

	if err := observability.InitLogger(); err != nil {
		return err
	}

	shutdown, err := initTelemetry(c.Context, cfg)
	if err != nil {
		return err
	}
	rt.shutdown = func() error { return shutdown(c.Context) }
	return nil
}

func (rt *runtime) teardown(c *cli.Context) error {
	defer observability.SyncLogger()
	if rt.shutdown == nil {
		return nil
	}
	return rt.shutdown()
}

// override applies the command's --port and --name flags to ep.
func override(c *cli.Context, ep config.Endpoint) config.Endpoint {
	if c.IsSet("port") {
		ep.Port = c.Int("port")
	}
	if c.IsSet("name") {
		ep.Binding = c.String("name")
	}
	return ep
}

func (rt *runtime) serveCombined(c *cli.Context) error {
	return rt.serve(c, service{
		endpoint: override(c, rt.cfg.Server.Combined),
		factory:  func(l *zap.Logger) any { return calculator.NewCombined(l) },
	})
}

func (rt *runtime) serveMath(c *cli.Context) error {
	return rt.serve(c, service{
		endpoint: override(c, rt.cfg.Server.Math),
		factory:  func(l *zap.Logger) any { return calculator.NewMath(l) },
	})
}

func (rt *runtime) serveTrig(c *cli.Context) error {
	return rt.serve(c, service{
		endpoint: override(c, rt.cfg.Server.Trig),
		factory:  func(l *zap.Logger) any { return calculator.NewTrig(l) },
	})
}

func (rt *runtime) serveSplit(c *cli.Context) error {
	return rt.serve(c,
		service{
			endpoint: rt.cfg.Server.Math,
			factory:  func(l *zap.Logger) any { return calculator.NewMath(l) },
		},
		service{
			endpoint: rt.cfg.Server.Trig,
			factory:  func(l *zap.Logger) any { return calculator.NewTrig(l) },
		},
	)
}

type service struct {
	endpoint config.Endpoint
	factory  server.Factory
}
