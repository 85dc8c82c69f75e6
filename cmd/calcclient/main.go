package main

import (
	"context"
	"fmt"
	"os"

	"remote-calculator/internal/config"
	"remote-calculator/internal/dispatch"
	"remote-calculator/internal/machine"
	"remote-calculator/internal/netaddr"
	"remote-calculator/internal/observability"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:      "calcclient",
		Usage:     "calculator whose operations run on remote services",
		UsageText: "calcclient [options]\n\nType keys separated by spaces, e.g. `2 + 3 * 4 =` or `sqrt 9 + 1 =`. `quit` exits.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "TOML config file (default ./calculator.toml when present)"},
			&cli.StringFlag{Name: "user", Usage: "username sent with every call"},
			&cli.StringFlag{Name: "topology", Usage: "combined or split"},
			&cli.StringFlag{Name: "host", Usage: "combined service host"},
			&cli.IntFlag{Name: "port", Usage: "combined service port"},
			&cli.StringFlag{Name: "name", Usage: "combined service binding"},
			&cli.StringFlag{Name: "math-host", Usage: "math service host"},
			&cli.IntFlag{Name: "math-port", Usage: "math service port"},
			&cli.StringFlag{Name: "trig-host", Usage: "trig service host"},
			&cli.IntFlag{Name: "trig-port", Usage: "trig service port"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "log every operation to stderr"},
			&cli.BoolFlag{Name: "telemetry", Usage: "export traces, metrics and logs over OTLP"},
		},
		Action: run,
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	cl := &cfg.Client
	if c.IsSet("user") {
		cl.Username = c.String("user")
	}
	if c.IsSet("topology") {
		cl.Topology = c.String("topology")
	}
	if c.IsSet("host") {
		cl.Combined.Host = c.String("host")
	}
	if c.IsSet("port") {
		cl.Combined.Port = c.Int("port")
	}
	if c.IsSet("name") {
		cl.Combined.Binding = c.String("name")
	}
	if c.IsSet("math-host") {
		cl.Math.Host = c.String("math-host")
	}
	if c.IsSet("math-port") {
		cl.Math.Port = c.Int("math-port")
	}
	if c.IsSet("trig-host") {
		cl.Trig.Host = c.String("trig-host")
	}
	if c.IsSet("trig-port") {
		cl.Trig.Port = c.Int("trig-port")
	}
	if c.Bool("telemetry") {
		cfg.Telemetry.Enabled = true
	}

	return cfg, cfg.Validate()
}

func run(c *cli.Context) error {
	ctx := c.Context

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	level := zapcore.WarnLevel
	if c.Bool("verbose") {
		level = zapcore.InfoLevel
	}
	observability.Logger = observability.NewLogger(os.Stderr, level)
	defer observability.SyncLogger()

	if cfg.Telemetry.Enabled {
		observability.SetServiceName(cfg.Telemetry.ServiceName)
		if cfg.Telemetry.ServiceName == "" {
			observability.SetServiceName("calcclient")
		}
		shutdown, err := observability.InitTelemetry(ctx)
		if err != nil {
			return err
		}
		defer shutdown(context.Background())
	}
	logger := observability.Logger.Named("client")

	topology, err := dispatch.ParseTopology(cfg.Client.Topology)
	if err != nil {
		return err
	}
	local := netaddr.Resolve()
	identity := dispatch.NewIdentity(cfg.Client.Username, local.IP.String())

	d := dispatch.New(identity, logger)
	d.Connect(ctx, dispatch.Config{
		Topology: topology,
		Combined: target(cfg.Client.Combined),
		Math:     target(cfg.Client.Math),
		Trig:     target(cfg.Client.Trig),
	})

	out := c.App.Writer
	printHeader(out, cfg.Client.Username, local.IP.String(), d.Connections())

	view := newTerminalView(out)
	sess := machine.NewSession(machine.New(d, view, logger), 64)
	defer sess.Close()

	return repl(ctx, os.Stdin, out, sess, view)
}

func target(ep config.Endpoint) dispatch.Target {
	return dispatch.Target{Host: ep.Host, Port: ep.Port, Binding: ep.Binding}
}
