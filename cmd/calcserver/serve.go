package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"remote-calculator/internal/observability"
	"remote-calculator/internal/server"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

// serve starts one controller per service and blocks until SIGINT or
// SIGTERM. If any service fails to start, the ones already running are
// stopped and the error is returned.
func (rt *runtime) serve(c *cli.Context, services ...service) error {
	logger := observability.Logger.Named("server")

	var running []*server.Controller
	stopAll := func() {
		for i := len(running) - 1; i >= 0; i-- {
			_ = running[i].Stop()
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.CloseHosts(ctx); err != nil {
			logger.Error("error closing registry hosts", zap.Error(err))
		}
	}

	for _, svc := range services {
		ctrl := server.NewController(server.Options{
			Port:          svc.endpoint.Port,
			Binding:       svc.endpoint.Binding,
			Factory:       svc.factory,
			Logger:        logger,
			AdvertiseHost: rt.cfg.Server.AdvertiseHost,
		})
		if err := ctrl.Start(c.Context); err != nil {
			stopAll()
			return cli.Exit(err.Error(), 1)
		}
		running = append(running, ctrl)
		fmt.Fprintf(c.App.Writer, "%s ready at %s\n", svc.endpoint.Binding, ctrl.Advertised())
	}

	waitForShutdown(c.Context)
	stopAll()
	return nil
}

func waitForShutdown(ctx context.Context) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
}
