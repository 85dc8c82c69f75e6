package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"remote-calculator/internal/registry"

	"go.uber.org/zap"
)

// host is a registry served on one TCP port. A process keeps at most one
// host per port; every controller configured for that port shares it.
type host struct {
	port int
	reg  *registry.Registry
	srv  *http.Server
}

var (
	hostsMu sync.Mutex
	hosts   = map[int]*host{}
)

// attach returns this process's registry host on port, creating the
// listener on first use. Port 0 always creates a new host on a free port.
func attach(port int, logger *zap.Logger) (*host, error) {
	hostsMu.Lock()
	defer hostsMu.Unlock()

	if h, ok := hosts[port]; ok && port != 0 {
		return h, nil
	}

	ln, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(port)))
	if err != nil {
		return nil, err
	}
	actual := ln.Addr().(*net.TCPAddr).Port

	reg := registry.New(logger, strconv.Itoa(actual))
	h := &host{
		port: actual,
		reg:  reg,
		srv: &http.Server{
			Handler:           NewRouter(reg),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	hosts[actual] = h

	go func() {
		if err := h.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("registry host stopped", zap.Int("port", actual), zap.Error(err))
		}
	}()

	logger.Info("registry listening", zap.Int("port", actual))
	return h, nil
}

// CloseHosts shuts down every registry host in the process.
func CloseHosts(ctx context.Context) error {
	hostsMu.Lock()
	list := make([]*host, 0, len(hosts))
	for port, h := range hosts {
		list = append(list, h)
		delete(hosts, port)
	}
	hostsMu.Unlock()

	var errs []error
	for _, h := range list {
		if err := h.srv.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
