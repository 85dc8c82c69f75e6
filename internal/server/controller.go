package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"slices"
	"strconv"
	"sync"
	"syscall"

	"remote-calculator/internal/netaddr"
	"remote-calculator/internal/registry"
	"remote-calculator/internal/transport"

	"go.uber.org/zap"
)

// ErrNameAlreadyBound is returned by Start when another instance already
// holds the binding name on the port.
var ErrNameAlreadyBound = registry.ErrNameAlreadyBound

// ErrAlreadyStarted is returned by Start on a controller that is not Stopped.
var ErrAlreadyStarted = errors.New("server already started")

// StartupError wraps every start failure other than a taken name.
type StartupError struct {
	Binding string
	Port    int
	Err     error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("start %q on port %d: %v", e.Binding, e.Port, e.Err)
}

func (e *StartupError) Unwrap() error { return e.Err }

type State int

const (
	Stopped State = iota
	Starting
	Running
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case Running:
		return "running"
	}
	return "stopped"
}

// Factory builds the service instance to bind. It must return a value
// implementing calculator.MathService, calculator.TrigService, or both.
type Factory func(logger *zap.Logger) any

// Options configures a Controller.
type Options struct {
	Port    int
	Binding string
	Factory Factory
	Logger  *zap.Logger

	// AdvertiseHost overrides address resolution when set.
	AdvertiseHost string
	Resolver      netaddr.Resolver
}

// Controller owns the start/stop lifecycle of one bound service instance.
// Only the controller mutates its binding.
type Controller struct {
	mu     sync.Mutex
	opts   Options
	logger *zap.Logger

	state      State
	host       *host
	exported   *registry.Exported
	advertised string
}

// NewController returns a stopped controller for one binding.
func NewController(opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Controller{
		opts:   opts,
		logger: opts.Logger.With(zap.String("binding", opts.Binding)),
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Advertised is the host:port clients are told to call while Running.
func (c *Controller) Advertised() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.advertised
}

// Port is the port actually served while Running; it differs from the
// configured port only when that was 0.
func (c *Controller) Port() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.host == nil {
		return 0
	}
	return c.host.port
}

// Start resolves the advertised address, attaches to the registry on the
// configured port and binds a fresh service instance. On any failure the
// controller is left Stopped and existing bindings are untouched.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Stopped {
		return fmt.Errorf("start %q: %w", c.opts.Binding, ErrAlreadyStarted)
	}
	c.state = Starting

	err := c.start(ctx)
	if err != nil {
		c.state = Stopped
		if errors.Is(err, ErrNameAlreadyBound) {
			c.logger.Error("name already bound", zap.Int("port", c.opts.Port), zap.Error(err))
		} else {
			c.logger.Error("failed to start server", zap.Int("port", c.opts.Port), zap.Error(err))
		}
		return err
	}

	c.state = Running
	c.logger.Info("server started",
		zap.Int("port", c.host.port),
		zap.String("advertised", c.advertised),
	)
	return nil
}

func (c *Controller) start(ctx context.Context) error {
	advertiseHost := c.opts.AdvertiseHost
	if advertiseHost == "" {
		res := c.opts.Resolver.Resolve()
		if res.Warning != "" {
			c.logger.Warn(res.Warning)
		}
		advertiseHost = res.IP.String()
		c.logger.Info("resolved advertise address",
			zap.String("address", advertiseHost),
			zap.String("source", string(res.Source)),
		)
	}

	h, err := attach(c.opts.Port, c.opts.Logger)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return c.probeForeign(ctx, err)
		}
		return &StartupError{Binding: c.opts.Binding, Port: c.opts.Port, Err: err}
	}

	if c.opts.Factory == nil {
		return &StartupError{Binding: c.opts.Binding, Port: h.port, Err: errors.New("no service factory")}
	}
	endpoint := net.JoinHostPort(advertiseHost, strconv.Itoa(h.port))
	exp, err := registry.Export(c.opts.Factory(c.logger), endpoint)
	if err != nil {
		return &StartupError{Binding: c.opts.Binding, Port: h.port, Err: err}
	}

	if err := h.reg.Bind(c.opts.Binding, exp); err != nil {
		exp.Unexport()
		if errors.Is(err, registry.ErrNameAlreadyBound) {
			return err
		}
		return &StartupError{Binding: c.opts.Binding, Port: h.port, Err: err}
	}

	c.host = h
	c.exported = exp
	c.advertised = endpoint
	return nil
}

// probeForeign handles a port held by another process: if that process's
// registry already has our name, report it as taken.
func (c *Controller) probeForeign(ctx context.Context, listenErr error) error {
	names, err := transport.ListBindings(ctx, "127.0.0.1", c.opts.Port)
	if err != nil {
		return &StartupError{Binding: c.opts.Binding, Port: c.opts.Port, Err: listenErr}
	}
	if slices.Contains(names, c.opts.Binding) {
		return fmt.Errorf("bind %q on port %d (another process): %w", c.opts.Binding, c.opts.Port, ErrNameAlreadyBound)
	}
	return &StartupError{
		Binding: c.opts.Binding,
		Port:    c.opts.Port,
		Err:     fmt.Errorf("registry on port %d belongs to another process: %w", c.opts.Port, listenErr),
	}
}

// Stop unbinds the name, then unexports the instance so no further call
// reaches it. Stopping a stopped controller is a no-op.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Stopped {
		return nil
	}

	if err := c.host.reg.Unbind(c.opts.Binding); err != nil && !errors.Is(err, registry.ErrNotBound) {
		c.logger.Error("error during server stop", zap.Error(err))
	}
	c.exported.Unexport()

	c.state = Stopped
	c.host = nil
	c.exported = nil
	c.advertised = ""

	c.logger.Info("server stopped")
	return nil
}
