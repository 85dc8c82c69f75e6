// Package dispatch routes calculator operations to the remote service that
// serves them and reports every failure as one of three kinds.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"remote-calculator/internal/calculator"
	"remote-calculator/internal/transport"

	"go.uber.org/zap"
)

// ErrServiceUnavailable is returned by Invoke when no connection serves the
// operation's category.
var ErrServiceUnavailable = errors.New("service unavailable")

// RemoteOperationError is a domain failure signalled by the remote service.
// It unwraps to calculator.ErrDivisionByZero or calculator.ErrNegativeRadicand.
type RemoteOperationError struct {
	Op       calculator.Op
	Operands []float64
	Message  string
	Err      error
}

func (e *RemoteOperationError) Error() string {
	return fmt.Sprintf("%s%v: %s", e.Op, e.Operands, e.Message)
}

func (e *RemoteOperationError) Unwrap() error { return e.Err }

// TransportError is any other failure of a remote call.
type TransportError struct {
	Op      calculator.Op
	Binding string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s via %s: %v", e.Op, e.Binding, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Conn is an established connection to one bound service.
type Conn interface {
	Call(ctx context.Context, op calculator.Op, clientID string, operands ...float64) (float64, error)
}

// Identity tags every remote call for audit logging on the server.
type Identity string

// NewIdentity joins username and the client address with a space.
func NewIdentity(username, address string) Identity {
	return Identity(username + " " + address)
}

func (id Identity) String() string { return string(id) }

// Topology says whether one service or two serve the operations.
type Topology string

const (
	TopologyCombined Topology = "combined"
	TopologySplit    Topology = "split"
)

// ParseTopology accepts "combined" and "split".
func ParseTopology(s string) (Topology, error) {
	switch t := Topology(s); t {
	case TopologyCombined, TopologySplit:
		return t, nil
	}
	return "", fmt.Errorf("unknown topology %q", s)
}

// Target locates one binding in a remote registry.
type Target struct {
	Host    string
	Port    int
	Binding string
}

func (t Target) String() string {
	return fmt.Sprintf("%s@%s:%d", t.Binding, t.Host, t.Port)
}

// Config names the services to connect to. Combined is used for the
// combined topology, Math and Trig for the split one.
type Config struct {
	Topology Topology
	Combined Target
	Math     Target
	Trig     Target
}

// Connection is the outcome of dialing one target.
type Connection struct {
	Target     Target
	Categories []calculator.Category
	Err        error
}

// DialFunc opens a connection to target.
type DialFunc func(ctx context.Context, target Target) (Conn, error)

type Option func(*Dispatcher)

// WithDialer replaces the HTTP registry dialer.
func WithDialer(dial DialFunc) Option {
	return func(d *Dispatcher) { d.dial = dial }
}

// WithTransportOptions passes options to the default dialer.
func WithTransportOptions(opts ...transport.Option) Option {
	return func(d *Dispatcher) { d.transportOpts = append(d.transportOpts, opts...) }
}

type route struct {
	conn    Conn
	binding string
}

// Dispatcher holds at most one connection per operation category.
type Dispatcher struct {
	identity Identity
	logger   *zap.Logger

	dial          DialFunc
	transportOpts []transport.Option

	mu          sync.RWMutex
	routes      map[calculator.Category]route
	connections []Connection
}

// New returns a dispatcher with no connections; call Connect to dial.
func New(identity Identity, logger *zap.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		identity: identity,
		logger:   logger,
		routes:   make(map[calculator.Category]route),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.dial == nil {
		d.dial = d.dialRegistry
	}
	return d
}

func (d *Dispatcher) dialRegistry(ctx context.Context, target Target) (Conn, error) {
	return transport.Dial(ctx, target.Host, target.Port, target.Binding, d.transportOpts...)
}

// Connect dials each configured service once. A failed dial is logged and
// recorded; it never prevents the other service from connecting.
func (d *Dispatcher) Connect(ctx context.Context, cfg Config) {
	switch cfg.Topology {
	case TopologySplit:
		d.connect(ctx, cfg.Math, calculator.CategoryMath)
		d.connect(ctx, cfg.Trig, calculator.CategoryTrig)
	default:
		d.connect(ctx, cfg.Combined, calculator.CategoryMath, calculator.CategoryTrig)
	}
}

func (d *Dispatcher) connect(ctx context.Context, target Target, categories ...calculator.Category) {
	log := d.logger.With(zap.String("target", target.String()))

	conn, err := d.dial(ctx, target)
	if err != nil {
		log.Error("failed to connect", zap.Error(err))
		d.record(Connection{Target: target, Err: err})
		return
	}

	served := categories
	if oc, ok := conn.(interface{ Operations() []calculator.Op }); ok {
		served = servedCategories(oc.Operations(), categories)
		if len(served) == 0 {
			err := fmt.Errorf("%s serves none of the expected operations", target.Binding)
			log.Error("failed to connect", zap.Error(err))
			d.record(Connection{Target: target, Err: err})
			return
		}
	}

	d.mu.Lock()
	for _, c := range served {
		d.routes[c] = route{conn: conn, binding: target.Binding}
	}
	d.mu.Unlock()

	d.record(Connection{Target: target, Categories: served})
	log.Info("connected", zap.Any("categories", served))
}

func servedCategories(ops []calculator.Op, want []calculator.Category) []calculator.Category {
	var out []calculator.Category
	for _, c := range want {
		if slices.ContainsFunc(ops, func(op calculator.Op) bool { return op.Category() == c }) {
			out = append(out, c)
		}
	}
	return out
}

func (d *Dispatcher) record(c Connection) {
	d.mu.Lock()
	d.connections = append(d.connections, c)
	d.mu.Unlock()
}

// Connections reports the outcome of every dial made by Connect.
func (d *Dispatcher) Connections() []Connection {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.connections)
}

// Available reports whether a connection serves op.
func (d *Dispatcher) Available(op calculator.Op) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.routes[op.Category()]
	return ok
}

// Invoke calls op on the service that serves it.
func (d *Dispatcher) Invoke(ctx context.Context, op calculator.Op, operands ...float64) (float64, error) {
	if !op.Valid() {
		return 0, fmt.Errorf("invoke %q: unknown operation", op)
	}

	d.mu.RLock()
	r, ok := d.routes[op.Category()]
	d.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("%s: %w", op, ErrServiceUnavailable)
	}

	result, err := r.conn.Call(ctx, op, string(d.identity), operands...)
	if err == nil {
		return result, nil
	}

	var re *transport.RemoteError
	if errors.As(err, &re) {
		got := re.Operands
		if len(got) == 0 {
			got = operands
		}
		return 0, &RemoteOperationError{
			Op:       op,
			Operands: got,
			Message:  re.Message,
			Err:      calculator.ErrorForKind(re.Kind),
		}
	}
	return 0, &TransportError{Op: op, Binding: r.binding, Err: err}
}
