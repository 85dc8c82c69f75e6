// Package registry maps binding names to exported service instances and
// makes them callable over HTTP.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"remote-calculator/internal/calculator"

	"go.uber.org/zap"
)

var (
	ErrNameAlreadyBound = errors.New("name already bound")
	ErrNotBound         = errors.New("name not bound")
	ErrUnexported       = errors.New("service no longer exported")
)

// Exported is a service instance made reachable for remote calls. Once
// Unexport is called it refuses every further call.
type Exported struct {
	svc      any
	ops      []calculator.Op
	endpoint string
	released atomic.Bool
}

// Export wraps svc for binding. svc must implement calculator.MathService,
// calculator.TrigService, or both. endpoint is the host:port clients are
// told to call; empty means "the address you looked me up at".
func Export(svc any, endpoint string) (*Exported, error) {
	ops := calculator.Capabilities(svc)
	if len(ops) == 0 {
		return nil, fmt.Errorf("export %T: implements no calculator contract", svc)
	}
	return &Exported{svc: svc, ops: ops, endpoint: endpoint}, nil
}

// Unexport stops the instance from serving calls. It reports whether the
// instance was still exported.
func (e *Exported) Unexport() bool {
	return e.released.CompareAndSwap(false, true)
}

func (e *Exported) Exported() bool { return !e.released.Load() }

func (e *Exported) Operations() []calculator.Op { return e.ops }

func (e *Exported) Endpoint() string { return e.endpoint }

func (e *Exported) Supports(op calculator.Op) bool {
	return calculator.Supports(e.svc, op)
}

func (e *Exported) invoke(ctx context.Context, op calculator.Op, clientID string, operands []float64) (float64, error) {
	if e.released.Load() {
		return 0, ErrUnexported
	}
	return calculator.Invoke(ctx, e.svc, op, clientID, operands)
}

// Registry is the binding table of one registry host. Lookups may run
// concurrently with each other; mutations are serialised.
type Registry struct {
	mu       sync.RWMutex
	bindings map[string]*Exported
	logger   *zap.Logger
	label    string
}

// New returns an empty registry. label identifies it in metrics, usually
// the port it is served on.
func New(logger *zap.Logger, label string) *Registry {
	return &Registry{
		bindings: make(map[string]*Exported),
		logger:   logger.With(zap.String("registry", label)),
		label:    label,
	}
}

// Bind associates name with exp. It fails with ErrNameAlreadyBound when the
// name is taken.
func (r *Registry) Bind(name string, exp *Exported) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.bindings[name]; ok {
		return fmt.Errorf("bind %q: %w", name, ErrNameAlreadyBound)
	}
	r.bindings[name] = exp
	r.updateGauge()

	r.logger.Info("service bound", zap.String("binding", name), zap.Stringers("operations", exp.ops))
	return nil
}

// Rebind associates name with exp, replacing any existing binding.
func (r *Registry) Rebind(name string, exp *Exported) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, replaced := r.bindings[name]
	r.bindings[name] = exp
	r.updateGauge()

	r.logger.Info("service rebound", zap.String("binding", name), zap.Bool("replaced", replaced))
}

// Unbind removes name. It fails with ErrNotBound when nothing is bound.
func (r *Registry) Unbind(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.bindings[name]; !ok {
		return fmt.Errorf("unbind %q: %w", name, ErrNotBound)
	}
	delete(r.bindings, name)
	r.updateGauge()

	r.logger.Info("service unbound", zap.String("binding", name))
	return nil
}

// Lookup returns the instance bound under name.
func (r *Registry) Lookup(name string) (*Exported, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exp, ok := r.bindings[name]
	if !ok {
		return nil, fmt.Errorf("lookup %q: %w", name, ErrNotBound)
	}
	return exp, nil
}

// List returns the bound names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.bindings))
	for name := range r.bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// updateGauge must be called with mu held.
func (r *Registry) updateGauge() {
	bindingsGauge.WithLabelValues(r.label).Set(float64(len(r.bindings)))
}
