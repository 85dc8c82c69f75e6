package calculator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"remote-calculator/internal/observability"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// tracer is the calculator's dedicated OpenTelemetry tracer.
var tracer = otel.Tracer("calculator")

// ErrUnsupported is returned by Invoke when the service does not implement
// the contract the operation belongs to.
var ErrUnsupported = errors.New("operation not supported by service")

// MathService is the arithmetic capability set.
type MathService interface {
	Add(ctx context.Context, a, b float64, clientID string) (float64, error)
	Sub(ctx context.Context, a, b float64, clientID string) (float64, error)
	Mul(ctx context.Context, a, b float64, clientID string) (float64, error)
	Div(ctx context.Context, a, b float64, clientID string) (float64, error)
	Pow(ctx context.Context, a, b float64, clientID string) (float64, error)
	Sqrt(ctx context.Context, a float64, clientID string) (float64, error)
}

// TrigService is the trigonometric capability set. Arguments are radians.
type TrigService interface {
	Sin(ctx context.Context, a float64, clientID string) (float64, error)
	Cos(ctx context.Context, a float64, clientID string) (float64, error)
	Tan(ctx context.Context, a float64, clientID string) (float64, error)
}

// Service is the combined capability set served by a single binding.
type Service interface {
	MathService
	TrigService
}

// ---------------------------------------------------------------------------
// Math
// ---------------------------------------------------------------------------

// Math implements MathService. It holds no state besides its logger and is
// safe for concurrent use.
type Math struct {
	logger *zap.Logger
}

func NewMath(logger *zap.Logger) *Math {
	return &Math{logger: logger.With(zap.String("service", "math"))}
}

func (m *Math) Add(ctx context.Context, a, b float64, clientID string) (float64, error) {
	return run(ctx, m.logger, OpAdd, clientID, []float64{a, b}, func() (float64, error) {
		return a + b, nil
	})
}

func (m *Math) Sub(ctx context.Context, a, b float64, clientID string) (float64, error) {
	return run(ctx, m.logger, OpSub, clientID, []float64{a, b}, func() (float64, error) {
		return a - b, nil
	})
}

func (m *Math) Mul(ctx context.Context, a, b float64, clientID string) (float64, error) {
	return run(ctx, m.logger, OpMul, clientID, []float64{a, b}, func() (float64, error) {
		return a * b, nil
	})
}

// Div fails with ErrDivisionByZero for both +0 and -0 divisors.
func (m *Math) Div(ctx context.Context, a, b float64, clientID string) (float64, error) {
	return run(ctx, m.logger, OpDiv, clientID, []float64{a, b}, func() (float64, error) {
		if b == 0 {
			return 0, ErrDivisionByZero
		}
		return a / b, nil
	})
}

// Pow follows IEEE-754 pow; pow(0, -1) is +Inf, not an error.
func (m *Math) Pow(ctx context.Context, a, b float64, clientID string) (float64, error) {
	return run(ctx, m.logger, OpPow, clientID, []float64{a, b}, func() (float64, error) {
		return math.Pow(a, b), nil
	})
}

func (m *Math) Sqrt(ctx context.Context, a float64, clientID string) (float64, error) {
	return run(ctx, m.logger, OpSqrt, clientID, []float64{a}, func() (float64, error) {
		if a < 0 {
			return 0, ErrNegativeRadicand
		}
		return math.Sqrt(a), nil
	})
}

// ---------------------------------------------------------------------------
// Trig
// ---------------------------------------------------------------------------

// Trig implements TrigService.
type Trig struct {
	logger *zap.Logger
}

func NewTrig(logger *zap.Logger) *Trig {
	return &Trig{logger: logger.With(zap.String("service", "trig"))}
}

func (t *Trig) Sin(ctx context.Context, a float64, clientID string) (float64, error) {
	return run(ctx, t.logger, OpSin, clientID, []float64{a}, func() (float64, error) {
		return math.Sin(a), nil
	})
}

func (t *Trig) Cos(ctx context.Context, a float64, clientID string) (float64, error) {
	return run(ctx, t.logger, OpCos, clientID, []float64{a}, func() (float64, error) {
		return math.Cos(a), nil
	})
}

func (t *Trig) Tan(ctx context.Context, a float64, clientID string) (float64, error) {
	return run(ctx, t.logger, OpTan, clientID, []float64{a}, func() (float64, error) {
		return math.Tan(a), nil
	})
}

// Combined serves every operation from one binding.
type Combined struct {
	*Math
	*Trig
}

func NewCombined(logger *zap.Logger) *Combined {
	logger = logger.With(zap.String("service", "calculator"))
	return &Combined{
		Math: &Math{logger: logger},
		Trig: &Trig{logger: logger},
	}
}

// ---------------------------------------------------------------------------
// Dispatch by operation
// ---------------------------------------------------------------------------

// Invoke runs op against svc, which must implement the contract the
// operation belongs to.
func Invoke(ctx context.Context, svc any, op Op, clientID string, operands []float64) (float64, error) {
	if !op.Valid() {
		return 0, fmt.Errorf("unknown operation %q", op)
	}
	if len(operands) != op.Arity() {
		return 0, fmt.Errorf("%s takes %d operand(s), got %d", op, op.Arity(), len(operands))
	}

	switch op.Category() {
	case CategoryTrig:
		t, ok := svc.(TrigService)
		if !ok {
			return 0, fmt.Errorf("%s: %w", op, ErrUnsupported)
		}
		switch op {
		case OpSin:
			return t.Sin(ctx, operands[0], clientID)
		case OpCos:
			return t.Cos(ctx, operands[0], clientID)
		default:
			return t.Tan(ctx, operands[0], clientID)
		}
	default:
		m, ok := svc.(MathService)
		if !ok {
			return 0, fmt.Errorf("%s: %w", op, ErrUnsupported)
		}
		switch op {
		case OpAdd:
			return m.Add(ctx, operands[0], operands[1], clientID)
		case OpSub:
			return m.Sub(ctx, operands[0], operands[1], clientID)
		case OpMul:
			return m.Mul(ctx, operands[0], operands[1], clientID)
		case OpDiv:
			return m.Div(ctx, operands[0], operands[1], clientID)
		case OpPow:
			return m.Pow(ctx, operands[0], operands[1], clientID)
		default:
			return m.Sqrt(ctx, operands[0], clientID)
		}
	}
}

// Capabilities lists the operations svc can serve, math first.
func Capabilities(svc any) []Op {
	var ops []Op
	if _, ok := svc.(MathService); ok {
		ops = append(ops, MathOps...)
	}
	if _, ok := svc.(TrigService); ok {
		ops = append(ops, TrigOps...)
	}
	return ops
}

// Supports reports whether svc implements the contract op belongs to.
func Supports(svc any, op Op) bool {
	switch op.Category() {
	case CategoryTrig:
		_, ok := svc.(TrigService)
		return ok
	default:
		_, ok := svc.(MathService)
		return ok && op.Valid()
	}
}

// run is the shared audit path for every operation: child span, timing,
// metrics, and one audit log line carrying the client identity.
func run(ctx context.Context, logger *zap.Logger, op Op, clientID string, operands []float64, compute func() (float64, error)) (float64, error) {
	ctx, span := tracer.Start(ctx, "calculator."+string(op),
		trace.WithAttributes(
			attribute.String("calculator.operation", string(op)),
			attribute.String("calculator.client_id", clientID),
			attribute.Float64Slice("calculator.operands", operands),
		),
	)
	defer span.End()

	logger = observability.WithTrace(ctx, logger)
	fields := auditFields(op, clientID, operands)
	attrs := metric.WithAttributes(attribute.String("operation", string(op)))

	start := time.Now()
	result, err := compute()
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0 // ms

	if err != nil {
		derr := &DomainError{Op: op, Operands: operands, Err: err}
		span.RecordError(derr)
		span.SetStatus(codes.Error, err.Error())
		errorCounter.Add(ctx, 1, attrs)
		logger.Error("calculator operation failed", append(fields, zap.Error(err))...)
		return 0, derr
	}

	opsCounter.Add(ctx, 1, attrs)
	opsHistogram.Record(ctx, elapsed, attrs)
	resultGauge.Record(ctx, result, attrs)

	span.AddEvent("computation.complete", trace.WithAttributes(
		attribute.Float64("result", result),
		attribute.Float64("duration_ms", elapsed),
	))
	span.SetAttributes(attribute.Float64("calculator.result", result))
	span.SetStatus(codes.Ok, "")

	logger.Info("calculator operation completed", append(fields,
		zap.Float64("result", result),
		zap.Float64("duration_ms", elapsed),
	)...)

	return result, nil
}

func auditFields(op Op, clientID string, operands []float64) []zap.Field {
	fields := []zap.Field{
		zap.String("operation", string(op)),
		zap.String("client_id", clientID),
		zap.Float64("a", operands[0]),
	}
	if len(operands) > 1 {
		fields = append(fields, zap.Float64("b", operands[1]))
	}
	return fields
}
