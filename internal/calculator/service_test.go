package calculator

import (
	"context"
	"errors"
	"math"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var finiteSamples = []float64{0, 1, -1, 2.5, -3.75, 1e-9, 1e9, -123456.789, math.Pi, math.MaxFloat32}

func TestDivTimesDivisorRecoversDividend(t *testing.T) {
	m := NewMath(zap.NewNop())
	ctx := context.Background()

	for _, a := range finiteSamples {
		for _, b := range finiteSamples {
			if b == 0 {
				continue
			}
			q, err := m.Div(ctx, a, b, "prop")
			if err != nil {
				t.Fatalf("div(%g, %g): %v", a, b, err)
			}
			got := q * b
			if diff := math.Abs(got - a); diff > 1e-9*math.Max(1, math.Abs(a)) {
				t.Fatalf("div(%g, %g) * %g = %g, want %g", a, b, b, got, a)
			}
		}
	}
}

func TestDivByZeroFails(t *testing.T) {
	m := NewMath(zap.NewNop())

	for _, a := range append(finiteSamples, math.Inf(1)) {
		for _, zero := range []float64{0, math.Copysign(0, -1)} {
			_, err := m.Div(context.Background(), a, zero, "prop")
			if !errors.Is(err, ErrDivisionByZero) {
				t.Fatalf("div(%g, %g): expected ErrDivisionByZero, got %v", a, zero, err)
			}
			var de *DomainError
			if !errors.As(err, &de) || de.Op != OpDiv || len(de.Operands) != 2 {
				t.Fatalf("expected DomainError carrying operands, got %#v", err)
			}
		}
	}
}

func TestSqrt(t *testing.T) {
	m := NewMath(zap.NewNop())
	ctx := context.Background()

	for _, a := range finiteSamples {
		r, err := m.Sqrt(ctx, a, "prop")
		if a < 0 {
			if !errors.Is(err, ErrNegativeRadicand) {
				t.Fatalf("sqrt(%g): expected ErrNegativeRadicand, got %v", a, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("sqrt(%g): %v", a, err)
		}
		if diff := math.Abs(r*r - a); diff > 1e-9*math.Max(1, a) {
			t.Fatalf("sqrt(%g)^2 = %g", a, r*r)
		}
	}

	if _, err := m.Sqrt(ctx, math.Copysign(0, -1), "prop"); err != nil {
		t.Fatalf("sqrt(-0) should not fail: %v", err)
	}
}

func TestIEEEResultsPropagate(t *testing.T) {
	m := NewMath(zap.NewNop())
	tr := NewTrig(zap.NewNop())
	ctx := context.Background()

	got, err := m.Pow(ctx, 0, -1, "c")
	if err != nil || !math.IsInf(got, 1) {
		t.Fatalf("pow(0,-1): expected +Inf, got %v %v", got, err)
	}

	got, err = m.Pow(ctx, 4, 0.5, "c")
	if err != nil || got != 2 {
		t.Fatalf("pow(4,0.5): expected 2, got %v %v", got, err)
	}

	got, err = m.Add(ctx, math.NaN(), 1, "c")
	if err != nil || !math.IsNaN(got) {
		t.Fatalf("add(NaN,1): expected NaN, got %v %v", got, err)
	}

	got, err = tr.Sin(ctx, math.Inf(1), "c")
	if err != nil || !math.IsNaN(got) {
		t.Fatalf("sin(+Inf): expected NaN, got %v %v", got, err)
	}

	got, err = m.Sqrt(ctx, math.NaN(), "c")
	if err != nil || !math.IsNaN(got) {
		t.Fatalf("sqrt(NaN): expected NaN, got %v %v", got, err)
	}
}

func TestInvokeRoutesEveryOperation(t *testing.T) {
	svc := NewCombined(zap.NewNop())
	ctx := context.Background()

	tests := []struct {
		op       Op
		operands []float64
		want     float64
	}{
		{OpAdd, []float64{2, 3}, 5},
		{OpSub, []float64{2, 3}, -1},
		{OpMul, []float64{2, 3}, 6},
		{OpDiv, []float64{3, 2}, 1.5},
		{OpPow, []float64{2, 10}, 1024},
		{OpSqrt, []float64{9}, 3},
		{OpSin, []float64{0}, 0},
		{OpCos, []float64{0}, 1},
		{OpTan, []float64{0}, 0},
	}

	for _, tc := range tests {
		t.Run(string(tc.op), func(t *testing.T) {
			got, err := Invoke(ctx, svc, tc.op, "c", tc.operands)
			if err != nil {
				t.Fatalf("invoke: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestInvokeRejectsMismatch(t *testing.T) {
	ctx := context.Background()

	if _, err := Invoke(ctx, NewTrig(zap.NewNop()), OpAdd, "c", []float64{1, 2}); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported for add on trig, got %v", err)
	}
	if _, err := Invoke(ctx, NewMath(zap.NewNop()), OpSin, "c", []float64{1}); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported for sin on math, got %v", err)
	}
	if _, err := Invoke(ctx, NewMath(zap.NewNop()), OpAdd, "c", []float64{1}); err == nil {
		t.Fatal("expected arity error")
	}
	if _, err := Invoke(ctx, NewMath(zap.NewNop()), Op("mod"), "c", []float64{1, 2}); err == nil {
		t.Fatal("expected unknown operation error")
	}
}

func TestCapabilities(t *testing.T) {
	logger := zap.NewNop()

	if got := Capabilities(NewMath(logger)); len(got) != 6 {
		t.Fatalf("math: expected 6 ops, got %v", got)
	}
	if got := Capabilities(NewTrig(logger)); len(got) != 3 {
		t.Fatalf("trig: expected 3 ops, got %v", got)
	}
	if got := Capabilities(NewCombined(logger)); len(got) != 9 {
		t.Fatalf("combined: expected 9 ops, got %v", got)
	}
	if got := Capabilities(struct{}{}); len(got) != 0 {
		t.Fatalf("non-service: expected no ops, got %v", got)
	}
}

func TestAuditLogOnSuccess(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := NewMath(zap.New(core))

	if _, err := m.Add(context.Background(), 2, 3, "alice 10.0.0.2"); err != nil {
		t.Fatalf("add: %v", err)
	}

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["operation"] != "add" {
		t.Fatalf("expected operation add, got %#v", fields["operation"])
	}
	if fields["client_id"] != "alice 10.0.0.2" {
		t.Fatalf("expected client_id, got %#v", fields["client_id"])
	}
	if fields["a"] != 2.0 || fields["b"] != 3.0 || fields["result"] != 5.0 {
		t.Fatalf("unexpected operand/result fields: %#v", fields)
	}
	if fields["service"] != "math" {
		t.Fatalf("expected service math, got %#v", fields["service"])
	}
}

func TestAuditLogOnDomainError(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := NewMath(zap.New(core))

	_, _ = m.Sqrt(context.Background(), -4, "bob 10.0.0.3")

	entries := logs.FilterMessage("calculator operation failed").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 error entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != zap.ErrorLevel {
		t.Fatalf("expected error level, got %s", entry.Level)
	}
	fields := entry.ContextMap()
	if fields["a"] != -4.0 || fields["client_id"] != "bob 10.0.0.3" {
		t.Fatalf("unexpected fields: %#v", fields)
	}
	if _, ok := fields["b"]; ok {
		t.Fatal("did not expect b for a unary operation")
	}
	if fields["error"] != ErrNegativeRadicand.Error() {
		t.Fatalf("expected error field %q, got %#v", ErrNegativeRadicand.Error(), fields["error"])
	}
}

func TestErrorKindRoundTrip(t *testing.T) {
	for _, sentinel := range []error{ErrDivisionByZero, ErrNegativeRadicand} {
		wrapped := &DomainError{Op: OpDiv, Operands: []float64{1, 0}, Err: sentinel}
		kind := ErrorKind(wrapped)
		if kind == "" {
			t.Fatalf("expected a kind for %v", sentinel)
		}
		if ErrorForKind(kind) != sentinel {
			t.Fatalf("kind %q did not map back to %v", kind, sentinel)
		}
	}
	if ErrorKind(errors.New("other")) != "" {
		t.Fatal("expected no kind for unrelated error")
	}
	if ErrorForKind("bogus") != nil {
		t.Fatal("expected nil for unknown kind")
	}
}

func TestOpProperties(t *testing.T) {
	for _, op := range MathOps {
		if op.Category() != CategoryMath {
			t.Fatalf("%s: expected math category", op)
		}
	}
	for _, op := range TrigOps {
		if op.Category() != CategoryTrig || op.Arity() != 1 {
			t.Fatalf("%s: expected unary trig", op)
		}
	}
	if OpSqrt.Arity() != 1 || OpPow.Arity() != 2 {
		t.Fatal("unexpected arity")
	}
	if _, err := ParseOp("mod"); err == nil {
		t.Fatal("expected ParseOp to reject unknown names")
	}
}
