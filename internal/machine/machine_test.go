package machine

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"remote-calculator/internal/calculator"
	"remote-calculator/internal/dispatch"

	"go.uber.org/zap"
)

// localInvoker computes with the real service implementation in-process.
type localInvoker struct {
	svc     *calculator.Combined
	down    map[calculator.Category]bool
	failOn  calculator.Op
	failErr error
	calls   []calculator.Op
}

func newLocalInvoker() *localInvoker {
	return &localInvoker{svc: calculator.NewCombined(zap.NewNop()), down: map[calculator.Category]bool{}}
}

func (l *localInvoker) Available(op calculator.Op) bool { return !l.down[op.Category()] }

func (l *localInvoker) Invoke(ctx context.Context, op calculator.Op, operands ...float64) (float64, error) {
	l.calls = append(l.calls, op)
	if l.down[op.Category()] {
		return 0, dispatch.ErrServiceUnavailable
	}
	if op == l.failOn {
		return 0, l.failErr
	}
	return calculator.Invoke(ctx, l.svc, op, "test", operands)
}

type recordingView struct {
	mu         sync.Mutex
	display    string
	expression string
	errs       []error
}

func (v *recordingView) SetDisplay(s string)    { v.mu.Lock(); v.display = s; v.mu.Unlock() }
func (v *recordingView) SetExpression(s string) { v.mu.Lock(); v.expression = s; v.mu.Unlock() }
func (v *recordingView) ReportError(err error)  { v.mu.Lock(); v.errs = append(v.errs, err); v.mu.Unlock() }

func newMachine() (*Machine, *localInvoker, *recordingView) {
	inv := newLocalInvoker()
	view := &recordingView{}
	return New(inv, view, zap.NewNop()), inv, view
}

func press(t *testing.T, m *Machine, keys ...string) {
	t.Helper()
	for _, k := range keys {
		evs, err := ParseKey(k)
		if err != nil {
			t.Fatalf("parse %q: %v", k, err)
		}
		for _, ev := range evs {
			if err := m.Handle(context.Background(), ev); err != nil {
				t.Fatalf("key %q: %v", k, err)
			}
		}
	}
}

func TestSequences(t *testing.T) {
	tests := []struct {
		name string
		keys []string
		want string
	}{
		{"left to right without precedence", []string{"2", "+", "3", "*", "4", "="}, "20"},
		{"unary resolved before addition", []string{"√", "9", "+", "1", "="}, "4"},
		{"immediate unary", []string{"16", "sqrt"}, "4"},
		{"power", []string{"2", "x^y", "10", "="}, "1024"},
		{"fractional", []string{"1", "/", "4", "="}, "0.25"},
		{"decimal entry", []string{"3.5", "*", "2", "="}, "7"},
		{"equals without accumulator uses zero", []string{"√", "4", "="}, "2"},
		{"sign toggle", []string{"5", "+/-", "+", "2", "="}, "-3"},
		{"delete", []string{"123", "DEL", "+", "1", "="}, "13"},
		{"operator replaces pending operator", []string{"6", "+", "-", "2", "="}, "4"},
		{"operator after equals reuses result", []string{"2", "+", "3", "=", "*", "2", "="}, "10"},
		{"infinity", []string{"0", "^", "1", "+/-", "="}, "+Inf"},
		{"trig in radians", []string{"0", "cos", "="}, "1"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m, _, view := newMachine()
			press(t, m, tc.keys...)
			if got := m.Snapshot().Entry; got != tc.want {
				t.Fatalf("expected display %q, got %q", tc.want, got)
			}
			if view.display != tc.want {
				t.Fatalf("expected view display %q, got %q", tc.want, view.display)
			}
		})
	}
}

func TestEqualsWithNothingPendingIsNoOp(t *testing.T) {
	m, inv, _ := newMachine()
	press(t, m, "42")
	before := m.Snapshot()

	press(t, m, "=")
	after := m.Snapshot()

	if after.Entry != before.Entry {
		t.Fatalf("expected display %q unchanged, got %q", before.Entry, after.Entry)
	}
	if after.HasAccumulator || after.PendingOp != "" || len(inv.calls) != 0 {
		t.Fatalf("expected no computation, got %+v calls=%v", after, inv.calls)
	}
}

func TestSecondEqualsIsNoOp(t *testing.T) {
	m, inv, _ := newMachine()
	press(t, m, "2", "+", "3", "=")
	first := m.Snapshot()
	calls := len(inv.calls)

	press(t, m, "=")
	second := m.Snapshot()

	if first != second {
		t.Fatalf("expected state unchanged, got %+v then %+v", first, second)
	}
	if len(inv.calls) != calls {
		t.Fatalf("expected no further remote calls, got %v", inv.calls[calls:])
	}
}

func TestClearAllResetsEverything(t *testing.T) {
	states := [][]string{
		{"2", "+"},
		{"sin"},
		{"2", "+", "3", "="},
		{"7", "*", "√", "4"},
	}

	for _, keys := range states {
		m, _, view := newMachine()
		press(t, m, keys...)
		press(t, m, "AC")

		got := m.Snapshot()
		want := Snapshot{Entry: "0", ResetInput: true, Phase: Idle}
		if got != want {
			t.Fatalf("after %v AC: expected %+v, got %+v", keys, want, got)
		}
		if view.expression != "" {
			t.Fatalf("expected cleared expression, got %q", view.expression)
		}
	}
}

func TestDomainErrorLeavesStateUnchanged(t *testing.T) {
	m, _, view := newMachine()
	press(t, m, "7", "/", "0")
	before := m.Snapshot()

	err := m.Handle(context.Background(), Event{Kind: Equals})
	if !errors.Is(err, calculator.ErrDivisionByZero) {
		t.Fatalf("expected ErrDivisionByZero, got %v", err)
	}
	if after := m.Snapshot(); after != before {
		t.Fatalf("expected state unchanged, got %+v then %+v", before, after)
	}
	if len(view.errs) != 1 {
		t.Fatalf("expected the failure reported to the view, got %v", view.errs)
	}

	press(t, m, "DEL", "2", "=")
	if got := m.Snapshot().Entry; got != "3.5" {
		t.Fatalf("expected recovery to 3.5, got %q", got)
	}
}

func TestFailedChainedCallCommitsNothing(t *testing.T) {
	m, inv, _ := newMachine()
	press(t, m, "2", "+", "sin", "1")
	before := m.Snapshot()

	// sin succeeds, then the chained add fails: neither result may stick.
	inv.failOn = calculator.OpAdd
	inv.failErr = &dispatch.TransportError{Op: calculator.OpAdd, Binding: "MathService", Err: errors.New("reset")}

	err := m.Handle(context.Background(), BinaryEvent(calculator.OpMul))
	var te *dispatch.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransportError, got %v", err)
	}
	if after := m.Snapshot(); after != before {
		t.Fatalf("expected state unchanged, got %+v then %+v", before, after)
	}
	if before.PendingUnary != calculator.OpSin {
		t.Fatalf("expected sin still pending, got %+v", before)
	}
}

func TestUnavailableServiceRejectsOperator(t *testing.T) {
	m, inv, view := newMachine()
	inv.down[calculator.CategoryMath] = true
	press(t, m, "9")
	before := m.Snapshot()

	for _, ev := range []Event{BinaryEvent(calculator.OpAdd), UnaryEvent(calculator.OpSqrt)} {
		err := m.Handle(context.Background(), ev)
		if !errors.Is(err, dispatch.ErrServiceUnavailable) {
			t.Fatalf("%s: expected ErrServiceUnavailable, got %v", ev, err)
		}
		if after := m.Snapshot(); after != before {
			t.Fatalf("%s: expected state unchanged", ev)
		}
	}
	if len(view.errs) != 2 {
		t.Fatalf("expected both failures reported, got %v", view.errs)
	}

	press(t, m, "sin")
	if got, want := m.Snapshot().Entry, FormatNumber(math.Sin(9)); got != want {
		t.Fatalf("expected trig to keep working, want %q got %q", want, got)
	}
}

func TestEntryEditing(t *testing.T) {
	tests := []struct {
		name  string
		keys  []string
		entry string
		reset bool
	}{
		{"placeholder replaced by digit", []string{"0", "5"}, "5", false},
		{"decimal after reset", []string{"."}, "0.", false},
		{"decimal after result", []string{"2", "+", "3", "=", "."}, "0.", false},
		{"single decimal point", []string{"1", ".", "2", "."}, "1.2", false},
		{"sign toggle ignores placeholder", []string{"+/-"}, "0", true},
		{"sign toggle twice", []string{"8", "+/-", "+/-"}, "8", false},
		{"delete to placeholder", []string{"7", "DEL"}, "0", true},
		{"delete lone minus", []string{"7", "+/-", "DEL"}, "0", true},
		{"delete after reset is no-op", []string{"4", "+", "DEL"}, "4", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m, _, _ := newMachine()
			press(t, m, tc.keys...)
			got := m.Snapshot()
			if got.Entry != tc.entry || got.ResetInput != tc.reset {
				t.Fatalf("expected entry %q reset %v, got %q reset %v", tc.entry, tc.reset, got.Entry, got.ResetInput)
			}
		})
	}
}

func TestExpressionText(t *testing.T) {
	m, _, view := newMachine()

	press(t, m, "12", "+")
	if view.expression != "12 + " {
		t.Fatalf("expected %q, got %q", "12 + ", view.expression)
	}
	press(t, m, "√")
	if view.expression != "√()" {
		t.Fatalf("expected %q, got %q", "√()", view.expression)
	}
	press(t, m, "16")
	if view.expression != "√(16)" {
		t.Fatalf("expected %q, got %q", "√(16)", view.expression)
	}
	press(t, m, "=")
	if view.expression != "" || view.display != "16" {
		t.Fatalf("expected cleared expression and 16, got %q %q", view.expression, view.display)
	}
	press(t, m, "AC", "0.5", "sin")
	if view.expression != "sin(0.5)" {
		t.Fatalf("expected %q, got %q", "sin(0.5)", view.expression)
	}
}

func TestPhases(t *testing.T) {
	m, _, _ := newMachine()
	if p := m.Snapshot().Phase; p != Idle {
		t.Fatalf("expected idle, got %s", p)
	}
	press(t, m, "3")
	if p := m.Snapshot().Phase; p != OperandEntered {
		t.Fatalf("expected operand-entered, got %s", p)
	}
	press(t, m, "*")
	if p := m.Snapshot().Phase; p != OperatorPending {
		t.Fatalf("expected operator-pending, got %s", p)
	}
	press(t, m, "tan")
	if p := m.Snapshot().Phase; p != UnaryPending {
		t.Fatalf("expected unary-pending, got %s", p)
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{math.Copysign(0, -1), "0"},
		{5, "5"},
		{-2.5, "-2.5"},
		{1e21, "1e+21"},
		{1e-9, "1e-09"},
		{math.Inf(-1), "-Inf"},
		{math.NaN(), "NaN"},
	}
	for _, tc := range tests {
		if got := FormatNumber(tc.in); got != tc.want {
			t.Fatalf("FormatNumber(%v): expected %q, got %q", tc.in, tc.want, got)
		}
	}
}

func TestParseKey(t *testing.T) {
	evs, err := ParseKey("10.5")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(evs) != 4 || evs[2].Kind != DecimalPoint || evs[3].Digit != '5' {
		t.Fatalf("unexpected events %v", evs)
	}

	for label, want := range map[string]Event{
		"ac":  {Kind: ClearAll},
		"x^y": BinaryEvent(calculator.OpPow),
		"SIN": UnaryEvent(calculator.OpSin),
		"√":   UnaryEvent(calculator.OpSqrt),
		"+/-": {Kind: ToggleSign},
		"=":   {Kind: Equals},
		"del": {Kind: Delete},
		"÷":   BinaryEvent(calculator.OpDiv),
	} {
		evs, err := ParseKey(label)
		if err != nil || len(evs) != 1 || evs[0] != want {
			t.Fatalf("ParseKey(%q): expected %v, got %v %v", label, want, evs, err)
		}
	}

	for _, bad := range []string{"", "mod", "1a"} {
		if _, err := ParseKey(bad); err == nil {
			t.Fatalf("expected ParseKey(%q) to fail", bad)
		}
	}
}

func TestParseLine(t *testing.T) {
	evs, err := ParseLine("2 + 3 =")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(evs) != 4 || evs[1].Op != calculator.OpAdd || evs[3].Kind != Equals {
		t.Fatalf("unexpected events %v", evs)
	}
}
