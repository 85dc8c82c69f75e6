// Package machine interprets calculator key events, calling the remote
// services at the points where a value must be computed.
package machine

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"remote-calculator/internal/calculator"
	"remote-calculator/internal/dispatch"

	"go.uber.org/zap"
)

// Invoker performs remote operations. *dispatch.Dispatcher implements it.
type Invoker interface {
	Invoke(ctx context.Context, op calculator.Op, operands ...float64) (float64, error)
	Available(op calculator.Op) bool
}

// View receives state-change notifications.
type View interface {
	SetDisplay(value string)
	SetExpression(text string)
	ReportError(err error)
}

type nopView struct{}

func (nopView) SetDisplay(string)    {}
func (nopView) SetExpression(string) {}
func (nopView) ReportError(error)    {}

// Phase summarises which part of an expression the machine is waiting for.
type Phase string

const (
	Idle            Phase = "idle"
	OperandEntered  Phase = "operand-entered"
	OperatorPending Phase = "operator-pending"
	UnaryPending    Phase = "unary-pending"
)

const placeholder = "0"

// Snapshot is a copy of the machine state.
type Snapshot struct {
	Entry          string
	Accumulator    float64
	HasAccumulator bool
	PendingOp      calculator.Op
	PendingUnary   calculator.Op
	ResetInput     bool
	Expression     string
	Phase          Phase
}

// Machine is the calculator input state. It is not safe for concurrent
// use; Session serialises access.
type Machine struct {
	inv    Invoker
	view   View
	logger *zap.Logger

	entry        string
	acc          float64
	hasAcc       bool
	pendingOp    calculator.Op
	pendingUnary calculator.Op
	resetInput   bool
	expr         string
}

// New returns a machine showing 0 with nothing pending. A nil view
// discards notifications.
func New(inv Invoker, view View, logger *zap.Logger) *Machine {
	if view == nil {
		view = nopView{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{
		inv:        inv,
		view:       view,
		logger:     logger,
		entry:      placeholder,
		resetInput: true,
	}
}

// Snapshot copies the current state.
func (m *Machine) Snapshot() Snapshot {
	return Snapshot{
		Entry:          m.entry,
		Accumulator:    m.acc,
		HasAccumulator: m.hasAcc,
		PendingOp:      m.pendingOp,
		PendingUnary:   m.pendingUnary,
		ResetInput:     m.resetInput,
		Expression:     m.expr,
		Phase:          m.phase(),
	}
}

func (m *Machine) phase() Phase {
	switch {
	case m.pendingUnary != "":
		return UnaryPending
	case m.pendingOp != "":
		return OperatorPending
	case m.hasAcc || !m.resetInput:
		return OperandEntered
	}
	return Idle
}

// Handle applies one event. Remote calls for the event are made before
// any state changes; if one fails the state is left exactly as it was and
// the error is reported to the view and returned.
func (m *Machine) Handle(ctx context.Context, ev Event) error {
	var err error
	switch ev.Kind {
	case Digit:
		if ev.Digit < '0' || ev.Digit > '9' {
			err = fmt.Errorf("invalid digit %q", ev.Digit)
			break
		}
		m.appendDigit(ev.Digit)
	case DecimalPoint:
		m.appendDecimalPoint()
	case ToggleSign:
		m.toggleSign()
	case Delete:
		m.deleteLast()
	case ClearAll:
		m.clearAll()
	case BinaryOperator:
		err = m.binaryOperator(ctx, ev.Op)
	case UnaryFunction:
		err = m.unaryFunction(ctx, ev.Op)
	case Equals:
		err = m.equals(ctx)
	default:
		err = fmt.Errorf("unknown event %s", ev.Kind)
	}

	if err != nil {
		m.logger.Error("event failed", zap.Stringer("event", ev), zap.Error(err))
		m.view.ReportError(err)
		return err
	}

	m.view.SetDisplay(m.entry)
	m.view.SetExpression(m.expr)
	return nil
}

func (m *Machine) appendDigit(d byte) {
	if m.resetInput || m.entry == placeholder {
		m.entry = string(d)
		m.resetInput = false
	} else {
		m.entry += string(d)
	}
	m.updateTypingExpression()
}

func (m *Machine) appendDecimalPoint() {
	if m.resetInput {
		m.entry = "0."
		m.resetInput = false
	} else if !strings.Contains(m.entry, ".") {
		m.entry += "."
	}
	m.updateTypingExpression()
}

func (m *Machine) toggleSign() {
	switch {
	case m.entry == placeholder, m.entry == "NaN":
	case m.entry[0] == '-':
		m.entry = m.entry[1:]
	case m.entry[0] == '+':
		m.entry = "-" + m.entry[1:]
	default:
		m.entry = "-" + m.entry
	}
}

func (m *Machine) deleteLast() {
	if m.resetInput {
		return
	}
	if len(m.entry) <= 1 || (len(m.entry) == 2 && m.entry[0] == '-') {
		m.entry = placeholder
		m.resetInput = true
	} else {
		m.entry = m.entry[:len(m.entry)-1]
	}
	m.updateTypingExpression()
}

func (m *Machine) clearAll() {
	m.acc, m.hasAcc = 0, false
	m.pendingOp = ""
	m.pendingUnary = ""
	m.entry = placeholder
	m.resetInput = true
	m.expr = ""
}

func (m *Machine) binaryOperator(ctx context.Context, op calculator.Op) error {
	if !op.Valid() || op.Arity() != 2 {
		return fmt.Errorf("%q is not a binary operator", op)
	}
	if !m.inv.Available(op) {
		return fmt.Errorf("%s: %w", op, dispatch.ErrServiceUnavailable)
	}

	val, err := m.entryValue()
	if err != nil {
		return err
	}
	entry, pendingUnary := m.entry, m.pendingUnary

	if pendingUnary != "" && !m.resetInput {
		r, err := m.inv.Invoke(ctx, pendingUnary, val)
		if err != nil {
			return err
		}
		val, entry, pendingUnary = r, FormatNumber(r), ""
	}

	acc, hasAcc := m.acc, m.hasAcc
	if !hasAcc {
		acc, hasAcc = val, true
	} else if m.pendingOp != "" && !m.resetInput {
		r, err := m.inv.Invoke(ctx, m.pendingOp, acc, val)
		if err != nil {
			return err
		}
		acc, entry = r, FormatNumber(r)
	}

	m.entry = entry
	m.pendingUnary = pendingUnary
	m.acc, m.hasAcc = acc, hasAcc
	m.pendingOp = op
	m.resetInput = true
	m.expr = FormatNumber(acc) + " " + op.Symbol() + " "

	m.logger.Info("pending operation",
		zap.String("operator", op.Symbol()),
		zap.Float64("accumulator", acc),
		zap.Float64("input", val),
	)
	return nil
}

func (m *Machine) unaryFunction(ctx context.Context, fn calculator.Op) error {
	if !fn.Valid() || fn.Arity() != 1 {
		return fmt.Errorf("%q is not a unary function", fn)
	}
	if !m.inv.Available(fn) {
		return fmt.Errorf("%s: %w", fn, dispatch.ErrServiceUnavailable)
	}

	if m.resetInput || m.entry == placeholder {
		typed := ""
		if !m.resetInput {
			typed = m.entry
		}
		m.pendingUnary = fn
		m.resetInput = true
		m.expr = fn.Symbol() + "(" + typed + ")"
		return nil
	}

	val, err := m.entryValue()
	if err != nil {
		return err
	}
	r, err := m.inv.Invoke(ctx, fn, val)
	if err != nil {
		return err
	}

	m.entry = FormatNumber(r)
	m.resetInput = true
	m.expr = fn.Symbol() + "(" + FormatNumber(val) + ")"

	m.logger.Info("applied function",
		zap.String("function", string(fn)),
		zap.Float64("input", val),
		zap.Float64("result", r),
	)
	return nil
}

func (m *Machine) equals(ctx context.Context) error {
	val, err := m.entryValue()
	if err != nil {
		return err
	}
	entry := m.entry

	if m.pendingUnary != "" {
		r, err := m.inv.Invoke(ctx, m.pendingUnary, val)
		if err != nil {
			return err
		}
		val, entry = r, FormatNumber(r)
	}

	if m.pendingOp == "" {
		m.entry = entry
		m.pendingUnary = ""
		m.resetInput = true
		m.expr = ""
		return nil
	}

	acc := 0.0
	if m.hasAcc {
		acc = m.acc
	}
	r, err := m.inv.Invoke(ctx, m.pendingOp, acc, val)
	if err != nil {
		return err
	}

	m.acc, m.hasAcc = r, true
	m.entry = FormatNumber(r)
	m.pendingOp = ""
	m.pendingUnary = ""
	m.resetInput = true
	m.expr = ""

	m.logger.Info("evaluated", zap.Float64("result", r))
	return nil
}

func (m *Machine) updateTypingExpression() {
	if m.pendingUnary == "" {
		return
	}
	typed := ""
	if !m.resetInput {
		typed = m.entry
	}
	m.expr = m.pendingUnary.Symbol() + "(" + typed + ")"
}

func (m *Machine) entryValue() (float64, error) {
	v, err := strconv.ParseFloat(m.entry, 64)
	if err != nil {
		return 0, fmt.Errorf("entry buffer %q is not a number: %w", m.entry, err)
	}
	return v, nil
}

// FormatNumber renders v for the display. Moderate magnitudes use plain
// decimal notation, everything else the shortest exponent form.
func FormatNumber(v float64) string {
	if v == 0 {
		return placeholder
	}
	if a := math.Abs(v); a >= 1e-6 && a < 1e15 {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
